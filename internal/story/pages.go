// Package story implements the passes that operate on a document's page
// sequence: duplicate id removal, length auditing and link validation.
package story

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"story-localizer/internal/document"
	"story-localizer/internal/types"
)

const (
	// DefaultStoryKey is the reserved key holding the page sequence
	DefaultStoryKey = "story"
	// DefaultIDKey is the page identifier key
	DefaultIDKey = "id"
	// DefaultTextKey is the page text key
	DefaultTextKey = "text"
	// DefaultCharLimit is the page length limit used by the audit
	DefaultCharLimit = 450
)

// Options locates the page sequence inside a document. The zero value
// reads root["story"].
type Options struct {
	// Block names a story block under the root, as in {"covarnius": {"story": [...]}}
	Block    string
	StoryKey string
	IDKey    string
	TextKey  string
}

func (o Options) withDefaults() Options {
	if o.StoryKey == "" {
		o.StoryKey = DefaultStoryKey
	}
	if o.IDKey == "" {
		o.IDKey = DefaultIDKey
	}
	if o.TextKey == "" {
		o.TextKey = DefaultTextKey
	}
	return o
}

func (o Options) location() string {
	if o.Block == "" {
		return o.StoryKey
	}
	return o.Block + "." + o.StoryKey
}

// Pages returns the page sequence of doc together with the mapping that
// holds it. Every element must be a mapping.
func Pages(doc document.Value, opts Options) (*document.Mapping, *document.Sequence, error) {
	opts = opts.withDefaults()

	holder, ok := doc.(*document.Mapping)
	if !ok {
		return nil, nil, structureError(opts, fmt.Sprintf("document root is an %s, not an object", kindOf(doc)))
	}
	if opts.Block != "" {
		block, ok := holder.Get(opts.Block)
		if !ok {
			return nil, nil, structureError(opts, fmt.Sprintf("story block %q not found", opts.Block))
		}
		if holder, ok = block.(*document.Mapping); !ok {
			return nil, nil, structureError(opts, fmt.Sprintf("story block %q is an %s, not an object", opts.Block, block.Kind()))
		}
	}

	raw, ok := holder.Get(opts.StoryKey)
	if !ok {
		return nil, nil, structureError(opts, "page sequence not found")
	}
	seq, ok := raw.(*document.Sequence)
	if !ok {
		return nil, nil, structureError(opts, fmt.Sprintf("page sequence is an %s, not an array", raw.Kind()))
	}
	for i, item := range seq.Items {
		if _, ok := item.(*document.Mapping); !ok {
			return nil, nil, structureError(opts, fmt.Sprintf("page %d is an %s, not an object", i, kindOf(item)))
		}
	}
	return holder, seq, nil
}

func structureError(opts Options, details string) error {
	return types.NewAppErrorWithDetails(types.ErrStructure, "missing page sequence at "+opts.location(), details, nil)
}

func kindOf(v document.Value) string {
	if v == nil {
		return "empty value"
	}
	return v.Kind().String()
}

// pageID returns the page's identifier, or nil when absent.
func pageID(page *document.Mapping, opts Options) document.Value {
	v, ok := page.Get(opts.IDKey)
	if !ok {
		return nil
	}
	if _, isNull := v.(document.Null); isNull {
		return nil
	}
	return v
}

// idKey maps an identifier to its equality class. Missing and null ids
// share one class; numbers compare by value; strings never equal numbers.
func idKey(id document.Value) string {
	switch t := id.(type) {
	case nil:
		return "null"
	case document.String:
		return "s:" + string(t)
	case document.Number:
		if f, err := t.Float64(); err == nil && !math.IsInf(f, 0) {
			return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
		}
		return "n:" + string(t)
	case document.Bool:
		return "b:" + strconv.FormatBool(bool(t))
	default:
		// Containers as ids are unusual; compare them by serialized form.
		data, _ := document.Marshal(t)
		return "j:" + string(data)
	}
}

// pageText returns the page text; absent or non-string text reads as "".
func pageText(page *document.Mapping, opts Options) string {
	v, ok := page.Get(opts.TextKey)
	if !ok {
		return ""
	}
	text, _ := document.Text(v)
	return text
}

// TextLength is the audit length of a text: runes after trimming
// surrounding whitespace.
func TextLength(text string) int {
	return utf8.RuneCountInString(strings.TrimSpace(text))
}
