// Package corpus implements the text-leaf transformation pass shared by
// translation and polishing: locating localizable strings anywhere in a
// document, deciding per leaf whether to skip or transform it, and writing
// results back without touching the surrounding structure.
package corpus

import (
	"iter"
	"strconv"
	"strings"

	"story-localizer/internal/document"
)

// DefaultTextKey is the reserved key under which localizable text is stored
const DefaultTextKey = "text"

// Handle points at one string leaf: Mapping[Key]
type Handle struct {
	Mapping *document.Mapping
	Key     string
	// Path locates the leaf from the document root, e.g. story[3].choices[0].text
	Path string
}

// Value returns the current string held by the leaf. It returns "" and
// false if the leaf has since been replaced by a non-string.
func (h Handle) Value() (string, bool) {
	v, ok := h.Mapping.Get(h.Key)
	if !ok {
		return "", false
	}
	return document.Text(v)
}

// Set replaces the leaf's string in place.
func (h Handle) Set(text string) {
	h.Mapping.Set(h.Key, document.String(text))
}

// Locate walks root depth-first and yields a Handle for every string value
// stored under field. Mapping keys are visited in insertion order and
// sequence elements by ascending index. Non-string values under field are
// not yielded; containers among them are still descended into.
func Locate(root document.Value, field string) iter.Seq[Handle] {
	return func(yield func(Handle) bool) {
		walk(root, field, nil, yield)
	}
}

// walk returns false once the consumer stops the iteration.
func walk(v document.Value, field string, path []string, yield func(Handle) bool) bool {
	switch t := v.(type) {
	case *document.Mapping:
		for _, key := range t.Keys() {
			child, _ := t.Get(key)
			childPath := appendKey(path, key)
			if key == field {
				if _, ok := child.(document.String); ok {
					if !yield(Handle{Mapping: t, Key: key, Path: strings.Join(childPath, "")}) {
						return false
					}
					continue
				}
			}
			if !walk(child, field, childPath, yield) {
				return false
			}
		}
	case *document.Sequence:
		for i, item := range t.Items {
			if !walk(item, field, appendIndex(path, i), yield) {
				return false
			}
		}
	}
	return true
}

func appendKey(path []string, key string) []string {
	seg := key
	if len(path) > 0 {
		seg = "." + key
	}
	return append(path[:len(path):len(path)], seg)
}

func appendIndex(path []string, i int) []string {
	return append(path[:len(path):len(path)], "["+strconv.Itoa(i)+"]")
}

// Collect drains Locate into a slice.
func Collect(root document.Value, field string) []Handle {
	var handles []Handle
	for h := range Locate(root, field) {
		handles = append(handles, h)
	}
	return handles
}
