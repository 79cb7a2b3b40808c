package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"story-localizer/internal/logger"
	"story-localizer/internal/types"
)

// DefaultIndent is the indentation used when saving documents
const DefaultIndent = "  "

// LoadOptions controls how raw bytes become a document
type LoadOptions struct {
	// Repair wraps input that is not valid JSON, and does not already start
	// with '[', into an array before giving up. This recovers files holding
	// bare comma-joined objects.
	Repair bool
}

// Parse parses JSON text into a document without repair.
func Parse(data []byte) (Value, error) {
	return ParseWithOptions(data, LoadOptions{})
}

// MustParse is like Parse but panics on error. Intended for literals.
func MustParse(text string) Value {
	v, err := Parse([]byte(text))
	if err != nil {
		panic(err)
	}
	return v
}

// ParseWithOptions parses JSON text into a document.
func ParseWithOptions(data []byte, opts LoadOptions) (Value, error) {
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 {
		return nil, types.NewAppError(types.ErrParse, "empty document", nil)
	}

	if !gjson.ValidBytes(raw) {
		if !opts.Repair || raw[0] == '[' {
			return nil, types.NewAppError(types.ErrParse, "invalid JSON", nil)
		}
		repaired := make([]byte, 0, len(raw)+2)
		repaired = append(repaired, '[')
		repaired = append(repaired, bytes.TrimRight(raw, ", \t\r\n")...)
		repaired = append(repaired, ']')
		if !gjson.ValidBytes(repaired) {
			return nil, types.NewAppErrorWithDetails(types.ErrParse, "invalid JSON", "repair by wrapping into an array failed", nil)
		}
		logger.Warn("document repaired by wrapping top-level objects into an array", logger.Int("bytes", len(raw)))
		raw = repaired
	}

	return fromResult(gjson.ParseBytes(raw)), nil
}

func fromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.Null:
		return Null{}
	case gjson.False:
		return Bool(false)
	case gjson.True:
		return Bool(true)
	case gjson.Number:
		return Number(r.Raw)
	case gjson.String:
		return String(r.Str)
	}

	if r.IsArray() {
		seq := &Sequence{}
		r.ForEach(func(_, item gjson.Result) bool {
			seq.Items = append(seq.Items, fromResult(item))
			return true
		})
		return seq
	}

	m := NewMapping()
	r.ForEach(func(key, item gjson.Result) bool {
		m.Set(key.Str, fromResult(item))
		return true
	})
	return m
}

// Load reads a document from r. UTF-8 and UTF-16 byte order marks are
// honoured; input without a BOM is read as UTF-8.
func Load(r io.Reader, opts LoadOptions) (Value, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	data, err := io.ReadAll(decoded)
	if err != nil {
		return nil, types.NewAppError(types.ErrParse, "failed to decode document", err)
	}
	return ParseWithOptions(data, opts)
}

// LoadFile reads and parses the document at path.
func LoadFile(path string, opts LoadOptions) (Value, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewAppErrorWithDetails(types.ErrFileNotFound, "document not found", path, err)
		}
		return nil, types.NewAppError(types.ErrInternal, "failed to open document", err)
	}
	defer f.Close()

	logger.Debug("loading document", logger.String("path", path))
	v, err := Load(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// Marshal renders v as UTF-8 JSON indented with DefaultIndent. Non-ASCII
// and HTML characters are written unescaped.
func Marshal(v Value) ([]byte, error) {
	return MarshalIndent(v, DefaultIndent)
}

// MarshalIndent renders v with the given indent string.
func MarshalIndent(v Value, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := appendCompact(&buf, enc, v); err != nil {
		return nil, err
	}
	return pretty.PrettyOptions(buf.Bytes(), &pretty.Options{
		Indent:   indent,
		SortKeys: false,
	}), nil
}

func appendCompact(buf *bytes.Buffer, enc *json.Encoder, v Value) error {
	switch t := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Number:
		if !json.Valid([]byte(t)) {
			return types.NewAppErrorWithDetails(types.ErrInternal, "invalid number literal", string(t), nil)
		}
		buf.WriteString(string(t))
	case String:
		return appendString(buf, enc, string(t))
	case *Mapping:
		buf.WriteByte('{')
		for i, k := range t.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := appendString(buf, enc, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := appendCompact(buf, enc, t.values[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case *Sequence:
		buf.WriteByte('[')
		for i, item := range t.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := appendCompact(buf, enc, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return types.NewAppErrorWithDetails(types.ErrInternal, "unsupported value", fmt.Sprintf("%T", v), nil)
	}
	return nil
}

// appendString writes s through enc, dropping the newline Encode appends.
func appendString(buf *bytes.Buffer, enc *json.Encoder, s string) error {
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1)
	return nil
}

// Save writes v to w.
func Save(w io.Writer, v Value) error {
	data, err := Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// SaveFile writes v to path, creating parent directories as needed. The
// file is written to a temporary sibling first and renamed into place.
func SaveFile(path string, v Value) error {
	data, err := Marshal(v)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return types.NewAppError(types.ErrInternal, "failed to create output directory", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to create temporary file", err)
	}
	tmpName := tmp.Name()
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return types.NewAppError(types.ErrInternal, "failed to set document permissions", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return types.NewAppError(types.ErrInternal, "failed to write document", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return types.NewAppError(types.ErrInternal, "failed to write document", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return types.NewAppError(types.ErrInternal, "failed to replace document", err)
	}

	logger.Debug("document saved", logger.String("path", path), logger.Int("bytes", len(data)))
	return nil
}

// IsJSONPath reports whether name looks like a JSON document file.
func IsJSONPath(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".json")
}
