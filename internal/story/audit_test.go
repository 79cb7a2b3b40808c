package story

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"story-localizer/internal/document"
	"story-localizer/internal/types"
)

func pageDoc(t *testing.T, texts map[string]string, order ...string) document.Value {
	t.Helper()
	seq := document.NewSequence()
	for _, id := range order {
		page := document.NewMapping()
		page.Set("id", document.String(id))
		page.Set("text", document.String(texts[id]))
		seq.Append(page)
	}
	root := document.NewMapping()
	root.Set("story", seq)
	return root
}

func TestAudit_StrictlyGreaterThanLimit(t *testing.T) {
	doc := pageDoc(t, map[string]string{
		"at":    strings.Repeat("a", 450),
		"over":  strings.Repeat("a", 451),
		"short": "hello",
	}, "at", "over", "short")

	findings, err := Audit(doc, DefaultCharLimit, Options{})
	require.NoError(t, err)

	require.Len(t, findings, 1)
	assert.Equal(t, document.String("over"), findings[0].ID)
	assert.Equal(t, 451, findings[0].Length)
}

func TestAudit_TrimsAndCountsRunes(t *testing.T) {
	doc := pageDoc(t, map[string]string{
		"padded":   "  \n" + strings.Repeat("b", 10) + "\t ",
		"japanese": strings.Repeat("語", 11),
	}, "padded", "japanese")

	findings, err := Audit(doc, 10, Options{})
	require.NoError(t, err)

	require.Len(t, findings, 1)
	assert.Equal(t, document.String("japanese"), findings[0].ID)
	assert.Equal(t, 11, findings[0].Length)
}

func TestAudit_PageOrderAndMissingText(t *testing.T) {
	doc := document.MustParse(`{"story": [
		{"id": 3, "text": "abcdef"},
		{"id": 1},
		{"id": 2, "text": 12345678},
		{"text": "abcdefgh"}
	]}`)
	before, _ := document.Marshal(doc)

	findings, err := Audit(doc, 5, Options{})
	require.NoError(t, err)

	assert.Equal(t, []Finding{
		{ID: document.Number("3"), Length: 6},
		{ID: nil, Length: 8},
	}, findings)
	after, _ := document.Marshal(doc)
	assert.Equal(t, string(before), string(after))
}

func TestAudit_StructureError(t *testing.T) {
	_, err := Audit(document.MustParse(`{"text": "no pages"}`), DefaultCharLimit, Options{})
	assert.True(t, types.IsCode(err, types.ErrStructure))
}

func TestTextLength(t *testing.T) {
	assert.Equal(t, 0, TextLength("   "))
	assert.Equal(t, 3, TextLength(" 次へ。 "))
	assert.Equal(t, 5, TextLength("hello"))
}
