package story

import (
	"story-localizer/internal/document"
	"story-localizer/internal/logger"
)

// Finding is one page whose text exceeds the audit limit
type Finding struct {
	ID     document.Value `json:"id"`
	Length int            `json:"length"`
}

// Audit reports every page whose trimmed text is longer than limit
// characters, in page order. It never modifies doc.
func Audit(doc document.Value, limit int, opts Options) ([]Finding, error) {
	opts = opts.withDefaults()
	_, seq, err := Pages(doc, opts)
	if err != nil {
		return nil, err
	}

	findings := overLimit(seq, limit, opts)
	logger.Info("length audit finished",
		logger.Int("pages", seq.Len()),
		logger.Int("limit", limit),
		logger.Int("overLimit", len(findings)))
	return findings, nil
}

func overLimit(seq *document.Sequence, limit int, opts Options) []Finding {
	var findings []Finding
	for _, item := range seq.Items {
		page := item.(*document.Mapping)
		if n := TextLength(pageText(page, opts)); n > limit {
			findings = append(findings, Finding{ID: pageID(page, opts), Length: n})
		}
	}
	return findings
}
