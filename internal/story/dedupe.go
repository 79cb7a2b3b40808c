package story

import (
	"story-localizer/internal/document"
	"story-localizer/internal/logger"
)

// DedupResult is the outcome of a deduplication pass
type DedupResult struct {
	// Document is the input document with its page sequence replaced
	Document document.Value
	// Kept is the number of surviving pages
	Kept int
	// RemovedIDs lists the ids of dropped pages in encounter order. An id
	// repeated n times appears n-1 times. Missing ids are reported as nil.
	RemovedIDs []document.Value
}

// Deduplicate drops every page whose id was already seen earlier in the
// sequence. The first occurrence wins and survivors keep their order.
// Pages without an id (or with a null id) count as duplicates of each
// other.
func Deduplicate(doc document.Value, opts Options) (*DedupResult, error) {
	opts = opts.withDefaults()
	holder, seq, err := Pages(doc, opts)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, seq.Len())
	kept := make([]document.Value, 0, seq.Len())
	var removed []document.Value

	for _, item := range seq.Items {
		page := item.(*document.Mapping)
		id := pageID(page, opts)
		key := idKey(id)
		if _, dup := seen[key]; dup {
			removed = append(removed, id)
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, page)
	}

	holder.Set(opts.StoryKey, document.NewSequence(kept...))

	logger.Info("deduplication finished",
		logger.Int("pages", seq.Len()),
		logger.Int("kept", len(kept)),
		logger.Int("removed", len(removed)))
	return &DedupResult{Document: doc, Kept: len(kept), RemovedIDs: removed}, nil
}
