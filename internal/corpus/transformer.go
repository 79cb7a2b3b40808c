package corpus

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"story-localizer/internal/document"
	"story-localizer/internal/logger"
)

// LeafError records one leaf whose transformation failed. The leaf keeps
// its original value.
type LeafError struct {
	// Index is the leaf's position in traversal order
	Index    int
	Path     string
	Original string
	Err      error
}

// Error implements the error interface
func (e *LeafError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying provider error
func (e *LeafError) Unwrap() error {
	return e.Err
}

// Report summarises one transform pass
type Report struct {
	// Document is the input document, mutated in place
	Document document.Value
	Leaves   int
	Replaced int
	Skipped  int
	// Errors lists failed leaves in traversal order
	Errors []*LeafError
}

// Failed returns the number of failed leaves
func (r *Report) Failed() int {
	return len(r.Errors)
}

// ProgressFunc is called after each leaf with the number of leaves done
// so far, the total (0 when unknown), and the leaf path.
type ProgressFunc func(done, total int, path string)

// Transformer rewrites every text leaf of a document through a Policy
type Transformer struct {
	field       string
	concurrency int
	progress    ProgressFunc
}

// Option configures a Transformer
type Option func(*Transformer)

// WithField sets the reserved key holding localizable text
func WithField(field string) Option {
	return func(t *Transformer) {
		if field != "" {
			t.field = field
		}
	}
}

// WithConcurrency allows up to n policy calls in flight. Write-back still
// happens in traversal order.
func WithConcurrency(n int) Option {
	return func(t *Transformer) {
		if n > 0 {
			t.concurrency = n
		}
	}
}

// WithProgress registers a progress callback
func WithProgress(fn ProgressFunc) Option {
	return func(t *Transformer) {
		t.progress = fn
	}
}

// NewTransformer creates a Transformer. By default it targets the "text"
// key and runs one call at a time.
func NewTransformer(opts ...Option) *Transformer {
	t := &Transformer{field: DefaultTextKey, concurrency: 1}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transform applies policy to every located leaf of doc. Replacements are
// written back in place; skipped and failed leaves are left unchanged. A
// failing leaf never stops the pass.
func (t *Transformer) Transform(ctx context.Context, doc document.Value, policy Policy) *Report {
	report := &Report{Document: doc}
	logger.Info("transform pass started", logger.String("field", t.field), logger.Int("concurrency", t.concurrency))

	if t.concurrency <= 1 {
		t.transformSequential(ctx, doc, policy, report)
	} else {
		t.transformConcurrent(ctx, doc, policy, report)
	}

	logger.Info("transform pass finished",
		logger.Int("leaves", report.Leaves),
		logger.Int("replaced", report.Replaced),
		logger.Int("skipped", report.Skipped),
		logger.Int("failed", report.Failed()))
	return report
}

func (t *Transformer) transformSequential(ctx context.Context, doc document.Value, policy Policy, report *Report) {
	for h := range Locate(doc, t.field) {
		text, _ := h.Value()
		t.record(report, h, report.Leaves, text, policy.Apply(ctx, text))
		report.Leaves++
		if t.progress != nil {
			t.progress(report.Leaves, 0, h.Path)
		}
	}
}

func (t *Transformer) transformConcurrent(ctx context.Context, doc document.Value, policy Policy, report *Report) {
	handles := Collect(doc, t.field)
	originals := make([]string, len(handles))
	results := make([]Result, len(handles))
	for i, h := range handles {
		originals[i], _ = h.Value()
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		done int
	)
	g.SetLimit(t.concurrency)
	for i := range handles {
		g.Go(func() error {
			results[i] = policy.Apply(ctx, originals[i])
			if t.progress != nil {
				mu.Lock()
				done++
				t.progress(done, len(handles), handles[i].Path)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, h := range handles {
		t.record(report, h, i, originals[i], results[i])
	}
	report.Leaves = len(handles)
}

func (t *Transformer) record(report *Report, h Handle, index int, original string, res Result) {
	switch res.Outcome {
	case Replaced:
		h.Set(res.Text)
		report.Replaced++
	case Skipped:
		report.Skipped++
		logger.Debug("leaf skipped", logger.String("path", h.Path))
	default:
		report.Errors = append(report.Errors, &LeafError{
			Index:    index,
			Path:     h.Path,
			Original: original,
			Err:      res.Err,
		})
		logger.Warn("leaf transform failed", logger.String("path", h.Path), logger.Err(res.Err))
	}
}
