package corpus

import (
	"context"
	"fmt"
	"strings"

	"story-localizer/internal/types"
)

// Outcome is the per-leaf decision taken by a Policy
type Outcome int

const (
	// Replaced means Result.Text holds the new leaf value
	Replaced Outcome = iota
	// Skipped means the leaf is in the skip set and was not sent anywhere
	Skipped
	// Failed means the provider call failed; Result.Text holds the original
	Failed
)

// String returns the outcome name
func (o Outcome) String() string {
	switch o {
	case Replaced:
		return "replaced"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of applying a Policy to one leaf
type Result struct {
	Outcome Outcome
	Text    string
	Err     error
}

// Policy decides what happens to a single text leaf
type Policy interface {
	Apply(ctx context.Context, text string) Result
}

// TransformFunc is an external transformation such as a translation or a
// polishing call.
type TransformFunc func(ctx context.Context, text string) (string, error)

// SkipSet holds literal texts that must never be transformed. It is
// read-only after construction and safe for concurrent use.
type SkipSet struct {
	values map[string]struct{}
}

// NewSkipSet builds a skip set from values. Values are stored trimmed.
func NewSkipSet(values ...string) SkipSet {
	s := SkipSet{values: make(map[string]struct{}, len(values))}
	for _, v := range values {
		s.values[strings.TrimSpace(v)] = struct{}{}
	}
	return s
}

// Contains reports whether the trimmed text is in the set.
func (s SkipSet) Contains(text string) bool {
	_, ok := s.values[strings.TrimSpace(text)]
	return ok
}

// Len returns the number of entries
func (s SkipSet) Len() int {
	return len(s.values)
}

// FuncPolicy is the standard Policy: skip-set short circuit, then one call
// to the configured TransformFunc.
type FuncPolicy struct {
	name string
	skip SkipSet
	fn   TransformFunc
}

// NewPolicy creates a policy named name (used in error messages) that
// skips texts in skip and sends everything else through fn.
func NewPolicy(name string, skip SkipSet, fn TransformFunc) *FuncPolicy {
	return &FuncPolicy{name: name, skip: skip, fn: fn}
}

// Name returns the policy name
func (p *FuncPolicy) Name() string {
	return p.name
}

// Apply implements Policy. Provider errors and panics are captured in the
// Result and never escape.
func (p *FuncPolicy) Apply(ctx context.Context, text string) (res Result) {
	if p.skip.Contains(text) {
		return Result{Outcome: Skipped, Text: text}
	}

	defer func() {
		if r := recover(); r != nil {
			res = p.failed(text, fmt.Errorf("provider panic: %v", r))
		}
	}()

	out, err := p.fn(ctx, text)
	if err != nil {
		return p.failed(text, err)
	}
	return Result{Outcome: Replaced, Text: out}
}

func (p *FuncPolicy) failed(text string, cause error) Result {
	return Result{
		Outcome: Failed,
		Text:    text,
		Err:     types.NewAppError(types.ErrTransform, p.name+" failed", cause),
	}
}
