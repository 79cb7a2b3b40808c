package corpus

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/pretty"
	"go.uber.org/goleak"

	"story-localizer/internal/document"
	"story-localizer/internal/types"
)

const storyDoc = `{
	"covarnius": {
		"meta": {"title": "Covarnius", "chapters": [{"id": "c1", "text": "Chapter One"}]},
		"story": [
			{"id": "Start", "text": "The ship drifts.", "image": "covarnius_1.png",
			 "choices": [{"text": "Continue", "nextId": "P2"}]},
			{"id": "P2", "text": "A light flickers.", "choices": [{"text": "Open the hatch", "nextId": "P3"}]},
			{"id": "P3", "text": "  Continue  ", "score": 1.50}
		]
	}
}`

func upper(ctx context.Context, text string) (string, error) {
	return strings.ToUpper(text), nil
}

func marshal(t *testing.T, v document.Value) string {
	t.Helper()
	out, err := document.Marshal(v)
	require.NoError(t, err)
	return string(out)
}

func TestTransform_ReplacesEveryTextLeaf(t *testing.T) {
	doc := document.MustParse(storyDoc)

	report := NewTransformer().Transform(context.Background(), doc, NewPolicy("upper", NewSkipSet(), upper))

	assert.Same(t, doc, report.Document)
	assert.Equal(t, 6, report.Leaves)
	assert.Equal(t, 6, report.Replaced)
	assert.Equal(t, 0, report.Skipped)
	assert.Empty(t, report.Errors)

	want := document.MustParse(strings.NewReplacer(
		`"Chapter One"`, `"CHAPTER ONE"`,
		`"The ship drifts."`, `"THE SHIP DRIFTS."`,
		`"Continue"`, `"CONTINUE"`,
		`"A light flickers."`, `"A LIGHT FLICKERS."`,
		`"Open the hatch"`, `"OPEN THE HATCH"`,
		`"  Continue  "`, `"  CONTINUE  "`,
	).Replace(storyDoc))
	assert.Equal(t, marshal(t, want), marshal(t, doc))
}

func TestTransform_SkippedLeavesAreByteIdentical(t *testing.T) {
	doc := document.MustParse(`{"story": [{"id": 1, "text": "Continue"}, {"id": 2, "text": " 次へ\n"}]}`)
	before := marshal(t, doc)

	calls := 0
	policy := NewPolicy("translate", NewSkipSet("Continue", "次へ"), func(ctx context.Context, text string) (string, error) {
		calls++
		return "changed", nil
	})
	report := NewTransformer().Transform(context.Background(), doc, policy)

	assert.Equal(t, before, marshal(t, doc))
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 0, calls)
}

func TestTransform_PreservesStructure(t *testing.T) {
	doc := document.MustParse(storyDoc)
	before := document.KeyPaths(doc)
	original := document.Clone(doc)

	NewTransformer().Transform(context.Background(), doc, NewPolicy("upper", NewSkipSet("Continue"), upper))

	assert.Equal(t, before, document.KeyPaths(doc))

	// Only string leaves under "text" may differ.
	missing, extra := document.CompareShapes(original, doc)
	assert.Empty(t, missing)
	assert.Empty(t, extra)
	for _, h := range Collect(original, DefaultTextKey) {
		h.Set("")
	}
	for _, h := range Collect(doc, DefaultTextKey) {
		h.Set("")
	}
	assert.True(t, document.Equal(original, doc))
}

func TestTransform_PartialFailureIsIsolated(t *testing.T) {
	doc := document.MustParse(`[{"text": "one"}, {"text": "two"}, {"text": "three"}]`)
	providerErr := errors.New("503 service unavailable")

	policy := NewPolicy("translate", NewSkipSet(), func(ctx context.Context, text string) (string, error) {
		if text == "two" {
			return "", providerErr
		}
		return "<" + text + ">", nil
	})
	report := NewTransformer().Transform(context.Background(), doc, policy)

	assert.Equal(t, `[{"text":"<one>"},{"text":"two"},{"text":"<three>"}]`, compact(t, doc))
	assert.Equal(t, 2, report.Replaced)
	require.Len(t, report.Errors, 1)

	leafErr := report.Errors[0]
	assert.Equal(t, 1, leafErr.Index)
	assert.Equal(t, "[1].text", leafErr.Path)
	assert.Equal(t, "two", leafErr.Original)
	assert.ErrorIs(t, leafErr, providerErr)
	assert.True(t, types.IsCode(leafErr, types.ErrTransform))
}

func TestTransform_RerunOnOutputWithSkipIsStable(t *testing.T) {
	doc := document.MustParse(`{"story": [{"text": "Continue"}, {"text": "done"}]}`)
	identity := NewPolicy("identity", NewSkipSet("Continue"), func(ctx context.Context, text string) (string, error) {
		return text, nil
	})

	NewTransformer().Transform(context.Background(), doc, identity)
	first := marshal(t, doc)
	NewTransformer().Transform(context.Background(), doc, identity)

	assert.Equal(t, first, marshal(t, doc))
}

func TestTransform_CustomField(t *testing.T) {
	doc := document.MustParse(`{"text": "keep", "label": "change"}`)

	report := NewTransformer(WithField("label")).Transform(context.Background(), doc, NewPolicy("upper", NewSkipSet(), upper))

	assert.Equal(t, 1, report.Leaves)
	assert.Equal(t, `{"text":"keep","label":"CHANGE"}`, compact(t, doc))
}

func TestTransform_ConcurrentMatchesSequential(t *testing.T) {
	defer goleak.VerifyNone(t)

	var inFlight, peak int32
	slowUpper := func(ctx context.Context, text string) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		defer atomic.AddInt32(&inFlight, -1)
		if strings.Contains(text, "light") {
			return "", errors.New("boom")
		}
		return strings.ToUpper(text), nil
	}

	sequential := document.MustParse(storyDoc)
	concurrent := document.MustParse(storyDoc)

	seqReport := NewTransformer().Transform(context.Background(), sequential, NewPolicy("upper", NewSkipSet("Continue"), slowUpper))

	var mu sync.Mutex
	var progress []int
	conReport := NewTransformer(WithConcurrency(3), WithProgress(func(done, total int, path string) {
		mu.Lock()
		defer mu.Unlock()
		progress = append(progress, done)
		assert.Equal(t, 6, total)
	})).Transform(context.Background(), concurrent, NewPolicy("upper", NewSkipSet("Continue"), slowUpper))

	assert.Equal(t, marshal(t, sequential), marshal(t, concurrent))
	assert.Equal(t, seqReport.Replaced, conReport.Replaced)
	assert.Equal(t, seqReport.Skipped, conReport.Skipped)
	require.Len(t, conReport.Errors, 1)
	assert.Equal(t, seqReport.Errors[0].Path, conReport.Errors[0].Path)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, progress)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestTransform_SequentialProgress(t *testing.T) {
	doc := document.MustParse(`[{"text": "a"}, {"text": "b"}]`)

	var seen []string
	NewTransformer(WithProgress(func(done, total int, path string) {
		seen = append(seen, path)
		assert.Equal(t, 0, total)
	})).Transform(context.Background(), doc, NewPolicy("upper", NewSkipSet(), upper))

	assert.Equal(t, []string{"[0].text", "[1].text"}, seen)
}

func compact(t *testing.T, v document.Value) string {
	t.Helper()
	return string(pretty.Ugly([]byte(marshal(t, v))))
}
