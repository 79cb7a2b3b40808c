package story

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"story-localizer/internal/document"
	"story-localizer/internal/logger"
)

// Rule names a validation check
type Rule string

const (
	RuleBrokenLink     Rule = "broken-link"
	RuleSelfLink       Rule = "self-link"
	RuleDuplicateID    Rule = "duplicate-id"
	RuleDuplicateText  Rule = "duplicate-text"
	RuleLowercaseStart Rule = "lowercase-start"
	RuleTooLong        Rule = "too-long"
)

// AllRules returns every rule in reporting order.
func AllRules() []Rule {
	return []Rule{RuleBrokenLink, RuleSelfLink, RuleDuplicateID, RuleDuplicateText, RuleLowercaseStart, RuleTooLong}
}

// ParseRule resolves a rule by name.
func ParseRule(name string) (Rule, bool) {
	for _, r := range AllRules() {
		if string(r) == strings.TrimSpace(name) {
			return r, true
		}
	}
	return "", false
}

// DefaultExemptIDs are pages that legitimately repeat text or open in lower case.
var DefaultExemptIDs = []string{"DedicationView", "Silver_Ending", "Gold_Ending"}

// openers may start a page in place of an upper-case letter.
const openers = "„\"«¡.¿“'‚‹"

// Rules configures a validation run
type Rules struct {
	// Enabled lists the checks to run; empty runs all of them
	Enabled []Rule
	// ExemptIDs are skipped by duplicate-text and lowercase-start
	ExemptIDs []string
	// CharLimit is the too-long threshold; zero uses DefaultCharLimit
	CharLimit int
	// Caseless disables lowercase-start, for scripts without letter case
	Caseless bool
}

// Issue is one validation finding
type Issue struct {
	Rule   Rule           `json:"rule"`
	PageID document.Value `json:"pageId"`
	Detail string         `json:"detail"`
}

// ValidationReport collects the issues of one document
type ValidationReport struct {
	Pages  int
	Rules  []Rule
	Issues []Issue
}

// OK reports whether no issue was found.
func (r *ValidationReport) OK() bool {
	return len(r.Issues) == 0
}

// Count returns the number of issues raised by rule.
func (r *ValidationReport) Count(rule Rule) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Rule == rule {
			n++
		}
	}
	return n
}

// Validate runs the enabled checks over the page sequence. Issues are
// grouped by rule in the order of AllRules, then by page order. The
// document is not modified.
func Validate(doc document.Value, rules Rules, opts Options) (*ValidationReport, error) {
	opts = opts.withDefaults()
	_, seq, err := Pages(doc, opts)
	if err != nil {
		return nil, err
	}

	enabled := make(map[Rule]bool)
	for _, r := range rules.Enabled {
		enabled[r] = true
	}
	exempt := make(map[string]bool, len(rules.ExemptIDs))
	for _, id := range rules.ExemptIDs {
		exempt[idKey(document.String(id))] = true
	}
	limit := rules.CharLimit
	if limit <= 0 {
		limit = DefaultCharLimit
	}

	v := &validation{seq: seq, opts: opts, exempt: exempt}
	report := &ValidationReport{Pages: seq.Len()}
	for _, rule := range AllRules() {
		if len(enabled) > 0 && !enabled[rule] {
			continue
		}
		if rule == RuleLowercaseStart && rules.Caseless {
			continue
		}
		report.Rules = append(report.Rules, rule)

		switch rule {
		case RuleBrokenLink:
			report.Issues = append(report.Issues, v.brokenLinks()...)
		case RuleSelfLink:
			report.Issues = append(report.Issues, v.selfLinks()...)
		case RuleDuplicateID:
			report.Issues = append(report.Issues, v.duplicateIDs()...)
		case RuleDuplicateText:
			report.Issues = append(report.Issues, v.duplicateTexts()...)
		case RuleLowercaseStart:
			report.Issues = append(report.Issues, v.lowercaseStarts()...)
		case RuleTooLong:
			for _, f := range overLimit(seq, limit, opts) {
				report.Issues = append(report.Issues, Issue{
					Rule:   RuleTooLong,
					PageID: f.ID,
					Detail: fmt.Sprintf("%d characters, limit %d", f.Length, limit),
				})
			}
		}
	}

	logger.Info("validation finished",
		logger.Int("pages", report.Pages),
		logger.Int("rules", len(report.Rules)),
		logger.Int("issues", len(report.Issues)))
	return report, nil
}

type validation struct {
	seq    *document.Sequence
	opts   Options
	exempt map[string]bool
}

func (v *validation) pages() []*document.Mapping {
	pages := make([]*document.Mapping, len(v.seq.Items))
	for i, item := range v.seq.Items {
		pages[i] = item.(*document.Mapping)
	}
	return pages
}

// choices yields each mapping under the page's "choices" sequence.
func (v *validation) choices(page *document.Mapping) []*document.Mapping {
	raw, ok := page.Get("choices")
	if !ok {
		return nil
	}
	seq, ok := raw.(*document.Sequence)
	if !ok {
		return nil
	}
	var out []*document.Mapping
	for _, item := range seq.Items {
		if m, ok := item.(*document.Mapping); ok {
			out = append(out, m)
		}
	}
	return out
}

func nextID(choice *document.Mapping) document.Value {
	v, ok := choice.Get("nextId")
	if !ok {
		return nil
	}
	if _, isNull := v.(document.Null); isNull {
		return nil
	}
	return v
}

func (v *validation) brokenLinks() []Issue {
	pages := v.pages()
	ids := make(map[string]bool, len(pages))
	for _, page := range pages {
		ids[idKey(pageID(page, v.opts))] = true
	}

	var issues []Issue
	for _, page := range pages {
		for i, choice := range v.choices(page) {
			next := nextID(choice)
			if next != nil && ids[idKey(next)] {
				continue
			}
			detail := fmt.Sprintf("choice %d points to missing page %s", i, document.Display(next))
			if next == nil {
				detail = fmt.Sprintf("choice %d has no nextId", i)
			}
			issues = append(issues, Issue{Rule: RuleBrokenLink, PageID: pageID(page, v.opts), Detail: detail})
		}
	}
	return issues
}

func (v *validation) selfLinks() []Issue {
	var issues []Issue
	for _, page := range v.pages() {
		id := pageID(page, v.opts)
		if id == nil {
			continue
		}
		for i, choice := range v.choices(page) {
			if next := nextID(choice); next != nil && idKey(next) == idKey(id) {
				issues = append(issues, Issue{
					Rule:   RuleSelfLink,
					PageID: id,
					Detail: fmt.Sprintf("choice %d links back to its own page", i),
				})
			}
		}
	}
	return issues
}

func (v *validation) duplicateIDs() []Issue {
	counts := make(map[string]int)
	var order []document.Value
	for _, page := range v.pages() {
		id := pageID(page, v.opts)
		key := idKey(id)
		if counts[key] == 0 {
			order = append(order, id)
		}
		counts[key]++
	}

	var issues []Issue
	for _, id := range order {
		if n := counts[idKey(id)]; n > 1 {
			issues = append(issues, Issue{Rule: RuleDuplicateID, PageID: id, Detail: fmt.Sprintf("id used by %d pages", n)})
		}
	}
	return issues
}

func (v *validation) duplicateTexts() []Issue {
	groups := make(map[string][]document.Value)
	var order []string
	for _, page := range v.pages() {
		id := pageID(page, v.opts)
		if v.exempt[idKey(id)] {
			continue
		}
		text := strings.TrimSpace(pageText(page, v.opts))
		if _, seen := groups[text]; !seen {
			order = append(order, text)
		}
		groups[text] = append(groups[text], id)
	}

	var issues []Issue
	for _, text := range order {
		ids := groups[text]
		if len(ids) < 2 {
			continue
		}
		names := make([]string, len(ids))
		for i, id := range ids {
			names[i] = document.Display(id)
		}
		issues = append(issues, Issue{
			Rule:   RuleDuplicateText,
			PageID: ids[0],
			Detail: fmt.Sprintf("%q shared by pages %s", preview(text, 60), strings.Join(names, ", ")),
		})
	}
	return issues
}

func (v *validation) lowercaseStarts() []Issue {
	var issues []Issue
	for _, page := range v.pages() {
		id := pageID(page, v.opts)
		if v.exempt[idKey(id)] {
			continue
		}
		text := strings.TrimSpace(pageText(page, v.opts))
		if StartsCapitalized(text) {
			continue
		}
		issues = append(issues, Issue{Rule: RuleLowercaseStart, PageID: id, Detail: fmt.Sprintf("%q", preview(text, 60))})
	}
	return issues
}

// StartsCapitalized reports whether text opens with an upper-case letter
// or with an opening quote or punctuation mark.
func StartsCapitalized(text string) bool {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(text))
	if r == utf8.RuneError {
		return false
	}
	return unicode.IsUpper(r) || unicode.IsTitle(r) || strings.ContainsRune(openers, r)
}

func preview(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n]) + "..."
}
