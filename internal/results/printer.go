package results

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"story-localizer/internal/corpus"
	"story-localizer/internal/document"
	ledger "story-localizer/internal/errors"
	"story-localizer/internal/story"
	"story-localizer/internal/types"
)

// Printer renders pass reports for the console. Styling is dropped when w
// is not a terminal.
type Printer struct {
	w     io.Writer
	ok    lipgloss.Style
	warn  lipgloss.Style
	bad   lipgloss.Style
	dim   lipgloss.Style
	title lipgloss.Style
}

// NewPrinter creates a Printer writing to w
func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:     w,
		ok:    r.NewStyle().Foreground(lipgloss.Color("#4CAF50")),
		warn:  r.NewStyle().Foreground(lipgloss.Color("#FFB020")),
		bad:   r.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
		dim:   r.NewStyle().Foreground(lipgloss.Color("#888888")).Italic(true),
		title: r.NewStyle().Bold(true),
	}
}

func (p *Printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *Printer) item(text string) {
	p.line("  - %s", text)
}

// Dedup prints the ids removed from one document
func (p *Printer) Dedup(path string, res *story.DedupResult) {
	if len(res.RemovedIDs) == 0 {
		p.line("%s - %s", path, p.ok.Render("No duplicates found."))
		return
	}
	p.line("%s - %s", path, p.warn.Render(fmt.Sprintf("Removed %d duplicate ID(s):", len(res.RemovedIDs))))
	for _, id := range res.RemovedIDs {
		p.item(document.Display(id))
	}
}

// Audit prints the over-length pages of one document
func (p *Printer) Audit(path string, limit int, findings []story.Finding) {
	if len(findings) == 0 {
		p.line("%s - %s", path, p.ok.Render(fmt.Sprintf("All text entries are within %d characters.", limit)))
		return
	}
	p.line("%s - %s", path, p.warn.Render(fmt.Sprintf("%d over-length entries found:", len(findings))))
	for _, f := range findings {
		p.item(fmt.Sprintf("ID: %s (%d characters)", document.Display(f.ID), f.Length))
	}
}

// Transform prints the leaf counts of a translate or polish pass and the
// leaves that kept their original text.
func (p *Printer) Transform(path string, pass types.Pass, rep *corpus.Report) {
	summary := fmt.Sprintf("%s: %d leaves, %d replaced, %d skipped, %d failed",
		pass, rep.Leaves, rep.Replaced, rep.Skipped, rep.Failed())
	style := p.ok
	if rep.Failed() > 0 {
		style = p.warn
	}
	p.line("%s - %s", path, style.Render(summary))
	for _, leafErr := range rep.Errors {
		p.item(fmt.Sprintf("%s: %s", leafErr.Path, p.dim.Render(leafErr.Err.Error())))
	}
}

// Validation prints the issues found in one document
func (p *Printer) Validation(path string, rep *story.ValidationReport) {
	if rep.OK() {
		p.line("%s - %s", path, p.ok.Render(fmt.Sprintf("%d pages passed %d checks.", rep.Pages, len(rep.Rules))))
		return
	}
	p.line("%s - %s", path, p.warn.Render(fmt.Sprintf("%d issue(s):", len(rep.Issues))))
	for _, issue := range rep.Issues {
		p.item(fmt.Sprintf("[%s] %s: %s", issue.Rule, document.Display(issue.PageID), issue.Detail))
	}
}

// Keys prints the key paths one document lacks or adds relative to a base
func (p *Printer) Keys(path string, missing, extra []string) {
	if len(missing) == 0 && len(extra) == 0 {
		p.line("%s - %s", path, p.ok.Render("Same shape as the base document."))
		return
	}
	p.line("%s - %s", path, p.warn.Render(fmt.Sprintf("%d missing, %d extra key path(s):", len(missing), len(extra))))
	for _, k := range missing {
		p.item("missing " + k)
	}
	for _, k := range extra {
		p.item("extra " + k)
	}
}

// Failure prints a document-level error
func (p *Printer) Failure(path string, err error) {
	p.line("%s - %s", path, p.bad.Render("Error: "+err.Error()))
}

// Failures prints the ledger records left by a run
func (p *Printer) Failures(records []*ledger.ErrorRecord) {
	if len(records) == 0 {
		return
	}
	p.line("")
	p.line("%s", p.title.Render("Failed documents"))
	for _, r := range records {
		p.item(fmt.Sprintf("%s [%s] %s", r.ID, ledger.GetStageDisplayName(r.Stage), r.ErrorMsg))
	}
}

// Summary prints the closing line of a run
func (p *Printer) Summary(m *Manifest) {
	parts := []string{fmt.Sprintf("%d ok", m.Count(StatusOK))}
	if n := m.Count(StatusPartial); n > 0 {
		parts = append(parts, fmt.Sprintf("%d partial", n))
	}
	if n := m.Count(StatusFindings); n > 0 {
		parts = append(parts, fmt.Sprintf("%d with findings", n))
	}
	failed := m.Count(StatusFailed)
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", failed))
	}

	text := fmt.Sprintf("Done. %d document(s): %s", len(m.Documents), strings.Join(parts, ", "))
	style := p.ok
	if failed > 0 {
		style = p.bad
	}
	p.line("")
	p.line("%s", style.Render(text))
}

// Runs prints stored run manifests, one per line
func (p *Printer) Runs(runs []*Manifest) {
	if len(runs) == 0 {
		p.line("%s", p.dim.Render("No runs recorded."))
		return
	}
	for _, m := range runs {
		p.line("%s  %-9s %s  %d document(s), %d failed",
			m.StartedAt.Format("2006-01-02 15:04"), m.Pass, m.RunID, len(m.Documents), m.Count(StatusFailed))
	}
}
