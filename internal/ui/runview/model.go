package runview

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailmerge/internal/campaign"
	"github.com/nhle/mailmerge/internal/merge"
	"github.com/nhle/mailmerge/internal/model"
	"github.com/nhle/mailmerge/internal/sheet"
	"github.com/nhle/mailmerge/internal/theme"
)

// PreviewRows is the number of spreadsheet rows shown in the preview.
const PreviewRows = 10

// maxLogLines caps the log kept in the viewport.
const maxLogLines = 1000

// State is the phase the run view is in.
type State int

const (
	StateIdle State = iota
	StatePreview
	StateRunning
	StateFinished
)

// Model shows the recipient preview, the progress bar and the run log.
type Model struct {
	state    State
	progress progress.Model
	log      viewport.Model
	preview  table.Model
	lines    []string
	warnings []string
	dryRun   bool
	done     int
	total    int
	result   *campaign.RunResult
	err      error
	width    int
	height   int
}

// New creates an empty run view.
func New(width, height int) Model {
	m := Model{
		progress: progress.New(progress.WithDefaultGradient()),
		log:      viewport.New(width, height),
		preview: table.New(
			table.WithFocused(false),
			table.WithHeight(PreviewRows+1),
		),
	}
	m.SetSize(width, height)
	return m
}

// State returns the current phase.
func (m Model) State() State {
	return m.state
}

// SetPreview fills the preview table with the first rows of tbl as they
// would be addressed and titled under cfg.
func (m *Model) SetPreview(tbl *sheet.Table, cfg model.RunConfig) {
	m.state = StatePreview
	m.warnings = previewWarnings(tbl, cfg)

	colWidth := (m.width - 12) / 3
	if colWidth < 12 {
		colWidth = 12
	}
	m.preview.SetColumns([]table.Column{
		{Title: "Row", Width: 5},
		{Title: "Email", Width: colWidth},
		{Title: "Name", Width: colWidth},
		{Title: "Subject", Width: colWidth},
	})

	var rows []table.Row
	for i, r := range tbl.Rows {
		if i >= PreviewRows {
			break
		}
		email := strings.TrimSpace(r[cfg.EmailColumn])
		fields := merge.Fields(r, email, cfg.NameColumn)
		subject := merge.Render(cfg.SubjectTemplate, fields)
		if email == "" {
			email = "(skipped)"
		}
		rows = append(rows, table.Row{
			fmt.Sprint(i + 1), email, fields[merge.FieldName], subject,
		})
	}
	m.preview.SetRows(rows)
}

// previewWarnings reports template problems that would otherwise only show
// up in the sent mail.
func previewWarnings(tbl *sheet.Table, cfg model.RunConfig) []string {
	var out []string
	if tbl.Len() == 0 {
		out = append(out, "The sheet has no data rows.")
	}
	if !tbl.HasColumn(cfg.EmailColumn) {
		out = append(out, fmt.Sprintf("Column %q not found; every row would be skipped.", cfg.EmailColumn))
	}

	known := map[string]bool{merge.FieldName: true, merge.FieldEmail: true}
	for _, h := range tbl.Headers {
		known[h] = true
	}
	for _, t := range []struct{ label, tmpl string }{
		{"Subject", cfg.SubjectTemplate},
		{"Body", cfg.BodyTemplate},
	} {
		if !merge.Valid(t.tmpl) {
			out = append(out, fmt.Sprintf("%s has unbalanced braces and will be sent as typed.", t.label))
			continue
		}
		var unknown []string
		for _, p := range merge.Placeholders(t.tmpl) {
			if !known[p] {
				unknown = append(unknown, "{"+p+"}")
			}
		}
		if len(unknown) > 0 {
			out = append(out, fmt.Sprintf("%s uses %s, which no column provides; rendered empty.",
				t.label, strings.Join(unknown, ", ")))
		}
	}
	return out
}

// Start resets the view for a new run.
func (m *Model) Start(dryRun bool) tea.Cmd {
	m.state = StateRunning
	m.dryRun = dryRun
	m.done, m.total = 0, 0
	m.result, m.err = nil, nil
	m.lines = nil
	m.log.SetContent("")
	return m.progress.SetPercent(0)
}

// SetProgress records done of total rows.
func (m *Model) SetProgress(done, total int) tea.Cmd {
	m.done, m.total = done, total
	if total <= 0 {
		return m.progress.SetPercent(0)
	}
	return m.progress.SetPercent(float64(done) / float64(total))
}

// AppendLog adds a line to the log viewport and keeps it scrolled to the
// bottom.
func (m *Model) AppendLog(e campaign.LogEntry) {
	m.lines = append(m.lines, theme.LevelStyle(e.Level).Render(e.String()))
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}
	m.log.SetContent(strings.Join(m.lines, "\n"))
	m.log.GotoBottom()
}

// Finish records the outcome of the run.
func (m *Model) Finish(res *campaign.RunResult, err error) {
	m.state = StateFinished
	m.result = res
	m.err = err
}

// Update forwards animation frames and scroll keys.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		if p, ok := pm.(progress.Model); ok {
			m.progress = p
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.log, cmd = m.log.Update(msg)
	return m, cmd
}

// View renders the preview or the running/finished run.
func (m Model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)

	switch m.state {
	case StateIdle:
		return lipgloss.NewStyle().Padding(1, 2).Render(
			theme.HelpStyle.Render("Press e to set up a campaign, o to open a saved draft."),
		)

	case StatePreview:
		var b strings.Builder
		b.WriteString(title.Render(fmt.Sprintf("Preview (first %d rows)", PreviewRows)))
		b.WriteString("\n\n")
		b.WriteString(m.preview.View())
		for _, w := range m.warnings {
			b.WriteString("\n")
			b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorYellow).Render("! " + w))
		}
		b.WriteString("\n\n")
		b.WriteString(theme.HelpStyle.Render("d dry run | s send | e edit"))
		return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
	}

	var b strings.Builder
	b.WriteString(theme.ModeStyle(m.dryRun).Render(modeLabel(m.dryRun)))
	b.WriteString(" ")
	b.WriteString(title.Render(fmt.Sprintf("%d/%d", m.done, m.total)))
	b.WriteString("\n")
	b.WriteString(m.progress.View())
	b.WriteString("\n")
	if m.state == StateFinished {
		b.WriteString(m.summary())
		b.WriteString("\n")
	}
	b.WriteString(theme.BorderStyle.Render(m.log.View()))

	return lipgloss.NewStyle().Padding(0, 1).Render(b.String())
}

func (m Model) summary() string {
	if m.result == nil {
		if m.err != nil {
			return theme.ErrorStyle.Render(m.err.Error())
		}
		return ""
	}

	r := m.result
	parts := []string{
		theme.OutcomeStyle(string(campaign.OutcomeSent)).Render(fmt.Sprintf("%d sent", r.Sent)),
		theme.OutcomeStyle(string(campaign.OutcomeDryRun)).Render(fmt.Sprintf("%d dry-run", r.Count(campaign.OutcomeDryRun))),
		theme.OutcomeStyle(string(campaign.OutcomeSkipped)).Render(fmt.Sprintf("%d skipped", r.Count(campaign.OutcomeSkipped))),
		theme.OutcomeStyle(string(campaign.OutcomeError)).Render(fmt.Sprintf("%d failed", r.Count(campaign.OutcomeError))),
	}
	line := strings.Join(parts, "  ") + theme.HelpStyle.Render(fmt.Sprintf("  in %s", r.Duration.Round(10*time.Millisecond)))
	if r.Cancelled {
		line += "  " + theme.ErrorStyle.Render("cancelled")
	} else if m.err != nil {
		line += "  " + theme.ErrorStyle.Render(m.err.Error())
	}
	return line
}

func modeLabel(dryRun bool) string {
	if dryRun {
		return "DRY RUN"
	}
	return "SENDING"
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height

	m.progress.Width = width - 4
	if m.progress.Width < 10 {
		m.progress.Width = 10
	}

	// Header, progress bar, summary and the log border.
	logHeight := height - 7
	if logHeight < 3 {
		logHeight = 3
	}
	m.log.Width = width - 4
	m.log.Height = logHeight
}
