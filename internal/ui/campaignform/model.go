package campaignform

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailmerge/internal/model"
	"github.com/nhle/mailmerge/internal/sheet"
	"github.com/nhle/mailmerge/internal/theme"
)

// SubmittedMsg is dispatched when the form is completed. Draft carries
// every campaign field; its Name and ID are those of the draft being
// edited, if any.
type SubmittedMsg struct {
	Draft model.Draft
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	path        string
	sheet       string
	emailColumn string
	nameColumn  string
	subject     string
	body        string
	bodyFormat  string
	attachments string
	delay       string
}

// Model is the Bubble Tea model for the campaign form.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	draft  model.Draft
	width  int
	height int
}

// New creates a new campaign form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{bodyFormat: model.BodyFormatText, delay: "0"},
		width:  width,
		height: height,
	}
}

// Start initializes the form from d. Empty template fields fall back to
// the configured defaults.
func (m *Model) Start(d model.Draft, defaults model.DefaultsConfig) tea.Cmd {
	m.draft = d

	if d.Subject == "" {
		d.Subject = defaults.Subject
	}
	if d.Body == "" {
		d.Body = defaults.Body
	}
	if d.SheetName == "" {
		d.SheetName = defaults.Sheet
	}
	if d.BodyFormat == "" {
		d.BodyFormat = defaults.BodyFormat
	}
	if d.DelaySec == 0 && d.ID == "" {
		d.DelaySec = defaults.DelaySec
	}

	m.fb.path = d.SpreadsheetPath
	m.fb.sheet = d.SheetName
	m.fb.emailColumn = d.EmailColumn
	m.fb.nameColumn = d.NameColumn
	m.fb.subject = d.Subject
	m.fb.body = d.Body
	m.fb.bodyFormat = d.BodyFormat
	m.fb.attachments = strings.Join(d.Attachments, "\n")
	m.fb.delay = strconv.FormatFloat(d.DelaySec, 'f', -1, 64)

	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.handleSubmit()
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "New Campaign"
	if m.draft.Name != "" {
		titleText = fmt.Sprintf("Edit Campaign (%s)", m.draft.Name)
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render(titleText) + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Spreadsheet").
				Description(".xlsx or .csv file with one recipient per row").
				Placeholder("~/contacts.xlsx").
				Value(&m.fb.path).
				Validate(validateSpreadsheet),
			huh.NewSelect[string]().
				Title("Sheet").
				OptionsFunc(m.sheetOptions, &m.fb.path).
				Value(&m.fb.sheet),
			huh.NewSelect[string]().
				Title("Email column").
				OptionsFunc(m.emailOptions, []*string{&m.fb.path, &m.fb.sheet}).
				Value(&m.fb.emailColumn).
				Validate(validateRequired("Email column")),
			huh.NewSelect[string]().
				Title("Name column").
				Description("Value used for {Name}").
				OptionsFunc(m.nameOptions, []*string{&m.fb.path, &m.fb.sheet}).
				Value(&m.fb.nameColumn),
		).Title("Recipients"),
		huh.NewGroup(
			huh.NewInput().
				Title("Subject").
				Placeholder("Hello {Name}").
				Value(&m.fb.subject),
			huh.NewText().
				Title("Body").
				Description("Use {Column} placeholders; {Name} and {Email} are always available").
				Lines(8).
				Value(&m.fb.body),
			huh.NewSelect[string]().
				Title("Body format").
				Options(
					huh.NewOption("Plain text", model.BodyFormatText),
					huh.NewOption("Markdown (adds an HTML part)", model.BodyFormatMarkdown),
				).
				Value(&m.fb.bodyFormat),
		).Title("Message"),
		huh.NewGroup(
			huh.NewText().
				Title("Attachments").
				Description("One file path per line; missing files are skipped when sending").
				Lines(4).
				Value(&m.fb.attachments),
			huh.NewInput().
				Title("Delay").
				Description("Seconds to wait between messages").
				Placeholder("0.1").
				Value(&m.fb.delay).
				Validate(validateDelay),
		).Title("Sending"),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m *Model) sheetOptions() []huh.Option[string] {
	names, err := sheet.Sheets(expandHome(m.fb.path))
	if err != nil || len(names) == 0 {
		return []huh.Option[string]{huh.NewOption("(first sheet)", "")}
	}
	if len(names) == 1 && names[0] == "" {
		return []huh.Option[string]{huh.NewOption("(csv)", "")}
	}
	return huh.NewOptions(names...)
}

func (m *Model) headers() []string {
	headers, err := sheet.Headers(expandHome(m.fb.path), m.fb.sheet)
	if err != nil {
		return nil
	}
	return headers
}

// emailOptions lists the sheet's headers with the detected email column
// first, so it is preselected for a new campaign.
func (m *Model) emailOptions() []huh.Option[string] {
	headers := m.headers()
	email, _ := sheet.DetectColumns(headers)
	return huh.NewOptions(detectedFirst(headers, email)...)
}

func (m *Model) nameOptions() []huh.Option[string] {
	headers := m.headers()
	_, name := sheet.DetectColumns(headers)
	opts := huh.NewOptions(detectedFirst(headers, name)...)
	return append(opts, huh.NewOption("(none)", ""))
}

func detectedFirst(headers []string, detected string) []string {
	out := make([]string, 0, len(headers))
	if detected != "" {
		out = append(out, detected)
	}
	for _, h := range headers {
		if h != detected {
			out = append(out, h)
		}
	}
	return out
}

func (m Model) handleSubmit() tea.Cmd {
	d := m.draft
	d.SpreadsheetPath = expandHome(strings.TrimSpace(m.fb.path))
	d.SheetName = m.fb.sheet
	d.EmailColumn = m.fb.emailColumn
	d.NameColumn = m.fb.nameColumn
	d.Subject = m.fb.subject
	d.Body = m.fb.body
	d.BodyFormat = m.fb.bodyFormat
	d.Attachments = nil
	for _, p := range model.SplitPaths(m.fb.attachments) {
		d.Attachments = append(d.Attachments, expandHome(p))
	}
	d.DelaySec, _ = strconv.ParseFloat(strings.TrimSpace(m.fb.delay), 64)

	return func() tea.Msg { return SubmittedMsg{Draft: d} }
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateSpreadsheet(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("spreadsheet is required")
	}
	path := expandHome(s)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot open %s", s)
	}
	if _, err := sheet.Sheets(path); err != nil {
		return err
	}
	return nil
}

func validateDelay(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("delay must be a number of seconds")
	}
	if v < 0 {
		return fmt.Errorf("delay must not be negative")
	}
	return nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + p[1:]
		}
	}
	return p
}
