package drafts

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailmerge/internal/keys"
	"github.com/nhle/mailmerge/internal/model"
	"github.com/nhle/mailmerge/internal/store"
	"github.com/nhle/mailmerge/internal/theme"
)

// CloseMsg signals the parent to close the drafts view.
type CloseMsg struct{}

// SelectedMsg carries the draft chosen for loading.
type SelectedMsg struct {
	Draft model.Draft
}

// SavedMsg reports a draft written by Save.
type SavedMsg struct {
	Draft *model.Draft
	Err   error
}

type draftMode int

const (
	modeList draftMode = iota
	modeName
	modeConfirmDelete
)

type formBindings struct {
	name    string
	confirm bool
}

type draftsLoadedMsg struct {
	drafts []model.Draft
	err    error
}

type draftDeletedMsg struct{ err error }

// Model is the Bubble Tea model for saved drafts.
type Model struct {
	mode        draftMode
	store       store.Store
	keys        *keys.KeyMap
	drafts      []model.Draft
	selectedIdx int
	pending     model.Draft
	form        *huh.Form
	confirmForm *huh.Form
	fb          *formBindings
	statusMsg   string
	width       int
	height      int
}

// New creates a new drafts model.
func New(s store.Store, k *keys.KeyMap, width, height int) Model {
	return Model{
		mode:  modeList,
		store: s,
		keys:  k,
		fb:    &formBindings{},
		width: width, height: height,
	}
}

// Init loads drafts from the store.
func (m Model) Init() tea.Cmd {
	return m.loadDrafts()
}

// StartSave asks for a name and saves d under it. An existing draft name
// is offered as the default.
func (m *Model) StartSave(d model.Draft) tea.Cmd {
	m.pending = d
	m.fb.name = d.Name
	m.form = m.buildNameForm()
	m.mode = modeName
	return m.form.Init()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case draftsLoadedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error loading drafts: %v", msg.err)
			return m, nil
		}
		m.drafts = msg.drafts
		if m.selectedIdx >= len(m.drafts) && m.selectedIdx > 0 {
			m.selectedIdx = len(m.drafts) - 1
		}
		return m, nil

	case draftDeletedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error: %v", msg.err)
		} else {
			m.statusMsg = "Draft deleted"
		}
		m.mode = modeList
		return m, m.loadDrafts()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateActiveForm(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.mode {
	case modeList:
		return m.handleListKey(msg)
	case modeName:
		return m.updateForm(msg)
	case modeConfirmDelete:
		return m.updateConfirm(msg)
	}
	return m, nil
}

func (m Model) handleListKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return CloseMsg{} }

	case key.Matches(msg, m.keys.Down):
		if len(m.drafts) > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % len(m.drafts)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if len(m.drafts) > 0 {
			m.selectedIdx--
			if m.selectedIdx < 0 {
				m.selectedIdx = len(m.drafts) - 1
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Select):
		if len(m.drafts) == 0 {
			return m, nil
		}
		d := m.drafts[m.selectedIdx]
		return m, func() tea.Msg { return SelectedMsg{Draft: d} }

	case key.Matches(msg, m.keys.DeleteItem):
		if len(m.drafts) == 0 {
			return m, nil
		}
		m.fb.confirm = false
		m.confirmForm = m.buildConfirmForm()
		m.mode = modeConfirmDelete
		return m, m.confirmForm.Init()
	}
	return m, nil
}

func (m Model) buildNameForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Draft name").
				Description("Saving under an existing name replaces that draft").
				Placeholder("March newsletter").
				Value(&m.fb.name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name is required")
					}
					return nil
				}),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) buildConfirmForm() *huh.Form {
	name := ""
	if m.selectedIdx < len(m.drafts) {
		name = m.drafts[m.selectedIdx].Name
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete draft %q?", name)).
				Affirmative("Yes, delete").
				Negative("Cancel").
				Value(&m.fb.confirm),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}
	if m.form.State == huh.StateCompleted {
		m.mode = modeList
		return m, m.saveDraft()
	}
	if m.form.State == huh.StateAborted {
		m.mode = modeList
		return m, func() tea.Msg { return CloseMsg{} }
	}
	return m, cmd
}

func (m Model) updateConfirm(msg tea.Msg) (Model, tea.Cmd) {
	if m.confirmForm == nil {
		return m, nil
	}
	mdl, cmd := m.confirmForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirmForm = f
	}
	if m.confirmForm.State == huh.StateCompleted {
		if m.fb.confirm {
			d := m.drafts[m.selectedIdx]
			return m, m.deleteDraft(d.ID)
		}
		m.mode = modeList
		return m, nil
	}
	if m.confirmForm.State == huh.StateAborted {
		m.mode = modeList
		return m, nil
	}
	return m, cmd
}

func (m Model) updateActiveForm(msg tea.Msg) (Model, tea.Cmd) {
	switch m.mode {
	case modeName:
		return m.updateForm(msg)
	case modeConfirmDelete:
		return m.updateConfirm(msg)
	}
	return m, nil
}

// View renders the drafts list or the active form.
func (m Model) View() string {
	switch m.mode {
	case modeName:
		return m.viewForm(m.form)
	case modeConfirmDelete:
		return m.viewForm(m.confirmForm)
	default:
		return m.viewList()
	}
}

func (m Model) viewList() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1)
	b.WriteString(titleStyle.Render("Drafts"))
	b.WriteString("\n\n")

	if len(m.drafts) == 0 {
		emptyStyle := lipgloss.NewStyle().Foreground(theme.ColorGray).Italic(true)
		b.WriteString(emptyStyle.Render("No drafts yet. Press 'w' on the main screen to save one."))
	} else {
		for i, d := range m.drafts {
			label := fmt.Sprintf("%-24s %s  %s",
				d.Name,
				lipgloss.NewStyle().Foreground(theme.ColorGray).Render(d.UpdatedAt.Local().Format("2006-01-02 15:04")),
				d.Subject,
			)

			if i == m.selectedIdx {
				b.WriteString(theme.SelectedItemStyle.Render(label))
			} else {
				b.WriteString(theme.ListItemStyle.Render(label))
			}
			b.WriteString("\n")
		}
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorYellow).Italic(true).Render(m.statusMsg))
	}

	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorGray).Render(
		"enter open | D delete | esc back",
	))

	return lipgloss.NewStyle().Padding(1, 2).Width(m.width).Height(m.height).Render(b.String())
}

func (m Model) viewForm(f *huh.Form) string {
	if f == nil {
		return ""
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(f.View())
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
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

func (m Model) loadDrafts() tea.Cmd {
	s := m.store
	return func() tea.Msg {
		drafts, err := s.ListDrafts(context.Background())
		return draftsLoadedMsg{drafts: drafts, err: err}
	}
}

func (m Model) saveDraft() tea.Cmd {
	s := m.store
	d := m.pending
	name := strings.TrimSpace(m.fb.name)
	return func() tea.Msg {
		if name != d.Name {
			// A new name saves a copy rather than renaming the loaded draft.
			d.ID = ""
		}
		d.Name = name
		saved, err := s.SaveDraft(context.Background(), d)
		return SavedMsg{Draft: saved, Err: err}
	}
}

func (m Model) deleteDraft(id string) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		err := s.DeleteDraft(context.Background(), id)
		return draftDeletedMsg{err: err}
	}
}
