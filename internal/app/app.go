package app

import (
	"fmt"
	"log/slog"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailmerge/internal/logging"
	"github.com/nhle/mailmerge/internal/model"
	"github.com/nhle/mailmerge/internal/sheet"
	"github.com/nhle/mailmerge/internal/store"
	"github.com/nhle/mailmerge/internal/theme"
	"github.com/nhle/mailmerge/internal/transport"
	"github.com/nhle/mailmerge/internal/ui"
	"github.com/nhle/mailmerge/internal/ui/account"
	"github.com/nhle/mailmerge/internal/ui/campaignform"
	"github.com/nhle/mailmerge/internal/ui/drafts"
	helpview "github.com/nhle/mailmerge/internal/ui/help"
	"github.com/nhle/mailmerge/internal/ui/runview"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewMain ViewState = iota
	ViewCompose
	ViewAccount
	ViewDrafts
	ViewConfirmSend
	ViewHelp
)

// Options are the collaborators of the root model.
type Options struct {
	Config     model.AppConfig
	ConfigPath string
	Store      store.Store
	Loader     sheet.Loader
	Dialer     transport.Dialer
	Logger     *slog.Logger

	// Draft, when set, is loaded as the current campaign on start.
	Draft *model.Draft
}

// confirmBindings keeps the send confirmation value on the heap.
type confirmBindings struct {
	send bool
}

// Model is the root Bubble Tea model that manages view routing,
// layout, and the active run.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *KeyMap
	help         help.Model

	cfg        model.AppConfig
	configPath string
	store      store.Store
	loader     sheet.Loader
	dialer     transport.Dialer
	logger     *slog.Logger

	campaign    model.Draft
	hasCampaign bool
	rowCount    int

	runView     runview.Model
	composeView campaignform.Model
	accountView account.Model
	draftsView  drafts.Model
	helpView    helpview.Model

	confirmForm *huh.Form
	cb          *confirmBindings
	bridge      *runBridge
	running     bool
	statusMsg   string
	ready       bool
}

// New creates a new root application model.
func New(opts Options) Model {
	keys := DefaultKeyMap()
	keys.SetRunning(false)

	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	m := Model{
		currentView: ViewMain,
		keys:        keys,
		help:        help.New(),
		cfg:         opts.Config,
		configPath:  opts.ConfigPath,
		store:       opts.Store,
		loader:      opts.Loader,
		dialer:      opts.Dialer,
		logger:      logger,
		runView:     runview.New(80, 24),
		composeView: campaignform.New(80, 24),
		accountView: account.New(opts.Config, opts.ConfigPath, opts.Dialer, keys, 80, 24),
		draftsView:  drafts.New(opts.Store, keys, 80, 24),
		helpView:    helpview.New(keys, 80, 24),
		cb:          &confirmBindings{},
		bridge:      newRunBridge(),
	}

	if opts.Draft != nil {
		m.campaign = *opts.Draft
		m.hasCampaign = true
	}

	return m
}

// Init previews a campaign passed in on the command line. The account form
// opens on the first resize when no account is configured.
func (m Model) Init() tea.Cmd {
	if m.hasCampaign {
		return m.loadPreview()
	}
	return nil
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		first := !m.ready
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.help.Width = contentWidth
		m.runView.SetSize(contentWidth, contentHeight)
		m.composeView.SetSize(contentWidth, contentHeight)
		m.accountView.SetSize(contentWidth, contentHeight)
		m.draftsView.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)

		if first && !m.cfg.Account.Configured() {
			m.statusMsg = "No outgoing account configured yet"
			return m.openAccount()
		}
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	// --- Campaign form ---

	case campaignform.SubmittedMsg:
		m.campaign = msg.Draft
		m.hasCampaign = true
		m.currentView = ViewMain
		return m, m.loadPreview()

	case campaignform.CancelMsg:
		m.currentView = ViewMain
		return m, nil

	case previewLoadedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Could not load spreadsheet: %v", msg.err)
			return m, nil
		}
		m.rowCount = msg.table.Len()
		m.statusMsg = fmt.Sprintf("%d rows loaded", m.rowCount)
		m.runView.SetPreview(msg.table, m.runConfig(true))
		return m, nil

	// --- Account ---

	case account.SavedMsg:
		m.cfg = msg.Config
		m.statusMsg = "Account saved"
		return m, nil

	case account.DoneMsg:
		m.currentView = ViewMain
		return m, nil

	// --- Drafts ---

	case drafts.SelectedMsg:
		m.campaign = msg.Draft
		m.hasCampaign = true
		m.currentView = ViewMain
		m.statusMsg = fmt.Sprintf("Opened draft %q", msg.Draft.Name)
		return m, m.loadPreview()

	case drafts.SavedMsg:
		m.currentView = ViewMain
		if msg.Err != nil {
			m.statusMsg = fmt.Sprintf("Could not save draft: %v", msg.Err)
			return m, nil
		}
		m.campaign = *msg.Draft
		m.statusMsg = fmt.Sprintf("Saved draft %q", msg.Draft.Name)
		return m, nil

	case drafts.CloseMsg:
		m.currentView = ViewMain
		return m, nil

	// --- Run ---

	case runProgressMsg:
		cmd := m.runView.SetProgress(msg.done, msg.total)
		return m, tea.Batch(cmd, m.bridge.waitForEvent())

	case runLogMsg:
		m.runView.AppendLog(msg.entry)
		return m, m.bridge.waitForEvent()

	case runFinishedMsg:
		m.bridge.done()
		m.running = false
		m.keys.SetRunning(false)
		m.runView.Finish(msg.result, msg.err)
		m.statusMsg = finishedStatus(msg.result, msg.err)
		return m, nil

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.runView, cmd = m.runView.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.bridge.Cancel()
			return m, tea.Quit
		}
		if m.currentView == ViewMain {
			if next, cmd, handled := m.handleMainKey(msg); handled {
				return next, cmd
			}
		}
		if m.currentView == ViewHelp && (key.Matches(msg, m.keys.Help) || key.Matches(msg, m.keys.Back)) {
			m.currentView = m.previousView
			return m, nil
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleMainKey processes global keys on the main screen.
func (m Model) handleMainKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.bridge.Cancel()
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.Help):
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil, true

	case key.Matches(msg, m.keys.Cancel):
		if m.bridge.Cancel() {
			m.statusMsg = "Cancelling after the current row..."
		}
		return m, nil, true

	case key.Matches(msg, m.keys.Edit):
		m.previousView = m.currentView
		m.currentView = ViewCompose
		return m, m.composeView.Start(m.campaign, m.cfg.Defaults), true

	case key.Matches(msg, m.keys.Account):
		next, cmd := m.openAccount()
		return next, cmd, true

	case key.Matches(msg, m.keys.LoadDraft):
		m.previousView = m.currentView
		m.currentView = ViewDrafts
		return m, m.draftsView.Init(), true

	case key.Matches(msg, m.keys.SaveDraft):
		if !m.hasCampaign {
			m.statusMsg = "Nothing to save yet; press e to set up a campaign"
			return m, nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewDrafts
		return m, m.draftsView.StartSave(m.campaign), true

	case key.Matches(msg, m.keys.Preview):
		if !m.hasCampaign {
			return m, nil, true
		}
		return m, m.loadPreview(), true

	case key.Matches(msg, m.keys.DryRun):
		if !m.hasCampaign {
			m.statusMsg = "Set up a campaign first (e)"
			return m, nil, true
		}
		next, cmd := m.startRun(true)
		return next, cmd, true

	case key.Matches(msg, m.keys.Send):
		if !m.hasCampaign {
			m.statusMsg = "Set up a campaign first (e)"
			return m, nil, true
		}
		if !m.cfg.Account.Configured() {
			next, cmd := m.openAccount()
			return next, cmd, true
		}
		m.cb.send = false
		m.confirmForm = m.buildConfirmForm()
		m.previousView = m.currentView
		m.currentView = ViewConfirmSend
		return m, m.confirmForm.Init(), true
	}

	return m, nil, false
}

func (m Model) openAccount() (tea.Model, tea.Cmd) {
	m.previousView = m.currentView
	m.currentView = ViewAccount
	return m, m.accountView.Start(m.cfg)
}

func (m Model) buildConfirmForm() *huh.Form {
	rows := "every row"
	if m.rowCount > 0 {
		rows = fmt.Sprintf("up to %d messages", m.rowCount)
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Send for real?").
				Description(fmt.Sprintf(
					"This sends %s from %s via %s.",
					rows, m.cfg.Account.Sender(), m.cfg.Account.Host,
				)).
				Affirmative("Send").
				Negative("Cancel").
				Value(&m.cb.send),
		),
	).WithWidth(60)
}

func (m Model) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.confirmForm == nil {
		return m, nil
	}

	mdl, cmd := m.confirmForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirmForm = f
	}

	switch m.confirmForm.State {
	case huh.StateCompleted:
		m.currentView = ViewMain
		if m.cb.send {
			return m.startRun(false)
		}
		m.statusMsg = "Send cancelled"
		return m, nil
	case huh.StateAborted:
		m.currentView = ViewMain
		m.statusMsg = "Send cancelled"
		return m, nil
	}
	return m, cmd
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewMain:
		m.runView, cmd = m.runView.Update(msg)
	case ViewCompose:
		m.composeView, cmd = m.composeView.Update(msg)
	case ViewAccount:
		m.accountView, cmd = m.accountView.Update(msg)
	case ViewDrafts:
		m.draftsView, cmd = m.draftsView.Update(msg)
	case ViewConfirmSend:
		return m.updateConfirm(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Mail Merge", m.headerStatus())
	content := lipgloss.NewStyle().
		Height(m.layout.ContentHeight()).
		MaxHeight(m.layout.ContentHeight()).
		Render(m.renderContent())
	statusBar := m.layout.RenderStatusBar(m.keyHints(), m.statusMsg)

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewMain:
		return m.renderMain()
	case ViewCompose:
		return m.composeView.View()
	case ViewAccount:
		return m.accountView.View()
	case ViewDrafts:
		return m.draftsView.View()
	case ViewConfirmSend:
		if m.confirmForm == nil {
			return ""
		}
		return lipgloss.NewStyle().Padding(1, 2).Render(m.confirmForm.View())
	case ViewHelp:
		return m.helpView.View()
	default:
		return ""
	}
}

func (m Model) renderMain() string {
	if !m.hasCampaign {
		return m.runView.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.campaignSummary(), m.runView.View())
}

func (m Model) campaignSummary() string {
	c := m.campaign
	line := func(label, value string) string {
		return theme.LabelStyle.Render(label) + value
	}
	name := c.Name
	if name == "" {
		name = "(unsaved)"
	}
	sheetName := c.SheetName
	if sheetName == "" {
		sheetName = "(first)"
	}
	return lipgloss.NewStyle().Padding(0, 2).Render(lipgloss.JoinVertical(lipgloss.Left,
		line("Campaign", name),
		line("Spreadsheet", fmt.Sprintf("%s [%s]", c.SpreadsheetPath, sheetName)),
		line("Columns", fmt.Sprintf("email=%s name=%s", c.EmailColumn, c.NameColumn)),
		line("Subject", c.Subject),
		line("Attachments", fmt.Sprintf("%d", len(c.Attachments))),
		line("Delay", fmt.Sprintf("%gs", c.DelaySec)),
	))
}

// headerStatus returns a short string describing the account and run state.
func (m Model) headerStatus() string {
	if m.running {
		return "running"
	}
	if !m.cfg.Account.Configured() {
		return "no account"
	}
	return m.cfg.Account.Sender()
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCompose:
		return "enter next | shift+tab back | esc cancel"
	case ViewAccount:
		return "enter submit | esc back"
	case ViewDrafts:
		return "enter open | D delete | esc back"
	case ViewConfirmSend:
		return "←/→ choose | enter confirm"
	}

	return m.help.ShortHelpView(m.keys.ShortHelp())
}
