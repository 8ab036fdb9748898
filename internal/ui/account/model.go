package account

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailmerge/internal/credential"
	"github.com/nhle/mailmerge/internal/keys"
	"github.com/nhle/mailmerge/internal/model"
	"github.com/nhle/mailmerge/internal/theme"
	"github.com/nhle/mailmerge/internal/transport"
)

// Mode represents the current state of the account view.
type Mode int

const (
	ModeForm           Mode = iota // Editing account settings
	ModeValidating                 // Testing the login
	ModeValidateResult             // Showing the login result
)

// verifyTimeout bounds the test login started after saving.
const verifyTimeout = 30 * time.Second

// DoneMsg signals the account view should close.
type DoneMsg struct{}

// SavedMsg is sent once the account has been written to the config file
// and the password to the keyring.
type SavedMsg struct {
	Config   model.AppConfig
	Password string
}

// savedInternalMsg is sent after persisting the account.
type savedInternalMsg struct {
	cfg      model.AppConfig
	password string
	err      error
}

// ValidateResultMsg carries the result of a test login.
type ValidateResultMsg struct {
	Username string
	Err      error
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	host     string
	port     string
	username string
	from     string
	password string
	tls      bool
	timeout  string
}

// Model is the Bubble Tea model for the outbound account settings.
type Model struct {
	mode       Mode
	cfg        model.AppConfig
	configPath string
	dialer     transport.Dialer
	form       *huh.Form
	fb         *formBindings

	validError error
	validUser  string
	spinner    spinner.Model
	statusMsg  string

	keys          *keys.KeyMap
	width, height int
}

// New creates a new account view model.
func New(
	cfg model.AppConfig,
	configPath string,
	dialer transport.Dialer,
	k *keys.KeyMap,
	width, height int,
) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		mode:       ModeForm,
		cfg:        cfg,
		configPath: configPath,
		dialer:     dialer,
		fb:         &formBindings{},
		keys:       k,
		spinner:    sp,
		width:      width,
		height:     height,
	}
}

// Start opens the form pre-filled with cfg's account.
func (m *Model) Start(cfg model.AppConfig) tea.Cmd {
	m.cfg = cfg
	m.mode = ModeForm
	m.statusMsg = ""
	m.validError = nil

	a := cfg.Account
	m.fb.host = a.Host
	m.fb.port = strconv.Itoa(a.Port)
	m.fb.username = a.Username
	m.fb.from = a.From
	m.fb.password = ""
	m.fb.tls = a.TLS
	m.fb.timeout = strconv.Itoa(a.TimeoutSec)

	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case savedInternalMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error saving account: %v", msg.err)
			m.mode = ModeValidateResult
			m.validError = msg.err
			return m, nil
		}
		m.cfg = msg.cfg
		m.mode = ModeValidating
		creds := model.CredentialsFrom(msg.cfg.Account, msg.password)
		return m, tea.Batch(
			func() tea.Msg { return SavedMsg{Config: msg.cfg, Password: msg.password} },
			m.spinner.Tick,
			m.validate(creds),
		)

	case ValidateResultMsg:
		if m.mode != ModeValidating {
			return m, nil
		}
		m.validUser = msg.Username
		m.validError = msg.Err
		m.mode = ModeValidateResult
		return m, nil

	case spinner.TickMsg:
		if m.mode == ModeValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeValidating:
			if key.Matches(msg, m.keys.Back) {
				return m, func() tea.Msg { return DoneMsg{} }
			}
			return m, nil
		case ModeValidateResult:
			return m.handleResultKeys(msg)
		}
	}

	return m.updateForm(msg)
}

func (m Model) handleResultKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		return m, func() tea.Msg { return DoneMsg{} }
	case "e":
		return m, m.Start(m.cfg)
	case "r":
		if m.validError != nil && m.statusMsg == "" {
			pw, err := credential.Password(m.cfg.Account.Username)
			if err != nil {
				m.validError = err
				return m, nil
			}
			m.mode = ModeValidating
			return m, tea.Batch(
				m.spinner.Tick,
				m.validate(model.CredentialsFrom(m.cfg.Account, pw)),
			)
		}
	}
	return m, nil
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("SMTP Host").
				Description("Outgoing mail server hostname").
				Placeholder("smtp.gmail.com").
				Value(&m.fb.host).
				Validate(validateRequired("SMTP Host")),
			huh.NewInput().
				Title("SMTP Port").
				Description("465 for implicit TLS, 587 for STARTTLS").
				Placeholder("465").
				Value(&m.fb.port).
				Validate(validatePort),
			huh.NewConfirm().
				Title("Implicit TLS").
				Description("No uses STARTTLS, which is then required").
				Affirmative("Yes").
				Negative("No").
				Value(&m.fb.tls),
			huh.NewInput().
				Title("Username").
				Description("Login for the SMTP server").
				Placeholder("user@example.com").
				Value(&m.fb.username).
				Validate(validateRequired("Username")),
			huh.NewInput().
				Title("Password").
				Description("Account or app password; leave empty to keep the stored one").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.password),
			huh.NewInput().
				Title("From").
				Description("Sender address; defaults to the username").
				Value(&m.fb.from).
				Validate(validateOptionalAddress),
			huh.NewInput().
				Title("Timeout").
				Description("Seconds to wait for the server").
				Value(&m.fb.timeout).
				Validate(validatePositiveInt),
		).Title("Outgoing Mail Account"),
	).WithWidth(m.formWidth())
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.mode != ModeForm {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.save()
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return DoneMsg{} }
	}

	return m, cmd
}

// save writes the account to the config file and the password to the
// keyring. An empty password keeps the stored one.
func (m Model) save() tea.Cmd {
	cfg := m.cfg
	port, _ := strconv.Atoi(strings.TrimSpace(m.fb.port))
	timeout, _ := strconv.Atoi(strings.TrimSpace(m.fb.timeout))
	cfg.Account = model.AccountConfig{
		Host:       strings.TrimSpace(m.fb.host),
		Port:       port,
		Username:   strings.TrimSpace(m.fb.username),
		From:       strings.TrimSpace(m.fb.from),
		TLS:        m.fb.tls,
		TimeoutSec: timeout,
	}
	password := m.fb.password
	path := m.configPath

	return func() tea.Msg {
		if password != "" {
			if err := credential.SetPassword(cfg.Account.Username, password); err != nil {
				return savedInternalMsg{err: fmt.Errorf("saving password: %w", err)}
			}
		} else {
			pw, err := credential.Password(cfg.Account.Username)
			if err != nil {
				return savedInternalMsg{err: fmt.Errorf("no password stored for %s: %w", cfg.Account.Username, err)}
			}
			password = pw
		}

		if err := model.SaveConfig(path, &cfg); err != nil {
			return savedInternalMsg{err: err}
		}
		return savedInternalMsg{cfg: cfg, password: password}
	}
}

func (m Model) validate(creds model.Credentials) tea.Cmd {
	d := m.dialer
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
		defer cancel()
		return ValidateResultMsg{
			Username: creds.Username,
			Err:      transport.Verify(ctx, d, creds),
		}
	}
}

// View renders the account view based on the current mode.
func (m Model) View() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	switch m.mode {
	case ModeForm:
		if m.form == nil {
			return ""
		}
		return style.Render(m.form.View())

	case ModeValidating:
		return style.Render(fmt.Sprintf(
			"%s Logging in to %s:%d...\n\nPress esc to continue in the background.",
			m.spinner.View(), m.cfg.Account.Host, m.cfg.Account.Port,
		))

	case ModeValidateResult:
		hint := lipgloss.NewStyle().Foreground(theme.ColorGray)
		if m.validError != nil {
			title := "Login failed"
			if m.statusMsg != "" {
				title = "Account not saved"
			} else if transport.IsAuthError(m.validError) {
				title = "Login rejected"
			}
			return style.Render(
				theme.ErrorStyle.Render(title) + "\n\n" +
					m.validError.Error() + "\n\n" +
					hint.Render("e edit | r retry | enter/esc back"),
			)
		}
		return style.Render(
			theme.SuccessStyle.Bold(true).Render("Login successful") + "\n\n" +
				fmt.Sprintf("Authenticated as: %s", m.validUser) + "\n\n" +
				hint.Render("enter/esc back"),
		)
	}
	return ""
}

// SetSize updates the view dimensions.
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

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validatePort(s string) error {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive number")
	}
	return nil
}

func validateOptionalAddress(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return fmt.Errorf("invalid address: %v", err)
	}
	return nil
}
