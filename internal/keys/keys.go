package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding

	// Help toggle
	Help key.Binding

	// Compose
	Edit    key.Binding
	Account key.Binding

	// Run triggers
	Preview key.Binding
	DryRun  key.Binding
	Send    key.Binding
	Cancel  key.Binding

	// Drafts
	SaveDraft  key.Binding
	LoadDraft  key.Binding
	Select     key.Binding
	DeleteItem key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit campaign"),
		),
		Account: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "account"),
		),
		Preview: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "preview rows"),
		),
		DryRun: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "dry run"),
		),
		Send: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "send"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "cancel run"),
		),
		SaveDraft: key.NewBinding(
			key.WithKeys("w"),
			key.WithHelp("w", "save draft"),
		),
		LoadDraft: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open draft"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		DeleteItem: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "delete"),
		),
	}
}

// SetRunning enables or disables the bindings that start or change a
// run. Only Cancel stays active while a run is in progress.
func (k *KeyMap) SetRunning(running bool) {
	for _, b := range []*key.Binding{
		&k.Edit, &k.Account, &k.Preview, &k.DryRun, &k.Send,
		&k.SaveDraft, &k.LoadDraft,
	} {
		b.SetEnabled(!running)
	}
	k.Cancel.SetEnabled(running)
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Edit, k.Preview, k.DryRun, k.Send,
		k.Cancel, k.Quit, k.Help,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Back, k.Quit},
		{k.Edit, k.Account, k.Help},
		{k.Preview, k.DryRun, k.Send, k.Cancel},
		{k.SaveDraft, k.LoadDraft, k.DeleteItem},
	}
}
