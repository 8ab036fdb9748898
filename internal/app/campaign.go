package app

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mailmerge/internal/campaign"
	"github.com/nhle/mailmerge/internal/credential"
	"github.com/nhle/mailmerge/internal/model"
	"github.com/nhle/mailmerge/internal/sheet"
)

// previewLoadedMsg carries the spreadsheet read for the preview table.
type previewLoadedMsg struct {
	table *sheet.Table
	err   error
}

// runConfig builds a fresh run configuration from the current campaign.
func (m Model) runConfig(dryRun bool) model.RunConfig {
	return m.campaign.RunConfig(dryRun)
}

// loadPreview reads the campaign spreadsheet off the UI goroutine.
func (m Model) loadPreview() tea.Cmd {
	loader := m.loader
	path, sheetName := m.campaign.SpreadsheetPath, m.campaign.SheetName
	return func() tea.Msg {
		tbl, err := loader.Load(path, sheetName)
		return previewLoadedMsg{table: tbl, err: err}
	}
}

// startRun launches a dry or real run in the background. Real runs fetch
// the password first; a missing password opens the account form.
func (m Model) startRun(dryRun bool) (tea.Model, tea.Cmd) {
	if m.running {
		return m, nil
	}

	var creds model.Credentials
	if !dryRun {
		pw, err := credential.Password(m.cfg.Account.Username)
		if err != nil {
			m.statusMsg = fmt.Sprintf("No password for %s: %v", m.cfg.Account.Username, err)
			return m.openAccount()
		}
		creds = model.CredentialsFrom(m.cfg.Account, pw)
	} else {
		creds = model.CredentialsFrom(m.cfg.Account, "")
	}

	runner := campaign.New(m.loader, m.dialer, creds, campaign.WithLogger(m.logger))

	m.running = true
	m.keys.SetRunning(true)
	m.statusMsg = ""
	startCmd := m.runView.Start(dryRun)

	return m, tea.Batch(startCmd, m.bridge.Start(runner, m.runConfig(dryRun)))
}

// finishedStatus summarizes a completed run for the status bar.
func finishedStatus(res *campaign.RunResult, err error) string {
	switch {
	case res != nil && res.Cancelled:
		return fmt.Sprintf("Run cancelled after %d of %d rows", res.Processed(), res.Total)
	case errors.Is(err, campaign.ErrLoad):
		return "Could not load the spreadsheet"
	case errors.Is(err, campaign.ErrTransport):
		return "Could not log in to the mail server"
	case err != nil:
		return fmt.Sprintf("Run failed: %v", err)
	case res == nil:
		return ""
	case res.DryRun:
		return fmt.Sprintf("Dry run finished: %d rows rendered", res.Count(campaign.OutcomeDryRun))
	default:
		return fmt.Sprintf("Finished sending: %d/%d", res.Sent, res.Total)
	}
}
