package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nhle/mailmerge/internal/campaign"
	"github.com/nhle/mailmerge/internal/credential"
	"github.com/nhle/mailmerge/internal/logging"
	"github.com/nhle/mailmerge/internal/model"
	"github.com/nhle/mailmerge/internal/sheet"
	"github.com/nhle/mailmerge/internal/store"
	"github.com/nhle/mailmerge/internal/transport"
)

// errNotConfirmed is returned when --send is given without --yes.
var errNotConfirmed = errors.New("real send needs --yes to confirm")

// errRowsFailed makes the process exit non-zero when any row failed.
var errRowsFailed = errors.New("some messages could not be sent")

func runHeadless(f *flags, cfg *model.AppConfig, s store.Store) error {
	logger, closer, err := logging.Open(cfg.Log, "")
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signalContext()
	defer stop()

	d, err := campaignFromFlags(ctx, f, cfg, s)
	if err != nil {
		return err
	}

	dryRun := headlessDryRun(f, cfg)
	if !dryRun && !f.yes {
		return errNotConfirmed
	}

	var creds model.Credentials
	if !dryRun {
		if !cfg.Account.Configured() {
			return fmt.Errorf("no outgoing account configured in %s", f.configPath)
		}
		pw, err := credential.Password(cfg.Account.Username)
		if err != nil {
			return fmt.Errorf("password for %s: %w", cfg.Account.Username, err)
		}
		creds = model.CredentialsFrom(cfg.Account, pw)
	}

	runner := campaign.New(
		sheet.FileLoader{},
		transport.NewSMTPDialer(),
		creds,
		campaign.WithLogger(logger),
	)

	res, err := runner.Run(ctx, d.RunConfig(dryRun), consoleObserver(os.Stdout))
	if err != nil {
		return err
	}
	if res.Count(campaign.OutcomeError) > 0 {
		return errRowsFailed
	}
	return nil
}

// headlessDryRun reports whether a headless run only simulates sending.
// --send always sends; otherwise defaults.dry_run decides.
func headlessDryRun(f *flags, cfg *model.AppConfig) bool {
	if f.send {
		return false
	}
	return cfg.Defaults.DryRun
}

// consoleObserver prints each log line to w. Progress is implied by the
// per-row log lines.
func consoleObserver(w io.Writer) campaign.Observer {
	return campaign.ObserverFuncs{
		OnLog: func(e campaign.LogEntry) {
			fmt.Fprintln(w, e.String())
		},
	}
}
