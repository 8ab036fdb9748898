// Command mailmerge sends personalized mail to every row of a spreadsheet,
// interactively in a terminal UI or headless from flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nhle/mailmerge/internal/app"
	"github.com/nhle/mailmerge/internal/logging"
	"github.com/nhle/mailmerge/internal/model"
	"github.com/nhle/mailmerge/internal/sheet"
	"github.com/nhle/mailmerge/internal/store"
	"github.com/nhle/mailmerge/internal/transport"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "mailmerge: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("mailmerge", pflag.ContinueOnError)
	f := registerFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	f.delaySet = fs.Changed("delay")

	if err := loadEnvFile(f.envFile); err != nil {
		return err
	}

	v := model.NewViper()
	if err := bindFlags(v, fs); err != nil {
		return err
	}
	cfg, err := model.LoadConfigWith(v, f.configPath)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	s, err := store.NewSQLiteStore(filepath.Join(dir, "mailmerge.db"))
	if err != nil {
		return err
	}
	defer s.Close()

	if f.headless {
		return runHeadless(f, cfg, s)
	}
	return runTUI(f, cfg, s)
}

func runTUI(f *flags, cfg *model.AppConfig, s store.Store) error {
	logger, closer, err := logging.Open(cfg.Log, filepath.Join(filepath.Dir(f.configPath), "mailmerge.log"))
	if err != nil {
		return err
	}
	defer closer.Close()

	var initial *model.Draft
	if f.draft != "" || f.file != "" {
		initial, err = campaignFromFlags(context.Background(), f, cfg, s)
		if err != nil {
			return err
		}
	}

	logger.Info("starting interactive session", "config", f.configPath)

	m := app.New(app.Options{
		Config:     *cfg,
		ConfigPath: f.configPath,
		Store:      s,
		Loader:     sheet.FileLoader{},
		Dialer:     transport.NewSMTPDialer(),
		Logger:     logger,
		Draft:      initial,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}

// loadEnvFile exports MAILMERGE_* overrides from a dotenv file. Variables
// already set in the environment win. A missing default file is ignored.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && path == defaultEnvFile {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM so a headless run stops
// between rows.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
