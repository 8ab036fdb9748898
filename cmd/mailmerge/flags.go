package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nhle/mailmerge/internal/model"
	"github.com/nhle/mailmerge/internal/sheet"
	"github.com/nhle/mailmerge/internal/store"
)

// defaultEnvFile is read when present; --env-file names another one.
const defaultEnvFile = ".env"

// flags holds the parsed command line.
type flags struct {
	configPath string
	envFile    string
	headless   bool
	draft      string
	file       string
	sheet      string
	emailCol   string
	nameCol    string
	subject    string
	bodyFile   string
	markdown   bool
	attach     []string
	delay      float64
	delaySet   bool
	send       bool
	yes        bool
}

func registerFlags(fs *pflag.FlagSet) *flags {
	f := &flags{}
	fs.StringVarP(&f.configPath, "config", "c", model.DefaultConfigPath(), "path to config.yaml")
	fs.StringVar(&f.envFile, "env-file", defaultEnvFile, "dotenv file with MAILMERGE_* overrides")
	fs.BoolVar(&f.headless, "headless", false, "run without the terminal UI")
	fs.StringVar(&f.draft, "draft", "", "load a saved draft by name")
	fs.StringVarP(&f.file, "file", "f", "", "spreadsheet (.xlsx or .csv)")
	fs.StringVar(&f.sheet, "sheet", "", "worksheet name (default: first sheet)")
	fs.StringVar(&f.emailCol, "email-col", "", "column holding recipient addresses (default: detected)")
	fs.StringVar(&f.nameCol, "name-col", "", "column exposed as {Name} (default: detected)")
	fs.StringVar(&f.subject, "subject", "", "subject template")
	fs.StringVar(&f.bodyFile, "body-file", "", "file holding the body template")
	fs.BoolVar(&f.markdown, "markdown", false, "treat the body as Markdown and add an HTML part")
	fs.StringArrayVarP(&f.attach, "attach", "a", nil, "file attached to every message (repeatable)")
	fs.Float64Var(&f.delay, "delay", 0, "seconds to wait after each message")
	fs.BoolVar(&f.send, "send", false, "send for real even when defaults.dry_run is set")
	fs.BoolVarP(&f.yes, "yes", "y", false, "confirm a real send in headless mode")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("log-format", "", "log format (text or json)")
	return f
}

// bindFlags lets flags that mirror config keys override the file.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for key, name := range map[string]string{
		"defaults.delay_sec": "delay",
		"log.level":          "log-level",
		"log.format":         "log-format",
	} {
		fl := fs.Lookup(name)
		if !fl.Changed {
			continue
		}
		if err := v.BindPFlag(key, fl); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

// campaignFromFlags builds the campaign from --draft, overlaid with any
// explicit flags, falling back to the configured defaults.
func campaignFromFlags(ctx context.Context, f *flags, cfg *model.AppConfig, s store.Store) (*model.Draft, error) {
	d := model.Draft{
		Subject:    cfg.Defaults.Subject,
		Body:       cfg.Defaults.Body,
		BodyFormat: cfg.Defaults.BodyFormat,
		DelaySec:   cfg.Defaults.DelaySec,
	}

	if f.draft != "" {
		saved, err := s.GetDraftByName(ctx, f.draft)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("no draft named %q", f.draft)
			}
			return nil, err
		}
		d = *saved
	}

	if f.file != "" {
		d.SpreadsheetPath = f.file
		d.SheetName = ""
		d.EmailColumn = ""
		d.NameColumn = ""
	}
	if f.sheet != "" {
		d.SheetName = f.sheet
	}
	if f.emailCol != "" {
		d.EmailColumn = f.emailCol
	}
	if f.nameCol != "" {
		d.NameColumn = f.nameCol
	}
	if f.subject != "" {
		d.Subject = f.subject
	}
	if f.bodyFile != "" {
		body, err := os.ReadFile(f.bodyFile)
		if err != nil {
			return nil, fmt.Errorf("reading body file: %w", err)
		}
		d.Body = string(body)
	}
	if f.markdown {
		d.BodyFormat = model.BodyFormatMarkdown
	}
	if len(f.attach) > 0 {
		d.Attachments = f.attach
	}
	if f.delaySet {
		d.DelaySec = f.delay
	}

	if strings.TrimSpace(d.SpreadsheetPath) == "" {
		return nil, errors.New("no spreadsheet given; use --file or --draft")
	}

	if d.SheetName == "" {
		d.SheetName = defaultSheet(d.SpreadsheetPath, cfg.Defaults.Sheet)
	}
	if d.EmailColumn == "" || (d.NameColumn == "" && f.file != "") {
		headers, err := sheet.Headers(d.SpreadsheetPath, d.SheetName)
		if err != nil {
			return nil, fmt.Errorf("reading headers: %w", err)
		}
		email, name := sheet.DetectColumns(headers)
		if d.EmailColumn == "" {
			d.EmailColumn = email
		}
		if d.NameColumn == "" {
			d.NameColumn = name
		}
	}

	return &d, nil
}

// defaultSheet returns preferred when the workbook has a sheet of that
// name, and "" (first sheet) otherwise.
func defaultSheet(path, preferred string) string {
	if preferred == "" {
		return ""
	}
	names, err := sheet.Sheets(path)
	if err != nil || !slices.Contains(names, preferred) {
		return ""
	}
	return preferred
}
