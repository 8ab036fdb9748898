package model

import (
	"strings"
	"time"
)

// Body formats supported by the compose step.
const (
	BodyFormatText     = "text"
	BodyFormatMarkdown = "markdown"
)

// ValidBodyFormat reports whether f is a known body format.
func ValidBodyFormat(f string) bool {
	return f == BodyFormatText || f == BodyFormatMarkdown
}

// RunConfig describes a single mail-merge run. It is built fresh from the
// compose form (or command-line flags) and must not be modified while a run
// is in progress.
type RunConfig struct {
	// SpreadsheetPath is the .xlsx or .csv file holding recipients.
	SpreadsheetPath string

	// SheetName selects the worksheet; empty means the first sheet.
	SheetName string

	// EmailColumn is the header of the column holding recipient addresses.
	EmailColumn string

	// NameColumn is the header whose value is exposed as {Name}.
	NameColumn string

	// SubjectTemplate and BodyTemplate use {field} placeholders.
	SubjectTemplate string
	BodyTemplate    string

	// BodyFormat is BodyFormatText or BodyFormatMarkdown.
	BodyFormat string

	// Attachments are file paths attached to every message, in order.
	Attachments []string

	// Delay is the pause after each non-skipped row.
	Delay time.Duration

	// DryRun renders and logs every message without opening a transport.
	DryRun bool
}

// Mode returns a short label for the run mode.
func (c RunConfig) Mode() string {
	if c.DryRun {
		return "dry-run"
	}
	return "send"
}

// DelayFromSeconds converts a user-entered delay in seconds to a
// duration. Negative values clamp to zero.
func DelayFromSeconds(sec float64) time.Duration {
	if sec <= 0 {
		return 0
	}
	return time.Duration(sec * float64(time.Second))
}

// SplitPaths turns a newline or comma separated list into trimmed,
// de-duplicated paths while preserving order.
func SplitPaths(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '\n' || r == ','
	})
	seen := make(map[string]bool, len(fields))
	var out []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// Credentials authenticate the single outbound account. They are passed
// explicitly to the campaign runner and transport.
type Credentials struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLS      bool
	Timeout  time.Duration
}

// CredentialsFrom combines account settings with a password.
func CredentialsFrom(a AccountConfig, password string) Credentials {
	return Credentials{
		Host:     a.Host,
		Port:     a.Port,
		Username: a.Username,
		Password: password,
		From:     a.Sender(),
		TLS:      a.TLS,
		Timeout:  time.Duration(a.TimeoutSec) * time.Second,
	}
}
