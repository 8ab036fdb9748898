package model

import "time"

// Draft is a saved compose form: templates, column mapping and
// attachments. Drafts never record what was sent.
type Draft struct {
	// ID is the unique identifier (UUID) for this draft.
	ID string `json:"id" db:"id"`

	// Name is the user-chosen label, unique across drafts.
	Name string `json:"name" db:"name"`

	SpreadsheetPath string   `json:"spreadsheet_path" db:"spreadsheet_path"`
	SheetName       string   `json:"sheet_name" db:"sheet_name"`
	EmailColumn     string   `json:"email_column" db:"email_column"`
	NameColumn      string   `json:"name_column" db:"name_column"`
	Subject         string   `json:"subject" db:"subject"`
	Body            string   `json:"body" db:"body"`
	BodyFormat      string   `json:"body_format" db:"body_format"`
	Attachments     []string `json:"attachments" db:"-"`
	DelaySec        float64  `json:"delay_sec" db:"delay_sec"`

	// CreatedAt is when the draft was first saved.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is when the draft was last modified.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RunConfig converts the draft into a run configuration.
func (d Draft) RunConfig(dryRun bool) RunConfig {
	return RunConfig{
		SpreadsheetPath: d.SpreadsheetPath,
		SheetName:       d.SheetName,
		EmailColumn:     d.EmailColumn,
		NameColumn:      d.NameColumn,
		SubjectTemplate: d.Subject,
		BodyTemplate:    d.Body,
		BodyFormat:      d.BodyFormat,
		Attachments:     append([]string(nil), d.Attachments...),
		Delay:           DelayFromSeconds(d.DelaySec),
		DryRun:          dryRun,
	}
}
