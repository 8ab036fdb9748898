package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/mailmerge/internal/model"
)

// draftRow maps the drafts table; attachments are stored as a JSON array.
type draftRow struct {
	model.Draft
	AttachmentsJSON string `db:"attachments"`
}

func (r draftRow) toDraft() (model.Draft, error) {
	d := r.Draft
	if r.AttachmentsJSON != "" {
		if err := json.Unmarshal([]byte(r.AttachmentsJSON), &d.Attachments); err != nil {
			return model.Draft{}, fmt.Errorf("unmarshaling attachments for draft %s: %w", d.ID, err)
		}
	}
	return d, nil
}

// SaveDraft inserts or updates a draft. A draft is matched by ID when
// one is set, otherwise by name; a new UUID is generated for new drafts.
// The stored draft is returned.
func (s *SQLiteStore) SaveDraft(ctx context.Context, d model.Draft) (*model.Draft, error) {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return nil, fmt.Errorf("draft name must not be empty")
	}
	if d.BodyFormat == "" {
		d.BodyFormat = model.BodyFormatText
	}
	if !model.ValidBodyFormat(d.BodyFormat) {
		return nil, fmt.Errorf("invalid body format %q", d.BodyFormat)
	}
	if d.DelaySec < 0 {
		return nil, fmt.Errorf("delay must not be negative")
	}

	atts := d.Attachments
	if atts == nil {
		atts = []string{}
	}
	attJSON, err := json.Marshal(atts)
	if err != nil {
		return nil, fmt.Errorf("marshaling attachments: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	existingID, err := s.findDraftID(ctx, tx, d)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if existingID != "" {
		d.ID = existingID
		_, err = tx.ExecContext(ctx, `
			UPDATE drafts SET
				name = ?, spreadsheet_path = ?, sheet_name = ?,
				email_column = ?, name_column = ?,
				subject = ?, body = ?, body_format = ?,
				attachments = ?, delay_sec = ?, updated_at = ?
			WHERE id = ?`,
			d.Name, d.SpreadsheetPath, d.SheetName,
			d.EmailColumn, d.NameColumn,
			d.Subject, d.Body, d.BodyFormat,
			string(attJSON), d.DelaySec, now,
			d.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("updating draft %s: %w", d.ID, err)
		}
	} else {
		if d.ID == "" {
			d.ID = uuid.New().String()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO drafts (
				id, name, spreadsheet_path, sheet_name,
				email_column, name_column,
				subject, body, body_format,
				attachments, delay_sec, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.Name, d.SpreadsheetPath, d.SheetName,
			d.EmailColumn, d.NameColumn,
			d.Subject, d.Body, d.BodyFormat,
			string(attJSON), d.DelaySec, now, now,
		)
		if err != nil {
			return nil, fmt.Errorf("creating draft %q: %w", d.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing draft %q: %w", d.Name, err)
	}

	return s.GetDraft(ctx, d.ID)
}

func (s *SQLiteStore) findDraftID(ctx context.Context, tx *sqlx.Tx, d model.Draft) (string, error) {
	var id string
	var err error
	if d.ID != "" {
		err = tx.GetContext(ctx, &id, "SELECT id FROM drafts WHERE id = ?", d.ID)
	} else {
		err = tx.GetContext(ctx, &id, "SELECT id FROM drafts WHERE name = ?", d.Name)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("looking up draft %q: %w", d.Name, err)
	}
	return id, nil
}

// GetDraft retrieves a single draft by its ID.
func (s *SQLiteStore) GetDraft(ctx context.Context, id string) (*model.Draft, error) {
	return s.getDraft(ctx, "SELECT * FROM drafts WHERE id = ?", id)
}

// GetDraftByName retrieves a single draft by its unique name.
func (s *SQLiteStore) GetDraftByName(ctx context.Context, name string) (*model.Draft, error) {
	return s.getDraft(ctx, "SELECT * FROM drafts WHERE name = ?", strings.TrimSpace(name))
}

func (s *SQLiteStore) getDraft(ctx context.Context, query, arg string) (*model.Draft, error) {
	var row draftRow
	err := s.db.GetContext(ctx, &row, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting draft %s: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting draft %s: %w", arg, err)
	}

	d, err := row.toDraft()
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDrafts returns every draft, most recently updated first.
func (s *SQLiteStore) ListDrafts(ctx context.Context) ([]model.Draft, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM drafts ORDER BY updated_at DESC, name")
	if err != nil {
		return nil, fmt.Errorf("querying drafts: %w", err)
	}
	defer rows.Close()

	var drafts []model.Draft
	for rows.Next() {
		var row draftRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("scanning draft row: %w", err)
		}
		d, err := row.toDraft()
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

// DeleteDraft removes a draft by ID.
func (s *SQLiteStore) DeleteDraft(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM drafts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting draft %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("deleting draft %s: %w", id, ErrNotFound)
	}
	return nil
}
