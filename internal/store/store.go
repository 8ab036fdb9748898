package store

import (
	"context"
	"errors"

	"github.com/nhle/mailmerge/internal/model"
)

// ErrNotFound is returned when a draft lookup matches nothing.
var ErrNotFound = errors.New("draft not found")

// Store defines the persistence interface for saved compose drafts.
// Nothing about a run's outcome is ever written here.
type Store interface {
	SaveDraft(ctx context.Context, d model.Draft) (*model.Draft, error)
	GetDraft(ctx context.Context, id string) (*model.Draft, error)
	GetDraftByName(ctx context.Context, name string) (*model.Draft, error)
	ListDrafts(ctx context.Context) ([]model.Draft, error)
	DeleteDraft(ctx context.Context, id string) error
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
