package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/event-keeper/internal/model"
)

// UpdateFunc computes the next state of an event from the current one. cur is
// nil when the event does not exist yet. Returning an error aborts the write.
type UpdateFunc func(cur *model.Event) (*model.Event, error)

// EventRepository provides versioned access to event documents scoped to
// their manager.
type EventRepository interface {
	// Get returns the event by public id.
	Get(ctx context.Context, managerID uuid.UUID, publicID string) (*model.Event, error)

	// Update reads the event, applies fn and writes the result in one
	// transaction, bumping the version and recording a revision.
	Update(ctx context.Context, managerID uuid.UUID, publicID string, fn UpdateFunc) (*model.Event, error)

	// History returns the newest revisions first, at most limit of them.
	History(ctx context.Context, managerID uuid.UUID, publicID string, limit int) ([]model.Revision, error)
}
