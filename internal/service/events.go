// Package service implements the event save workflow on top of the merge
// engine and the event repository.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/event-keeper/internal/changeset"
	"github.com/and161185/event-keeper/internal/errs"
	"github.com/and161185/event-keeper/internal/jsonval"
	"github.com/and161185/event-keeper/internal/merge"
	"github.com/and161185/event-keeper/internal/metrics"
	"github.com/and161185/event-keeper/internal/model"
	"github.com/and161185/event-keeper/internal/repository"
)

// EventService defines operations over event documents.
type EventService interface {
	// Get returns the stored event.
	Get(ctx context.Context, managerID uuid.UUID, publicID string) (*model.Event, error)
	// Save merges a flat save request, creating the event when it does not exist.
	Save(ctx context.Context, managerID uuid.UUID, req jsonval.Object) (*model.Event, error)
	// ApplyChanges applies an incremental change set to an existing event.
	ApplyChanges(ctx context.Context, managerID uuid.UUID, req ChangesRequest) (*model.Event, error)
	// History returns recorded revisions, newest first.
	History(ctx context.Context, managerID uuid.UUID, publicID string, limit int) ([]model.Revision, error)
}

// ChangesRequest is an incremental save.
type ChangesRequest struct {
	PublicID string
	Envelope *changeset.Envelope

	// Status overwrites the publication state when non-empty.
	Status string
}

const defaultHistoryLimit = 20

// MaxHistoryLimit caps the number of revisions one History call returns.
const MaxHistoryLimit = 100

type EventServiceImpl struct {
	repo          repository.EventRepository
	log           *zap.Logger
	metrics       *metrics.Metrics
	enforceTokens bool
	newPublicID   func() (string, error)
}

// Option configures EventServiceImpl.
type Option func(*EventServiceImpl)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option { return func(s *EventServiceImpl) { s.log = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option { return func(s *EventServiceImpl) { s.metrics = m } }

// WithConflictCheck enables or disables conflict token enforcement.
func WithConflictCheck(on bool) Option { return func(s *EventServiceImpl) { s.enforceTokens = on } }

// NewEventService constructs EventService. Conflict tokens are enforced
// unless disabled with WithConflictCheck(false).
func NewEventService(repo repository.EventRepository, opts ...Option) *EventServiceImpl {
	s := &EventServiceImpl{
		repo:          repo,
		log:           zap.NewNop(),
		enforceTokens: true,
		newPublicID: func() (string, error) {
			id, err := uuid.NewV4()
			return id.String(), err
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns an event owned by managerID.
func (s *EventServiceImpl) Get(ctx context.Context, managerID uuid.UUID, publicID string) (*model.Event, error) {
	if managerID == uuid.Nil || publicID == "" {
		return nil, invalid("empty manager/public_id")
	}
	return s.repo.Get(ctx, managerID, publicID)
}

// Save validates a flat request and merges it into the stored event. A
// request without public_id creates a new event under a fresh id.
func (s *EventServiceImpl) Save(ctx context.Context, managerID uuid.UUID, req jsonval.Object) (*model.Event, error) {
	if managerID == uuid.Nil {
		return nil, invalid("empty manager")
	}
	if err := merge.Validate(req); err != nil {
		s.metrics.Rejected("invalid")
		return nil, err
	}
	s.metrics.Payload(metrics.KindFlat, jsonval.Size(req))

	publicID, _ := req[model.KeyPublicID].(string)
	if publicID == "" {
		id, err := s.newPublicID()
		if err != nil {
			return nil, fmt.Errorf("generate public id: %w", err)
		}
		publicID = id
	}
	token, _ := req[model.KeyConflictToken].(string)
	if partial, _ := req[model.KeyPartialUpdate].(bool); partial {
		s.log.Warn("partial update sent as full save; prefer incremental changes",
			zap.String("public_id", publicID))
	}

	kind := metrics.KindFlat
	ev, err := s.repo.Update(ctx, managerID, publicID, func(cur *model.Event) (*model.Event, error) {
		if err := s.checkToken(cur, token); err != nil {
			return nil, err
		}
		if cur == nil {
			kind = metrics.KindCreate
		}
		return merge.Apply(cur, req)
	})
	if err != nil {
		return nil, s.failed(publicID, err)
	}
	s.saved(ev, kind)
	return ev, nil
}

// ApplyChanges applies an incremental change set. The event must exist. An
// empty change set without a status change writes nothing.
func (s *EventServiceImpl) ApplyChanges(ctx context.Context, managerID uuid.UUID, req ChangesRequest) (*model.Event, error) {
	if managerID == uuid.Nil {
		return nil, invalid("empty manager")
	}
	if req.PublicID == "" {
		return nil, invalid("public_id is required for incremental updates")
	}
	if req.Envelope == nil {
		return nil, invalid("empty changes")
	}
	var status model.Status
	if req.Status != "" {
		st, ok := model.ParseStatus(req.Status)
		if !ok {
			s.metrics.Rejected("invalid")
			return nil, invalid(fmt.Sprintf("unknown status %q", req.Status))
		}
		status = st
	}
	if req.Envelope.Changes.Empty() && status == "" {
		return s.repo.Get(ctx, managerID, req.PublicID)
	}
	s.metrics.Payload(metrics.KindIncremental, jsonval.Size(req.Envelope.ToObject()))

	ev, err := s.repo.Update(ctx, managerID, req.PublicID, func(cur *model.Event) (*model.Event, error) {
		if cur == nil {
			return nil, errs.ErrNotFound
		}
		if err := s.checkToken(cur, req.Envelope.Metadata.ConflictToken); err != nil {
			return nil, err
		}
		next, err := merge.ApplyChanges(cur, req.Envelope.Changes)
		if err != nil {
			return nil, err
		}
		if status != "" {
			next.Status = status
		}
		return next, nil
	})
	if err != nil {
		return nil, s.failed(req.PublicID, err)
	}
	s.saved(ev, metrics.KindIncremental)
	return ev, nil
}

// History returns at most limit revisions; limit <= 0 selects the default.
func (s *EventServiceImpl) History(ctx context.Context, managerID uuid.UUID, publicID string, limit int) ([]model.Revision, error) {
	if managerID == uuid.Nil || publicID == "" {
		return nil, invalid("empty manager/public_id")
	}
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	if _, err := s.repo.Get(ctx, managerID, publicID); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, managerID, publicID, limit)
}

// checkToken rejects a write whose baseline token no longer matches the
// stored event. Requests without a token and new events always pass.
func (s *EventServiceImpl) checkToken(cur *model.Event, token string) error {
	if !s.enforceTokens || token == "" || cur == nil {
		return nil
	}
	if got := cur.ConflictToken(); got != token {
		return fmt.Errorf("%w: event %s changed since ver %d was read", errs.ErrVersionConflict, cur.PublicID, cur.Ver)
	}
	return nil
}

func (s *EventServiceImpl) saved(ev *model.Event, kind string) {
	s.metrics.Merged(kind)
	s.log.Info("event saved",
		zap.String("public_id", ev.PublicID),
		zap.Int64("ver", ev.Ver),
		zap.String("kind", kind),
		zap.String("status", string(ev.Status)),
	)
}

func (s *EventServiceImpl) failed(publicID string, err error) error {
	switch {
	case errors.Is(err, errs.ErrVersionConflict):
		s.metrics.Conflict()
		s.log.Warn("save conflict", zap.String("public_id", publicID), zap.Error(err))
	case errors.Is(err, errs.ErrInvalidRequest):
		s.metrics.Rejected("invalid")
	}
	return err
}

func invalid(msg string) error {
	return fmt.Errorf("%w: validation: %s", errs.ErrInvalidRequest, msg)
}
