package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/event-keeper/internal/errs"
	"github.com/and161185/event-keeper/internal/jsonval"
	"github.com/and161185/event-keeper/internal/model"
	"github.com/and161185/event-keeper/internal/repository"
)

// EventRepo implements EventRepository using PostgreSQL.
type EventRepo struct {
	db  *DB
	now func() time.Time
}

// NewEventRepo constructs an event repository.
func NewEventRepo(db *DB) *EventRepo { return &EventRepo{db: db, now: time.Now} }

const eventColumns = `manager_id, status, fields, details, rsvp_settings, collections, ver, updated_at`

// Get returns a single event owned by managerID.
func (r *EventRepo) Get(ctx context.Context, managerID uuid.UUID, publicID string) (*model.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE public_id=$1 AND manager_id=$2`
	ev, err := scanEvent(r.db.Pool.QueryRow(ctx, q, publicID, managerID), publicID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return ev, nil
}

// Update locks the event row, applies fn and stores the result with ver+1.
// A missing row is created at ver 1. A row owned by another manager reads as
// not found.
func (r *EventRepo) Update(
	ctx context.Context, managerID uuid.UUID, publicID string, fn repository.UpdateFunc,
) (out *model.Event, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			out, err = nil, e
		}
	}()

	const sel = `SELECT ` + eventColumns + ` FROM events WHERE public_id=$1 FOR UPDATE`
	cur, scanErr := scanEvent(tx.QueryRow(ctx, sel, publicID), publicID)
	switch {
	case scanErr == nil:
		if cur.ManagerID != managerID {
			return nil, errs.ErrNotFound
		}
	case errors.Is(scanErr, pgx.ErrNoRows):
		cur = nil
	default:
		return nil, scanErr
	}

	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	next.PublicID = publicID
	next.ManagerID = managerID
	next.UpdatedAt = r.now().UTC()

	fields, details, rsvp, colls, err := encodeEvent(next)
	if err != nil {
		return nil, err
	}

	prevView := jsonval.Object{}
	if cur == nil {
		next.Ver = 1
		const ins = `INSERT INTO events (public_id, manager_id, status, fields, details, rsvp_settings, collections, ver, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
		if _, err = tx.Exec(ctx, ins, publicID, managerID, string(next.Status), fields, details, rsvp, colls, next.Ver, next.UpdatedAt); err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("event %s: %w", publicID, errs.ErrVersionConflict)
			}
			return nil, err
		}
	} else {
		prevView = cur.View()
		next.Ver = cur.Ver + 1
		const upd = `UPDATE events SET status=$2, fields=$3, details=$4, rsvp_settings=$5, collections=$6, ver=$7, updated_at=$8 WHERE public_id=$1`
		if _, err = tx.Exec(ctx, upd, publicID, string(next.Status), fields, details, rsvp, colls, next.Ver, next.UpdatedAt); err != nil {
			return nil, err
		}
	}

	patch, err := revisionPatch(prevView, next.View())
	if err != nil {
		return nil, err
	}
	const rev = `INSERT INTO event_revisions (public_id, ver, patch, created_at) VALUES ($1,$2,$3,$4)`
	if _, err = tx.Exec(ctx, rev, publicID, next.Ver, patch, next.UpdatedAt); err != nil {
		return nil, err
	}
	return next, nil
}

// History returns recorded revisions of an event, newest first.
func (r *EventRepo) History(ctx context.Context, managerID uuid.UUID, publicID string, limit int) ([]model.Revision, error) {
	const q = `
SELECT r.ver, r.patch, r.created_at
FROM event_revisions r JOIN events e ON e.public_id = r.public_id
WHERE r.public_id=$1 AND e.manager_id=$2
ORDER BY r.ver DESC
LIMIT $3`
	rows, err := r.db.Pool.Query(ctx, q, publicID, managerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Revision
	for rows.Next() {
		rv := model.Revision{PublicID: publicID}
		if err = rows.Scan(&rv.Ver, &rv.Patch, &rv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func scanEvent(row pgx.Row, publicID string) (*model.Event, error) {
	var (
		ev                                 = model.Event{PublicID: publicID}
		status                             string
		fields, details, rsvp, collections []byte
	)
	if err := row.Scan(&ev.ManagerID, &status, &fields, &details, &rsvp, &collections, &ev.Ver, &ev.UpdatedAt); err != nil {
		return nil, err
	}
	ev.Status = model.Status(status)

	for _, col := range []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"fields", fields, &ev.Fields},
		{"details", details, &ev.Details},
		{"rsvp_settings", rsvp, &ev.RSVP},
		{"collections", collections, &ev.Collections},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dst); err != nil {
			return nil, fmt.Errorf("decode %s: %w", col.name, err)
		}
	}
	if ev.Fields == nil {
		ev.Fields = jsonval.Object{}
	}
	return &ev, nil
}

// encodeEvent renders the JSONB columns. A nil sub-document is stored as NULL.
func encodeEvent(ev *model.Event) (fields, details, rsvp, colls []byte, err error) {
	enc := func(name string, v any, null bool) []byte {
		if err != nil || null {
			return nil
		}
		b, e := json.Marshal(v)
		if e != nil {
			err = fmt.Errorf("encode %s: %w", name, e)
			return nil
		}
		return b
	}
	f := ev.Fields
	if f == nil {
		f = jsonval.Object{}
	}
	c := ev.Collections
	if c == nil {
		c = map[string]jsonval.Array{}
	}
	fields = enc("fields", f, false)
	details = enc("details", ev.Details, ev.Details == nil)
	rsvp = enc("rsvp_settings", ev.RSVP, ev.RSVP == nil)
	colls = enc("collections", c, false)
	return fields, details, rsvp, colls, err
}

// revisionPatch is the RFC 7386 merge patch turning prev into next.
func revisionPatch(prev, next jsonval.Object) ([]byte, error) {
	a, err := json.Marshal(prev)
	if err != nil {
		return nil, fmt.Errorf("encode previous view: %w", err)
	}
	b, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("encode view: %w", err)
	}
	patch, err := jsonpatch.CreateMergePatch(a, b)
	if err != nil {
		return nil, fmt.Errorf("revision patch: %w", err)
	}
	return patch, nil
}
