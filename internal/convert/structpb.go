// Package convert maps between domain values and the structpb messages used
// on the wire.
package convert

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/event-keeper/internal/jsonval"
	"github.com/and161185/event-keeper/internal/model"
)

// Result keys.
const (
	KeyEvent         = "event"
	KeyConflictToken = "conflictToken"
	KeyVer           = "ver"
	KeyStatus        = "status"
	KeyUpdatedAt     = "updatedAt"
	KeyRevisions     = "revisions"
	KeyPatch         = "patch"
	KeyCreatedAt     = "createdAt"
	KeyLimit         = "limit"
)

// --- generic ---

// ToStruct converts o into a Struct. Values are first normalized into plain
// JSON kinds, so time values travel as RFC 3339 strings.
func ToStruct(o jsonval.Object) (*structpb.Struct, error) {
	if o == nil {
		o = jsonval.Object{}
	}
	norm, err := jsonval.NormalizeObject(o)
	if err != nil {
		return nil, err
	}
	s, err := structpb.NewStruct(norm)
	if err != nil {
		return nil, fmt.Errorf("to struct: %w", err)
	}
	return s, nil
}

// FromStruct converts s into an Object. Explicit nulls stay present as nil.
func FromStruct(s *structpb.Struct) jsonval.Object {
	if s == nil {
		return jsonval.Object{}
	}
	return s.AsMap()
}

// --- event result (server -> client) ---

// EventResult is the decoded response of every event RPC.
type EventResult struct {
	Event         jsonval.Object
	ConflictToken string
	Ver           int64
	Status        string
	UpdatedAt     time.Time
}

// ToEventResult renders {event, conflictToken, ver, status, updatedAt}.
func ToEventResult(ev *model.Event) (*structpb.Struct, error) {
	return ToStruct(jsonval.Object{
		KeyEvent:         ev.View(),
		KeyConflictToken: ev.ConflictToken(),
		KeyVer:           ev.Ver,
		KeyStatus:        string(ev.Status),
		KeyUpdatedAt:     ev.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
}

// FromEventResult decodes an event response.
func FromEventResult(s *structpb.Struct) (EventResult, error) {
	o := FromStruct(s)
	var res EventResult

	ev, ok := jsonval.AsObject(o[KeyEvent])
	if !ok || ev == nil {
		return res, fmt.Errorf("event result: missing %s", KeyEvent)
	}
	res.Event = ev
	res.ConflictToken, _ = o[KeyConflictToken].(string)
	res.Status, _ = o[KeyStatus].(string)
	if n, ok := jsonval.Number(o[KeyVer]); ok {
		res.Ver = int64(n)
	}
	if ts, _ := o[KeyUpdatedAt].(string); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return res, fmt.Errorf("event result: %s: %w", KeyUpdatedAt, err)
		}
		res.UpdatedAt = t
	}
	return res, nil
}

// --- history ---

// ToHistoryResult renders {revisions: [{ver, patch, createdAt}]}.
func ToHistoryResult(revs []model.Revision) (*structpb.Struct, error) {
	items := make(jsonval.Array, 0, len(revs))
	for _, rv := range revs {
		var patch any
		if len(rv.Patch) > 0 {
			if err := json.Unmarshal(rv.Patch, &patch); err != nil {
				return nil, fmt.Errorf("revision %d: %w", rv.Ver, err)
			}
		}
		items = append(items, jsonval.Object{
			KeyVer:       rv.Ver,
			KeyPatch:     patch,
			KeyCreatedAt: rv.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return ToStruct(jsonval.Object{KeyRevisions: items})
}

// FromHistoryResult decodes a history response.
func FromHistoryResult(publicID string, s *structpb.Struct) ([]model.Revision, error) {
	items, _ := jsonval.AsArray(FromStruct(s)[KeyRevisions])
	out := make([]model.Revision, 0, len(items))
	for i, it := range items {
		o, ok := jsonval.AsObject(it)
		if !ok {
			return nil, fmt.Errorf("revisions[%d]: want object", i)
		}
		rv := model.Revision{PublicID: publicID}
		if n, ok := jsonval.Number(o[KeyVer]); ok {
			rv.Ver = int64(n)
		}
		if p, ok := o[KeyPatch]; ok && p != nil {
			b, err := json.Marshal(p)
			if err != nil {
				return nil, fmt.Errorf("revisions[%d]: %w", i, err)
			}
			rv.Patch = b
		}
		if ts, _ := o[KeyCreatedAt].(string); ts != "" {
			t, err := time.Parse(time.RFC3339Nano, ts)
			if err != nil {
				return nil, fmt.Errorf("revisions[%d]: %w", i, err)
			}
			rv.CreatedAt = t
		}
		out = append(out, rv)
	}
	return out, nil
}
