// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/event-keeper/internal/jsonval"
)

// Status is the publication state of an event.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusDraft, StatusPublished:
		return Status(s), true
	}
	return "", false
}

// Event is a stored event document, including its sub-documents,
// collections and versioning metadata.
type Event struct {
	PublicID    string                   // client-visible identifier
	ManagerID   uuid.UUID                // owner (JWT subject)
	Status      Status                   // draft | published
	Fields      jsonval.Object           // top-level stored fields (title, start_date, capacity, ...)
	Details     jsonval.Object           // details sub-document, nil when never written
	RSVP        jsonval.Object           // RSVP page settings, nil when never written
	Collections map[string]jsonval.Array // identity-keyed collections by name
	Ver         int64                    // monotonically increasing version (>= 1 once stored)
	UpdatedAt   time.Time
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	out := *e
	out.Fields = jsonval.CloneObject(e.Fields)
	out.Details = jsonval.CloneObject(e.Details)
	out.RSVP = jsonval.CloneObject(e.RSVP)
	if e.Collections != nil {
		out.Collections = make(map[string]jsonval.Array, len(e.Collections))
		for name, items := range e.Collections {
			if items == nil {
				out.Collections[name] = nil
				continue
			}
			out.Collections[name] = jsonval.Clone(items).(jsonval.Array)
		}
	}
	return &out
}

// View projects the stored event into the client document shape: request
// field names, the RSVP settings sub-document and every known collection
// (empty when never written). Stored keys that are absent stay absent.
func (e *Event) View() jsonval.Object {
	v := jsonval.Object{
		KeyPublicID: e.PublicID,
		KeyStatus:   string(e.Status),
	}
	for _, f := range TopLevelFields {
		if val, ok := e.Fields[f.StoredKey]; ok {
			v[f.RequestKey] = jsonval.Clone(val)
		}
	}
	for _, f := range DetailsFields {
		if val, ok := e.Details[f.StoredKey]; ok {
			v[f.RequestKey] = jsonval.Clone(val)
		}
	}
	if e.RSVP != nil {
		v[KeyRSVPSettings] = jsonval.CloneObject(e.RSVP)
	}
	for _, c := range Collections {
		items := e.Collections[c.Name]
		if items == nil {
			items = jsonval.Array{}
		}
		v[c.Name] = jsonval.Clone(items)
	}
	return v
}

// ConflictToken fingerprints the client view of the event.
func (e *Event) ConflictToken() string {
	return jsonval.Fingerprint(e.View())
}

// Revision is one recorded write: an RFC 7386 merge patch from the previous
// view to the view at Ver.
type Revision struct {
	PublicID  string
	Ver       int64
	Patch     []byte
	CreatedAt time.Time
}
