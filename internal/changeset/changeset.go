// Package changeset defines the minimal update payload exchanged between the
// change tracker and the merge engine, and its boundary validation.
package changeset

import (
	"encoding/json"
	"time"

	"github.com/and161185/event-keeper/internal/jsonval"
	"github.com/and161185/event-keeper/internal/model"
	"github.com/and161185/event-keeper/internal/reconcile"
)

// ChangeSet is the difference between a baseline and a working document.
type ChangeSet struct {
	// MainEvent holds the changed scalar fields with their new values.
	MainEvent jsonval.Object
	// Collections holds non-empty reconciliation results by collection name.
	Collections map[string]reconcile.Result
	// RSVPSettings holds the changed sub-fields of the RSVP settings
	// sub-document, or the whole sub-document when the baseline had none.
	RSVPSettings jsonval.Object
	// ClearRSVPSettings reports that the working copy dropped the sub-document.
	ClearRSVPSettings bool
}

// Empty reports whether the change set carries no change.
func (c *ChangeSet) Empty() bool {
	if c == nil {
		return true
	}
	if len(c.MainEvent) > 0 || len(c.RSVPSettings) > 0 || c.ClearRSVPSettings {
		return false
	}
	for _, r := range c.Collections {
		if !r.Empty() {
			return false
		}
	}
	return true
}

// ToObject renders the wire form:
// {mainEvent?, <collection>?: {added, modified, removed}, rsvpSettings?}.
// A cleared RSVP settings sub-document is rendered as an explicit null.
func (c *ChangeSet) ToObject() jsonval.Object {
	out := jsonval.Object{}
	if c == nil {
		return out
	}
	if len(c.MainEvent) > 0 {
		out[model.KeyMainEvent] = c.MainEvent
	}
	for _, def := range model.Collections {
		r, ok := c.Collections[def.Name]
		if !ok || r.Empty() {
			continue
		}
		out[def.Name] = jsonval.Object{
			"added":    nonNilArray(r.Added),
			"modified": nonNilObject(r.Modified),
			"removed":  nonNilArray(r.Removed),
		}
	}
	switch {
	case c.ClearRSVPSettings:
		out[model.KeyRSVPSettings] = nil
	case len(c.RSVPSettings) > 0:
		out[model.KeyRSVPSettings] = c.RSVPSettings
	}
	return out
}

// MarshalJSON encodes the wire form.
func (c *ChangeSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.ToObject())
}

// Metadata travels with a change set.
type Metadata struct {
	LastSaved     time.Time // when the baseline was established
	ConflictToken string    // fingerprint of the baseline
	Timestamp     time.Time // when the envelope was built
}

// Envelope is the payload sent on save.
type Envelope struct {
	Changes  *ChangeSet
	Metadata Metadata
}

// ToObject renders the wire form {changes, metadata}. Times are RFC 3339.
func (e *Envelope) ToObject() jsonval.Object {
	return jsonval.Object{
		"changes": e.Changes.ToObject(),
		"metadata": jsonval.Object{
			"lastSaved":     formatTime(e.Metadata.LastSaved),
			"conflictToken": e.Metadata.ConflictToken,
			"timestamp":     formatTime(e.Metadata.Timestamp),
		},
	}
}

// MarshalJSON encodes the wire form.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ToObject())
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nonNilArray(a jsonval.Array) jsonval.Array {
	if a == nil {
		return jsonval.Array{}
	}
	return a
}

func nonNilObject(o jsonval.Object) jsonval.Object {
	if o == nil {
		return jsonval.Object{}
	}
	return o
}
