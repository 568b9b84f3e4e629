// Package tracker holds the client-side editing session: a baseline snapshot
// of an event document, a working copy, and the diff between them.
package tracker

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/event-keeper/internal/changeset"
	"github.com/and161185/event-keeper/internal/jsonval"
	"github.com/and161185/event-keeper/internal/model"
	"github.com/and161185/event-keeper/internal/reconcile"
)

// Session tracks changes of one document in one editor. It is safe for
// concurrent use; updates are applied whole, in call order.
//
// Every method is a no-op (or returns the zero value) until Initialize.
type Session struct {
	mu sync.RWMutex

	baseline  jsonval.Object
	working   jsonval.Object
	lastSaved time.Time
	token     string

	now func() time.Time
	log *zap.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the time source used for save and payload timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.log = l }
}

// New returns an uninitialized session.
func New(opts ...Option) *Session {
	s := &Session{now: time.Now, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Initialize starts tracking doc. Unsaved changes of a previous document are
// discarded. doc is copied; later changes to it are not observed.
func (s *Session) Initialize(doc jsonval.Object) {
	if doc == nil {
		doc = jsonval.Object{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.baseline = jsonval.CloneObject(doc)
	s.working = jsonval.CloneObject(doc)
	s.lastSaved = s.now()
	s.token = jsonval.Fingerprint(s.baseline)
	s.log.Debug("tracking initialized", zap.String("conflict_token", s.token))
}

// Update merges partial into the working copy. A plain object value is merged
// key by key into the existing object at that key; any other value, arrays
// and null included, replaces it.
func (s *Session) Update(partial jsonval.Object) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.working == nil {
		return
	}
	next := make(jsonval.Object, len(s.working)+len(partial))
	for k, v := range s.working {
		next[k] = v
	}
	for k, v := range partial {
		upd, ok := jsonval.AsObject(v)
		if !ok || upd == nil {
			next[k] = jsonval.Clone(v)
			continue
		}
		merged := jsonval.Object{}
		if prev, ok := jsonval.AsObject(s.working[k]); ok {
			for pk, pv := range prev {
				merged[pk] = pv
			}
		}
		for uk, uv := range upd {
			merged[uk] = jsonval.Clone(uv)
		}
		next[k] = merged
	}
	s.working = next
}

// Changes returns the difference between baseline and working copy, or nil
// when nothing tracked differs. The result shares nothing with the session.
func (s *Session) Changes() *changeset.ChangeSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changesLocked()
}

func (s *Session) changesLocked() *changeset.ChangeSet {
	if s.baseline == nil || s.working == nil {
		return nil
	}
	cs := &changeset.ChangeSet{Collections: map[string]reconcile.Result{}}

	for _, f := range model.MainEventFields {
		cur := s.working[f]
		if !jsonval.Equal(s.baseline[f], cur) {
			if cs.MainEvent == nil {
				cs.MainEvent = jsonval.Object{}
			}
			cs.MainEvent[f] = jsonval.Clone(cur)
		}
	}

	for _, c := range model.Collections {
		orig, _ := jsonval.AsArray(s.baseline[c.Name])
		cur, _ := jsonval.AsArray(s.working[c.Name])
		res := reconcile.Collections(orig, cur, c.IdentityField)
		if !res.Empty() {
			cs.Collections[c.Name] = cloneResult(res)
		}
	}

	s.diffRSVP(cs)

	if cs.Empty() {
		return nil
	}
	return cs
}

// diffRSVP records the changed sub-fields of the RSVP settings. When one side
// has no sub-document the whole working value is taken.
func (s *Session) diffRSVP(cs *changeset.ChangeSet) {
	origRaw, curRaw := s.baseline[model.KeyRSVPSettings], s.working[model.KeyRSVPSettings]
	if jsonval.Equal(origRaw, curRaw) {
		return
	}
	orig, origOK := jsonval.AsObject(origRaw)
	cur, curOK := jsonval.AsObject(curRaw)

	switch {
	case jsonval.IsNull(curRaw):
		cs.ClearRSVPSettings = true
	case !curOK:
		s.log.Debug("rsvp settings ignored: not an object")
	case !origOK || orig == nil:
		if len(cur) > 0 {
			cs.RSVPSettings = jsonval.CloneObject(cur)
		}
	default:
		diff := jsonval.Object{}
		for k, v := range cur {
			if pv, ok := orig[k]; !ok || !jsonval.Equal(pv, v) {
				diff[k] = jsonval.Clone(v)
			}
		}
		for k := range orig {
			if _, ok := cur[k]; !ok {
				diff[k] = nil
			}
		}
		if len(diff) > 0 {
			cs.RSVPSettings = diff
		}
	}
}

// HasUnsavedChanges compares the whole working copy with the baseline,
// including keys the change set does not track.
func (s *Session) HasUnsavedChanges() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.baseline == nil || s.working == nil {
		return false
	}
	return !jsonval.Equal(s.baseline, s.working)
}

// MarkAsSaved makes the working copy the new baseline. Calling it again
// without an Update in between changes nothing but the save time.
func (s *Session) MarkAsSaved() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.working == nil {
		return
	}
	s.baseline = jsonval.CloneObject(s.working)
	s.lastSaved = s.now()
	s.token = jsonval.Fingerprint(s.baseline)
	s.log.Debug("baseline saved", zap.String("conflict_token", s.token))
}

// FullData returns a copy of the working document, or nil.
func (s *Session) FullData() jsonval.Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return jsonval.CloneObject(s.working)
}

// Baseline returns a copy of the baseline document, or nil.
func (s *Session) Baseline() jsonval.Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return jsonval.CloneObject(s.baseline)
}

// ConflictToken is the fingerprint of the current baseline.
func (s *Session) ConflictToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// LastSaved is the time the baseline was established.
func (s *Session) LastSaved() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSaved
}

// Initialized reports whether the session tracks a document.
func (s *Session) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseline != nil
}

func cloneResult(r reconcile.Result) reconcile.Result {
	out := reconcile.Result{
		Added:    jsonval.Array{},
		Modified: jsonval.Object{},
		Removed:  jsonval.Array{},
	}
	for _, v := range r.Added {
		out.Added = append(out.Added, jsonval.Clone(v))
	}
	for k, v := range r.Modified {
		out.Modified[k] = jsonval.Clone(v)
	}
	for _, v := range r.Removed {
		out.Removed = append(out.Removed, jsonval.Clone(v))
	}
	return out
}
