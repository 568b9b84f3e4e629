package tracker

import (
	"math"
	"time"

	"github.com/and161185/event-keeper/internal/changeset"
	"github.com/and161185/event-keeper/internal/jsonval"
)

// Payload wraps the current change set with save metadata. It returns nil
// when there is nothing to send.
func (s *Session) Payload() *changeset.Envelope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.payloadLocked()
}

func (s *Session) payloadLocked() *changeset.Envelope {
	cs := s.changesLocked()
	if cs == nil {
		return nil
	}
	return &changeset.Envelope{
		Changes: cs,
		Metadata: changeset.Metadata{
			LastSaved:     s.lastSaved,
			ConflictToken: s.token,
			Timestamp:     s.now(),
		},
	}
}

// SizeReport compares the encoded size of the full document with the
// incremental payload.
type SizeReport struct {
	FullSize        int  `json:"fullSize"`
	IncrementalSize int  `json:"incrementalSize"`
	Reduction       int  `json:"reduction"` // percent saved, 0 without changes
	HasChanges      bool `json:"hasChanges"`
}

// SizeComparison reports how much smaller the incremental payload is.
func (s *Session) SizeComparison() SizeReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sizeLocked()
}

func (s *Session) sizeLocked() SizeReport {
	full := s.working
	if full == nil {
		full = jsonval.Object{}
	}
	rep := SizeReport{FullSize: jsonval.Size(full)}

	env := s.payloadLocked()
	if env == nil {
		rep.IncrementalSize = jsonval.Size(jsonval.Object{})
		return rep
	}
	rep.HasChanges = true
	rep.IncrementalSize = jsonval.Size(env.ToObject())
	if rep.FullSize > 0 {
		rep.Reduction = int(math.Round((1 - float64(rep.IncrementalSize)/float64(rep.FullSize)) * 100))
	}
	return rep
}

// DebugInfo is a snapshot of the session state for troubleshooting.
type DebugInfo struct {
	HasOriginalData   bool       `json:"hasOriginalData"`
	HasCurrentData    bool       `json:"hasCurrentData"`
	HasUnsavedChanges bool       `json:"hasUnsavedChanges"`
	LastSaved         time.Time  `json:"lastSaved"`
	ConflictToken     string     `json:"conflictToken"`
	Payload           SizeReport `json:"payloadComparison"`
}

// DebugInfo returns the session state at one instant.
func (s *Session) DebugInfo() DebugInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return DebugInfo{
		HasOriginalData:   s.baseline != nil,
		HasCurrentData:    s.working != nil,
		HasUnsavedChanges: s.baseline != nil && !jsonval.Equal(s.baseline, s.working),
		LastSaved:         s.lastSaved,
		ConflictToken:     s.token,
		Payload:           s.sizeLocked(),
	}
}

// State is the persisted form of a session.
type State struct {
	Baseline      jsonval.Object `json:"baseline"`
	Working       jsonval.Object `json:"working"`
	LastSaved     time.Time      `json:"lastSaved"`
	ConflictToken string         `json:"conflictToken"`
}

// Export returns a copy of the session state.
func (s *Session) Export() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Baseline:      jsonval.CloneObject(s.baseline),
		Working:       jsonval.CloneObject(s.working),
		LastSaved:     s.lastSaved,
		ConflictToken: s.token,
	}
}

// Restore replaces the session state with st. A state without a baseline
// leaves the session uninitialized. A missing working copy starts equal to
// the baseline; a missing token is recomputed.
func (s *Session) Restore(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st.Baseline == nil {
		s.baseline, s.working, s.token, s.lastSaved = nil, nil, "", time.Time{}
		return
	}
	s.baseline = jsonval.CloneObject(st.Baseline)
	if st.Working != nil {
		s.working = jsonval.CloneObject(st.Working)
	} else {
		s.working = jsonval.CloneObject(st.Baseline)
	}
	s.lastSaved = st.LastSaved
	s.token = st.ConflictToken
	if s.token == "" {
		s.token = jsonval.Fingerprint(s.baseline)
	}
}
