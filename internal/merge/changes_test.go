package merge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/event-keeper/internal/changeset"
	"github.com/and161185/event-keeper/internal/errs"
	"github.com/and161185/event-keeper/internal/jsonval"
	"github.com/and161185/event-keeper/internal/model"
	"github.com/and161185/event-keeper/internal/reconcile"
	"github.com/and161185/event-keeper/internal/tracker"
)

func TestApplyChanges_MainEventExplicitPresence(t *testing.T) {
	t.Parallel()

	stored := storedEvent()
	out, err := ApplyChanges(stored, &changeset.ChangeSet{
		MainEvent: obj{"location": nil, "maxGuests": 150.0, "title": "Renamed"},
	})
	require.NoError(t, err)

	require.Equal(t, "Renamed", out.Fields["title"])
	require.Equal(t, int64(150), out.Fields["capacity"])
	require.Nil(t, out.Details["location"])
	require.Equal(t, "B", out.Details["timezone"])
	require.Len(t, out.Details["whatsapp_templates"], 2)
	require.Equal(t, "A", stored.Details["location"])
}

func TestApplyChanges_Collections(t *testing.T) {
	t.Parallel()

	out, err := ApplyChanges(storedEvent(), &changeset.ChangeSet{
		Collections: map[string]reconcile.Result{
			"subEvents": {
				Added:    arr{obj{"id": -1.0, "name": "Party"}},
				Modified: obj{"1": obj{"id": 1.0, "name": "Vows"}},
				Removed:  arr{2.0},
			},
			"guests": {
				Added: arr{obj{"name": "Bob"}},
			},
		},
	})
	require.NoError(t, err)

	require.Equal(t, arr{
		obj{"id": 1.0, "name": "Vows"},
		obj{"id": 3.0, "name": "Party"},
	}, out.Collections["subEvents"])

	guests := out.Collections["guests"]
	require.Len(t, guests, 2)
	require.Equal(t, "g1", guests[0].(obj)["public_id"])
	require.NotEmpty(t, guests[1].(obj)["public_id"])
}

// An id removed in the same change set is not handed to an added element,
// so a writer still holding the removed element gets a conflict.
func TestApplyChanges_RemovedIDNotReused(t *testing.T) {
	t.Parallel()

	stored := storedEvent()
	out, err := ApplyChanges(stored, &changeset.ChangeSet{
		Collections: map[string]reconcile.Result{
			"subEvents": {
				Added:   arr{obj{"id": -1.0, "name": "New"}},
				Removed: arr{2.0},
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, arr{
		obj{"id": 1.0, "name": "Ceremony"},
		obj{"id": 3.0, "name": "New"},
	}, out.Collections["subEvents"])

	_, err = ApplyChanges(out, &changeset.ChangeSet{
		Collections: map[string]reconcile.Result{
			"subEvents": {Modified: obj{"2": obj{"id": 2.0, "name": "Stale dinner"}}},
		},
	})
	require.ErrorIs(t, err, errs.ErrVersionConflict)
}

func TestApplyChanges_ModifiedMissingIsConflict(t *testing.T) {
	t.Parallel()

	_, err := ApplyChanges(storedEvent(), &changeset.ChangeSet{
		Collections: map[string]reconcile.Result{
			"subEvents": {Modified: obj{"7": obj{"id": 7.0, "name": "Ghost"}}},
		},
	})
	require.ErrorIs(t, err, errs.ErrVersionConflict)
}

func TestApplyChanges_AddedDuplicateIsConflict(t *testing.T) {
	t.Parallel()

	_, err := ApplyChanges(storedEvent(), &changeset.ChangeSet{
		Collections: map[string]reconcile.Result{
			"guests": {Added: arr{obj{"public_id": "g1", "name": "Ann again"}}},
		},
	})
	require.ErrorIs(t, err, errs.ErrVersionConflict)
}

func TestApplyChanges_RemovedUnknownIgnored(t *testing.T) {
	t.Parallel()

	out, err := ApplyChanges(storedEvent(), &changeset.ChangeSet{
		Collections: map[string]reconcile.Result{"subEvents": {Removed: arr{99.0}}},
	})
	require.NoError(t, err)
	require.Len(t, out.Collections["subEvents"], 2)
}

func TestApplyChanges_RSVP(t *testing.T) {
	t.Parallel()

	out, err := ApplyChanges(storedEvent(), &changeset.ChangeSet{RSVPSettings: obj{"theme": "dark"}})
	require.NoError(t, err)
	require.Equal(t, obj{"theme": "dark", "pageTitle": "Join us"}, out.RSVP)

	out, err = ApplyChanges(storedEvent(), &changeset.ChangeSet{ClearRSVPSettings: true})
	require.NoError(t, err)
	require.Nil(t, out.RSVP)
}

func TestApplyChanges_Validation(t *testing.T) {
	t.Parallel()

	_, err := ApplyChanges(storedEvent(), &changeset.ChangeSet{MainEvent: obj{"isPrivate": "yes"}})
	require.ErrorIs(t, err, errs.ErrInvalidRequest)

	_, err = ApplyChanges(storedEvent(), &changeset.ChangeSet{MainEvent: obj{"title": nil}})
	require.ErrorIs(t, err, errs.ErrInvalidRequest)

	_, err = ApplyChanges(nil, &changeset.ChangeSet{MainEvent: obj{"title": "x"}})
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestApplyChanges_EmptyIsCopy(t *testing.T) {
	t.Parallel()

	stored := storedEvent()
	out, err := ApplyChanges(stored, nil)
	require.NoError(t, err)
	require.Equal(t, stored, out)
	require.NotSame(t, stored, out)
}

// A session edit followed by ApplyChanges reproduces the edited view.
func TestApplyChanges_TrackerRoundTrip(t *testing.T) {
	t.Parallel()

	stored := storedEvent()
	s := tracker.New()
	s.Initialize(stored.View())

	s.Update(obj{
		"title":        "Renamed",
		"location":     nil,
		"rsvpSettings": obj{"theme": "dark"},
		"subEvents":    arr{obj{"id": 1.0, "name": "Vows"}},
	})
	env := s.Payload()
	require.NotNil(t, env)

	out, err := ApplyChanges(stored, env.Changes)
	require.NoError(t, err)
	require.True(t, jsonval.Equal(s.FullData(), out.View()), "merged view differs from working copy")
	require.Equal(t, model.StatusDraft, out.Status)
}
