package merge

import (
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/and161185/event-keeper/internal/errs"
	"github.com/and161185/event-keeper/internal/jsonval"
	"github.com/and161185/event-keeper/internal/model"
)

type obj = jsonval.Object
type arr = jsonval.Array

func storedEvent() *model.Event {
	return &model.Event{
		PublicID:  "evt-1",
		ManagerID: uuid.Must(uuid.NewV4()),
		Status:    model.StatusDraft,
		Fields: obj{
			"title":       "Wedding",
			"description": "Our day",
			"capacity":    120.0,
		},
		Details: obj{
			"location": "A",
			"timezone": "B",
			"whatsapp_templates": arr{
				obj{"id": 1.0, "body": "hi"},
				obj{"id": 2.0, "body": "bye"},
			},
		},
		RSVP: obj{"theme": "classic", "pageTitle": "Join us"},
		Collections: map[string]jsonval.Array{
			"subEvents": {obj{"id": 1.0, "name": "Ceremony"}, obj{"id": 2.0, "name": "Dinner"}},
			"guests":    {obj{"public_id": "g1", "name": "Ann"}},
		},
		Ver:       3,
		UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestApply_NullClearsAbsentKeeps(t *testing.T) {
	t.Parallel()

	stored := storedEvent()
	out, err := Apply(stored, obj{"public_id": "evt-1", "location": nil})
	require.NoError(t, err)

	v, ok := out.Details["location"]
	require.True(t, ok)
	require.Nil(t, v)
	require.Equal(t, "B", out.Details["timezone"])
	require.Equal(t, "Wedding", out.Fields["title"])
	require.Equal(t, "A", stored.Details["location"])
}

func TestApply_TemplatesKeptWhenAbsent(t *testing.T) {
	t.Parallel()

	stored := storedEvent()
	out, err := Apply(stored, obj{"title": "Renamed"})
	require.NoError(t, err)

	if diff := cmp.Diff(stored.Details["whatsapp_templates"], out.Details["whatsapp_templates"]); diff != "" {
		t.Fatalf("templates changed (-stored +merged):\n%s", diff)
	}
	require.Len(t, out.Details["whatsapp_templates"], 2)
}

func TestApply_TemplatesReplacedWhenPresent(t *testing.T) {
	t.Parallel()

	out, err := Apply(storedEvent(), obj{"whatsappTemplates": arr{obj{"id": 9.0, "body": "new"}}})
	require.NoError(t, err)
	require.Equal(t, arr{obj{"id": 9.0, "body": "new"}}, out.Details["whatsapp_templates"])
}

func TestApply_StoredUntouched(t *testing.T) {
	t.Parallel()

	stored := storedEvent()
	before := stored.Clone()

	_, err := Apply(stored, obj{
		"title":        "Changed",
		"maxGuests":    "80",
		"rsvpSettings": obj{"theme": "dark"},
		"subEvents":    arr{obj{"name": "Party"}},
		"status":       "published",
	})
	require.NoError(t, err)
	if diff := cmp.Diff(before, stored); diff != "" {
		t.Fatalf("stored event mutated:\n%s", diff)
	}
}

func TestApply_FieldMappingAndStatus(t *testing.T) {
	t.Parallel()

	out, err := Apply(storedEvent(), obj{
		"startDate":   "2026-06-01T15:00:00Z",
		"maxGuests":   "80",
		"isPrivate":   true,
		"status":      "published",
		"unknownKey":  "ignored",
		"description": nil,
	})
	require.NoError(t, err)

	require.Equal(t, "2026-06-01T15:00:00Z", out.Fields["start_date"])
	require.Equal(t, int64(80), out.Fields["capacity"])
	require.Equal(t, true, out.Details["is_private"])
	require.Equal(t, model.StatusPublished, out.Status)
	require.Nil(t, out.Fields["description"])
	_, leaked := out.Fields["unknownKey"]
	require.False(t, leaked)
}

func TestApply_StatusKeptWhenAbsent(t *testing.T) {
	t.Parallel()

	stored := storedEvent()
	stored.Status = model.StatusPublished
	out, err := Apply(stored, obj{"title": "x"})
	require.NoError(t, err)
	require.Equal(t, model.StatusPublished, out.Status)
}

func TestApply_RSVPMergedKeyByKey(t *testing.T) {
	t.Parallel()

	out, err := Apply(storedEvent(), obj{"rsvpSettings": obj{"theme": "dark", "subtitle": nil}})
	require.NoError(t, err)
	require.Equal(t, obj{"theme": "dark", "pageTitle": "Join us", "subtitle": nil}, out.RSVP)

	out, err = Apply(storedEvent(), obj{"rsvpSettings": nil})
	require.NoError(t, err)
	require.Nil(t, out.RSVP)
}

func TestApply_CollectionReplacedWholesale(t *testing.T) {
	t.Parallel()

	out, err := Apply(storedEvent(), obj{
		"subEvents": arr{obj{"id": 2.0, "name": "Dinner"}, obj{"id": -1.0, "name": "Party"}},
	})
	require.NoError(t, err)
	require.Equal(t, arr{
		obj{"id": 2.0, "name": "Dinner"},
		obj{"id": 3.0, "name": "Party"},
	}, out.Collections["subEvents"])
	require.Len(t, out.Collections["guests"], 1)
}

func TestApply_NewEvent(t *testing.T) {
	t.Parallel()

	req := obj{
		"public_id":     "evt-new",
		"title":         "Launch",
		"description":   "Product launch",
		"location":      "Berlin",
		"startDate":     "2026-09-01T10:00:00Z",
		"endDate":       "2026-09-01T18:00:00Z",
		"logo_url":      "https://cdn.example/logo.png",
		"maxGuests":     200.0,
		"eventType":     "conference",
		"isPrivate":     true,
		"requireRSVP":   true,
		"allowPlusOnes": false,
		"rsvpDeadline":  "2026-08-20",
		"timezone":      "Europe/Berlin",
		"status":        "published",
	}
	out, err := Apply(nil, req)
	require.NoError(t, err)

	require.Equal(t, "evt-new", out.PublicID)
	require.Equal(t, model.StatusPublished, out.Status)

	view := out.View()
	for k, v := range req {
		if k == "maxGuests" {
			require.EqualValues(t, 200, view[k])
			continue
		}
		require.Equal(t, v, view[k], k)
	}
	_, hasTemplates := out.Details["whatsapp_templates"]
	require.False(t, hasTemplates)
}

func TestApply_NewEventDefaults(t *testing.T) {
	t.Parallel()

	out, err := Apply(nil, obj{"title": "Minimal", "location": ""})
	require.NoError(t, err)

	require.Equal(t, model.StatusDraft, out.Status)
	require.Equal(t, obj{
		"location":        nil,
		"timezone":        nil,
		"event_type":      "event",
		"is_private":      false,
		"require_rsvp":    false,
		"allow_plus_ones": false,
		"rsvp_deadline":   nil,
	}, out.Details)
	require.Nil(t, out.Fields["capacity"])
	require.Nil(t, out.RSVP)
	require.Equal(t, jsonval.Array{}, out.Collections["guests"])
}

func TestApply_NewEventRequiresTitle(t *testing.T) {
	t.Parallel()

	_, err := Apply(nil, obj{"location": "Berlin"})
	require.ErrorIs(t, err, errs.ErrInvalidRequest)
}

func TestApply_AssignsGuestPublicIDs(t *testing.T) {
	t.Parallel()

	out, err := Apply(nil, obj{"title": "x", "guests": arr{obj{"name": "Ann"}}})
	require.NoError(t, err)

	g := out.Collections["guests"][0].(obj)
	id, ok := g["public_id"].(string)
	require.True(t, ok)
	_, err = uuid.FromString(id)
	require.NoError(t, err)
}

func TestValidate_RejectsBadShapes(t *testing.T) {
	t.Parallel()

	cases := map[string]obj{
		"title number":      {"title": 5.0},
		"empty title":       {"title": "  "},
		"bool as string":    {"isPrivate": "yes"},
		"capacity word":     {"maxGuests": "many"},
		"templates scalar":  {"whatsappTemplates": "hi"},
		"templates strings": {"whatsappTemplates": arr{"hi"}},
		"rsvp array":        {"rsvpSettings": arr{}},
		"rsvp overlay text": {"rsvpSettings": obj{"backgroundOverlay": "dark"}},
		"guests object":     {"guests": obj{}},
		"status unknown":    {"status": "archived"},
		"public id number":  {"public_id": 7.0},
		"token number":      {"conflictToken": 7.0},
		"duplicate ids":     {"subEvents": arr{obj{"id": 1.0, "name": "a"}, obj{"id": 1.0, "name": "b"}}},
		"duplicate guests":  {"guests": arr{obj{"public_id": "g1"}, obj{"public_id": "g1"}}},
	}
	for name, req := range cases {
		req := req
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Apply(storedEvent(), req)
			require.ErrorIs(t, err, errs.ErrInvalidRequest)
		})
	}
}

func TestValidate_PendingIdentitiesMayRepeat(t *testing.T) {
	t.Parallel()

	out, err := Apply(storedEvent(), obj{"subEvents": arr{
		obj{"id": -1.0, "name": "a"},
		obj{"id": -1.0, "name": "b"},
	}})
	require.NoError(t, err)
	require.Equal(t, arr{
		obj{"id": 3.0, "name": "a"},
		obj{"id": 4.0, "name": "b"},
	}, out.Collections["subEvents"])
}

func TestValidate_AggregatesProblems(t *testing.T) {
	t.Parallel()

	err := Validate(obj{"isPrivate": "yes", "maxGuests": "many", "status": 1.0})
	require.ErrorIs(t, err, errs.ErrInvalidRequest)
	require.Contains(t, err.Error(), "isPrivate")
	require.Contains(t, err.Error(), "maxGuests")
	require.Contains(t, err.Error(), "status")
}

func TestToInteger(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   any
		want any
		err  bool
	}{
		{in: 12.0, want: int64(12)},
		{in: 12.7, want: int64(12)},
		{in: "42", want: int64(42)},
		{in: " 7 ", want: int64(7)},
		{in: "", want: nil},
		{in: 0.0, want: nil},
		{in: nil, want: nil},
		{in: "x", err: true},
		{in: true, err: true},
	}
	for _, tc := range cases {
		got, err := toInteger(tc.in)
		if tc.err {
			require.Error(t, err, "%v", tc.in)
			continue
		}
		require.NoError(t, err, "%v", tc.in)
		require.Equal(t, tc.want, got, "%v", tc.in)
	}
}
