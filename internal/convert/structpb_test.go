package convert

import (
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/event-keeper/internal/jsonval"
	"github.com/and161185/event-keeper/internal/model"
)

func TestToFromStruct_KeepsNullAndAbsent(t *testing.T) {
	t.Parallel()

	in := jsonval.Object{
		"location": nil,
		"title":    "Wedding",
		"guests":   jsonval.Array{jsonval.Object{"public_id": "g1"}},
		"capacity": int64(120),
	}
	s, err := ToStruct(in)
	require.NoError(t, err)

	out := FromStruct(s)
	v, ok := out["location"]
	require.True(t, ok)
	require.Nil(t, v)
	_, ok = out["timezone"]
	require.False(t, ok)
	require.True(t, jsonval.Equal(in, out))
}

func TestToStruct_TimeBecomesString(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s, err := ToStruct(jsonval.Object{"at": ts})
	require.NoError(t, err)
	require.Equal(t, "2026-01-02T03:04:05Z", s.GetFields()["at"].GetStringValue())
}

func TestFromStruct_Nil(t *testing.T) {
	t.Parallel()

	require.Equal(t, jsonval.Object{}, FromStruct(nil))
}

func TestEventResult_RoundTrip(t *testing.T) {
	t.Parallel()

	ev := &model.Event{
		PublicID:  "evt-1",
		ManagerID: uuid.Must(uuid.NewV4()),
		Status:    model.StatusPublished,
		Fields:    jsonval.Object{"title": "Wedding", "capacity": int64(80)},
		Details:   jsonval.Object{"location": nil},
		Ver:       7,
		UpdatedAt: time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC),
	}
	s, err := ToEventResult(ev)
	require.NoError(t, err)

	res, err := FromEventResult(s)
	require.NoError(t, err)
	require.Equal(t, int64(7), res.Ver)
	require.Equal(t, "published", res.Status)
	require.True(t, ev.UpdatedAt.Equal(res.UpdatedAt))
	require.Equal(t, ev.ConflictToken(), res.ConflictToken)
	require.True(t, jsonval.Equal(ev.View(), res.Event))
	// the client fingerprints the view it received; it must match the server's
	require.Equal(t, ev.ConflictToken(), jsonval.Fingerprint(res.Event))
}

func TestFromEventResult_MissingEvent(t *testing.T) {
	t.Parallel()

	s, err := structpb.NewStruct(map[string]any{"ver": 1})
	require.NoError(t, err)
	_, err = FromEventResult(s)
	require.Error(t, err)
}

func TestHistoryResult_RoundTrip(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	revs := []model.Revision{
		{PublicID: "evt-1", Ver: 2, Patch: []byte(`{"title":"B"}`), CreatedAt: ts},
		{PublicID: "evt-1", Ver: 1, Patch: []byte(`{"title":"A","location":null}`), CreatedAt: ts.Add(-time.Hour)},
	}
	s, err := ToHistoryResult(revs)
	require.NoError(t, err)

	got, err := FromHistoryResult("evt-1", s)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(2), got[0].Ver)
	require.JSONEq(t, `{"title":"B"}`, string(got[0].Patch))
	require.JSONEq(t, `{"title":"A","location":null}`, string(got[1].Patch))
	require.True(t, ts.Equal(got[0].CreatedAt))
}
