package jsonval

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func sampleDocument() Object {
	return Object{
		"public_id":    "evt_1",
		"title":        "Wedding",
		"startDate":    time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
		"maxGuests":    120.0,
		"isPrivate":    true,
		"rsvpDeadline": nil,
		"rsvpSettings": Object{
			"pageTitle":       "Join us",
			"customQuestions": Array{Object{"q": "Diet?"}},
		},
		"subEvents": Array{
			Object{"id": 1.0, "title": "Ceremony"},
			Object{"id": 2.0, "title": "Reception"},
		},
	}
}

func TestClone_RoundTripEqual(t *testing.T) {
	t.Parallel()

	d := sampleDocument()
	c1 := Clone(d)
	c2 := Clone(c1)
	require.True(t, Equal(c2, d))
	if diff := cmp.Diff(d, c2); diff != "" {
		t.Fatalf("clone mismatch (-want +got):\n%s", diff)
	}
}

func TestClone_NoSharedState(t *testing.T) {
	t.Parallel()

	d := sampleDocument()
	c1 := CloneObject(d)
	c2 := CloneObject(c1)

	c2["rsvpSettings"].(Object)["pageTitle"] = "changed"
	c2["subEvents"].(Array)[0].(Object)["title"] = "changed"
	c2["subEvents"] = append(c2["subEvents"].(Array), Object{"id": 3.0})

	require.Equal(t, "Join us", c1["rsvpSettings"].(Object)["pageTitle"])
	require.Equal(t, "Ceremony", c1["subEvents"].(Array)[0].(Object)["title"])
	require.Len(t, c1["subEvents"], 2)
	require.True(t, Equal(c1, d))
}

func TestClone_NilAndScalars(t *testing.T) {
	t.Parallel()

	require.Nil(t, Clone(nil))
	require.Nil(t, CloneObject(nil))
	require.Equal(t, "x", Clone("x"))
	require.Equal(t, 1.5, Clone(1.5))
}
