package jsonval

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEqual_Primitives(t *testing.T) {
	t.Parallel()

	require.True(t, Equal(nil, nil))
	require.True(t, Equal("a", "a"))
	require.False(t, Equal("a", "b"))
	require.True(t, Equal(true, true))
	require.False(t, Equal(true, false))
	require.False(t, Equal("1", 1))
	require.False(t, Equal(nil, ""))
	require.False(t, Equal(false, nil))
}

func TestEqual_NumbersAcrossTypes(t *testing.T) {
	t.Parallel()

	require.True(t, Equal(1, 1.0))
	require.True(t, Equal(int64(42), json.Number("42")))
	require.True(t, Equal(uint8(3), float32(3)))
	require.False(t, Equal(1, 2))
	require.False(t, Equal(json.Number("x"), 0))
	require.True(t, Equal(json.Number("1e2"), int64(100)))
	require.True(t, Equal(json.Number("0.5"), 0.5))
}

func TestEqual_LargeIntegersExact(t *testing.T) {
	t.Parallel()

	require.False(t, Equal(int64(9007199254740993), int64(9007199254740992)))
	require.False(t, Equal(json.Number("9007199254740993"), float64(9007199254740992)))
	require.False(t, Equal(json.Number("9007199254740993"), json.Number("9007199254740992")))
	require.True(t, Equal(json.Number("9007199254740993"), int64(9007199254740993)))
	require.True(t, Equal(uint64(1<<63), json.Number("9223372036854775808")))
}

func TestEqual_Arrays(t *testing.T) {
	t.Parallel()

	require.True(t, Equal(Array{1, "a", nil}, Array{1.0, "a", nil}))
	require.False(t, Equal(Array{1, 2}, Array{2, 1}), "order sensitive")
	require.False(t, Equal(Array{1}, Array{1, 1}))
	require.False(t, Equal(Array{}, Object{}))
	require.False(t, Equal(Object{}, Array{}))
	require.True(t, Equal([]map[string]any{{"id": 1}}, Array{Object{"id": 1}}))
}

func TestEqual_Objects(t *testing.T) {
	t.Parallel()

	a := Object{"x": 1, "nested": Object{"list": Array{Object{"k": "v"}}}}
	b := Object{"nested": Object{"list": Array{Object{"k": "v"}}}, "x": 1.0}
	require.True(t, Equal(a, b))

	b["nested"].(Object)["list"].(Array)[0].(Object)["k"] = "w"
	require.False(t, Equal(a, b))

	require.False(t, Equal(Object{"a": 1}, Object{"b": 1}))
	require.False(t, Equal(Object{"a": 1}, Object{"a": 1, "b": 2}))
}

func TestEqual_NullVersusAbsent(t *testing.T) {
	t.Parallel()

	require.False(t, Equal(Object{"location": nil}, Object{}))
	require.True(t, Equal(Object{"location": nil}, Object{"location": nil}))
	require.True(t, Equal(Object(nil), nil))
	require.True(t, Equal(Array(nil), nil))
	require.False(t, Equal(Array{}, nil))
}

func TestEqual_Time(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 7, 15, 18, 0, 0, 0, time.UTC)
	require.True(t, Equal(ts, ts.In(time.FixedZone("x", 3600))))
	require.False(t, Equal(ts, ts.Add(time.Second)))
	require.False(t, Equal(ts, ts.Format(time.RFC3339)))
}

func TestNumberLabel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   any
		want string
	}{
		{1.0, "1"},
		{int64(7), "7"},
		{json.Number("7.0"), "7"},
		{0.5, "0.5"},
		{int64(9007199254740993), "9007199254740993"},
		{json.Number("9007199254740993"), "9007199254740993"},
	}
	for _, tc := range cases {
		got, ok := NumberLabel(tc.in)
		require.True(t, ok)
		require.Equal(t, tc.want, got)
	}

	_, ok := NumberLabel("7")
	require.False(t, ok)
}
