package views

import (
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeQuery_StatusAndTags(t *testing.T) {
	query := EncodeQuery(FilterState{
		"status": String("open"),
		"tags":   Strings("a", "b"),
	}, "").Encode()

	assert.Equal(t, "status=open&tags=a%2Cb", query)
	assert.NotContains(t, query, "view=")
}

func TestEncodeQuery_ActiveView(t *testing.T) {
	values := EncodeQuery(FilterState{"priority": String("high")}, "v1")

	assert.Equal(t, "v1", values.Get(ViewParam))
	assert.Equal(t, "high", values.Get("priority"))
}

func TestEncodeValue(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{"string", String("open"), "open"},
		{"integer", Int(42), "42"},
		{"fraction", Number(2.5), "2.5"},
		{"large", Number(1e21), "1e+21"},
		{"tiny", Number(1e-7), "1e-7"},
		{"bool", Bool(false), "false"},
		{"array", Strings("a", "b", "c"), "a,b,c"},
		{"struct", Struct(map[string]any{"min": 1.0, "max": 5.0}), `{"max":5,"min":1}`},
		{"date", Date(time.Date(2024, 3, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600))), "2024-03-01T08:30:00.000Z"},
		{"null", Null(), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EncodeValue(tt.value))
		})
	}
}

func TestDecodeValue(t *testing.T) {
	tests := []struct {
		raw  string
		want Value
	}{
		{"a,b", Strings("a", "b")},
		{"1,2", Strings("1", "2")},
		{"42", Number(42)},
		{"-3.5", Number(-3.5)},
		{"Infinity", String("Infinity")},
		{"true", Bool(true)},
		{"false", Bool(false)},
		{`{"min":1}`, Struct(map[string]any{"min": 1.0})},
		{`"quoted"`, String("quoted")},
		{"open", String("open")},
		{"{broken", String("{broken")},
		{"null", Null()},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := DecodeValue(tt.raw)
			assert.True(t, tt.want.Equal(got), "want %#v, got %#v", tt.want, got)
		})
	}
}

func TestParseQuery_ReservedViewAndEmptyValues(t *testing.T) {
	filters, viewID, err := ParseQuery("?view=1700000000000-abc&status=open&assignee=&tags=a%2Cb")
	require.NoError(t, err)

	assert.Equal(t, "1700000000000-abc", viewID)
	want := FilterState{
		"status": String("open"),
		"tags":   Strings("a", "b"),
	}
	if diff := cmp.Diff(want, filters); diff != "" {
		t.Errorf("filters mismatch (-want +got):\n%s", diff)
	}
}

func TestParseQuery_RepeatedKeyLastWins(t *testing.T) {
	filters, _, err := ParseQuery("status=open&status=closed")
	require.NoError(t, err)

	assert.True(t, String("closed").Equal(filters["status"]))
}

func TestParseQuery_Malformed(t *testing.T) {
	filters, _, err := ParseQuery("status=open&bad=%zz")
	assert.Error(t, err)
	assert.True(t, String("open").Equal(filters["status"]))
}

func TestRoundTrip_Heuristic(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 200; i++ {
		state := randomState(rng)

		decoded, viewID := DecodeQuery(EncodeQuery(state, ""))

		assert.Empty(t, viewID)
		if diff := cmp.Diff(state, decoded); diff != "" {
			t.Fatalf("round trip %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestRoundTrip_ThroughQueryString(t *testing.T) {
	state := FilterState{
		"search":   String("water leak"),
		"block":    Int(7),
		"urgent":   Bool(true),
		"statuses": Strings("open", "in progress"),
	}

	values, err := url.ParseQuery(EncodeQuery(state, "v9").Encode())
	require.NoError(t, err)

	decoded, viewID := DecodeQuery(values)
	assert.Equal(t, "v9", viewID)
	if diff := cmp.Diff(state, decoded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

// Without a schema a numeric-looking string and a single-element list do not
// survive the trip. This is the documented behavior.
func TestRoundTrip_KnownAsymmetry(t *testing.T) {
	state := FilterState{
		"unit": String("42"),
		"tags": Strings("solo"),
	}

	decoded, _ := DecodeQuery(EncodeQuery(state, ""))

	assert.Equal(t, KindNumber, decoded["unit"].Kind())
	assert.Equal(t, KindString, decoded["tags"].Kind())
}

func TestRoundTrip_Schema(t *testing.T) {
	schema := Schema{
		"unit":    KindString,
		"tags":    KindStringArray,
		"since":   KindDate,
		"range":   KindStruct,
		"visible": KindBool,
		"floor":   KindNumber,
	}
	state := FilterState{
		"unit":    String("42"),
		"tags":    Strings("solo"),
		"since":   Date(time.Date(2024, 5, 6, 7, 8, 9, 123_000_000, time.UTC)),
		"range":   Struct(map[string]any{"from": 1.0, "to": 3.0}),
		"visible": Bool(false),
		"floor":   Number(3),
		"other":   String("free text"),
	}

	decoded, _ := schema.DecodeQuery(EncodeQuery(state, ""))

	if diff := cmp.Diff(state, decoded); diff != "" {
		t.Errorf("schema round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSchema_InvalidValuesAreDropped(t *testing.T) {
	schema := Schema{"floor": KindNumber, "visible": KindBool, "since": KindDate}

	filters, _, err := schema.ParseQuery("floor=ground&visible=maybe&since=yesterday&unit=4B")
	require.NoError(t, err)

	assert.Equal(t, []string{"unit"}, filters.Keys())
}

func TestParseSchema(t *testing.T) {
	schema, err := ParseSchema(map[string]string{"tags": "array", "due": "date"})
	require.NoError(t, err)
	assert.Equal(t, Schema{"tags": KindStringArray, "due": KindDate}, schema)

	_, err = ParseSchema(map[string]string{"tags": "tuple"})
	assert.ErrorContains(t, err, "tags")
}

func randomState(rng *rand.Rand) FilterState {
	state := FilterState{}
	fields := 1 + rng.IntN(5)

	for i := 0; i < fields; i++ {
		key := fmt.Sprintf("field%d", i)
		switch rng.IntN(4) {
		case 0:
			state[key] = String(randomWord(rng))
		case 1:
			state[key] = Number(float64(rng.IntN(100000)-50000) / 4)
		case 2:
			state[key] = Bool(rng.IntN(2) == 0)
		case 3:
			items := make([]string, 2+rng.IntN(3))
			for j := range items {
				items[j] = randomWord(rng)
			}
			state[key] = Strings(items...)
		}
	}
	return state
}

// randomWord never looks like a number, a boolean or JSON.
func randomWord(rng *rand.Rand) string {
	var sb strings.Builder
	sb.WriteString("w")
	for i := 0; i < 1+rng.IntN(8); i++ {
		sb.WriteByte(byte('a' + rng.IntN(26)))
	}
	if rng.IntN(3) == 0 {
		sb.WriteString(" x")
	}
	return sb.String()
}
