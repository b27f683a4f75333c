package views

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterState_MergeStripsEmptyValues(t *testing.T) {
	current := FilterState{
		"status":   String("open"),
		"priority": String("high"),
		"block":    Int(3),
	}

	merged := current.Merge(FilterState{
		"status":   String("closed"),
		"priority": String(""),
		"block":    Null(),
		"tags":     Strings("a"),
	})

	want := FilterState{
		"status": String("closed"),
		"tags":   Strings("a"),
	}
	if diff := cmp.Diff(want, merged); diff != "" {
		t.Errorf("merge mismatch (-want +got):\n%s", diff)
	}
	for key, value := range merged {
		assert.False(t, value.IsEmpty(), key)
	}
	assert.Len(t, current, 3, "merge must not modify the receiver")
}

func TestFilterState_NormalizeDropsViewParam(t *testing.T) {
	got := FilterState{ViewParam: String("compact"), "a": String("1x")}.Normalize()

	assert.Equal(t, FilterState{"a": String("1x")}, got)
}

func TestFilterState_CloneIsDeep(t *testing.T) {
	original := FilterState{
		"tags":  Strings("a", "b"),
		"range": Struct(map[string]any{"from": 1.0}),
	}

	clone := original.Clone()
	clone["tags"].list[0] = "changed"
	clone["range"].object["from"] = 9.0
	clone["extra"] = Bool(true)

	assert.Equal(t, []string{"a", "b"}, original["tags"].List())
	assert.Equal(t, 1.0, original["range"].Object()["from"])
	assert.NotContains(t, original, "extra")
}

func TestFilterState_CloneOfNilIsEmpty(t *testing.T) {
	var nothing FilterState
	clone := nothing.Clone()

	require.NotNil(t, clone)
	assert.Empty(t, clone)
}

func TestFilterState_JSON(t *testing.T) {
	due := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	state := FilterState{
		"status": String("open"),
		"count":  Int(2),
		"tags":   Strings("a", "b"),
		"urgent": Bool(true),
		"due":    Date(due),
	}

	data, err := json.Marshal(state)
	require.NoError(t, err)

	var loaded FilterState
	require.NoError(t, json.Unmarshal(data, &loaded))

	assert.True(t, state["status"].Equal(loaded["status"]))
	assert.True(t, state["count"].Equal(loaded["count"]))
	assert.True(t, state["tags"].Equal(loaded["tags"]))
	assert.True(t, state["urgent"].Equal(loaded["urgent"]))
	// dates are stored as ISO strings
	assert.True(t, String("2024-01-02T03:04:05.000Z").Equal(loaded["due"]))
}

func TestValueOf(t *testing.T) {
	assert.Equal(t, KindNull, ValueOf(nil).Kind())
	assert.Equal(t, KindNumber, ValueOf(int64(3)).Kind())
	assert.Equal(t, KindStringArray, ValueOf([]any{"a", 1.0, true}).Kind())
	assert.Equal(t, []string{"a", "1", "true"}, ValueOf([]any{"a", 1.0, true}).List())
	assert.Equal(t, KindString, ValueOf(struct{}{}).Kind())
}
