package datafilters

import (
	"testing"
	"time"

	"github.com/mwantia/viewsync/internal/views"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ticket struct {
	ID       int
	Title    string
	Status   string
	Priority int
	Tags     []string
	Opened   time.Time
}

func (t ticket) record() Record {
	return Record{
		"id":       t.ID,
		"title":    t.Title,
		"status":   t.Status,
		"priority": t.Priority,
		"tags":     t.Tags,
		"opened":   t.Opened,
	}
}

func sampleTickets() []ticket {
	day := func(d int) time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }
	return []ticket{
		{ID: 1, Title: "Water leak in 4B", Status: "open", Priority: 2, Tags: []string{"plumbing"}, Opened: day(3)},
		{ID: 2, Title: "Gate remote broken", Status: "closed", Priority: 1, Tags: []string{"security"}, Opened: day(1)},
		{ID: 3, Title: "Leaking roof", Status: "open", Priority: 3, Tags: []string{"roof", "urgent"}, Opened: day(2)},
		{ID: 4, Title: "Parking light", Status: "in_progress", Priority: 2, Tags: nil, Opened: day(4)},
	}
}

func ids(items []ticket) []int {
	out := make([]int, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestApplyToData_Search(t *testing.T) {
	got, err := ApplyToData(sampleTickets(), DataQuery{
		Search:       "LEAK",
		SearchFields: []string{"title"},
	}, ticket.record)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3}, ids(got))
}

func TestApplyToData_ExactAndMembershipFilters(t *testing.T) {
	tests := []struct {
		name    string
		filters views.FilterState
		want    []int
	}{
		{"exact string", views.FilterState{"status": views.String("open")}, []int{1, 3}},
		{"exact number", views.FilterState{"priority": views.Int(2)}, []int{1, 4}},
		{"decoded number against int", views.FilterState{"priority": views.DecodeValue("3")}, []int{3}},
		{"membership", views.FilterState{"status": views.Strings("closed", "in_progress")}, []int{2, 4}},
		{"membership over list field", views.FilterState{"tags": views.Strings("urgent", "security")}, []int{2, 3}},
		{"combined", views.FilterState{"status": views.String("open"), "priority": views.Int(3)}, []int{3}},
		{"no match", views.FilterState{"status": views.String("archived")}, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ApplyToData(sampleTickets(), DataQuery{Filters: tt.filters}, ticket.record)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestApplyToData_Sort(t *testing.T) {
	items := sampleTickets()

	byPriority, err := ApplyToData(items, DataQuery{Sort: views.Sort{Field: "priority", Order: views.SortAsc}}, ticket.record)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 4, 3}, ids(byPriority), "ties keep their input order")

	byOpened, err := ApplyToData(items, DataQuery{Sort: views.Sort{Field: "opened", Order: views.SortDesc}}, ticket.record)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 1, 3, 2}, ids(byOpened))

	byTitle, err := ApplyToData(items, DataQuery{Sort: views.Sort{Field: "title", Order: views.SortAsc}}, ticket.record)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4, 1}, ids(byTitle))

	assert.Equal(t, []int{1, 2, 3, 4}, ids(items), "input must not be reordered")
}

func TestApplyToData_MissingValuesSortLast(t *testing.T) {
	items := []Record{
		{"name": "a", "p": 1},
		{"name": "b"},
		{"name": "c", "p": 2},
	}
	names := func(records []Record) []string {
		out := make([]string, len(records))
		for i, r := range records {
			out[i] = r["name"].(string)
		}
		return out
	}
	self := func(r Record) Record { return r }

	for _, tc := range []struct {
		order views.SortOrder
		want  []string
	}{
		{views.SortAsc, []string{"a", "c", "b"}},
		{views.SortDesc, []string{"c", "a", "b"}},
	} {
		t.Run(string(tc.order), func(t *testing.T) {
			got, err := ApplyToData(items, DataQuery{Sort: views.Sort{Field: "p", Order: tc.order}}, self)
			require.NoError(t, err)
			assert.Equal(t, tc.want, names(got))
		})
	}
}

func TestApplyToData_Where(t *testing.T) {
	got, err := ApplyToData(sampleTickets(), DataQuery{
		Where: `priority >= 2 && status != "closed" && len(tags) > 0`,
	}, ticket.record)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, ids(got))

	_, err = ApplyToData(sampleTickets(), DataQuery{Where: "priority >="}, ticket.record)
	assert.ErrorContains(t, err, "invalid where expression")
}

func TestQueryFromState(t *testing.T) {
	state := State{
		Search:  "roof",
		Filters: views.FilterState{"status": views.String("open")},
		Sort:    views.Sort{Field: "priority", Order: views.SortDesc},
	}

	got, err := ApplyToData(sampleTickets(), QueryFromState(state, "title"), ticket.record)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, ids(got))
}
