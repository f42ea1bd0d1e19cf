package convert

import (
	"testing"

	"github.com/harperreed/card2box/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uids(contacts []*models.Contact) []string {
	out := make([]string, len(contacts))
	for i, c := range contacts {
		out[i] = c.UID
	}
	return out
}

func TestFilterIncludeExclude(t *testing.T) {
	contacts := []*models.Contact{
		{UID: "a", Categories: []string{"family"}},
		{UID: "b", Categories: []string{"work"}},
		{UID: "c", Groups: []string{"Neighbours"}},
		{UID: "d"},
	}

	tests := []struct {
		name     string
		filters  Filters
		expected []string
	}{
		{"no filters", Filters{}, []string{"a", "b", "c", "d"}},
		{"include category", Filters{Include: map[string][]string{"categories": {"family"}}}, []string{"a"}},
		{"include empty sub-rules", Filters{Include: map[string][]string{"categories": {}}}, []string{"a", "b", "c", "d"}},
		{"exclude category", Filters{Exclude: map[string][]string{"categories": {"work"}}}, []string{"a", "c", "d"}},
		{"exclude missing attribute", Filters{Exclude: map[string][]string{"categories": {""}}}, []string{"a", "b"}},
		{
			"include group then exclude",
			Filters{
				Include: map[string][]string{"groups": {"Neighbours"}, "categories": {"work"}},
				Exclude: map[string][]string{"categories": {"work"}},
			},
			[]string{"c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, uids(Filter(contacts, tt.filters, nil)))
		})
	}
}

func TestDissolveGroups(t *testing.T) {
	group := &models.Contact{
		UID:     "g1",
		Kind:    models.KindGroup,
		Members: []string{"urn:uuid:a", "b"},
	}
	group.SetField(models.FieldFullName, "Family")

	contacts := []*models.Contact{
		{UID: "a", Groups: []string{"Friends"}},
		group,
		{UID: "b"},
		{UID: "c"},
	}

	result := DissolveGroups(contacts)
	require.Equal(t, []string{"a", "b", "c"}, uids(result))
	assert.Equal(t, []string{"Friends", "Family"}, result[0].Groups)
	assert.Equal(t, []string{"Family"}, result[1].Groups)
	assert.Empty(t, result[2].Groups)

	// dissolving twice does not duplicate memberships
	DissolveGroups(append(result, group))
	assert.Equal(t, []string{"Friends", "Family"}, result[0].Groups)
}
