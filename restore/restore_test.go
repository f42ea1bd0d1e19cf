// ABOUTME: Tests for router attribute extraction, persistence format and re-application
// ABOUTME: Covers idempotent apply, last-writer-wins merge and quickdial labels
package restore

import (
	"bytes"
	"testing"

	"github.com/harperreed/card2box/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func routerDoc() models.Document {
	return models.Document{Name: "Telefonbuch", Entries: []models.Entry{
		{
			UID:      "u1",
			RealName: "Smith, John",
			Numbers: []models.Number{
				{ID: 0, Type: "home", Value: "030 1234", Quickdial: "5", Vanity: "JOHN"},
				{ID: 1, Type: "mobile", Value: "0170 1"},
				{ID: 2, Type: "intern", Value: "**610"},
			},
		},
		{
			UID:      "u2",
			RealName: "Doe, Jane",
			Numbers:  []models.Number{{ID: 0, Type: "work", Value: "089", Vanity: "JD"}},
		},
		{
			RealName: "Manual entry",
			Numbers:  []models.Number{{ID: 0, Value: "1", Quickdial: "9"}},
		},
		{
			UID:     "u3",
			Numbers: []models.Number{{ID: 0, Value: "2"}},
		},
	}}
}

func freshDoc() models.Document {
	return models.Document{Name: "Telefonbuch", Entries: []models.Entry{
		{UID: "u1", RealName: "Smith, John", Numbers: []models.Number{
			{ID: 0, Type: "home", Value: "0301234"},
			{ID: 1, Type: "mobile", Value: "01701"},
		}},
		{UID: "u2", RealName: "Doe, Jane", Numbers: []models.Number{{ID: 0, Type: "work", Value: "089"}}},
		{UID: "u4", RealName: "New", Numbers: []models.Number{{ID: 0, Value: "7"}}},
	}}
}

func TestExtract(t *testing.T) {
	table := Extract(routerDoc())

	require.Len(t, table, 2)
	assert.Equal(t, []models.Attribute{
		{UID: "u1", Number: "030 1234", ID: 0, Type: "home", Quickdial: "5", Vanity: "JOHN", Name: "Smith, John"},
		{UID: "u1", Number: "**610", ID: 2, Type: "intern", Name: "Smith, John"},
	}, table["u1"])
	assert.Equal(t, "JD", table["u2"][0].Vanity)
	assert.NotContains(t, table, "u3")
}

func TestApplyRestoresAttributes(t *testing.T) {
	fresh := freshDoc()
	merged := Apply(fresh, Extract(routerDoc()))

	john := merged.Entries[0]
	require.Len(t, john.Numbers, 3)
	assert.Equal(t, "5", john.Numbers[0].Quickdial)
	assert.Equal(t, "JOHN", john.Numbers[0].Vanity)
	assert.Empty(t, john.Numbers[1].Quickdial)
	assert.Equal(t, models.Number{ID: 2, Type: "intern", Value: "**610"}, john.Numbers[2])

	assert.Equal(t, "JD", merged.Entries[1].Numbers[0].Vanity)
	assert.Equal(t, fresh.Entries[2], merged.Entries[2])

	// input document is never mutated
	assert.Len(t, fresh.Entries[0].Numbers, 2)
	assert.Empty(t, fresh.Entries[0].Numbers[0].Quickdial)
}

func TestApplyIsIdempotent(t *testing.T) {
	table := Extract(routerDoc())
	once := Apply(freshDoc(), table)
	twice := Apply(once, table)
	assert.Equal(t, once, twice)
}

func TestApplyKeepsExistingAttributes(t *testing.T) {
	doc := models.Document{Entries: []models.Entry{{UID: "u1", Numbers: []models.Number{
		{Value: "0301234", Quickdial: "3"},
	}}}}
	merged := Apply(doc, Extract(routerDoc()))
	assert.Equal(t, "3", merged.Entries[0].Numbers[0].Quickdial)
	assert.Equal(t, "JOHN", merged.Entries[0].Numbers[0].Vanity)
}

func TestApplyInternalNumberNeedsRoom(t *testing.T) {
	full := models.Entry{UID: "u1"}
	for i := 0; i < models.MaxNumbersPerEntry; i++ {
		full.Numbers = append(full.Numbers, models.Number{ID: i, Value: string(rune('a' + i))})
	}
	split := models.Entry{UID: "u1", Numbers: []models.Number{{ID: 0, Value: "z"}}}

	table := models.AttributeTable{"u1": {{UID: "u1", Number: "**611", Type: "intern"}}}
	merged := Apply(models.Document{Entries: []models.Entry{full, split}}, table)

	assert.Len(t, merged.Entries[0].Numbers, models.MaxNumbersPerEntry)
	require.Len(t, merged.Entries[1].Numbers, 2)
	assert.Equal(t, "**611", merged.Entries[1].Numbers[1].Value)
	assert.Equal(t, 1, merged.Entries[1].Numbers[1].ID)
}

func TestApplyEmptyTable(t *testing.T) {
	fresh := freshDoc()
	assert.Equal(t, fresh, Apply(fresh, nil))
}

func TestSerializeRoundTrip(t *testing.T) {
	table := Extract(routerDoc())

	rows := Serialize(table)
	assert.Equal(t, Header, rows[0])
	assert.Len(t, rows, 4)

	back, err := Deserialize(rows)
	require.NoError(t, err)
	assert.Equal(t, table, back)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, table))
	decoded, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, table, decoded)
}

func TestDeserializeErrors(t *testing.T) {
	_, err := Deserialize([][]string{{"u1", "1"}})
	assert.Error(t, err)

	_, err = Deserialize([][]string{{"u1", "1", "x", "", "", "", ""}})
	assert.Error(t, err)

	_, err = Deserialize([][]string{{"", "1", "0", "", "", "", ""}})
	assert.Error(t, err)

	table, err := Deserialize([][]string{{"u1", "1", "0", "home", "2", "", "A"}})
	require.NoError(t, err)
	assert.Equal(t, "2", table["u1"][0].Quickdial)
}

func TestMergeLastWriterWins(t *testing.T) {
	older := models.AttributeTable{
		"u1": {{UID: "u1", Number: "1", Quickdial: "2"}, {UID: "u1", Number: "2", Vanity: "OLD"}},
		"u2": {{UID: "u2", Number: "3", Quickdial: "4"}},
	}
	newer := models.AttributeTable{
		"u1": {{UID: "u1", Number: "1", Quickdial: "7"}},
	}

	merged := Merge(older, newer)
	assert.Equal(t, []models.Attribute{{UID: "u1", Number: "1", Quickdial: "7"}}, merged["u1"])
	assert.Equal(t, older["u2"], merged["u2"])
	assert.Equal(t, 2, merged.Len())
}

func TestQuickdials(t *testing.T) {
	table := models.AttributeTable{
		"u1": {{UID: "u1", Quickdial: "5", Vanity: "JOHNNY", Name: "Smith, John"}},
		"u2": {{UID: "u2", Quickdial: "2", Name: "Bundesverfassungsgericht"}},
		"u3": {{UID: "u3", Quickdial: "3", Name: "Doe, Jane, Dr."}},
		"u4": {{UID: "u4", Vanity: "NOQD", Name: "X"}},
	}

	assert.Equal(t, map[int]string{
		5: "John",
		2: "Bundesverf",
		3: "Doe, Jane,",
	}, Quickdials(table, false))

	assert.Equal(t, "Johnny", Quickdials(table, true)[5])
}

func TestQuickdialsSharedDigitIsStable(t *testing.T) {
	table := models.AttributeTable{
		"a": {{UID: "a", Quickdial: "4", Name: "Alpha"}},
		"m": {{UID: "m", Quickdial: "4", Name: "Mike"}},
		"z": {{UID: "z", Quickdial: "4", Name: "Zulu"}},
	}

	for i := 0; i < 20; i++ {
		assert.Equal(t, map[int]string{4: "Zulu"}, Quickdials(table, false))
	}
}
