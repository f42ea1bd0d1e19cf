// ABOUTME: Round-trips router-only metadata (quickdial, vanity, internal numbers)
// ABOUTME: Extracts it from router exports and re-applies it to regenerated phonebooks
package restore

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/harperreed/card2box/models"
)

// Extract collects quickdial, vanity and internal number assignments of every
// entry carrying a source identifier.
func Extract(doc models.Document) models.AttributeTable {
	table := make(models.AttributeTable)
	for _, e := range doc.Entries {
		if e.UID == "" {
			continue
		}
		for _, n := range e.Numbers {
			if n.Quickdial == "" && n.Vanity == "" && !n.IsInternal() {
				continue
			}
			table[e.UID] = append(table[e.UID], models.Attribute{
				UID:       e.UID,
				Number:    n.Value,
				ID:        n.ID,
				Type:      n.Type,
				Quickdial: n.Quickdial,
				Vanity:    n.Vanity,
				Name:      e.RealName,
			})
		}
	}
	return table
}

// Merge combines tables; a later table replaces all rows of an identifier.
func Merge(tables ...models.AttributeTable) models.AttributeTable {
	out := make(models.AttributeTable)
	for _, t := range tables {
		for uid, rows := range t {
			if len(rows) == 0 {
				continue
			}
			out[uid] = append([]models.Attribute(nil), rows...)
		}
	}
	return out
}

// Apply returns a copy of doc with remembered attributes restored. Quickdial
// and vanity are only set where unset; remembered internal numbers are
// appended when missing and the entry has room. Entries without rows pass
// through unchanged.
func Apply(doc models.Document, table models.AttributeTable) models.Document {
	out := doc.Clone()
	if len(table) == 0 {
		return out
	}

	byUID := make(map[string][]int)
	for i, e := range out.Entries {
		if e.UID != "" {
			byUID[e.UID] = append(byUID[e.UID], i)
		}
	}

	for uid, rows := range table {
		indexes, ok := byUID[uid]
		if !ok {
			continue
		}
		for _, row := range rows {
			if row.IsInternal() {
				appendInternal(out.Entries, indexes, row)
				continue
			}
			restoreNumber(out.Entries, indexes, row)
		}
	}

	return out
}

func restoreNumber(entries []models.Entry, indexes []int, row models.Attribute) {
	want := normalize(row.Number)
	for _, i := range indexes {
		for j := range entries[i].Numbers {
			n := &entries[i].Numbers[j]
			if normalize(n.Value) != want {
				continue
			}
			if n.Quickdial == "" {
				n.Quickdial = row.Quickdial
			}
			if n.Vanity == "" {
				n.Vanity = row.Vanity
			}
			return
		}
	}
}

func appendInternal(entries []models.Entry, indexes []int, row models.Attribute) {
	want := normalize(row.Number)
	for _, i := range indexes {
		for _, n := range entries[i].Numbers {
			if normalize(n.Value) == want {
				return
			}
		}
	}
	for _, i := range indexes {
		if len(entries[i].Numbers) >= models.MaxNumbersPerEntry {
			continue
		}
		entries[i].Numbers = append(entries[i].Numbers, models.Number{
			ID:        len(entries[i].Numbers),
			Type:      row.Type,
			Value:     row.Number,
			Quickdial: row.Quickdial,
			Vanity:    row.Vanity,
		})
		return
	}
}

// normalize drops formatting characters so "030 / 123-4" matches "0301234".
func normalize(number string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r), r == '-', r == '/', r == '(', r == ')', r == '.':
			return -1
		}
		return unicode.ToLower(r)
	}, number)
}

// Quickdials returns the keypad label per quickdial digit. The label is the
// first name of a "Last, First" display name, otherwise the whole name; with
// alias enabled a vanity alias wins. Labels are capped at ten characters.
// When several rows claim a digit, the row of the greatest UID wins.
func Quickdials(table models.AttributeTable, alias bool) map[int]string {
	uids := make([]string, 0, len(table))
	for uid := range table {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	labels := make(map[int]string)
	for _, uid := range uids {
		for _, row := range table[uid] {
			digit, err := strconv.Atoi(row.Quickdial)
			if err != nil {
				continue
			}

			name := row.Name
			if parts := strings.Split(row.Name, ", "); len(parts) == 2 {
				name = parts[1]
			}
			if alias && row.Vanity != "" {
				name = capitalize(row.Vanity)
			}

			labels[digit] = truncate(name, 10)
		}
	}
	return labels
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	if len(runes) == 0 {
		return ""
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
