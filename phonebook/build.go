// ABOUTME: Assembles immutable phonebook documents from converted entries
// ABOUTME: Entries are copied so later reconciliation never aliases converter output
package phonebook

import "github.com/harperreed/card2box/models"

// Build assembles a document from entries in the given order.
func Build(name string, entries []models.Entry) models.Document {
	doc := models.Document{Name: name, Entries: make([]models.Entry, len(entries))}
	for i, e := range entries {
		doc.Entries[i] = e.Clone()
	}
	return doc
}

// ByUID indexes document entries by source identifier. An identifier with
// several entries (a split contact) maps to all of them in document order.
func ByUID(doc models.Document) map[string][]int {
	idx := make(map[string][]int)
	for i, e := range doc.Entries {
		if e.UID == "" {
			continue
		}
		idx[e.UID] = append(idx[e.UID], i)
	}
	return idx
}
