// ABOUTME: Appliance phonebook value types and router-local attribute records
// ABOUTME: Entries are immutable values; Clone helpers keep documents from sharing slices
package models

import "strings"

// MaxNumbersPerEntry is the appliance limit of phone numbers per contact.
const MaxNumbersPerEntry = 9

// InternalPrefix marks an appliance-local (internal) phone number.
const InternalPrefix = "**"

// Number is one telephony entry of a phonebook contact.
type Number struct {
	ID        int
	Type      string
	Value     string
	Quickdial string
	Vanity    string
	Prio      string
}

// IsInternal reports whether the number is an appliance-local extension.
func (n Number) IsInternal() bool {
	return strings.HasPrefix(n.Value, InternalPrefix)
}

// Email is one services/email entry of a phonebook contact.
type Email struct {
	ID         int
	Value      string
	Classifier string
}

// Entry is one appliance phonebook contact. UID references the source record.
type Entry struct {
	UID      string
	VIP      bool
	RealName string
	ImageURL string
	Numbers  []Number
	Emails   []Email

	// Extra holds unknown contact children (uniqueid, mod_time, ...) so router
	// exports survive a parse/marshal round trip.
	Extra []RawElement
}

// RawElement is an opaque XML element carried through unchanged.
type RawElement struct {
	Name  string
	Attrs []RawAttr
	Inner string
}

// RawAttr is one attribute of a RawElement.
type RawAttr struct {
	Name  string
	Value string
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	out := e
	out.Numbers = append([]Number(nil), e.Numbers...)
	out.Emails = append([]Email(nil), e.Emails...)
	out.Extra = append([]RawElement(nil), e.Extra...)
	return out
}

// Document is an ordered phonebook plus its name.
type Document struct {
	Name    string
	Entries []Entry
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := Document{Name: d.Name, Entries: make([]Entry, len(d.Entries))}
	for i, e := range d.Entries {
		out.Entries[i] = e.Clone()
	}
	return out
}

// Attribute is router-local metadata for one (UID, number) pairing.
type Attribute struct {
	UID       string
	Number    string
	ID        int
	Type      string
	Quickdial string
	Vanity    string
	Name      string
}

// IsInternal reports whether the remembered number is an internal number.
func (a Attribute) IsInternal() bool {
	return strings.HasPrefix(a.Number, InternalPrefix)
}

// AttributeTable groups attribute rows by source identifier.
type AttributeTable map[string][]Attribute

// Len returns the total number of rows.
func (t AttributeTable) Len() int {
	n := 0
	for _, rows := range t {
		n += len(rows)
	}
	return n
}

// ImageStats summarizes an image synchronization pass.
type ImageStats struct {
	Uploaded   int
	Considered int
	Skipped    int
}
