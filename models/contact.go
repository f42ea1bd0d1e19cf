// ABOUTME: Source address book record model shared by all contact sources
// ABOUTME: Defines Contact, TypedValue and Photo along with name field tokens
package models

import "strings"

// Contact kinds.
const (
	KindIndividual = "individual"
	KindGroup      = "group"
)

// Name field tokens usable in display name templates.
const (
	FieldFullName        = "FULLNAME"
	FieldLastName        = "LASTNAME"
	FieldFirstName       = "FIRSTNAME"
	FieldAdditionalNames = "ADDITIONALNAMES"
	FieldPrefix          = "PREFIX"
	FieldSuffix          = "SUFFIX"
	FieldNickname        = "NICKNAME"
	FieldOrganization    = "ORGANIZATION"
	FieldDepartment      = "DEPARTMENT"
	FieldJobTitle        = "JOBTITLE"
)

// TypedValue is a multi-valued field entry with its type tags (e.g. WORK, CELL).
type TypedValue struct {
	Value string   `json:"value"`
	Types []string `json:"types,omitempty"`
}

// HasType reports whether any of the tags contains needle (case-insensitive).
func (tv TypedValue) HasType(needle string) bool {
	return strings.Contains(tv.JoinedTypes(), strings.ToUpper(needle))
}

// JoinedTypes returns all type tags upper-cased and comma separated.
func (tv TypedValue) JoinedTypes() string {
	return strings.ToUpper(strings.Join(tv.Types, ","))
}

// Photo is either embedded image bytes or an external link that could not be embedded.
type Photo struct {
	Data   []byte `json:"-"`
	Format string `json:"format,omitempty"` // upper-case subtype, e.g. JPEG, PNG
	URL    string `json:"url,omitempty"`
}

// IsLink reports whether the photo only references external data.
func (p *Photo) IsLink() bool {
	return p != nil && len(p.Data) == 0 && p.URL != ""
}

// Contact is one source address book record. Identifiers are stable across runs.
type Contact struct {
	UID        string            `json:"uid"`
	Kind       string            `json:"kind,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
	Phones     []TypedValue      `json:"phones,omitempty"`
	Emails     []TypedValue      `json:"emails,omitempty"`
	Categories []string          `json:"categories,omitempty"`
	Groups     []string          `json:"groups,omitempty"`
	Members    []string          `json:"members,omitempty"`
	Photo      *Photo            `json:"photo,omitempty"`

	// ImageURL is resolved by the image synchronizer; never read from a source.
	ImageURL string `json:"image_url,omitempty"`
}

// Field returns the named field value (token lookup is case-insensitive).
func (c *Contact) Field(name string) string {
	if c.Fields == nil {
		return ""
	}
	return c.Fields[strings.ToUpper(name)]
}

// SetField stores a field value under its upper-case token, ignoring empty values.
func (c *Contact) SetField(name, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if c.Fields == nil {
		c.Fields = make(map[string]string)
	}
	c.Fields[strings.ToUpper(name)] = value
}

// Attribute returns the multi-valued membership attribute used by filters.
// Supported names are "categories" and "groups".
func (c *Contact) Attribute(name string) ([]string, bool) {
	switch strings.ToLower(name) {
	case "categories":
		return c.Categories, len(c.Categories) > 0
	case "groups":
		return c.Groups, len(c.Groups) > 0
	}
	return nil, false
}
