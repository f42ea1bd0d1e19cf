// ABOUTME: Include/exclude filtering and iCloud group dissolution for contacts
// ABOUTME: Filters match on the categories and groups membership attributes
package convert

import (
	"strings"

	"github.com/harperreed/card2box/models"
	"go.uber.org/zap"
)

// Filters selects contacts by membership attribute ("categories", "groups").
type Filters struct {
	Include map[string][]string `json:"include"`
	Exclude map[string][]string `json:"exclude"`
}

// Matches reports whether any attribute value intersects the filter values.
// An empty string in the values matches contacts lacking the attribute.
func Matches(contact *models.Contact, filters map[string][]string) bool {
	for attribute, values := range filters {
		parts, ok := contact.Attribute(attribute)
		if !ok {
			if contains(values, "") {
				return true
			}
			continue
		}
		for _, part := range parts {
			if contains(values, part) {
				return true
			}
		}
	}
	return false
}

// Filter applies the include filter (all contacts when empty) and then
// removes contacts matching the exclude filter.
func Filter(contacts []*models.Contact, filters Filters, logger *zap.Logger) []*models.Contact {
	if logger == nil {
		logger = zap.NewNop()
	}

	included := contacts
	if countValues(filters.Include) > 0 {
		included = make([]*models.Contact, 0, len(contacts))
		for _, c := range contacts {
			if Matches(c, filters.Include) {
				included = append(included, c)
			}
		}
	} else if len(filters.Include) > 0 {
		logger.Warn("include filter is empty: including all downloaded contacts")
	}

	if len(filters.Exclude) == 0 {
		return included
	}

	result := make([]*models.Contact, 0, len(included))
	for _, c := range included {
		if !Matches(c, filters.Exclude) {
			result = append(result, c)
		}
	}
	return result
}

// DissolveGroups removes group records and adds the group name to the Groups
// attribute of each member.
func DissolveGroups(contacts []*models.Contact) []*models.Contact {
	groups := make(map[string][]string)
	var names []string
	individuals := make([]*models.Contact, 0, len(contacts))

	for _, c := range contacts {
		if c.Kind != models.KindGroup || len(c.Members) == 0 {
			individuals = append(individuals, c)
			continue
		}
		name := c.Field(models.FieldFullName)
		if _, seen := groups[name]; !seen {
			names = append(names, name)
		}
		for _, member := range c.Members {
			member = strings.TrimPrefix(member, "urn:")
			member = strings.TrimPrefix(member, "uuid:")
			groups[name] = append(groups[name], member)
		}
	}

	for _, c := range individuals {
		for _, name := range names {
			if contains(groups[name], c.UID) && !contains(c.Groups, name) {
				c.Groups = append(c.Groups, name)
			}
		}
	}

	return individuals
}

func countValues(filters map[string][]string) int {
	n := 0
	for _, values := range filters {
		n += len(values)
	}
	return n
}

func contains(values []string, needle string) bool {
	for _, v := range values {
		if v == needle {
			return true
		}
	}
	return false
}
