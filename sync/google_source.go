// ABOUTME: Google People API contact source
// ABOUTME: Fetches connections with pagination and maps them onto contact records
package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/harperreed/card2box/models"
	"go.uber.org/zap"
	"google.golang.org/api/people/v1"
)

const personFields = "names,nicknames,emailAddresses,phoneNumbers,organizations,memberships,photos"

// phoneTags translates People API phone types into vCard style type tags.
var phoneTags = map[string][]string{
	"home":       {"HOME"},
	"work":       {"WORK"},
	"mobile":     {"CELL"},
	"homeFax":    {"HOME", "FAX"},
	"workFax":    {"WORK", "FAX"},
	"otherFax":   {"FAX"},
	"pager":      {"PAGER"},
	"workMobile": {"WORK", "CELL"},
	"workPager":  {"WORK", "PAGER"},
	"main":       {"MAIN"},
}

// GoogleSource reads contacts from the authenticated user's Google account.
type GoogleSource struct {
	client *people.Service
	logger *zap.Logger
}

// NewGoogleSource creates a source backed by a People API client.
func NewGoogleSource(client *people.Service, logger *zap.Logger) *GoogleSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleSource{client: client, logger: logger}
}

// FetchAll returns every connection of the user. Contact group memberships
// become categories so include/exclude filters apply to them.
func (s *GoogleSource) FetchAll(ctx context.Context) ([]*models.Contact, error) {
	groups, err := s.groupNames(ctx)
	if err != nil {
		return nil, err
	}

	var contacts []*models.Contact
	pageToken := ""
	for {
		call := s.client.People.Connections.List("people/me").
			PageSize(1000).
			PersonFields(personFields).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		response, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to fetch contacts: %w", err)
		}
		if response == nil {
			break
		}

		for _, person := range response.Connections {
			contacts = append(contacts, convertPerson(person, groups))
		}

		pageToken = response.NextPageToken
		if pageToken == "" {
			break
		}
		s.logger.Debug("fetched contact page", zap.Int("contacts", len(contacts)))
	}

	s.logger.Info("fetched Google contacts", zap.Int("contacts", len(contacts)))
	return contacts, nil
}

func (s *GoogleSource) groupNames(ctx context.Context) (map[string]string, error) {
	names := make(map[string]string)
	pageToken := ""
	for {
		call := s.client.ContactGroups.List().PageSize(1000).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		response, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to fetch contact groups: %w", err)
		}
		for _, g := range response.ContactGroups {
			name := g.FormattedName
			if name == "" {
				name = g.Name
			}
			names[g.ResourceName] = name
		}
		pageToken = response.NextPageToken
		if pageToken == "" {
			return names, nil
		}
	}
}

// convertPerson converts a People API Person to a contact record.
func convertPerson(person *people.Person, groups map[string]string) *models.Contact {
	c := &models.Contact{
		UID:  strings.TrimPrefix(person.ResourceName, "people/"),
		Kind: models.KindIndividual,
	}

	if len(person.Names) > 0 {
		name := person.Names[0]
		c.SetField(models.FieldFullName, name.DisplayName)
		c.SetField(models.FieldLastName, name.FamilyName)
		c.SetField(models.FieldFirstName, name.GivenName)
		c.SetField(models.FieldAdditionalNames, name.MiddleName)
		c.SetField(models.FieldPrefix, name.HonorificPrefix)
		c.SetField(models.FieldSuffix, name.HonorificSuffix)
	}
	if len(person.Nicknames) > 0 {
		c.SetField(models.FieldNickname, person.Nicknames[0].Value)
	}
	if len(person.Organizations) > 0 {
		org := person.Organizations[0]
		c.SetField(models.FieldOrganization, org.Name)
		c.SetField(models.FieldDepartment, org.Department)
		c.SetField(models.FieldJobTitle, org.Title)
	}

	for _, phone := range person.PhoneNumbers {
		if phone.Value == "" {
			continue
		}
		c.Phones = append(c.Phones, models.TypedValue{Value: phone.Value, Types: typeTags(phone.Type)})
	}
	for _, email := range person.EmailAddresses {
		if email.Value == "" {
			continue
		}
		var tags []string
		if email.Type != "" {
			tags = []string{strings.ToUpper(email.Type)}
		}
		c.Emails = append(c.Emails, models.TypedValue{Value: email.Value, Types: tags})
	}

	for _, m := range person.Memberships {
		if m.ContactGroupMembership == nil {
			continue
		}
		if name, ok := groups[m.ContactGroupMembership.ContactGroupResourceName]; ok && name != "" {
			c.Categories = append(c.Categories, name)
		}
	}

	for _, photo := range person.Photos {
		if photo.Url != "" && !photo.Default {
			c.Photo = &models.Photo{URL: photo.Url}
			break
		}
	}

	return c
}

func typeTags(phoneType string) []string {
	if phoneType == "" {
		return nil
	}
	if tags, ok := phoneTags[phoneType]; ok {
		return append([]string(nil), tags...)
	}
	return []string{strings.ToUpper(phoneType)}
}
