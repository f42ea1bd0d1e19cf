// ABOUTME: Converts source contact records into appliance phonebook entries
// ABOUTME: Classifies, sorts and chunks phone numbers and resolves display names
package convert

import (
	"regexp"
	"sort"
	"strings"

	"github.com/harperreed/card2box/models"
	"go.uber.org/zap"
)

var (
	tokenPattern = regexp.MustCompile(`\{([^}]+)\}`)
	sipPattern   = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// Converter maps contacts to phonebook entries. It performs no I/O.
type Converter struct {
	rules    Rules
	order    map[string]int
	replacer *strings.Replacer
	logger   *zap.Logger
}

// NewConverter creates a converter for the given rules.
func NewConverter(rules Rules, logger *zap.Logger) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Converter{
		rules:    rules,
		order:    sortOrder(rules.PhoneTypes),
		replacer: newReplacer(rules.PhoneReplace),
		logger:   logger,
	}
}

// Convert returns zero or more entries for a contact. Contacts with more than
// nine numbers are split; contacts without numbers are dropped.
func (c *Converter) Convert(contact *models.Contact) []models.Entry {
	numbers := c.phoneNumbers(contact)
	emails := c.emails(contact)

	switch {
	case len(numbers) > models.MaxNumbersPerEntry:
		c.logger.Warn("contact with more than nine phone numbers will be split",
			zap.String("uid", contact.UID),
			zap.Int("numbers", len(numbers)),
		)
	case len(numbers) == 0:
		c.logger.Warn("contact without phone numbers will be skipped", zap.String("uid", contact.UID))
		return nil
	}

	realName := c.RealName(contact)
	vip := c.isVIP(contact)

	imageURL := ""
	if contact.Photo != nil && contact.ImageURL != "" {
		imageURL = contact.ImageURL
	}

	var entries []models.Entry
	for start := 0; start < len(numbers); start += models.MaxNumbersPerEntry {
		end := start + models.MaxNumbersPerEntry
		if end > len(numbers) {
			end = len(numbers)
		}

		chunk := make([]models.Number, 0, end-start)
		for idx, n := range numbers[start:end] {
			n.ID = idx
			chunk = append(chunk, n)
		}

		entries = append(entries, models.Entry{
			UID:      contact.UID,
			VIP:      vip,
			RealName: realName,
			ImageURL: imageURL,
			Numbers:  chunk,
			Emails:   append([]models.Email(nil), emails...),
		})
	}

	return entries
}

// ConvertAll converts every contact and concatenates the entries.
func (c *Converter) ConvertAll(contacts []*models.Contact) []models.Entry {
	var entries []models.Entry
	for _, contact := range contacts {
		entries = append(entries, c.Convert(contact)...)
	}
	return entries
}

// ConvertNumber applies the replacement table unless the number is a SIP
// address or an internal number.
func (c *Converter) ConvertNumber(number string) string {
	if isSIP(number) || strings.HasPrefix(number, models.InternalPrefix) {
		return number
	}
	number = strings.ReplaceAll(number, "\u00a0", " ")
	if c.replacer != nil {
		number = c.replacer.Replace(number)
	}
	return strings.TrimSpace(spacePattern.ReplaceAllString(number, " "))
}

// RealName resolves the first display name template whose placeholders are
// all present on the contact.
func (c *Converter) RealName(contact *models.Contact) string {
	for _, tmpl := range c.rules.RealName {
		matches := tokenPattern.FindAllStringSubmatch(tmpl, -1)
		if len(matches) == 0 {
			continue
		}

		complete := true
		for _, m := range matches {
			if contact.Field(m[1]) == "" {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}

		return tokenPattern.ReplaceAllStringFunc(tmpl, func(tok string) string {
			return contact.Field(tok[1 : len(tok)-1])
		})
	}

	c.logger.Warn("no data for display name conversion", zap.String("uid", contact.UID))
	return ""
}

func (c *Converter) phoneNumbers(contact *models.Contact) []models.Number {
	numbers := make([]models.Number, 0, len(contact.Phones))
	for _, phone := range contact.Phones {
		value := phone.Value
		if c.replacer != nil {
			value = c.ConvertNumber(value)
		}
		if value == "" {
			continue
		}

		joined := phone.JoinedTypes()
		phoneType, ok := classify(c.rules.PhoneTypes, joined)
		if !ok {
			phoneType = DefaultPhoneType
		}
		if strings.Contains(joined, "FAX") {
			phoneType = FaxPhoneType
		}

		numbers = append(numbers, models.Number{Type: phoneType, Value: value})
	}

	sort.SliceStable(numbers, func(i, j int) bool {
		ri, rj := c.rank(numbers[i].Type), c.rank(numbers[j].Type)
		if ri != rj {
			return ri < rj
		}
		return numbers[i].Value < numbers[j].Value
	})

	return numbers
}

// rank is the position of a type in the declared order; unknown types share
// the default type's last position.
func (c *Converter) rank(phoneType string) int {
	if idx, ok := c.order[phoneType]; ok {
		return idx
	}
	return c.order[DefaultPhoneType]
}

func (c *Converter) emails(contact *models.Contact) []models.Email {
	emails := make([]models.Email, 0, len(contact.Emails))
	for _, address := range contact.Emails {
		if address.Value == "" {
			continue
		}
		email := models.Email{ID: len(emails), Value: address.Value}
		if classifier, ok := classify(c.rules.EmailTypes, address.JoinedTypes()); ok {
			email.Classifier = classifier
		}
		emails = append(emails, email)
	}
	return emails
}

func (c *Converter) isVIP(contact *models.Contact) bool {
	return len(c.rules.VIP) > 0 && Matches(contact, c.rules.VIP)
}

func isSIP(number string) bool {
	return sipPattern.MatchString(number)
}
