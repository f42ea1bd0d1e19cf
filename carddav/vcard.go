// ABOUTME: Maps vCard 3.0 and 4.0 cards onto contact records
// ABOUTME: Handles typed phones and emails, iCloud groups and embedded photos
package carddav

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/emersion/go-vcard"
	"github.com/harperreed/card2box/models"
)

const (
	fieldICloudKind   = "X-ADDRESSBOOKSERVER-KIND"
	fieldICloudMember = "X-ADDRESSBOOKSERVER-MEMBER"
)

// FromCard converts a decoded vCard into a contact record.
func FromCard(card vcard.Card) *models.Contact {
	c := &models.Contact{
		UID:  card.Value(vcard.FieldUID),
		Kind: models.KindIndividual,
	}

	c.SetField(models.FieldFullName, card.Value(vcard.FieldFormattedName))
	if name := card.Name(); name != nil {
		c.SetField(models.FieldLastName, name.FamilyName)
		c.SetField(models.FieldFirstName, name.GivenName)
		c.SetField(models.FieldAdditionalNames, name.AdditionalName)
		c.SetField(models.FieldPrefix, name.HonorificPrefix)
		c.SetField(models.FieldSuffix, name.HonorificSuffix)
	}
	c.SetField(models.FieldNickname, card.Value(vcard.FieldNickname))
	if org := card.Value(vcard.FieldOrganization); org != "" {
		parts := strings.SplitN(org, ";", 2)
		c.SetField(models.FieldOrganization, parts[0])
		if len(parts) > 1 {
			c.SetField(models.FieldDepartment, strings.ReplaceAll(parts[1], ";", " "))
		}
	}
	c.SetField(models.FieldJobTitle, card.Value(vcard.FieldTitle))

	for _, f := range card[vcard.FieldTelephone] {
		value := strings.TrimSpace(strings.TrimPrefix(f.Value, "tel:"))
		if value == "" {
			continue
		}
		c.Phones = append(c.Phones, models.TypedValue{Value: value, Types: types(f)})
	}
	for _, f := range card[vcard.FieldEmail] {
		value := strings.TrimSpace(strings.TrimPrefix(f.Value, "mailto:"))
		if value == "" {
			continue
		}
		c.Emails = append(c.Emails, models.TypedValue{Value: value, Types: types(f)})
	}
	for _, f := range card[vcard.FieldCategories] {
		for _, category := range strings.Split(f.Value, ",") {
			if category = strings.TrimSpace(category); category != "" {
				c.Categories = append(c.Categories, category)
			}
		}
	}

	if strings.EqualFold(card.Value(fieldICloudKind), "group") || card.Kind() == vcard.KindGroup {
		c.Kind = models.KindGroup
		for _, f := range card[fieldICloudMember] {
			c.Members = append(c.Members, f.Value)
		}
		c.Members = append(c.Members, card.Values(vcard.FieldMember)...)
	}

	if f := card.Get(vcard.FieldPhoto); f != nil {
		c.Photo = decodePhoto(f)
	}

	return c
}

func types(f *vcard.Field) []string {
	var out []string
	for _, value := range f.Params[vcard.ParamType] {
		for _, t := range strings.Split(value, ",") {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, strings.ToUpper(t))
			}
		}
	}
	return out
}

// decodePhoto reads inline base64 data (3.0 ENCODING=b or a data URI) or
// keeps an external link for later embedding.
func decodePhoto(f *vcard.Field) *models.Photo {
	value := strings.TrimSpace(f.Value)
	if value == "" {
		return nil
	}

	if strings.HasPrefix(strings.ToLower(value), "data:") {
		return decodeDataURI(value)
	}

	encoding := strings.ToLower(f.Params.Get("ENCODING"))
	if encoding == "b" || encoding == "base64" {
		data, err := decodeBase64(value)
		if err != nil {
			return nil
		}
		format := strings.ToUpper(f.Params.Get(vcard.ParamType))
		format = strings.TrimPrefix(format, "IMAGE/")
		return &models.Photo{Data: data, Format: format}
	}

	if u, err := url.Parse(value); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return &models.Photo{URL: value}
	}
	return nil
}

func decodeDataURI(value string) *models.Photo {
	header, content, ok := strings.Cut(value, ",")
	if !ok {
		return nil
	}
	mediaType := strings.TrimPrefix(strings.ToLower(header), "data:")
	mime, params, _ := strings.Cut(mediaType, ";")
	if params != "base64" {
		return nil
	}
	data, err := decodeBase64(content)
	if err != nil {
		return nil
	}
	_, subtype, _ := strings.Cut(mime, "/")
	return &models.Photo{Data: data, Format: strings.ToUpper(subtype)}
}

func decodeBase64(value string) ([]byte, error) {
	value = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			return -1
		}
		return r
	}, value)
	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return base64.RawStdEncoding.DecodeString(strings.TrimRight(value, "="))
	}
	return data, nil
}
