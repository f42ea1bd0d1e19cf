// ABOUTME: Appliance phonebook XML wire format (phonebooks/phonebook/contact tree)
// ABOUTME: Marshals documents for import and parses router exports losslessly
package phonebook

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/harperreed/card2box/models"
)

const vipCategory = "1"

type xmlPhonebooks struct {
	XMLName    xml.Name       `xml:"phonebooks"`
	Phonebooks []xmlPhonebook `xml:"phonebook"`
}

type xmlPhonebook struct {
	Name     string       `xml:"name,attr,omitempty"`
	Owner    string       `xml:"owner,attr,omitempty"`
	Contacts []xmlContact `xml:"contact"`
}

type xmlContact struct {
	UID       string        `xml:"carddav_uid,omitempty"`
	Category  string        `xml:"category,omitempty"`
	Telephony xmlTelephony  `xml:"telephony"`
	Services  *xmlServices  `xml:"services,omitempty"`
	Person    xmlPerson     `xml:"person"`
	Extra     []xmlAnyChild `xml:",any"`
}

type xmlTelephony struct {
	NID     string      `xml:"nid,attr,omitempty"`
	Numbers []xmlNumber `xml:"number"`
}

type xmlNumber struct {
	ID        string `xml:"id,attr"`
	Type      string `xml:"type,attr,omitempty"`
	Prio      string `xml:"prio,attr,omitempty"`
	Quickdial string `xml:"quickdial,attr,omitempty"`
	Vanity    string `xml:"vanity,attr,omitempty"`
	Value     string `xml:",chardata"`
}

type xmlServices struct {
	NID    string     `xml:"nid,attr,omitempty"`
	Emails []xmlEmail `xml:"email"`
}

type xmlEmail struct {
	ID         string `xml:"id,attr"`
	Classifier string `xml:"classifier,attr,omitempty"`
	Value      string `xml:",chardata"`
}

type xmlPerson struct {
	RealName string `xml:"realName"`
	ImageURL string `xml:"imageURL,omitempty"`
}

type xmlAnyChild struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   string     `xml:",innerxml"`
}

// Marshal renders a document in the appliance import format.
func Marshal(doc models.Document) ([]byte, error) {
	root := xmlPhonebooks{
		Phonebooks: []xmlPhonebook{{Name: doc.Name}},
	}

	contacts := make([]xmlContact, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		contacts = append(contacts, toXML(e))
	}
	root.Phonebooks[0].Contacts = contacts

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("failed to encode phonebook: %w", err)
	}
	buf.WriteByte('\n')

	return buf.Bytes(), nil
}

// Parse reads the first phonebook of an appliance export.
func Parse(data []byte) (models.Document, error) {
	var root xmlPhonebooks
	if err := xml.Unmarshal(data, &root); err != nil {
		return models.Document{}, fmt.Errorf("failed to parse phonebook: %w", err)
	}
	if len(root.Phonebooks) == 0 {
		return models.Document{}, fmt.Errorf("no phonebook element found")
	}

	pb := root.Phonebooks[0]
	doc := models.Document{Name: pb.Name, Entries: make([]models.Entry, 0, len(pb.Contacts))}
	for _, c := range pb.Contacts {
		doc.Entries = append(doc.Entries, fromXML(c))
	}

	return doc, nil
}

func toXML(e models.Entry) xmlContact {
	c := xmlContact{
		UID:    e.UID,
		Person: xmlPerson{RealName: e.RealName, ImageURL: e.ImageURL},
	}
	if e.VIP {
		c.Category = vipCategory
	}

	for _, n := range e.Numbers {
		c.Telephony.Numbers = append(c.Telephony.Numbers, xmlNumber{
			ID:        strconv.Itoa(n.ID),
			Type:      n.Type,
			Prio:      n.Prio,
			Quickdial: n.Quickdial,
			Vanity:    n.Vanity,
			Value:     n.Value,
		})
	}
	c.Telephony.NID = strconv.Itoa(len(e.Numbers))

	if len(e.Emails) > 0 {
		c.Services = &xmlServices{NID: strconv.Itoa(len(e.Emails))}
		for _, m := range e.Emails {
			c.Services.Emails = append(c.Services.Emails, xmlEmail{
				ID:         strconv.Itoa(m.ID),
				Classifier: m.Classifier,
				Value:      m.Value,
			})
		}
	}

	for _, raw := range e.Extra {
		child := xmlAnyChild{XMLName: xml.Name{Local: raw.Name}, Inner: raw.Inner}
		for _, a := range raw.Attrs {
			child.Attrs = append(child.Attrs, xml.Attr{Name: xml.Name{Local: a.Name}, Value: a.Value})
		}
		c.Extra = append(c.Extra, child)
	}

	return c
}

func fromXML(c xmlContact) models.Entry {
	e := models.Entry{
		UID:      strings.TrimSpace(c.UID),
		VIP:      strings.TrimSpace(c.Category) == vipCategory,
		RealName: c.Person.RealName,
		ImageURL: c.Person.ImageURL,
	}

	for idx, n := range c.Telephony.Numbers {
		e.Numbers = append(e.Numbers, models.Number{
			ID:        atoiDefault(n.ID, idx),
			Type:      n.Type,
			Prio:      n.Prio,
			Quickdial: n.Quickdial,
			Vanity:    n.Vanity,
			Value:     strings.TrimSpace(n.Value),
		})
	}

	if c.Services != nil {
		for idx, m := range c.Services.Emails {
			e.Emails = append(e.Emails, models.Email{
				ID:         atoiDefault(m.ID, idx),
				Classifier: m.Classifier,
				Value:      strings.TrimSpace(m.Value),
			})
		}
	}

	for _, x := range c.Extra {
		raw := models.RawElement{Name: x.XMLName.Local, Inner: x.Inner}
		for _, a := range x.Attrs {
			raw.Attrs = append(raw.Attrs, models.RawAttr{Name: a.Name.Local, Value: a.Value})
		}
		e.Extra = append(e.Extra, raw)
	}

	return e
}

func atoiDefault(s string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return v
}
