// ABOUTME: Flat delimited persistence format for router-local attributes
// ABOUTME: One CSV row per identifier/number pairing with a fixed header
package restore

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/harperreed/card2box/models"
)

// Header is the first row of a serialized attribute table.
var Header = []string{"uid", "number", "id", "type", "quickdial", "vanity", "name"}

// Serialize flattens a table into rows, header first, sorted by identifier
// and number id.
func Serialize(table models.AttributeTable) [][]string {
	uids := make([]string, 0, len(table))
	for uid := range table {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	rows := [][]string{append([]string(nil), Header...)}
	for _, uid := range uids {
		attrs := append([]models.Attribute(nil), table[uid]...)
		sort.SliceStable(attrs, func(i, j int) bool {
			if attrs[i].ID != attrs[j].ID {
				return attrs[i].ID < attrs[j].ID
			}
			return attrs[i].Number < attrs[j].Number
		})
		for _, a := range attrs {
			rows = append(rows, []string{
				uid, a.Number, strconv.Itoa(a.ID), a.Type, a.Quickdial, a.Vanity, a.Name,
			})
		}
	}
	return rows
}

// Deserialize rebuilds a table from rows. The header row is optional.
func Deserialize(rows [][]string) (models.AttributeTable, error) {
	table := make(models.AttributeTable)
	for i, row := range rows {
		if i == 0 && isHeader(row) {
			continue
		}
		if len(row) != len(Header) {
			return nil, fmt.Errorf("row %d: expected %d columns, got %d", i+1, len(Header), len(row))
		}
		if row[0] == "" {
			return nil, fmt.Errorf("row %d: missing uid", i+1)
		}

		id, err := strconv.Atoi(row[2])
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid id %q: %w", i+1, row[2], err)
		}

		table[row[0]] = append(table[row[0]], models.Attribute{
			UID:       row[0],
			Number:    row[1],
			ID:        id,
			Type:      row[3],
			Quickdial: row[4],
			Vanity:    row[5],
			Name:      row[6],
		})
	}
	return table, nil
}

// Encode writes a table as CSV.
func Encode(w io.Writer, table models.AttributeTable) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(Serialize(table)); err != nil {
		return fmt.Errorf("failed to write attributes: %w", err)
	}
	return nil
}

// Decode reads a CSV attribute table.
func Decode(r io.Reader) (models.AttributeTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read attributes: %w", err)
	}
	return Deserialize(rows)
}

// Marshal encodes a table into a byte slice.
func Marshal(table models.AttributeTable) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, table); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isHeader(row []string) bool {
	return len(row) > 0 && row[0] == Header[0]
}
