package provision

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"checkin-gate/internal/models"
)

// Header names must match the guest list exactly, including case.
const (
	ColID   = "id"
	ColName = "nome"
	ColRoom = "Sala"
)

// ParseResult holds the usable guests and how many data rows were dropped.
type ParseResult struct {
	Guests  []models.Guest
	Rows    int
	Skipped int
}

// ParseGuests reads a guest list with a header row. Values are trimmed;
// rows missing any of id, nome or Sala are skipped, as are repeated ids.
func ParseGuests(r io.Reader, delimiter rune) (ParseResult, error) {
	var res ParseResult

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if delimiter != 0 {
		cr.Comma = delimiter
	}

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return res, errors.New("empty guest list")
	}
	if err != nil {
		return res, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, want := range []string{ColID, ColName, ColRoom} {
		if _, ok := cols[want]; !ok {
			return res, fmt.Errorf("missing column %q", want)
		}
	}

	seen := make(map[string]bool)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("read row %d: %w", res.Rows+2, err)
		}
		res.Rows++

		guest := models.Guest{
			ID:   field(record, cols[ColID]),
			Name: field(record, cols[ColName]),
			Room: field(record, cols[ColRoom]),
		}
		if guest.ID == "" || guest.Name == "" || guest.Room == "" || seen[guest.ID] {
			res.Skipped++
			continue
		}
		seen[guest.ID] = true
		res.Guests = append(res.Guests, guest)
	}
	return res, nil
}

func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
