package geocode

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// GeoNames postal code dump columns (tab separated, no header):
//
//	country_code postal_code place_name admin_name1 admin_code1
//	admin_name2 admin_code2 admin_name3 admin_code3 latitude longitude accuracy
const (
	colPostalCode = 1
	colPlaceName  = 2
	colStateCode  = 4
	colCountyName = 5
	minColumns    = 6
)

// Table is an in-memory postal code index loaded from a GeoNames dump
// (https://download.geonames.org/export/zip/US.zip).
type Table struct {
	places map[string]Place
}

// NewTable builds a table from already-resolved places keyed by ZIP.
func NewTable(places map[string]Place) *Table {
	t := &Table{places: make(map[string]Place, len(places))}
	for zip, place := range places {
		t.places[NormalizePostalCode(zip)] = place
	}
	return t
}

// LoadTable parses a GeoNames dump. Rows with too few columns or an empty
// postal code are skipped; the first row seen for a postal code wins.
func LoadTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	t := &Table{places: make(map[string]Place)}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read geonames row: %w", err)
		}
		if len(record) < minColumns {
			continue
		}
		zip := NormalizePostalCode(record[colPostalCode])
		if zip == "" {
			continue
		}
		if _, exists := t.places[zip]; exists {
			continue
		}
		t.places[zip] = Place{
			StateCode:  strings.TrimSpace(record[colStateCode]),
			PlaceName:  strings.TrimSpace(record[colPlaceName]),
			CountyName: strings.TrimSpace(record[colCountyName]),
		}
	}
	return t, nil
}

// LoadTableFile opens and parses a GeoNames dump from disk.
func LoadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geonames file: %w", err)
	}
	defer f.Close()

	return LoadTable(f)
}

// Lookup implements Geocoder.
func (t *Table) Lookup(ctx context.Context, postalCode string) (Place, error) {
	if err := ctx.Err(); err != nil {
		return Place{}, err
	}
	place, ok := t.places[NormalizePostalCode(postalCode)]
	if !ok {
		return Place{}, ErrNotFound
	}
	return place, nil
}

// Len returns the number of indexed postal codes.
func (t *Table) Len() int {
	return len(t.places)
}

// Each calls fn for every entry in ascending postal code order and stops at
// the first error.
func (t *Table) Each(fn func(zip string, place Place) error) error {
	zips := make([]string, 0, len(t.places))
	for zip := range t.places {
		zips = append(zips, zip)
	}
	sort.Strings(zips)

	for _, zip := range zips {
		if err := fn(zip, t.places[zip]); err != nil {
			return err
		}
	}
	return nil
}
