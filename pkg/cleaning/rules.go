// Package cleaning implements the ordered data-quality rules applied to the
// converted brewery table and the grouping of the cleaned rows by state.
//
// Rules run in a fixed order because later rules rely on earlier
// normalization:
//
//  1. trim_whitespace       trim every string cell
//  2. require_brewery_type  drop rows whose brewery_type is null
//  3. dedup_id              keep the first row per id
//  4. default_website_url   fill null website_url with "N/A"
//  5. normalize_name        strip quotes, collapse whitespace in name
//  6. normalize_text        lower-case and ASCII-fold state, city, country
//  7. coerce_coordinates    latitude and longitude become floats
//  8. geofence              drop rows whose coordinates are out of range
//
// Dropped rows are counted, never treated as errors.
package cleaning

import (
	"math"
	"strconv"
	"strings"

	"github.com/lucasllimati/Projeto-AB-InBev/pkg/normalize"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/table"
)

// Column names the rules act on.
const (
	ColID          = "id"
	ColBreweryType = "brewery_type"
	ColName        = "name"
	ColState       = "state"
	ColCity        = "city"
	ColCountry     = "country"
	ColLatitude    = "latitude"
	ColLongitude   = "longitude"
	ColWebsiteURL  = "website_url"
)

// WebsiteSentinel replaces a missing website_url.
const WebsiteSentinel = "N/A"

// Rule names, in application order.
const (
	RuleTrim           = "trim_whitespace"
	RuleRequireType    = "require_brewery_type"
	RuleDedup          = "dedup_id"
	RuleDefaultWebsite = "default_website_url"
	RuleName           = "normalize_name"
	RuleText           = "normalize_text"
	RuleCoerceCoords   = "coerce_coordinates"
	RuleGeofence       = "geofence"
)

// Rule is one cleaning step. Apply mutates the table and returns the number
// of cells or rows it affected.
type Rule struct {
	Name  string
	Apply func(t *table.Table) int
}

// Rules returns the cleaning rules in the order they must run.
func Rules() []Rule {
	return []Rule{
		{RuleTrim, trimWhitespace},
		{RuleRequireType, requireBreweryType},
		{RuleDedup, dedupByID},
		{RuleDefaultWebsite, defaultWebsite},
		{RuleName, normalizeName},
		{RuleText, normalizeText},
		{RuleCoerceCoords, coerceCoordinates},
		{RuleGeofence, geofence},
	}
}

func trimWhitespace(t *table.Table) int {
	changed := 0
	for ci, c := range t.Schema.Columns {
		if c.Kind != table.KindString {
			continue
		}
		for _, r := range t.Rows {
			s, ok := r[ci].(string)
			if !ok {
				continue
			}
			if trimmed := strings.TrimSpace(s); trimmed != s {
				r[ci] = trimmed
				changed++
			}
		}
	}
	return changed
}

// requireBreweryType drops null brewery types. An empty string is a value
// and is kept. A table without the column has no valid rows.
func requireBreweryType(t *table.Table) int {
	ci := t.Schema.Index(ColBreweryType)
	if ci < 0 {
		n := t.Len()
		t.Rows = nil
		return n
	}
	return t.Filter(func(r table.Row) bool { return r[ci] != nil })
}

// dedupByID keeps the first row for every id. Null ids are equal to each
// other, so only the first row without an id survives.
func dedupByID(t *table.Table) int {
	ci := t.Schema.Index(ColID)
	seen := make(map[any]bool, t.Len())
	return t.Filter(func(r table.Row) bool {
		var key any
		if ci >= 0 {
			key = r[ci]
		}
		if seen[key] {
			return false
		}
		seen[key] = true
		return true
	})
}

func defaultWebsite(t *table.Table) int {
	if !t.Schema.Has(ColWebsiteURL) {
		t.AddColumn(table.Column{Name: ColWebsiteURL, Kind: table.KindString}, WebsiteSentinel)
		return t.Len()
	}
	ci := asText(t, ColWebsiteURL)
	filled := 0
	for _, r := range t.Rows {
		if r[ci] == nil {
			r[ci] = WebsiteSentinel
			filled++
		}
	}
	return filled
}

// normalizeName strips double quotes, then collapses whitespace and trims.
// Quotes are removed before collapsing rather than after, so a quote
// between two spaces cannot leave a double space behind.
func normalizeName(t *table.Table) int {
	ci := asText(t, ColName)
	if ci < 0 {
		return 0
	}
	changed := 0
	for _, r := range t.Rows {
		s, ok := r[ci].(string)
		if !ok {
			continue
		}
		n := normalize.CollapseSpaces(strings.ReplaceAll(s, `"`, ""))
		if n != s {
			r[ci] = n
			changed++
		}
	}
	return changed
}

func normalizeText(t *table.Table) int {
	changed := 0
	for _, name := range []string{ColState, ColCity, ColCountry} {
		ci := asText(t, name)
		if ci < 0 {
			continue
		}
		for _, r := range t.Rows {
			s, ok := r[ci].(string)
			if !ok {
				continue
			}
			if n := normalize.Text(s); n != s {
				r[ci] = n
				changed++
			}
		}
	}
	return changed
}

// coerceCoordinates turns latitude and longitude into float columns. Values
// that do not parse as a finite number become null and are counted.
func coerceCoordinates(t *table.Table) int {
	nulled := 0
	for _, name := range []string{ColLatitude, ColLongitude} {
		ci := t.Schema.Index(name)
		if ci < 0 {
			continue
		}
		t.Schema.Columns[ci].Kind = table.KindFloat
		for _, r := range t.Rows {
			if r[ci] == nil {
				continue
			}
			f, ok := toFloat(r[ci])
			if !ok {
				r[ci] = nil
				nulled++
				continue
			}
			r[ci] = f
		}
	}
	return nulled
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int64:
		f = float64(x)
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// geofence drops a row only when both coordinates are present and at least
// one is out of range. Rows missing either coordinate are kept.
func geofence(t *table.Table) int {
	lat, lon := t.Schema.Index(ColLatitude), t.Schema.Index(ColLongitude)
	if lat < 0 || lon < 0 {
		return 0
	}
	return t.Filter(func(r table.Row) bool {
		la, ok1 := r[lat].(float64)
		lo, ok2 := r[lon].(float64)
		if !ok1 || !ok2 {
			return true
		}
		return la >= -90 && la <= 90 && lo >= -180 && lo <= 180
	})
}

// asText makes sure the named column is a string column, rendering any
// non-null values as text, and returns its index or -1.
func asText(t *table.Table, name string) int {
	ci := t.Schema.Index(name)
	if ci < 0 || t.Schema.Columns[ci].Kind == table.KindString {
		return ci
	}
	t.Schema.Columns[ci].Kind = table.KindString
	for _, r := range t.Rows {
		switch x := r[ci].(type) {
		case int64:
			r[ci] = strconv.FormatInt(x, 10)
		case float64:
			r[ci] = strconv.FormatFloat(x, 'g', -1, 64)
		case bool:
			r[ci] = strconv.FormatBool(x)
		}
	}
	return ci
}
