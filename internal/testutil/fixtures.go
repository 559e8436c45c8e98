package testutil

import "fmt"

// states cycles through a few states, some needing normalization.
var states = []string{"Colorado", " São Paulo ", "Texas", "new york"}

var types = []string{"micro", "brewpub", "large", "planning"}

// Breweries returns n synthetic brewery records shaped like the API's.
// Coordinates are strings as the API sends them.
func Breweries(n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = Brewery(fmt.Sprintf("b-%04d", i), types[i%len(types)], states[i%len(states)])
	}
	return out
}

// Brewery returns one brewery record. A nil breweryType or state is sent as
// JSON null.
func Brewery(id string, breweryType, state any) map[string]any {
	return map[string]any{
		"id":             id,
		"name":           "Brewery " + id,
		"brewery_type":   breweryType,
		"address_1":      "1 Main St",
		"city":           "Springfield",
		"state_province": state,
		"postal_code":    "80202",
		"country":        "United States",
		"longitude":      "-104.99",
		"latitude":       "39.74",
		"phone":          nil,
		"website_url":    nil,
		"state":          state,
		"street":         "1 Main St",
	}
}
