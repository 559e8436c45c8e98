package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"São Paulo", "Sao Paulo"},
		{"Zürich", "Zurich"},
		{"Kraków", "Krakow"},
		{"Łódź", "Lodz"},
		{"Straße", "Strasse"},
		{"Ærø", "AEro"},
		{"plain", "plain"},
		{"Москва", "Moskva"},
		{"東京", "Dong Jing "},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Fold(tt.in))
		})
	}
}

func TestCollapseSpaces(t *testing.T) {
	assert.Equal(t, "Big Beer Co", CollapseSpaces("  Big \t Beer\n\nCo "))
	assert.Equal(t, "", CollapseSpaces("   "))
}

func TestText(t *testing.T) {
	assert.Equal(t, "sao paulo", Text(" São Paulo "))
	assert.Equal(t, "new york", Text("NEW YORK"))
	assert.Equal(t, "", Text(" "))
	assert.Equal(t, "moskva", Text(" МОСКВА "))
	assert.Equal(t, "dong jing", Text("東京"))
}

func TestText_NonLatinStatesStayDistinct(t *testing.T) {
	states := []string{"Москва", "東京", "Αττική", "Санкт-Петербург"}
	seen := make(map[string]string)
	for _, s := range states {
		got := Text(s)
		assert.NotEmpty(t, got, s)
		assert.NotEqual(t, UnknownSlug, Slug(s), s)
		if prev, ok := seen[got]; ok {
			t.Errorf("%q and %q both normalize to %q", prev, s, got)
		}
		seen[got] = s
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sao paulo", "sao_paulo"},
		{" São Paulo ", "sao_paulo"},
		{"new-york", "new-york"},
		{"st. louis", "st._louis"},
		{"a.b", "a.b"},
		{"a b", "a_b"},
		{"a/b", "a_b"},
		{`a\b`, "a_b"},
		{"a\x00b", "a_b"},
		{"../etc", "_etc"},
		{"..", UnknownSlug},
		{"", UnknownSlug},
		{"Москва", "moskva"},
		{"東京", "dong_jing"},
		{"   ", UnknownSlug},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.in))
		})
	}
}
