// Package geo expands country codes reported by the analytics providers
// into the common country names used in canonical records.
package geo

import (
	"strings"
	"sync"

	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NotSet is the placeholder both providers use when a location is unknown.
const NotSet = "(not set)"

var (
	query     *gountries.Query
	queryOnce sync.Once
)

func countries() *gountries.Query {
	queryOnce.Do(func() {
		query = gountries.New()
	})
	return query
}

// CountryName returns the common name for an ISO 3166 alpha-2 or alpha-3
// code. Anything else is treated as a name and returned title-cased.
func CountryName(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || value == NotSet {
		return value
	}

	if len(value) == 2 || len(value) == 3 {
		if country, err := countries().FindCountryByAlpha(strings.ToUpper(value)); err == nil {
			return country.Name.Common
		}
	}

	if value == strings.ToLower(value) {
		caser := cases.Title(language.English)
		return caser.String(value)
	}
	return value
}

// CityName clears the provider placeholder for an unknown city.
func CityName(value string) string {
	value = strings.TrimSpace(value)
	if value == NotSet {
		return ""
	}
	return value
}
