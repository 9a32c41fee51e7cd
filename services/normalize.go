package services

import (
	"strings"

	"countrypulse/models"
)

// NormalizeName produces the stable key/display form of a raw country name:
// anything from the first comma on is discarded ("Korea, Republic of"
// becomes "Korea") and surrounding whitespace is trimmed.
func NormalizeName(raw string) string {
	name, _, _ := strings.Cut(raw, ",")
	return strings.TrimSpace(name)
}

// Normalize maps one raw catalog record onto canonical field values. The
// second return is false when the record has no usable name and must be
// skipped; every other field is optional.
func Normalize(raw models.RawCountry) (models.Country, bool) {
	name := NormalizeName(raw.Name)
	if name == "" {
		return models.Country{}, false
	}
	return models.Country{
		Name:         name,
		Capital:      raw.Capital,
		Region:       raw.Region,
		Population:   raw.Population,
		CurrencyCode: raw.CurrencyCode,
		FlagURL:      raw.FlagURL,
	}, true
}
