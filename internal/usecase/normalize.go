package usecase

import (
	"regexp"

	"key2pay-backend/internal/domain"
)

var currencyPrefixed = regexp.MustCompile(`^[A-Z]{3}([0-9]+)$`)

// codeKeys are searched in order when the code arrives as an object.
var codeKeys = []string{"responsecode", "error_code_tag", "error_text"}

// Normalize returns the canonical status code carried by f. It never fails:
// missing input yields "", unrecognized input is returned unchanged.
func Normalize(f domain.Field) string {
	switch v := f.(type) {
	case domain.Scalar:
		return stripCurrency(string(v))
	case domain.Structured:
		for _, k := range codeKeys {
			raw, ok := v[k]
			if !ok || raw == nil {
				continue
			}
			// one level only: nested objects do not count as present,
			// an empty scalar does and ends the search
			if s, ok := domain.FieldOf(raw).(domain.Scalar); ok {
				return stripCurrency(string(s))
			}
		}
	}
	return ""
}

func stripCurrency(code string) string {
	if m := currencyPrefixed.FindStringSubmatch(code); m != nil {
		return m[1]
	}
	return code
}
