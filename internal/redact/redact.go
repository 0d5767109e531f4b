// Package redact strips secret-bearing fields from payloads before they reach a log sink.
package redact

// Marker replaces every denied value.
const Marker = "[REDACTED]"

// denied field names, matched case-sensitively.
var denied = map[string]struct{}{
	"Authorization":      {},
	"password":           {},
	"merchantid":         {},
	"api_key":            {},
	"secret_key":         {},
	"card":               {},
	"cardholder":         {},
	"bill_cc":            {},
	"bill_cardholder":    {},
	"bill_expmonth":      {},
	"bill_expyear":       {},
	"authcode":           {},
	"trackid":            {},
	"token":              {},
	"udf4":               {},
	"payer_account_no":   {},
	"payer_account_name": {},
}

// Denied reports whether key is on the denylist.
func Denied(key string) bool {
	_, ok := denied[key]
	return ok
}

// Map returns a copy of data with denied values replaced by Marker.
// Nested objects are copied and redacted the same way; data itself is left untouched.
func Map(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if Denied(k) {
			out[k] = Marker
			continue
		}
		switch t := v.(type) {
		case map[string]any:
			out[k] = Map(t)
		case []any:
			out[k] = slice(t)
		default:
			out[k] = v
		}
	}
	return out
}

// Strings is Map for header-like maps.
func Strings(data map[string]string) map[string]string {
	if data == nil {
		return nil
	}
	out := make(map[string]string, len(data))
	for k, v := range data {
		if Denied(k) {
			out[k] = Marker
			continue
		}
		out[k] = v
	}
	return out
}

func slice(in []any) []any {
	out := make([]any, len(in))
	for i, v := range in {
		if m, ok := v.(map[string]any); ok {
			out[i] = Map(m)
			continue
		}
		out[i] = v
	}
	return out
}
