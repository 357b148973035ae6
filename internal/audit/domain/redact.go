package domain

import "strings"

// Field names masked before a snapshot is persisted. Matching is
// case-sensitive on purpose: upstream payloads use these exact keys.
var sensitiveFields = map[string]struct{}{
	"swiftIBAN":     {},
	"iban":          {},
	"email":         {},
	"telNumber":     {},
	"phone":         {},
	"mobile":        {},
	"initial":       {},
	"firstname":     {},
	"middlename":    {},
	"lastname":      {},
	"lastName":      {},
	"street":        {},
	"houseno":       {},
	"housenoExt":    {},
	"zipcode":       {},
	"city":          {},
	"birthday":      {},
	"accountHolder": {},
	"password":      {},
	"token":         {},
}

// Redact returns a copy of data with sensitive values masked, recursing into
// nested maps and slices. The input is never modified.
func Redact(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}

	out := make(map[string]any, len(data))
	for key, value := range data {
		out[key] = redactValue(key, value)
	}
	return out
}

func redactValue(key string, value any) any {
	switch v := value.(type) {
	case map[string]any:
		return Redact(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			if nested, ok := item.(map[string]any); ok {
				out[i] = Redact(nested)
			} else {
				out[i] = item
			}
		}
		return out
	case string:
		if _, sensitive := sensitiveFields[key]; sensitive && v != "" {
			return mask(key, v)
		}
		return v
	default:
		if _, sensitive := sensitiveFields[key]; sensitive && value != nil {
			return "***"
		}
		return value
	}
}

// mask keeps just enough of the value to correlate records without exposing
// the data: first char plus domain for emails, country code and last four for
// IBANs, last two digits for phone numbers, first char for everything else.
func mask(key, value string) string {
	switch key {
	case "email":
		if at := strings.Index(value, "@"); at > 0 {
			return value[:1] + strings.Repeat("*", at-1) + value[at:]
		}
	case "swiftIBAN", "iban":
		if len(value) > 8 {
			return value[:2] + strings.Repeat("*", len(value)-6) + value[len(value)-4:]
		}
	case "telNumber", "phone", "mobile":
		if len(value) > 4 {
			return strings.Repeat("*", len(value)-2) + value[len(value)-2:]
		}
	}

	return value[:1] + strings.Repeat("*", len(value)-1)
}
