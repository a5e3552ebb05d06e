package configutil

import (
	"slices"
	"strings"
)

// Schema lists the keys a vendor settings block may carry.
type Schema struct {
	Required     []string
	Optional     []string
	AllowUnknown bool
}

// SettingsError reports missing and unrecognised settings keys, both sorted.
type SettingsError struct {
	Missing []string
	Unknown []string
}

func (e *SettingsError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown: "+strings.Join(e.Unknown, ", "))
	}
	return strings.Join(parts, "; ")
}

// ValidateSettings checks input against schema. Key matching ignores case,
// underscores and hyphens, so api_key, apiKey and API-KEY are the same key.
// A required key holding an empty or blank string counts as missing.
func ValidateSettings(input map[string]any, schema Schema) error {
	known := make(map[string]bool, len(schema.Required)+len(schema.Optional))
	for _, k := range schema.Optional {
		known[normalizeKey(k)] = true
	}
	present := make(map[string]bool, len(input))
	var serr SettingsError
	for k, v := range input {
		nk := normalizeKey(k)
		if !isBlank(v) {
			present[nk] = true
		}
		if !known[nk] && !schema.AllowUnknown && !slices.ContainsFunc(schema.Required, func(r string) bool {
			return normalizeKey(r) == nk
		}) {
			serr.Unknown = append(serr.Unknown, k)
		}
	}
	for _, k := range schema.Required {
		if !present[normalizeKey(k)] {
			serr.Missing = append(serr.Missing, k)
		}
	}
	if len(serr.Missing) == 0 && len(serr.Unknown) == 0 {
		return nil
	}
	slices.Sort(serr.Missing)
	slices.Sort(serr.Unknown)
	return &serr
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}
