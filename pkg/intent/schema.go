package intent

import (
	"fmt"
	"strings"
)

const (
	FieldKind            = "kind"
	FieldNormalizedInput = "normalizedInput"
	FieldSpokenReply     = "spokenReply"
)

// ShapeError describes why a candidate does not match the intent contract.
type ShapeError struct {
	Field  string
	Reason string
}

func (e *ShapeError) Error() string {
	if e.Field == "" {
		return "intent shape: " + e.Reason
	}
	return fmt.Sprintf("intent shape: %s %s", e.Field, e.Reason)
}

// Validate checks decoded JSON against the intent contract.
// The candidate must be an object carrying non-empty string values for
// kind, normalizedInput and spokenReply, with kind in the closed enumeration.
func Validate(candidate any) (Intent, error) {
	obj, ok := candidate.(map[string]any)
	if !ok {
		return Intent{}, &ShapeError{Reason: fmt.Sprintf("expected object, got %s", typeName(candidate))}
	}
	kindRaw, err := requireString(obj, FieldKind)
	if err != nil {
		return Intent{}, err
	}
	input, err := requireString(obj, FieldNormalizedInput)
	if err != nil {
		return Intent{}, err
	}
	reply, err := requireString(obj, FieldSpokenReply)
	if err != nil {
		return Intent{}, err
	}
	kind, ok := ParseKind(kindRaw)
	if !ok {
		return Intent{}, &ShapeError{Field: FieldKind, Reason: fmt.Sprintf("unknown value %q", kindRaw)}
	}
	return Intent{Kind: kind, NormalizedInput: input, SpokenReply: reply}, nil
}

// Check validates an already typed intent with the same rules as Validate.
func Check(in Intent) error {
	_, err := Validate(map[string]any{
		FieldKind:            string(in.Kind),
		FieldNormalizedInput: in.NormalizedInput,
		FieldSpokenReply:     in.SpokenReply,
	})
	return err
}

func requireString(obj map[string]any, field string) (string, error) {
	raw, ok := obj[field]
	if !ok || raw == nil {
		return "", &ShapeError{Field: field, Reason: "is missing"}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &ShapeError{Field: field, Reason: fmt.Sprintf("must be a string, got %s", typeName(raw))}
	}
	if strings.TrimSpace(s) == "" {
		return "", &ShapeError{Field: field, Reason: "is empty"}
	}
	return s, nil
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case float64, int, int64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
