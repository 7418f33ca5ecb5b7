package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedArgs marks tool call arguments that are not a JSON object.
var ErrMalformedArgs = errors.New("malformed tool arguments")

// SanitizeArgs normalizes model produced arguments in place and returns them.
// The string literal "null" (any case, surrounding whitespace ignored) becomes
// nil, recursively through nested objects and arrays. Sanitizing an already
// sanitized value is a no-op.
func SanitizeArgs(args map[string]any) map[string]any {
	for k, v := range args {
		args[k] = sanitizeValue(v)
	}
	return args
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case string:
		if strings.EqualFold(strings.TrimSpace(val), "null") {
			return nil
		}
		return val
	case map[string]any:
		return SanitizeArgs(val)
	case []any:
		for i := range val {
			val[i] = sanitizeValue(val[i])
		}
		return val
	default:
		return v
	}
}

// ParseArgs decodes raw JSON arguments into a sanitized map. Empty input and
// the JSON literal null decode to an empty map. Anything that is not a JSON
// object yields an error wrapping ErrMalformedArgs.
func ParseArgs(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return map[string]any{}, nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArgs, err)
	}
	if args == nil {
		args = map[string]any{}
	}

	return SanitizeArgs(args), nil
}
