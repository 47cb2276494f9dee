package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// DecodePayload parses a schema document. JSON (with comments and trailing
// commas tolerated) is tried first, YAML second. The top level must be an
// object.
func DecodePayload(raw []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("schema: document is empty")
	}

	var payload map[string]any
	jsonErr := json.Unmarshal(jsonc.ToJSON(trimmed), &payload)
	if jsonErr == nil {
		if payload == nil {
			return nil, errors.New("schema: document is null")
		}
		return payload, nil
	}

	var generic any
	if err := yaml.Unmarshal(trimmed, &generic); err != nil {
		return nil, fmt.Errorf("schema: parse document: %w", jsonErr)
	}
	normalized, ok := NormalizeValue(generic).(map[string]any)
	if !ok || normalized == nil {
		return nil, errors.New("schema: document must be an object")
	}
	return normalized, nil
}

// NormalizeValue converts decoded YAML/CBOR values into the shapes
// encoding/json produces so schemas and contexts look the same regardless of
// their wire format.
func NormalizeValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, child := range typed {
			out[key] = NormalizeValue(child)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(typed))
		for key, child := range typed {
			out[fmt.Sprint(key)] = NormalizeValue(child)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for idx, child := range typed {
			out[idx] = NormalizeValue(child)
		}
		return out
	case int:
		return float64(typed)
	case int64:
		return float64(typed)
	case uint64:
		return float64(typed)
	case float32:
		return float64(typed)
	default:
		return typed
	}
}
