// Package masking redacts secrets from payloads before they are persisted in logs.
package masking

import (
	"encoding/json"
	"strings"
)

const maskToken = "****"

var sensitiveKeyFragments = []string{"password", "secret", "private_key", "privatekey"}

// MaskSecret redacts a secret while keeping a minimal suffix for auditing.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 8 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// MaskPayload returns a copy of input with sensitive keys redacted at any depth.
func MaskPayload(input map[string]any) map[string]any {
	if input == nil {
		return nil
	}

	masked := make(map[string]any, len(input))
	for key, value := range input {
		if IsSensitiveKey(key) {
			if s, ok := value.(string); ok {
				masked[key] = MaskSecret(s)
			} else if value != nil {
				masked[key] = maskToken
			} else {
				masked[key] = nil
			}
			continue
		}
		masked[key] = maskValue(value)
	}
	return masked
}

// MaskJSON marshals v and redacts sensitive keys in the resulting document.
func MaskJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(maskValue(generic))
}

// IsSensitiveKey reports whether a payload key names a secret.
func IsSensitiveKey(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(normalized, fragment) {
			return true
		}
	}
	return false
}

func maskValue(value any) any {
	switch cast := value.(type) {
	case map[string]any:
		return MaskPayload(cast)
	case []any:
		out := make([]any, 0, len(cast))
		for _, item := range cast {
			out = append(out, maskValue(item))
		}
		return out
	default:
		return value
	}
}
