package config

import "strings"

// secretKeys lists the dot-separated keys whose values should be masked.
var secretKeys = map[string]bool{
	"backend.api_key": true,
	"telegram.token":  true,
}

// IsSecretKey returns true if the given dot-separated key is a secret.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}

// Flatten converts a nested map into a flat map with dot-separated keys.
// For example, {"backend": {"base_url": "x"}} becomes {"backend.base_url": "x"}.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	flatten("", m, out)
	return out
}

func flatten(prefix string, m map[string]any, out map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch child := v.(type) {
		case map[string]any:
			flatten(key, child, out)
		default:
			out[key] = v
		}
	}
}

// Unflatten converts a flat map with dot-separated keys back into a nested map.
// For example, {"storage.driver": "sqlite"} becomes {"storage": {"driver": "sqlite"}}.
// A scalar sitting where a nested key needs a map is replaced by the map.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range flat {
		setPath(out, strings.Split(k, "."), v)
	}
	return out
}

func setPath(m map[string]any, parts []string, v any) {
	if len(parts) == 1 {
		m[parts[0]] = v
		return
	}
	child, ok := m[parts[0]].(map[string]any)
	if !ok {
		child = make(map[string]any)
		m[parts[0]] = child
	}
	setPath(child, parts[1:], v)
}

// MaskSecrets returns a copy of the flat map with secret values masked as
// "***" followed by the last four characters. Empty values stay empty.
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		out[k] = v
		s, ok := v.(string)
		if !secretKeys[k] || !ok || s == "" {
			continue
		}
		out[k] = "***" + s[max(0, len(s)-4):]
	}
	return out
}
