package store

import (
	"context"
	"encoding/json"
)

// Store is a small synchronously readable key-value store holding the
// portal's persisted state. Values are opaque strings; most callers keep JSON
// in them through GetJSON and SetJSON.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	// Area names the backing storage in storage events.
	Area() string
}

// GetJSON decodes the value under key into v. It reports false when the key
// is absent, the store fails, or the value is not valid JSON for v; v is left
// untouched in those cases.
func GetJSON(ctx context.Context, s Store, key string, v any) bool {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok || raw == "" {
		return false
	}
	if !json.Valid([]byte(raw)) {
		return false
	}
	return json.Unmarshal([]byte(raw), v) == nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, string(b))
}

// GetString returns the value under key or "" when absent or unreadable.
func GetString(ctx context.Context, s Store, key string) string {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return ""
	}
	return v
}

// Has reports whether key holds a non-empty value.
func Has(ctx context.Context, s Store, key string) bool {
	return GetString(ctx, s, key) != ""
}
