// Package tomlkeys flattens TOML documents into normalized dotted keys so
// layered settings can be merged key by key.
package tomlkeys

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Store is an immutable set of dotted keys. Table and dotted spellings of
// the same key are equivalent.
type Store struct {
	values map[string]any
}

func Decode(data []byte) (Store, error) {
	raw := map[string]any{}
	if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&raw); err != nil {
		var parseErr toml.ParseError
		if errors.As(err, &parseErr) {
			return Store{}, fmt.Errorf("line %d: %s", parseErr.Position.Line, parseErr.Message)
		}
		return Store{}, err
	}
	store := Store{values: make(map[string]any)}
	flatten("", raw, store.values)
	return store, nil
}

func flatten(prefix string, raw map[string]any, out map[string]any) {
	// Sorted so that when two spellings normalize to one key the winner is
	// stable across runs.
	for _, key := range slices.Sorted(maps.Keys(raw)) {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if table, ok := raw[key].(map[string]any); ok {
			flatten(full, table, out)
			continue
		}
		normalized := NormalizeKey(full)
		if _, taken := out[normalized]; !taken {
			out[normalized] = raw[key]
		}
	}
}

// Overlay returns a store holding s with every key of top replacing it.
func (s Store) Overlay(top Store) Store {
	merged := make(map[string]any, len(s.values)+len(top.values))
	maps.Copy(merged, s.values)
	maps.Copy(merged, top.values)
	return Store{values: merged}
}

// With returns a copy of s with key set to value. Blank keys are ignored.
func (s Store) With(key string, value any) Store {
	key = NormalizeKey(key)
	if key == "" {
		return s
	}
	return s.Overlay(Store{values: map[string]any{key: value}})
}

// Keys lists the normalized keys in sorted order.
func (s Store) Keys() []string {
	return slices.Sorted(maps.Keys(s.values))
}

// Unknown lists keys of s that known does not define.
func (s Store) Unknown(known Store) []string {
	var unknown []string
	for _, key := range s.Keys() {
		if _, ok := known.values[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	return unknown
}

func (s Store) Flat() map[string]any {
	return maps.Clone(s.values)
}

func (s Store) GetBool(key string) (bool, bool) {
	value, ok := s.values[NormalizeKey(key)].(bool)
	return value, ok
}

func (s Store) GetString(key string) (string, bool) {
	value, ok := s.values[NormalizeKey(key)].(string)
	return strings.TrimSpace(value), ok
}

// GetInt accepts any integer type and floats without a fractional part.
func (s Store) GetInt(key string) (int64, bool) {
	switch typed := s.values[NormalizeKey(key)].(type) {
	case int64:
		return typed, true
	case int:
		return int64(typed), true
	case int32:
		return int64(typed), true
	case uint16:
		return int64(typed), true
	case uint32:
		return int64(typed), true
	case float64:
		if typed == float64(int64(typed)) {
			return int64(typed), true
		}
	}
	return 0, false
}

// GetMillis reads an integer number of milliseconds.
func (s Store) GetMillis(key string) (time.Duration, bool) {
	ms, ok := s.GetInt(key)
	return time.Duration(ms) * time.Millisecond, ok
}

// NormalizeKey lowercases each dotted segment and maps underscores to dashes.
func NormalizeKey(key string) string {
	parts := strings.Split(strings.TrimSpace(key), ".")
	for i, part := range parts {
		parts[i] = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(part)), "_", "-")
	}
	return strings.Trim(strings.Join(parts, "."), ".")
}
