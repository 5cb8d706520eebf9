package foundation

import (
	"fmt"
	"slices"
	"strings"
)

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Normalizer maps case-insensitive user input onto a typed enum value.
type Normalizer[T comparable] struct {
	values       map[string]T
	defaultValue T
}

// NewNormalizer creates a normalizer with a map of valid string->value pairs.
func NewNormalizer[T comparable](values map[string]T, defaultValue T) *Normalizer[T] {
	normalized := make(map[string]T, len(values))
	for k, v := range values {
		normalized[normalizeKey(k)] = v
	}
	return &Normalizer[T]{values: normalized, defaultValue: defaultValue}
}

// Normalize returns the matching value, or the default for unknown input.
func (n *Normalizer[T]) Normalize(raw string) T {
	if value, ok := n.values[normalizeKey(raw)]; ok {
		return value
	}
	return n.defaultValue
}

// NormalizeWithError is like Normalize but rejects unknown input. Empty input
// yields the default.
func (n *Normalizer[T]) NormalizeWithError(raw string) (T, error) {
	if normalizeKey(raw) == "" {
		return n.defaultValue, nil
	}
	if value, ok := n.values[normalizeKey(raw)]; ok {
		return value, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid value %q (valid: %s)", raw, strings.Join(n.ValidKeys(), ", "))
}

// ValidKeys returns the accepted inputs in sorted order.
func (n *Normalizer[T]) ValidKeys() []string {
	keys := make([]string, 0, len(n.values))
	for k := range n.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
