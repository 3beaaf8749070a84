// Package utils holds small helpers for the nullable columns of the store.
package utils

import "strings"

// Ptr returns a pointer to a copy of v, for optional fields and literals.
func Ptr[T any](v T) *T {
	return &v
}

// OrZero dereferences v, treating nil as the zero value.
func OrZero[T comparable](v *T) T {
	if v != nil {
		return *v
	}
	var zero T
	return zero
}

// StringOrNil trims s and maps an empty result to a NULL column.
func StringOrNil(s string) *string {
	if s = strings.TrimSpace(s); s != "" {
		return &s
	}
	return nil
}
