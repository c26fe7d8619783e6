package domain

import (
	"bytes"
	"encoding/json"
)

// Field is a tri-state patch value. The zero Field is omitted; a Field built
// with Set is present even when it carries a nil or empty value, which lets a
// patch tell "leave unchanged" apart from "clear".
type Field[T any] struct {
	value T
	set   bool
}

// Set returns a present Field holding v.
func Set[T any](v T) Field[T] {
	return Field[T]{value: v, set: true}
}

// IsSet reports whether the field was supplied.
func (f Field[T]) IsSet() bool { return f.set }

// Value returns the carried value (the zero value when omitted).
func (f Field[T]) Value() T { return f.value }

// Get returns the value and whether it was supplied.
func (f Field[T]) Get() (T, bool) { return f.value, f.set }

// UnmarshalJSON marks the field present, including for an explicit null.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		f.value = zero
		return nil
	}
	return json.Unmarshal(data, &f.value)
}

// MarshalJSON encodes the carried value; omitted fields encode as null.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.set {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}
