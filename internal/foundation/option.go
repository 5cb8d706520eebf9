// Package foundation provides small generic helpers shared by buildwatch packages.
package foundation

import "fmt"

// Option represents a value that may be absent. Remote records decode nullable
// JSON fields into pointers; Option is how those fields are handed to callers so
// every fallback is explicit at the use site.
type Option[T any] struct {
	value   T
	present bool
}

// Some creates an Option holding value.
func Some[T any](value T) Option[T] {
	return Option[T]{value: value, present: true}
}

// None creates an empty Option.
func None[T any]() Option[T] {
	return Option[T]{}
}

// FromPointer returns Some(*ptr) for a non-nil pointer and None otherwise.
func FromPointer[T any](ptr *T) Option[T] {
	if ptr == nil {
		return None[T]()
	}
	return Some(*ptr)
}

// IsSome reports whether the Option holds a value.
func (o Option[T]) IsSome() bool { return o.present }

// IsNone reports whether the Option is empty.
func (o Option[T]) IsNone() bool { return !o.present }

// Get returns the value and whether it was present.
func (o Option[T]) Get() (T, bool) { return o.value, o.present }

// UnwrapOr returns the value if present, otherwise fallback.
func (o Option[T]) UnwrapOr(fallback T) T {
	if o.present {
		return o.value
	}
	return fallback
}

// MapOption transforms Some(v) into Some(fn(v)); None stays None.
func MapOption[T, U any](o Option[T], fn func(T) U) Option[U] {
	if !o.present {
		return None[U]()
	}
	return Some(fn(o.value))
}

func (o Option[T]) String() string {
	if o.present {
		return fmt.Sprintf("Some(%v)", o.value)
	}
	return "None"
}
