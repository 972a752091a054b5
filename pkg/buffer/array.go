// Package buffer provides an owned, fixed-capacity sequence used for the
// worst-case scratch buffers of the conversion pipeline.
package buffer

import (
	"errors"
	"fmt"
)

// Buffer errors.
var (
	ErrAlreadyInitialized = errors.New("buffer already initialized")
	ErrNotInitialized     = errors.New("buffer not initialized")
	ErrCapacityExceeded   = errors.New("resize exceeds buffer capacity")
)

// Array is a zeroed sequence of T with an explicit length and capacity.
// The capacity is fixed at Init; Resize moves the length within it and
// Shrink reallocates the storage to exactly Len elements.
type Array[T any] struct {
	data []T
}

// New allocates an Array holding count zero values.
func New[T any](count int) (*Array[T], error) {
	a := &Array[T]{}
	if err := a.Init(count); err != nil {
		return nil, err
	}
	return a, nil
}

// Init allocates count zero values. It fails if the array already owns storage.
func (a *Array[T]) Init(count int) error {
	if a.data != nil {
		return ErrAlreadyInitialized
	}
	if count < 0 {
		return fmt.Errorf("invalid buffer count %d", count)
	}
	a.data = make([]T, count)
	return nil
}

// Len returns the number of live elements.
func (a *Array[T]) Len() int {
	return len(a.data)
}

// Cap returns the number of allocated elements.
func (a *Array[T]) Cap() int {
	return cap(a.data)
}

// Data returns the live elements. The slice aliases the array storage.
func (a *Array[T]) Data() []T {
	return a.data
}

// Resize sets the length to count. Growing past the allocated capacity is an
// error; elements uncovered by growing back keep their previous values.
func (a *Array[T]) Resize(count int) error {
	if a.data == nil {
		return ErrNotInitialized
	}
	if count < 0 || count > cap(a.data) {
		return fmt.Errorf("%w: %d > %d", ErrCapacityExceeded, count, cap(a.data))
	}
	a.data = a.data[:count]
	return nil
}

// Shrink reallocates the storage so that Cap equals Len.
func (a *Array[T]) Shrink() {
	if a.data == nil || len(a.data) == cap(a.data) {
		return
	}
	tight := make([]T, len(a.data))
	copy(tight, a.data)
	a.data = tight
}

// Detach shrinks the array and hands its storage to the caller. The array
// is left empty and may be initialized again.
func (a *Array[T]) Detach() []T {
	a.Shrink()
	data := a.data
	a.data = nil
	return data
}

// Release drops the storage. Calling Release on an empty array is a no-op so
// it can be deferred unconditionally.
func (a *Array[T]) Release() {
	a.data = nil
}
