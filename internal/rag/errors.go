package rag

import "errors"

var (
	// ErrService marks a failed call to an external embedding or generation
	// service. There is no retry; callers surface it as-is.
	ErrService = errors.New("external service error")

	// ErrStoreNotFound is returned when querying a store location that was
	// never built.
	ErrStoreNotFound = errors.New("vector store not found")

	// ErrDimensionMismatch is returned when a vector's length differs from the
	// dimensionality already fixed for the store.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
