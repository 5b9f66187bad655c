// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMalformedToken indicates a beacon token that failed base64, xor or JSON decoding.
	ErrMalformedToken = errors.New("malformed beacon token")

	// ErrIncompleteRecord indicates a decoded beacon record without username/hostname.
	ErrIncompleteRecord = errors.New("incomplete beacon record")

	// ErrUnknownCarrier indicates a phone carrier with no known SMS gateway.
	ErrUnknownCarrier = errors.New("unknown carrier")

	// ErrQueueFull indicates the job executor rejected work because its queue is full.
	ErrQueueFull = errors.New("queue full")

	// ErrStopped indicates the job executor no longer accepts work.
	ErrStopped = errors.New("stopped")
)
