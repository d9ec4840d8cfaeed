package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrTransport marks an unreachable upstream or durable store.
	ErrTransport = errors.New("transport failure")

	// ErrMalformed marks a payload that parsed but has the wrong shape.
	ErrMalformed = errors.New("malformed data")

	// ErrValidation marks bad caller input; surfaced as 400.
	ErrValidation = errors.New("validation failed")

	// ErrIneligible is returned when approving a review that is not guest-to-host.
	ErrIneligible = errors.New("review not eligible for display")

	// ErrNotLoaded is returned by the curation store before Load has completed.
	ErrNotLoaded = errors.New("approved set not loaded")
)
