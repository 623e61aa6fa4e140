package domain

import "errors"

var (
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	ErrAlreadyCapturing  = errors.New("recording already in progress")
	ErrNotCapturing      = errors.New("no recording in progress")
	ErrNoVerse           = errors.New("no verse selected")
	ErrNoRecording       = errors.New("no recording available")
	ErrInvalidSelection  = errors.New("invalid selection")
	ErrUnknownEdition    = errors.New("unknown edition")
	ErrFacetMismatch     = errors.New("verse facets are not aligned")
	ErrNoAudio           = errors.New("no reference audio for verse")
	ErrMalformedResult   = errors.New("malformed analysis result")
	ErrSessionClosed     = errors.New("session closed")

	// ErrStale is returned when a result arrived after a newer request
	// superseded it and was therefore discarded.
	ErrStale = errors.New("superseded by a newer request")
)
