package domain

import "errors"

var (
	// ErrProviderUnavailable is returned when the player cannot be queried
	ErrProviderUnavailable = errors.New("metadata provider unavailable")
	// ErrNoPlayer is returned when no player is present on the bus
	ErrNoPlayer = errors.New("no media player found")
	// ErrUnsupportedScheme is returned for artwork URIs that are neither http(s) nor file
	ErrUnsupportedScheme = errors.New("unsupported artwork uri scheme")
	// ErrArtworkStatus is returned when an artwork server answers with a non-200 status
	ErrArtworkStatus = errors.New("unexpected artwork status")
	// ErrArtworkTooLarge is returned when artwork exceeds the configured read limit
	ErrArtworkTooLarge = errors.New("artwork exceeds size limit")
)
