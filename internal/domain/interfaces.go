package domain

import (
	"context"
	"time"
)

// Provider defines the interface for sampling the media player.
// Implementations wrap a concrete player protocol (MPRIS, MPD).
type Provider interface {
	// Start connects to the player backend
	Start(ctx context.Context) error

	// Stop releases the backend connection
	Stop(ctx context.Context) error

	// Poll returns a normalized snapshot of the player.
	// Errors wrap ErrProviderUnavailable.
	Poll(ctx context.Context) (MediaSnapshot, error)
}

// ChangeNotifier is implemented by providers that can hint that the player
// changed before the next scheduled poll.
type ChangeNotifier interface {
	// Changes emits a value whenever the player reports a property change.
	// Values are coalesced, so one receive may stand for several changes.
	Changes() <-chan struct{}
}

// Resolver defines the interface for retrieving album artwork
type Resolver interface {
	// Resolve reads or downloads the artwork behind uri.
	// Every failure collapses to an empty Artwork.
	Resolve(ctx context.Context, uri string) Artwork
}

// ArtworkProcessor transforms resolved artwork before it is stored
type ArtworkProcessor interface {
	// Process returns the transformed artwork or an error, in which case the
	// caller keeps the original
	Process(ctx context.Context, art Artwork) (Artwork, error)
}

// Config defines the interface for application configuration
type Config interface {
	// GetPollInterval returns the watcher polling interval
	GetPollInterval() time.Duration

	// GetRequestTimeout returns the long-poll bound
	GetRequestTimeout() time.Duration

	// GetListenAddr returns host:port for the HTTP surface
	GetListenAddr() string

	// GetPort returns the configured port, used for the origin header
	GetPort() int

	// GetStaticDir returns the UI asset directory, empty when disabled
	GetStaticDir() string
}
