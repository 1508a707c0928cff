package state

import (
	"context"
	"sync"
	"time"

	"github.com/genricoloni/nowplaying/internal/domain"
)

// Store owns the PlayerState. The watcher is its only writer; any number of
// long-poll responders read it and block on it.
//
// Waiters are woken by closing the current changed channel and replacing it,
// so every mutation reaches every blocked reader.
type Store struct {
	mu      sync.RWMutex
	state   domain.PlayerState
	changed chan struct{}
	now     func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for version tokens
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty store with version 0
func NewStore(opts ...Option) *Store {
	s := &Store{
		changed: make(chan struct{}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the current state. Artwork data is shared and
// must be treated as read-only.
func (s *Store) Snapshot() domain.PlayerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Artwork returns the artwork cached for the current song
func (s *Store) Artwork() domain.Artwork {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Artwork
}

// UpdateSong installs a new song with its already-resolved artwork. Both
// versions move to the same new token.
func (s *Store) UpdateSong(title, artist string, playing bool, art domain.Artwork) domain.Version {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.nextVersionLocked()
	s.state = domain.PlayerState{
		Title:           title,
		Artist:          artist,
		Playing:         playing,
		SongVersion:     v,
		PlaybackVersion: v,
		Artwork:         art,
	}
	s.broadcastLocked()
	return v
}

// UpdatePlayback records a play/pause transition of the current song.
// It is a no-op returning false when playing already matches.
func (s *Store) UpdatePlayback(playing bool) (domain.Version, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Playing == playing {
		return s.state.PlaybackVersion, false
	}
	s.state.Playing = playing
	s.state.PlaybackVersion = s.nextVersionLocked()
	s.broadcastLocked()
	return s.state.PlaybackVersion, true
}

// WaitForChange blocks until the playback version differs from since, the
// timeout elapses, or ctx is done. It returns the latest state and whether it
// differs from since.
func (s *Store) WaitForChange(ctx context.Context, since domain.Version, timeout time.Duration) (domain.PlayerState, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		s.mu.RLock()
		snap := s.state
		wake := s.changed
		s.mu.RUnlock()

		if snap.PlaybackVersion != since {
			return snap, true
		}

		select {
		case <-wake:
		case <-timer.C:
			return s.latest(since)
		case <-ctx.Done():
			return s.latest(since)
		}
	}
}

func (s *Store) latest(since domain.Version) (domain.PlayerState, bool) {
	snap := s.Snapshot()
	return snap, snap.PlaybackVersion != since
}

// nextVersionLocked returns a wall-clock nanosecond token that is strictly
// greater than the previous one.
func (s *Store) nextVersionLocked() domain.Version {
	v := domain.Version(s.now().UnixNano())
	if v <= s.state.PlaybackVersion {
		v = s.state.PlaybackVersion + 1
	}
	return v
}

func (s *Store) broadcastLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}
