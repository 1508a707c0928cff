package domain

import (
	"strconv"
	"strings"
)

// PlayerStatus represents the current state of the media player
type PlayerStatus string

const (
	// StatusPlaying indicates the media is currently playing
	StatusPlaying PlayerStatus = "Playing"
	// StatusPaused indicates the media is paused
	StatusPaused PlayerStatus = "Paused"
	// StatusStopped indicates the media is stopped
	StatusStopped PlayerStatus = "Stopped"
)

// ParsePlayerStatus maps a raw status string to a PlayerStatus.
// Anything unrecognized, including an empty string, is Stopped.
func ParsePlayerStatus(raw string) PlayerStatus {
	switch raw {
	case "Playing":
		return StatusPlaying
	case "Paused":
		return StatusPaused
	default:
		return StatusStopped
	}
}

// MediaSnapshot is one normalized sample of the player, produced on every poll
type MediaSnapshot struct {
	// Title of the currently playing track
	Title string
	// Artists in the order the player reported them
	Artists []string
	// ArtURI is the URL or file:// path to the album artwork, empty if none
	ArtURI string
	// Status is the current playback status
	Status PlayerStatus
}

// Artist joins all artists with ", "
func (s MediaSnapshot) Artist() string {
	return strings.Join(s.Artists, ", ")
}

// Playing reports whether the snapshot status is Playing
func (s MediaSnapshot) Playing() bool {
	return s.Status == StatusPlaying
}

// Version is a monotonic nanosecond token. Clients only compare it for
// equality or order, so it is transmitted as a decimal string.
type Version int64

// String encodes the version as a decimal string
func (v Version) String() string {
	return strconv.FormatInt(int64(v), 10)
}

// ParseVersion decodes a client token. ok is false for anything that is not
// a non-negative decimal integer.
func ParseVersion(token string) (Version, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(token, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return Version(n), true
}

// Artwork is resolved image data with its MIME type. The zero value means
// "no artwork".
type Artwork struct {
	Data     []byte
	MimeType string
}

// IsEmpty reports whether there is no image data
func (a Artwork) IsEmpty() bool {
	return len(a.Data) == 0
}

// PlayerState is the state shared between the watcher and HTTP clients
type PlayerState struct {
	Title   string
	Artist  string
	Playing bool
	// SongVersion changes only when title or artist change
	SongVersion Version
	// PlaybackVersion changes on every mutation, always >= SongVersion
	PlaybackVersion Version
	Artwork         Artwork
}
