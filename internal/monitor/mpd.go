package monitor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// coverNames are looked up next to the song file, in order
var coverNames = []string{"cover.jpg", "cover.png", "folder.jpg", "folder.png"}

// mpdClient is the subset of *mpd.Client the provider needs
type mpdClient interface {
	CurrentSong() (mpd.Attrs, error)
	CurrentArtists() ([]string, error)
	Status() (mpd.Attrs, error)
	Close() error
}

// gompdClient adds the repeated-tag read that mpd.Attrs cannot express:
// Attrs keeps a single value per key, so only the last Artist line survives.
type gompdClient struct {
	*mpd.Client
}

func (c gompdClient) CurrentArtists() ([]string, error) {
	return c.Command("currentsong").Strings("Artist")
}

// MPDProvider samples a Music Player Daemon over its TCP protocol.
// The connection is dialled lazily and dropped on any error, so a restarted
// daemon is picked up on the next poll.
type MPDProvider struct {
	logger   *zap.Logger
	address  string
	password string
	musicDir string
	fs       afero.Fs
	dial     func(address, password string) (mpdClient, error)

	mu     sync.Mutex
	client mpdClient
}

// NewMPDProvider creates an MPD provider. musicDir enables local cover lookup
// and may be empty.
func NewMPDProvider(logger *zap.Logger, fs afero.Fs, address, password, musicDir string) *MPDProvider {
	return &MPDProvider{
		logger:   logger,
		address:  address,
		password: password,
		musicDir: musicDir,
		fs:       fs,
		dial:     dialMPD,
	}
}

func dialMPD(address, password string) (mpdClient, error) {
	var (
		client *mpd.Client
		err    error
	)
	if password == "" {
		client, err = mpd.Dial("tcp", address)
	} else {
		client, err = mpd.DialAuthenticated("tcp", address, password)
	}
	if err != nil {
		return nil, err
	}
	return gompdClient{Client: client}, nil
}

// Start tries a first connection. Failure is not fatal: the daemon may come
// up later and Poll reconnects.
func (p *MPDProvider) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.connectLocked(); err != nil {
		p.logger.Warn("MPD not reachable yet, will retry on poll",
			zap.String("address", p.address),
			zap.Error(err))
		return nil
	}
	p.logger.Info("MPD provider started", zap.String("address", p.address))
	return nil
}

// Stop closes the connection if one is open
func (p *MPDProvider) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	if err != nil {
		return fmt.Errorf("close mpd connection: %w", err)
	}
	p.logger.Info("MPD provider shutdown complete")
	return nil
}

// Poll reads currentsong and status
func (p *MPDProvider) Poll(ctx context.Context) (domain.MediaSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.MediaSnapshot{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	client, err := p.connectLocked()
	if err != nil {
		return domain.MediaSnapshot{}, fmt.Errorf("%w: dial %s: %w", domain.ErrProviderUnavailable, p.address, err)
	}

	song, err := client.CurrentSong()
	if err != nil {
		p.dropLocked()
		return domain.MediaSnapshot{}, fmt.Errorf("%w: currentsong: %w", domain.ErrProviderUnavailable, err)
	}
	status, err := client.Status()
	if err != nil {
		p.dropLocked()
		return domain.MediaSnapshot{}, fmt.Errorf("%w: status: %w", domain.ErrProviderUnavailable, err)
	}

	snap := domain.MediaSnapshot{
		Title:  song["Title"],
		Status: mpdStatus(status["state"]),
		ArtURI: p.coverURI(song["file"]),
	}
	snap.Artists = p.artistsLocked(client, song)
	return snap, nil
}

// artistsLocked returns every Artist tag of the current song in order,
// falling back to the single value in song when the list cannot be read
func (p *MPDProvider) artistsLocked(client mpdClient, song mpd.Attrs) []string {
	if song["Artist"] == "" {
		return nil
	}
	artists, err := client.CurrentArtists()
	if err != nil || len(artists) == 0 {
		if err != nil {
			p.logger.Debug("Failed to read artist list, using single artist", zap.Error(err))
		}
		return []string{song["Artist"]}
	}
	return artists
}

func (p *MPDProvider) connectLocked() (mpdClient, error) {
	if p.client != nil {
		return p.client, nil
	}
	client, err := p.dial(p.address, p.password)
	if err != nil {
		return nil, err
	}
	p.client = client
	return client, nil
}

func (p *MPDProvider) dropLocked() {
	if p.client == nil {
		return
	}
	if err := p.client.Close(); err != nil {
		p.logger.Debug("Failed to close broken MPD connection", zap.Error(err))
	}
	p.client = nil
}

// coverURI returns a file:// URI for a cover image beside the song, or ""
func (p *MPDProvider) coverURI(file string) string {
	if p.musicDir == "" || file == "" || strings.Contains(file, "://") {
		return ""
	}
	dir := filepath.Join(p.musicDir, filepath.Dir(filepath.FromSlash(file)))
	for _, name := range coverNames {
		candidate := filepath.Join(dir, name)
		if ok, err := afero.Exists(p.fs, candidate); err == nil && ok {
			return "file://" + candidate
		}
	}
	return ""
}

func mpdStatus(state string) domain.PlayerStatus {
	switch state {
	case "play":
		return domain.StatusPlaying
	case "pause":
		return domain.StatusPaused
	default:
		return domain.StatusStopped
	}
}
