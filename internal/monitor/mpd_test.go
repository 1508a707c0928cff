package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

type fakeMPD struct {
	song       mpd.Attrs
	artists    []string
	artistsErr error
	status     mpd.Attrs
	songErr    error
	statusErr  error
	closed     int
}

func (f *fakeMPD) CurrentSong() (mpd.Attrs, error) { return f.song, f.songErr }
func (f *fakeMPD) CurrentArtists() ([]string, error) {
	if f.artistsErr != nil {
		return nil, f.artistsErr
	}
	if f.artists == nil && f.song["Artist"] != "" {
		return []string{f.song["Artist"]}, nil
	}
	return f.artists, nil
}
func (f *fakeMPD) Status() (mpd.Attrs, error) { return f.status, f.statusErr }
func (f *fakeMPD) Close() error {
	f.closed++
	return nil
}

func newTestMPD(fs afero.Fs, musicDir string, client *fakeMPD, dials *int) *MPDProvider {
	p := NewMPDProvider(zap.NewNop(), fs, "127.0.0.1:6600", "", musicDir)
	p.dial = func(string, string) (mpdClient, error) {
		*dials++
		return client, nil
	}
	return p
}

func TestMPDProvider_Poll(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/music/Artist/Album/folder.png", []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		song       mpd.Attrs
		artists    []string
		artistsErr error
		status     mpd.Attrs
		want       domain.MediaSnapshot
	}{
		{
			name:    "Repeated Artist Tags Keep Order",
			song:    mpd.Attrs{"Title": "A", "Artist": "Y", "file": "Other/01.flac"},
			artists: []string{"X", "Y"},
			status:  mpd.Attrs{"state": "play"},
			want:    domain.MediaSnapshot{Title: "A", Artists: []string{"X", "Y"}, Status: domain.StatusPlaying},
		},
		{
			name:       "Artist List Error Falls Back To Single Artist",
			song:       mpd.Attrs{"Title": "A", "Artist": "Y", "file": "Other/01.flac"},
			artistsErr: errors.New("unexpected response"),
			status:     mpd.Attrs{"state": "play"},
			want:       domain.MediaSnapshot{Title: "A", Artists: []string{"Y"}, Status: domain.StatusPlaying},
		},
		{
			name:   "Playing With Local Cover",
			song:   mpd.Attrs{"Title": "A", "Artist": "X", "file": "Artist/Album/01.flac"},
			status: mpd.Attrs{"state": "play"},
			want: domain.MediaSnapshot{
				Title:   "A",
				Artists: []string{"X"},
				ArtURI:  "file:///music/Artist/Album/folder.png",
				Status:  domain.StatusPlaying,
			},
		},
		{
			name:   "Paused Without Cover",
			song:   mpd.Attrs{"Title": "B", "file": "Other/02.flac"},
			status: mpd.Attrs{"state": "pause"},
			want:   domain.MediaSnapshot{Title: "B", Status: domain.StatusPaused},
		},
		{
			name:   "Stream Has No Local Cover",
			song:   mpd.Attrs{"Title": "Radio", "file": "http://radio.example/stream"},
			status: mpd.Attrs{"state": "play"},
			want:   domain.MediaSnapshot{Title: "Radio", Status: domain.StatusPlaying},
		},
		{
			name:   "Empty Queue",
			song:   mpd.Attrs{},
			status: mpd.Attrs{"state": "stop"},
			want:   domain.MediaSnapshot{Status: domain.StatusStopped},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dials := 0
			p := newTestMPD(fs, "/music", &fakeMPD{song: tt.song, artists: tt.artists, artistsErr: tt.artistsErr, status: tt.status}, &dials)

			got, err := p.Poll(context.Background())
			if err != nil {
				t.Fatalf("Poll: %v", err)
			}
			if got.Title != tt.want.Title || got.Artist() != tt.want.Artist() ||
				got.ArtURI != tt.want.ArtURI || got.Status != tt.want.Status {
				t.Errorf("Poll() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMPDProvider_ReconnectsAfterError(t *testing.T) {
	client := &fakeMPD{songErr: errors.New("broken pipe"), status: mpd.Attrs{"state": "play"}}
	dials := 0
	p := newTestMPD(afero.NewMemMapFs(), "", client, &dials)

	if _, err := p.Poll(context.Background()); !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("Poll() error = %v, want ErrProviderUnavailable", err)
	}
	if client.closed != 1 {
		t.Errorf("broken connection closed %d times, want 1", client.closed)
	}

	client.songErr = nil
	client.song = mpd.Attrs{"Title": "Back"}
	got, err := p.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll after recovery: %v", err)
	}
	if got.Title != "Back" {
		t.Errorf("Title = %q, want Back", got.Title)
	}
	if dials != 2 {
		t.Errorf("dials = %d, want 2", dials)
	}
}

func TestMPDProvider_StartToleratesDialFailure(t *testing.T) {
	p := NewMPDProvider(zap.NewNop(), afero.NewMemMapFs(), "127.0.0.1:1", "", "")
	p.dial = func(string, string) (mpdClient, error) { return nil, errors.New("connection refused") }

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v, want nil", err)
	}
	if _, err := p.Poll(context.Background()); !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("Poll() error = %v, want ErrProviderUnavailable", err)
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() = %v", err)
	}
}
