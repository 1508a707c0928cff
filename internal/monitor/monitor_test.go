package monitor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

// TestParseMetadata_DataVariations tests valid parsing variations (Artist types, Status strings, etc.)
func TestParseMetadata_DataVariations(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]dbus.Variant
		status   string
		check    func(*testing.T, domain.MediaSnapshot)
	}{
		{
			name: "Multiple Artists Joined",
			metadata: map[string]dbus.Variant{
				"xesam:title":  dbus.MakeVariant("A"),
				"xesam:artist": dbus.MakeVariant([]string{"X", "Y"}),
			},
			status: "Playing",
			check: func(t *testing.T, s domain.MediaSnapshot) {
				if s.Artist() != "X, Y" {
					t.Errorf("Expected 'X, Y', got '%s'", s.Artist())
				}
			},
		},
		{
			name: "Artist as String (Non-compliant)",
			metadata: map[string]dbus.Variant{
				"xesam:artist": dbus.MakeVariant("Single Artist"),
			},
			check: func(t *testing.T, s domain.MediaSnapshot) {
				if s.Artist() != "Single Artist" {
					t.Errorf("Expected 'Single Artist', got '%s'", s.Artist())
				}
			},
		},
		{
			name: "Artist Unexpected Type",
			metadata: map[string]dbus.Variant{
				"xesam:artist": dbus.MakeVariant(int32(7)),
			},
			check: func(t *testing.T, s domain.MediaSnapshot) {
				if s.Artist() != "" {
					t.Errorf("Expected empty artist, got '%s'", s.Artist())
				}
			},
		},
		{
			name: "Empty Art URL",
			metadata: map[string]dbus.Variant{
				"mpris:artUrl": dbus.MakeVariant(""),
				"xesam:title":  dbus.MakeVariant("Song"),
			},
			check: func(t *testing.T, s domain.MediaSnapshot) {
				if s.ArtURI != "" {
					t.Errorf("Expected empty ArtURI, got '%s'", s.ArtURI)
				}
			},
		},
		{
			name:     "Missing Fields Default To Empty",
			metadata: map[string]dbus.Variant{},
			check: func(t *testing.T, s domain.MediaSnapshot) {
				if s.Title != "" || s.Artist() != "" || s.ArtURI != "" {
					t.Errorf("Expected empty snapshot, got %+v", s)
				}
				if s.Status != domain.StatusStopped {
					t.Errorf("Expected Stopped, got %v", s.Status)
				}
			},
		},
		{
			name:   "Nil Metadata Keeps Status",
			status: "Paused",
			check: func(t *testing.T, s domain.MediaSnapshot) {
				if s.Status != domain.StatusPaused {
					t.Errorf("Expected Paused, got %v", s.Status)
				}
			},
		},
		{
			name:   "Unknown Status",
			status: "Buffering",
			check: func(t *testing.T, s domain.MediaSnapshot) {
				if s.Status != domain.StatusStopped {
					t.Errorf("Expected Stopped, got %v", s.Status)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewMprisProvider(zap.NewNop(), "")
			tt.check(t, p.parseMetadata(tt.metadata, tt.status))
		})
	}
}

// TestIsPlayerChange_EdgeCases consolidates all invalid/ignored signals into a table test.
func TestIsPlayerChange_EdgeCases(t *testing.T) {
	tests := []struct {
		name   string
		signal *dbus.Signal
		want   bool
	}{
		{
			name: "Player PropertiesChanged",
			signal: &dbus.Signal{
				Name: propsChanged,
				Body: []interface{}{playerInterface, map[string]dbus.Variant{}, []string{}},
			},
			want: true,
		},
		{
			name:   "Nil Signal",
			signal: nil,
		},
		{
			name: "Wrong Signal Name",
			signal: &dbus.Signal{
				Name: "org.freedesktop.DBus.SomeOtherSignal",
				Body: []interface{}{},
			},
		},
		{
			name: "Wrong Interface",
			signal: &dbus.Signal{
				Name: propsChanged,
				Body: []interface{}{"org.mpris.MediaPlayer2", map[string]dbus.Variant{}, []string{}},
			},
		},
		{
			name: "Short Body",
			signal: &dbus.Signal{
				Name: propsChanged,
				Body: []interface{}{playerInterface}, // Missing props
			},
		},
	}

	p := NewMprisProvider(zap.NewNop(), "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.isPlayerChange(tt.signal); got != tt.want {
				t.Errorf("isPlayerChange() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNotify_Coalesces(t *testing.T) {
	p := NewMprisProvider(zap.NewNop(), "")

	// Must never block, even with nobody receiving
	for i := 0; i < 5; i++ {
		p.notify()
	}

	<-p.Changes()
	select {
	case <-p.Changes():
		t.Fatal("hints were not coalesced")
	default:
	}
}

func TestPoll_AutoDetectWithNoPlayer(t *testing.T) {
	p := NewMprisProvider(zap.NewNop(), "")
	p.conn = &noopDBusClient{}

	_, err := p.Poll(context.Background())
	if !errors.Is(err, domain.ErrProviderUnavailable) || !errors.Is(err, domain.ErrNoPlayer) {
		t.Fatalf("Poll() error = %v, want ErrProviderUnavailable wrapping ErrNoPlayer", err)
	}
}

func TestPoll_CancelledContext(t *testing.T) {
	p := NewMprisProvider(zap.NewNop(), "org.mpris.MediaPlayer2.spotify")
	p.conn = &noopDBusClient{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Poll(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Poll() error = %v, want context.Canceled", err)
	}
}

// noopDBusClient is a stub to prevent panics during unit tests where
// we don't want to use full mocks but code calls GetProperty/ListNames.
type noopDBusClient struct{}

func (n *noopDBusClient) Close() error                             { return nil }
func (n *noopDBusClient) AddMatchSignal(...dbus.MatchOption) error { return nil }
func (n *noopDBusClient) Signal(chan<- *dbus.Signal)               {}
func (n *noopDBusClient) ListNames() ([]string, error)             { return []string{}, nil }
func (n *noopDBusClient) GetProperty(string, string, string) (dbus.Variant, error) {
	return dbus.MakeVariant(""), fmt.Errorf("noop")
}
