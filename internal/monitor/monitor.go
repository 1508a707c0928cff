package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/godbus/dbus/v5"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	mprisPrefix     = "org.mpris.MediaPlayer2."
	mprisObjectPath = "/org/mpris/MediaPlayer2"
	playerInterface = "org.mpris.MediaPlayer2.Player"
	metadataProp    = playerInterface + ".Metadata"
	statusProp      = playerInterface + ".PlaybackStatus"
	propsChanged    = "org.freedesktop.DBus.Properties.PropertiesChanged"
)

// MprisProvider samples an MPRIS player over the D-Bus session bus.
// Polling is the source of truth; PropertiesChanged signals only wake the
// watcher early through Changes.
type MprisProvider struct {
	logger  *zap.Logger
	player  string // Well-known bus name, empty means auto-detect
	dial    func() (DBusClient, error)
	changes chan struct{}

	mu       sync.RWMutex
	conn     DBusClient // Interface for testability
	cancel   context.CancelFunc
	wg       sync.WaitGroup // Tracks the signal forwarding goroutine
	selected string         // Last player picked by auto-detection
}

// NewMprisProvider creates a new MPRIS provider. An empty player name selects
// a player on every poll, preferring one that is playing.
func NewMprisProvider(logger *zap.Logger, player string) *MprisProvider {
	return &MprisProvider{
		logger:  logger,
		player:  player,
		dial:    NewStdDBusClient,
		changes: make(chan struct{}, 1),
	}
}

// Start connects to the session bus and subscribes to property changes
func (p *MprisProvider) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.conn != nil {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	conn, err := p.dial()
	if err != nil {
		p.logger.Error("Failed to connect to session bus", zap.Error(err))
		return fmt.Errorf("session bus connection failed: %w", err)
	}

	// Check if we were stopped while connecting to D-Bus
	if err := ctx.Err(); err != nil {
		if cerr := conn.Close(); cerr != nil {
			p.logger.Warn("Failed to close D-Bus connection", zap.Error(cerr))
		}
		return err
	}

	signalCtx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	p.conn = conn
	p.cancel = cancel
	p.mu.Unlock()

	// Change hints are optional, polling still works without them
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(mprisObjectPath),
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		p.logger.Warn("Failed to add match signal, relying on polling only", zap.Error(err))
	} else {
		p.wg.Add(1)
		go p.forwardSignals(signalCtx, conn)
	}

	p.logger.Info("MPRIS provider started", zap.String("player", p.playerLabel()))
	return nil
}

// Stop closes the bus connection
func (p *MprisProvider) Stop(ctx context.Context) error {
	p.mu.Lock()
	conn := p.conn
	cancel := p.cancel
	p.conn = nil
	p.cancel = nil
	p.mu.Unlock()

	if conn == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}
	p.wg.Wait()

	if err := conn.Close(); err != nil {
		p.logger.Warn("Failed to close D-Bus connection", zap.Error(err))
		return err
	}
	p.logger.Info("MPRIS provider shutdown complete")
	return nil
}

// Changes emits a coalesced hint whenever a player reports PropertiesChanged
func (p *MprisProvider) Changes() <-chan struct{} {
	return p.changes
}

// Poll reads Metadata and PlaybackStatus from the player
func (p *MprisProvider) Poll(ctx context.Context) (domain.MediaSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.MediaSnapshot{}, err
	}

	p.mu.RLock()
	conn := p.conn
	p.mu.RUnlock()
	if conn == nil {
		return domain.MediaSnapshot{}, fmt.Errorf("%w: not connected", domain.ErrProviderUnavailable)
	}

	name, err := p.selectPlayer(conn)
	if err != nil {
		return domain.MediaSnapshot{}, fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}

	variant, err := conn.GetProperty(name, mprisObjectPath, metadataProp)
	if err != nil {
		return domain.MediaSnapshot{}, fmt.Errorf("%w: get metadata from %s: %w", domain.ErrProviderUnavailable, name, err)
	}

	// Some players return nil or unexpected types when nothing is loaded
	metadata, ok := variant.Value().(map[string]dbus.Variant)
	if !ok {
		p.logger.Debug("Metadata variant is not a map, treating as empty", zap.String("player", name))
	}

	status := ""
	if statusVariant, err := conn.GetProperty(name, mprisObjectPath, statusProp); err != nil {
		p.logger.Debug("Failed to get playback status, assuming stopped",
			zap.String("player", name),
			zap.Error(err))
	} else {
		status, _ = statusVariant.Value().(string)
	}

	return p.parseMetadata(metadata, status), nil
}

// selectPlayer returns the configured player or detects one on the bus
func (p *MprisProvider) selectPlayer(conn DBusClient) (string, error) {
	if p.player != "" {
		return p.player, nil
	}

	names, err := conn.ListNames()
	if err != nil {
		return "", fmt.Errorf("failed to list bus names: %w", err)
	}

	players := lo.Filter(names, func(name string, _ int) bool {
		return strings.HasPrefix(name, mprisPrefix)
	})
	if len(players) == 0 {
		return "", domain.ErrNoPlayer
	}

	chosen := players[0]
	for _, name := range players {
		v, err := conn.GetProperty(name, mprisObjectPath, statusProp)
		if err != nil {
			continue
		}
		if s, ok := v.Value().(string); ok && s == string(domain.StatusPlaying) {
			chosen = name
			break
		}
	}

	p.mu.Lock()
	if chosen != p.selected {
		p.logger.Info("Selected MPRIS player", zap.String("player", chosen), zap.Int("candidates", len(players)))
		p.selected = chosen
	}
	p.mu.Unlock()

	return chosen, nil
}

// forwardSignals turns PropertiesChanged signals into change hints
func (p *MprisProvider) forwardSignals(ctx context.Context, conn DBusClient) {
	defer p.wg.Done() // Signal completion when goroutine exits

	signals := make(chan *dbus.Signal, 10)
	conn.Signal(signals)

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			if p.isPlayerChange(sig) {
				p.notify()
			}
		}
	}
}

// isPlayerChange reports whether sig is a PropertiesChanged signal for the
// MPRIS Player interface
func (p *MprisProvider) isPlayerChange(sig *dbus.Signal) bool {
	if sig == nil || sig.Name != propsChanged || len(sig.Body) < 2 {
		return false
	}
	iface, ok := sig.Body[0].(string)
	return ok && iface == playerInterface
}

// notify sends a hint without blocking; a pending hint already covers this one
func (p *MprisProvider) notify() {
	select {
	case p.changes <- struct{}{}:
	default:
	}
}

// parseMetadata converts MPRIS metadata to domain model
func (p *MprisProvider) parseMetadata(metadata map[string]dbus.Variant, status string) domain.MediaSnapshot {
	snap := domain.MediaSnapshot{Status: domain.ParsePlayerStatus(status)}

	if metadata == nil {
		return snap
	}

	if titleVar, ok := metadata["xesam:title"]; ok {
		snap.Title = toString(titleVar.Value())
	}

	// Artist is specified as a list, some players send a bare string
	if artistVar, ok := metadata["xesam:artist"]; ok {
		switch artists := artistVar.Value().(type) {
		case []string:
			snap.Artists = artists
		case string:
			snap.Artists = []string{artists}
		case []interface{}:
			snap.Artists = lo.Map(artists, func(a interface{}, _ int) string {
				return fmt.Sprint(a)
			})
		default:
			p.logger.Debug("Unexpected artist type in metadata",
				zap.String("type", fmt.Sprintf("%T", artistVar.Value())))
		}
	}

	if artVar, ok := metadata["mpris:artUrl"]; ok {
		snap.ArtURI = strings.TrimSpace(toString(artVar.Value()))
	}

	return snap
}

func (p *MprisProvider) playerLabel() string {
	if p.player == "" {
		return "auto"
	}
	return p.player
}

// toString converts common D-Bus types to string
func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case dbus.ObjectPath:
		return string(t)
	default:
		return ""
	}
}
