package engine

import (
	"context"
	"sync"
	"time"

	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/genricoloni/nowplaying/internal/state"
	"go.uber.org/zap"
)

// warnEvery bounds how often an unreachable player is reported
const warnEvery = 5 * time.Second

// Watcher samples the provider on a fixed interval, diffs each snapshot
// against the store and installs whatever changed.
// It is the store's only writer.
type Watcher struct {
	logger    *zap.Logger
	cfg       domain.Config
	provider  domain.Provider
	resolver  domain.Resolver
	processor domain.ArtworkProcessor
	store     *state.Store

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	// provider error reporting, touched only by the loop goroutine
	failing  bool
	lastWarn time.Time
}

// NewWatcher creates a new watcher. processor may be nil.
func NewWatcher(
	logger *zap.Logger,
	cfg domain.Config,
	provider domain.Provider,
	resolver domain.Resolver,
	processor domain.ArtworkProcessor,
	store *state.Store,
) *Watcher {
	return &Watcher{
		logger:    logger,
		cfg:       cfg,
		provider:  provider,
		resolver:  resolver,
		processor: processor,
		store:     store,
	}
}

// Start launches the watcher's loop in a goroutine.
// It returns immediately (non-blocking).
func (w *Watcher) Start(_ context.Context) error {
	w.logger.Info("Watcher starting...", zap.Duration("interval", w.cfg.GetPollInterval()))

	// The start context of an fx hook ends with OnStart, so the loop owns
	// its own cancellation.
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.runLoop(ctx)
	return nil
}

// Stop cancels the loop and waits for it to exit or ctx to expire
func (w *Watcher) Stop(ctx context.Context) error {
	if w.cancel == nil {
		return nil
	}
	w.once.Do(func() {
		w.logger.Info("Watcher stopping...")
		w.cancel()
	})

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLoop polls immediately, then on every tick and on every change hint
func (w *Watcher) runLoop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.cfg.GetPollInterval())
	defer ticker.Stop()

	// A nil channel blocks forever, which disables the hint case
	var hints <-chan struct{}
	if n, ok := w.provider.(domain.ChangeNotifier); ok {
		hints = n.Changes()
	}

	w.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Watcher loop stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		case <-hints:
			w.logger.Debug("Change hint received, polling early")
			w.tick(ctx)
		}
	}
}

// tick performs one poll-diff-update cycle
func (w *Watcher) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	snap, err := w.provider.Poll(ctx)
	if err != nil {
		// A poll cut short by shutdown says nothing about the player
		if ctx.Err() != nil {
			return
		}
		w.reportPollError(err)
		return
	}
	w.reportRecovered()

	current := w.store.Snapshot()
	title, artist, playing := snap.Title, snap.Artist(), snap.Playing()

	switch {
	case title != current.Title || artist != current.Artist:
		// Resolve outside the store lock so long-polls are never stalled
		// by a slow download
		art := w.artworkFor(ctx, snap.ArtURI)
		if ctx.Err() != nil {
			return
		}
		v := w.store.UpdateSong(title, artist, playing, art)
		w.logger.Info("Song changed",
			zap.String("title", title),
			zap.String("artist", artist),
			zap.Bool("playing", playing),
			zap.String("artURI", snap.ArtURI),
			zap.Int("artworkBytes", len(art.Data)),
			zap.Stringer("version", v))

	case playing != current.Playing:
		if v, changed := w.store.UpdatePlayback(playing); changed {
			w.logger.Info("Playback changed",
				zap.Bool("playing", playing),
				zap.Stringer("version", v))
		}
	}
}

// artworkFor resolves and optionally post-processes the artwork behind uri.
// An empty uri yields empty artwork without consulting the resolver.
func (w *Watcher) artworkFor(ctx context.Context, uri string) domain.Artwork {
	if uri == "" {
		return domain.Artwork{}
	}

	art := w.resolver.Resolve(ctx, uri)
	if art.IsEmpty() || w.processor == nil {
		return art
	}

	processed, err := w.processor.Process(ctx, art)
	if err != nil {
		w.logger.Debug("Artwork processing failed, keeping original", zap.Error(err))
		return art
	}
	return processed
}

func (w *Watcher) reportPollError(err error) {
	now := time.Now()
	if !w.failing || now.Sub(w.lastWarn) >= warnEvery {
		w.logger.Warn("Player unavailable", zap.Error(err))
		w.lastWarn = now
	}
	w.failing = true
}

func (w *Watcher) reportRecovered() {
	if w.failing {
		w.logger.Info("Player available again")
		w.failing = false
	}
}
