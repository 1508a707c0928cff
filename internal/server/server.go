package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/genricoloni/nowplaying/internal/state"
	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// staticAssets are the only files served from the static directory
var staticAssets = []string{"ui.html", "script.js", "style.css"}

// Server exposes the player state over HTTP
type Server struct {
	logger *zap.Logger
	cfg    domain.Config
	store  *state.Store
	router *gin.Engine

	// baseCtx parents every request context; cancelling it releases
	// blocked long-polls at shutdown
	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu       sync.Mutex
	httpSrv  *http.Server
	addr     net.Addr
	serveErr chan error
}

// NewServer creates the HTTP surface. Static assets are read from fs
// below cfg.GetStaticDir() when it is set.
func NewServer(logger *zap.Logger, cfg domain.Config, store *state.Store, fs afero.Fs) *Server {
	gin.SetMode(gin.ReleaseMode)

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		logger:     logger,
		cfg:        cfg,
		store:      store,
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestID(), s.originHeader())

	router.GET("/get-song-info", s.handleSongInfo)
	router.GET("/get-song-artwork", s.handleArtwork)

	if dir := cfg.GetStaticDir(); dir != "" {
		assets := afero.NewHttpFs(afero.NewBasePathFs(fs, dir))
		for _, name := range staticAssets {
			router.GET("/"+name, serveAsset(name, assets))
		}
		logger.Info("Serving static assets", zap.String("dir", dir))
	}

	router.NoRoute(func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})

	s.router = router
	return s
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the bound address once Start succeeded
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Start binds the listening socket and serves in a goroutine.
// A bind failure is returned and is fatal to the application.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.cfg.GetListenAddr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.GetListenAddr(), err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return s.baseCtx
		},
	}

	s.mu.Lock()
	s.httpSrv = srv
	s.addr = listener.Addr()
	s.serveErr = make(chan error, 1)
	s.mu.Unlock()

	go func() {
		err := srv.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.serveErr <- err
	}()

	s.logger.Info("HTTP server listening", zap.String("addr", listener.Addr().String()))
	return nil
}

// Stop releases blocked long-polls and shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	s.cancelBase()

	s.mu.Lock()
	srv, serveErr := s.httpSrv, s.serveErr
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	s.logger.Info("HTTP server stopping...")
	err := srv.Shutdown(ctx)
	select {
	case e := <-serveErr:
		err = multierr.Append(err, e)
	case <-ctx.Done():
		err = multierr.Append(err, ctx.Err())
	}
	return err
}

func serveAsset(name string, assets http.FileSystem) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.FileFromFS(name, assets)
	}
}
