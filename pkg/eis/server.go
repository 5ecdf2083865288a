// Package eis implements the EIS session manager and request-translation
// engine: admission control, the per-connection protocol session, and the
// validating translator that turns protocol requests into host input
// injection.
package eis

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/miragedesk/eisbridge/pkg/compositor"
	"github.com/miragedesk/eisbridge/pkg/compositor/remotedesktop"
	"github.com/miragedesk/eisbridge/pkg/compositor/uinputdev"
	"github.com/miragedesk/eisbridge/pkg/compositor/wlroots"
	"github.com/miragedesk/eisbridge/pkg/keymap"
)

// Server owns the bridge's lifetime: it selects the host backend, creates
// the session manager on first use, and runs the intakes that deliver
// connected EIS streams.
type Server struct {
	cfg    Config
	logger *slog.Logger

	host    compositor.Host
	keymaps *keymap.Provider

	mgrOnce sync.Once
	mgr     *Manager
}

func NewServer(cfg Config, logger *slog.Logger) *Server {
	return &Server{cfg: cfg, logger: logger}
}

// Manager lazily creates the session manager shared by all intakes. The
// accessor is idempotent; callers never construct a second manager.
func (s *Server) Manager() *Manager {
	s.mgrOnce.Do(func() {
		if s.keymaps == nil {
			s.keymaps = keymap.NewProvider(keymap.ConfigFromEnv(), s.logger)
		}
		s.mgr = NewManager(s.cfg, s.host, s.keymaps, s.logger)
	})
	return s.mgr
}

// Run starts the backend, the manager dispatcher, and the configured
// intakes, blocking until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if s.host == nil {
		host, err := s.openBackend(ctx)
		if err != nil {
			return fmt.Errorf("open host backend: %w", err)
		}
		s.host = host
	}
	defer s.host.Close()

	mgr := s.Manager()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		mgr.Run(ctx)
	}()

	if s.cfg.DBus {
		intake, err := newDBusIntake(ctx, s.logger)
		if err != nil {
			// The bridge still serves socket and WebSocket intakes.
			s.logger.Warn("D-Bus intake unavailable", "err", err)
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				intake.run(ctx, mgr)
			}()
		}
	}

	if s.cfg.SocketPath != "" {
		intake, err := newUnixIntake(s.cfg.SocketPath, s.logger)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			intake.run(ctx, mgr)
		}()
	}

	var httpServer *http.Server
	if s.cfg.HTTPPort != "" {
		wsi := &wsIntake{logger: s.logger}
		mux := http.NewServeMux()
		mux.HandleFunc("/ws/eis", wsi.handler(ctx, mgr))
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		httpServer = &http.Server{Addr: ":" + s.cfg.HTTPPort, Handler: mux}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.logger.Info("HTTP intake starting", "port", s.cfg.HTTPPort)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error("HTTP intake failed", "err", err)
			}
		}()
	}

	<-ctx.Done()
	s.logger.Info("shutting down...")

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		httpServer.Shutdown(shutdownCtx)
		cancel()
	}

	wg.Wait()
	mgr.Wait()
	return ctx.Err()
}

// openBackend selects and opens the host injection backend. "auto" detects
// the compositor from the environment the way desktop sessions advertise it.
func (s *Server) openBackend(ctx context.Context) (compositor.Host, error) {
	backend := s.cfg.Backend
	if backend == "" || backend == "auto" {
		backend = detectBackend()
		s.logger.Info("detected compositor backend", "backend", backend)
	}

	width, height := s.cfg.ScreenWidth, s.cfg.ScreenHeight

	switch backend {
	case "remotedesktop":
		return remotedesktop.NewHost(ctx, width, height, s.logger)
	case "wlroots":
		return wlroots.NewHost(ctx, width, height, s.logger)
	case "uinput":
		return uinputdev.NewHost(width, height, s.logger)
	case "none":
		return compositor.NewFake(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// detectBackend picks a backend from the desktop environment variables.
func detectBackend() string {
	switch os.Getenv("XDG_CURRENT_DESKTOP") {
	case "GNOME", "gnome", "ubuntu:GNOME":
		return "remotedesktop"
	case "sway", "Sway":
		return "wlroots"
	}
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		return "wlroots"
	}
	return "uinput"
}
