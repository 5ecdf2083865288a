package eis

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/miragedesk/eisbridge/pkg/compositor"
	"github.com/miragedesk/eisbridge/pkg/keymap"
)

// Manager multiplexes EIS sessions onto the host's input state. Each session
// runs a blocking decode loop on its own goroutine and pushes normalized
// events into one bounded queue; a single dispatcher goroutine drains the
// queue and performs all host injection, so host state mutations from many
// untrusted peers appear strictly serialized.
type Manager struct {
	cfg        Config
	host       compositor.Host
	admission  *Admission
	keymaps    *keymap.Provider
	translator *Translator
	logger     *slog.Logger

	sessions *xsync.MapOf[string, *session]
	events   chan Event
	closed   atomic.Bool
	wg       sync.WaitGroup
}

// NewManager wires a manager against the given host backend.
func NewManager(cfg Config, host compositor.Host, keymaps *keymap.Provider, logger *slog.Logger) *Manager {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 8
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 256
	}
	if cfg.SeatName == "" {
		cfg.SeatName = "seat0"
	}
	return &Manager{
		cfg:        cfg,
		host:       host,
		admission:  NewAdmission(cfg.MaxSessions, logger),
		keymaps:    keymaps,
		translator: NewTranslator(logger),
		logger:     logger,
		sessions:   xsync.NewMapOf[string, *session](),
		events:     make(chan Event, cfg.QueueDepth),
	}
}

// Run drives the dispatcher until ctx is cancelled, then waits for all
// session goroutines to exit.
func (m *Manager) Run(ctx context.Context) {
	m.logger.Info("EIS input receiver initialized",
		"max_sessions", m.cfg.MaxSessions,
		"queue_depth", m.cfg.QueueDepth)

	for {
		select {
		case <-ctx.Done():
			m.closed.Store(true)
			m.closeAll()
			m.wg.Wait()
			m.drain()
			return
		case ev := <-m.events:
			deliver(m.host, ev, m.logger)
		}
	}
}

// closeAll closes every live session's connection so goroutines blocked in
// reads observe shutdown.
func (m *Manager) closeAll() {
	m.sessions.Range(func(_ string, s *session) bool {
		s.conn.Close()
		return true
	})
}

// drain discards events left behind by sessions that raced shutdown.
func (m *Manager) drain() {
	for {
		select {
		case <-m.events:
		default:
			return
		}
	}
}

// AddConnection takes ownership of a connected EIS stream. Past the session
// cap the socket is dropped without any handshake. The session goroutine
// releases its admission slot and closes the socket on every exit path.
func (m *Manager) AddConnection(ctx context.Context, conn net.Conn) {
	if !m.admission.TryAdmit() {
		conn.Close()
		return
	}

	id := uuid.NewString()
	s := newSession(id, conn, m.cfg.SeatName, m.translator, m.keymaps, m.queueEvent, m.logger)
	m.sessions.Store(id, s)

	// A shutdown racing this store may have already swept the session map.
	// Re-checking after the store guarantees the connection gets closed by
	// one side or the other, so the session goroutine cannot block forever.
	if m.closed.Load() {
		conn.Close()
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.sessions.Delete(id)
			conn.Close()
			m.admission.Release()
			m.logger.Info("EIS session closed", "session", id, "active", m.admission.Active())
		}()
		s.run(ctx)
	}()
}

// queueEvent hands a translated event to the dispatcher. It blocks when the
// queue is full (backpressure on the one session) and fails only when the
// host side has gone away.
func (m *Manager) queueEvent(ctx context.Context, ev Event) error {
	select {
	case m.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveSessions returns the number of currently admitted sessions.
func (m *Manager) ActiveSessions() int {
	return m.admission.Active()
}

// Wait blocks until every session goroutine has exited.
func (m *Manager) Wait() {
	m.wg.Wait()
}
