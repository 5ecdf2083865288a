package eis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/miragedesk/eisbridge/pkg/eis/wire"
	"github.com/miragedesk/eisbridge/pkg/keymap"
)

// Session lifecycle states.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateHandshaking
	StateActive
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// maxLoggedNameLen bounds the peer name in log output so a hostile client
// cannot flood the logs through its advertised name.
const maxLoggedNameLen = 128

// seatID of the single seat announced per session.
const seatID uint32 = 1

type boundDevice struct {
	id   uint32
	caps uint32
}

// session owns one connection's protocol context: handshake, seat and
// device bookkeeping, request decoding, and forwarding of input requests
// through the translator. It runs on its own goroutine; the only shared
// state it touches is the event queue and the admission counter, both owned
// by the Manager.
type session struct {
	id         string
	conn       net.Conn
	r          *wire.Reader
	w          *wire.Writer
	logger     *slog.Logger
	translator *Translator
	keymaps    *keymap.Provider
	seatName   string
	emit       func(context.Context, Event) error

	state      atomic.Int32
	peerName   string
	devices    map[uint32]*boundDevice
	nextDevice uint32
}

func newSession(id string, conn net.Conn, seatName string, translator *Translator, keymaps *keymap.Provider, emit func(context.Context, Event) error, logger *slog.Logger) *session {
	s := &session{
		id:         id,
		conn:       conn,
		r:          wire.NewReader(conn),
		w:          wire.NewWriter(conn),
		logger:     logger.With("session", id),
		translator: translator,
		keymaps:    keymaps,
		seatName:   seatName,
		emit:       emit,
		devices:    map[uint32]*boundDevice{},
	}
	s.state.Store(int32(StateConnecting))
	return s
}

func (s *session) State() SessionState {
	return SessionState(s.state.Load())
}

// run drives the session from handshake to close. It returns when the peer
// disconnects, the context is cancelled, or an unrecoverable protocol error
// occurs. The caller owns closing the connection and releasing the
// admission slot.
func (s *session) run(ctx context.Context) {
	defer s.state.Store(int32(StateClosed))

	s.state.Store(int32(StateHandshaking))
	if err := s.handshake(); err != nil {
		s.logger.Warn("EIS handshake failed", "err", err)
		return
	}

	s.state.Store(int32(StateActive))
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		req, err := s.r.ReadRequest()
		if err != nil {
			switch {
			case errors.Is(err, wire.ErrMalformed):
				// Recovered locally: the frame is skipped, the session lives.
				s.logger.Warn("skipping malformed EIS frame", "err", err)
				continue
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				s.logger.Info("EIS client disconnected")
			default:
				s.logger.Warn("EIS transport error", "err", err)
			}
			return
		}

		if done := s.handleRequest(ctx, req); done {
			return
		}
	}
}

// handshake reads the client hello and announces the seat. A malformed or
// missing hello is session-fatal; a failed announcement flush is not.
func (s *session) handshake() error {
	req, err := s.r.ReadRequest()
	if err != nil {
		return err
	}
	hello, ok := req.(wire.ClientHello)
	if !ok {
		return errors.New("expected client hello")
	}

	s.peerName = hello.Name
	if len(s.peerName) > maxLoggedNameLen {
		s.peerName = s.peerName[:maxLoggedNameLen]
	}
	s.logger.Debug("EIS client connected",
		"client", s.peerName,
		"version", hello.Version,
		"context_type", hello.ContextType)

	if err := s.w.WriteServerHello(wire.Version); err != nil {
		return err
	}
	if err := s.w.WriteSeat(seatID, s.seatName, wire.CapAll); err != nil {
		return err
	}
	if err := s.w.Flush(); err != nil {
		s.logger.Warn("failed to flush EIS seat announcement", "err", err)
	}
	return nil
}

// handleRequest processes one decoded request while Active. It returns true
// when the session should close.
func (s *session) handleRequest(ctx context.Context, req wire.Request) bool {
	switch q := req.(type) {
	case wire.Disconnect:
		s.logger.Info("EIS client requested disconnect")
		return true

	case wire.ClientHello:
		s.logger.Warn("skipping unexpected client hello after handshake")
		return false

	case wire.Bind:
		s.handleBind(q)
		return false

	case wire.StartEmulating:
		if _, ok := s.devices[q.DeviceID]; !ok {
			s.logger.Warn("start-emulating for unknown device", "device", q.DeviceID)
		}
		return false

	case wire.StopEmulating:
		if _, ok := s.devices[q.DeviceID]; !ok {
			s.logger.Warn("stop-emulating for unknown device", "device", q.DeviceID)
		}
		return false

	case wire.Frame:
		// Batch boundary; injection happens per event.
		return false

	case wire.KeyboardKey:
		if _, ok := s.devices[q.DeviceID]; !ok {
			s.logger.Warn("keyboard event for unknown device", "device", q.DeviceID)
			return false
		}
		return s.forward(ctx, req)

	default:
		return s.forward(ctx, req)
	}
}

// forward runs a request through the translator and queues the resulting
// event for the dispatcher. A full queue blocks this session only.
func (s *session) forward(ctx context.Context, req wire.Request) bool {
	ev, ok := s.translator.Translate(req)
	if !ok {
		return false
	}
	if err := s.emit(ctx, ev); err != nil {
		// Queue gone: the host side is shutting down.
		return true
	}
	return false
}

// handleBind creates an emulated device for the requested capability subset.
// When the mask includes keyboard, the keymap is compiled and transferred
// before the device is marked resumed, as the protocol requires. A missing
// keymap degrades keyboard capability but never fails the bind.
func (s *session) handleBind(q wire.Bind) {
	if q.SeatID != seatID {
		s.logger.Warn("bind for unknown seat", "seat", q.SeatID)
		return
	}

	caps := q.Caps & wire.CapAll
	s.nextDevice++
	dev := &boundDevice{id: s.nextDevice, caps: caps}
	s.devices[dev.id] = dev
	s.logger.Debug("EIS client bound device", "device", dev.id, "caps", caps)

	if err := s.w.WriteDevice(dev.id, seatID, "remote-input", wire.DeviceVirtual, caps); err != nil {
		s.logger.Warn("failed to write device announcement", "err", err)
		return
	}

	if caps&wire.CapKeyboard != 0 {
		if blob, ok := s.keymaps.Provide(); ok {
			data, err := blob.Bytes()
			blob.Close()
			if err != nil {
				s.logger.Warn("failed to read keymap blob", "err", err)
			} else if err := s.w.WriteKeymap(dev.id, wire.KeymapXKB, data); err != nil {
				s.logger.Warn("failed to write keymap transfer", "err", err)
			}
		}
	}

	if err := s.w.WriteDeviceResumed(dev.id); err != nil {
		s.logger.Warn("failed to write device resumed", "err", err)
	}
	if err := s.w.Flush(); err != nil {
		s.logger.Warn("failed to flush EIS device announcement", "err", err)
	}
}
