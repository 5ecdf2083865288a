package eis

import (
	"log/slog"
	"sync/atomic"
)

// Admission tracks live sessions against a fixed cap. Rejection is silent at
// the protocol level (the socket is dropped before any handshake byte) but
// always logged with the current and maximum counts.
type Admission struct {
	max    int64
	active atomic.Int64
	logger *slog.Logger
}

// NewAdmission returns an admission controller allowing max live sessions.
func NewAdmission(max int, logger *slog.Logger) *Admission {
	return &Admission{max: int64(max), logger: logger}
}

// TryAdmit claims a session slot. Safe under concurrent callers; callers
// that receive true must pair the claim with exactly one Release.
func (a *Admission) TryAdmit() bool {
	n := a.active.Add(1)
	if n > a.max {
		a.active.Add(-1)
		a.logger.Warn("rejecting EIS connection: limit reached",
			"current", a.Active(), "max", a.max)
		return false
	}
	a.logger.Info("accepting EIS connection", "active", n, "max", a.max)
	return true
}

// Release returns a previously admitted slot.
func (a *Admission) Release() {
	a.active.Add(-1)
}

// Active returns the number of currently admitted sessions.
func (a *Admission) Active() int {
	return int(a.active.Load())
}
