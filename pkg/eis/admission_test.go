package eis

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestAdmissionCap(t *testing.T) {
	a := NewAdmission(8, testLogger())

	for i := 0; i < 8; i++ {
		require.True(t, a.TryAdmit(), "session %d within cap", i+1)
	}
	assert.Equal(t, 8, a.Active())

	// The ninth is rejected and does not count.
	assert.False(t, a.TryAdmit())
	assert.Equal(t, 8, a.Active())

	// Releasing one slot admits one more.
	a.Release()
	assert.True(t, a.TryAdmit())
	assert.False(t, a.TryAdmit())
}

func TestAdmissionReleaseAll(t *testing.T) {
	a := NewAdmission(2, testLogger())
	require.True(t, a.TryAdmit())
	require.True(t, a.TryAdmit())
	a.Release()
	a.Release()
	assert.Equal(t, 0, a.Active())
	assert.True(t, a.TryAdmit())
}

func TestAdmissionConcurrent(t *testing.T) {
	const limit = 8
	const attempts = 100

	a := NewAdmission(limit, testLogger())
	var admitted int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if a.TryAdmit() {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, limit, admitted)
	assert.Equal(t, limit, a.Active())
}
