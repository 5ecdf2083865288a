package keymap

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestProvideServesSealedBlob(t *testing.T) {
	const text = "xkb_keymap { xkb_keycodes { include \"evdev\" }; };"
	p := NewStaticProvider(text, discardLogger())

	blob, ok := p.Provide()
	require.True(t, ok)
	defer blob.Close()

	// Size counts the NUL terminator.
	assert.Equal(t, uint32(len(text)+1), blob.Size)

	data, err := blob.Bytes()
	require.NoError(t, err)
	require.Len(t, data, len(text)+1)
	assert.Equal(t, text, string(data[:len(text)]))
	assert.Equal(t, byte(0), data[len(data)-1])
}

func TestProvideFailedCompileDegrades(t *testing.T) {
	p := &Provider{
		logger:  discardLogger(),
		compile: func(Config) (string, bool) { return "", false },
	}
	blob, ok := p.Provide()
	assert.False(t, ok)
	assert.Nil(t, blob)
}

func TestProvideUsesConfiguredLayout(t *testing.T) {
	var got Config
	p := &Provider{
		cfg:     Config{Layout: "de", Variant: "nodeadkeys"},
		logger:  discardLogger(),
		compile: func(cfg Config) (string, bool) { got = cfg; return "keymap", true },
	}
	blob, ok := p.Provide()
	require.True(t, ok)
	blob.Close()
	assert.Equal(t, "de", got.Layout)
	assert.Equal(t, "nodeadkeys", got.Variant)
}

func TestBlobIsSealedAgainstWrites(t *testing.T) {
	blob, err := newSealedBlob([]byte("keymap"))
	require.NoError(t, err)
	defer blob.Close()

	// Sealing is best-effort, but on Linux with memfd it holds: the region
	// rejects further writes.
	_, err = blob.File.Write([]byte("x"))
	assert.Error(t, err)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("XKB_DEFAULT_RULES", "evdev")
	t.Setenv("XKB_DEFAULT_LAYOUT", "us")
	t.Setenv("XKB_DEFAULT_VARIANT", "intl")

	cfg := ConfigFromEnv()
	assert.Equal(t, "evdev", cfg.Rules)
	assert.Equal(t, "us", cfg.Layout)
	assert.Equal(t, "intl", cfg.Variant)
}
