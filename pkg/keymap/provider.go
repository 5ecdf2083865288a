// Package keymap serializes the host's configured keyboard layout into a
// sealed, shareable memory blob for delivery to remote input clients.
package keymap

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"
)

// Config is the host's XKB layout configuration (RMLVO names). Empty fields
// fall back to xkbcommon defaults at compile time.
type Config struct {
	Rules   string
	Model   string
	Layout  string
	Variant string
	Options string
}

// ConfigFromEnv reads the layout from the XKB_DEFAULT_* variables Wayland
// compositors export.
func ConfigFromEnv() Config {
	return Config{
		Rules:   os.Getenv("XKB_DEFAULT_RULES"),
		Model:   os.Getenv("XKB_DEFAULT_MODEL"),
		Layout:  os.Getenv("XKB_DEFAULT_LAYOUT"),
		Variant: os.Getenv("XKB_DEFAULT_VARIANT"),
		Options: os.Getenv("XKB_DEFAULT_OPTIONS"),
	}
}

// Blob is a compiled keymap held in an anonymous sealed memory region.
// Size includes the trailing NUL terminator.
type Blob struct {
	File *os.File
	Size uint32
}

// Bytes reads the full keymap contents back out of the memory region.
func (b *Blob) Bytes() ([]byte, error) {
	data := make([]byte, b.Size)
	if _, err := b.File.ReadAt(data, 0); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read keymap blob: %w", err)
	}
	return data, nil
}

func (b *Blob) Close() error {
	return b.File.Close()
}

// Provider compiles the configured layout on demand.
type Provider struct {
	cfg     Config
	logger  *slog.Logger
	compile func(Config) (string, bool)
}

// NewProvider returns a Provider for the given layout configuration.
func NewProvider(cfg Config, logger *slog.Logger) *Provider {
	return &Provider{cfg: cfg, logger: logger, compile: compileKeymap}
}

// NewStaticProvider returns a Provider that always serves the given keymap
// text, bypassing compilation. Useful when the layout is fixed ahead of
// time and in tests.
func NewStaticProvider(text string, logger *slog.Logger) *Provider {
	return &Provider{
		logger:  logger,
		compile: func(Config) (string, bool) { return text, true },
	}
}

// Provide compiles the layout to the textual XKB keymap format and packages
// it as a sealed blob. It returns ok=false when compilation fails; callers
// treat a missing keymap as degraded keyboard capability, never as an error.
func (p *Provider) Provide() (*Blob, bool) {
	text, ok := p.compile(p.cfg)
	if !ok {
		p.logger.Warn("keymap compilation failed, keyboard capability degraded",
			"layout", p.cfg.Layout, "variant", p.cfg.Variant)
		return nil, false
	}

	blob, err := newSealedBlob([]byte(text))
	if err != nil {
		p.logger.Warn("failed to package keymap blob", "err", err)
		return nil, false
	}
	return blob, true
}

// newSealedBlob writes data plus a NUL terminator into a fresh memfd and
// seals it against shrink/grow/write. Sealing is best-effort: if the kernel
// refuses, the handle is returned unsealed.
func newSealedBlob(data []byte) (*Blob, error) {
	fd, err := unix.MemfdCreate("eis-keymap", unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}
	f := os.NewFile(uintptr(fd), "eis-keymap")

	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, fmt.Errorf("write keymap: %w", err)
	}
	if _, err := f.Write([]byte{0}); err != nil {
		f.Close()
		return nil, fmt.Errorf("write keymap terminator: %w", err)
	}

	seals := unix.F_SEAL_SHRINK | unix.F_SEAL_GROW | unix.F_SEAL_WRITE | unix.F_SEAL_SEAL
	if _, err := unix.FcntlInt(f.Fd(), unix.F_ADD_SEALS, seals); err != nil {
		slog.Warn("failed to seal keymap memfd", "err", err)
	}

	return &Blob{File: f, Size: uint32(len(data) + 1)}, nil
}
