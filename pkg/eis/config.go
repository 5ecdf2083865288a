package eis

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// Config holds bridge configuration. All fields come from EIS_* environment
// variables; zero values fall back to defaults here.
type Config struct {
	// MaxSessions caps the number of concurrently live EIS sessions.
	MaxSessions int `envconfig:"MAX_SESSIONS" default:"8"`

	// SeatName is the seat announced to every client after handshake.
	SeatName string `envconfig:"SEAT_NAME" default:"seat0"`

	// QueueDepth bounds the number of translated events waiting for the
	// dispatcher. A full queue applies backpressure to the sending session.
	QueueDepth int `envconfig:"QUEUE_DEPTH" default:"256"`

	// Backend selects the host injection backend: "remotedesktop" (GNOME
	// Mutter D-Bus), "wlroots" (virtual pointer/keyboard protocols),
	// "uinput" (/dev/uinput), "none" (record only), or "auto" to detect.
	Backend string `envconfig:"BACKEND" default:"auto"`

	// ScreenWidth and ScreenHeight describe the host display geometry for
	// backends that cannot enumerate outputs themselves.
	ScreenWidth  int `envconfig:"SCREEN_WIDTH" default:"1920"`
	ScreenHeight int `envconfig:"SCREEN_HEIGHT" default:"1080"`

	// SocketPath is the UNIX listener accepting direct EIS connections.
	// Empty disables the listener; the default lives under XDG_RUNTIME_DIR.
	SocketPath string `envconfig:"SOCKET_PATH"`

	// DBus enables the control-plane D-Bus intake that receives socket fds
	// from the RemoteDesktop portal.
	DBus bool `envconfig:"DBUS" default:"true"`

	// HTTPPort serves the WebSocket intake and the health endpoint.
	// Empty disables the HTTP server.
	HTTPPort string `envconfig:"HTTP_PORT" default:"9870"`
}

// ConfigFromEnv loads configuration from EIS_* environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("eis", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if cfg.SocketPath == "" {
		runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
		if runtimeDir == "" {
			runtimeDir = "/tmp"
		}
		cfg.SocketPath = filepath.Join(runtimeDir, "eis-bridge.sock")
	}
	return cfg, nil
}
