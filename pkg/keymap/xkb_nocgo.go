//go:build !cgo

package keymap

// compileKeymap without cgo has no xkbcommon to compile with. Keyboard
// capability runs degraded: devices still bind, but no keymap is delivered.
func compileKeymap(Config) (string, bool) {
	return "", false
}
