//go:build cgo

package keymap

/*
#cgo pkg-config: xkbcommon
#include <xkbcommon/xkbcommon.h>
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"
)

// compileKeymap compiles the RMLVO names to the textual keymap format
// (KEYMAP_FORMAT_TEXT_V1) via xkbcommon. Returns ok=false when the context
// or keymap cannot be created; that is a degraded condition, not an error.
func compileKeymap(cfg Config) (string, bool) {
	ctx := C.xkb_context_new(C.XKB_CONTEXT_NO_FLAGS)
	if ctx == nil {
		return "", false
	}
	defer C.xkb_context_unref(ctx)

	var names C.struct_xkb_rule_names
	free := func(p *C.char) {
		if p != nil {
			C.free(unsafe.Pointer(p))
		}
	}
	if cfg.Rules != "" {
		names.rules = C.CString(cfg.Rules)
		defer free(names.rules)
	}
	if cfg.Model != "" {
		names.model = C.CString(cfg.Model)
		defer free(names.model)
	}
	if cfg.Layout != "" {
		names.layout = C.CString(cfg.Layout)
		defer free(names.layout)
	}
	if cfg.Variant != "" {
		names.variant = C.CString(cfg.Variant)
		defer free(names.variant)
	}
	if cfg.Options != "" {
		names.options = C.CString(cfg.Options)
		defer free(names.options)
	}

	km := C.xkb_keymap_new_from_names(ctx, &names, C.XKB_KEYMAP_COMPILE_NO_FLAGS)
	if km == nil {
		return "", false
	}
	defer C.xkb_keymap_unref(km)

	cstr := C.xkb_keymap_get_as_string(km, C.XKB_KEYMAP_FORMAT_TEXT_V1)
	if cstr == nil {
		return "", false
	}
	defer C.free(unsafe.Pointer(cstr))

	return C.GoString(cstr), true
}
