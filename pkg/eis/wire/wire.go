// Package wire implements the framing and object model of the emulated
// input protocol spoken between the bridge and remote EIS clients.
//
// Every frame is [type:1][length:2 BE][payload]. Integers are big-endian,
// floats are IEEE-754 bits in big-endian, strings are a u16 length prefix
// followed by UTF-8 bytes. The keymap transfer frame carries the raw keymap
// blob and has a larger payload allowance than every other frame.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Protocol version spoken by this endpoint.
const Version uint32 = 1

// Frame type bytes. Client requests occupy 0x01-0x7F, server messages 0x80+.
const (
	TypeClientHello    byte = 0x01
	TypeBind           byte = 0x02
	TypeStartEmulating byte = 0x03
	TypeStopEmulating  byte = 0x04
	TypeFrame          byte = 0x05
	TypeDisconnect     byte = 0x06

	TypeKeyboardKey           byte = 0x10
	TypePointerMotion         byte = 0x11
	TypePointerMotionAbsolute byte = 0x12
	TypeButton                byte = 0x13
	TypeScrollDelta           byte = 0x14
	TypeTouchDown             byte = 0x15
	TypeTouchMotion           byte = 0x16
	TypeTouchUp               byte = 0x17
	TypeTouchCancel           byte = 0x18

	TypeServerHello   byte = 0x80
	TypeSeat          byte = 0x81
	TypeDevice        byte = 0x82
	TypeKeymap        byte = 0x83
	TypeDeviceResumed byte = 0x84
	TypeDevicePaused  byte = 0x85
)

// Capability bits. Bit i represents capability i.
const (
	CapKeyboard        uint32 = 1 << 0
	CapPointer         uint32 = 1 << 1
	CapPointerAbsolute uint32 = 1 << 2
	CapButton          uint32 = 1 << 3
	CapScroll          uint32 = 1 << 4
	CapTouch           uint32 = 1 << 5

	// CapAll is every capability this endpoint can serve.
	CapAll = CapKeyboard | CapPointer | CapPointerAbsolute | CapButton | CapScroll | CapTouch
)

// Key and button state values.
const (
	StateReleased byte = 0
	StatePressed  byte = 1
)

// Keymap formats.
const (
	KeymapXKB byte = 1
)

// Device types.
const (
	DeviceVirtual  byte = 0
	DevicePhysical byte = 1
)

// Payload limits. A frame larger than its limit is malformed.
const (
	MaxPayload       = 4 << 10
	MaxKeymapPayload = 1 << 20
	MaxNameOnWire    = 512
)

// ErrMalformed marks a frame the decoder could not parse. The session skips
// the frame and continues; only handshake-phase errors are fatal.
var ErrMalformed = errors.New("malformed frame")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// appendFrame wraps payload into a full frame.
func appendFrame(dst []byte, typ byte, payload []byte) []byte {
	dst = append(dst, typ)
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(payload)))
	return append(dst, payload...)
}

func appendString(dst []byte, s string) []byte {
	if len(s) > MaxNameOnWire {
		s = s[:MaxNameOnWire]
	}
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(s)))
	return append(dst, s...)
}

func appendFloat(dst []byte, f float32) []byte {
	return binary.BigEndian.AppendUint32(dst, math.Float32bits(f))
}

// payloadReader walks a frame payload with bounds checking.
type payloadReader struct {
	buf []byte
	off int
}

func (p *payloadReader) remaining() int { return len(p.buf) - p.off }

func (p *payloadReader) u8() (byte, error) {
	if p.remaining() < 1 {
		return 0, malformed("short payload")
	}
	b := p.buf[p.off]
	p.off++
	return b, nil
}

func (p *payloadReader) u16() (uint16, error) {
	if p.remaining() < 2 {
		return 0, malformed("short payload")
	}
	v := binary.BigEndian.Uint16(p.buf[p.off:])
	p.off += 2
	return v, nil
}

func (p *payloadReader) u32() (uint32, error) {
	if p.remaining() < 4 {
		return 0, malformed("short payload")
	}
	v := binary.BigEndian.Uint32(p.buf[p.off:])
	p.off += 4
	return v, nil
}

func (p *payloadReader) u64() (uint64, error) {
	if p.remaining() < 8 {
		return 0, malformed("short payload")
	}
	v := binary.BigEndian.Uint64(p.buf[p.off:])
	p.off += 8
	return v, nil
}

func (p *payloadReader) f32() (float32, error) {
	bits, err := p.u32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

func (p *payloadReader) str() (string, error) {
	n, err := p.u16()
	if err != nil {
		return "", err
	}
	if int(n) > MaxNameOnWire {
		return "", malformed("string length %d exceeds limit", n)
	}
	if p.remaining() < int(n) {
		return "", malformed("short payload")
	}
	s := string(p.buf[p.off : p.off+int(n)])
	p.off += int(n)
	return s, nil
}
