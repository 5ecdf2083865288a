package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"client hello", ClientHello{Version: 1, Name: "remote-viewer", ContextType: 2}},
		{"bind", Bind{SeatID: 1, Caps: CapKeyboard | CapPointer}},
		{"start emulating", StartEmulating{DeviceID: 3, Sequence: 9}},
		{"stop emulating", StopEmulating{DeviceID: 3}},
		{"frame", Frame{DeviceID: 3, Timestamp: 1234567890}},
		{"disconnect", Disconnect{}},
		{"keyboard key", KeyboardKey{DeviceID: 1, Key: 30, Pressed: true}},
		{"keyboard release", KeyboardKey{DeviceID: 1, Key: 30, Pressed: false}},
		{"pointer motion", PointerMotion{DX: -3.5, DY: 12.25}},
		{"pointer absolute", PointerMotionAbsolute{X: 640, Y: 360}},
		{"button", Button{Button: 0x110, Pressed: true}},
		{"scroll", ScrollDelta{DX: 0, DY: -15}},
		{"touch down", TouchDown{TouchID: 4, X: 100.5, Y: 200.5}},
		{"touch motion", TouchMotion{TouchID: 4, X: 101, Y: 201}},
		{"touch up", TouchUp{TouchID: 4}},
		{"touch cancel", TouchCancel{TouchID: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(bytes.NewReader(Marshal(tt.req)))
			got, err := r.ReadRequest()
			require.NoError(t, err)
			assert.Equal(t, tt.req, got)
		})
	}
}

func TestReadRequestSequence(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(Marshal(ClientHello{Version: 1, Name: "seq", ContextType: 0}))
	buf.Write(Marshal(KeyboardKey{DeviceID: 1, Key: 16, Pressed: true}))
	buf.Write(Marshal(KeyboardKey{DeviceID: 1, Key: 16, Pressed: false}))

	r := NewReader(&buf)
	for i := 0; i < 3; i++ {
		_, err := r.ReadRequest()
		require.NoError(t, err)
	}
	_, err := r.ReadRequest()
	assert.Equal(t, io.EOF, err)
}

func TestReadRequestUnknownTypeIsMalformed(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x7F, 0x00, 0x02, 0xAA, 0xBB})
	buf.Write(Marshal(TouchUp{TouchID: 1}))

	r := NewReader(&buf)
	_, err := r.ReadRequest()
	require.ErrorIs(t, err, ErrMalformed)

	// The stream stays aligned: the next frame decodes cleanly.
	got, err := r.ReadRequest()
	require.NoError(t, err)
	assert.Equal(t, TouchUp{TouchID: 1}, got)
}

func TestReadRequestShortPayloadIsMalformed(t *testing.T) {
	// A keyboard frame with a truncated payload length.
	frame := []byte{TypeKeyboardKey, 0x00, 0x03, 0x00, 0x00, 0x01}
	r := NewReader(bytes.NewReader(append(frame, Marshal(Disconnect{})...)))

	_, err := r.ReadRequest()
	require.ErrorIs(t, err, ErrMalformed)

	got, err := r.ReadRequest()
	require.NoError(t, err)
	assert.Equal(t, Disconnect{}, got)
}

func TestReadRequestOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	// Claim a payload just over the limit and supply the body so the
	// decoder can resync past it.
	length := MaxPayload + 1
	hdr := []byte{TypePointerMotion, byte(length >> 8), byte(length)}
	buf.Write(hdr)
	buf.Write(make([]byte, length))
	buf.Write(Marshal(TouchCancel{TouchID: 2}))

	r := NewReader(&buf)
	_, err := r.ReadRequest()
	require.ErrorIs(t, err, ErrMalformed)

	got, err := r.ReadRequest()
	require.NoError(t, err)
	assert.Equal(t, TouchCancel{TouchID: 2}, got)
}

func TestReadRequestTruncatedStream(t *testing.T) {
	full := Marshal(Frame{DeviceID: 1, Timestamp: 42})
	r := NewReader(bytes.NewReader(full[:len(full)-3]))
	_, err := r.ReadRequest()
	assert.Equal(t, io.EOF, err)
}

func TestMarshalTruncatesLongName(t *testing.T) {
	long := strings.Repeat("x", MaxNameOnWire+100)
	r := NewReader(bytes.NewReader(Marshal(ClientHello{Version: 1, Name: long, ContextType: 0})))
	got, err := r.ReadRequest()
	require.NoError(t, err)
	hello := got.(ClientHello)
	assert.Len(t, hello.Name, MaxNameOnWire)
}

func TestMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteServerHello(Version))
	require.NoError(t, w.WriteSeat(1, "seat0", CapAll))
	require.NoError(t, w.WriteDevice(2, 1, "remote-input", DeviceVirtual, CapKeyboard|CapPointer))
	require.NoError(t, w.WriteDeviceResumed(2))
	require.NoError(t, w.WriteDevicePaused(2))
	require.NoError(t, w.Flush())

	br := bufio.NewReader(&buf)
	want := []Message{
		ServerHello{Version: Version},
		Seat{SeatID: 1, Name: "seat0", Caps: CapAll},
		Device{DeviceID: 2, SeatID: 1, Name: "remote-input", DeviceType: DeviceVirtual, Caps: CapKeyboard | CapPointer},
		DeviceResumed{DeviceID: 2},
		DevicePaused{DeviceID: 2},
	}
	for _, wantMsg := range want {
		got, err := ReadMessage(br)
		require.NoError(t, err)
		assert.Equal(t, wantMsg, got)
	}
	_, err := ReadMessage(br)
	assert.Equal(t, io.EOF, err)
}

func TestKeymapTransferCarriesLargeBlob(t *testing.T) {
	// Textual XKB keymaps run 50-80KB, far past the u16 frame length.
	data := bytes.Repeat([]byte("xkb_keymap { };\n"), 4096)
	require.Greater(t, len(data), int(^uint16(0)))

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteKeymap(7, KeymapXKB, data))
	require.NoError(t, w.WriteDeviceResumed(7))
	require.NoError(t, w.Flush())

	br := bufio.NewReader(&buf)
	got, err := ReadMessage(br)
	require.NoError(t, err)
	keymap := got.(Keymap)
	assert.Equal(t, uint32(7), keymap.DeviceID)
	assert.Equal(t, KeymapXKB, keymap.Format)
	assert.Equal(t, data, keymap.Data)

	// The stream stays aligned after the out-of-band blob.
	next, err := ReadMessage(br)
	require.NoError(t, err)
	assert.Equal(t, DeviceResumed{DeviceID: 7}, next)
}

func TestWriteKeymapRejectsOversizedBlob(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	err := w.WriteKeymap(1, KeymapXKB, make([]byte, MaxKeymapPayload))
	assert.Error(t, err)
}

func TestFrameEncodingIsBigEndian(t *testing.T) {
	frame := Marshal(Bind{SeatID: 0x01020304, Caps: 0x0A0B0C0D})
	require.Len(t, frame, 3+8)
	assert.Equal(t, TypeBind, frame[0])
	assert.Equal(t, uint16(8), binary.BigEndian.Uint16(frame[1:3]))
	assert.Equal(t, uint32(0x01020304), binary.BigEndian.Uint32(frame[3:7]))
	assert.Equal(t, uint32(0x0A0B0C0D), binary.BigEndian.Uint32(frame[7:11]))
}
