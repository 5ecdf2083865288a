package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Message is a decoded server frame.
type Message interface {
	isMessage()
}

type ServerHello struct {
	Version uint32
}

// Seat announces a named device grouping and the capability set the host
// supports for it.
type Seat struct {
	SeatID uint32
	Name   string
	Caps   uint32
}

// Device announces an emulated device created in response to a Bind.
type Device struct {
	DeviceID   uint32
	SeatID     uint32
	Name       string
	DeviceType byte
	Caps       uint32
}

// Keymap carries the keyboard layout for a device. It always precedes the
// device's DeviceResumed message.
type Keymap struct {
	DeviceID uint32
	Format   byte
	Data     []byte
}

type DeviceResumed struct {
	DeviceID uint32
}

type DevicePaused struct {
	DeviceID uint32
}

func (ServerHello) isMessage()   {}
func (Seat) isMessage()          {}
func (Device) isMessage()        {}
func (Keymap) isMessage()        {}
func (DeviceResumed) isMessage() {}
func (DevicePaused) isMessage()  {}

// Writer encodes server frames onto a buffered stream. Writes are staged;
// nothing reaches the peer until Flush.
type Writer struct {
	bw *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// Flush pushes staged frames to the transport. Callers treat a flush failure
// as best-effort: logged, never session-fatal.
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

func (w *Writer) writeFrame(typ byte, payload []byte) error {
	var hdr [3]byte
	hdr[0] = typ
	binary.BigEndian.PutUint16(hdr[1:], uint16(len(payload)))
	if _, err := w.bw.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.bw.Write(payload)
	return err
}

func (w *Writer) WriteServerHello(version uint32) error {
	return w.writeFrame(TypeServerHello, binary.BigEndian.AppendUint32(nil, version))
}

func (w *Writer) WriteSeat(seatID uint32, name string, caps uint32) error {
	payload := binary.BigEndian.AppendUint32(nil, seatID)
	payload = appendString(payload, name)
	payload = binary.BigEndian.AppendUint32(payload, caps)
	return w.writeFrame(TypeSeat, payload)
}

func (w *Writer) WriteDevice(deviceID, seatID uint32, name string, deviceType byte, caps uint32) error {
	payload := binary.BigEndian.AppendUint32(nil, deviceID)
	payload = binary.BigEndian.AppendUint32(payload, seatID)
	payload = appendString(payload, name)
	payload = append(payload, deviceType)
	payload = binary.BigEndian.AppendUint32(payload, caps)
	return w.writeFrame(TypeDevice, payload)
}

// WriteKeymap transfers a keymap blob. The blob must fit the keymap payload
// allowance; larger keymaps do not occur with textual XKB keymaps.
func (w *Writer) WriteKeymap(deviceID uint32, format byte, data []byte) error {
	if len(data)+9 > MaxKeymapPayload {
		return fmt.Errorf("keymap of %d bytes exceeds transfer limit", len(data))
	}
	payload := binary.BigEndian.AppendUint32(nil, deviceID)
	payload = append(payload, format)
	payload = binary.BigEndian.AppendUint32(payload, uint32(len(data)))
	payload = append(payload, data...)
	// Keymap frames are the one case where the u16 frame length cannot hold
	// the payload; the length field carries only the fixed header and the
	// data length is taken from the payload itself.
	var hdr [3]byte
	hdr[0] = TypeKeymap
	binary.BigEndian.PutUint16(hdr[1:], 9)
	if _, err := w.bw.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.bw.Write(payload)
	return err
}

func (w *Writer) WriteDeviceResumed(deviceID uint32) error {
	return w.writeFrame(TypeDeviceResumed, binary.BigEndian.AppendUint32(nil, deviceID))
}

func (w *Writer) WriteDevicePaused(deviceID uint32) error {
	return w.writeFrame(TypeDevicePaused, binary.BigEndian.AppendUint32(nil, deviceID))
}

// ReadMessage decodes one server frame. It is the client half of the
// protocol; the bridge's own tests use it to observe announcement ordering.
func ReadMessage(br *bufio.Reader) (Message, error) {
	var hdr [3]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	typ := hdr[0]
	length := int(binary.BigEndian.Uint16(hdr[1:]))
	payload := make([]byte, length)
	if _, err := io.ReadFull(br, payload); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	p := &payloadReader{buf: payload}

	switch typ {
	case TypeServerHello:
		version, err := p.u32()
		if err != nil {
			return nil, err
		}
		return ServerHello{Version: version}, nil

	case TypeSeat:
		seatID, err := p.u32()
		if err != nil {
			return nil, err
		}
		name, err := p.str()
		if err != nil {
			return nil, err
		}
		caps, err := p.u32()
		if err != nil {
			return nil, err
		}
		return Seat{SeatID: seatID, Name: name, Caps: caps}, nil

	case TypeDevice:
		deviceID, err := p.u32()
		if err != nil {
			return nil, err
		}
		seatID, err := p.u32()
		if err != nil {
			return nil, err
		}
		name, err := p.str()
		if err != nil {
			return nil, err
		}
		devType, err := p.u8()
		if err != nil {
			return nil, err
		}
		caps, err := p.u32()
		if err != nil {
			return nil, err
		}
		return Device{DeviceID: deviceID, SeatID: seatID, Name: name, DeviceType: devType, Caps: caps}, nil

	case TypeKeymap:
		deviceID, err := p.u32()
		if err != nil {
			return nil, err
		}
		format, err := p.u8()
		if err != nil {
			return nil, err
		}
		size, err := p.u32()
		if err != nil {
			return nil, err
		}
		if size > MaxKeymapPayload {
			return nil, malformed("keymap size %d exceeds limit", size)
		}
		data := make([]byte, size)
		if _, err := io.ReadFull(br, data); err != nil {
			return nil, err
		}
		return Keymap{DeviceID: deviceID, Format: format, Data: data}, nil

	case TypeDeviceResumed:
		deviceID, err := p.u32()
		if err != nil {
			return nil, err
		}
		return DeviceResumed{DeviceID: deviceID}, nil

	case TypeDevicePaused:
		deviceID, err := p.u32()
		if err != nil {
			return nil, err
		}
		return DevicePaused{DeviceID: deviceID}, nil

	default:
		return nil, malformed("unknown server frame type 0x%02x", typ)
	}
}
