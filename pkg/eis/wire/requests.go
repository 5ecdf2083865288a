package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Request is a decoded client frame.
type Request interface {
	isRequest()
}

// ClientHello opens the handshake. It must be the first frame on the wire.
type ClientHello struct {
	Version     uint32
	Name        string
	ContextType byte
}

// Bind asks the server to create an emulated device on a seat with the
// given capability mask.
type Bind struct {
	SeatID uint32
	Caps   uint32
}

// StartEmulating and StopEmulating bracket an emulation sequence. The bridge
// treats them as bookkeeping only.
type StartEmulating struct {
	DeviceID uint32
	Sequence uint32
}

type StopEmulating struct {
	DeviceID uint32
}

// Frame marks an event-batch boundary. Timestamps supplied by the peer are
// never used for injection.
type Frame struct {
	DeviceID  uint32
	Timestamp uint64
}

type Disconnect struct{}

type KeyboardKey struct {
	DeviceID uint32
	Key      uint32
	Pressed  bool
}

type PointerMotion struct {
	DX float32
	DY float32
}

type PointerMotionAbsolute struct {
	X float32
	Y float32
}

type Button struct {
	Button  uint32
	Pressed bool
}

type ScrollDelta struct {
	DX float32
	DY float32
}

type TouchDown struct {
	TouchID uint32
	X       float32
	Y       float32
}

type TouchMotion struct {
	TouchID uint32
	X       float32
	Y       float32
}

type TouchUp struct {
	TouchID uint32
}

type TouchCancel struct {
	TouchID uint32
}

func (ClientHello) isRequest()           {}
func (Bind) isRequest()                  {}
func (StartEmulating) isRequest()        {}
func (StopEmulating) isRequest()         {}
func (Frame) isRequest()                 {}
func (Disconnect) isRequest()            {}
func (KeyboardKey) isRequest()           {}
func (PointerMotion) isRequest()         {}
func (PointerMotionAbsolute) isRequest() {}
func (Button) isRequest()                {}
func (ScrollDelta) isRequest()           {}
func (TouchDown) isRequest()             {}
func (TouchMotion) isRequest()           {}
func (TouchUp) isRequest()               {}
func (TouchCancel) isRequest()           {}

// Reader decodes client frames from a byte stream.
type Reader struct {
	br *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// ReadRequest blocks until a full frame is available and decodes it.
// io.EOF means the peer closed the stream. An error wrapping ErrMalformed
// means this frame was bad but the stream is still aligned; the caller may
// skip it and read on. Any other error is a transport failure.
func (r *Reader) ReadRequest() (Request, error) {
	var hdr [3]byte
	if _, err := io.ReadFull(r.br, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	typ := hdr[0]
	length := int(binary.BigEndian.Uint16(hdr[1:]))
	if length > MaxPayload {
		// Cannot resync without consuming the oversized body.
		if _, err := io.CopyN(io.Discard, r.br, int64(length)); err != nil {
			return nil, err
		}
		return nil, malformed("payload %d exceeds limit", length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r.br, payload); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	return decodeRequest(typ, payload)
}

func decodeRequest(typ byte, payload []byte) (Request, error) {
	p := &payloadReader{buf: payload}
	switch typ {
	case TypeClientHello:
		version, err := p.u32()
		if err != nil {
			return nil, err
		}
		name, err := p.str()
		if err != nil {
			return nil, err
		}
		ctx, err := p.u8()
		if err != nil {
			return nil, err
		}
		return ClientHello{Version: version, Name: name, ContextType: ctx}, nil

	case TypeBind:
		seat, err := p.u32()
		if err != nil {
			return nil, err
		}
		caps, err := p.u32()
		if err != nil {
			return nil, err
		}
		return Bind{SeatID: seat, Caps: caps}, nil

	case TypeStartEmulating:
		dev, err := p.u32()
		if err != nil {
			return nil, err
		}
		seq, err := p.u32()
		if err != nil {
			return nil, err
		}
		return StartEmulating{DeviceID: dev, Sequence: seq}, nil

	case TypeStopEmulating:
		dev, err := p.u32()
		if err != nil {
			return nil, err
		}
		return StopEmulating{DeviceID: dev}, nil

	case TypeFrame:
		dev, err := p.u32()
		if err != nil {
			return nil, err
		}
		ts, err := p.u64()
		if err != nil {
			return nil, err
		}
		return Frame{DeviceID: dev, Timestamp: ts}, nil

	case TypeDisconnect:
		return Disconnect{}, nil

	case TypeKeyboardKey:
		dev, err := p.u32()
		if err != nil {
			return nil, err
		}
		key, err := p.u32()
		if err != nil {
			return nil, err
		}
		state, err := p.u8()
		if err != nil {
			return nil, err
		}
		return KeyboardKey{DeviceID: dev, Key: key, Pressed: state == StatePressed}, nil

	case TypePointerMotion:
		dx, err := p.f32()
		if err != nil {
			return nil, err
		}
		dy, err := p.f32()
		if err != nil {
			return nil, err
		}
		return PointerMotion{DX: dx, DY: dy}, nil

	case TypePointerMotionAbsolute:
		x, err := p.f32()
		if err != nil {
			return nil, err
		}
		y, err := p.f32()
		if err != nil {
			return nil, err
		}
		return PointerMotionAbsolute{X: x, Y: y}, nil

	case TypeButton:
		button, err := p.u32()
		if err != nil {
			return nil, err
		}
		state, err := p.u8()
		if err != nil {
			return nil, err
		}
		return Button{Button: button, Pressed: state == StatePressed}, nil

	case TypeScrollDelta:
		dx, err := p.f32()
		if err != nil {
			return nil, err
		}
		dy, err := p.f32()
		if err != nil {
			return nil, err
		}
		return ScrollDelta{DX: dx, DY: dy}, nil

	case TypeTouchDown, TypeTouchMotion:
		id, err := p.u32()
		if err != nil {
			return nil, err
		}
		x, err := p.f32()
		if err != nil {
			return nil, err
		}
		y, err := p.f32()
		if err != nil {
			return nil, err
		}
		if typ == TypeTouchDown {
			return TouchDown{TouchID: id, X: x, Y: y}, nil
		}
		return TouchMotion{TouchID: id, X: x, Y: y}, nil

	case TypeTouchUp:
		id, err := p.u32()
		if err != nil {
			return nil, err
		}
		return TouchUp{TouchID: id}, nil

	case TypeTouchCancel:
		id, err := p.u32()
		if err != nil {
			return nil, err
		}
		return TouchCancel{TouchID: id}, nil

	default:
		return nil, malformed("unknown frame type 0x%02x", typ)
	}
}

// Marshal encodes a client request into a full frame. The client side of the
// protocol and the bridge's tests use it; the server never sends requests.
func Marshal(req Request) []byte {
	var payload []byte
	var typ byte
	switch q := req.(type) {
	case ClientHello:
		typ = TypeClientHello
		payload = binary.BigEndian.AppendUint32(payload, q.Version)
		payload = appendString(payload, q.Name)
		payload = append(payload, q.ContextType)
	case Bind:
		typ = TypeBind
		payload = binary.BigEndian.AppendUint32(payload, q.SeatID)
		payload = binary.BigEndian.AppendUint32(payload, q.Caps)
	case StartEmulating:
		typ = TypeStartEmulating
		payload = binary.BigEndian.AppendUint32(payload, q.DeviceID)
		payload = binary.BigEndian.AppendUint32(payload, q.Sequence)
	case StopEmulating:
		typ = TypeStopEmulating
		payload = binary.BigEndian.AppendUint32(payload, q.DeviceID)
	case Frame:
		typ = TypeFrame
		payload = binary.BigEndian.AppendUint32(payload, q.DeviceID)
		payload = binary.BigEndian.AppendUint64(payload, q.Timestamp)
	case Disconnect:
		typ = TypeDisconnect
	case KeyboardKey:
		typ = TypeKeyboardKey
		payload = binary.BigEndian.AppendUint32(payload, q.DeviceID)
		payload = binary.BigEndian.AppendUint32(payload, q.Key)
		payload = append(payload, stateByte(q.Pressed))
	case PointerMotion:
		typ = TypePointerMotion
		payload = appendFloat(payload, q.DX)
		payload = appendFloat(payload, q.DY)
	case PointerMotionAbsolute:
		typ = TypePointerMotionAbsolute
		payload = appendFloat(payload, q.X)
		payload = appendFloat(payload, q.Y)
	case Button:
		typ = TypeButton
		payload = binary.BigEndian.AppendUint32(payload, q.Button)
		payload = append(payload, stateByte(q.Pressed))
	case ScrollDelta:
		typ = TypeScrollDelta
		payload = appendFloat(payload, q.DX)
		payload = appendFloat(payload, q.DY)
	case TouchDown:
		typ = TypeTouchDown
		payload = binary.BigEndian.AppendUint32(payload, q.TouchID)
		payload = appendFloat(payload, q.X)
		payload = appendFloat(payload, q.Y)
	case TouchMotion:
		typ = TypeTouchMotion
		payload = binary.BigEndian.AppendUint32(payload, q.TouchID)
		payload = appendFloat(payload, q.X)
		payload = appendFloat(payload, q.Y)
	case TouchUp:
		typ = TypeTouchUp
		payload = binary.BigEndian.AppendUint32(payload, q.TouchID)
	case TouchCancel:
		typ = TypeTouchCancel
		payload = binary.BigEndian.AppendUint32(payload, q.TouchID)
	default:
		panic(fmt.Sprintf("wire: cannot marshal %T", req))
	}
	return appendFrame(nil, typ, payload)
}

func stateByte(pressed bool) byte {
	if pressed {
		return StatePressed
	}
	return StateReleased
}
