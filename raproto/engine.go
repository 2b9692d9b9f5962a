package raproto

import (
	"encoding/binary"
	"time"

	"github.com/chargebyte/ra-utils/internal/diag"
	"github.com/chargebyte/ra-utils/internal/protoerr"
)

// Command codes understood by the bootloader.
const (
	CmdInquiry           byte = 0x00
	CmdErase             byte = 0x12
	CmdWrite             byte = 0x13
	CmdRead              byte = 0x15
	CmdIDAuthentication  byte = 0x30 // reserved; never issued by this toolkit
	CmdBaudrateSetting   byte = 0x34
	CmdSignatureRequest  byte = 0x3A
	CmdAreaInformation   byte = 0x3B
)

// Status is a bootloader response status code; zero means success.
type Status byte

const (
	StatusOK                   Status = 0x00
	StatusUnsupportedCmd       Status = 0xC0
	StatusPacketError          Status = 0xC1
	StatusChecksumError        Status = 0xC2
	StatusFlowError            Status = 0xC3
	StatusAddressError         Status = 0xD0
	StatusBaudrateMarginError  Status = 0xD4
	StatusProtectionError      Status = 0xDA
	StatusIDMismatchError      Status = 0xDB
	StatusSerialProgDisable    Status = 0xDC
	StatusEraseError           Status = 0xE1
	StatusWriteError           Status = 0xE2
	StatusSequencerError       Status = 0xE7
)

var statusNames = map[Status]string{
	StatusOK:                  "OK",
	StatusUnsupportedCmd:      "UNSUPPORTED_CMD",
	StatusPacketError:         "PACKET_ERROR",
	StatusChecksumError:       "CHECKSUM_ERROR",
	StatusFlowError:           "FLOW_ERROR",
	StatusAddressError:        "ADDRESS_ERROR",
	StatusBaudrateMarginError: "BAUDRATE_MARGIN_ERROR",
	StatusProtectionError:     "PROTECTION_ERROR",
	StatusIDMismatchError:     "ID_MISMATCH_ERROR",
	StatusSerialProgDisable:   "SERIAL_PROG_DISABLE",
	StatusEraseError:          "ERASE_ERROR",
	StatusWriteError:          "WRITE_ERROR",
	StatusSequencerError:      "SEQUENCER_ERROR",
}

// String always includes the numeric value - the MCU can emit status codes
// this table does not name, and the raw byte is what matters in the field.
func (s Status) String() string {
	name, ok := statusNames[s]
	if !ok {
		name = "UNKNOWN"
	}
	return name + "(0x" + hexByte(byte(s)) + ")"
}

func hexByte(b byte) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[b>>4], digits[b&0xF]})
}

// State is the RaEngine session state machine's current state.
type State int

const (
	StatePreHandshake State = iota
	StateWaitAck
	StatePostHandshake
	StateReady
	StateFailed
)

func (s State) String() string {
	names := [...]string{"PRE_HANDSHAKE", "WAIT_ACK", "POST_HANDSHAKE", "READY", "FAILED"}
	if int(s) < len(names) {
		return names[s]
	}
	return "UNKNOWN"
}

const (
	startupDelay     = 500 * time.Millisecond
	lowPulseDelay    = 100 * time.Millisecond
	handshakeTimeout = 500 * time.Millisecond
	responseTimeout  = 500 * time.Millisecond
	upgradeTimeout   = 5 * time.Millisecond
	postBaudSettle   = 10 * time.Millisecond

	targetBaud = 115200

	// KOA area kinds reported by area_info.
	koaUserCode byte = 0
	koaUserData byte = 1
	koaConfig   byte = 2
)

// port is the transport dependency Engine needs; *transport.Transport
// satisfies it structurally.
type port interface {
	ReadExact(buf []byte, timeout time.Duration) error
	WriteDrain(data []byte) error
	FlushInput() error
	ReconfigureBaud(baud int) error
}

// Area describes one flash region as reported by area_info.
type Area struct {
	Start, End           uint32
	EraseUnit, WriteUnit uint32
}

// ChipInfo is the discovered code/data flash layout.
type ChipInfo struct {
	Code Area
	Data Area
}

// Signature is the bootloader's identity response.
type Signature struct {
	SCI, RMB        uint32
	NOA, TYP        byte
	BootVersionMajor, BootVersionMinor byte
}

// Engine is the RaEngine bootloader session state machine.
type Engine struct {
	t     port
	sink  diag.Sink
	sleep func(time.Duration)
	state State
}

// NewEngine wraps t in an Engine in its initial PRE_HANDSHAKE state.
func NewEngine(t port) *Engine {
	return &Engine{t: t, sink: diag.NoopSink{}, sleep: time.Sleep, state: StatePreHandshake}
}

// SetTrace installs the diagnostic sink used for protocol-level logging.
func (e *Engine) SetTrace(sink diag.Sink) {
	if sink == nil {
		sink = diag.NoopSink{}
	}
	e.sink = sink
}

// State returns the engine's current state.
func (e *Engine) State() State { return e.state }

// requireReady guards every post-handshake command. Issuing one before the
// handshake has reached READY (or after it has failed) is a programming
// error in the caller, not a transport/protocol failure.
func (e *Engine) requireReady(op string) error {
	if e.state != StateReady {
		return protoerr.Newf(protoerr.KindState, "%s: engine not ready (state %s)", op, e.state)
	}
	return nil
}

// Handshake drives PRE_HANDSHAKE -> WAIT_ACK -> POST_HANDSHAKE -> READY.
// On any failure the engine latches FAILED and the error is returned.
func (e *Engine) Handshake() error {
	if err := e.lowPulseHandshake(); err != nil {
		e.state = StateFailed
		return err
	}
	e.state = StateWaitAck
	if err := e.waitAck(); err != nil {
		e.state = StateFailed
		return err
	}
	e.state = StatePostHandshake
	if err := e.postHandshake(); err != nil {
		e.state = StateFailed
		return err
	}
	e.state = StateReady
	return nil
}

func (e *Engine) lowPulseHandshake() error {
	e.sleep(startupDelay)
	if err := e.t.FlushInput(); err != nil {
		return err
	}
	if err := e.t.WriteDrain([]byte{0x00}); err != nil {
		return err
	}
	e.sleep(lowPulseDelay)
	if err := e.t.WriteDrain([]byte{0x00}); err != nil {
		return err
	}
	buf := make([]byte, 1)
	if err := e.t.ReadExact(buf, handshakeTimeout); err != nil {
		return protoerr.Wrap(protoerr.KindProtocol, "low-pulse handshake read", err)
	}
	if buf[0] != 0x00 {
		return protoerr.Newf(protoerr.KindProtocol, "low-pulse handshake: expected 0x00, got 0x%02x", buf[0])
	}
	return nil
}

func (e *Engine) waitAck() error {
	if err := e.t.WriteDrain([]byte{0x55}); err != nil {
		return err
	}
	buf := make([]byte, 1)
	if err := e.t.ReadExact(buf, handshakeTimeout); err != nil {
		return protoerr.Wrap(protoerr.KindProtocol, "ack handshake read", err)
	}
	if buf[0] != 0xC3 {
		return protoerr.Newf(protoerr.KindProtocol, "ack handshake: expected 0xC3, got 0x%02x", buf[0])
	}
	return nil
}

func (e *Engine) postHandshake() error {
	if err := e.inquiry(); err != nil {
		return err
	}
	if err := e.baudrateSetting(targetBaud); err != nil {
		return err
	}
	if err := e.t.ReconfigureBaud(targetBaud); err != nil {
		return err
	}
	e.sleep(postBaudSettle)
	if err := e.inquiry(); err != nil {
		return err
	}
	return nil
}

// sendCommand frames and writes a command packet.
func (e *Engine) sendCommand(com byte, args []byte) error {
	return e.t.WriteDrain(EncodeCommand(com, args))
}

// recvStatus reads and decodes a fixed 7-byte status response.
func (e *Engine) recvStatus(expectedCom byte) (Status, error) {
	buf := make([]byte, 3+statusLen+2)
	if err := e.t.ReadExact(buf, responseTimeout); err != nil {
		return 0, protoerr.Wrap(protoerr.KindTransport, "recv status", err)
	}
	_, sts, err := DecodeStatus(buf, expectedCom)
	if err != nil {
		return 0, err
	}
	return Status(sts), nil
}

// expectOK issues com with args and requires a StatusOK response.
func (e *Engine) expectOK(com byte, args []byte) error {
	if err := e.sendCommand(com, args); err != nil {
		return err
	}
	sts, err := e.recvStatus(com)
	if err != nil {
		return err
	}
	if sts != StatusOK {
		return protoerr.Newf(protoerr.KindProtocol, "command 0x%02x failed: %s", com, sts).WithStatus(sts.String())
	}
	return nil
}

func (e *Engine) inquiry() error {
	return e.expectOK(CmdInquiry, nil)
}

func (e *Engine) baudrateSetting(baud int) error {
	args := make([]byte, 4)
	binary.BigEndian.PutUint32(args, uint32(baud))
	return e.expectOK(CmdBaudrateSetting, args)
}

// recvFixedOrShortStatus reads a response that is either a short status
// packet (LEN==2, an error) or a full data packet with a DATA length of
// exactly wantLen bytes: read the 4-byte header (SOD, LEN, RES) first, then
// decide how many more bytes to read. The tail read uses the short upgrade
// timeout because the remainder is already buffered locally by then.
func (e *Engine) recvFixedOrShortStatus(expectedCom byte, wantLen int) ([]byte, error) {
	header := make([]byte, 4)
	if err := e.t.ReadExact(header, responseTimeout); err != nil {
		return nil, protoerr.Wrap(protoerr.KindTransport, "recv header", err)
	}
	if header[0] != sod {
		return nil, protoerr.Newf(protoerr.KindFraming, "bad SOD 0x%02x", header[0])
	}
	lenField := int(header[1])<<8 | int(header[2])

	if lenField == statusLen {
		rest := make([]byte, 1+2)
		if err := e.t.ReadExact(rest, upgradeTimeout); err != nil {
			return nil, protoerr.Wrap(protoerr.KindTransport, "recv status tail", err)
		}
		full := append(header, rest...)
		_, sts, err := DecodeStatus(full, expectedCom)
		if err != nil {
			return nil, err
		}
		return nil, protoerr.Newf(protoerr.KindProtocol, "command 0x%02x failed: %s", expectedCom, Status(sts)).WithStatus(Status(sts).String())
	}

	if lenField != wantLen+1 {
		return nil, protoerr.Newf(protoerr.KindFraming, "unexpected data LEN %d, want %d", lenField, wantLen+1)
	}
	rest := make([]byte, wantLen+2)
	if err := e.t.ReadExact(rest, upgradeTimeout); err != nil {
		return nil, protoerr.Wrap(protoerr.KindTransport, "recv data tail", err)
	}
	full := append(header, rest...)
	_, data, err := DecodeData(full, expectedCom)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Signature requests the bootloader's identity.
func (e *Engine) Signature() (Signature, error) {
	if err := e.requireReady("signature"); err != nil {
		return Signature{}, err
	}
	if err := e.sendCommand(CmdSignatureRequest, nil); err != nil {
		return Signature{}, err
	}
	data, err := e.recvFixedOrShortStatus(CmdSignatureRequest, 15)
	if err != nil {
		return Signature{}, err
	}
	return Signature{
		SCI:              binary.BigEndian.Uint32(data[0:4]),
		RMB:              binary.BigEndian.Uint32(data[4:8]),
		NOA:              data[8],
		TYP:              data[9],
		BootVersionMajor: data[10],
		BootVersionMinor: data[11],
	}, nil
}

// AreaInfo requests the n'th flash area descriptor.
func (e *Engine) AreaInfo(n byte) (Area, byte, error) {
	if err := e.requireReady("area_info"); err != nil {
		return Area{}, 0, err
	}
	if err := e.sendCommand(CmdAreaInformation, []byte{n}); err != nil {
		return Area{}, 0, err
	}
	data, err := e.recvFixedOrShortStatus(CmdAreaInformation, 18)
	if err != nil {
		return Area{}, 0, err
	}
	area := Area{
		Start:     binary.BigEndian.Uint32(data[0:4]),
		End:       binary.BigEndian.Uint32(data[4:8]),
		EraseUnit: binary.BigEndian.Uint32(data[8:12]),
		WriteUnit: binary.BigEndian.Uint32(data[12:16]),
	}
	return area, data[16], nil
}

// GetChipInfo iterates area_info(n) for n=0,1,2,... until both a USER_CODE
// and a USER_DATA area have been discovered.
func (e *Engine) GetChipInfo() (ChipInfo, error) {
	var info ChipInfo
	var haveCode, haveData bool
	for n := byte(0); n < 16 && !(haveCode && haveData); n++ {
		area, koa, err := e.AreaInfo(n)
		if err != nil {
			return ChipInfo{}, err
		}
		switch koa {
		case koaUserCode:
			info.Code = area
			haveCode = true
		case koaUserData:
			info.Data = area
			haveData = true
		}
	}
	if !haveCode || !haveData {
		return ChipInfo{}, protoerr.New(protoerr.KindProtocol, "chip info: USER_CODE/USER_DATA area not found")
	}
	return info, nil
}

// Erase erases the flash range [start, end].
func (e *Engine) Erase(start, end uint32) error {
	if err := e.requireReady("erase"); err != nil {
		return err
	}
	args := make([]byte, 8)
	binary.BigEndian.PutUint32(args[0:4], start)
	binary.BigEndian.PutUint32(args[4:8], end)
	return e.expectOK(CmdErase, args)
}

// Read reads exactly length bytes from [start, start+length-1] without
// sending an acknowledgement; ReadAck can emit one.
func (e *Engine) Read(start uint32, length int) ([]byte, error) {
	return e.ReadAck(start, length, false)
}

// ReadAck is Read with control over whether a canned OK status is emitted
// after a successful read.
func (e *Engine) ReadAck(start uint32, length int, ack bool) ([]byte, error) {
	if err := e.requireReady("read"); err != nil {
		return nil, err
	}
	if length > MaxDataLen {
		return nil, protoerr.Newf(protoerr.KindInput, "read length %d exceeds %d", length, MaxDataLen)
	}
	end := start + uint32(length) - 1
	args := make([]byte, 8)
	binary.BigEndian.PutUint32(args[0:4], start)
	binary.BigEndian.PutUint32(args[4:8], end)
	if err := e.sendCommand(CmdRead, args); err != nil {
		return nil, err
	}
	data, err := e.recvFixedOrShortStatus(CmdRead, length)
	if err != nil {
		return nil, err
	}
	if ack {
		if err := e.t.WriteDrain(EncodeStatus(CmdRead, byte(StatusOK))); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// Write writes buf starting at start, chunked into packets of at most
// MaxDataLen bytes each, awaiting OK after every chunk.
func (e *Engine) Write(start uint32, buf []byte) error {
	if err := e.requireReady("write"); err != nil {
		return err
	}
	end := start + uint32(len(buf)) - 1
	args := make([]byte, 8)
	binary.BigEndian.PutUint32(args[0:4], start)
	binary.BigEndian.PutUint32(args[4:8], end)
	if err := e.expectOK(CmdWrite, args); err != nil {
		return err
	}

	for offset := 0; offset < len(buf); offset += MaxDataLen {
		chunkEnd := offset + MaxDataLen
		if chunkEnd > len(buf) {
			chunkEnd = len(buf)
		}
		chunk := buf[offset:chunkEnd]
		if err := e.t.WriteDrain(EncodeData(CmdWrite, chunk)); err != nil {
			return err
		}
		sts, err := e.recvStatus(CmdWrite)
		if err != nil {
			return err
		}
		if sts != StatusOK {
			return protoerr.Newf(protoerr.KindProtocol, "write chunk at offset %d failed: %s", offset, sts).WithStatus(sts.String())
		}
	}
	return nil
}
