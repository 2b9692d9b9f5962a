package raproto

import (
	"errors"
	"testing"
	"time"

	"github.com/chargebyte/ra-utils/internal/protoerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort is a scripted, in-memory implementation of port for exercising
// Engine without a real serial transport. Scripted responses form one flat
// byte stream, mirroring how the engine slices its reads (header first,
// then the remainder) off the real wire.
type fakePort struct {
	rx         []byte
	tx         [][]byte
	baud       []int
	flushCalls int
}

func (f *fakePort) script(chunks ...[]byte) {
	for _, c := range chunks {
		f.rx = append(f.rx, c...)
	}
}

func (f *fakePort) ReadExact(buf []byte, _ time.Duration) error {
	if len(f.rx) < len(buf) {
		return assertionError("no more scripted reads")
	}
	copy(buf, f.rx[:len(buf)])
	f.rx = f.rx[len(buf):]
	return nil
}

func (f *fakePort) WriteDrain(data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	f.tx = append(f.tx, cp)
	return nil
}

func (f *fakePort) FlushInput() error {
	f.flushCalls++
	return nil
}

func (f *fakePort) ReconfigureBaud(baud int) error {
	f.baud = append(f.baud, baud)
	return nil
}

type assertionError string

func (e assertionError) Error() string { return string(e) }

func newEngineForTest(f *fakePort) *Engine {
	e := NewEngine(f)
	e.sleep = func(time.Duration) {}
	return e
}

// newReadyEngineForTest builds an Engine already past the handshake, for
// tests that exercise a single READY-only command in isolation (Handshake
// itself has its own dedicated tests below).
func newReadyEngineForTest(f *fakePort) *Engine {
	e := newEngineForTest(f)
	e.state = StateReady
	return e
}

func TestHandshakeDrivesAllFourSteps(t *testing.T) {
	f := &fakePort{}
	f.script(
		[]byte{0x00}, // low-pulse ack
		[]byte{0xC3}, // ack handshake
		EncodeStatus(CmdInquiry, byte(StatusOK)),
		EncodeStatus(CmdBaudrateSetting, byte(StatusOK)),
		EncodeStatus(CmdInquiry, byte(StatusOK)),
	)
	e := newEngineForTest(f)

	err := e.Handshake()
	require.NoError(t, err)
	assert.Equal(t, StateReady, e.State())
	assert.Equal(t, []int{targetBaud}, f.baud)
	assert.Equal(t, 1, f.flushCalls)
}

// TestHandshakeGoldenTranscript pins the exact bytes of a successful
// handshake in both directions.
func TestHandshakeGoldenTranscript(t *testing.T) {
	f := &fakePort{}
	f.script(
		[]byte{0x00},
		[]byte{0xC3},
		[]byte{0x81, 0x00, 0x02, 0x00, 0x00, 0xFE, 0x03}, // INQUIRY OK
		EncodeStatus(CmdBaudrateSetting, byte(StatusOK)),
		[]byte{0x81, 0x00, 0x02, 0x00, 0x00, 0xFE, 0x03}, // INQUIRY OK again
	)
	e := newEngineForTest(f)

	require.NoError(t, e.Handshake())
	require.Len(t, f.tx, 6)
	assert.Equal(t, []byte{0x00}, f.tx[0])
	assert.Equal(t, []byte{0x00}, f.tx[1])
	assert.Equal(t, []byte{0x55}, f.tx[2])
	assert.Equal(t, []byte{0x01, 0x00, 0x01, 0x00, 0xFF, 0x03}, f.tx[3], "INQUIRY")
	assert.Equal(t, []byte{0x01, 0x00, 0x05, 0x34, 0x00, 0x01, 0xC2, 0x00, 0x04, 0x03}, f.tx[4], "BAUDRATE_SETTING 115200")
	assert.Equal(t, []byte{0x01, 0x00, 0x01, 0x00, 0xFF, 0x03}, f.tx[5], "second INQUIRY")
}

func TestHandshakeFailsOnBadLowPulseByte(t *testing.T) {
	f := &fakePort{}
	f.script([]byte{0x01})
	e := newEngineForTest(f)

	err := e.Handshake()
	assert.Error(t, err)
	assert.Equal(t, StateFailed, e.State())
}

func TestHandshakeFailsOnBadAckByte(t *testing.T) {
	f := &fakePort{}
	f.script([]byte{0x00}, []byte{0x00})
	e := newEngineForTest(f)

	err := e.Handshake()
	assert.Error(t, err)
	assert.Equal(t, StateFailed, e.State())
}

func TestEraseSendsCommandAndExpectsOK(t *testing.T) {
	f := &fakePort{}
	f.script(EncodeStatus(CmdErase, byte(StatusOK)))
	e := newReadyEngineForTest(f)

	err := e.Erase(0x1000, 0x1FFF)
	require.NoError(t, err)
	require.Len(t, f.tx, 1)

	expected := EncodeCommand(CmdErase, []byte{0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x1F, 0xFF})
	assert.Equal(t, expected, f.tx[0])
}

func TestEraseFailureReturnsProtocolError(t *testing.T) {
	f := &fakePort{}
	f.script(EncodeStatus(CmdErase, byte(StatusEraseError)))
	e := newReadyEngineForTest(f)

	err := e.Erase(0, 1)
	assert.Error(t, err)
}

func TestReadReturnsExactBytes(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	f := &fakePort{}
	f.script(EncodeData(CmdRead, payload))
	e := newReadyEngineForTest(f)

	data, err := e.Read(0x2000, len(payload))
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestReadRejectsOversizedLength(t *testing.T) {
	f := &fakePort{}
	e := newReadyEngineForTest(f)

	_, err := e.Read(0, MaxDataLen+1)
	assert.Error(t, err)
}

func TestWriteChunksAndAwaitsOKPerChunk(t *testing.T) {
	buf := make([]byte, MaxDataLen+10)
	f := &fakePort{}
	f.script(
		EncodeStatus(CmdWrite, byte(StatusOK)),
		EncodeStatus(CmdWrite, byte(StatusOK)),
		EncodeStatus(CmdWrite, byte(StatusOK)),
	)
	e := newReadyEngineForTest(f)

	err := e.Write(0x4000, buf)
	require.NoError(t, err)
	assert.Len(t, f.tx, 3) // WRITE command + 2 data chunks
}

// TestWriteChunkedGolden drives a 2600-byte write: one WRITE command with
// end address 0xA27, then data packets of 1024, 1024 and 552 bytes.
func TestWriteChunkedGolden(t *testing.T) {
	buf := make([]byte, 2600)
	f := &fakePort{}
	f.script(
		EncodeStatus(CmdWrite, byte(StatusOK)),
		EncodeStatus(CmdWrite, byte(StatusOK)),
		EncodeStatus(CmdWrite, byte(StatusOK)),
		EncodeStatus(CmdWrite, byte(StatusOK)),
	)
	e := newReadyEngineForTest(f)

	require.NoError(t, e.Write(0, buf))
	require.Len(t, f.tx, 4)
	assert.Equal(t, EncodeCommand(CmdWrite, []byte{0, 0, 0, 0, 0x00, 0x00, 0x0A, 0x27}), f.tx[0])
	assert.Len(t, f.tx[1], 3+1+1024+2)
	assert.Len(t, f.tx[2], 3+1+1024+2)
	assert.Len(t, f.tx[3], 3+1+552+2)
}

func TestWriteFailsOnFirstBadChunkStatus(t *testing.T) {
	buf := make([]byte, 10)
	f := &fakePort{}
	f.script(
		EncodeStatus(CmdWrite, byte(StatusOK)),
		EncodeStatus(CmdWrite, byte(StatusWriteError)),
	)
	e := newReadyEngineForTest(f)

	err := e.Write(0, buf)
	assert.Error(t, err)
}

func TestSignatureParsesFixedShapeResponse(t *testing.T) {
	data := make([]byte, 15)
	data[3] = 0x01 // SCI low byte
	data[8] = 7    // NOA
	data[9] = 9    // TYP
	data[10] = 2   // boot major
	data[11] = 5   // boot minor
	f := &fakePort{}
	f.script(EncodeData(CmdSignatureRequest, data))
	e := newReadyEngineForTest(f)

	sig, err := e.Signature()
	require.NoError(t, err)
	assert.Equal(t, byte(7), sig.NOA)
	assert.Equal(t, byte(9), sig.TYP)
	assert.Equal(t, byte(2), sig.BootVersionMajor)
	assert.Equal(t, byte(5), sig.BootVersionMinor)
}

func TestSignatureSurfacesShortErrorStatus(t *testing.T) {
	f := &fakePort{}
	f.script(EncodeStatus(CmdSignatureRequest, byte(StatusUnsupportedCmd)))
	e := newReadyEngineForTest(f)

	_, err := e.Signature()
	assert.Error(t, err)
}

func TestGetChipInfoDiscoversCodeAndDataAreas(t *testing.T) {
	codeData := make([]byte, 18)
	codeData[2] = 0x10 // start = 0x1000
	codeData[7] = 0xFF // end = 0xFF
	codeData[16] = koaUserCode

	dataData := make([]byte, 18)
	dataData[2] = 0x20 // start = 0x2000
	dataData[16] = koaUserData

	f := &fakePort{}
	f.script(
		EncodeData(CmdAreaInformation, codeData),
		EncodeData(CmdAreaInformation, dataData),
	)
	e := newReadyEngineForTest(f)

	info, err := e.GetChipInfo()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1000), info.Code.Start)
	assert.Equal(t, uint32(0x2000), info.Data.Start)
}

func TestReadBeforeReadyYieldsBadState(t *testing.T) {
	f := &fakePort{}
	e := newEngineForTest(f)
	require.Equal(t, StatePreHandshake, e.State())

	_, err := e.Read(0, 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, protoerr.Sentinel(protoerr.KindState)))
	assert.Empty(t, f.tx, "no command must be sent before the handshake completes")
}

func TestEraseSignatureAreaInfoWriteBeforeReadyAllYieldBadState(t *testing.T) {
	ops := map[string]func(*Engine) error{
		"erase":     func(e *Engine) error { return e.Erase(0, 1) },
		"write":     func(e *Engine) error { return e.Write(0, []byte{1}) },
		"signature": func(e *Engine) error { _, err := e.Signature(); return err },
		"area_info": func(e *Engine) error { _, _, err := e.AreaInfo(0); return err },
	}
	for name, op := range ops {
		f := &fakePort{}
		e := newEngineForTest(f)
		err := op(e)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, protoerr.Sentinel(protoerr.KindState)), name)
	}
}
