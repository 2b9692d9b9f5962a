package paramblock

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBlock() ParamBlock {
	pb := ParamBlock{Version: CurrentVersion}
	for i := range pb.Temperatures {
		pb.Temperatures[i] = int16(100 * (i + 1))
		pb.TempResistanceOffsets[i] = int16(10 * (i + 1))
	}
	pb.ContactorTypes = [2]ContactorType{ContactorWithoutFeedback, ContactorWithFeedbackNC}
	pb.ContactorCloseTimes = [2]byte{5, 10}
	pb.ContactorOpenTimes = [2]byte{6, 11}
	pb.EstopTypes = [3]EstopType{EstopActiveLow, EstopDisabled, EstopActiveLow}
	return pb
}

func TestWriteReadRoundTrip(t *testing.T) {
	pb := sampleBlock()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, pb))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, pb, got)
}

func TestReadRejectsBadCRC(t *testing.T) {
	pb := sampleBlock()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, pb))
	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xFF

	_, err := Read(bytes.NewReader(raw))
	assert.Error(t, err)
}

func TestReadRejectsBadStartMagic(t *testing.T) {
	pb := sampleBlock()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, pb))
	raw := buf.Bytes()
	raw[0] ^= 0xFF

	_, err := Read(bytes.NewReader(raw))
	assert.Error(t, err)
}

// buildLegacyBlock hand-assembles a pre-versioned 22-byte record so Read's
// legacy-detection path can be exercised without a Write path for it (the
// legacy format is read-only; nothing in this toolkit emits it).
func buildLegacyBlock(t *testing.T, contactorTypes [2]ContactorType) []byte {
	t.Helper()
	buf := make([]byte, legacySize)
	binary.LittleEndian.PutUint32(buf[0:4], paramMagic)
	off := 4
	temps := [4]int16{11, 22, 33, 44}
	for _, v := range temps {
		binary.LittleEndian.PutUint16(buf[off:off+2], uint16(v))
		off += 2
	}
	for _, ct := range contactorTypes {
		buf[off] = byte(ct)
		off++
	}
	buf[off], buf[off+1], buf[off+2] = byte(EstopActiveLow), byte(EstopDisabled), byte(EstopActiveLow)
	off += 3
	binary.LittleEndian.PutUint32(buf[off:off+4], paramMagic)
	off += 4
	buf[off] = computeCRC8(buf[:off])
	return buf
}

func TestReadMigratesLegacyFormat(t *testing.T) {
	raw := buildLegacyBlock(t, [2]ContactorType{ContactorWithoutFeedback, ContactorWithFeedbackNO})
	pb, err := Read(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, pb.Version)
	assert.Equal(t, ContactorWithoutFeedback, pb.ContactorTypes[0])
	assert.Equal(t, ContactorWithFeedbackNC, pb.ContactorTypes[1], "legacy NO must migrate to NC")
	assert.Equal(t, int16(11), pb.Temperatures[0])
}

func TestReadRejectsLegacyBadCRC(t *testing.T) {
	raw := buildLegacyBlock(t, [2]ContactorType{ContactorDisabled, ContactorDisabled})
	raw[legacySize-1] ^= 0xFF
	_, err := Read(bytes.NewReader(raw))
	assert.Error(t, err)
}

// TestReadMigratesLegacyFormatGoldenBytes pins the exact legacy byte layout
// worked through by hand against the concrete scenario.
func TestReadMigratesLegacyFormatGoldenBytes(t *testing.T) {
	buf := make([]byte, legacySize)
	binary.LittleEndian.PutUint32(buf[0:4], paramMagic) // 0D F0 01 C0
	temps := []uint16{0xF448, 0xF848, 0xFC48, 0x0050}
	off := 4
	for _, v := range temps {
		binary.LittleEndian.PutUint16(buf[off:off+2], v)
		off += 2
	}
	buf[off], buf[off+1] = 2, 2 // contactors: WITH_FEEDBACK_NO, WITH_FEEDBACK_NO
	off += 2
	buf[off], buf[off+1], buf[off+2] = 1, 1, 1 // estops: all active-low
	off += 3
	binary.LittleEndian.PutUint32(buf[off:off+4], paramMagic)
	off += 4
	buf[off] = computeCRC8(buf[:off])

	pb, err := Read(bytes.NewReader(buf))
	require.NoError(t, err)
	assert.Equal(t, ContactorWithFeedbackNC, pb.ContactorTypes[0])
	assert.Equal(t, ContactorWithFeedbackNC, pb.ContactorTypes[1])

	var out bytes.Buffer
	require.NoError(t, Write(&out, pb))
	reread, err := Read(&out)
	require.NoError(t, err)
	assert.Equal(t, pb, reread)
}

// TestCRC8CheckVector pins the standard check value of the 0x2F-polynomial
// CRC (init 0xFF, final complement) for the ASCII string "123456789".
func TestCRC8CheckVector(t *testing.T) {
	assert.Equal(t, byte(0xDF), computeCRC8([]byte("123456789")))
}

func TestCRC8RoundTripAndCorruptionDetected(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5}
	crc := computeCRC8(data)
	assert.True(t, verifyCRC8(data, crc))
	data[0] ^= 0xFF
	assert.False(t, verifyCRC8(data, crc))
}
