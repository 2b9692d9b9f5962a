package fwinfo

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildBlock(t *testing.T) []byte {
	t.Helper()
	buf := make([]byte, BlockSize)
	binary.LittleEndian.PutUint32(buf[0:4], magic)
	binary.LittleEndian.PutUint32(buf[4:8], 12345)
	binary.LittleEndian.PutUint32(buf[8:12], 0xDEADBEEF)
	buf[12], buf[13], buf[14] = 1, 2, 3
	binary.LittleEndian.PutUint64(buf[15:23], 0x0123456789abcdef)
	buf[23] = byte(PlatformCCY)
	buf[24] = byte(ApplicationFirmware)
	binary.LittleEndian.PutUint16(buf[25:27], 42)
	binary.LittleEndian.PutUint32(buf[28:32], magic)
	return buf
}

func TestParseValidBlock(t *testing.T) {
	buf := buildBlock(t)
	b, err := Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(12345), b.ApplicationSize)
	assert.Equal(t, uint32(0xDEADBEEF), b.ApplicationCRC)
	assert.Equal(t, byte(1), b.Major)
	assert.Equal(t, byte(2), b.Minor)
	assert.Equal(t, byte(3), b.Build)
	assert.Equal(t, uint64(0x0123456789abcdef), b.GitHash)
	assert.Equal(t, PlatformCCY, b.Platform)
	assert.Equal(t, ApplicationFirmware, b.Application)
	assert.Equal(t, uint16(42), b.ParameterVersion)
}

func TestParseRejectsBadStartMagic(t *testing.T) {
	buf := buildBlock(t)
	buf[0] ^= 0xFF
	_, err := Parse(buf)
	assert.Error(t, err)
}

func TestParseRejectsBadEndMagic(t *testing.T) {
	buf := buildBlock(t)
	buf[31] ^= 0xFF
	_, err := Parse(buf)
	assert.Error(t, err)
}

func TestParseRejectsWrongLength(t *testing.T) {
	_, err := Parse(make([]byte, BlockSize-1))
	assert.Error(t, err)
}

func TestPlatformAndApplicationStringsFallBackToNumeric(t *testing.T) {
	assert.Equal(t, "CCY(0x82)", PlatformCCY.String())
	assert.Equal(t, "UNSPECIFIED(0xff)", PlatformUnspecified.String())
	assert.Contains(t, PlatformType(0x7F).String(), "UNKNOWN(0x7f)")
	assert.Contains(t, ApplicationType(0x99).String(), "UNKNOWN(0x99)")
}

func TestRenderIncludesAllFields(t *testing.T) {
	buf := buildBlock(t)
	b, err := Parse(buf)
	require.NoError(t, err)
	out := b.Render()
	assert.Contains(t, out, "12345 bytes")
	assert.Contains(t, out, "1.2.3")
	assert.Contains(t, out, "CCY")
}
