package raproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksumLawHoldsForCommandPacket(t *testing.T) {
	pkt := EncodeCommand(CmdErase, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	var sum byte
	for _, b := range pkt[1 : len(pkt)-2] {
		sum += b
	}
	sum += pkt[len(pkt)-2]
	assert.Equal(t, byte(0), sum)
}

func TestChecksumLawHoldsForDataPacket(t *testing.T) {
	pkt := EncodeData(CmdRead, []byte{0xAA, 0xBB, 0xCC})
	var sum byte
	for _, b := range pkt[1 : len(pkt)-2] {
		sum += b
	}
	sum += pkt[len(pkt)-2]
	assert.Equal(t, byte(0), sum)
}

func TestDecodeStatusRoundTrip(t *testing.T) {
	pkt := EncodeStatus(CmdInquiry, byte(StatusOK))
	res, sts, err := DecodeStatus(pkt, CmdInquiry)
	require.NoError(t, err)
	assert.Equal(t, CmdInquiry, res)
	assert.Equal(t, byte(StatusOK), sts)
}

func TestDecodeStatusAcceptsErrorCom(t *testing.T) {
	pkt := EncodeStatus(CmdInquiry|0x80, byte(StatusPacketError))
	_, _, err := DecodeStatus(pkt, CmdInquiry)
	assert.NoError(t, err)
}

func TestDecodeStatusRejectsWrongCom(t *testing.T) {
	pkt := EncodeStatus(CmdErase, byte(StatusOK))
	_, _, err := DecodeStatus(pkt, CmdInquiry)
	assert.Error(t, err)
}

func TestDecodeStatusRejectsBadChecksum(t *testing.T) {
	pkt := EncodeStatus(CmdInquiry, byte(StatusOK))
	pkt[len(pkt)-2] ^= 0xFF
	_, _, err := DecodeStatus(pkt, CmdInquiry)
	assert.Error(t, err)
}

func TestDecodeDataRoundTrip(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	pkt := EncodeData(CmdRead, payload)
	res, data, err := DecodeData(pkt, CmdRead)
	require.NoError(t, err)
	assert.Equal(t, CmdRead, res)
	assert.Equal(t, payload, data)
}

func TestDecodeDataRejectsLengthOutOfRange(t *testing.T) {
	oversized := make([]byte, MaxDataLen+5)
	pkt := EncodeData(CmdRead, oversized)
	// The oversized payload gives LEN = 1030, past MaxDataLen+1, so the
	// range check rejects the packet before its truncated length is compared.
	_, _, err := DecodeData(pkt[:10], CmdRead)
	assert.Error(t, err)
}
