// Package raproto implements the bootloader wire protocol ("RA") used to
// reflash and inspect the safety microcontroller.
package raproto

import (
	"encoding/binary"

	"github.com/chargebyte/ra-utils/internal/protoerr"
)

const (
	soh = 0x01
	sod = 0x81
	etx = 0x03

	// MaxDataLen is the largest DATA payload a single data packet may carry.
	MaxDataLen = 1024

	// statusLen is the fixed LEN value of a status response (RES+STS).
	statusLen = 2
)

// checksum computes the 8-bit two's-complement checksum over data such that
// the sum of data plus the returned byte is zero modulo 256.
func checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return byte(-sum)
}

// EncodeCommand builds a command packet: SOH, LEN (COM+args), COM, args, SUM, ETX.
func EncodeCommand(com byte, args []byte) []byte {
	body := make([]byte, 0, 3+len(args)+3)
	lenField := 1 + len(args)
	body = append(body, soh)
	body = append(body, byte(lenField>>8), byte(lenField))
	body = append(body, com)
	body = append(body, args...)
	body = append(body, checksum(body[1:]))
	body = append(body, etx)
	return body
}

// EncodeData builds a data packet: SOD, LEN (RES+DATA), RES, DATA, SUM, ETX.
func EncodeData(res byte, data []byte) []byte {
	body := make([]byte, 0, 3+len(data)+3)
	lenField := 1 + len(data)
	body = append(body, sod)
	body = append(body, byte(lenField>>8), byte(lenField))
	body = append(body, res)
	body = append(body, data...)
	body = append(body, checksum(body[1:]))
	body = append(body, etx)
	return body
}

// EncodeStatus builds a status response packet for com with status sts.
func EncodeStatus(com byte, sts byte) []byte {
	return EncodeData(com, []byte{sts})
}

// DecodeStatus validates and parses a status response packet, requiring
// RES to equal expectedCom or expectedCom|0x80.
func DecodeStatus(b []byte, expectedCom byte) (res byte, sts byte, err error) {
	if len(b) < 7 {
		return 0, 0, protoerr.Newf(protoerr.KindFraming, "status packet too short: %d bytes", len(b))
	}
	if b[0] != sod {
		return 0, 0, protoerr.Newf(protoerr.KindFraming, "bad SOD 0x%02x", b[0])
	}
	lenField := int(binary.BigEndian.Uint16(b[1:3]))
	if lenField != statusLen {
		return 0, 0, protoerr.Newf(protoerr.KindFraming, "status LEN must be %d, got %d", statusLen, lenField)
	}
	total := 3 + lenField + 2
	if len(b) != total {
		return 0, 0, protoerr.Newf(protoerr.KindFraming, "status packet length mismatch: want %d got %d", total, len(b))
	}
	if b[total-1] != etx {
		return 0, 0, protoerr.Newf(protoerr.KindFraming, "bad ETX 0x%02x", b[total-1])
	}
	sum := checksum(b[1 : total-2])
	if sum != b[total-2] {
		return 0, 0, protoerr.New(protoerr.KindFraming, "checksum mismatch")
	}
	res = b[3]
	sts = b[4]
	if res != expectedCom && res != expectedCom|0x80 {
		return 0, 0, protoerr.Newf(protoerr.KindProtocol, "unexpected RES 0x%02x for command 0x%02x", res, expectedCom)
	}
	return res, sts, nil
}

// DecodeData validates and parses a data packet, requiring RES to equal
// expectedCom or expectedCom|0x80.
func DecodeData(b []byte, expectedCom byte) (res byte, data []byte, err error) {
	if len(b) < 7 {
		return 0, nil, protoerr.Newf(protoerr.KindFraming, "data packet too short: %d bytes", len(b))
	}
	if b[0] != sod {
		return 0, nil, protoerr.Newf(protoerr.KindFraming, "bad SOD 0x%02x", b[0])
	}
	lenField := int(binary.BigEndian.Uint16(b[1:3]))
	if lenField < 1 || lenField > MaxDataLen+1 {
		return 0, nil, protoerr.Newf(protoerr.KindFraming, "data LEN out of range: %d", lenField)
	}
	total := 3 + lenField + 2
	if len(b) != total {
		return 0, nil, protoerr.Newf(protoerr.KindFraming, "data packet length mismatch: want %d got %d", total, len(b))
	}
	if b[total-1] != etx {
		return 0, nil, protoerr.Newf(protoerr.KindFraming, "bad ETX 0x%02x", b[total-1])
	}
	sum := checksum(b[1 : total-2])
	if sum != b[total-2] {
		return 0, nil, protoerr.New(protoerr.KindFraming, "checksum mismatch")
	}
	res = b[3]
	if res != expectedCom && res != expectedCom|0x80 {
		return 0, nil, protoerr.Newf(protoerr.KindProtocol, "unexpected RES 0x%02x for command 0x%02x", res, expectedCom)
	}
	data = b[4 : total-2]
	return res, data, nil
}
