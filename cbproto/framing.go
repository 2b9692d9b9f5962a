package cbproto

import (
	"encoding/binary"
	"time"

	"github.com/chargebyte/ra-utils/internal/protoerr"
)

const (
	sof = 0xA5
	eof = 0x03

	// FrameSize is the fixed length of an operational frame.
	FrameSize = 12

	maxSyncTrials = 3
)

// Encode builds a 12-byte operational frame: SOF, COM, big-endian payload,
// CRC-8/J1850 over COM+payload, EOF.
func Encode(com Com, payload uint64) [FrameSize]byte {
	var frame [FrameSize]byte
	frame[0] = sof
	frame[1] = byte(com)
	binary.BigEndian.PutUint64(frame[2:10], payload)
	frame[10] = computeCRC8(frame[1:10])
	frame[11] = eof
	return frame
}

// EncodeInquiry builds the one-shot request frame for com: an INQUIRY
// frame whose payload carries the requested COM in its top byte.
func EncodeInquiry(com Com) [FrameSize]byte {
	return Encode(ComInquiry, uint64(com)<<56)
}

// Decode validates and parses a 12-byte operational frame. It fails with a
// KindFraming error on a bad SOF/EOF or CRC mismatch.
func Decode(frame []byte) (Com, uint64, error) {
	if len(frame) != FrameSize {
		return 0, 0, protoerr.Newf(protoerr.KindFraming, "frame must be %d bytes, got %d", FrameSize, len(frame))
	}
	if frame[0] != sof {
		return 0, 0, protoerr.Newf(protoerr.KindFraming, "bad SOF 0x%02x", frame[0])
	}
	if frame[11] != eof {
		return 0, 0, protoerr.Newf(protoerr.KindFraming, "bad EOF 0x%02x", frame[11])
	}
	if !verifyCRC8(frame[1:10], frame[10]) {
		return 0, 0, protoerr.New(protoerr.KindFraming, "CRC mismatch")
	}
	com := Com(frame[1])
	payload := binary.BigEndian.Uint64(frame[2:10])
	return com, payload, nil
}

// reader is the minimal transport dependency recv_with_sync needs;
// *transport.Transport satisfies it without cbproto importing transport.
type reader interface {
	ReadExact(buf []byte, timeout time.Duration) error
	FlushInput() error
}

// RecvTimeout bounds each 12-byte read attempted by RecvWithSync.
const RecvTimeout = 1500 * time.Millisecond

// RecvWithSync reads one operational frame, retrying up to three times on a
// bad frame by flushing the input and trying again - the sender is
// free-running, so a late connector can land mid-frame and a flush at a
// frame-period boundary will resync.
func RecvWithSync(t reader) (Com, uint64, error) {
	var lastErr error
	buf := make([]byte, FrameSize)
	for trial := 0; trial < maxSyncTrials; trial++ {
		if err := t.ReadExact(buf, RecvTimeout); err != nil {
			return 0, 0, err
		}
		com, payload, err := Decode(buf)
		if err == nil {
			return com, payload, nil
		}
		lastErr = err
		_ = t.FlushInput()
	}
	return 0, 0, lastErr
}
