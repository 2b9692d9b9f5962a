// Package paramblock reads and writes the versioned binary parameter block
// that stores per-device safety configuration, with automatic detection and
// migration of the pre-versioned legacy layout.
package paramblock

import (
	"encoding/binary"
	"io"

	"github.com/chargebyte/ra-utils/internal/protoerr"
)

const paramMagic uint32 = 0xC001F00D

// CurrentVersion is the version word written by Write.
const CurrentVersion uint16 = 1

// legacySize is the pre-versioned record's fixed size: start-magic(4) +
// temperatures[4]i16(8) + contactor types[2](2) + e-stop types[3](3) +
// end-magic(4) + crc(1) = 22. The legacy format predates resistance
// offsets and contactor timing entirely; those fields take their
// zero-value default on migration.
const (
	legacySize = 22
	newSize    = 36
)

// TempDisabled is the sentinel temperature value meaning "no threshold
// configured", kept outside the valid clamped range [-800, 2000]. Older
// firmware used tempDisabledLegacy instead; it still renders as disabled.
const (
	TempDisabled       int16 = 0x1FFF
	tempDisabledLegacy int16 = -0x8000
)

const (
	tempMin = -800
	tempMax = 2000

	resistanceMin = -32000
	resistanceMax = 32000
)

// ContactorType is the contactor-feedback-wiring enumeration.
type ContactorType byte

const (
	ContactorDisabled        ContactorType = 0
	ContactorWithoutFeedback ContactorType = 1
	// ContactorWithFeedbackNO read from a legacy-format block is migrated
	// to ContactorWithFeedbackNC; a versioned block keeps it as is.
	ContactorWithFeedbackNO ContactorType = 2
	ContactorWithFeedbackNC ContactorType = 3
)

// EstopType is the e-stop input polarity enumeration.
type EstopType byte

const (
	EstopDisabled  EstopType = 0
	EstopActiveLow EstopType = 1
)

// ParamBlock is the decoded per-device safety configuration.
type ParamBlock struct {
	Version               uint16
	Temperatures          [4]int16
	TempResistanceOffsets [4]int16
	ContactorTypes        [2]ContactorType
	ContactorCloseTimes   [2]byte
	ContactorOpenTimes    [2]byte
	EstopTypes            [3]EstopType
}

// Read auto-detects the legacy or versioned binary format and returns a
// ParamBlock in the current (versioned) shape.
func Read(r io.Reader) (ParamBlock, error) {
	legacyBuf := make([]byte, legacySize)
	if _, err := io.ReadFull(r, legacyBuf); err != nil {
		return ParamBlock{}, protoerr.Wrap(protoerr.KindResource, "read param block", err)
	}
	if binary.LittleEndian.Uint32(legacyBuf[0:4]) != paramMagic {
		return ParamBlock{}, protoerr.New(protoerr.KindFraming, "bad param block start magic")
	}

	if binary.LittleEndian.Uint32(legacyBuf[legacySize-5:legacySize-1]) == paramMagic {
		return readLegacy(legacyBuf)
	}

	rest := make([]byte, newSize-legacySize)
	if _, err := io.ReadFull(r, rest); err != nil {
		return ParamBlock{}, protoerr.Wrap(protoerr.KindResource, "read param block tail", err)
	}
	buf := append(legacyBuf, rest...)
	return readVersioned(buf)
}

func readLegacy(buf []byte) (ParamBlock, error) {
	if !verifyCRC8(buf[:legacySize-1], buf[legacySize-1]) {
		return ParamBlock{}, protoerr.New(protoerr.KindFraming, "legacy param block: CRC mismatch")
	}
	var pb ParamBlock
	off := 4
	for i := range pb.Temperatures {
		pb.Temperatures[i] = int16(binary.LittleEndian.Uint16(buf[off : off+2]))
		off += 2
	}
	for i := range pb.ContactorTypes {
		ct := ContactorType(buf[off])
		if ct == ContactorWithFeedbackNO {
			ct = ContactorWithFeedbackNC
		}
		pb.ContactorTypes[i] = ct
		off++
	}
	for i := range pb.EstopTypes {
		pb.EstopTypes[i] = EstopType(buf[off])
		off++
	}
	// Resistance offsets and contactor timing did not exist in the legacy
	// layout; they take their zero-value default on migration.
	pb.Version = CurrentVersion
	return pb, nil
}

func readVersioned(buf []byte) (ParamBlock, error) {
	if binary.LittleEndian.Uint32(buf[31:35]) != paramMagic {
		return ParamBlock{}, protoerr.New(protoerr.KindFraming, "bad param block end magic")
	}
	if !verifyCRC8(buf[:newSize-1], buf[newSize-1]) {
		return ParamBlock{}, protoerr.New(protoerr.KindFraming, "param block: CRC mismatch")
	}
	var pb ParamBlock
	pb.Version = binary.LittleEndian.Uint16(buf[4:6])
	off := 6
	for i := range pb.Temperatures {
		pb.Temperatures[i] = int16(binary.LittleEndian.Uint16(buf[off : off+2]))
		off += 2
	}
	for i := range pb.TempResistanceOffsets {
		pb.TempResistanceOffsets[i] = int16(binary.LittleEndian.Uint16(buf[off : off+2]))
		off += 2
	}
	for i := range pb.ContactorTypes {
		pb.ContactorTypes[i] = ContactorType(buf[off])
		off++
	}
	for i := range pb.ContactorCloseTimes {
		pb.ContactorCloseTimes[i] = buf[off]
		off++
	}
	for i := range pb.ContactorOpenTimes {
		pb.ContactorOpenTimes[i] = buf[off]
		off++
	}
	for i := range pb.EstopTypes {
		pb.EstopTypes[i] = EstopType(buf[off])
		off++
	}
	return pb, nil
}

// Write encodes pb in the current versioned shape and recomputes its CRC.
func Write(w io.Writer, pb ParamBlock) error {
	buf := make([]byte, newSize)
	binary.LittleEndian.PutUint32(buf[0:4], paramMagic)
	binary.LittleEndian.PutUint16(buf[4:6], CurrentVersion)
	off := 6
	for _, t := range pb.Temperatures {
		binary.LittleEndian.PutUint16(buf[off:off+2], uint16(t))
		off += 2
	}
	for _, r := range pb.TempResistanceOffsets {
		binary.LittleEndian.PutUint16(buf[off:off+2], uint16(r))
		off += 2
	}
	for _, ct := range pb.ContactorTypes {
		buf[off] = byte(ct)
		off++
	}
	for _, c := range pb.ContactorCloseTimes {
		buf[off] = c
		off++
	}
	for _, o := range pb.ContactorOpenTimes {
		buf[off] = o
		off++
	}
	for _, e := range pb.EstopTypes {
		buf[off] = byte(e)
		off++
	}
	binary.LittleEndian.PutUint32(buf[31:35], paramMagic)
	buf[35] = computeCRC8(buf[:35])

	if _, err := w.Write(buf); err != nil {
		return protoerr.Wrap(protoerr.KindResource, "write param block", err)
	}
	return nil
}
