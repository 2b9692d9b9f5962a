// Package fwinfo parses the firmware information block embedded in the
// application image at 0x3E0-0x3FF.
package fwinfo

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/chargebyte/ra-utils/internal/protoerr"
)

// BlockSize is the fixed on-flash/on-disk size of the info block.
const BlockSize = 32

// FileOffset is the byte offset of the info block within a firmware file.
const FileOffset = 0x3E0

const magic uint32 = 0xCAFEBABE

// PlatformType is the sw_platform_type field.
type PlatformType byte

const (
	PlatformDefault     PlatformType = 0x81
	PlatformCCY         PlatformType = 0x82
	PlatformUnspecified PlatformType = 0xFF
)

var platformNames = map[PlatformType]string{
	PlatformDefault:     "DEFAULT",
	PlatformCCY:         "CCY",
	PlatformUnspecified: "UNSPECIFIED",
}

func (p PlatformType) String() string {
	name, ok := platformNames[p]
	if !ok {
		name = "UNKNOWN"
	}
	return fmt.Sprintf("%s(0x%02x)", name, byte(p))
}

// ApplicationType is the sw_application_type field.
type ApplicationType byte

const (
	ApplicationFirmware ApplicationType = 0x03
	ApplicationEOL      ApplicationType = 0x04
	ApplicationQuali    ApplicationType = 0x05
)

var applicationNames = map[ApplicationType]string{
	ApplicationFirmware: "FIRMWARE",
	ApplicationEOL:      "EOL",
	ApplicationQuali:    "QUALI",
}

func (a ApplicationType) String() string {
	name, ok := applicationNames[a]
	if !ok {
		name = "UNKNOWN"
	}
	return fmt.Sprintf("%s(0x%02x)", name, byte(a))
}

// Block is a decoded firmware info block.
type Block struct {
	ApplicationSize uint32
	ApplicationCRC  uint32
	Major, Minor, Build byte
	GitHash         uint64
	Platform        PlatformType
	Application     ApplicationType
	ParameterVersion uint16
}

// Parse decodes and validates a BlockSize-byte buffer, failing with a
// KindFraming error iff either magic fails to match.
func Parse(buf []byte) (Block, error) {
	if len(buf) != BlockSize {
		return Block{}, protoerr.Newf(protoerr.KindFraming, "fw info block must be %d bytes, got %d", BlockSize, len(buf))
	}
	startMagic := binary.LittleEndian.Uint32(buf[0:4])
	endMagic := binary.LittleEndian.Uint32(buf[28:32])
	if startMagic != magic || endMagic != magic {
		return Block{}, protoerr.Newf(protoerr.KindFraming, "bad fw info magic: start=0x%08x end=0x%08x", startMagic, endMagic)
	}
	return Block{
		ApplicationSize:  binary.LittleEndian.Uint32(buf[4:8]),
		ApplicationCRC:   binary.LittleEndian.Uint32(buf[8:12]),
		Major:            buf[12],
		Minor:            buf[13],
		Build:            buf[14],
		GitHash:          binary.LittleEndian.Uint64(buf[15:23]),
		Platform:         PlatformType(buf[23]),
		Application:      ApplicationType(buf[24]),
		ParameterVersion: binary.LittleEndian.Uint16(buf[25:27]),
		// buf[27] is reserved.
	}, nil
}

// Render produces the fixed human-readable dump.
func (b Block) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "application size:     %d bytes\n", b.ApplicationSize)
	fmt.Fprintf(&sb, "application CRC-32:   0x%08x\n", b.ApplicationCRC)
	fmt.Fprintf(&sb, "firmware version:     %d.%d.%d\n", b.Major, b.Minor, b.Build)
	fmt.Fprintf(&sb, "git hash:             %016x\n", b.GitHash)
	fmt.Fprintf(&sb, "platform type:        %s\n", b.Platform)
	fmt.Fprintf(&sb, "application type:     %s\n", b.Application)
	fmt.Fprintf(&sb, "parameter version:    %d\n", b.ParameterVersion)
	return sb.String()
}
