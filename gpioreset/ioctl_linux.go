package gpioreset

import "unsafe"

// Linux GPIO character-device uAPI v2 (<linux/gpio.h>): only the ioctls,
// structs and flags the reset sequencer actually uses. Request numbers are
// encoded here with the standard _IOC layout (dir:2 size:14 type:8 nr:8).
const gpioIOCType = 0xB4

const (
	iocWrite uintptr = 1
	iocRead  uintptr = 2
)

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | gpioIOCType<<8 | nr
}

var (
	gpioGetChipInfoIOCTL     = ioc(iocRead, 0x01, unsafe.Sizeof(gpiochipInfo{}))
	gpioGetLineInfoIOCTL     = ioc(iocRead|iocWrite, 0x05, unsafe.Sizeof(gpioV2LineInfo{}))
	gpioV2GetLineIOCTL       = ioc(iocRead|iocWrite, 0x07, unsafe.Sizeof(gpioV2LineRequest{}))
	gpioV2LineSetValuesIOCTL = ioc(iocRead|iocWrite, 0x0F, unsafe.Sizeof(gpioV2LineValues{}))
)

const (
	gpioMaxNameSize    = 32
	gpioV2LinesMax     = 64
	gpioV2LineNumAttrsMax = 10
)

// gpioV2LineFlag mirrors enum gpio_v2_line_flag.
type gpioV2LineFlag uint64

const (
	gpioV2LineFlagUsed      gpioV2LineFlag = 1 << 0
	gpioV2LineFlagActiveLow gpioV2LineFlag = 1 << 1
	gpioV2LineFlagInput     gpioV2LineFlag = 1 << 2
	gpioV2LineFlagOutput    gpioV2LineFlag = 1 << 3
)

type gpiochipInfo struct {
	Name  [gpioMaxNameSize]byte
	Label [gpioMaxNameSize]byte
	Lines uint32
}

type gpioV2LineAttribute struct {
	ID      uint32
	Padding uint32
	Value   uint64 // union of flags/values/debounce_period_us
}

type gpioV2LineConfigAttribute struct {
	Attr gpioV2LineAttribute
	Mask uint64
}

type gpioV2LineConfig struct {
	Flags     uint64
	NumAttrs  uint32
	Padding   [5]uint32
	Attrs     [gpioV2LineNumAttrsMax]gpioV2LineConfigAttribute
}

type gpioV2LineRequest struct {
	Offsets         [gpioV2LinesMax]uint32
	Consumer        [gpioMaxNameSize]byte
	Config          gpioV2LineConfig
	NumLines        uint32
	EventBufferSize uint32
	Padding         [5]uint32
	FD              int32
}

type gpioV2LineInfo struct {
	Name     [gpioMaxNameSize]byte
	Consumer [gpioMaxNameSize]byte
	Offset   uint32
	NumAttrs uint32
	Flags    uint64
	Attrs    [gpioV2LineNumAttrsMax]gpioV2LineAttribute
	Padding  [4]uint32
}

type gpioV2LineValues struct {
	Bits uint64
	Mask uint64
}

func cName(b []byte, s string) {
	n := copy(b, s)
	if n < len(b) {
		b[n] = 0
	}
}

func goString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
