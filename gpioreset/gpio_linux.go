// Package gpioreset drives the safety MCU's RESET and MD (boot-mode select)
// GPIO lines to place it in normal or bootloader mode, via the character
// device uAPI so no cgo or libgpiod dependency is needed.
package gpioreset

import (
	"os"
	"os/signal"
	"syscall"
	"time"
	"unsafe"

	ioctl "github.com/daedaluz/goioctl"

	"github.com/chargebyte/ra-utils/internal/diag"
	"github.com/chargebyte/ra-utils/internal/protoerr"
)

// DefaultResetDuration is the default hold time for a timed reset pulse.
const DefaultResetDuration = 500 * time.Millisecond

const (
	attrIDFlags         uint32 = 1
	attrIDOutputValues  uint32 = 2
)

// GpioResetter acquires the RESET and MD lines by name from a named GPIO
// chip and drives the reset/boot-mode sequence.
type GpioResetter struct {
	chipPath  string
	reqFD     int
	rstBit    int // bit index into gpioV2LineValues, not the chip-wide offset
	mdBit     int
	duration  time.Duration
	sink      diag.Sink
}

// Open opens gpiochip at chipPath and requests resetName and mdName as
// output lines, both driven ACTIVE initially (MCU running, normal mode).
func Open(chipPath, resetName, mdName string) (*GpioResetter, error) {
	chipFD, err := syscall.Open(chipPath, syscall.O_RDWR|syscall.O_CLOEXEC, 0)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.KindResource, "open "+chipPath, err)
	}
	defer syscall.Close(chipFD)

	rstOffset, err := lineOffsetByName(chipFD, resetName)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.KindResource, "resolve RESET gpio "+resetName, err)
	}
	mdOffset, err := lineOffsetByName(chipFD, mdName)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.KindResource, "resolve MD gpio "+mdName, err)
	}

	req := gpioV2LineRequest{
		NumLines: 2,
	}
	req.Offsets[0] = rstOffset
	req.Offsets[1] = mdOffset
	cName(req.Consumer[:], "ra-utils")
	req.Config.Flags = uint64(gpioV2LineFlagOutput)
	req.Config.NumAttrs = 1
	req.Config.Attrs[0] = gpioV2LineConfigAttribute{
		Attr: gpioV2LineAttribute{ID: attrIDOutputValues, Value: 0b11}, // both ACTIVE
		Mask: 0b11,
	}

	if err := ioctl.Ioctl(uintptr(chipFD), gpioV2GetLineIOCTL, uintptr(unsafe.Pointer(&req))); err != nil {
		return nil, protoerr.Wrap(protoerr.KindResource, "request gpio lines", err)
	}

	return &GpioResetter{
		chipPath: chipPath,
		reqFD:    int(req.FD),
		rstBit:   0,
		mdBit:    1,
		duration: DefaultResetDuration,
		sink:     diag.NoopSink{},
	}, nil
}

// lineOffsetByName resolves a GPIO line's chip-relative offset by scanning
// every line's info until the name matches.
func lineOffsetByName(chipFD int, name string) (uint32, error) {
	info, err := chipInfo(chipFD)
	if err != nil {
		return 0, err
	}
	for offset := uint32(0); offset < info.Lines; offset++ {
		li := gpioV2LineInfo{Offset: offset}
		if err := ioctl.Ioctl(uintptr(chipFD), gpioGetLineInfoIOCTL, uintptr(unsafe.Pointer(&li))); err != nil {
			return 0, err
		}
		if goString(li.Name[:]) == name {
			return offset, nil
		}
	}
	return 0, protoerr.Newf(protoerr.KindResource, "gpio line %q not found on chip", name)
}

func chipInfo(chipFD int) (*gpiochipInfo, error) {
	info := &gpiochipInfo{}
	if err := ioctl.Ioctl(uintptr(chipFD), gpioGetChipInfoIOCTL, uintptr(unsafe.Pointer(info))); err != nil {
		return nil, err
	}
	return info, nil
}

// SetTrace installs a diagnostic sink for debug logging of reset sequencing.
func (g *GpioResetter) SetTrace(sink diag.Sink) {
	if sink == nil {
		sink = diag.NoopSink{}
	}
	g.sink = sink
}

// SetResetDuration overrides the hold time used by ResetToNormal and
// ResetToBootloader; default is DefaultResetDuration (500 ms).
func (g *GpioResetter) SetResetDuration(d time.Duration) {
	g.duration = d
}

func (g *GpioResetter) setValues(rstActive, mdActive bool) error {
	values := gpioV2LineValues{
		Mask: (1 << g.rstBit) | (1 << g.mdBit),
	}
	if rstActive {
		values.Bits |= 1 << g.rstBit
	}
	if mdActive {
		values.Bits |= 1 << g.mdBit
	}
	if err := ioctl.Ioctl(uintptr(g.reqFD), gpioV2LineSetValuesIOCTL, uintptr(unsafe.Pointer(&values))); err != nil {
		return protoerr.Wrap(protoerr.KindResource, "set gpio line values", err)
	}
	return nil
}

// lineSetter is the pure sequencing dependency of resetSequence; *GpioResetter
// implements it over the real ioctl, tests implement it over a fake so the
// RESET/MD ordering and polarity can be verified without a real gpiochip.
type lineSetter interface {
	setValues(rstActive, mdActive bool) error
}

// resetSequence is the shared sequence behind ResetToNormal,
// ResetToBootloader and HoldReset: drive RESET inactive, select MD, wait
// (sleep or block for a process signal), then release RESET. MD stays
// selected across the release so the MCU samples it on the rising edge.
func resetSequence(ls lineSetter, sink diag.Sink, duration time.Duration, forceBootloader, holdUntilSignal bool, sleep func(time.Duration), waitSignal func()) error {
	sink.Debugf("gpioreset: RESET inactive, MD=%v (bootloader=%v)", !forceBootloader, forceBootloader)
	if err := ls.setValues(false, !forceBootloader); err != nil {
		return err
	}

	if holdUntilSignal {
		sink.Debugf("gpioreset: holding reset until a process signal arrives")
		waitSignal()
	} else {
		sleep(duration)
	}

	sink.Debugf("gpioreset: RESET active")
	return ls.setValues(true, !forceBootloader)
}

func waitForSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch)
	defer signal.Stop(ch)
	<-ch
}

func (g *GpioResetter) resetWithBootmodeSelection(forceBootloader, holdUntilSignal bool) error {
	return resetSequence(g, g.sink, g.duration, forceBootloader, holdUntilSignal, time.Sleep, waitForSignal)
}

// ResetToNormal drives RESET low, MD high (normal mode), holds the
// configured duration, then releases RESET.
func (g *GpioResetter) ResetToNormal() error {
	return g.resetWithBootmodeSelection(false, false)
}

// ResetToBootloader is ResetToNormal with MD selecting bootloader mode.
func (g *GpioResetter) ResetToBootloader() error {
	return g.resetWithBootmodeSelection(true, false)
}

// HoldReset drives RESET low, MD high, and blocks until a process-level
// signal arrives before releasing RESET.
func (g *GpioResetter) HoldReset() error {
	return g.resetWithBootmodeSelection(false, true)
}

// Close releases the requested lines, freeing them for parallel tools.
func (g *GpioResetter) Close() error {
	return syscall.Close(g.reqFD)
}
