// Package orchestrator wires the GPIO resetter, the serial transport, the
// bootloader engine and the operational model together into the two
// workflows the CLI tools drive: monitor/drive and update.
package orchestrator

import (
	"time"

	"github.com/chargebyte/ra-utils/fwinfo"
	"github.com/chargebyte/ra-utils/internal/diag"
	"github.com/chargebyte/ra-utils/internal/protoerr"
	"github.com/chargebyte/ra-utils/raproto"
)

const bootloaderBaud = 9600

// fwInfoOffset is the byte offset of the firmware info block within the
// code flash area.
const fwInfoOffset = 0x3E0

// resetter is the subset of gpioreset.GpioResetter the update workflow
// depends on.
type resetter interface {
	ResetToBootloader() error
	ResetToNormal() error
	HoldReset() error
}

// EngineOpener opens the transport the update workflow runs a bootloader
// session over (transport.Open in production, a fake in tests).
type EngineOpener func(path string, baud int) (EnginePort, error)

// EnginePort is the transport dependency raproto.Engine needs, re-exposed
// here so UpdateWorkflow can own and close the transport it opens.
type EnginePort interface {
	ReadExact(buf []byte, timeout time.Duration) error
	WriteDrain(data []byte) error
	FlushInput() error
	ReconfigureBaud(baud int) error
	Close() error
}

// UpdateWorkflow implements the update tool's command family.
type UpdateWorkflow struct {
	reset resetter
	open  EngineOpener
	sink  diag.Sink
}

// NewUpdateWorkflow builds an UpdateWorkflow. open is the transport
// constructor (transport.Open, or a fake in tests).
func NewUpdateWorkflow(reset resetter, open EngineOpener, sink diag.Sink) *UpdateWorkflow {
	if sink == nil {
		sink = diag.NoopSink{}
	}
	return &UpdateWorkflow{reset: reset, open: open, sink: sink}
}

// Result carries whatever a sub-command produced for the CLI to render.
type Result struct {
	ChipInfo  *raproto.ChipInfo
	FwInfo    *fwinfo.Block
	BytesRead []byte
}

// Reset resets the MCU to normal mode and returns (the `reset` command).
func (w *UpdateWorkflow) Reset() error {
	return w.reset.ResetToNormal()
}

// HoldInReset holds the MCU in reset until an external signal arrives (the
// `hold-in-reset` command).
func (w *UpdateWorkflow) HoldInReset() error {
	return w.reset.HoldReset()
}

// Bootloader resets the MCU into bootloader mode and leaves it there (the
// `bootloader` command, useful for manual poking with another tool).
func (w *UpdateWorkflow) Bootloader() error {
	return w.reset.ResetToBootloader()
}

// session opens a bootloader engine session: reset to bootloader, open the
// transport at 9600, handshake, discover chip layout. gpioAcquired reports
// whether reset-to-bootloader succeeded, so callers can honor the "skip
// cleanup reset if GPIO was never acquired" policy.
func (w *UpdateWorkflow) session(uartPath string) (eng *raproto.Engine, t EnginePort, info raproto.ChipInfo, gpioAcquired bool, err error) {
	if err = w.reset.ResetToBootloader(); err != nil {
		return nil, nil, raproto.ChipInfo{}, false, err
	}
	gpioAcquired = true

	t, err = w.open(uartPath, bootloaderBaud)
	if err != nil {
		return nil, nil, raproto.ChipInfo{}, gpioAcquired, err
	}

	eng = raproto.NewEngine(t)
	eng.SetTrace(w.sink)
	if err = eng.Handshake(); err != nil {
		t.Close()
		return nil, nil, raproto.ChipInfo{}, gpioAcquired, err
	}

	info, err = eng.GetChipInfo()
	if err != nil {
		t.Close()
		return nil, nil, raproto.ChipInfo{}, gpioAcquired, err
	}
	return eng, t, info, gpioAcquired, nil
}

// runSession executes body inside a bootloader session. The MCU is reset
// back to normal mode afterward even on failure; the one exception is a
// failure before the GPIO lines were ever driven, where there is nothing
// to undo.
func (w *UpdateWorkflow) runSession(uartPath string, body func(*raproto.Engine, raproto.ChipInfo) (Result, error)) (Result, error) {
	eng, t, info, gpioAcquired, err := w.session(uartPath)
	if err != nil {
		if gpioAcquired {
			w.reset.ResetToNormal()
		}
		return Result{}, err
	}
	defer t.Close()

	result, bodyErr := body(eng, info)

	if resetErr := w.reset.ResetToNormal(); resetErr != nil && bodyErr == nil {
		return result, resetErr
	}
	return result, bodyErr
}

// ChipInfo discovers and returns the flash layout (the `chipinfo` command).
func (w *UpdateWorkflow) ChipInfo(uartPath string) (Result, error) {
	return w.runSession(uartPath, func(_ *raproto.Engine, info raproto.ChipInfo) (Result, error) {
		return Result{ChipInfo: &info}, nil
	})
}

// FwInfo reads and parses the flash-resident firmware info block at
// code.start+0x3E0 (the `fw_info` command without a file argument).
func (w *UpdateWorkflow) FwInfo(uartPath string) (Result, error) {
	return w.runSession(uartPath, func(eng *raproto.Engine, info raproto.ChipInfo) (Result, error) {
		buf, err := eng.Read(info.Code.Start+fwInfoOffset, fwinfo.BlockSize)
		if err != nil {
			return Result{}, err
		}
		block, err := fwinfo.Parse(buf)
		if err != nil {
			return Result{}, err
		}
		return Result{FwInfo: &block}, nil
	})
}

// Area selects which flash region an erase/flash operation targets.
type Area int

const (
	AreaCode Area = iota
	AreaData
)

func (w *UpdateWorkflow) selectArea(info raproto.ChipInfo, area Area) raproto.Area {
	if area == AreaData {
		return info.Data
	}
	return info.Code
}

// Erase erases the selected flash area (the `erase` command).
func (w *UpdateWorkflow) Erase(uartPath string, area Area) (Result, error) {
	return w.runSession(uartPath, func(eng *raproto.Engine, info raproto.ChipInfo) (Result, error) {
		target := w.selectArea(info, area)
		return Result{}, eng.Erase(target.Start, target.End)
	})
}

// Flash erases then writes data to the selected flash area (the `flash`
// command), enforcing that data is not larger than the area.
func (w *UpdateWorkflow) Flash(uartPath string, area Area, data []byte) (Result, error) {
	return w.runSession(uartPath, func(eng *raproto.Engine, info raproto.ChipInfo) (Result, error) {
		target := w.selectArea(info, area)
		capacity := target.End - target.Start + 1
		if uint32(len(data)) > capacity {
			return Result{}, protoerr.Newf(protoerr.KindInput, "flash image is %d bytes, area holds only %d", len(data), capacity)
		}
		if target.WriteUnit != 0 && uint32(len(data))%target.WriteUnit != 0 {
			return Result{}, protoerr.Newf(protoerr.KindInput, "flash image size %d is not a multiple of the write unit %d", len(data), target.WriteUnit)
		}
		if err := eng.Erase(target.Start, target.End); err != nil {
			return Result{}, err
		}
		if err := eng.Write(target.Start, data); err != nil {
			return Result{}, err
		}
		return Result{}, nil
	})
}
