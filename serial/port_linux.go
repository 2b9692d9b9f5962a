// Package serial wraps the termios2/ioctl plumbing a safety-MCU serial link
// needs: open a character device, force it raw 8N1, and drive the baud the
// caller asks for. It only ever talks raw 8N1 to a single real device,
// never a pty or RS485 link, so none of that generality exists here.
package serial

import (
	"github.com/daedaluz/fdev/poll"
	ioctl "github.com/daedaluz/goioctl"
	"syscall"
	"time"
	"unsafe"
)

// Termios2 is the kernel's extended termios structure (TCGETS2/TCSETS2),
// needed over the plain termios because it carries BOTHER custom-speed
// fields the safety MCU's bootloader handshake baud (9600) and operational
// baud (115200) don't strictly require, but parameter-block/bring-up tooling
// run at oddball rates sometimes does.
type Termios2 struct {
	Iflag  iflag
	Oflag  oflag
	Cflag  CFlag
	Lflag  lflag
	Line   byte
	Cc     [19]byte
	ISpeed uint32
	OSpeed uint32
}

type iflag uint32
type oflag uint32
type lflag uint32
type CFlag uint32

// control-character indices into Termios2.Cc actually touched by ra-utils'
// raw-mode setup.
const (
	vtime = 5
	vmin  = 6
)

const (
	ignbrk = iflag(0000001)
	brkint = iflag(0000002)
	parmrk = iflag(0000010)
	istrip = iflag(0000040)
	inlcr  = iflag(0000100)
	igncr  = iflag(0000200)
	icrnl  = iflag(0000400)
	ixon   = iflag(0002000)

	opost = oflag(0000001)

	echo   = lflag(0000010)
	echonl = lflag(0000100)
	icanon = lflag(0000002)
	isig   = lflag(0000001)
	iexten = lflag(0100000)
)

// Control-mode flags: the only Cflag bits ra-utils' raw-8N1 configuration
// and baud selection need.
const (
	CBAUD  = CFlag(0010017)
	BOTHER = CFlag(0010000)

	CSIZE  = CFlag(0000060)
	CS8    = CFlag(0000060)
	CSTOPB = CFlag(0000100)
	CREAD  = CFlag(0000200)
	PARENB = CFlag(0000400)
	CLOCAL = CFlag(0004000)

	CRTSCTS = CFlag(020000000000)
)

// standardBauds maps well-known rates to their CBAUD constant; anything
// else falls back to Termios2's BOTHER custom-speed path.
var standardBauds = map[int]CFlag{
	50: 0000001, 75: 0000002, 110: 0000003, 134: 0000004,
	150: 0000005, 200: 0000006, 300: 0000007, 600: 0000010,
	1200: 0000011, 1800: 0000012, 2400: 0000013, 4800: 0000014,
	9600: 0000015, 19200: 0000016, 38400: 0000017,
	57600: 0010001, 115200: 0010002, 230400: 0010003,
	460800: 0010004, 921600: 0010007,
}

func setBaud(attrs *Termios2, baud int) {
	attrs.Cflag &^= CBAUD
	if cflag, ok := standardBauds[baud]; ok {
		attrs.Cflag |= cflag
		return
	}
	attrs.Cflag |= BOTHER
	attrs.ISpeed = uint32(baud)
	attrs.OSpeed = uint32(baud)
}

func makeRaw(attrs *Termios2) {
	attrs.Iflag &^= ignbrk | brkint | parmrk | istrip | inlcr | igncr | icrnl | ixon
	attrs.Oflag &^= opost
	attrs.Lflag &^= echo | echonl | icanon | isig | iexten
	attrs.Cflag &^= CSIZE | PARENB
	attrs.Cflag |= CS8
}

// Queue identifies which buffered queue Flush discards.
type Queue uint32

const (
	TCIFLUSH Queue = iota
	TCOFLUSH
	TCIOFLUSH
)

var ErrClosed = syscall.EBADF

// Port is an opened, raw-mode-configured serial character device.
type Port struct {
	f           int
	readTimeout time.Duration
	closed      bool
}

// Open opens name, puts it in raw mode (8N1, no flow control, receiver
// enabled, ignore modem-control lines, 1-byte minimum reads with no
// driver-level intercharacter timer) and sets baud. The blocking-read
// timeout is applied per call via SetReadTimeout instead.
func Open(name string, baud int) (*Port, error) {
	fd, err := syscall.Open(name, syscall.O_RDWR|syscall.O_NOCTTY|syscall.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	p := &Port{f: fd, readTimeout: -1}
	if err := p.configure(baud); err != nil {
		syscall.Close(fd)
		return nil, err
	}
	return p, nil
}

func (p *Port) configure(baud int) error {
	attrs, err := p.getAttr2()
	if err != nil {
		return err
	}
	makeRaw(attrs)
	attrs.Cflag &^= CSTOPB | PARENB | CRTSCTS
	attrs.Cflag |= CREAD | CLOCAL | CS8
	attrs.Cc[vmin] = 1
	attrs.Cc[vtime] = 0
	setBaud(attrs, baud)
	return p.setAttr2(attrs)
}

// SetBaud reconfigures the baud on the same descriptor without reopening it
// or disturbing the rest of the raw-mode configuration.
func (p *Port) SetBaud(baud int) error {
	attrs, err := p.getAttr2()
	if err != nil {
		return err
	}
	setBaud(attrs, baud)
	return p.setAttr2(attrs)
}

func (p *Port) getAttr2() (*Termios2, error) {
	attrs := &Termios2{}
	if err := ioctl.Ioctl(uintptr(p.f), tcgets2, uintptr(unsafe.Pointer(attrs))); err != nil {
		return nil, err
	}
	return attrs, nil
}

func (p *Port) setAttr2(attrs *Termios2) error {
	return ioctl.Ioctl(uintptr(p.f), tcsets2, uintptr(unsafe.Pointer(attrs)))
}

func (p *Port) Write(data []byte) (int, error) {
	if p.closed {
		return 0, ErrClosed
	}
	return syscall.Write(p.f, data)
}

func (p *Port) Read(data []byte) (int, error) {
	if p.closed {
		return 0, ErrClosed
	}
	if p.readTimeout < 0 {
		return syscall.Read(p.f, data)
	}
	if err := poll.WaitInput(p.f, p.readTimeout); err != nil {
		return 0, err
	}
	return syscall.Read(p.f, data)
}

// SetReadTimeout bounds the next Read call; negative disables the bound.
func (p *Port) SetReadTimeout(timeout time.Duration) {
	p.readTimeout = timeout
}

func (p *Port) Close() error {
	if p.closed {
		return ErrClosed
	}
	p.closed = true
	fd := p.f
	p.f = -1
	return syscall.Close(fd)
}

// Drain blocks until all written output has been transmitted.
func (p *Port) Drain() error {
	return ioctl.Ioctl(uintptr(p.f), tcsbrk, 1)
}

// Flush discards data written but not transmitted, or received but not
// read, depending on queue.
func (p *Port) Flush(queue Queue) error {
	return ioctl.Ioctl(uintptr(p.f), tcflsh, uintptr(queue))
}
