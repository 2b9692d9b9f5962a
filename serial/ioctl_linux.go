package serial

import (
	ioctl "github.com/daedaluz/goioctl"
	"unsafe"
)

// ioctl request numbers for the four termios/tty operations ra-utils'
// raw-mode transport actually issues. The wider set the kernel exposes
// (line discipline, RS485, modem lines, pty allocation) has no caller here.
var (
	tcgets2 = ioctl.IOR('T', 0x2A, unsafe.Sizeof(Termios2{}))
	tcsets2 = ioctl.IOW('T', 0x2B, unsafe.Sizeof(Termios2{}))

	tcsbrk = uintptr(0x5409)
	tcflsh = uintptr(0x540B)
)
