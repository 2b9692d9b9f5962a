// Package transport implements blocking framed byte I/O over a serial line.
// Raw-mode and baud configuration live in package serial; Transport only
// drives open/read/write/flush/drain and adds the exact-read and
// write-then-drain semantics the frame codecs depend on.
package transport

import (
	"time"

	"github.com/chargebyte/ra-utils/internal/diag"
	"github.com/chargebyte/ra-utils/internal/protoerr"
	"github.com/chargebyte/ra-utils/serial"
)

// rawPort is the subset of *serial.Port that Transport depends on. Tests
// substitute a fake implementing this interface instead of opening a real
// device.
type rawPort interface {
	Read([]byte) (int, error)
	Write([]byte) (int, error)
	Close() error
	SetBaud(baud int) error
	Flush(serial.Queue) error
	Drain() error
	SetReadTimeout(time.Duration)
}

// Transport owns one serial descriptor for the lifetime of a session and
// serializes all byte I/O with it.
type Transport struct {
	port rawPort
	path string
	sink diag.Sink
}

// Open opens path, configures it 8N1/no-flow-control/raw and sets the
// requested baud. It fails on ENOENT/EACCES with no retries.
func Open(path string, baud int) (*Transport, error) {
	p, err := serial.Open(path, baud)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.KindTransport, "open "+path, err)
	}
	return &Transport{port: p, path: path, sink: diag.NoopSink{}}, nil
}

// newForTest builds a Transport over an arbitrary rawPort fake, skipping
// the real device's raw-mode/baud configuration (fakes have nothing to
// configure).
func newForTest(port rawPort) *Transport {
	return &Transport{port: port, sink: diag.NoopSink{}}
}

// ReconfigureBaud applies a new baud to the same descriptor without
// reopening it. The bootloader engine switches from 9600 to 115200
// mid-session this way.
func (t *Transport) ReconfigureBaud(baud int) error {
	if err := t.port.SetBaud(baud); err != nil {
		return protoerr.Wrap(protoerr.KindTransport, "reconfigure baud", err)
	}
	return nil
}

// FlushInput discards queued input bytes.
func (t *Transport) FlushInput() error {
	if err := t.port.Flush(serial.TCIFLUSH); err != nil {
		return protoerr.Wrap(protoerr.KindTransport, "flush input", err)
	}
	return nil
}

// ReadExact blocks until exactly len(buf) bytes have been read or timeout
// elapses; it never returns a short read. Partial reads are iterated
// internally so callers can parse fixed-size frames directly from buf.
func (t *Transport) ReadExact(buf []byte, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	read := 0
	for read < len(buf) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return protoerr.New(protoerr.KindTransport, "read timeout")
		}
		t.port.SetReadTimeout(remaining)
		n, err := t.port.Read(buf[read:])
		if err != nil {
			return protoerr.Wrap(protoerr.KindTransport, "read timeout", err)
		}
		if n == 0 {
			continue
		}
		t.sink.Trace(diag.DirRX, buf[read:read+n])
		read += n
	}
	return nil
}

// WriteDrain writes all of data and blocks until the kernel has drained it.
func (t *Transport) WriteDrain(data []byte) error {
	written := 0
	for written < len(data) {
		n, err := t.port.Write(data[written:])
		if err != nil {
			return protoerr.Wrap(protoerr.KindTransport, "write", err)
		}
		written += n
	}
	t.sink.Trace(diag.DirTX, data)
	if err := t.port.Drain(); err != nil {
		return protoerr.Wrap(protoerr.KindTransport, "drain", err)
	}
	return nil
}

// SetTrace installs the diagnostic sink used by ReadExact/WriteDrain to
// render hex/ASCII dumps; pass diag.NoopSink{} to disable tracing.
func (t *Transport) SetTrace(sink diag.Sink) {
	if sink == nil {
		sink = diag.NoopSink{}
	}
	t.sink = sink
}

// Close releases the underlying descriptor.
func (t *Transport) Close() error {
	return t.port.Close()
}

// Path returns the device path Open was called with.
func (t *Transport) Path() string {
	return t.path
}
