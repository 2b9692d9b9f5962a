// Package diag provides the injected diagnostic sink every component that
// wants to report something takes at construction time, instead of reaching
// for a package-level logger.
package diag

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Direction labels a Trace call as describing bytes read from, or written
// to, a transport.
type Direction int

const (
	DirRX Direction = iota
	DirTX
)

func (d Direction) String() string {
	if d == DirTX {
		return "TX"
	}
	return "RX"
}

// Sink is the diagnostic interface every orchestrator, transport and engine
// accepts. A nil Sink is never passed around; callers use NoopSink{} as the
// zero-dependency default.
type Sink interface {
	Debugf(format string, args ...any)
	Errorf(format string, args ...any)
	Trace(dir Direction, data []byte)
}

// NoopSink discards everything. It is the default so callers never need to
// nil-check a Sink before using it.
type NoopSink struct{}

func (NoopSink) Debugf(string, ...any)   {}
func (NoopSink) Errorf(string, ...any)   {}
func (NoopSink) Trace(Direction, []byte) {}

// LogrusSink adapts a *logrus.Logger to Sink. Trace renders a hex/ASCII
// dump at debug level.
type LogrusSink struct {
	Log *logrus.Logger
}

// NewLogrusSink returns a LogrusSink backed by a standard logrus.Logger
// configured with a text formatter, matching the ambient logging choice
// used by the cmd/* entry points.
func NewLogrusSink(level logrus.Level) *LogrusSink {
	l := logrus.New()
	l.SetLevel(level)
	return &LogrusSink{Log: l}
}

func (s *LogrusSink) Debugf(format string, args ...any) {
	s.Log.Debugf(format, args...)
}

func (s *LogrusSink) Errorf(format string, args ...any) {
	s.Log.Errorf(format, args...)
}

func (s *LogrusSink) Trace(dir Direction, data []byte) {
	s.Log.Debugf("%s %d bytes\n%s", dir, len(data), HexDump(data))
}

// HexDump renders data as 16-bytes-per-line hex plus an ASCII gutter.
func HexDump(data []byte) string {
	var b strings.Builder
	for offset := 0; offset < len(data); offset += 16 {
		end := offset + 16
		if end > len(data) {
			end = len(data)
		}
		line := data[offset:end]
		fmt.Fprintf(&b, "%04x  ", offset)
		for i := 0; i < 16; i++ {
			if i < len(line) {
				fmt.Fprintf(&b, "%02x ", line[i])
			} else {
				b.WriteString("   ")
			}
			if i == 7 {
				b.WriteByte(' ')
			}
		}
		b.WriteString(" |")
		for _, c := range line {
			if c >= 0x20 && c < 0x7f {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString("|\n")
	}
	return b.String()
}
