package orchestrator

import (
	"time"

	"github.com/chargebyte/ra-utils/cbproto"
	"github.com/chargebyte/ra-utils/internal/diag"
)

// Timing constants for the monitor/drive workflow.
const (
	StartupDelay          = 300 * time.Millisecond
	ResponseTimeout       = 30 * time.Millisecond
	ChargeControlInterval = 100 * time.Millisecond
	ChargeStateInterval   = 100 * time.Millisecond
)

// frameTransport is the subset of transport.Transport the Monitor/Drive
// loop needs: write an outgoing frame, and read framed state with resync.
type frameTransport interface {
	WriteDrain(data []byte) error
	ReadExact(buf []byte, timeout time.Duration) error
	FlushInput() error
}

// KeyCommand is one interactive keystroke translated into a model mutation
// by cmd/raw's keyboard front-end; ApplyKey applies it between frames.
type KeyCommand struct {
	// Apply mutates model in response to the keystroke. A nil Apply is
	// ignored.
	Apply func(model *cbproto.Model)
	// Quit requests the monitor loop stop.
	Quit bool
	// SendNow requests an immediate manual charge-control frame (the "c" key).
	SendNow bool
	// ToggleAutoSend flips AutoSend (the "s" key).
	ToggleAutoSend bool
}

// MonitorWorkflow is the session behind the raw tool: sync to the free-running
// operational stream, track firmware identity once, and optionally drive
// charge-control in response to received state.
type MonitorWorkflow struct {
	t        frameTransport
	sink     diag.Sink
	model    *cbproto.Model
	AutoSend bool
}

// NewMonitorWorkflow builds a MonitorWorkflow bound to an already-open
// 115200-baud operational transport.
func NewMonitorWorkflow(t frameTransport, sink diag.Sink) *MonitorWorkflow {
	if sink == nil {
		sink = diag.NoopSink{}
	}
	return &MonitorWorkflow{t: t, sink: sink, model: cbproto.NewModel(), AutoSend: true}
}

// Model exposes the live model for read-only inspection by the CLI renderer.
func (w *MonitorWorkflow) Model() *cbproto.Model { return w.model }

// RequestFwVersion sends the one-shot FW_VERSION inquiry. The MCU answers
// asynchronously as a received FW_VERSION frame; HandleFrame schedules the
// follow-up GIT_HASH inquiry once that arrives.
func (w *MonitorWorkflow) RequestFwVersion() error {
	frame := cbproto.EncodeInquiry(cbproto.ComFwVersion)
	return w.t.WriteDrain(frame[:])
}

func (w *MonitorWorkflow) requestGitHash() error {
	frame := cbproto.EncodeInquiry(cbproto.ComGitHash)
	return w.t.WriteDrain(frame[:])
}

// GitHashLatch makes the one-shot GIT_HASH follow-up fire only once per
// session.
type GitHashLatch struct {
	fired bool
}

func (l *GitHashLatch) fireOnce(action func() error) error {
	if l.fired {
		return nil
	}
	l.fired = true
	return action()
}

// Frame is one received operational frame, ready to be handed to
// HandleFrame on the driving goroutine.
type Frame struct {
	Com     cbproto.Com
	Payload uint64
}

// Recv blocks for the next operational frame, resyncing internally. It
// only touches the transport, never the model, so a dedicated receive
// goroutine can run it while keystrokes mutate the model elsewhere.
func (w *MonitorWorkflow) Recv() (Frame, error) {
	com, payload, err := cbproto.RecvWithSync(w.t)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Com: com, Payload: payload}, nil
}

// HandleFrame applies a received frame to the model, fires the one-shot
// git-hash follow-up if this was the first FW_VERSION frame, and - if
// AutoSend is set and the frame is the mode's state frame - sends the
// current charge-control word back. gitHashLatch must be the same
// *GitHashLatch across calls for a session.
func (w *MonitorWorkflow) HandleFrame(f Frame, gitHashLatch *GitHashLatch, now time.Time) error {
	w.model.ApplyFrame(f.Com, f.Payload, now)

	if f.Com == cbproto.ComFwVersion {
		if err := gitHashLatch.fireOnce(w.requestGitHash); err != nil {
			return err
		}
	}

	if w.AutoSend && f.Com == w.model.StateCom() {
		return w.sendControl()
	}
	return nil
}

// Step performs one full receive/react/drive cycle; single-goroutine
// callers use this instead of splitting Recv and HandleFrame.
func (w *MonitorWorkflow) Step(gitHashLatch *GitHashLatch, now time.Time) error {
	f, err := w.Recv()
	if err != nil {
		return err
	}
	return w.HandleFrame(f, gitHashLatch, now)
}

func (w *MonitorWorkflow) sendControl() error {
	frame := cbproto.Encode(w.model.OutgoingCom(), uint64(w.model.ChargeControl()))
	return w.t.WriteDrain(frame[:])
}

// NewGitHashLatch constructs the one-shot latch Step needs threaded through
// a session; cmd/raw owns its lifetime alongside the model.
func NewGitHashLatch() *GitHashLatch { return &GitHashLatch{} }

// ApplyKey applies a single interactive keystroke: mutates the model,
// toggles auto-send, or sends a manual control frame, per the translated
// KeyCommand. Returns whether the caller should quit.
func (w *MonitorWorkflow) ApplyKey(cmd KeyCommand) (quit bool, err error) {
	if cmd.Apply != nil {
		cmd.Apply(w.model)
	}
	if cmd.ToggleAutoSend {
		w.AutoSend = !w.AutoSend
	}
	if cmd.SendNow {
		err = w.sendControl()
	}
	return cmd.Quit, err
}
