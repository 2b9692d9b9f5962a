package orchestrator

import (
	"testing"
	"time"

	"github.com/chargebyte/ra-utils/cbproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFrameTransport struct {
	rxQueue [][]byte
	rxIdx   int
	tx      [][]byte
}

func (f *fakeFrameTransport) ReadExact(buf []byte, _ time.Duration) error {
	if f.rxIdx >= len(f.rxQueue) {
		return assertionError("fakeFrameTransport: rx queue exhausted")
	}
	copy(buf, f.rxQueue[f.rxIdx])
	f.rxIdx++
	return nil
}
func (f *fakeFrameTransport) FlushInput() error { return nil }
func (f *fakeFrameTransport) WriteDrain(data []byte) error {
	cp := append([]byte(nil), data...)
	f.tx = append(f.tx, cp)
	return nil
}

func TestStepAppliesReceivedFrameToModel(t *testing.T) {
	frame := cbproto.Encode(cbproto.ComChargeState, 0x1234)
	ft := &fakeFrameTransport{rxQueue: [][]byte{frame[:]}}
	w := NewMonitorWorkflow(ft, nil)
	w.AutoSend = false

	require.NoError(t, w.Step(NewGitHashLatch(), time.Unix(0, 0)))
	assert.True(t, w.Model().Populated(cbproto.ComChargeState))
}

func TestStepAutoSendsControlOnStateFrame(t *testing.T) {
	frame := cbproto.Encode(cbproto.ComChargeState, 0)
	ft := &fakeFrameTransport{rxQueue: [][]byte{frame[:]}}
	w := NewMonitorWorkflow(ft, nil)

	require.NoError(t, w.Step(NewGitHashLatch(), time.Unix(0, 0)))
	require.Len(t, ft.tx, 1)
	com, _, err := cbproto.Decode(ft.tx[0])
	require.NoError(t, err)
	assert.Equal(t, cbproto.ComChargeControl, com)
}

func TestStepDoesNotAutoSendOnNonStateFrame(t *testing.T) {
	frame := cbproto.Encode(cbproto.ComPT1000State, 0)
	ft := &fakeFrameTransport{rxQueue: [][]byte{frame[:]}}
	w := NewMonitorWorkflow(ft, nil)

	require.NoError(t, w.Step(NewGitHashLatch(), time.Unix(0, 0)))
	assert.Empty(t, ft.tx)
}

func TestStepFiresGitHashFollowupOnlyOnceAfterFwVersion(t *testing.T) {
	frame := cbproto.Encode(cbproto.ComFwVersion, 0)
	ft := &fakeFrameTransport{rxQueue: [][]byte{frame[:], frame[:]}}
	w := NewMonitorWorkflow(ft, nil)
	w.AutoSend = false
	latch := NewGitHashLatch()

	require.NoError(t, w.Step(latch, time.Unix(0, 0)))
	require.Len(t, ft.tx, 1)
	com, payload, err := cbproto.Decode(ft.tx[0])
	require.NoError(t, err)
	assert.Equal(t, cbproto.ComInquiry, com)
	assert.Equal(t, uint64(cbproto.ComGitHash)<<56, payload, "inquiry payload names the requested COM in its top byte")

	require.NoError(t, w.Step(latch, time.Unix(0, 0)))
	assert.Len(t, ft.tx, 1, "git-hash follow-up must fire only once per session")
}

func TestStepSwitchesToMCSControlComAfterChargeState2(t *testing.T) {
	frame := cbproto.Encode(cbproto.ComChargeState2, 0)
	ft := &fakeFrameTransport{rxQueue: [][]byte{frame[:]}}
	w := NewMonitorWorkflow(ft, nil)

	require.NoError(t, w.Step(NewGitHashLatch(), time.Unix(0, 0)))
	require.Len(t, ft.tx, 1)
	com, _, err := cbproto.Decode(ft.tx[0])
	require.NoError(t, err)
	assert.Equal(t, cbproto.ComChargeControl2, com, "MCS mode must emit CHARGE_CONTROL_2")
}

func TestApplyKeyMutatesModelAndReportsQuit(t *testing.T) {
	ft := &fakeFrameTransport{}
	w := NewMonitorWorkflow(ft, nil)

	quit, err := w.ApplyKey(KeyCommand{Apply: func(m *cbproto.Model) {
		m.SetPWM(true, 500)
	}})
	require.NoError(t, err)
	assert.False(t, quit)
	assert.True(t, w.Model().ChargeControl().PWMEnabled())

	quit, err = w.ApplyKey(KeyCommand{Quit: true})
	require.NoError(t, err)
	assert.True(t, quit)
}

func TestApplyKeyTogglesAutoSendAndSendsManualFrame(t *testing.T) {
	ft := &fakeFrameTransport{}
	w := NewMonitorWorkflow(ft, nil)
	require.True(t, w.AutoSend)

	quit, err := w.ApplyKey(KeyCommand{ToggleAutoSend: true})
	require.NoError(t, err)
	assert.False(t, quit)
	assert.False(t, w.AutoSend)

	_, err = w.ApplyKey(KeyCommand{SendNow: true})
	require.NoError(t, err)
	require.Len(t, ft.tx, 1)
}
