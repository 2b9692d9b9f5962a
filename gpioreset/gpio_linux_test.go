package gpioreset

import (
	"testing"
	"time"

	"github.com/chargebyte/ra-utils/internal/diag"
	"github.com/stretchr/testify/assert"
)

type call struct {
	rst, md bool
}

type fakeLines struct {
	calls []call
}

func (f *fakeLines) setValues(rstActive, mdActive bool) error {
	f.calls = append(f.calls, call{rstActive, mdActive})
	return nil
}

func TestResetSequenceToBootloaderSelectsMDLow(t *testing.T) {
	fl := &fakeLines{}
	var slept time.Duration
	sleep := func(d time.Duration) { slept = d }

	err := resetSequence(fl, diag.NoopSink{}, 250*time.Millisecond, true, false, sleep, func() {
		t.Fatal("should not block on signal for a timed reset")
	})

	assert.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, slept)
	assert.Equal(t, []call{
		{rst: false, md: false}, // RESET inactive, MD inactive (bootloader)
		{rst: true, md: false},  // RESET active, MD unchanged
	}, fl.calls)
}

func TestResetSequenceToNormalSelectsMDHigh(t *testing.T) {
	fl := &fakeLines{}
	err := resetSequence(fl, diag.NoopSink{}, time.Millisecond, false, false, func(time.Duration) {}, func() {})

	assert.NoError(t, err)
	assert.Equal(t, []call{
		{rst: false, md: true},
		{rst: true, md: true},
	}, fl.calls)
}

func TestResetSequenceHoldBlocksOnSignalInsteadOfSleeping(t *testing.T) {
	fl := &fakeLines{}
	signaled := false
	err := resetSequence(fl, diag.NoopSink{}, time.Hour, false, true,
		func(time.Duration) { t.Fatal("should not sleep when holding for a signal") },
		func() { signaled = true })

	assert.NoError(t, err)
	assert.True(t, signaled)
	assert.Equal(t, []call{
		{rst: false, md: true},
		{rst: true, md: true},
	}, fl.calls)
}

func TestDefaultResetDurationIsHalfASecond(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, DefaultResetDuration)
}
