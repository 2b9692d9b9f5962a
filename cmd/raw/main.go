// Command raw implements the interactive monitor/drive workflow: it syncs
// to the safety MCU's free-running operational stream, prints state as it
// arrives, and lets an operator drive charge-control interactively.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/eiannone/keyboard"
	"github.com/spf13/cobra"

	"github.com/chargebyte/ra-utils/cbproto"
	"github.com/chargebyte/ra-utils/cmd/internal/cliconfig"
	"github.com/chargebyte/ra-utils/gpioreset"
	"github.com/chargebyte/ra-utils/orchestrator"
	"github.com/chargebyte/ra-utils/transport"
)

const operationalBaud = 115200

// dutyPresets maps the fixed duty-preset keys to tenths of a percent.
var dutyPresets = map[rune]uint16{
	'r': 50, 't': 100, 'z': 1000,
	'0': 0, '5': 50, '6': 100, '9': 1000,
}

// keyEvent is a raw keystroke; translation happens on the main loop where
// the model's mode can be read without racing frame application.
type keyEvent struct {
	char rune
	key  keyboard.Key
}

func translateKey(ev keyEvent, mcs bool) orchestrator.KeyCommand {
	char, key := ev.char, ev.key
	switch {
	case key == keyboard.KeyCtrlC || key == keyboard.KeyEsc || char == 'q':
		return orchestrator.KeyCommand{Quit: true}
	// MCS mode repurposes r/R/e for CCS-ready/not-ready/estop instead of
	// PWM and duty-preset control, so these cases must be checked first.
	case mcs && char == 'r':
		return orchestrator.KeyCommand{Apply: func(m *cbproto.Model) { m.SetCCSReady(cbproto.CCSReadyValue) }}
	case mcs && char == 'R':
		return orchestrator.KeyCommand{Apply: func(m *cbproto.Model) { m.SetCCSReady(cbproto.CCSNotReady) }}
	case mcs && char == 'e':
		return orchestrator.KeyCommand{Apply: func(m *cbproto.Model) { m.SetEStop(true) }}
	case char == 'e':
		return orchestrator.KeyCommand{Apply: func(m *cbproto.Model) {
			m.SetPWM(true, m.ChargeControl().Duty())
		}}
	case char == 'E':
		return orchestrator.KeyCommand{Apply: func(m *cbproto.Model) {
			m.SetPWM(false, m.ChargeControl().Duty())
		}}
	case char == '-':
		return orchestrator.KeyCommand{Apply: func(m *cbproto.Model) {
			d := m.ChargeControl().Duty()
			if d >= 10 {
				d -= 10
			}
			m.SetPWM(m.ChargeControl().PWMEnabled(), d)
		}}
	case char == '+':
		return orchestrator.KeyCommand{Apply: func(m *cbproto.Model) {
			m.SetPWM(m.ChargeControl().PWMEnabled(), m.ChargeControl().Duty()+10)
		}}
	case char == '1':
		return orchestrator.KeyCommand{Apply: func(m *cbproto.Model) {
			m.SetContactor(0, !m.ChargeControl().ContactorTarget(0))
		}}
	case char == '2':
		return orchestrator.KeyCommand{Apply: func(m *cbproto.Model) {
			m.SetContactor(1, !m.ChargeControl().ContactorTarget(1))
		}}
	case char == 'c':
		return orchestrator.KeyCommand{SendNow: true}
	case char == 's':
		return orchestrator.KeyCommand{ToggleAutoSend: true}
	}
	if duty, ok := dutyPresets[char]; ok {
		return orchestrator.KeyCommand{Apply: func(m *cbproto.Model) {
			m.SetPWM(m.ChargeControl().PWMEnabled(), duty)
		}}
	}
	return orchestrator.KeyCommand{}
}

func main() {
	root := &cobra.Command{
		Use:   "raw",
		Short: "Interactively monitor and drive the safety MCU's operational protocol",
	}
	cfg := cliconfig.Register(root)
	var (
		doSync          bool
		noDump          bool
		noChargeControl bool
		noReset         bool
		resetPeriodMS   uint
	)
	flags := root.PersistentFlags()
	flags.BoolVar(&doSync, "sync", false, "flush pending serial input before the first frame read")
	flags.BoolVar(&noDump, "no-dump", false, "do not print received state frames")
	flags.BoolVar(&noChargeControl, "no-charge-control", false, "do not echo charge-control in response to state frames")
	flags.BoolVar(&noReset, "no-reset", false, "do not reset the MCU to normal mode before connecting")
	flags.UintVar(&resetPeriodMS, "reset-period", 500, "reset pulse duration in milliseconds")

	root.RunE = func(*cobra.Command, []string) error {
		if !noReset {
			g, err := gpioreset.Open(cfg.GpioChip, cfg.ResetGpio, cfg.MdGpio)
			if err != nil {
				return fmt.Errorf("open gpiochip: %w", err)
			}
			g.SetTrace(cfg.Sink())
			g.SetResetDuration(time.Duration(resetPeriodMS) * time.Millisecond)
			if err := g.ResetToNormal(); err != nil {
				g.Close()
				return err
			}
			g.Close()
		}

		t, err := transport.Open(cfg.UART, operationalBaud)
		if err != nil {
			return err
		}
		defer t.Close()
		t.SetTrace(cfg.Sink())

		w := orchestrator.NewMonitorWorkflow(t, cfg.Sink())
		w.AutoSend = !noChargeControl

		if doSync {
			if err := t.FlushInput(); err != nil {
				return err
			}
		}

		if err := keyboard.Open(); err != nil {
			return fmt.Errorf("open keyboard: %w", err)
		}
		defer keyboard.Close()

		keys := make(chan keyEvent)
		go func() {
			for {
				char, key, err := keyboard.GetKey()
				if err != nil {
					return
				}
				keys <- keyEvent{char: char, key: key}
			}
		}()

		time.Sleep(orchestrator.StartupDelay)
		if err := w.RequestFwVersion(); err != nil {
			return err
		}

		type frameMsg struct {
			frame orchestrator.Frame
			err   error
		}
		frames := make(chan frameMsg)
		latch := orchestrator.NewGitHashLatch()
		go func() {
			for {
				f, err := w.Recv()
				frames <- frameMsg{frame: f, err: err}
				if err != nil {
					return
				}
			}
		}()

		for {
			select {
			case msg := <-frames:
				if msg.err != nil {
					return msg.err
				}
				if err := w.HandleFrame(msg.frame, latch, time.Now()); err != nil {
					return err
				}
				if !noDump {
					printState(w.Model())
				}
			case ev := <-keys:
				cmd := translateKey(ev, w.Model().Mode() == cbproto.ModeMCS)
				quit, err := w.ApplyKey(cmd)
				if err != nil {
					return err
				}
				if quit {
					return nil
				}
			}
		}
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func printState(m *cbproto.Model) {
	if !m.Populated(m.StateCom()) {
		return
	}
	cs := m.ChargeState()
	cc := m.ChargeControl()

	fmt.Print("\r\n== Various ==\r\n")
	fmt.Printf("Control Pilot:   %s (short-circuit=%v diode-fault=%v)\r\n",
		cs.CPState(), cs.CPShortCircuit(), cs.CPDiodeFault())
	fmt.Printf("Proximity Pilot: %s\r\n", cs.PPState())
	fmt.Printf("Emergency Stop:  ESTOP1=%s ESTOP2=%s ESTOP3=%s\r\n",
		cs.EstopState(0), cs.EstopState(1), cs.EstopState(2))
	fmt.Printf("HV Ready: %v\r\n", cs.HVReady())

	fmt.Print("\r\n== PWM ==\r\n")
	fmt.Printf("Enable: %-3s  Is Enabled: %-3s\r\n", onOff(cc.PWMEnabled()), onOff(cs.PWMActive()))
	fmt.Printf("Requested Duty Cycle: %5.1f%%  Current Duty Cycle: %5.1f%%\r\n",
		float64(cc.Duty())/10, float64(cs.Duty())/10)

	fmt.Print("\r\n== Contactor ==\r\n")
	for i := 0; i < 2; i++ {
		fmt.Printf("Contactor %d: requested=%-5v actual=%s\r\n",
			i+1, cc.ContactorTarget(i), cs.ContactorState(i))
	}

	if m.Mode() == cbproto.ModeMCS {
		fmt.Print("\r\n== MCS ==\r\n")
		fmt.Printf("ID State: %d  CE State: %d\r\n", cs.IDState(), cs.CEState())
		fmt.Printf("Safe State Active: %s  E-Stop Reason: %s\r\n",
			cs.SafeStateActive(cbproto.ModeMCS), cs.EstopReasonCS2String())
	} else {
		fmt.Printf("Safe State Active: %s  Reason: %s\r\n",
			cs.SafeStateActive(cbproto.ModeClassic), cs.SafeStateReasonCS1String())
	}

	if m.Populated(cbproto.ComPT1000State) {
		fmt.Print("\r\n== Temperatures ==\r\n")
		for i := 0; i < 4; i++ {
			ch := m.PT1000().Channel(i)
			if ch.Unused {
				fmt.Printf("Channel %d: enabled=no  temperature=-n/a- °C\r\n", i+1)
				continue
			}
			fmt.Printf("Channel %d: enabled=yes temperature=%5.1f °C (selftest-failed=%v charging-stopped=%v)\r\n",
				i+1, float64(ch.TenthsCelsius)/10, ch.SelftestFailed, ch.ChargingStopped)
		}
	}

	if m.Populated(cbproto.ComFwVersion) {
		v := m.FwVersion()
		fmt.Print("\r\n== Firmware Info ==\r\n")
		fmt.Printf("Version: %d.%d.%d (platform 0x%02x, application 0x%02x, Parameter Version: %d)\r\n",
			v.Major(), v.Minor(), v.Build(), v.Platform(), v.Application(), v.ParameterVersion())
		if m.Populated(cbproto.ComGitHash) {
			fmt.Printf("Git Hash: %s\r\n", m.GitHash())
		}
	}

	if m.Populated(cbproto.ComErrorMessage) {
		e := m.ErrorMessage()
		fmt.Print("\r\n== Last Error ==\r\n")
		fmt.Printf("active=%v module=%s reason=%d (%s) data=[0x%04x 0x%04x]\r\n",
			e.Active(), e.Module(), e.Reason(), e.ReasonString(),
			e.AdditionalData1(), e.AdditionalData2())
	}
}
