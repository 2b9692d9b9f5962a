// Package cliconfig installs the persistent device flags shared by the
// raw and update entry points, defaulted from environment variables so
// SAFETY_MCU_* overrides work the same way in both.
package cliconfig

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chargebyte/ra-utils/internal/diag"
)

// Config holds the resolved values of the shared persistent flags.
type Config struct {
	UART      string
	GpioChip  string
	ResetGpio string
	MdGpio    string
	Verbose   bool
}

const (
	defaultUART      = "/dev/ttyLP2"
	defaultGpioChip  = "/dev/gpiochip0"
	defaultResetGpio = "nSAFETY_RESET_INT"
	defaultMdGpio    = "SAFETY_BOOTMODE_SET"
)

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// Register adds the shared persistent flags to cmd's root command and
// returns the Config that will hold their resolved values once flags are
// parsed (cobra fills it in place, so read it from a command's RunE).
func Register(cmd *cobra.Command) *Config {
	cfg := &Config{}
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.UART, "uart", envOr("SAFETY_MCU_UART", defaultUART), "serial device path")
	flags.StringVar(&cfg.GpioChip, "gpiochip", envOr("SAFETY_MCU_GPIOCHIP", defaultGpioChip), "gpiochip device path")
	flags.StringVar(&cfg.ResetGpio, "reset-gpio", envOr("SAFETY_MCU_RESET_GPIO", defaultResetGpio), "reset line name")
	flags.StringVar(&cfg.MdGpio, "md-gpio", envOr("SAFETY_MCU_MD_GPIO", defaultMdGpio), "boot-mode-select line name")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "enable trace-level protocol logging")
	return cfg
}

// Logger builds the logrus.Logger every entry point logs through,
// honoring --verbose.
func (c *Config) Logger() *logrus.Logger {
	log := logrus.New()
	if c.Verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}

// Sink builds the diag.Sink every protocol/transport component traces
// through, honoring --verbose the same way Logger does.
func (c *Config) Sink() diag.Sink {
	if c.Verbose {
		return diag.NewLogrusSink(logrus.DebugLevel)
	}
	return diag.NoopSink{}
}
