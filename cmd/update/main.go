// Command update drives the RA bootloader: reset, chip discovery, firmware
// info readback, erase and flash.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chargebyte/ra-utils/cmd/internal/cliconfig"
	"github.com/chargebyte/ra-utils/fwinfo"
	"github.com/chargebyte/ra-utils/gpioreset"
	"github.com/chargebyte/ra-utils/orchestrator"
	"github.com/chargebyte/ra-utils/transport"
)

func newWorkflow(cfg *cliconfig.Config) (*orchestrator.UpdateWorkflow, func() error, error) {
	g, err := gpioreset.Open(cfg.GpioChip, cfg.ResetGpio, cfg.MdGpio)
	if err != nil {
		return nil, nil, fmt.Errorf("open gpiochip: %w", err)
	}
	g.SetTrace(cfg.Sink())

	open := func(path string, baud int) (orchestrator.EnginePort, error) {
		return transport.Open(path, baud)
	}
	return orchestrator.NewUpdateWorkflow(g, open, cfg.Sink()), g.Close, nil
}

func parseArea(s string) (orchestrator.Area, error) {
	switch s {
	case "code":
		return orchestrator.AreaCode, nil
	case "data":
		return orchestrator.AreaData, nil
	default:
		return 0, fmt.Errorf("unknown area %q, want code or data", s)
	}
}

func main() {
	root := &cobra.Command{
		Use:   "update",
		Short: "Reflash and inspect the safety microcontroller's bootloader",
	}
	cfg := cliconfig.Register(root)

	root.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Reset the MCU to normal (application) mode",
		RunE: func(*cobra.Command, []string) error {
			w, closeFn, err := newWorkflow(cfg)
			if err != nil {
				return err
			}
			defer closeFn()
			return w.Reset()
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "hold-in-reset",
		Short: "Hold the MCU in reset until a process signal arrives",
		RunE: func(*cobra.Command, []string) error {
			w, closeFn, err := newWorkflow(cfg)
			if err != nil {
				return err
			}
			defer closeFn()
			return w.HoldInReset()
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "bootloader",
		Short: "Reset the MCU into bootloader mode and leave it there",
		RunE: func(*cobra.Command, []string) error {
			w, closeFn, err := newWorkflow(cfg)
			if err != nil {
				return err
			}
			defer closeFn()
			return w.Bootloader()
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "chipinfo",
		Short: "Discover and print the flash code/data area layout",
		RunE: func(*cobra.Command, []string) error {
			w, closeFn, err := newWorkflow(cfg)
			if err != nil {
				return err
			}
			defer closeFn()
			result, err := w.ChipInfo(cfg.UART)
			if err != nil {
				return err
			}
			fmt.Printf("code:  start=0x%08x end=0x%08x erase_unit=%d write_unit=%d\n",
				result.ChipInfo.Code.Start, result.ChipInfo.Code.End, result.ChipInfo.Code.EraseUnit, result.ChipInfo.Code.WriteUnit)
			fmt.Printf("data:  start=0x%08x end=0x%08x erase_unit=%d write_unit=%d\n",
				result.ChipInfo.Data.Start, result.ChipInfo.Data.End, result.ChipInfo.Data.EraseUnit, result.ChipInfo.Data.WriteUnit)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "fw_info [file]",
		Short: "Read and print the firmware info block, from MCU flash or a firmware file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if len(args) == 1 {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				if len(data) < fwinfo.FileOffset+fwinfo.BlockSize {
					return fmt.Errorf("%s: file too small to hold a firmware info block", args[0])
				}
				block, err := fwinfo.Parse(data[fwinfo.FileOffset : fwinfo.FileOffset+fwinfo.BlockSize])
				if err != nil {
					return err
				}
				fmt.Print(block.Render())
				return nil
			}

			w, closeFn, err := newWorkflow(cfg)
			if err != nil {
				return err
			}
			defer closeFn()
			result, err := w.FwInfo(cfg.UART)
			if err != nil {
				return err
			}
			fmt.Print(result.FwInfo.Render())
			return nil
		},
	})

	var eraseArea string
	eraseCmd := &cobra.Command{
		Use:   "erase",
		Short: "Erase a flash area",
		RunE: func(*cobra.Command, []string) error {
			area, err := parseArea(eraseArea)
			if err != nil {
				return err
			}
			w, closeFn, err := newWorkflow(cfg)
			if err != nil {
				return err
			}
			defer closeFn()
			_, err = w.Erase(cfg.UART, area)
			return err
		},
	}
	eraseCmd.Flags().StringVar(&eraseArea, "flash-area", "code", "flash area to erase: code or data")
	root.AddCommand(eraseCmd)

	var flashArea string
	flashCmd := &cobra.Command{
		Use:   "flash <file>",
		Short: "Erase and write an image to a flash area",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			area, err := parseArea(flashArea)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			w, closeFn, err := newWorkflow(cfg)
			if err != nil {
				return err
			}
			defer closeFn()
			_, err = w.Flash(cfg.UART, area, data)
			return err
		},
	}
	flashCmd.Flags().StringVar(&flashArea, "flash-area", "code", "flash area to write: code or data")
	root.AddCommand(flashCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
