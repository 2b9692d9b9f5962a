// Command pb-dump reads a binary safety parameter block and prints it in
// the same YAML shape pb-create consumes.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/chargebyte/ra-utils/paramblock"
)

func dump(pb paramblock.ParamBlock) {
	fmt.Printf("version: %d\n\n", pb.Version)
	fmt.Println("pt1000s:")
	for i, t := range pb.Temperatures {
		fmt.Printf("  - abort-temperature: \"%s\"\n", paramblock.FormatTemperature(t))
		fmt.Printf("    resistance-offset: \"%s\"\n", paramblock.FormatResistanceOffset(pb.TempResistanceOffsets[i]))
	}
	fmt.Println()
	fmt.Println("contactors:")
	for i, ct := range pb.ContactorTypes {
		fmt.Printf("  - type: %s\n", paramblock.FormatContactorType(ct))
		fmt.Printf("    close-time: \"%s\"\n", paramblock.FormatContactorTime(pb.ContactorCloseTimes[i]))
		fmt.Printf("    open-time: \"%s\"\n", paramblock.FormatContactorTime(pb.ContactorOpenTimes[i]))
	}
	fmt.Println()
	fmt.Println("estops:")
	for _, et := range pb.EstopTypes {
		fmt.Printf("  - %s\n", paramblock.FormatEstopType(et))
	}
}

func main() {
	root := &cobra.Command{
		Use:   "pb-dump [file]",
		Short: "Print a binary safety parameter block in human-readable form",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var in io.Reader = os.Stdin
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			pb, err := paramblock.Read(in)
			if err != nil {
				return err
			}
			dump(pb)
			return nil
		},
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
