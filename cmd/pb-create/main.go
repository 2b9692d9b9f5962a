// Command pb-create builds a binary safety parameter block from a YAML
// description.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/chargebyte/ra-utils/paramblock"
)

func main() {
	var input, output string
	root := &cobra.Command{
		Use:   "pb-create [-i in.yaml] [-o out.bin]",
		Short: "Build a binary safety parameter block from a YAML description",
		RunE: func(*cobra.Command, []string) error {
			var in io.Reader = os.Stdin
			if input != "" {
				f, err := os.Open(input)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			pb, warnings, err := paramblock.ReadYAML(in)
			if err != nil {
				return err
			}
			for _, w := range warnings {
				fmt.Fprintln(os.Stderr, "warning:", w)
			}

			var out io.Writer = os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			return paramblock.Write(out, pb)
		},
	}
	root.Flags().StringVarP(&input, "in", "i", "", "path to the YAML configuration (default stdin)")
	root.Flags().StringVarP(&output, "out", "o", "", "path to write the binary parameter block (default stdout)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
