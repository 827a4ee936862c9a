package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	wasmir "github.com/wippyai/wasm-ir"
)

func stripCommand() *cobra.Command {
	var (
		output  string
		names   bool
		customs bool
	)

	cmd := &cobra.Command{
		Use:   "strip <module.wasm>",
		Short: "Remove debug names and custom sections",
		Long: `strip re-encodes the module without its name section, custom sections,
or both. With no selection flags everything non-semantic is dropped.
The input file is rewritten in place unless -o names another path.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// Selecting neither section class means both go.
			if !names && !customs {
				names, customs = true, true
			}
			if names {
				cfg.EmitNameSection = false
			}
			if customs {
				cfg.PreserveCustomSections = false
			}
			cfg.EmitProducersSection = false

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			out, err := wasmir.RoundTrip(data, cfg)
			if err != nil {
				return err
			}

			dest := output
			if dest == "" {
				dest = args[0]
			}
			if err := os.WriteFile(dest, out, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d bytes -> %d bytes\n",
				dest, len(data), len(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default: rewrite input)")
	cmd.Flags().BoolVar(&names, "names", false, "drop only the name section")
	cmd.Flags().BoolVar(&customs, "customs", false, "drop only the custom sections")
	return cmd
}
