package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	wasmir "github.com/wippyai/wasm-ir"
)

func roundtripCommand() *cobra.Command {
	var (
		output        string
		parallel      bool
		skipVal       bool
		emitProducers bool
	)

	cmd := &cobra.Command{
		Use:   "roundtrip <module.wasm>",
		Short: "Decode a module and re-encode it in canonical form",
		Long: `roundtrip decodes the module, validates it unless told otherwise, and
re-encodes it with minimal varints, dense indices and dead entities
removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("parallel") {
				cfg.ParallelEncoding = parallel
			}
			if cmd.Flags().Changed("skip-validation") {
				cfg.SkipValidation = skipVal
			}
			if cmd.Flags().Changed("emit-producers") {
				cfg.EmitProducersSection = emitProducers
			}

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
				dest = strings.TrimSuffix(args[0], ".wasm") + ".out.wasm"
			}
			if err := os.WriteFile(dest, out, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d bytes in, %d bytes out -> %s\n",
				args[0], len(data), len(out), dest)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default <input>.out.wasm)")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "encode function bodies in parallel")
	cmd.Flags().BoolVar(&skipVal, "skip-validation", false, "trust the input, skip semantic checks")
	cmd.Flags().BoolVar(&emitProducers, "emit-producers", true, "stamp the producers section")
	return cmd
}
