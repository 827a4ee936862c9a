package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-ir/decode"
	"github.com/wippyai/wasm-ir/encode"
	"github.com/wippyai/wasm-ir/errors"
	"github.com/wippyai/wasm-ir/validate"
)

var (
	rootCmd = &cobra.Command{
		Use:   "wasmir",
		Short: "Decode, inspect and re-encode WebAssembly modules",
		Long: `wasmir works on WebAssembly core modules through an in-memory IR:
it decodes a binary into arenas of typed entities, optionally validates
and transforms it, and re-encodes it in canonical form with unreferenced
entities removed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if !verbose {
				return nil
			}
			logger, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			decode.SetLogger(logger.Named("decode"))
			validate.SetLogger(logger.Named("validate"))
			encode.SetLogger(logger.Named("encode"))
			return nil
		},
	}

	verbose    bool
	configPath string
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "development logging to stderr")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "TOML config file")
	rootCmd.AddCommand(
		roundtripCommand(),
		inspectCommand(),
		diffCommand(),
		stripCommand(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps the failing phase to a process exit code: 2 for decode,
// 3 for validation, 4 for an internal build or encode defect, 1 for
// everything else (I/O, bad flags, differing modules).
func exitCode(err error) int {
	phase, ok := errors.PhaseOf(err)
	if !ok {
		return 1
	}
	switch phase {
	case errors.PhaseDecode:
		return 2
	case errors.PhaseValidate:
		return 3
	case errors.PhaseBuild, errors.PhaseEncode:
		return 4
	}
	return 1
}
