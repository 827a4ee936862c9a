package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	wasmir "github.com/wippyai/wasm-ir"
)

var errModulesDiffer = errors.New("modules differ")

func diffCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <a.wasm> <b.wasm>",
		Short: "Compare the structure of two modules",
		Long: `diff decodes both modules and compares their text listings, so two
files that differ only in encoding details (varint padding, index
numbering, section layout) report as identical.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var texts [2]string
			for i, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				m, err := wasmir.Parse(data, cfg)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				texts[i] = dumpModule(m)
			}

			if texts[0] == texts[1] {
				fmt.Fprintln(cmd.OutOrStdout(), "modules are structurally identical")
				return nil
			}

			differ := diffmatchpatch.New()
			diffs := differ.DiffMain(texts[0], texts[1], false)
			fmt.Fprint(cmd.OutOrStdout(), renderDiff(differ.DiffCleanupSemantic(diffs)))
			return errModulesDiffer
		},
	}
	return cmd
}

// renderDiff prints inserted and deleted lines with +/- markers and
// collapses each unchanged run down to its first line.
func renderDiff(diffs []diffmatchpatch.Diff) string {
	var b strings.Builder
	lineNumber := 0
	for _, d := range diffs {
		lines := strings.Split(d.Text, "\n")
		if lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}

		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		default:
			if len(lines) == 0 {
				continue
			}
			lineNumber++
			b.WriteString(strconv.Itoa(lineNumber) + "\t " + lines[0] + "\n")
			if len(lines) > 1 {
				b.WriteString("\t ...\n")
			}
			lineNumber += len(lines) - 1
			continue
		}
		for _, line := range lines {
			lineNumber++
			b.WriteString(strconv.Itoa(lineNumber) + "\t" + prefix + line + "\n")
		}
	}
	return b.String()
}
