package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	wasmir "github.com/wippyai/wasm-ir"
	"github.com/wippyai/wasm-ir/ir"
)

func inspectCommand() *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "inspect <module.wasm>",
		Short: "Summarize a module's entities, imports and exports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if interactive {
				if !term.IsTerminal(int(os.Stdout.Fd())) {
					return fmt.Errorf("interactive mode needs a terminal")
				}
				return runInspector(args[0], cfg)
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			m, err := wasmir.Parse(data, cfg)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), args[0], len(data), m)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "open the interactive inspector")
	return cmd
}

func printSummary(w io.Writer, path string, size int, m *ir.Module) {
	fmt.Fprintf(w, "Module: %s (%d bytes)\n", path, size)
	if m.Name != "" {
		fmt.Fprintf(w, "Name: %s\n", m.Name)
	}
	fmt.Fprintln(w)

	counts := newTable(w, []string{"Entity", "Count"})
	counts.AppendBulk([][]string{
		{"types", strconv.Itoa(m.Types.Len())},
		{"functions", fmt.Sprintf("%d (%d imported)", m.Funcs.Len(), m.NumImportedFuncs())},
		{"tables", strconv.Itoa(m.Tables.Len())},
		{"memories", strconv.Itoa(m.Memories.Len())},
		{"globals", strconv.Itoa(m.Globals.Len())},
		{"exports", strconv.Itoa(m.Exports.Len())},
		{"element segments", strconv.Itoa(m.Elements.Len())},
		{"data segments", strconv.Itoa(m.Data.Len())},
		{"custom sections", strconv.Itoa(len(m.Customs))},
	})
	counts.Render()

	if m.Imports.Len() > 0 {
		fmt.Fprintln(w)
		imports := newTable(w, []string{"Import", "Kind", "Type"})
		m.Imports.All(func(_ ir.ImportID, imp *ir.Import) bool {
			imports.Append([]string{
				imp.Module + "." + imp.Name,
				imp.Kind.String(),
				importTypeText(m, imp),
			})
			return true
		})
		imports.Render()
	}

	if m.Exports.Len() > 0 {
		fmt.Fprintln(w)
		exports := newTable(w, []string{"Export", "Kind", "Type"})
		m.Exports.All(func(_ ir.ExportID, e *ir.Export) bool {
			exports.Append([]string{e.Name, e.Kind.String(), exportTypeText(m, e)})
			return true
		})
		exports.Render()
	}
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetAutoWrapText(false)
	return table
}

func importTypeText(m *ir.Module, imp *ir.Import) string {
	switch imp.Kind {
	case ir.ExternFunc:
		if fn, err := m.Funcs.Get(imp.Func); err == nil {
			if ty, err := m.Types.Get(fn.Type); err == nil {
				return typeSignature(ty)
			}
		}
	case ir.ExternTable:
		if t, err := m.Tables.Get(imp.Table); err == nil {
			return t.ElemType.String() + " " + limitsText(t.Limits)
		}
	case ir.ExternMemory:
		if mem, err := m.Memories.Get(imp.Memory); err == nil {
			return limitsText(mem.Limits)
		}
	case ir.ExternGlobal:
		if g, err := m.Globals.Get(imp.Global); err == nil {
			return globalText(g)
		}
	}
	return "?"
}

func exportTypeText(m *ir.Module, e *ir.Export) string {
	switch e.Kind {
	case ir.ExternFunc:
		if fn, err := m.Funcs.Get(e.Func); err == nil {
			if ty, err := m.Types.Get(fn.Type); err == nil {
				return typeSignature(ty)
			}
		}
	case ir.ExternTable:
		if t, err := m.Tables.Get(e.Table); err == nil {
			return t.ElemType.String() + " " + limitsText(t.Limits)
		}
	case ir.ExternMemory:
		if mem, err := m.Memories.Get(e.Memory); err == nil {
			return limitsText(mem.Limits)
		}
	case ir.ExternGlobal:
		if g, err := m.Globals.Get(e.Global); err == nil {
			return globalText(g)
		}
	}
	return "?"
}
