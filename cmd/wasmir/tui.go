package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	wasmir "github.com/wippyai/wasm-ir"
	"github.com/wippyai/wasm-ir/ir"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	importStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type inspectorModel struct {
	err      error
	filename string
	cfg      ir.Config
	mod      *ir.Module
	funcs    []funcEntry
	selected int
	state    inspectorState
	vp       viewport.Model
	ready    bool
}

type funcEntry struct {
	id       ir.FunctionID
	name     string
	sig      string
	imported bool
}

type inspectorState int

const (
	stateList inspectorState = iota
	stateBody
)

type moduleLoadedMsg struct {
	err   error
	mod   *ir.Module
	funcs []funcEntry
}

func newInspectorModel(filename string, cfg ir.Config) *inspectorModel {
	return &inspectorModel{filename: filename, cfg: cfg, state: stateList}
}

func (m *inspectorModel) Init() tea.Cmd {
	return m.loadModule
}

func (m *inspectorModel) loadModule() tea.Msg {
	data, err := os.ReadFile(m.filename)
	if err != nil {
		return moduleLoadedMsg{err: err}
	}
	mod, err := wasmir.Parse(data, m.cfg)
	if err != nil {
		return moduleLoadedMsg{err: err}
	}

	var funcs []funcEntry
	mod.Funcs.All(func(id ir.FunctionID, fn *ir.Function) bool {
		name := fmt.Sprintf("func[%d]", id)
		if fn.Name != "" {
			name += " $" + fn.Name
		}
		sig := ""
		if ty, err := mod.Types.Get(fn.Type); err == nil {
			sig = typeSignature(ty)
		}
		funcs = append(funcs, funcEntry{
			id:       id,
			name:     name,
			sig:      sig,
			imported: fn.Imported(),
		})
		return true
	})
	return moduleLoadedMsg{mod: mod, funcs: funcs}
}

func (m *inspectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// Three lines of chrome: the title bar, one separator and the
		// help footer.
		if !m.ready {
			m.vp = viewport.New(msg.Width, msg.Height-3)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = msg.Height - 3
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.state == stateList && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateList && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "enter":
			if m.state == stateList && len(m.funcs) > 0 && m.ready {
				entry := m.funcs[m.selected]
				fn := m.mod.Funcs.MustGet(entry.id)
				if entry.imported {
					m.vp.SetContent(importDetail(m.mod, fn))
				} else {
					m.vp.SetContent(dumpFunction(m.mod, entry.id, fn))
				}
				m.vp.GotoTop()
				m.state = stateBody
			}

		case "esc", "backspace":
			if m.state == stateBody {
				m.state = stateList
				break
			}
			return m, tea.Quit
		}

	case moduleLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.mod = msg.mod
		m.funcs = msg.funcs
	}

	if m.state == stateBody {
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd
	}
	return m, nil
}

func importDetail(m *ir.Module, fn *ir.Function) string {
	var b strings.Builder
	b.WriteString("imported function, no body\n")
	m.Imports.All(func(_ ir.ImportID, imp *ir.Import) bool {
		if imp.Kind == ir.ExternFunc {
			if f, err := m.Funcs.Get(imp.Func); err == nil && f == fn {
				fmt.Fprintf(&b, "from %q.%q\n", imp.Module, imp.Name)
				return false
			}
		}
		return true
	})
	return b.String()
}

func (m *inspectorModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.mod == nil {
		return "Loading module..."
	}

	var b strings.Builder

	switch m.state {
	case stateList:
		b.WriteString(titleStyle.Render("wasmir inspector"))
		b.WriteString(" ")
		b.WriteString(m.filename)
		b.WriteString("\n\n")

		if len(m.funcs) == 0 {
			b.WriteString("(module has no functions)\n\n")
			b.WriteString(helpStyle.Render("q quit"))
			return b.String()
		}
		for i, f := range m.funcs {
			tag := ""
			if f.imported {
				tag = " " + importStyle.Render("(import)")
			}
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> "+f.name+" "+f.sig) + tag)
			} else {
				b.WriteString("  " + funcStyle.Render(f.name) + " " + typeStyle.Render(f.sig) + tag)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter view • q quit"))

	case stateBody:
		f := m.funcs[m.selected]
		b.WriteString(titleStyle.Render("wasmir inspector"))
		b.WriteString(" ")
		b.WriteString(funcStyle.Render(f.name) + " " + typeStyle.Render(f.sig))
		b.WriteString("\n")
		b.WriteString(m.vp.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ scroll • esc back • q quit"))
	}

	return b.String()
}

func runInspector(filename string, cfg ir.Config) error {
	p := tea.NewProgram(newInspectorModel(filename, cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
