package debugger

import (
	"fmt"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/rvasm/riscv-emulator/parser"
	"github.com/rvasm/riscv-emulator/vm"
)

// GUI is the graphical debugger frontend. Like the REPL and the TUI it
// consumes the same debugger core.
type GUI struct {
	Debugger *Debugger
	App      fyne.App
	Window   fyne.Window

	SourceView      *widget.TextGrid
	RegisterView    *widget.TextGrid
	MemoryView      *widget.TextGrid
	StackView       *widget.TextGrid
	BreakpointsList *widget.List
	ConsoleOutput   *widget.TextGrid
	StatusLabel     *widget.Label

	Toolbar *widget.Toolbar

	breakpoints []string

	consoleBuffer strings.Builder
	consoleMutex  sync.Mutex

	finished bool
}

// guiWriter redirects program console output to the GUI.
type guiWriter struct {
	gui *GUI
}

// Write implements io.Writer.
func (w *guiWriter) Write(p []byte) (n int, err error) {
	w.gui.consoleMutex.Lock()
	defer w.gui.consoleMutex.Unlock()

	w.gui.consoleBuffer.Write(p)
	w.gui.updateConsole()
	return len(p), nil
}

// RunGUI runs the graphical debugger.
func RunGUI(d *Debugger) error {
	gui := newGUI(d)
	gui.Window.ShowAndRun()
	return nil
}

// newGUI creates a new graphical user interface.
func newGUI(d *Debugger) *GUI {
	myApp := app.New()
	myWindow := myApp.NewWindow("RISC-V Debugger")

	gui := &GUI{
		Debugger:    d,
		App:         myApp,
		Window:      myWindow,
		breakpoints: []string{},
	}

	gui.initializeViews()
	gui.setupToolbar()
	gui.buildLayout()

	// Redirect program output to the GUI console
	d.Interp.State().Console = &guiWriter{gui: gui}

	myWindow.Resize(fyne.NewSize(1200, 800))

	gui.updateViews()
	return gui
}

// initializeViews creates all the view panels.
func (g *GUI) initializeViews() {
	g.SourceView = widget.NewTextGrid()
	g.RegisterView = widget.NewTextGrid()
	g.MemoryView = widget.NewTextGrid()
	g.StackView = widget.NewTextGrid()

	g.BreakpointsList = widget.NewList(
		func() int {
			return len(g.breakpoints)
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("template")
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			obj.(*widget.Label).SetText(g.breakpoints[id])
		},
	)

	g.ConsoleOutput = widget.NewTextGrid()
	g.ConsoleOutput.SetText("")

	g.StatusLabel = widget.NewLabel("Ready")
}

// buildLayout creates the main layout.
func (g *GUI) buildLayout() {
	sourcePanel := container.NewBorder(
		widget.NewLabel("Source"),
		nil, nil, nil,
		container.NewScroll(g.SourceView),
	)

	registerPanel := container.NewBorder(
		widget.NewLabel("Registers"),
		nil, nil, nil,
		container.NewScroll(g.RegisterView),
	)

	memoryPanel := container.NewBorder(
		widget.NewLabel("Memory"),
		nil, nil, nil,
		container.NewScroll(g.MemoryView),
	)

	stackPanel := container.NewBorder(
		widget.NewLabel("Stack"),
		nil, nil, nil,
		container.NewScroll(g.StackView),
	)

	breakpointsPanel := container.NewBorder(
		widget.NewLabel("Breakpoints"),
		nil, nil, nil,
		container.NewScroll(g.BreakpointsList),
	)

	consolePanel := container.NewBorder(
		widget.NewLabel("Console"),
		nil, nil, nil,
		container.NewScroll(g.ConsoleOutput),
	)

	rightTop := container.NewVSplit(registerPanel, breakpointsPanel)
	rightTop.SetOffset(0.6)

	bottomTabs := container.NewAppTabs(
		container.NewTabItem("Memory", memoryPanel),
		container.NewTabItem("Stack", stackPanel),
		container.NewTabItem("Console", consolePanel),
	)

	rightPanel := container.NewVSplit(rightTop, bottomTabs)
	rightPanel.SetOffset(0.5)

	mainSplit := container.NewHSplit(sourcePanel, rightPanel)
	mainSplit.SetOffset(0.55)

	statusBar := container.NewBorder(nil, nil, nil, nil, g.StatusLabel)

	content := container.NewBorder(
		g.Toolbar, // top
		statusBar, // bottom
		nil,       // left
		nil,       // right
		mainSplit, // center
	)

	g.Window.SetContent(content)
}

// setupToolbar creates the debugger control toolbar.
func (g *GUI) setupToolbar() {
	g.Toolbar = widget.NewToolbar(
		widget.NewToolbarAction(theme.MediaPlayIcon(), func() {
			g.continueProgram()
		}),
		widget.NewToolbarAction(theme.MediaSkipNextIcon(), func() {
			g.stepIn()
		}),
		widget.NewToolbarAction(theme.MediaFastForwardIcon(), func() {
			g.stepOver()
		}),
		widget.NewToolbarAction(theme.MediaStopIcon(), func() {
			g.exitProgram()
		}),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ContentAddIcon(), func() {
			g.addBreakpoint()
		}),
		widget.NewToolbarAction(theme.ContentClearIcon(), func() {
			g.clearBreakpoints()
		}),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ViewRefreshIcon(), func() {
			g.updateViews()
			g.StatusLabel.SetText("Views refreshed")
		}),
	)
}

// updateViews refreshes all view panels.
func (g *GUI) updateViews() {
	g.updateSource()
	g.updateRegisters()
	g.updateMemory()
	g.updateStack()
	g.updateBreakpoints()
	g.updateConsole()
}

// updateSource renders the original source with the current line.
func (g *GUI) updateSource() {
	d := g.Debugger

	current := parser.NoEmit
	if !g.finished {
		current = d.SrcMap.OrigLine(d.Interp.PCIndex())
	}

	var sb strings.Builder
	for i, line := range d.Source {
		prefix := "  "
		if emitted := d.SrcMap.EmittedLine(i); emitted != parser.NoEmit && d.Interp.BreakpointSet(emitted) {
			prefix = "* "
		}
		if i == current {
			prefix = "> "
		}
		sb.WriteString(fmt.Sprintf("%s%3d|%s\n", prefix, i, line))
	}
	g.SourceView.SetText(sb.String())
}

// updateRegisters renders the register file.
func (g *GUI) updateRegisters() {
	st := g.Debugger.Interp.State()

	var sb strings.Builder
	for r := vm.Zero; r < vm.NumRegisters; r++ {
		v := st.Get(r)
		sb.WriteString(fmt.Sprintf("%-4s: 0x%016X  (%d)\n", r, uint64(v), v))
	}
	g.RegisterView.SetText(sb.String())
}

// updateMemory renders the first words of memory.
func (g *GUI) updateMemory() {
	st := g.Debugger.Interp.State()

	var sb strings.Builder
	for i := int64(0); i < 32; i++ {
		word, err := st.Load(i*8, 8)
		if err != nil {
			break
		}
		sb.WriteString(fmt.Sprintf("[%4d]: 0x%016X\n", i*8, uint64(word)))
	}
	g.MemoryView.SetText(sb.String())
}

// updateStack renders the words around the stack pointer.
func (g *GUI) updateStack() {
	st := g.Debugger.Interp.State()
	sp := st.Get(vm.SP)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("SP = %d\n", sp))
	for i := int64(-8); i < 8; i++ {
		addr := sp + i*8
		word, err := st.Load(addr, 8)
		if err != nil {
			continue
		}
		prefix := "  "
		if i == 0 {
			prefix = "> "
		}
		sb.WriteString(fmt.Sprintf("%s[%4d]: 0x%016X\n", prefix, addr, uint64(word)))
	}
	g.StackView.SetText(sb.String())
}

// updateBreakpoints rebuilds the breakpoints list.
func (g *GUI) updateBreakpoints() {
	d := g.Debugger
	indices := d.Interp.ManualBreakpoints()

	g.breakpoints = make([]string, 0, len(indices))
	for _, idx := range indices {
		entry := fmt.Sprintf("line %d", d.SrcMap.OrigLine(idx))
		if name := labelForIndex(d.Interp.State().Labels, idx); name != "" {
			entry += fmt.Sprintf(" [%s]", name)
		}
		g.breakpoints = append(g.breakpoints, entry)
	}

	g.BreakpointsList.Refresh()
}

// updateConsole refreshes the console output view.
func (g *GUI) updateConsole() {
	g.ConsoleOutput.SetText(g.consoleBuffer.String())
}

// resume drives the interpreter to the next stop and refreshes.
func (g *GUI) resume() {
	d := g.Debugger
	if g.finished || d.Interp.Exited() {
		g.StatusLabel.SetText("Program has finished")
		return
	}

	stop, err := d.Interp.Run()
	switch {
	case err != nil:
		g.finished = true
		g.StatusLabel.SetText(fmt.Sprintf("Error: %v", err))
	case stop == vm.StopExited:
		g.finished = true
		g.StatusLabel.SetText(fmt.Sprintf("Program exited with code %d", d.Interp.ExitCode()))
	case stop == vm.StopFinished:
		g.finished = true
		g.StatusLabel.SetText("Program finished")
	default:
		g.StatusLabel.SetText(fmt.Sprintf("Stopped at line %d", d.SrcMap.OrigLine(d.Interp.PCIndex())))
	}

	g.updateViews()
}

// continueProgram resumes until the next breakpoint.
func (g *GUI) continueProgram() {
	g.StatusLabel.SetText("Running...")
	g.resume()
}

// stepIn executes one instruction.
func (g *GUI) stepIn() {
	g.Debugger.Interp.StepIn()
	g.resume()
}

// stepOver executes one instruction, skipping over calls.
func (g *GUI) stepOver() {
	g.Debugger.Interp.StepOver()
	g.resume()
}

// exitProgram terminates the session.
func (g *GUI) exitProgram() {
	g.Debugger.Interp.RequestExit()
	g.finished = true
	g.StatusLabel.SetText("Stopped")
	g.updateViews()
}

// addBreakpoint arms a breakpoint at the current line.
func (g *GUI) addBreakpoint() {
	idx := g.Debugger.Interp.PCIndex()
	g.Debugger.Interp.SetBreakpoint(idx)
	g.updateBreakpoints()
	g.StatusLabel.SetText(fmt.Sprintf("Breakpoint added at line %d", g.Debugger.SrcMap.OrigLine(idx)))
}

// clearBreakpoints removes all breakpoints.
func (g *GUI) clearBreakpoints() {
	g.Debugger.Interp.ClearAllBreakpoints()
	g.updateBreakpoints()
	g.StatusLabel.SetText("All breakpoints cleared")
}
