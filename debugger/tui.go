package debugger

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/rvasm/riscv-emulator/parser"
	"github.com/rvasm/riscv-emulator/vm"
)

// TUI is the terminal user interface for the debugger. It is one more
// consumer of the same debugger core as the plain REPL.
type TUI struct {
	Debugger *Debugger
	App      *tview.Application
	Pages    *tview.Pages

	MainLayout *tview.Flex

	SourceView      *tview.TextView
	RegisterView    *tview.TextView
	MemoryView      *tview.TextView
	BreakpointsView *tview.TextView
	OutputView      *tview.TextView
	CommandInput    *tview.InputField

	// First word index shown in the memory pane.
	MemoryWord int64

	finished bool
}

// RunTUI runs the TUI debugger.
func RunTUI(d *Debugger) error {
	tui := NewTUI(d)
	return tui.Run()
}

// NewTUI creates a new terminal user interface.
func NewTUI(d *Debugger) *TUI {
	tui := &TUI{
		Debugger: d,
		App:      tview.NewApplication(),
	}

	tui.initializeViews()
	tui.buildLayout()
	tui.setupKeyBindings()

	return tui
}

// initializeViews creates all the view panels.
func (t *TUI) initializeViews() {
	t.SourceView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.SourceView.SetBorder(true).SetTitle(" Source ")

	t.RegisterView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	t.RegisterView.SetBorder(true).SetTitle(" Registers ")

	t.MemoryView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.MemoryView.SetBorder(true).SetTitle(" Memory ")

	t.BreakpointsView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.BreakpointsView.SetBorder(true).SetTitle(" Breakpoints ")

	t.OutputView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(true)
	t.OutputView.SetBorder(true).SetTitle(" Output ")

	t.CommandInput = tview.NewInputField().
		SetLabel("> ").
		SetFieldWidth(0)
	t.CommandInput.SetBorder(true).SetTitle(" Command ")
	t.CommandInput.SetDoneFunc(t.handleCommand)
}

// buildLayout constructs the TUI layout.
func (t *TUI) buildLayout() {
	rightPanel := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.RegisterView, 0, 3, false).
		AddItem(t.MemoryView, 0, 2, false).
		AddItem(t.BreakpointsView, 7, 0, false)

	mainContent := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(t.SourceView, 0, 2, false).
		AddItem(rightPanel, 0, 1, false)

	t.MainLayout = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(mainContent, 0, 4, false).
		AddItem(t.OutputView, 8, 0, false).
		AddItem(t.CommandInput, 3, 0, true)

	t.Pages = tview.NewPages().
		AddPage("main", t.MainLayout, true, true)
}

// setupKeyBindings sets up keyboard shortcuts.
func (t *TUI) setupKeyBindings() {
	t.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF1:
			t.executeCommand("help")
			return nil
		case tcell.KeyF5:
			t.executeCommand("continue")
			return nil
		case tcell.KeyF10:
			t.executeCommand("step over")
			return nil
		case tcell.KeyF11:
			t.executeCommand("step in")
			return nil
		case tcell.KeyCtrlC:
			t.App.Stop()
			return nil
		case tcell.KeyCtrlL:
			t.RefreshAll()
			return nil
		}
		return event
	})
}

// handleCommand processes command input.
func (t *TUI) handleCommand(key tcell.Key) {
	if key == tcell.KeyEnter {
		cmd := t.CommandInput.GetText()
		if cmd != "" {
			t.executeCommand(cmd)
			t.CommandInput.SetText("")
		}
	}
}

// executeCommand runs one debugger command and, when the command
// resumes execution, drives the interpreter until the next stop.
func (t *TUI) executeCommand(cmd string) {
	d := t.Debugger
	d.Execute(cmd)
	t.WriteOutput(d.TakeOutput())

	if d.TakeResume() {
		if d.Interp.Exited() {
			t.App.Stop()
			return
		}
		stop, err := d.Interp.Run()
		d.ReportStop(stop, err)
		t.WriteOutput(d.TakeOutput())
		if stop == vm.StopExited {
			t.App.Stop()
			return
		}
		if stop == vm.StopFinished || err != nil {
			t.finished = true
		}
	}

	t.RefreshAll()
}

// WriteOutput writes to the output view.
func (t *TUI) WriteOutput(text string) {
	if text == "" {
		return
	}
	_, _ = t.OutputView.Write([]byte(text)) // Ignore write errors in TUI
	t.OutputView.ScrollToEnd()
}

// RefreshAll refreshes all view panels.
func (t *TUI) RefreshAll() {
	t.UpdateSourceView()
	t.UpdateRegisterView()
	t.UpdateMemoryView()
	t.UpdateBreakpointsView()
}

// UpdateSourceView renders the original source with the current line
// and breakpoint markers.
func (t *TUI) UpdateSourceView() {
	d := t.Debugger
	t.SourceView.Clear()

	current := parser.NoEmit
	if !t.finished {
		current = d.SrcMap.OrigLine(d.Interp.PCIndex())
	}

	var lines []string
	for i, src := range d.Source {
		marker := "  "
		color := "white"
		if emitted := d.SrcMap.EmittedLine(i); emitted != parser.NoEmit && d.Interp.BreakpointSet(emitted) {
			marker = "* "
			color = "red"
		}
		if i == current {
			marker = "->"
			color = "yellow"
		}
		lines = append(lines, fmt.Sprintf("[%s]%s %3d|%s[white]", color, marker, i, tview.Escape(src)))
	}

	t.SourceView.SetText(strings.Join(lines, "\n"))
}

// UpdateRegisterView renders the register file.
func (t *TUI) UpdateRegisterView() {
	t.RegisterView.Clear()

	st := t.Debugger.Interp.State()
	var lines []string
	for r := vm.Zero; r < vm.NumRegisters; r++ {
		lines = append(lines, fmt.Sprintf("%-4s: 0x%016X", r, uint64(st.Get(r))))
	}

	t.RegisterView.SetText(strings.Join(lines, "\n"))
}

// UpdateMemoryView renders a word dump starting at MemoryWord.
func (t *TUI) UpdateMemoryView() {
	t.MemoryView.Clear()

	st := t.Debugger.Interp.State()
	var lines []string
	for i := t.MemoryWord; i < t.MemoryWord+16; i++ {
		word, err := st.Load(i*8, 8)
		if err != nil {
			break
		}
		lines = append(lines, fmt.Sprintf("[%4d]: 0x%016X", i*8, uint64(word)))
	}

	t.MemoryView.SetText(strings.Join(lines, "\n"))
}

// UpdateBreakpointsView lists the armed manual breakpoints.
func (t *TUI) UpdateBreakpointsView() {
	d := t.Debugger
	t.BreakpointsView.Clear()

	indices := d.Interp.ManualBreakpoints()
	if len(indices) == 0 {
		t.BreakpointsView.SetText("[yellow]No breakpoints set[white]")
		return
	}

	var lines []string
	for _, idx := range indices {
		line := fmt.Sprintf("  line %d", d.SrcMap.OrigLine(idx))
		if name := labelForIndex(d.Interp.State().Labels, idx); name != "" {
			line += fmt.Sprintf(" <%s>", name)
		}
		lines = append(lines, line)
	}
	t.BreakpointsView.SetText(strings.Join(lines, "\n"))
}

// labelForIndex finds a label pointing at an emitted line.
func labelForIndex(labels map[string]int, idx int) string {
	for name, line := range labels {
		if line == idx {
			return name
		}
	}
	return ""
}

// Run starts the TUI application.
func (t *TUI) Run() error {
	t.RefreshAll()

	t.WriteOutput("[green]RISC-V Debugger TUI[white]\n")
	t.WriteOutput("Press F1 for help, F5 to continue, F10 to step over, F11 to step in\n")
	t.WriteOutput("Type 'help' for command list\n\n")

	return t.App.SetRoot(t.Pages, true).SetFocus(t.CommandInput).Run()
}

// Stop stops the TUI application.
func (t *TUI) Stop() {
	t.App.Stop()
}
