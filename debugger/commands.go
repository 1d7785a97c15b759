package debugger

import (
	"errors"

	"github.com/rvasm/riscv-emulator/parser"
	"github.com/rvasm/riscv-emulator/vm"
)

// contextRadius is how many original source lines are shown on each
// side of the current one.
const contextRadius = 3

// showRegisters dumps every named register.
func (d *Debugger) showRegisters() {
	d.Printf("SHOWING REGISTERS\n")
	st := d.Interp.State()
	for r := vm.Zero; r < vm.NumRegisters; r++ {
		d.Printf("%s: 0x%016X\n", r, uint64(st.Get(r)))
	}
}

// showRegister dumps one register by name.
func (d *Debugger) showRegister(name string) int {
	r, err := vm.ParseRegister(name)
	if err != nil {
		d.Printf("UNKNOWN REGISTER: %s\n", name)
		return CodeUnknownCommand
	}
	d.Printf("[%s]: 0x%016X\n", name, uint64(d.Interp.State().Get(r)))
	return CodeOK
}

// showMemoryArgs parses the FROM/TO word indices and dumps the range.
// An empty TO token selects the single-word form.
func (d *Debugger) showMemoryArgs(fromTok, toTok string) int {
	from, err := parser.ParseImmediate(fromTok)
	if err != nil {
		d.Printf("%v\n", err)
		return CodeUnknownCommand
	}
	to := from + 1
	if toTok != "" {
		to, err = parser.ParseImmediate(toTok)
		if err != nil {
			d.Printf("%v\n", err)
			return CodeUnknownCommand
		}
	}
	d.showMemory(from, to)
	return CodeOK
}

// showMemory dumps 64-bit little-endian words at byte addresses
// from*8 .. to*8-1.
func (d *Debugger) showMemory(from, to int64) {
	d.Printf("SHOWING MEMORY\n")
	st := d.Interp.State()
	for i := from; i < to; i++ {
		word, err := st.Load(i*8, 8)
		if err != nil {
			d.Printf("[%d]: %v\n", i*8, err)
			return
		}
		d.Printf("[%d]: 0x%016X\n", i*8, uint64(word))
	}
}

// ShowContext emits the original source lines in a window around the
// line corresponding to the current pc, marking the current line.
func (d *Debugger) ShowContext() {
	idx := d.Interp.PCIndex()
	current := d.SrcMap.OrigLine(idx)
	if current == parser.NoEmit {
		current = len(d.Source)
	}

	lo := max(0, current-contextRadius)
	hi := min(len(d.Source)-1, current+contextRadius)

	d.Printf("\n")
	for i := lo; i <= hi; i++ {
		marker := "     "
		if i == current {
			marker = " --> "
		}
		d.Printf("%s%-3d|%s\n", marker, i, d.Source[i])
	}
}

// breakpointByLabel arms or disarms the breakpoint at a label.
func (d *Debugger) breakpointByLabel(label string, set bool) int {
	idx, ok := d.Interp.State().Labels[label]
	if !ok {
		d.Printf("UNKNOWN LABEL: %s\n", label)
		return CodeUnknownLabel
	}
	if set {
		d.Interp.SetBreakpoint(idx)
	} else {
		d.Interp.ClearBreakpoint(idx)
	}
	return CodeOK
}

// breakpointByLine arms or disarms a breakpoint by original source
// line, walking backwards to the nearest line that emitted an
// instruction. Macro-body lines never emit themselves; a line is rejected
// only when no earlier line emitted an instruction.
func (d *Debugger) breakpointByLine(n int, set bool) int {
	if n >= len(d.Source) {
		d.Printf("NUMBER IS TOO BIG: %d\n", n)
		return CodeLineOutOfRange
	}
	for n >= 0 && d.SrcMap.EmittedLine(n) == parser.NoEmit {
		n--
	}
	if n < 0 {
		d.Printf("INVALID LINE (MAYBE MACROS DONT USE THEM!!!)\n")
		return CodeLineInsideMacro
	}
	idx := d.SrcMap.EmittedLine(n)
	if set {
		d.Interp.SetBreakpoint(idx)
	} else {
		d.Interp.ClearBreakpoint(idx)
	}
	return CodeOK
}

// ReportStop renders a stop event for the textual frontends.
func (d *Debugger) ReportStop(stop vm.StopReason, err error) {
	switch {
	case err != nil && errors.Is(err, vm.ErrMemoryFault):
		d.Printf("MEMORY FAULT: %v\n", err)
	case err != nil:
		d.Printf("RUNTIME ERROR: %v\n", err)
	case stop == vm.StopFinished:
		d.Printf("Program finished.\n")
	case stop == vm.StopExited:
		d.Printf("Program exited with code %d.\n", d.Interp.ExitCode())
	}
}

// showHelp prints the command reference.
func (d *Debugger) showHelp() {
	d.Printf("Oops look like u don't know what happening let me explain.\n")
	d.Printf("Available commands:\n")
	d.Printf("- continue (c): Continue execution until the next breakpoint or the end of the program.\n")
	d.Printf("- exit (q): Exit the debugger.\n")
	d.Printf("- show memory <from> <to>: Show the memory contents from word <from> to <to>.\n")
	d.Printf("- show registers (sr): Show the contents of all registers.\n")
	d.Printf("- show register <name>: Show the contents of the specified register.\n")
	d.Printf("- show context: Show the source lines around the current instruction.\n")
	d.Printf("- step in (s): Execute the next instruction and step into any function calls.\n")
	d.Printf("- step over (n): Execute the next instruction and skip over any function calls.\n")
	d.Printf("- step out (o): Execute until the current function returns.\n")
	d.Printf("- breakpoint set --name <label> | --line <n>: Arm a breakpoint.\n")
	d.Printf("- breakpoint delete --name <label> | --line <n>: Disarm a breakpoint.\n")
	d.Printf("- help: Show this help message.\n")
}
