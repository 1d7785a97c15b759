package debugger

import (
	"fmt"
	"strings"

	"github.com/rvasm/riscv-emulator/parser"
	"github.com/rvasm/riscv-emulator/vm"
)

// Command exit codes returned to the frontend so non-interactive
// consumers can classify failures.
const (
	CodeOK              = 0
	CodeUnknownCommand  = 1
	CodeUnknownLabel    = 2
	CodeLineOutOfRange  = 3
	CodeLineInsideMacro = 4
)

// failedCommandLimit is how many consecutive failed commands trigger
// the automatic help display.
const failedCommandLimit = 3

// Debugger couples an interpreter session with the source-level view:
// the original source lines and the source map that ties emitted
// instructions back to them. All command output goes to an output
// buffer; frontends decide how to render it.
type Debugger struct {
	Interp *vm.Interpreter
	Source []string
	SrcMap *parser.SourceMap

	History *CommandHistory

	// Output collects the text produced by the last commands.
	Output strings.Builder

	resume bool
	failed int
}

// New creates a debugger over an interpreter session.
func New(interp *vm.Interpreter, source []string, srcMap *parser.SourceMap) *Debugger {
	return &Debugger{
		Interp:  interp,
		Source:  source,
		SrcMap:  srcMap,
		History: NewCommandHistory(),
	}
}

// TakeOutput returns and clears the output buffer.
func (d *Debugger) TakeOutput() string {
	out := d.Output.String()
	d.Output.Reset()
	return out
}

// TakeResume reports and clears the resume request set by execution
// commands (continue, exit and the stepping commands).
func (d *Debugger) TakeResume() bool {
	r := d.resume
	d.resume = false
	return r
}

// Printf writes formatted output to the output buffer.
func (d *Debugger) Printf(format string, args ...any) {
	fmt.Fprintf(&d.Output, format, args...)
}

// Execute processes one debugger command line and returns its exit
// code. After three consecutive failed commands the help text is
// appended automatically.
func (d *Debugger) Execute(cmdLine string) int {
	cmdLine = strings.TrimSpace(cmdLine)
	if cmdLine == "" {
		return CodeOK
	}
	d.History.Add(cmdLine)

	code := d.dispatch(cmdLine)

	if code == CodeOK {
		d.failed = 0
	} else {
		d.failed++
		if d.failed >= failedCommandLimit {
			d.showHelp()
			d.failed = 0
		}
	}
	return code
}

// dispatch routes one command line to its handler.
func (d *Debugger) dispatch(cmdLine string) int {
	fields := strings.Fields(cmdLine)

	switch fields[0] {
	case "continue", "c":
		d.resume = true
		return CodeOK

	case "exit", "q":
		d.Interp.RequestExit()
		d.resume = true
		return CodeOK

	case "s":
		d.Interp.StepIn()
		d.resume = true
		return CodeOK

	case "n":
		d.Interp.StepOver()
		d.resume = true
		return CodeOK

	case "o":
		d.Interp.StepOut()
		d.resume = true
		return CodeOK

	case "step":
		if len(fields) != 2 {
			return d.unknown(cmdLine)
		}
		switch fields[1] {
		case "in":
			d.Interp.StepIn()
		case "over":
			d.Interp.StepOver()
		case "out":
			d.Interp.StepOut()
		default:
			return d.unknown(cmdLine)
		}
		d.resume = true
		return CodeOK

	case "sr":
		if len(fields) == 1 {
			d.showRegisters()
			return CodeOK
		}
		return d.showRegister(fields[1])

	case "show":
		return d.dispatchShow(cmdLine, fields)

	case "breakpoint":
		return d.dispatchBreakpoint(cmdLine, fields)

	case "help":
		d.showHelp()
		return CodeOK

	default:
		return d.unknown(cmdLine)
	}
}

// dispatchShow handles the show command family.
func (d *Debugger) dispatchShow(cmdLine string, fields []string) int {
	if len(fields) < 2 {
		return d.unknown(cmdLine)
	}
	switch fields[1] {
	case "registers":
		d.showRegisters()
		return CodeOK

	case "register":
		if len(fields) != 3 {
			d.Printf("NOT ENOUGH ARGUMENTS\n")
			return CodeUnknownCommand
		}
		return d.showRegister(fields[2])

	case "memory":
		switch len(fields) {
		case 3:
			return d.showMemoryArgs(fields[2], "")
		case 4:
			return d.showMemoryArgs(fields[2], fields[3])
		default:
			if len(fields) < 3 {
				d.Printf("NOT ENOUGH ARGUMENTS\n")
			} else {
				d.Printf("TOO MANY ARGUMENTS\n")
			}
			return CodeUnknownCommand
		}

	case "context":
		d.ShowContext()
		return CodeOK

	default:
		return d.unknown(cmdLine)
	}
}

// dispatchBreakpoint handles breakpoint set/delete by label or line.
func (d *Debugger) dispatchBreakpoint(cmdLine string, fields []string) int {
	if len(fields) != 4 {
		return d.unknown(cmdLine)
	}

	set := false
	switch fields[1] {
	case "set":
		set = true
	case "delete":
	default:
		return d.unknown(cmdLine)
	}

	switch fields[2] {
	case "--name":
		return d.breakpointByLabel(fields[3], set)
	case "--line":
		n, err := parser.ParseImmediate(fields[3])
		if err != nil {
			d.Printf("INVALID LINE NUMBER: %s\n", fields[3])
			return CodeUnknownCommand
		}
		return d.breakpointByLine(int(n), set)
	default:
		return d.unknown(cmdLine)
	}
}

// unknown reports an unrecognized command.
func (d *Debugger) unknown(cmdLine string) int {
	d.Printf("UNKNOWN COMMAND : '%s'\n", cmdLine)
	return CodeUnknownCommand
}
