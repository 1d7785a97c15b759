package vm

import (
	"errors"
	"fmt"
)

// StopReason classifies why Run returned control to the caller.
type StopReason int

const (
	// StopFinished means execution ran past the last instruction.
	StopFinished StopReason = iota
	// StopBreak means a breakpoint, an ebreak or a pending step request
	// fired. Only possible in debug mode.
	StopBreak
	// StopExited means the program or the frontend requested exit.
	StopExited
	// StopError means execution aborted with a runtime error.
	StopError
)

func (r StopReason) String() string {
	switch r {
	case StopFinished:
		return "finished"
	case StopBreak:
		return "breakpoint"
	case StopExited:
		return "exited"
	case StopError:
		return "error"
	}
	return fmt.Sprintf("StopReason(%d)", int(r))
}

// dataFiller is written to memory for instruction slots that hold no
// data literal, keeping the code region recognizable in hex dumps. The
// bit pattern is 0xDEADDEADDEADDEAD.
const dataFiller int64 = -0x2152215221522153

// Interpreter drives an instruction vector against a machine state and
// cooperates with a debugger frontend through breakpoints and stepping
// requests. It is single-threaded; Run returns whenever a stop
// condition fires and resumes on the next call.
type Interpreter struct {
	instructions []Instruction
	state        *State
	ecalls       EcallTable

	debug       bool
	exit        bool
	exitCode    int
	breakOnNext bool

	// Parallel bitsets indexed by emitted line. A non-manual breakpoint
	// clears itself when it fires.
	breakpoints []bool
	manual      []bool

	// Runaway-loop guard; 0 disables it.
	maxSteps uint64
	steps    uint64
}

// NewInterpreter creates an interpreter session and lays out the program
// image: starting at the initial stack pointer (address 0), every
// instruction slot is serialized little-endian, Data literals verbatim
// and other instructions as dataFiller, advancing sp by one instruction
// slot each. The first non-Data instruction fixes pc at the code/data
// boundary; sp ends just past the program image.
func NewInterpreter(instructions []Instruction, labels map[string]int, debug bool) *Interpreter {
	it := &Interpreter{
		instructions: instructions,
		state:        NewState(labels),
		ecalls:       make(EcallTable),
		debug:        debug,
		breakpoints:  make([]bool, len(instructions)),
		manual:       make([]bool, len(instructions)),
	}

	codeStarted := false
	for _, in := range instructions {
		word := dataFiller
		if in.Op == OpData {
			word = in.Imm
		} else if !codeStarted {
			it.state.Set(PC, it.state.Get(SP))
			codeStarted = true
		}
		sp := it.state.Get(SP)
		// The memory array is sized well past any program length, but a
		// huge source file could still run the layout off the end.
		if err := it.state.Store(sp, word, InstructionSize); err != nil {
			break
		}
		it.state.Set(SP, sp+InstructionSize)
	}

	return it
}

// State exposes the machine state for inspection and ecall handlers.
func (it *Interpreter) State() *State {
	return it.state
}

// Instructions returns the immutable instruction vector.
func (it *Interpreter) Instructions() []Instruction {
	return it.instructions
}

// RegisterEcall installs a handler for one environment-call number.
func (it *Interpreter) RegisterEcall(num int64, handler func(*State) error) {
	it.ecalls[num] = handler
}

// SetMaxSteps bounds the number of retired instructions per session.
func (it *Interpreter) SetMaxSteps(n uint64) {
	it.maxSteps = n
}

// HasLines reports whether pc still points inside the instruction
// vector and no exit has been requested.
func (it *Interpreter) HasLines() bool {
	return it.state.Get(PC) < int64(len(it.instructions))*InstructionSize && !it.exit
}

// Exited reports whether the session was terminated.
func (it *Interpreter) Exited() bool {
	return it.exit
}

// ExitCode returns the code passed to the exit ecall, or 0.
func (it *Interpreter) ExitCode() int {
	return it.exitCode
}

// RequestExit makes the execution loop return promptly.
func (it *Interpreter) RequestExit() {
	it.exit = true
}

// PCIndex returns the emitted-line index the program counter points at.
func (it *Interpreter) PCIndex() int {
	return int(it.state.Get(PC) / InstructionSize)
}

// Run executes instructions until a stop condition fires: a breakpoint
// or step request (debug mode), the end of the instruction vector, a
// requested exit, or a runtime error. The first fetch of each call is
// exempt from the stop check so that resuming does not immediately
// re-fire at the current line.
func (it *Interpreter) Run() (StopReason, error) {
	if it.exit {
		return StopExited, nil
	}

	first := true
	for it.HasLines() {
		pc := it.state.Get(PC)
		if pc < 0 || pc%InstructionSize != 0 {
			return StopError, fmt.Errorf("%w: %d", ErrInvalidPC, pc)
		}
		idx := int(pc / InstructionSize)

		if !first && it.debug &&
			(it.instructions[idx].Op == OpEbreak || it.breakpoints[idx] || it.breakOnNext) {
			it.breakOnNext = false
			if !it.manual[idx] {
				it.breakpoints[idx] = false
			}
			return StopBreak, nil
		}
		first = false

		if it.maxSteps > 0 && it.steps >= it.maxSteps {
			return StopError, fmt.Errorf("%w: step limit of %d exceeded", ErrRuntime, it.maxSteps)
		}

		if err := it.instructions[idx].Exec(it.state, it.ecalls); err != nil {
			var exitErr *ExitError
			if errors.As(err, &exitErr) {
				it.exit = true
				it.exitCode = exitErr.Code
				return StopExited, nil
			}
			return StopError, err
		}
		it.state.Set(PC, it.state.Get(PC)+InstructionSize)

		it.steps++

		if it.exit {
			return StopExited, nil
		}
	}

	if it.exit {
		return StopExited, nil
	}
	return StopFinished, nil
}

// StepIn arms a stop before the next fetched instruction.
func (it *Interpreter) StepIn() {
	it.breakOnNext = true
}

// StepOver behaves like StepIn unless the current instruction is a call
// or jal, in which case a self-clearing breakpoint is armed at the
// following line so the callee runs without stopping.
func (it *Interpreter) StepOver() {
	idx := it.PCIndex()
	if idx >= 0 && idx < len(it.instructions) {
		op := it.instructions[idx].Op
		if op == OpCall || op == OpJal {
			if idx+1 < len(it.breakpoints) {
				it.breakpoints[idx+1] = true
			}
			return
		}
	}
	it.breakOnNext = true
}

// StepOut arms a self-clearing breakpoint at the line following the
// return address.
func (it *Interpreter) StepOut() {
	idx := int(it.state.Get(RA)/InstructionSize) + 1
	if idx >= 0 && idx < len(it.breakpoints) {
		it.breakpoints[idx] = true
	}
}

// SetBreakpoint arms the breakpoint at an emitted line. Breakpoints set
// through the debugger surface are manual and survive firing.
func (it *Interpreter) SetBreakpoint(idx int) {
	if idx >= 0 && idx < len(it.breakpoints) {
		it.breakpoints[idx] = true
		it.manual[idx] = true
	}
}

// ClearBreakpoint disarms the breakpoint at an emitted line.
func (it *Interpreter) ClearBreakpoint(idx int) {
	if idx >= 0 && idx < len(it.breakpoints) {
		it.breakpoints[idx] = false
		it.manual[idx] = false
	}
}

// BreakpointSet reports whether a manual breakpoint is armed at an
// emitted line.
func (it *Interpreter) BreakpointSet(idx int) bool {
	return idx >= 0 && idx < len(it.breakpoints) && it.breakpoints[idx] && it.manual[idx]
}

// ManualBreakpoints returns the emitted lines with armed manual
// breakpoints, in line order.
func (it *Interpreter) ManualBreakpoints() []int {
	var out []int
	for idx := range it.breakpoints {
		if it.breakpoints[idx] && it.manual[idx] {
			out = append(out, idx)
		}
	}
	return out
}

// ClearAllBreakpoints disarms every breakpoint.
func (it *Interpreter) ClearAllBreakpoints() {
	for idx := range it.breakpoints {
		it.breakpoints[idx] = false
		it.manual[idx] = false
	}
}
