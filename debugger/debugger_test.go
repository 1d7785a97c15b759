package debugger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvasm/riscv-emulator/parser"
	"github.com/rvasm/riscv-emulator/vm"
)

// newDebugger runs the pipeline over src and wraps the session in a
// debugger, the same wiring the frontends use.
func newDebugger(t *testing.T, src string) *Debugger {
	t.Helper()

	pre := parser.NewPreprocessor("test.s")
	require.NoError(t, pre.Process(src))

	instructions, err := parser.NewParser(pre).Parse()
	require.NoError(t, err)

	interp := vm.NewInterpreter(instructions, pre.Labels(), true)
	return New(interp, pre.Source(), pre.Map())
}

const countdownSrc = `li a0, 3
loop: addi a0, a0, -1
bne a0, zero, loop
end: li a1, 7
`

func TestContinueCommand(t *testing.T) {
	d := newDebugger(t, countdownSrc)

	code := d.Execute("continue")
	assert.Equal(t, CodeOK, code)
	assert.True(t, d.TakeResume())

	code = d.Execute("c")
	assert.Equal(t, CodeOK, code)
	assert.True(t, d.TakeResume())
}

func TestExitCommand(t *testing.T) {
	d := newDebugger(t, countdownSrc)

	code := d.Execute("q")
	assert.Equal(t, CodeOK, code)
	assert.True(t, d.TakeResume())
	assert.True(t, d.Interp.Exited())
}

func TestStepCommands(t *testing.T) {
	d := newDebugger(t, countdownSrc)

	for _, cmd := range []string{"step in", "s", "step over", "n", "step out", "o"} {
		code := d.Execute(cmd)
		assert.Equal(t, CodeOK, code, "command %q", cmd)
		assert.True(t, d.TakeResume(), "command %q", cmd)
	}

	code := d.Execute("step sideways")
	assert.Equal(t, CodeUnknownCommand, code)
	assert.False(t, d.TakeResume())
}

func TestShowRegisters(t *testing.T) {
	d := newDebugger(t, countdownSrc)

	code := d.Execute("show registers")
	assert.Equal(t, CodeOK, code)
	out := d.TakeOutput()
	assert.Contains(t, out, "SHOWING REGISTERS")
	assert.Contains(t, out, "a0: 0x0000000000000000")
	assert.Contains(t, out, "pc: ")

	code = d.Execute("sr")
	assert.Equal(t, CodeOK, code)
	assert.Contains(t, d.TakeOutput(), "zero: 0x0000000000000000")
}

func TestShowRegisterByName(t *testing.T) {
	d := newDebugger(t, countdownSrc)
	_, err := d.Interp.Run()
	require.NoError(t, err)

	code := d.Execute("show register a0")
	assert.Equal(t, CodeOK, code)
	assert.Contains(t, d.TakeOutput(), "[a0]: 0x0000000000000000")

	code = d.Execute("show register a1")
	assert.Equal(t, CodeOK, code)
	assert.Contains(t, d.TakeOutput(), "[a1]: 0x0000000000000007")

	code = d.Execute("show register q0")
	assert.Equal(t, CodeUnknownCommand, code)
	assert.Contains(t, d.TakeOutput(), "UNKNOWN REGISTER")
}

func TestShowMemory(t *testing.T) {
	d := newDebugger(t, `li t0, 0
li t1, 0x1122334455667788
sw t1, 0(t0)
`)
	_, err := d.Interp.Run()
	require.NoError(t, err)

	code := d.Execute("show memory 0 2")
	assert.Equal(t, CodeOK, code)
	out := d.TakeOutput()
	assert.Contains(t, out, "SHOWING MEMORY")
	assert.Contains(t, out, "[0]: 0x1122334455667788")
	assert.Contains(t, out, "[8]: ")

	// single-word form
	code = d.Execute("show memory 0")
	assert.Equal(t, CodeOK, code)
	assert.Contains(t, d.TakeOutput(), "[0]: 0x1122334455667788")

	code = d.Execute("show memory")
	assert.Equal(t, CodeUnknownCommand, code)
	assert.Contains(t, d.TakeOutput(), "NOT ENOUGH ARGUMENTS")

	code = d.Execute("show memory 0 1 2")
	assert.Equal(t, CodeUnknownCommand, code)
	assert.Contains(t, d.TakeOutput(), "TOO MANY ARGUMENTS")
}

func TestShowContext(t *testing.T) {
	d := newDebugger(t, countdownSrc)

	d.ShowContext()
	out := d.TakeOutput()
	assert.Contains(t, out, " --> 0  |li a0, 3")
	assert.Contains(t, out, "loop: addi a0, a0, -1")
}

func TestBreakpointByLabel(t *testing.T) {
	d := newDebugger(t, countdownSrc)

	code := d.Execute("breakpoint set --name end")
	assert.Equal(t, CodeOK, code)
	assert.True(t, d.Interp.BreakpointSet(3))

	stop, err := d.Interp.Run()
	require.NoError(t, err)
	assert.Equal(t, vm.StopBreak, stop)
	assert.Equal(t, 3, d.Interp.PCIndex())
	assert.Equal(t, int64(0), d.Interp.State().Get(vm.A0))

	code = d.Execute("breakpoint delete --name end")
	assert.Equal(t, CodeOK, code)
	assert.False(t, d.Interp.BreakpointSet(3))

	code = d.Execute("breakpoint set --name nowhere")
	assert.Equal(t, CodeUnknownLabel, code)
	assert.Contains(t, d.TakeOutput(), "UNKNOWN LABEL")
}

func TestBreakpointByLine(t *testing.T) {
	d := newDebugger(t, countdownSrc)

	// line 3 is "end: li a1, 7" which emits instruction 3
	code := d.Execute("breakpoint set --line 3")
	assert.Equal(t, CodeOK, code)
	assert.True(t, d.Interp.BreakpointSet(3))

	code = d.Execute("breakpoint delete --line 3")
	assert.Equal(t, CodeOK, code)
	assert.False(t, d.Interp.BreakpointSet(3))

	code = d.Execute("breakpoint set --line 99")
	assert.Equal(t, CodeLineOutOfRange, code)
	assert.Contains(t, d.TakeOutput(), "NUMBER IS TOO BIG")
}

func TestBreakpointOnMacroInvocationLine(t *testing.T) {
	d := newDebugger(t, `.macro inc2 %r
addi %r, %r, 1
addi %r, %r, 1
.end_macro
start: inc2 a0
`)

	// the invocation line maps to the first expanded instruction
	code := d.Execute("breakpoint set --line 4")
	assert.Equal(t, CodeOK, code)
	assert.True(t, d.Interp.BreakpointSet(0))

	// lines with no emitting predecessor are rejected
	d2 := newDebugger(t, `.macro inc %r
addi %r, %r, 1
.end_macro
inc a0
`)
	code = d2.Execute("breakpoint set --line 1")
	assert.Equal(t, CodeLineInsideMacro, code)
	assert.Contains(t, d2.TakeOutput(), "INVALID LINE")
}

func TestBreakpointLineWalksBackwards(t *testing.T) {
	d := newDebugger(t, `li a0, 1
# just a comment

li a1, 2
`)

	// line 2 is blank; the walk lands on line 0's instruction
	code := d.Execute("breakpoint set --line 2")
	assert.Equal(t, CodeOK, code)
	assert.True(t, d.Interp.BreakpointSet(0))
}

func TestUnknownCommandAutoHelp(t *testing.T) {
	d := newDebugger(t, countdownSrc)

	assert.Equal(t, CodeUnknownCommand, d.Execute("bogus1"))
	assert.NotContains(t, d.TakeOutput(), "Available commands")

	assert.Equal(t, CodeUnknownCommand, d.Execute("bogus2"))
	assert.NotContains(t, d.TakeOutput(), "Available commands")

	assert.Equal(t, CodeUnknownCommand, d.Execute("bogus3"))
	assert.Contains(t, d.TakeOutput(), "Available commands")
}

func TestFailedCountResetsOnSuccess(t *testing.T) {
	d := newDebugger(t, countdownSrc)

	d.Execute("bogus1")
	d.Execute("bogus2")
	d.Execute("help")
	d.TakeOutput()

	d.Execute("bogus3")
	assert.NotContains(t, d.TakeOutput(), "Available commands")
}

func TestHistoryRecordsCommands(t *testing.T) {
	d := newDebugger(t, countdownSrc)

	d.Execute("show registers")
	d.Execute("help")
	d.TakeOutput()

	got := d.History.All()
	require.Len(t, got, 2)
	assert.Equal(t, "show registers", got[0])
	assert.Equal(t, "help", got[1])
}

func TestRuntimeErrorKeepsStateInspectable(t *testing.T) {
	d := newDebugger(t, `li t0, -1
li a0, 5
lw a1, 0(t0)
`)

	stop, err := d.Interp.Run()
	assert.Equal(t, vm.StopError, stop)
	require.Error(t, err)

	d.ReportStop(stop, err)
	assert.Contains(t, d.TakeOutput(), "MEMORY FAULT")

	// final state still readable
	code := d.Execute("show register a0")
	assert.Equal(t, CodeOK, code)
	assert.Contains(t, d.TakeOutput(), "0x0000000000000005")
}

func TestHelpListsEveryCommand(t *testing.T) {
	d := newDebugger(t, countdownSrc)
	d.Execute("help")
	out := d.TakeOutput()

	for _, want := range []string{"continue", "exit", "show memory", "show registers",
		"step in", "step over", "step out", "breakpoint set", "breakpoint delete"} {
		if !strings.Contains(out, want) {
			t.Errorf("help should mention %q", want)
		}
	}
}
