package debugger

import (
	"bufio"
	"fmt"
	"os"

	"github.com/rvasm/riscv-emulator/vm"
)

// RunCLI runs the plain textual debugger interface on stdin/stdout.
// The interpreter yields control whenever a stop condition fires; the
// REPL hands it back on continue and the stepping commands.
func RunCLI(d *Debugger) error {
	scanner := bufio.NewScanner(os.Stdin)

	for d.Interp.HasLines() {
		d.ShowContext()
		fmt.Print(d.TakeOutput())

		if !promptLoop(d, scanner) {
			return nil
		}
		if d.Interp.Exited() {
			break
		}

		stop, err := d.Interp.Run()
		if err != nil {
			// Runtime errors abort execution but the final state stays
			// inspectable until the user leaves.
			d.ReportStop(stop, err)
			fmt.Print(d.TakeOutput())
			promptLoop(d, scanner)
			return err
		}
		if stop == vm.StopFinished || stop == vm.StopExited {
			d.ReportStop(stop, nil)
			fmt.Print(d.TakeOutput())
			break
		}
	}

	if d.Interp.Exited() {
		fmt.Printf("Program exited with code %d.\n", d.Interp.ExitCode())
	}
	return nil
}

// promptLoop reads commands until one of them resumes execution.
// Returns false when stdin is exhausted.
func promptLoop(d *Debugger, scanner *bufio.Scanner) bool {
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return false
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		d.Execute(line)
		fmt.Print(d.TakeOutput())
		if d.TakeResume() {
			return true
		}
	}
}
