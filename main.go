package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rvasm/riscv-emulator/config"
	"github.com/rvasm/riscv-emulator/debugger"
	"github.com/rvasm/riscv-emulator/parser"
	"github.com/rvasm/riscv-emulator/vm"
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help information")
		debugMode   = flag.Bool("d", false, "Start in textual debugger mode")
		graphMode   = flag.Bool("g", false, "Start in graphical debugger mode (implies debug)")
		tuiMode     = flag.Bool("tui", false, "Start in TUI debugger mode (implies debug)")
		verboseMode = flag.Bool("verbose", false, "Verbose output")
		maxSteps    = flag.Uint64("max-steps", 0, "Maximum retired instructions (default from config)")
		configPath  = flag.String("config", "", "Configuration file (default: platform config dir)")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("RISC-V Emulator %s\n", Version)
		if Commit != "unknown" {
			fmt.Printf("Commit: %s\n", Commit)
		}
		os.Exit(0)
	}

	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	if flag.NArg() == 0 {
		fmt.Println("No incoming file")
		os.Exit(1)
	}

	// Load configuration
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFrom(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}

	steps := cfg.Execution.MaxSteps
	if *maxSteps != 0 {
		steps = *maxSteps
	}

	asmFile := flag.Arg(0)
	if _, err := os.Stat(asmFile); os.IsNotExist(err) {
		fmt.Printf("File not found: %s\n", asmFile)
		os.Exit(1)
	}

	// Mode flags are also accepted after the file argument.
	for _, arg := range flag.Args()[1:] {
		switch arg {
		case "-d":
			*debugMode = true
		case "-g":
			*graphMode = true
		case "-tui":
			*tuiMode = true
		default:
			fmt.Printf("Unknown argument: %s\n", arg)
			os.Exit(1)
		}
	}

	// Preprocess: macro expansion, .eqv substitution, label collection
	pre := parser.NewPreprocessor(asmFile)
	if err := pre.ProcessFile(); err != nil {
		fmt.Print(errorText(err))
		os.Exit(1)
	}

	// Parse the normalized stream into typed instructions
	instructions, err := parser.NewParser(pre).Parse()
	if err != nil {
		fmt.Print(errorText(err))
		os.Exit(1)
	}

	if *verboseMode {
		fmt.Printf("Parsed %d instructions, %d labels\n",
			len(instructions), len(pre.Labels()))
	}

	debug := *debugMode || *graphMode || *tuiMode

	interp := vm.NewInterpreter(instructions, pre.Labels(), debug)
	interp.SetMaxSteps(steps)
	registerEcalls(interp)

	if debug {
		dbg := debugger.New(interp, pre.Source(), pre.Map())

		var err error
		switch {
		case *graphMode:
			err = debugger.RunGUI(dbg)
		case *tuiMode:
			err = debugger.RunTUI(dbg)
		default:
			err = debugger.RunCLI(dbg)
		}
		if err != nil {
			fmt.Printf("%v\n", err)
			os.Exit(1)
		}
		os.Exit(interp.ExitCode())
	}

	// Direct execution mode
	if _, err := interp.Run(); err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
	os.Exit(interp.ExitCode())
}

// errorText renders a pipeline error, avoiding the duplicate prefix
// when it already is a position-tagged list.
func errorText(err error) string {
	var list *parser.ErrorList
	if errors.As(err, &list) {
		return list.Error()
	}
	msg := err.Error()
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	return msg
}

// registerEcalls installs the console environment-call ABI. The machine
// core reserves no numbers itself; everything here is frontend policy.
func registerEcalls(interp *vm.Interpreter) {
	// 1: print the integer in a0
	interp.RegisterEcall(1, func(s *vm.State) error {
		_, err := fmt.Fprintf(s.Console, "%d", s.Get(vm.A0))
		return err
	})

	// 4: print the NUL-terminated string at address a0
	interp.RegisterEcall(4, func(s *vm.State) error {
		addr := s.Get(vm.A0)
		var sb strings.Builder
		for {
			b, err := s.Load(addr, 1)
			if err != nil {
				return err
			}
			if b == 0 {
				break
			}
			sb.WriteByte(byte(b))
			addr++
		}
		_, err := fmt.Fprint(s.Console, sb.String())
		return err
	})

	// 5: read an integer into a0
	interp.RegisterEcall(5, func(s *vm.State) error {
		line, err := s.Input.ReadString('\n')
		if err != nil {
			return fmt.Errorf("%w: reading integer: %v", vm.ErrRuntime, err)
		}
		v, err := parser.ParseImmediate(strings.TrimSpace(line))
		if err != nil {
			return fmt.Errorf("%w: %v", vm.ErrRuntime, err)
		}
		s.Set(vm.A0, v)
		return nil
	})

	// 10: exit with code 0
	interp.RegisterEcall(10, func(s *vm.State) error {
		return &vm.ExitError{Code: 0}
	})

	// 93: exit with the code in a0
	interp.RegisterEcall(93, func(s *vm.State) error {
		return &vm.ExitError{Code: int(s.Get(vm.A0))}
	})
}

func printHelp() {
	fmt.Printf(`RISC-V Emulator %s

Usage: riscv-emulator [options] <assembly-file>

Options:
  -help          Show this help message
  -version       Show version information
  -d             Start in textual debugger mode
  -g             Start in graphical debugger mode
  -tui           Start in TUI debugger mode
  -max-steps N   Maximum retired instructions (default: 1000000)
  -config FILE   Configuration file path
  -verbose       Enable verbose output

Examples:
  # Run a program directly
  riscv-emulator examples/sum.s

  # Run with the textual debugger
  riscv-emulator -d examples/fib.s

  # Run with the graphical debugger
  riscv-emulator -g examples/fib.s

Debugger commands (when in -d mode):
  continue, c            Continue execution
  step in, s             Execute single instruction
  step over, n           Step over call/jal
  step out, o            Run until return
  breakpoint set --name L | --line N
  breakpoint delete --name L | --line N
  show registers | show register NAME | show memory FROM TO
  help                   Show debugger help
`, Version)
}
