package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"golox/vm"
)

const VERSION = "0.1.0"
const PROMPT = "> "

// Exit codes follow the BSD sysexits.h convention spec.md §6 names by
// number; the original source (src/main.c) uses the bare literals, we
// name them for readability.
const (
	exitUsage    = 64 // EX_USAGE: wrong number of command-line arguments
	exitDataErr  = 65 // EX_DATAERR: compile error
	exitSoftware = 70 // EX_SOFTWARE: runtime error
	exitIOErr    = 74 // EX_IOERR: couldn't open the script file
)

var (
	trace       = flag.Bool("trace", false, "print the stack and disassemble each instruction before executing it")
	showVersion = flag.Bool("version", false, "show version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("golox v%s\n", VERSION)
		return
	}

	args := flag.Args()
	switch len(args) {
	case 0:
		repl()
	case 1:
		runFile(args[0])
	default:
		fmt.Fprintln(os.Stderr, "Usage: golox [-trace] [path]")
		os.Exit(exitUsage)
	}
}

// repl reads one line at a time from stdin and interprets each line
// independently against a single persistent VM, so a variable defined
// on one line is visible on the next. A statement split across lines
// is a parse error on the incomplete line -- there is no cross-line
// continuation.
func repl() {
	machine := vm.NewVM()
	machine.Trace = *trace

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(PROMPT)
		if !scanner.Scan() {
			fmt.Println()
			return
		}

		line := scanner.Text()
		if line == "" {
			continue
		}

		Interpret(line, machine)
	}
}

func runFile(path string) {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not open file %q.\n", path)
		os.Exit(exitIOErr)
	}

	machine := vm.NewVM()
	machine.Trace = *trace

	result, _ := Interpret(string(source), machine)
	switch result {
	case vm.InterpretCompileError:
		os.Exit(exitDataErr)
	case vm.InterpretRuntimeError:
		os.Exit(exitSoftware)
	}
}
