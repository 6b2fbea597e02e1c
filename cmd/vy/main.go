// Command vy is Vyse's CLI entry point: no arguments starts the
// interactive REPL, one argument runs a source file, and anything else
// prints usage and exits nonzero (spec section 6).
package main

import (
	"fmt"
	"os"

	"github.com/kristofer/vyse/internal/replio"
	"github.com/kristofer/vyse/internal/stdlib"
	"github.com/kristofer/vyse/pkg/vm"
)

// Exit codes per spec section 6: 0 success, 1 runtime error, 2 compile
// error / usage error.
const (
	exitOK           = 0
	exitRuntimeError = 1
	exitCompileError = 2
)

func main() {
	switch len(os.Args) {
	case 1:
		runREPL()
	case 2:
		os.Exit(runFile(os.Args[1]))
	default:
		printUsage()
		os.Exit(exitCompileError)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: vy [script.vy]")
}

// runFile compiles and executes one source file, returning the process
// exit code spec section 6 specifies.
func runFile(path string) int {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vy: %v\n", err)
		return exitRuntimeError
	}

	v := vm.New()
	stdlib.Load(v)

	cb, err := v.Compile(string(src))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCompileError
	}
	if _, err := v.RunCodeblock(cb); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitRuntimeError
	}
	return exitOK
}

// runREPL drives an interactive read-eval-print loop over a single
// persistent VM, so declarations and closures from one line remain
// visible to the next, the way the teacher's own REPL keeps one
// long-lived compiler/VM pair across inputs.
func runREPL() {
	v := vm.New()
	stdlib.Load(v)

	session := replio.New()
	defer session.Close()

	fmt.Println("vy — the Vyse language REPL")
	fmt.Println("Ctrl-D to exit.")

	for {
		line, err := session.ReadLine("vy> ")
		if err != nil {
			fmt.Println()
			return
		}
		if line == "" {
			continue
		}

		result, err := v.Run(line)
		if err != nil {
			session.PrintError(err)
			continue
		}
		session.PrintResult(stdlib.Display(result))
	}
}
