package compiler

import "fmt"

// CompileError is one diagnostic produced while compiling a single source
// unit. Unlike a runtime error it always carries a source line and, when
// available, the lexeme the parser was looking at.
type CompileError struct {
	Line    int
	Near    string
	Message string
}

func (e *CompileError) Error() string {
	if e.Near == "" {
		return fmt.Sprintf("[line %d] %s", e.Line, e.Message)
	}
	return fmt.Sprintf("[line %d] near '%s': %s", e.Line, e.Near, e.Message)
}

// CompileErrors collects every diagnostic from one compilation, in source
// order, so the host can report them all instead of stopping at the first
// one (panic-mode recovery keeps parsing after each error).
type CompileErrors []*CompileError

func (errs CompileErrors) Error() string {
	if len(errs) == 0 {
		return "no errors"
	}
	if len(errs) == 1 {
		return errs[0].Error()
	}
	msg := fmt.Sprintf("%d compile errors:", len(errs))
	for _, e := range errs {
		msg += "\n  " + e.Error()
	}
	return msg
}
