// Package vm - error handling with stack traces.
package vm

import (
	"fmt"
	"strings"
)

// maxTraceFrames caps how many call frames a RuntimeError records, per
// spec section 7: deeply recursive failures report the innermost and
// outermost frames, not an unbounded trace.
const maxTraceFrames = 11

// StackFrame represents a single frame in the call stack at the moment a
// runtime error was raised.
type StackFrame struct {
	Name       string // closure/native name, or "script" for the top level
	Selector   string // method name for a `recv:name(...)` call, else ""
	IP         int    // instruction pointer within the frame's codeblock
	SourceLine int    // source line at IP, 0 if unknown
}

// RuntimeError is returned by Run/Call whenever script execution fails:
// an operator type mismatch, an out-of-range index, a call to a
// non-callable value, a native's own reported error, and so on. Neither
// division nor modulo by zero are among them — both yield IEEE infinity
// or NaN per spec section 7's division-by-zero/modulo-by-zero
// asymmetry-that-isn't.
type RuntimeError struct {
	Message    string
	StackTrace []StackFrame
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.StackTrace) > 0 {
		b.WriteString("\n\nStack trace:")
		for i := len(e.StackTrace) - 1; i >= 0; i-- {
			frame := e.StackTrace[i]
			b.WriteString(fmt.Sprintf("\n  at %s", frame.Name))
			if frame.Selector != "" {
				b.WriteString(fmt.Sprintf(" (via %s)", frame.Selector))
			}
			if frame.SourceLine > 0 {
				b.WriteString(fmt.Sprintf(" [line %d]", frame.SourceLine))
			}
			b.WriteString(fmt.Sprintf(" [ip %d]", frame.IP))
		}
	}
	return b.String()
}

// newRuntimeError builds a RuntimeError from the live call-frame stack,
// keeping only the outermost maxTraceFrames/2 frames and the innermost
// remaining ones (5 and 6 for maxTraceFrames = 11) plus an "omitted"
// marker when the trace is longer than maxTraceFrames.
func newRuntimeError(message string, frames []Frame) *RuntimeError {
	trace := make([]StackFrame, 0, len(frames))
	for _, f := range frames {
		name := "script"
		line := 0
		if f.closure != nil {
			if f.closure.Proto.Name != nil {
				name = f.closure.Proto.Name.Str()
			}
			if f.ip-1 >= 0 && f.ip-1 < len(f.closure.Proto.Code) {
				line = f.closure.Proto.Code[f.ip-1].Line
			}
		} else if f.native != nil {
			name = f.native.Name
		}
		trace = append(trace, StackFrame{Name: name, Selector: f.selector, IP: f.ip, SourceLine: line})
	}
	if len(trace) > maxTraceFrames {
		head := maxTraceFrames / 2
		tail := maxTraceFrames - head
		trimmed := make([]StackFrame, 0, maxTraceFrames+1)
		trimmed = append(trimmed, trace[:head]...)
		trimmed = append(trimmed, StackFrame{Name: fmt.Sprintf("... %d frames omitted ...", len(trace)-maxTraceFrames)})
		trimmed = append(trimmed, trace[len(trace)-tail:]...)
		trace = trimmed
	}
	return &RuntimeError{Message: message, StackTrace: trace}
}
