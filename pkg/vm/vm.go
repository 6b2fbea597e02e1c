// Package vm implements the bytecode virtual machine for Vyse.
//
// The VM is a stack-based interpreter that executes the bytecode pkg/compiler
// emits. It's the final stage in the execution pipeline:
//
//	Source -> pkg/lexer -> pkg/compiler -> pkg/bytecode -> VM -> result
//
// Architecture:
//
//  1. Operand stack: a single fixed-capacity []value.Value shared by every
//     call frame, sliced by frame so a frame's locals live at
//     stack[base:sp]. Fixed capacity matters beyond overflow checking: an
//     open Upvalue aliases this slice by pointer-plus-index (pkg/value's
//     Upvalue doc comment), so the backing array must never move.
//  2. Call frames: one per active closure invocation, capped at
//     maxCallFrames (spec section 4.3) to bound recursion.
//  3. Globals: a single *value.Table shared by the whole VM.
//  4. Heap: a *gc.Heap that owns every allocated Object and is consulted
//     for string interning and allocation-triggered collection.
//  5. Primitive prototypes: one *value.Table per built-in kind (number,
//     bool, string, list), consulted by operator dispatch and method
//     calls when the operand itself isn't a Table.
package vm

import (
	"fmt"
	"math"

	"github.com/kristofer/vyse/pkg/compiler"
	"github.com/kristofer/vyse/pkg/gc"
	"github.com/kristofer/vyse/pkg/value"
)

// stackCapacity is the operand stack's fixed size. It is never grown or
// reallocated once allocated (see the package doc comment above).
const stackCapacity = 1 << 16

// maxCallFrames bounds recursion depth per spec section 4.3.
const maxCallFrames = 1024

// Frame is one active call: either a Vyse closure (closure != nil) or a
// native CClosure (native != nil), never both. The outermost frame (the
// compiled script itself) is a closure frame with ip/base like any other.
type Frame struct {
	closure  *value.Closure
	native   *value.CClosure
	ip       int
	base     int    // stack[base] is the callee itself, base+1.. are params/locals
	selector string // method name, set only when this call arrived via prep_method_call
}

// ModuleLoader resolves an import path to a module's exported value. See
// internal/stdlib for the chain of loaders actually installed.
type ModuleLoader func(vm *VM, path string) (value.Value, error)

// VM is a single Vyse execution context. The zero value is not usable;
// construct one with New.
type VM struct {
	stack []value.Value
	sp    int

	frames []Frame

	globals *value.Table
	heap    *gc.Heap

	protoNumber *value.Table
	protoBool   *value.Table
	protoString *value.Table
	protoList   *value.Table

	openUpvals []*value.Upvalue // open, sorted by descending stack index (findOrCreateOpenUpvalue keeps the order)

	printFn   func(string)
	errorSink func(error)
	loader    ModuleLoader

	// nativeBase/nativeArgc delimit the argument window of the CClosure
	// currently executing, for the Host.Arg/ArgCount methods.
	nativeBase int
	nativeArgc int
}

// New constructs a VM with its own heap, empty globals, and the four
// primitive prototype tables installed but empty — internal/stdlib
// populates them with methods (e.g. the list prototype's push, which the
// compiler's `<<<` sugar depends on).
func New() *VM {
	vm := &VM{
		stack:       make([]value.Value, stackCapacity),
		globals:     value.NewTable(),
		protoNumber: value.NewTable(),
		protoBool:   value.NewTable(),
		protoString: value.NewTable(),
		protoList:   value.NewTable(),
		printFn:     func(s string) { fmt.Print(s) },
		errorSink:   func(err error) { fmt.Println(err) },
	}
	vm.heap = gc.NewHeap()
	vm.heap.SetRoots(vm.markRoots)
	return vm
}

// Heap exposes the VM's garbage-collected heap, for internal/stdlib and
// cmd/vy to allocate and intern values without duplicating VM state.
func (vm *VM) Heap() *gc.Heap { return vm.heap }

// Globals exposes the VM's global table directly, for stdlib installation.
func (vm *VM) Globals() *value.Table { return vm.globals }

// ProtoNumber, ProtoBool, ProtoString, ProtoList return the primitive
// prototype tables consulted during operator overload dispatch and method
// calls on non-table receivers.
func (vm *VM) ProtoNumber() *value.Table { return vm.protoNumber }
func (vm *VM) ProtoBool() *value.Table   { return vm.protoBool }
func (vm *VM) ProtoString() *value.Table { return vm.protoString }
func (vm *VM) ProtoList() *value.Table   { return vm.protoList }

// SetPrint overrides the sink used by the default `print` global.
func (vm *VM) SetPrint(fn func(string)) { vm.printFn = fn }

// SetErrorSink replaces the VM's stored error sink. Nothing in this package
// calls the sink: Run, RunCodeblock and Call return errors to their caller.
func (vm *VM) SetErrorSink(fn func(error)) { vm.errorSink = fn }

// Print writes s via the installed print sink.
func (vm *VM) Print(s string) { vm.printFn(s) }

// SetModuleLoader stores loader on the VM, where ModuleLoader returns it.
// The `import` global installed by internal/stdlib does not consult it; it
// walks the `__loaders__` list instead.
func (vm *VM) SetModuleLoader(loader ModuleLoader) { vm.loader = loader }

// ModuleLoader returns the installed loader, or nil.
func (vm *VM) ModuleLoader() ModuleLoader { return vm.loader }

// markRoots is the gc.RootProvider passed to the heap: every Value directly
// reachable from VM state rather than from another heap object's Trace.
func (vm *VM) markRoots(mark func(value.Value)) {
	for i := 0; i < vm.sp; i++ {
		mark(vm.stack[i])
	}
	mark(vm.globals)
	mark(vm.protoNumber)
	mark(vm.protoBool)
	mark(vm.protoString)
	mark(vm.protoList)
	for _, u := range vm.openUpvals {
		mark(u)
	}
	for _, f := range vm.frames {
		if f.closure != nil {
			mark(f.closure)
		}
		if f.native != nil {
			mark(f.native)
		}
	}
}

// InternString interns s through the heap's intern table, satisfying
// value.Host and used directly by compiled code's string literals.
func (vm *VM) InternString(s string) *value.String {
	return vm.heap.Intern([]byte(s))
}

// Compile compiles src to a Codeblock using this VM as the StringInterner.
//
// Collection is suspended for the duration: the compiler interns string
// constants into its own constant table (pkg/compiler's addConstant) as it
// goes, and those constants are reachable from nothing else until Compile
// returns and packages them into a Codeblock. Per spec section 4.4's
// invariant I2, a collection triggered mid-compile must not free an
// in-progress constant out from under the compiler, so GCLock brackets
// the whole call the same way a native holding raw heap pointers would.
func (vm *VM) Compile(src string) (*value.Codeblock, error) {
	release := vm.GCLock()
	defer release()
	return compiler.Compile(src, vm)
}

// Run compiles and executes src as a top-level script, returning the value
// of its top-level `return` (or Nil{} if it ends without one; expression
// statements discard their values).
func (vm *VM) Run(src string) (value.Value, error) {
	cb, err := vm.Compile(src)
	if err != nil {
		return nil, err
	}
	return vm.RunCodeblock(cb)
}

// RunCodeblock executes an already-compiled top-level Codeblock.
func (vm *VM) RunCodeblock(cb *value.Codeblock) (value.Value, error) {
	closure := value.NewClosure(cb)
	vm.heap.Register(closure)
	base := vm.sp
	if err := vm.push(closure); err != nil {
		return nil, err
	}
	depth := len(vm.frames)
	vm.frames = append(vm.frames, Frame{closure: closure, base: base})
	result, err := vm.executeUntil(depth)
	if err != nil {
		vm.frames = vm.frames[:depth]
		vm.sp = base
	}
	return result, err
}

// push appends v to the operand stack, reporting a RuntimeError on
// overflow rather than growing the backing array (see the package doc
// comment on why the stack is fixed-capacity).
func (vm *VM) push(v value.Value) error {
	if vm.sp >= len(vm.stack) {
		return vm.newRuntimeError("stack overflow")
	}
	vm.stack[vm.sp] = v
	vm.sp++
	return nil
}

func (vm *VM) pop() (value.Value, error) {
	if vm.sp <= 0 {
		return nil, vm.newRuntimeError("stack underflow")
	}
	vm.sp--
	v := vm.stack[vm.sp]
	vm.stack[vm.sp] = nil
	return v, nil
}

func (vm *VM) peek(distFromTop int) value.Value {
	return vm.stack[vm.sp-1-distFromTop]
}

// --- value.Host -------------------------------------------------------

// Arg returns the i'th argument (0-based) of the native call currently
// executing.
func (vm *VM) Arg(i int) value.Value {
	if i < 0 || i >= vm.nativeArgc {
		return value.Nil{}
	}
	return vm.stack[vm.nativeBase+1+i]
}

// ArgCount returns the argument count of the native call currently
// executing.
func (vm *VM) ArgCount() int { return vm.nativeArgc }

// Push exposes the operand stack to natives that want to leave extra
// state around transiently; most natives should just return a value
// instead.
func (vm *VM) Push(v value.Value) error { return vm.push(v) }

// Pop exposes the operand stack to natives symmetrically with Push.
func (vm *VM) Pop() (value.Value, error) { return vm.pop() }

// Call invokes callee with args and returns its result, for natives that
// need to call back into Vyse (e.g. a `map`/`sort` higher-order builtin).
func (vm *VM) Call(callee value.Value, args []value.Value) (value.Value, error) {
	base := vm.sp
	if err := vm.push(callee); err != nil {
		return nil, err
	}
	for _, a := range args {
		if err := vm.push(a); err != nil {
			return nil, err
		}
	}
	depthBefore := len(vm.frames)
	pushedFrame, err := vm.callValue(callee, len(args), "")
	if err != nil {
		vm.sp = base
		return nil, err
	}
	if pushedFrame {
		result, err := vm.executeUntil(depthBefore)
		if err != nil {
			vm.sp = base
			return nil, err
		}
		return result, nil
	}
	// A native ran synchronously inside callValue and already left its
	// result on the stack in place of the callee+args window.
	return vm.pop()
}

// RuntimeError formats a RuntimeError carrying the current call stack,
// satisfying value.Host for natives that want to report their own
// argument-validation failures.
func (vm *VM) RuntimeError(format string, args ...interface{}) error {
	return vm.newRuntimeError(fmt.Sprintf(format, args...))
}

func (vm *VM) newRuntimeError(message string) error {
	return newRuntimeError(message, vm.frames)
}

// Protect pins o as an extra GC root, for natives that stash a Vyse value
// in Go-side state between calls (e.g. a module cache).
func (vm *VM) Protect(o value.Object) { vm.heap.Protect(o) }

// Unprotect releases a prior Protect.
func (vm *VM) Unprotect(o value.Object) { vm.heap.Unprotect(o) }

// GCLock suspends collection for the duration of a native that holds raw
// slices/pointers into Vyse objects across allocations of its own.
func (vm *VM) GCLock() (release func()) {
	vm.heap.Disable()
	return vm.heap.Enable
}

// RegisterNative installs fn as global name name.
func (vm *VM) RegisterNative(name string, fn value.NativeFn) {
	cc := value.NewCClosure(name, fn)
	vm.heap.Register(cc)
	vm.globals.Set(vm.InternString(name), cc)
}

// RegisterModule chains tbl in front of the VM's stored loader (see
// ModuleLoader), so calling that loader with name returns tbl. The
// `import` global installed by internal/stdlib does not consult this
// loader, so registered modules are not reachable through `import`.
func (vm *VM) RegisterModule(name string, tbl *value.Table) {
	if vm.loader == nil {
		vm.loader = func(*VM, string) (value.Value, error) { return nil, fmt.Errorf("no module loader installed") }
	}
	prev := vm.loader
	vm.loader = func(v *VM, path string) (value.Value, error) {
		if path == name {
			return tbl, nil
		}
		return prev(v, path)
	}
}

// divide and modulo implement spec section 7's division-by-zero rule:
// division by zero is not an error, it yields IEEE infinity/NaN, and
// modulo by zero mirrors that asymmetry-that-isn't rather than raising.
func divide(a, b float64) float64 { return a / b }

func modulo(a, b float64) (float64, error) {
	return math.Mod(a, b), nil
}
