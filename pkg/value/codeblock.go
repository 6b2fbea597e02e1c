package value

import "github.com/kristofer/vyse/pkg/bytecode"

// Codeblock is a compiled function body: its bytecode, constant pool, and
// enough metadata (name, arity, variadic flag, the compiler's computed
// max-stack bound, and a source line on each Instruction) for the VM to execute it and
// for diagnostics to report where things went wrong.
type Codeblock struct {
	Header
	Name         *String
	ParamCount   int
	Variadic     bool
	MaxStackSize int
	Code         []bytecode.Instruction
	Constants    []Value
	NumUpvals    int
}

// NewCodeblock allocates an empty codeblock ready for the compiler to fill
// in.
func NewCodeblock(name *String) *Codeblock {
	return &Codeblock{Header: Header{Kind: KindCodeblock}, Name: name}
}

func (c *Codeblock) GCHeader() *Header { return &c.Header }
func (c *Codeblock) TypeName() string  { return "function" }
func (c *Codeblock) Size() int         { return len(c.Code)*32 + len(c.Constants)*16 + 64 }

func (c *Codeblock) Trace(mark func(Value)) {
	if c.Name != nil {
		mark(c.Name)
	}
	for _, k := range c.Constants {
		mark(k)
	}
}

// Closure pairs a Codeblock with the upvalues it closed over at creation
// time. It is the only callable produced directly by compilation.
type Closure struct {
	Header
	Proto   *Codeblock
	Upvals  []*Upvalue
}

// NewClosure allocates a closure over proto with room for its upvalues.
func NewClosure(proto *Codeblock) *Closure {
	return &Closure{
		Header: Header{Kind: KindClosure},
		Proto:  proto,
		Upvals: make([]*Upvalue, proto.NumUpvals),
	}
}

func (c *Closure) GCHeader() *Header { return &c.Header }
func (c *Closure) TypeName() string  { return "function" }
func (c *Closure) Size() int         { return len(c.Upvals)*8 + 32 }

func (c *Closure) Trace(mark func(Value)) {
	mark(c.Proto)
	for _, u := range c.Upvals {
		if u != nil {
			mark(u)
		}
	}
}

// NativeFn is the signature every C-Closure wraps: given the host and the
// argument count, return a result or a runtime error.
type NativeFn func(host Host, argc int) (Value, error)

// CClosure pairs a native Go function with optional captured state, the
// Vyse equivalent of a C function pointer plus upvalues.
type CClosure struct {
	Header
	Name    string
	Fn      NativeFn
	Upvals  []Value
}

// NewCClosure wraps fn as a callable native closure.
func NewCClosure(name string, fn NativeFn, upvals ...Value) *CClosure {
	return &CClosure{Header: Header{Kind: KindCClosure}, Name: name, Fn: fn, Upvals: upvals}
}

func (c *CClosure) GCHeader() *Header { return &c.Header }
func (c *CClosure) TypeName() string  { return "function" }
func (c *CClosure) Size() int         { return len(c.Upvals)*16 + 32 }

func (c *CClosure) Trace(mark func(Value)) {
	for _, v := range c.Upvals {
		mark(v)
	}
}
