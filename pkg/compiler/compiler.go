// Package compiler implements Vyse's single-pass Pratt-style compiler:
// source goes directly to bytecode with no intermediate AST. One Compiler
// compiles one function body; nested function literals spawn child
// Compilers that share the same Lexer and are linked to their parent so
// upvalue resolution can walk outward.
package compiler

import (
	"github.com/kristofer/vyse/pkg/bytecode"
	"github.com/kristofer/vyse/pkg/lexer"
	"github.com/kristofer/vyse/pkg/token"
	"github.com/kristofer/vyse/pkg/value"
)

// StringInterner is the capability the compiler needs from its host: a way
// to turn a Go string into the canonical *value.String for the constant
// pool, so that two uses of the same global or field name share one
// interned constant (and, at the VM level, one intern-table entry).
type StringInterner interface {
	InternString(s string) *value.String
}

// funcKind distinguishes the outermost compile unit (a free-standing
// "script") from a nested function/lambda body, mainly so `return` at
// top level and implicit-nil-return-at-EOF behave correctly.
type funcKind int

const (
	kindScript funcKind = iota
	kindFunction
)

type loopCtx struct {
	start       int
	scopeDepth  int
	breakJumps  []int
	continueJmp []int // patched once the increment/test point is known
}

// Compiler compiles one function body into a *value.Codeblock. Nested
// function literals create a child Compiler via newChild, linked via
// enclosing for upvalue resolution; all children share the same *lexer.Lexer
// and token cursor as the outermost Compiler, which is what makes the
// compile pass single-pass despite the recursive function structure.
type Compiler struct {
	lex      *lexer.Lexer
	interner StringInterner

	current  token.Token
	previous token.Token

	enclosing *Compiler
	kind      funcKind
	name      string

	locals     []local
	upvalues   []upvalue
	scopeDepth int

	code      []bytecode.Instruction
	constants []value.Value
	stackSize int
	maxStackSize int
	paramCount   int
	variadic     bool

	loops []*loopCtx

	hadError  bool
	panicMode bool
	errors    CompileErrors
}

// New creates the outermost compiler for a top-level script.
func New(src string, interner StringInterner) *Compiler {
	c := &Compiler{
		lex:      lexer.New(src),
		interner: interner,
		kind:     kindScript,
		name:     "script",
	}
	// Slot 0 of every frame is reserved for the called function itself
	// (spec section 4.3's "base pointer: slot 0 = the called function").
	c.locals = append(c.locals, local{name: "", depth: 0})
	c.advance()
	return c
}

// newChild creates a Compiler for a nested function literal, sharing the
// parent's lexer/token cursor and linked to it for upvalue resolution.
func (c *Compiler) newChild(name string) *Compiler {
	child := &Compiler{
		lex:      c.lex,
		interner: c.interner,
		enclosing: c,
		kind:      kindFunction,
		name:      name,
		current:   c.current,
		previous:  c.previous,
	}
	child.locals = append(child.locals, local{name: "", depth: 0})
	return child
}

// Compile parses and compiles a complete program, returning the top-level
// codeblock or the accumulated compile errors.
func Compile(src string, interner StringInterner) (*value.Codeblock, error) {
	c := New(src, interner)
	for !c.match(token.EOF) {
		c.declaration()
	}
	return c.finish()
}

// finish emits the implicit trailing return and packages the compiled
// instructions into a Codeblock, or returns the collected errors.
func (c *Compiler) finish() (*value.Codeblock, error) {
	c.emit(opLoadNil, 0)
	c.emit(opReturnVal, 0)
	if len(c.errors) > 0 {
		return nil, c.errors
	}
	cb := value.NewCodeblock(c.interner.InternString(c.name))
	cb.ParamCount = c.paramCount
	cb.Variadic = c.variadic
	cb.MaxStackSize = c.maxStackSize
	cb.Code = c.code
	cb.Constants = c.constants
	cb.NumUpvals = len(c.upvalues)
	return cb, nil
}

// --- token cursor -----------------------------------------------------

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.lex.NextToken()
		if c.current.Type != token.ILLEGAL {
			break
		}
		c.errorAtCurrent("unterminated or invalid token: " + c.current.Lexeme)
	}
}

func (c *Compiler) check(tt token.Type) bool { return c.current.Type == tt }

func (c *Compiler) match(tt token.Type) bool {
	if !c.check(tt) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(tt token.Type, msg string) {
	if c.current.Type == tt {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

// --- error reporting / panic-mode recovery -----------------------------

func (c *Compiler) errorAtCurrent(msg string) { c.errorAt(c.current, msg) }
func (c *Compiler) errorAtPrevious(msg string) { c.errorAt(c.previous, msg) }

func (c *Compiler) errorAt(tok token.Token, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true
	near := tok.Lexeme
	if tok.Type == token.EOF {
		near = "<eof>"
	}
	c.errors = append(c.errors, &CompileError{Line: tok.Line, Near: near, Message: msg})
}

// synchronize implements spec section 4.2's panic-mode recovery: skip
// tokens until a statement boundary is reached, then resume compiling
// statements normally.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.current.Type != token.EOF {
		if c.previous.Type == token.SEMI {
			return
		}
		switch c.current.Type {
		case token.RBRACE, token.LBRACE, token.LBRACKET,
			token.LET, token.CONST, token.IF, token.WHILE, token.FOR,
			token.FN, token.RETURN, token.BREAK, token.CONTINUE:
			return
		}
		c.advance()
	}
}
