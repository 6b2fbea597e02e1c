package compiler

import "github.com/kristofer/vyse/pkg/token"

// declaration compiles one top-level-or-block item: a let/const
// declarator-list, a fn declaration, or a plain statement. On a parse
// error it synchronizes to the next statement boundary so compilation can
// keep collecting diagnostics instead of aborting.
func (c *Compiler) declaration() {
	switch {
	case c.match(token.LET):
		c.declaratorList(false)
	case c.match(token.CONST):
		c.declaratorList(true)
	case c.check(token.FN) && peekNextIsIdent(c):
		c.advance() // consume 'fn'
		c.fnDeclaration()
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

// declaratorList compiles `ID (= expr)? (, ID (= expr)?)*` followed by a
// statement terminator.
func (c *Compiler) declaratorList(isConst bool) {
	for {
		c.consume(token.IDENT, "expected variable name")
		name := c.previous.Lexeme

		if c.match(token.ASSIGN) {
			c.expression()
		} else {
			c.emit(opLoadNil, 0)
		}

		// At global scope the initializer is stored into the named global
		// and popped; inside a block it is left on the stack, since that
		// stack slot *is* the local — declared only now, after the
		// initializer, so `let x = x` sees the enclosing binding rather
		// than its own not-yet-initialized slot.
		if c.isGlobalScope() {
			idx := c.identConstant(name)
			c.emit(opSetGlobal, idx)
			c.emit(opPop, 0)
		} else {
			c.declareLocal(name, isConst)
		}

		if !c.match(token.COMMA) {
			break
		}
	}
	c.consumeTerminator()
}

// isGlobalScope reports whether a bare declaration at the current point
// binds a VM global rather than a local slot: only the outermost script's
// own top level qualifies, not a function body's top level (which is
// depth 0 too, but always local).
func (c *Compiler) isGlobalScope() bool {
	return c.kind == kindScript && c.scopeDepth == 0
}

func (c *Compiler) consumeTerminator() {
	c.match(token.SEMI)
}

func (c *Compiler) fnDeclaration() {
	c.consume(token.IDENT, "expected function name")
	name := c.previous.Lexeme
	// A named function may recurse: declare its local slot before
	// compiling the body so the name resolves to itself inside. Global
	// functions need no such trick, since their self-reference resolves
	// through the global table at call time, well after this declaration
	// has run.
	if !c.isGlobalScope() {
		c.declareLocal(name, true)
	}
	c.compileFunction(name, false)
	if c.isGlobalScope() {
		idx := c.identConstant(name)
		c.emit(opSetGlobal, idx)
		c.emit(opPop, 0)
	}
}

func (c *Compiler) statement() {
	switch {
	case c.match(token.IF):
		c.ifStatement()
	case c.match(token.WHILE):
		c.whileStatement()
	case c.match(token.FOR):
		c.forStatement()
	case c.match(token.RETURN):
		c.returnStatement()
	case c.match(token.BREAK):
		c.breakStatement()
	case c.match(token.CONTINUE):
		c.continueStatement()
	case c.match(token.LBRACE):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

// block compiles declarations until the matching `}`.
func (c *Compiler) block() {
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.RBRACE, "expected '}' after block")
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.emit(opPop, 0)
	c.consumeTerminator()
}

func (c *Compiler) ifStatement() {
	c.expression()
	thenJump := c.emitJump(opPopJmpIfFalse)
	c.statement()
	elseJump := c.emitJump(opJmp)
	c.patchJump(thenJump)
	if c.match(token.ELSE) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := len(c.code)
	loop := &loopCtx{start: loopStart, scopeDepth: c.scopeDepth}
	c.loops = append(c.loops, loop)

	c.expression()
	exitJump := c.emitJump(opPopJmpIfFalse)
	c.statement()
	c.emitLoopBack(loopStart)
	c.patchJump(exitJump)

	for _, j := range loop.continueJmp {
		c.code[j].Operand = loopStart
	}
	for _, j := range loop.breakJumps {
		c.patchJump(j)
	}
	c.loops = c.loops[:len(c.loops)-1]
}

// forStatement compiles `for ID = start, limit (, step)? stmt` into the
// hidden counter/limit/step/user-variable quartet described in spec
// section 4.2: three hidden locals plus the user's loop variable, primed
// by for_prep and driven by for_loop.
func (c *Compiler) forStatement() {
	c.beginScope()

	c.consume(token.IDENT, "expected loop variable name")
	userName := c.previous.Lexeme
	c.consume(token.ASSIGN, "expected '=' after loop variable")

	c.expression() // counter
	c.declareLocal("@counter", false)
	c.consume(token.COMMA, "expected ',' after initial value")
	c.expression() // limit
	c.declareLocal("@limit", false)
	if c.match(token.COMMA) {
		c.expression() // step
	} else {
		c.emitNumber(1)
	}
	c.declareLocal("@step", false)

	c.emit(opLoadNil, 0)
	c.declareLocal(userName, false)

	// for_prep validates the trio are numbers, pre-decrements the counter
	// by step, then jumps straight to for_loop (the test) so the body only
	// ever runs after a successful range check, never speculatively.
	prep := c.emitJump(opForPrep)
	loopStart := len(c.code)

	loop := &loopCtx{start: loopStart, scopeDepth: c.scopeDepth}
	c.loops = append(c.loops, loop)

	c.statement()

	// continue jumps (and for_prep's own jump) land here, at the test.
	testPoint := len(c.code)
	for _, j := range loop.continueJmp {
		c.code[j].Operand = testPoint
	}
	c.code[prep].Operand = testPoint
	c.emit(opForLoop, loopStart)

	for _, j := range loop.breakJumps {
		c.patchJump(j)
	}
	c.loops = c.loops[:len(c.loops)-1]

	c.endScope()
}

// emitNumber loads the float64 constant n.
func (c *Compiler) emitNumber(n float64) {
	c.emit(opLoadConst, c.addConstant(n))
}

// returnStatement compiles `return expr?;`. A top-level script is itself
// an implicit function body (its own trailing opReturnVal is what makes
// RunCodeblock's result meaningful), so `return` is legal there too — see
// spec.md section 8's `return #a` worked example, which returns directly
// from script scope.
func (c *Compiler) returnStatement() {
	if c.check(token.SEMI) || c.check(token.RBRACE) || c.check(token.EOF) {
		c.emit(opLoadNil, 0)
	} else {
		c.expression()
	}
	c.emit(opReturnVal, 0)
	c.consumeTerminator()
}

func (c *Compiler) breakStatement() {
	if len(c.loops) == 0 {
		c.errorAtPrevious("'break' outside a loop")
		c.consumeTerminator()
		return
	}
	loop := c.loops[len(c.loops)-1]
	c.unwindLocalsToDepth(loop.scopeDepth)
	j := c.emitJump(opJmp)
	loop.breakJumps = append(loop.breakJumps, j)
	c.consumeTerminator()
}

func (c *Compiler) continueStatement() {
	if len(c.loops) == 0 {
		c.errorAtPrevious("'continue' outside a loop")
		c.consumeTerminator()
		return
	}
	loop := c.loops[len(c.loops)-1]
	c.unwindLocalsToDepth(loop.scopeDepth)
	j := c.emitJump(opJmp)
	loop.continueJmp = append(loop.continueJmp, j)
	c.consumeTerminator()
}

// unwindLocalsToDepth pops (or closes) every local declared deeper than
// depth, without touching the compiler's own locals bookkeeping — used by
// break/continue, which jump out of scopes that endScope will still close
// normally once control returns to the enclosing block.
func (c *Compiler) unwindLocalsToDepth(depth int) {
	for i := len(c.locals) - 1; i >= 0 && c.locals[i].depth > depth; i-- {
		if c.locals[i].isCaptured {
			c.emit(opCloseUpval, 0)
		} else {
			c.emit(opPop, 0)
		}
	}
}
