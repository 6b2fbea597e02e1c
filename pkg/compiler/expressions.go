package compiler

import (
	"strconv"

	"github.com/kristofer/vyse/pkg/bytecode"
	"github.com/kristofer/vyse/pkg/token"
)

type precedence int

const (
	precNone precedence = iota
	precAssignment
	precOr
	precAnd
	precBitOr
	precBitXor
	precBitAnd
	precEquality
	precComparison
	precShift
	precConcat
	precTerm
	precFactor
	precUnary
	precPower
	precCall
)

type parseFn func(c *Compiler, canAssign bool)

type rule struct {
	prefix parseFn
	infix  parseFn
	prec   precedence
}

var rules map[token.Type]rule

func init() {
	rules = map[token.Type]rule{
		token.NUMBER:   {prefix: parseNumber},
		token.STRING:   {prefix: parseString},
		token.TRUE:     {prefix: parseLiteral},
		token.FALSE:    {prefix: parseLiteral},
		token.NIL:      {prefix: parseLiteral},
		token.IDENT:    {prefix: parseIdentifier},
		token.LPAREN:   {prefix: parseGrouping, infix: parseCall, prec: precCall},
		token.LBRACE:   {prefix: parseTableLiteral},
		token.LBRACKET: {prefix: parseListLiteral, infix: parseIndex, prec: precCall},
		token.FN:       {prefix: parseFunctionLiteral},
		token.SLASH:    {prefix: parseLambda, infix: parseBinary, prec: precFactor},

		token.MINUS: {prefix: parseUnary, infix: parseBinary, prec: precTerm},
		token.PLUS:  {infix: parseBinary, prec: precTerm},
		token.STAR:  {infix: parseBinary, prec: precFactor},
		token.PERCENT: {infix: parseBinary, prec: precFactor},
		token.STAR_STAR: {infix: parseBinaryRightAssoc, prec: precPower},

		token.LNOT: {prefix: parseUnary},
		token.HASH: {prefix: parseUnary},
		token.BNOT: {prefix: parseUnary},

		token.SHL_CONCAT: {infix: parseListPush, prec: precConcat},

		token.EQ:  {infix: parseBinary, prec: precEquality},
		token.NEQ: {infix: parseBinary, prec: precEquality},
		token.LT:  {infix: parseBinary, prec: precComparison},
		token.LTE: {infix: parseBinary, prec: precComparison},
		token.GT:  {infix: parseBinary, prec: precComparison},
		token.GTE: {infix: parseBinary, prec: precComparison},

		token.SHL: {infix: parseBinary, prec: precShift},
		token.SHR: {infix: parseBinary, prec: precShift},

		token.CONCAT: {infix: parseBinary, prec: precConcat},

		token.BAND: {infix: parseBinary, prec: precBitAnd},
		token.BOR:  {infix: parseBinary, prec: precBitOr},
		token.BXOR: {infix: parseBinary, prec: precBitXor},

		token.AND: {infix: parseAnd, prec: precAnd},
		token.OR:  {infix: parseOr, prec: precOr},

		token.DOT:   {infix: parseDot, prec: precCall},
		token.COLON: {infix: parseMethodCall, prec: precCall},

		token.ASSIGN:    {infix: nil}, // handled inside the lvalue prefix rules
		token.PLUS_EQ:   {infix: nil},
		token.MINUS_EQ:  {infix: nil},
		token.STAR_EQ:   {infix: nil},
		token.SLASH_EQ:  {infix: nil},
		token.PERCENT_EQ: {infix: nil},
	}
}

func getRule(tt token.Type) rule { return rules[tt] }

// expression parses and compiles one full expression at the lowest
// (assignment) precedence.
func (c *Compiler) expression() { c.parsePrecedence(precAssignment) }

func (c *Compiler) parsePrecedence(prec precedence) {
	c.advance()
	r := getRule(c.previous.Type)
	if r.prefix == nil {
		c.errorAtPrevious("expected expression")
		return
	}
	canAssign := prec <= precAssignment
	r.prefix(c, canAssign)

	for prec <= getRule(c.current.Type).prec {
		c.advance()
		infix := getRule(c.previous.Type).infix
		if infix == nil {
			c.errorAtPrevious("unexpected token in expression")
			return
		}
		infix(c, canAssign)
	}

	if canAssign && (c.check(token.ASSIGN) || isCompoundAssign(c.current.Type)) {
		c.errorAtCurrent("invalid assignment target")
	}
}

func isCompoundAssign(tt token.Type) bool {
	switch tt {
	case token.PLUS_EQ, token.MINUS_EQ, token.STAR_EQ, token.SLASH_EQ, token.PERCENT_EQ:
		return true
	}
	return false
}

func compoundOp(tt token.Type) bytecode.Opcode {
	switch tt {
	case token.PLUS_EQ:
		return opAdd
	case token.MINUS_EQ:
		return opSub
	case token.STAR_EQ:
		return opMul
	case token.SLASH_EQ:
		return opDiv
	case token.PERCENT_EQ:
		return opMod
	}
	return opNoOp
}

// --- literals -----------------------------------------------------------

func parseNumber(c *Compiler, _ bool) {
	n, err := strconv.ParseFloat(c.previous.Lexeme, 64)
	if err != nil {
		c.errorAtPrevious("invalid number literal")
		return
	}
	c.emitNumber(n)
}

func parseString(c *Compiler, _ bool) {
	s := c.interner.InternString(c.previous.Lexeme)
	c.emit(opLoadConst, c.addConstant(s))
}

func parseLiteral(c *Compiler, _ bool) {
	switch c.previous.Type {
	case token.TRUE:
		c.emit(opLoadConst, c.addConstant(true))
	case token.FALSE:
		c.emit(opLoadConst, c.addConstant(false))
	case token.NIL:
		c.emit(opLoadNil, 0)
	}
}

func parseGrouping(c *Compiler, _ bool) {
	c.expression()
	c.consume(token.RPAREN, "expected ')' after expression")
}

// --- identifiers and assignment -----------------------------------------

func parseIdentifier(c *Compiler, canAssign bool) {
	name := c.previous.Lexeme
	c.resolveAndMaybeAssign(name, canAssign)
}

// resolveAndMaybeAssign emits a read of name, or — if canAssign and the
// next token is an assignment operator — compiles the assignment instead.
func (c *Compiler) resolveAndMaybeAssign(name string, canAssign bool) {
	var getOp, setOp bytecode.Opcode
	var operand int
	var isConst bool

	if idx, cst, ok := c.resolveLocal(name); ok {
		getOp, setOp, operand, isConst = opGetVar, opSetVar, idx, cst
	} else if idx, cst, ok := c.resolveUpvalue(name); ok {
		getOp, setOp, operand, isConst = opGetUpval, opSetUpval, idx, cst
	} else {
		idx := c.identConstant(name)
		getOp, setOp, operand, isConst = opGetGlobal, opSetGlobal, idx, false
	}

	if canAssign && c.match(token.ASSIGN) {
		if isConst {
			c.errorAtPrevious("cannot assign to const '" + name + "'")
		}
		c.expression()
		c.emit(setOp, operand)
		return
	}
	if canAssign && isCompoundAssign(c.current.Type) {
		if isConst {
			c.errorAtPrevious("cannot assign to const '" + name + "'")
		}
		op := compoundOp(c.current.Type)
		c.advance()
		c.emit(getOp, operand)
		c.expression()
		c.emit(op, 0)
		c.emit(setOp, operand)
		return
	}
	c.emit(getOp, operand)
}

// --- unary / binary -------------------------------------------------------

func parseUnary(c *Compiler, _ bool) {
	op := c.previous.Type
	c.parsePrecedence(precUnary)
	switch op {
	case token.MINUS:
		c.emit(opNegate, 0)
	case token.LNOT:
		c.emit(opLnot, 0)
	case token.BNOT:
		c.emit(opBnot, 0)
	case token.HASH:
		c.emit(opLen, 0)
	}
}

func parseBinary(c *Compiler, _ bool) {
	op := c.previous.Type
	r := getRule(op)
	c.parsePrecedence(r.prec + 1)
	emitBinaryOp(c, op)
}

func parseBinaryRightAssoc(c *Compiler, _ bool) {
	op := c.previous.Type
	r := getRule(op)
	c.parsePrecedence(r.prec)
	emitBinaryOp(c, op)
}

func emitBinaryOp(c *Compiler, op token.Type) {
	switch op {
	case token.PLUS:
		c.emit(opAdd, 0)
	case token.MINUS:
		c.emit(opSub, 0)
	case token.STAR:
		c.emit(opMul, 0)
	case token.SLASH:
		c.emit(opDiv, 0)
	case token.PERCENT:
		c.emit(opMod, 0)
	case token.STAR_STAR:
		c.emit(opExp, 0)
	case token.CONCAT:
		c.emit(opConcat, 0)
	case token.EQ:
		c.emit(opEq, 0)
	case token.NEQ:
		c.emit(opNeq, 0)
	case token.LT:
		c.emit(opLt, 0)
	case token.GT:
		c.emit(opGt, 0)
	case token.LTE:
		c.emit(opLte, 0)
	case token.GTE:
		c.emit(opGte, 0)
	case token.SHL:
		c.emit(opLshift, 0)
	case token.SHR:
		c.emit(opRshift, 0)
	case token.BAND:
		c.emit(opBand, 0)
	case token.BOR:
		c.emit(opBor, 0)
	case token.BXOR:
		c.emit(opBxor, 0)
	}
}

// parseAnd/parseOr implement short-circuit evaluation via the
// jmp_if_*_or_pop opcodes, which leave the short-circuiting operand on the
// stack as the expression's result without a separate pop.
func parseAnd(c *Compiler, _ bool) {
	end := c.emitJump(opJmpIfFalseOrPop)
	c.parsePrecedence(precAnd)
	c.patchJump(end)
}

func parseOr(c *Compiler, _ bool) {
	end := c.emitJump(opJmpIfTrueOrPop)
	c.parsePrecedence(precOr)
	c.patchJump(end)
}

// --- suffix: call, dot, index, method-call -------------------------------

func parseCall(c *Compiler, _ bool) {
	argc := c.argumentList(token.RPAREN)
	c.emitWithEffect(opCallFunc, argc, -argc)
}

// argumentList compiles a comma-separated expression list up to (and
// consuming) close, returning the count.
func (c *Compiler) argumentList(closeTok token.Type) int {
	argc := 0
	if !c.check(closeTok) {
		for {
			c.expression()
			argc++
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(closeTok, "expected closing delimiter after argument list")
	return argc
}

func parseDot(c *Compiler, canAssign bool) {
	c.consume(token.IDENT, "expected field name after '.'")
	name := c.previous.Lexeme
	idx := c.identConstant(name)

	if canAssign && c.match(token.ASSIGN) {
		c.expression()
		c.emit(opTableSet, idx)
		return
	}
	if canAssign && isCompoundAssign(c.current.Type) {
		op := compoundOp(c.current.Type)
		c.advance()
		c.emit(opTableGetNoPop, idx)
		c.expression()
		c.emit(op, 0)
		c.emit(opTableSet, idx)
		return
	}
	c.emit(opTableGet, idx)
}

func parseIndex(c *Compiler, canAssign bool) {
	c.expression()
	c.consume(token.RBRACKET, "expected ']' after index expression")

	if canAssign && c.match(token.ASSIGN) {
		c.expression()
		c.emit(opIndexSet, 0)
		return
	}
	if canAssign && isCompoundAssign(c.current.Type) {
		op := compoundOp(c.current.Type)
		c.advance()
		c.emit(opIndexNoPop, 0)
		c.expression()
		c.emit(op, 0)
		c.emit(opIndexSet, 0)
		return
	}
	c.emit(opIndex, 0)
}

// parseMethodCall compiles `recv:name(args)`: duplicate+fetch the method
// via the prototype chain, then call it with the receiver as the implicit
// first argument.
func parseMethodCall(c *Compiler, _ bool) {
	c.consume(token.IDENT, "expected method name after ':'")
	idx := c.identConstant(c.previous.Lexeme)
	c.emit(opPrepMethodCall, idx)
	c.consume(token.LPAREN, "expected '(' after method name")
	argc := c.argumentList(token.RPAREN)
	// +1 for the receiver, which prep_method_call placed above the method.
	c.emitWithEffect(opCallFunc, argc+1, -(argc + 1))
}

// parseListPush compiles `lhs <<< rhs`, sugar for `lhs:push(rhs)` (spec
// section 4.1's "list append sugar"): the list's primitive prototype
// supplies `push` the same way any other prototype method dispatch works.
func parseListPush(c *Compiler, _ bool) {
	idx := c.identConstant("push")
	c.emit(opPrepMethodCall, idx)
	c.parsePrecedence(precConcat + 1)
	c.emitWithEffect(opCallFunc, 2, -2)
}

// --- table / list literals ------------------------------------------------

// parseTableLiteral compiles `{ (key: expr | [expr]: expr | expr) , ... }`.
// Bare positional entries are keyed by an increasing integer index,
// matching the teacher corpus's table literal convention of doubling as a
// sequence when no keys are given.
func parseTableLiteral(c *Compiler, _ bool) {
	c.emit(opNewTable, 0)
	autoIndex := 0.0
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		switch {
		case c.check(token.LBRACKET):
			c.advance()
			c.expression()
			c.consume(token.RBRACKET, "expected ']' after computed key")
			c.consume(token.COLON, "expected ':' after computed key")
			c.expression()
		case c.check(token.IDENT) && peekIsColon(c):
			c.advance()
			key := c.previous.Lexeme
			c.emit(opLoadConst, c.addConstant(c.interner.InternString(key)))
			c.advance() // consume ':'
			c.expression()
		default:
			c.emitNumber(autoIndex)
			autoIndex++
			c.expression()
		}
		c.emit(opTableAddField, 0)
		if !c.match(token.COMMA) {
			break
		}
	}
	c.consume(token.RBRACE, "expected '}' after table literal")
}

// peekIsColon reports whether the token after the current IDENT is ':',
// without consuming either — the compiler has no multi-token lookahead
// buffer, so this speculatively advances the shared lexer and is only
// ever called when c.current is already known to be IDENT.
func peekIsColon(c *Compiler) bool {
	save := *c.lex
	next := c.lex.NextToken()
	*c.lex = save
	return next.Type == token.COLON
}

// peekNextIsIdent reports whether the token after the current one (which
// must already be FN) is an identifier, distinguishing `fn name(...) {}`
// declarations from anonymous function-literal expressions without
// consuming the lookahead token.
func peekNextIsIdent(c *Compiler) bool {
	save := *c.lex
	next := c.lex.NextToken()
	*c.lex = save
	return next.Type == token.IDENT
}

// parseListLiteral compiles `[ expr, ... ]` into new_list n, which pops n
// stack values (in order) into a freshly allocated list.
func parseListLiteral(c *Compiler, _ bool) {
	n := 0
	if !c.check(token.RBRACKET) {
		for {
			c.expression()
			n++
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RBRACKET, "expected ']' after list literal")
	c.emitWithEffect(opNewList, n, 1-n)
}

// --- functions and lambdas -------------------------------------------------

func parseFunctionLiteral(c *Compiler, _ bool) {
	c.compileFunction("fn", false)
}

// parseLambda compiles `/ params -> expr`, sugar for a single-expression
// function body with an implicit return.
func parseLambda(c *Compiler, _ bool) {
	c.compileFunction("lambda", true)
}

// compileFunction parses a parameter list and body (either `(params) { .. }`
// for a `fn` literal or `params -> expr` for a lambda, selected by
// isLambdaArrow) in a fresh child Compiler, then emits make_func in the
// enclosing compiler referencing the finished codeblock as a constant.
func (c *Compiler) compileFunction(name string, isLambdaArrow bool) {
	child := c.newChild(name)

	if isLambdaArrow {
		child.lambdaParams()
		child.consume(token.ARROW, "expected '->' in lambda")
		child.expression()
		child.emit(opReturnVal, 0)
	} else {
		child.consume(token.LPAREN, "expected '(' after function name")
		child.paramList()
		child.consume(token.LBRACE, "expected '{' before function body")
		child.block()
	}

	c.current = child.current
	c.previous = child.previous

	cb, err := child.finish()
	if errs, ok := err.(CompileErrors); ok {
		c.errors = append(c.errors, errs...)
	}
	if cb == nil {
		return
	}

	upvals := make([]bytecode.UpvalDesc, len(child.upvalues))
	for i, u := range child.upvalues {
		upvals[i] = bytecode.UpvalDesc{IsLocal: u.isLocal, Index: u.index}
	}
	idx := c.addConstant(cb)
	c.emitMakeFunc(idx, upvals)
}

// paramList compiles a `(` already-consumed by the caller `)`-terminated
// parameter list, including a trailing `...` variadic marker.
func (c *Compiler) paramList() {
	if !c.check(token.RPAREN) {
		for {
			if c.match(token.SPREAD) {
				c.variadic = true
				c.consume(token.IDENT, "expected parameter name after '...'")
				c.declareLocal(c.previous.Lexeme, false)
				c.paramCount++
				break
			}
			c.consume(token.IDENT, "expected parameter name")
			c.declareLocal(c.previous.Lexeme, false)
			c.paramCount++
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "expected ')' after parameters")
}

// lambdaParams compiles a bare comma-separated parameter list with no
// surrounding parentheses, terminated by '->'.
func (c *Compiler) lambdaParams() {
	if !c.check(token.ARROW) {
		for {
			c.consume(token.IDENT, "expected parameter name")
			c.declareLocal(c.previous.Lexeme, false)
			c.paramCount++
			if !c.match(token.COMMA) {
				break
			}
		}
	}
}
