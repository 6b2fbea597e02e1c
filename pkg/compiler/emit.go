package compiler

import (
	"github.com/kristofer/vyse/pkg/bytecode"
	"github.com/kristofer/vyse/pkg/value"
)

// Local opcode aliases keep the rest of this package's call sites reading
// close to spec section 4.2's lowercase opcode names while the bytecode
// package exports Go-conventional exported identifiers.
const (
	opLoadConst  = bytecode.OpLoadConst
	opLoadNil    = bytecode.OpLoadNil
	opGetVar     = bytecode.OpGetVar
	opSetVar     = bytecode.OpSetVar
	opGetUpval   = bytecode.OpGetUpval
	opSetUpval   = bytecode.OpSetUpval
	opCloseUpval = bytecode.OpCloseUpval
	opGetGlobal  = bytecode.OpGetGlobal
	opSetGlobal  = bytecode.OpSetGlobal

	opNewTable       = bytecode.OpNewTable
	opNewList        = bytecode.OpNewList
	opTableAddField  = bytecode.OpTableAddField
	opIndex          = bytecode.OpIndex
	opIndexNoPop     = bytecode.OpIndexNoPop
	opIndexSet       = bytecode.OpIndexSet
	opTableGet       = bytecode.OpTableGet
	opTableSet       = bytecode.OpTableSet
	opTableGetNoPop  = bytecode.OpTableGetNoPop
	opPrepMethodCall = bytecode.OpPrepMethodCall

	opAdd    = bytecode.OpAdd
	opSub    = bytecode.OpSub
	opMul    = bytecode.OpMul
	opDiv    = bytecode.OpDiv
	opMod    = bytecode.OpMod
	opExp    = bytecode.OpExp
	opConcat = bytecode.OpConcat
	opEq     = bytecode.OpEq
	opNeq    = bytecode.OpNeq
	opLt     = bytecode.OpLt
	opGt     = bytecode.OpGt
	opLte    = bytecode.OpLte
	opGte    = bytecode.OpGte
	opLshift = bytecode.OpLshift
	opRshift = bytecode.OpRshift
	opBand   = bytecode.OpBand
	opBor    = bytecode.OpBor
	opBxor   = bytecode.OpBxor
	opNegate = bytecode.OpNegate
	opLnot   = bytecode.OpLnot
	opBnot   = bytecode.OpBnot
	opLen    = bytecode.OpLen

	opJmp             = bytecode.OpJmp
	opJmpBack         = bytecode.OpJmpBack
	opPopJmpIfFalse   = bytecode.OpPopJmpIfFalse
	opJmpIfTrueOrPop  = bytecode.OpJmpIfTrueOrPop
	opJmpIfFalseOrPop = bytecode.OpJmpIfFalseOrPop
	opForPrep         = bytecode.OpForPrep
	opForLoop         = bytecode.OpForLoop

	opMakeFunc  = bytecode.OpMakeFunc
	opCallFunc  = bytecode.OpCallFunc
	opReturnVal = bytecode.OpReturnVal

	opPop  = bytecode.OpPop
	opDup  = bytecode.OpDup
	opNoOp = bytecode.OpNoOp
)

// stackEffect reports how many values op leaves behind, net, for the
// running max-stack computation. Variable-effect opcodes are sized by
// their call site instead: calls and list literals via emitWithEffect,
// make_func via emitMakeFunc.
var stackEffect = map[bytecode.Opcode]int{
	opLoadConst: 1, opLoadNil: 1, opGetVar: 1, opSetVar: 0,
	opGetUpval: 1, opSetUpval: 0, opCloseUpval: -1, opGetGlobal: 1, opSetGlobal: 0,
	opNewTable: 1, opNewList: 1, opTableAddField: -2,
	// index_no_pop leaves both the container and the key on the stack
	// beneath the fetched value (unlike the spec prose's "container only",
	// this implementation keeps the key too, so a subsequent index_set can
	// complete a compound assignment without re-evaluating the key
	// expression — see DESIGN.md's Open Question resolution 11).
	opIndex: -1, opIndexNoPop: 1, opIndexSet: -2,
	opTableGet: 0, opTableSet: -1, opTableGetNoPop: 1, opPrepMethodCall: 1,
	opAdd: -1, opSub: -1, opMul: -1, opDiv: -1, opMod: -1, opExp: -1, opConcat: -1,
	opEq: -1, opNeq: -1, opLt: -1, opGt: -1, opLte: -1, opGte: -1,
	opLshift: -1, opRshift: -1, opBand: -1, opBor: -1, opBxor: -1,
	opNegate: 0, opLnot: 0, opBnot: 0, opLen: 0,
	opJmp: 0, opJmpBack: 0, opPopJmpIfFalse: -1, opJmpIfTrueOrPop: 0, opJmpIfFalseOrPop: 0,
	opForPrep: 0, opForLoop: 0,
	opReturnVal: -1,
	opPop:       -1, opDup: 1, opNoOp: 0,
}

// emit appends one instruction at the current source line and updates the
// running max-stack watermark.
func (c *Compiler) emit(op bytecode.Opcode, operand int) int {
	c.code = append(c.code, bytecode.Instruction{Op: op, Operand: operand, Line: c.previous.Line})
	c.applyEffect(stackEffect[op])
	return len(c.code) - 1
}

// emitWithEffect is for the few opcodes whose stack effect depends on the
// call site (OpCallFunc pops argc+1 and pushes 1; OpNewList pops n and
// pushes 1; OpMakeFunc pushes 1 regardless of captured upvalue count).
func (c *Compiler) emitWithEffect(op bytecode.Opcode, operand int, effect int) int {
	c.code = append(c.code, bytecode.Instruction{Op: op, Operand: operand, Line: c.previous.Line})
	c.applyEffect(effect)
	return len(c.code) - 1
}

func (c *Compiler) emitMakeFunc(constIdx int, upvals []bytecode.UpvalDesc) {
	c.code = append(c.code, bytecode.Instruction{Op: opMakeFunc, Operand: constIdx, Upvals: upvals, Line: c.previous.Line})
	c.applyEffect(1)
}

func (c *Compiler) applyEffect(delta int) {
	c.stackSize += delta
	if c.stackSize > c.maxStackSize {
		c.maxStackSize = c.stackSize
	}
	if c.stackSize < 0 {
		c.stackSize = 0
	}
}

// emitJump emits a jump opcode with a placeholder operand and returns its
// instruction index, for later patchJump.
func (c *Compiler) emitJump(op bytecode.Opcode) int {
	return c.emit(op, -1)
}

// patchJump back-patches the jump at idx to land on the instruction about
// to be emitted next.
func (c *Compiler) patchJump(idx int) {
	target := len(c.code)
	if target-idx > 0xFFFF {
		c.errorAtCurrent("jump target out of range")
		return
	}
	c.code[idx].Operand = target
}

// emitLoopBack emits jmp_back targeting loopStart.
func (c *Compiler) emitLoopBack(loopStart int) {
	c.emit(opJmpBack, loopStart)
}

// addConstant appends v to the constant pool, returning its index, or
// reuses an existing entry for an identical interned string so repeated
// uses of the same global name share one slot.
func (c *Compiler) addConstant(v value.Value) int {
	if s, ok := v.(*value.String); ok {
		for i, existing := range c.constants {
			if es, ok := existing.(*value.String); ok && es == s {
				return i
			}
		}
	}
	if len(c.constants) >= maxConstants {
		c.errorAtCurrent("too many constants in one function")
		return 0
	}
	c.constants = append(c.constants, v)
	return len(c.constants) - 1
}

// identConstant interns name and places it in the constant pool, for
// get_global/set_global/table_get/prep_method_call operands.
func (c *Compiler) identConstant(name string) int {
	return c.addConstant(c.interner.InternString(name))
}
