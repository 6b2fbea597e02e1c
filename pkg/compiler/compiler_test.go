package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/vyse/pkg/bytecode"
	"github.com/kristofer/vyse/pkg/compiler"
	"github.com/kristofer/vyse/pkg/value"
)

// fakeInterner is a minimal StringInterner for tests: it dedupes by
// content but skips all the GC bookkeeping a real heap does.
type fakeInterner struct {
	seen map[string]*value.String
}

func newFakeInterner() *fakeInterner {
	return &fakeInterner{seen: make(map[string]*value.String)}
}

func (f *fakeInterner) InternString(s string) *value.String {
	if existing, ok := f.seen[s]; ok {
		return existing
	}
	str := value.NewString([]byte(s), value.HashBytes([]byte(s)))
	f.seen[s] = str
	return str
}

func compileOK(t *testing.T, src string) *value.Codeblock {
	t.Helper()
	cb, err := compiler.Compile(src, newFakeInterner())
	require.NoError(t, err)
	require.NotNil(t, cb)
	return cb
}

func opcodes(cb *value.Codeblock) []bytecode.Opcode {
	ops := make([]bytecode.Opcode, len(cb.Code))
	for i, instr := range cb.Code {
		ops[i] = instr.Op
	}
	return ops
}

func TestCompileArithmeticPrecedence(t *testing.T) {
	cb := compileOK(t, "1 + 2 * 3;")
	ops := opcodes(cb)
	assert.Contains(t, ops, bytecode.OpMul)
	assert.Contains(t, ops, bytecode.OpAdd)
	// multiplication must be emitted (and therefore executed) before the
	// addition that consumes its result.
	mulIdx, addIdx := -1, -1
	for i, op := range ops {
		if op == bytecode.OpMul && mulIdx == -1 {
			mulIdx = i
		}
		if op == bytecode.OpAdd && addIdx == -1 {
			addIdx = i
		}
	}
	assert.Less(t, mulIdx, addIdx)
}

func TestCompileGlobalDeclarationAndAssignment(t *testing.T) {
	cb := compileOK(t, "let x = 5; x = x + 1;")
	ops := opcodes(cb)
	assert.Contains(t, ops, bytecode.OpSetGlobal)
	assert.Contains(t, ops, bytecode.OpGetGlobal)
}

func TestCompileLocalDoesNotEmitGlobalOps(t *testing.T) {
	cb := compileOK(t, "{ let x = 5; x = x + 1; }")
	ops := opcodes(cb)
	assert.NotContains(t, ops, bytecode.OpSetGlobal)
	assert.Contains(t, ops, bytecode.OpGetVar)
	assert.Contains(t, ops, bytecode.OpSetVar)
}

func TestCompileIfElseEmitsJumps(t *testing.T) {
	cb := compileOK(t, "if true { 1; } else { 2; }")
	ops := opcodes(cb)
	assert.Contains(t, ops, bytecode.OpPopJmpIfFalse)
	assert.Contains(t, ops, bytecode.OpJmp)
}

func TestCompileWhileLoopBacksUp(t *testing.T) {
	cb := compileOK(t, "let i = 0; while i < 10 { i = i + 1; }")
	ops := opcodes(cb)
	assert.Contains(t, ops, bytecode.OpJmpBack)
}

func TestCompileForLoopEmitsPrepAndLoop(t *testing.T) {
	cb := compileOK(t, "for i = 1, 10 { }")
	ops := opcodes(cb)
	assert.Contains(t, ops, bytecode.OpForPrep)
	assert.Contains(t, ops, bytecode.OpForLoop)
}

func TestCompileFunctionLiteralEmitsMakeFunc(t *testing.T) {
	cb := compileOK(t, "let f = fn(a, b) { return a + b; };")
	ops := opcodes(cb)
	assert.Contains(t, ops, bytecode.OpMakeFunc)

	var inner *value.Codeblock
	for _, k := range cb.Constants {
		if c, ok := k.(*value.Codeblock); ok {
			inner = c
		}
	}
	require.NotNil(t, inner)
	assert.Equal(t, 2, inner.ParamCount)
	assert.Contains(t, opcodes(inner), bytecode.OpReturnVal)
}

func TestCompileClosureCapturesUpvalue(t *testing.T) {
	cb := compileOK(t, "fn mk(n) { return fn(m) { return n + m; }; }")
	var outer *value.Codeblock
	for _, k := range cb.Constants {
		if c, ok := k.(*value.Codeblock); ok {
			outer = c
		}
	}
	require.NotNil(t, outer)

	var inner *value.Codeblock
	for _, k := range outer.Constants {
		if c, ok := k.(*value.Codeblock); ok {
			inner = c
		}
	}
	require.NotNil(t, inner)
	assert.Equal(t, 1, inner.NumUpvals)
	assert.Contains(t, opcodes(inner), bytecode.OpGetUpval)
}

func TestCompileLambdaArrowSugar(t *testing.T) {
	cb := compileOK(t, "let double = /x -> x * 2;")
	var inner *value.Codeblock
	for _, k := range cb.Constants {
		if c, ok := k.(*value.Codeblock); ok {
			inner = c
		}
	}
	require.NotNil(t, inner)
	assert.Equal(t, 1, inner.ParamCount)
}

func TestCompileTableLiteralEmitsAddField(t *testing.T) {
	cb := compileOK(t, "let t = { x: 1, y: 2 };")
	ops := opcodes(cb)
	assert.Contains(t, ops, bytecode.OpNewTable)
	count := 0
	for _, op := range ops {
		if op == bytecode.OpTableAddField {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestCompileListLiteralPassesElementCount(t *testing.T) {
	cb := compileOK(t, "let l = [1, 2, 3];")
	found := false
	for _, instr := range cb.Code {
		if instr.Op == bytecode.OpNewList {
			assert.Equal(t, 3, instr.Operand)
			found = true
		}
	}
	assert.True(t, found)
}

func TestCompileListPushSugar(t *testing.T) {
	cb := compileOK(t, "let a = []; a <<< 1;")
	ops := opcodes(cb)
	assert.Contains(t, ops, bytecode.OpPrepMethodCall)
	assert.Contains(t, ops, bytecode.OpCallFunc)
}

func TestCompileMethodCallSyntax(t *testing.T) {
	cb := compileOK(t, "t:foo(1, 2);")
	ops := opcodes(cb)
	assert.Contains(t, ops, bytecode.OpPrepMethodCall)
	assert.Contains(t, ops, bytecode.OpCallFunc)
}

func TestCompileBreakAndContinue(t *testing.T) {
	cb := compileOK(t, "while true { break; }")
	assert.Contains(t, opcodes(cb), bytecode.OpJmp)

	cb2 := compileOK(t, "while true { continue; }")
	assert.Contains(t, opcodes(cb2), bytecode.OpJmp)
}

func TestCompileRedeclaredLocalIsError(t *testing.T) {
	_, err := compiler.Compile("{ let x = 1; let x = 2; }", newFakeInterner())
	require.Error(t, err)
	errs, ok := err.(compiler.CompileErrors)
	require.True(t, ok)
	assert.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "already declared")
}

func TestCompileReturnAtTopLevelIsAllowed(t *testing.T) {
	_, err := compiler.Compile("return 1;", newFakeInterner())
	require.NoError(t, err)
}

func TestCompileBreakOutsideLoopIsError(t *testing.T) {
	_, err := compiler.Compile("break;", newFakeInterner())
	require.Error(t, err)
}

func TestCompileMultipleErrorsAreAllCollected(t *testing.T) {
	_, err := compiler.Compile("break; continue; { let x = 1; let x = 2; }", newFakeInterner())
	require.Error(t, err)
	errs, ok := err.(compiler.CompileErrors)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(errs), 3)
}

func TestCompileMaxStackSizeTracksDepth(t *testing.T) {
	cb := compileOK(t, "1 + 2 + 3 * 4 / 2 - 5;")
	assert.Greater(t, cb.MaxStackSize, 0)
}

func TestCompileCompoundAssignDesugars(t *testing.T) {
	cb := compileOK(t, "let x = 1; x += 2;")
	ops := opcodes(cb)
	assert.Contains(t, ops, bytecode.OpAdd)
}

func TestCompileVariadicFunction(t *testing.T) {
	cb := compileOK(t, "fn f(a, ...rest) { return a; }")
	var inner *value.Codeblock
	for _, k := range cb.Constants {
		if c, ok := k.(*value.Codeblock); ok {
			inner = c
		}
	}
	require.NotNil(t, inner)
	assert.True(t, inner.Variadic)
	assert.Equal(t, 2, inner.ParamCount)
}
