// Package test provides end-to-end integration tests for Vyse, mirroring
// the teacher's root-level test/integration_test.go convention: whole
// programs run through a real *vm.VM rather than individual package
// units.
package test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/vyse/internal/stdlib"
	"github.com/kristofer/vyse/pkg/value"
	"github.com/kristofer/vyse/pkg/vm"
)

// The seven scenarios below are spec section 8's concrete worked
// examples, run verbatim.

func TestScenarioArithmeticPrecedence(t *testing.T) {
	v := vm.New()
	result, err := v.Run(`return 1 + 2 + 3*4/2 - 5;`)
	require.NoError(t, err)
	assert.Equal(t, 4.0, result)
}

func TestScenarioConcatIsInterned(t *testing.T) {
	v := vm.New()
	result, err := v.Run(`return 'a' .. 'b' .. 'c';`)
	require.NoError(t, err)
	s, ok := result.(*value.String)
	require.True(t, ok)
	assert.Equal(t, "abc", s.Str())

	again, err := v.Run(`return 'a' .. 'b' .. 'c';`)
	require.NoError(t, err)
	assert.Same(t, result, again)
}

func TestScenarioClosureOverParameter(t *testing.T) {
	v := vm.New()
	result, err := v.Run(`
		fn mk(x) { return fn(y) { return x + y; }; }
		return mk(10)(32);
	`)
	require.NoError(t, err)
	assert.Equal(t, 42.0, result)
}

func TestScenarioTableFieldArithmetic(t *testing.T) {
	v := vm.New()
	result, err := v.Run(`
		const t = {a: 1, b: 2};
		t.c = t.a + t.b;
		return t.c;
	`)
	require.NoError(t, err)
	assert.Equal(t, 3.0, result)
}

func TestScenarioForLoopAccumulation(t *testing.T) {
	v := vm.New()
	result, err := v.Run(`
		let s = 0;
		for i = 1, 10 { s += i; }
		return s;
	`)
	require.NoError(t, err)
	assert.Equal(t, 55.0, result)
}

func TestScenarioRecursiveFibonacci(t *testing.T) {
	v := vm.New()
	result, err := v.Run(`
		fn fib(n) { if n <= 1 return n; return fib(n-1) + fib(n-2); }
		return fib(10);
	`)
	require.NoError(t, err)
	assert.Equal(t, 55.0, result)
}

func TestScenarioListPushAndLength(t *testing.T) {
	v := vm.New()
	stdlib.Load(v)
	result, err := v.Run(`
		const a = [];
		fn push(v) { a <<< v; }
		push(1); push(2); push(3);
		return #a;
	`)
	require.NoError(t, err)
	assert.Equal(t, 3.0, result)
}
