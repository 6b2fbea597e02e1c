package vm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/vyse/pkg/value"
)

func run(t *testing.T, src string) value.Value {
	t.Helper()
	vm := New()
	result, err := vm.Run(src)
	require.NoError(t, err)
	return result
}

func TestVMArithmeticPrecedence(t *testing.T) {
	result := run(t, "return 1 + 2 * 3 - 5;")
	assert.Equal(t, 2.0, result)
}

func TestVMFullArithmeticExpression(t *testing.T) {
	result := run(t, "return 1 + 2 + 3*4/2 - 5;")
	assert.Equal(t, 4.0, result)
}

func TestVMStringConcat(t *testing.T) {
	result := run(t, `return "foo" .. "bar";`)
	s, ok := result.(*value.String)
	require.True(t, ok)
	assert.Equal(t, "foobar", s.Str())
}

func TestVMStringInterningIdentity(t *testing.T) {
	vm := New()
	a, err := vm.Run(`return "hello";`)
	require.NoError(t, err)
	b, err := vm.Run(`return "hel" .. "lo";`)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestVMClosureCapturesUpvalue(t *testing.T) {
	result := run(t, `
		fn mk(n) { return fn(m) { return n + m; }; }
		let add10 = mk(10);
		return add10(32);
	`)
	assert.Equal(t, 42.0, result)
}

func TestVMRecursiveFibonacci(t *testing.T) {
	result := run(t, `
		fn fib(n) {
			if n < 2 { return n; }
			return fib(n - 1) + fib(n - 2);
		}
		return fib(10);
	`)
	assert.Equal(t, 55.0, result)
}

func TestVMForLoopSum(t *testing.T) {
	result := run(t, `
		let sum = 0;
		for i = 1, 10 { sum = sum + i; }
		return sum;
	`)
	assert.Equal(t, 55.0, result)
}

func TestVMWhileLoop(t *testing.T) {
	result := run(t, `
		let i = 0;
		let sum = 0;
		while i < 5 { sum = sum + i; i = i + 1; }
		return sum;
	`)
	assert.Equal(t, 10.0, result)
}

func TestVMTableLiteralFieldSum(t *testing.T) {
	result := run(t, `
		let t = { x: 1, y: 2 };
		return t.x + t.y;
	`)
	assert.Equal(t, 3.0, result)
}

func TestVMListIndexing(t *testing.T) {
	result := run(t, `
		let l = [10, 20, 30];
		return l[1];
	`)
	assert.Equal(t, 20.0, result)
}

func TestVMListLength(t *testing.T) {
	result := run(t, `
		let a = [1, 2, 3];
		return #a;
	`)
	assert.Equal(t, 3.0, result)
}

func TestVMMethodCallOnTable(t *testing.T) {
	result := run(t, `
		let t = { v: 10 };
		t.greet = fn(self, who) { return self.v + who; };
		return t:greet(5);
	`)
	assert.Equal(t, 15.0, result)
}

func TestVMPrototypeDelegationViaHostAPI(t *testing.T) {
	vm := New()
	cb, err := vm.Compile(`
		let base = { greet: fn(self) { return 1; } };
		let child = {};
		return child;
	`)
	require.NoError(t, err)
	childVal, err := vm.RunCodeblock(cb)
	require.NoError(t, err)
	child, ok := childVal.(*value.Table)
	require.True(t, ok)

	baseCb, err := vm.Compile(`let base = { greet: fn(self) { return 1; } }; return base;`)
	require.NoError(t, err)
	baseVal, err := vm.RunCodeblock(baseCb)
	require.NoError(t, err)
	base := baseVal.(*value.Table)

	require.True(t, child.SetProto(base))
	v, ok := child.Get(vm.InternString("greet"))
	require.True(t, ok)
	assert.Equal(t, "function", value.TypeName(v))
}

func TestVMDivisionByZeroYieldsInfinity(t *testing.T) {
	result := run(t, "return 1 / 0;")
	f, ok := result.(float64)
	require.True(t, ok)
	assert.True(t, math.IsInf(f, 1))
}

func TestVMCompoundIndexAssign(t *testing.T) {
	result := run(t, `
		let l = [1, 2, 3];
		l[0] += 10;
		return l[0];
	`)
	assert.Equal(t, 11.0, result)
}

func TestVMBreakExitsLoop(t *testing.T) {
	result := run(t, `
		let sum = 0;
		for i = 1, 10 {
			if i == 5 { break; }
			sum = sum + i;
		}
		return sum;
	`)
	assert.Equal(t, 10.0, result)
}

func TestVMVariadicFunction(t *testing.T) {
	result := run(t, `
		fn sum(...xs) {
			let total = 0;
			for i = 0, #xs - 1 { total = total + xs[i]; }
			return total;
		}
		return sum(1, 2, 3, 4);
	`)
	assert.Equal(t, 10.0, result)
}

func TestVMModuloByZeroYieldsNaN(t *testing.T) {
	result := run(t, "return 1 % 0;")
	f, ok := result.(float64)
	require.True(t, ok)
	assert.True(t, math.IsNaN(f))
}

func TestVMCallingNonCallableIsRuntimeError(t *testing.T) {
	vm := New()
	_, err := vm.Run("let x = 5; x();")
	require.Error(t, err)
}

func TestVMMaxCallFramesIsEnforced(t *testing.T) {
	vm := New()
	_, err := vm.Run(`
		fn loop() { return loop(); }
		loop();
	`)
	require.Error(t, err)
	rerr, ok := err.(*RuntimeError)
	require.True(t, ok)
	assert.Contains(t, rerr.Message, "stack overflow")
}
