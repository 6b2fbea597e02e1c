package vm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStackTraceOnCallingNonCallable(t *testing.T) {
	vm := New()
	_, err := vm.Run(`
		let x = 10;
		x();
	`)
	require.Error(t, err)

	runtimeErr, ok := err.(*RuntimeError)
	require.True(t, ok)

	msg := runtimeErr.Error()
	assert.Contains(t, msg, "attempt to call a number value")
	assert.Contains(t, msg, "Stack trace:")
}

func TestStackTraceWithNestedCalls(t *testing.T) {
	vm := New()
	_, err := vm.Run(`
		fn inner() { let x = 10; return x(); }
		fn middle() { return inner(); }
		fn outer() { return middle(); }
		outer();
	`)
	require.Error(t, err)

	runtimeErr, ok := err.(*RuntimeError)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(runtimeErr.StackTrace), 4)

	names := make([]string, len(runtimeErr.StackTrace))
	for i, f := range runtimeErr.StackTrace {
		names[i] = f.Name
	}
	assert.Contains(t, names, "inner")
	assert.Contains(t, names, "middle")
	assert.Contains(t, names, "outer")
}

func TestStackTraceOmitsFramesBeyondCap(t *testing.T) {
	vm := New()
	_, err := vm.Run(`
		fn recurse(n) {
			if n == 0 { let x = 10; return x(); }
			return recurse(n - 1);
		}
		recurse(50);
	`)
	require.Error(t, err)

	runtimeErr, ok := err.(*RuntimeError)
	require.True(t, ok)
	assert.LessOrEqual(t, len(runtimeErr.StackTrace), maxTraceFrames+1)
	assert.True(t, strings.Contains(runtimeErr.Error(), "omitted"))
}

func TestNoStackTraceOnSuccess(t *testing.T) {
	vm := New()
	result, err := vm.Run(`
		let x = 10;
		let y = 2;
		return x / y;
	`)
	require.NoError(t, err)
	assert.Equal(t, 5.0, result)
}
