package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kristofer/vyse/pkg/value"
)

func TestTruthy(t *testing.T) {
	assert.False(t, value.Truthy(value.Nil{}))
	assert.False(t, value.Truthy(nil))
	assert.False(t, value.Truthy(false))
	assert.True(t, value.Truthy(true))
	assert.True(t, value.Truthy(0.0))
	assert.True(t, value.Truthy(str("")))
}

func TestEqualityReflexiveForNumbersAndStrings(t *testing.T) {
	n := 3.5
	assert.True(t, value.Equal(n, n))

	s := str("x")
	assert.True(t, value.Equal(s, s))

	s2 := str("x")
	assert.False(t, value.Equal(s, s2), "uninterned equal-content strings are distinct pointers")
}

func TestHashBytesStable(t *testing.T) {
	a := value.HashBytes([]byte("hello world"))
	b := value.HashBytes([]byte("hello world"))
	assert.Equal(t, a, b)

	c := value.HashBytes([]byte("hello worlD"))
	assert.NotEqual(t, a, c)
}

func TestHashBytesOnlyUsesFirst32Bytes(t *testing.T) {
	prefix := make([]byte, 32)
	for i := range prefix {
		prefix[i] = byte('a' + i%26)
	}
	a := append(append([]byte{}, prefix...), 'x')
	b := append(append([]byte{}, prefix...), 'y')
	assert.Equal(t, value.HashBytes(a), value.HashBytes(b))
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "nil", value.TypeName(value.Nil{}))
	assert.Equal(t, "number", value.TypeName(1.0))
	assert.Equal(t, "bool", value.TypeName(true))
	assert.Equal(t, "string", value.TypeName(str("x")))
	assert.Equal(t, "table", value.TypeName(value.NewTable()))
	assert.Equal(t, "list", value.TypeName(value.NewList()))
}
