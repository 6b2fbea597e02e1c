package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kristofer/vyse/pkg/value"
)

func str(s string) *value.String {
	return value.NewString([]byte(s), value.HashBytes([]byte(s)))
}

func TestTableSetGetRemove(t *testing.T) {
	tbl := value.NewTable()
	k := str("a")

	created := tbl.Set(k, 1.0)
	assert.True(t, created)

	v, ok := tbl.Get(k)
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)

	created = tbl.Set(k, 2.0)
	assert.False(t, created, "re-setting an existing key must not create a new entry")
	v, _ = tbl.Get(k)
	assert.Equal(t, 2.0, v)

	removed := tbl.Remove(k)
	assert.True(t, removed)
	_, ok = tbl.Get(k)
	assert.False(t, ok)
}

func TestTableGrowsUnderLoad(t *testing.T) {
	tbl := value.NewTable()
	for i := 0; i < 200; i++ {
		tbl.Set(float64(i), float64(i*2))
	}
	for i := 0; i < 200; i++ {
		v, ok := tbl.Get(float64(i))
		assert.True(t, ok)
		assert.Equal(t, float64(i*2), v)
	}
	assert.Equal(t, 200, tbl.Length())
}

func TestTableLiveCountExcludesTombstones(t *testing.T) {
	tbl := value.NewTable()
	a := str("a")
	tbl.Set(a, 1.0)
	tbl.Set(str("b"), 2.0)
	tbl.Remove(a)
	assert.Equal(t, 1, tbl.Length())
}

func TestPrototypeChainLookup(t *testing.T) {
	base := value.NewTable()
	greet := str("greet")
	base.Set(greet, str("hi"))

	derived := value.NewTable()
	ok := derived.SetProto(base)
	assert.True(t, ok)

	v, found := derived.Get(greet)
	assert.True(t, found)
	assert.Equal(t, "hi", v.(*value.String).Str())
}

func TestAcyclicPrototypeAssignmentRejected(t *testing.T) {
	a := value.NewTable()
	b := value.NewTable()
	assert.True(t, b.SetProto(a))
	// a -> b would close the cycle a -> b -> a.
	ok := a.SetProto(b)
	assert.False(t, ok)
	assert.Nil(t, a.Proto())

	// Self-assignment is the degenerate cycle.
	c := value.NewTable()
	assert.False(t, c.SetProto(c))
}

func TestStringInterningPointerIdentity(t *testing.T) {
	a := str("hello")
	b := str("hello")
	// NewString alone does not intern; pointer identity is the intern
	// table's job (pkg/gc), exercised in pkg/gc's tests. Here we only
	// check that a string equals itself and that two NewString calls with
	// the same content yield distinct pointers.
	assert.True(t, value.Equal(a, a))
	assert.NotSame(t, a, b)
}
