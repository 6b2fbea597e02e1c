package vm

import (
	"math"

	"github.com/kristofer/vyse/pkg/value"
)

// Reserved prototype method names consulted when an operator's built-in
// meaning doesn't apply to the operand(s), letting a table-based "object"
// participate in arithmetic, comparison, indexing, calls, and length the
// same way the stdlib's own number/string/list prototypes do. Spec
// section 4.5 names __add, __sub, __eq, __lt, __index, __newindex, __call,
// and __len explicitly; the remaining arithmetic/bitwise operators reuse
// the same mechanism for consistency rather than being special-cased out.
const (
	overloadAdd      = "__add"
	overloadSub      = "__sub"
	overloadMul      = "__mul"
	overloadDiv      = "__div"
	overloadMod      = "__mod"
	overloadExp      = "__exp"
	overloadConcat   = "__concat"
	overloadEq       = "__eq"
	overloadLt       = "__lt"
	overloadLshift   = "__lshift"
	overloadRshift   = "__rshift"
	overloadBand     = "__band"
	overloadBor      = "__bor"
	overloadBxor     = "__bxor"
	overloadNegate   = "__negate"
	overloadBnot     = "__bnot"
	overloadLen      = "__len"
	overloadIndex    = "__index"
	overloadNewIndex = "__newindex"
	overloadCall     = "__call"
)

// protoOf returns the prototype table consulted for v's operator overloads
// and method lookups: the primitive tables for numbers/bools/strings/
// lists, a table's or userdata's own explicit prototype link, or nil for
// values with no overload surface (nil itself, functions, upvalues).
func (vm *VM) protoOf(v value.Value) *value.Table {
	switch x := v.(type) {
	case float64:
		return vm.protoNumber
	case bool:
		return vm.protoBool
	case *value.String:
		return vm.protoString
	case *value.List:
		return vm.protoList
	case *value.Table:
		return x.Proto()
	case *value.UserData:
		return x.Proto
	default:
		return nil
	}
}

// lookupMethod resolves name on recv: recv's own fields first (if it's a
// Table), then its prototype chain, then the relevant primitive
// prototype.
func (vm *VM) lookupMethod(recv value.Value, name string) (value.Value, bool) {
	key := vm.InternString(name)
	if t, ok := recv.(*value.Table); ok {
		return t.Get(key)
	}
	if p := vm.protoOf(recv); p != nil {
		return p.Get(key)
	}
	return value.Nil{}, false
}

func (vm *VM) tryOverload1(v value.Value, name string) (value.Value, bool) {
	p := vm.protoOf(v)
	if p == nil {
		return nil, false
	}
	return p.Get(vm.InternString(name))
}

// callOverload invokes an overload method found via tryOverload1/2 with
// args (the receiver(s) the operator was applied to), synchronously.
func (vm *VM) callOverload(fn value.Value, args []value.Value) (value.Value, error) {
	return vm.Call(fn, args)
}

// --- arithmetic ---------------------------------------------------------

func (vm *VM) arith(op string, a, b value.Value, fallback func(x, y float64) (float64, error)) (value.Value, error) {
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		r, err := fallback(af, bf)
		if err != nil {
			return nil, vm.newRuntimeError(err.Error())
		}
		return r, nil
	}
	if fn, ok := vm.tryOverload1(a, op); ok {
		return vm.callOverload(fn, []value.Value{a, b})
	}
	if fn, ok := vm.tryOverload1(b, op); ok {
		return vm.callOverload(fn, []value.Value{a, b})
	}
	return nil, vm.newRuntimeError("attempt to perform arithmetic on a " + value.TypeName(a) + " and a " + value.TypeName(b))
}

func (vm *VM) add(a, b value.Value) (value.Value, error) {
	return vm.arith(overloadAdd, a, b, func(x, y float64) (float64, error) { return x + y, nil })
}
func (vm *VM) sub(a, b value.Value) (value.Value, error) {
	return vm.arith(overloadSub, a, b, func(x, y float64) (float64, error) { return x - y, nil })
}
func (vm *VM) mul(a, b value.Value) (value.Value, error) {
	return vm.arith(overloadMul, a, b, func(x, y float64) (float64, error) { return x * y, nil })
}
func (vm *VM) div(a, b value.Value) (value.Value, error) {
	return vm.arith(overloadDiv, a, b, func(x, y float64) (float64, error) { return divide(x, y), nil })
}
func (vm *VM) mod(a, b value.Value) (value.Value, error) {
	return vm.arith(overloadMod, a, b, modulo)
}
func (vm *VM) exp(a, b value.Value) (value.Value, error) {
	return vm.arith(overloadExp, a, b, func(x, y float64) (float64, error) { return math.Pow(x, y), nil })
}

func (vm *VM) concat(a, b value.Value) (value.Value, error) {
	as, aok := a.(*value.String)
	bs, bok := b.(*value.String)
	if aok && bok {
		buf := make([]byte, 0, as.Len()+bs.Len())
		buf = append(buf, as.Bytes...)
		buf = append(buf, bs.Bytes...)
		return vm.heap.Intern(buf), nil
	}
	if fn, ok := vm.tryOverload1(a, overloadConcat); ok {
		return vm.callOverload(fn, []value.Value{a, b})
	}
	if fn, ok := vm.tryOverload1(b, overloadConcat); ok {
		return vm.callOverload(fn, []value.Value{a, b})
	}
	return nil, vm.newRuntimeError("attempt to concatenate a " + value.TypeName(a) + " and a " + value.TypeName(b))
}

func toInt(v value.Value) (int64, bool) {
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

func (vm *VM) bitwise(op string, a, b value.Value, fallback func(x, y int64) int64) (value.Value, error) {
	ai, aok := toInt(a)
	bi, bok := toInt(b)
	if aok && bok {
		return float64(fallback(ai, bi)), nil
	}
	if fn, ok := vm.tryOverload1(a, op); ok {
		return vm.callOverload(fn, []value.Value{a, b})
	}
	return nil, vm.newRuntimeError("attempt to perform bitwise operation on a " + value.TypeName(a) + " and a " + value.TypeName(b))
}

// --- comparison -----------------------------------------------------------

func (vm *VM) equal(a, b value.Value) (value.Value, error) {
	if value.Equal(a, b) {
		return true, nil
	}
	if fn, ok := vm.tryOverload1(a, overloadEq); ok {
		r, err := vm.callOverload(fn, []value.Value{a, b})
		return r, err
	}
	return false, nil
}

func (vm *VM) less(a, b value.Value) (value.Value, error) {
	if af, ok := a.(float64); ok {
		if bf, ok := b.(float64); ok {
			return af < bf, nil
		}
	}
	if as, ok := a.(*value.String); ok {
		if bs, ok := b.(*value.String); ok {
			return as.Str() < bs.Str(), nil
		}
	}
	if fn, ok := vm.tryOverload1(a, overloadLt); ok {
		return vm.callOverload(fn, []value.Value{a, b})
	}
	return nil, vm.newRuntimeError("attempt to compare a " + value.TypeName(a) + " and a " + value.TypeName(b))
}

// --- unary ------------------------------------------------------------

func (vm *VM) negate(a value.Value) (value.Value, error) {
	if f, ok := a.(float64); ok {
		return -f, nil
	}
	if fn, ok := vm.tryOverload1(a, overloadNegate); ok {
		return vm.callOverload(fn, []value.Value{a})
	}
	return nil, vm.newRuntimeError("attempt to negate a " + value.TypeName(a))
}

func (vm *VM) bnot(a value.Value) (value.Value, error) {
	if i, ok := toInt(a); ok {
		return float64(^i), nil
	}
	if fn, ok := vm.tryOverload1(a, overloadBnot); ok {
		return vm.callOverload(fn, []value.Value{a})
	}
	return nil, vm.newRuntimeError("attempt to perform bitwise not on a " + value.TypeName(a))
}

func (vm *VM) length(a value.Value) (value.Value, error) {
	switch x := a.(type) {
	case *value.List:
		return float64(x.Len()), nil
	case *value.String:
		return float64(x.Len()), nil
	case *value.Table:
		return float64(x.Length()), nil
	}
	if fn, ok := vm.tryOverload1(a, overloadLen); ok {
		return vm.callOverload(fn, []value.Value{a})
	}
	return nil, vm.newRuntimeError("attempt to get length of a " + value.TypeName(a))
}

// --- indexing -----------------------------------------------------------

func (vm *VM) getIndex(container, key value.Value) (value.Value, error) {
	switch c := container.(type) {
	case *value.List:
		i, ok := toInt(key)
		if !ok {
			return nil, vm.newRuntimeError("list index must be a number")
		}
		v, ok := c.Get(int(i))
		if !ok {
			return nil, vm.newRuntimeError("list index out of range")
		}
		return v, nil
	case *value.Table:
		v, _ := c.Get(key)
		return v, nil
	case *value.String:
		i, ok := toInt(key)
		if !ok || i < 0 || int(i) >= c.Len() {
			return nil, vm.newRuntimeError("string index out of range")
		}
		return vm.heap.Intern(c.Bytes[i : i+1]), nil
	}
	if fn, ok := vm.tryOverload1(container, overloadIndex); ok {
		if t, ok := fn.(*value.Table); ok {
			return vm.getIndex(t, key)
		}
		return vm.callOverload(fn, []value.Value{container, key})
	}
	return nil, vm.newRuntimeError("attempt to index a " + value.TypeName(container) + " value")
}

func (vm *VM) setIndex(container, key, val value.Value) error {
	switch c := container.(type) {
	case *value.List:
		i, ok := toInt(key)
		if !ok {
			return vm.newRuntimeError("list index must be a number")
		}
		if !c.Set(int(i), val) {
			return vm.newRuntimeError("list index out of range")
		}
		return nil
	case *value.Table:
		c.Set(key, val)
		return nil
	}
	if fn, ok := vm.tryOverload1(container, overloadNewIndex); ok {
		if t, ok := fn.(*value.Table); ok {
			return vm.setIndex(t, key, val)
		}
		_, err := vm.callOverload(fn, []value.Value{container, key, val})
		return err
	}
	return vm.newRuntimeError("attempt to index a " + value.TypeName(container) + " value")
}

// getField implements `.` field access: a Table's own entries (and its
// prototype chain via Table.Get) for a Table receiver, or the relevant
// primitive prototype's chain otherwise. prep_method_call reuses this to
// resolve `recv:name`.
func (vm *VM) getField(recv value.Value, name string) (value.Value, error) {
	v, ok := vm.lookupMethod(recv, name)
	if !ok {
		return value.Nil{}, nil
	}
	return v, nil
}

func (vm *VM) setField(recv value.Value, name string, val value.Value) error {
	t, ok := recv.(*value.Table)
	if !ok {
		return vm.newRuntimeError("cannot set field '" + name + "' on a " + value.TypeName(recv) + " value")
	}
	t.Set(vm.InternString(name), val)
	return nil
}
