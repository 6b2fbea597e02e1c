package stdlib

import (
	"math"

	"github.com/kristofer/vyse/pkg/value"
	"github.com/kristofer/vyse/pkg/vm"
)

// installNumberProto populates the number primitive prototype with the
// math surface spec.md §1 names ("math") as a method set reached through
// number values' own prototype lookup (e.g. `(-4):abs()`, `x:sqrt()`).
// These are methods only: no `math` module or global is registered, so
// `math.sqrt(x)` is not available.
func installNumberProto(v *vm.VM) {
	proto := v.ProtoNumber()
	setMethod(v, proto, "abs", numAbs)
	setMethod(v, proto, "floor", numFloor)
	setMethod(v, proto, "ceil", numCeil)
	setMethod(v, proto, "round", numRound)
	setMethod(v, proto, "sqrt", numSqrt)
	setMethod(v, proto, "pow", numPow)
	setMethod(v, proto, "min", numMin)
	setMethod(v, proto, "max", numMax)
	setMethod(v, proto, "toString", numToString)
}

// registerNative allocates and registers a CClosure through the heap, per
// spec section 3's "objects are created by a single registration
// routine" lifecycle rule — every CClosure this package hands to a
// prototype table or the loader list goes through this, not a bare
// value.NewCClosure.
func registerNative(v *vm.VM, name string, fn value.NativeFn) *value.CClosure {
	cc := value.NewCClosure(name, fn)
	v.Heap().Register(cc)
	return cc
}

func setMethod(v *vm.VM, t *value.Table, name string, fn value.NativeFn) {
	t.Set(v.InternString(name), registerNative(v, name, fn))
}

func selfNumber(host value.Host) (float64, error) {
	n, ok := host.Arg(0).(float64)
	if !ok {
		return 0, host.RuntimeError("expected a number receiver, got %s", value.TypeName(host.Arg(0)))
	}
	return n, nil
}

func numAbs(host value.Host, argc int) (value.Value, error) {
	n, err := selfNumber(host)
	if err != nil {
		return nil, err
	}
	return math.Abs(n), nil
}

func numFloor(host value.Host, argc int) (value.Value, error) {
	n, err := selfNumber(host)
	if err != nil {
		return nil, err
	}
	return math.Floor(n), nil
}

func numCeil(host value.Host, argc int) (value.Value, error) {
	n, err := selfNumber(host)
	if err != nil {
		return nil, err
	}
	return math.Ceil(n), nil
}

func numRound(host value.Host, argc int) (value.Value, error) {
	n, err := selfNumber(host)
	if err != nil {
		return nil, err
	}
	return math.Round(n), nil
}

func numSqrt(host value.Host, argc int) (value.Value, error) {
	n, err := selfNumber(host)
	if err != nil {
		return nil, err
	}
	return math.Sqrt(n), nil
}

func numPow(host value.Host, argc int) (value.Value, error) {
	n, err := selfNumber(host)
	if err != nil {
		return nil, err
	}
	if argc < 2 {
		return nil, host.RuntimeError("pow: expected 1 argument, got 0")
	}
	exp, ok := host.Arg(1).(float64)
	if !ok {
		return nil, host.RuntimeError("pow: expected a number, got %s", value.TypeName(host.Arg(1)))
	}
	return math.Pow(n, exp), nil
}

func numMin(host value.Host, argc int) (value.Value, error) {
	n, err := selfNumber(host)
	if err != nil {
		return nil, err
	}
	for i := 1; i < argc; i++ {
		o, ok := host.Arg(i).(float64)
		if !ok {
			return nil, host.RuntimeError("min: expected a number, got %s", value.TypeName(host.Arg(i)))
		}
		n = math.Min(n, o)
	}
	return n, nil
}

func numMax(host value.Host, argc int) (value.Value, error) {
	n, err := selfNumber(host)
	if err != nil {
		return nil, err
	}
	for i := 1; i < argc; i++ {
		o, ok := host.Arg(i).(float64)
		if !ok {
			return nil, host.RuntimeError("max: expected a number, got %s", value.TypeName(host.Arg(i)))
		}
		n = math.Max(n, o)
	}
	return n, nil
}

func numToString(host value.Host, argc int) (value.Value, error) {
	n, err := selfNumber(host)
	if err != nil {
		return nil, err
	}
	return host.InternString(formatNumber(n)), nil
}

// installBoolProto populates the boolean primitive prototype with its one
// method, `toString`; everything else a bool supports (`and`/`or`/`!`) is
// built into the VM.
func installBoolProto(v *vm.VM) {
	proto := v.ProtoBool()
	setMethod(v, proto, "toString", boolToString)
}

func boolToString(host value.Host, argc int) (value.Value, error) {
	b, ok := host.Arg(0).(bool)
	if !ok {
		return nil, host.RuntimeError("expected a boolean receiver, got %s", value.TypeName(host.Arg(0)))
	}
	if b {
		return host.InternString("true"), nil
	}
	return host.InternString("false"), nil
}
