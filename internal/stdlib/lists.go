package stdlib

import (
	"sort"

	"github.com/kristofer/vyse/pkg/value"
	"github.com/kristofer/vyse/pkg/vm"
)

// installListProto populates the list primitive prototype with the
// method surface spec.md §1 names ("list"): `push` is load-bearing — the
// compiler's `<<<` sugar (pkg/compiler/expressions.go's parseListPush)
// desugars to `recv:push(v)`, so without this method that operator never
// works. The rest (pop, len, sort, map, filter, join) round it out the
// way the teacher's own collection-adjacent prototypes would.
func installListProto(v *vm.VM) {
	proto := v.ProtoList()
	setMethod(v, proto, "push", listPush)
	setMethod(v, proto, "pop", listPop)
	setMethod(v, proto, "len", listLen)
	setMethod(v, proto, "join", listJoin)
	setMethod(v, proto, "sort", listSort(v))
	setMethod(v, proto, "map", listMap(v))
	setMethod(v, proto, "filter", listFilter(v))
}

func selfList(host value.Host) (*value.List, error) {
	l, ok := host.Arg(0).(*value.List)
	if !ok {
		return nil, host.RuntimeError("expected a list receiver, got %s", value.TypeName(host.Arg(0)))
	}
	return l, nil
}

// listPush implements `a:push(v)`, the target of the `<<<` desugar.
func listPush(host value.Host, argc int) (value.Value, error) {
	l, err := selfList(host)
	if err != nil {
		return nil, err
	}
	if argc < 2 {
		return nil, host.RuntimeError("push: expected 1 argument, got 0")
	}
	l.Push(host.Arg(1))
	return l, nil
}

func listPop(host value.Host, argc int) (value.Value, error) {
	l, err := selfList(host)
	if err != nil {
		return nil, err
	}
	v, ok := l.Pop()
	if !ok {
		return value.Nil{}, nil
	}
	return v, nil
}

func listLen(host value.Host, argc int) (value.Value, error) {
	l, err := selfList(host)
	if err != nil {
		return nil, err
	}
	return float64(l.Len()), nil
}

// listJoin implements `a:join(sep)`, concatenating elements' display
// forms with sep (default "") into one interned string.
func listJoin(host value.Host, argc int) (value.Value, error) {
	l, err := selfList(host)
	if err != nil {
		return nil, err
	}
	sep := ""
	if argc > 1 {
		if s, ok := host.Arg(1).(*value.String); ok {
			sep = s.Str()
		}
	}
	var out []byte
	for i, v := range l.Items() {
		if i > 0 {
			out = append(out, sep...)
		}
		out = append(out, displayString(v)...)
	}
	return host.InternString(string(out)), nil
}

// listSort sorts a copy of the receiver's elements. With a comparator
// argument it calls that function through the VM's Call and treats a
// truthy result as "less than"; without one it compares numbers
// numerically and strings lexically by content.
func listSort(v *vm.VM) value.NativeFn {
	return func(host value.Host, argc int) (value.Value, error) {
		l, err := selfList(host)
		if err != nil {
			return nil, err
		}
		var cmp value.Value
		if argc > 1 {
			cmp = host.Arg(1)
		}
		items := append([]value.Value(nil), l.Items()...)
		var sortErr error
		sort.SliceStable(items, func(i, j int) bool {
			if sortErr != nil {
				return false
			}
			if cmp != nil {
				result, err := host.Call(cmp, []value.Value{items[i], items[j]})
				if err != nil {
					sortErr = err
					return false
				}
				return value.Truthy(result)
			}
			return defaultLess(items[i], items[j])
		})
		if sortErr != nil {
			return nil, sortErr
		}
		out := value.NewList()
		for _, it := range items {
			out.Push(it)
		}
		return out, nil
	}
}

func defaultLess(a, b value.Value) bool {
	if x, ok := a.(float64); ok {
		if y, ok := b.(float64); ok {
			return x < y
		}
	}
	if x, ok := a.(*value.String); ok {
		if y, ok := b.(*value.String); ok {
			return x.Str() < y.Str()
		}
	}
	return false
}

// listMap implements `a:map(fn)`, calling fn(element) for every item and
// collecting the results into a new list — the host-callback convention
// spec section 5 describes natives using to re-enter the VM.
func listMap(v *vm.VM) value.NativeFn {
	return func(host value.Host, argc int) (value.Value, error) {
		l, err := selfList(host)
		if err != nil {
			return nil, err
		}
		if argc < 2 {
			return nil, host.RuntimeError("map: expected 1 argument, got 0")
		}
		fn := host.Arg(1)
		out := value.NewList()
		for _, item := range l.Items() {
			result, err := host.Call(fn, []value.Value{item})
			if err != nil {
				return nil, err
			}
			out.Push(result)
		}
		return out, nil
	}
}

// listFilter implements `a:filter(fn)`, keeping elements for which
// fn(element) is truthy.
func listFilter(v *vm.VM) value.NativeFn {
	return func(host value.Host, argc int) (value.Value, error) {
		l, err := selfList(host)
		if err != nil {
			return nil, err
		}
		if argc < 2 {
			return nil, host.RuntimeError("filter: expected 1 argument, got 0")
		}
		fn := host.Arg(1)
		out := value.NewList()
		for _, item := range l.Items() {
			keep, err := host.Call(fn, []value.Value{item})
			if err != nil {
				return nil, err
			}
			if value.Truthy(keep) {
				out.Push(item)
			}
		}
		return out, nil
	}
}
