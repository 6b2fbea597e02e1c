package vm

import "github.com/kristofer/vyse/pkg/value"

// callValue dispatches a call instruction already set up on the operand
// stack as [callee, arg0, ..., argN-1] (N == argc), where callee sits at
// stack[vm.sp-argc-1]. It reports whether it pushed a new Frame (a Vyse
// closure call, which the dispatch loop must then drive) or ran to
// completion synchronously (a native, whose single result already replaced
// the whole [callee, args...] window).
func (vm *VM) callValue(callee value.Value, argc int, selector string) (pushedFrame bool, err error) {
	switch fn := callee.(type) {
	case *value.Closure:
		return true, vm.callClosure(fn, argc, selector)
	case *value.CClosure:
		return false, vm.callNative(fn, argc, selector)
	default:
		if proto := vm.protoOf(callee); proto != nil {
			if m, ok := proto.Get(vm.InternString(overloadCall)); ok {
				switch m.(type) {
				case *value.Closure, *value.CClosure:
					if err := vm.insertCallOverloadSelf(argc, m); err != nil {
						return false, err
					}
					return vm.callValue(m, argc+1, selector)
				}
			}
		}
		base := vm.sp - argc - 1
		vm.sp = base
		return false, vm.newRuntimeError("attempt to call a " + value.TypeName(callee) + " value")
	}
}

// insertCallOverloadSelf rewrites the call window [callee, arg0, ...] into
// [handler, callee, arg0, ...] so a resolved __call handler receives the
// original (non-callable) callee as its implicit first argument, the same
// convention prep_method_call uses for `recv:name(...)`.
func (vm *VM) insertCallOverloadSelf(argc int, handler value.Value) error {
	if vm.sp >= len(vm.stack) {
		return vm.newRuntimeError("stack overflow")
	}
	base := vm.sp - argc - 1
	orig := vm.stack[base]
	copy(vm.stack[base+2:vm.sp+1], vm.stack[base+1:vm.sp])
	vm.stack[base] = handler
	vm.stack[base+1] = orig
	vm.sp++
	return nil
}

// callClosure pushes a new Frame for cl, binding argc arguments already on
// the stack to its parameter slots: extra positional args are either
// packed into a trailing variadic list or discarded, and missing ones are
// filled with Nil.
func (vm *VM) callClosure(cl *value.Closure, argc int, selector string) error {
	if len(vm.frames) >= maxCallFrames {
		return vm.newRuntimeError("stack overflow")
	}
	proto := cl.Proto
	base := vm.sp - argc - 1

	fixed := proto.ParamCount
	if proto.Variadic {
		fixed--
	}

	if proto.Variadic {
		rest := value.NewList()
		if argc > fixed {
			for i := fixed; i < argc; i++ {
				rest.Push(vm.stack[base+1+i])
			}
		}
		vm.heap.Register(rest)
		for vm.sp < base+1+fixed {
			vm.stack[vm.sp] = value.Nil{}
			vm.sp++
		}
		vm.sp = base + 1 + fixed
		if err := vm.push(rest); err != nil {
			return err
		}
	} else {
		if argc > fixed {
			vm.sp = base + 1 + fixed
		} else {
			for vm.sp < base+1+fixed {
				vm.stack[vm.sp] = value.Nil{}
				vm.sp++
			}
		}
	}

	vm.frames = append(vm.frames, Frame{closure: cl, base: base, selector: selector})
	return nil
}

// callNative invokes fn synchronously, replacing its [callee, args...]
// window with the single returned value.
func (vm *VM) callNative(fn *value.CClosure, argc int, selector string) error {
	base := vm.sp - argc - 1
	vm.frames = append(vm.frames, Frame{native: fn, base: base, selector: selector})

	savedBase, savedArgc := vm.nativeBase, vm.nativeArgc
	vm.nativeBase, vm.nativeArgc = base, argc

	result, err := fn.Fn(vm, argc)

	vm.nativeBase, vm.nativeArgc = savedBase, savedArgc
	vm.frames = vm.frames[:len(vm.frames)-1]

	vm.sp = base
	if err != nil {
		return err
	}
	if result == nil {
		result = value.Nil{}
	}
	return vm.push(result)
}

// findOrCreateOpenUpvalue returns the open upvalue aliasing stack[index],
// reusing one already open for that slot so every closure capturing the
// same local observes the same writes (spec section 4.3's sharing
// invariant), or creates and registers a new one.
func (vm *VM) findOrCreateOpenUpvalue(index int) *value.Upvalue {
	for _, u := range vm.openUpvals {
		if u.IsOpen() && u.StackIndex() == index {
			return u
		}
	}
	u := value.NewOpenUpvalue(&vm.stack, index)
	vm.heap.Register(u)
	pos := len(vm.openUpvals)
	for i, o := range vm.openUpvals {
		if o.StackIndex() < index {
			pos = i
			break
		}
	}
	vm.openUpvals = append(vm.openUpvals, nil)
	copy(vm.openUpvals[pos+1:], vm.openUpvals[pos:])
	vm.openUpvals[pos] = u
	return u
}

// closeUpvalsFrom closes every open upvalue aliasing stack[fromIndex:] and
// drops them from the open list, copying their final value off the stack
// before the frame that owns that slot is torn down.
func (vm *VM) closeUpvalsFrom(fromIndex int) {
	kept := vm.openUpvals[:0]
	for _, u := range vm.openUpvals {
		if u.IsOpen() && u.StackIndex() >= fromIndex {
			u.Close()
		} else {
			kept = append(kept, u)
		}
	}
	vm.openUpvals = kept
}
