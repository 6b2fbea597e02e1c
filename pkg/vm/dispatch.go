package vm

import (
	"github.com/kristofer/vyse/pkg/bytecode"
	"github.com/kristofer/vyse/pkg/value"
)

// executeUntil runs the fetch-decode-execute loop until the frame stack
// depth drops to targetDepth (the depth just before RunCodeblock or
// Host.Call pushed its own frame; 0 for a top-level Run), returning whatever
// value sits on top of the operand stack at that point.
//
// Every case below assumes the stack shapes pkg/compiler's emit.go
// documents for each opcode; see DESIGN.md's pkg/vm entry and the
// compiler's stackEffect table for the contract both sides share.
func (vm *VM) executeUntil(targetDepth int) (value.Value, error) {
	for {
		if len(vm.frames) <= targetDepth {
			if vm.sp > 0 {
				return vm.stack[vm.sp-1], nil
			}
			return value.Nil{}, nil
		}

		frame := &vm.frames[len(vm.frames)-1]
		code := frame.closure.Proto.Code
		if frame.ip >= len(code) {
			return nil, vm.newRuntimeError("instruction pointer ran past the end of its codeblock")
		}
		instr := code[frame.ip]
		frame.ip++

		var err error
		switch instr.Op {

		case bytecode.OpLoadConst:
			err = vm.push(frame.closure.Proto.Constants[instr.Operand])
		case bytecode.OpLoadNil:
			err = vm.push(value.Nil{})

		case bytecode.OpGetVar:
			err = vm.push(vm.stack[frame.base+instr.Operand])
		case bytecode.OpSetVar:
			vm.stack[frame.base+instr.Operand] = vm.peek(0)

		case bytecode.OpGetUpval:
			err = vm.push(frame.closure.Upvals[instr.Operand].Get())
		case bytecode.OpSetUpval:
			frame.closure.Upvals[instr.Operand].Set(vm.peek(0))
		case bytecode.OpCloseUpval:
			vm.closeUpvalsFrom(vm.sp - 1)
			_, err = vm.pop()

		case bytecode.OpGetGlobal:
			name := frame.closure.Proto.Constants[instr.Operand].(*value.String)
			v, _ := vm.globals.Get(name)
			err = vm.push(v)
		case bytecode.OpSetGlobal:
			name := frame.closure.Proto.Constants[instr.Operand].(*value.String)
			vm.globals.Set(name, vm.peek(0))

		case bytecode.OpNewTable:
			t := value.NewTable()
			vm.heap.Register(t)
			err = vm.push(t)
		case bytecode.OpNewList:
			n := instr.Operand
			lst := value.NewList()
			for i := vm.sp - n; i < vm.sp; i++ {
				lst.Push(vm.stack[i])
			}
			vm.sp -= n
			vm.heap.Register(lst)
			err = vm.push(lst)
		case bytecode.OpTableAddField:
			val, _ := vm.pop()
			key, _ := vm.pop()
			vm.peek(0).(*value.Table).Set(key, val)

		case bytecode.OpIndex:
			key, _ := vm.pop()
			container, _ := vm.pop()
			var v value.Value
			v, err = vm.getIndex(container, key)
			if err == nil {
				err = vm.push(v)
			}
		case bytecode.OpIndexNoPop:
			key := vm.peek(0)
			container := vm.peek(1)
			var v value.Value
			v, err = vm.getIndex(container, key)
			if err == nil {
				err = vm.push(v)
			}
		case bytecode.OpIndexSet:
			val, _ := vm.pop()
			key, _ := vm.pop()
			container, _ := vm.pop()
			if err = vm.setIndex(container, key, val); err == nil {
				err = vm.push(val)
			}

		case bytecode.OpTableGet:
			name := frame.closure.Proto.Constants[instr.Operand].(*value.String)
			recv, _ := vm.pop()
			var v value.Value
			v, err = vm.getField(recv, name.Str())
			if err == nil {
				err = vm.push(v)
			}
		case bytecode.OpTableSet:
			name := frame.closure.Proto.Constants[instr.Operand].(*value.String)
			val, _ := vm.pop()
			recv, _ := vm.pop()
			if err = vm.setField(recv, name.Str(), val); err == nil {
				err = vm.push(val)
			}
		case bytecode.OpTableGetNoPop:
			name := frame.closure.Proto.Constants[instr.Operand].(*value.String)
			recv := vm.peek(0)
			var v value.Value
			v, err = vm.getField(recv, name.Str())
			if err == nil {
				err = vm.push(v)
			}
		case bytecode.OpPrepMethodCall:
			name := frame.closure.Proto.Constants[instr.Operand].(*value.String)
			recv, _ := vm.pop()
			var method value.Value
			method, err = vm.getField(recv, name.Str())
			if err == nil {
				if err = vm.push(method); err == nil {
					err = vm.push(recv)
				}
			}

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv,
			bytecode.OpMod, bytecode.OpExp, bytecode.OpConcat,
			bytecode.OpLshift, bytecode.OpRshift, bytecode.OpBand, bytecode.OpBor, bytecode.OpBxor:
			b, _ := vm.pop()
			a, _ := vm.pop()
			var r value.Value
			r, err = vm.binaryOp(instr.Op, a, b)
			if err == nil {
				err = vm.push(r)
			}

		case bytecode.OpEq:
			b, _ := vm.pop()
			a, _ := vm.pop()
			var r value.Value
			r, err = vm.equal(a, b)
			if err == nil {
				err = vm.push(value.Truthy(r))
			}
		case bytecode.OpNeq:
			b, _ := vm.pop()
			a, _ := vm.pop()
			var r value.Value
			r, err = vm.equal(a, b)
			if err == nil {
				err = vm.push(!value.Truthy(r))
			}
		case bytecode.OpLt:
			b, _ := vm.pop()
			a, _ := vm.pop()
			var r value.Value
			r, err = vm.less(a, b)
			if err == nil {
				err = vm.push(value.Truthy(r))
			}
		case bytecode.OpGt:
			b, _ := vm.pop()
			a, _ := vm.pop()
			var r value.Value
			r, err = vm.less(b, a)
			if err == nil {
				err = vm.push(value.Truthy(r))
			}
		case bytecode.OpLte:
			b, _ := vm.pop()
			a, _ := vm.pop()
			var r value.Value
			r, err = vm.less(b, a)
			if err == nil {
				err = vm.push(!value.Truthy(r))
			}
		case bytecode.OpGte:
			b, _ := vm.pop()
			a, _ := vm.pop()
			var r value.Value
			r, err = vm.less(a, b)
			if err == nil {
				err = vm.push(!value.Truthy(r))
			}

		case bytecode.OpNegate:
			a, _ := vm.pop()
			var r value.Value
			r, err = vm.negate(a)
			if err == nil {
				err = vm.push(r)
			}
		case bytecode.OpLnot:
			a, _ := vm.pop()
			err = vm.push(!value.Truthy(a))
		case bytecode.OpBnot:
			a, _ := vm.pop()
			var r value.Value
			r, err = vm.bnot(a)
			if err == nil {
				err = vm.push(r)
			}
		case bytecode.OpLen:
			a, _ := vm.pop()
			var r value.Value
			r, err = vm.length(a)
			if err == nil {
				err = vm.push(r)
			}

		case bytecode.OpJmp, bytecode.OpJmpBack:
			frame.ip = instr.Operand
		case bytecode.OpPopJmpIfFalse:
			v, _ := vm.pop()
			if !value.Truthy(v) {
				frame.ip = instr.Operand
			}
		case bytecode.OpJmpIfTrueOrPop:
			if value.Truthy(vm.peek(0)) {
				frame.ip = instr.Operand
			} else {
				_, err = vm.pop()
			}
		case bytecode.OpJmpIfFalseOrPop:
			if !value.Truthy(vm.peek(0)) {
				frame.ip = instr.Operand
			} else {
				_, err = vm.pop()
			}

		case bytecode.OpForPrep:
			err = vm.forPrep(frame, instr.Operand)
		case bytecode.OpForLoop:
			vm.forLoop(frame, instr.Operand)

		case bytecode.OpMakeFunc:
			proto := frame.closure.Proto.Constants[instr.Operand].(*value.Codeblock)
			cl := value.NewClosure(proto)
			for i, u := range instr.Upvals {
				if u.IsLocal {
					cl.Upvals[i] = vm.findOrCreateOpenUpvalue(frame.base + u.Index)
				} else {
					cl.Upvals[i] = frame.closure.Upvals[u.Index]
				}
			}
			vm.heap.Register(cl)
			err = vm.push(cl)

		case bytecode.OpCallFunc:
			argc := instr.Operand
			callee := vm.stack[vm.sp-argc-1]
			_, err = vm.callValue(callee, argc, "")

		case bytecode.OpReturnVal:
			retVal, _ := vm.pop()
			base := frame.base
			vm.closeUpvalsFrom(base)
			vm.frames = vm.frames[:len(vm.frames)-1]
			vm.sp = base
			err = vm.push(retVal)

		case bytecode.OpPop:
			_, err = vm.pop()
		case bytecode.OpDup:
			err = vm.push(vm.peek(0))
		case bytecode.OpNoOp:
			// nothing

		default:
			err = vm.newRuntimeError("unimplemented opcode " + instr.Op.String())
		}

		if err != nil {
			return nil, err
		}
	}
}

// binaryOp dispatches the arithmetic/bitwise/concat opcodes that share the
// pop-b-pop-a-push-result shape.
func (vm *VM) binaryOp(op bytecode.Opcode, a, b value.Value) (value.Value, error) {
	switch op {
	case bytecode.OpAdd:
		return vm.add(a, b)
	case bytecode.OpSub:
		return vm.sub(a, b)
	case bytecode.OpMul:
		return vm.mul(a, b)
	case bytecode.OpDiv:
		return vm.div(a, b)
	case bytecode.OpMod:
		return vm.mod(a, b)
	case bytecode.OpExp:
		return vm.exp(a, b)
	case bytecode.OpConcat:
		return vm.concat(a, b)
	case bytecode.OpLshift:
		return vm.bitwise(overloadLshift, a, b, func(x, y int64) int64 { return x << uint(y&63) })
	case bytecode.OpRshift:
		return vm.bitwise(overloadRshift, a, b, func(x, y int64) int64 { return x >> uint(y&63) })
	case bytecode.OpBand:
		return vm.bitwise(overloadBand, a, b, func(x, y int64) int64 { return x & y })
	case bytecode.OpBor:
		return vm.bitwise(overloadBor, a, b, func(x, y int64) int64 { return x | y })
	case bytecode.OpBxor:
		return vm.bitwise(overloadBxor, a, b, func(x, y int64) int64 { return x ^ y })
	}
	panic("unreachable binaryOp")
}

// forPrep validates the counter/limit/step trio sitting at the top of the
// stack (the hidden locals pkg/compiler's forStatement just declared),
// pre-decrements the counter by step, and jumps to the test point — see
// pkg/compiler's forStatement doc comment and DESIGN.md's for-loop entry
// for why these opcodes address their operands stack-relatively instead
// of via a slot number: the quartet always sits at the current stack top
// when for_prep/for_loop run, since the loop body is a statement with net
// zero stack effect.
func (vm *VM) forPrep(frame *Frame, target int) error {
	counter, ok1 := vm.stack[vm.sp-4].(float64)
	limit, ok2 := vm.stack[vm.sp-3].(float64)
	step, ok3 := vm.stack[vm.sp-2].(float64)
	if !ok1 || !ok2 || !ok3 {
		return vm.newRuntimeError("'for' initial value, limit, and step must all be numbers")
	}
	if step == 0 {
		return vm.newRuntimeError("'for' step is zero")
	}
	_ = limit
	vm.stack[vm.sp-4] = counter - step
	frame.ip = target
	return nil
}

func (vm *VM) forLoop(frame *Frame, bodyStart int) {
	counter := vm.stack[vm.sp-4].(float64)
	limit := vm.stack[vm.sp-3].(float64)
	step := vm.stack[vm.sp-2].(float64)
	counter += step
	vm.stack[vm.sp-4] = counter
	inRange := (step > 0 && counter <= limit) || (step < 0 && counter >= limit)
	if inRange {
		vm.stack[vm.sp-1] = counter
		frame.ip = bodyStart
	}
}
