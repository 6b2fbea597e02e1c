package compiler

const (
	// maxLocals and maxUpvalues match original_source's UINT8_MAX cap: both
	// arrays are indexed by a single byte-sized operand at the VM level,
	// even though Instruction.Operand itself is a full Go int.
	maxLocals    = 255
	maxUpvalues  = 255
	maxConstants = 1 << 16
)

// local describes one slot in the current function's locals array.
type local struct {
	name       string
	depth      int
	isConst    bool
	isCaptured bool
}

// upvalue describes one entry a child function's codeblock must close
// over: either the enclosing function's local at Index, or the enclosing
// function's own upvalue at Index.
type upvalue struct {
	index   int
	isLocal bool
	isConst bool
}

func (c *Compiler) beginScope() { c.scopeDepth++ }

// endScope pops every local declared in the scope just exited, emitting
// close_upval for locals that were captured by a closure and pop for
// everything else, per spec section 4.2's scope-exit rule.
func (c *Compiler) endScope() {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		last := c.locals[len(c.locals)-1]
		if last.isCaptured {
			c.emit(opCloseUpval, 0)
		} else {
			c.emit(opPop, 0)
		}
		c.locals = c.locals[:len(c.locals)-1]
	}
}

// declareLocal registers name as a new local in the current scope. It is a
// compile error to redeclare a name already local to this exact scope
// depth, or to exceed maxLocals.
func (c *Compiler) declareLocal(name string, isConst bool) {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].depth < c.scopeDepth {
			break
		}
		if c.locals[i].name == name {
			c.errorAtCurrent("variable '" + name + "' already declared in this scope")
			return
		}
	}
	if len(c.locals) >= maxLocals {
		c.errorAtCurrent("too many local variables in function")
		return
	}
	c.locals = append(c.locals, local{name: name, depth: c.scopeDepth, isConst: isConst})
}

// resolveLocal searches this function's own locals for name, innermost
// scope first.
func (c *Compiler) resolveLocal(name string) (idx int, isConst bool, ok bool) {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			return i, c.locals[i].isConst, true
		}
	}
	return 0, false, false
}

// resolveUpvalue implements spec section 4.2's resolution walk: try this
// function's own locals, then recursively its own upvalues against the
// parent. On the first hit at any depth, an upvalue descriptor is added at
// every level between the hit and the caller.
func (c *Compiler) resolveUpvalue(name string) (idx int, isConst bool, ok bool) {
	if c.enclosing == nil {
		return 0, false, false
	}
	if localIdx, isConst, found := c.enclosing.resolveLocal(name); found {
		c.enclosing.locals[localIdx].isCaptured = true
		return c.addUpvalue(localIdx, true, isConst), isConst, true
	}
	if up, isConst, found := c.enclosing.resolveUpvalue(name); found {
		return c.addUpvalue(up, false, isConst), isConst, true
	}
	return 0, false, false
}

// addUpvalue appends a new upvalue descriptor, reusing an existing one
// with the same (index, isLocal) if already present.
func (c *Compiler) addUpvalue(index int, isLocal bool, isConst bool) int {
	for i, u := range c.upvalues {
		if u.index == index && u.isLocal == isLocal {
			return i
		}
	}
	if len(c.upvalues) >= maxUpvalues {
		c.errorAtCurrent("too many captured variables in function")
		return 0
	}
	c.upvalues = append(c.upvalues, upvalue{index: index, isLocal: isLocal, isConst: isConst})
	return len(c.upvalues) - 1
}
