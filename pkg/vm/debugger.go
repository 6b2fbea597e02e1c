package vm

import (
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/olekukonko/tablewriter"

	"github.com/kristofer/vyse/pkg/bytecode"
	"github.com/kristofer/vyse/pkg/value"
)

// Inspector renders a VM's live state (call frames, locals, globals) as
// text tables for interactive debugging. It holds no state of its own
// beyond the VM it was built from.
type Inspector struct {
	vm *VM
}

// NewInspector wraps vm for inspection.
func NewInspector(vm *VM) *Inspector { return &Inspector{vm: vm} }

// FormatStack renders the call-frame stack, most recent call frame first,
// as a table: frame name, base, ip, and the current source line.
func (ins *Inspector) FormatStack() string {
	var b strings.Builder
	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"frame", "base", "ip", "line"})
	for i := len(ins.vm.frames) - 1; i >= 0; i-- {
		f := ins.vm.frames[i]
		name, ip, line := "native", 0, 0
		if f.closure != nil {
			if f.closure.Proto.Name != nil {
				name = f.closure.Proto.Name.Str()
			}
			ip = f.ip
			if ip-1 >= 0 && ip-1 < len(f.closure.Proto.Code) {
				line = f.closure.Proto.Code[ip-1].Line
			}
		} else if f.native != nil {
			name = f.native.Name
		}
		table.Append([]string{name, fmt.Sprintf("%d", f.base), fmt.Sprintf("%d", ip), fmt.Sprintf("%d", line)})
	}
	table.Render()
	return b.String()
}

// FormatLocals renders the current (innermost) frame's addressable stack
// slots — slot 0 through the live top of stack — with their values.
func (ins *Inspector) FormatLocals() string {
	var b strings.Builder
	if len(ins.vm.frames) == 0 {
		return "(no active frame)\n"
	}
	f := ins.vm.frames[len(ins.vm.frames)-1]
	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"slot", "value"})
	for i := f.base; i < ins.vm.sp; i++ {
		table.Append([]string{fmt.Sprintf("%d", i-f.base), dumpValue(ins.vm.stack[i])})
	}
	table.Render()
	return b.String()
}

// FormatGlobals renders every entry in the VM's global table.
func (ins *Inspector) FormatGlobals() string {
	var b strings.Builder
	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"name", "value"})
	// Table exposes no public key iterator beyond Trace, so pull keys back
	// out by type (every global table's keys are interned Strings).
	for _, kv := range snapshotTable(ins.vm.globals) {
		table.Append([]string{kv.key, dumpValue(kv.val)})
	}
	table.Render()
	return b.String()
}

type tableKV struct {
	key string
	val value.Value
}

// snapshotTable extracts name/value pairs from a table whose keys are all
// strings (true of the globals table), for display purposes only.
func snapshotTable(t *value.Table) []tableKV {
	var out []tableKV
	t.Trace(func(v value.Value) {
		if s, ok := v.(*value.String); ok {
			if val, ok := t.Get(s); ok {
				out = append(out, tableKV{key: s.Str(), val: val})
			}
		}
	})
	return out
}

// dumpValue renders v with go-spew, which safely handles the cyclic
// prototype/table graphs Vyse values can form, falling back to a terse
// one-line form for the common scalar cases.
func dumpValue(v value.Value) string {
	switch v.(type) {
	case value.Nil, nil:
		return "nil"
	case bool, float64:
		return fmt.Sprintf("%v", v)
	case *value.String:
		return fmt.Sprintf("%q", v.(*value.String).Str())
	default:
		return strings.TrimSpace(spew.Sdump(v))
	}
}

// Disassemble renders cb's bytecode as a flat instruction listing,
// recursing into any nested Codeblock found in its constant pool.
func Disassemble(cb *value.Codeblock) string {
	var b strings.Builder
	disassembleInto(&b, cb, cb.Name.Str())
	return b.String()
}

func disassembleInto(b *strings.Builder, cb *value.Codeblock, name string) {
	fmt.Fprintf(b, "== %s ==\n", name)
	table := tablewriter.NewWriter(b)
	table.SetHeader([]string{"ip", "line", "op", "operand"})
	for ip, instr := range cb.Code {
		operand := fmt.Sprintf("%d", instr.Operand)
		switch instr.Op {
		case bytecode.OpLoadConst, bytecode.OpGetGlobal, bytecode.OpSetGlobal,
			bytecode.OpTableGet, bytecode.OpTableSet, bytecode.OpTableGetNoPop, bytecode.OpPrepMethodCall:
			if instr.Operand >= 0 && instr.Operand < len(cb.Constants) {
				operand = fmt.Sprintf("%d ; %s", instr.Operand, dumpValue(cb.Constants[instr.Operand]))
			}
		}
		table.Append([]string{fmt.Sprintf("%d", ip), fmt.Sprintf("%d", instr.Line), instr.Op.String(), operand})
	}
	table.Render()
	for _, k := range cb.Constants {
		if nested, ok := k.(*value.Codeblock); ok {
			disassembleInto(b, nested, nested.Name.Str())
		}
	}
}
