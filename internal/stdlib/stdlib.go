// Package stdlib implements Vyse's standard library: the default globals
// (print, input, assert, import, setproto, getproto) and the primitive
// prototype tables (number, bool, string, list) consulted by operator
// dispatch and `recv:method(...)` calls on non-table receivers.
//
// None of this lives in pkg/vm: spec section 1 places "the standard
// library functions themselves" outside the core runtime, as an external
// collaborator that only consumes the Host API (pkg/value.Host, plus the
// handful of exported *vm.VM methods spec section 4.5 names). Following
// the teacher's pkg/vm/primitives.go, each builtin is one small function
// registered as a native global or prototype method; unlike the teacher's
// http/crypto/compression grab-bag, this set is exactly the one spec.md
// §6 names.
package stdlib

import (
	"github.com/kristofer/vyse/pkg/value"
	"github.com/kristofer/vyse/pkg/vm"
)

// Load installs every default global and populates the four primitive
// prototype tables on v. Callers (cmd/vy, tests) call this once per VM
// right after vm.New(), mirroring the teacher's "load stdlib" step before
// running any user source.
func Load(v *vm.VM) {
	installGlobals(v)
	installNumberProto(v)
	installBoolProto(v)
	installStringProto(v)
	installListProto(v)
	installModuleLoaders(v)
}

// installGlobals registers the free functions spec section 6 lists:
// print, input, assert, import, setproto, getproto.
func installGlobals(v *vm.VM) {
	v.RegisterNative("print", nativePrint)
	v.RegisterNative("input", nativeInput)
	v.RegisterNative("assert", nativeAssert)
	v.RegisterNative("import", nativeImport(v))
	v.RegisterNative("setproto", nativeSetProto)
	v.RegisterNative("getproto", nativeGetProto)

	v.Globals().Set(v.InternString("number"), v.ProtoNumber())
	v.Globals().Set(v.InternString("boolean"), v.ProtoBool())
	v.Globals().Set(v.InternString("string"), v.ProtoString())
	v.Globals().Set(v.InternString("list"), v.ProtoList())
}

// nativePrint writes every argument's display form, space-separated,
// followed by a newline, via the VM's installed print sink.
func nativePrint(host value.Host, argc int) (value.Value, error) {
	for i := 0; i < argc; i++ {
		if i > 0 {
			host.Print(" ")
		}
		host.Print(displayString(host.Arg(i)))
	}
	host.Print("\n")
	return value.Nil{}, nil
}

// nativeInput reads a line from stdin, optionally printing a prompt
// argument first, and returns it as an interned string with its trailing
// newline stripped.
func nativeInput(host value.Host, argc int) (value.Value, error) {
	if argc > 0 {
		if s, ok := host.Arg(0).(*value.String); ok {
			host.Print(s.Str())
		}
	}
	line, err := readLine()
	if err != nil {
		return value.Nil{}, nil
	}
	return host.InternString(line), nil
}

// nativeAssert raises a RuntimeError with the second argument's message
// (or a default) when the first argument is falsy, per spec section 6's
// native-function contract.
func nativeAssert(host value.Host, argc int) (value.Value, error) {
	if argc == 0 {
		return nil, host.RuntimeError("assert: expected at least 1 argument")
	}
	if value.Truthy(host.Arg(0)) {
		return host.Arg(0), nil
	}
	msg := "assertion failed"
	if argc > 1 {
		msg = displayString(host.Arg(1))
	}
	return nil, host.RuntimeError("%s", msg)
}

// nativeSetProto implements `setproto(table, proto)`: assigns proto as
// table's prototype, refusing (and reporting a RuntimeError) a cyclic
// assignment per spec section 3's acyclic-prototype invariant. `proto` may
// be nil to clear the link.
func nativeSetProto(host value.Host, argc int) (value.Value, error) {
	if argc < 2 {
		return nil, host.RuntimeError("setproto: expected 2 arguments, got %d", argc)
	}
	t, ok := host.Arg(0).(*value.Table)
	if !ok {
		return nil, host.RuntimeError("setproto: expected a table, got %s", value.TypeName(host.Arg(0)))
	}
	var proto *value.Table
	if !value.IsNil(host.Arg(1)) {
		proto, ok = host.Arg(1).(*value.Table)
		if !ok {
			return nil, host.RuntimeError("setproto: expected a table or nil, got %s", value.TypeName(host.Arg(1)))
		}
	}
	if !t.SetProto(proto) {
		return nil, host.RuntimeError("setproto: cyclic prototype assignment")
	}
	return t, nil
}

// nativeGetProto implements `getproto(table)`, returning Nil{} if table
// has no prototype.
func nativeGetProto(host value.Host, argc int) (value.Value, error) {
	if argc < 1 {
		return nil, host.RuntimeError("getproto: expected 1 argument, got %d", argc)
	}
	t, ok := host.Arg(0).(*value.Table)
	if !ok {
		return nil, host.RuntimeError("getproto: expected a table, got %s", value.TypeName(host.Arg(0)))
	}
	if p := t.Proto(); p != nil {
		return p, nil
	}
	return value.Nil{}, nil
}
