package stdlib

import (
	"strings"

	"github.com/kristofer/vyse/pkg/value"
	"github.com/kristofer/vyse/pkg/vm"
)

// installStringProto populates the string primitive prototype with the
// method surface spec.md §1 names ("string"): length, case conversion,
// trimming, substring, splitting, searching. `#s` and native string
// indexing are handled directly by pkg/vm's length/getIndex opcodes
// (spec section 4.3), so no overload methods are needed here.
func installStringProto(v *vm.VM) {
	proto := v.ProtoString()
	setMethod(v, proto, "len", strLen)
	setMethod(v, proto, "upper", strUpper)
	setMethod(v, proto, "lower", strLower)
	setMethod(v, proto, "trim", strTrim)
	setMethod(v, proto, "split", strSplit)
	setMethod(v, proto, "find", strFind)
	setMethod(v, proto, "sub", strSub)
	setMethod(v, proto, "replace", strReplace)
}

func selfString(host value.Host) (*value.String, error) {
	s, ok := host.Arg(0).(*value.String)
	if !ok {
		return nil, host.RuntimeError("expected a string receiver, got %s", value.TypeName(host.Arg(0)))
	}
	return s, nil
}

func strLen(host value.Host, argc int) (value.Value, error) {
	s, err := selfString(host)
	if err != nil {
		return nil, err
	}
	return float64(s.Len()), nil
}

func strUpper(host value.Host, argc int) (value.Value, error) {
	s, err := selfString(host)
	if err != nil {
		return nil, err
	}
	return host.InternString(strings.ToUpper(s.Str())), nil
}

func strLower(host value.Host, argc int) (value.Value, error) {
	s, err := selfString(host)
	if err != nil {
		return nil, err
	}
	return host.InternString(strings.ToLower(s.Str())), nil
}

func strTrim(host value.Host, argc int) (value.Value, error) {
	s, err := selfString(host)
	if err != nil {
		return nil, err
	}
	return host.InternString(strings.TrimSpace(s.Str())), nil
}

// strSplit implements `s:split(sep)`, returning a list of interned
// substring pieces.
func strSplit(host value.Host, argc int) (value.Value, error) {
	s, err := selfString(host)
	if err != nil {
		return nil, err
	}
	sep := ""
	if argc > 1 {
		sepStr, ok := host.Arg(1).(*value.String)
		if !ok {
			return nil, host.RuntimeError("split: expected a string separator, got %s", value.TypeName(host.Arg(1)))
		}
		sep = sepStr.Str()
	}
	list := value.NewList()
	var parts []string
	if sep == "" {
		parts = strings.Fields(s.Str())
	} else {
		parts = strings.Split(s.Str(), sep)
	}
	for _, p := range parts {
		list.Push(host.InternString(p))
	}
	return list, nil
}

// strFind implements `s:find(needle)`, returning the 0-based byte offset
// of the first match, or nil rather than an error when the needle is
// absent.
func strFind(host value.Host, argc int) (value.Value, error) {
	s, err := selfString(host)
	if err != nil {
		return nil, err
	}
	if argc < 2 {
		return nil, host.RuntimeError("find: expected 1 argument, got 0")
	}
	needle, ok := host.Arg(1).(*value.String)
	if !ok {
		return nil, host.RuntimeError("find: expected a string, got %s", value.TypeName(host.Arg(1)))
	}
	idx := strings.Index(s.Str(), needle.Str())
	if idx < 0 {
		return value.Nil{}, nil
	}
	return float64(idx), nil
}

// strSub implements `s:sub(start, stop)` with 0-based, end-exclusive
// bounds, clamped to the string's length rather than erroring (unlike
// list indexing, which raises a runtime error when out of range).
func strSub(host value.Host, argc int) (value.Value, error) {
	s, err := selfString(host)
	if err != nil {
		return nil, err
	}
	bytes := s.Bytes
	start, stop := 0, len(bytes)
	if argc > 1 {
		if n, ok := host.Arg(1).(float64); ok {
			start = int(n)
		}
	}
	if argc > 2 {
		if n, ok := host.Arg(2).(float64); ok {
			stop = int(n)
		}
	}
	if start < 0 {
		start = 0
	}
	if stop > len(bytes) {
		stop = len(bytes)
	}
	if start >= stop {
		return host.InternString(""), nil
	}
	return host.InternString(string(bytes[start:stop])), nil
}

func strReplace(host value.Host, argc int) (value.Value, error) {
	s, err := selfString(host)
	if err != nil {
		return nil, err
	}
	if argc < 3 {
		return nil, host.RuntimeError("replace: expected 2 arguments, got %d", argc-1)
	}
	old, ok := host.Arg(1).(*value.String)
	if !ok {
		return nil, host.RuntimeError("replace: expected a string, got %s", value.TypeName(host.Arg(1)))
	}
	repl, ok := host.Arg(2).(*value.String)
	if !ok {
		return nil, host.RuntimeError("replace: expected a string, got %s", value.TypeName(host.Arg(2)))
	}
	return host.InternString(strings.ReplaceAll(s.Str(), old.Str(), repl.Str())), nil
}
