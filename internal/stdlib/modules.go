package stdlib

import (
	"os"
	"path/filepath"
	"plugin"

	"github.com/kristofer/vyse/pkg/value"
	"github.com/kristofer/vyse/pkg/vm"
)

// loaderState holds the Go-side bookkeeping the default loader chain
// needs that doesn't fit naturally into Vyse values: the stack of
// absolute paths currently being imported (for spec section 9's
// recursive-import detection) and the importing file's directory, used to
// resolve the next relative import.
type loaderState struct {
	vm          *vm.VM
	importChain []string
	baseDir     string
}

// installModuleLoaders wires spec section 6's module loader protocol:
// `__loaders__` (an ordered list of callables), `__modulecache__` (a
// table consulted first and populated on every successful load), and
// `import`, which walks the loader chain. The three default loaders are
// installed in the order spec.md names them: cache-hit, dynamic-library,
// filesystem.
func installModuleLoaders(v *vm.VM) {
	cache := value.NewTable()
	v.Heap().Register(cache)
	v.Globals().Set(v.InternString("__modulecache__"), cache)

	state := &loaderState{vm: v, baseDir: "."}

	loaders := value.NewList()
	v.Heap().Register(loaders)
	loaders.Push(registerNative(v, "cache-loader", cacheLoader(state, cache)))
	loaders.Push(registerNative(v, "native-loader", nativeLoader(state)))
	loaders.Push(registerNative(v, "filesystem-loader", filesystemLoader(state)))
	v.Globals().Set(v.InternString("__loaders__"), loaders)
}

// nativeImport implements the `import` global: walk `__loaders__` in
// order, invoking each with the module name, and return the first
// non-nil result, caching it in `__modulecache__`.
func nativeImport(v *vm.VM) value.NativeFn {
	return func(host value.Host, argc int) (value.Value, error) {
		if argc < 1 {
			return nil, host.RuntimeError("import: expected 1 argument, got 0")
		}
		name, ok := host.Arg(0).(*value.String)
		if !ok {
			return nil, host.RuntimeError("import: expected a string, got %s", value.TypeName(host.Arg(0)))
		}

		loadersVal, _ := v.Globals().Get(v.InternString("__loaders__"))
		loaders, ok := loadersVal.(*value.List)
		if !ok {
			return nil, host.RuntimeError("import: __loaders__ is not a list")
		}

		cacheVal, _ := v.Globals().Get(v.InternString("__modulecache__"))
		cache, _ := cacheVal.(*value.Table)

		for _, ldr := range loaders.Items() {
			result, err := host.Call(ldr, []value.Value{name})
			if err != nil {
				return nil, err
			}
			if !value.IsNil(result) {
				if cache != nil {
					cache.Set(name, result)
				}
				return result, nil
			}
		}
		return nil, host.RuntimeError("import: module %q not found", name.Str())
	}
}

// cacheLoader is the first default loader: a cache hit short-circuits the
// rest of the chain.
func cacheLoader(state *loaderState, cache *value.Table) value.NativeFn {
	return func(host value.Host, argc int) (value.Value, error) {
		name, ok := host.Arg(0).(*value.String)
		if !ok {
			return value.Nil{}, nil
		}
		if v, ok := cache.Get(name); ok {
			return v, nil
		}
		return value.Nil{}, nil
	}
}

// nativeLoader models spec section 6's "standard dynamic-library loader"
// as Go's own plugin mechanism: it looks in the directory named by the
// VYSE_PATH environment variable for a `<name>.so` built with `go build
// -buildmode=plugin`, exporting a `VyseModule func(*vm.VM) *value.Table`
// symbol. It reports nil, giving the filesystem loader a chance, when
// VYSE_PATH is unset or no such file exists; once the file exists, a
// failed plugin.Open (including on platforms without plugin support), a
// missing symbol or a wrong signature is a runtime error.
func nativeLoader(state *loaderState) value.NativeFn {
	return func(host value.Host, argc int) (value.Value, error) {
		name, ok := host.Arg(0).(*value.String)
		if !ok {
			return value.Nil{}, nil
		}
		dir := os.Getenv("VYSE_PATH")
		if dir == "" {
			return value.Nil{}, nil
		}
		path := filepath.Join(dir, name.Str()+".so")
		if _, err := os.Stat(path); err != nil {
			return value.Nil{}, nil
		}
		p, err := plugin.Open(path)
		if err != nil {
			return nil, host.RuntimeError("import: failed to load native module %q: %v", name.Str(), err)
		}
		sym, err := p.Lookup("VyseModule")
		if err != nil {
			return nil, host.RuntimeError("import: %q has no VyseModule symbol: %v", name.Str(), err)
		}
		init, ok := sym.(func(*vm.VM) *value.Table)
		if !ok {
			return nil, host.RuntimeError("import: %q's VyseModule has the wrong signature", name.Str())
		}
		tbl := init(state.vm)
		state.vm.Heap().Register(tbl)
		return tbl, nil
	}
}

// filesystemLoader is spec section 6's final default loader: it resolves
// name (with a `.vy` extension implied if absent) relative to the
// directory of the file currently being imported, refuses a path already
// on the in-progress import chain (spec section 9's "recursive import"
// design note), compiles and runs the file, and returns the value of its
// top-level `return` (nil if it has none).
func filesystemLoader(state *loaderState) value.NativeFn {
	return func(host value.Host, argc int) (value.Value, error) {
		name, ok := host.Arg(0).(*value.String)
		if !ok {
			return value.Nil{}, nil
		}
		rel := name.Str()
		if filepath.Ext(rel) == "" {
			rel += ".vy"
		}
		path := rel
		if !filepath.IsAbs(path) {
			path = filepath.Join(state.baseDir, path)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return value.Nil{}, nil
		}
		for _, inProgress := range state.importChain {
			if inProgress == abs {
				return nil, host.RuntimeError("recursive import of %q", abs)
			}
		}
		src, err := os.ReadFile(abs)
		if err != nil {
			return value.Nil{}, nil
		}

		prevBase := state.baseDir
		state.baseDir = filepath.Dir(abs)
		state.importChain = append(state.importChain, abs)
		defer func() {
			state.importChain = state.importChain[:len(state.importChain)-1]
			state.baseDir = prevBase
		}()

		result, err := state.vm.Run(string(src))
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}
