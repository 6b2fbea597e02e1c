package stdlib

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/vyse/pkg/value"
	"github.com/kristofer/vyse/pkg/vm"
)

func newVM(t *testing.T) *vm.VM {
	t.Helper()
	v := vm.New()
	Load(v)
	return v
}

func TestPrintWritesToInstalledSink(t *testing.T) {
	v := newVM(t)
	var out string
	v.SetPrint(func(s string) { out += s })
	_, err := v.Run(`print("hi", 42);`)
	require.NoError(t, err)
	assert.Equal(t, "hi 42\n", out)
}

func TestAssertPassesThroughTruthyValue(t *testing.T) {
	v := newVM(t)
	result, err := v.Run(`return assert(1 + 1 == 2);`)
	require.NoError(t, err)
	assert.Equal(t, true, result)
}

func TestAssertRaisesOnFalsy(t *testing.T) {
	v := newVM(t)
	_, err := v.Run(`return assert(false, "boom");`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestSetProtoAndGetProto(t *testing.T) {
	v := newVM(t)
	result, err := v.Run(`
		const base = {greeting: "hi"};
		const derived = {};
		setproto(derived, base);
		return derived.greeting;
	`)
	require.NoError(t, err)
	s, ok := result.(*value.String)
	require.True(t, ok)
	assert.Equal(t, "hi", s.Str())

	cyclic, err := v.Run(`
		const a = {};
		const b = {};
		setproto(b, a);
		return setproto(a, b);
	`)
	require.Error(t, err)
	assert.Nil(t, cyclic)
}

func TestNumberMethods(t *testing.T) {
	v := newVM(t)
	result, err := v.Run(`return (-4):abs() + (2):pow(3);`)
	require.NoError(t, err)
	assert.Equal(t, 12.0, result)
}

func TestStringMethods(t *testing.T) {
	v := newVM(t)
	result, err := v.Run(`return ("  Hello World  "):trim():lower();`)
	require.NoError(t, err)
	s, ok := result.(*value.String)
	require.True(t, ok)
	assert.Equal(t, "hello world", s.Str())
}

func TestListSortAndJoin(t *testing.T) {
	v := newVM(t)
	result, err := v.Run(`
		const a = [3, 1, 2];
		return a:sort():join(",");
	`)
	require.NoError(t, err)
	s, ok := result.(*value.String)
	require.True(t, ok)
	assert.Equal(t, "1,2,3", s.Str())
}

func TestListMapAndFilter(t *testing.T) {
	v := newVM(t)
	result, err := v.Run(`
		const a = [1, 2, 3, 4];
		const doubled = a:map(fn(x) { return x * 2; });
		const evens = doubled:filter(fn(x) { return x % 4 == 0; });
		return #evens;
	`)
	require.NoError(t, err)
	assert.Equal(t, 2.0, result)
}

func TestFilesystemLoaderLoadsModuleByPath(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "greeting.vy"), []byte(`return "hello from module";`), 0o644)
	require.NoError(t, err)

	v := newVM(t)
	loadersVal, _ := v.Globals().Get(v.InternString("__loaders__"))
	loaders := loadersVal.(*value.List)
	fsLoader, _ := loaders.Get(2)
	result, err := v.Call(fsLoader, []value.Value{v.InternString(filepath.Join(dir, "greeting"))})
	require.NoError(t, err)
	s, ok := result.(*value.String)
	require.True(t, ok)
	assert.Equal(t, "hello from module", s.Str())
}

func TestModuleCacheShortCircuitsSecondImport(t *testing.T) {
	dir := t.TempDir()
	counterPath := filepath.Join(dir, "counted.vy")
	err := os.WriteFile(counterPath, []byte(`return 1;`), 0o644)
	require.NoError(t, err)

	v := newVM(t)
	result, err := v.Run(`return import("` + filepath.Join(dir, "counted") + `");`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, result)

	cacheVal, _ := v.Globals().Get(v.InternString("__modulecache__"))
	cache := cacheVal.(*value.Table)
	cached, ok := cache.Get(v.InternString(filepath.Join(dir, "counted")))
	require.True(t, ok)
	assert.Equal(t, 1.0, cached)

	// With the file gone, only the cache can satisfy a second import.
	require.NoError(t, os.Remove(counterPath))
	second, err := v.Run(`return import("` + filepath.Join(dir, "counted") + `");`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, second)
}
