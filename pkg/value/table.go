package value

import (
	"math"
	"reflect"
)

// DefaultTableCapacity is the initial entry-array size for a new Table.
// Must stay a power of two: find below uses `hash & (cap-1)` in
// place of a modulo.
const DefaultTableCapacity = 16

// TableGrowthFactor is the multiplier applied to capacity when the load
// factor threshold is crossed.
const TableGrowthFactor = 2

// TableLoadFactor is the (live + tombstone) / capacity ratio above which
// the table grows (spec section 3, grounded on
// original_source/lang/include/vyse/table.hpp's DefaultCapacity/
// GrowthFactor/LoadFactor constants).
const TableLoadFactor = 0.85

// tableEntry is one slot in the open-addressed entry array. An empty slot
// has a Nil key; a tombstone (removed entry) has an Undefined key so probe
// sequences are never broken (spec invariant I3).
type tableEntry struct {
	key   Value
	val   Value
	hash  uint32
	probe int // Robin-Hood probe distance from the entry's ideal slot
}

// Table is Vyse's open-addressed hash map with Robin-Hood insertion and a
// single-prototype delegation chain for method/field lookup fallthrough.
type Table struct {
	Header
	entries    []tableEntry
	numEntries int // live entries + tombstones
	tombstones int
	proto      *Table
}

// NewTable allocates an empty table with the default capacity.
func NewTable() *Table {
	return &Table{
		Header:  Header{Kind: KindTable},
		entries: make([]tableEntry, DefaultTableCapacity),
	}
}

func (t *Table) GCHeader() *Header { return &t.Header }
func (t *Table) TypeName() string  { return "table" }
func (t *Table) Size() int         { return len(t.entries)*48 + 64 }

// Trace visits every live key and value, plus the prototype link.
func (t *Table) Trace(mark func(Value)) {
	for i := range t.entries {
		e := &t.entries[i]
		if IsNil(e.key) || IsUndefined(e.key) {
			continue
		}
		mark(e.key)
		mark(e.val)
	}
	if t.proto != nil {
		mark(t.proto)
	}
}

// Proto returns the table's prototype, or nil if it has none.
func (t *Table) Proto() *Table { return t.proto }

// SetProto assigns proto as t's prototype. It refuses (returning false,
// leaving t unchanged) if doing so would introduce a cycle in the
// prototype chain, per spec invariant on acyclic prototypes.
func (t *Table) SetProto(proto *Table) bool {
	for p := proto; p != nil; p = p.proto {
		if p == t {
			return false
		}
	}
	t.proto = proto
	return true
}

func hashValue(v Value) uint32 {
	switch x := v.(type) {
	case float64:
		bits := math.Float64bits(x)
		return uint32(bits) ^ uint32(bits>>32)
	case bool:
		if x {
			return 1
		}
		return 0
	case *String:
		return x.hash
	default:
		// Identity hash for every other object: stable for the object's
		// lifetime, which is all Robin-Hood probing needs.
		return identityHash(v)
	}
}

// identityHash hashes a heap object's pointer address. Valid because the
// GC is non-moving: pointer identity (and therefore this hash) is stable
// across collections.
func identityHash(v Value) uint32 {
	p := reflect.ValueOf(v).Pointer()
	h := uint64(p)
	return uint32(h) ^ uint32(h>>32)
}

// Length reports the number of live (non-tombstone) entries, per
// invariant I3: live = num_entries - num_tombstones.
func (t *Table) Length() int {
	return t.numEntries - t.tombstones
}

// Get returns the value stored at key, walking the prototype chain if the
// key is absent locally, or Nil{} (ok=false) if not found anywhere in the
// chain.
func (t *Table) Get(key Value) (Value, bool) {
	for tbl := t; tbl != nil; tbl = tbl.proto {
		if v, ok := tbl.getLocal(key); ok {
			return v, true
		}
	}
	return Nil{}, false
}

func (t *Table) getLocal(key Value) (Value, bool) {
	if IsNil(key) || IsUndefined(key) {
		return Nil{}, false
	}
	idx, found := t.find(key, hashValue(key))
	if !found {
		return Nil{}, false
	}
	return t.entries[idx].val, true
}

// Set stores table[key] = val directly on t (never on a prototype),
// growing the backing array first if needed. Returns true if a new entry
// was created.
func (t *Table) Set(key Value, val Value) bool {
	if IsNil(key) || IsUndefined(key) {
		return false
	}
	t.ensureCapacity()
	h := hashValue(key)
	if idx, found := t.find(key, h); found {
		t.entries[idx].val = val
		return false
	}
	t.insert(key, val, h)
	return true
}

// Remove deletes key from t, leaving a tombstone, and reports whether the
// key was present.
func (t *Table) Remove(key Value) bool {
	if IsNil(key) || IsUndefined(key) {
		return false
	}
	idx, found := t.find(key, hashValue(key))
	if !found {
		return false
	}
	t.entries[idx] = tableEntry{key: Undefined{}, val: Nil{}}
	t.tombstones++
	return true
}

// find performs the Robin-Hood / linear probe search described in
// spec section 3 and original_source's Table::search_entry: walk forward
// from the ideal slot, returning the occupied slot with a matching key if
// one exists, or false if the key is absent.
func (t *Table) find(key Value, h uint32) (int, bool) {
	mask := uint32(len(t.entries) - 1)
	idx := h & mask
	for {
		e := &t.entries[idx]
		if IsNil(e.key) {
			return 0, false
		}
		if !IsUndefined(e.key) && e.hash == h && Equal(e.key, key) {
			return int(idx), true
		}
		idx = (idx + 1) & mask
	}
}

// insert performs Robin-Hood insertion: the new entry steals the slot of
// any resident whose probe distance is smaller, and that displaced entry
// is then reinserted starting from the next slot, bubbling outward until
// every entry settles or an empty/tombstone slot is found.
func (t *Table) insert(key, val Value, h uint32) {
	mask := uint32(len(t.entries) - 1)
	idx := h & mask
	incoming := tableEntry{key: key, val: val, hash: h, probe: 0}
	for {
		e := &t.entries[idx]
		if IsNil(e.key) || IsUndefined(e.key) {
			wasTombstone := IsUndefined(e.key)
			*e = incoming
			if wasTombstone {
				t.tombstones--
			} else {
				t.numEntries++
			}
			return
		}
		if e.probe < incoming.probe {
			incoming, *e = *e, incoming
		}
		incoming.probe++
		idx = (idx + 1) & mask
	}
}

func (t *Table) ensureCapacity() {
	load := float64(t.numEntries+1) / float64(len(t.entries))
	if load <= TableLoadFactor {
		return
	}
	old := t.entries
	t.entries = make([]tableEntry, len(old)*TableGrowthFactor)
	t.numEntries = 0
	t.tombstones = 0
	for _, e := range old {
		if IsNil(e.key) || IsUndefined(e.key) {
			continue
		}
		t.insert(e.key, e.val, e.hash)
	}
}

// FindInternedString looks up a String already stored as a key anywhere in
// this table's own entries (not the prototype chain) with the given
// content hash and bytes. It exists for symmetry with original_source's
// Table::find_string; nothing in the runtime calls it (the intern table
// in pkg/gc keeps its own map, and globals lookups go through Get).
func (t *Table) FindInternedString(b []byte, hash uint32) *String {
	for i := range t.entries {
		e := &t.entries[i]
		s, ok := e.key.(*String)
		if !ok || s.hash != hash || len(s.Bytes) != len(b) {
			continue
		}
		match := true
		for j := range b {
			if s.Bytes[j] != b[j] {
				match = false
				break
			}
		}
		if match {
			return s
		}
	}
	return nil
}
