// Package gc implements Vyse's tricolor mark–sweep garbage collector:
// non-moving, non-generational, stop-the-world, triggered on allocation
// (spec section 4.4).
//
// The teacher (kristofer/smog) has no collector of its own — its objects
// ride on the host Go runtime's GC — so this package is grounded directly
// on spec.md's own description, plus the open-upvalue-scan idiom found in
// other_examples/26736883_nooga-paserati__pkg-vm-vm.go.go, generalized here
// into the gray-stack tracing loop.
package gc

import "github.com/kristofer/vyse/pkg/value"

const (
	// initialNextGC is the byte threshold for the very first collection.
	initialNextGC = 1 << 20 // 1 MiB
	// growthFactor is how much headroom next_gc gains after each sweep,
	// relative to the bytes still live.
	growthFactor = 0.5
)

// RootProvider supplies every GC root: the operand stack, call-frame
// closures, the open-upvalue chain, the globals table, and the primitive
// prototypes. The VM implements this and registers itself with SetRoots;
// it does not report the compiler's constants, and vm.Compile disables
// collection while compiling instead.
type RootProvider func(mark func(value.Value))

// Heap owns the intrusive object list, the byte accounting, the
// VM-scoped string intern table, and the extra-roots protection set. One
// Heap belongs to exactly one VM.
type Heap struct {
	all      value.Object
	bytes    int
	nextGC   int
	roots    RootProvider
	interned map[uint32][]*value.String
	extra    map[value.Object]int
	disabled int
	stress   bool

	gray []value.Object

	// Stats, exposed for tests and the host API's introspection.
	collections int
}

// NewHeap creates an empty heap with the default 1 MiB collection
// threshold.
func NewHeap() *Heap {
	return &Heap{
		nextGC:   initialNextGC,
		interned: make(map[uint32][]*value.String),
		extra:    make(map[value.Object]int),
	}
}

// SetRoots installs the callback the collector uses to find every root.
// Must be called before the first allocation.
func (h *Heap) SetRoots(r RootProvider) { h.roots = r }

// SetStress enables or disables stress mode, which forces a full
// collection on every single allocation — for fuzzing GC bugs in tests.
func (h *Heap) SetStress(on bool) { h.stress = on }

// Disable suspends automatic collection. Used to wrap multi-step internal
// allocations that must not reenter the collector partway through (for
// example, building a table whose keys are not all rooted yet). Disable
// calls nest; collection resumes once the matching number of Enable calls
// have been made.
func (h *Heap) Disable() { h.disabled++ }

// Enable reverses one Disable call.
func (h *Heap) Enable() {
	if h.disabled > 0 {
		h.disabled--
	}
}

// BytesAllocated reports current heap accounting, for tests and
// diagnostics.
func (h *Heap) BytesAllocated() int { return h.bytes }

// NextGC reports the byte threshold that will trigger the next collection.
func (h *Heap) NextGC() int { return h.nextGC }

// Collections reports how many full collections have run.
func (h *Heap) Collections() int { return h.collections }

// Register links a newly-constructed object into the heap's intrusive
// list and accounts its declared size, first running a collection if the
// byte threshold has been crossed (and the collector isn't disabled).
// Every heap object must be created through Register — "a single
// registration routine" per spec section 3's Lifecycle.
func (h *Heap) Register(o value.Object) value.Object {
	if h.disabled == 0 && (h.stress || h.bytes+o.Size() > h.nextGC) {
		h.Collect()
	}
	hdr := o.GCHeader()
	hdr.Next = h.all
	h.all = o
	h.bytes += o.Size()
	return o
}

// Intern returns the canonical *value.String for b, allocating and
// registering a new one only if no equal string exists yet. This is the
// sole route to creating a String, and it is what makes invariant I2
// (equal strings are pointer-equal) hold.
func (h *Heap) Intern(b []byte) *value.String {
	hash := value.HashBytes(b)
	for _, cand := range h.interned[hash] {
		if bytesEqual(cand.Bytes, b) {
			return cand
		}
	}
	s := value.NewString(b, hash)
	h.Register(s)
	h.interned[hash] = append(h.interned[hash], s)
	return s
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Protect pins o as an extra GC root until a matching Unprotect. Calls
// nest (refcounted), so a scoped GCLock and manual Protect/Unprotect pairs
// compose safely.
func (h *Heap) Protect(o value.Object) {
	if o == nil {
		return
	}
	h.extra[o]++
}

// Unprotect reverses one Protect call.
func (h *Heap) Unprotect(o value.Object) {
	if o == nil {
		return
	}
	if n := h.extra[o]; n <= 1 {
		delete(h.extra, o)
	} else {
		h.extra[o] = n - 1
	}
}

// Lock acquires a scoped GC lock on o: o is protected immediately, and the
// returned release function must be deferred to restore the pre-lock
// protection state. Mandatory release on every exit path, per spec
// section 5's "Scoped acquisition".
func (h *Heap) Lock(o value.Object) (release func()) {
	h.Protect(o)
	released := false
	return func() {
		if released {
			return
		}
		released = true
		h.Unprotect(o)
	}
}

// Collect runs one full stop-the-world mark–sweep cycle: mark every
// reachable object from every root, prune intern-table entries whose
// string died, sweep the rest of the heap, and grow next_gc.
func (h *Heap) Collect() {
	h.collections++
	h.markAll()
	h.pruneInternTable()
	h.sweep()
	h.nextGC = int(float64(h.bytes) * (1 + growthFactor))
	if h.nextGC < initialNextGC {
		h.nextGC = initialNextGC
	}
}

func (h *Heap) markAll() {
	h.gray = h.gray[:0]
	mark := func(v value.Value) {
		obj, ok := v.(value.Object)
		if !ok {
			return
		}
		hdr := obj.GCHeader()
		if hdr.Marked {
			return
		}
		hdr.Marked = true
		h.gray = append(h.gray, obj)
	}

	if h.roots != nil {
		h.roots(mark)
	}
	for o := range h.extra {
		mark(o)
	}

	for len(h.gray) > 0 {
		obj := h.gray[len(h.gray)-1]
		h.gray = h.gray[:len(h.gray)-1]
		obj.Trace(mark)
	}
}

// pruneInternTable removes any interned string whose backing object did
// not survive the mark phase, preventing the intern table from keeping a
// dangling reference alive, as spec section 4.4 requires.
func (h *Heap) pruneInternTable() {
	for hash, bucket := range h.interned {
		live := bucket[:0]
		for _, s := range bucket {
			if s.GCHeader().Marked {
				live = append(live, s)
			}
		}
		if len(live) == 0 {
			delete(h.interned, hash)
		} else {
			h.interned[hash] = live
		}
	}
}

func (h *Heap) sweep() {
	var prev value.Object
	cur := h.all
	for cur != nil {
		hdr := cur.GCHeader()
		next := hdr.Next
		if hdr.Marked {
			hdr.Marked = false
			prev = cur
		} else {
			h.bytes -= cur.Size()
			if prev == nil {
				h.all = next
			} else {
				prev.GCHeader().Next = next
			}
		}
		cur = next
	}
}
