package value

// String is an immutable, interned UTF-8 byte buffer. Every String that
// the runtime produces is deduplicated by content in the VM's intern
// table (see pkg/gc), so two equal strings are always the same pointer
// (invariant I2).
type String struct {
	Header
	Bytes []byte
	hash  uint32
}

// fnvOffset and fnvPrime are the 32-bit FNV-1a constants.
const (
	fnvOffset uint32 = 2166136261
	fnvPrime  uint32 = 16777619
)

// HashBytes computes the FNV-1a hash over at most the first 32 bytes of b,
// matching spec section 3's "cached hash (FNV-1a over first 32 bytes)".
func HashBytes(b []byte) uint32 {
	n := len(b)
	if n > 32 {
		n = 32
	}
	h := fnvOffset
	for i := 0; i < n; i++ {
		h ^= uint32(b[i])
		h *= fnvPrime
	}
	return h
}

// NewString allocates a String wrapping a private copy of b with a
// precomputed hash. Callers that want interning must go through the VM's
// intern table (pkg/gc.Heap.Intern) rather than calling this directly,
// since an uninterned String would violate invariant I2.
func NewString(b []byte, hash uint32) *String {
	owned := make([]byte, len(b))
	copy(owned, b)
	return &String{
		Header: Header{Kind: KindString},
		Bytes:  owned,
		hash:   hash,
	}
}

// Hash returns the string's cached hash.
func (s *String) Hash() uint32 { return s.hash }

// Len returns the string's byte length.
func (s *String) Len() int { return len(s.Bytes) }

// Str returns the string content as a Go string.
func (s *String) Str() string { return string(s.Bytes) }

func (s *String) GCHeader() *Header       { return &s.Header }
func (s *String) Trace(mark func(Value))  {}
func (s *String) TypeName() string        { return "string" }
func (s *String) Size() int               { return len(s.Bytes) + 32 }
func (s *String) String() string          { return s.Str() }
