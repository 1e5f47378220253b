package vm

// ObjKind discriminates the variants of a heap-allocated Obj. Only
// String exists in this core; the layout leaves room for future
// variants (function, closure) by adding another Kind and another
// payload field to Obj, the same way clox's object.h grows.
type ObjKind int

const (
	ObjKindString ObjKind = iota
)

// Obj is a heap-allocated record discriminated by Kind. Every live Obj
// is linked into the VM's intrusive object list via Next; that list is
// the only structure the VM walks to free objects at teardown.
type Obj struct {
	Kind ObjKind
	Next *Obj

	str *ObjString // valid iff Kind == ObjKindString
}

// ObjString is an immutable byte sequence plus a precomputed FNV-1a
// hash. Strings are interned (see VM.InternString): at most one live
// ObjString exists per distinct byte sequence, so string equality
// reduces to pointer identity.
type ObjString struct {
	Chars string
	Hash  uint32
}

// fnv1a32 computes the 32-bit FNV-1a hash of s, matching clox's
// hand-rolled hashString (src/object.c) -- four lines of xor-and-multiply
// with no stdlib hashing package earning its keep over them.
func fnv1a32(s string) uint32 {
	var hash uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		hash ^= uint32(s[i])
		hash *= 16777619
	}
	return hash
}

// newStringObj allocates a fresh, not-yet-interned ObjString wrapped in
// an Obj header. Callers must route through VM.InternString rather than
// call this directly, or the interning invariant (at most one live
// ObjString per distinct byte sequence) breaks.
func newStringObj(chars string) *Obj {
	return &Obj{
		Kind: ObjKindString,
		str:  &ObjString{Chars: chars, Hash: fnv1a32(chars)},
	}
}

// AsString returns the ObjString payload. Callers must check Kind ==
// ObjKindString first.
func (o *Obj) AsString() *ObjString {
	return o.str
}
