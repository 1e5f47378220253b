package vm

// Table is an open-addressed, linear-probe hash map keyed by interned
// string identity, matching clox's table.h/table.c. It backs both the
// VM's string-intern set (value always Nil, used as a set) and its
// global-variable table (value is the binding). Keys are the
// heap-allocated *Obj wrapping each interned ObjString, not a bare
// ObjString, so the table can hand back the same reference the VM
// already pushes onto the stack and links into its object list.
//
// A slot is empty (Key == nil, Value is the zero Value), a tombstone
// (Key == nil, Value.Kind == KindBool && Value.Bool == true), or
// occupied. Deletion writes a tombstone so probe chains past it stay
// intact; insertion is free to reuse a tombstone slot.
type Table struct {
	count   int // occupied slots plus tombstones; resizing drops the tombstones
	entries []entry
}

type entry struct {
	Key   *Obj
	Value Value
}

const tableMaxLoad = 0.75

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{}
}

func tombstone() Value { return Value{Kind: KindBool, Bool: true} }

func isTombstone(e *entry) bool {
	return e.Key == nil && e.Value.Kind == KindBool && e.Value.Bool
}

// findEntry implements the corrected probe sequence spec.md §4.3 calls
// out by name: on an empty slot, return it (or an earlier tombstone, if
// one was seen); on a tombstone, remember the first one seen and keep
// probing; on a matching key, return it. Capacity must be a power of
// two (or any value >= 1) greater than zero.
func findEntry(entries []entry, key *Obj) *entry {
	capacity := uint32(len(entries))
	index := key.AsString().Hash % capacity
	var tombstoneSlot *entry

	for {
		e := &entries[index]
		if e.Key == nil {
			if isTombstone(e) {
				if tombstoneSlot == nil {
					tombstoneSlot = e
				}
			} else {
				if tombstoneSlot != nil {
					return tombstoneSlot
				}
				return e
			}
		} else if e.Key == key {
			return e
		}
		index = (index + 1) % capacity
	}
}

func (t *Table) adjustCapacity(capacity int) {
	entries := make([]entry, capacity)

	t.count = 0
	for i := range t.entries {
		old := &t.entries[i]
		if old.Key == nil {
			continue
		}
		dst := findEntry(entries, old.Key)
		dst.Key = old.Key
		dst.Value = old.Value
		t.count++
	}

	t.entries = entries
}

// Set inserts or overwrites the value for key. Returns true if key was
// not already present (a fresh slot or a reused tombstone), false if an
// existing entry was overwritten.
func (t *Table) Set(key *Obj, value Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*tableMaxLoad {
		capacity := 8
		if len(t.entries) > 0 {
			capacity = len(t.entries) * 2
		}
		t.adjustCapacity(capacity)
	}

	e := findEntry(t.entries, key)
	isNewKey := e.Key == nil
	if isNewKey && !isTombstone(e) {
		t.count++
	}

	e.Key = key
	e.Value = value
	return isNewKey
}

// Get looks up key. The bool reports whether it was found.
func (t *Table) Get(key *Obj) (Value, bool) {
	if len(t.entries) == 0 {
		return Value{}, false
	}
	e := findEntry(t.entries, key)
	if e.Key == nil {
		return Value{}, false
	}
	return e.Value, true
}

// Delete writes a tombstone over key's slot, if present. Returns
// whether the key was present.
func (t *Table) Delete(key *Obj) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := findEntry(t.entries, key)
	if e.Key == nil {
		return false
	}
	e.Key = nil
	e.Value = tombstone()
	return true
}

// FindString probes for an already-interned string by raw bytes and
// hash, without allocating an Obj to compare against. This is what
// makes interning work: the VM computes (chars, hash) for a candidate
// string before deciding whether to allocate it at all.
func (t *Table) FindString(chars string, hash uint32) *Obj {
	if len(t.entries) == 0 {
		return nil
	}

	capacity := uint32(len(t.entries))
	index := hash % capacity
	for {
		e := &t.entries[index]
		if e.Key == nil {
			if !isTombstone(e) {
				return nil
			}
		} else if s := e.Key.AsString(); s.Hash == hash && s.Chars == chars {
			return e.Key
		}
		index = (index + 1) % capacity
	}
}
