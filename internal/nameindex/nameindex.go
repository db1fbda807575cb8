package nameindex

import "github.com/hupe1980/gridstore/internal/hash"

// MinCapacity is the smallest table an Index is created with.
const MinCapacity = 37

type slot struct {
	active bool
	value  int // id+1; 0 means never occupied
	key    uint64
}

// Index maps names to non-negative ids within one namespace.
type Index struct {
	slots []slot
	count int
}

// New creates an Index sized for about hint entries.
func New(hint int) *Index {
	size := max(hint*4/3, MinCapacity)
	return &Index{slots: make([]slot, nextPrime(size))}
}

// Len returns the number of live entries.
func (x *Index) Len() int {
	return x.count
}

// Cap returns the current table capacity (always prime).
func (x *Index) Cap() int {
	return len(x.slots)
}

// Insert associates name with id. An existing entry for name is overwritten.
// It panics if id is negative.
func (x *Index) Insert(name string, id int) {
	if id < 0 {
		panic("nameindex: negative id")
	}
	x.insertKey(hash.Name(name), id+1)
}

// Get returns the id stored for name.
func (x *Index) Get(name string) (int, bool) {
	if x.count == 0 {
		return 0, false
	}
	pos, ok := x.find(hash.Name(name))
	if !ok {
		return 0, false
	}
	return x.slots[pos].value - 1, true
}

// Remove deletes name and returns the id it was mapped to. The slot becomes
// a tombstone: inactive, but keeping its value so later probes continue past it.
func (x *Index) Remove(name string) (int, bool) {
	pos, ok := x.find(hash.Name(name))
	if !ok {
		return 0, false
	}
	x.slots[pos].active = false
	x.count--
	return x.slots[pos].value - 1, true
}

// Range calls fn for every live entry until fn returns false. Names are not
// stored, so only hashes and ids are reported.
func (x *Index) Range(fn func(key uint64, id int) bool) {
	for _, s := range x.slots {
		if s.active && !fn(s.key, s.value-1) {
			return
		}
	}
}

func (x *Index) probe(key uint64) (start, step int) {
	n := uint64(len(x.slots))
	return int(key % n), int(key%(n-2)) + 1
}

// find returns the slot holding key. Probing stops at the first
// never-occupied slot; tombstones are skipped.
func (x *Index) find(key uint64) (int, bool) {
	n := len(x.slots)
	pos, step := x.probe(key)
	for range n {
		s := &x.slots[pos]
		if s.active {
			if s.key == key {
				return pos, true
			}
		} else if s.value == 0 {
			return 0, false
		}
		pos = (pos + step) % n
	}
	return 0, false
}

func (x *Index) insertKey(key uint64, value int) {
	if pos, ok := x.find(key); ok {
		x.slots[pos].value = value
		return
	}

	if (x.count+1)*4 > len(x.slots)*3 {
		x.rehash()
	}

	for !x.place(key, value) {
		// Only reachable when tombstones have filled every empty slot.
		x.rehash()
	}
}

// place occupies the first inactive slot on key's probe sequence. The caller
// guarantees key is not already present.
func (x *Index) place(key uint64, value int) bool {
	n := len(x.slots)
	pos, step := x.probe(key)
	for range n {
		s := &x.slots[pos]
		if !s.active {
			*s = slot{active: true, value: value, key: key}
			x.count++
			return true
		}
		pos = (pos + step) % n
	}
	return false
}

func (x *Index) rehash() {
	old := x.slots
	x.slots = make([]slot, nextPrime(2*len(old)))
	x.count = 0
	for _, s := range old {
		if s.active {
			x.place(s.key, s.value)
		}
	}
}
