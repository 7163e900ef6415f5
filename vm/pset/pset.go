// Package pset implements p-System SET arithmetic: a variable-width
// bitset stored in VM memory as a length word N (0 <= N <= 256)
// followed by N data words, where bit k of data word i represents
// element i*16+k. There is no teacher analogue for this data type —
// rcornwell-S370 has no variable-length bitset — so the package is
// written in the teacher's "small package of free functions over a
// shared memory" style (see vm/memory) while the algorithms themselves
// follow the reference p-System's psys_set.c bit for bit.
package pset

import (
	"fmt"

	"github.com/ucsd-psys-vm/psys/vm/layout"
	"github.com/ucsd-psys-vm/psys/vm/memory"
)

// ErrTooLarge is returned when an operation would need more than
// layout.MaxSetSize data words to hold its result.
var ErrTooLarge = fmt.Errorf("set exceeds %d words", layout.MaxSetSize)

// Len reads a set's length word at addr: its data-word count, not the
// number of elements in the set.
func Len(m *memory.Memory, addr uint32) int {
	return int(m.Ldw(addr))
}

// Words reports the total size in words (length word plus data) of
// the set stored at addr.
func Words(m *memory.Memory, addr uint32) uint32 {
	return uint32(Len(m, addr)) + 1
}

// data returns a copy of the set's data words (without the length word).
func data(m *memory.Memory, addr uint32) []uint16 {
	n := Len(m, addr)
	if n == 0 {
		return nil
	}
	return m.Words(addr+2, uint32(n))
}

// store writes a length-prefixed set into memory at addr, trimming
// trailing all-zero words so the stored length stays minimal — this
// matches the reference implementation's optional trim pass and keeps
// repeated unions from growing the representation unnecessarily.
func store(m *memory.Memory, addr uint32, words []uint16) error {
	n := len(words)
	for n > 0 && words[n-1] == 0 {
		n--
	}
	if n > layout.MaxSetSize {
		return ErrTooLarge
	}
	m.Stw(addr, uint16(n))
	m.PutWords(addr+2, words[:n])
	return nil
}

func pad(a, b []uint16) ([]uint16, []uint16) {
	if len(a) < len(b) {
		p := make([]uint16, len(b))
		copy(p, a)
		a = p
	} else if len(b) < len(a) {
		p := make([]uint16, len(a))
		copy(p, b)
		b = p
	}
	return a, b
}

// Union computes out := a | b.
func Union(m *memory.Memory, out, a, b uint32) error {
	da, db := pad(data(m, a), data(m, b))
	r := make([]uint16, len(da))
	for i := range r {
		r[i] = da[i] | db[i]
	}
	return store(m, out, r)
}

// Intersection computes out := a & b.
func Intersection(m *memory.Memory, out, a, b uint32) error {
	da, db := pad(data(m, a), data(m, b))
	r := make([]uint16, len(da))
	for i := range r {
		r[i] = da[i] & db[i]
	}
	return store(m, out, r)
}

// Difference computes out := a &^ b.
func Difference(m *memory.Memory, out, a, b uint32) error {
	da, db := pad(data(m, a), data(m, b))
	r := make([]uint16, len(da))
	for i := range r {
		r[i] = da[i] &^ db[i]
	}
	return store(m, out, r)
}

// IsEqual reports whether the sets at a and b contain the same elements.
func IsEqual(m *memory.Memory, a, b uint32) bool {
	da, db := pad(data(m, a), data(m, b))
	for i := range da {
		if da[i] != db[i] {
			return false
		}
	}
	return true
}

// IsSubset reports whether every element of a is also in b.
func IsSubset(m *memory.Memory, a, b uint32) bool {
	da, db := pad(data(m, a), data(m, b))
	for i := range da {
		if da[i]&^db[i] != 0 {
			return false
		}
	}
	return true
}

// IsSuperset reports whether every element of b is also in a.
func IsSuperset(m *memory.Memory, a, b uint32) bool {
	return IsSubset(m, b, a)
}

// In reports whether element x is present in the set at addr.
func In(m *memory.Memory, addr uint32, x uint16) bool {
	i := int(x / 16)
	if i >= Len(m, addr) {
		return false
	}
	w := m.Ldw(addr + 2 + uint32(i)*2)
	return w&(1<<(x%16)) != 0
}

// FromSubrange builds out := {lo, lo+1, ..., hi} (empty if hi < lo).
func FromSubrange(m *memory.Memory, out uint32, lo, hi uint16) error {
	if hi < lo {
		return store(m, out, nil)
	}
	n := int(hi)/16 + 1
	r := make([]uint16, n)
	for x := lo; ; x++ {
		r[x/16] |= 1 << (x % 16)
		if x == hi {
			break
		}
	}
	return store(m, out, r)
}

// Adj resizes the set at out to exactly n data words in place,
// preserving existing content up to min(oldLen, n) and zero-filling
// any newly extended words. Unlike store, it does not trim trailing
// zero words: ADJ n must leave the set at exactly n words, even if
// that includes trailing zeros.
func Adj(m *memory.Memory, out uint32, n uint16) error {
	if int(n) > layout.MaxSetSize {
		return ErrTooLarge
	}
	d := data(m, out)
	r := make([]uint16, n)
	copy(r, d)
	m.Stw(out, n)
	m.PutWords(out+2, r)
	return nil
}

// Pop reads and removes a set from the stack top, returning its
// element data and the new stack pointer.
func Pop(m *memory.Memory, sp uint32) ([]uint16, uint32) {
	n := Len(m, sp)
	words := m.Words(sp, uint32(n)+1)
	return words[1:], sp + (uint32(n)+1)*2
}

// Push writes a length-prefixed set onto the stack (sp decreasing) and
// returns the new stack pointer.
func Push(m *memory.Memory, sp uint32, elems []uint16) (uint32, error) {
	n := len(elems)
	for n > 0 && elems[n-1] == 0 {
		n--
	}
	if n > layout.MaxSetSize {
		return sp, ErrTooLarge
	}
	sp -= uint32(n+1) * 2
	m.Stw(sp, uint16(n))
	m.PutWords(sp+2, elems[:n])
	return sp, nil
}
