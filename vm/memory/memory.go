// Package memory implements the p-System's flat, byte-addressed VM
// memory: a single byte buffer plus the little/big-endian-aware word
// accessors the interpreter, RSP and bootstrap all share. The shape
// follows the teacher's emu/memory package (one backing buffer behind
// a small set of free functions) generalized from S/370's fixed
// 32-bit word layout to p-System's 16-bit, byte-addressed one.
package memory

import "fmt"

// Endian selects how 16-bit words are read from and written to the
// backing buffer. A new Memory starts as LittleEndian; only SetEndian
// changes it (vm/boot does not call it).
type Endian int

const (
	// LittleEndian matches the 68000/8086-era p-System images this
	// core targets; native words are stored low byte first.
	LittleEndian Endian = iota
	BigEndian
)

// Memory is the VM's flat address space. All addresses are byte
// offsets; word accesses must be even-aligned by convention (the
// p-System never emits an odd word address).
type Memory struct {
	buf    []byte
	endian Endian
}

// New allocates a zeroed memory of the given byte size.
func New(size uint32) *Memory {
	return &Memory{buf: make([]byte, size)}
}

// Size reports the memory's byte size.
func (m *Memory) Size() uint32 { return uint32(len(m.buf)) }

// SetEndian changes how word accessors interpret the backing buffer.
func (m *Memory) SetEndian(e Endian) { m.endian = e }

// Endian reports the current word interpretation.
func (m *Memory) Endian() Endian { return m.endian }

// Raw exposes the backing buffer for bulk operations (save/restore,
// disk block transfers). Callers must not retain the slice past a
// Memory resize, which this package never performs after New.
func (m *Memory) Raw() []byte { return m.buf }

func (m *Memory) checkAddr(addr uint32, n uint32) {
	if uint64(addr)+uint64(n) > uint64(len(m.buf)) {
		panic(fmt.Sprintf("memory: access at %#x length %d exceeds size %#x", addr, n, len(m.buf)))
	}
}

// flip swaps the byte order of a 16-bit value.
func flip(v uint16) uint16 {
	return (v >> 8) | (v << 8)
}

// rawWord/putRawWord read and write a word as little-endian bytes,
// whatever the Memory's Endian mode; flip decides whether the logical
// value needs a byte swap on top of that.
func (m *Memory) rawWord(addr uint32) uint16 {
	m.checkAddr(addr, 2)
	return uint16(m.buf[addr]) | uint16(m.buf[addr+1])<<8
}

func (m *Memory) putRawWord(addr uint32, v uint16) {
	m.checkAddr(addr, 2)
	m.buf[addr] = byte(v)
	m.buf[addr+1] = byte(v >> 8)
}

// Ldb loads an unsigned byte at addr+offset.
func (m *Memory) Ldb(addr uint32, offset int32) uint8 {
	a := uint32(int64(addr) + int64(offset))
	m.checkAddr(a, 1)
	return m.buf[a]
}

// Stb stores an unsigned byte at addr+offset.
func (m *Memory) Stb(addr uint32, offset int32, v uint8) {
	a := uint32(int64(addr) + int64(offset))
	m.checkAddr(a, 1)
	m.buf[a] = v
}

// Ldw loads a word, applying the VM's configured endian flip.
func (m *Memory) Ldw(addr uint32) uint16 {
	v := m.rawWord(addr)
	if m.endian == BigEndian {
		v = flip(v)
	}
	return v
}

// Ldsw loads a sign-extended word.
func (m *Memory) Ldsw(addr uint32) int16 {
	return int16(m.Ldw(addr))
}

// LdwFlip loads a word, optionally flipping regardless of the VM's
// configured endianness. Constant-pool and segment-header loads use
// this during bootstrap, before the VM's endian mode is settled.
func (m *Memory) LdwFlip(addr uint32, doFlip bool) uint16 {
	v := m.rawWord(addr)
	if doFlip {
		v = flip(v)
	}
	return v
}

// LdswFlip is the signed counterpart of LdwFlip.
func (m *Memory) LdswFlip(addr uint32, doFlip bool) int16 {
	return int16(m.LdwFlip(addr, doFlip))
}

// Stw stores a word, applying the VM's configured endian flip.
func (m *Memory) Stw(addr uint32, v uint16) {
	if m.endian == BigEndian {
		v = flip(v)
	}
	m.putRawWord(addr, v)
}

// Bytes returns a direct slice of n bytes at addr, for bulk transfers
// (disk block I/O, screen blits). The slice aliases the backing buffer.
func (m *Memory) Bytes(addr uint32, n uint32) []byte {
	m.checkAddr(addr, n)
	return m.buf[addr : addr+n]
}

// Words returns n words starting at addr as a freshly decoded slice
// (not an alias — word decoding may require endian flipping).
func (m *Memory) Words(addr uint32, n uint32) []uint16 {
	out := make([]uint16, n)
	for i := uint32(0); i < n; i++ {
		out[i] = m.Ldw(addr + i*2)
	}
	return out
}

// PutWords stores a slice of words starting at addr.
func (m *Memory) PutWords(addr uint32, words []uint16) {
	for i, w := range words {
		m.Stw(addr+uint32(i)*2, w)
	}
}

// StackWords returns n words relative to an arbitrary stack-pointer
// value, without touching sp itself.
func (m *Memory) StackWords(sp uint32, offset int32, n uint32) []uint16 {
	return m.Words(uint32(int64(sp)+int64(offset)), n)
}

// Push decrements sp by 2 and stores v, returning the new sp.
func (m *Memory) Push(sp uint32, v uint16) uint32 {
	sp -= 2
	m.Stw(sp, v)
	return sp
}

// Pop loads the word at sp and returns it with sp advanced by 2.
func (m *Memory) Pop(sp uint32) (uint16, uint32) {
	v := m.Ldw(sp)
	return v, sp + 2
}

// SPop is the sign-extended counterpart of Pop.
func (m *Memory) SPop(sp uint32) (int16, uint32) {
	v, nsp := m.Pop(sp)
	return int16(v), nsp
}

// PushN reserves n words of stack space without initializing them.
func (m *Memory) PushN(sp uint32, n uint32) uint32 {
	return sp - n*2
}

// PopN discards n words of stack space.
func (m *Memory) PopN(sp uint32, n uint32) uint32 {
	return sp + n*2
}
