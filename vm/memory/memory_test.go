package memory

import "testing"

func TestWordRoundTrip(t *testing.T) {
	m := New(16)
	m.Stw(0, 0x1234)
	if got := m.Ldw(0); got != 0x1234 {
		t.Errorf("Ldw() = %#x, want %#x", got, 0x1234)
	}
}

func TestLdswSignExtends(t *testing.T) {
	m := New(16)
	m.Stw(0, 0xffff)
	if got := m.Ldsw(0); got != -1 {
		t.Errorf("Ldsw() = %d, want -1", got)
	}
}

func TestByteAccess(t *testing.T) {
	m := New(16)
	m.Stb(4, 1, 0xab)
	if got := m.Ldb(4, 1); got != 0xab {
		t.Errorf("Ldb() = %#x, want 0xab", got)
	}
}

func TestBigEndianFlip(t *testing.T) {
	m := New(16)
	m.SetEndian(BigEndian)
	m.Stw(0, 0x1234)
	raw := m.Bytes(0, 2)
	if raw[0] != 0x12 || raw[1] != 0x34 {
		t.Errorf("raw bytes = %#x %#x, want 0x12 0x34", raw[0], raw[1])
	}
	if got := m.Ldw(0); got != 0x1234 {
		t.Errorf("Ldw() after flip round trip = %#x, want %#x", got, 0x1234)
	}
}

func TestLdwFlipIgnoresVMEndian(t *testing.T) {
	m := New(16) // little-endian VM
	m.putRawWord(0, 0x1234)
	if got := m.LdwFlip(0, true); got != 0x3412 {
		t.Errorf("LdwFlip(true) = %#x, want 0x3412", got)
	}
	if got := m.LdwFlip(0, false); got != 0x1234 {
		t.Errorf("LdwFlip(false) = %#x, want 0x1234", got)
	}
}

func TestPushPop(t *testing.T) {
	m := New(64)
	sp := uint32(64)
	sp = m.Push(sp, 42)
	sp = m.Push(sp, 7)
	var v uint16
	v, sp = m.Pop(sp)
	if v != 7 {
		t.Fatalf("first Pop() = %d, want 7", v)
	}
	v, sp = m.Pop(sp)
	if v != 42 {
		t.Fatalf("second Pop() = %d, want 42", v)
	}
	if sp != 64 {
		t.Fatalf("sp after draining stack = %#x, want %#x", sp, 64)
	}
}

func TestOutOfRangeAccessPanics(t *testing.T) {
	m := New(4)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on out-of-range access")
		}
	}()
	m.Ldw(100)
}
