package sched

import (
	"testing"

	"github.com/ucsd-psys-vm/psys/vm/layout"
	"github.com/ucsd-psys-vm/psys/vm/memory"
)

func newTIB(m *memory.Memory, addr uint32, priority uint8) uint32 {
	m.Stw(addr+layout.TIBFlagsPrior, uint16(priority))
	return addr
}

func TestPutQueueTiesGoToTail(t *testing.T) {
	m := memory.New(256)
	a := newTIB(m, 0x10, 5)
	b := newTIB(m, 0x20, 5)
	c := newTIB(m, 0x30, 5)

	head := uint32(layout.NIL)
	head = putQueue(m, head, a)
	head = putQueue(m, head, b)
	head = putQueue(m, head, c)

	if head != a {
		t.Fatalf("head = %#x, want a (%#x)", head, a)
	}
	if next := uint32(m.Ldw(a + layout.TIBWaitQ)); next != b {
		t.Fatalf("a.next = %#x, want b (%#x)", next, b)
	}
	if next := uint32(m.Ldw(b + layout.TIBWaitQ)); next != c {
		t.Fatalf("b.next = %#x, want c (%#x)", next, c)
	}
}

func TestPutQueueHigherPriorityGoesFirst(t *testing.T) {
	m := memory.New(256)
	low := newTIB(m, 0x10, 1)
	high := newTIB(m, 0x20, 9)

	head := uint32(layout.NIL)
	head = putQueue(m, head, low)
	head = putQueue(m, head, high)

	if head != high {
		t.Fatalf("head = %#x, want high-priority task %#x", head, high)
	}
}

func TestSignalWakesWaiter(t *testing.T) {
	m := memory.New(256)
	const sem = 0x40
	s := New(m)

	waiter := newTIB(m, 0x10, 3)
	s.CurTask = waiter
	if !s.Wait(sem) {
		t.Fatalf("Wait() on empty semaphore should block")
	}
	if count := int16(m.Ldw(sem + layout.SemCount)); count != -1 {
		t.Fatalf("sem count after Wait = %d, want -1", count)
	}

	s.CurTask = 0
	switched := s.Signal(sem, true)
	if !switched {
		t.Fatalf("Signal() waking a higher-priority task should request a switch")
	}
	if head := uint32(m.Ldw(sem + layout.SemTIB)); head != layout.NIL {
		t.Fatalf("sem wait queue should be empty after Signal, got %#x", head)
	}
	if s.ReadyQ != waiter {
		t.Fatalf("ReadyQ = %#x, want waiter %#x", s.ReadyQ, waiter)
	}
}

func TestSignalWithNoWaitersIncrementsCount(t *testing.T) {
	m := memory.New(256)
	const sem = 0x40
	s := New(m)
	s.Signal(sem, false)
	if count := int16(m.Ldw(sem + layout.SemCount)); count != 1 {
		t.Fatalf("sem count = %d, want 1", count)
	}
}

func TestTaskSwitchSavesAndRestores(t *testing.T) {
	m := memory.New(256)
	s := New(m)
	a := newTIB(m, 0x10, 5)
	b := newTIB(m, 0x20, 5)
	s.CurTask = a
	s.ReadyQ = putQueue(m, layout.NIL, b)

	out := RegisterState{SP: 0x100, MP: 0x200, IPC: 0x300, Erec: 0x400}
	in := s.TaskSwitch(out)

	if s.CurTask != b {
		t.Fatalf("CurTask = %#x, want b (%#x)", s.CurTask, b)
	}
	saved := LoadFromTIB(m, a)
	if saved != out {
		t.Fatalf("saved state = %+v, want %+v", saved, out)
	}
	_ = in
}

// TestTaskSwitchLeavesRunningTaskOnReadyQ exercises the invariant that
// the running task is always ReadyQ's head: switching onto a task must
// not unlink it.
func TestTaskSwitchLeavesRunningTaskOnReadyQ(t *testing.T) {
	m := memory.New(256)
	s := New(m)
	b := newTIB(m, 0x20, 5)
	s.ReadyQ = putQueue(m, layout.NIL, b)

	s.TaskSwitch(RegisterState{})

	if s.ReadyQ != b {
		t.Fatalf("ReadyQ = %#x, want the running task %#x still at its head", s.ReadyQ, b)
	}
}

// TestWaitUnlinksFromReadyQAndSetsHangPtr exercises the invariant that
// TIBHangPtr is non-nil exactly when a task sits on a semaphore wait
// queue rather than on ReadyQ.
func TestWaitUnlinksFromReadyQAndSetsHangPtr(t *testing.T) {
	m := memory.New(256)
	const sem = 0x40
	s := New(m)

	waiter := newTIB(m, 0x10, 3)
	other := newTIB(m, 0x20, 3)
	s.ReadyQ = putQueue(m, layout.NIL, waiter)
	s.ReadyQ = putQueue(m, s.ReadyQ, other)
	s.CurTask = waiter

	if !s.Wait(sem) {
		t.Fatalf("Wait() on empty semaphore should block")
	}

	if s.ReadyQ != other {
		t.Fatalf("ReadyQ = %#x, want the blocked task removed, leaving %#x", s.ReadyQ, other)
	}
	if hang := uint32(m.Ldw(waiter + layout.TIBHangPtr)); hang != sem {
		t.Fatalf("waiter TIBHangPtr = %#x, want sem %#x", hang, uint32(sem))
	}
}

// TestSignalClearsHangPtr exercises the flip side: waking a task off a
// semaphore must clear TIBHangPtr as it moves back onto ReadyQ.
func TestSignalClearsHangPtr(t *testing.T) {
	m := memory.New(256)
	const sem = 0x40
	s := New(m)

	waiter := newTIB(m, 0x10, 3)
	s.CurTask = waiter
	s.Wait(sem)

	s.CurTask = 0
	s.Signal(sem, false)

	if hang := uint32(m.Ldw(waiter + layout.TIBHangPtr)); hang != layout.NIL {
		t.Fatalf("waiter TIBHangPtr after Signal = %#x, want NIL", hang)
	}
}
