// Package sched implements the p-System's cooperative task scheduler:
// a priority-ordered ready queue, semaphore SIGNAL/WAIT primitives,
// and the task-switch sequence that saves/restores a task's registers
// to/from its TIB. The queue is a singly-linked list threaded through
// TIB.Wait_Q words in VM memory, generalized from the teacher's
// emu/event package — which splices a doubly-linked, time-ordered
// delay queue — to a singly-linked, priority-ordered one, the way the
// reference p-System's psys_task.c threads its ready and wait queues.
package sched

import (
	"github.com/ucsd-psys-vm/psys/vm/layout"
	"github.com/ucsd-psys-vm/psys/vm/memory"
)

// Scheduler owns the VM's task queues. ReadyQ is the head of the
// priority-ordered ready queue; CurTask is the TIB of the running
// task. Both are mirrored into interp.Interp for convenience but this
// struct is the source of truth.
type Scheduler struct {
	Mem       *memory.Memory
	ReadyQ    uint32
	CurTask   uint32
	Timestamp uint32
}

func New(m *memory.Memory) *Scheduler {
	return &Scheduler{Mem: m}
}

func (s *Scheduler) priority(tib uint32) uint8 {
	return uint8(s.Mem.Ldw(tib+layout.TIBFlagsPrior) & 0xff)
}

// putQueue inserts tib into the priority-ordered list headed at head,
// joining the tail of its priority band — the reference
// implementation's tie-break rule, and the resolution to spec.md's
// open question on wait-queue ordering.
func putQueue(m *memory.Memory, head uint32, tib uint32) uint32 {
	pr := uint8(m.Ldw(tib+layout.TIBFlagsPrior) & 0xff)
	if head == layout.NIL {
		m.Stw(tib+layout.TIBWaitQ, uint16(layout.NIL))
		return tib
	}
	if pr > uint8(m.Ldw(head+layout.TIBFlagsPrior)&0xff) {
		m.Stw(tib+layout.TIBWaitQ, uint16(head))
		return tib
	}
	cur := head
	for {
		next := uint32(m.Ldw(cur + layout.TIBWaitQ))
		if next == layout.NIL || pr > uint8(m.Ldw(next+layout.TIBFlagsPrior)&0xff) {
			m.Stw(tib+layout.TIBWaitQ, uint16(next))
			m.Stw(cur+layout.TIBWaitQ, uint16(tib))
			return head
		}
		cur = next
	}
}

// popQueue removes and returns the head of the list at head.
func popQueue(m *memory.Memory, head uint32) (tib uint32, newHead uint32) {
	if head == layout.NIL {
		return layout.NIL, layout.NIL
	}
	next := uint32(m.Ldw(head + layout.TIBWaitQ))
	return head, next
}

// Signal implements SIGNAL(sem): increments the semaphore count, or if
// tasks are waiting, wakes the head of its wait queue and moves it to
// the ready queue. If maySwitch is true and the woken task outranks
// the current one, TaskSwitch is invoked by the caller (the
// interpreter loop), not by Signal itself.
func (s *Scheduler) Signal(sem uint32, maySwitch bool) (switched bool) {
	waitHead := uint32(s.Mem.Ldw(sem + layout.SemTIB))
	if waitHead == layout.NIL {
		count := int16(s.Mem.Ldw(sem + layout.SemCount))
		s.Mem.Stw(sem+layout.SemCount, uint16(count+1))
		return false
	}
	woken, rest := popQueue(s.Mem, waitHead)
	s.Mem.Stw(sem+layout.SemTIB, uint16(rest))
	s.Mem.Stw(woken+layout.TIBHangPtr, uint16(layout.NIL))
	s.ReadyQ = putQueue(s.Mem, s.ReadyQ, woken)

	if maySwitch && s.priority(woken) > s.priority(s.CurTask) {
		return true
	}
	return false
}

// Wait implements WAIT(sem): decrements the semaphore count, blocking
// the current task on the semaphore's wait queue if it goes negative.
// The current task is always ReadyQ's head, so blocking it must unlink
// it from ReadyQ and mark it hung on sem via TIBHangPtr before
// splicing it onto the semaphore's wait queue. Returns true if the
// calling task must be switched out.
func (s *Scheduler) Wait(sem uint32) (blocked bool) {
	count := int16(s.Mem.Ldw(sem + layout.SemCount))
	s.Mem.Stw(sem+layout.SemCount, uint16(count-1))
	if count > 0 {
		return false
	}
	cur := s.CurTask
	_, rest := popQueue(s.Mem, s.ReadyQ)
	s.ReadyQ = rest
	s.Mem.Stw(cur+layout.TIBHangPtr, uint16(sem))

	waitHead := uint32(s.Mem.Ldw(sem + layout.SemTIB))
	s.Mem.Stw(sem+layout.SemTIB, uint16(putQueue(s.Mem, waitHead, cur)))
	return true
}

// RegisterState captures the subset of interpreter registers saved to
// and restored from a TIB across a task switch.
type RegisterState struct {
	SP, MP, IPC, Erec uint32
	IORProc           uint16
}

// SaveToTIB stores r into tib's saved-register fields.
func SaveToTIB(m *memory.Memory, tib uint32, r RegisterState) {
	m.Stw(tib+layout.TIBSP, uint16(r.SP))
	m.Stw(tib+layout.TIBMP, uint16(r.MP))
	m.Stw(tib+layout.TIBIPC, uint16(r.IPC))
	m.Stw(tib+layout.TIBEnv, uint16(r.Erec))
	m.Stw(tib+layout.TIBIORProcNum, r.IORProc)
}

// LoadFromTIB reads tib's saved-register fields back out.
func LoadFromTIB(m *memory.Memory, tib uint32) RegisterState {
	return RegisterState{
		SP:      uint32(m.Ldw(tib + layout.TIBSP)),
		MP:      uint32(m.Ldw(tib + layout.TIBMP)),
		IPC:     uint32(m.Ldw(tib + layout.TIBIPC)),
		Erec:    uint32(m.Ldw(tib + layout.TIBEnv)),
		IORProc: m.Ldw(tib + layout.TIBIORProcNum),
	}
}

// TaskSwitch stores the outgoing task's registers and returns the
// restored register state of ReadyQ's head. The running task is
// always ReadyQ's head, so a task that is still ready (merely
// preempted, not blocked) stays linked there; TaskSwitch only peeks,
// never pops. A task that is blocking must first unlink itself from
// ReadyQ (see Wait) before calling this. It panics if the ready queue
// is empty — with cooperative scheduling and a main task that never
// blocks forever, an empty ready queue is a host-level bug, not a
// recoverable condition.
func (s *Scheduler) TaskSwitch(out RegisterState) RegisterState {
	if s.CurTask != layout.NIL {
		SaveToTIB(s.Mem, s.CurTask, out)
	}
	if s.ReadyQ == layout.NIL {
		panic("sched: ready queue is empty")
	}
	s.CurTask = s.ReadyQ
	s.Timestamp++
	return LoadFromTIB(s.Mem, s.CurTask)
}

// Ready enqueues tib onto the ready queue directly, in priority order.
func (s *Scheduler) Ready(tib uint32) {
	s.ReadyQ = putQueue(s.Mem, s.ReadyQ, tib)
}
