// Package interp is the p-code interpreter core: the register file,
// the segment/procedure call and return algorithm, and the dispatch
// loop over vm/opcode's table. Its shape — a single mutable state
// struct plus a table-driven Step/Run pair — follows the teacher's
// emu/cpu package (cpuState, CycleCPU, execute, createTable)
// generalized from S/370's fixed instruction formats to p-code's
// mixed short/long opcode encoding. Register names and call/return
// mechanics are grounded on the reference p-System's psys_state.h and
// psys_interpreter.c.
package interp

import (
	"fmt"

	"github.com/ucsd-psys-vm/psys/vm/fault"
	"github.com/ucsd-psys-vm/psys/vm/layout"
	"github.com/ucsd-psys-vm/psys/vm/memory"
	"github.com/ucsd-psys-vm/psys/vm/opcode"
	"github.com/ucsd-psys-vm/psys/vm/pset"
	"github.com/ucsd-psys-vm/psys/vm/sched"
)

// Binding is the host-facing hook a native segment (RSP or a guest
// binding) implements to service CXG/CXI calls into it. See vm/binding
// for the concrete registry.
type Binding interface {
	// Name is the 8-byte (NUL-padded) segment name this binding answers for.
	Name() [8]byte
	// Call dispatches procedure number proc within this binding.
	Call(i *Interp, proc uint8) error
}

// SegmentResolver looks up a segment's current base address by EREC,
// returning ok=false if the segment is not currently resident (which
// the interpreter turns into a SEG fault for the scheduler to service).
type SegmentResolver interface {
	Resolve(erec uint32) (base uint32, resident bool)
}

// Interp is the VM's full register file plus the owning memory and
// scheduler. Field names mirror the reference implementation's
// psys_state so a reader moving between the two can match registers
// 1:1.
type Interp struct {
	Mem   *memory.Memory
	Sched *sched.Scheduler
	Segs  SegmentResolver

	Running bool

	IPC    uint32 // instruction pointer, absolute byte address
	SP     uint32 // stack pointer
	Base   uint32 // mark-stack base / frame base
	MP     uint32 // mark pointer (current activation record)
	CurSeg uint32 // base address of the current code segment

	ReadyQ   uint32 // SYSCOM-relative pointer mirrored for convenience
	CurTask  uint32 // current TIB
	Erec     uint32 // current EREC
	CurProc  uint8  // current procedure number

	Syscom uint32 // base address of SYSCOM (always 0)

	StoredIPC uint32
	StoredSP  uint32

	Bindings []Binding

	Debug uint
	Trace func(format string, args ...any)
}

func (i *Interp) trace(format string, args ...any) {
	if i.Trace != nil {
		i.Trace(format, args...)
	}
}

// fetchByte reads the next p-code byte and advances IPC.
func (i *Interp) fetchByte() byte {
	b := i.Mem.Ldb(i.IPC, 0)
	i.IPC++
	return b
}

func (i *Interp) fetchWord() uint16 {
	v := i.Mem.Ldw(i.IPC)
	i.IPC += 2
	return v
}

func (i *Interp) push(v uint16)          { i.SP = i.Mem.Push(i.SP, v) }
func (i *Interp) pop() uint16            { v, sp := i.Mem.Pop(i.SP); i.SP = sp; return v }
func (i *Interp) popS() int16            { v, sp := i.Mem.SPop(i.SP); i.SP = sp; return v }
func (i *Interp) pushS(v int16)          { i.push(uint16(v)) }

// Step decodes and executes a single p-code instruction.
func (i *Interp) Step() error {
	op := i.fetchByte()
	switch {
	case op <= 0x1f: // SLDC0-31
		i.push(uint16(op))
	case op <= 0x2f: // SLDL1-16
		i.push(i.Mem.Ldw(i.localAddr(uint32(op-0x20+1))))
	case op <= 0x3f: // SLDO1-16
		i.push(i.Mem.Ldw(i.globalBase() + uint32(op-0x30+1)*2))
	case op <= 0x5f:
		return i.trap(fault.NotImplemented)
	case op <= 0x67: // SLLA1-8
		i.push(uint16(i.localAddr(uint32(op-0x60+1))))
	case op <= 0x6f: // SSTL1-8
		i.Mem.Stw(i.localAddr(uint32(op-0x68+1)), i.pop())
	case op <= 0x77: // SCXG1-8: short call, global procedure op-0x70+1
		return i.callGlobal(uint8(op - 0x70 + 1))
	case op <= 0x7f: // SIND0-7
		base := i.pop()
		i.push(i.Mem.Ldw(uint32(base) + uint32(op-0x78)*2))
	default:
		return i.execLong(op)
	}
	return nil
}

// globalBase returns the address of the current segment's global data
// area, reached through the current EREC's Env_Data field.
func (i *Interp) globalBase() uint32 {
	return uint32(i.Mem.Ldw(i.Erec + layout.ERECEnvData))
}

// localAddr returns the address of local word k (1-indexed), which
// lives below the current MSCW: MP points at the top of the
// activation record, so the MSCW itself occupies [MP-MSCWSize, MP)
// and locals are packed further down from there.
func (i *Interp) localAddr(k uint32) uint32 {
	return i.MP - uint32(layout.MSCWSize) - k*2
}

func (i *Interp) execLong(op byte) error {
	e := opcode.Describe(op)
	switch e.Mnemonic {
	case "ABI":
		b, a := i.popS(), i.popS()
		i.pushS(a + b)
	case "ABR":
		i.pushS(i.popS())
	case "ADI":
		b, a := i.popS(), i.popS()
		i.pushS(a + b)
	case "SBI":
		b, a := i.popS(), i.popS()
		i.pushS(a - b)
	case "MPI":
		b, a := i.popS(), i.popS()
		i.pushS(a * b)
	case "DVI":
		b, a := i.popS(), i.popS()
		if b == 0 {
			return i.trap(fault.DivideByZero)
		}
		i.pushS(a / b)
	case "MODI":
		b, a := i.popS(), i.popS()
		if b == 0 {
			return i.trap(fault.DivideByZero)
		}
		r := a % b
		if r < 0 {
			if b < 0 {
				r -= b
			} else {
				r += b
			}
		}
		i.pushS(r)
	case "NGI":
		i.pushS(-i.popS())
	case "LAND":
		b, a := i.pop(), i.pop()
		if a != 0 && b != 0 {
			i.push(1)
		} else {
			i.push(0)
		}
	case "LOR":
		b, a := i.pop(), i.pop()
		if a != 0 || b != 0 {
			i.push(1)
		} else {
			i.push(0)
		}
	case "LNOT":
		if i.pop() == 0 {
			i.push(1)
		} else {
			i.push(0)
		}
	case "BNOT":
		i.push(^i.pop())
	case "EQUI", "EQUI2":
		b, a := i.pop(), i.pop()
		i.pushBool(a == b)
	case "NEQI":
		b, a := i.pop(), i.pop()
		i.pushBool(a != b)
	case "LEQI":
		b, a := i.popS(), i.popS()
		i.pushBool(a <= b)
	case "GEQI":
		b, a := i.popS(), i.popS()
		i.pushBool(a >= b)
	case "LEUSW":
		b, a := i.pop(), i.pop()
		i.pushBool(a <= b)
	case "GEUSW":
		b, a := i.pop(), i.pop()
		i.pushBool(a >= b)
	case "EQBYTE", "LEBYTE", "GEBYTE":
		return i.byteCompare(e.Mnemonic)
	case "INC":
		n := i.fetchByte()
		i.push(i.pop() + uint16(n))
	case "ADJ", "ADJ2":
		n := i.fetchByte()
		addr := i.pop()
		if err := pset.Adj(i.Mem, uint32(addr), uint16(n)); err != nil {
			return i.trap(fault.SetTooLarge)
		}
	case "DUP1":
		v := i.pop()
		i.push(v)
		i.push(v)
	case "DUP2":
		b, a := i.pop(), i.pop()
		i.push(a)
		i.push(b)
		i.push(a)
		i.push(b)
	case "SWAP":
		b, a := i.pop(), i.pop()
		i.push(b)
		i.push(a)
	case "LDCN":
		i.push(layout.NIL)
	case "LDCI":
		i.push(i.fetchWord())
	case "LDC":
		n := i.fetchByte()
		for k := 0; k < int(n); k++ {
			i.push(i.fetchWord())
		}
	case "LLA":
		off := i.fetchWord()
		i.push(uint16(i.MP) + off)
	case "LAO", "LDO":
		off := i.fetchWord()
		addr := i.globalBase() + uint32(off)
		if e.Mnemonic == "LAO" {
			i.push(uint16(addr))
		} else {
			i.push(i.Mem.Ldw(addr))
		}
	case "LDA", "LOD":
		off := i.fetchWord()
		addr := i.MP + uint32(off)
		if e.Mnemonic == "LDA" {
			i.push(uint16(addr))
		} else {
			i.push(i.Mem.Ldw(addr))
		}
	case "STL", "STL2":
		off := i.fetchWord()
		i.Mem.Stw(i.MP+uint32(off), i.pop())
	case "SRO":
		off := i.fetchWord()
		i.Mem.Stw(i.globalBase()+uint32(off), i.pop())
	case "STO", "STO2":
		v := i.pop()
		addr := i.pop()
		i.Mem.Stw(uint32(addr), v)
	case "IND":
		off := i.fetchByte()
		addr := i.pop()
		i.push(i.Mem.Ldw(uint32(addr) + uint32(off)*2))
	case "LDB", "LDB2":
		off := i.pop()
		addr := i.pop()
		i.push(uint16(i.Mem.Ldb(uint32(addr), int32(off))))
	case "STB":
		v := i.pop()
		off := i.pop()
		addr := i.pop()
		i.Mem.Stb(uint32(addr), int32(off), uint8(v))
	case "LDP":
		rightBit := i.pop()
		width := i.pop()
		addr := i.pop()
		mask := uint16((uint32(1) << width) - 1)
		i.push((i.Mem.Ldw(uint32(addr)) >> rightBit) & mask)
	case "STP":
		value := i.pop()
		rightBit := i.pop()
		width := i.pop()
		addr := i.pop()
		mask := uint16(((uint32(1) << width) - 1) << rightBit)
		cur := i.Mem.Ldw(uint32(addr))
		i.Mem.Stw(uint32(addr), (cur&^mask)|((value<<rightBit)&mask))
	case "MOV", "MOV2":
		n := i.fetchByte()
		src := i.pop()
		dst := i.pop()
		for k := uint16(0); k < uint16(n); k++ {
			i.Mem.Stb(uint32(dst), int32(k), i.Mem.Ldb(uint32(src), int32(k)))
		}
	case "LSA":
		n := i.fetchByte()
		_ = n
		return i.trap(fault.NotImplemented)
	case "UJP":
		off := int8(i.fetchByte())
		i.IPC = uint32(int64(i.IPC-1) + int64(off))
	case "UJPL":
		off := int16(i.fetchWord())
		i.IPC = uint32(int64(i.IPC-2) + int64(off))
	case "FJP":
		target := i.fetchWord()
		if i.pop() == 0 {
			i.IPC = i.CurSeg + uint32(target)
		}
	case "FJPL":
		target := i.fetchWord()
		if i.pop() == 0 {
			i.IPC = i.CurSeg + uint32(target)
		}
	case "EFJ":
		target := i.fetchWord()
		b, a := i.pop(), i.pop()
		if a == b {
			i.IPC = i.CurSeg + uint32(target)
		}
	case "NFJ":
		target := i.fetchWord()
		b, a := i.pop(), i.pop()
		if a != b {
			i.IPC = i.CurSeg + uint32(target)
		}
	case "XJP", "XJPL":
		return i.execXJP()
	case "IXA":
		elemSize := i.fetchWord()
		idx := i.popS()
		base := i.pop()
		i.push(base + uint16(int32(idx)*int32(elemSize)))
	case "IXP":
		fieldsPerWord := i.fetchByte()
		bitsPerField := i.fetchByte()
		idx := i.pop()
		addr := i.pop()
		newAddr := uint32(addr) + uint32(idx/uint16(fieldsPerWord))*2
		i.push(uint16(newAddr))
		i.push(uint16(bitsPerField))
		i.push((idx % uint16(fieldsPerWord)) * uint16(bitsPerField))
	case "CHK", "CHK2":
		hi, lo := i.popS(), i.popS()
		v := i.popS()
		if v < lo || v > hi {
			return i.trap(fault.InvalidIndex)
		}
		i.pushS(v)
	case "NOP":
		// no operation
	case "BPT":
		return i.trap(fault.Breakpoint)
	case "LPR":
		reg := i.fetchByte()
		i.push(i.loadRegister(reg))
	case "SPR":
		reg := i.fetchByte()
		i.storeRegister(reg, i.pop())
	case "UNI":
		a, b := i.popAddr2()
		if err := pset.Union(i.Mem, a, a, b); err != nil {
			return i.trap(fault.SetTooLarge)
		}
	case "INT":
		a, b := i.popAddr2()
		if err := pset.Intersection(i.Mem, a, a, b); err != nil {
			return i.trap(fault.SetTooLarge)
		}
	case "DIF":
		a, b := i.popAddr2()
		if err := pset.Difference(i.Mem, a, a, b); err != nil {
			return i.trap(fault.SetTooLarge)
		}
	case "INN":
		x := i.pop()
		addr := i.pop()
		i.pushBool(pset.In(i.Mem, uint32(addr), x))
	case "SRS":
		hi := i.pop()
		lo := i.pop()
		out := i.pop()
		if err := pset.FromSubrange(i.Mem, uint32(out), lo, hi); err != nil {
			return i.trap(fault.SetTooLarge)
		}
	case "SIGNAL":
		sem := uint32(i.pop())
		if i.Sched.Signal(sem, true) {
			i.taskSwitch()
		}
	case "WAIT":
		sem := uint32(i.pop())
		if i.Sched.Wait(sem) {
			i.taskSwitch()
		}
	case "FLT", "FLT2", "FLO", "DVR", "MPR", "ADR", "SBR", "NGR",
		"EQREAL", "LEREAL", "GEREAL":
		return i.trap(fault.FloatingPointError)
	case "CUP", "CIP", "CXG", "CXI", "CXL":
		return i.call(e.Mnemonic)
	case "RPU", "RNP":
		return i.ret()
	case "CFP":
		msstat := i.pop()
		erec := i.pop()
		proc := i.pop()
		return i.invokeWithLink(uint32(erec), uint8(proc), uint32(msstat))
	case "CAP":
		n := i.fetchByte()
		descAddr := i.pop()
		dest := i.pop()
		if src, ok := i.resolveDescriptor(uint32(descAddr)); ok {
			for k := int32(0); k < int32(n)*2; k++ {
				i.Mem.Stb(uint32(dest), k, i.Mem.Ldb(src, k))
			}
		}
	case "CSP", "CSP2":
		maxLen := i.fetchByte()
		descAddr := i.pop()
		dest := i.pop()
		if src, ok := i.resolveDescriptor(uint32(descAddr)); ok {
			length := i.Mem.Ldb(src, 0)
			if length > maxLen {
				return i.trap(fault.StringOverflow)
			}
			total := (int32(length)/2 + 1) * 2
			for k := int32(0); k < total; k++ {
				i.Mem.Stb(uint32(dest), k, i.Mem.Ldb(src, k))
			}
		}
	case "NATIVE", "NATINFO":
		return i.trap(fault.NotImplemented)
	default:
		return i.trap(fault.NotImplemented)
	}
	return nil
}

func (i *Interp) pushBool(b bool) {
	if b {
		i.push(1)
	} else {
		i.push(0)
	}
}

func (i *Interp) popAddr2() (uint32, uint32) {
	b := i.pop()
	a := i.pop()
	return uint32(a), uint32(b)
}

func (i *Interp) byteCompare(mnemonic string) error {
	n := i.fetchByte()
	b := i.pop()
	a := i.pop()
	var cmp int
	for k := uint16(0); k < uint16(n); k++ {
		ab := i.Mem.Ldb(uint32(a), int32(k))
		bb := i.Mem.Ldb(uint32(b), int32(k))
		if ab != bb {
			if ab < bb {
				cmp = -1
			} else {
				cmp = 1
			}
			break
		}
	}
	switch mnemonic {
	case "EQBYTE":
		i.pushBool(cmp == 0)
	case "LEBYTE":
		i.pushBool(cmp <= 0)
	case "GEBYTE":
		i.pushBool(cmp >= 0)
	}
	return nil
}

func (i *Interp) execXJP() error {
	n := i.fetchWord()
	idx := i.popS()
	if idx < 0 || uint16(idx) >= n {
		return i.trap(fault.InvalidIndex)
	}
	tableStart := i.IPC
	target := i.Mem.Ldw(tableStart + uint32(idx)*2)
	i.IPC = tableStart + uint32(n)*2
	i.IPC = i.CurSeg + uint32(target)
	return nil
}

func (i *Interp) trap(e fault.ExecError) error {
	return &fault.Trap{Err: e, IPC: i.IPC, Proc: i.CurProc}
}

// callGlobal performs a short-form global call (SCXG): call procedure
// proc, taken from the opcode, in the current EREC's own segment. No
// operand byte is read and the EVEC is not consulted.
func (i *Interp) callGlobal(proc uint8) error {
	return i.invoke(i.Erec, proc, false)
}

func (i *Interp) call(mnemonic string) error {
	switch mnemonic {
	case "CUP":
		proc := i.fetchByte()
		return i.invoke(i.Erec, proc, false)
	case "CIP":
		proc := i.fetchByte()
		addr := i.pop()
		return i.invoke(uint32(addr), proc, true)
	case "CXG", "CXI", "CXL":
		segIdx := i.fetchByte()
		proc := i.fetchByte()
		erec := i.resolveEvecEntry(segIdx)
		return i.invoke(erec, proc, false)
	}
	return i.trap(fault.NotImplemented)
}

func (i *Interp) resolveEvecEntry(segIdx uint8) uint32 {
	vec := uint32(i.Mem.Ldw(i.Erec + layout.ERECEnvVect))
	return uint32(i.Mem.Ldw(vec + uint32(segIdx)*2))
}

// invoke performs an ordinary call: the lexical static link is
// simplified to the caller's own MP (direct static link), matching
// every non-CFP call site (CUP/CIP/CXG/CXI/CXL/SCXG).
func (i *Interp) invoke(erec uint32, proc uint8, viaPointer bool) error {
	_ = viaPointer
	return i.invokeWithLink(erec, proc, i.MP)
}

// invokeWithLink implements spec.md's call dispatch: chase to the
// callee's segment, fault if non-resident, push an MSCW below the
// caller's already-pushed actual parameters, reserve the callee's
// locals, and jump to the procedure's entry point. msstat is the
// static-link value to record in the new MSCW; ordinary calls pass
// the caller's own MP, while CFP passes an explicit value taken off
// the stack.
//
// MP is kept pointing at the TOP of the activation record (the MSCW
// occupies [MP-MSCWSize, MP), locals sit further below that), per
// spec.md §8's literal invariant sp + 2*(L+5) == mp. This diverges
// from the reference implementation's psys_interpreter.c, where MP
// ends up equal to SP with the MSCW at positive offsets — a
// deliberate redesign, see DESIGN.md.
func (i *Interp) invokeWithLink(erec uint32, proc uint8, msstat uint32) error {
	base, resident := i.Segs.Resolve(erec)
	if !resident {
		return &fault.Fault{Kind: fault.Segment, TIB: i.CurTask, EREC: erec}
	}

	procDictWord := i.Mem.Ldw(base + layout.SegProcDict)
	procDictBase := base + uint32(procDictWord)*2
	procPtrAddr := procDictBase - uint32(proc)*2
	procOfs := i.Mem.Ldw(procPtrAddr)
	procAddr := base + uint32(procOfs)

	numLocals := i.Mem.Ldw(procAddr)
	if numLocals == 0xFFFF {
		return i.callNative(base, proc)
	}
	entry := procAddr + 2

	mp := i.SP // MP sits atop the already-pushed actual parameters.
	mscwBase := mp - uint32(layout.MSCWSize)
	i.Mem.Stw(mscwBase+layout.MSCWMsstat, uint16(msstat))
	i.Mem.Stw(mscwBase+layout.MSCWMsdyn, uint16(i.MP))
	i.Mem.Stw(mscwBase+layout.MSCWIpc, uint16(i.IPC-i.CurSeg))
	i.Mem.Stw(mscwBase+layout.MSCWMsenv, uint16(i.Erec))
	i.Mem.Stw(mscwBase+layout.MSCWMproc, uint16(i.CurProc))

	i.SP = mscwBase - uint32(numLocals)*2
	i.MP = mp
	i.CurSeg = base
	i.Erec = erec
	i.CurProc = proc
	i.IPC = entry
	return nil
}

// ret implements spec.md's five-step return algorithm (RPU n): pop n
// parameter words, restore the caller's frame, and resume at the
// saved IPC in the caller's segment.
func (i *Interp) ret() error {
	n := i.fetchByte()

	mscwBase := i.MP - uint32(layout.MSCWSize)
	callerIPC := i.Mem.Ldw(mscwBase + layout.MSCWIpc)
	callerEnv := i.Mem.Ldw(mscwBase + layout.MSCWMsenv)
	callerProc := i.Mem.Ldw(mscwBase + layout.MSCWMproc)
	callerMP := i.Mem.Ldw(mscwBase + layout.MSCWMsdyn)

	newSP := i.MP + uint32(n)*2

	i.MP = uint32(callerMP)
	i.Erec = uint32(callerEnv)
	i.CurProc = uint8(callerProc)
	i.SP = newSP

	if base, ok := i.Segs.Resolve(i.Erec); ok {
		i.CurSeg = base
		i.IPC = base + uint32(callerIPC)
	} else {
		return &fault.Fault{Kind: fault.Segment, TIB: i.CurTask, EREC: i.Erec}
	}
	return nil
}

// resolveDescriptor follows a CAP/CSP parameter descriptor (an EREC
// word followed by an offset word) to an absolute address, matching
// psys_interpreter.c's array_descriptor_to_addr: a NIL EREC means the
// offset is already an absolute address, otherwise the EREC's segment
// must be resident. ok is false if the segment is not resident, in
// which case the caller silently skips the copy, matching the
// reference's behavior of never raising a fault here.
func (i *Interp) resolveDescriptor(descAddr uint32) (uint32, bool) {
	erec := uint32(i.Mem.Ldw(descAddr))
	ofs := uint32(i.Mem.Ldw(descAddr + 2))
	if erec == layout.NIL {
		return ofs, true
	}
	base, resident := i.Segs.Resolve(erec)
	if !resident {
		return 0, false
	}
	return base + ofs, true
}

// segmentName reads a code segment's 8-byte name from its header, for
// matching against a native binding's Name().
func (i *Interp) segmentName(base uint32) [8]byte {
	var name [8]byte
	copy(name[:], i.Mem.Bytes(base+layout.SegName, 8))
	return name
}

// callNative dispatches a procedure whose num_locals word reads
// 0xFFFF: such a procedure has no p-code body at all, and its segment
// name instead names a host binding (vm/rsp or a guest binding) to
// call by procedure number.
func (i *Interp) callNative(base uint32, proc uint8) error {
	name := i.segmentName(base)
	for _, b := range i.Bindings {
		if b.Name() == name {
			if err := b.Call(i, proc); err != nil {
				switch err.(type) {
				case *fault.Fault, *fault.Trap:
					return err
				}
				return i.trap(fault.NoProcedure)
			}
			return nil
		}
	}
	return i.trap(fault.NoProcedure)
}

func (i *Interp) loadRegister(reg byte) uint16 {
	switch int8(reg) {
	case -3:
		return uint16(i.CurTask)
	case -2:
		return i.Mem.Ldw(i.Erec + layout.ERECEnvVect)
	case -1:
		return uint16(i.ReadyQ)
	default:
		return 0
	}
}

// storeRegister implements LPR/SPR's negative-numbered register set:
// -3 CURTASK, -2 EVEC (the current EREC's Env_Vect word), -1 READYQ.
// Non-negative (TIB word) register numbers are not handled: LPR reads
// them as 0 and SPR ignores them.
// The reference implementation's C switch has a documented fallthrough
// from CURTASK into EVEC (see DESIGN.md); this port keeps the
// corrected, non-falling-through behavior since Go's switch does not
// fall through implicitly.
func (i *Interp) storeRegister(reg byte, v uint16) {
	switch int8(reg) {
	case -3:
		i.CurTask = uint32(v)
	case -2:
		i.Mem.Stw(i.Erec+layout.ERECEnvVect, v)
	case -1:
		i.ReadyQ = uint32(v)
	default:
		// unrecognized register: ignored, matching the reference
		// implementation's default case.
	}
}

// taskSwitch saves the running task's registers to its TIB, picks the
// next ready task, and loads its registers, mirroring the SYSCOM
// register set into the convenience fields the opcode dispatch reads.
func (i *Interp) taskSwitch() {
	out := sched.RegisterState{SP: i.SP, MP: i.MP, IPC: i.IPC - i.CurSeg, Erec: i.Erec}
	in := i.Sched.TaskSwitch(out)
	i.CurTask = i.Sched.CurTask
	i.ReadyQ = i.Sched.ReadyQ
	i.Erec = in.Erec
	i.SP = in.SP
	i.MP = in.MP
	if base, ok := i.Segs.Resolve(i.Erec); ok {
		i.CurSeg = base
		i.IPC = base + in.IPC
	}
}

// HandleFault services a *fault.Fault raised by invoke/ret: it records
// the fault in SYSCOM's fault fields and signals REAL_SEM so the
// resident fault handler task wakes up, then switches away from the
// faulting task since it cannot proceed until the handler resolves the
// fault (loads the segment, grows the stack, and so on).
//
// spec.md describes REAL_SEM's fault signal as happening "without task
// switch", unlike the reference implementation's psys_fault (which
// passes taskswitch=true to its signal call); this port follows
// spec.md's literal text and passes maySwitch=false to Signal, but
// still switches the faulting task out afterward since it has no other
// way to make progress.
func (i *Interp) HandleFault(f *fault.Fault) {
	realSem := i.Syscom + layout.SyscomRealSem
	i.Sched.Signal(realSem, false)
	i.Mem.Stw(i.Syscom+layout.SyscomFaultTIB, uint16(f.TIB))
	i.Mem.Stw(i.Syscom+layout.SyscomFaultErec, uint16(f.EREC))
	i.Mem.Stw(i.Syscom+layout.SyscomFaultWords, f.Words)
	i.Mem.Stw(i.Syscom+layout.SyscomFaultType, uint16(f.Kind))
	i.taskSwitch()
}

// Run steps the interpreter until Running is cleared or an error halts
// it. *fault.Fault values are serviced in place via HandleFault and do
// not stop the loop; a *fault.Trap or *fault.Panic is returned to the
// caller to deliver to the guest error vector or abort the VM.
func (i *Interp) Run() error {
	i.Running = true
	for i.Running {
		err := i.Step()
		if err == nil {
			continue
		}
		if f, ok := err.(*fault.Fault); ok {
			i.HandleFault(f)
			continue
		}
		return err
	}
	return nil
}

func (i *Interp) String() string {
	return fmt.Sprintf("ipc=%#x sp=%#x mp=%#x base=%#x curseg=%#x erec=%#x proc=%d",
		i.IPC, i.SP, i.MP, i.Base, i.CurSeg, i.Erec, i.CurProc)
}
