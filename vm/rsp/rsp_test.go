package rsp

import (
	"testing"

	"github.com/ucsd-psys-vm/psys/vm/fault"
	"github.com/ucsd-psys-vm/psys/vm/interp"
	"github.com/ucsd-psys-vm/psys/vm/layout"
	"github.com/ucsd-psys-vm/psys/vm/memory"
)

type fakeDisk struct {
	blocks [][]byte
}

func newFakeDisk(n, blockSize int) *fakeDisk {
	d := &fakeDisk{blocks: make([][]byte, n)}
	for i := range d.blocks {
		d.blocks[i] = make([]byte, blockSize)
	}
	return d
}

func (d *fakeDisk) ReadBlock(block int, buf []byte) fault.IOResult {
	if block < 0 || block >= len(d.blocks) {
		return fault.BadBlock
	}
	copy(buf, d.blocks[block])
	return fault.NoError
}

func (d *fakeDisk) WriteBlock(block int, buf []byte) fault.IOResult {
	if block < 0 || block >= len(d.blocks) {
		return fault.BadBlock
	}
	copy(d.blocks[block], buf)
	return fault.NoError
}

func (d *fakeDisk) Blocks() int { return len(d.blocks) }

// residentResolver resolves every EREC to the same fixed base, enough
// to exercise FLIPSEGBYTES without a full bootstrap.
type residentResolver struct{ base uint32 }

func (r residentResolver) Resolve(uint32) (uint32, bool) { return r.base, true }

func newTestInterp() *interp.Interp {
	m := memory.New(4096)
	const stackTop = 0xf00
	return &interp.Interp{Mem: m, Segs: residentResolver{base: 0x100}, SP: stackTop}
}

func pushArgs(i *interp.Interp, args ...uint16) {
	for _, a := range args {
		i.SP -= 2
		i.Mem.Stw(i.SP, a)
	}
}

func TestNewRegistersExpectedName(t *testing.T) {
	_, b := New()
	name := b.Name()
	if string(name[:3]) != "RSP" {
		t.Errorf("binding name = %q, want to start with RSP", name)
	}
}

func TestQuietEnableInversion(t *testing.T) {
	r, b := New()
	if err := b.Call(nil, CallQuiet); err != nil {
		t.Fatalf("quiet call: %v", err)
	}
	if !r.EventsEnabled {
		t.Errorf("quiet should set EventsEnabled=true, matching the reference implementation")
	}
	if err := b.Call(nil, CallEnable); err != nil {
		t.Fatalf("enable call: %v", err)
	}
	if r.EventsEnabled {
		t.Errorf("enable should set EventsEnabled=false, matching the reference implementation")
	}
}

func TestUnitClearResetsIOResult(t *testing.T) {
	r, b := New()
	r.IOResult = 9
	if err := b.Call(nil, CallUnitClear); err != nil {
		t.Fatalf("unitclear call: %v", err)
	}
	if r.IOResult != 0 {
		t.Errorf("IOResult after unitclear = %d, want 0", r.IOResult)
	}
}

func TestMoveLeftCopiesBytes(t *testing.T) {
	_, b := New()
	i := newTestInterp()
	const src, dst = 0x10, 0x40
	want := []byte{1, 2, 3, 4, 5}
	for k, v := range want {
		i.Mem.Stb(src, int32(k), v)
	}
	pushArgs(i, src, 0, dst, 0, uint16(len(want)))
	if err := b.Call(i, CallMoveLeft); err != nil {
		t.Fatalf("moveleft call: %v", err)
	}
	for k, v := range want {
		if got := i.Mem.Ldb(dst, int32(k)); got != v {
			t.Errorf("dst[%d] = %d, want %d", k, got, v)
		}
	}
}

func TestFillCharWritesByteAndSkipsNonPositiveLength(t *testing.T) {
	_, b := New()
	i := newTestInterp()
	const addr = 0x10
	i.Mem.Stb(addr, 0, 0xff)

	pushArgs(i, addr, 0, 0xffff, 0x41) // n = -1
	if err := b.Call(i, CallFillChar); err != nil {
		t.Fatalf("fillchar call: %v", err)
	}
	if got := i.Mem.Ldb(addr, 0); got != 0xff {
		t.Errorf("n<=0 should be a no-op, got %#x", got)
	}

	pushArgs(i, addr, 0, 4, 0x41)
	if err := b.Call(i, CallFillChar); err != nil {
		t.Fatalf("fillchar call: %v", err)
	}
	for k := int32(0); k < 4; k++ {
		if got := i.Mem.Ldb(addr, k); got != 0x41 {
			t.Errorf("byte %d = %#x, want 0x41", k, got)
		}
	}
}

func TestScanFindsMatchAndReportsCount(t *testing.T) {
	_, b := New()
	i := newTestInterp()
	const addr = 0x10
	data := []byte{0x41, 0x41, 0x41, 0x58, 0x41}
	for k, v := range data {
		i.Mem.Stb(addr, int32(k), v)
	}

	i.SP -= 2 // reserve the result word
	resultAddr := i.SP
	pushArgs(i, uint16(len(data)), 0, 0x58, addr, 0, 0xffff)
	if err := b.Call(i, CallScan); err != nil {
		t.Fatalf("scan call: %v", err)
	}
	if i.SP != resultAddr {
		t.Fatalf("SP after scan = %#x, want it to land back on the reserved word %#x", i.SP, resultAddr)
	}
	if got := i.Mem.Ldw(resultAddr); got != 3 {
		t.Errorf("scan count = %d, want 3", got)
	}
}

func TestTimeWritesLowAndHighWords(t *testing.T) {
	r, b := New()
	r.Ticks = 0x00020001
	i := newTestInterp()
	const hiPtr, loPtr = 0x10, 0x20

	pushArgs(i, hiPtr, loPtr)
	if err := b.Call(i, CallTime); err != nil {
		t.Fatalf("time call: %v", err)
	}
	if got := i.Mem.Ldw(loPtr); got != 0x0001 {
		t.Errorf("low word = %#x, want 0x0001", got)
	}
	if got := i.Mem.Ldw(hiPtr); got != 0x0002 {
		t.Errorf("high word = %#x, want 0x0002", got)
	}
}

func TestAttachStoresSemaphoreInBounds(t *testing.T) {
	r, b := New()
	i := newTestInterp()

	pushArgs(i, 0x1234, 5)
	if err := b.Call(i, CallAttach); err != nil {
		t.Fatalf("attach call: %v", err)
	}
	if r.EventVec[5] != 0x1234 {
		t.Errorf("EventVec[5] = %#x, want 0x1234", r.EventVec[5])
	}

	pushArgs(i, 0x5678, 9999)
	if err := b.Call(i, CallAttach); err != nil {
		t.Fatalf("attach call (out of range): %v", err)
	}
}

func TestIOResultProcPushesSyscomValue(t *testing.T) {
	_, b := New()
	i := newTestInterp()
	i.Mem.Stw(i.Syscom+layout.SyscomIOResult, 7)

	before := i.SP
	if err := b.Call(i, CallIOResult); err != nil {
		t.Fatalf("ioresult call: %v", err)
	}
	if i.SP != before-2 {
		t.Fatalf("SP after ioresult = %#x, want %#x", i.SP, before-2)
	}
	if got := i.Mem.Ldw(i.SP); got != 7 {
		t.Errorf("pushed value = %d, want 7", got)
	}
}

func TestUnitStatusMagicRecordForUnit0x80(t *testing.T) {
	r, b := New()
	i := newTestInterp()
	const statRec = 0x10

	pushArgs(i, 0x80, statRec, 0)
	if err := b.Call(i, CallUnitStatus); err != nil {
		t.Fatalf("unitstatus call: %v", err)
	}
	if got := loadDword(i.Mem, statRec); got != UnitStatusMagicHi {
		t.Errorf("magic hi = %#x, want %#x", got, uint32(UnitStatusMagicHi))
	}
	if got := loadDword(i.Mem, statRec+4); got != UnitStatusMagicLo {
		t.Errorf("magic lo = %#x, want %#x", got, uint32(UnitStatusMagicLo))
	}
	if got := i.Mem.Ldw(statRec + 8); got != 0 {
		t.Errorf("trailing word = %#x, want 0", got)
	}
	if r.IOResult != fault.NoError {
		t.Errorf("IOResult = %d, want NoError", r.IOResult)
	}
}

func TestUnitReadTransfersFromMountedDisk(t *testing.T) {
	r, b := New()
	i := newTestInterp()
	disk := newFakeDisk(4, 512)
	disk.blocks[2][0] = 0xAB
	disk.blocks[2][1] = 0xCD
	r.Units[DiskUnit] = disk

	const dest = 0x200
	pushArgs(i, DiskUnit, dest, 0, 512, 2, 0)
	if err := b.Call(i, CallUnitRead); err != nil {
		t.Fatalf("unitread call: %v", err)
	}
	if got := i.Mem.Ldb(dest, 0); got != 0xAB {
		t.Errorf("dest[0] = %#x, want 0xab", got)
	}
	if got := i.Mem.Ldb(dest, 1); got != 0xCD {
		t.Errorf("dest[1] = %#x, want 0xcd", got)
	}
	if r.IOResult != fault.NoError {
		t.Errorf("IOResult = %d, want NoError", r.IOResult)
	}
}

func TestUnitWriteTransfersToMountedDisk(t *testing.T) {
	r, b := New()
	i := newTestInterp()
	disk := newFakeDisk(4, 512)
	r.Units[DiskUnit] = disk

	const src = 0x200
	i.Mem.Stb(src, 0, 0xEE)
	pushArgs(i, DiskUnit, src, 0, 512, 1, 0)
	if err := b.Call(i, CallUnitWrite); err != nil {
		t.Fatalf("unitwrite call: %v", err)
	}
	if disk.blocks[1][0] != 0xEE {
		t.Errorf("disk block 1 byte 0 = %#x, want 0xee", disk.blocks[1][0])
	}
}

func TestUnitReadUnmountedUnitReportsNoUnit(t *testing.T) {
	r, b := New()
	i := newTestInterp()

	pushArgs(i, DiskUnit, 0x200, 0, 512, 0, 0)
	if err := b.Call(i, CallUnitRead); err != nil {
		t.Fatalf("unitread call: %v", err)
	}
	if r.IOResult != fault.NoUnit {
		t.Errorf("IOResult = %d, want NoUnit", r.IOResult)
	}
}

func TestFlipSegBytesSwapsResidentWords(t *testing.T) {
	_, b := New()
	i := newTestInterp()
	const erec, ofs = 1, 0x20
	addr := uint32(0x100) + ofs
	i.Mem.Stw(addr, 0x1234)

	pushArgs(i, erec, ofs, 1)
	if err := b.Call(i, CallFlipSegBytes); err != nil {
		t.Fatalf("flipsegbytes call: %v", err)
	}
	if got := i.Mem.Ldw(addr); got != 0x3412 {
		t.Errorf("flipped word = %#x, want 0x3412", got)
	}
}

func TestTreeSearchFindsExactMatch(t *testing.T) {
	_, b := New()
	i := newTestInterp()

	const root, target, found = 0x100, 0x200, 0x300
	key := []byte{'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H'}
	for k, v := range key {
		i.Mem.Stb(root, int32(k), v)
		i.Mem.Stb(target, int32(k), v)
	}
	i.Mem.Stw(root+8, uint16(layout.NIL))
	i.Mem.Stw(root+10, uint16(layout.NIL))

	pushArgs(i, root, found, target)
	if err := b.Call(i, CallTreeSearch); err != nil {
		t.Fatalf("treesearch call: %v", err)
	}
	if got := i.Mem.Ldw(i.SP); got != 0 {
		t.Errorf("comparison result = %d, want 0 (found)", int16(got))
	}
	for k, v := range key {
		if got := i.Mem.Ldb(found, int32(k)); got != v {
			t.Errorf("found key[%d] = %q, want %q", k, got, v)
		}
	}
}

func TestReadSegTransfersDiskBlockIntoPoolBase(t *testing.T) {
	r, b := New()
	i := newTestInterp()
	disk := newFakeDisk(4, 512)
	disk.blocks[1][0] = 0x99
	r.Units[DiskUnit] = disk

	const erec, sib, dest = 0x10, 0x40, 0x200
	i.Mem.Stw(erec+layout.ERECEnvSIB, sib)
	i.Mem.Stw(sib+layout.SIBSegAddr, 1)
	i.Mem.Stw(sib+layout.SIBSegLeng, 256) // 512 bytes
	i.Mem.Stw(sib+layout.SIBSegBase, dest)

	pushArgs(i, erec)
	if err := b.Call(i, CallReadSeg); err != nil {
		t.Fatalf("readseg call: %v", err)
	}
	if got := i.Mem.Ldb(dest, 0); got != 0x99 {
		t.Errorf("dest[0] = %#x, want 0x99", got)
	}
	if r.IOResult != fault.NoError {
		t.Errorf("IOResult = %d, want NoError", r.IOResult)
	}
}
