// Package state implements VM save/restore: a single file holding the
// interpreter's register file, the full memory image, and one
// delegated blob per binding. Framing follows the little-endian
// encoding/binary idiom (the one reusable pattern borrowed from the
// KTStephano-GVM example's own bytecode loader, the only other repo in
// the pack with a binary framing convention to borrow from); field
// order and the file's magic number are grounded on the reference
// implementation's psys_save_state.c.
package state

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ucsd-psys-vm/psys/vm/binding"
	"github.com/ucsd-psys-vm/psys/vm/interp"
)

// Magic is the save-file's leading 32-bit tag.
const Magic uint32 = 0x50535953 // "PSYS" read big-endian, matching the reference constant's byte values

type header struct {
	IPC, SP, Base, MP       uint32
	CurSeg                  uint32
	ReadyQ, CurTask, Erec   uint32
	CurProc                 uint8
	Syscom                  uint32
	StoredIPC, StoredSP     uint32
	MemSize                 uint32
}

// Save writes i's full state to w, including every registered
// binding's delegated blob.
func Save(w io.Writer, i *interp.Interp, bindings []*binding.Binding) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, Magic); err != nil {
		return err
	}

	h := header{
		IPC: i.IPC, SP: i.SP, Base: i.Base, MP: i.MP,
		CurSeg: i.CurSeg,
		ReadyQ: i.ReadyQ, CurTask: i.CurTask, Erec: i.Erec,
		CurProc: i.CurProc,
		Syscom:  i.Syscom,
		StoredIPC: i.StoredIPC, StoredSP: i.StoredSP,
		MemSize: i.Mem.Size(),
	}
	if err := binary.Write(bw, binary.LittleEndian, &h); err != nil {
		return err
	}
	if _, err := bw.Write(i.Mem.Raw()); err != nil {
		return err
	}

	for _, b := range bindings {
		if b.SaveState == nil {
			if err := binary.Write(bw, binary.LittleEndian, uint32(0)); err != nil {
				return err
			}
			continue
		}
		data, err := b.SaveState(b.Userdata())
		if err != nil {
			return fmt.Errorf("state: saving binding state: %w", err)
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(data))); err != nil {
			return err
		}
		if _, err := bw.Write(data); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Load reads a save file produced by Save back into i, whose Mem must
// already be allocated at the saved size.
func Load(r io.Reader, i *interp.Interp, bindings []*binding.Binding) error {
	br := bufio.NewReader(r)

	var magic uint32
	if err := binary.Read(br, binary.LittleEndian, &magic); err != nil {
		return err
	}
	if magic != Magic {
		return fmt.Errorf("state: bad magic %#x, want %#x", magic, Magic)
	}

	var h header
	if err := binary.Read(br, binary.LittleEndian, &h); err != nil {
		return err
	}
	if h.MemSize != i.Mem.Size() {
		return fmt.Errorf("state: saved memory size %d does not match VM size %d", h.MemSize, i.Mem.Size())
	}
	if _, err := io.ReadFull(br, i.Mem.Raw()); err != nil {
		return err
	}

	i.IPC, i.SP, i.Base, i.MP = h.IPC, h.SP, h.Base, h.MP
	i.CurSeg = h.CurSeg
	i.ReadyQ, i.CurTask, i.Erec = h.ReadyQ, h.CurTask, h.Erec
	i.CurProc = h.CurProc
	i.Syscom = h.Syscom
	i.StoredIPC, i.StoredSP = h.StoredIPC, h.StoredSP

	for _, b := range bindings {
		var n uint32
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return err
		}
		data := make([]byte, n)
		if n > 0 {
			if _, err := io.ReadFull(br, data); err != nil {
				return err
			}
		}
		if b.LoadState != nil && n > 0 {
			if err := b.LoadState(b.Userdata(), data); err != nil {
				return fmt.Errorf("state: restoring binding state: %w", err)
			}
		}
	}
	return nil
}
