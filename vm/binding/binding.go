// Package binding implements the p-System's host-binding interface: a
// small registry of native (Go) segments a guest program reaches via
// CSP/CXG, matched by an 8-byte segment name the way real p-System
// object code names its library units. It is grounded on the
// teacher's emu/device.Device — a small lifecycle interface
// (Init/Start/Stop/Debug) registered into a flat dispatch table — with
// the per-call-number dispatch generalized from a channel/unit number
// to a procedure number within a named segment.
package binding

import (
	"bytes"
	"fmt"

	"github.com/ucsd-psys-vm/psys/vm/interp"
)

// Handler answers one procedure call within a binding.
type Handler func(i *interp.Interp) error

// Binding is a native segment: an 8-byte name plus a table of
// procedure handlers indexed by procedure number (1-based, as
// p-System procedure numbers are).
type Binding struct {
	name     [8]byte
	handlers map[uint8]Handler
	userdata any

	// SaveState/LoadState, if set, are invoked by vm/state during
	// save-state/restore-state to persist binding-private data.
	SaveState func(userdata any) ([]byte, error)
	LoadState func(userdata any, data []byte) error
}

// New creates a binding named name (truncated/NUL-padded to 8 bytes).
func New(name string, userdata any) *Binding {
	var n [8]byte
	copy(n[:], name)
	return &Binding{name: n, handlers: map[uint8]Handler{}, userdata: userdata}
}

func (b *Binding) Name() [8]byte { return b.name }

// Userdata returns the binding's private state, for handlers that
// need it without a closure capture.
func (b *Binding) Userdata() any { return b.userdata }

// Register installs the handler for procedure number proc.
func (b *Binding) Register(proc uint8, h Handler) {
	b.handlers[proc] = h
}

// Call dispatches to the handler registered for proc. Binding numbers
// with no registered handler are reported as "no such procedure" so
// the interpreter can fall through to the next binding or trap.
func (b *Binding) Call(i *interp.Interp, proc uint8) error {
	h, ok := b.handlers[proc]
	if !ok {
		return fmt.Errorf("binding %q: no handler for procedure %d", nameString(b.name), proc)
	}
	return h(i)
}

func nameString(n [8]byte) string {
	return string(bytes.TrimRight(n[:], "\x00"))
}

// Registry is an ordered set of bindings, searched linearly by
// interp.Interp.Bindings — matching the reference implementation's
// linear binding-table scan by segment name.
type Registry struct {
	bindings []*Binding
}

func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) Add(b *Binding) { r.bindings = append(r.bindings, b) }

// Find looks up a binding by its 8-byte segment name.
func (r *Registry) Find(name [8]byte) (*Binding, bool) {
	for _, b := range r.bindings {
		if b.name == name {
			return b, true
		}
	}
	return nil, false
}

// All returns every registered binding, in registration order, for
// wiring into interp.Interp.Bindings and for vm/state's save/restore
// walk.
func (r *Registry) All() []*Binding {
	return r.bindings
}

// Interfaces converts All() to the interp.Binding slice the
// interpreter's callNative dispatch expects.
func (r *Registry) Interfaces() []interp.Binding {
	out := make([]interp.Binding, len(r.bindings))
	for i, b := range r.bindings {
		out[i] = b
	}
	return out
}
