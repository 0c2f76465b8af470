package adsession

import (
	"slices"

	"github.com/go-ldap/ldap/v3"
)

// Control describes one requested server-side extended control.
//
// Value is accepted and retained on the tuple but not encoded on the wire:
// the option list sent to the server carries OID and criticality only. This
// is a known limitation of the current design.
type Control struct {
	OID      string
	Critical bool
	Value    string
}

// ControlRegistry tracks the extended controls currently requested on a
// session as an ordered sequence. The full list is re-applied as a single
// connection option on every mutation.
type ControlRegistry struct {
	controls []Control
}

// append adds a control tuple to the end of the sequence.
func (r *ControlRegistry) append(ctrl Control) {
	r.controls = append(r.controls, ctrl)
}

// pop removes the most recently appended tuple, undoing a failed apply.
func (r *ControlRegistry) pop() {
	if len(r.controls) > 0 {
		r.controls = r.controls[:len(r.controls)-1]
	}
}

// Len returns the number of registered controls.
func (r *ControlRegistry) Len() int {
	return len(r.controls)
}

// Controls returns a copy of the registered tuples in registration order.
func (r *ControlRegistry) Controls() []Control {
	return slices.Clone(r.controls)
}

// wire renders the registry as the control list applied via
// OptionServerControls. Value payloads are deliberately omitted.
func (r *ControlRegistry) wire() []ldap.Control {
	wire := make([]ldap.Control, 0, len(r.controls))
	for _, ctrl := range r.controls {
		wire = append(wire, &ldap.ControlString{
			ControlType: ctrl.OID,
			Criticality: ctrl.Critical,
		})
	}
	return wire
}
