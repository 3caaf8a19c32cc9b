package device

import (
	"github.com/insteonplm/meshd/internal/common"
	"github.com/insteonplm/meshd/pkg/insteon/frame"
	"github.com/insteonplm/meshd/pkg/insteon/schema"
)

// CreateMessage resolves name against the static command vocabulary,
// overlays overrides by slot alias, and binds the result to this device,
// per spec.md §4.1's construction contract. It returns
// common.ErrUnknownCommand if name isn't in the vocabulary.
//
// The vocabulary this core exposes is generic (spec.md's Non-goals exclude
// per-subcategory custom outgoing variants), so no DevCat/SubCat/Firmware
// narrowing is performed on the outgoing side; that narrowing applies to
// inbound dispatch (see the dispatch package).
func (d *Device) CreateMessage(name string, overrides map[string]byte) (*frame.Outgoing, error) {
	tmpl, ok := schema.OutgoingCommands[name]
	if !ok {
		return nil, common.ErrUnknownCommand
	}
	out := frame.Assemble(tmpl, overrides, d.Addr)
	return &out, nil
}

// SendCommand resolves name via CreateMessage, tags it with a
// state-machine label, and enqueues it on this device.
func (d *Device) SendCommand(name string, overrides map[string]byte, label string) (*frame.Outgoing, error) {
	out, err := d.CreateMessage(name, overrides)
	if err != nil {
		return nil, err
	}
	out.StateMachine = label
	d.Enqueue(label, out)
	return out, nil
}
