package frame

import (
	"github.com/insteonplm/meshd/pkg/insteon/address"
	"github.com/insteonplm/meshd/pkg/insteon/schema"
)

// Assemble resolves a command template and a set of named byte overrides
// into an Outgoing frame bound to target, per spec.md §4.1's construction
// contract: "deep-copies the template, overlays provided named byte
// values by matching slot aliases".
func Assemble(tmpl schema.CommandTemplate, overrides map[string]byte, target address.Address) Outgoing {
	out := Outgoing{
		CommandName: tmpl.Name,
		Length:      tmpl.Length,
		Type:        tmpl.Type,
		Cmd1:        tmpl.Cmd1Default,
		Cmd2:        tmpl.Cmd2Default,
		Usr:         tmpl.UsrDefaults,
		Target:      target,
	}
	for name, value := range overrides {
		idx, ok := tmpl.Slot(name)
		if !ok {
			continue
		}
		if idx == 0 {
			out.Cmd2 = value
			continue
		}
		out.Usr[idx-1] = value
	}
	return out
}
