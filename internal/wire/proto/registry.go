package proto

import "fmt"

// CommandRegistry is the bidirectional name<->ID mapping negotiated once per
// session between host and MCU. Klipper-style wire protocols never hardcode
// command IDs in the firmware image: both ends exchange a dictionary during
// the identify handshake and look up IDs by name thereafter. A registry is
// built once and never mutated again once the session is live.
type CommandRegistry struct {
	nameToID map[string]byte
	idToName map[byte]string
}

// NewCommandRegistry returns an empty registry ready to be populated during
// the identify handshake.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		nameToID: make(map[string]byte),
		idToName: make(map[byte]string),
	}
}

// Add records a name<->id mapping. It is an error to add the same name or
// id twice with a different counterpart, since that would mean the two
// ends disagree about the negotiated dictionary.
func (r *CommandRegistry) Add(name string, id byte) error {
	if existing, ok := r.nameToID[name]; ok && existing != id {
		return fmt.Errorf("proto: command %q already registered as id %d, cannot re-register as %d", name, existing, id)
	}
	if existing, ok := r.idToName[id]; ok && existing != name {
		return fmt.Errorf("proto: id %d already registered as %q, cannot re-register as %q", id, existing, name)
	}
	r.nameToID[name] = id
	r.idToName[id] = name
	return nil
}

// ID looks up the negotiated id for a command name.
func (r *CommandRegistry) ID(name string) (byte, bool) {
	id, ok := r.nameToID[name]
	return id, ok
}

// Name looks up the command name for a negotiated id.
func (r *CommandRegistry) Name(id byte) (string, bool) {
	name, ok := r.idToName[id]
	return name, ok
}

// Len reports how many commands are currently registered.
func (r *CommandRegistry) Len() int {
	return len(r.nameToID)
}
