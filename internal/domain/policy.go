package domain

// Capability names a single permission derived from lifecycle state.
type Capability string

const (
	CapRead   Capability = "read"
	CapWrite  Capability = "write"
	CapExport Capability = "export"
	CapAPI    Capability = "api"
)

// Capabilities is the permission set a request is allowed at an instant.
// Rate limiting of grace-period writes and API calls is enforced by an
// external layer; the policy only says whether the capability exists.
type Capabilities struct {
	Read   bool
	Write  bool
	Export bool
	API    bool
}

// capabilityTable maps lifecycle state to capabilities. Static by design:
// policy changes are code changes.
var capabilityTable = map[Status]Capabilities{
	StatusTrial:    {Read: true, Write: true, Export: true, API: true},
	StatusActive:   {Read: true, Write: true, Export: true, API: true},
	StatusGrace:    {Read: true, Write: true, Export: false, API: true},
	StatusReadOnly: {Read: true, Write: false, Export: false, API: false},
	StatusExpired:  {Read: false, Write: false, Export: false, API: false},
}

// CapabilitiesFor returns the capability set for a lifecycle state.
// Unknown states get the empty (deny-all) set.
func CapabilitiesFor(s Status) Capabilities {
	return capabilityTable[s]
}

// Allows reports whether a single named capability is present.
func (c Capabilities) Allows(cap Capability) bool {
	switch cap {
	case CapRead:
		return c.Read
	case CapWrite:
		return c.Write
	case CapExport:
		return c.Export
	case CapAPI:
		return c.API
	}
	return false
}

// CheckCapability returns nil when the state grants the capability, or a
// typed PolicyDeniedError describing why not. Policy checks never mutate
// tenant state.
func CheckCapability(s Status, cap Capability) error {
	if CapabilitiesFor(s).Allows(cap) {
		return nil
	}
	return &PolicyDeniedError{Capability: cap, State: s}
}
