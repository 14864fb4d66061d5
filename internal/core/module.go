package core

// ModuleID uniquely identifies a module, namespaced by dots
// (e.g. "channel.telegram", "analytics.sqlite").
type ModuleID string

// Namespace returns the portion of the ID before the last dot,
// or the whole ID if it has no dot.
func (id ModuleID) Namespace() string {
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == '.' {
			return string(id[:i])
		}
	}
	return string(id)
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	// ID is the unique module identifier.
	ID ModuleID

	// New returns a fresh, unconfigured instance of the module.
	New func() Module
}

// Module is the minimal interface every module implements.
// Optional lifecycle behavior is added via the interfaces in lifecycle.go.
type Module interface {
	ModuleInfo() ModuleInfo
}
