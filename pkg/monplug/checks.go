package monplug

import "context"

// AvailableChecks contains all registered check plugins.
var AvailableChecks = make(map[string]CheckEntry)

// CheckHandler runs a single check.
type CheckHandler interface {
	Build() *CheckData
	Check(ctx context.Context, snc *Agent, check *CheckData) (*CheckResult, error)
}

// CheckEntry is one registry entry, Handler constructs a fresh handler
// for every run.
type CheckEntry struct {
	Name    string
	Handler func() CheckHandler
}
