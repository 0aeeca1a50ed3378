// Package typeinfo defines the opaque cache-key component reserved for
// future type-specialized (monomorphized) compilation (spec §3, §9).
// The present core only ever produces one value, but every cache key
// in internal/runtime carries it so the keying shape does not need to
// change when real type speculation is added.
package typeinfo

// Info is an opaque, comparable tag. Two Infos are always equal today;
// the zero value is the only value in existence.
type Info struct{}

// New returns the (currently singleton) Info value.
func New() Info { return Info{} }
