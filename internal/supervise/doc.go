// Package supervise owns emulator subprocess lifecycle.
//
// Ownership boundary:
// - zero-or-one live subprocess per host:port endpoint
// - probe-then-spawn with per-key mutual exclusion
// - binary resolution and argv construction
package supervise
