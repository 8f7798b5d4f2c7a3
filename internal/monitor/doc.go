// Package monitor owns the emulator binary-monitor wire contract.
//
// Ownership boundary:
// - frame/header primitives and the streaming deframer
// - request/response correlation over one TCP connection
// - derived monitor commands (memory, keyboard, reset, info)
package monitor
