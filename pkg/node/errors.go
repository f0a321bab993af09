package node

import "errors"

// Sentinel errors per the fabric's error model (spec §7). Callers should
// compare with errors.Is; every one may be wrapped with additional
// context (address, pid, sample number).
var (
	// ErrAddressInUse is returned by Bind when another live Sink already
	// owns the address.
	ErrAddressInUse = errors.New("node: address in use")
	// ErrNotFound is returned by Touch when the node never appears.
	ErrNotFound = errors.New("node: not found")
	// ErrTimeout is returned by Touch when it exceeds its configured
	// deadline, or by Wait when a context deadline elapses.
	ErrTimeout = errors.New("node: timed out")
	// ErrAllocFailed wraps a failure to create or map a node's region.
	ErrAllocFailed = errors.New("node: allocation failed")
	// ErrPeerDied is returned once a blocked operation detects that a
	// peer it depends on (the owner of the control block mutex, or, for
	// Sink.Wait, a Source registered in the roster) is no longer a live
	// process. The error that carries it also wraps ErrPoisoned.
	ErrPeerDied = errors.New("node: peer died")
	// ErrPoisoned is returned by every subsequent operation on the handle
	// that raised ErrPeerDied — the node's invariants can no longer be
	// trusted. The flag is held by that handle only; other handles and
	// other processes attached to the same node are not marked.
	ErrPoisoned = errors.New("node: poisoned")
	// ErrProtocolViolation flags a call sequence the fabric forbids, e.g.
	// Post without a preceding Wait/Retrieve.
	ErrProtocolViolation = errors.New("node: protocol violation")
)
