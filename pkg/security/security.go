// Package security validates the two things a fabric address actually
// exposes to risk: the address string itself (used to build a
// filesystem path under /dev/shm) and the payload descriptor a Sink
// declares at bind time (used to size an allocation).
package security

import (
	"fmt"
	"regexp"
)

// addressPattern matches the ASCII addresses spec §6 describes.
// Rejecting anything else up front keeps a malformed or adversarial
// address from ever reaching internal/shm's path-joining.
var addressPattern = regexp.MustCompile(`^[A-Za-z0-9_\-./]{1,255}$`)

// ValidateAddress rejects addresses that could escape the /dev/shm
// directory (path traversal) or otherwise aren't a plain token.
func ValidateAddress(address string) error {
	if !addressPattern.MatchString(address) {
		return fmt.Errorf("security: invalid address %q", address)
	}
	if address == "." || address == ".." {
		return fmt.Errorf("security: invalid address %q", address)
	}
	for i := 0; i+1 < len(address); i++ {
		if address[i] == '.' && address[i+1] == '.' {
			return fmt.Errorf("security: address %q contains a path traversal segment", address)
		}
	}
	return nil
}

// maxPayloadBytes bounds a single Bind's declared payload size. There
// is no spec-given limit; this exists to stop a misconfigured or
// hostile Sink from ftruncate-ing an unbounded region.
const maxPayloadBytes = 256 << 20 // 256 MiB

// ValidateDescriptor rejects a payload descriptor whose declared
// PayloadSize() is zero or unreasonably large before it reaches
// Sink.Bind. It takes the size rather than a node.Descriptor directly
// so this package never needs to import pkg/node.
func ValidateDescriptor(size int) error {
	if size <= 0 {
		return fmt.Errorf("security: descriptor declares non-positive payload size %d", size)
	}
	if size > maxPayloadBytes {
		return fmt.Errorf("security: descriptor payload size %d exceeds limit %d", size, maxPayloadBytes)
	}
	return nil
}

// SecureChannel is an explicit no-op. The fabric's transport is shared
// memory on one host, not a network socket; there is nothing for TLS
// or mTLS to secure between a Sink and a Source sharing a mapping. It
// exists only so a caller that iterates a generic "security provider"
// interface across transports doesn't need a type switch to skip this
// one.
func SecureChannel(peer string) error {
	return nil
}
