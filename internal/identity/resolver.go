package identity

// Resolver determines the effective caller of an operation.
//
// A single trusted forwarder address is registered at startup and is
// immutable for the life of the process. When the direct caller is that
// forwarder and the payload is long enough to carry an appended
// 20-byte identity suffix, the effective caller is the suffix and the
// payload is truncated before further processing. Otherwise the direct
// caller stands and the payload is used as-is.
//
// SECURITY: the resolver performs no signature verification. It trusts
// that the forwarder validated the end user's original authorization
// (signature, nonce, replay protection) before relaying. Compromise of
// the forwarder identity is therefore equivalent to full impersonation
// authority over every end user. This is the single most
// security-critical assumption in the system.
type Resolver struct {
	forwarder Address
}

// NewResolver registers the trusted forwarder address.
func NewResolver(forwarder Address) *Resolver {
	return &Resolver{forwarder: forwarder}
}

// Forwarder returns the registered trusted forwarder address.
func (r *Resolver) Forwarder() Address {
	return r.forwarder
}

// IsTrustedForwarder reports whether addr is the registered forwarder.
func (r *Resolver) IsTrustedForwarder(addr Address) bool {
	return !r.forwarder.IsZero() && addr == r.forwarder
}

// Resolve returns the effective caller and the payload stripped of the
// identity suffix, if one applies.
func (r *Resolver) Resolve(direct Address, payload []byte) (Address, []byte) {
	if r.IsTrustedForwarder(direct) && len(payload) >= AddressLength {
		var effective Address
		copy(effective[:], payload[len(payload)-AddressLength:])
		return effective, payload[:len(payload)-AddressLength]
	}
	return direct, payload
}
