// Package identity resolves the effective caller of every ledger operation.
package identity

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// AddressLength is the fixed width of an account identity in bytes.
const AddressLength = 20

// Address identifies an account. Rendered as 0x-prefixed lowercase hex.
type Address [AddressLength]byte

// ZeroAddress is the null identity. A mint moves balance from it and a burn
// moves balance to it; it can never authenticate.
var ZeroAddress Address

// ErrInvalidAddress indicates a malformed address string.
var ErrInvalidAddress = errors.New("identity: invalid address")

// ParseAddress parses a 0x-prefixed 40-hex-digit string.
func ParseAddress(s string) (Address, error) {
	var addr Address
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) != AddressLength*2 {
		return addr, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return addr, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	copy(addr[:], raw)
	return addr, nil
}

// String renders the address as 0x-prefixed lowercase hex.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether the address is the null identity.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// MarshalText implements encoding.TextMarshaler for JSON rendering.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// APIKey holds the stored metadata of an issued key. The secret itself is
// kept only as a bcrypt hash.
type APIKey struct {
	ID         string
	Address    Address
	SecretHash string
	Label      string
	CreatedAt  time.Time
	RevokedAt  *time.Time
}

// ErrKeyNotFound indicates an unknown or revoked API key id.
var ErrKeyNotFound = errors.New("identity: api key not found")

// ErrBadCredentials indicates a failed key secret comparison.
var ErrBadCredentials = errors.New("identity: bad credentials")
