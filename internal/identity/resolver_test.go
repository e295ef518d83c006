package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func addrWithByte(b byte) Address {
	var a Address
	a[19] = b
	return a
}

func TestResolveForwardedCall(t *testing.T) {
	forwarder := addrWithByte(0xf0)
	user := addrWithByte(0x01)
	r := NewResolver(forwarder)

	payload := append([]byte(`{"amount":1}`), user[:]...)
	caller, stripped := r.Resolve(forwarder, payload)
	require.Equal(t, user, caller)
	require.Equal(t, []byte(`{"amount":1}`), stripped)
}

func TestResolveDirectCall(t *testing.T) {
	forwarder := addrWithByte(0xf0)
	direct := addrWithByte(0x02)
	r := NewResolver(forwarder)

	payload := []byte(`{"amount":1}`)
	caller, out := r.Resolve(direct, payload)
	require.Equal(t, direct, caller)
	require.Equal(t, payload, out)
}

func TestResolveShortForwardedPayload(t *testing.T) {
	forwarder := addrWithByte(0xf0)
	r := NewResolver(forwarder)

	// Fewer than 20 bytes cannot carry a suffix; the forwarder itself
	// stands as the caller.
	payload := []byte("short")
	caller, out := r.Resolve(forwarder, payload)
	require.Equal(t, forwarder, caller)
	require.Equal(t, payload, out)
}

func TestResolveExactSuffixOnlyPayload(t *testing.T) {
	forwarder := addrWithByte(0xf0)
	user := addrWithByte(0x03)
	r := NewResolver(forwarder)

	caller, stripped := r.Resolve(forwarder, user[:])
	require.Equal(t, user, caller)
	require.Empty(t, stripped)
}

func TestZeroForwarderNeverMatches(t *testing.T) {
	r := NewResolver(ZeroAddress)
	user := addrWithByte(0x04)

	payload := append([]byte("data"), user[:]...)
	caller, out := r.Resolve(ZeroAddress, payload)
	require.Equal(t, ZeroAddress, caller)
	require.Equal(t, payload, out)
	require.False(t, r.IsTrustedForwarder(ZeroAddress))
}

func TestParseAddressRoundTrip(t *testing.T) {
	addr, err := ParseAddress("0x00000000000000000000000000000000000000a1")
	require.NoError(t, err)
	require.Equal(t, "0x00000000000000000000000000000000000000a1", addr.String())

	_, err = ParseAddress("0x1234")
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, err = ParseAddress("0xzz000000000000000000000000000000000000a1")
	require.ErrorIs(t, err, ErrInvalidAddress)

	require.True(t, ZeroAddress.IsZero())
	require.False(t, addr.IsZero())
}
