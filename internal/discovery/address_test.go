package discovery

import (
	"net"
	"testing"

	"github.com/pscheid92/lanrelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCIDR(t *testing.T, cidr string) *net.IPNet {
	t.Helper()
	ip, network, err := net.ParseCIDR(cidr)
	require.NoError(t, err)
	network.IP = ip
	return network
}

func TestBroadcastAddress(t *testing.T) {
	tests := []struct {
		name string
		cidr string
		want string
	}{
		{name: "class C", cidr: "192.168.1.20/24", want: "192.168.1.255"},
		{name: "class A", cidr: "10.1.2.3/8", want: "10.255.255.255"},
		{name: "non-octet prefix", cidr: "172.16.5.4/20", want: "172.16.15.255"},
		{name: "host route", cidr: "192.168.1.20/32", want: "192.168.1.20"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BroadcastAddress(mustCIDR(t, tt.cidr))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestBroadcastAddress_SixteenByteMask(t *testing.T) {
	network := &net.IPNet{
		IP:   net.ParseIP("192.168.0.5"),
		Mask: net.CIDRMask(120, 128),
	}

	got, err := BroadcastAddress(network)

	require.NoError(t, err)
	assert.Equal(t, "192.168.0.255", got.String())
}

func TestBroadcastAddress_RejectsIPv6(t *testing.T) {
	_, err := BroadcastAddress(mustCIDR(t, "fe80::1/64"))
	assert.Error(t, err)
}

func TestFirstBroadcastAddress(t *testing.T) {
	addrs := []net.Addr{
		&net.IPAddr{IP: net.ParseIP("192.168.9.9")},
		mustCIDR(t, "127.0.0.1/8"),
		mustCIDR(t, "fe80::1/64"),
		mustCIDR(t, "192.168.178.23/24"),
		mustCIDR(t, "10.0.0.2/8"),
	}

	got, err := firstBroadcastAddress(addrs)

	require.NoError(t, err)
	assert.Equal(t, "192.168.178.255", got.String())
}

func TestFirstBroadcastAddress_NoCandidate(t *testing.T) {
	addrs := []net.Addr{
		mustCIDR(t, "127.0.0.1/8"),
		mustCIDR(t, "::1/128"),
	}

	_, err := firstBroadcastAddress(addrs)
	assert.ErrorIs(t, err, domain.ErrNoBroadcastAddress)

	_, err = firstBroadcastAddress(nil)
	assert.ErrorIs(t, err, domain.ErrNoBroadcastAddress)
}
