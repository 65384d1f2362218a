package discovery

import (
	"fmt"
	"net"

	"github.com/pscheid92/lanrelay/internal/domain"
)

// BroadcastAddress returns the directed broadcast address of an IPv4 network: every host bit of
// the address set, i.e. ip | ^mask.
func BroadcastAddress(network *net.IPNet) (net.IP, error) {
	ip := network.IP.To4()
	if ip == nil {
		return nil, fmt.Errorf("%s is not an IPv4 network", network)
	}

	mask := network.Mask
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	if len(mask) != net.IPv4len {
		return nil, fmt.Errorf("invalid mask for %s", network)
	}

	broadcast := make(net.IP, net.IPv4len)
	for i := range broadcast {
		broadcast[i] = ip[i] | ^mask[i]
	}
	return broadcast, nil
}

// firstBroadcastAddress returns the broadcast address of the first IPv4 network among addrs.
func firstBroadcastAddress(addrs []net.Addr) (net.IP, error) {
	for _, addr := range addrs {
		network, ok := addr.(*net.IPNet)
		if !ok || network.IP.To4() == nil || network.IP.IsLoopback() {
			continue
		}
		return BroadcastAddress(network)
	}
	return nil, domain.ErrNoBroadcastAddress
}

// LocalBroadcastAddress derives the broadcast address from the first interface that is up, is
// not a loopback and carries an IPv4 address.
func LocalBroadcastAddress() (net.IP, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list network interfaces: %w", err)
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		if ip, err := firstBroadcastAddress(addrs); err == nil {
			return ip, nil
		}
	}
	return nil, domain.ErrNoBroadcastAddress
}
