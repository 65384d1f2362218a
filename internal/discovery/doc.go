// Package discovery announces the relay on the local network segment.
//
// A Beacon sends a fixed datagram to the subnet broadcast address on a fixed port at a fixed
// interval. It is independent of the relay: it neither knows nor cares how many peers are
// connected.
package discovery
