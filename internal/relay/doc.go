// Package relay implements the connection registry, the broadcast engine and the liveness monitor.
//
// The Registry is the single source of truth for connected peers. The Broadcaster is an actor
// (single goroutine + command channel) that fans inbound frames out to every peer's writer
// goroutine without ever blocking on a recipient. The LivenessMonitor pings every peer on a fixed
// interval and terminates peers that missed the previous ping. Hub ties the three together and
// owns the per-connection read loop.
package relay
