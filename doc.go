// Package netcore provides the concurrency and state-management core for
// socket networking: the primitives that let I/O-completion goroutines and
// application goroutines safely hand off data, pace writes, and manage the
// start/stop lifecycle of network entities.
//
// The core lives in three subpackages:
//
//   - queue: a multi-producer/multi-consumer blocking FIFO with explicit
//     close semantics and pluggable storage, for cross-goroutine handoff of
//     arbitrary payloads.
//   - outbound: a per-connection output tracker enforcing one write in
//     flight with an ordered backlog and depth/byte statistics.
//   - lifecycle: an atomic start/stop state machine per network entity,
//     carrying the shutdown-notification callback the transport invokes
//     exactly once per cycle.
//
// The transport subpackage is the collaborator layer built on those
// primitives: a TCP acceptor, a TCP connector, a UDP endpoint, and an
// optional Noise-IK encrypted wrapper.
//
// This root package holds the small facade shared across entity types: the
// Entity interface and a Supervisor for stopping a set of entities
// together.
//
// Example:
//
//	acceptor := transport.NewTCPAcceptor(transport.DefaultConfig(":33445"))
//	if err := acceptor.Start(onShutdown); err != nil {
//	    log.Fatal(err)
//	}
//
//	sup := netcore.NewSupervisor()
//	sup.Add("listener", acceptor)
//	defer sup.StopAll()
package netcore
