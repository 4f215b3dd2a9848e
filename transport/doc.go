// Package transport implements the socket entities that drive the netcore
// synchronization primitives: a TCP acceptor, a TCP connector, and a UDP
// endpoint.
//
// Each entity composes a lifecycle.State for atomic start/stop and shutdown
// notification. Stream connections and the UDP endpoint pace their writes
// through an outbound.Tracker, so at most one write is ever outstanding per
// connection while later writes queue in arrival order. Inbound UDP packets
// are handed from the read loop to the dispatch goroutine through a
// queue.Queue, whose close is the dispatcher's shutdown signal.
//
// An optional NoiseTransport wraps any Transport with Noise-IK encryption.
//
// Example:
//
//	acceptor := transport.NewTCPAcceptor(transport.DefaultConfig("127.0.0.1:33445"))
//	acceptor.RegisterHandler(transport.PacketData, func(p *transport.Packet, addr net.Addr) error {
//	    fmt.Printf("received %d bytes from %s\n", len(p.Data), addr)
//	    return nil
//	})
//
//	err := acceptor.Start(func(a *transport.TCPAcceptor, err error, bytes uint64) {
//	    log.Printf("acceptor down: err=%v bytes=%d", err, bytes)
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer acceptor.Stop()
package transport
