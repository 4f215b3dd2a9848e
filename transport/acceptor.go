package transport

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/netcore/lifecycle"
)

// TCPAcceptor is the listening network entity. Start binds the listener and
// spawns the accept loop; every accepted connection becomes a TCPConn with
// its own write-pacing tracker. The shutdown callback installed by Start
// fires exactly once per cycle when the accept loop exits, carrying the
// total bytes transferred across all connections of that cycle.
type TCPAcceptor struct {
	cfg   Config
	state lifecycle.State[*TCPAcceptor]

	mu           sync.Mutex
	listener     net.Listener
	conns        map[string]*TCPConn
	shutdownOnce *sync.Once

	handlersMu sync.RWMutex
	handlers   map[PacketType]PacketHandler

	bytesTotal atomic.Uint64
}

// NewTCPAcceptor creates a stopped acceptor for the configured listen
// address. Nothing is bound until Start.
func NewTCPAcceptor(cfg Config) *TCPAcceptor {
	return &TCPAcceptor{
		cfg:      cfg,
		conns:    make(map[string]*TCPConn),
		handlers: make(map[PacketType]PacketHandler),
	}
}

// RegisterHandler registers a handler for a specific packet type, shared by
// all connections of this acceptor.
func (a *TCPAcceptor) RegisterHandler(packetType PacketType, handler PacketHandler) {
	a.handlersMu.Lock()
	defer a.handlersMu.Unlock()

	a.handlers[packetType] = handler
}

// IsStarted reports whether the acceptor is currently started.
func (a *TCPAcceptor) IsStarted() bool {
	return a.state.IsStarted()
}

// Start atomically transitions the acceptor to started, binds the listener,
// and begins accepting. Exactly one of any number of concurrent Start calls
// wins; losers receive ErrEntityStarted. The shutdown callback is installed
// only on success.
func (a *TCPAcceptor) Start(fn lifecycle.ShutdownFunc[*TCPAcceptor]) error {
	if !a.state.Start(fn) {
		return ErrEntityStarted
	}

	listener, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		a.state.Stop()
		return newNetError("listen", a.cfg.ListenAddr, err)
	}

	a.mu.Lock()
	a.listener = listener
	a.shutdownOnce = new(sync.Once)
	once := a.shutdownOnce
	a.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":    "Start",
		"component":   "TCPAcceptor",
		"listen_addr": listener.Addr().String(),
	}).Info("Acceptor started")

	go a.acceptLoop(listener, once)
	return nil
}

// Stop atomically transitions the acceptor to stopped and tears down the
// listener and every open connection. Returns ErrEntityNotStarted if the
// acceptor was not started. The shutdown notification is not issued here;
// it fires when the accept loop observes termination.
func (a *TCPAcceptor) Stop() error {
	if !a.state.Stop() {
		return ErrEntityNotStarted
	}

	a.mu.Lock()
	listener := a.listener
	a.listener = nil
	conns := make([]*TCPConn, 0, len(a.conns))
	for _, c := range a.conns {
		conns = append(conns, c)
	}
	a.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	if listener != nil {
		_ = listener.Close()
	}
	return nil
}

// acceptLoop accepts connections until the listener fails or is closed,
// then issues the cycle's single shutdown notification.
func (a *TCPAcceptor) acceptLoop(listener net.Listener, once *sync.Once) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if !a.state.IsStarted() {
				// Stop closed the listener: clean shutdown.
				err = nil
			}
			a.notifyShutdown(once, err)
			return
		}

		c := newTCPConn(conn, a.cfg, a.dispatchPacket, a.connClosed)
		a.mu.Lock()
		a.conns[c.ID()] = c
		a.mu.Unlock()

		logrus.WithFields(logrus.Fields{
			"function":    "acceptLoop",
			"component":   "TCPAcceptor",
			"conn_id":     c.ID(),
			"remote_addr": c.RemoteAddr().String(),
		}).Info("Accepted connection")

		c.startIO()
	}
}

// notifyShutdown invokes the lifecycle shutdown callback at most once per
// started cycle.
func (a *TCPAcceptor) notifyShutdown(once *sync.Once, err error) {
	once.Do(func() {
		a.state.InvokeShutdown(a, err, a.bytesTotal.Load())
	})
}

// dispatchPacket routes a parsed inbound packet to the registered handler.
func (a *TCPAcceptor) dispatchPacket(packet *Packet, addr net.Addr) {
	a.handlersMu.RLock()
	handler, exists := a.handlers[packet.PacketType]
	a.handlersMu.RUnlock()

	if exists {
		go handler(packet, addr)
	}
}

// connClosed accounts a terminated connection and forgets it.
func (a *TCPAcceptor) connClosed(c *TCPConn, err error) {
	a.bytesTotal.Add(c.Bytes())

	a.mu.Lock()
	delete(a.conns, c.ID())
	a.mu.Unlock()

	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "connClosed",
			"component": "TCPAcceptor",
			"conn_id":   c.ID(),
			"error":     err.Error(),
		}).Warn("Connection terminated with error")
	}
}

// Send sends a packet on the established connection whose peer address
// matches addr, satisfying the Transport interface. Unlike a connector, an
// acceptor never dials; sending to an unknown peer fails with
// ErrConnClosed.
func (a *TCPAcceptor) Send(packet *Packet, addr net.Addr) error {
	c := a.connByRemote(addr)
	if c == nil {
		return newNetError("send", addr.String(), ErrConnClosed)
	}
	return c.Send(packet)
}

// connByRemote finds the open connection for a peer address.
func (a *TCPAcceptor) connByRemote(addr net.Addr) *TCPConn {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range a.conns {
		if c.RemoteAddr().String() == addr.String() {
			return c
		}
	}
	return nil
}

// Conns returns a snapshot of the currently open connections.
func (a *TCPAcceptor) Conns() []*TCPConn {
	a.mu.Lock()
	defer a.mu.Unlock()
	conns := make([]*TCPConn, 0, len(a.conns))
	for _, c := range a.conns {
		conns = append(conns, c)
	}
	return conns
}

// LocalAddr returns the bound listener address, or nil when stopped.
func (a *TCPAcceptor) LocalAddr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Close stops the acceptor, satisfying the Transport interface. Closing a
// stopped acceptor is a no-op.
func (a *TCPAcceptor) Close() error {
	if err := a.Stop(); err != nil && err != ErrEntityNotStarted {
		return err
	}
	return nil
}
