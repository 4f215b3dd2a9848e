package transport

import (
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/netcore/lifecycle"
	"github.com/opd-ai/netcore/outbound"
)

// TCPConnector is the outbound network entity: one dialed stream
// connection per started cycle. The shutdown callback installed by Start
// receives the connection handler, the terminating error (nil for clean
// local close or peer EOF), and the connection's lifetime byte count.
type TCPConnector struct {
	cfg        Config
	remoteAddr string
	state      lifecycle.State[*TCPConn]

	mu   sync.Mutex
	conn *TCPConn

	handlersMu sync.RWMutex
	handlers   map[PacketType]PacketHandler
}

// NewTCPConnector creates a stopped connector for the given remote
// host:port address.
func NewTCPConnector(cfg Config, remoteAddr string) *TCPConnector {
	return &TCPConnector{
		cfg:        cfg,
		remoteAddr: remoteAddr,
		handlers:   make(map[PacketType]PacketHandler),
	}
}

// RegisterHandler registers a handler for a specific packet type.
func (t *TCPConnector) RegisterHandler(packetType PacketType, handler PacketHandler) {
	t.handlersMu.Lock()
	defer t.handlersMu.Unlock()

	t.handlers[packetType] = handler
}

// IsStarted reports whether the connector is currently started.
func (t *TCPConnector) IsStarted() bool {
	return t.state.IsStarted()
}

// Start atomically transitions the connector to started and dials the
// remote address. Concurrent Start calls resolve to one winner; losers
// receive ErrEntityStarted. A failed dial rolls the state back to stopped.
func (t *TCPConnector) Start(fn lifecycle.ShutdownFunc[*TCPConn]) error {
	if !t.state.Start(fn) {
		return ErrEntityStarted
	}

	raw, err := net.DialTimeout("tcp", t.remoteAddr, t.cfg.WriteTimeout)
	if err != nil {
		t.state.Stop()
		return newNetError("dial", t.remoteAddr, err)
	}

	c := newTCPConn(raw, t.cfg, t.dispatchPacket, t.connClosed)
	t.mu.Lock()
	t.conn = c
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":    "Start",
		"component":   "TCPConnector",
		"conn_id":     c.ID(),
		"remote_addr": t.remoteAddr,
	}).Info("Connector established connection")

	c.startIO()
	return nil
}

// Stop atomically transitions the connector to stopped and closes the
// connection. The connection's termination drives the shutdown
// notification; Stop itself never invokes the callback.
func (t *TCPConnector) Stop() error {
	if !t.state.Stop() {
		return ErrEntityNotStarted
	}

	t.mu.Lock()
	c := t.conn
	t.conn = nil
	t.mu.Unlock()

	if c != nil {
		_ = c.Close()
	}
	return nil
}

// connClosed delivers the per-cycle shutdown notification. TCPConn's own
// close-once guard guarantees a single invocation per connection, and the
// connector holds one connection per cycle.
func (t *TCPConnector) connClosed(c *TCPConn, err error) {
	t.state.InvokeShutdown(c, err, c.Bytes())
}

// dispatchPacket routes a parsed inbound packet to the registered handler.
func (t *TCPConnector) dispatchPacket(packet *Packet, addr net.Addr) {
	t.handlersMu.RLock()
	handler, exists := t.handlers[packet.PacketType]
	t.handlersMu.RUnlock()

	if exists {
		go handler(packet, addr)
	}
}

// Send sends a packet to the connected peer. The addr argument is accepted
// for Transport interface compatibility and ignored; a connector has
// exactly one peer.
func (t *TCPConnector) Send(packet *Packet, _ net.Addr) error {
	t.mu.Lock()
	c := t.conn
	t.mu.Unlock()

	if c == nil {
		return newNetError("send", t.remoteAddr, ErrEntityNotStarted)
	}
	return c.Send(packet)
}

// Conn returns the current connection, or nil when stopped.
func (t *TCPConnector) Conn() *TCPConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

// OutputStats returns the write backlog snapshot of the current
// connection, or zero stats when stopped.
func (t *TCPConnector) OutputStats() (stats outbound.Stats) {
	t.mu.Lock()
	c := t.conn
	t.mu.Unlock()
	if c == nil {
		return stats
	}
	return c.OutputStats()
}

// LocalAddr returns the local address of the dialed connection, or nil
// when stopped.
func (t *TCPConnector) LocalAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.LocalAddr()
}

// Close stops the connector, satisfying the Transport interface. Closing a
// stopped connector is a no-op.
func (t *TCPConnector) Close() error {
	if err := t.Stop(); err != nil && err != ErrEntityNotStarted {
		return err
	}
	return nil
}
