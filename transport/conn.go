package transport

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/netcore/outbound"
)

// maxFrameSize caps the length prefix accepted from the wire. Frames above
// this are treated as a protocol violation and terminate the connection.
const maxFrameSize = 1 << 20

// TCPConn is one established stream connection, owned by a TCPAcceptor or
// TCPConnector. All outgoing packets flow through its outbound.Tracker, so
// at most one write is outstanding at a time and later Send calls queue in
// arrival order behind it.
type TCPConn struct {
	id      string
	conn    net.Conn
	cfg     Config
	tracker *outbound.Tracker

	// dispatch delivers parsed inbound packets to the owning entity.
	dispatch func(packet *Packet, addr net.Addr)
	// onClosed notifies the owning entity exactly once of termination.
	onClosed func(c *TCPConn, err error)

	closeOnce sync.Once
	bytesSent atomic.Uint64
	bytesRecv atomic.Uint64
}

// newTCPConn wraps an established stream socket. The connection does not
// accept writes until the owner calls startIO.
func newTCPConn(conn net.Conn, cfg Config, dispatch func(*Packet, net.Addr), onClosed func(*TCPConn, error)) *TCPConn {
	return &TCPConn{
		id:       uuid.NewString(),
		conn:     conn,
		cfg:      cfg,
		tracker:  outbound.NewTracker(),
		dispatch: dispatch,
		onClosed: onClosed,
	}
}

// ID returns the connection's unique identifier.
func (c *TCPConn) ID() string {
	return c.id
}

// RemoteAddr returns the peer address.
func (c *TCPConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// LocalAddr returns the local address of the connection.
func (c *TCPConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Bytes returns the total bytes sent and received over the connection's
// lifetime, counting framed packet bytes including the length prefix.
func (c *TCPConn) Bytes() uint64 {
	return c.bytesSent.Load() + c.bytesRecv.Load()
}

// OutputStats returns a snapshot of the connection's write backlog.
func (c *TCPConn) OutputStats() outbound.Stats {
	return c.tracker.Stats()
}

// startIO marks the connection writable and spawns the read loop. Called by
// the owning entity once the connection is fully established.
func (c *TCPConn) startIO() {
	if !c.tracker.SetIOStarted() {
		return
	}
	go c.readLoop()
}

// Send frames and sends a packet on the connection. A Send arriving while
// another write is in flight returns nil immediately; the payload has been
// queued and will be written, in order, by the goroutine currently
// draining the backlog.
func (c *TCPConn) Send(packet *Packet) error {
	data, err := packet.Serialize()
	if err != nil {
		return newNetError("send", c.conn.RemoteAddr().String(), err)
	}

	if !c.tracker.StartWriteSetup(data, nil) {
		if !c.tracker.IOStarted() {
			return newNetError("send", c.conn.RemoteAddr().String(), ErrIONotStarted)
		}
		// Queued behind the write in flight.
		return nil
	}

	return c.writeAndDrain(data)
}

// writeAndDrain issues the write this goroutine was granted, then services
// the backlog until the tracker reports it empty. Only one goroutine at a
// time can be here: the tracker hands out the in-flight slot to exactly one
// caller and keeps it until NextElement returns false.
func (c *TCPConn) writeAndDrain(data []byte) error {
	for {
		if err := c.writeFrame(data); err != nil {
			c.terminate(err)
			return newNetError("write", c.conn.RemoteAddr().String(), err)
		}
		elem, ok := c.tracker.NextElement()
		if !ok {
			return nil
		}
		data = elem.Payload
	}
}

// writeFrame writes one length-prefixed frame.
func (c *TCPConn) writeFrame(data []byte) error {
	if c.cfg.WriteTimeout > 0 {
		deadline := getTimeProvider(c.cfg.Time).Now().Add(c.cfg.WriteTimeout)
		if err := c.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
	}

	frame := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[4:], data)

	n, err := c.conn.Write(frame)
	c.bytesSent.Add(uint64(n))
	return err
}

// readLoop reads length-prefixed frames until the connection terminates,
// dispatching each parsed packet to the owning entity.
func (c *TCPConn) readLoop() {
	header := make([]byte, 4)
	for {
		n, err := io.ReadFull(c.conn, header)
		c.bytesRecv.Add(uint64(n))
		if err != nil {
			c.terminate(err)
			return
		}

		length := binary.BigEndian.Uint32(header)
		if length > maxFrameSize {
			logrus.WithFields(logrus.Fields{
				"function": "readLoop",
				"conn_id":  c.id,
				"length":   length,
			}).Warn("Oversized frame, terminating connection")
			c.terminate(newNetError("read", c.conn.RemoteAddr().String(), ErrFrameTooLarge))
			return
		}

		body := make([]byte, length)
		n, err = io.ReadFull(c.conn, body)
		c.bytesRecv.Add(uint64(n))
		if err != nil {
			c.terminate(err)
			return
		}

		packet, err := ParsePacket(body)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "readLoop",
				"conn_id":  c.id,
				"error":    err.Error(),
			}).Warn("Dropping unparseable packet")
			continue
		}
		c.dispatch(packet, c.conn.RemoteAddr())
	}
}

// Close tears the connection down. Safe to call multiple times and
// concurrently with in-flight reads and writes.
func (c *TCPConn) Close() error {
	c.terminate(nil)
	return nil
}

// terminate closes the socket once and notifies the owner. A nil error
// means a locally requested close; a peer's orderly EOF is also reported
// as clean shutdown.
func (c *TCPConn) terminate(err error) {
	if errors.Is(err, io.EOF) {
		err = nil
	}
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
		if c.onClosed != nil {
			c.onClosed(c, err)
		}
	})
}
