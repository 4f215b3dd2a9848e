package transport

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/netcore/lifecycle"
	"github.com/opd-ai/netcore/outbound"
	"github.com/opd-ai/netcore/queue"
)

// maxDatagramSize is the receive buffer size for a single datagram.
const maxDatagramSize = 65536

// inboundPacket bundles a parsed packet with its source address for the
// handoff between the read loop and the dispatch goroutine.
type inboundPacket struct {
	packet *Packet
	addr   net.Addr
}

// UDPEntity is the datagram network entity. Outgoing datagrams are paced
// through an outbound.Tracker with the destination carried per element, so
// sends from any number of goroutines serialize into one in-flight write
// plus an ordered backlog. Inbound datagrams are handed from the read loop
// to a dedicated dispatch goroutine through a queue.Queue; closing that
// queue is the dispatcher's shutdown signal.
type UDPEntity struct {
	cfg   Config
	state lifecycle.State[*UDPEntity]

	mu           sync.Mutex
	pconn        net.PacketConn
	tracker      *outbound.Tracker
	inbound      *queue.Queue[inboundPacket]
	shutdownOnce *sync.Once

	handlersMu sync.RWMutex
	handlers   map[PacketType]PacketHandler

	bytesSent atomic.Uint64
	bytesRecv atomic.Uint64
}

// NewUDPEntity creates a stopped UDP entity for the configured bind
// address. Nothing is bound until Start.
func NewUDPEntity(cfg Config) *UDPEntity {
	return &UDPEntity{
		cfg:      cfg,
		handlers: make(map[PacketType]PacketHandler),
	}
}

// RegisterHandler registers a handler for a specific packet type.
func (u *UDPEntity) RegisterHandler(packetType PacketType, handler PacketHandler) {
	u.handlersMu.Lock()
	defer u.handlersMu.Unlock()

	u.handlers[packetType] = handler
}

// IsStarted reports whether the entity is currently started.
func (u *UDPEntity) IsStarted() bool {
	return u.state.IsStarted()
}

// Start atomically transitions the entity to started, binds the socket,
// and spawns the read and dispatch goroutines. Losers of a concurrent
// Start race receive ErrEntityStarted; a failed bind rolls the state back.
func (u *UDPEntity) Start(fn lifecycle.ShutdownFunc[*UDPEntity]) error {
	if !u.state.Start(fn) {
		return ErrEntityStarted
	}

	pconn, err := net.ListenPacket("udp", u.cfg.ListenAddr)
	if err != nil {
		u.state.Stop()
		return newNetError("listen", u.cfg.ListenAddr, err)
	}

	tracker := outbound.NewTracker()
	tracker.SetIOStarted()

	inbound := u.newInboundQueue()

	u.mu.Lock()
	u.pconn = pconn
	u.tracker = tracker
	u.inbound = inbound
	u.shutdownOnce = new(sync.Once)
	once := u.shutdownOnce
	u.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":   "Start",
		"component":  "UDPEntity",
		"local_addr": pconn.LocalAddr().String(),
	}).Info("UDP entity started")

	go u.readLoop(pconn, inbound, once)
	go u.dispatchLoop(inbound)
	return nil
}

// newInboundQueue builds the read-to-dispatch handoff queue, ring-backed
// when the config requests a bounded capacity.
func (u *UDPEntity) newInboundQueue() *queue.Queue[inboundPacket] {
	if u.cfg.InboundQueueCap > 0 {
		return queue.NewWithBuffer[inboundPacket](queue.NewRingBuffer[inboundPacket](u.cfg.InboundQueueCap))
	}
	return queue.New[inboundPacket]()
}

// Stop atomically transitions the entity to stopped and closes the socket.
// The read loop observes the closed socket, closes the inbound queue to
// release the dispatcher, and issues the cycle's shutdown notification.
func (u *UDPEntity) Stop() error {
	if !u.state.Stop() {
		return ErrEntityNotStarted
	}

	u.mu.Lock()
	pconn := u.pconn
	u.pconn = nil
	u.mu.Unlock()

	if pconn != nil {
		_ = pconn.Close()
	}
	return nil
}

// Send serializes the packet and sends it to addr, pacing through the
// tracker. A Send arriving while another datagram is in flight returns nil
// immediately; it has been queued with its destination and will be written
// in arrival order by the goroutine draining the backlog.
func (u *UDPEntity) Send(packet *Packet, addr net.Addr) error {
	u.mu.Lock()
	pconn := u.pconn
	tracker := u.tracker
	u.mu.Unlock()

	if pconn == nil || tracker == nil {
		return newNetError("send", "", ErrEntityNotStarted)
	}

	data, err := packet.Serialize()
	if err != nil {
		return newNetError("send", addr.String(), err)
	}

	if !tracker.StartWriteSetup(data, addr) {
		if !tracker.IOStarted() {
			return newNetError("send", addr.String(), ErrIONotStarted)
		}
		return nil
	}

	return u.writeAndDrain(pconn, tracker, data, addr)
}

// writeAndDrain issues the granted write, then services the backlog until
// the tracker reports it empty. A failed datagram is logged and does not
// stop the drain; the first error is returned once the backlog is empty so
// the in-flight flag never sticks.
func (u *UDPEntity) writeAndDrain(pconn net.PacketConn, tracker *outbound.Tracker, data []byte, addr net.Addr) error {
	var firstErr error
	for {
		n, err := pconn.WriteTo(data, addr)
		u.bytesSent.Add(uint64(n))
		if err != nil {
			if firstErr == nil {
				firstErr = newNetError("write", addr.String(), err)
			}
			logrus.WithFields(logrus.Fields{
				"function":  "writeAndDrain",
				"component": "UDPEntity",
				"dest":      addr.String(),
				"error":     err.Error(),
			}).Warn("Datagram write failed")
		}

		elem, ok := tracker.NextElement()
		if !ok {
			return firstErr
		}
		data = elem.Payload
		addr = elem.Dest
	}
}

// readLoop receives datagrams until the socket fails or is closed, pushing
// parsed packets onto the inbound queue. On exit it closes the queue and
// issues the cycle's single shutdown notification.
func (u *UDPEntity) readLoop(pconn net.PacketConn, inbound *queue.Queue[inboundPacket], once *sync.Once) {
	buffer := make([]byte, maxDatagramSize)
	for {
		if u.cfg.ReadTimeout > 0 {
			deadline := getTimeProvider(u.cfg.Time).Now().Add(u.cfg.ReadTimeout)
			_ = pconn.SetReadDeadline(deadline)
		}

		n, addr, err := pconn.ReadFrom(buffer)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if !u.state.IsStarted() {
				// Stop closed the socket: clean shutdown.
				err = nil
			}
			inbound.Close()
			u.notifyShutdown(once, err)
			return
		}
		u.bytesRecv.Add(uint64(n))

		packet, err := ParsePacket(buffer[:n])
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":  "readLoop",
				"component": "UDPEntity",
				"source":    addr.String(),
				"error":     err.Error(),
			}).Warn("Dropping unparseable datagram")
			continue
		}
		inbound.Push(inboundPacket{packet: packet, addr: addr})
	}
}

// dispatchLoop consumes the inbound queue until it is closed and drained,
// invoking the registered handler for each packet.
func (u *UDPEntity) dispatchLoop(inbound *queue.Queue[inboundPacket]) {
	for {
		ip, ok := inbound.WaitAndPop()
		if !ok {
			return
		}

		u.handlersMu.RLock()
		handler, exists := u.handlers[ip.packet.PacketType]
		u.handlersMu.RUnlock()

		if exists {
			if err := handler(ip.packet, ip.addr); err != nil {
				logrus.WithFields(logrus.Fields{
					"function":  "dispatchLoop",
					"component": "UDPEntity",
					"source":    ip.addr.String(),
					"error":     err.Error(),
				}).Warn("Packet handler failed")
			}
		}
	}
}

// notifyShutdown invokes the lifecycle shutdown callback at most once per
// started cycle, with the entity's lifetime byte total.
func (u *UDPEntity) notifyShutdown(once *sync.Once, err error) {
	once.Do(func() {
		u.state.InvokeShutdown(u, err, u.bytesSent.Load()+u.bytesRecv.Load())
	})
}

// Bytes returns the total bytes sent and received over the entity's
// lifetime.
func (u *UDPEntity) Bytes() uint64 {
	return u.bytesSent.Load() + u.bytesRecv.Load()
}

// OutputStats returns the write backlog snapshot, or zero stats when
// stopped.
func (u *UDPEntity) OutputStats() (stats outbound.Stats) {
	u.mu.Lock()
	tracker := u.tracker
	u.mu.Unlock()
	if tracker == nil {
		return stats
	}
	return tracker.Stats()
}

// LocalAddr returns the bound socket address, or nil when stopped.
func (u *UDPEntity) LocalAddr() net.Addr {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.pconn == nil {
		return nil
	}
	return u.pconn.LocalAddr()
}

// Close stops the entity, satisfying the Transport interface. Closing a
// stopped entity is a no-op.
func (u *UDPEntity) Close() error {
	if err := u.Stop(); err != nil && err != ErrEntityNotStarted {
		return err
	}
	return nil
}
