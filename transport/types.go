package transport

import (
	"net"
	"time"
)

// PacketHandler is a function that processes incoming packets.
type PacketHandler func(packet *Packet, addr net.Addr) error

// Transport defines the send-side interface shared by the netcore entities.
// This abstraction allows different transports (UDP, TCP, Noise-wrapped)
// to be used interchangeably.
type Transport interface {
	// Send sends a packet to the specified address.
	Send(packet *Packet, addr net.Addr) error

	// Close shuts down the transport.
	Close() error

	// LocalAddr returns the local address the transport is listening on.
	LocalAddr() net.Addr

	// RegisterHandler registers a handler for a specific packet type.
	RegisterHandler(packetType PacketType, handler PacketHandler)
}

// Config holds the settings shared by the transport entities.
type Config struct {
	// ListenAddr is the local address to listen or bind on, in
	// host:port form. For a connector it is unused.
	ListenAddr string

	// ReadTimeout bounds each blocking read inside the receive loops so
	// they can observe shutdown promptly.
	ReadTimeout time.Duration

	// WriteTimeout bounds each write issued on a connection.
	WriteTimeout time.Duration

	// InboundQueueCap, when positive, backs the UDP inbound handoff queue
	// with a fixed-capacity ring buffer of that size instead of growable
	// storage. The ring overwrites the oldest undispatched packet when
	// full.
	InboundQueueCap int

	// Time supplies the clock used for deadlines. Nil selects the real
	// system clock.
	Time TimeProvider
}

// DefaultConfig returns a Config with the timeouts used throughout the
// library's own tests and tools.
func DefaultConfig(listenAddr string) Config {
	return Config{
		ListenAddr:   listenAddr,
		ReadTimeout:  100 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}
}
