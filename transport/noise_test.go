package transport

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockTransport implements the Transport interface for testing. Two mocks
// can be paired so that a Send on one is delivered synchronously to the
// other's registered handler, simulating a lossless wire.
type MockTransport struct {
	mu        sync.Mutex
	packets   []mockPacketSend
	handlers  map[PacketType]PacketHandler
	localAddr net.Addr
	peer      *MockTransport
}

type mockPacketSend struct {
	packet *Packet
	addr   net.Addr
}

func NewMockTransport(addr string) *MockTransport {
	localAddr, _ := net.ResolveUDPAddr("udp", addr)
	return &MockTransport{
		handlers:  make(map[PacketType]PacketHandler),
		localAddr: localAddr,
	}
}

// Pair connects two mocks so their sends are delivered to each other.
func (m *MockTransport) Pair(other *MockTransport) {
	m.peer = other
	other.peer = m
}

func (m *MockTransport) Send(packet *Packet, addr net.Addr) error {
	m.mu.Lock()
	m.packets = append(m.packets, mockPacketSend{packet: packet, addr: addr})
	peer := m.peer
	from := m.localAddr
	m.mu.Unlock()

	if peer != nil {
		return peer.deliver(packet, from)
	}
	return nil
}

// deliver hands a packet to this mock's registered handler, as if received
// from addr.
func (m *MockTransport) deliver(packet *Packet, addr net.Addr) error {
	m.mu.Lock()
	handler, exists := m.handlers[packet.PacketType]
	m.mu.Unlock()

	if exists {
		return handler(packet, addr)
	}
	return nil
}

func (m *MockTransport) Close() error {
	return nil
}

func (m *MockTransport) LocalAddr() net.Addr {
	return m.localAddr
}

func (m *MockTransport) RegisterHandler(packetType PacketType, handler PacketHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[packetType] = handler
}

// SentPackets returns a snapshot of everything sent through this mock.
func (m *MockTransport) SentPackets() []mockPacketSend {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPacketSend(nil), m.packets...)
}

// TestGenerateNoiseKeypair tests static keypair generation.
func TestGenerateNoiseKeypair(t *testing.T) {
	kp, err := GenerateNoiseKeypair()
	require.NoError(t, err)
	assert.Len(t, kp.Private, 32)
	assert.Len(t, kp.Public, 32)
	assert.NotEqual(t, kp.Private, kp.Public)

	kp2, err := GenerateNoiseKeypair()
	require.NoError(t, err)
	assert.NotEqual(t, kp.Private, kp2.Private, "keypairs must be random")
}

// TestNewNoiseTransportValidation tests constructor input checking.
func TestNewNoiseTransportValidation(t *testing.T) {
	kp, err := GenerateNoiseKeypair()
	require.NoError(t, err)

	_, err = NewNoiseTransport(nil, kp.Private)
	assert.Error(t, err, "nil underlying transport must be rejected")

	_, err = NewNoiseTransport(NewMockTransport("127.0.0.1:8080"), make([]byte, 16))
	assert.Error(t, err, "short key must be rejected")

	nt, err := NewNoiseTransport(NewMockTransport("127.0.0.1:8080"), kp.Private)
	require.NoError(t, err)
	assert.Equal(t, kp.Public, nt.PublicKey())
	assert.NotNil(t, nt.LocalAddr())
}

// TestNoiseAddPeerValidation tests peer key registration checks.
func TestNoiseAddPeerValidation(t *testing.T) {
	kp, err := GenerateNoiseKeypair()
	require.NoError(t, err)
	nt, err := NewNoiseTransport(NewMockTransport("127.0.0.1:8080"), kp.Private)
	require.NoError(t, err)

	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9090}
	assert.Error(t, nt.AddPeer(addr, make([]byte, 16)), "short key")
	assert.Error(t, nt.AddPeer(addr, make([]byte, 32)), "all-zero key")

	peer, err := GenerateNoiseKeypair()
	require.NoError(t, err)
	assert.NoError(t, nt.AddPeer(addr, peer.Public))
}

// TestNoiseUnknownPeerFallsBack tests that sending to a peer with no
// registered key falls back to the underlying transport in the clear.
func TestNoiseUnknownPeerFallsBack(t *testing.T) {
	kp, err := GenerateNoiseKeypair()
	require.NoError(t, err)
	mock := NewMockTransport("127.0.0.1:8080")
	nt, err := NewNoiseTransport(mock, kp.Private)
	require.NoError(t, err)

	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9090}
	require.NoError(t, nt.Send(&Packet{PacketType: PacketData, Data: []byte("plain")}, addr))

	sent := mock.SentPackets()
	require.Len(t, sent, 1)
	assert.Equal(t, PacketData, sent[0].packet.PacketType, "unknown peer stays plaintext")
}

// TestNoiseHandshakeAndEncryptedExchange tests the full Noise-IK flow over
// a paired mock wire: handshake on first contact, transparent encryption
// afterward, decrypted delivery to the far side's handler.
func TestNoiseHandshakeAndEncryptedExchange(t *testing.T) {
	initKP, err := GenerateNoiseKeypair()
	require.NoError(t, err)
	respKP, err := GenerateNoiseKeypair()
	require.NoError(t, err)

	initMock := NewMockTransport("127.0.0.1:1111")
	respMock := NewMockTransport("127.0.0.1:2222")
	initMock.Pair(respMock)

	initiator, err := NewNoiseTransport(initMock, initKP.Private)
	require.NoError(t, err)
	responder, err := NewNoiseTransport(respMock, respKP.Private)
	require.NoError(t, err)

	respAddr := respMock.LocalAddr()
	require.NoError(t, initiator.AddPeer(respAddr, respKP.Public))

	received := make(chan *Packet, 1)
	responder.RegisterHandler(PacketData, func(p *Packet, addr net.Addr) error {
		received <- p
		return nil
	})

	// First send primes the handshake (delivered synchronously over the
	// paired mocks) and goes out in the clear.
	require.NoError(t, initiator.Send(&Packet{PacketType: PacketPing, Data: []byte("prime")}, respAddr))

	// Session is now complete on both sides; this send must be encrypted.
	require.NoError(t, initiator.Send(&Packet{PacketType: PacketData, Data: []byte("secret")}, respAddr))

	select {
	case p := <-received:
		assert.Equal(t, []byte("secret"), p.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("Responder never received the decrypted packet")
	}

	// The wire saw a handshake packet and a noise message, never a
	// plaintext PacketData.
	for _, sent := range initMock.SentPackets() {
		assert.NotEqual(t, PacketData, sent.packet.PacketType,
			"application data must not cross the wire in the clear after AddPeer+handshake")
	}
}

// TestNoiseCloseIdempotent tests that Close is safe to repeat.
func TestNoiseCloseIdempotent(t *testing.T) {
	kp, err := GenerateNoiseKeypair()
	require.NoError(t, err)
	nt, err := NewNoiseTransport(NewMockTransport("127.0.0.1:8080"), kp.Private)
	require.NoError(t, err)

	assert.NoError(t, nt.Close())
	assert.NoError(t, nt.Close())
}
