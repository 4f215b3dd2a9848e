package transport

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/flynn/noise"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/curve25519"
)

// noiseCipherSuite is the fixed suite for the Noise-IK wrapper.
var noiseCipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashBLAKE2s)

// NoiseKeypair is a static Curve25519 keypair for the Noise transport.
type NoiseKeypair struct {
	Private []byte
	Public  []byte
}

// GenerateNoiseKeypair creates a fresh static Curve25519 keypair.
func GenerateNoiseKeypair() (*NoiseKeypair, error) {
	priv := make([]byte, 32)
	if _, err := rand.Read(priv); err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}
	return &NoiseKeypair{Private: priv, Public: pub}, nil
}

// noiseSession tracks the handshake and cipher state for one peer.
type noiseSession struct {
	mu        sync.Mutex
	hs        *noise.HandshakeState
	send      *noise.CipherState
	recv      *noise.CipherState
	peerAddr  net.Addr
	initiator bool
	complete  bool
}

// isComplete reports whether the handshake has finished.
func (s *noiseSession) isComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.complete
}

// NoiseTransport wraps an existing Transport with Noise-IK encryption.
// Handshake packets pass through unencrypted; every other packet type is
// encrypted transparently once a session with the peer is established.
// Initiating requires the peer's static public key, registered via AddPeer.
type NoiseTransport struct {
	underlying Transport
	keypair    noise.DHKey

	sessionsMu sync.RWMutex
	sessions   map[string]*noiseSession

	peerKeysMu sync.RWMutex
	peerKeys   map[string][]byte

	handlersMu sync.RWMutex
	handlers   map[PacketType]PacketHandler

	closedMu sync.Mutex
	closed   bool
}

// NewNoiseTransport creates a transport wrapper that adds Noise-IK
// encryption. staticPriv is our long-term Curve25519 private key (32
// bytes); underlying is the base transport to wrap.
func NewNoiseTransport(underlying Transport, staticPriv []byte) (*NoiseTransport, error) {
	if underlying == nil {
		return nil, errors.New("underlying transport cannot be nil")
	}
	if len(staticPriv) != 32 {
		return nil, fmt.Errorf("static private key must be 32 bytes, got %d", len(staticPriv))
	}

	pub, err := curve25519.X25519(staticPriv, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	nt := &NoiseTransport{
		underlying: underlying,
		keypair: noise.DHKey{
			Private: append([]byte(nil), staticPriv...),
			Public:  pub,
		},
		sessions: make(map[string]*noiseSession),
		peerKeys: make(map[string][]byte),
		handlers: make(map[PacketType]PacketHandler),
	}

	underlying.RegisterHandler(PacketNoiseHandshake, nt.handleHandshakePacket)
	underlying.RegisterHandler(PacketNoiseMessage, nt.handleEncryptedPacket)

	logrus.WithFields(logrus.Fields{
		"function":   "NewNoiseTransport",
		"public_key": fmt.Sprintf("%x", pub[:8]),
	}).Info("Noise transport created")

	return nt, nil
}

// PublicKey returns our static public key.
func (nt *NoiseTransport) PublicKey() []byte {
	return append([]byte(nil), nt.keypair.Public...)
}

// AddPeer registers a peer's static public key so we can initiate
// handshakes toward its address.
func (nt *NoiseTransport) AddPeer(addr net.Addr, publicKey []byte) error {
	if len(publicKey) != 32 {
		return fmt.Errorf("public key must be 32 bytes, got %d", len(publicKey))
	}
	allZero := true
	for _, b := range publicKey {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return errors.New("invalid public key: all zeros")
	}

	nt.peerKeysMu.Lock()
	nt.peerKeys[addr.String()] = append([]byte(nil), publicKey...)
	nt.peerKeysMu.Unlock()
	return nil
}

// Send sends a packet with encryption when a complete session exists for
// the peer. Handshake packets are never encrypted. With no session, a
// handshake is initiated for known peers and the packet is sent in the
// clear, matching the wrapped transport's behavior for unknown peers.
func (nt *NoiseTransport) Send(packet *Packet, addr net.Addr) error {
	if packet.PacketType == PacketNoiseHandshake {
		return nt.underlying.Send(packet, addr)
	}

	nt.sessionsMu.RLock()
	session, exists := nt.sessions[addr.String()]
	nt.sessionsMu.RUnlock()

	if !exists || !session.isComplete() {
		if err := nt.initiateHandshake(addr); err != nil {
			return nt.underlying.Send(packet, addr)
		}
		return nt.underlying.Send(packet, addr)
	}

	encrypted, err := nt.encryptPacket(packet, session)
	if err != nil {
		return fmt.Errorf("encryption failed: %w", err)
	}
	return nt.underlying.Send(encrypted, addr)
}

// Close shuts down the wrapper and the underlying transport. Safe to call
// multiple times.
func (nt *NoiseTransport) Close() error {
	nt.closedMu.Lock()
	if nt.closed {
		nt.closedMu.Unlock()
		return nil
	}
	nt.closed = true
	nt.closedMu.Unlock()

	nt.sessionsMu.Lock()
	nt.sessions = make(map[string]*noiseSession)
	nt.sessionsMu.Unlock()

	return nt.underlying.Close()
}

// LocalAddr returns the local address of the underlying transport.
func (nt *NoiseTransport) LocalAddr() net.Addr {
	return nt.underlying.LocalAddr()
}

// RegisterHandler registers a handler invoked with decrypted packets.
func (nt *NoiseTransport) RegisterHandler(packetType PacketType, handler PacketHandler) {
	nt.handlersMu.Lock()
	nt.handlers[packetType] = handler
	nt.handlersMu.Unlock()
}

// initiateHandshake starts a Noise-IK handshake with a known peer.
func (nt *NoiseTransport) initiateHandshake(addr net.Addr) error {
	addrKey := addr.String()

	nt.peerKeysMu.RLock()
	peerKey, known := nt.peerKeys[addrKey]
	nt.peerKeysMu.RUnlock()
	if !known {
		return ErrNoPeerKey
	}

	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   noiseCipherSuite,
		Pattern:       noise.HandshakeIK,
		Initiator:     true,
		StaticKeypair: nt.keypair,
		PeerStatic:    peerKey,
	})
	if err != nil {
		return fmt.Errorf("failed to create handshake: %w", err)
	}

	message, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return fmt.Errorf("failed to generate handshake message: %w", err)
	}

	nt.sessionsMu.Lock()
	nt.sessions[addrKey] = &noiseSession{
		hs:        hs,
		peerAddr:  addr,
		initiator: true,
	}
	nt.sessionsMu.Unlock()

	return nt.underlying.Send(&Packet{PacketType: PacketNoiseHandshake, Data: message}, addr)
}

// handleHandshakePacket processes incoming Noise handshake messages for
// both roles.
func (nt *NoiseTransport) handleHandshakePacket(packet *Packet, addr net.Addr) error {
	session, err := nt.getOrCreateSession(addr)
	if err != nil {
		return err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.complete {
		return fmt.Errorf("handshake already complete for peer %s", addr)
	}

	if session.initiator {
		// Second IK message: the responder's reply completes the handshake.
		_, cs1, cs2, err := session.hs.ReadMessage(nil, packet.Data)
		if err != nil {
			return fmt.Errorf("failed to read handshake response: %w", err)
		}
		session.send = cs1
		session.recv = cs2
		session.complete = true
		return nil
	}

	// First IK message: consume it and reply, which completes the
	// handshake on the responder side.
	if _, _, _, err := session.hs.ReadMessage(nil, packet.Data); err != nil {
		return fmt.Errorf("failed to read handshake message: %w", err)
	}
	response, cs1, cs2, err := session.hs.WriteMessage(nil, nil)
	if err != nil {
		return fmt.Errorf("failed to generate handshake response: %w", err)
	}
	session.send = cs2
	session.recv = cs1
	session.complete = true

	return nt.underlying.Send(&Packet{PacketType: PacketNoiseHandshake, Data: response}, addr)
}

// getOrCreateSession returns the session for addr, creating a responder
// session for a first-contact handshake.
func (nt *NoiseTransport) getOrCreateSession(addr net.Addr) (*noiseSession, error) {
	addrKey := addr.String()

	nt.sessionsMu.RLock()
	session, exists := nt.sessions[addrKey]
	nt.sessionsMu.RUnlock()
	if exists {
		return session, nil
	}

	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   noiseCipherSuite,
		Pattern:       noise.HandshakeIK,
		Initiator:     false,
		StaticKeypair: nt.keypair,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create responder handshake: %w", err)
	}

	session = &noiseSession{
		hs:       hs,
		peerAddr: addr,
	}

	nt.sessionsMu.Lock()
	nt.sessions[addrKey] = session
	nt.sessionsMu.Unlock()
	return session, nil
}

// handleEncryptedPacket decrypts an incoming Noise message and forwards
// the inner packet to the registered handler.
func (nt *NoiseTransport) handleEncryptedPacket(packet *Packet, addr net.Addr) error {
	nt.sessionsMu.RLock()
	session, exists := nt.sessions[addr.String()]
	nt.sessionsMu.RUnlock()

	if !exists || !session.isComplete() {
		return ErrSessionNotFound
	}

	session.mu.Lock()
	plaintext, err := session.recv.Decrypt(nil, nil, packet.Data)
	session.mu.Unlock()
	if err != nil {
		return fmt.Errorf("decryption failed: %w", err)
	}

	inner, err := ParsePacket(plaintext)
	if err != nil {
		return fmt.Errorf("invalid decrypted packet: %w", err)
	}

	nt.handlersMu.RLock()
	handler, ok := nt.handlers[inner.PacketType]
	nt.handlersMu.RUnlock()

	if ok {
		go handler(inner, session.peerAddr)
	}
	return nil
}

// encryptPacket encrypts a serialized packet with the session's send
// cipher, producing a PacketNoiseMessage envelope.
func (nt *NoiseTransport) encryptPacket(packet *Packet, session *noiseSession) (*Packet, error) {
	serialized, err := packet.Serialize()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize packet: %w", err)
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if !session.complete || session.send == nil {
		return nil, errors.New("session not complete")
	}
	ciphertext, err := session.send.Encrypt(nil, nil, serialized)
	if err != nil {
		return nil, fmt.Errorf("encryption failed: %w", err)
	}

	return &Packet{PacketType: PacketNoiseMessage, Data: ciphertext}, nil
}
