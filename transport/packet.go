package transport

import (
	"errors"
)

// PacketType identifies the type of a netcore packet.
type PacketType byte

const (
	// Application packet types
	PacketData PacketType = iota + 1
	PacketPing
	PacketPong

	// Noise Protocol Framework packet types
	PacketNoiseHandshake PacketType = 250
	PacketNoiseMessage   PacketType = 251
)

// Packet represents one framed unit of transfer.
type Packet struct {
	PacketType PacketType
	Data       []byte
}

// Serialize converts a packet to a byte slice for transmission.
func (p *Packet) Serialize() ([]byte, error) {
	if p.Data == nil {
		return nil, errors.New("packet data is nil")
	}

	// Format: [packet type (1 byte)][data (variable length)]
	result := make([]byte, 1+len(p.Data))
	result[0] = byte(p.PacketType)
	copy(result[1:], p.Data)

	return result, nil
}

// ParsePacket converts a byte slice to a Packet structure.
func ParsePacket(data []byte) (*Packet, error) {
	if len(data) < 1 {
		return nil, errors.New("packet too short")
	}

	packet := &Packet{
		PacketType: PacketType(data[0]),
		Data:       make([]byte, len(data)-1),
	}
	copy(packet.Data, data[1:])

	return packet, nil
}
