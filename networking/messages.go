package networking

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"go_rdt_copy/constants"
	"go_rdt_copy/networking/opcode"
)

// Header contains static packet parts
type Header struct {
	Size     uint16 // Header + payload length
	Checksum uint16 // Internet checksum over whole packet with this field zeroed
	Type     uint8
	Seq      uint32
	// Followed by Size - HEADER_SIZE bytes payload.
}

// Packet contains Header + payload
type Packet struct {
	Header
	Payload []byte
}

// Checksum computes 16-bit one's complement sum of little-endian words
func Checksum(data []byte) uint16 {
	var sum uint32
	for len(data) > 1 {
		sum += uint32(data[0]) | uint32(data[1])<<8
		data = data[2:]
	}
	// Trailing odd byte counts as its own word.
	if len(data) == 1 {
		sum += uint32(data[0])
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}

// BuildPacket creates packet of given type and sequence with checksum filled in
func BuildPacket(ptype uint8, seq uint32, payload []byte) (*Packet, error) {
	if len(payload) > constants.MAX_PAYLOAD {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), constants.MAX_PAYLOAD)
	}

	packet := &Packet{
		Header: Header{
			Size: uint16(constants.HEADER_SIZE + len(payload)),
			Type: ptype,
			Seq:  seq,
		},
		Payload: append(make([]byte, 0, len(payload)), payload...),
	}
	packet.Checksum = Checksum(packet.Bytes())

	return packet, nil
}

// Bytes encodes packet to slice of bytes
func (p *Packet) Bytes() []byte {
	buffer := bytes.NewBuffer(make([]byte, 0, constants.HEADER_SIZE+len(p.Payload)))
	binary.Write(buffer, binary.LittleEndian, p.Header)
	buffer.Write(p.Payload)
	return buffer.Bytes()
}

// Decode decodes datagram to Packet without verifying checksum
func Decode(datagram []byte) (*Packet, error) {
	if len(datagram) < constants.HEADER_SIZE {
		return nil, fmt.Errorf("%w: datagram of %d bytes is shorter than header", ErrCorrupted, len(datagram))
	}

	packet := new(Packet)
	if err := binary.Read(bytes.NewReader(datagram[:constants.HEADER_SIZE]), binary.LittleEndian, &packet.Header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}

	size := int(packet.Size)
	if size < constants.HEADER_SIZE || size > constants.MAX_DATAGRAM_SIZE || size > len(datagram) {
		return nil, fmt.Errorf("%w: size field %d out of range", ErrCorrupted, size)
	}
	packet.Payload = append([]byte(nil), datagram[constants.HEADER_SIZE:size]...)

	return packet, nil
}

// IsCorrupted recomputes checksum over a copy with checksum zeroed and compares
func IsCorrupted(p *Packet) bool {
	check := *p
	check.Checksum = 0
	return Checksum(check.Bytes()) != p.Checksum
}

// MatchesAck returns true if packet acknowledges given sequence number
func MatchesAck(p *Packet, seq uint32) bool {
	return p.Type == opcode.ACK && p.Seq == seq
}

// MatchesDataSeq returns true if packet is DATA with given sequence number
func MatchesDataSeq(p *Packet, seq uint32) bool {
	return p.Type == opcode.DATA && p.Seq == seq
}

func (p *Packet) String() string {
	return fmt.Sprintf("%s seq=%d size=%d", opcode.Name(p.Type), p.Seq, p.Size)
}
