package networking

import (
	"errors"
	"fmt"
	"go_rdt_copy/constants"
	"go_rdt_copy/networking/opcode"
	"net"
	"os"
	"time"
)

// Reception is the outcome of one bounded wait on a transport
type Reception struct {
	TimedOut  bool     // Nothing arrived before the timeout
	Corrupted bool     // Datagram arrived but failed validation
	Packet    *Packet  // Nil when timed out or undecodable
	Addr      net.Addr // Source of the datagram
}

// Receive waits up to timeout for one packet. Timeout <= 0 blocks until data arrives.
func Receive(t Transport, timeout time.Duration) (Reception, error) {
	buf := make([]byte, constants.MAX_DATAGRAM_SIZE)

	n, addr, err := t.ReadFrom(buf, timeout)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return Reception{TimedOut: true}, nil
		}
		return Reception{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	packet, err := Decode(buf[:n])
	if err != nil {
		return Reception{Corrupted: true, Addr: addr}, nil
	}

	return Reception{
		Corrupted: IsCorrupted(packet),
		Packet:    packet,
		Addr:      addr,
	}, nil
}

// Send encodes packet and writes it to addr
func Send(t Transport, p *Packet, addr net.Addr) error {
	return SendRaw(t, p.Bytes(), addr)
}

// SendRaw writes already encoded packet to addr
func SendRaw(t Transport, raw []byte, addr net.Addr) error {
	if _, err := t.WriteTo(raw, addr); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return nil
}

// SendAck builds and sends ACK for given sequence number
func SendAck(t Transport, seq uint32, addr net.Addr) error {
	ack, err := BuildPacket(opcode.ACK, seq, nil)
	if err != nil {
		return err
	}
	return Send(t, ack, addr)
}
