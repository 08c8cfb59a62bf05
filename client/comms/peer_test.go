package comms

import (
	"go_rdt_copy/networking"
	"go_rdt_copy/networking/opcode"
	"sync"
)

// scriptedPeer is a minimal cumulative-ACK receiver with scripted packet loss
type scriptedPeer struct {
	transport *networking.Loopback
	drop      func(p *networking.Packet, attempt int) bool
	finSeq    uint32 // Own FIN sent after acknowledging sender's FIN

	mu        sync.Mutex
	expected  uint32
	seen      map[uint32][][]byte // Intact DATA/START copies by sequence number
	acks      []uint32            // ACKs received from the sender
	corrupted int
	data      []byte
	done      chan struct{}
}

func newScriptedPeer(transport *networking.Loopback, drop func(p *networking.Packet, attempt int) bool) *scriptedPeer {
	if drop == nil {
		drop = func(*networking.Packet, int) bool { return false }
	}
	p := &scriptedPeer{
		transport: transport,
		drop:      drop,
		finSeq:    1,
		expected:  1,
		seen:      make(map[uint32][][]byte),
		done:      make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *scriptedPeer) run() {
	defer close(p.done)
	for {
		rcv, err := networking.Receive(p.transport, 0)
		if err != nil {
			return
		}
		p.handle(rcv)
	}
}

func (p *scriptedPeer) handle(rcv networking.Reception) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if rcv.Corrupted {
		p.corrupted++
		networking.SendAck(p.transport, p.expected-1, rcv.Addr)
		return
	}

	packet := rcv.Packet
	switch packet.Type {
	case opcode.ACK:
		p.acks = append(p.acks, packet.Seq)
		return
	case opcode.FIN:
		if p.drop(packet, 0) {
			return
		}
		networking.SendAck(p.transport, packet.Seq, rcv.Addr)
		fin, _ := networking.BuildPacket(opcode.FIN, p.finSeq, nil)
		networking.Send(p.transport, fin, rcv.Addr)
		return
	}

	attempt := len(p.seen[packet.Seq])
	p.seen[packet.Seq] = append(p.seen[packet.Seq], packet.Bytes())
	if p.drop(packet, attempt) {
		return
	}

	if packet.Type == opcode.START {
		networking.SendAck(p.transport, packet.Seq, rcv.Addr)
		return
	}
	if packet.Seq == p.expected {
		p.data = append(p.data, packet.Payload...)
		p.expected++
	}
	networking.SendAck(p.transport, p.expected-1, rcv.Addr)
}

// stop closes peer's endpoint and waits for it to exit
func (p *scriptedPeer) stop() {
	p.transport.Close()
	<-p.done
}
