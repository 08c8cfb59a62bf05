package comms

import (
	"go_rdt_copy/congestion"
	"go_rdt_copy/constants"
	"go_rdt_copy/networking"
	"go_rdt_copy/networking/opcode"
	"math/rand"
	"net"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Stats holds transfer counters of one sender session
type Stats struct {
	Sent            int // DATA transmissions including retransmissions
	Retransmitted   int
	Timeouts        int
	FastRetransmits int
	Acks            int // ACKs that advanced the window
}

// Sender is one outbound transfer session
type Sender struct {
	transport networking.Transport
	dest      net.Addr
	opts      Options
	seq       uint32 // Next outbound sequence number
	rtt       *congestion.RTTEstimator
	window    *congestion.Window
	faults    *rand.Rand
	log       *log.Entry
	stats     Stats
}

// NewSender creates sender session sending to dest over transport
func NewSender(t networking.Transport, dest net.Addr, opts Options) *Sender {
	seed := opts.FaultSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if opts.HandshakeRetries < 0 {
		opts.HandshakeRetries = 0
	}

	return &Sender{
		transport: t,
		dest:      dest,
		opts:      opts,
		seq:       constants.FIRST_DATA_SEQ,
		rtt:       congestion.NewRTTEstimator(opts.AdaptiveTimeout, opts.Timeout, opts.MaxTimeout),
		window: congestion.NewWindow(opts.AdaptiveWindow, opts.WindowSize, opts.MinWindow,
			opts.MaxWindow, constants.FIRST_DATA_SEQ),
		faults: rand.New(rand.NewSource(seed)),
		log:    log.WithField("transfer", uuid.NewString()[:8]),
	}
}

// NextSeq returns sequence number the next DATA packet will carry
func (s *Sender) NextSeq() uint32 {
	return s.seq
}

// Window returns current window size
func (s *Sender) Window() int {
	return s.window.Size()
}

// Timeout returns current retransmission timeout
func (s *Sender) Timeout() time.Duration {
	return s.rtt.Timeout()
}

// Stats returns copy of transfer counters
func (s *Sender) Stats() Stats {
	return s.stats
}

// SendSegment reliably delivers buf as consecutive DATA packets. Returns when every
// packet has been cumulatively acknowledged.
func (s *Sender) SendSegment(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	startSeq := s.seq
	packets := make([][]byte, 0, (len(buf)+constants.MAX_PAYLOAD-1)/constants.MAX_PAYLOAD)
	for offset := 0; offset < len(buf); offset += constants.MAX_PAYLOAD {
		end := min(offset+constants.MAX_PAYLOAD, len(buf))
		packet, err := networking.BuildPacket(opcode.DATA, startSeq+uint32(len(packets)), buf[offset:end])
		if err != nil {
			return 0, err
		}
		packets = append(packets, packet.Bytes())
	}

	n := len(packets)
	sent := make([]bool, n)
	base, next := 0, 0
	lastAck := startSeq - 1
	dupAcks := 0
	var fastSeq uint32
	fastDone := false
	var lastSend time.Time

	for base < n {
		for next < n && next < base+s.window.Size() {
			if err := s.transmit(packets[next]); err != nil {
				return 0, err
			}
			s.stats.Sent++
			if sent[next] {
				s.stats.Retransmitted++
			}
			sent[next] = true
			lastSend = time.Now()
			next++
		}

		rcv, err := networking.Receive(s.transport, s.rtt.Timeout())
		if err != nil {
			return 0, err
		}

		if rcv.TimedOut {
			s.stats.Timeouts++
			s.log.WithField("seq", startSeq+uint32(base)).Debug("Timeout, going back to base")
			next = base
			s.window.OnLoss(startSeq + uint32(base))
			continue
		}
		if rcv.Corrupted || rcv.Packet.Type != opcode.ACK {
			continue
		}

		ack := rcv.Packet.Seq
		if ack == lastAck {
			// Duplicates of the previous call's last ACK may still be in flight.
			if !s.opts.FastRetransmit || ack < startSeq || (fastDone && fastSeq == ack) {
				continue
			}
			dupAcks++
			if dupAcks >= constants.DUP_ACK_THRESHOLD {
				s.stats.FastRetransmits++
				s.log.WithField("seq", startSeq+uint32(base)).Debug("Fast retransmit")
				next = base
				s.window.OnLoss(startSeq + uint32(base))
				fastSeq = ack
				fastDone = true
				dupAcks = 0
			}
			continue
		}
		if ack < lastAck {
			continue
		}

		lastAck = ack
		dupAcks = 0
		fastDone = false

		if ack < startSeq {
			continue
		}
		idx := int(ack - startSeq)
		if idx < base || idx >= n {
			continue
		}
		base = idx + 1
		s.stats.Acks++
		s.rtt.OnSample(time.Since(lastSend))
		if s.window.OnAdvance(ack) {
			s.log.WithField("window", s.window.Size()).Debug("Window grew")
		}
	}

	s.seq += uint32(n)
	return len(buf), nil
}

// transmit writes one encoded DATA packet, possibly damaging it first
func (s *Sender) transmit(raw []byte) error {
	if s.opts.FaultInjectionRate > 0 && len(raw) > constants.HEADER_SIZE &&
		s.faults.Float64() < s.opts.FaultInjectionRate {
		damaged := append([]byte(nil), raw...)
		damaged[constants.HEADER_SIZE+s.faults.Intn(len(raw)-constants.HEADER_SIZE)] ^= 0xff
		raw = damaged
	}
	return networking.SendRaw(s.transport, raw, s.dest)
}
