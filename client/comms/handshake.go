package comms

import (
	"fmt"
	"go_rdt_copy/constants"
	"go_rdt_copy/networking"
	"go_rdt_copy/networking/opcode"
	"time"
)

// Start announces the transfer with START at sequence 0 and waits for its ACK.
// START is resent up to HandshakeRetries times.
func (s *Sender) Start(meta networking.FileMeta, opts networking.TransferOptions) error {
	start, err := networking.BuildPacket(opcode.START, constants.START_SEQ, networking.EncodeStart(meta, opts))
	if err != nil {
		return err
	}

	for attempt := 0; attempt <= s.opts.HandshakeRetries; attempt++ {
		if err := networking.Send(s.transport, start, s.dest); err != nil {
			return err
		}
		acked, err := s.awaitAck(start.Seq)
		if err != nil {
			return err
		}
		if acked {
			s.log.WithField("file", meta.Name()).Info("Transfer started")
			return nil
		}
		s.log.WithField("attempt", attempt+1).Debug("START not acknowledged")
	}

	return fmt.Errorf("%w: START not acknowledged", networking.ErrHandshake)
}

// Close sends FIN at the current sequence number and waits once for its ACK.
// Peer's own FIN is acknowledged if it arrives within the same or one more timeout.
func (s *Sender) Close() error {
	fin, err := networking.BuildPacket(opcode.FIN, s.seq, nil)
	if err != nil {
		return err
	}
	if err := networking.Send(s.transport, fin, s.dest); err != nil {
		return err
	}

	acked, peerFin, err := s.await(fin.Seq, true, true)
	if err != nil {
		return err
	}
	if !acked {
		return fmt.Errorf("%w: FIN not acknowledged", networking.ErrHandshake)
	}
	if !peerFin {
		if _, _, err := s.await(fin.Seq, false, true); err != nil {
			return err
		}
	}

	s.log.Info("Transfer closed")
	return nil
}

// awaitAck waits one timeout for intact ACK of seq, discarding everything else
func (s *Sender) awaitAck(seq uint32) (bool, error) {
	acked, _, err := s.await(seq, true, false)
	return acked, err
}

// await waits one timeout for ACK of seq and for the peer's FIN. A FIN from the
// peer is always acknowledged. Returns as soon as everything wanted has been seen.
func (s *Sender) await(seq uint32, wantAck, wantFin bool) (acked, peerFin bool, err error) {
	deadline := time.Now().Add(s.handshakeTimeout())
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return acked, peerFin, nil
		}

		rcv, err := networking.Receive(s.transport, remaining)
		if err != nil {
			return acked, peerFin, err
		}
		if rcv.TimedOut {
			return acked, peerFin, nil
		}
		if rcv.Corrupted {
			continue
		}

		switch {
		case rcv.Packet.Type == opcode.FIN:
			if err := networking.SendAck(s.transport, rcv.Packet.Seq, s.dest); err != nil {
				return acked, peerFin, err
			}
			peerFin = true
		case networking.MatchesAck(rcv.Packet, seq):
			acked = true
		}

		if (acked || !wantAck) && (peerFin || !wantFin) {
			return acked, peerFin, nil
		}
	}
}

// handshakeTimeout never drops below the configured timeout so an RTT estimate
// taken from fast DATA round trips does not cut the FIN exchange short
func (s *Sender) handshakeTimeout() time.Duration {
	return max(s.rtt.Timeout(), s.opts.Timeout)
}
