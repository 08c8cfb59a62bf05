package server

import (
	"errors"
	"fmt"
	"go_rdt_copy/constants"
	"go_rdt_copy/networking"
	"go_rdt_copy/networking/opcode"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Options configures receiver behaviour
type Options struct {
	Timeout     time.Duration // How long to wait for ACK of own FIN
	IdleTimeout time.Duration // Abort transfer after this much silence, 0 waits forever
}

// DefaultOptions returns receiver defaults
func DefaultOptions() Options {
	return Options{
		Timeout:     constants.STATIC_TIMEOUT,
		IdleTimeout: constants.DEFAULT_IDLE,
	}
}

// Sink consumes the in-order byte stream of one transfer. Close commits and
// verifies the result, Abort discards whatever was written.
type Sink interface {
	io.Writer
	Close() error
	Abort() error
}

// SinkOpener creates sink for transfer described by START metadata
type SinkOpener func(meta networking.FileMeta, opts networking.TransferOptions) (Sink, error)

// Receiver is one inbound transfer session
type Receiver struct {
	transport networking.Transport
	opts      Options
	expected  uint32 // Next in-order DATA sequence number
	seq       uint32 // Own outbound sequence number, used for FIN
	peer      net.Addr
	log       *log.Entry
}

// NewReceiver creates receiver session on transport
func NewReceiver(t networking.Transport, opts Options) *Receiver {
	if opts.Timeout <= 0 {
		opts.Timeout = constants.STATIC_TIMEOUT
	}
	return &Receiver{
		transport: t,
		opts:      opts,
		expected:  constants.FIRST_DATA_SEQ,
		seq:       constants.FIRST_DATA_SEQ,
		log:       log.WithField("transfer", uuid.NewString()[:8]),
	}
}

// Expected returns sequence number of the next in-order DATA packet
func (r *Receiver) Expected() uint32 {
	return r.expected
}

// Peer returns address of the sender once something has been received
func (r *Receiver) Peer() net.Addr {
	return r.peer
}

// ReceiveFile runs a complete inbound transfer: START, DATA until FIN, teardown.
// START is acknowledged only once the sink is open, and FIN only once the sink
// has been committed, so the sender learns about both failures.
// Returns number of stream bytes written to the sink.
func (r *Receiver) ReceiveFile(open SinkOpener) (int64, error) {
	start, meta, topts, err := r.accept()
	if err != nil {
		return 0, err
	}

	sink, err := open(meta, topts)
	if err != nil {
		r.log.WithError(err).WithField("file", meta.Name()).Warn("Rejecting transfer")
		return 0, err
	}
	if err := networking.SendAck(r.transport, start.Seq, r.peer); err != nil {
		sink.Abort()
		return 0, err
	}
	r.log.WithFields(log.Fields{"file": meta.Name(), "size": meta.FileSize, "peer": r.peer}).Info("Receiving file")

	var total int64
	for {
		rcv, err := r.receive(r.opts.IdleTimeout)
		if err != nil {
			sink.Abort()
			return total, err
		}

		switch {
		case rcv.Corrupted:
			r.log.Debug("Corrupted packet")
			err = r.reack()
		case rcv.Packet.Type == opcode.FIN:
			// Unacknowledged FIN fails the sender's Close.
			if err := sink.Close(); err != nil {
				r.log.WithError(err).Warn("File rejected")
				return total, err
			}
			if err := r.teardown(rcv.Packet); err != nil {
				return total, err
			}
			r.log.WithField("bytes", total).Info("File received")
			return total, nil
		case networking.MatchesDataSeq(rcv.Packet, r.expected):
			if _, err := sink.Write(rcv.Packet.Payload); err != nil {
				sink.Abort()
				return total, err
			}
			total += int64(len(rcv.Packet.Payload))
			err = r.deliver()
		default:
			r.log.WithField("packet", rcv.Packet).Debug("Out of order")
			err = r.reack()
		}

		if err != nil {
			sink.Abort()
			return total, err
		}
	}
}

// ReceiveSegment waits for the next in-order DATA packet and copies its payload to buf
func (r *Receiver) ReceiveSegment(buf []byte) (int, error) {
	for {
		rcv, err := r.receive(r.opts.IdleTimeout)
		if err != nil {
			return 0, err
		}

		if !rcv.Corrupted && networking.MatchesDataSeq(rcv.Packet, r.expected) {
			if len(rcv.Packet.Payload) > len(buf) {
				return 0, fmt.Errorf("%w: %d bytes into %d", networking.ErrBufferTooSmall,
					len(rcv.Packet.Payload), len(buf))
			}
			n := copy(buf, rcv.Packet.Payload)
			return n, r.deliver()
		}

		if err := r.reack(); err != nil {
			return 0, err
		}
	}
}

// accept waits for START and decodes its metadata. START is not acknowledged here.
func (r *Receiver) accept() (*networking.Packet, networking.FileMeta, networking.TransferOptions, error) {
	var meta networking.FileMeta
	var topts networking.TransferOptions

	// Waiting for a new transfer never times out.
	rcv, err := r.receive(0)
	if err != nil {
		return nil, meta, topts, err
	}
	if rcv.Corrupted {
		return nil, meta, topts, fmt.Errorf("%w: %w", networking.ErrHandshake, networking.ErrCorrupted)
	}
	if rcv.Packet.Type != opcode.START {
		return nil, meta, topts, fmt.Errorf("%w: %w: %s instead of START", networking.ErrHandshake,
			networking.ErrUnexpected, rcv.Packet)
	}

	meta, topts, err = networking.DecodeStart(rcv.Packet.Payload)
	if err != nil {
		return nil, meta, topts, fmt.Errorf("%w: %w", networking.ErrHandshake, err)
	}
	return rcv.Packet, meta, topts, nil
}

// receive waits for one packet and remembers where it came from
func (r *Receiver) receive(timeout time.Duration) (networking.Reception, error) {
	rcv, err := networking.Receive(r.transport, timeout)
	if err != nil {
		return rcv, err
	}
	if rcv.TimedOut {
		return rcv, fmt.Errorf("%w: nothing received for %s", networking.ErrIdle, timeout)
	}
	if rcv.Addr != nil {
		r.peer = rcv.Addr
	}
	return rcv, nil
}

// deliver acknowledges expected sequence number and moves on
func (r *Receiver) deliver() error {
	if err := networking.SendAck(r.transport, r.expected, r.peer); err != nil {
		return err
	}
	r.expected++
	return nil
}

// reack repeats cumulative ACK of the last in-order packet
func (r *Receiver) reack() error {
	return networking.SendAck(r.transport, r.expected-1, r.peer)
}

// teardown acknowledges peer's FIN, sends own FIN and waits once for its ACK.
// Completes whether or not that ACK arrives.
func (r *Receiver) teardown(fin *networking.Packet) error {
	if err := networking.SendAck(r.transport, fin.Seq, r.peer); err != nil {
		return err
	}

	own, err := networking.BuildPacket(opcode.FIN, r.seq, nil)
	if err != nil {
		return err
	}
	if err := networking.Send(r.transport, own, r.peer); err != nil {
		return err
	}

	deadline := time.Now().Add(r.opts.Timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			r.log.Debug("FIN not acknowledged")
			return nil
		}
		rcv, err := networking.Receive(r.transport, remaining)
		if err != nil {
			return err
		}
		if rcv.TimedOut {
			r.log.Debug("FIN not acknowledged")
			return nil
		}
		if rcv.Corrupted {
			continue
		}
		if networking.MatchesAck(rcv.Packet, r.seq) {
			return nil
		}
	}
}

// IsFatal reports whether err means the transport itself is unusable
func IsFatal(err error) bool {
	return errors.Is(err, networking.ErrTransport)
}
