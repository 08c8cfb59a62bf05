package server

import (
	"bytes"
	"errors"
	"go_rdt_copy/client/comms"
	"go_rdt_copy/constants"
	"go_rdt_copy/networking"
	"go_rdt_copy/networking/opcode"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

// memorySink collects the stream in memory
type memorySink struct {
	bytes.Buffer
	closed   bool
	aborted  bool
	closeErr error // Returned by Close to simulate failed verification
}

func (m *memorySink) Close() error {
	m.closed = true
	return m.closeErr
}

func (m *memorySink) Abort() error {
	m.aborted = true
	m.Reset()
	return nil
}

// recorder remembers every decodable packet passing through a loopback filter
type recorder struct {
	mu      sync.Mutex
	packets []*networking.Packet
	drop    func(p *networking.Packet, attempt int) bool
	counts  map[uint32]int
}

func record(l *networking.Loopback, drop func(p *networking.Packet, attempt int) bool) *recorder {
	r := &recorder{drop: drop, counts: make(map[uint32]int)}
	l.SetFilter(func(datagram []byte) []byte {
		p, err := networking.Decode(datagram)
		if err != nil {
			return datagram
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		r.packets = append(r.packets, p)
		attempt := 0
		if p.Type == opcode.DATA {
			attempt = r.counts[p.Seq]
			r.counts[p.Seq]++
		}
		if r.drop != nil && r.drop(p, attempt) {
			return nil
		}
		return datagram
	})
	return r
}

// seqs returns sequence numbers of recorded packets of given type
func (r *recorder) seqs(ptype uint8) []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var seqs []uint32
	for _, p := range r.packets {
		if p.Type == ptype {
			seqs = append(seqs, p.Seq)
		}
	}
	return seqs
}

func testData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i * 7)
	}
	return data
}

// transfer sends data from a Sender to a Receiver over given loopback pair
func transfer(c *qt.C, a, b *networking.Loopback, sopts comms.Options, ropts Options, data []byte) (*comms.Sender, *memorySink) {
	sink := new(memorySink)
	type result struct {
		n   int64
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := NewReceiver(b, ropts).ReceiveFile(func(networking.FileMeta, networking.TransferOptions) (Sink, error) {
			return sink, nil
		})
		done <- result{n, err}
	}()

	s := comms.NewSender(a, b.Addr(), sopts)
	err := s.Start(networking.NewFileMeta("data.bin", int64(len(data))), networking.TransferOptions{})
	c.Assert(err, qt.IsNil)
	n, err := s.SendSegment(data)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, len(data))
	c.Assert(s.Close(), qt.IsNil)

	res := <-done
	c.Assert(res.err, qt.IsNil)
	c.Assert(res.n, qt.Equals, int64(len(data)))
	c.Assert(sink.Bytes(), qt.DeepEquals, data)
	c.Assert(sink.closed, qt.IsTrue)
	return s, sink
}

func staticSender(timeout time.Duration) comms.Options {
	opts := comms.DefaultOptions()
	opts.AdaptiveWindow = false
	opts.AdaptiveTimeout = false
	opts.FastRetransmit = false
	opts.Timeout = timeout
	return opts
}

func TestTransferLossless(t *testing.T) {
	c := qt.New(t)

	a, b := networking.NewLoopbackPair("sender", "receiver")
	sent := record(a, nil)
	acked := record(b, nil)

	transfer(c, a, b, staticSender(2*time.Second), Options{Timeout: time.Second}, testData(10000))

	c.Assert(sent.seqs(opcode.DATA), qt.DeepEquals, []uint32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	c.Assert(sent.seqs(opcode.START), qt.DeepEquals, []uint32{0})
	c.Assert(sent.seqs(opcode.FIN), qt.DeepEquals, []uint32{11})
	// Receiver's FIN is acknowledged by the sender.
	c.Assert(sent.seqs(opcode.ACK), qt.DeepEquals, []uint32{1})

	// START, ten DATA segments, FIN.
	c.Assert(acked.seqs(opcode.ACK), qt.DeepEquals, []uint32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11})
	c.Assert(acked.seqs(opcode.FIN), qt.DeepEquals, []uint32{1})
}

func TestTransferLostSegment(t *testing.T) {
	c := qt.New(t)

	a, b := networking.NewLoopbackPair("sender", "receiver")
	sent := record(a, func(p *networking.Packet, attempt int) bool {
		return p.Type == opcode.DATA && p.Seq == 3 && attempt == 0
	})
	acked := record(b, nil)

	// Ten segments in a single window, the third one lost once.
	sopts := staticSender(200 * time.Millisecond)
	sopts.WindowSize = 10
	transfer(c, a, b, sopts, Options{Timeout: time.Second}, testData(10*constants.MAX_PAYLOAD))

	counts := make(map[uint32]int)
	for _, seq := range sent.seqs(opcode.DATA) {
		counts[seq]++
	}
	c.Assert(counts[1], qt.Equals, 1)
	c.Assert(counts[2], qt.Equals, 1)
	for seq := uint32(3); seq <= 10; seq++ {
		c.Assert(counts[seq] >= 2, qt.IsTrue, qt.Commentf("seq %d sent %d times", seq, counts[seq]))
	}

	// Cumulative ACKs never go backwards.
	acks := acked.seqs(opcode.ACK)
	for i := 1; i < len(acks); i++ {
		c.Assert(acks[i] >= acks[i-1], qt.IsTrue, qt.Commentf("acks %v", acks))
	}
}

func TestTransferWithFaultInjection(t *testing.T) {
	c := qt.New(t)

	a, b := networking.NewLoopbackPair("sender", "receiver")

	opts := comms.DefaultOptions()
	opts.Timeout = 30 * time.Millisecond
	opts.AdaptiveTimeout = false
	opts.FaultInjectionRate = 0.2
	opts.FaultSeed = 7

	s, _ := transfer(c, a, b, opts, Options{Timeout: 200 * time.Millisecond}, testData(40*constants.MAX_PAYLOAD))
	c.Assert(s.Stats().Retransmitted > 0, qt.IsTrue)
}

func TestTransferAdaptive(t *testing.T) {
	c := qt.New(t)

	a, b := networking.NewLoopbackPair("sender", "receiver")
	record(a, func(p *networking.Packet, attempt int) bool {
		return p.Type == opcode.DATA && p.Seq%17 == 0 && attempt == 0
	})

	opts := comms.DefaultOptions()
	opts.Timeout = 50 * time.Millisecond
	transfer(c, a, b, opts, Options{Timeout: 200 * time.Millisecond}, testData(100*constants.MAX_PAYLOAD+17))
}

func TestReceiveFileReacksCorruption(t *testing.T) {
	c := qt.New(t)

	a, b := networking.NewLoopbackPair("sender", "receiver")

	send := func(ptype uint8, seq uint32, payload []byte, corrupt bool) {
		p, err := networking.BuildPacket(ptype, seq, payload)
		c.Assert(err, qt.IsNil)
		raw := p.Bytes()
		if corrupt {
			raw[len(raw)-1] ^= 0x40
		}
		c.Assert(networking.SendRaw(a, raw, b.Addr()), qt.IsNil)
	}

	send(opcode.START, 0, networking.EncodeStart(networking.NewFileMeta("f", 6), networking.TransferOptions{}), false)
	send(opcode.DATA, 1, []byte("abc"), false)
	send(opcode.DATA, 2, []byte("def"), true)
	send(opcode.DATA, 3, []byte("ghi"), false)
	send(opcode.DATA, 2, []byte("def"), false)
	send(opcode.DATA, 1, []byte("abc"), false)
	send(opcode.FIN, 3, nil, false)

	sink := new(memorySink)
	r := NewReceiver(b, Options{Timeout: 20 * time.Millisecond})
	n, err := r.ReceiveFile(func(networking.FileMeta, networking.TransferOptions) (Sink, error) {
		return sink, nil
	})
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, int64(6))
	c.Assert(sink.String(), qt.Equals, "abcdef")
	c.Assert(r.Expected(), qt.Equals, uint32(3))

	var replies []string
	for {
		rcv, err := networking.Receive(a, 10*time.Millisecond)
		c.Assert(err, qt.IsNil)
		if rcv.TimedOut {
			break
		}
		replies = append(replies, rcv.Packet.String())
	}
	c.Assert(replies, qt.DeepEquals, []string{
		"ACK seq=0 size=9",
		"ACK seq=1 size=9",
		"ACK seq=1 size=9", // corrupted
		"ACK seq=1 size=9", // out of order
		"ACK seq=2 size=9",
		"ACK seq=2 size=9", // duplicate
		"ACK seq=3 size=9", // FIN
		"FIN seq=1 size=9",
	})
}

func TestReceiveFileHandshakeErrors(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		about   string
		ptype   uint8
		payload []byte
		corrupt bool
		want    error
	}{{
		about: "data before start",
		ptype: opcode.DATA,
		want:  networking.ErrUnexpected,
	}, {
		about:   "corrupted start",
		ptype:   opcode.START,
		payload: networking.EncodeStart(networking.NewFileMeta("f", 1), networking.TransferOptions{}),
		corrupt: true,
		want:    networking.ErrCorrupted,
	}, {
		about:   "short metadata",
		ptype:   opcode.START,
		payload: []byte("f"),
		want:    networking.ErrShortMetadata,
	}}

	for _, test := range tests {
		c.Run(test.about, func(c *qt.C) {
			a, b := networking.NewLoopbackPair("sender", "receiver")
			p, err := networking.BuildPacket(test.ptype, 0, test.payload)
			c.Assert(err, qt.IsNil)
			raw := p.Bytes()
			if test.corrupt {
				raw[constants.HEADER_SIZE] ^= 0x01
			}
			c.Assert(networking.SendRaw(a, raw, b.Addr()), qt.IsNil)

			_, err = NewReceiver(b, DefaultOptions()).ReceiveFile(func(networking.FileMeta, networking.TransferOptions) (Sink, error) {
				c.Fatal("sink must not be opened")
				return nil, nil
			})
			c.Assert(err, qt.ErrorIs, networking.ErrHandshake)
			c.Assert(err, qt.ErrorIs, test.want)
		})
	}
}

func TestReceiveFileIdle(t *testing.T) {
	c := qt.New(t)

	a, b := networking.NewLoopbackPair("sender", "receiver")
	p, _ := networking.BuildPacket(opcode.START, 0, networking.EncodeStart(networking.NewFileMeta("f", 1), networking.TransferOptions{}))
	c.Assert(networking.Send(a, p, b.Addr()), qt.IsNil)

	sink := new(memorySink)
	_, err := NewReceiver(b, Options{IdleTimeout: 30 * time.Millisecond}).ReceiveFile(
		func(networking.FileMeta, networking.TransferOptions) (Sink, error) { return sink, nil })
	c.Assert(err, qt.ErrorIs, networking.ErrIdle)
	c.Assert(sink.aborted, qt.IsTrue)
	c.Assert(sink.closed, qt.IsFalse)
}

func TestReceiveFileRejectedSinkNotAcknowledged(t *testing.T) {
	c := qt.New(t)

	a, b := networking.NewLoopbackPair("sender", "receiver")
	acked := record(b, nil)
	p, _ := networking.BuildPacket(opcode.START, 0, networking.EncodeStart(networking.NewFileMeta("f", 1), networking.TransferOptions{}))
	c.Assert(networking.Send(a, p, b.Addr()), qt.IsNil)

	refused := errors.New("refused")
	_, err := NewReceiver(b, DefaultOptions()).ReceiveFile(func(networking.FileMeta, networking.TransferOptions) (Sink, error) {
		return nil, refused
	})
	c.Assert(err, qt.ErrorIs, refused)
	c.Assert(acked.seqs(opcode.ACK), qt.HasLen, 0)
}

func TestReceiveFileFailedCommitNotAcknowledged(t *testing.T) {
	c := qt.New(t)

	a, b := networking.NewLoopbackPair("sender", "receiver")
	acked := record(b, nil)

	mismatch := errors.New("mismatch")
	sink := &memorySink{closeErr: mismatch}
	done := make(chan error, 1)
	go func() {
		_, err := NewReceiver(b, Options{Timeout: time.Second}).ReceiveFile(func(networking.FileMeta, networking.TransferOptions) (Sink, error) {
			return sink, nil
		})
		done <- err
	}()

	data := testData(3 * constants.MAX_PAYLOAD)
	s := comms.NewSender(a, b.Addr(), staticSender(100*time.Millisecond))
	c.Assert(s.Start(networking.NewFileMeta("data.bin", int64(len(data))), networking.TransferOptions{}), qt.IsNil)
	_, err := s.SendSegment(data)
	c.Assert(err, qt.IsNil)

	// The sender must not report success for a file the receiver rejected.
	c.Assert(s.Close(), qt.ErrorIs, networking.ErrHandshake)
	c.Assert(<-done, qt.ErrorIs, mismatch)
	c.Assert(sink.closed, qt.IsTrue)

	// START and the three DATA segments only.
	c.Assert(acked.seqs(opcode.ACK), qt.DeepEquals, []uint32{0, 1, 2, 3})
	c.Assert(acked.seqs(opcode.FIN), qt.HasLen, 0)
}

func TestReceiveSegment(t *testing.T) {
	c := qt.New(t)

	a, b := networking.NewLoopbackPair("sender", "receiver")

	bad, _ := networking.BuildPacket(opcode.DATA, 1, []byte("xyz"))
	raw := bad.Bytes()
	raw[constants.HEADER_SIZE] ^= 0xff
	c.Assert(networking.SendRaw(a, raw, b.Addr()), qt.IsNil)
	good, _ := networking.BuildPacket(opcode.DATA, 1, []byte("xyz"))
	c.Assert(networking.Send(a, good, b.Addr()), qt.IsNil)

	r := NewReceiver(b, Options{IdleTimeout: 50 * time.Millisecond})
	buf := make([]byte, constants.MAX_PAYLOAD)
	n, err := r.ReceiveSegment(buf)
	c.Assert(err, qt.IsNil)
	c.Assert(string(buf[:n]), qt.Equals, "xyz")
	c.Assert(r.Expected(), qt.Equals, uint32(2))

	for _, want := range []uint32{0, 1} {
		rcv, err := networking.Receive(a, time.Second)
		c.Assert(err, qt.IsNil)
		c.Assert(networking.MatchesAck(rcv.Packet, want), qt.IsTrue, qt.Commentf("%v", rcv.Packet))
	}
}

func TestReceiveSegmentCorruptionKeepsExpected(t *testing.T) {
	c := qt.New(t)

	a, b := networking.NewLoopbackPair("sender", "receiver")

	p, _ := networking.BuildPacket(opcode.DATA, 1, []byte("xyz"))
	raw := p.Bytes()
	raw[len(raw)-1] ^= 0x02
	c.Assert(networking.SendRaw(a, raw, b.Addr()), qt.IsNil)

	r := NewReceiver(b, Options{IdleTimeout: 30 * time.Millisecond})
	_, err := r.ReceiveSegment(make([]byte, constants.MAX_PAYLOAD))
	c.Assert(err, qt.ErrorIs, networking.ErrIdle)
	c.Assert(r.Expected(), qt.Equals, uint32(1))

	rcv, err := networking.Receive(a, time.Second)
	c.Assert(err, qt.IsNil)
	c.Assert(networking.MatchesAck(rcv.Packet, 0), qt.IsTrue)
}

func TestReceiveSegmentBufferTooSmall(t *testing.T) {
	c := qt.New(t)

	a, b := networking.NewLoopbackPair("sender", "receiver")
	p, _ := networking.BuildPacket(opcode.DATA, 1, []byte("too long"))
	c.Assert(networking.Send(a, p, b.Addr()), qt.IsNil)

	r := NewReceiver(b, DefaultOptions())
	_, err := r.ReceiveSegment(make([]byte, 4))
	c.Assert(err, qt.ErrorIs, networking.ErrBufferTooSmall)
	c.Assert(r.Expected(), qt.Equals, uint32(1))
}
