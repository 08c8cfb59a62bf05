package networking

import (
	"errors"
	"go_rdt_copy/constants"
	"net"
	"os"
	"sync"
	"time"
)

// ErrClosed is returned by a closed Loopback endpoint
var ErrClosed = errors.New("loopback closed")

// LoopbackAddr names one end of an in-memory link
type LoopbackAddr string

func (a LoopbackAddr) Network() string { return "loopback" }
func (a LoopbackAddr) String() string  { return string(a) }

// Filter sees every datagram written by an endpoint. Returning nil drops it.
type Filter func(datagram []byte) []byte

// Loopback is an in-memory Transport endpoint connected to a single peer
type Loopback struct {
	mu     sync.Mutex
	addr   LoopbackAddr
	peer   *Loopback
	inbox  chan []byte
	filter Filter
	closed chan struct{}
	once   sync.Once
}

// NewLoopbackPair returns two connected endpoints
func NewLoopbackPair(a, b string) (*Loopback, *Loopback) {
	left := newLoopback(a)
	right := newLoopback(b)
	left.peer = right
	right.peer = left
	return left, right
}

func newLoopback(addr string) *Loopback {
	return &Loopback{
		addr:   LoopbackAddr(addr),
		inbox:  make(chan []byte, constants.LOOPBACK_QUEUE),
		closed: make(chan struct{}),
	}
}

// Addr returns address of this endpoint
func (l *Loopback) Addr() net.Addr {
	return l.addr
}

// SetFilter installs filter applied to outgoing datagrams
func (l *Loopback) SetFilter(f Filter) {
	l.mu.Lock()
	l.filter = f
	l.mu.Unlock()
}

func (l *Loopback) WriteTo(b []byte, _ net.Addr) (int, error) {
	select {
	case <-l.closed:
		return 0, ErrClosed
	default:
	}

	datagram := append([]byte(nil), b...)
	l.mu.Lock()
	if l.filter != nil {
		datagram = l.filter(datagram)
	}
	l.mu.Unlock()

	if datagram != nil {
		select {
		case l.peer.inbox <- datagram:
		default:
			// Queue full behaves like a congested link.
		}
	}
	return len(b), nil
}

func (l *Loopback) ReadFrom(b []byte, timeout time.Duration) (int, net.Addr, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case datagram := <-l.inbox:
		return copy(b, datagram), l.peer.addr, nil
	case <-expired:
		return 0, nil, os.ErrDeadlineExceeded
	case <-l.closed:
		return 0, nil, ErrClosed
	}
}

// Close unblocks pending reads and fails further writes
func (l *Loopback) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}
