package networking

import (
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"
)

// Transport is an unreliable datagram socket
type Transport interface {
	// WriteTo sends one datagram to addr.
	WriteTo(b []byte, addr net.Addr) (int, error)
	// ReadFrom waits up to timeout for one datagram. Timeout <= 0 blocks.
	// Expiry is reported as os.ErrDeadlineExceeded.
	ReadFrom(b []byte, timeout time.Duration) (int, net.Addr, error)
}

// UDPTransport is Transport over a UDP socket
type UDPTransport struct {
	conn *net.UDPConn
}

// ListenUDP binds new UDP socket on given address and marks it with DSCP
func ListenUDP(addr string, dscp int) (*UDPTransport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}

	if dscp > 0 {
		// DSCP lives in the upper six bits of TOS. NOTE: Windows ignores it by default.
		if err := ipv4.NewPacketConn(conn).SetTOS(dscp << 2); err != nil {
			log.WithError(err).Warn("Could not set DSCP on socket")
		}
	}

	return &UDPTransport{conn: conn}, nil
}

// LocalAddr returns bound address
func (u *UDPTransport) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

func (u *UDPTransport) WriteTo(b []byte, addr net.Addr) (int, error) {
	return u.conn.WriteTo(b, addr)
}

func (u *UDPTransport) ReadFrom(b []byte, timeout time.Duration) (int, net.Addr, error) {
	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := u.conn.SetReadDeadline(deadline); err != nil {
		return 0, nil, err
	}

	n, addr, err := u.conn.ReadFromUDP(b)
	if err != nil {
		return 0, nil, err
	}
	return n, addr, nil
}

// Close closes socket
func (u *UDPTransport) Close() error {
	return u.conn.Close()
}
