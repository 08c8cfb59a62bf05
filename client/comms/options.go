package comms

import (
	"go_rdt_copy/constants"
	"time"
)

// Options configures sender behaviour
type Options struct {
	AdaptiveWindow     bool          // Halve window on loss and grow it on progress
	AdaptiveTimeout    bool          // Derive timeout from measured RTT
	FastRetransmit     bool          // Go back to base after DUP_ACK_THRESHOLD duplicate ACKs
	FaultInjectionRate float64       // Probability 0..1 of corrupting an outgoing DATA packet
	FaultSeed          int64         // Seed for fault injection, 0 picks one from clock
	Timeout            time.Duration // Static timeout, also initial adaptive timeout
	MaxTimeout         time.Duration
	WindowSize         int // Static window size, also initial adaptive size
	MinWindow          int
	MaxWindow          int
	HandshakeRetries   int // START resends before giving up
}

// DefaultOptions returns all adaptive features enabled with default limits
func DefaultOptions() Options {
	return Options{
		AdaptiveWindow:   true,
		AdaptiveTimeout:  true,
		FastRetransmit:   true,
		Timeout:          constants.STATIC_TIMEOUT,
		MaxTimeout:       constants.MAX_TIMEOUT,
		WindowSize:       constants.STATIC_WINDOW_SIZE,
		MinWindow:        constants.MIN_WINDOW,
		MaxWindow:        constants.MAX_WINDOW,
		HandshakeRetries: constants.HANDSHAKE_RETRIES,
	}
}
