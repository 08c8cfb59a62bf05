package networking

import "errors"

var (
	// ErrPayloadTooLarge aborts a transfer when a packet cannot be built
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrTransport wraps any send/receive failure of the underlying socket
	ErrTransport = errors.New("transport failure")
	// ErrCorrupted marks a datagram that failed size or checksum validation
	ErrCorrupted = errors.New("corrupted packet")
	// ErrUnexpected marks a packet of wrong type or sequence
	ErrUnexpected = errors.New("unexpected packet")
	// ErrHandshake is returned when START or FIN is not acknowledged as expected
	ErrHandshake = errors.New("handshake failure")
	// ErrShortMetadata is returned for START payloads without full metadata
	ErrShortMetadata = errors.New("start payload too short for metadata")
	// ErrBufferTooSmall is returned when caller buffer cannot hold a payload
	ErrBufferTooSmall = errors.New("buffer too small for payload")
	// ErrIdle is returned when peer stays silent longer than the idle timeout
	ErrIdle = errors.New("peer idle")
)
