package constants

import "time"

const Title = "Reliable file transfer over UDP"

const (
	HEADER_SIZE          = 9    // size + checksum + type + sequence
	MAX_PAYLOAD          = 1024 // Largest payload carried by a single packet
	MAX_DATAGRAM_SIZE    = HEADER_SIZE + MAX_PAYLOAD
	FILENAME_LEN         = 128   // Fixed file name field in START metadata
	READ_BLOCK_SIZE      = 65536 // Bytes handed to one windowed send
	DEFAULT_WRITE_BUFFER = 256   // 256K buffered file writes
	DEFAULT_PORT         = 6969  // Nice
	DEFAULT_DSCP         = 0x0A  // QoS for high throughput
	START_SEQ            = 0     // START is never part of the window
	FIRST_DATA_SEQ       = 1     // DATA numbering starts here in both directions
	STATIC_WINDOW_SIZE   = 5     // Initial window and the pinned size in static mode
	MIN_WINDOW           = 1
	MAX_WINDOW           = 100
	DUP_ACK_THRESHOLD    = 3    // Duplicate ACKs before fast retransmit
	HANDSHAKE_RETRIES    = 3    // START retransmissions before giving up
	LOOPBACK_QUEUE       = 4096 // Buffered datagrams per in-memory endpoint
)

const (
	STATIC_TIMEOUT  = 4*time.Second + 100*time.Millisecond
	MIN_TIMEOUT     = time.Millisecond
	MAX_TIMEOUT     = 10 * time.Second
	INITIAL_RTT     = 100 * time.Millisecond
	INITIAL_DEV_RTT = 5 * time.Millisecond
	DEFAULT_IDLE    = 30 * time.Second // Server gives up on a silent sender
)

const (
	COMPRESSION_NONE = iota // 0: Raw byte stream
	COMPRESSION_LZ4         // 1: Stream of framed LZ4 chunks
)

const (
	HASH_NONE   = iota // 0: No end-to-end checksum
	HASH_CRC32         // 1: CRC32 (IEEE)
	HASH_SHA256        // 2: SHA256
)
