package opcode

const (
	START = iota // 0: Transfer request carrying file metadata
	DATA         // 1: Segment of the byte stream
	ACK          // 2: Cumulative acknowledgement
	FIN          // 3: Teardown
)

// Name returns printable name of packet type
func Name(ptype uint8) string {
	switch ptype {
	case START:
		return "START"
	case DATA:
		return "DATA"
	case ACK:
		return "ACK"
	case FIN:
		return "FIN"
	default:
		return "UNKNOWN"
	}
}
