package fileio

// FileWriter writes file while hashing its contents
type FileWriter interface {
	New(filename string, bufferSize int, hashMethod uint8) error
	Write(chunk []byte) (int, error)
	// Close flushes file and returns hash of everything written (nil if hashing disabled).
	Close() ([]byte, error)
}
