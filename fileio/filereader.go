package fileio

// FileReader reads file in chunks of fixed size
type FileReader interface {
	New(filename string, chunkSize int) error
	// Size returns total file size in bytes.
	Size() int64
	// Read returns next chunk or io.EOF once file has been consumed.
	Read() ([]byte, error)
	Close() error
}
