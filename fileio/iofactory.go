package fileio

// IOFactory hands out fresh chunked readers and hashing writers
type IOFactory interface {
	NewReader() FileReader
	NewWriter() FileWriter
}

// BufferedFactory is the default factory returning buffered reader/writer instances
type BufferedFactory struct{}

// NewReader returns unopened BufferedReader
func (b *BufferedFactory) NewReader() FileReader {
	return new(BufferedReader)
}

// NewWriter returns unopened BufferedWriter
func (b *BufferedFactory) NewWriter() FileWriter {
	return new(BufferedWriter)
}
