package worker

import (
	"errors"
	"go_rdt_copy/fileio"
	"go_rdt_copy/networking"
	"io"
)

// ChunkSource reads file chunk by chunk and optionally frames chunks as LZ4 blocks
type ChunkSource struct {
	reader     fileio.FileReader
	compress   bool
	compressed int
	total      int
}

// NewChunkSource opens filename for reading in chunks of chunkSize bytes
func NewChunkSource(factory fileio.IOFactory, filename string, chunkSize int, compress bool) (*ChunkSource, error) {
	reader := factory.NewReader()
	if err := reader.New(filename, chunkSize); err != nil {
		return nil, err
	}
	return &ChunkSource{reader: reader, compress: compress}, nil
}

// Size returns size of the file being read
func (c *ChunkSource) Size() int64 {
	return c.reader.Size()
}

// Stats returns compressed:total chunk count so far
func (c *ChunkSource) Stats() (int, int) {
	return c.compressed, c.total
}

// Next returns next chunk of the stream. File is closed once io.EOF is returned.
func (c *ChunkSource) Next() ([]byte, error) {
	raw, err := c.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			if cerr := c.reader.Close(); cerr != nil {
				return nil, cerr
			}
		}
		return nil, err
	}
	c.total++

	if !c.compress {
		return raw, nil
	}

	// Compress chunk if possible.
	processed, compressed := fileio.CompressChunk(raw)
	frame := &networking.ChunkFrame{
		Length:    uint32(len(processed)),
		RawLength: uint32(len(raw)),
	}
	if compressed {
		c.compressed++
		frame.Compressed = 1
	}

	// Frame header followed by chunk data.
	return append(networking.PayloadToBytes(frame), processed...), nil
}

// Close releases file handle
func (c *ChunkSource) Close() error {
	return c.reader.Close()
}
