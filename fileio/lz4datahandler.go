package fileio

import (
	"errors"
	"fmt"
	"go_rdt_copy/constants"

	"github.com/pierrec/lz4/v4"
)

// ErrChunkTooLarge is returned for chunks above READ_BLOCK_SIZE
var ErrChunkTooLarge = errors.New("chunk too large")

// CompressChunk attempts to compress a chunk in LZ4 and either returns original or compressed chunk
func CompressChunk(chunk []byte) ([]byte, bool) {
	buffer := make([]byte, lz4.CompressBlockBound(len(chunk)))
	compressedSize, err := lz4.CompressBlock(chunk, buffer, nil)

	if err != nil || compressedSize == 0 || compressedSize >= len(chunk) {
		// Chunk was not compressible.
		return chunk, false
	}
	return buffer[:compressedSize], true
}

// DecompressChunk returns uncompressed data of given chunk. rawLen is its original size.
func DecompressChunk(chunk []byte, rawLen int) ([]byte, error) {
	if rawLen < 0 || rawLen > constants.READ_BLOCK_SIZE {
		return nil, fmt.Errorf("%w: %d bytes", ErrChunkTooLarge, rawLen)
	}
	buffer := make([]byte, rawLen)
	actual, err := lz4.UncompressBlock(chunk, buffer)
	if err != nil {
		return nil, err
	}
	if actual != rawLen {
		return nil, fmt.Errorf("lz4: decompressed %d bytes, expected %d", actual, rawLen)
	}
	return buffer[:actual], nil
}
