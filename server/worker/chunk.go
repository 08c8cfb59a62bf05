package worker

import (
	"errors"
	"fmt"
	"go_rdt_copy/constants"
	"go_rdt_copy/fileio"
	"go_rdt_copy/networking"
	"io"
)

// ErrTruncatedStream is returned when stream ends inside a chunk frame
var ErrTruncatedStream = errors.New("truncated chunk stream")

// ErrMalformedFrame is returned for chunk frames with inconsistent lengths
var ErrMalformedFrame = errors.New("malformed chunk frame")

// ChunkDecoder turns stream of LZ4 chunk frames back into raw file data
type ChunkDecoder struct {
	out     io.Writer
	pending []byte
	frame   *networking.ChunkFrame
}

// NewChunkDecoder creates decoder writing raw data to out
func NewChunkDecoder(out io.Writer) *ChunkDecoder {
	return &ChunkDecoder{out: out}
}

// Write consumes stream bytes, writing every completed chunk to the output
func (d *ChunkDecoder) Write(p []byte) (int, error) {
	d.pending = append(d.pending, p...)

	for {
		if d.frame == nil {
			if len(d.pending) < networking.ChunkFrameSize {
				return len(p), nil
			}
			frame := new(networking.ChunkFrame)
			if err := networking.DecodePayload(d.pending[:networking.ChunkFrameSize], frame); err != nil {
				return 0, err
			}
			if err := validFrame(frame); err != nil {
				return 0, err
			}
			d.frame = frame
			d.pending = d.pending[networking.ChunkFrameSize:]
		}

		if len(d.pending) < int(d.frame.Length) {
			return len(p), nil
		}

		data := d.pending[:d.frame.Length]
		if d.frame.Compressed > 0 {
			raw, err := fileio.DecompressChunk(data, int(d.frame.RawLength))
			if err != nil {
				return 0, fmt.Errorf("decompressing chunk: %w", err)
			}
			data = raw
		}
		if _, err := d.out.Write(data); err != nil {
			return 0, err
		}

		d.pending = append([]byte(nil), d.pending[d.frame.Length:]...)
		d.frame = nil
	}
}

// validFrame rejects frames the client worker never produces
func validFrame(frame *networking.ChunkFrame) error {
	if frame.RawLength > constants.READ_BLOCK_SIZE {
		return fmt.Errorf("%w: %d bytes", fileio.ErrChunkTooLarge, frame.RawLength)
	}
	if frame.Compressed > 0 && frame.Length >= frame.RawLength ||
		frame.Compressed == 0 && frame.Length != frame.RawLength {
		return fmt.Errorf("%w: length %d for %d raw bytes", ErrMalformedFrame, frame.Length, frame.RawLength)
	}
	return nil
}

// Close reports ErrTruncatedStream if a partial frame is left over
func (d *ChunkDecoder) Close() error {
	if d.frame != nil || len(d.pending) > 0 {
		return fmt.Errorf("%w: %d bytes left", ErrTruncatedStream, len(d.pending))
	}
	return nil
}
