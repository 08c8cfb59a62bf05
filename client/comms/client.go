package comms

import (
	"errors"
	"go_rdt_copy/networking"
	"io"
)

// ChunkSource yields application chunks until io.EOF
type ChunkSource interface {
	Next() ([]byte, error)
}

// SendFile runs a complete transfer: START, every chunk of source, FIN.
// Returns number of stream bytes delivered.
func SendFile(s *Sender, meta networking.FileMeta, opts networking.TransferOptions, source ChunkSource) (int64, error) {
	if err := s.Start(meta, opts); err != nil {
		return 0, err
	}

	var total int64
	for {
		chunk, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, err
		}

		n, err := s.SendSegment(chunk)
		total += int64(n)
		if err != nil {
			return total, err
		}
		s.log.WithField("bytes", total).Debug("Chunk delivered")
	}

	return total, s.Close()
}
