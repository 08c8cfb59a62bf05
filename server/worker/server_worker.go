package worker

import (
	"bytes"
	"errors"
	"fmt"
	"go_rdt_copy/constants"
	"go_rdt_copy/fileio"
	"go_rdt_copy/networking"
	"io"
	"os"
)

// ErrChecksumMismatch is returned when received file does not match hash announced by sender
var ErrChecksumMismatch = errors.New("checksum mismatch")

// ErrSizeMismatch is returned when received file size differs from announced size
var ErrSizeMismatch = errors.New("size mismatch")

// FileSink persists one received file, decoding chunk frames and verifying its hash
type FileSink struct {
	writer   fileio.FileWriter
	filename string
	stream   io.Writer
	decoder  *ChunkDecoder
	meta     networking.FileMeta
	opts     networking.TransferOptions
	written  int64
}

// NewFileSink creates filename and prepares it for the stream described by meta and opts
func NewFileSink(factory fileio.IOFactory, filename string, bufferSize int, meta networking.FileMeta,
	opts networking.TransferOptions) (*FileSink, error) {
	writer := factory.NewWriter()
	if err := writer.New(filename, bufferSize, opts.HashMethod); err != nil {
		return nil, err
	}

	s := &FileSink{writer: writer, filename: filename, meta: meta, opts: opts}
	s.stream = writerFunc(s.writeRaw)
	if opts.Compression == constants.COMPRESSION_LZ4 {
		s.decoder = NewChunkDecoder(s.stream)
		s.stream = s.decoder
	}
	return s, nil
}

// Write accepts stream bytes in order
func (s *FileSink) Write(p []byte) (int, error) {
	return s.stream.Write(p)
}

// Written returns number of file bytes persisted so far
func (s *FileSink) Written() int64 {
	return s.written
}

// Close flushes the file and verifies size and hash. A file failing verification is removed.
func (s *FileSink) Close() error {
	if err := s.commit(); err != nil {
		os.Remove(s.filename)
		return err
	}
	return nil
}

// Abort closes and removes the partially written file
func (s *FileSink) Abort() error {
	s.writer.Close()
	if err := os.Remove(s.filename); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FileSink) commit() error {
	var err error
	if s.decoder != nil {
		err = s.decoder.Close()
	}
	hash, werr := s.writer.Close()
	if err != nil {
		return err
	}
	if werr != nil {
		return werr
	}

	if s.written != int64(s.meta.FileSize) {
		return fmt.Errorf("%w: got %d bytes, expected %d", ErrSizeMismatch, s.written, s.meta.FileSize)
	}
	if hash != nil && !bytes.Equal(hash, s.opts.Hash[:len(hash)]) {
		return fmt.Errorf("%w: got %x, expected %x", ErrChecksumMismatch, hash, s.opts.Hash[:len(hash)])
	}
	return nil
}

func (s *FileSink) writeRaw(p []byte) (int, error) {
	n, err := s.writer.Write(p)
	s.written += int64(n)
	return n, err
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
