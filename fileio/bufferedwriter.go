package fileio

import (
	"bufio"
	"hash"
	"os"
)

// BufferedWriter does buffered write to file
type BufferedWriter struct {
	file   *os.File
	writer *bufio.Writer
	hash   hash.Hash
}

// New creates new file for writing or returns error upon failing to do so
func (b *BufferedWriter) New(filename string, bufferSize int, hashMethod uint8) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	b.file = file
	b.hash = newHash(hashMethod)
	// New buffered writer.
	b.writer = bufio.NewWriterSize(b.file, bufferSize)
	return nil
}

// Write writes chunk to file and updates hash
func (b *BufferedWriter) Write(chunk []byte) (int, error) {
	if b.file == nil {
		return 0, os.ErrClosed
	}
	n, err := b.writer.Write(chunk)
	if b.hash != nil {
		b.hash.Write(chunk[:n])
	}
	return n, err
}

// Close flushes remaining bytes, closes file and returns hash
func (b *BufferedWriter) Close() ([]byte, error) {
	if b.file == nil {
		return nil, os.ErrClosed
	}
	// Write any remaining bytes.
	err := b.writer.Flush()
	if cerr := b.file.Close(); err == nil {
		err = cerr
	}
	b.file = nil

	if b.hash == nil {
		return nil, err
	}
	return b.hash.Sum(nil), err
}
