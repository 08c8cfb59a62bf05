package fileio

import (
	"bufio"
	"errors"
	"io"
	"os"
)

// BufferedReader does buffered file reads
type BufferedReader struct {
	file      *os.File
	reader    *bufio.Reader
	chunkSize int
	size      int64
}

// New opens file for reading or returns error upon failing to do so
func (b *BufferedReader) New(filename string, chunkSize int) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	b.file = file
	b.size = info.Size()
	b.chunkSize = chunkSize
	b.reader = bufio.NewReaderSize(b.file, chunkSize)
	return nil
}

// Size returns file size at open time
func (b *BufferedReader) Size() int64 {
	return b.size
}

// Read returns next chunk of at most chunkSize bytes
func (b *BufferedReader) Read() ([]byte, error) {
	if b.file == nil {
		return nil, os.ErrClosed
	}
	buf := make([]byte, b.chunkSize)
	read, err := io.ReadFull(b.reader, buf)
	if read > 0 {
		return buf[:read], nil
	}
	if err == nil || errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return nil, err
}

// Close closes file handle
func (b *BufferedReader) Close() error {
	if b.file == nil {
		return nil
	}
	err := b.file.Close()
	b.file = nil
	return err
}
