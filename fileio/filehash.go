package fileio

import (
	"crypto/sha256"
	"go_rdt_copy/constants"
	"hash"
	"hash/crc32"
	"io"
	"os"
)

// newHash returns hash for given method or nil if hashing is disabled
func newHash(method uint8) hash.Hash {
	switch method {
	case constants.HASH_CRC32:
		return crc32.NewIEEE()
	case constants.HASH_SHA256:
		return sha256.New()
	}
	return nil
}

// FileChecksum returns CRC32 or SHA256 checksum of given file. Nil for HASH_NONE.
func FileChecksum(file string, method uint8) ([]byte, error) {
	hash := newHash(method)
	if hash == nil {
		return nil, nil
	}

	handle, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	if _, err := io.CopyBuffer(hash, handle, make([]byte, constants.READ_BLOCK_SIZE)); err != nil {
		return nil, err
	}

	return hash.Sum(nil), nil
}
