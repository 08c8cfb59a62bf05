package networking

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"go_rdt_copy/constants"
)

// FileMeta is payload of START packet
type FileMeta struct {
	FileName [constants.FILENAME_LEN]byte // NUL padded file name
	FileSize uint64                       // Size of the original file
}

// TransferOptions optionally follows FileMeta in START payload
type TransferOptions struct {
	Compression uint8    // 0: raw stream, 1: LZ4 framed chunks
	HashMethod  uint8    // 0: none, 1: crc32, 2: sha256
	Hash        [32]byte // CRC32/SHA256 checksum of the original file
}

// ChunkFrame precedes every chunk of a compressed stream
type ChunkFrame struct {
	Compressed uint8  // Is the chunk compressed
	Length     uint32 // Bytes following this frame
	RawLength  uint32 // Chunk len after decompression
}

var (
	FileMetaSize   = binary.Size(FileMeta{})
	OptionsSize    = binary.Size(TransferOptions{})
	ChunkFrameSize = binary.Size(ChunkFrame{})
)

// NewFileMeta fills metadata for given name and size, truncating long names
func NewFileMeta(name string, size int64) FileMeta {
	meta := FileMeta{FileSize: uint64(size)}
	// Keep last byte as terminator.
	copy(meta.FileName[:len(meta.FileName)-1], name)
	return meta
}

// Name returns file name without NUL padding
func (m FileMeta) Name() string {
	if i := bytes.IndexByte(m.FileName[:], 0); i >= 0 {
		return string(m.FileName[:i])
	}
	return string(m.FileName[:])
}

// EncodeStart encodes START payload of metadata followed by transfer options
func EncodeStart(meta FileMeta, opts TransferOptions) []byte {
	return append(PayloadToBytes(&meta), PayloadToBytes(&opts)...)
}

// DecodeStart decodes START payload. Options are zero when not present.
func DecodeStart(payload []byte) (FileMeta, TransferOptions, error) {
	var meta FileMeta
	var opts TransferOptions

	if len(payload) < FileMetaSize {
		return meta, opts, fmt.Errorf("%w: %d of %d bytes", ErrShortMetadata, len(payload), FileMetaSize)
	}
	if err := DecodePayload(payload[:FileMetaSize], &meta); err != nil {
		return meta, opts, err
	}
	if len(payload) >= FileMetaSize+OptionsSize {
		if err := DecodePayload(payload[FileMetaSize:FileMetaSize+OptionsSize], &opts); err != nil {
			return meta, opts, err
		}
	}

	return meta, opts, nil
}

// PayloadToBytes encodes data intended as payload to slice of bytes
func PayloadToBytes(payload interface{}) []byte {
	buffer := bytes.NewBuffer(make([]byte, 0, binary.Size(payload)))
	binary.Write(buffer, binary.LittleEndian, payload)
	return buffer.Bytes()
}

// DecodePayload decodes slice of bytes to given structure
func DecodePayload(payload []byte, dst interface{}) error {
	return binary.Read(bytes.NewReader(payload), binary.LittleEndian, dst)
}
