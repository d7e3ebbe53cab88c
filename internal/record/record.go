// Package record frames queue payloads into self-delimiting on-disk records.
//
// Record layout (little-endian):
//
//	[Length:4][Flags:1][CRC32C:4][Payload:Length]
//
// Length is the stored (possibly compressed) payload size. The low three bits
// of Flags hold the compression code; the remaining bits are reserved and must
// be zero. The checksum covers Length, Flags and the stored payload.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/szibis/pqueue/internal/compression"
)

const (
	// HeaderSize is the fixed size of a record header in bytes.
	HeaderSize = 9

	// DefaultMaxSize bounds the stored payload length accepted by Decode.
	DefaultMaxSize = 64 * 1024 * 1024

	compressionMask = 0x07
)

// ErrMalformed is returned when bytes at an offset do not form a complete,
// checksummed record.
var ErrMalformed = errors.New("malformed record")

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// Encode frames payload as a record, compressing it according to cfg.
func Encode(payload []byte, cfg compression.Config) ([]byte, error) {
	stored, err := compression.Compress(payload, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to compress payload: %w", err)
	}
	if uint64(len(stored)) > uint64(^uint32(0)) {
		return nil, fmt.Errorf("payload too large: %d bytes", len(stored))
	}

	buf := make([]byte, HeaderSize+len(stored))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(stored)))
	buf[4] = cfg.Type.Code() & compressionMask
	copy(buf[HeaderSize:], stored)

	crc := crc32.Update(0, crc32cTable, buf[0:5])
	crc = crc32.Update(crc, crc32cTable, buf[HeaderSize:])
	binary.LittleEndian.PutUint32(buf[5:9], crc)

	return buf, nil
}

// Decode reads one record from r and returns its payload together with the
// number of bytes the record occupied. A stream that ends exactly at a record
// boundary yields io.EOF; any other short or inconsistent read yields an error
// wrapping ErrMalformed. maxSize <= 0 selects DefaultMaxSize.
func Decode(r io.Reader, maxSize int) ([]byte, int64, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, 0, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return nil, 0, fmt.Errorf("%w: truncated header", ErrMalformed)
		}
		return nil, 0, fmt.Errorf("failed to read record header: %w", err)
	}

	length := binary.LittleEndian.Uint32(header[0:4])
	flags := header[4]
	if flags&^compressionMask != 0 {
		return nil, 0, fmt.Errorf("%w: reserved flag bits set (0x%02x)", ErrMalformed, flags)
	}
	if uint64(length) > uint64(maxSize) {
		return nil, 0, fmt.Errorf("%w: length %d exceeds limit %d", ErrMalformed, length, maxSize)
	}

	stored := make([]byte, length)
	if _, err := io.ReadFull(r, stored); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, 0, fmt.Errorf("%w: truncated payload (want %d bytes)", ErrMalformed, length)
		}
		return nil, 0, fmt.Errorf("failed to read record payload: %w", err)
	}

	crc := crc32.Update(0, crc32cTable, header[0:5])
	crc = crc32.Update(crc, crc32cTable, stored)
	if want := binary.LittleEndian.Uint32(header[5:9]); crc != want {
		return nil, 0, fmt.Errorf("%w: checksum mismatch (stored=%08x computed=%08x)", ErrMalformed, want, crc)
	}

	typ, err := compression.TypeFromCode(flags & compressionMask)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	payload, err := compression.Decompress(stored, typ)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return payload, int64(HeaderSize) + int64(length), nil
}

// Size returns the on-disk size of an encoded record with the given stored length.
func Size(storedLen int) int64 {
	return int64(HeaderSize) + int64(storedLen)
}
