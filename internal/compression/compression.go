// Package compression provides block compression for queue record payloads.
package compression

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// Type represents a compression algorithm.
type Type string

const (
	// TypeNone means no compression.
	TypeNone Type = "none"
	// TypeSnappy uses the snappy block format.
	TypeSnappy Type = "snappy"
	// TypeS2 uses the s2 block format (snappy extension, faster decode).
	TypeS2 Type = "s2"
	// TypeZstd uses zstd compression.
	TypeZstd Type = "zstd"
	// TypeGzip uses gzip compression.
	TypeGzip Type = "gzip"
)

// Level represents compression level settings.
type Level int

const (
	// LevelDefault uses the default compression level for the algorithm.
	LevelDefault Level = 0
	// LevelFastest uses the fastest compression (lowest ratio).
	LevelFastest Level = 1
	// LevelBest uses the best compression (highest ratio).
	LevelBest Level = 9
)

// Config holds compression configuration.
type Config struct {
	// Type is the compression algorithm to use.
	Type Type
	// Level is the compression level (algorithm-specific).
	Level Level
}

// ParseType parses a compression type string.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return TypeNone, nil
	case "snappy":
		return TypeSnappy, nil
	case "s2":
		return TypeS2, nil
	case "zstd":
		return TypeZstd, nil
	case "gzip":
		return TypeGzip, nil
	default:
		return TypeNone, fmt.Errorf("unsupported compression type: %s", s)
	}
}

// Code returns the one-byte identifier stored in record headers.
func (t Type) Code() byte {
	switch t {
	case TypeSnappy:
		return 1
	case TypeS2:
		return 2
	case TypeZstd:
		return 3
	case TypeGzip:
		return 4
	default:
		return 0
	}
}

// TypeFromCode maps a record header identifier back to a Type.
func TypeFromCode(code byte) (Type, error) {
	switch code {
	case 0:
		return TypeNone, nil
	case 1:
		return TypeSnappy, nil
	case 2:
		return TypeS2, nil
	case 3:
		return TypeZstd, nil
	case 4:
		return TypeGzip, nil
	default:
		return TypeNone, fmt.Errorf("unknown compression code: %d", code)
	}
}

var (
	zstdEncodersMu sync.Mutex
	zstdEncoders   = map[zstd.EncoderLevel]*zstd.Encoder{}

	zstdDecoderOnce sync.Once
	zstdDecoder     *zstd.Decoder
	zstdDecoderErr  error
)

// Compress compresses data using the specified compression type and level.
func Compress(data []byte, cfg Config) ([]byte, error) {
	if cfg.Type == TypeNone || cfg.Type == "" {
		return data, nil
	}

	var out []byte
	var err error

	switch cfg.Type {
	case TypeSnappy:
		out = s2.EncodeSnappy(nil, data)
	case TypeS2:
		if cfg.Level >= LevelBest {
			out = s2.EncodeBest(nil, data)
		} else {
			out = s2.Encode(nil, data)
		}
	case TypeZstd:
		out, err = compressZstd(data, cfg.Level)
	case TypeGzip:
		out, err = compressGzip(data, cfg.Level)
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	recordCompress(len(data), len(out))
	return out, nil
}

// Decompress decompresses data using the specified compression type.
func Decompress(data []byte, compressionType Type) ([]byte, error) {
	if compressionType == TypeNone || compressionType == "" {
		return data, nil
	}

	var out []byte
	var err error

	switch compressionType {
	case TypeSnappy, TypeS2:
		// s2 decodes both block formats.
		out, err = s2.Decode(nil, data)
	case TypeZstd:
		out, err = decompressZstd(data)
	case TypeGzip:
		out, err = decompressGzip(data)
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s block: %w", compressionType, err)
	}

	recordDecompress(len(data), len(out))
	return out, nil
}

// zstd compression
func compressZstd(data []byte, level Level) ([]byte, error) {
	zstdLevel := zstd.SpeedDefault
	switch {
	case level == LevelDefault:
	case level <= LevelFastest:
		zstdLevel = zstd.SpeedFastest
	case level >= LevelBest:
		zstdLevel = zstd.SpeedBestCompression
	case level >= 6:
		zstdLevel = zstd.SpeedBetterCompression
	}

	zstdEncodersMu.Lock()
	enc, ok := zstdEncoders[zstdLevel]
	if !ok {
		var err error
		enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstdLevel))
		if err != nil {
			zstdEncodersMu.Unlock()
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		zstdEncoders[zstdLevel] = enc
	}
	zstdEncodersMu.Unlock()

	return enc.EncodeAll(data, nil), nil
}

func decompressZstd(data []byte) ([]byte, error) {
	zstdDecoderOnce.Do(func() {
		zstdDecoder, zstdDecoderErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
	if zstdDecoderErr != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", zstdDecoderErr)
	}
	return zstdDecoder.DecodeAll(data, nil)
}

// gzip compression
func compressGzip(data []byte, level Level) ([]byte, error) {
	gzLevel := gzip.DefaultCompression
	if level != LevelDefault {
		gzLevel = int(level)
	}
	var buf bytes.Buffer
	gw, err := gzip.NewWriterLevel(&buf, gzLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := gw.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write gzip data: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

func decompressGzip(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close()
	return io.ReadAll(gr)
}
