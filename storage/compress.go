package storage

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/stormnet/storm-go/storm"
)

// Compression selects how chunk bytes are compressed at rest. Identifiers
// always commit to the uncompressed bytes.
type Compression uint8

const (
	CompressNone Compression = iota
	CompressGzip
	CompressZstd
)

// ParseCompression converts a config value ("none", "gzip", "zstd").
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressNone, nil
	case "gzip":
		return CompressGzip, nil
	case "zstd":
		return CompressZstd, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedCompression, s)
	}
}

func (c Compression) String() string {
	switch c {
	case CompressNone:
		return "none"
	case CompressGzip:
		return "gzip"
	case CompressZstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// Compress compresses data using the specified scheme.
func Compress(data []byte, scheme Compression) ([]byte, error) {
	switch scheme {
	case CompressNone:
		return data, nil
	case CompressGzip:
		return compressGzip(data)
	case CompressZstd:
		return compressZstd(data)
	default:
		return nil, ErrUnsupportedCompression
	}
}

// Decompress decompresses data using the specified scheme. Output larger
// than the largest chunk fails with ErrDecompressedTooLarge.
func Decompress(data []byte, scheme Compression) ([]byte, error) {
	switch scheme {
	case CompressNone:
		return data, nil
	case CompressGzip:
		return decompressGzip(data)
	case CompressZstd:
		return decompressZstd(data)
	default:
		return nil, ErrUnsupportedCompression
	}
}

// seal compresses data and prefixes the scheme so blobs written under one
// setting stay readable after the setting changes.
func seal(data []byte, scheme Compression) ([]byte, error) {
	body, err := Compress(data, scheme)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, byte(scheme))
	return append(out, body...), nil
}

func unseal(blob []byte) ([]byte, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: empty blob", ErrCorrupt)
	}
	return Decompress(blob[1:], Compression(blob[0]))
}

func compressGzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressGzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readLimited(r)
}

func compressZstd(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	out := enc.EncodeAll(data, nil)
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close zstd encoder: %w", err)
	}
	return out, nil
}

func decompressZstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data), zstd.WithDecoderMaxMemory(storm.MaxChunkLen+1))
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()
	return readLimited(dec)
}

func readLimited(r io.Reader) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, storm.MaxChunkLen+1))
	if err != nil {
		return nil, err
	}
	if len(out) > storm.MaxChunkLen {
		return nil, ErrDecompressedTooLarge
	}
	return out, nil
}
