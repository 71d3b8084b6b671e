package xmldump

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"errors"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rotisserie/eris"
)

// Compression names the container format detected on an input stream.
type Compression string

const (
	CompressionNone  Compression = "none"
	CompressionBzip2 Compression = "bzip2"
	CompressionGzip  Compression = "gzip"
	CompressionZstd  Compression = "zstd"
)

var (
	magicBzip2 = []byte("BZh")
	magicGzip  = []byte{0x1f, 0x8b}
	magicZstd  = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Detect sniffs the leading bytes of r without consuming them.
func Detect(r *bufio.Reader) (Compression, error) {
	head, err := r.Peek(4)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", eris.Wrap(err, "peeking input header")
	}

	switch {
	case bytes.HasPrefix(head, magicBzip2):
		return CompressionBzip2, nil
	case bytes.HasPrefix(head, magicGzip):
		return CompressionGzip, nil
	case bytes.HasPrefix(head, magicZstd):
		return CompressionZstd, nil
	default:
		return CompressionNone, nil
	}
}

// Decompress wraps r with the decoder matching its leading magic bytes. Concatenated
// (multistream) bzip2 and gzip members are read back to back.
func Decompress(r io.Reader) (io.ReadCloser, Compression, error) {
	buffered := bufio.NewReaderSize(r, 1<<16)

	kind, err := Detect(buffered)
	if err != nil {
		return nil, "", err
	}

	switch kind {
	case CompressionBzip2:
		return io.NopCloser(bzip2.NewReader(buffered)), kind, nil
	case CompressionGzip:
		gz, err := gzip.NewReader(buffered)
		if err != nil {
			return nil, "", eris.Wrap(err, "opening gzip stream")
		}
		return gz, kind, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(buffered)
		if err != nil {
			return nil, "", eris.Wrap(err, "opening zstd stream")
		}
		return zr.IOReadCloser(), kind, nil
	default:
		return io.NopCloser(buffered), kind, nil
	}
}
