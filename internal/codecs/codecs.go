// Package codecs provides a small compressor/decompressor pair per codec
// name, usable by any TopEndSink that wants to compress blocks before
// handoff to durable storage.
package codecs

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Codec names a block compression scheme.
type Codec string

const (
	CodecNone Codec = "none"
	CodecGzip Codec = "gzip"
)

// Compressor is a WriteCloser where Close flushes final content to the
// underlying Writer but does not close the Writer itself.
type Compressor io.WriteCloser

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter returns a Compressor wrapping w under the named codec.
func NewWriter(w io.Writer, codec Codec) (Compressor, error) {
	switch codec {
	case "", CodecNone:
		return nopWriteCloser{w}, nil
	case CodecGzip:
		return gzip.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported codec %q", codec)
	}
}

// Compress returns data compressed under the named codec.
func Compress(data []byte, codec Codec) ([]byte, error) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, codec)
	if err != nil {
		return nil, err
	}
	if _, err = w.Write(data); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(data []byte, codec Codec) ([]byte, error) {
	switch codec {
	case "", CodecNone:
		return data, nil
	case CodecGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	default:
		return nil, fmt.Errorf("unsupported codec %q", codec)
	}
}

// Extension returns the filename suffix conventionally used for blocks
// compressed under codec ("" for CodecNone).
func Extension(codec Codec) string {
	if codec == CodecGzip {
		return ".gz"
	}
	return ""
}
