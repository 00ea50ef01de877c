package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compressor is a transparent block compressor applied to encoded tuple
// pages before they cross the record-layer boundary (spec §6.3
// expansion). This is off by default — the two real storage backends are
// out of scope (spec §1) and may do their own page compression — but a
// persisted-layout component can exercise it, and the teacher's stack
// carries exactly these three algorithms.
type Compressor interface {
	Name() string
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// NoneCompressor passes data through unchanged, the default policy.
type NoneCompressor struct{}

func (NoneCompressor) Name() string                       { return "none" }
func (NoneCompressor) Compress(data []byte) ([]byte, error) { return data, nil }
func (NoneCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }

// SnappyCompressor wraps github.com/golang/snappy.
type SnappyCompressor struct{}

func (SnappyCompressor) Name() string { return "snappy" }
func (SnappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}
func (SnappyCompressor) Decompress(data []byte) ([]byte, error) {
	return snappy.Decode(nil, data)
}

// LZ4Compressor wraps github.com/pierrec/lz4/v4.
type LZ4Compressor struct{}

func (LZ4Compressor) Name() string { return "lz4" }

func (LZ4Compressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	return io.ReadAll(r)
}

// ZstdCompressor wraps github.com/klauspost/compress/zstd. Encoders and
// decoders are expensive to construct, so each instance caches its own,
// matching the teacher's ZSTDAlgorithm lazy-init pattern.
type ZstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func (c *ZstdCompressor) Name() string { return "zstd" }

func (c *ZstdCompressor) Compress(data []byte) ([]byte, error) {
	if c.encoder == nil {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		c.encoder = enc
	}
	return c.encoder.EncodeAll(data, nil), nil
}

func (c *ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	if c.decoder == nil {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		c.decoder = dec
	}
	return c.decoder.DecodeAll(data, nil)
}

// ByName resolves a compressor by configuration name (spec: "selectable
// via configuration"). An empty name or "none" disables compression.
func ByName(name string) (Compressor, error) {
	switch name {
	case "", "none":
		return NoneCompressor{}, nil
	case "snappy":
		return SnappyCompressor{}, nil
	case "lz4":
		return LZ4Compressor{}, nil
	case "zstd":
		return &ZstdCompressor{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown compressor %q", name)
	}
}
