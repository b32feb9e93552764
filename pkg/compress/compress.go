// Package compress stores and reads gadget listings in compressed form.
//
// A ROPgadget listing for a statically linked binary runs to tens of
// megabytes of highly repetitive text, so listings may be kept as .gdt.zst
// (Zstandard), .gdt.gz or .gdt.xz. The classifier reads them through OpenListing,
// which picks the decoder from the file extension.
//
// Example usage:
//
//	compressor := compress.NewCompressor(compress.AlgorithmZSTD, compress.LevelDefault)
//	path, err := compressor.WriteListing("gadgets/obfusc/ls.gdt", output)
//	if err != nil {
//	    return err
//	}
//
//	// Later, stream it back
//	r, err := compress.OpenListing(path)
package compress

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// AlgorithmZSTD is the Zstandard compression algorithm.
	// Best balance of compression ratio and speed.
	AlgorithmZSTD Algorithm = "zstd"

	// AlgorithmGzip is the gzip compression algorithm.
	AlgorithmGzip Algorithm = "gzip"

	// AlgorithmXZ is LZMA2 in the xz container. Slowest, smallest output.
	AlgorithmXZ Algorithm = "xz"

	// AlgorithmNone indicates no compression.
	AlgorithmNone Algorithm = "none"
)

// ParseAlgorithm parses a config value. An empty string means AlgorithmNone.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(s))); a {
	case "", AlgorithmNone:
		return AlgorithmNone, nil
	case AlgorithmZSTD, AlgorithmGzip, AlgorithmXZ:
		return a, nil
	default:
		return "", fmt.Errorf("unsupported compression algorithm: %s", s)
	}
}

// Extension returns the file suffix for the algorithm, including the dot.
func (a Algorithm) Extension() string {
	switch a {
	case AlgorithmZSTD:
		return ".zst"
	case AlgorithmGzip:
		return ".gz"
	case AlgorithmXZ:
		return ".xz"
	default:
		return ""
	}
}

// AlgorithmForPath infers the algorithm from a file name.
func AlgorithmForPath(path string) Algorithm {
	switch {
	case strings.HasSuffix(path, ".zst"):
		return AlgorithmZSTD
	case strings.HasSuffix(path, ".gz"):
		return AlgorithmGzip
	case strings.HasSuffix(path, ".xz"):
		return AlgorithmXZ
	default:
		return AlgorithmNone
	}
}

// Level represents compression level.
type Level int

const (
	// LevelFastest prioritizes speed over compression ratio.
	LevelFastest Level = 1

	// LevelDefault is the default compression level (good balance).
	LevelDefault Level = 3

	// LevelBetter provides better compression at the cost of speed.
	LevelBetter Level = 6

	// LevelBest provides maximum compression (slowest).
	LevelBest Level = 9
)

// Compressor provides compression and decompression functionality.
// It is safe for concurrent use.
type Compressor struct {
	algorithm Algorithm
	level     Level

	// ZSTD encoder/decoder pools for reuse
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
}

// NewCompressor creates a new compressor with the specified algorithm and level.
func NewCompressor(algorithm Algorithm, level Level) *Compressor {
	c := &Compressor{
		algorithm: algorithm,
		level:     level,
	}

	if algorithm == AlgorithmZSTD {
		c.zstdEncoderPool = sync.Pool{
			New: func() any {
				enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(int(level))))
				return enc
			},
		}
		c.zstdDecoderPool = sync.Pool{
			New: func() any {
				dec, _ := zstd.NewReader(nil)
				return dec
			},
		}
	}

	return c
}

// Algorithm returns the compression algorithm.
func (c *Compressor) Algorithm() Algorithm {
	return c.algorithm
}

// Compress compresses the input data.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	switch c.algorithm {
	case AlgorithmZSTD:
		return c.compressZSTD(data)
	case AlgorithmGzip:
		return c.compressGzip(data)
	case AlgorithmXZ:
		return compressXZ(data)
	case AlgorithmNone:
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", c.algorithm)
	}
}

// Decompress decompresses the input data.
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	switch c.algorithm {
	case AlgorithmZSTD:
		return c.decompressZSTD(data)
	case AlgorithmGzip:
		return decompressGzip(data)
	case AlgorithmXZ:
		return decompressXZ(data)
	case AlgorithmNone:
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", c.algorithm)
	}
}

// compressZSTD compresses data using ZSTD.
func (c *Compressor) compressZSTD(data []byte) ([]byte, error) {
	enc := c.zstdEncoderPool.Get().(*zstd.Encoder)
	defer c.zstdEncoderPool.Put(enc)

	var buf bytes.Buffer
	enc.Reset(&buf)

	if _, err := enc.Write(data); err != nil {
		return nil, fmt.Errorf("zstd write error: %w", err)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("zstd close error: %w", err)
	}

	return buf.Bytes(), nil
}

// decompressZSTD decompresses ZSTD data.
func (c *Compressor) decompressZSTD(data []byte) ([]byte, error) {
	dec := c.zstdDecoderPool.Get().(*zstd.Decoder)
	defer c.zstdDecoderPool.Put(dec)

	if err := dec.Reset(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("zstd reset error: %w", err)
	}

	result, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress error: %w", err)
	}

	return result, nil
}

// compressGzip compresses data using gzip.
func (c *Compressor) compressGzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	level := gzip.DefaultCompression
	if c.level <= 3 {
		level = gzip.BestSpeed
	} else if c.level >= 7 {
		level = gzip.BestCompression
	}

	writer, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("gzip writer error: %w", err)
	}

	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("gzip write error: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("gzip close error: %w", err)
	}

	return buf.Bytes(), nil
}

// decompressGzip decompresses gzip data.
func decompressGzip(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader error: %w", err)
	}
	defer reader.Close()

	result, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("gzip decompress error: %w", err)
	}

	return result, nil
}

// compressXZ compresses data using xz. The level is ignored.
func compressXZ(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	writer, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("xz writer error: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("xz write error: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("xz close error: %w", err)
	}

	return buf.Bytes(), nil
}

// decompressXZ decompresses xz data.
func decompressXZ(data []byte) ([]byte, error) {
	reader, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("xz reader error: %w", err)
	}

	result, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("xz decompress error: %w", err)
	}

	return result, nil
}

// CompressionStats holds statistics about a compression operation.
type CompressionStats struct {
	OriginalSize   int     `json:"original_size"`
	CompressedSize int     `json:"compressed_size"`
	Ratio          float64 `json:"ratio"`           // compressed/original
	Savings        float64 `json:"savings_percent"` // (1 - ratio) * 100
	Algorithm      string  `json:"algorithm"`
}

// CompressWithStats compresses data and returns statistics.
func (c *Compressor) CompressWithStats(data []byte) ([]byte, *CompressionStats, error) {
	compressed, err := c.Compress(data)
	if err != nil {
		return nil, nil, err
	}

	stats := &CompressionStats{
		OriginalSize:   len(data),
		CompressedSize: len(compressed),
		Algorithm:      string(c.algorithm),
	}
	if len(data) > 0 {
		stats.Ratio = float64(len(compressed)) / float64(len(data))
		stats.Savings = (1 - stats.Ratio) * 100
	}

	return compressed, stats, nil
}

// WriteListing compresses data and writes it to path plus the algorithm's
// extension. It returns the path written and the compression statistics.
func (c *Compressor) WriteListing(path string, data []byte) (string, *CompressionStats, error) {
	compressed, stats, err := c.CompressWithStats(data)
	if err != nil {
		return "", nil, err
	}

	out := path + c.algorithm.Extension()
	if err := os.WriteFile(out, compressed, 0644); err != nil {
		return "", nil, fmt.Errorf("write listing %s: %w", out, err)
	}
	return out, stats, nil
}

// OpenListing opens a gadget listing for reading, decompressing .zst, .gz and
// .xz files on the fly. The caller must close the returned reader.
func OpenListing(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	switch AlgorithmForPath(path) {
	case AlgorithmZSTD:
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd reader error: %w", err)
		}
		return &listingReader{Reader: dec, close: func() error {
			dec.Close()
			return f.Close()
		}}, nil

	case AlgorithmGzip:
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip reader error: %w", err)
		}
		return &listingReader{Reader: zr, close: func() error {
			zerr := zr.Close()
			if err := f.Close(); err != nil {
				return err
			}
			return zerr
		}}, nil

	case AlgorithmXZ:
		xr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("xz reader error: %w", err)
		}
		return &listingReader{Reader: xr, close: f.Close}, nil

	default:
		return f, nil
	}
}

type listingReader struct {
	io.Reader
	close func() error
}

func (r *listingReader) Close() error {
	return r.close()
}
