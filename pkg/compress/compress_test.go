package compress

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var listing = []byte(strings.Repeat("0x0000000000401000 : pop rdi ; ret\n0x0000000000401004 : xor eax, eax ; ret\n", 500))

func TestCompressor_RoundTrip(t *testing.T) {
	for _, algo := range []Algorithm{AlgorithmZSTD, AlgorithmGzip, AlgorithmXZ, AlgorithmNone} {
		t.Run(string(algo), func(t *testing.T) {
			c := NewCompressor(algo, LevelDefault)

			compressed, err := c.Compress(listing)
			if err != nil {
				t.Fatalf("Compress failed: %v", err)
			}

			decompressed, err := c.Decompress(compressed)
			if err != nil {
				t.Fatalf("Decompress failed: %v", err)
			}

			if !bytes.Equal(listing, decompressed) {
				t.Errorf("Decompressed data doesn't match original")
			}
		})
	}
}

func TestCompressor_None(t *testing.T) {
	compressor := NewCompressor(AlgorithmNone, LevelDefault)

	compressed, err := compressor.Compress(listing)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}

	if !bytes.Equal(listing, compressed) {
		t.Errorf("AlgorithmNone should return original data")
	}
}

func TestCompressor_CompressWithStats(t *testing.T) {
	compressor := NewCompressor(AlgorithmZSTD, LevelDefault)

	compressed, stats, err := compressor.CompressWithStats(listing)
	if err != nil {
		t.Fatalf("CompressWithStats failed: %v", err)
	}

	if stats.OriginalSize != len(listing) {
		t.Errorf("OriginalSize = %d, want %d", stats.OriginalSize, len(listing))
	}
	if stats.CompressedSize != len(compressed) {
		t.Errorf("CompressedSize = %d, want %d", stats.CompressedSize, len(compressed))
	}
	if stats.Ratio <= 0 || stats.Ratio > 1 {
		t.Errorf("Ratio = %f, expected between 0 and 1", stats.Ratio)
	}
	if stats.Savings < 50 {
		t.Errorf("Expected >50%% savings on repetitive data, got %f%%", stats.Savings)
	}

	_, stats, err = compressor.CompressWithStats(nil)
	if err != nil {
		t.Fatalf("CompressWithStats(nil) failed: %v", err)
	}
	if stats.Ratio != 0 {
		t.Errorf("Ratio for empty input = %f, want 0", stats.Ratio)
	}
}

func TestCompressor_UnsupportedAlgorithm(t *testing.T) {
	c := NewCompressor(Algorithm("lz4"), LevelDefault)
	if _, err := c.Compress([]byte("x")); err == nil {
		t.Error("Compress with unknown algorithm should fail")
	}
	if _, err := c.Decompress([]byte("x")); err == nil {
		t.Error("Decompress with unknown algorithm should fail")
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"", AlgorithmNone, false},
		{"none", AlgorithmNone, false},
		{"ZSTD", AlgorithmZSTD, false},
		{" gzip ", AlgorithmGzip, false},
		{"xz", AlgorithmXZ, false},
		{"brotli", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAlgorithm(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseAlgorithm(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestAlgorithmForPath(t *testing.T) {
	tests := map[string]Algorithm{
		"ls.gdt":     AlgorithmNone,
		"ls.gdt.zst": AlgorithmZSTD,
		"ls.gdt.gz":  AlgorithmGzip,
		"ls.gdt.xz":  AlgorithmXZ,
	}
	for path, want := range tests {
		if got := AlgorithmForPath(path); got != want {
			t.Errorf("AlgorithmForPath(%q) = %q, want %q", path, got, want)
		}
		if got := AlgorithmForPath(path + want.Extension()); want != AlgorithmNone && got != want {
			t.Errorf("AlgorithmForPath(%q) = %q, want %q", path+want.Extension(), got, want)
		}
	}
}

func TestWriteAndOpenListing(t *testing.T) {
	for _, algo := range []Algorithm{AlgorithmZSTD, AlgorithmGzip, AlgorithmXZ, AlgorithmNone} {
		t.Run(string(algo), func(t *testing.T) {
			base := filepath.Join(t.TempDir(), "ls.gdt")

			path, stats, err := NewCompressor(algo, LevelDefault).WriteListing(base, listing)
			if err != nil {
				t.Fatalf("WriteListing failed: %v", err)
			}
			if path != base+algo.Extension() {
				t.Errorf("WriteListing path = %q, want %q", path, base+algo.Extension())
			}
			if stats.OriginalSize != len(listing) {
				t.Errorf("OriginalSize = %d, want %d", stats.OriginalSize, len(listing))
			}

			r, err := OpenListing(path)
			if err != nil {
				t.Fatalf("OpenListing failed: %v", err)
			}
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("read listing: %v", err)
			}
			if err := r.Close(); err != nil {
				t.Errorf("Close failed: %v", err)
			}
			if !bytes.Equal(listing, got) {
				t.Errorf("OpenListing returned different data")
			}
		})
	}
}

func TestOpenListing_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := OpenListing(filepath.Join(dir, "missing.gdt")); !os.IsNotExist(err) {
		t.Errorf("OpenListing(missing) error = %v, want not exist", err)
	}

	bad := filepath.Join(dir, "bad.gdt.gz")
	if err := os.WriteFile(bad, []byte("not gzip"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenListing(bad); err == nil {
		t.Error("OpenListing on corrupt gzip should fail")
	}

	badXZ := filepath.Join(dir, "bad.gdt.xz")
	if err := os.WriteFile(badXZ, []byte("not xz at all"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenListing(badXZ); err == nil {
		t.Error("OpenListing on corrupt xz should fail")
	}
}
