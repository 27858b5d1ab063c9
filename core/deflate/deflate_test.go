package deflate

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lexdrop/lexdrop/core/errors"
)

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"short text", []byte("hello world")},
		{"repetitive", []byte(strings.Repeat("word ", 1000))},
		{"binary", func() []byte {
			b := make([]byte, 4096)
			for i := range b {
				b[i] = byte(i * 7)
			}
			return b
		}()},
		{"single byte", []byte{0x42}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			compressed, err := Compress(tc.data)
			if err != nil {
				t.Fatalf("Compress failed: %v", err)
			}
			out, err := Decompress(compressed, len(tc.data))
			if err != nil {
				t.Fatalf("Decompress failed: %v", err)
			}
			if !bytes.Equal(out, tc.data) {
				t.Errorf("round trip mismatch: got %d bytes, want %d", len(out), len(tc.data))
			}
		})
	}
}

// TestCompressShrinksRepetitiveInput verifies the stream is actually
// deflated, not stored.
func TestCompressShrinksRepetitiveInput(t *testing.T) {
	data := []byte(strings.Repeat("abcabcabc", 500))
	compressed, err := Compress(data)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if len(compressed) >= len(data) {
		t.Errorf("compressed size %d not smaller than input %d", len(compressed), len(data))
	}
}

func TestDecompressZeroSizeNonEmptyStream(t *testing.T) {
	compressed, err := Compress([]byte("content"))
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	// Callers must supply a corrected size from the central directory;
	// a zero declared size for real content is a hard failure.
	if _, err := Decompress(compressed, 0); !errors.Is(err, errors.ErrDecompression) {
		t.Errorf("expected ErrDecompression, got %v", err)
	}
}

func TestDecompressZeroSizeEmptyStream(t *testing.T) {
	out, err := Decompress(nil, 0)
	if err != nil {
		t.Fatalf("Decompress of empty stream failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected empty output, got %d bytes", len(out))
	}
}

func TestDecompressDeclaredSizeTooSmall(t *testing.T) {
	data := []byte("twelve bytes")
	compressed, err := Compress(data)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if _, err := Decompress(compressed, len(data)-3); !errors.Is(err, errors.ErrDecompression) {
		t.Errorf("expected ErrDecompression for undersized output, got %v", err)
	}
}

func TestDecompressDeclaredSizeTooLarge(t *testing.T) {
	data := []byte("twelve bytes")
	compressed, err := Compress(data)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if _, err := Decompress(compressed, len(data)+5); !errors.Is(err, errors.ErrDecompression) {
		t.Errorf("expected ErrDecompression for oversized declaration, got %v", err)
	}
}

func TestDecompressGarbage(t *testing.T) {
	if _, err := Decompress([]byte{0xff, 0xfe, 0xfd, 0xfc}, 16); !errors.Is(err, errors.ErrDecompression) {
		t.Errorf("expected ErrDecompression for garbage stream, got %v", err)
	}
}
