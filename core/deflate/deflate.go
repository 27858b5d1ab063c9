// Package deflate wraps raw (headerless) DEFLATE compression for byte
// buffers of known or discoverable size. ZIP entry payloads use this
// encoding with no zlib or gzip framing.
package deflate

import (
	"bytes"
	"compress/flate"
	"io"
	"sync"

	"github.com/lexdrop/lexdrop/core/errors"
)

// Compression level for archive entries. Level 6 matches the default
// used by most ZIP producers.
const Level = 6

// writerPool reuses flate writers across calls; allocating one is the
// dominant cost of compressing small buffers.
var writerPool = sync.Pool{
	New: func() interface{} {
		w, _ := flate.NewWriter(io.Discard, Level)
		return w
	},
}

// Compress compresses src as a raw DEFLATE stream.
func Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(src)/2 + 64)

	w := writerPool.Get().(*flate.Writer)
	defer writerPool.Put(w)
	w.Reset(&buf)

	if _, err := w.Write(src); err != nil {
		return nil, errors.Wrap(err, "deflate write")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "deflate close")
	}
	return buf.Bytes(), nil
}

// Decompress inflates a raw DEFLATE stream into a buffer preallocated to
// expectedSize. The declared size must be accurate: entries whose local
// header defers sizes to a data descriptor report zero, and callers must
// substitute the central directory's size before calling. A zero
// expectedSize for a nonzero-content stream fails rather than guessing.
func Decompress(src []byte, expectedSize int) ([]byte, error) {
	if expectedSize == 0 {
		if len(src) == 0 {
			return nil, nil
		}
		return nil, errors.Wrap(errors.ErrDecompression, "declared output size is zero for %d compressed bytes", len(src))
	}

	out := make([]byte, expectedSize)
	r := flate.NewReader(bytes.NewReader(src))
	defer r.Close()

	n, err := io.ReadFull(r, out)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, errors.Wrap(errors.ErrDecompression, "inflate: %v", err)
	}
	if n != expectedSize {
		return nil, errors.Wrap(errors.ErrDecompression, "inflate produced %d bytes, want %d", n, expectedSize)
	}

	// The stream must end cleanly where the declared size says it does.
	var trailer [1]byte
	if m, _ := r.Read(trailer[:]); m != 0 {
		return nil, errors.Wrap(errors.ErrDecompression, "inflate produced more than the declared %d bytes", expectedSize)
	}
	return out, nil
}
