// Package zipfile implements a self-contained ZIP archive codec over
// in-memory byte slices: a best-effort reader, a writer, and the central
// directory bookkeeping both share. Entry payloads are stored either
// uncompressed or as raw DEFLATE streams; Zip64, encryption, and
// multi-disk archives are out of scope.
//
// Both the reader and writer are pure, synchronous functions over owned
// buffers. They hold no state between calls and are safe to run from any
// goroutine.
package zipfile

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/lexdrop/lexdrop/core/deflate"
	"github.com/lexdrop/lexdrop/core/errors"
)

// ExtractResult reports what a best-effort extraction produced.
type ExtractResult struct {
	// Extracted lists the paths written under the destination directory.
	Extracted []string
	// EntryErrors collects per-entry failures. A bad entry is recorded
	// here and skipped; it never aborts the remaining entries.
	EntryErrors []error
}

// Unzip materializes every file entry in archive into destDir. Entries
// are written flat: leading path segments are stripped and only the base
// name is kept. Hidden files (base name starting with ".") are skipped.
// Directory markers (name ending in "/") create a directory and carry no
// payload.
//
// The buffer is scanned sequentially from offset zero, reading the
// record signature at each position. Unrecognized bytes advance the scan
// by one, which tolerates padded or misaligned producers. The scan stops
// at the first central directory record.
func Unzip(archive []byte, destDir string) (*ExtractResult, error) {
	if FirstLocalHeader(archive) < 0 {
		return nil, errors.Wrap(errors.ErrInvalidArchive, "no local file header signature in %d bytes", len(archive))
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, &errors.IOError{Operation: "create", Path: destDir, Err: err}
	}

	index := buildCentralIndex(archive)
	result := &ExtractResult{}

	off := 0
	for off+4 <= len(archive) {
		switch signatureAt(archive, off) {
		case centralDirSignature:
			// Central directory reached: no local entries follow.
			return result, nil
		case localFileHeaderSignature:
			next, err := extractEntry(archive, off, index, destDir, result)
			if err != nil {
				// Header itself unreadable: no reliable way to find the
				// next entry, so stop here with what was extracted.
				result.EntryErrors = append(result.EntryErrors, err)
				return result, nil
			}
			off = next
		default:
			off++
		}
	}
	return result, nil
}

// extractEntry processes one local file entry at off and returns the
// offset just past its payload. Payload-level failures are recorded in
// result and the entry is skipped.
func extractEntry(archive []byte, off int, index map[string]centralEntry, destDir string, result *ExtractResult) (int, error) {
	h, err := parseLocalHeader(archive, off)
	if err != nil {
		return 0, err
	}

	// Data-descriptor producers defer sizes to after the payload; the
	// central directory holds the real values.
	if h.CompressedSize == 0 && h.UncompressedSize == 0 {
		if ce, ok := index[h.Name]; ok {
			h.CompressedSize = ce.CompressedSize
			h.UncompressedSize = ce.UncompressedSize
		}
	}

	dataOff := off + h.headerLen()
	next := dataOff + int(h.CompressedSize)

	if strings.HasSuffix(h.Name, "/") {
		dir := filepath.Join(destDir, filepath.Base(strings.TrimSuffix(h.Name, "/")))
		if err := os.MkdirAll(dir, 0755); err != nil {
			result.EntryErrors = append(result.EntryErrors, &errors.IOError{Operation: "create", Path: dir, Err: err})
		}
		return next, nil
	}

	name := filepath.Base(h.Name)
	if strings.HasPrefix(name, ".") {
		return next, nil
	}

	if next > len(archive) {
		result.EntryErrors = append(result.EntryErrors, &errors.EntryError{
			Name:   h.Name,
			Method: h.Method,
			Err:    errors.Wrap(errors.ErrInvalidArchive, "payload runs past end of archive"),
		})
		return len(archive), nil
	}
	payload := archive[dataOff:next]

	var content []byte
	switch h.Method {
	case MethodStored:
		content = payload
	case MethodDeflate:
		content, err = deflate.Decompress(payload, int(h.UncompressedSize))
		if err != nil {
			result.EntryErrors = append(result.EntryErrors, &errors.EntryError{Name: h.Name, Method: h.Method, Err: err})
			return next, nil
		}
	default:
		// Compatibility fallback: unknown method, skip the entry.
		result.EntryErrors = append(result.EntryErrors, &errors.EntryError{
			Name:   h.Name,
			Method: h.Method,
			Err:    errors.ErrUnsupportedMethod,
		})
		return next, nil
	}

	path := filepath.Join(destDir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		result.EntryErrors = append(result.EntryErrors, &errors.IOError{Operation: "write", Path: path, Err: err})
		return next, nil
	}
	result.Extracted = append(result.Extracted, path)
	return next, nil
}

// FirstLocalHeader returns the offset of the first local file header
// signature in data, or -1. The ingest server uses this scan to validate
// a .zip upload independently of its multipart headers.
func FirstLocalHeader(data []byte) int {
	for off := 0; off+4 <= len(data); off++ {
		if signatureAt(data, off) == localFileHeaderSignature {
			return off
		}
	}
	return -1
}

// ContainsEOCD reports whether data contains the ZIP end-of-central-
// directory signature within its tail. The ingest server uses this as a
// body-completion heuristic when the declared content length is not
// trustworthy.
func ContainsEOCD(data []byte) bool {
	return findEOCD(data) >= 0
}
