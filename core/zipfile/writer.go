package zipfile

import (
	"bytes"
	"hash/crc32"
	"strings"

	"github.com/lexdrop/lexdrop/core/deflate"
	"github.com/lexdrop/lexdrop/core/errors"
)

// FileEntry is one input to CreateArchive. A Name ending in "/" is a
// directory marker and its Data is ignored.
type FileEntry struct {
	Name string
	Data []byte
}

// CreateArchive serializes files into a ZIP byte buffer: local headers
// with compressed payloads first, then one central directory record per
// entry, then the EOCD. The region order is mandatory for readers that
// trust offsets literally.
//
// Non-empty files are deflated; empty files and directory markers are
// stored. CRC-32 is computed over the uncompressed bytes of each entry.
func CreateArchive(files []FileEntry) ([]byte, error) {
	var buf bytes.Buffer
	entries := make([]centralEntry, 0, len(files))

	for _, f := range files {
		if f.Name == "" {
			return nil, errors.Wrap(errors.ErrInvalidArchive, "entry with empty name")
		}
		if len(f.Name) > 65535 {
			return nil, errors.Wrap(errors.ErrInvalidArchive, "entry name %q exceeds 65535 bytes", f.Name[:64])
		}

		data := f.Data
		if strings.HasSuffix(f.Name, "/") {
			data = nil
		}

		method := MethodStored
		payload := data
		if len(data) > 0 {
			compressed, err := deflate.Compress(data)
			if err != nil {
				return nil, &errors.EntryError{Name: f.Name, Err: err}
			}
			method = MethodDeflate
			payload = compressed
		}

		h := localHeader{
			Method:           method,
			CRC32:            crc32.ChecksumIEEE(data),
			CompressedSize:   uint32(len(payload)),
			UncompressedSize: uint32(len(data)),
			Name:             f.Name,
		}

		offset := uint32(buf.Len())
		buf.Write(encodeLocalHeader(h))
		buf.Write(payload)

		entries = append(entries, centralEntry{
			Method:           h.Method,
			CRC32:            h.CRC32,
			CompressedSize:   h.CompressedSize,
			UncompressedSize: h.UncompressedSize,
			HeaderOffset:     offset,
			Name:             f.Name,
		})
	}

	centralStart := uint32(buf.Len())
	for _, e := range entries {
		buf.Write(encodeCentralEntry(e))
	}
	centralSize := uint32(buf.Len()) - centralStart

	buf.Write(encodeEOCD(eocdRecord{
		EntryCount:      uint16(len(entries)),
		CentralDirSize:  centralSize,
		CentralDirStart: centralStart,
	}))

	return buf.Bytes(), nil
}

// IndexEntry describes one entry as recorded in an archive's central
// directory.
type IndexEntry struct {
	Name             string
	Method           uint16
	CompressedSize   uint32
	UncompressedSize uint32
	IsDir            bool
}

// Index reads an archive's central directory and returns its entries in
// directory order. It fails when no EOCD is present.
func Index(archive []byte) ([]IndexEntry, error) {
	eocdOff := findEOCD(archive)
	if eocdOff < 0 {
		return nil, errors.Wrap(errors.ErrInvalidArchive, "no EOCD signature in %d bytes", len(archive))
	}
	eocd, err := parseEOCD(archive, eocdOff)
	if err != nil {
		return nil, err
	}

	var out []IndexEntry
	off := int(eocd.CentralDirStart)
	for signatureAt(archive, off) == centralDirSignature {
		e, err := parseCentralEntry(archive, off)
		if err != nil {
			return nil, err
		}
		out = append(out, IndexEntry{
			Name:             e.Name,
			Method:           e.Method,
			CompressedSize:   e.CompressedSize,
			UncompressedSize: e.UncompressedSize,
			IsDir:            strings.HasSuffix(e.Name, "/"),
		})
		off += e.recordLen
	}
	return out, nil
}
