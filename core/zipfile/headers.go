package zipfile

import (
	"encoding/binary"

	"github.com/lexdrop/lexdrop/core/errors"
)

// Each record type is identified by a header signature beginning with the
// two byte marker 0x4b50, the characters "PK".
const (
	localFileHeaderSignature uint32 = 0x04034b50
	centralDirSignature      uint32 = 0x02014b50
	endOfCentralDirSignature uint32 = 0x06054b50
)

// Compression methods supported by the codec. Entries using any other
// method are skipped, not fatal.
const (
	MethodStored  uint16 = 0
	MethodDeflate uint16 = 8
)

const (
	localFileHeaderLen = 30
	centralDirEntryLen = 46
	eocdLen            = 22

	// An EOCD can be preceded by up to a 65535-byte archive comment, so
	// the backward search is bounded to the last 65535+22 bytes.
	maxEOCDScan = 65535 + eocdLen
)

// localHeader is the fixed portion of a local file header plus its name.
type localHeader struct {
	Method           uint16
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32
	Name             string
	extraLen         int
}

// headerLen returns the total byte length of the header record including
// the variable name and extra fields. The entry payload starts at
// offset+headerLen.
func (h localHeader) headerLen() int {
	return localFileHeaderLen + len(h.Name) + h.extraLen
}

// parseLocalHeader decodes the local file header at off. The caller has
// already verified the signature; bounds are still checked before every
// fixed-width read.
func parseLocalHeader(data []byte, off int) (localHeader, error) {
	if off+localFileHeaderLen > len(data) {
		return localHeader{}, errors.Wrap(errors.ErrInvalidArchive, "truncated local header at offset %d", off)
	}
	nameLen := int(binary.LittleEndian.Uint16(data[off+26 : off+28]))
	extraLen := int(binary.LittleEndian.Uint16(data[off+28 : off+30]))
	if off+localFileHeaderLen+nameLen+extraLen > len(data) {
		return localHeader{}, errors.Wrap(errors.ErrInvalidArchive, "local header name/extra runs past end of archive at offset %d", off)
	}
	return localHeader{
		Method:           binary.LittleEndian.Uint16(data[off+8 : off+10]),
		CRC32:            binary.LittleEndian.Uint32(data[off+14 : off+18]),
		CompressedSize:   binary.LittleEndian.Uint32(data[off+18 : off+22]),
		UncompressedSize: binary.LittleEndian.Uint32(data[off+22 : off+26]),
		Name:             string(data[off+localFileHeaderLen : off+localFileHeaderLen+nameLen]),
		extraLen:         extraLen,
	}, nil
}

// encodeLocalHeader serializes a local file header followed by the raw
// name bytes. No extra field is ever written.
func encodeLocalHeader(h localHeader) []byte {
	buf := make([]byte, localFileHeaderLen+len(h.Name))

	binary.LittleEndian.PutUint32(buf[0:4], localFileHeaderSignature)
	binary.LittleEndian.PutUint16(buf[4:6], 20) // version needed to extract: 2.0
	binary.LittleEndian.PutUint16(buf[6:8], 0)  // general purpose bit flag
	binary.LittleEndian.PutUint16(buf[8:10], h.Method)
	binary.LittleEndian.PutUint16(buf[10:12], 0) // last mod file time
	binary.LittleEndian.PutUint16(buf[12:14], 0) // last mod file date
	binary.LittleEndian.PutUint32(buf[14:18], h.CRC32)
	binary.LittleEndian.PutUint32(buf[18:22], h.CompressedSize)
	binary.LittleEndian.PutUint32(buf[22:26], h.UncompressedSize)
	binary.LittleEndian.PutUint16(buf[26:28], uint16(len(h.Name)))
	binary.LittleEndian.PutUint16(buf[28:30], 0) // extra field length

	copy(buf[localFileHeaderLen:], h.Name)
	return buf
}

// centralEntry is the slice of a central directory record the reader and
// writer care about: true sizes plus the local header's byte offset.
type centralEntry struct {
	Method           uint16
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32
	HeaderOffset     uint32
	Name             string
	recordLen        int
}

// parseCentralEntry decodes the central directory record at off. The
// caller has already verified the signature.
func parseCentralEntry(data []byte, off int) (centralEntry, error) {
	if off+centralDirEntryLen > len(data) {
		return centralEntry{}, errors.Wrap(errors.ErrInvalidArchive, "truncated central directory entry at offset %d", off)
	}
	nameLen := int(binary.LittleEndian.Uint16(data[off+28 : off+30]))
	extraLen := int(binary.LittleEndian.Uint16(data[off+30 : off+32]))
	commentLen := int(binary.LittleEndian.Uint16(data[off+32 : off+34]))
	if off+centralDirEntryLen+nameLen > len(data) {
		return centralEntry{}, errors.Wrap(errors.ErrInvalidArchive, "central directory name runs past end of archive at offset %d", off)
	}
	return centralEntry{
		Method:           binary.LittleEndian.Uint16(data[off+10 : off+12]),
		CRC32:            binary.LittleEndian.Uint32(data[off+16 : off+20]),
		CompressedSize:   binary.LittleEndian.Uint32(data[off+20 : off+24]),
		UncompressedSize: binary.LittleEndian.Uint32(data[off+24 : off+28]),
		HeaderOffset:     binary.LittleEndian.Uint32(data[off+42 : off+46]),
		Name:             string(data[off+centralDirEntryLen : off+centralDirEntryLen+nameLen]),
		recordLen:        centralDirEntryLen + nameLen + extraLen + commentLen,
	}, nil
}

// encodeCentralEntry serializes a central directory record followed by
// the raw name bytes.
func encodeCentralEntry(e centralEntry) []byte {
	buf := make([]byte, centralDirEntryLen+len(e.Name))

	binary.LittleEndian.PutUint32(buf[0:4], centralDirSignature)
	binary.LittleEndian.PutUint16(buf[4:6], 20) // version made by
	binary.LittleEndian.PutUint16(buf[6:8], 20) // version needed to extract
	binary.LittleEndian.PutUint16(buf[8:10], 0) // general purpose bit flag
	binary.LittleEndian.PutUint16(buf[10:12], e.Method)
	binary.LittleEndian.PutUint16(buf[12:14], 0) // last mod file time
	binary.LittleEndian.PutUint16(buf[14:16], 0) // last mod file date
	binary.LittleEndian.PutUint32(buf[16:20], e.CRC32)
	binary.LittleEndian.PutUint32(buf[20:24], e.CompressedSize)
	binary.LittleEndian.PutUint32(buf[24:28], e.UncompressedSize)
	binary.LittleEndian.PutUint16(buf[28:30], uint16(len(e.Name)))
	binary.LittleEndian.PutUint16(buf[30:32], 0) // extra field length
	binary.LittleEndian.PutUint16(buf[32:34], 0) // file comment length
	binary.LittleEndian.PutUint16(buf[34:36], 0) // disk number start
	binary.LittleEndian.PutUint16(buf[36:38], 0) // internal file attributes
	binary.LittleEndian.PutUint32(buf[38:42], 0) // external file attributes
	binary.LittleEndian.PutUint32(buf[42:46], e.HeaderOffset)

	copy(buf[centralDirEntryLen:], e.Name)
	return buf
}

// eocdRecord is the end of central directory record.
type eocdRecord struct {
	EntryCount      uint16
	CentralDirSize  uint32
	CentralDirStart uint32
}

// parseEOCD decodes the EOCD record at off. The caller has already
// verified the signature.
func parseEOCD(data []byte, off int) (eocdRecord, error) {
	if off+eocdLen > len(data) {
		return eocdRecord{}, errors.Wrap(errors.ErrInvalidArchive, "truncated EOCD at offset %d", off)
	}
	return eocdRecord{
		EntryCount:      binary.LittleEndian.Uint16(data[off+10 : off+12]),
		CentralDirSize:  binary.LittleEndian.Uint32(data[off+12 : off+16]),
		CentralDirStart: binary.LittleEndian.Uint32(data[off+16 : off+20]),
	}, nil
}

// encodeEOCD serializes the end of central directory record. The archive
// comment is always empty.
func encodeEOCD(r eocdRecord) []byte {
	buf := make([]byte, eocdLen)

	binary.LittleEndian.PutUint32(buf[0:4], endOfCentralDirSignature)
	binary.LittleEndian.PutUint16(buf[4:6], 0) // number of this disk
	binary.LittleEndian.PutUint16(buf[6:8], 0) // disk with start of central directory
	binary.LittleEndian.PutUint16(buf[8:10], r.EntryCount)
	binary.LittleEndian.PutUint16(buf[10:12], r.EntryCount)
	binary.LittleEndian.PutUint32(buf[12:16], r.CentralDirSize)
	binary.LittleEndian.PutUint32(buf[16:20], r.CentralDirStart)
	binary.LittleEndian.PutUint16(buf[20:22], 0) // comment length

	return buf
}

// signatureAt reads the 4-byte record signature at off, returning 0 when
// fewer than four bytes remain.
func signatureAt(data []byte, off int) uint32 {
	if off+4 > len(data) {
		return 0
	}
	return binary.LittleEndian.Uint32(data[off : off+4])
}
