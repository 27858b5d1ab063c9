package zipfile

// findEOCD scans backward from the end of the archive for the EOCD
// signature. The search window is the last maxEOCDScan bytes; a
// well-formed archive keeps its EOCD within comment-length reach of the
// end. Returns -1 when no signature is found.
func findEOCD(data []byte) int {
	if len(data) < eocdLen {
		return -1
	}
	low := 0
	if len(data) > maxEOCDScan {
		low = len(data) - maxEOCDScan
	}
	for off := len(data) - eocdLen; off >= low; off-- {
		if signatureAt(data, off) == endOfCentralDirSignature {
			return off
		}
	}
	return -1
}

// buildCentralIndex locates the EOCD, walks the central directory it
// points at, and returns a name-keyed map of entries. Local headers
// written with a trailing data descriptor declare zero sizes; this index
// supplies the true sizes for those entries. A missing or unreadable
// EOCD yields an empty map and the reader falls back to local-header
// sizes alone.
func buildCentralIndex(data []byte) map[string]centralEntry {
	index := make(map[string]centralEntry)

	eocdOff := findEOCD(data)
	if eocdOff < 0 {
		return index
	}
	eocd, err := parseEOCD(data, eocdOff)
	if err != nil {
		return index
	}

	off := int(eocd.CentralDirStart)
	for off >= 0 && signatureAt(data, off) == centralDirSignature {
		entry, err := parseCentralEntry(data, off)
		if err != nil {
			break
		}
		index[entry.Name] = entry
		off += entry.recordLen
	}
	return index
}
