package ingest

import (
	"bytes"
	"strings"

	"github.com/lexdrop/lexdrop/core/errors"
)

// extractBoundary pulls the multipart boundary token out of the request
// head's Content-Type header.
func extractBoundary(head []byte) (string, error) {
	for _, line := range bytes.Split(head, []byte("\r\n")) {
		name, value, found := bytes.Cut(line, []byte(":"))
		if !found || !bytes.EqualFold(bytes.TrimSpace(name), []byte("Content-Type")) {
			continue
		}
		_, boundary, found := strings.Cut(string(value), "boundary=")
		if !found {
			return "", &errors.MultipartError{Stage: "boundary", Err: errors.New("Content-Type has no boundary parameter")}
		}
		boundary = strings.TrimSpace(boundary)
		boundary = strings.Trim(boundary, `"`)
		if boundary == "" {
			return "", &errors.MultipartError{Stage: "boundary", Err: errors.New("empty boundary parameter")}
		}
		return boundary, nil
	}
	return "", &errors.MultipartError{Stage: "boundary", Err: errors.New("no multipart Content-Type header")}
}

// decodePart extracts the uploaded file's name and raw payload bytes
// from a complete multipart body.
//
// The filename search is confined to the small per-part header block
// between the first boundary and the header/body separator. Everything
// after the separator is raw payload: a ZIP payload's bytes may
// coincidentally resemble ASCII header text (including the literal
// `filename="`) and must never be parsed as headers.
func decodePart(body []byte, boundary string) (string, []byte, error) {
	marker := []byte("--" + boundary)

	start := bytes.Index(body, marker)
	if start < 0 {
		return "", nil, &errors.MultipartError{Stage: "boundary", Err: errors.New("opening boundary not found in body")}
	}
	afterMarker := start + len(marker)

	sep := bytes.Index(body[afterMarker:], headerSeparator)
	if sep < 0 {
		return "", nil, &errors.MultipartError{Stage: "payload", Err: errors.New("part header separator not found")}
	}
	partHead := body[afterMarker : afterMarker+sep]
	payloadStart := afterMarker + sep + len(headerSeparator)

	filename, err := parseFilename(partHead)
	if err != nil {
		return "", nil, err
	}

	payload := body[payloadStart:]
	if end := bytes.Index(payload, marker); end >= 0 {
		payload = payload[:end]
		// The CRLF before the closing boundary belongs to the encoding,
		// not the payload.
		payload = bytes.TrimSuffix(payload, []byte("\r\n"))
	}

	return filename, payload, nil
}

// parseFilename finds the filename="..." token in a per-part header
// block. Any embedded path separators are stripped down to a bare name.
func parseFilename(partHead []byte) (string, error) {
	const token = `filename="`
	i := bytes.Index(partHead, []byte(token))
	if i < 0 {
		return "", &errors.MultipartError{Stage: "filename", Err: errors.New("filename token not found in part headers")}
	}
	rest := partHead[i+len(token):]
	end := bytes.IndexByte(rest, '"')
	if end < 0 {
		return "", &errors.MultipartError{Stage: "filename", Err: errors.New("unterminated filename token")}
	}
	name := string(rest[:end])
	if j := strings.LastIndexAny(name, `/\`); j >= 0 {
		name = name[j+1:]
	}
	if name == "" {
		return "", &errors.MultipartError{Stage: "filename", Err: errors.New("empty filename")}
	}
	return name, nil
}
