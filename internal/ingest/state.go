package ingest

import (
	"bytes"
	"strconv"

	"github.com/lexdrop/lexdrop/core/zipfile"
)

// phase is the per-connection request lifecycle.
type phase int

const (
	// phaseAwaitingRequest: no bytes classified yet.
	phaseAwaitingRequest phase = iota
	// phaseAccumulatingBody: classified as POST, collecting body fragments.
	phaseAccumulatingBody
	// phaseClosed: request handled or aborted; no further reads.
	phaseClosed
)

// actionKind tells the connection handler what to do after a fragment.
type actionKind int

const (
	// actionNone: keep reading.
	actionNone actionKind = iota
	// actionServePage: GET request, send the upload page.
	actionServePage
	// actionDispatch: POST body complete, hand off to the orchestrator.
	actionDispatch
	// actionReject: send the given status and close.
	actionReject
)

// action is the outcome of one state transition.
type action struct {
	kind   actionKind
	status int
}

var headerSeparator = []byte("\r\n\r\n")

// requestState reassembles one HTTP request from arbitrarily fragmented
// transport reads. Exactly one exists per live connection and all
// transitions run on that connection's handling goroutine, so no locking
// is needed.
type requestState struct {
	phase         phase
	buf           []byte
	contentLength int
	maxBody       int
}

func newRequestState(maxBody int) *requestState {
	return &requestState{maxBody: maxBody}
}

// feed appends one transport fragment and returns the resulting action.
// Fragments arrive at arbitrary, non-aligned sizes; feed is called once
// per read until it returns something other than actionNone.
func (s *requestState) feed(fragment []byte) action {
	if s.phase == phaseClosed {
		return action{kind: actionNone}
	}

	s.buf = append(s.buf, fragment...)
	if len(s.buf) > s.maxBody {
		s.phase = phaseClosed
		return action{kind: actionReject, status: 413}
	}

	if s.phase == phaseAwaitingRequest {
		// Classification needs the method token; wait for enough bytes.
		if len(s.buf) < 4 {
			return action{kind: actionNone}
		}
		switch {
		case bytes.HasPrefix(s.buf, []byte("GET")):
			s.phase = phaseClosed
			return action{kind: actionServePage}
		case bytes.HasPrefix(s.buf, []byte("POST")):
			s.phase = phaseAccumulatingBody
		default:
			s.phase = phaseClosed
			return action{kind: actionReject, status: 400}
		}
	}

	return s.checkComplete()
}

// finish signals that the transport reported the stream complete. A POST
// whose declared Content-Length overstated the body still dispatches
// here instead of hanging.
func (s *requestState) finish() action {
	if s.phase != phaseAccumulatingBody {
		return action{kind: actionNone}
	}
	if _, ok := s.body(); !ok {
		return action{kind: actionNone}
	}
	s.phase = phaseClosed
	return action{kind: actionDispatch}
}

// checkComplete applies the body-completion tests after every fragment:
// the body has reached the declared Content-Length, or the buffer
// carries a ZIP end-of-central-directory signature. The latter covers
// producers whose declared length is unreliable; it is a heuristic — a
// non-ZIP body containing that 4-byte pattern completes early, accepted
// because only .zip and .txt uploads are supported.
func (s *requestState) checkComplete() action {
	body, ok := s.body()
	if !ok {
		return action{kind: actionNone}
	}
	if s.contentLength == 0 {
		s.contentLength = parseContentLength(s.head())
	}
	if len(body) >= s.contentLength || zipfile.ContainsEOCD(s.buf) {
		s.phase = phaseClosed
		return action{kind: actionDispatch}
	}
	return action{kind: actionNone}
}

// head returns the request bytes up to the header/body separator, or the
// whole buffer if the separator has not arrived.
func (s *requestState) head() []byte {
	if i := bytes.Index(s.buf, headerSeparator); i >= 0 {
		return s.buf[:i]
	}
	return s.buf
}

// body returns the accumulated payload after the header/body separator.
// ok is false until the separator has been received.
func (s *requestState) body() ([]byte, bool) {
	i := bytes.Index(s.buf, headerSeparator)
	if i < 0 {
		return nil, false
	}
	return s.buf[i+len(headerSeparator):], true
}

// parseContentLength extracts the Content-Length header value from the
// request head, defaulting to 0 when absent or unparseable.
func parseContentLength(head []byte) int {
	for _, line := range bytes.Split(head, []byte("\r\n")) {
		name, value, found := bytes.Cut(line, []byte(":"))
		if !found {
			continue
		}
		if !bytes.EqualFold(bytes.TrimSpace(name), []byte("Content-Length")) {
			continue
		}
		n, err := strconv.Atoi(string(bytes.TrimSpace(value)))
		if err != nil || n < 0 {
			return 0
		}
		return n
	}
	return 0
}
