// Package ingest implements the local-network upload server: a raw TCP
// listener that serves one upload page, accepts one multipart file POST
// at a time, and hands the received bytes to a completion callback.
//
// The server is deliberately narrow. It admits a single live connection;
// while one is active, further inbound connections are accepted at the
// transport level and immediately closed. Each accepted connection
// carries one request/response cycle and is closed after the response.
package ingest

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/lexdrop/lexdrop/core/zipfile"
	"github.com/lexdrop/lexdrop/internal/logging"
)

// DefaultMaxBodyBytes caps the accumulated request size at 500 MiB.
const DefaultMaxBodyBytes = 500 << 20

// CompletionFunc is invoked with the temp file holding the received
// bytes and the upload's original file name, after the 200 response has
// been sent.
type CompletionFunc func(tempPath, originalName string)

// Config holds the ingest server settings.
type Config struct {
	// Port is the TCP port to listen on. Port 0 picks a free port.
	Port int
	// MaxBodyBytes caps the accumulated request size; 0 means
	// DefaultMaxBodyBytes.
	MaxBodyBytes int
	// TempDir receives the uploaded bytes; empty means os.TempDir().
	TempDir string
}

// Server is the single-connection upload server.
type Server struct {
	cfg        Config
	onComplete CompletionFunc

	ln      net.Listener
	active  atomic.Bool
	closed  atomic.Bool
	current atomic.Value // net.Conn of the live connection, if any
}

// NewServer creates an ingest server. onComplete may be nil.
func NewServer(cfg Config, onComplete CompletionFunc) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &Server{
		cfg:        cfg,
		onComplete: onComplete,
	}
}

// Start begins listening and accepting connections. It returns once the
// listener is bound; connection handling runs in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return err
	}
	s.ln = ln
	logging.ServerStartup("ingest", s.Port(), "max_body_bytes", s.cfg.MaxBodyBytes)
	go s.acceptLoop()
	return nil
}

// Port returns the bound TCP port.
func (s *Server) Port() int {
	if s.ln == nil {
		return s.cfg.Port
	}
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Stop closes the listener and any live connection. An in-flight upload
// is cancelled without its completion callback running; partially
// received bytes are discarded.
func (s *Server) Stop() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	if s.ln != nil {
		s.ln.Close()
	}
	if conn, ok := s.current.Load().(net.Conn); ok && conn != nil {
		conn.Close()
	}
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		// Admission control: one live connection system-wide. A second
		// inbound connection is refused outright.
		if !s.active.CompareAndSwap(false, true) {
			logging.ConnectionEvent("refused", conn.RemoteAddr().String(), "reason", "connection already active")
			conn.Close()
			continue
		}
		go s.handleConn(conn)
	}
}

// handleConn drives one request/response cycle. All state transitions
// for a connection run here, on its own goroutine; the accumulator needs
// no locks.
func (s *Server) handleConn(conn net.Conn) {
	s.current.Store(conn)
	defer func() {
		conn.Close()
		s.active.Store(false)
	}()
	logging.ConnectionEvent("accepted", conn.RemoteAddr().String())

	state := newRequestState(s.cfg.MaxBodyBytes)
	frag := make([]byte, 32<<10)
	for {
		n, err := conn.Read(frag)
		if s.closed.Load() {
			// Server stopped: discard the partial upload, no callback.
			return
		}

		var act action
		if n > 0 {
			act = state.feed(frag[:n])
		}
		if act.kind == actionNone && err != nil {
			// Transport reported the stream complete (or failed): a POST
			// body shorter than its declared length still dispatches.
			act = state.finish()
			if act.kind == actionNone {
				logging.ConnectionEvent("closed", conn.RemoteAddr().String(), "reason", err.Error())
				return
			}
		}

		switch act.kind {
		case actionServePage:
			respond(conn, 200, "text/html", []byte(uploadPage))
			return
		case actionDispatch:
			s.dispatch(conn, state)
			return
		case actionReject:
			logging.ConnectionEvent("rejected", conn.RemoteAddr().String(), "status", act.status)
			respondText(conn, act.status, statusText[act.status])
			return
		}
	}
}

// dispatch handles a classified-complete POST: decode the multipart
// body, validate the file by extension, persist it, respond, and invoke
// the completion callback.
func (s *Server) dispatch(conn net.Conn, state *requestState) {
	body, ok := state.body()
	if !ok {
		respondText(conn, 400, "incomplete request")
		return
	}

	boundary, err := extractBoundary(state.head())
	if err != nil {
		logging.Warn("multipart boundary missing", "error", err)
		respondText(conn, 400, "malformed multipart body")
		return
	}

	filename, payload, err := decodePart(body, boundary)
	if err != nil {
		logging.Warn("multipart decode failed", "error", err)
		respondText(conn, 400, "malformed multipart body")
		return
	}

	switch classify(filename) {
	case kindZip:
		// Second validation layer, independent of the multipart header
		// parse: the payload must start at a ZIP local header signature.
		off := zipfile.FirstLocalHeader(payload)
		if off < 0 {
			logging.Warn("zip upload without local header signature", "filename", filename)
			respondText(conn, 400, "not a zip archive")
			return
		}
		payload = payload[off:]
	case kindText:
		// Multipart-decoded payload is used directly.
	default:
		logging.Warn("unsupported upload extension", "filename", filename)
		respondText(conn, 400, "unsupported file type")
		return
	}

	tempPath := filepath.Join(s.cfg.TempDir, "lexdrop-"+uuid.NewString()+filepath.Ext(filename))
	if err := os.WriteFile(tempPath, payload, 0644); err != nil {
		logging.Error("persisting upload failed", "path", tempPath, "error", err)
		respondText(conn, 500, "could not store upload")
		return
	}

	logging.IngestEvent("received", filename, len(payload), "temp_path", tempPath)
	respondText(conn, 200, "upload received")

	if s.onComplete != nil {
		s.onComplete(tempPath, filename)
	}
}

type fileKind int

const (
	kindUnknown fileKind = iota
	kindZip
	kindText
)

// classify determines the file kind strictly from the original
// filename's extension.
func classify(filename string) fileKind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".zip":
		return kindZip
	case ".txt":
		return kindText
	default:
		return kindUnknown
	}
}
