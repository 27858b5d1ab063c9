package ingest

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/lexdrop/lexdrop/core/zipfile"
)

type received struct {
	tempPath string
	name     string
}

func startServer(t *testing.T) (*Server, chan received) {
	t.Helper()
	ch := make(chan received, 1)
	srv := NewServer(Config{Port: 0, TempDir: t.TempDir()}, func(tempPath, originalName string) {
		ch <- received{tempPath: tempPath, name: originalName}
	})
	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(srv.Stop)
	return srv, ch
}

func dial(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", srv.Port()))
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

// roundTrip sends a raw request and returns the full response; the
// server closes the connection after responding.
func roundTrip(t *testing.T, srv *Server, request []byte) string {
	t.Helper()
	conn := dial(t, srv)
	defer conn.Close()
	if _, err := conn.Write(request); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	resp, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return string(resp)
}

func waitCallback(t *testing.T, ch chan received) received {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("completion callback never ran")
		return received{}
	}
}

func TestServeUploadPage(t *testing.T) {
	srv, _ := startServer(t)
	resp := roundTrip(t, srv, []byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))
	if !strings.Contains(resp, "HTTP/1.1 200 OK") {
		t.Errorf("status line missing:\n%s", resp)
	}
	if !strings.Contains(resp, "Content-Type: text/html") {
		t.Errorf("content type missing:\n%s", resp)
	}
	if !strings.Contains(resp, "<form") {
		t.Errorf("upload form missing:\n%s", resp)
	}
}

func TestUploadZipEndToEnd(t *testing.T) {
	srv, ch := startServer(t)

	archive, err := zipfile.CreateArchive([]zipfile.FileEntry{
		{Name: "a.txt", Data: []byte("hello")},
		{Name: "b.txt", Data: []byte("world world world")},
	})
	if err != nil {
		t.Fatalf("CreateArchive failed: %v", err)
	}

	resp := roundTrip(t, srv, buildUpload("deck.zip", archive))
	if !strings.Contains(resp, "HTTP/1.1 200 OK") {
		t.Fatalf("upload rejected:\n%s", resp)
	}

	r := waitCallback(t, ch)
	if r.name != "deck.zip" {
		t.Errorf("callback name = %q", r.name)
	}
	stored, err := os.ReadFile(r.tempPath)
	if err != nil {
		t.Fatalf("reading temp file: %v", err)
	}
	if !bytes.Equal(stored, archive) {
		t.Errorf("stored bytes differ from uploaded archive (%d vs %d bytes)", len(stored), len(archive))
	}

	// The stored archive must extract cleanly.
	dir := t.TempDir()
	result, err := zipfile.Unzip(stored, dir)
	if err != nil {
		t.Fatalf("Unzip of stored upload failed: %v", err)
	}
	if len(result.Extracted) != 2 {
		t.Errorf("extracted %d files, want 2", len(result.Extracted))
	}
}

func TestUploadTextFile(t *testing.T) {
	srv, ch := startServer(t)

	deck := "apple|ˈæpəl|noun,a fruit|An apple a day.|Jablko denně.\n"
	resp := roundTrip(t, srv, buildUpload("words.txt", []byte(deck)))
	if !strings.Contains(resp, "HTTP/1.1 200 OK") {
		t.Fatalf("upload rejected:\n%s", resp)
	}

	r := waitCallback(t, ch)
	stored, err := os.ReadFile(r.tempPath)
	if err != nil {
		t.Fatalf("reading temp file: %v", err)
	}
	if string(stored) != deck {
		t.Errorf("stored text = %q", stored)
	}
}

// TestUploadFragmented drives a real connection with one-byte and odd
// sized writes.
func TestUploadFragmented(t *testing.T) {
	srv, ch := startServer(t)

	request := buildUpload("words.txt", []byte("slow|sləʊ|adj,not fast"))
	conn := dial(t, srv)
	defer conn.Close()

	if _, err := conn.Write(request[:1]); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	for off := 1; off < len(request); off += 13 {
		end := off + 13
		if end > len(request) {
			end = len(request)
		}
		if _, err := conn.Write(request[off:end]); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	resp, _ := io.ReadAll(conn)
	if !strings.Contains(string(resp), "HTTP/1.1 200 OK") {
		t.Fatalf("fragmented upload rejected:\n%s", resp)
	}
	waitCallback(t, ch)
}

func TestRejectUnknownExtension(t *testing.T) {
	srv, ch := startServer(t)
	resp := roundTrip(t, srv, buildUpload("malware.exe", []byte("MZ......")))
	if !strings.Contains(resp, "HTTP/1.1 400 Bad Request") {
		t.Errorf("expected 400:\n%s", resp)
	}
	select {
	case <-ch:
		t.Error("completion callback ran for a rejected upload")
	case <-time.After(100 * time.Millisecond):
	}
}

// TestRejectZipWithoutSignature: a .zip upload whose payload has no
// local header signature fails the second validation layer.
func TestRejectZipWithoutSignature(t *testing.T) {
	srv, ch := startServer(t)
	resp := roundTrip(t, srv, buildUpload("fake.zip", []byte("not really a zip archive at all")))
	if !strings.Contains(resp, "HTTP/1.1 400 Bad Request") {
		t.Errorf("expected 400:\n%s", resp)
	}
	select {
	case <-ch:
		t.Error("completion callback ran for an invalid zip")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPayloadTooLarge(t *testing.T) {
	ch := make(chan received, 1)
	srv := NewServer(Config{Port: 0, MaxBodyBytes: 4096, TempDir: t.TempDir()}, func(p, n string) {
		ch <- received{tempPath: p, name: n}
	})
	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(srv.Stop)

	conn := dial(t, srv)
	defer conn.Close()
	// The server aborts mid-body, so the tail of this write may fail
	// with a reset; only the response matters.
	go conn.Write(buildUpload("big.txt", bytes.Repeat([]byte("z"), 64*1024)))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	resp := make([]byte, 512)
	n, _ := conn.Read(resp)
	if !strings.Contains(string(resp[:n]), "HTTP/1.1 413 Payload Too Large") {
		t.Errorf("expected 413:\n%s", resp[:n])
	}
	select {
	case <-ch:
		t.Error("completion callback ran for an oversized upload")
	case <-time.After(100 * time.Millisecond):
	}
}

// TestSecondConnectionRefused: while one connection is live, another
// inbound connection is accepted at the transport level and immediately
// terminated.
func TestSecondConnectionRefused(t *testing.T) {
	srv, _ := startServer(t)

	first := dial(t, srv)
	defer first.Close()
	// Start a request so the connection is registered as active.
	if _, err := first.Write([]byte("POST /upload HTTP/1.1\r\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	second := dial(t, srv)
	defer second.Close()
	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 16)
	n, err := second.Read(buf)
	if err != io.EOF || n != 0 {
		t.Errorf("second connection not refused: n=%d err=%v", n, err)
	}
}

// TestOverDeclaredContentLength: a body 10 bytes short of its declared
// length completes when the client half-closes instead of hanging.
func TestOverDeclaredContentLength(t *testing.T) {
	srv, ch := startServer(t)

	request := buildUpload("words.txt", []byte("short|ʃɔːt|adj,brief"))
	// Overstate the declared length by 10.
	actual := bodyLenOf(request)
	request = bytes.Replace(request,
		[]byte(fmt.Sprintf("Content-Length: %d", actual)),
		[]byte(fmt.Sprintf("Content-Length: %d", actual+10)), 1)

	conn := dial(t, srv)
	defer conn.Close()
	if _, err := conn.Write(request); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.CloseWrite()
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	resp, _ := io.ReadAll(conn)
	if !strings.Contains(string(resp), "HTTP/1.1 200 OK") {
		t.Fatalf("transport-complete fallback failed:\n%s", resp)
	}
	waitCallback(t, ch)
}

func TestStopCancelsActiveConnection(t *testing.T) {
	srv, ch := startServer(t)

	conn := dial(t, srv)
	defer conn.Close()
	if _, err := conn.Write([]byte("POST /upload HTTP/1.1\r\nContent-Length: 999\r\n\r\npartial")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	srv.Stop()

	select {
	case <-ch:
		t.Error("completion callback ran for a cancelled upload")
	case <-time.After(200 * time.Millisecond):
	}
}
