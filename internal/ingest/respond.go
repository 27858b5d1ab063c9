package ingest

import (
	"fmt"
	"net"
)

var statusText = map[int]string{
	200: "OK",
	400: "Bad Request",
	413: "Payload Too Large",
	500: "Internal Server Error",
}

// buildResponse serializes one HTTP/1.1 response. Every response closes
// the connection and allows any origin; the upload page is served from
// file:// or another device on the LAN.
func buildResponse(status int, contentType string, body []byte) []byte {
	head := fmt.Sprintf(
		"HTTP/1.1 %d %s\r\nContent-Type: %s\r\nContent-Length: %d\r\nConnection: close\r\nAccess-Control-Allow-Origin: *\r\n\r\n",
		status, statusText[status], contentType, len(body))
	return append([]byte(head), body...)
}

// respond writes a response to the connection. Write errors are ignored:
// the connection is closed right after either way.
func respond(conn net.Conn, status int, contentType string, body []byte) {
	conn.Write(buildResponse(status, contentType, body))
}

// respondText writes a plain-text response.
func respondText(conn net.Conn, status int, message string) {
	respond(conn, status, "text/plain", []byte(message+"\n"))
}
