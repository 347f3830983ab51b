package websocket

import (
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// webSocketGUID is the fixed GUID from RFC 6455 Section 1.3, appended to
// the client key before hashing.
const webSocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// Handshake errors.
var (
	ErrNotWebSocketRequest = errors.New("not a WebSocket upgrade request")
	ErrMissingSecKey       = errors.New("missing Sec-WebSocket-Key header")
)

// HandshakeError wraps a handshake failure with the HTTP status a polite
// server would answer with before dropping the connection.
type HandshakeError struct {
	Err    error
	Status int
}

func (e *HandshakeError) Error() string {
	return e.Err.Error()
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// AcceptKey computes the Sec-WebSocket-Accept value for a client key:
// base64(SHA-1(key + GUID)).
func AcceptKey(secKey string) string {
	hash := sha1.Sum([]byte(secKey + webSocketGUID))
	return base64.StdEncoding.EncodeToString(hash[:])
}

// validateUpgrade checks an inbound upgrade request. The Sec-WebSocket-Key
// header is the hard requirement; without it the connection is aborted
// outright. It returns the client key on success.
func validateUpgrade(header http.Header) (string, error) {
	if !strings.EqualFold(header.Get("Upgrade"), "websocket") {
		return "", &HandshakeError{Err: ErrNotWebSocketRequest, Status: http.StatusBadRequest}
	}
	if !strings.Contains(strings.ToLower(header.Get("Connection")), "upgrade") {
		return "", &HandshakeError{Err: ErrNotWebSocketRequest, Status: http.StatusBadRequest}
	}

	key := header.Get("Sec-WebSocket-Key")
	if key == "" {
		return "", &HandshakeError{Err: ErrMissingSecKey, Status: http.StatusBadRequest}
	}

	return key, nil
}

// upgradeResponse builds the 101 Switching Protocols response for the
// given accept key.
func upgradeResponse(acceptKey string) string {
	var sb strings.Builder

	sb.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	sb.WriteString("Upgrade: websocket\r\n")
	sb.WriteString("Connection: Upgrade\r\n")
	sb.WriteString(fmt.Sprintf("Sec-WebSocket-Accept: %s\r\n", acceptKey))
	sb.WriteString("\r\n")

	return sb.String()
}
