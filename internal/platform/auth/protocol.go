package auth

import (
	"errors"
	"net/http"
	"strings"
)

// ProtocolHeader carries the bearer token during the WebSocket handshake,
// because browsers cannot set Authorization on an upgrade request.
const ProtocolHeader = "Sec-WebSocket-Protocol"

var ErrMissingToken = errors.New("missing token in " + ProtocolHeader)

// TokenFromProtocol extracts the token from a two-part subprotocol value
// ("<scheme>, <token>"). The scheme is returned so the server can echo it
// back as the negotiated subprotocol.
func TokenFromProtocol(r *http.Request) (scheme, token string, err error) {
	raw := strings.Join(r.Header.Values(ProtocolHeader), ",")
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return "", "", ErrMissingToken
	}
	scheme = strings.TrimSpace(parts[0])
	token = strings.TrimSpace(parts[1])
	if scheme == "" || token == "" {
		return "", "", ErrMissingToken
	}
	return scheme, token, nil
}
