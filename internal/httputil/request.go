package httputil

import (
	"encoding/json"
	"net"
	"net/http"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 1 << 20

// DecodeJSON reads a JSON request body into dst
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

// ClientIP returns the host part of RemoteAddr. Forwarding headers are
// client controlled and are only honoured when the router runs chi's RealIP
// behind a trusted proxy, which rewrites RemoteAddr before this is called.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
