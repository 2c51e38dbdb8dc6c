package api

import (
	"encoding/json"
	"net/http"
)

const maxBodyBytes = 64 << 10

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// callerOrigin returns the caller's network origin, or the unknown sentinel
// when it cannot be determined. RealIP middleware has already resolved
// proxy headers into RemoteAddr by the time this runs.
func callerOrigin(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	return r.RemoteAddr
}
