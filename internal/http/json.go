package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// maxBodyBytes caps request bodies. The largest legitimate payload here is a
// trigger request with a handful of job titles.
const maxBodyBytes = 1 << 20

// DecodeJSON decodes the request body into dst, rejecting oversized bodies.
// Unknown fields are ignored, matching the trigger contract: clients sending
// extra fields still get their job. On failure it writes the error response
// and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_json", err)
		return false
	}
	return true
}

// WriteJSON encodes v to a buffer first so an encoding failure can still
// produce a 500 instead of a truncated body.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		// client went away mid-write
		return
	}
}

// WriteError writes the standard JSON error body: a stable machine-readable
// code plus the human-readable message.
func WriteError(w http.ResponseWriter, status int, code string, err error) {
	WriteJSON(w, status, map[string]string{"error": code, "message": err.Error()})
}
