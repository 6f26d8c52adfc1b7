package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/recira/controller/pkg/audit"
)

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

// auditMiddleware logs every mutating /api/ request (everything but GET) to
// the audit trail, regardless of which handler served it or how it turned
// out — handlers don't each have to remember to emit one.
func (s *Server) auditMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &bodyRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		ev := audit.NewEvent(r.RemoteAddr, r.URL.Path, r.Method).
			WithDuration(time.Since(start)).
			WithClientIP(r.RemoteAddr)
		if rec.succeeded() {
			ev.WithSuccess()
		} else {
			ev.WithError(rec.failureMessage())
		}
		audit.Log(ev)
	})
}

// bodyRecorder buffers the response so the audit entry can reflect the
// handler's own success/message fields rather than guessing from the
// status code — every handler here answers HTTP 200 regardless of outcome.
type bodyRecorder struct {
	http.ResponseWriter
	buf bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *bodyRecorder) succeeded() bool {
	var body struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(r.buf.Bytes(), &body); err != nil {
		return false
	}
	return body.Success
}

func (r *bodyRecorder) failureMessage() error {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	json.Unmarshal(r.buf.Bytes(), &body)
	if body.Message != "" {
		return errString(body.Message)
	}
	if body.Error != "" {
		return errString(body.Error)
	}
	return errString("request failed")
}

type errString string

func (e errString) Error() string { return string(e) }
