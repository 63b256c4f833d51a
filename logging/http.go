package logging

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID returns the id the middleware assigned to ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithRequestID stores id on ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// HTTPLogger logs one entry per HTTP request.
type HTTPLogger struct {
	logger      *Logger
	maxBodySize int
}

// NewHTTPLogger creates a new HTTP logger. Response bodies up to maxBodySize
// bytes are captured for JSON and text responses.
func NewHTTPLogger(logger *Logger, maxBodySize int) *HTTPLogger {
	if maxBodySize == 0 {
		maxBodySize = 10 * 1024 // 10KB default
	}
	return &HTTPLogger{
		logger:      logger,
		maxBodySize: maxBodySize,
	}
}

// responseRecorder captures the response for logging.
type responseRecorder struct {
	http.ResponseWriter
	status      int
	size        int
	body        *bytes.Buffer
	limit       int
	wroteHeader bool
}

func (r *responseRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
		r.ResponseWriter.WriteHeader(status)
	}
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	if r.body.Len() < r.limit {
		r.body.Write(b[:min(len(b), r.limit-r.body.Len())])
	}
	return n, err
}

func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := r.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("responseRecorder does not support hijacking")
}

func (r *responseRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Middleware assigns a request id (reusing a well-formed incoming one),
// exposes it through RequestID, and logs the request once it completes.
func (h *HTTPLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}

		recorder := &responseRecorder{
			ResponseWriter: w,
			status:         http.StatusOK,
			body:           &bytes.Buffer{},
			limit:          h.maxBodySize,
		}
		recorder.Header().Set(RequestIDHeader, requestID)

		next.ServeHTTP(recorder, r.WithContext(WithRequestID(r.Context(), requestID)))

		duration := time.Since(start).Milliseconds()
		fields := map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"query":       r.URL.RawQuery,
			"status":      recorder.status,
			"size":        recorder.size,
			"remote_addr": r.RemoteAddr,
			"user_agent":  r.UserAgent(),
			"referer":     r.Referer(),
		}
		if recorder.body.Len() > 0 && loggableContent(recorder.Header().Get("Content-Type")) {
			fields["response_body"] = truncate(recorder.body.String(), 1000)
		}

		headers := make(map[string]string)
		for name, values := range r.Header {
			if !isSensitiveHeader(name) {
				headers[name] = strings.Join(values, ", ")
			}
		}
		if len(headers) > 0 {
			fields["request_headers"] = headers
		}

		level := INFO
		if recorder.status >= 400 {
			level = WARN
		}
		if recorder.status >= 500 {
			level = ERROR
		}
		if !h.logger.Enabled(level) {
			return
		}
		h.logger.write(Entry{
			Level:     level.String(),
			Category:  "http",
			Message:   fmt.Sprintf("%s %s %d", r.Method, r.URL.Path, recorder.status),
			Fields:    fields,
			RequestID: requestID,
			Duration:  &duration,
		})
	})
}

func loggableContent(contentType string) bool {
	return strings.HasPrefix(contentType, "application/json") || strings.HasPrefix(contentType, "text/plain")
}

func isSensitiveHeader(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "auth") ||
		strings.Contains(lower, "token") ||
		strings.Contains(lower, "cookie") ||
		strings.Contains(lower, "key") ||
		strings.Contains(lower, "secret")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "... [truncated]"
}
