package httpapi

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

var logger = zerolog.Nop()

// SetLogger installs the structured logger used by the HTTP layer. Until it is
// called nothing is logged.
func SetLogger(l zerolog.Logger) { logger = l }

// Request summaries are gated per request. "off" maps to zerolog.Disabled and
// "error" only reports 5xx responses.
var defaultRequestLevel = zerolog.InfoLevel

// SetRequestLogLevel sets the default summary level: off, error, info or debug.
// Unknown values fall back to info.
func SetRequestLogLevel(s string) { defaultRequestLevel = parseRequestLevel(s) }

func parseRequestLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off", "none":
		return zerolog.Disabled
	case "1":
		return zerolog.DebugLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.InfoLevel
	}
	switch lvl {
	case zerolog.DebugLevel, zerolog.InfoLevel, zerolog.ErrorLevel, zerolog.Disabled:
		return lvl
	case zerolog.TraceLevel:
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// requestLevel honours ?log= first, then X-Log-Level, then the default.
func requestLevel(r *http.Request) zerolog.Level {
	if v := r.URL.Query().Get("log"); v != "" {
		return parseRequestLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseRequestLevel(v)
	}
	return defaultRequestLevel
}

func debugRequested(r *http.Request) bool { return requestLevel(r) == zerolog.DebugLevel }

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := &responseMeter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(m, r)

		lvl := requestLevel(r)
		if lvl == zerolog.Disabled || (lvl == zerolog.ErrorLevel && m.status < 500) {
			return
		}
		ev := logger.Info()
		if m.status >= 500 {
			ev = logger.Error()
		}
		ev = ev.Str("method", r.Method).
			Str("route", routeLabel(r)).
			Str("path", r.URL.Path).
			Int("status", m.status).
			Int("bytes", m.bytes).
			Dur("dur", time.Since(start))
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			ev = ev.Str("request_id", rid)
		}
		if c, ok := ClaimsFromContext(r.Context()); ok {
			ev = ev.Str("subject", c.Subject).Str("role", c.Role)
		}
		ev.Msg("http request")
	})
}

// streamLogWriter copies complete NDJSON lines of a streamed response to the
// debug log.
type streamLogWriter struct {
	stream string
	rid    string
	buf    []byte
}

func (sw *streamLogWriter) Write(p []byte) (int, error) {
	sw.buf = append(sw.buf, p...)
	for {
		i := bytes.IndexByte(sw.buf, '\n')
		if i < 0 {
			break
		}
		if line := bytes.TrimSpace(sw.buf[:i]); len(line) > 0 {
			logger.Debug().Str("stream", sw.stream).Str("request_id", sw.rid).RawJSON("line", line).Msg("stream line")
		}
		sw.buf = sw.buf[i+1:]
	}
	return len(p), nil
}
