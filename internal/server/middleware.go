package server

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/zephyrtronium/calculator"
)

// recoverPanics turns a panicking handler into an INTERNAL_ERROR response.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				err := fmt.Errorf("panic: %v", v)
				s.logger.Error("handler panicked", "method", r.Method, "path", r.URL.Path, "error", err)
				writeJSON(w, http.StatusInternalServerError, calculator.Result{Err: calculator.Classify("", err)})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// statusWriter records the status code written through it.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		logger := s.logger.With(
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"elapsed", time.Since(start),
		)
		if sw.status >= 500 {
			logger.Error("request")
		} else {
			logger.Debug("request")
		}
	})
}

// cors adds the cross-origin headers to every response and answers
// preflight requests. Access-Control-Allow-Origin holds a single origin, so
// with a list other than "*" the request's Origin is echoed when allowed.
func (s *Server) cors(next http.Handler) http.Handler {
	wildcard := slices.Contains(s.cfg.CORS.AllowedOrigins, "*")
	methods := strings.Join(s.cfg.CORS.AllowedMethods, ", ")
	headers := strings.Join(s.cfg.CORS.AllowedHeaders, ", ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		if wildcard {
			h.Set("Access-Control-Allow-Origin", "*")
		} else {
			h.Add("Vary", "Origin")
			if o := r.Header.Get("Origin"); o != "" && slices.Contains(s.cfg.CORS.AllowedOrigins, o) {
				h.Set("Access-Control-Allow-Origin", o)
			}
		}
		h.Set("Access-Control-Allow-Methods", methods)
		h.Set("Access-Control-Allow-Headers", headers)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limit rejects requests beyond the configured rate.
func (s *Server) limit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.logger.Warn("rate limited", "remote", r.RemoteAddr, "path", r.URL.Path)
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
