// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpd

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"

	"github.com/lirios/radicle-httpd/internal/logger"
)

// UnixOrigin is the origin of requests received on the unix socket
const UnixOrigin = "unix-socket"

type contextKey int

const (
	keyOrigin contextKey = iota
	keyTrace
)

// connContext stamps the origin of the connection on the contexts of its requests
func connContext(ctx context.Context, conn net.Conn) context.Context {
	origin := UnixOrigin
	if _, ok := conn.LocalAddr().(*net.UnixAddr); !ok {
		origin = conn.RemoteAddr().String()
	}
	return context.WithValue(ctx, keyOrigin, origin)
}

// Trace describes a request, for logging
type Trace struct {
	Method       string
	URI          string
	Proto        string
	Origin       string
	ForwardedFor string
}

// TraceFromContext returns the trace of the request ctx belongs to
func TraceFromContext(ctx context.Context) (*Trace, bool) {
	trace, ok := ctx.Value(keyTrace).(*Trace)
	return trace, ok
}

// Tracing records a Trace for every request and writes an access log line
// once the response is sent
func Tracing(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		origin, ok := r.Context().Value(keyOrigin).(string)
		if !ok {
			origin = r.RemoteAddr
		}

		trace := &Trace{
			Method:       r.Method,
			URI:          r.URL.RequestURI(),
			Proto:        r.Proto,
			Origin:       origin,
			ForwardedFor: r.Header.Get("X-Forwarded-For"),
		}
		ctx := context.WithValue(r.Context(), keyTrace, trace)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			latency := time.Since(start)

			if trace.ForwardedFor != "" {
				logger.Infof("%s \"%s %s %s\" %d %v %d forwarded-for=%s",
					trace.Origin, trace.Method, trace.URI, trace.Proto, status, latency, ww.BytesWritten(), trace.ForwardedFor)
				return
			}
			logger.Infof("%s \"%s %s %s\" %d %v %d",
				trace.Origin, trace.Method, trace.URI, trace.Proto, status, latency, ww.BytesWritten())
		}()

		next.ServeHTTP(ww, r.WithContext(ctx))
	}
	return http.HandlerFunc(fn)
}
