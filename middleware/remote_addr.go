package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/dcbradley/netblast/appctx"
)

// RemoteAddrMiddleware resolves the caller's host address into the request context.
// Forwarding headers are only honoured when the broker runs behind a trusted proxy.
func RemoteAddrMiddleware(trustProxyHeaders bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := hostOnly(r.RemoteAddr)
			if trustProxyHeaders {
				if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
					first, _, _ := strings.Cut(forwarded, ",")
					addr = hostOnly(strings.TrimSpace(first))
				} else if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
					addr = hostOnly(realIP)
				}
			}

			next.ServeHTTP(w, r.WithContext(appctx.SetRemoteAddr(r.Context(), addr)))
		})
	}
}

func hostOnly(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}
