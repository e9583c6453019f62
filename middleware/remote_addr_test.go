package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dcbradley/netblast/appctx"
)

func TestRemoteAddrMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		trust      bool
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{name: "ipv4 peer", remoteAddr: "10.0.0.9:51234", want: "10.0.0.9"},
		{name: "ipv6 peer", remoteAddr: "[fd00::9]:51234", want: "fd00::9"},
		{
			name:       "forwarded header ignored without trust",
			remoteAddr: "10.0.0.9:51234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7"},
			want:       "10.0.0.9",
		},
		{
			name:       "first forwarded hop with trust",
			trust:      true,
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"},
			want:       "203.0.113.7",
		},
		{
			name:       "real ip with trust",
			trust:      true,
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Real-IP": "2001:db8::1"},
			want:       "2001:db8::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := RemoteAddrMiddleware(tt.trust)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = appctx.GetRemoteAddr(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, got)
		})
	}
}
