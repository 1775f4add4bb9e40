package metadata

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"senderguard/pkg/requestcontext"
)

func TestClientIPFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "first forwarded hop", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, remote: "10.0.0.2:1234", want: "203.0.113.7"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": " 198.51.100.3 "}, remote: "10.0.0.2:1234", want: "198.51.100.3"},
		{name: "remote addr v4", remote: "192.0.2.10:5555", want: "192.0.2.10"},
		{name: "remote addr v6", remote: "[::1]:5555", want: "::1"},
		{name: "nothing", remote: "", want: "unknown"},
		{name: "forged forwarded value falls back", headers: map[string]string{"X-Forwarded-For": "not-an-ip, 10.0.0.1"}, remote: "192.0.2.10:5555", want: "192.0.2.10"},
		{name: "oversized forwarded value falls back to real ip", headers: map[string]string{"X-Forwarded-For": strings.Repeat("1", 4096), "X-Real-IP": "198.51.100.3"}, remote: "10.0.0.2:1234", want: "198.51.100.3"},
		{name: "mapped v4 is canonical", headers: map[string]string{"X-Forwarded-For": "::ffff:203.0.113.7"}, remote: "10.0.0.2:1234", want: "203.0.113.7"},
		{name: "forwarded v6", headers: map[string]string{"X-Forwarded-For": "2001:db8::1"}, remote: "10.0.0.2:1234", want: "2001:db8::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIPFromRequest(r))
		})
	}
}

func TestClientMetadata(t *testing.T) {
	var ip, ua, reqID string
	h := ClientMetadata(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ip = requestcontext.ClientIP(r.Context())
		ua = requestcontext.UserAgent(r.Context())
		reqID = requestcontext.RequestID(r.Context())
	}))

	t.Run("propagates inbound request id", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "192.0.2.1:9999"
		r.Header.Set("User-Agent", "curl/8.0")
		r.Header.Set(RequestIDHeader, "req-1")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, r)

		assert.Equal(t, "192.0.2.1", ip)
		assert.Equal(t, "curl/8.0", ua)
		assert.Equal(t, "req-1", reqID)
		assert.Equal(t, "req-1", rr.Header().Get(RequestIDHeader))
	})

	t.Run("generates request id", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, reqID)
		assert.Equal(t, reqID, rr.Header().Get(RequestIDHeader))
	})
}
