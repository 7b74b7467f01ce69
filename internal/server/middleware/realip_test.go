package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func captureIP(t *testing.T, remoteAddr string, headers map[string]string) string {
	t.Helper()
	var got string
	h := RealIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientIP(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestRealIP_ForwardedForFirstEntry(t *testing.T) {
	got := captureIP(t, "10.0.0.1:1234", map[string]string{
		"X-Forwarded-For": "203.0.113.5, 10.0.0.2, 10.0.0.3",
	})
	if got != "203.0.113.5" {
		t.Errorf("client ip = %q, want %q", got, "203.0.113.5")
	}
}

func TestRealIP_RealIPHeader(t *testing.T) {
	got := captureIP(t, "10.0.0.1:1234", map[string]string{
		"X-Real-Ip": "198.51.100.7",
	})
	if got != "198.51.100.7" {
		t.Errorf("client ip = %q, want %q", got, "198.51.100.7")
	}
}

func TestRealIP_PeerAddressFallback(t *testing.T) {
	got := captureIP(t, "192.0.2.4:5678", nil)
	if got != "192.0.2.4" {
		t.Errorf("client ip = %q, want %q", got, "192.0.2.4")
	}
}

func TestRealIP_BareAddress(t *testing.T) {
	got := captureIP(t, "192.0.2.4", nil)
	if got != "192.0.2.4" {
		t.Errorf("client ip = %q, want %q", got, "192.0.2.4")
	}
}
