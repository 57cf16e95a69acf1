package ipfilter

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		allowedIPs  []string
		wantEnabled bool
		wantErr     bool
	}{
		{name: "empty list", allowedIPs: []string{}, wantEnabled: false},
		{name: "blank entries", allowedIPs: []string{"", "  "}, wantEnabled: false},
		{name: "single IP", allowedIPs: []string{"192.168.1.1"}, wantEnabled: true},
		{name: "CIDR range", allowedIPs: []string{"10.0.0.0/8"}, wantEnabled: true},
		{name: "with whitespace", allowedIPs: []string{"  192.168.1.1  ", " 10.0.0.0/8 "}, wantEnabled: true},
		{name: "IPv6", allowedIPs: []string{"::1", "2001:db8::/32"}, wantEnabled: true},
		{name: "invalid IP", allowedIPs: []string{"192.168.1.1", "invalid"}, wantErr: true},
		{name: "invalid CIDR", allowedIPs: []string{"10.0.0.0/99"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.allowedIPs, newTestLogger())
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if f.Enabled() != tt.wantEnabled {
				t.Errorf("Enabled() = %v, want %v", f.Enabled(), tt.wantEnabled)
			}
		})
	}
}

func TestFilter_IsAllowed(t *testing.T) {
	f, err := New([]string{"192.168.1.100", "10.0.0.0/8", "2001:db8::/32"}, newTestLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		ip   string
		want bool
	}{
		{"192.168.1.100", true},
		{"192.168.1.101", false},
		{"10.1.2.3", true},
		{"11.0.0.1", false},
		{"2001:db8::1", true},
		{"2001:db9::1", false},
		{"::ffff:10.0.0.1", true},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := f.IsAllowed(net.ParseIP(tt.ip)); got != tt.want {
				t.Errorf("IsAllowed(%s) = %v, want %v", tt.ip, got, tt.want)
			}
		})
	}
}

func TestFilter_IsAllowedDisabled(t *testing.T) {
	f, err := New(nil, newTestLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !f.IsAllowed(net.ParseIP("203.0.113.7")) {
		t.Error("IsAllowed() = false with empty allow-list, want true")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{name: "remote addr", remoteAddr: "192.168.1.1:12345", want: "192.168.1.1"},
		{name: "remote addr without port", remoteAddr: "192.168.1.1", want: "192.168.1.1"},
		{name: "X-Forwarded-For first entry", remoteAddr: "127.0.0.1:1", xff: "10.0.0.1, 10.0.0.2", want: "10.0.0.1"},
		{name: "X-Real-IP", remoteAddr: "127.0.0.1:1", xri: "10.0.0.3", want: "10.0.0.3"},
		{name: "invalid X-Forwarded-For falls back", remoteAddr: "127.0.0.1:1", xff: "garbage", xri: "10.0.0.4", want: "10.0.0.4"},
		{name: "IPv6 remote addr", remoteAddr: "[::1]:8080", want: "::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}

			got := ClientIP(req)
			if got == nil || !got.Equal(net.ParseIP(tt.want)) {
				t.Errorf("ClientIP() = %v, want %s", got, tt.want)
			}
		})
	}
}

func TestFilter_Middleware(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("no filtering when empty", func(t *testing.T) {
		f, _ := New(nil, newTestLogger())
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		req.RemoteAddr = "203.0.113.1:1234"
		rec := httptest.NewRecorder()

		f.Middleware(okHandler).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("allowed IP", func(t *testing.T) {
		f, _ := New([]string{"127.0.0.1"}, newTestLogger())
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		req.RemoteAddr = "127.0.0.1:1234"
		rec := httptest.NewRecorder()

		f.Middleware(okHandler).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("denied IP", func(t *testing.T) {
		f, _ := New([]string{"127.0.0.1"}, newTestLogger())
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		req.RemoteAddr = "203.0.113.1:1234"
		rec := httptest.NewRecorder()

		f.Middleware(okHandler).ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("Status = %d, want %d", rec.Code, http.StatusForbidden)
		}
	})
}
