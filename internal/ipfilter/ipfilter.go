// Package ipfilter restricts HTTP endpoints to an allow-list of client
// addresses.
package ipfilter

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// Filter checks if IP addresses are allowed
type Filter struct {
	allowedNets []*net.IPNet
	logger      *slog.Logger
}

// New creates a filter from a list of IPs/CIDRs. An empty list allows
// every address. Invalid entries are rejected.
func New(allowed []string, logger *slog.Logger) (*Filter, error) {
	f := &Filter{logger: logger}

	for _, entry := range allowed {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		ipNet, err := parseNet(entry)
		if err != nil {
			return nil, err
		}
		f.allowedNets = append(f.allowedNets, ipNet)
	}

	return f, nil
}

// parseNet turns a CIDR or a single address into a network
func parseNet(entry string) (*net.IPNet, error) {
	if strings.Contains(entry, "/") {
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", entry, err)
		}
		return ipNet, nil
	}

	ip := net.ParseIP(entry)
	if ip == nil {
		return nil, fmt.Errorf("invalid IP %q", entry)
	}
	bits := 128
	if ip.To4() != nil {
		ip = ip.To4()
		bits = 32
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}

// Enabled returns true if IP filtering is active
func (f *Filter) Enabled() bool {
	return len(f.allowedNets) > 0
}

// IsAllowed checks if the IP is allowed
func (f *Filter) IsAllowed(ip net.IP) bool {
	if !f.Enabled() {
		return true
	}
	for _, ipNet := range f.allowedNets {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP extracts the client IP from an HTTP request, preferring
// X-Forwarded-For and X-Real-IP over RemoteAddr
func ClientIP(r *http.Request) net.IP {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return net.ParseIP(r.RemoteAddr)
	}
	return net.ParseIP(host)
}

// Middleware rejects requests from addresses outside the allow-list
func (f *Filter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !f.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		ip := ClientIP(r)
		if ip == nil || !f.IsAllowed(ip) {
			f.logger.Warn("access denied by IP filter", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
