package http

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP_RemoteAddrOnly(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.7:54321"

	ip := ExtractClientIP(req, nil)
	assert.Equal(t, "203.0.113.7", ip)
}

func TestExtractClientIP_ForwardedHeaderIgnoredFromUntrustedSource(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.7:54321"
	req.Header.Set("X-Forwarded-For", "10.0.0.1")

	config := &IPConfig{TrustedProxies: []string{"192.168.0.0/16"}}

	ip := ExtractClientIP(req, config)
	assert.Equal(t, "203.0.113.7", ip)
}

func TestExtractClientIP_ForwardedHeaderHonoredFromTrustedProxy(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.168.1.10:443"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 192.168.1.10")

	config := &IPConfig{TrustedProxies: []string{"192.168.0.0/16"}}

	ip := ExtractClientIP(req, config)
	assert.Equal(t, "203.0.113.7", ip)
}

func TestExtractClientIP_XRealIPFallback(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.168.1.10:443"
	req.Header.Set("X-Real-IP", "203.0.113.7")

	config := &IPConfig{TrustedProxies: []string{"192.168.0.0/16"}}

	ip := ExtractClientIP(req, config)
	assert.Equal(t, "203.0.113.7", ip)
}

func TestExtractClientIP_InvalidForwardedEntriesSkipped(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.168.1.10:443"
	req.Header.Set("X-Forwarded-For", "not-an-ip, 203.0.113.7")

	config := &IPConfig{TrustedProxies: []string{"192.168.0.0/16"}}

	ip := ExtractClientIP(req, config)
	assert.Equal(t, "203.0.113.7", ip)
}

func TestExtractClientIP_NoTrustedProxiesConfigured(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.168.1.10:443"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")

	config := &IPConfig{}

	ip := ExtractClientIP(req, config)
	assert.Equal(t, "192.168.1.10", ip)
}
