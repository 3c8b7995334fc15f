package urlpolicy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowed(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want bool
	}{
		{"valid https", "https://example.test/video", true},
		{"valid http", "http://example.test/video", true},
		{"localhost", "http://localhost/x", false},
		{"localhost mixed case", "http://LocalHost/x", false},
		{"loopback", "http://127.0.0.1/x", false},
		{"private 192", "http://192.168.1.5/x", false},
		{"private 10", "http://10.0.0.1/x", false},
		{"private 172", "http://172.16.0.1/x", false},
		{"172 out of range", "http://172.15.0.1/x", true},
		{"unspecified", "http://0.0.0.0/x", false},
		{"ipv6 loopback", "http://[::1]/x", false},
		{"file scheme", "file:///etc/passwd", false},
		{"ftp scheme", "ftp://example.test/x", false},
		{"relative", "/just/a/path", false},
		{"empty", "", false},
		{"no host", "http:///path", false},
		{"too long", "https://example.test/" + strings.Repeat("a", 2048), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Allowed(tc.url))
		})
	}
}

func TestAllowedDeterministic(t *testing.T) {
	for i := 0; i < 5; i++ {
		assert.True(t, Allowed("https://example.test/a"))
		assert.False(t, Allowed("http://localhost/a"))
	}
}
