package siteurl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomain(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://www.example.com/path?q=1", "example.com"},
		{"http://news.bbc.co.uk/", "bbc.co.uk"},
		{"example.org", "example.org"},
		{"https://A.B.Example.COM:8443/x", "example.com"},
		{"http://127.0.0.1:8080/", "127.0.0.1"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Domain(tt.in), tt.in)
	}
}

func TestFullDomain(t *testing.T) {
	assert.Equal(t, "news.example.com", FullDomain("https://News.example.com/a"))
	assert.Equal(t, "example.com", FullDomain("example.com"))
}

func TestSameSite(t *testing.T) {
	assert.True(t, SameSite("https://www.example.com/", "http://cdn.example.com/x.js"))
	assert.False(t, SameSite("https://www.example.com/", "https://tracker.test/p.gif"))
	assert.False(t, SameSite("", ""))
}

func TestCandidates(t *testing.T) {
	assert.Equal(t, []string{
		"https://example.com",
		"https://www.example.com",
		"http://example.com",
		"http://www.example.com",
	}, Candidates("example.com"))
}
