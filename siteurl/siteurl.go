// Package siteurl normalizes URLs the way the crawler compares them: by
// registrable domain for same-site checks.
package siteurl

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Domain returns the registrable domain (eTLD+1) of rawURL, e.g.
// "news.example.co.uk" → "example.co.uk". Hosts without a public suffix
// (IP addresses, localhost) are returned as-is. It returns "" when rawURL
// has no host.
func Domain(rawURL string) string {
	host := hostname(rawURL)
	if host == "" || net.ParseIP(host) != nil {
		return host
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}

// FullDomain returns the lower-cased hostname of rawURL including any
// subdomain.
func FullDomain(rawURL string) string {
	return hostname(rawURL)
}

// SameSite reports whether two URLs share a registrable domain.
func SameSite(a, b string) bool {
	da := Domain(a)
	return da != "" && da == Domain(b)
}

// Candidates lists the landing page URLs tried, in order, when resolving a
// bare domain.
func Candidates(domain string) []string {
	return []string{
		"https://" + domain,
		"https://www." + domain,
		"http://" + domain,
		"http://www." + domain,
	}
}

func hostname(rawURL string) string {
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
