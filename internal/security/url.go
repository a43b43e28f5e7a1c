package security

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

var blockedSchemes = map[string]bool{
	"javascript": true,
	"data":       true,
	"vbscript":   true,
	"file":       true,
}

// ValidateResultLink checks that a link returned by a search source can be
// shown to a child as a clickable result.
func ValidateResultLink(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return fmt.Errorf("empty url")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if blockedSchemes[scheme] {
		return fmt.Errorf("blocked url scheme: %s", parsed.Scheme)
	}
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("unsupported url scheme: %q", parsed.Scheme)
	}
	if parsed.User != nil {
		return fmt.Errorf("url must not carry credentials")
	}

	host := strings.ToLower(strings.TrimSpace(parsed.Hostname()))
	if host == "" {
		return fmt.Errorf("url host is required")
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		return fmt.Errorf("unspecified ip is not a valid result host")
	}
	return nil
}

// DisplayHost returns the hostname shown under a result title.
func DisplayHost(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
