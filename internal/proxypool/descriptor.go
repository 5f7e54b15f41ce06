// Package proxypool implements the proxy URL grammar (validate/parse/
// reconstruct/sanitize) and the round-robin, failover-aware Proxy Pool
// the Network Fabric dispatches requests through.
package proxypool

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Protocol is one of the three supported proxy schemes.
type Protocol string

const (
	HTTP   Protocol = "http"
	HTTPS  Protocol = "https"
	SOCKS5 Protocol = "socks5"
)

var defaultPorts = map[Protocol]int{
	HTTP:   80,
	HTTPS:  443,
	SOCKS5: 1080,
}

// Descriptor is an immutable, fully-resolved proxy endpoint.
type Descriptor struct {
	Protocol Protocol
	Host     string
	Port     int
	Username string
	Password string
}

// Kind names the error categories the proxy grammar can produce.
type Kind string

const (
	InvalidFormat       Kind = "InvalidFormat"
	UnsupportedProtocol Kind = "UnsupportedProtocol"
	MissingHost         Kind = "MissingHost"
	InvalidPort         Kind = "InvalidPort"
)

// Error wraps a grammar failure with its category.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Message }

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validate reports whether s parses as a well-formed proxy URL: a
// supported scheme, non-empty host, and a port (explicit or default) in
// [1, 65535].
func Validate(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Parse validates and decodes a proxy URL string into a Descriptor.
// Username and password are URL-decoded.
func Parse(s string) (Descriptor, error) {
	if !strings.Contains(s, "://") {
		return Descriptor{}, newError(InvalidFormat, "missing scheme separator in %q", s)
	}
	u, err := url.Parse(s)
	if err != nil {
		return Descriptor{}, newError(InvalidFormat, "%v", err)
	}

	proto := Protocol(strings.ToLower(u.Scheme))
	defaultPort, ok := defaultPorts[proto]
	if !ok {
		return Descriptor{}, newError(UnsupportedProtocol, "unsupported protocol %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return Descriptor{}, newError(MissingHost, "empty host in %q", s)
	}

	port := defaultPort
	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil || p < 1 || p > 65535 {
			return Descriptor{}, newError(InvalidPort, "invalid port %q", portStr)
		}
		port = p
	}
	if port < 1 || port > 65535 {
		return Descriptor{}, newError(InvalidPort, "invalid port %d", port)
	}

	d := Descriptor{Protocol: proto, Host: host, Port: port}
	if u.User != nil {
		d.Username = u.User.Username()
		if pw, set := u.User.Password(); set {
			d.Password = pw
		}
	}
	return d, nil
}

// Reconstruct renders a Descriptor back into canonical proxy URL form,
// URL-encoding any credentials.
func Reconstruct(d Descriptor) string {
	var b strings.Builder
	b.WriteString(string(d.Protocol))
	b.WriteString("://")
	if d.Username != "" {
		b.WriteString(url.PathEscape(d.Username))
		if d.Password != "" {
			b.WriteByte(':')
			b.WriteString(url.PathEscape(d.Password))
		}
		b.WriteByte('@')
	}
	b.WriteString(d.Host)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(d.Port))
	return b.String()
}

// SanitizeForDisplay returns s with any embedded credentials removed. If s
// fails to parse, it falls back to a best-effort string replace of the
// "//user:pass@" substring with "//***@".
func SanitizeForDisplay(s string) string {
	d, err := Parse(s)
	if err == nil {
		plain := d
		plain.Username, plain.Password = "", ""
		return Reconstruct(plain)
	}
	return maskCredentials(s)
}

func maskCredentials(s string) string {
	idx := strings.Index(s, "//")
	if idx == -1 {
		return s
	}
	rest := s[idx+2:]
	at := strings.Index(rest, "@")
	if at == -1 {
		return s
	}
	return s[:idx] + "//***@" + rest[at+1:]
}

// ErrEmptyPool is returned when a Pool is constructed with no proxy URLs.
var ErrEmptyPool = errors.New("EmptyPool: proxy pool requires at least one proxy URL")
