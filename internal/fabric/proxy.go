package fabric

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"github.com/hakoarchive/hakodl/internal/proxypool"
)

// fetchWithFailover picks the pool's next Descriptor (consuming one
// rotation step, so successive requests distribute round-robin), then
// fails over through the remaining Descriptors in pool order on failure.
// No host rotation happens here — the pool is the failover axis.
func (f *Fabric) fetchWithFailover(ctx context.Context, rawURL string, headers map[string]string, timeout time.Duration) (*http.Response, error) {
	all := f.proxyPool.All()
	n := len(all)
	first := f.proxyPool.Next()

	start := 0
	for i, d := range all {
		if d == first {
			start = i
			break
		}
	}

	var lastKind Kind
	for i := 0; i < n; i++ {
		d := all[(start+i)%n]
		resp, err := f.fetchThroughProxy(ctx, d, rawURL, headers, timeout)
		if err == nil {
			f.incrementCount()
			return resp, nil
		}
		lastKind = asError(err).Kind
	}
	return nil, &Error{Kind: KindAllProxiesFailed, Count: n, Last: lastKind, Message: "every proxy in the pool failed"}
}

func (f *Fabric) fetchThroughProxy(ctx context.Context, d proxypool.Descriptor, rawURL string, headers map[string]string, timeout time.Duration) (*http.Response, error) {
	if err := f.pacer.Wait(ctx); err != nil {
		return nil, &Error{Kind: KindProxyTimeout, Host: d.Host, Port: d.Port, Message: err.Error()}
	}
	if d.Protocol == proxypool.SOCKS5 {
		return f.fetchThroughSOCKS5(ctx, d, rawURL, headers, timeout)
	}
	return f.fetchThroughHTTPProxy(ctx, d, rawURL, headers, timeout)
}

func httpProxyURL(d proxypool.Descriptor) *url.URL {
	u := &url.URL{Scheme: string(d.Protocol), Host: net.JoinHostPort(d.Host, strconv.Itoa(d.Port))}
	if d.Username != "" {
		u.User = url.UserPassword(d.Username, d.Password)
	}
	return u
}

// fetchThroughHTTPProxy relies on net/http's built-in CONNECT-style
// proxying: a user-info-bearing proxy URL makes the transport send a
// Basic Proxy-Authorization header automatically.
func (f *Fabric) fetchThroughHTTPProxy(ctx context.Context, d proxypool.Descriptor, rawURL string, headers map[string]string, timeout time.Duration) (*http.Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindProxyConnection, Host: d.Host, Port: d.Port, Message: err.Error()}
	}
	setHeaders(req, mergeHeaders(f.cfg.Headers, headers))

	client := &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{Proxy: http.ProxyURL(httpProxyURL(d))},
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, categorizeProxyErr(err, d.Host, d.Port)
	}
	return resp, nil
}

// fetchThroughSOCKS5 opens a SOCKS5 CONNECT to the target host:port
// (inferring 443/80 from the target scheme), wraps the tunnel with TLS
// (SNI = target hostname) for https targets, then hand-crafts a single
// HTTP/1.1 GET and parses the raw response (spec §4.C, §9).
func (f *Fabric) fetchThroughSOCKS5(ctx context.Context, d proxypool.Descriptor, rawURL string, headers map[string]string, timeout time.Duration) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &Error{Kind: KindProxyConnection, Host: d.Host, Port: d.Port, Message: err.Error()}
	}
	targetHost := u.Hostname()
	targetPort := u.Port()
	if targetPort == "" {
		if u.Scheme == "https" {
			targetPort = "443"
		} else {
			targetPort = "80"
		}
	}

	var auth *proxy.Auth
	if d.Username != "" {
		auth = &proxy.Auth{User: d.Username, Password: d.Password}
	}
	dialer, err := proxy.SOCKS5("tcp", net.JoinHostPort(d.Host, strconv.Itoa(d.Port)), auth, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, categorizeProxyErr(err, d.Host, d.Port)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		c, derr := dialer.Dial("tcp", net.JoinHostPort(targetHost, targetPort))
		resultCh <- dialResult{c, derr}
	}()

	var conn net.Conn
	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, categorizeProxyErr(res.err, d.Host, d.Port)
		}
		conn = res.conn
	case <-time.After(timeout):
		return nil, &Error{Kind: KindProxyTimeout, Host: d.Host, Port: d.Port, Message: "socks5 connect timeout"}
	case <-ctx.Done():
		return nil, &Error{Kind: KindProxyTimeout, Host: d.Host, Port: d.Port, Message: ctx.Err().Error()}
	}
	conn.SetDeadline(time.Now().Add(timeout))

	if u.Scheme == "https" {
		tlsConn := tls.Client(conn, &tls.Config{ServerName: targetHost})
		if err := tlsConn.Handshake(); err != nil {
			conn.Close()
			return nil, categorizeProxyErr(err, d.Host, d.Port)
		}
		conn = tlsConn
	}

	req := buildRawHTTPRequest(u, mergeHeaders(f.cfg.Headers, headers))
	if _, err := conn.Write(req); err != nil {
		conn.Close()
		return nil, categorizeProxyErr(err, d.Host, d.Port)
	}

	raw, err := io.ReadAll(conn)
	conn.Close()
	if err != nil && len(raw) == 0 {
		return nil, categorizeProxyErr(err, d.Host, d.Port)
	}

	resp, perr := parseRawHTTPResponse(raw)
	if perr != nil {
		return nil, &Error{Kind: KindTransport, Host: d.Host, Port: d.Port, Message: perr.Error()}
	}
	return resp, nil
}

func buildRawHTTPRequest(u *url.URL, headers http.Header) []byte {
	var b strings.Builder
	path := u.RequestURI()
	if path == "" {
		path = "/"
	}
	b.WriteString("GET " + path + " HTTP/1.1\r\n")
	b.WriteString("Host: " + u.Host + "\r\n")
	for k, vs := range headers {
		for _, v := range vs {
			b.WriteString(k + ": " + v + "\r\n")
		}
	}
	b.WriteString("Connection: close\r\n\r\n")
	return []byte(b.String())
}

// parseRawHTTPResponse splits a raw HTTP/1.1 response on the first blank
// line into status+headers and body, parsing "HTTP/X.Y <code> <reason>".
func parseRawHTTPResponse(raw []byte) (*http.Response, error) {
	sep := []byte("\r\n\r\n")
	idx := bytes.Index(raw, sep)
	var headerPart, body []byte
	if idx == -1 {
		headerPart = raw
	} else {
		headerPart = raw[:idx]
		body = raw[idx+len(sep):]
	}

	lines := strings.Split(string(headerPart), "\r\n")
	if len(lines) == 0 || lines[0] == "" {
		return nil, &Error{Kind: KindTransport, Message: "empty raw HTTP response"}
	}

	parts := strings.SplitN(lines[0], " ", 3)
	if len(parts) < 2 {
		return nil, &Error{Kind: KindTransport, Message: "malformed status line: " + lines[0]}
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, &Error{Kind: KindTransport, Message: "malformed status code: " + parts[1]}
	}
	reason := ""
	if len(parts) == 3 {
		reason = parts[2]
	}

	header := http.Header{}
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		kv := strings.SplitN(line, ":", 2)
		if len(kv) != 2 {
			continue
		}
		header.Add(strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1]))
	}

	return &http.Response{
		StatusCode: code,
		Status:     strings.TrimSpace(strconv.Itoa(code) + " " + reason),
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(body)),
	}, nil
}

// categorizeProxyErr derives a Proxy* Kind from a transport error's
// message, per the substring rules in spec §7.
func categorizeProxyErr(err error, host string, port int) *Error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "econnrefused") || strings.Contains(msg, "enotfound"):
		return &Error{Kind: KindProxyConnection, Host: host, Port: port, Message: err.Error()}
	case strings.Contains(msg, "407") || strings.Contains(msg, "authentication"):
		return &Error{Kind: KindProxyAuth, Host: host, Port: port, Message: err.Error()}
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "aborted"):
		return &Error{Kind: KindProxyTimeout, Host: host, Port: port, Message: err.Error()}
	default:
		return &Error{Kind: KindTransport, Host: host, Port: port, Message: err.Error()}
	}
}
