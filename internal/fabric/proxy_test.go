package fabric

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/hakoarchive/hakodl/internal/proxypool"
)

func TestParseRawHTTPResponse(t *testing.T) {
	raw := []byte("HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n\r\nhello world")
	resp, err := parseRawHTTPResponse(raw)
	if err != nil {
		t.Fatalf("parseRawHTTPResponse: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("StatusCode = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/plain" {
		t.Fatalf("Content-Type = %q", ct)
	}
	body := make([]byte, 11)
	n, _ := resp.Body.Read(body)
	if string(body[:n]) != "hello world" {
		t.Fatalf("body = %q", body[:n])
	}
}

func TestParseRawHTTPResponseMalformedStatusLine(t *testing.T) {
	_, err := parseRawHTTPResponse([]byte("garbage\r\n\r\n"))
	if err == nil {
		t.Fatalf("expected error on malformed status line")
	}
}

func TestBuildRawHTTPRequest(t *testing.T) {
	u, _ := url.Parse("https://example.com/path?a=1")
	h := http.Header{"X-Foo": []string{"bar"}}
	req := string(buildRawHTTPRequest(u, h))
	want := "GET /path?a=1 HTTP/1.1\r\nHost: example.com\r\nX-Foo: bar\r\nConnection: close\r\n\r\n"
	if req != want {
		t.Fatalf("request = %q, want %q", req, want)
	}
}

func TestCategorizeProxyErr(t *testing.T) {
	cases := []struct {
		msg  string
		want Kind
	}{
		{"dial tcp: connect: ECONNREFUSED", KindProxyConnection},
		{"lookup host: ENOTFOUND", KindProxyConnection},
		{"socks5 auth failed: 407 authentication required", KindProxyAuth},
		{"i/o timeout", KindProxyTimeout},
		{"connection aborted", KindProxyTimeout},
		{"something else entirely", KindTransport},
	}
	for _, c := range cases {
		got := categorizeProxyErr(errors.New(c.msg), "proxy.test", 8080)
		if got.Kind != c.want {
			t.Errorf("categorizeProxyErr(%q) = %v, want %v", c.msg, got.Kind, c.want)
		}
		if got.Host != "proxy.test" || got.Port != 8080 {
			t.Errorf("categorizeProxyErr(%q) host/port = %s:%d", c.msg, got.Host, got.Port)
		}
	}
}

// fetchThroughHTTPProxy relies on http.Transport's Proxy field; verify it
// actually routes the request through a CONNECT/plain-proxy test server
// rather than hitting the target URL directly.
func TestFetchThroughHTTPProxyRoutesViaProxy(t *testing.T) {
	var proxyHit bool
	proxySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxyHit = true
		w.Write([]byte("via-proxy"))
	}))
	defer proxySrv.Close()

	proxyURL, _ := url.Parse(proxySrv.URL)
	port, err := strconv.Atoi(proxyURL.Port())
	if err != nil {
		t.Fatalf("proxy server port: %v", err)
	}

	d := proxypool.Descriptor{Protocol: proxypool.HTTP, Host: proxyURL.Hostname(), Port: port}
	f := New(Config{}, nil)
	resp, err := f.fetchThroughHTTPProxy(context.Background(), d, "http://example-target.invalid/page", nil, 5*time.Second)
	if err != nil {
		t.Fatalf("fetchThroughHTTPProxy: %v", err)
	}
	defer resp.Body.Close()
	if !proxyHit {
		t.Fatalf("request did not go through the proxy server")
	}
	body := make([]byte, 64)
	n, _ := resp.Body.Read(body)
	if string(body[:n]) != "via-proxy" {
		t.Fatalf("body = %q", body[:n])
	}
}

func TestFetchWithFailoverTriesEachProxyInOrder(t *testing.T) {
	pool, err := proxypool.NewPool([]string{
		"http://bad1.invalid.test:1",
		"http://bad2.invalid.test:1",
	})
	if err != nil {
		t.Fatal(err)
	}
	f := New(Config{Timeout: 200 * time.Millisecond}, pool)
	_, ferr := f.fetchWithFailover(context.Background(), "http://target.invalid/x", nil, 200*time.Millisecond)
	fe := asError(ferr)
	if fe.Kind != KindAllProxiesFailed {
		t.Fatalf("want KindAllProxiesFailed, got %v (%v)", fe.Kind, ferr)
	}
	if fe.Count != 2 {
		t.Fatalf("Count = %d, want 2", fe.Count)
	}
}
