package fabric

import (
	"errors"
	"fmt"
)

// Kind names the error categories the Network Fabric can produce (spec §7).
type Kind string

const (
	KindInvalidURL       Kind = "InvalidURL"
	KindHTTPStatus       Kind = "HTTPStatus"
	KindRateLimited      Kind = "RateLimited"
	KindTransport        Kind = "Transport"
	KindTimeout          Kind = "Timeout"
	KindProxyConnection  Kind = "ProxyConnection"
	KindProxyAuth        Kind = "ProxyAuth"
	KindProxyTimeout     Kind = "ProxyTimeout"
	KindAllProxiesFailed Kind = "AllProxiesFailed"
	KindIOFailure        Kind = "IOFailure"
)

// Error is a categorized Network Fabric failure. Two Errors are
// errors.Is-equal when their Kind matches, regardless of the other
// fields — callers branch on Kind, not on message text.
type Error struct {
	Kind    Kind
	Code    int    // HTTP status code, for KindHTTPStatus
	Host    string // proxy host, for the Proxy* kinds
	Port    int    // proxy port, for the Proxy* kinds
	Count   int    // proxies attempted, for KindAllProxiesFailed
	Last    Kind   // last proxy failure kind, for KindAllProxiesFailed
	Message string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("%s(%d): %s", e.Kind, e.Code, e.Message)
	case KindProxyConnection, KindProxyAuth, KindProxyTimeout:
		return fmt.Sprintf("%s(%s:%d): %s", e.Kind, e.Host, e.Port, e.Message)
	case KindAllProxiesFailed:
		return fmt.Sprintf("%s(count=%d, last=%s): %s", e.Kind, e.Count, e.Last, e.Message)
	default:
		if e.Message == "" {
			return string(e.Kind)
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

// Is reports Kind-equality, so errors.Is(err, ErrRateLimited) etc. match
// any *Error carrying that Kind, not only the shared sentinel pointer.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel errors for errors.Is matching against a Kind.
var (
	ErrInvalidURL       = &Error{Kind: KindInvalidURL}
	ErrHTTPStatus       = &Error{Kind: KindHTTPStatus}
	ErrRateLimited      = &Error{Kind: KindRateLimited}
	ErrTransport        = &Error{Kind: KindTransport}
	ErrTimeout          = &Error{Kind: KindTimeout}
	ErrProxyConnection  = &Error{Kind: KindProxyConnection}
	ErrProxyAuth        = &Error{Kind: KindProxyAuth}
	ErrProxyTimeout     = &Error{Kind: KindProxyTimeout}
	ErrAllProxiesFailed = &Error{Kind: KindAllProxiesFailed}
	ErrIOFailure        = &Error{Kind: KindIOFailure}
)

func asError(err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return &Error{Kind: KindTransport, Message: err.Error()}
}
