package fabric

import (
	"context"
	"net/http"
	"time"
)

func mergeHeaders(base map[string]string, overlay map[string]string) http.Header {
	h := http.Header{}
	for k, v := range base {
		h.Set(k, v)
	}
	for k, v := range overlay {
		h.Set(k, v)
	}
	return h
}

func setHeaders(req *http.Request, h http.Header) {
	for k, vs := range h {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
}

// directFetch issues a single, non-proxied GET bounded by timeout.
func (f *Fabric) directFetch(ctx context.Context, rawURL string, headers map[string]string, timeout time.Duration) (*http.Response, error) {
	if err := f.pacer.Wait(ctx); err != nil {
		return nil, &Error{Kind: KindTimeout, Message: err.Error()}
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindInvalidURL, Message: err.Error()}
	}
	setHeaders(req, mergeHeaders(f.cfg.Headers, headers))

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, categorizeTransportErr(reqCtx, err)
	}
	return resp, nil
}

func categorizeTransportErr(ctx context.Context, err error) *Error {
	if ctx.Err() != nil {
		return &Error{Kind: KindTimeout, Message: err.Error()}
	}
	return &Error{Kind: KindTransport, Message: err.Error()}
}
