// Package fhttp exposes a browser-fingerprinted tls client as a
// net/http transport.
package fhttp

import (
	"fmt"
	nethttp "net/http"
	"time"

	http "github.com/bogdanfinn/fhttp"
	tlsclient "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
)

// Doer sends fhttp requests. tlsclient.HttpClient satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewClient returns a tls client with a Chrome profile. Cookies are left to
// the net/http client wrapping it.
func NewClient(timeout time.Duration, proxy string) (tlsclient.HttpClient, error) {
	secs := int(timeout.Seconds())
	if secs <= 0 {
		secs = 30
	}
	options := []tlsclient.HttpClientOption{
		tlsclient.WithTimeoutSeconds(secs),
		tlsclient.WithClientProfile(profiles.Chrome_120),
		tlsclient.WithNotFollowRedirects(),
	}
	if proxy != "" {
		options = append(options, tlsclient.WithProxyUrl(proxy))
	}
	c, err := tlsclient.NewHttpClient(tlsclient.NewNoopLogger(), options...)
	if err != nil {
		return nil, fmt.Errorf("fhttp: couldn't create tls client: %w", err)
	}
	return c, nil
}

// Transport adapts a Doer to net/http.
type Transport struct {
	Doer Doer
}

// NewTransport creates a transport backed by a new tls client.
func NewTransport(timeout time.Duration, proxy string) (*Transport, error) {
	c, err := NewClient(timeout, proxy)
	if err != nil {
		return nil, err
	}
	return &Transport{Doer: c}, nil
}

// RoundTrip implements net/http.RoundTripper.
func (t *Transport) RoundTrip(req *nethttp.Request) (*nethttp.Response, error) {
	freq, err := http.NewRequestWithContext(req.Context(), req.Method, req.URL.String(), req.Body)
	if err != nil {
		return nil, fmt.Errorf("fhttp: couldn't create request: %w", err)
	}
	freq.Header = http.Header(req.Header.Clone())
	if req.ContentLength > 0 {
		freq.ContentLength = req.ContentLength
	}
	resp, err := t.Doer.Do(freq)
	if err != nil {
		return nil, err
	}
	return &nethttp.Response{
		Status:        resp.Status,
		StatusCode:    resp.StatusCode,
		Proto:         resp.Proto,
		ProtoMajor:    resp.ProtoMajor,
		ProtoMinor:    resp.ProtoMinor,
		Header:        nethttp.Header(resp.Header),
		Body:          resp.Body,
		ContentLength: resp.ContentLength,
		Request:       req,
	}, nil
}
