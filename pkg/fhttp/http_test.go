package fhttp

import (
	"bytes"
	"context"
	"io"
	nethttp "net/http"
	"testing"

	http "github.com/bogdanfinn/fhttp"
)

type doerFunc func(req *http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestRoundTrip(t *testing.T) {
	var got *http.Request
	var gotBody string
	transport := &Transport{Doer: doerFunc(func(req *http.Request) (*http.Response, error) {
		got = req
		b, _ := io.ReadAll(req.Body)
		gotBody = string(b)
		return &http.Response{
			Status:     "201 Created",
			StatusCode: 201,
			Header:     http.Header{"X-Test": []string{"yes"}},
			Body:       io.NopCloser(bytes.NewReader([]byte(`{"ok":true}`))),
		}, nil
	})}
	client := &nethttp.Client{Transport: transport}

	req, err := nethttp.NewRequestWithContext(context.Background(), "POST", "https://studio-api.suno.ai/api/generate/v2/", bytes.NewReader([]byte(`{"mv":"x"}`)))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer t")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() err = %v; want nil", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if got.Method != "POST" || got.URL.Path != "/api/generate/v2/" {
		t.Fatalf("request = %s %s; want POST /api/generate/v2/", got.Method, got.URL.Path)
	}
	if got.Header.Get("Authorization") != "Bearer t" {
		t.Fatalf("Authorization = %q; want Bearer t", got.Header.Get("Authorization"))
	}
	if gotBody != `{"mv":"x"}` {
		t.Fatalf("body = %q; want request body", gotBody)
	}
	if resp.StatusCode != 201 || resp.Header.Get("X-Test") != "yes" || string(body) != `{"ok":true}` {
		t.Fatalf("response = %d %v %s; want 201 with header and body", resp.StatusCode, resp.Header, body)
	}
}
