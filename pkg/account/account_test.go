package account

import (
	"errors"
	"testing"
)

const accounts = `
services:
  - name: main
    cookie: "__client=abc"
    weight: 2
  - name: spare
    model: suno-3.5
    api_base: https://studio-api.suno.ai
    cookie: "__client=def"
    weight: 1
  - name: old
    model: suno-3
    cookie: "__client=ghi"
    weight: 5
  - name: disabled
    cookie: "__client=jkl"
    weight: 0
relays:
  - id: r1
    server: https://relay1.example.com
    key: secret
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(accounts))
	if err != nil {
		t.Fatalf("Parse() err = %v; want nil", err)
	}
	if len(f.Services) != 4 {
		t.Fatalf("len(Services) = %d; want 4", len(f.Services))
	}
	if got := f.Services[0].Model; got != DefaultModel {
		t.Fatalf("Model = %q; want %q", got, DefaultModel)
	}
	if len(f.Relays) != 1 || f.Relays[0].Key != "secret" {
		t.Fatalf("Relays = %v; want r1 with key", f.Relays)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []string{
		"services: [{name: a}]",
		"services: [{name: a, cookie: c, weight: -1}]",
		"relays: [{id: r}]",
		"services: {",
	}
	for _, tt := range tests {
		if _, err := Parse([]byte(tt)); err == nil {
			t.Fatalf("Parse(%q) err = nil; want error", tt)
		}
	}
}

func TestPick(t *testing.T) {
	f, err := Parse([]byte(accounts))
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		model string
		lock  string
		idx   int
		want  string
	}{
		{idx: 0, want: "main"},
		{idx: 1, want: "main"},
		{idx: 2, want: "spare"},
		{model: "suno-3", idx: 4, want: "old"},
		{lock: "spare", want: "spare"},
		{lock: "__client=abc", want: "main"},
	}
	for _, tt := range tests {
		got, err := f.Pick(tt.model, tt.lock, func(n int) int { return tt.idx })
		if err != nil {
			t.Fatalf("Pick() err = %v; want nil", err)
		}
		if got.Name != tt.want {
			t.Fatalf("Pick(%q, %q) = %s; want %s", tt.model, tt.lock, got.Name, tt.want)
		}
	}
}

func TestPickMissing(t *testing.T) {
	f, err := Parse([]byte(accounts))
	if err != nil {
		t.Fatal(err)
	}
	for _, lock := range []string{"disabled", "unknown"} {
		if _, err := f.Pick("", lock, nil); !errors.Is(err, ErrNoService) {
			t.Fatalf("Pick(%q) err = %v; want %v", lock, err, ErrNoService)
		}
	}
	if _, err := f.Pick("suno-4", "", nil); !errors.Is(err, ErrNoService) {
		t.Fatalf("Pick() err = %v; want %v", err, ErrNoService)
	}
}
