package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		debug     bool
		wantDebug bool
	}{
		{debug: false, wantDebug: false},
		{debug: true, wantDebug: true},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		l := New(Config{Debug: tt.debug, Output: &buf})
		l.Debug().Msg("hidden")
		l.Info().Str("op", "generate").Msg("shown")

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		want := 1
		if tt.wantDebug {
			want = 2
		}
		if len(lines) != want {
			t.Fatalf("lines = %d; want %d", len(lines), want)
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
			t.Fatalf("json.Unmarshal() err = %v; want nil", err)
		}
		if entry["op"] != "generate" || entry["message"] != "shown" || entry["time"] == nil {
			t.Fatalf("entry = %v; want op, message and time", entry)
		}
	}
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "text", Output: &buf})
	l.Info().Msg("hello")
	if !strings.Contains(buf.String(), "hello") || strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("output = %q; want console line", buf.String())
	}
}
