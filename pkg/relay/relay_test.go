package relay

import "testing"

func TestSelectEmpty(t *testing.T) {
	s := New(nil, nil)
	for i := 0; i < 100; i++ {
		if got := s.Select(); got != nil {
			t.Fatalf("Select() = %v; want nil", got)
		}
	}
	var nilSelector *Selector
	if got := nilSelector.Select(); got != nil {
		t.Fatalf("Select() = %v; want nil", got)
	}
}

func TestSelectSingle(t *testing.T) {
	want := Relay{ID: "a", Server: "https://a.example.com", Key: "k"}
	s := New([]Relay{want}, nil)
	for i := 0; i < 100; i++ {
		got := s.Select()
		if got == nil || *got != want {
			t.Fatalf("Select() = %v; want %v", got, want)
		}
	}
}

func TestSelectUniform(t *testing.T) {
	relays := []Relay{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	s := New(relays, nil)
	counts := map[string]int{}
	const n = 3000
	for i := 0; i < n; i++ {
		counts[s.Select().ID]++
	}
	for _, r := range relays {
		// Loose bounds around n/3.
		if c := counts[r.ID]; c < n/6 || c > n/2 {
			t.Fatalf("relay %s selected %d times out of %d", r.ID, c, n)
		}
	}
}

func TestSelectSource(t *testing.T) {
	relays := []Relay{{ID: "a"}, {ID: "b"}}
	var calls []int
	s := New(relays, func(n int) int {
		calls = append(calls, n)
		return 1
	})
	if got := s.Select(); got.ID != "b" {
		t.Fatalf("Select() = %v; want b", got.ID)
	}
	if len(calls) != 1 || calls[0] != 2 {
		t.Fatalf("intn calls = %v; want [2]", calls)
	}
	// The selector doesn't share the caller's slice.
	relays[1].ID = "z"
	if got := s.Select(); got.ID != "b" {
		t.Fatalf("Select() = %v; want b", got.ID)
	}
}
