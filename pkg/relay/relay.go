// Package relay picks the endpoint a request is routed through.
package relay

import (
	"math/rand"
	"sync"
	"time"
)

// Relay is an interchangeable endpoint that forwards requests to the origin.
type Relay struct {
	ID     string `yaml:"id"`
	Server string `yaml:"server"`
	Key    string `yaml:"key"`
}

// Selector chooses a relay uniformly at random for each call.
type Selector struct {
	relays []Relay
	intn   func(int) int
}

// New returns a selector over a copy of relays. If intn is nil a
// time-seeded source is used.
func New(relays []Relay, intn func(int) int) *Selector {
	if intn == nil {
		intn = lockedIntn(rand.New(rand.NewSource(time.Now().UnixNano())))
	}
	return &Selector{
		relays: append([]Relay(nil), relays...),
		intn:   intn,
	}
}

// Select returns the relay for the next call or nil to talk to the
// origin directly.
func (s *Selector) Select() *Relay {
	if s == nil || len(s.relays) == 0 {
		return nil
	}
	r := s.relays[s.intn(len(s.relays))]
	return &r
}

func lockedIntn(r *rand.Rand) func(int) int {
	var lck sync.Mutex
	return func(n int) int {
		lck.Lock()
		defer lck.Unlock()
		return r.Intn(n)
	}
}
