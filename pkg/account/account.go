// Package account loads the credential and relay configuration and picks
// the service a client is built with.
package account

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/igolaizola/sunokit/pkg/relay"
	"gopkg.in/yaml.v3"
)

// DefaultModel is the only model served by the suno client.
const DefaultModel = "suno-3.5"

// Service is a credential record. Weight controls how often it is picked.
type Service struct {
	Name    string `yaml:"name"`
	Model   string `yaml:"model"`
	APIBase string `yaml:"api_base"`
	Cookie  string `yaml:"cookie"`
	Weight  int    `yaml:"weight"`
}

// File is the accounts file content.
type File struct {
	Services []Service     `yaml:"services"`
	Relays   []relay.Relay `yaml:"relays"`
}

// Load reads an accounts file.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("account: couldn't read %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes an accounts file and validates its records.
func Parse(b []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("account: couldn't parse accounts: %w", err)
	}
	for i, s := range f.Services {
		if s.Cookie == "" {
			return nil, fmt.Errorf("account: service %d (%s) has no cookie", i, s.Name)
		}
		if s.Model == "" {
			f.Services[i].Model = DefaultModel
		}
		if s.Weight < 0 {
			return nil, fmt.Errorf("account: service %d (%s) has negative weight", i, s.Name)
		}
	}
	for i, r := range f.Relays {
		if r.Server == "" {
			return nil, fmt.Errorf("account: relay %d (%s) has no server", i, r.ID)
		}
	}
	return &f, nil
}

// ErrNoService is returned when no service matches the request.
var ErrNoService = errors.New("account: no service available")

// Pick returns one service for model. If lock is set, the service whose
// name or cookie equals lock is returned. Otherwise services are sampled
// from a list where each appears weight times. If intn is nil a
// time-seeded source is used.
func (f *File) Pick(model, lock string, intn func(int) int) (*Service, error) {
	if model == "" {
		model = DefaultModel
	}
	var pool []Service
	for _, s := range f.Services {
		if s.Model != model {
			continue
		}
		for i := 0; i < s.Weight; i++ {
			pool = append(pool, s)
		}
	}
	if lock != "" {
		for _, s := range pool {
			if s.Name == lock || s.Cookie == lock {
				s := s
				return &s, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrNoService, lock)
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("%w: model %s", ErrNoService, model)
	}
	if intn == nil {
		intn = rand.New(rand.NewSource(time.Now().UnixNano())).Intn
	}
	s := pool[intn(len(pool))]
	return &s, nil
}
