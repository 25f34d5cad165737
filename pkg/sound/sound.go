package sound

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// Info describes a decoded mp3 stream.
type Info struct {
	SampleRate int
	Duration   time.Duration
}

// Probe decodes the mp3 data from r and returns its sample rate and length.
func Probe(r io.Reader) (*Info, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't read song: %w", err)
	}
	decoder, err := mp3.NewDecoder(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't decode mp3: %w", err)
	}
	rate := decoder.SampleRate()
	if rate <= 0 {
		return nil, fmt.Errorf("sound: invalid sample rate %d", rate)
	}
	// Decoded samples are 16-bit stereo, 4 bytes per frame.
	frames := decoder.Length() / 4
	return &Info{
		SampleRate: rate,
		Duration:   time.Duration(float64(frames) / float64(rate) * float64(time.Second)),
	}, nil
}

// ProbeFile is like Probe but reads from a local file.
func ProbeFile(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't open file: %w", err)
	}
	defer f.Close()
	return Probe(f)
}
