package media

import (
	"bytes"
	"fmt"
	"time"

	"github.com/gopxl/beep/v2/mp3"
)

// AudioInfo describes a decoded audio stream.
type AudioInfo struct {
	SampleRate int
	Channels   int
	Duration   time.Duration
}

// ProbeMP3 decodes the stream header of an MP3 blob and reports its length.
func ProbeMP3(data []byte) (AudioInfo, error) {
	s, format, err := mp3.Decode(memFile{bytes.NewReader(data)})
	if err != nil {
		return AudioInfo{}, fmt.Errorf("probing mp3: %w", err)
	}
	defer s.Close()

	return AudioInfo{
		SampleRate: int(format.SampleRate),
		Channels:   format.NumChannels,
		Duration:   format.SampleRate.D(s.Len()),
	}, nil
}

// memFile lets the decoder seek to measure the stream length.
type memFile struct{ *bytes.Reader }

func (memFile) Close() error { return nil }
