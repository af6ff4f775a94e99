// Package media trims the audio and video streams that accompany a VOLS
// container to the time window of an exported frame range, copying packets
// without re-encoding.
package media

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Media errors.
var (
	ErrNoFrames   = errors.New("no audio frames found")
	ErrBadPacket  = errors.New("invalid packet")
	ErrSeekFailed = errors.New("seek failed")
)

// Packet is one demuxed access unit.
type Packet struct {
	Data     []byte
	PTS      time.Duration
	Duration time.Duration
	Key      bool
}

// Demuxer yields packets in presentation order.
type Demuxer interface {
	// ReadPacket returns the next packet, or io.EOF.
	ReadPacket() (Packet, error)
	// Seek positions the stream on the last keyframe at or before t.
	Seek(t time.Duration) error
	Close() error
}

// Muxer receives packets with timestamps rebased to zero.
type Muxer interface {
	WritePacket(p Packet) error
	// Finalize writes trailing metadata for the given total duration.
	Finalize(duration time.Duration) error
	Close() error
}

// Window is a half-open presentation time range [Start, End).
type Window struct {
	Start time.Duration
	End   time.Duration
}

// FrameWindow returns the window covering frames start..end inclusive at fps.
func FrameWindow(start, end int, fps float64) Window {
	return Window{
		Start: seconds(float64(start) / fps),
		End:   seconds(float64(end+1) / fps),
	}
}

// Duration returns the window length.
func (w Window) Duration() time.Duration { return w.End - w.Start }

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Duration) bool { return t >= w.Start && t < w.End }

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start, w.End)
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
