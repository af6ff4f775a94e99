package media

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"
)

type mp3Frame struct {
	off, size int
	pts, dur  time.Duration
}

// MP3Demuxer splits an in-memory MP3 stream into frame packets. Leading
// ID3v2 tags, Xing/Info frames and trailing ID3v1 tags are skipped.
type MP3Demuxer struct {
	data   []byte
	frames []mp3Frame
	next   int

	sampleRate int
}

// NewMP3Demuxer indexes every frame of data.
func NewMP3Demuxer(data []byte) (*MP3Demuxer, error) {
	d := &MP3Demuxer{data: data}
	pos := id3v2Len(data)
	var pts time.Duration
	for pos+4 <= len(data) {
		if data[pos] != 0xFF || data[pos+1]&0xE0 != 0xE0 {
			if pos+3 <= len(data) && string(data[pos:pos+3]) == "TAG" {
				break
			}
			pos++
			continue
		}
		h, err := parseFrameHeader(data[pos:])
		if err != nil || pos+h.size() > len(data) {
			pos++
			continue
		}
		frame := data[pos : pos+h.size()]
		if len(d.frames) == 0 && isInfoFrame(h, frame) {
			pos += h.size()
			continue
		}
		if d.sampleRate == 0 {
			d.sampleRate = h.sampleRate
		}
		d.frames = append(d.frames, mp3Frame{off: pos, size: h.size(), pts: pts, dur: h.duration()})
		pts += h.duration()
		pos += h.size()
	}
	if len(d.frames) == 0 {
		return nil, ErrNoFrames
	}
	return d, nil
}

// Frames returns the number of audio frames.
func (d *MP3Demuxer) Frames() int { return len(d.frames) }

// SampleRate returns the sample rate of the first frame.
func (d *MP3Demuxer) SampleRate() int { return d.sampleRate }

// Duration returns the total stream duration.
func (d *MP3Demuxer) Duration() time.Duration {
	last := d.frames[len(d.frames)-1]
	return last.pts + last.dur
}

// ReadPacket returns the next frame.
func (d *MP3Demuxer) ReadPacket() (Packet, error) {
	if d.next >= len(d.frames) {
		return Packet{}, io.EOF
	}
	f := d.frames[d.next]
	d.next++
	return Packet{
		Data:     d.data[f.off : f.off+f.size],
		PTS:      f.pts,
		Duration: f.dur,
		Key:      true,
	}, nil
}

// Seek positions on the last frame starting at or before t. Every MP3
// frame is treated as a sync point.
func (d *MP3Demuxer) Seek(t time.Duration) error {
	if t < 0 {
		return fmt.Errorf("%w: negative position %s", ErrSeekFailed, t)
	}
	i := sort.Search(len(d.frames), func(i int) bool { return d.frames[i].pts > t })
	if i > 0 {
		i--
	}
	d.next = i
	return nil
}

// Close releases nothing; the stream is held in memory.
func (d *MP3Demuxer) Close() error { return nil }

// MP3Muxer collects MP3 frame packets in memory. Finalize prefixes the
// stream with an ID3v2.3 tag whose TLEN frame holds the trimmed duration.
type MP3Muxer struct {
	frames []byte
	out    []byte
}

// NewMP3Muxer returns an empty muxer.
func NewMP3Muxer() *MP3Muxer { return &MP3Muxer{} }

// WritePacket appends a packet holding exactly one MP3 frame.
func (m *MP3Muxer) WritePacket(p Packet) error {
	h, err := parseFrameHeader(p.Data)
	if err != nil {
		return err
	}
	if h.size() != len(p.Data) {
		return fmt.Errorf("%w: frame of %d bytes in %d byte packet", ErrBadPacket, h.size(), len(p.Data))
	}
	m.frames = append(m.frames, p.Data...)
	return nil
}

// Finalize assembles the output stream.
func (m *MP3Muxer) Finalize(duration time.Duration) error {
	m.out = append(tlenTag(duration), m.frames...)
	return nil
}

// Bytes returns the finalized stream.
func (m *MP3Muxer) Bytes() []byte { return m.out }

// Close is a no-op.
func (m *MP3Muxer) Close() error { return nil }

// tlenTag builds an ID3v2.3 tag with a single TLEN (length in ms) frame.
func tlenTag(d time.Duration) []byte {
	text := append([]byte{0}, strconv.FormatInt(d.Milliseconds(), 10)...)

	frame := []byte("TLEN")
	frame = binary.BigEndian.AppendUint32(frame, uint32(len(text)))
	frame = append(frame, 0, 0)
	frame = append(frame, text...)

	size := len(frame)
	tag := []byte{'I', 'D', '3', 3, 0, 0,
		byte(size >> 21 & 0x7F), byte(size >> 14 & 0x7F), byte(size >> 7 & 0x7F), byte(size & 0x7F)}
	return append(tag, frame...)
}

// TrimMP3 returns the frames of an MP3 stream inside w, rebased to zero.
func TrimMP3(data []byte, w Window, log *zap.Logger) ([]byte, Stats, error) {
	in, err := NewMP3Demuxer(data)
	if err != nil {
		return nil, Stats{}, err
	}
	out := NewMP3Muxer()
	stats, err := NewTrimmer(in, out, log).Trim(w)
	if err != nil {
		return nil, stats, err
	}
	return out.Bytes(), stats, nil
}
