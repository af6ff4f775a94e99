package media

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

// State is a step of the trimming state machine.
type State int

const (
	Opened State = iota
	SeekingToStart
	CopyingPackets
	Finalizing
	Closed
)

func (s State) String() string {
	switch s {
	case Opened:
		return "opened"
	case SeekingToStart:
		return "seeking"
	case CopyingPackets:
		return "copying"
	case Finalizing:
		return "finalizing"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Stats summarizes a trim.
type Stats struct {
	Copied   int
	Skipped  int
	Dropped  int
	Duration time.Duration
}

// Trimmer copies the packets of a demuxed stream that fall inside a window.
type Trimmer struct {
	in    Demuxer
	out   Muxer
	log   *zap.Logger
	state State
	stats Stats
}

// NewTrimmer returns a trimmer over an opened demuxer and muxer.
func NewTrimmer(in Demuxer, out Muxer, log *zap.Logger) *Trimmer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Trimmer{in: in, out: out, log: log, state: Opened}
}

// State returns the current state.
func (t *Trimmer) State() State { return t.state }

// Trim runs the state machine to completion and closes both ends. Seek
// failures fall back to scanning from the start; packets the muxer rejects
// are dropped with a warning.
func (t *Trimmer) Trim(w Window) (Stats, error) {
	if t.state != Opened {
		return t.stats, fmt.Errorf("trim called in state %s", t.state)
	}
	err := t.run(w)
	if cerr := t.close(); err == nil {
		err = cerr
	}
	return t.stats, err
}

func (t *Trimmer) run(w Window) error {
	t.state = SeekingToStart
	if err := t.in.Seek(w.Start); err != nil {
		t.log.Warn("seek failed, scanning from the beginning",
			zap.Duration("target", w.Start), zap.Error(err))
		if err := t.in.Seek(0); err != nil {
			return fmt.Errorf("%w: rewinding: %w", ErrSeekFailed, err)
		}
	}

	t.state = CopyingPackets
	base := time.Duration(-1)
	var end time.Duration
	for {
		p, err := t.in.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading packet: %w", err)
		}
		if p.PTS < w.Start {
			t.stats.Skipped++
			continue
		}
		if p.PTS >= w.End {
			break
		}
		if base < 0 {
			base = p.PTS
		}
		p.PTS -= base
		if err := t.out.WritePacket(p); err != nil {
			t.log.Warn("dropping packet", zap.Duration("pts", p.PTS), zap.Error(err))
			t.stats.Dropped++
			continue
		}
		t.stats.Copied++
		end = p.PTS + p.Duration
	}

	t.state = Finalizing
	t.stats.Duration = end
	return t.out.Finalize(end)
}

func (t *Trimmer) close() error {
	t.state = Closed
	return errors.Join(t.in.Close(), t.out.Close())
}
