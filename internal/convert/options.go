// Package convert runs one container conversion: it reads a VOLS
// container, selects a frame range, strips normals or resizes textures on
// request, trims the accompanying audio and video, and writes the result.
package convert

import (
	"fmt"

	"github.com/Faultbox/volkit/pkg/texture"
	"github.com/Faultbox/volkit/pkg/vols"
)

// DefaultFPS is used for time windows when neither the header nor the
// options give a frame rate.
const DefaultFPS = 30

// Paths names the files of one container. Either Container, or Header and
// Sequence, must be set. Video is optional.
type Paths struct {
	Container string
	Header    string
	Sequence  string
	Video     string
}

// Split reports whether the container is a header/sequence pair.
func (p Paths) Split() bool { return p.Container == "" }

func (p Paths) validate(role string) error {
	if p.Container != "" {
		if p.Header != "" || p.Sequence != "" {
			return fmt.Errorf("%s: container path and header/sequence paths are exclusive", role)
		}
		return nil
	}
	if p.Header == "" || p.Sequence == "" {
		return fmt.Errorf("%s: need a container path or both header and sequence paths", role)
	}
	return nil
}

// Range is an inclusive 0-based frame range. A negative End means the last
// frame.
type Range struct {
	Start int
	End   int
}

// FullRange selects every frame.
var FullRange = Range{Start: 0, End: -1}

func (r Range) String() string { return fmt.Sprintf("%d..%d", r.Start, r.End) }

// Len returns the number of frames in a clamped range.
func (r Range) Len() int { return r.End - r.Start + 1 }

// ClampRange fits r to a container of count frames. End past the last
// frame, or negative, becomes count-1; a Start beyond End is pulled down
// to End.
func ClampRange(r Range, count int) (Range, error) {
	if count <= 0 {
		return Range{}, fmt.Errorf("%w: container has no frames", vols.ErrFrameIndexOutOfRange)
	}
	if r.End < 0 || r.End >= count {
		r.End = count - 1
	}
	if r.Start < 0 {
		r.Start = 0
	}
	if r.Start > r.End {
		r.Start = r.End
	}
	return r, nil
}

// Options describe one conversion.
type Options struct {
	Input  Paths
	Output Paths

	StripNormals bool
	// TextureSize is the requested texture size; zero keeps it.
	TextureSize texture.Size
	Frames      Range
	// FPS overrides the header frame rate for audio and video trimming.
	FPS float64

	// DiskHeadroom is the free space, in bytes, required on top of the
	// input size.
	DiskHeadroom int64
	// KeepPartial leaves the temporary output in place on failure.
	KeepPartial bool
}

func (o *Options) validate() error {
	if err := o.Input.validate("input"); err != nil {
		return err
	}
	if err := o.Output.validate("output"); err != nil {
		return err
	}
	if o.Output.Video != "" && o.Input.Video == "" {
		return fmt.Errorf("output video %s given without an input video", o.Output.Video)
	}
	if o.FPS < 0 {
		return fmt.Errorf("fps must not be negative, got %g", o.FPS)
	}
	return nil
}
