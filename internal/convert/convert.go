package convert

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Faultbox/volkit/pkg/media"
	"github.com/Faultbox/volkit/pkg/texture"
	"github.com/Faultbox/volkit/pkg/vols"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// VideoTrimmer cuts a video file to a time window without re-encoding.
type VideoTrimmer interface {
	TrimVideo(ctx context.Context, in, out string, w media.Window) error
}

// Converter runs conversions with a fixed set of collaborators.
type Converter struct {
	log   *zap.Logger
	codec texture.Codec
	video VideoTrimmer
	free  FreeFunc
}

// New returns a converter. codec is only needed for texture resizing and
// video only for trimming a video file; either may be nil.
func New(log *zap.Logger, codec texture.Codec, video VideoTrimmer) *Converter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Converter{log: log, codec: codec, video: video, free: DiskFree}
}

// SetDiskFree replaces the free space probe.
func (c *Converter) SetDiskFree(f FreeFunc) { c.free = f }

// Result summarizes a finished conversion.
type Result struct {
	// Header is the header as written.
	Header *vols.Header
	// Range is the clamped input range.
	Range  Range
	Frames int
	// Promoted counts delta frames rewritten as keyframes.
	Promoted   int
	Transcoded int
	Audio      media.Stats
	// AudioDropped reports that the source audio could not be trimmed and
	// was left out.
	AudioDropped bool
	Video        bool
}

// Run performs one conversion. Outputs are written under temporary names
// and only renamed into place once everything succeeded.
func (c *Converter) Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	in, err := openInput(opts.Input)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	rng, err := ClampRange(opts.Frames, in.FrameCount())
	if err != nil {
		return nil, err
	}
	if opts.Frames.End >= 0 && rng != opts.Frames {
		c.log.Warn("frame range clamped",
			zap.Stringer("requested", opts.Frames),
			zap.Stringer("range", rng),
			zap.Int("frames", in.FrameCount()))
	}

	if err := c.checkSpace(opts); err != nil {
		return nil, err
	}

	j := &job{
		Converter: c,
		opts:      opts,
		in:        in,
		rng:       rng,
		trimmed:   rng.Start > 0 || rng.End < in.FrameCount()-1,
		res:       &Result{Range: rng},
	}
	if err := j.run(ctx); err != nil {
		return nil, err
	}
	return j.res, nil
}

func openInput(p Paths) (*vols.Container, error) {
	if p.Split() {
		return vols.OpenSplit(p.Header, p.Sequence)
	}
	return vols.Open(p.Container)
}

// checkSpace requires the input size plus headroom to be free where the
// container is written.
func (c *Converter) checkSpace(opts Options) error {
	var need int64
	for _, p := range []string{opts.Input.Container, opts.Input.Header, opts.Input.Sequence} {
		if p != "" {
			need += fileSize(p)
		}
	}
	if opts.Output.Video != "" {
		need += fileSize(opts.Input.Video)
	}
	need += opts.DiskHeadroom

	out := opts.Output.Container
	if out == "" {
		out = opts.Output.Header
	}
	return checkDiskSpace(c.free, filepath.Dir(out), uint64(need))
}

// job is the state of one conversion.
type job struct {
	*Converter
	opts    Options
	in      *vols.Container
	rng     Range
	trimmed bool
	res     *Result

	cache   keyframeCache
	adapter *texture.Adapter
	outs    outputs
}

func (j *job) run(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			j.outs.abort()
		}
	}()

	src := j.in.Header
	j.adapter, err = j.textureAdapter(src)
	if err != nil {
		return err
	}

	hdr := src.Clone()
	hdr.FrameCount = uint32(j.rng.Len())
	if j.opts.StripNormals && hdr.Normals {
		hdr.Normals = false
		j.log.Info("stripping normals")
	}
	if hdr.HasTextures() {
		size := j.adapter.OutputSize()
		hdr.TextureWidth, hdr.TextureHeight = uint32(size.Width), uint32(size.Height)
	}

	audio := j.audio(hdr)

	w, err := j.createWriter(hdr)
	if err != nil {
		return err
	}
	if err := w.WriteHeader(audio); err != nil {
		return err
	}

	j.log.Info("converting frames",
		zap.Stringer("range", j.rng),
		zap.Int("frames", j.rng.Len()),
		zap.Uint32("version", src.Version))
	for i := j.rng.Start; i <= j.rng.End; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := j.frame(ctx, w, i); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	j.res.Header = w.Header()
	j.res.Frames = w.Frames()
	j.res.Transcoded = j.adapter.Transcoded()

	if err := j.trimVideo(ctx); err != nil {
		return err
	}
	if err := j.outs.commit(); err != nil {
		return err
	}
	j.res.Video = j.opts.Output.Video != ""
	return nil
}

// frame writes input frame i. The first frame of the range, and the last
// of a range cut before the end of the input, are promoted to keyframes
// when they are delta frames.
func (j *job) frame(ctx context.Context, w *vols.Writer, i int) error {
	body, err := j.in.ReadFrame(i)
	if err != nil {
		return err
	}
	if body.Keyframe.IsKey() {
		j.cache.store(i, body)
	}

	flag := vols.Delta
	switch {
	case i == j.rng.Start && j.rng.Start == j.rng.End:
		flag = vols.EndKey
	case i == j.rng.Start:
		flag = vols.Key
	case i == j.rng.End && j.rng.End < j.in.FrameCount()-1:
		flag = vols.EndKey
	}

	switch {
	case flag == vols.Delta:
	case !body.Keyframe.IsKey():
		key, err := j.cache.governing(j.in, i)
		if err != nil {
			return err
		}
		if body, err = vols.Promote(body, key, flag); err != nil {
			return err
		}
		j.res.Promoted++
		j.log.Debug("promoted delta frame",
			zap.Int("frame", i),
			zap.Int("keyframe", j.cache.index),
			zap.Stringer("flag", flag))
	case flag == vols.EndKey && i == j.rng.Start:
		single := *body
		single.Keyframe = vols.EndKey
		body = &single
	}

	tex, err := j.adapter.Process(ctx, i-j.rng.Start, body.TextureData())
	if err != nil {
		return err
	}
	return w.WriteFrame(body, tex)
}

func (j *job) textureAdapter(src *vols.Header) (*texture.Adapter, error) {
	target := j.opts.TextureSize
	if !target.IsZero() && !src.HasTextures() {
		j.log.Warn("texture resize requested for a container without textures",
			zap.Stringer("requested", target))
		target = texture.Size{}
	}
	variant := texture.ETC1S
	if src.TextureCompression == vols.CompressionUASTC {
		variant = texture.UASTC
	}
	return texture.NewAdapter(j.codec, texture.Options{
		Current:   texture.Size{Width: int(src.TextureWidth), Height: int(src.TextureHeight)},
		Target:    target,
		Resizable: src.Version >= 13 && src.TextureContainer == vols.ContainerBasis,
		Variant:   variant,
	}, j.log)
}

// audio returns the audio blob to write. A range cut from the input trims
// the blob; audio that cannot be trimmed is dropped from hdr with a
// warning.
func (j *job) audio(hdr *vols.Header) []byte {
	if !j.in.Header.HasAudio() {
		return nil
	}
	src := j.in.Audio()
	if !j.trimmed {
		return src
	}

	win := media.FrameWindow(j.rng.Start, j.rng.End, j.fps())
	out, stats, err := media.TrimMP3(src, win, j.log)
	if err != nil {
		j.log.Warn("audio could not be trimmed, leaving it out", zap.Error(err))
		hdr.Audio = false
		j.res.AudioDropped = true
		return nil
	}
	j.res.Audio = stats
	j.log.Info("trimmed audio",
		zap.Stringer("window", win),
		zap.Int("packets", stats.Copied),
		zap.Int("bytes", len(out)))
	return out
}

// fps returns the rate used to turn frames into time: the override, the
// header rate, then DefaultFPS.
func (j *job) fps() float64 {
	if j.opts.FPS > 0 {
		return j.opts.FPS
	}
	if fps := float64(j.in.Header.FPS); fps > 0 {
		return fps
	}
	j.log.Warn("no frame rate in header, assuming default", zap.Int("fps", DefaultFPS))
	j.opts.FPS = DefaultFPS
	return DefaultFPS
}

func (j *job) createWriter(hdr *vols.Header) (*vols.Writer, error) {
	keep := j.opts.KeepPartial
	if !j.opts.Output.Split() {
		o, err := createOutput(j.opts.Output.Container, keep, j.log)
		if err != nil {
			return nil, err
		}
		j.outs = append(j.outs, o)
		return vols.NewWriter(o, hdr)
	}

	h, err := createOutput(j.opts.Output.Header, keep, j.log)
	if err != nil {
		return nil, err
	}
	j.outs = append(j.outs, h)
	s, err := createOutput(j.opts.Output.Sequence, keep, j.log)
	if err != nil {
		return nil, err
	}
	j.outs = append(j.outs, s)
	return vols.NewSplitWriter(h, s, hdr)
}

// trimVideo writes the video for the range next to its final path. The
// video is renamed into place ahead of the container files.
func (j *job) trimVideo(ctx context.Context) error {
	in, out := j.opts.Input.Video, j.opts.Output.Video
	if out == "" {
		return nil
	}
	dir, base := filepath.Split(out)
	tmp := filepath.Join(dir, "."+ulid.Make().String()+"."+base)
	j.outs = append(outputs{stagedOutput(tmp, out, j.log)}, j.outs...)

	if !j.trimmed {
		return copyFile(tmp, in, false, j.log)
	}
	if j.video == nil {
		return fmt.Errorf("trimming %s: no video trimmer configured", filepath.Base(in))
	}
	return j.video.TrimVideo(ctx, in, tmp, media.FrameWindow(j.rng.Start, j.rng.End, j.fps()))
}

// keyframeCache holds the most recently read keyframe body. It has a
// single slot that is replaced when the governing keyframe changes.
type keyframeCache struct {
	index int
	body  *vols.FrameBody
}

func (k *keyframeCache) store(i int, body *vols.FrameBody) {
	k.index, k.body = i, body
}

// governing returns the keyframe at or before frame i, reading it on a
// cache miss.
func (k *keyframeCache) governing(in *vols.Container, i int) (*vols.FrameBody, error) {
	kf, err := in.Index().PreviousKeyframe(i)
	if err != nil {
		return nil, err
	}
	if k.body != nil && k.index == kf {
		return k.body, nil
	}
	body, err := in.ReadFrame(kf)
	if err != nil {
		return nil, err
	}
	k.store(kf, body)
	return body, nil
}
