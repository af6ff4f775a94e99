package texture

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Options configure an Adapter for one container.
type Options struct {
	// Current is the texture size declared by the source header.
	Current Size
	// Target is the requested size; zero means no resize.
	Target Size
	// Resizable reports whether the source texture family can be decoded
	// and re-encoded by the codec.
	Resizable bool
	// Variant is the codec of the source family, kept on re-encode.
	Variant Variant
}

// Adapter copies or transcodes per-frame textures.
type Adapter struct {
	codec    Codec
	opts     Options
	resizing bool
	log      *zap.Logger

	transcoded int
}

// NewAdapter decides once whether textures will be resized. A resize that
// the source family cannot support is logged and disabled; textures then
// pass through unchanged.
func NewAdapter(codec Codec, opts Options, log *zap.Logger) (*Adapter, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Adapter{codec: codec, opts: opts, log: log}

	if opts.Target.IsZero() || opts.Target == opts.Current {
		return a, nil
	}
	if !opts.Resizable {
		log.Warn("texture resize not supported for this texture format, passing textures through",
			zap.Stringer("current", opts.Current),
			zap.Stringer("requested", opts.Target))
		return a, nil
	}
	if codec == nil {
		return nil, fmt.Errorf("%w: resize to %s requested without a codec", ErrTranscode, opts.Target)
	}
	a.resizing = true
	log.Info("resizing textures",
		zap.Stringer("from", opts.Current),
		zap.Stringer("to", opts.Target),
		zap.Stringer("variant", opts.Variant))
	return a, nil
}

// Resizing reports whether Process transcodes textures.
func (a *Adapter) Resizing() bool { return a.resizing }

// OutputSize returns the texture size of processed frames.
func (a *Adapter) OutputSize() Size {
	if a.resizing {
		return a.opts.Target
	}
	return a.opts.Current
}

// Transcoded returns how many textures were re-encoded.
func (a *Adapter) Transcoded() int { return a.transcoded }

// Process returns the texture for an output frame: an exact copy of data,
// or data decoded and re-encoded at the target size in the same family.
func (a *Adapter) Process(ctx context.Context, frame int, data []byte) ([]byte, error) {
	if !a.resizing || len(data) == 0 {
		return bytes.Clone(data), nil
	}

	img, err := a.codec.Decode(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: frame %d: decoding: %w", ErrTranscode, frame, err)
	}
	b := img.Bounds()
	if b.Dx() != a.opts.Current.Width || b.Dy() != a.opts.Current.Height {
		a.log.Debug("decoded texture size differs from header",
			zap.Int("frame", frame),
			zap.Int("width", b.Dx()),
			zap.Int("height", b.Dy()))
	}

	out, err := a.codec.Encode(ctx, img, a.opts.Target.Width, a.opts.Target.Height, a.opts.Variant)
	if err != nil {
		return nil, fmt.Errorf("%w: frame %d: encoding: %w", ErrTranscode, frame, err)
	}
	a.transcoded++
	return out, nil
}
