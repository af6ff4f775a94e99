// Package texture resizes the compressed per-frame textures embedded in
// VOLS containers. Decoding and encoding are delegated to a Codec; the
// Adapter decides per container whether a frame's texture is copied or
// transcoded.
package texture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
)

// ErrTranscode is returned when a texture cannot be decoded or re-encoded.
var ErrTranscode = errors.New("texture transcode failed")

// MaxDimension is the largest accepted texture side.
const MaxDimension = 8192

// Variant selects the Basis Universal codec used when encoding.
type Variant uint8

const (
	ETC1S Variant = iota
	UASTC
)

func (v Variant) String() string {
	if v == UASTC {
		return "UASTC"
	}
	return "ETC1S"
}

// Codec decodes and encodes one compressed texture family.
// Implementations are called once per frame and must be reusable.
type Codec interface {
	Decode(ctx context.Context, data []byte) (*image.NRGBA, error)
	Encode(ctx context.Context, img image.Image, width, height int, v Variant) ([]byte, error)
}

// Size is a texture width and height in pixels.
type Size struct {
	Width  int
	Height int
}

// IsZero reports whether no size is set.
func (s Size) IsZero() bool { return s.Width == 0 && s.Height == 0 }

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// ParseSize parses "WxH" with each side in 1..max.
func ParseSize(s string, max int) (Size, error) {
	if max <= 0 || max > MaxDimension {
		max = MaxDimension
	}
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Size{}, fmt.Errorf("texture size %q: expected WIDTHxHEIGHT", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return Size{}, fmt.Errorf("texture size %q: bad width: %w", s, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return Size{}, fmt.Errorf("texture size %q: bad height: %w", s, err)
	}
	if width < 1 || width > max || height < 1 || height > max {
		return Size{}, fmt.Errorf("texture size %q: each side must be between 1 and %d", s, max)
	}
	return Size{Width: width, Height: height}, nil
}
