package vols

import (
	"errors"
	"fmt"
	"io"
	"math"
)

// Dialect identifies how the format tag is stored.
type Dialect uint8

const (
	// DialectMagic stores the tag as the raw 4 bytes "VOLS".
	DialectMagic Dialect = iota
	// DialectPrefixed stores the tag as a one-byte length followed by the string.
	DialectPrefixed
)

func (d Dialect) String() string {
	switch d {
	case DialectMagic:
		return "magic"
	case DialectPrefixed:
		return "prefixed"
	default:
		return fmt.Sprintf("Dialect(%d)", uint8(d))
	}
}

// TextureCompression selects the Basis Universal codec of embedded textures.
type TextureCompression uint8

const (
	CompressionNone  TextureCompression = 0
	CompressionETC1S TextureCompression = 1
	CompressionUASTC TextureCompression = 2
)

// TextureContainer is the container of embedded per-frame textures.
type TextureContainer uint8

const (
	ContainerRaw   TextureContainer = 0
	ContainerBasis TextureContainer = 1
	ContainerKTX2  TextureContainer = 2
)

func (c TextureContainer) String() string {
	switch c {
	case ContainerRaw:
		return "raw"
	case ContainerBasis:
		return "basis"
	case ContainerKTX2:
		return "ktx2"
	default:
		return fmt.Sprintf("container(%d)", uint8(c))
	}
}

// maxHeaderSize bounds the bytes read before decoding a header: a 255-byte
// tag, three 255-byte names and the largest fixed field set.
const maxHeaderSize = 2048

// Header is the version-normalized container header. Fields that do not
// exist at Version are zero.
type Header struct {
	Dialect     Dialect
	Version     uint32
	Compression uint32

	MeshName string
	Material string
	Shader   string
	Topology uint32

	FrameCount uint32
	Normals    bool
	Textured   bool

	TextureCompression TextureCompression
	TextureContainer   TextureContainer
	TextureWidth       uint32
	TextureHeight      uint32
	TextureFormat      uint16

	Translation [3]float32
	Rotation    [4]float32
	Scale       float32

	FPS            float32
	Audio          bool
	AudioStart     uint32
	FrameBodyStart uint32
}

// Layout returns the field layout of the header's version.
func (h *Header) Layout() (Layout, error) {
	return LayoutFor(h.Version)
}

// HasNormals reports whether frame bodies carry a normals field.
func (h *Header) HasNormals() bool {
	return h.Version >= 11 && h.Normals
}

// HasTextures reports whether frame bodies may carry a texture field.
func (h *Header) HasTextures() bool {
	return h.Version >= 11 && h.Textured
}

// HasAudio reports whether an audio blob follows the header.
func (h *Header) HasAudio() bool {
	return h.Version >= 13 && h.Audio
}

// ParseHeader decodes a header from the start of data and returns it with
// its encoded length.
func ParseHeader(data []byte) (*Header, int, error) {
	c := NewCursor(data)
	h := &Header{}
	if err := h.decode(c); err != nil {
		if errors.Is(err, ErrUnsupportedVersion) || errors.Is(err, ErrMalformedHeader) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	return h, c.Offset(), nil
}

// ReadHeader decodes the header at offset 0 of r.
func ReadHeader(r io.ReaderAt, size int64) (*Header, int, error) {
	n := int64(maxHeaderSize)
	if size < n {
		n = size
	}
	buf := make([]byte, n)
	if _, err := r.ReadAt(buf, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, 0, fmt.Errorf("%w: reading header: %w", ErrIO, err)
	}
	return ParseHeader(buf)
}

func (h *Header) decode(c *Cursor) error {
	if err := h.decodeTag(c); err != nil {
		return err
	}

	var err error
	if h.Version, err = c.Uint32(); err != nil {
		return err
	}
	l, err := LayoutFor(h.Version)
	if err != nil {
		return err
	}
	if h.Compression, err = c.Uint32(); err != nil {
		return err
	}

	if l.Names {
		if h.MeshName, err = c.String8(); err != nil {
			return err
		}
		if h.Material, err = c.String8(); err != nil {
			return err
		}
		if h.Shader, err = c.String8(); err != nil {
			return err
		}
		if h.Topology, err = c.Uint32(); err != nil {
			return err
		}
	}

	if h.FrameCount, err = c.Uint32(); err != nil {
		return err
	}

	if l.Flags {
		normals, err := c.Uint8()
		if err != nil {
			return err
		}
		textured, err := c.Uint8()
		if err != nil {
			return err
		}
		h.Normals = normals != 0
		h.Textured = textured != 0
	}

	switch {
	case l.Extended:
		if err := h.decodeExtended(c); err != nil {
			return err
		}
	case l.LegacyTexture:
		w, err := c.Uint16()
		if err != nil {
			return err
		}
		hgt, err := c.Uint16()
		if err != nil {
			return err
		}
		if h.TextureFormat, err = c.Uint16(); err != nil {
			return err
		}
		h.TextureWidth, h.TextureHeight = uint32(w), uint32(hgt)
	}

	if l.Transform {
		for i := range h.Translation {
			if h.Translation[i], err = c.Float32(); err != nil {
				return err
			}
		}
		for i := range h.Rotation {
			if h.Rotation[i], err = c.Float32(); err != nil {
				return err
			}
		}
		if h.Scale, err = c.Float32(); err != nil {
			return err
		}
	}
	return nil
}

func (h *Header) decodeTag(c *Cursor) error {
	if c.Remaining() >= len(Magic) && string(c.data[:len(Magic)]) == Magic {
		c.pos += len(Magic)
		h.Dialect = DialectMagic
		return nil
	}
	tag, err := c.String8()
	if err != nil {
		return err
	}
	if tag != Magic {
		return fmt.Errorf("%w: unknown format tag %q", ErrMalformedHeader, tag)
	}
	h.Dialect = DialectPrefixed
	return nil
}

func (h *Header) decodeExtended(c *Cursor) error {
	compression, err := c.Uint8()
	if err != nil {
		return err
	}
	container, err := c.Uint8()
	if err != nil {
		return err
	}
	h.TextureCompression = TextureCompression(compression)
	h.TextureContainer = TextureContainer(container)
	if h.TextureWidth, err = c.Uint32(); err != nil {
		return err
	}
	if h.TextureHeight, err = c.Uint32(); err != nil {
		return err
	}
	if h.FPS, err = c.Float32(); err != nil {
		return err
	}
	audio, err := c.Uint32()
	if err != nil {
		return err
	}
	h.Audio = audio != 0
	if h.AudioStart, err = c.Uint32(); err != nil {
		return err
	}
	h.FrameBodyStart, err = c.Uint32()
	return err
}

// MarshalBinary encodes the header with the same dialect and version it
// was decoded with.
func (h *Header) MarshalBinary() ([]byte, error) {
	l, err := LayoutFor(h.Version)
	if err != nil {
		return nil, err
	}

	e := &encoder{buf: make([]byte, 0, 64)}
	switch h.Dialect {
	case DialectMagic:
		e.raw([]byte(Magic))
	case DialectPrefixed:
		_ = e.string8(Magic)
	default:
		return nil, fmt.Errorf("unknown header dialect %s", h.Dialect)
	}
	e.u32(h.Version)
	e.u32(h.Compression)

	if l.Names {
		for _, s := range []string{h.MeshName, h.Material, h.Shader} {
			if err := e.string8(s); err != nil {
				return nil, err
			}
		}
		e.u32(h.Topology)
	}

	e.u32(h.FrameCount)

	if l.Flags {
		e.u8(boolByte(h.Normals))
		e.u8(boolByte(h.Textured))
	}

	switch {
	case l.Extended:
		e.u8(uint8(h.TextureCompression))
		e.u8(uint8(h.TextureContainer))
		e.u32(h.TextureWidth)
		e.u32(h.TextureHeight)
		e.f32(h.FPS)
		e.u32(uint32(boolByte(h.Audio)))
		e.u32(h.AudioStart)
		e.u32(h.FrameBodyStart)
	case l.LegacyTexture:
		if h.TextureWidth > math.MaxUint16 || h.TextureHeight > math.MaxUint16 {
			return nil, fmt.Errorf("texture %dx%d does not fit a version %d header",
				h.TextureWidth, h.TextureHeight, h.Version)
		}
		e.u16(uint16(h.TextureWidth))
		e.u16(uint16(h.TextureHeight))
		e.u16(h.TextureFormat)
	}

	if l.Transform {
		for _, v := range h.Translation {
			e.f32(v)
		}
		for _, v := range h.Rotation {
			e.f32(v)
		}
		e.f32(h.Scale)
	}
	return e.buf, nil
}

// Size returns the encoded length of the header.
func (h *Header) Size() (int, error) {
	b, err := h.MarshalBinary()
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// Clone returns a copy of the header.
func (h *Header) Clone() *Header {
	c := *h
	return &c
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
