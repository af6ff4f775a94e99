package vols

import (
	"encoding/binary"
	"fmt"
)

// Keyframe is the tri-state keyframe flag of a frame header.
type Keyframe uint8

const (
	// Delta frames carry vertices and normals only.
	Delta Keyframe = 0
	// Key frames are self-contained and carry indices and UVs.
	Key Keyframe = 1
	// EndKey marks the synthesized last keyframe of a trimmed range.
	EndKey Keyframe = 2
)

// IsKey reports whether the frame carries its own indices and UVs.
func (k Keyframe) IsKey() bool { return k != Delta }

func (k Keyframe) String() string {
	switch k {
	case Delta:
		return "delta"
	case Key:
		return "key"
	case EndKey:
		return "end-key"
	default:
		return fmt.Sprintf("keyframe(%d)", uint8(k))
	}
}

// FrameHeaderSize is the encoded size of a FrameHeader.
const FrameHeaderSize = 9

// FrameHeader precedes every frame body.
type FrameHeader struct {
	Number       uint32
	MeshDataSize uint32
	Keyframe     Keyframe
}

func parseFrameHeader(b []byte) FrameHeader {
	return FrameHeader{
		Number:       binary.LittleEndian.Uint32(b[0:4]),
		MeshDataSize: binary.LittleEndian.Uint32(b[4:8]),
		Keyframe:     Keyframe(b[8]),
	}
}

func (fh FrameHeader) append(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, fh.Number)
	buf = binary.LittleEndian.AppendUint32(buf, fh.MeshDataSize)
	return append(buf, uint8(fh.Keyframe))
}

// FrameBody is a decoded frame payload. It owns its backing buffer and
// exposes each field as a bounds-checked view into it.
type FrameBody struct {
	Number   uint32
	Keyframe Keyframe

	buf      []byte
	vertices span
	normals  span
	indices  span
	uvs      span
	texture  span
}

func (b *FrameBody) field(s span) []byte {
	if !s.ok || s.off < 0 || s.len < 0 || s.off+s.len > len(b.buf) {
		return nil
	}
	return b.buf[s.off : s.off+s.len : s.off+s.len]
}

// VertexData returns the raw vertex buffer (float32 triples).
func (b *FrameBody) VertexData() []byte { return b.field(b.vertices) }

// NormalData returns the raw normal buffer, or nil when absent.
func (b *FrameBody) NormalData() []byte { return b.field(b.normals) }

// IndexData returns the raw index buffer (uint16 triples), or nil for delta frames.
func (b *FrameBody) IndexData() []byte { return b.field(b.indices) }

// UVData returns the raw UV buffer (float32 pairs), or nil for delta frames.
func (b *FrameBody) UVData() []byte { return b.field(b.uvs) }

// TextureData returns the embedded texture blob, or nil when absent.
func (b *FrameBody) TextureData() []byte { return b.field(b.texture) }

// HasNormals reports whether the body carries a normals field.
func (b *FrameBody) HasNormals() bool { return b.normals.ok }

// HasTopology reports whether the body carries indices and UVs.
func (b *FrameBody) HasTopology() bool { return b.indices.ok && b.uvs.ok }

// HasTexture reports whether the body carries a texture field.
func (b *FrameBody) HasTexture() bool { return b.texture.ok }

// decodeBody decodes a frame body occupying all of buf.
func decodeBody(buf []byte, fh FrameHeader, hdr *Header) (*FrameBody, error) {
	l, err := hdr.Layout()
	if err != nil {
		return nil, err
	}

	body := &FrameBody{Number: fh.Number, Keyframe: fh.Keyframe, buf: buf}
	c := NewCursor(buf)
	var payload, fields int
	read := func(name string) (span, error) {
		s, err := c.Sized()
		if err != nil {
			return span{}, fmt.Errorf("%w: frame %d %s: %v", ErrCorruptFrameBody, fh.Number, name, err)
		}
		payload += s.len
		fields++
		return s, nil
	}

	if body.vertices, err = read("vertices"); err != nil {
		return nil, err
	}
	if hdr.HasNormals() {
		if body.normals, err = read("normals"); err != nil {
			return nil, err
		}
	}
	if fh.Keyframe.IsKey() {
		if body.indices, err = read("indices"); err != nil {
			return nil, err
		}
		if body.uvs, err = read("uvs"); err != nil {
			return nil, err
		}
	}
	if hdr.HasTextures() && c.Remaining() > 0 {
		if body.texture, err = read("texture"); err != nil {
			return nil, err
		}
	}

	if c.Remaining() != 0 {
		return nil, fmt.Errorf("%w: frame %d has %d unread body bytes",
			ErrCorruptFrameBody, fh.Number, c.Remaining())
	}
	if want := l.meshDataSize(payload, fields); want != fh.MeshDataSize {
		return nil, fmt.Errorf("%w: frame %d declares %d body bytes, fields account for %d",
			ErrCorruptFrameBody, fh.Number, fh.MeshDataSize, want)
	}
	return body, nil
}

func (l Layout) meshDataSize(payload, fields int) uint32 {
	if l.CountedSizeWords {
		return uint32(payload + 4*fields)
	}
	return uint32(payload)
}

// Fields holds raw field payloads for NewFrameBody. A nil field is absent.
type Fields struct {
	Vertices []byte
	Normals  []byte
	Indices  []byte
	UVs      []byte
	Texture  []byte
}

// NewFrameBody assembles a body from raw field payloads, laid out with size
// prefixes the way they appear on disk.
func NewFrameBody(number uint32, kf Keyframe, f Fields) *FrameBody {
	e := &encoder{}
	body := &FrameBody{Number: number, Keyframe: kf}
	put := func(b []byte) span {
		e.u32(uint32(len(b)))
		s := span{off: len(e.buf), len: len(b), ok: true}
		e.raw(b)
		return s
	}
	body.vertices = put(f.Vertices)
	if f.Normals != nil {
		body.normals = put(f.Normals)
	}
	if f.Indices != nil || f.UVs != nil {
		body.indices = put(f.Indices)
		body.uvs = put(f.UVs)
	}
	if f.Texture != nil {
		body.texture = put(f.Texture)
	}
	body.buf = e.buf
	return body
}
