package vols

import "fmt"

// Promote builds a self-contained keyframe body from a delta frame. The
// result carries target's vertices, normals and texture with the indices
// and UVs of key, the governing keyframe. Neither input is modified.
func Promote(target, key *FrameBody, flag Keyframe) (*FrameBody, error) {
	if !flag.IsKey() {
		return nil, fmt.Errorf("promote frame %d: flag %s is not a keyframe flag", target.Number, flag)
	}
	if !key.HasTopology() {
		return nil, fmt.Errorf("%w: frame %d used as keyframe has no indices or UVs",
			ErrCorruptFrameBody, key.Number)
	}

	vertices := target.VertexData()
	normals := target.NormalData()
	indices := key.IndexData()
	uvs := key.UVData()
	texture := target.TextureData()

	size := 4 + len(vertices) + 4 + len(indices) + 4 + len(uvs)
	if target.HasNormals() {
		size += 4 + len(normals)
	}
	if target.HasTexture() {
		size += 4 + len(texture)
	}

	e := &encoder{buf: make([]byte, 0, size)}
	out := &FrameBody{Number: target.Number, Keyframe: flag}
	put := func(b []byte) span {
		e.u32(uint32(len(b)))
		s := span{off: len(e.buf), len: len(b), ok: true}
		e.raw(b)
		return s
	}

	out.vertices = put(vertices)
	if target.HasNormals() {
		out.normals = put(normals)
	}
	out.indices = put(indices)
	out.uvs = put(uvs)
	if target.HasTexture() {
		out.texture = put(texture)
	}
	out.buf = e.buf
	return out, nil
}
