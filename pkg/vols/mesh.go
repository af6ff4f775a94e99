package vols

import (
	"encoding/binary"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Read-only mesh views for exporters. Delta frames return nil indices and
// UVs; callers combine them with the governing keyframe's.

// VertexCount returns the number of vertices.
func (b *FrameBody) VertexCount() int { return len(b.VertexData()) / 12 }

// TriangleCount returns the number of indexed triangles.
func (b *FrameBody) TriangleCount() int { return len(b.IndexData()) / 6 }

// Vertices decodes the vertex buffer.
func (b *FrameBody) Vertices() [][3]float32 { return vec3s(b.VertexData()) }

// Normals decodes the normal buffer.
func (b *FrameBody) Normals() [][3]float32 { return vec3s(b.NormalData()) }

// UVs decodes the UV buffer.
func (b *FrameBody) UVs() [][2]float32 {
	data := b.UVData()
	out := make([][2]float32, len(data)/8)
	for i := range out {
		out[i][0] = f32(data[i*8:])
		out[i][1] = f32(data[i*8+4:])
	}
	return out
}

// Indices decodes the triangle index buffer.
func (b *FrameBody) Indices() []uint16 {
	data := b.IndexData()
	out := make([]uint16, len(data)/2)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(data[i*2:])
	}
	return out
}

// Bounds returns the axis-aligned bounding box of the vertices.
func (b *FrameBody) Bounds() r3.Box {
	verts := b.Vertices()
	if len(verts) == 0 {
		return r3.Box{}
	}
	box := r3.Box{
		Min: r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)},
		Max: r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)},
	}
	for _, v := range verts {
		x, y, z := float64(v[0]), float64(v[1]), float64(v[2])
		box.Min.X, box.Max.X = math.Min(box.Min.X, x), math.Max(box.Max.X, x)
		box.Min.Y, box.Max.Y = math.Min(box.Min.Y, y), math.Max(box.Max.Y, y)
		box.Min.Z, box.Max.Z = math.Min(box.Min.Z, z), math.Max(box.Max.Z, z)
	}
	return box
}

func vec3s(data []byte) [][3]float32 {
	out := make([][3]float32, len(data)/12)
	for i := range out {
		for j := 0; j < 3; j++ {
			out[i][j] = f32(data[i*12+j*4:])
		}
	}
	return out
}

func f32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
