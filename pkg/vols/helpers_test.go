package vols

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

// testHeader returns a header with every optional channel enabled.
func testHeader(version uint32, frames uint32) *Header {
	h := &Header{
		Dialect:    DialectMagic,
		Version:    version,
		FrameCount: frames,
	}
	if version < 13 {
		h.MeshName, h.Material, h.Shader = "mesh", "material", "shader"
	}
	if version >= 11 {
		h.Normals = true
		h.Textured = true
		h.TextureWidth, h.TextureHeight = 1024, 1024
	}
	if version == 12 {
		h.Scale = 1
		h.Rotation = [4]float32{0, 0, 0, 1}
	}
	if version >= 13 {
		h.TextureCompression = CompressionUASTC
		h.TextureContainer = ContainerBasis
		h.FPS = 30
	}
	return h
}

// vec3Bytes encodes n vertices whose coordinates start at base.
func vec3Bytes(n int, base float32) []byte {
	out := make([]byte, 0, n*12)
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(base+float32(i*3+j)))
		}
	}
	return out
}

// testBody returns a 3-vertex body for frame i. Keyframes carry one
// triangle; the texture is 16 bytes tagged with i.
func testBody(i int, kf Keyframe, hdr *Header) *FrameBody {
	f := Fields{Vertices: vec3Bytes(3, float32(i))}
	if hdr.HasNormals() {
		f.Normals = vec3Bytes(3, -float32(i))
	}
	if kf.IsKey() {
		f.Indices = []byte{0, 0, 1, 0, 2, 0}
		f.UVs = bytes.Repeat([]byte{byte(i)}, 24)
	}
	if hdr.HasTextures() {
		f.Texture = bytes.Repeat([]byte{0xA0 | byte(i&0x0F)}, 16)
	}
	return NewFrameBody(uint32(i), kf, f)
}

// buildContainer writes frames frames with a keyframe every keyEvery
// frames and returns the single-file container bytes.
func buildContainer(t *testing.T, hdr *Header, keyEvery int, audio []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, hdr)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.WriteHeader(audio); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	for i := 0; i < int(hdr.FrameCount); i++ {
		kf := Delta
		if i%keyEvery == 0 {
			kf = Key
		}
		body := testBody(i, kf, hdr)
		if err := w.WriteFrame(body, body.TextureData()); err != nil {
			t.Fatalf("WriteFrame(%d): %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func openBytes(t *testing.T, data []byte) *Container {
	t.Helper()
	c, err := New(bytes.NewReader(data), int64(len(data)), nil, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}
