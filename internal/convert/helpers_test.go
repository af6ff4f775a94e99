package convert

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/volkit/pkg/media"
	"github.com/Faultbox/volkit/pkg/texture"
	"github.com/Faultbox/volkit/pkg/vols"
	"github.com/stretchr/testify/require"
)

var triangle = []byte{0, 0, 1, 0, 2, 0}

func v13Header(frames int) *vols.Header {
	return &vols.Header{
		Dialect:            vols.DialectMagic,
		Version:            13,
		FrameCount:         uint32(frames),
		Normals:            true,
		Textured:           true,
		TextureCompression: vols.CompressionUASTC,
		TextureContainer:   vols.ContainerBasis,
		TextureWidth:       1024,
		TextureHeight:      1024,
		FPS:                30,
	}
}

func v12Header(frames int) *vols.Header {
	return &vols.Header{
		Dialect:       vols.DialectPrefixed,
		Version:       12,
		MeshName:      "mesh",
		Material:      "material",
		Shader:        "shader",
		FrameCount:    uint32(frames),
		Normals:       true,
		Textured:      true,
		TextureWidth:  512,
		TextureHeight: 512,
		Scale:         1,
		Rotation:      [4]float32{0, 0, 0, 1},
	}
}

func vec3(n int, base float32) []byte {
	out := make([]byte, 0, n*12)
	for i := 0; i < n*3; i++ {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(base+float32(i)))
	}
	return out
}

func uvs(i int) []byte { return bytes.Repeat([]byte{byte(i)}, 24) }

func tex(i int) []byte { return bytes.Repeat([]byte{0xA0 | byte(i&0x0F)}, 16) }

// body returns frame i of a synthetic sequence. Every frame is textured;
// keyframes carry one triangle and UVs tagged with i.
func body(i int, kf vols.Keyframe, hdr *vols.Header) *vols.FrameBody {
	f := vols.Fields{Vertices: vec3(3, float32(i))}
	if hdr.HasNormals() {
		f.Normals = vec3(3, -float32(i))
	}
	if kf.IsKey() {
		f.Indices = triangle
		f.UVs = uvs(i)
	}
	if hdr.HasTextures() {
		f.Texture = tex(i)
	}
	return vols.NewFrameBody(uint32(i), kf, f)
}

// writeFrames writes hdr.FrameCount frames with a keyframe every keyEvery.
func writeFrames(t *testing.T, w *vols.Writer, hdr *vols.Header, keyEvery int, audio []byte) {
	t.Helper()
	require.NoError(t, w.WriteHeader(audio))
	for i := 0; i < int(hdr.FrameCount); i++ {
		kf := vols.Delta
		if i%keyEvery == 0 {
			kf = vols.Key
		}
		b := body(i, kf, hdr)
		require.NoError(t, w.WriteFrame(b, b.TextureData()))
	}
	require.NoError(t, w.Close())
}

func writeContainer(t *testing.T, path string, hdr *vols.Header, keyEvery int, audio []byte) {
	t.Helper()
	var buf bytes.Buffer
	w, err := vols.NewWriter(&buf, hdr)
	require.NoError(t, err)
	writeFrames(t, w, hdr, keyEvery, audio)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func writeSplit(t *testing.T, headerPath, seqPath string, hdr *vols.Header, keyEvery int) {
	t.Helper()
	var h, s bytes.Buffer
	w, err := vols.NewSplitWriter(&h, &s, hdr)
	require.NoError(t, err)
	writeFrames(t, w, hdr, keyEvery, nil)
	require.NoError(t, os.WriteFile(headerPath, h.Bytes(), 0o644))
	require.NoError(t, os.WriteFile(seqPath, s.Bytes(), 0o644))
}

// mp3Stream returns n 417-byte MPEG-1 Layer III frames at 128 kbit/s,
// 44.1 kHz.
func mp3Stream(n int) []byte {
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		buf.Write([]byte{0xFF, 0xFB, 0x90, 0x00})
		buf.Write(make([]byte, 413))
	}
	return buf.Bytes()
}

func readAll(t *testing.T, c *vols.Container) []*vols.FrameBody {
	t.Helper()
	out := make([]*vols.FrameBody, c.FrameCount())
	for i := range out {
		b, err := c.ReadFrame(i)
		require.NoError(t, err, "frame %d", i)
		out[i] = b
	}
	return out
}

func plentyOfSpace(string) (uint64, error) { return math.MaxUint64, nil }

func newTestConverter(codec texture.Codec, video VideoTrimmer) *Converter {
	c := New(nil, codec, video)
	c.SetDiskFree(plentyOfSpace)
	return c
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

type fakeCodec struct {
	decodeErr error
	decoded   int
	encoded   int
}

func (f *fakeCodec) Decode(_ context.Context, data []byte) (*image.NRGBA, error) {
	if f.decodeErr != nil {
		return nil, f.decodeErr
	}
	f.decoded++
	return image.NewNRGBA(image.Rect(0, 0, 4, 4)), nil
}

func (f *fakeCodec) Encode(_ context.Context, _ image.Image, w, h int, v texture.Variant) ([]byte, error) {
	f.encoded++
	return []byte(fmt.Sprintf("%dx%d %s", w, h, v)), nil
}

type fakeVideo struct {
	in, out string
	window  media.Window
	calls   int
}

func (f *fakeVideo) TrimVideo(_ context.Context, in, out string, w media.Window) error {
	f.calls++
	f.in, f.out, f.window = in, out, w
	return os.WriteFile(out, []byte("trimmed "+filepath.Base(in)), 0o644)
}
