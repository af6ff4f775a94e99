package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Faultbox/volkit/pkg/vols"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCmd runs volkit with a test config and returns its output and
// exit code.
func executeCmd(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("logging:\n  no_color: true\noutput:\n  disk_headroom_mb: 0\n"), 0o644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"--config", cfg}, args...), &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

// testContainer writes a v13 container of frames frames with a keyframe
// every 10.
func testContainer(t *testing.T, frames int) string {
	t.Helper()
	hdr := &vols.Header{
		Dialect:            vols.DialectMagic,
		Version:            13,
		FrameCount:         uint32(frames),
		Normals:            true,
		Textured:           true,
		TextureCompression: vols.CompressionUASTC,
		TextureContainer:   vols.ContainerBasis,
		TextureWidth:       256,
		TextureHeight:      256,
		FPS:                30,
	}
	var buf bytes.Buffer
	w, err := vols.NewWriter(&buf, hdr)
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader(nil))
	for i := 0; i < frames; i++ {
		kf := vols.Delta
		f := vols.Fields{
			Vertices: make([]byte, 36),
			Normals:  make([]byte, 36),
			Texture:  []byte{byte(i), 1, 2, 3},
		}
		f.Vertices[0] = byte(i)
		if i%10 == 0 {
			kf = vols.Key
			f.Indices = []byte{0, 0, 1, 0, 2, 0}
			f.UVs = make([]byte, 24)
		}
		require.NoError(t, w.WriteFrame(vols.NewFrameBody(uint32(i), kf, f), f.Texture))
	}
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "in.vols")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestInfo(t *testing.T) {
	in := testContainer(t, 35)

	stdout, stderr, code := executeCmd(t, "info", in)
	require.Equal(t, 0, code, stderr)
	for _, want := range []string{
		"magic dialect, version 13",
		"Frames:",
		"35",
		"256x256 basis",
		"Keyframes:",
		"4 [0 10 20 30]",
		"Frame 0:",
		"3 vertices, 1 triangles",
	} {
		assert.Contains(t, stdout, want)
	}
}

func TestInfo_NeedsInput(t *testing.T) {
	_, stderr, code := executeCmd(t, "info")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "give a container path")
}

func TestVerify(t *testing.T) {
	in := testContainer(t, 20)

	stdout, stderr, code := executeCmd(t, "verify", in)
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "container ok")
	require.Contains(t, stdout, `"frames": 20`)
}

func TestVerify_Corrupt(t *testing.T) {
	in := testContainer(t, 20)
	data, err := os.ReadFile(in)
	require.NoError(t, err)
	// Break the trailing size word of the last frame.
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(in, data, 0o644))

	_, stderr, code := executeCmd(t, "verify", in)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "ERROR")
	require.Contains(t, stderr, `"class": "CorruptFrameBody"`)
}

func TestConvert(t *testing.T) {
	in := testContainer(t, 40)
	out := filepath.Join(t.TempDir(), "out.vols")

	stdout, stderr, code := executeCmd(t, "convert", "-i", in, "-o", out, "--first", "15", "--last", "25", "--no-normals")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "done")
	require.Contains(t, stdout, `"frames": 11`)
	require.Contains(t, stdout, `"status": "ok"`)

	c, err := vols.Open(out)
	require.NoError(t, err)
	defer c.Close()
	require.Equal(t, 11, c.FrameCount())
	require.False(t, c.Header.Normals)

	first, err := c.ReadFrame(0)
	require.NoError(t, err)
	require.Equal(t, vols.Key, first.Keyframe)
	require.Equal(t, byte(15), first.VertexData()[0])
	require.True(t, first.HasTopology())
}

func TestConvert_BadTextureSize(t *testing.T) {
	in := testContainer(t, 5)
	out := filepath.Join(t.TempDir(), "out.vols")

	for _, size := range []string{"512", "0x512", "9000x9000", "axb"} {
		_, stderr, code := executeCmd(t, "convert", "-i", in, "-o", out, "-t", size)
		require.Equal(t, 1, code, size)
		require.Contains(t, stderr, "texture size", size)
	}
	_, err := os.Stat(out)
	require.True(t, os.IsNotExist(err))
}

func TestConvert_MissingInput(t *testing.T) {
	dir := t.TempDir()
	_, stderr, code := executeCmd(t, "convert", "-i", filepath.Join(dir, "nope.vols"), "-o", filepath.Join(dir, "out.vols"))
	require.Equal(t, 1, code)
	require.Contains(t, stderr, `"class": "IoError"`)
}

func TestConfigShow(t *testing.T) {
	stdout, stderr, code := executeCmd(t, "config", "--ffmpeg", "/opt/bin/ffmpeg")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "ffmpeg: /opt/bin/ffmpeg")
	require.Contains(t, stdout, "disk_headroom_mb: 0")
}

func TestConfigWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	_, stderr, code := executeCmd(t, "config", "--write", path, "--basisu", "/opt/bin/basisu")
	require.Equal(t, 0, code, stderr)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "basisu: /opt/bin/basisu"))
}

func TestBadConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "--no-color", "config"}, &stdout, &stderr)
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "loading config")
}
