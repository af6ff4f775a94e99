package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Faultbox/volkit/pkg/media"
	"github.com/Faultbox/volkit/pkg/texture"
	"github.com/Faultbox/volkit/pkg/vols"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestClampRange(t *testing.T) {
	tests := []struct {
		in   Range
		want Range
	}{
		{FullRange, Range{0, 99}},
		{Range{15, 25}, Range{15, 25}},
		{Range{15, 100}, Range{15, 99}},
		{Range{15, 500}, Range{15, 99}},
		{Range{-3, 10}, Range{0, 10}},
		{Range{120, 500}, Range{99, 99}},
		{Range{30, 20}, Range{20, 20}},
		{Range{0, 0}, Range{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			got, err := ClampRange(tt.in, 100)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.GreaterOrEqual(t, got.Len(), 1)
		})
	}

	_, err := ClampRange(FullRange, 0)
	require.ErrorIs(t, err, vols.ErrFrameIndexOutOfRange)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: bad tag", vols.ErrMalformedHeader), "MalformedHeader"},
		{fmt.Errorf("%w: 9", vols.ErrUnsupportedVersion), "UnsupportedVersion"},
		{vols.ErrFrameIndexOutOfRange, "FrameIndexOutOfRange"},
		{fmt.Errorf("x: %w", vols.ErrCorruptFrameBody), "CorruptFrameBody"},
		{fmt.Errorf("%w: frame 3", texture.ErrTranscode), "TextureTranscodeError"},
		{fmt.Errorf("%w: opening: %w", vols.ErrIO, os.ErrNotExist), "IoError"},
		{ErrInsufficientDiskSpace, "InsufficientDiskSpace"},
		{context.Canceled, "Cancelled"},
		{errors.New("other"), "Error"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Classify(tt.err), tt.err.Error())
	}
}

func TestOptionsValidate(t *testing.T) {
	ok := Paths{Container: "in.vols"}
	tests := []struct {
		name string
		opts Options
	}{
		{"no input", Options{Output: ok}},
		{"half split input", Options{Input: Paths{Header: "h.vols"}, Output: ok}},
		{"mixed output", Options{Input: ok, Output: Paths{Container: "o.vols", Sequence: "s.vols"}}},
		{"video without input", Options{Input: ok, Output: Paths{Container: "o.vols", Video: "o.mp4"}}},
		{"negative fps", Options{Input: ok, Output: ok, FPS: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestConverter(nil, nil).Run(context.Background(), tt.opts)
			require.Error(t, err)
		})
	}
}

// A v13 container of 100 frames with keyframes every 10 frames, cut to
// 15..25 with normals stripped.
func TestRun_TrimRange(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.vols")
	out := filepath.Join(dir, "out.vols")
	hdr := v13Header(100)
	hdr.Audio = true
	writeContainer(t, in, hdr, 10, mp3Stream(128))

	res, err := newTestConverter(nil, nil).Run(context.Background(), Options{
		Input:        Paths{Container: in},
		Output:       Paths{Container: out},
		StripNormals: true,
		Frames:       Range{15, 25},
	})
	require.NoError(t, err)
	require.Equal(t, Range{15, 25}, res.Range)
	require.Equal(t, 11, res.Frames)
	require.Equal(t, 2, res.Promoted)
	require.Equal(t, 14, res.Audio.Copied)
	require.False(t, res.AudioDropped)

	c, err := vols.Open(out)
	require.NoError(t, err)
	defer c.Close()
	require.EqualValues(t, 11, c.Header.FrameCount)
	require.False(t, c.Header.Normals)
	require.True(t, c.Header.HasAudio())
	require.NotEmpty(t, c.Audio())

	frames := readAll(t, c)
	for i, f := range frames {
		require.EqualValues(t, i, f.Number)
		require.False(t, f.HasNormals(), "frame %d", i)
		require.Equal(t, vec3(3, float32(15+i)), f.VertexData(), "frame %d", i)
		require.Equal(t, tex(15+i), f.TextureData(), "frame %d", i)
	}

	first := frames[0]
	require.Equal(t, vols.Key, first.Keyframe)
	require.Equal(t, triangle, first.IndexData())
	require.Equal(t, uvs(10), first.UVData())

	require.Equal(t, vols.Key, frames[5].Keyframe)
	require.Equal(t, uvs(20), frames[5].UVData())
	require.Equal(t, vols.Delta, frames[6].Keyframe)

	last := frames[10]
	require.Equal(t, vols.EndKey, last.Keyframe)
	require.Equal(t, uvs(20), last.UVData())

	demux, err := media.NewMP3Demuxer(c.Audio())
	require.NoError(t, err)
	require.Equal(t, 14, demux.Frames())
}

func TestRun_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		hdr   *vols.Header
		audio []byte
	}{
		{"v12", v12Header(24), nil},
		{"v13 with audio", func() *vols.Header { h := v13Header(24); h.Audio = true; return h }(), mp3Stream(40)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			in := filepath.Join(dir, "in.vols")
			out := filepath.Join(dir, "out.vols")
			writeContainer(t, in, tt.hdr, 8, tt.audio)

			res, err := newTestConverter(nil, nil).Run(context.Background(), Options{
				Input:  Paths{Container: in},
				Output: Paths{Container: out},
				Frames: FullRange,
			})
			require.NoError(t, err)
			require.Zero(t, res.Promoted)

			src, err := os.ReadFile(in)
			require.NoError(t, err)
			dst, err := os.ReadFile(out)
			require.NoError(t, err)
			require.Equal(t, src, dst)
		})
	}
}

func TestRun_SplitInputAndOutput(t *testing.T) {
	dir := t.TempDir()
	hdr := v12Header(30)
	writeSplit(t, filepath.Join(dir, "header.vols"), filepath.Join(dir, "sequence_0.vols"), hdr, 10)

	_, err := newTestConverter(nil, nil).Run(context.Background(), Options{
		Input:  Paths{Header: filepath.Join(dir, "header.vols"), Sequence: filepath.Join(dir, "sequence_0.vols")},
		Output: Paths{Header: filepath.Join(dir, "out_header.vols"), Sequence: filepath.Join(dir, "out_sequence_0.vols")},
		Frames: Range{5, 12},
	})
	require.NoError(t, err)

	c, err := vols.OpenSplit(filepath.Join(dir, "out_header.vols"), filepath.Join(dir, "out_sequence_0.vols"))
	require.NoError(t, err)
	defer c.Close()
	require.True(t, c.Split())
	frames := readAll(t, c)
	require.Len(t, frames, 8)
	require.Equal(t, vols.Key, frames[0].Keyframe)
	require.Equal(t, uvs(0), frames[0].UVData())
	require.Equal(t, vols.Key, frames[5].Keyframe)
	require.Equal(t, vols.EndKey, frames[7].Keyframe)
	require.Equal(t, uvs(10), frames[7].UVData())
}

func TestRun_SingleFrame(t *testing.T) {
	for _, frame := range []int{15, 20} {
		t.Run(fmt.Sprint(frame), func(t *testing.T) {
			dir := t.TempDir()
			in := filepath.Join(dir, "in.vols")
			out := filepath.Join(dir, "out.vols")
			writeContainer(t, in, v13Header(40), 10, nil)

			res, err := newTestConverter(nil, nil).Run(context.Background(), Options{
				Input:  Paths{Container: in},
				Output: Paths{Container: out},
				Frames: Range{frame, frame},
			})
			require.NoError(t, err)
			require.Equal(t, 1, res.Frames)

			c, err := vols.Open(out)
			require.NoError(t, err)
			defer c.Close()
			f, err := c.ReadFrame(0)
			require.NoError(t, err)
			require.Equal(t, vols.EndKey, f.Keyframe)
			require.Equal(t, uvs(frame/10*10), f.UVData())
			require.Equal(t, vec3(3, float32(frame)), f.VertexData())
		})
	}
}

func TestRun_ClampsRange(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.vols")
	writeContainer(t, in, v13Header(100), 10, nil)

	core, logs := observer.New(zapcore.WarnLevel)
	c := New(zap.New(core), nil, nil)
	c.SetDiskFree(plentyOfSpace)

	res, err := c.Run(context.Background(), Options{
		Input:  Paths{Container: in},
		Output: Paths{Container: filepath.Join(dir, "out.vols")},
		Frames: Range{95, 500},
	})
	require.NoError(t, err)
	require.Equal(t, Range{95, 99}, res.Range)
	require.Equal(t, 5, res.Frames)
	require.Equal(t, 1, logs.FilterMessage("frame range clamped").Len())
}

func TestRun_ResizeTextures(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.vols")
	out := filepath.Join(dir, "out.vols")
	writeContainer(t, in, v13Header(12), 4, nil)

	codec := &fakeCodec{}
	res, err := newTestConverter(codec, nil).Run(context.Background(), Options{
		Input:       Paths{Container: in},
		Output:      Paths{Container: out},
		Frames:      FullRange,
		TextureSize: texture.Size{Width: 512, Height: 512},
	})
	require.NoError(t, err)
	require.Equal(t, 12, res.Transcoded)
	require.Equal(t, 12, codec.decoded)

	c, err := vols.Open(out)
	require.NoError(t, err)
	defer c.Close()
	require.EqualValues(t, 512, c.Header.TextureWidth)
	require.EqualValues(t, 512, c.Header.TextureHeight)
	require.Equal(t, vols.ContainerBasis, c.Header.TextureContainer)
	for i, f := range readAll(t, c) {
		require.Equal(t, "512x512 UASTC", string(f.TextureData()), "frame %d", i)
	}
}

func TestRun_ResizeUnsupportedContainer(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.vols")
	out := filepath.Join(dir, "out.vols")
	hdr := v13Header(12)
	hdr.TextureContainer = vols.ContainerKTX2
	writeContainer(t, in, hdr, 4, nil)

	core, logs := observer.New(zapcore.WarnLevel)
	codec := &fakeCodec{}
	c := New(zap.New(core), codec, nil)
	c.SetDiskFree(plentyOfSpace)

	res, err := c.Run(context.Background(), Options{
		Input:       Paths{Container: in},
		Output:      Paths{Container: out},
		Frames:      FullRange,
		TextureSize: texture.Size{Width: 512, Height: 512},
	})
	require.NoError(t, err)
	require.Zero(t, res.Transcoded)
	require.Zero(t, codec.decoded)
	require.Equal(t, 1, logs.Len())

	src, err := os.ReadFile(in)
	require.NoError(t, err)
	dst, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, src, dst)
}

func TestRun_NoopResizeMatchesNoResize(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.vols")
	writeContainer(t, in, v13Header(12), 4, nil)

	codec := &fakeCodec{}
	conv := newTestConverter(codec, nil)
	run := func(name string, size texture.Size) []byte {
		out := filepath.Join(dir, name)
		_, err := conv.Run(context.Background(), Options{
			Input:       Paths{Container: in},
			Output:      Paths{Container: out},
			Frames:      Range{3, 9},
			TextureSize: size,
		})
		require.NoError(t, err)
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		return data
	}

	plain := run("plain.vols", texture.Size{})
	same := run("same.vols", texture.Size{Width: 1024, Height: 1024})
	require.Equal(t, plain, same)
	require.Zero(t, codec.decoded)
}

func TestRun_TranscodeFailureRemovesOutput(t *testing.T) {
	for _, keep := range []bool{false, true} {
		t.Run(fmt.Sprintf("keep=%v", keep), func(t *testing.T) {
			dir := t.TempDir()
			in := filepath.Join(dir, "in.vols")
			writeContainer(t, in, v13Header(12), 4, nil)

			codec := &fakeCodec{decodeErr: errors.New("bad basis data")}
			_, err := newTestConverter(codec, nil).Run(context.Background(), Options{
				Input:       Paths{Container: in},
				Output:      Paths{Container: filepath.Join(dir, "out.vols")},
				Frames:      FullRange,
				TextureSize: texture.Size{Width: 256, Height: 256},
				KeepPartial: keep,
			})
			require.ErrorIs(t, err, texture.ErrTranscode)
			require.Equal(t, "TextureTranscodeError", Classify(err))

			names := listDir(t, dir)
			if !keep {
				require.Equal(t, []string{"in.vols"}, names)
				return
			}
			require.Len(t, names, 2)
			require.NotContains(t, names, "out.vols")
		})
	}
}

func TestRun_InsufficientDiskSpace(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.vols")
	writeContainer(t, in, v13Header(12), 4, nil)

	c := New(nil, nil, nil)
	var probed string
	c.SetDiskFree(func(path string) (uint64, error) {
		probed = path
		return 100, nil
	})
	_, err := c.Run(context.Background(), Options{
		Input:        Paths{Container: in},
		Output:       Paths{Container: filepath.Join(dir, "out.vols")},
		Frames:       FullRange,
		DiskHeadroom: 1 << 20,
	})
	require.ErrorIs(t, err, ErrInsufficientDiskSpace)
	require.Equal(t, dir, probed)
	require.Equal(t, []string{"in.vols"}, listDir(t, dir))
}

func TestRun_CorruptInput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.vols")
	writeContainer(t, in, v13Header(12), 4, nil)
	data, err := os.ReadFile(in)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(in, data[:len(data)-10], 0o644))

	_, err = newTestConverter(nil, nil).Run(context.Background(), Options{
		Input:  Paths{Container: in},
		Output: Paths{Container: filepath.Join(dir, "out.vols")},
		Frames: FullRange,
	})
	require.ErrorIs(t, err, vols.ErrCorruptFrameBody)
	require.Equal(t, "CorruptFrameBody", Classify(err))
}

func TestRun_MissingInput(t *testing.T) {
	dir := t.TempDir()
	_, err := newTestConverter(nil, nil).Run(context.Background(), Options{
		Input:  Paths{Container: filepath.Join(dir, "missing.vols")},
		Output: Paths{Container: filepath.Join(dir, "out.vols")},
		Frames: FullRange,
	})
	require.ErrorIs(t, err, vols.ErrIO)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_Cancelled(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.vols")
	writeContainer(t, in, v13Header(12), 4, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestConverter(nil, nil).Run(ctx, Options{
		Input:  Paths{Container: in},
		Output: Paths{Container: filepath.Join(dir, "out.vols")},
		Frames: FullRange,
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []string{"in.vols"}, listDir(t, dir))
}

func TestRun_UntrimmableAudioIsDropped(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.vols")
	hdr := v13Header(30)
	hdr.Audio = true
	writeContainer(t, in, hdr, 10, []byte("not an mp3 stream"))

	core, logs := observer.New(zapcore.WarnLevel)
	c := New(zap.New(core), nil, nil)
	c.SetDiskFree(plentyOfSpace)
	res, err := c.Run(context.Background(), Options{
		Input:  Paths{Container: in},
		Output: Paths{Container: filepath.Join(dir, "out.vols")},
		Frames: Range{5, 9},
	})
	require.NoError(t, err)
	require.True(t, res.AudioDropped)
	require.False(t, res.Header.Audio)
	require.Equal(t, 1, logs.FilterMessage("audio could not be trimmed, leaving it out").Len())

	out, err := vols.Open(filepath.Join(dir, "out.vols"))
	require.NoError(t, err)
	defer out.Close()
	require.False(t, out.Header.HasAudio())
	require.Len(t, readAll(t, out), 5)
}

func TestRun_Video(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.vols")
	video := filepath.Join(dir, "texture.mp4")
	writeContainer(t, in, v12Header(60), 10, nil)
	require.NoError(t, os.WriteFile(video, []byte("source video"), 0o644))

	t.Run("trimmed", func(t *testing.T) {
		trimmer := &fakeVideo{}
		core, logs := observer.New(zapcore.WarnLevel)
		c := New(zap.New(core), nil, trimmer)
		c.SetDiskFree(plentyOfSpace)
		out := filepath.Join(dir, "trimmed.mp4")

		res, err := c.Run(context.Background(), Options{
			Input:  Paths{Container: in, Video: video},
			Output: Paths{Container: filepath.Join(dir, "trimmed.vols"), Video: out},
			Frames: Range{30, 44},
		})
		require.NoError(t, err)
		require.True(t, res.Video)
		require.Equal(t, 1, trimmer.calls)
		require.Equal(t, video, trimmer.in)
		require.True(t, strings.HasSuffix(trimmer.out, ".trimmed.mp4"))
		// v12 carries no frame rate.
		require.Equal(t, media.Window{Start: time.Second, End: 1500 * time.Millisecond}, trimmer.window)
		require.Equal(t, 1, logs.FilterMessage("no frame rate in header, assuming default").Len())

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		require.Equal(t, "trimmed texture.mp4", string(data))
	})

	t.Run("full range copies", func(t *testing.T) {
		trimmer := &fakeVideo{}
		out := filepath.Join(dir, "copy.mp4")
		_, err := newTestConverter(nil, trimmer).Run(context.Background(), Options{
			Input:  Paths{Container: in, Video: video},
			Output: Paths{Container: filepath.Join(dir, "copy.vols"), Video: out},
			Frames: FullRange,
			FPS:    25,
		})
		require.NoError(t, err)
		require.Zero(t, trimmer.calls)
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		require.Equal(t, "source video", string(data))
	})
}

func TestRun_FailedRenameLeavesNoTemporaries(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.vols")
	video := filepath.Join(dir, "texture.mp4")
	writeContainer(t, in, v12Header(20), 5, nil)
	require.NoError(t, os.WriteFile(video, []byte("source video"), 0o644))

	// A non-empty directory cannot be replaced by a file.
	blocked := filepath.Join(dir, "out.vols")
	require.NoError(t, os.MkdirAll(filepath.Join(blocked, "keep"), 0o755))

	core, logs := observer.New(zapcore.WarnLevel)
	c := New(zap.New(core), nil, &fakeVideo{})
	c.SetDiskFree(plentyOfSpace)
	out := filepath.Join(dir, "out.mp4")
	_, err := c.Run(context.Background(), Options{
		Input:  Paths{Container: in, Video: video},
		Output: Paths{Container: blocked, Video: out},
		Frames: Range{5, 9},
		FPS:    30,
	})
	require.Error(t, err)
	require.Equal(t, "IoError", Classify(err))

	// The video is renamed first, and the failure names what was placed.
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "trimmed texture.mp4", string(data))
	incomplete := logs.FilterMessage("output set incomplete").All()
	require.Len(t, incomplete, 1)
	require.Equal(t, []interface{}{out}, incomplete[0].ContextMap()["placed"])

	require.ElementsMatch(t, []string{"in.vols", "texture.mp4", "out.vols", "out.mp4"}, listDir(t, dir))
}
