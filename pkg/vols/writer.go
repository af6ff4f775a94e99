package vols

import (
	"fmt"
	"io"
)

// Writer emits a container: the header, the optional audio blob, then each
// frame with every size field recomputed from the bytes being written.
type Writer struct {
	hdr    *Header
	layout Layout

	headerDst io.Writer
	frameDst  io.Writer

	headerDone bool
	frames     uint32
}

// NewWriter returns a writer producing a single-file container on dst.
// The header is copied; FrameCount must already hold the number of frames
// that will be written.
func NewWriter(dst io.Writer, hdr *Header) (*Writer, error) {
	return NewSplitWriter(dst, dst, hdr)
}

// NewSplitWriter returns a writer that sends the header and audio to header
// and the frame sequence to sequence.
func NewSplitWriter(header, sequence io.Writer, hdr *Header) (*Writer, error) {
	l, err := hdr.Layout()
	if err != nil {
		return nil, err
	}
	return &Writer{
		hdr:       hdr.Clone(),
		layout:    l,
		headerDst: header,
		frameDst:  sequence,
	}, nil
}

// Header returns the header as written, including recomputed offsets.
func (w *Writer) Header() *Header { return w.hdr }

// WriteHeader writes the header followed by the audio blob when the header
// declares audio. Audio offsets are derived from the encoded header length
// and len(audio).
func (w *Writer) WriteHeader(audio []byte) error {
	if w.headerDone {
		return fmt.Errorf("header already written")
	}
	if len(audio) > 0 && !w.hdr.HasAudio() {
		return fmt.Errorf("version %d header without audio flag cannot carry %d audio bytes",
			w.hdr.Version, len(audio))
	}

	if w.layout.Extended {
		hlen, err := w.hdr.Size()
		if err != nil {
			return err
		}
		if w.hdr.Audio {
			w.hdr.AudioStart = uint32(hlen)
			w.hdr.FrameBodyStart = uint32(hlen + 4 + len(audio))
		} else {
			w.hdr.AudioStart = 0
			w.hdr.FrameBodyStart = uint32(hlen)
		}
	}

	buf, err := w.hdr.MarshalBinary()
	if err != nil {
		return err
	}
	if w.hdr.HasAudio() {
		e := &encoder{buf: buf}
		e.sized(audio)
		buf = e.buf
	}
	if _, err := w.headerDst.Write(buf); err != nil {
		return fmt.Errorf("%w: writing header: %w", ErrIO, err)
	}
	w.headerDone = true
	return nil
}

// WriteFrame writes body as the next frame. Frames are renumbered from 0.
// Normals are written only when the header keeps them. texture replaces the
// body's own texture; pass body.TextureData() to keep it.
func (w *Writer) WriteFrame(body *FrameBody, texture []byte) error {
	if !w.headerDone {
		return fmt.Errorf("frame written before header")
	}
	if w.frames >= w.hdr.FrameCount {
		return fmt.Errorf("%w: header declares %d frames", ErrFrameIndexOutOfRange, w.hdr.FrameCount)
	}

	fields := [][]byte{body.VertexData()}
	if w.hdr.HasNormals() {
		fields = append(fields, body.NormalData())
	}
	if body.Keyframe.IsKey() {
		if !body.HasTopology() {
			return fmt.Errorf("%w: keyframe %d has no indices or UVs", ErrCorruptFrameBody, body.Number)
		}
		fields = append(fields, body.IndexData(), body.UVData())
	}
	if w.hdr.HasTextures() && len(texture) > 0 {
		fields = append(fields, texture)
	}

	lens := make([]int, len(fields))
	size := FrameHeaderSize + 4
	for i, f := range fields {
		lens[i] = len(f)
		size += 4 + len(f)
	}
	fh := FrameHeader{
		Number:       w.frames,
		MeshDataSize: w.layout.MeshDataSize(lens...),
		Keyframe:     body.Keyframe,
	}

	e := &encoder{buf: fh.append(make([]byte, 0, size))}
	for _, f := range fields {
		e.sized(f)
	}
	e.u32(fh.MeshDataSize)

	if _, err := w.frameDst.Write(e.buf); err != nil {
		return fmt.Errorf("%w: writing frame %d: %w", ErrIO, fh.Number, err)
	}
	w.frames++
	return nil
}

// Frames returns the number of frames written so far.
func (w *Writer) Frames() int { return int(w.frames) }

// Close checks that every declared frame was written. It does not close the
// underlying writers.
func (w *Writer) Close() error {
	if !w.headerDone {
		return fmt.Errorf("container closed before header was written")
	}
	if w.frames != w.hdr.FrameCount {
		return fmt.Errorf("wrote %d frames, header declares %d", w.frames, w.hdr.FrameCount)
	}
	return nil
}
