package vols

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Container is an opened VOLS container: its header, optional audio blob
// and frame index. Frame bodies are read on demand.
type Container struct {
	Header *Header
	// HeaderLen is the encoded header length in the source.
	HeaderLen int

	audio []byte
	seq   io.ReaderAt
	index *Index
	split bool
	files []*os.File
}

// Open opens a single-file container.
func Open(path string) (*Container, error) {
	f, size, err := openFile(path)
	if err != nil {
		return nil, err
	}
	c, err := New(f, size, nil, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.files = []*os.File{f}
	return c, nil
}

// OpenSplit opens a container whose header and frame sequence live in
// separate files.
func OpenSplit(headerPath, sequencePath string) (*Container, error) {
	hf, hsize, err := openFile(headerPath)
	if err != nil {
		return nil, err
	}
	sf, ssize, err := openFile(sequencePath)
	if err != nil {
		hf.Close()
		return nil, err
	}
	c, err := New(hf, hsize, sf, ssize)
	if err != nil {
		hf.Close()
		sf.Close()
		return nil, err
	}
	c.files = []*os.File{hf, sf}
	return c, nil
}

func openFile(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: opening file: %w", ErrIO, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("%w: stat %s: %w", ErrIO, path, err)
	}
	return f, st.Size(), nil
}

// New decodes a container from in-memory or file-backed readers. A nil
// sequence means frames follow the header (and audio) in the same source.
func New(header io.ReaderAt, headerSize int64, sequence io.ReaderAt, sequenceSize int64) (*Container, error) {
	hdr, hlen, err := ReadHeader(header, headerSize)
	if err != nil {
		return nil, err
	}
	c := &Container{Header: hdr, HeaderLen: hlen}

	if hdr.HasAudio() {
		if c.audio, err = readAudio(header, headerSize, hdr, hlen); err != nil {
			return nil, err
		}
	}

	base := int64(0)
	if sequence == nil {
		sequence, sequenceSize = header, headerSize
		base = c.framesOffset()
	} else {
		c.split = true
	}
	c.seq = sequence

	if c.index, err = BuildIndex(sequence, base, sequenceSize, hdr); err != nil {
		return nil, err
	}
	return c, nil
}

// framesOffset returns where frames begin in a single-file container.
func (c *Container) framesOffset() int64 {
	if c.Header.Version >= 13 && c.Header.FrameBodyStart != 0 {
		return int64(c.Header.FrameBodyStart)
	}
	off := int64(c.HeaderLen)
	if c.Header.HasAudio() {
		off += 4 + int64(len(c.audio))
	}
	return off
}

func readAudio(r io.ReaderAt, size int64, hdr *Header, hlen int) ([]byte, error) {
	pos := int64(hdr.AudioStart)
	if pos == 0 {
		pos = int64(hlen)
	}
	var word [4]byte
	if pos+4 > size {
		return nil, fmt.Errorf("%w: audio size at %d past end of file", ErrMalformedHeader, pos)
	}
	if _, err := r.ReadAt(word[:], pos); err != nil {
		return nil, fmt.Errorf("%w: reading audio size: %w", ErrIO, err)
	}
	n := int64(binary.LittleEndian.Uint32(word[:]))
	if pos+4+n > size {
		return nil, fmt.Errorf("%w: audio of %d bytes past end of file", ErrMalformedHeader, n)
	}
	audio := make([]byte, n)
	if _, err := r.ReadAt(audio, pos+4); err != nil && !(errors.Is(err, io.EOF) && n == 0) {
		return nil, fmt.Errorf("%w: reading audio: %w", ErrIO, err)
	}
	return audio, nil
}

// Audio returns the embedded audio blob, or nil.
func (c *Container) Audio() []byte { return c.audio }

// Index returns the frame index.
func (c *Container) Index() *Index { return c.index }

// FrameCount returns the number of frames.
func (c *Container) FrameCount() int { return c.index.Len() }

// Split reports whether the container was opened from separate header and
// sequence sources.
func (c *Container) Split() bool { return c.split }

// ReadFrame decodes the body of frame i.
func (c *Container) ReadFrame(i int) (*FrameBody, error) {
	e, err := c.index.Entry(i)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, e.BodyLen+4)
	if _, err := c.seq.ReadAt(buf, e.Offset+FrameHeaderSize); err != nil {
		return nil, fmt.Errorf("%w: reading frame %d: %w", ErrIO, i, err)
	}
	trailer := binary.LittleEndian.Uint32(buf[e.BodyLen:])
	if trailer != e.MeshDataSize {
		return nil, fmt.Errorf("%w: frame %d trailing size %d, header says %d",
			ErrCorruptFrameBody, i, trailer, e.MeshDataSize)
	}
	return decodeBody(buf[:e.BodyLen:e.BodyLen], e.FrameHeader, c.Header)
}

// Close releases the files opened by Open or OpenSplit.
func (c *Container) Close() error {
	var errs []error
	for _, f := range c.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.files = nil
	return errors.Join(errs...)
}
