package vols

import (
	"encoding/binary"
	"fmt"
	"io"
)

// FrameEntry locates one frame in the sequence.
type FrameEntry struct {
	FrameHeader
	// Offset of the frame header within the sequence source.
	Offset int64
	// BodyLen is the physical body length, excluding the frame header and
	// the trailing size word. It differs from MeshDataSize before version 12.
	BodyLen int64
}

// Index is the ordered frame table of a container together with the
// nearest keyframe at or before every frame.
type Index struct {
	entries []FrameEntry
	prevKey []int
}

// BuildIndex walks hdr.FrameCount frames of r starting at base.
func BuildIndex(r io.ReaderAt, base, size int64, hdr *Header) (*Index, error) {
	l, err := hdr.Layout()
	if err != nil {
		return nil, err
	}

	// Every frame takes at least its header and trailing size word.
	avail := size - base
	if avail < 0 {
		avail = 0
	}
	if maxFrames := avail / (FrameHeaderSize + 4); int64(hdr.FrameCount) > maxFrames {
		return nil, fmt.Errorf("%w: header declares %d frames but the sequence (%d bytes) holds at most %d",
			ErrCorruptFrameBody, hdr.FrameCount, avail, maxFrames)
	}

	n := int(hdr.FrameCount)
	x := &Index{
		entries: make([]FrameEntry, 0, n),
		prevKey: make([]int, n),
	}

	var fhBuf [FrameHeaderSize]byte
	off := base
	lastKey := -1
	for i := 0; i < n; i++ {
		if off+FrameHeaderSize > size {
			return nil, fmt.Errorf("%w: frame %d header at %d past end of sequence (%d bytes)",
				ErrCorruptFrameBody, i, off, size)
		}
		if _, err := r.ReadAt(fhBuf[:], off); err != nil {
			return nil, fmt.Errorf("%w: reading frame %d header: %w", ErrIO, i, err)
		}
		fh := parseFrameHeader(fhBuf[:])

		bodyLen := int64(fh.MeshDataSize)
		if !l.CountedSizeWords {
			bodyLen, err = walkBody(r, off+FrameHeaderSize, size, fh, hdr)
			if err != nil {
				return nil, err
			}
		}

		end := off + FrameHeaderSize + bodyLen + 4
		if end > size {
			return nil, fmt.Errorf("%w: frame %d body of %d bytes runs past end of sequence",
				ErrCorruptFrameBody, i, bodyLen)
		}

		if fh.Keyframe.IsKey() {
			lastKey = i
		}
		x.prevKey[i] = lastKey
		x.entries = append(x.entries, FrameEntry{FrameHeader: fh, Offset: off, BodyLen: bodyLen})
		off = end
	}
	return x, nil
}

// walkBody measures a body whose size words are not counted in
// mesh_data_sz by following the prefixes.
func walkBody(r io.ReaderAt, start, limit int64, fh FrameHeader, hdr *Header) (int64, error) {
	pos := start
	var payload int64
	var word [4]byte
	next := func(name string) error {
		if pos+4 > limit {
			return fmt.Errorf("%w: frame %d %s size past end of sequence", ErrCorruptFrameBody, fh.Number, name)
		}
		if _, err := r.ReadAt(word[:], pos); err != nil {
			return fmt.Errorf("%w: reading frame %d %s size: %w", ErrIO, fh.Number, name, err)
		}
		n := int64(binary.LittleEndian.Uint32(word[:]))
		pos += 4
		if pos+n > limit {
			return fmt.Errorf("%w: frame %d %s of %d bytes past end of sequence", ErrCorruptFrameBody, fh.Number, name, n)
		}
		pos += n
		payload += n
		return nil
	}

	if err := next("vertices"); err != nil {
		return 0, err
	}
	if hdr.HasNormals() {
		if err := next("normals"); err != nil {
			return 0, err
		}
	}
	if fh.Keyframe.IsKey() {
		if err := next("indices"); err != nil {
			return 0, err
		}
		if err := next("uvs"); err != nil {
			return 0, err
		}
	}
	if hdr.HasTextures() && payload < int64(fh.MeshDataSize) {
		if err := next("texture"); err != nil {
			return 0, err
		}
	}
	if payload != int64(fh.MeshDataSize) {
		return 0, fmt.Errorf("%w: frame %d declares %d payload bytes, fields hold %d",
			ErrCorruptFrameBody, fh.Number, fh.MeshDataSize, payload)
	}
	return pos - start, nil
}

// Len returns the number of indexed frames.
func (x *Index) Len() int { return len(x.entries) }

// Entry returns the table entry of frame i.
func (x *Index) Entry(i int) (FrameEntry, error) {
	if i < 0 || i >= len(x.entries) {
		return FrameEntry{}, fmt.Errorf("%w: %d of %d", ErrFrameIndexOutOfRange, i, len(x.entries))
	}
	return x.entries[i], nil
}

// IsKeyframe reports whether frame i carries its own topology.
func (x *Index) IsKeyframe(i int) (bool, error) {
	e, err := x.Entry(i)
	if err != nil {
		return false, err
	}
	return e.Keyframe.IsKey(), nil
}

// PreviousKeyframe returns the nearest keyframe at or before frame i.
func (x *Index) PreviousKeyframe(i int) (int, error) {
	if i < 0 || i >= len(x.entries) {
		return 0, fmt.Errorf("%w: %d of %d", ErrFrameIndexOutOfRange, i, len(x.entries))
	}
	k := x.prevKey[i]
	if k < 0 {
		return 0, fmt.Errorf("%w: no keyframe at or before frame %d", ErrCorruptFrameBody, i)
	}
	return k, nil
}

// Keyframes returns the indices of all keyframes in order.
func (x *Index) Keyframes() []int {
	var keys []int
	for i, e := range x.entries {
		if e.Keyframe.IsKey() {
			keys = append(keys, i)
		}
	}
	return keys
}
