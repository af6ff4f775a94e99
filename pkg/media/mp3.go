package media

import (
	"bytes"
	"fmt"
	"time"

	"github.com/icza/bitio"
)

type mpegVersion uint8

const (
	mpeg25 mpegVersion = 0
	mpeg2  mpegVersion = 2
	mpeg1  mpegVersion = 3
)

// Bitrates in kbit/s, by [row][index]. Rows: MPEG1 L1, L2, L3; MPEG2/2.5 L1; MPEG2/2.5 L2 and L3.
var bitrates = [5][16]int{
	{0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, -1},
	{0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, -1},
	{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, -1},
	{0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, -1},
	{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, -1},
}

var sampleRates = map[mpegVersion][3]int{
	mpeg1:  {44100, 48000, 32000},
	mpeg2:  {22050, 24000, 16000},
	mpeg25: {11025, 12000, 8000},
}

// frameHeader is a decoded 4-byte MPEG audio frame header.
type frameHeader struct {
	version    mpegVersion
	layer      int
	bitrate    int // kbit/s
	sampleRate int
	padding    bool
	mono       bool
}

// samples returns the number of PCM samples per channel in the frame.
func (h frameHeader) samples() int {
	switch {
	case h.layer == 1:
		return 384
	case h.layer == 3 && h.version != mpeg1:
		return 576
	default:
		return 1152
	}
}

// size returns the frame length in bytes, header included.
func (h frameHeader) size() int {
	pad := 0
	if h.padding {
		pad = 1
	}
	if h.layer == 1 {
		return (12*h.bitrate*1000/h.sampleRate + pad) * 4
	}
	return h.samples()/8*h.bitrate*1000/h.sampleRate + pad
}

func (h frameHeader) duration() time.Duration {
	return time.Duration(h.samples()) * time.Second / time.Duration(h.sampleRate)
}

// sideInfoLen returns the Layer III side information length.
func (h frameHeader) sideInfoLen() int {
	switch {
	case h.version == mpeg1 && h.mono:
		return 17
	case h.version == mpeg1:
		return 32
	case h.mono:
		return 9
	default:
		return 17
	}
}

// parseFrameHeader decodes the header at the start of b.
func parseFrameHeader(b []byte) (frameHeader, error) {
	if len(b) < 4 {
		return frameHeader{}, fmt.Errorf("%w: short header", ErrBadPacket)
	}
	r := bitio.NewReader(bytes.NewReader(b[:4]))
	var err error
	bits := func(n uint8) int {
		if err != nil {
			return 0
		}
		var v uint64
		v, err = r.ReadBits(n)
		return int(v)
	}

	sync := bits(11)
	version := mpegVersion(bits(2))
	layerBits := bits(2)
	bits(1) // protection
	brIndex := bits(4)
	srIndex := bits(2)
	padding := bits(1)
	bits(1) // private
	mode := bits(2)
	if err != nil {
		return frameHeader{}, fmt.Errorf("%w: %v", ErrBadPacket, err)
	}

	if sync != 0x7FF {
		return frameHeader{}, fmt.Errorf("%w: no frame sync", ErrBadPacket)
	}
	if version == 1 {
		return frameHeader{}, fmt.Errorf("%w: reserved MPEG version", ErrBadPacket)
	}
	if layerBits == 0 {
		return frameHeader{}, fmt.Errorf("%w: reserved layer", ErrBadPacket)
	}
	if srIndex == 3 {
		return frameHeader{}, fmt.Errorf("%w: reserved sample rate", ErrBadPacket)
	}

	h := frameHeader{
		version:    version,
		layer:      4 - layerBits,
		sampleRate: sampleRates[version][srIndex],
		padding:    padding == 1,
		mono:       mode == 3,
	}

	row := h.layer - 1
	if version != mpeg1 {
		row = 3
		if h.layer > 1 {
			row = 4
		}
	}
	h.bitrate = bitrates[row][brIndex]
	if h.bitrate <= 0 {
		return frameHeader{}, fmt.Errorf("%w: free or invalid bitrate", ErrBadPacket)
	}
	return h, nil
}

// isInfoFrame reports whether a Layer III frame carries a Xing, Info or
// VBRI header instead of audio.
func isInfoFrame(h frameHeader, frame []byte) bool {
	if h.layer != 3 {
		return false
	}
	off := 4 + h.sideInfoLen()
	if len(frame) >= off+4 {
		tag := string(frame[off : off+4])
		if tag == "Xing" || tag == "Info" {
			return true
		}
	}
	return len(frame) >= 40 && string(frame[36:40]) == "VBRI"
}

// id3v2Len returns the length of an ID3v2 tag at the start of b, or 0.
func id3v2Len(b []byte) int {
	if len(b) < 10 || string(b[:3]) != "ID3" {
		return 0
	}
	size := int(b[6]&0x7F)<<21 | int(b[7]&0x7F)<<14 | int(b[8]&0x7F)<<7 | int(b[9]&0x7F)
	n := 10 + size
	if b[5]&0x10 != 0 {
		n += 10 // footer
	}
	return n
}
