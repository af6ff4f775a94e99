// Package vols reads and writes VOLS volumetric video containers.
//
// A container is a version-gated header followed by a linear sequence of
// frames. Each frame is a 9-byte frame header, a body of length-prefixed
// fields (vertices, normals, indices, UVs, texture) and a trailing copy of
// the body size. Versions 10 through 13 are supported, in both header
// dialects and in single-file or split header/sequence layouts.
package vols

import "errors"

// Container errors.
var (
	ErrMalformedHeader      = errors.New("malformed VOLS header")
	ErrUnsupportedVersion   = errors.New("unsupported VOLS version")
	ErrFrameIndexOutOfRange = errors.New("frame index out of range")
	ErrCorruptFrameBody     = errors.New("corrupt frame body")
	ErrIO                   = errors.New("VOLS i/o error")
)

// Magic is the tag carried by both header dialects.
const Magic = "VOLS"
