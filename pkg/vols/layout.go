package vols

import "fmt"

// Layout describes which header and frame fields exist at a format version.
// The header decoder, the header encoder and the frame writer all consult the
// same table.
type Layout struct {
	Version uint32

	// Names: mesh, material and shader strings plus topology.
	Names bool
	// Flags: normals and textured bytes.
	Flags bool
	// LegacyTexture: 16-bit texture width, height and format.
	LegacyTexture bool
	// Transform: translation, rotation and scale.
	Transform bool
	// Extended: texture compression/container, 32-bit dims, fps, audio and
	// absolute offsets.
	Extended bool
	// CountedSizeWords: mesh_data_sz includes the 4-byte size prefix of each
	// written field.
	CountedSizeWords bool
}

var layouts = map[uint32]Layout{
	10: {Version: 10, Names: true},
	11: {Version: 11, Names: true, Flags: true, LegacyTexture: true},
	12: {Version: 12, Names: true, Flags: true, LegacyTexture: true, Transform: true, CountedSizeWords: true},
	13: {Version: 13, Flags: true, Extended: true, CountedSizeWords: true},
}

// LayoutFor returns the layout of a format version. Versions after 13 keep
// the version 13 field set.
func LayoutFor(version uint32) (Layout, error) {
	if version > 13 {
		l := layouts[13]
		l.Version = version
		return l, nil
	}
	l, ok := layouts[version]
	if !ok {
		return Layout{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	return l, nil
}

// MeshDataSize returns the aggregate body size recorded in a frame header
// for fields with the given payload lengths.
func (l Layout) MeshDataSize(fieldLens ...int) uint32 {
	var total uint32
	for _, n := range fieldLens {
		total += uint32(n)
		if l.CountedSizeWords {
			total += 4
		}
	}
	return total
}
