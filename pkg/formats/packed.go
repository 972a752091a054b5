package formats

import (
	"errors"
	"fmt"
)

// ErrPackedIndexRange is returned when a local index does not fit in 10 bits.
var ErrPackedIndexRange = errors.New("packed triangle index out of range")

const (
	packedIndexBits = 10
	packedIndexMask = 1<<packedIndexBits - 1
)

// PackedTriangle stores three meshlet-local vertex indices in one word:
// v0 in bits 0-9, v1 in bits 10-19, v2 in bits 20-29. The top two bits are
// zero.
type PackedTriangle uint32

// PackTriangle packs three local indices, each below 1024.
func PackTriangle(v0, v1, v2 uint32) (PackedTriangle, error) {
	if v0 > packedIndexMask || v1 > packedIndexMask || v2 > packedIndexMask {
		return 0, fmt.Errorf("%w: (%d, %d, %d)", ErrPackedIndexRange, v0, v1, v2)
	}
	return PackedTriangle(v0 | v1<<packedIndexBits | v2<<(2*packedIndexBits)), nil
}

// Indices unpacks the three local indices.
func (t PackedTriangle) Indices() (v0, v1, v2 uint32) {
	w := uint32(t)
	return w & packedIndexMask, w >> packedIndexBits & packedIndexMask, w >> (2 * packedIndexBits) & packedIndexMask
}

// String returns the triangle as "(v0, v1, v2)".
func (t PackedTriangle) String() string {
	v0, v1, v2 := t.Indices()
	return fmt.Sprintf("(%d, %d, %d)", v0, v1, v2)
}
