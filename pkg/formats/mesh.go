// Package formats provides the compiled mesh file format.
// A mesh file stores GPU-ready index, vertex and meshlet buffers for every
// sub-mesh of a source scene.
package formats

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// Mesh format errors.
var (
	ErrInvalidMeshMagic     = errors.New("invalid mesh magic: expected 'TidesMesh'")
	ErrUnsupportedMeshFlags = errors.New("unsupported mesh flags")
	ErrTruncatedMeshData    = errors.New("truncated mesh data")
	ErrMeshCountLimit       = errors.New("mesh section count exceeds limit")
	ErrInvalidMesh          = errors.New("invalid mesh")
	ErrVerifyMismatch       = errors.New("mesh verification mismatch")
	ErrCodecState           = errors.New("codec used out of order")
)

// MeshMagic opens every mesh file.
var MeshMagic = [9]byte{'T', 'i', 'd', 'e', 's', 'M', 'e', 's', 'h'}

// Meshlet hard limits, sized for GPU thread groups.
const (
	MaxMeshletVertices  = 64
	MaxMeshletTriangles = 124
)

// DefaultTangent is stored when no tangent stream was generated.
var DefaultTangent = mgl32.Vec4{1, 0, 0, 1}

// Flags records which optional sections a mesh file contains.
type Flags uint32

const (
	FlagInterleaved Flags = 1 << 0 // Vertices stored as interleaved records
	FlagMeshlets    Flags = 1 << 1 // Meshlet sections present

	knownFlags = FlagInterleaved | FlagMeshlets
)

// Has reports whether every bit of mask is set.
func (f Flags) Has(mask Flags) bool {
	return f&mask == mask
}

// String returns the set flag names joined by '|'.
func (f Flags) String() string {
	var names []string
	if f.Has(FlagInterleaved) {
		names = append(names, "interleaved")
	}
	if f.Has(FlagMeshlets) {
		names = append(names, "meshlets")
	}
	if rest := f &^ knownFlags; rest != 0 {
		names = append(names, fmt.Sprintf("0x%x", uint32(rest)))
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// Vertex is one interleaved vertex record (48 bytes).
type Vertex struct {
	Position  mgl32.Vec3
	Normal    mgl32.Vec3
	Tangent   mgl32.Vec4
	Texcoord0 mgl32.Vec2
}

// Meshlet references a range of the mesh's meshlet vertex and triangle arrays.
type Meshlet struct {
	VertexOffset   uint32
	TriangleOffset uint32
	VertexCount    uint32
	TriangleCount  uint32
}

// MeshletBounds is an axis-aligned box in mesh-local space.
type MeshletBounds struct {
	LocalCenter  mgl32.Vec3
	LocalExtents mgl32.Vec3
}

// Mesh holds one converted sub-mesh.
type Mesh struct {
	Name      string // Source mesh name, not serialized
	Primitive int    // Source primitive index, not serialized

	Indices   []uint32
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	Tangents  []mgl32.Vec4 // nil unless tangents were generated
	Texcoords []mgl32.Vec2

	Vertices    []Vertex // Interleaved output only
	FirstIndex  uint32
	FirstVertex uint32

	Meshlets         []Meshlet
	MeshletBounds    []MeshletBounds
	MeshletTriangles []PackedTriangle
	MeshletVertices  []uint32
}

// VertexCount returns the number of vertices in the stored representation.
func (m *Mesh) VertexCount(flags Flags) int {
	if flags.Has(FlagInterleaved) {
		return len(m.Vertices)
	}
	return len(m.Positions)
}

// MeshFile is the content of one compiled mesh file.
type MeshFile struct {
	Flags  Flags
	Meshes []*Mesh
}

// Validate checks the invariants the renderer relies on for the sections
// selected by flags.
func (m *Mesh) Validate(flags Flags) error {
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("%w: index count %d is not a multiple of 3", ErrInvalidMesh, len(m.Indices))
	}

	if !flags.Has(FlagInterleaved) {
		n := len(m.Positions)
		if len(m.Normals) != n || len(m.Texcoords) != n {
			return fmt.Errorf("%w: stream counts differ (positions %d, normals %d, texcoords %d)",
				ErrInvalidMesh, n, len(m.Normals), len(m.Texcoords))
		}
		if len(m.Tangents) != 0 && len(m.Tangents) != n {
			return fmt.Errorf("%w: tangent count %d, want %d", ErrInvalidMesh, len(m.Tangents), n)
		}
	}

	vertexCount := uint32(m.VertexCount(flags))
	for i, idx := range m.Indices {
		if idx >= vertexCount {
			return fmt.Errorf("%w: index %d = %d out of range (%d vertices)", ErrInvalidMesh, i, idx, vertexCount)
		}
	}

	if !flags.Has(FlagMeshlets) {
		return nil
	}

	if len(m.MeshletBounds) != len(m.Meshlets) {
		return fmt.Errorf("%w: %d meshlet bounds for %d meshlets", ErrInvalidMesh, len(m.MeshletBounds), len(m.Meshlets))
	}
	for _, v := range m.MeshletVertices {
		if v >= vertexCount {
			return fmt.Errorf("%w: meshlet vertex %d out of range", ErrInvalidMesh, v)
		}
	}
	for i, ml := range m.Meshlets {
		if ml.VertexCount > MaxMeshletVertices || ml.TriangleCount > MaxMeshletTriangles {
			return fmt.Errorf("%w: meshlet %d exceeds limits (%d vertices, %d triangles)",
				ErrInvalidMesh, i, ml.VertexCount, ml.TriangleCount)
		}
		if uint64(ml.VertexOffset)+uint64(ml.VertexCount) > uint64(len(m.MeshletVertices)) ||
			uint64(ml.TriangleOffset)+uint64(ml.TriangleCount) > uint64(len(m.MeshletTriangles)) {
			return fmt.Errorf("%w: meshlet %d references data out of range", ErrInvalidMesh, i)
		}
		for _, tri := range m.MeshletTriangles[ml.TriangleOffset : ml.TriangleOffset+ml.TriangleCount] {
			v0, v1, v2 := tri.Indices()
			if v0 >= ml.VertexCount || v1 >= ml.VertexCount || v2 >= ml.VertexCount {
				return fmt.Errorf("%w: meshlet %d triangle index out of range", ErrInvalidMesh, i)
			}
		}
	}
	return nil
}
