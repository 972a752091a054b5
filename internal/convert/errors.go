package convert

import (
	"errors"
	"fmt"
)

// Conversion errors.
var (
	ErrMissingIndices    = errors.New("primitive has no index accessor")
	ErrMissingPositions  = errors.New("primitive has no POSITION attribute")
	ErrInvalidAccessor   = errors.New("accessor index out of range")
	ErrEmptyAttribute    = errors.New("attribute unpacked to zero elements")
	ErrAttributeCount    = errors.New("attribute count differs from position count")
	ErrUnsupportedMode   = errors.New("primitive mode is not triangles")
	ErrInvalidIndexCount = errors.New("index count is not a multiple of 3")
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrEmptyMesh         = errors.New("mesh has no triangles")
	ErrNoMeshlets        = errors.New("meshlet builder produced no meshlets")
	ErrOffsetOverflow    = errors.New("global buffer offset overflows 32 bits")
)

// Stage names a step of the per-mesh pipeline.
type Stage string

const (
	StageImport   Stage = "import"
	StageExtract  Stage = "extract"
	StageOptimize Stage = "optimize"
	StagePack     Stage = "pack"
	StageMeshlets Stage = "meshlets"
)

// ConversionError reports the sub-mesh and stage a conversion failed in.
type ConversionError struct {
	Mesh      int    // glTF mesh index
	Primitive int    // Primitive index within the mesh
	Name      string // glTF mesh name, may be empty
	Stage     Stage
	Err       error
}

func (e *ConversionError) Error() string {
	name := ""
	if e.Name != "" {
		name = fmt.Sprintf(" (%s)", e.Name)
	}
	return fmt.Sprintf("converting mesh %d%s primitive %d: %s: %v", e.Mesh, name, e.Primitive, e.Stage, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}
