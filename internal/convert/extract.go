package convert

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/Faultbox/meshconv/internal/logger"
	"github.com/Faultbox/meshconv/pkg/formats"
)

// accessor resolves a glTF accessor index.
func accessor(doc *gltf.Document, index uint32) (*gltf.Accessor, error) {
	if int(index) >= len(doc.Accessors) || doc.Accessors[index] == nil {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidAccessor, index, len(doc.Accessors))
	}
	return doc.Accessors[index], nil
}

// extractPrimitive unpacks one triangle primitive into separate streams.
// Triangle winding is reversed from glTF's counter-clockwise convention.
// Missing normals and texcoords are zero-filled; tangents are read from the
// TANGENT attribute or generated when withTangents is set.
func extractPrimitive(doc *gltf.Document, prim *gltf.Primitive, withTangents bool) (*formats.Mesh, error) {
	if prim.Mode != gltf.PrimitiveTriangles {
		return nil, fmt.Errorf("%w: mode %d", ErrUnsupportedMode, prim.Mode)
	}
	if prim.Indices == nil {
		return nil, ErrMissingIndices
	}

	m := &formats.Mesh{}

	acr, err := accessor(doc, *prim.Indices)
	if err != nil {
		return nil, fmt.Errorf("indices: %w", err)
	}
	raw, err := modeler.ReadIndices(doc, acr, nil)
	if err != nil {
		return nil, fmt.Errorf("reading indices: %w", err)
	}
	if len(raw)%3 != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIndexCount, len(raw))
	}
	if len(raw) == 0 {
		return nil, ErrEmptyMesh
	}
	m.Indices = make([]uint32, len(raw))
	for i := 0; i < len(raw); i += 3 {
		m.Indices[i] = raw[i]
		m.Indices[i+1] = raw[i+2]
		m.Indices[i+2] = raw[i+1]
	}

	posIndex, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, ErrMissingPositions
	}
	if acr, err = accessor(doc, posIndex); err != nil {
		return nil, fmt.Errorf("%s: %w", gltf.POSITION, err)
	}
	positions, err := modeler.ReadPosition(doc, acr, nil)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", gltf.POSITION, err)
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyAttribute, gltf.POSITION)
	}
	m.Positions = make([]mgl32.Vec3, len(positions))
	for i, p := range positions {
		m.Positions[i] = mgl32.Vec3(p)
	}

	vertexCount := len(m.Positions)
	for i, idx := range m.Indices {
		if int(idx) >= vertexCount {
			return nil, fmt.Errorf("%w: index %d is %d, vertex count %d", ErrIndexOutOfRange, i, idx, vertexCount)
		}
	}

	if m.Normals, err = readVec3(doc, prim, gltf.NORMAL, vertexCount); err != nil {
		return nil, err
	}
	if m.Texcoords, err = readTexcoords(doc, prim, vertexCount); err != nil {
		return nil, err
	}

	if withTangents {
		if err := extractTangents(doc, prim, m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func readVec3(doc *gltf.Document, prim *gltf.Primitive, name string, vertexCount int) ([]mgl32.Vec3, error) {
	out := make([]mgl32.Vec3, vertexCount)
	index, ok := prim.Attributes[name]
	if !ok {
		logger.Debug("attribute missing, zero-filling", zap.String("attribute", name))
		return out, nil
	}
	acr, err := accessor(doc, index)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	data, err := modeler.ReadNormal(doc, acr, nil)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if err := checkCount(name, len(data), vertexCount); err != nil {
		return nil, err
	}
	for i, v := range data {
		out[i] = mgl32.Vec3(v)
	}
	return out, nil
}

func readTexcoords(doc *gltf.Document, prim *gltf.Primitive, vertexCount int) ([]mgl32.Vec2, error) {
	out := make([]mgl32.Vec2, vertexCount)
	index, ok := prim.Attributes[gltf.TEXCOORD_0]
	if !ok {
		logger.Debug("attribute missing, zero-filling", zap.String("attribute", gltf.TEXCOORD_0))
		return out, nil
	}
	acr, err := accessor(doc, index)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", gltf.TEXCOORD_0, err)
	}
	data, err := modeler.ReadTextureCoord(doc, acr, nil)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", gltf.TEXCOORD_0, err)
	}
	if err := checkCount(gltf.TEXCOORD_0, len(data), vertexCount); err != nil {
		return nil, err
	}
	for i, v := range data {
		out[i] = mgl32.Vec2(v)
	}
	return out, nil
}

func extractTangents(doc *gltf.Document, prim *gltf.Primitive, m *formats.Mesh) error {
	index, ok := prim.Attributes[gltf.TANGENT]
	if !ok {
		m.Tangents = generateTangents(m.Indices, m.Positions, m.Normals, m.Texcoords)
		return nil
	}
	acr, err := accessor(doc, index)
	if err != nil {
		return fmt.Errorf("%s: %w", gltf.TANGENT, err)
	}
	data, err := modeler.ReadTangent(doc, acr, nil)
	if err != nil {
		return fmt.Errorf("reading %s: %w", gltf.TANGENT, err)
	}
	if err := checkCount(gltf.TANGENT, len(data), len(m.Positions)); err != nil {
		return err
	}
	m.Tangents = make([]mgl32.Vec4, len(data))
	for i, v := range data {
		m.Tangents[i] = mgl32.Vec4(v)
	}
	return nil
}

func checkCount(name string, got, want int) error {
	if got == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyAttribute, name)
	}
	if got != want {
		return fmt.Errorf("%w: %s has %d, POSITION has %d", ErrAttributeCount, name, got, want)
	}
	return nil
}
