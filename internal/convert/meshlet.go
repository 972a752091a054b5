package convert

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/meshconv/pkg/buffer"
	"github.com/Faultbox/meshconv/pkg/formats"
	"github.com/Faultbox/meshconv/pkg/meshopt"
)

// buildMeshlets clusters the mesh into meshlets, computes their bounds and
// packs their local triangles. Scratch buffers are sized for the worst case
// and trimmed to what the builder used.
func buildMeshlets(m *formats.Mesh) error {
	const (
		maxVertices  = formats.MaxMeshletVertices
		maxTriangles = formats.MaxMeshletTriangles
	)

	bound := meshopt.BuildMeshletsBound(len(m.Indices), maxVertices, maxTriangles)
	meshlets, err := buffer.New[meshopt.Meshlet](bound)
	if err != nil {
		return err
	}
	defer meshlets.Release()
	vertices, err := buffer.New[uint32](bound * maxVertices)
	if err != nil {
		return err
	}
	defer vertices.Release()
	triangles, err := buffer.New[uint8](bound * maxTriangles * 3)
	if err != nil {
		return err
	}
	defer triangles.Release()

	count, err := meshopt.BuildMeshlets(meshlets.Data(), vertices.Data(), triangles.Data(),
		m.Indices, len(m.Positions), maxVertices, maxTriangles)
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNoMeshlets
	}

	last := meshlets.Data()[count-1]
	if err := meshlets.Resize(count); err != nil {
		return err
	}
	if err := vertices.Resize(int(last.VertexOffset + last.VertexCount)); err != nil {
		return err
	}
	if err := triangles.Resize(int(last.TriangleOffset + (last.TriangleCount*3+3)&^3)); err != nil {
		return err
	}

	packed, err := buffer.New[formats.PackedTriangle](triangles.Len() / 3)
	if err != nil {
		return err
	}
	defer packed.Release()

	mv := vertices.Data()
	out := make([]formats.Meshlet, count)
	bounds := make([]formats.MeshletBounds, count)
	var next uint32
	for i, ml := range meshlets.Data() {
		local := triangles.Data()[ml.TriangleOffset : ml.TriangleOffset+ml.TriangleCount*3]
		verts := mv[ml.VertexOffset : ml.VertexOffset+ml.VertexCount]

		meshopt.OptimizeMeshlet(verts, local, int(ml.TriangleCount), int(ml.VertexCount))
		bounds[i] = meshletBounds(m.Positions, verts, local)

		dst := packed.Data()[next : next+ml.TriangleCount]
		for t := range dst {
			tri, err := formats.PackTriangle(uint32(local[t*3]), uint32(local[t*3+1]), uint32(local[t*3+2]))
			if err != nil {
				return fmt.Errorf("meshlet %d triangle %d: %w", i, t, err)
			}
			dst[t] = tri
		}

		out[i] = formats.Meshlet{
			VertexOffset:   ml.VertexOffset,
			TriangleOffset: next,
			VertexCount:    ml.VertexCount,
			TriangleCount:  ml.TriangleCount,
		}
		next += ml.TriangleCount
	}
	if err := packed.Resize(int(next)); err != nil {
		return err
	}

	m.Meshlets = out
	m.MeshletBounds = bounds
	m.MeshletTriangles = packed.Detach()
	m.MeshletVertices = vertices.Detach()
	return nil
}

// meshletBounds returns the axis-aligned box of the positions referenced by
// a meshlet's triangles, as center and half-extents.
func meshletBounds(positions []mgl32.Vec3, vertices []uint32, local []uint8) formats.MeshletBounds {
	lo := mgl32.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	hi := mgl32.Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
	for _, l := range local {
		p := positions[vertices[l]]
		for k := 0; k < 3; k++ {
			lo[k] = min(lo[k], p[k])
			hi[k] = max(hi[k], p[k])
		}
	}
	return formats.MeshletBounds{
		LocalCenter:  hi.Add(lo).Mul(0.5),
		LocalExtents: hi.Sub(lo).Mul(0.5),
	}
}
