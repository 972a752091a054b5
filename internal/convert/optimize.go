package convert

import (
	"fmt"

	"github.com/Faultbox/meshconv/pkg/formats"
	"github.com/Faultbox/meshconv/pkg/meshopt"
)

// CacheStats holds vertex cache efficiency before and after optimization.
type CacheStats struct {
	ACMRBefore float32
	ACMRAfter  float32
	ATVRAfter  float32
}

// optimizeMesh reorders triangles for the post-transform cache, then for
// overdraw, then renumbers vertices in first-use order and permutes every
// present stream to match.
func optimizeMesh(m *formats.Mesh, threshold float32) (CacheStats, error) {
	vertexCount := len(m.Positions)
	before := meshopt.AnalyzeVertexCache(m.Indices, vertexCount, meshopt.DefaultAnalyzeCacheSize)

	if err := meshopt.OptimizeVertexCache(m.Indices, m.Indices, vertexCount); err != nil {
		return CacheStats{}, fmt.Errorf("vertex cache: %w", err)
	}
	if err := meshopt.OptimizeOverdraw(m.Indices, m.Indices, m.Positions, threshold); err != nil {
		return CacheStats{}, fmt.Errorf("overdraw: %w", err)
	}

	remap, err := meshopt.OptimizeVertexFetchRemap(m.Indices, vertexCount)
	if err != nil {
		return CacheStats{}, fmt.Errorf("vertex fetch: %w", err)
	}
	meshopt.RemapIndexBuffer(m.Indices, m.Indices, remap)
	meshopt.RemapVertexBuffer(m.Positions, m.Positions, remap)
	if m.Normals != nil {
		meshopt.RemapVertexBuffer(m.Normals, m.Normals, remap)
	}
	if m.Texcoords != nil {
		meshopt.RemapVertexBuffer(m.Texcoords, m.Texcoords, remap)
	}
	if m.Tangents != nil {
		meshopt.RemapVertexBuffer(m.Tangents, m.Tangents, remap)
	}

	after := meshopt.AnalyzeVertexCache(m.Indices, vertexCount, meshopt.DefaultAnalyzeCacheSize)
	return CacheStats{
		ACMRBefore: before.ACMR,
		ACMRAfter:  after.ACMR,
		ATVRAfter:  after.ATVR,
	}, nil
}
