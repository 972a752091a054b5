package meshopt

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeGrid returns an n x n quad grid in the XY plane.
func makeGrid(n int) ([]uint32, []mgl32.Vec3) {
	positions := make([]mgl32.Vec3, 0, (n+1)*(n+1))
	for y := 0; y <= n; y++ {
		for x := 0; x <= n; x++ {
			positions = append(positions, mgl32.Vec3{float32(x), float32(y), 0})
		}
	}

	indices := make([]uint32, 0, n*n*6)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			v0 := uint32(y*(n+1) + x)
			v1 := v0 + 1
			v2 := v0 + uint32(n+1)
			v3 := v2 + 1
			indices = append(indices, v0, v1, v2, v2, v1, v3)
		}
	}
	return indices, positions
}

// shuffleTriangles permutes whole triangles with a fixed seed.
func shuffleTriangles(indices []uint32, seed int64) []uint32 {
	faceCount := len(indices) / 3
	order := rand.New(rand.NewSource(seed)).Perm(faceCount)
	out := make([]uint32, 0, len(indices))
	for _, t := range order {
		out = append(out, indices[t*3:t*3+3]...)
	}
	return out
}

func triangleSet(indices []uint32) map[[3]uint32]int {
	set := make(map[[3]uint32]int)
	for i := 0; i+2 < len(indices); i += 3 {
		set[[3]uint32{indices[i], indices[i+1], indices[i+2]}]++
	}
	return set
}

func TestOptimizeVertexCache_PreservesTriangles(t *testing.T) {
	indices, positions := makeGrid(16)
	input := shuffleTriangles(indices, 1)

	out := make([]uint32, len(input))
	require.NoError(t, OptimizeVertexCache(out, input, len(positions)))

	assert.Equal(t, triangleSet(input), triangleSet(out))
}

func TestOptimizeVertexCache_ImprovesACMR(t *testing.T) {
	indices, positions := makeGrid(32)
	input := shuffleTriangles(indices, 7)

	before := AnalyzeVertexCache(input, len(positions), DefaultAnalyzeCacheSize)

	out := append([]uint32(nil), input...)
	require.NoError(t, OptimizeVertexCache(out, out, len(positions)))
	after := AnalyzeVertexCache(out, len(positions), DefaultAnalyzeCacheSize)

	assert.Less(t, after.ACMR, before.ACMR)
	assert.Less(t, after.ACMR, float32(1.25), "grid should get close to one miss per triangle")
}

func TestOptimizeVertexCache_Errors(t *testing.T) {
	out := make([]uint32, 3)
	err := OptimizeVertexCache(out, []uint32{0, 1, 5}, 3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	assert.NoError(t, OptimizeVertexCache(nil, nil, 0))
}

func TestOptimizeOverdraw_PreservesTriangles(t *testing.T) {
	indices, positions := makeGrid(12)
	require.NoError(t, OptimizeVertexCache(indices, indices, len(positions)))
	input := append([]uint32(nil), indices...)

	out := make([]uint32, len(indices))
	require.NoError(t, OptimizeOverdraw(out, indices, positions, DefaultOverdrawThreshold))

	assert.Equal(t, triangleSet(input), triangleSet(out))
}

func TestOptimizeOverdraw_InPlace(t *testing.T) {
	indices, positions := makeGrid(6)
	input := append([]uint32(nil), indices...)

	require.NoError(t, OptimizeOverdraw(indices, indices, positions, DefaultOverdrawThreshold))
	assert.Equal(t, triangleSet(input), triangleSet(indices))
}

func TestSoftBoundaries_Sorted(t *testing.T) {
	indices, positions := makeGrid(20)
	require.NoError(t, OptimizeVertexCache(indices, indices, len(positions)))

	sim := newCacheSim(len(positions), overdrawCacheSize)
	hard := sim.hardBoundaries(indices)
	soft := sim.softBoundaries(indices, hard, DefaultOverdrawThreshold)

	require.NotEmpty(t, soft)
	assert.Equal(t, 0, soft[0])
	for i := 1; i < len(soft); i++ {
		assert.Less(t, soft[i-1], soft[i], "cluster boundaries must be strictly increasing")
	}
	assert.Less(t, soft[len(soft)-1], len(indices)/3)
}

func TestOptimizeVertexFetchRemap(t *testing.T) {
	tests := []struct {
		name        string
		indices     []uint32
		vertexCount int
		want        []uint32
	}{
		{
			name:        "first use order",
			indices:     []uint32{2, 0, 1, 1, 0, 3},
			vertexCount: 4,
			want:        []uint32{1, 2, 0, 3},
		},
		{
			name:        "winding fixed triangle",
			indices:     []uint32{0, 2, 1},
			vertexCount: 3,
			want:        []uint32{0, 2, 1},
		},
		{
			name:        "unreferenced vertices go last",
			indices:     []uint32{3, 1, 4},
			vertexCount: 6,
			want:        []uint32{3, 1, 4, 0, 2, 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remap, err := OptimizeVertexFetchRemap(tt.indices, tt.vertexCount)
			require.NoError(t, err)
			assert.Equal(t, tt.want, remap)
		})
	}
}

func TestRemap_KeepsVerticesConsistent(t *testing.T) {
	indices, positions := makeGrid(8)
	indices = shuffleTriangles(indices, 3)

	before := make([]mgl32.Vec3, len(indices))
	for i, v := range indices {
		before[i] = positions[v]
	}

	remap, err := OptimizeVertexFetchRemap(indices, len(positions))
	require.NoError(t, err)
	RemapIndexBuffer(indices, indices, remap)
	RemapVertexBuffer(positions, positions, remap)

	for i, v := range indices {
		assert.Equal(t, before[i], positions[v], "corner %d", i)
	}

	// First use order makes the remapped index buffer start at 0, 1, 2.
	assert.Equal(t, []uint32{0, 1, 2}, indices[:3])
}

func TestBuildMeshletsBound(t *testing.T) {
	tests := []struct {
		indexCount, maxVertices, maxTriangles, want int
	}{
		{3, 64, 124, 1},
		{372, 64, 124, 6},
		{124 * 3 * 10, 64, 124, 60},
		{0, 64, 124, 0},
		{3, 2, 124, 0},
	}

	for _, tt := range tests {
		got := BuildMeshletsBound(tt.indexCount, tt.maxVertices, tt.maxTriangles)
		assert.Equal(t, tt.want, got, "bound(%d, %d, %d)", tt.indexCount, tt.maxVertices, tt.maxTriangles)
	}
}

// buildMeshlets allocates worst-case buffers and runs BuildMeshlets.
func buildMeshlets(t *testing.T, indices []uint32, vertexCount, maxV, maxT int) ([]Meshlet, []uint32, []uint8) {
	t.Helper()
	bound := BuildMeshletsBound(len(indices), maxV, maxT)
	meshlets := make([]Meshlet, bound)
	vertices := make([]uint32, bound*maxV)
	triangles := make([]uint8, bound*maxT*3)

	count, err := BuildMeshlets(meshlets, vertices, triangles, indices, vertexCount, maxV, maxT)
	require.NoError(t, err)
	require.LessOrEqual(t, count, bound)
	return meshlets[:count], vertices, triangles
}

func TestBuildMeshlets_LimitsAndCoverage(t *testing.T) {
	indices, positions := makeGrid(40)
	require.NoError(t, OptimizeVertexCache(indices, indices, len(positions)))

	meshlets, vertices, triangles := buildMeshlets(t, indices, len(positions), 64, 124)
	require.NotEmpty(t, meshlets)

	var global []uint32
	for i, m := range meshlets {
		assert.LessOrEqual(t, m.VertexCount, uint32(64), "meshlet %d", i)
		assert.LessOrEqual(t, m.TriangleCount, uint32(124), "meshlet %d", i)
		assert.Zero(t, m.TriangleOffset%4, "meshlet %d triangle offset must be 4-byte aligned", i)

		for k := uint32(0); k < m.TriangleCount*3; k++ {
			local := triangles[m.TriangleOffset+k]
			require.Less(t, uint32(local), m.VertexCount)
			global = append(global, vertices[m.VertexOffset+uint32(local)])
		}
	}

	assert.Equal(t, triangleSet(indices), triangleSet(global))
}

func TestBuildMeshlets_SingleTriangle(t *testing.T) {
	meshlets, vertices, triangles := buildMeshlets(t, []uint32{0, 2, 1}, 3, 64, 124)

	require.Len(t, meshlets, 1)
	assert.Equal(t, Meshlet{VertexOffset: 0, TriangleOffset: 0, VertexCount: 3, TriangleCount: 1}, meshlets[0])
	assert.Equal(t, []uint32{0, 2, 1}, vertices[:3])
	assert.Equal(t, []uint8{0, 1, 2}, triangles[:3])
}

func TestBuildMeshlets_InvalidLimits(t *testing.T) {
	tests := []struct {
		name       string
		maxV, maxT int
	}{
		{"too few vertices", 2, 124},
		{"too many vertices", 256, 124},
		{"triangles not multiple of 4", 64, 126},
		{"zero triangles", 64, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildMeshlets(make([]Meshlet, 1), make([]uint32, 64), make([]uint8, 512), []uint32{0, 1, 2}, 3, tt.maxV, tt.maxT)
			assert.ErrorIs(t, err, ErrInvalidMeshletLimits)
		})
	}
}

func TestBuildMeshlets_BufferTooSmall(t *testing.T) {
	indices, positions := makeGrid(10)
	_, err := BuildMeshlets(make([]Meshlet, 1), make([]uint32, 64), make([]uint8, 124*3), indices, len(positions), 64, 124)
	assert.ErrorIs(t, err, ErrMeshletBufferTooSmall)
}

func TestOptimizeMeshlet_PreservesTriangles(t *testing.T) {
	indices, positions := makeGrid(5)
	indices = shuffleTriangles(indices, 11)

	meshlets, vertices, triangles := buildMeshlets(t, indices, len(positions), 64, 124)

	for _, m := range meshlets {
		mv := vertices[m.VertexOffset : m.VertexOffset+m.VertexCount]
		mt := triangles[m.TriangleOffset : m.TriangleOffset+m.TriangleCount*3]

		var before []uint32
		for _, l := range mt {
			before = append(before, mv[l])
		}

		OptimizeMeshlet(mv, mt, int(m.TriangleCount), int(m.VertexCount))

		var after []uint32
		for _, l := range mt {
			after = append(after, mv[l])
		}
		assert.Equal(t, triangleSet(before), triangleSet(after))

		// Local indices are renumbered in order of first use.
		var seen uint8
		for _, l := range mt {
			require.LessOrEqual(t, l, seen)
			if l == seen {
				seen++
			}
		}
	}
}

func TestAnalyzeVertexCache(t *testing.T) {
	stats := AnalyzeVertexCache([]uint32{0, 1, 2, 2, 1, 3}, 4, DefaultAnalyzeCacheSize)
	assert.Equal(t, 4, stats.VerticesTransformed)
	assert.InDelta(t, 2.0, stats.ACMR, 1e-6)
	assert.InDelta(t, 1.0, stats.ATVR, 1e-6)

	assert.Equal(t, VertexCacheStatistics{}, AnalyzeVertexCache(nil, 0, 16))
}
