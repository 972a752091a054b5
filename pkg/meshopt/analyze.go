package meshopt

// DefaultAnalyzeCacheSize matches a typical post-transform FIFO.
const DefaultAnalyzeCacheSize = 16

// VertexCacheStatistics summarizes a FIFO cache simulation.
type VertexCacheStatistics struct {
	VerticesTransformed int
	// ACMR is transformed vertices per triangle (0.5 is ideal for grids, 3 is worst).
	ACMR float32
	// ATVR is transformed vertices per referenced vertex (1 is ideal).
	ATVR float32
}

// AnalyzeVertexCache simulates a FIFO cache of cacheSize entries over the
// index buffer.
func AnalyzeVertexCache(indices []uint32, vertexCount, cacheSize int) VertexCacheStatistics {
	var stats VertexCacheStatistics
	faceCount := len(indices) / 3
	if faceCount == 0 || vertexCount == 0 || cacheSize <= 0 {
		return stats
	}

	sim := newCacheSim(vertexCount, uint32(cacheSize))
	referenced := make([]bool, vertexCount)
	unique := 0
	for i := 0; i < faceCount; i++ {
		a, b, c := indices[i*3], indices[i*3+1], indices[i*3+2]
		stats.VerticesTransformed += sim.update(a, b, c)
		for _, v := range [3]uint32{a, b, c} {
			if !referenced[v] {
				referenced[v] = true
				unique++
			}
		}
	}

	stats.ACMR = float32(stats.VerticesTransformed) / float32(faceCount)
	stats.ATVR = float32(stats.VerticesTransformed) / float32(unique)
	return stats
}
