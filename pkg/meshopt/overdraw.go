package meshopt

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// Cache size used to find cluster boundaries.
const overdrawCacheSize = 16

// DefaultOverdrawThreshold allows a 5% vertex cache regression.
const DefaultOverdrawThreshold = 1.05

// OptimizeOverdraw reorders triangles to reduce pixel overdraw. The input is
// expected to be vertex cache optimized: it is split into clusters whose
// cache efficiency stays within threshold times the ACMR of the surrounding
// patch, and the clusters are then sorted so that outward facing clusters are
// drawn first. dst must hold len(indices) elements and may alias indices.
func OptimizeOverdraw(dst, indices []uint32, positions []mgl32.Vec3, threshold float32) error {
	vertexCount := len(positions)
	if err := checkIndices(indices, vertexCount); err != nil {
		return err
	}
	faceCount := len(indices) / 3
	if faceCount == 0 {
		return nil
	}

	src := append([]uint32(nil), indices[:faceCount*3]...)

	sim := newCacheSim(vertexCount, overdrawCacheSize)
	hard := sim.hardBoundaries(src)
	soft := sim.softBoundaries(src, hard, threshold)

	keys := clusterSortKeys(src, positions, soft)

	order := make([]int, len(soft))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return keys[order[i]] > keys[order[j]]
	})

	out := 0
	for _, c := range order {
		start, end := clusterRange(soft, c, faceCount)
		n := copy(dst[out:], src[start*3:end*3])
		out += n
	}
	return nil
}

// cacheSim is a timestamp based FIFO cache simulation.
type cacheSim struct {
	size       uint32
	timestamp  uint32
	timestamps []uint32
}

func newCacheSim(vertexCount int, size uint32) *cacheSim {
	return &cacheSim{
		size:       size,
		timestamp:  size + 1,
		timestamps: make([]uint32, vertexCount),
	}
}

// reset invalidates every cached vertex.
func (s *cacheSim) reset() {
	s.timestamp += s.size + 1
}

// update feeds one triangle through the cache and returns the miss count.
func (s *cacheSim) update(a, b, c uint32) int {
	misses := 0
	for _, v := range [3]uint32{a, b, c} {
		if s.timestamp-s.timestamps[v] > s.size {
			s.timestamps[v] = s.timestamp
			s.timestamp++
			misses++
		}
	}
	return misses
}

// hardBoundaries starts a new cluster at every triangle that misses all three
// vertices, which usually marks a disjoint patch of the mesh.
func (s *cacheSim) hardBoundaries(indices []uint32) []int {
	faceCount := len(indices) / 3
	var clusters []int
	for i := 0; i < faceCount; i++ {
		m := s.update(indices[i*3], indices[i*3+1], indices[i*3+2])
		if i == 0 || m == 3 {
			clusters = append(clusters, i)
		}
	}
	return clusters
}

// softBoundaries splits each hard cluster whenever the running ACMR falls
// under threshold times the cluster ACMR.
func (s *cacheSim) softBoundaries(indices []uint32, hard []int, threshold float32) []int {
	faceCount := len(indices) / 3
	var clusters []int

	for it := range hard {
		start, end := clusterRange(hard, it, faceCount)

		s.reset()
		misses := 0
		for i := start; i < end; i++ {
			misses += s.update(indices[i*3], indices[i*3+1], indices[i*3+2])
		}
		clusterThreshold := threshold * (float32(misses) / float32(end-start))

		clusters = append(clusters, start)

		s.reset()
		runningMisses, runningFaces := 0, 0
		for i := start; i < end; i++ {
			runningMisses += s.update(indices[i*3], indices[i*3+1], indices[i*3+2])
			runningFaces++

			if float32(runningMisses)/float32(runningFaces) <= clusterThreshold {
				clusters = append(clusters, i+1)
				s.reset()
				runningMisses, runningFaces = 0, 0
			}
		}

		// The tail cluster is usually too small to be efficient: merge it into
		// the previous one. This also drops a boundary placed at end.
		if clusters[len(clusters)-1] != start {
			clusters = clusters[:len(clusters)-1]
		}
	}
	return clusters
}

func clusterRange(clusters []int, i, faceCount int) (start, end int) {
	start = clusters[i]
	end = faceCount
	if i+1 < len(clusters) {
		end = clusters[i+1]
	}
	return start, end
}

// clusterSortKeys returns, for each cluster, the distance of its area
// weighted centroid from the mesh centroid along its average normal.
func clusterSortKeys(indices []uint32, positions []mgl32.Vec3, clusters []int) []float32 {
	faceCount := len(indices) / 3

	var meshCentroid mgl32.Vec3
	for _, v := range indices {
		meshCentroid = meshCentroid.Add(positions[v])
	}
	meshCentroid = meshCentroid.Mul(1 / float32(len(indices)))

	keys := make([]float32, len(clusters))
	for c := range clusters {
		start, end := clusterRange(clusters, c, faceCount)

		var area float32
		var centroid, normal mgl32.Vec3
		for i := start; i < end; i++ {
			p0 := positions[indices[i*3]]
			p1 := positions[indices[i*3+1]]
			p2 := positions[indices[i*3+2]]

			n := p1.Sub(p0).Cross(p2.Sub(p0))
			a := n.Len()

			centroid = centroid.Add(p0.Add(p1).Add(p2).Mul(a / 3))
			normal = normal.Add(n)
			area += a
		}

		if area > 0 {
			centroid = centroid.Mul(1 / area)
		}
		if l := normal.Len(); l > 0 {
			normal = normal.Mul(1 / l)
		}

		keys[c] = centroid.Sub(meshCentroid).Dot(normal)
	}
	return keys
}
