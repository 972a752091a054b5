package meshopt

import "fmt"

// Meshlet describes one cluster produced by BuildMeshlets. VertexOffset
// indexes the meshlet vertex array; TriangleOffset is a byte offset into the
// meshlet triangle array, which stores three local indices per triangle and
// starts every meshlet on a 4-byte boundary.
type Meshlet struct {
	VertexOffset   uint32
	TriangleOffset uint32
	VertexCount    uint32
	TriangleCount  uint32
}

// BuildMeshletsBound returns the worst-case meshlet count for an index buffer.
func BuildMeshletsBound(indexCount, maxVertices, maxTriangles int) int {
	if maxVertices < 3 || maxTriangles < 1 {
		return 0
	}

	// In the worst case every meshlet leaves two vertex slots unused.
	conservative := maxVertices - 2
	byVertices := (indexCount + conservative - 1) / conservative
	byTriangles := (indexCount/3 + maxTriangles - 1) / maxTriangles

	if byVertices > byTriangles {
		return byVertices
	}
	return byTriangles
}

// BuildMeshlets splits the index buffer into meshlets of at most maxVertices
// vertices and maxTriangles triangles and returns the meshlet count.
//
// Output buffers must be sized for the worst case: meshlets holds
// BuildMeshletsBound entries, meshletVertices bound*maxVertices and
// meshletTriangles bound*maxTriangles*3.
//
// Triangles are grown greedily from the live triangles adjacent to the
// current meshlet, preferring those that add the fewest new vertices. When
// nothing adjacent is left the next unassigned triangle in index order seeds
// the search, so a cache optimized input yields spatially coherent clusters.
func BuildMeshlets(meshlets []Meshlet, meshletVertices []uint32, meshletTriangles []uint8,
	indices []uint32, vertexCount, maxVertices, maxTriangles int) (int, error) {
	if maxVertices < 3 || maxVertices > 255 || maxTriangles < 1 || maxTriangles > 512 || maxTriangles%4 != 0 {
		return 0, fmt.Errorf("%w: %d vertices, %d triangles", ErrInvalidMeshletLimits, maxVertices, maxTriangles)
	}
	if err := checkIndices(indices, vertexCount); err != nil {
		return 0, err
	}

	faceCount := len(indices) / 3
	adj := buildAdjacency(indices[:faceCount*3], vertexCount)
	emitted := make([]bool, faceCount)

	local := make([]uint8, vertexCount)
	for i := range local {
		local[i] = 0xff
	}

	b := meshletBuilder{
		meshlets:  meshlets,
		vertices:  meshletVertices,
		triangles: meshletTriangles,
		local:     local,
	}

	cursor := 0
	for {
		best := b.nextAdjacent(indices, &adj)
		if best < 0 {
			for cursor < faceCount && emitted[cursor] {
				cursor++
			}
			if cursor == faceCount {
				break
			}
			best = cursor
		}

		tri := indices[best*3 : best*3+3]
		if int(b.current.VertexCount)+b.extraVertices(tri) > maxVertices || int(b.current.TriangleCount) >= maxTriangles {
			if err := b.finish(); err != nil {
				return 0, err
			}
		}
		if err := b.add(tri); err != nil {
			return 0, err
		}

		emitted[best] = true
		adj.consume(uint32(best), tri)
	}

	if b.current.TriangleCount > 0 {
		if err := b.finish(); err != nil {
			return 0, err
		}
	}
	return b.count, nil
}

type meshletBuilder struct {
	meshlets  []Meshlet
	vertices  []uint32
	triangles []uint8
	local     []uint8

	current Meshlet
	count   int
}

// extraVertices counts the distinct corners not yet in the current meshlet.
func (b *meshletBuilder) extraVertices(tri []uint32) int {
	a, c0, c1 := tri[0], tri[1], tri[2]
	extra := 0
	if b.local[a] == 0xff {
		extra++
	}
	if b.local[c0] == 0xff && c0 != a {
		extra++
	}
	if b.local[c1] == 0xff && c1 != a && c1 != c0 {
		extra++
	}
	return extra
}

// nextAdjacent picks the live triangle touching the current meshlet that
// adds the fewest vertices, breaking ties by fewer remaining neighbors.
func (b *meshletBuilder) nextAdjacent(indices []uint32, adj *adjacency) int {
	best := -1
	bestExtra, bestLive := 4, ^uint32(0)

	for i := uint32(0); i < b.current.VertexCount; i++ {
		v := b.vertices[b.current.VertexOffset+i]
		for _, t := range adj.triangles(v) {
			tri := indices[t*3 : t*3+3]
			extra := b.extraVertices(tri)
			live := adj.live[tri[0]] + adj.live[tri[1]] + adj.live[tri[2]]
			if extra < bestExtra || (extra == bestExtra && live < bestLive) {
				best, bestExtra, bestLive = int(t), extra, live
			}
		}
	}
	return best
}

func (b *meshletBuilder) add(tri []uint32) error {
	m := &b.current
	for _, v := range tri {
		if b.local[v] != 0xff {
			continue
		}
		slot := int(m.VertexOffset + m.VertexCount)
		if slot >= len(b.vertices) {
			return fmt.Errorf("%w: meshlet vertices", ErrMeshletBufferTooSmall)
		}
		b.local[v] = uint8(m.VertexCount)
		b.vertices[slot] = v
		m.VertexCount++
	}

	base := int(m.TriangleOffset + m.TriangleCount*3)
	if base+3 > len(b.triangles) {
		return fmt.Errorf("%w: meshlet triangles", ErrMeshletBufferTooSmall)
	}
	b.triangles[base] = b.local[tri[0]]
	b.triangles[base+1] = b.local[tri[1]]
	b.triangles[base+2] = b.local[tri[2]]
	m.TriangleCount++
	return nil
}

// finish stores the current meshlet and opens the next one.
func (b *meshletBuilder) finish() error {
	if b.count >= len(b.meshlets) {
		return fmt.Errorf("%w: meshlets", ErrMeshletBufferTooSmall)
	}
	m := b.current
	for i := uint32(0); i < m.VertexCount; i++ {
		b.local[b.vertices[m.VertexOffset+i]] = 0xff
	}
	b.meshlets[b.count] = m
	b.count++

	b.current = Meshlet{
		VertexOffset:   m.VertexOffset + m.VertexCount,
		TriangleOffset: m.TriangleOffset + (m.TriangleCount*3+3)&^3,
	}
	return nil
}

// OptimizeMeshlet reorders the triangles of one meshlet for locality and then
// renumbers its vertices in order of first use, rewriting the local indices.
// vertices and triangles are the meshlet's own slices of the shared arrays.
func OptimizeMeshlet(vertices []uint32, triangles []uint8, triangleCount, vertexCount int) {
	indices := triangles[:triangleCount*3]

	// Timestamps count triangles, compared as 8-bit distances.
	var cache [256]uint8
	cacheLast := uint8(128)
	const cacheCutoff = 3

	for i := 0; i < triangleCount; i++ {
		next, nextMatch := -1, -1
		for j := i; j < triangleCount; j++ {
			a, b, c := indices[j*3], indices[j*3+1], indices[j*3+2]
			match := 0
			if cacheLast-cache[a] < cacheCutoff {
				match++
			}
			if cacheLast-cache[b] < cacheCutoff {
				match++
			}
			if cacheLast-cache[c] < cacheCutoff {
				match++
			}
			if match > nextMatch {
				next, nextMatch = j, match
				if nextMatch >= 2 {
					break
				}
			}
		}

		a, b, c := indices[next*3], indices[next*3+1], indices[next*3+2]
		// Shift the skipped triangles forward to keep their relative order.
		copy(indices[(i+1)*3:(next+1)*3], indices[i*3:next*3])
		indices[i*3], indices[i*3+1], indices[i*3+2] = a, b, c

		cacheLast++
		cache[a], cache[b], cache[c] = cacheLast, cacheLast, cacheLast
	}

	var order [256]uint32
	var remap [256]uint8
	for i := 0; i < vertexCount; i++ {
		remap[i] = 0xff
	}

	n := 0
	for i, v := range indices {
		if remap[v] == 0xff {
			remap[v] = uint8(n)
			order[n] = vertices[v]
			n++
		}
		indices[i] = remap[v]
	}
	copy(vertices, order[:n])
}
