// Package meshopt implements the GPU-oriented geometry processing used by the
// mesh compiler: vertex cache and overdraw reordering, vertex fetch
// remapping, meshlet clustering and cache analysis.
//
// All reordering functions keep every triangle intact: triangles move as a
// unit with their corners in the original order, so winding is preserved.
package meshopt

import "errors"

// Errors returned by the meshlet functions.
var (
	ErrInvalidMeshletLimits  = errors.New("invalid meshlet limits")
	ErrMeshletBufferTooSmall = errors.New("meshlet output buffer too small")
	ErrIndexOutOfRange       = errors.New("index out of range")
)

// unused marks a vertex without an assigned slot.
const unused = ^uint32(0)

// adjacency lists, for every vertex, the triangles that reference it. Lists
// are packed into data; the first live[v] entries of vertex v's list are the
// triangles that have not been consumed yet.
type adjacency struct {
	offsets []uint32
	live    []uint32
	data    []uint32
}

func buildAdjacency(indices []uint32, vertexCount int) adjacency {
	adj := adjacency{
		offsets: make([]uint32, vertexCount+1),
		live:    make([]uint32, vertexCount),
		data:    make([]uint32, len(indices)),
	}

	for _, v := range indices {
		adj.live[v]++
	}

	var offset uint32
	for v := 0; v < vertexCount; v++ {
		adj.offsets[v] = offset
		offset += adj.live[v]
	}
	adj.offsets[vertexCount] = offset

	fill := make([]uint32, vertexCount)
	copy(fill, adj.offsets[:vertexCount])
	for i, v := range indices {
		adj.data[fill[v]] = uint32(i / 3)
		fill[v]++
	}
	return adj
}

// triangles returns the live triangles of vertex v.
func (a *adjacency) triangles(v uint32) []uint32 {
	start := a.offsets[v]
	return a.data[start : start+a.live[v]]
}

// remove drops one reference of triangle t from vertex v's live list.
func (a *adjacency) remove(v, t uint32) {
	list := a.triangles(v)
	for i, u := range list {
		if u == t {
			list[i] = list[len(list)-1]
			a.live[v]--
			return
		}
	}
}

// consume removes triangle t from the lists of its three corners.
func (a *adjacency) consume(t uint32, tri []uint32) {
	a.remove(tri[0], t)
	a.remove(tri[1], t)
	a.remove(tri[2], t)
}

func checkIndices(indices []uint32, vertexCount int) error {
	for _, v := range indices {
		if int(v) >= vertexCount {
			return ErrIndexOutOfRange
		}
	}
	return nil
}
