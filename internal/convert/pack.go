package convert

import (
	"fmt"
	"math"

	"github.com/Faultbox/meshconv/pkg/formats"
)

// interleave builds the interleaved vertex records from the separate
// streams. Without a tangent stream every record gets DefaultTangent.
func interleave(m *formats.Mesh) {
	m.Vertices = make([]formats.Vertex, len(m.Positions))
	for i := range m.Vertices {
		v := formats.Vertex{
			Position:  m.Positions[i],
			Normal:    m.Normals[i],
			Tangent:   formats.DefaultTangent,
			Texcoord0: m.Texcoords[i],
		}
		if m.Tangents != nil {
			v.Tangent = m.Tangents[i]
		}
		m.Vertices[i] = v
	}
}

// offsets tracks the running totals that place each mesh in the global
// index and vertex buffers a renderer builds from the file.
type offsets struct {
	index  uint64
	vertex uint64
}

func (o *offsets) assign(m *formats.Mesh, interleaved bool) error {
	if o.index > math.MaxUint32 {
		return fmt.Errorf("%w: first index %d", ErrOffsetOverflow, o.index)
	}
	m.FirstIndex = uint32(o.index)
	o.index += uint64(len(m.Indices))

	if !interleaved {
		return nil
	}
	if o.vertex > math.MaxUint32 {
		return fmt.Errorf("%w: first vertex %d", ErrOffsetOverflow, o.vertex)
	}
	m.FirstVertex = uint32(o.vertex)
	o.vertex += uint64(len(m.Vertices))
	return nil
}
