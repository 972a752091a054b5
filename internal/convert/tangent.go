package convert

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/meshconv/pkg/formats"
)

const degenerateEpsilon = 1e-12

// generateTangents computes per-vertex tangents from texture-space
// derivatives accumulated over each vertex's triangles, orthogonalized
// against the normal. W carries the bitangent handedness. Vertices with no
// usable UV gradient get formats.DefaultTangent.
func generateTangents(indices []uint32, positions, normals []mgl32.Vec3, texcoords []mgl32.Vec2) []mgl32.Vec4 {
	tan := make([]mgl32.Vec3, len(positions))
	bitan := make([]mgl32.Vec3, len(positions))

	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]

		e1 := positions[b].Sub(positions[a])
		e2 := positions[c].Sub(positions[a])
		d1 := texcoords[b].Sub(texcoords[a])
		d2 := texcoords[c].Sub(texcoords[a])

		det := d1.X()*d2.Y() - d2.X()*d1.Y()
		if det*det < degenerateEpsilon {
			continue
		}
		r := 1 / det

		t := e1.Mul(d2.Y()).Sub(e2.Mul(d1.Y())).Mul(r)
		bt := e2.Mul(d1.X()).Sub(e1.Mul(d2.X())).Mul(r)
		for _, v := range [3]uint32{a, b, c} {
			tan[v] = tan[v].Add(t)
			bitan[v] = bitan[v].Add(bt)
		}
	}

	out := make([]mgl32.Vec4, len(positions))
	for v := range out {
		n := normals[v]
		t := tan[v].Sub(n.Mul(n.Dot(tan[v])))
		if t.Dot(t) < degenerateEpsilon {
			out[v] = formats.DefaultTangent
			continue
		}
		t = t.Normalize()

		w := float32(1)
		if n.Cross(t).Dot(bitan[v]) < 0 {
			w = -1
		}
		out[v] = t.Vec4(w)
	}
	return out
}
