package formats

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Verify compares the decoded file against want, the data it was encoded
// from. It can only be called after a successful Decode.
func (d *Decoder) Verify(want *MeshFile) error {
	if d.state != stateVerifying {
		return fmt.Errorf("%w: verify requires a decoded file", ErrCodecState)
	}
	defer func() { d.state = stateClosed }()
	return VerifyMesh(d.file, want)
}

// VerifyMesh checks that got holds the same counts and byte-identical
// elements as want for every section selected by want's flags.
func VerifyMesh(got, want *MeshFile) error {
	if got.Flags != want.Flags {
		return &DecodeError{Mesh: -1, Section: "flags", Element: -1,
			Err: fmt.Errorf("%w: got %s, want %s", ErrVerifyMismatch, got.Flags, want.Flags)}
	}
	if len(got.Meshes) != len(want.Meshes) {
		return &DecodeError{Mesh: -1, Section: "mesh_count", Element: -1,
			Err: fmt.Errorf("%w: got %d, want %d", ErrVerifyMismatch, len(got.Meshes), len(want.Meshes))}
	}

	for i := range want.Meshes {
		if err := verifyMesh(i, got.Meshes[i], want.Meshes[i], want.Flags); err != nil {
			return err
		}
	}
	return nil
}

func verifyMesh(i int, got, want *Mesh, flags Flags) error {
	checks := []func() error{
		func() error { return verifySection(i, "indices", got.Indices, want.Indices) },
	}

	if flags.Has(FlagInterleaved) {
		checks = append(checks,
			func() error { return verifyValue(i, "first_index", got.FirstIndex, want.FirstIndex) },
			func() error { return verifyValue(i, "first_vertex", got.FirstVertex, want.FirstVertex) },
			func() error { return verifySection(i, "vertices", got.Vertices, want.Vertices) },
		)
	} else {
		checks = append(checks,
			func() error { return verifySection(i, "positions", got.Positions, want.Positions) },
			func() error { return verifySection(i, "texcoords", got.Texcoords, want.Texcoords) },
			func() error { return verifySection(i, "normals", got.Normals, want.Normals) },
			func() error { return verifySection(i, "tangents", got.Tangents, want.Tangents) },
		)
	}

	if flags.Has(FlagMeshlets) {
		checks = append(checks,
			func() error { return verifySection(i, "meshlets", got.Meshlets, want.Meshlets) },
			func() error { return verifySection(i, "meshlet_bounds", got.MeshletBounds, want.MeshletBounds) },
			func() error { return verifySection(i, "meshlet_triangles", got.MeshletTriangles, want.MeshletTriangles) },
			func() error { return verifySection(i, "meshlet_vertices", got.MeshletVertices, want.MeshletVertices) },
		)
	}

	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func verifyValue(mesh int, section string, got, want uint32) error {
	if got != want {
		return &DecodeError{Mesh: mesh, Section: section, Element: -1,
			Err: fmt.Errorf("%w: got %d, want %d", ErrVerifyMismatch, got, want)}
	}
	return nil
}

// verifySection compares counts, then the encoded bytes of every element.
func verifySection[T any](mesh int, section string, got, want []T) error {
	if len(got) != len(want) {
		return &DecodeError{Mesh: mesh, Section: section + "_count", Element: -1,
			Err: fmt.Errorf("%w: got %d, want %d", ErrVerifyMismatch, len(got), len(want))}
	}
	if len(want) == 0 {
		return nil
	}

	var gb, wb bytes.Buffer
	if err := binary.Write(&gb, ByteOrder, got); err != nil {
		return &DecodeError{Mesh: mesh, Section: section, Element: -1, Err: err}
	}
	if err := binary.Write(&wb, ByteOrder, want); err != nil {
		return &DecodeError{Mesh: mesh, Section: section, Element: -1, Err: err}
	}
	if bytes.Equal(gb.Bytes(), wb.Bytes()) {
		return nil
	}

	size := gb.Len() / len(got)
	g, w := gb.Bytes(), wb.Bytes()
	for off := 0; off < len(g); off++ {
		if g[off] != w[off] {
			return &DecodeError{Mesh: mesh, Section: section, Element: off / size,
				Err: fmt.Errorf("%w: got %v, want %v", ErrVerifyMismatch, got[off/size], want[off/size])}
		}
	}
	return nil
}
