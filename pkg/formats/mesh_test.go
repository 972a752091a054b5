package formats

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeTestMesh returns a quad made of two triangles with every section
// filled for the given flags.
func makeTestMesh(flags Flags, tangents bool, firstIndex, firstVertex uint32) *Mesh {
	m := &Mesh{
		Indices: []uint32{0, 2, 1, 1, 2, 3},
		Positions: []mgl32.Vec3{
			{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0},
		},
		Normals: []mgl32.Vec3{
			{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1},
		},
		Texcoords: []mgl32.Vec2{
			{0, 0}, {1, 0}, {0, 1}, {1, 1},
		},
		FirstIndex: firstIndex,
	}
	if tangents {
		m.Tangents = []mgl32.Vec4{
			{1, 0, 0, 1}, {1, 0, 0, 1}, {1, 0, 0, -1}, {0, 1, 0, 1},
		}
	}

	if flags.Has(FlagInterleaved) {
		m.FirstVertex = firstVertex
		for i := range m.Positions {
			v := Vertex{Position: m.Positions[i], Normal: m.Normals[i], Tangent: DefaultTangent, Texcoord0: m.Texcoords[i]}
			if tangents {
				v.Tangent = m.Tangents[i]
			}
			m.Vertices = append(m.Vertices, v)
		}
	}

	if flags.Has(FlagMeshlets) {
		t0, _ := PackTriangle(0, 1, 2)
		t1, _ := PackTriangle(2, 1, 3)
		m.Meshlets = []Meshlet{{VertexOffset: 0, TriangleOffset: 0, VertexCount: 4, TriangleCount: 2}}
		m.MeshletBounds = []MeshletBounds{{LocalCenter: mgl32.Vec3{0.5, 0.5, 0}, LocalExtents: mgl32.Vec3{0.5, 0.5, 0}}}
		m.MeshletTriangles = []PackedTriangle{t0, t1}
		m.MeshletVertices = []uint32{0, 2, 1, 3}
	}
	return m
}

func makeTestFile(flags Flags, tangents bool) *MeshFile {
	return &MeshFile{
		Flags: flags,
		Meshes: []*Mesh{
			makeTestMesh(flags, tangents, 0, 0),
			makeTestMesh(flags, tangents, 6, 4),
		},
	}
}

func encode(t *testing.T, f *MeshFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteMesh(&buf, f))
	return buf.Bytes()
}

func TestMeshRoundTrip_AllFlagCombinations(t *testing.T) {
	for _, interleaved := range []bool{false, true} {
		for _, meshlets := range []bool{false, true} {
			for _, tangents := range []bool{false, true} {
				var flags Flags
				if interleaved {
					flags |= FlagInterleaved
				}
				if meshlets {
					flags |= FlagMeshlets
				}
				name := fmt.Sprintf("%s/tangents=%v", flags, tangents)

				t.Run(name, func(t *testing.T) {
					want := makeTestFile(flags, tangents)
					data := encode(t, want)

					d := NewDecoder(bytes.NewReader(data))
					got, err := d.Decode()
					require.NoError(t, err)
					require.NoError(t, d.Verify(want))

					require.Len(t, got.Meshes, 2)
					for i, m := range got.Meshes {
						w := want.Meshes[i]
						assert.Equal(t, w.Indices, m.Indices)
						if interleaved {
							assert.Equal(t, w.Vertices, m.Vertices)
							assert.Equal(t, w.FirstIndex, m.FirstIndex)
							assert.Equal(t, w.FirstVertex, m.FirstVertex)
							assert.Nil(t, m.Positions)
						} else {
							assert.Equal(t, w.Positions, m.Positions)
							assert.Equal(t, w.Normals, m.Normals)
							assert.Equal(t, w.Texcoords, m.Texcoords)
							assert.Equal(t, w.Tangents, m.Tangents)
							assert.Nil(t, m.Vertices)
						}
						if meshlets {
							assert.Equal(t, w.Meshlets, m.Meshlets)
							assert.Equal(t, w.MeshletBounds, m.MeshletBounds)
							assert.Equal(t, w.MeshletTriangles, m.MeshletTriangles)
							assert.Equal(t, w.MeshletVertices, m.MeshletVertices)
						} else {
							assert.Nil(t, m.Meshlets)
						}
					}
				})
			}
		}
	}
}

func TestMeshLayout_Header(t *testing.T) {
	data := encode(t, &MeshFile{Flags: FlagInterleaved | FlagMeshlets})

	require.Len(t, data, 9+4+8)
	assert.Equal(t, []byte("TidesMesh"), data[:9])
	assert.Equal(t, uint32(3), ByteOrder.Uint32(data[9:13]))
	assert.Equal(t, uint64(0), ByteOrder.Uint64(data[13:21]))
}

func TestMeshLayout_SectionSizes(t *testing.T) {
	tests := []struct {
		name     string
		flags    Flags
		tangents bool
		perMesh  int
	}{
		{
			name:    "interleaved",
			flags:   FlagInterleaved,
			perMesh: 8 + 4 + 8 + 4 + 6*4 + 4*48,
		},
		{
			name:    "separate without tangents",
			flags:   0,
			perMesh: 8 + 4*8 + 6*4 + 4*12 + 4*8 + 4*12,
		},
		{
			name:     "separate with tangents",
			flags:    0,
			tangents: true,
			perMesh:  8 + 4*8 + 6*4 + 4*12 + 4*8 + 4*12 + 4*16,
		},
		{
			name:    "interleaved with meshlets",
			flags:   FlagInterleaved | FlagMeshlets,
			perMesh: 8 + 4 + 8 + 4 + 4*8 + 6*4 + 4*48 + 16 + 24 + 2*4 + 4*4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &MeshFile{Flags: tt.flags, Meshes: []*Mesh{makeTestMesh(tt.flags, tt.tangents, 0, 0)}}
			data := encode(t, f)
			assert.Len(t, data, 21+tt.perMesh)
		})
	}
}

func TestVertexSize(t *testing.T) {
	assert.Equal(t, 48, binary.Size(Vertex{}))
	assert.Equal(t, 16, binary.Size(Meshlet{}))
	assert.Equal(t, 24, binary.Size(MeshletBounds{}))
	assert.Equal(t, 4, binary.Size(PackedTriangle(0)))
}

func TestDecode_FlagsGating(t *testing.T) {
	without := makeTestFile(FlagInterleaved, false)
	with := makeTestFile(FlagInterleaved|FlagMeshlets, false)

	// A file without meshlets decodes without touching meshlet sections:
	// it ends exactly where the last vertex block ends.
	d := NewDecoder(bytes.NewReader(encode(t, without)))
	got, err := d.Decode()
	require.NoError(t, err)
	for _, m := range got.Meshes {
		assert.Nil(t, m.Meshlets)
		assert.Nil(t, m.MeshletTriangles)
	}

	// Verifying it against meshlet data must fail on the flags word.
	err = d.Verify(with)
	require.ErrorIs(t, err, ErrVerifyMismatch)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, "flags", decErr.Section)

	// Clearing bit 1 of a meshlet file makes the meshlet counts unreadable as
	// such; the decoder then misreads and must not verify.
	data := encode(t, with)
	ByteOrder.PutUint32(data[9:13], uint32(FlagInterleaved))
	d = NewDecoder(bytes.NewReader(data))
	if _, err := d.Decode(); err == nil {
		assert.Error(t, d.Verify(with))
	}
}

func TestDecode_Errors(t *testing.T) {
	valid := encode(t, makeTestFile(0, true))

	badMagic := append([]byte(nil), valid...)
	copy(badMagic, "XidesMesh")

	badFlags := append([]byte(nil), valid...)
	ByteOrder.PutUint32(badFlags[9:13], 0x10)

	hugeCount := append([]byte(nil), valid...)
	ByteOrder.PutUint64(hugeCount[13:21], 1<<62)

	hugeIndices := append([]byte(nil), valid...)
	ByteOrder.PutUint64(hugeIndices[21:29], 1<<40)

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"empty", nil, ErrTruncatedMeshData},
		{"short magic", []byte("Tides"), ErrTruncatedMeshData},
		{"invalid magic", badMagic, ErrInvalidMeshMagic},
		{"unknown flags", badFlags, ErrUnsupportedMeshFlags},
		{"mesh count limit", hugeCount, ErrMeshCountLimit},
		{"section count limit", hugeIndices, ErrMeshCountLimit},
		{"truncated data", valid[:len(valid)-3], ErrTruncatedMeshData},
		{"truncated header", valid[:17], ErrTruncatedMeshData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadMesh(bytes.NewReader(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var decErr *DecodeError
			assert.ErrorAs(t, err, &decErr)
		})
	}
}

func TestDecode_ErrorLocation(t *testing.T) {
	data := encode(t, makeTestFile(0, false))

	_, err := ReadMesh(bytes.NewReader(data[:len(data)-1]))
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, 1, decErr.Mesh)
	assert.Equal(t, "normals", decErr.Section)
}

func TestVerifyMesh_Mismatch(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(f *MeshFile)
		wantSection string
		wantElement int
	}{
		{
			name:        "index value",
			mutate:      func(f *MeshFile) { f.Meshes[1].Indices[4] = 0 },
			wantSection: "indices",
			wantElement: 4,
		},
		{
			name:        "position value",
			mutate:      func(f *MeshFile) { f.Meshes[0].Positions[2][1] = 7 },
			wantSection: "positions",
			wantElement: 2,
		},
		{
			name:        "tangent count",
			mutate:      func(f *MeshFile) { f.Meshes[0].Tangents = nil },
			wantSection: "tangents_count",
			wantElement: -1,
		},
		{
			name: "packed triangle",
			mutate: func(f *MeshFile) {
				f.Meshes[0].MeshletTriangles[1], _ = PackTriangle(3, 1, 2)
			},
			wantSection: "meshlet_triangles",
			wantElement: 1,
		},
		{
			name:        "mesh count",
			mutate:      func(f *MeshFile) { f.Meshes = f.Meshes[:1] },
			wantSection: "mesh_count",
			wantElement: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := makeTestFile(FlagMeshlets, true)
			want := makeTestFile(FlagMeshlets, true)
			tt.mutate(got)

			err := VerifyMesh(got, want)
			require.ErrorIs(t, err, ErrVerifyMismatch)

			var decErr *DecodeError
			require.ErrorAs(t, err, &decErr)
			assert.Equal(t, tt.wantSection, decErr.Section)
			assert.Equal(t, tt.wantElement, decErr.Element)
		})
	}
}

func TestCodecState(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Encode(makeTestFile(FlagInterleaved, false)))
	assert.ErrorIs(t, enc.Encode(makeTestFile(FlagInterleaved, false)), ErrCodecState)

	d := NewDecoder(bytes.NewReader(buf.Bytes()))
	assert.ErrorIs(t, d.Verify(makeTestFile(FlagInterleaved, false)), ErrCodecState, "verify before decode")

	_, err := d.Decode()
	require.NoError(t, err)
	_, err = d.Decode()
	assert.ErrorIs(t, err, ErrCodecState)

	require.NoError(t, d.Verify(makeTestFile(FlagInterleaved, false)))
	assert.ErrorIs(t, d.Verify(makeTestFile(FlagInterleaved, false)), ErrCodecState, "verify twice")
}

func TestEncode_RejectsInvalidMesh(t *testing.T) {
	tests := []struct {
		name   string
		flags  Flags
		mutate func(m *Mesh)
	}{
		{"partial triangle", 0, func(m *Mesh) { m.Indices = m.Indices[:4] }},
		{"index out of range", 0, func(m *Mesh) { m.Indices[0] = 9 }},
		{"stream count mismatch", 0, func(m *Mesh) { m.Normals = m.Normals[:2] }},
		{"tangent count mismatch", 0, func(m *Mesh) { m.Tangents = m.Tangents[:1] }},
		{"meshlet over limit", FlagMeshlets, func(m *Mesh) { m.Meshlets[0].TriangleCount = 125 }},
		{"meshlet out of range", FlagMeshlets, func(m *Mesh) { m.Meshlets[0].VertexOffset = 3 }},
		{"bounds count", FlagMeshlets, func(m *Mesh) { m.MeshletBounds = nil }},
		{"packed index past meshlet", FlagMeshlets, func(m *Mesh) { m.Meshlets[0].VertexCount = 3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := makeTestMesh(tt.flags, true, 0, 0)
			tt.mutate(m)

			var buf bytes.Buffer
			err := WriteMesh(&buf, &MeshFile{Flags: tt.flags, Meshes: []*Mesh{m}})
			assert.ErrorIs(t, err, ErrInvalidMesh)
			assert.Zero(t, buf.Len(), "nothing may be written for an invalid mesh")
		})
	}

	err := WriteMesh(&bytes.Buffer{}, &MeshFile{Flags: 0x8})
	assert.ErrorIs(t, err, ErrUnsupportedMeshFlags)
}

func TestPackTriangle(t *testing.T) {
	tests := []struct {
		v0, v1, v2 uint32
		want       PackedTriangle
		wantErr    bool
	}{
		{0, 0, 0, 0, false},
		{1, 2, 3, PackedTriangle(1 | 2<<10 | 3<<20), false},
		{1023, 1023, 1023, PackedTriangle(0x3fffffff), false},
		{1024, 0, 0, 0, true},
		{0, 0, 4096, 0, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d_%d", tt.v0, tt.v1, tt.v2), func(t *testing.T) {
			got, err := PackTriangle(tt.v0, tt.v1, tt.v2)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPackedIndexRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Zero(t, uint32(got)>>30, "padding bits must stay clear")

			v0, v1, v2 := got.Indices()
			assert.Equal(t, [3]uint32{tt.v0, tt.v1, tt.v2}, [3]uint32{v0, v1, v2})
		})
	}
}

func TestFlags_String(t *testing.T) {
	tests := []struct {
		flags Flags
		want  string
	}{
		{0, "none"},
		{FlagInterleaved, "interleaved"},
		{FlagMeshlets, "meshlets"},
		{FlagInterleaved | FlagMeshlets, "interleaved|meshlets"},
		{FlagMeshlets | 0x8, "meshlets|0x8"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.flags.String())
		})
	}
}

func TestMeshFile_WriteReadVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quad.mesh")
	want := makeTestFile(FlagInterleaved|FlagMeshlets, true)

	require.NoError(t, WriteMeshFile(path, want))
	require.NoError(t, VerifyMeshFile(path, want))

	got, err := ReadMeshFile(path)
	require.NoError(t, err)
	assert.Equal(t, want.Flags, got.Flags)
	assert.Len(t, got.Meshes, 2)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must be renamed away")
}

func TestWriteMeshFile_NoPartialOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.mesh")

	bad := makeTestFile(0, false)
	bad.Meshes[0].Indices[0] = 100

	err := WriteMeshFile(path, bad)
	require.ErrorIs(t, err, ErrInvalidMesh)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReadMeshFile_Missing(t *testing.T) {
	_, err := ReadMeshFile(filepath.Join(t.TempDir(), "missing.mesh"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
