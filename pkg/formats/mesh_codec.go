package formats

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-gl/mathgl/mgl32"
)

// ByteOrder of every integer and float in a mesh file. Mesh files are
// produced and consumed on the same machine type, so the host order is used
// as is; files are not portable across endianness.
var ByteOrder binary.ByteOrder = binary.NativeEndian

// maxSectionBytes bounds a single data block read from a file.
const maxSectionBytes = 1 << 31

// DecodeError reports a decoding or verification failure.
type DecodeError struct {
	Mesh    int    // Mesh index, -1 for the file header
	Section string // Section name such as "indices" or "meshlet_count"
	Element int    // Element index for element mismatches, -1 otherwise
	Err     error
}

func (e *DecodeError) Error() string {
	where := "header"
	if e.Mesh >= 0 {
		where = fmt.Sprintf("mesh %d", e.Mesh)
	}
	if e.Section != "" {
		where += ": " + e.Section
	}
	if e.Element >= 0 {
		where += fmt.Sprintf("[%d]", e.Element)
	}
	return fmt.Sprintf("decoding mesh file: %s: %v", where, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type codecState int

const (
	stateIdle codecState = iota
	stateWriting
	stateReading
	stateVerifying
	stateClosed
)

// Encoder writes exactly one MeshFile to a stream.
type Encoder struct {
	w     *bufio.Writer
	state codecState
	err   error
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Encode validates and writes f. An encoder can only be used once.
func (e *Encoder) Encode(f *MeshFile) error {
	if e.state != stateIdle {
		return fmt.Errorf("%w: encoder already used", ErrCodecState)
	}
	e.state = stateWriting
	defer func() { e.state = stateClosed }()

	if f.Flags&^knownFlags != 0 {
		return fmt.Errorf("%w: %s", ErrUnsupportedMeshFlags, f.Flags)
	}
	for i, m := range f.Meshes {
		if err := m.Validate(f.Flags); err != nil {
			return fmt.Errorf("mesh %d: %w", i, err)
		}
	}

	e.write(MeshMagic)
	e.write(uint32(f.Flags))
	e.write(uint64(len(f.Meshes)))
	for _, m := range f.Meshes {
		e.writeMesh(m, f.Flags)
	}
	if e.err != nil {
		return fmt.Errorf("writing mesh file: %w", e.err)
	}
	if err := e.w.Flush(); err != nil {
		return fmt.Errorf("writing mesh file: %w", err)
	}
	return nil
}

func (e *Encoder) write(v any) {
	if e.err != nil {
		return
	}
	e.err = binary.Write(e.w, ByteOrder, v)
}

func count[T any](s []T) uint64 {
	return uint64(len(s))
}

func (e *Encoder) writeMesh(m *Mesh, flags Flags) {
	e.write(count(m.Indices))
	if flags.Has(FlagInterleaved) {
		e.write(m.FirstIndex)
		e.write(count(m.Vertices))
		e.write(m.FirstVertex)
	} else {
		e.write(count(m.Positions))
		e.write(count(m.Texcoords))
		e.write(count(m.Normals))
		e.write(count(m.Tangents))
	}
	if flags.Has(FlagMeshlets) {
		e.write(count(m.Meshlets))
		e.write(count(m.MeshletBounds))
		e.write(count(m.MeshletTriangles))
		e.write(count(m.MeshletVertices))
	}

	e.write(m.Indices)
	if flags.Has(FlagInterleaved) {
		e.write(m.Vertices)
	} else {
		e.write(m.Positions)
		e.write(m.Texcoords)
		e.write(m.Normals)
		e.write(m.Tangents)
	}
	if flags.Has(FlagMeshlets) {
		e.write(m.Meshlets)
		e.write(m.MeshletBounds)
		e.write(m.MeshletTriangles)
		e.write(m.MeshletVertices)
	}
}

// WriteMesh encodes f to w.
func WriteMesh(w io.Writer, f *MeshFile) error {
	return NewEncoder(w).Encode(f)
}

// Decoder reads one MeshFile from a stream and can then verify it against
// the in-memory data that produced it.
type Decoder struct {
	r     *bufio.Reader
	state codecState
	file  *MeshFile

	mesh    int
	section string
	err     error
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r), mesh: -1}
}

// Decode reads the whole file. Sections are read strictly in file order and
// only the sections announced by the flags word are expected.
func (d *Decoder) Decode() (*MeshFile, error) {
	if d.state != stateIdle {
		return nil, fmt.Errorf("%w: decoder already used", ErrCodecState)
	}
	d.state = stateReading

	f, err := d.decode()
	if err != nil {
		d.state = stateClosed
		return nil, err
	}
	d.file = f
	d.state = stateVerifying
	return f, nil
}

func (d *Decoder) decode() (*MeshFile, error) {
	d.section = "magic"
	var magic [9]byte
	d.read(&magic)
	if d.err != nil {
		return nil, d.fail(d.err)
	}
	if magic != MeshMagic {
		return nil, d.fail(ErrInvalidMeshMagic)
	}

	d.section = "flags"
	var flags uint32
	d.read(&flags)
	if d.err != nil {
		return nil, d.fail(d.err)
	}
	f := &MeshFile{Flags: Flags(flags)}
	if f.Flags&^knownFlags != 0 {
		return nil, d.fail(fmt.Errorf("%w: %s", ErrUnsupportedMeshFlags, f.Flags))
	}

	meshCount := d.readCount("mesh_count")
	if d.err != nil {
		return nil, d.fail(d.err)
	}
	// Every mesh needs at least its index count.
	if meshCount > maxSectionBytes/8 {
		return nil, d.fail(fmt.Errorf("%w: %d meshes", ErrMeshCountLimit, meshCount))
	}

	f.Meshes = make([]*Mesh, 0, min(meshCount, 1024))
	for i := uint64(0); i < meshCount; i++ {
		d.mesh = int(i)
		m := d.readMesh(f.Flags)
		if d.err != nil {
			return nil, d.fail(d.err)
		}
		f.Meshes = append(f.Meshes, m)
	}
	return f, nil
}

func (d *Decoder) fail(err error) error {
	return &DecodeError{Mesh: d.mesh, Section: d.section, Element: -1, Err: err}
}

func (d *Decoder) read(v any) {
	if d.err != nil {
		return
	}
	if err := binary.Read(d.r, ByteOrder, v); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = ErrTruncatedMeshData
		}
		d.err = err
	}
}

func (d *Decoder) readCount(section string) uint64 {
	if d.err != nil {
		return 0
	}
	d.section = section
	var n uint64
	d.read(&n)
	return n
}

func (d *Decoder) readUint32(section string) uint32 {
	if d.err != nil {
		return 0
	}
	d.section = section
	var v uint32
	d.read(&v)
	return v
}

// readSection reads n elements of T. Empty sections decode to nil.
func readSection[T any](d *Decoder, section string, n uint64) []T {
	if d.err != nil || n == 0 {
		return nil
	}
	d.section = section

	var zero T
	if size := uint64(binary.Size(zero)); n > maxSectionBytes/size {
		d.err = fmt.Errorf("%w: %d elements", ErrMeshCountLimit, n)
		return nil
	}
	out := make([]T, n)
	d.read(out)
	return out
}

func (d *Decoder) readMesh(flags Flags) *Mesh {
	m := &Mesh{}

	indexCount := d.readCount("index_count")

	var vertexCount, positionCount, texcoordCount, normalCount, tangentCount uint64
	if flags.Has(FlagInterleaved) {
		m.FirstIndex = d.readUint32("first_index")
		vertexCount = d.readCount("vertex_count")
		m.FirstVertex = d.readUint32("first_vertex")
	} else {
		positionCount = d.readCount("position_count")
		texcoordCount = d.readCount("texcoord_count")
		normalCount = d.readCount("normal_count")
		tangentCount = d.readCount("tangent_count")
	}

	var meshletCount, boundsCount, triangleCount, meshletVertexCount uint64
	if flags.Has(FlagMeshlets) {
		meshletCount = d.readCount("meshlet_count")
		boundsCount = d.readCount("meshlet_bounds_count")
		triangleCount = d.readCount("meshlet_triangle_count")
		meshletVertexCount = d.readCount("meshlet_vertex_count")
	}

	m.Indices = readSection[uint32](d, "indices", indexCount)
	if flags.Has(FlagInterleaved) {
		m.Vertices = readSection[Vertex](d, "vertices", vertexCount)
	} else {
		m.Positions = readSection[mgl32.Vec3](d, "positions", positionCount)
		m.Texcoords = readSection[mgl32.Vec2](d, "texcoords", texcoordCount)
		m.Normals = readSection[mgl32.Vec3](d, "normals", normalCount)
		m.Tangents = readSection[mgl32.Vec4](d, "tangents", tangentCount)
	}
	if flags.Has(FlagMeshlets) {
		m.Meshlets = readSection[Meshlet](d, "meshlets", meshletCount)
		m.MeshletBounds = readSection[MeshletBounds](d, "meshlet_bounds", boundsCount)
		m.MeshletTriangles = readSection[PackedTriangle](d, "meshlet_triangles", triangleCount)
		m.MeshletVertices = readSection[uint32](d, "meshlet_vertices", meshletVertexCount)
	}
	return m
}

// ReadMesh decodes a mesh file from r.
func ReadMesh(r io.Reader) (*MeshFile, error) {
	return NewDecoder(r).Decode()
}
