// Package report writes a YAML summary of a conversion run.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/meshconv/internal/convert"
)

// BuildID identifies one conversion run.
type BuildID string

// NewBuildID returns a random build ID.
func NewBuildID() BuildID {
	return BuildID(uuid.NewString())
}

// Report describes one conversion run.
type Report struct {
	BuildID     BuildID       `yaml:"build_id"`
	GeneratedAt time.Time     `yaml:"generated_at"`
	Input       string        `yaml:"input"`
	Output      string        `yaml:"output"`
	Flags       string        `yaml:"flags"`
	FileSize    int64         `yaml:"file_size"`
	Elapsed     time.Duration `yaml:"elapsed"`
	Totals      Totals        `yaml:"totals"`
	Meshes      []Mesh        `yaml:"meshes"`
}

// Totals sums the per-mesh counts.
type Totals struct {
	Meshes    int `yaml:"meshes"`
	Indices   int `yaml:"indices"`
	Vertices  int `yaml:"vertices"`
	Meshlets  int `yaml:"meshlets"`
	Triangles int `yaml:"triangles"`
}

// Mesh is the report entry of one sub-mesh.
type Mesh struct {
	Mesh             int     `yaml:"mesh"`
	Primitive        int     `yaml:"primitive"`
	Name             string  `yaml:"name,omitempty"`
	Indices          int     `yaml:"indices"`
	Vertices         int     `yaml:"vertices"`
	Meshlets         int     `yaml:"meshlets,omitempty"`
	MeshletTriangles int     `yaml:"meshlet_triangles,omitempty"`
	ACMRBefore       float32 `yaml:"acmr_before"`
	ACMRAfter        float32 `yaml:"acmr_after"`
	ATVRAfter        float32 `yaml:"atvr_after"`
}

// New builds a report for a finished conversion. The output file must exist.
func New(input, output string, res *convert.Result, elapsed time.Duration) (*Report, error) {
	info, err := os.Stat(output)
	if err != nil {
		return nil, fmt.Errorf("stat output: %w", err)
	}

	r := &Report{
		BuildID:     NewBuildID(),
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
		Input:       input,
		Output:      output,
		Flags:       res.File.Flags.String(),
		FileSize:    info.Size(),
		Elapsed:     elapsed,
	}

	for _, s := range res.Stats {
		r.Meshes = append(r.Meshes, Mesh{
			Mesh:             s.Mesh,
			Primitive:        s.Primitive,
			Name:             s.Name,
			Indices:          s.Indices,
			Vertices:         s.Vertices,
			Meshlets:         s.Meshlets,
			MeshletTriangles: s.MeshletTriangles,
			ACMRBefore:       s.ACMRBefore,
			ACMRAfter:        s.ACMRAfter,
			ATVRAfter:        s.ATVRAfter,
		})
		r.Totals.Indices += s.Indices
		r.Totals.Vertices += s.Vertices
		r.Totals.Meshlets += s.Meshlets
		r.Totals.Triangles += s.Indices / 3
	}
	r.Totals.Meshes = len(r.Meshes)
	return r, nil
}

// SaveTo writes the report as YAML.
func (r *Report) SaveTo(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Load reads a report written by SaveTo.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	return &r, nil
}
