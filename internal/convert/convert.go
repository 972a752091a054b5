package convert

import (
	"fmt"
	"time"

	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"github.com/Faultbox/meshconv/internal/logger"
	"github.com/Faultbox/meshconv/pkg/formats"
	"github.com/Faultbox/meshconv/pkg/meshopt"
)

// MeshStats summarizes one converted sub-mesh.
type MeshStats struct {
	Mesh             int
	Primitive        int
	Name             string
	Indices          int
	Vertices         int
	Meshlets         int
	MeshletTriangles int
	CacheStats
}

// Result is a converted scene and its per-mesh statistics.
type Result struct {
	File  *formats.MeshFile
	Stats []MeshStats
}

// Converter runs the per-mesh pipeline: extract, optimize, pack and
// optionally build meshlets.
type Converter struct {
	opts Options
}

// New creates a Converter. A zero overdraw threshold selects the default.
func New(opts Options) *Converter {
	if opts.OverdrawThreshold <= 0 {
		opts.OverdrawThreshold = meshopt.DefaultOverdrawThreshold
	}
	return &Converter{opts: opts}
}

// Options returns the options the converter runs with.
func (c *Converter) Options() Options {
	return c.opts
}

// ConvertFile loads a .gltf or .glb file and converts it.
func (c *Converter) ConvertFile(path string) (*Result, error) {
	start := time.Now()
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("importing %s: %w", path, err)
	}
	logger.Info("scene imported",
		zap.String("path", path),
		zap.Int("meshes", len(doc.Meshes)),
		zap.Duration("elapsed", time.Since(start)))
	return c.Convert(doc)
}

// Convert converts every triangle primitive of every mesh in doc, in
// document order. The first failing primitive aborts the conversion.
func (c *Converter) Convert(doc *gltf.Document) (*Result, error) {
	res := &Result{File: &formats.MeshFile{Flags: c.opts.Flags()}}
	if len(doc.Meshes) == 0 {
		logger.Warn("scene contains no meshes")
	}

	var off offsets
	for mi, mesh := range doc.Meshes {
		if mesh == nil {
			continue
		}
		for pi, prim := range mesh.Primitives {
			if prim == nil {
				continue
			}
			m, stats, stage, err := c.convertPrimitive(doc, prim, &off)
			if err != nil {
				return nil, &ConversionError{Mesh: mi, Primitive: pi, Name: mesh.Name, Stage: stage, Err: err}
			}
			m.Name = mesh.Name
			m.Primitive = pi

			stats.Mesh = mi
			stats.Primitive = pi
			stats.Name = mesh.Name
			logger.Debug("mesh converted",
				zap.Int("mesh", mi),
				zap.Int("primitive", pi),
				zap.String("name", mesh.Name),
				zap.Int("indices", stats.Indices),
				zap.Int("vertices", stats.Vertices),
				zap.Int("meshlets", stats.Meshlets),
				zap.Float32("acmr_before", stats.ACMRBefore),
				zap.Float32("acmr_after", stats.ACMRAfter))

			res.File.Meshes = append(res.File.Meshes, m)
			res.Stats = append(res.Stats, stats)
		}
	}

	logger.Info("conversion finished",
		zap.Int("meshes", len(res.File.Meshes)),
		zap.Stringer("flags", res.File.Flags))
	return res, nil
}

func (c *Converter) convertPrimitive(doc *gltf.Document, prim *gltf.Primitive, off *offsets) (*formats.Mesh, MeshStats, Stage, error) {
	var stats MeshStats

	m, err := extractPrimitive(doc, prim, c.opts.Tangents)
	if err != nil {
		return nil, stats, StageExtract, err
	}

	if stats.CacheStats, err = optimizeMesh(m, c.opts.OverdrawThreshold); err != nil {
		return nil, stats, StageOptimize, err
	}

	if c.opts.Interleaved {
		interleave(m)
	}
	if err := off.assign(m, c.opts.Interleaved); err != nil {
		return nil, stats, StagePack, err
	}

	if c.opts.Meshlets {
		if err := buildMeshlets(m); err != nil {
			return nil, stats, StageMeshlets, err
		}
	}

	if c.opts.Interleaved {
		m.Positions, m.Normals, m.Texcoords, m.Tangents = nil, nil, nil, nil
	}

	stats.Indices = len(m.Indices)
	stats.Vertices = m.VertexCount(c.opts.Flags())
	stats.Meshlets = len(m.Meshlets)
	stats.MeshletTriangles = len(m.MeshletTriangles)
	return m, stats, "", nil
}
