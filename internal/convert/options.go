// Package convert turns glTF scenes into compiled mesh files: it extracts
// every triangle primitive, optimizes it for the GPU, optionally interleaves
// its vertices and clusters it into meshlets.
package convert

import (
	"github.com/Faultbox/meshconv/pkg/formats"
	"github.com/Faultbox/meshconv/pkg/meshopt"
)

// Options selects the optional outputs of a conversion.
type Options struct {
	Interleaved bool // Emit interleaved vertex records
	Meshlets    bool // Build meshlets
	Tangents    bool // Generate a tangent stream

	// OverdrawThreshold bounds the cache efficiency the overdraw pass may
	// trade away; 1.05 allows a 5% ACMR regression.
	OverdrawThreshold float32
}

// DefaultOptions returns interleaved output with the default threshold.
func DefaultOptions() Options {
	return Options{
		Interleaved:       true,
		OverdrawThreshold: meshopt.DefaultOverdrawThreshold,
	}
}

// Flags returns the file flags for the selected outputs.
func (o Options) Flags() formats.Flags {
	var f formats.Flags
	if o.Interleaved {
		f |= formats.FlagInterleaved
	}
	if o.Meshlets {
		f |= formats.FlagMeshlets
	}
	return f
}
