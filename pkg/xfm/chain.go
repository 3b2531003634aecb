package xfm

import (
	"fmt"

	"boldprep/internal/models"
)

// Step is one element of a resampling transform chain: a stored transform,
// optionally applied inverted. A chain is handed to the resampler as a
// whole so each move between spaces costs a single interpolation.
type Step struct {
	// Path is the transform file on disk
	Path string

	// Invert applies the inverse of the stored transform
	Invert bool
}

// Composer chains the two estimated transforms of a run. Chains are listed
// in resampler stack order: the last step listed is applied first. Inverse
// chains reuse the same transform files tagged inverted, in reverse order,
// so the forward and inverse paths stay exact mirrors of each other.
type Composer struct {
	// FuncToStruct maps functional space into structural space
	FuncToStruct models.TransformHandle

	// StructToAtlas maps structural space into atlas space
	StructToAtlas models.TransformHandle
}

// Forward returns the chain that resamples a volume from src into dst,
// moving up the space hierarchy.
func (c *Composer) Forward(src, dst models.Space) ([]Step, error) {
	switch {
	case src == models.SpaceFunctional && dst == models.SpaceStructural:
		return []Step{{Path: c.FuncToStruct.Path}}, nil
	case src == models.SpaceStructural && dst == models.SpaceAtlas:
		return []Step{{Path: c.StructToAtlas.Path}}, nil
	case src == models.SpaceFunctional && dst == models.SpaceAtlas:
		return []Step{
			{Path: c.StructToAtlas.Path},
			{Path: c.FuncToStruct.Path},
		}, nil
	}
	return nil, fmt.Errorf("no forward chain from %s to %s", src, dst)
}

// Inverse returns the chain that resamples a volume from src back down into
// dst, applying the same transforms inverted in reverse order.
func (c *Composer) Inverse(src, dst models.Space) ([]Step, error) {
	switch {
	case src == models.SpaceStructural && dst == models.SpaceFunctional:
		return []Step{{Path: c.FuncToStruct.Path, Invert: true}}, nil
	case src == models.SpaceAtlas && dst == models.SpaceStructural:
		return []Step{{Path: c.StructToAtlas.Path, Invert: true}}, nil
	case src == models.SpaceAtlas && dst == models.SpaceFunctional:
		return []Step{
			{Path: c.FuncToStruct.Path, Invert: true},
			{Path: c.StructToAtlas.Path, Invert: true},
		}, nil
	}
	return nil, fmt.Errorf("no inverse chain from %s to %s", src, dst)
}
