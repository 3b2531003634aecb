// Package xfm handles the geometric transforms that move volumes between
// the functional, structural, and atlas spaces: reading and writing the two
// on-disk matrix conventions the registration tools disagree on, converting
// between them, and composing transform chains so every move between spaces
// costs exactly one resampling.
package xfm

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"boldprep/pkg/nifti"
)

// Affine is a 4x4 homogeneous transform.
type Affine struct {
	M *mat.Dense
}

// Identity returns the identity transform.
func Identity() *Affine {
	a := &Affine{M: mat.NewDense(4, 4, nil)}
	for i := 0; i < 4; i++ {
		a.M.Set(i, i, 1)
	}
	return a
}

// Compose returns a*b, the transform that applies b first and a second.
// Composition is never commutative; callers own the order.
func Compose(a, b *Affine) *Affine {
	out := &Affine{M: mat.NewDense(4, 4, nil)}
	out.M.Mul(a.M, b.M)
	return out
}

// Inverse returns the inverse transform.
func (a *Affine) Inverse() (*Affine, error) {
	out := &Affine{M: mat.NewDense(4, 4, nil)}
	if err := out.M.Inverse(a.M); err != nil {
		return nil, fmt.Errorf("transform is singular: %w", err)
	}
	return out, nil
}

// Geometry is the voxel-grid geometry a transform convention depends on:
// matrix dimensions, voxel sizes, and the voxel-to-world affine.
type Geometry struct {
	Dims    [3]int
	PixDim  [3]float64
	ToWorld *Affine
}

// GeometryOf extracts the grid geometry from a NIfTI header, preferring the
// sform affine and falling back to a diagonal spacing matrix when no sform
// is set.
func GeometryOf(h nifti.Header) Geometry {
	g := Geometry{
		Dims:   h.SpatialDims(),
		PixDim: [3]float64{float64(h.PixDim[1]), float64(h.PixDim[2]), float64(h.PixDim[3])},
	}

	if h.SFormCode > 0 {
		g.ToWorld = &Affine{M: mat.NewDense(4, 4, []float64{
			float64(h.SRowX[0]), float64(h.SRowX[1]), float64(h.SRowX[2]), float64(h.SRowX[3]),
			float64(h.SRowY[0]), float64(h.SRowY[1]), float64(h.SRowY[2]), float64(h.SRowY[3]),
			float64(h.SRowZ[0]), float64(h.SRowZ[1]), float64(h.SRowZ[2]), float64(h.SRowZ[3]),
			0, 0, 0, 1,
		})}
		return g
	}

	g.ToWorld = Identity()
	g.ToWorld.M.Set(0, 0, g.PixDim[0])
	g.ToWorld.M.Set(1, 1, g.PixDim[1])
	g.ToWorld.M.Set(2, 2, g.PixDim[2])
	return g
}

// sampling returns the FSL scaled-voxel matrix for a grid: voxel indices
// scaled by voxel size, with the x axis reversed when the grid's
// voxel-to-world affine has positive determinant. This reversal is what
// makes the two conventions disagree on handedness.
func (g Geometry) sampling() *Affine {
	s := Identity()
	s.M.Set(0, 0, g.PixDim[0])
	s.M.Set(1, 1, g.PixDim[1])
	s.M.Set(2, 2, g.PixDim[2])

	if mat.Det(g.ToWorld.M) > 0 {
		flip := Identity()
		flip.M.Set(0, 0, -1)
		flip.M.Set(0, 3, float64(g.Dims[0]-1))
		s = Compose(s, flip)
	}
	return s
}

// lps converts a world transform between the RAS and LPS conventions. The
// conversion matrix is its own inverse.
func lps(a *Affine) *Affine {
	d := Identity()
	d.M.Set(0, 0, -1)
	d.M.Set(1, 1, -1)
	return Compose(d, Compose(a, d))
}

// ConvertFSLToITK reconciles a registration matrix produced in the FSL
// convention (scaled-voxel coordinates, RAS handedness) into the ITK
// convention the atlas aligner and resampler consume (physical points, LPS,
// fixed-to-moving direction). The argument order is mandatory and mirrors
// the underlying tool contract: reference geometry, moving geometry, the
// matrix, then the explicit direction flag. With forward set, the result
// resamples the moving volume onto the reference grid.
func ConvertFSLToITK(ref, mov Geometry, fsl *Affine, forward bool) (*Affine, error) {
	refS, err := ref.sampling().Inverse()
	if err != nil {
		return nil, fmt.Errorf("reference grid: %w", err)
	}
	movW, err := mov.ToWorld.Inverse()
	if err != nil {
		return nil, fmt.Errorf("moving grid: %w", err)
	}

	// world(mov) -> world(ref), RAS
	ras := Compose(ref.ToWorld, Compose(refS, Compose(fsl, Compose(mov.sampling(), movW))))

	if forward {
		// ITK resampling transforms map fixed-space points into the
		// moving volume, the opposite direction of the FSL estimate.
		ras, err = ras.Inverse()
		if err != nil {
			return nil, err
		}
	}

	return lps(ras), nil
}

// ReadFSLMat reads a 4x4 whitespace-separated matrix file in the FSL
// convention.
func ReadFSLMat(path string) (*Affine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var vals []float64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		for _, tok := range strings.Fields(sc.Text()) {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: bad matrix element %q", path, tok)
			}
			vals = append(vals, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(vals) != 16 {
		return nil, fmt.Errorf("%s: expected 16 matrix elements, got %d", path, len(vals))
	}

	return &Affine{M: mat.NewDense(4, 4, vals)}, nil
}

// WriteITK writes a transform in the ITK text format.
func WriteITK(path string, a *Affine) error {
	var b strings.Builder
	b.WriteString("#Insight Transform File V1.0\n")
	b.WriteString("#Transform 0\n")
	b.WriteString("Transform: MatrixOffsetTransformBase_double_3_3\n")
	b.WriteString("Parameters:")
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			fmt.Fprintf(&b, " %.17g", a.M.At(i, j))
		}
	}
	for i := 0; i < 3; i++ {
		fmt.Fprintf(&b, " %.17g", a.M.At(i, 3))
	}
	b.WriteString("\nFixedParameters: 0 0 0\n")

	return os.WriteFile(path, []byte(b.String()), 0644)
}

// ReadITK reads a transform in the ITK text format.
func ReadITK(path string) (*Affine, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	for _, line := range strings.Split(string(raw), "\n") {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), "Parameters:")
		if !ok {
			continue
		}

		toks := strings.Fields(rest)
		if len(toks) != 12 {
			return nil, fmt.Errorf("%s: expected 12 transform parameters, got %d", path, len(toks))
		}

		vals := make([]float64, 12)
		for i, tok := range toks {
			vals[i], err = strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: bad parameter %q", path, tok)
			}
		}

		a := Identity()
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				a.M.Set(i, j, vals[3*i+j])
			}
			a.M.Set(i, 3, vals[9+i])
		}
		return a, nil
	}

	return nil, fmt.Errorf("%s: no Parameters line found", path)
}
