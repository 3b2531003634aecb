package models

import "fmt"

// Space identifies one of the three named coordinate spaces a volume
// can live in during a run.
type Space string

const (
	// SpaceFunctional is the native space of the BOLD acquisition
	SpaceFunctional Space = "functional"

	// SpaceStructural is the native space of the T1 acquisition
	SpaceStructural Space = "structural"

	// SpaceAtlas is the standard reference space all subjects are aligned into
	SpaceAtlas Space = "atlas"
)

// PhaseEncoding is one of the six canonical phase-encoding direction codes
// read from the BOLD sidecar.
type PhaseEncoding string

// phaseVectors maps each canonical code to its signed 3-axis unit vector.
// The mapping is total over the six codes and exact.
var phaseVectors = map[PhaseEncoding][3]int{
	"i":  {1, 0, 0},
	"i-": {-1, 0, 0},
	"j":  {0, 1, 0},
	"j-": {0, -1, 0},
	"k":  {0, 0, 1},
	"k-": {0, 0, -1},
}

// ParsePhaseEncoding validates a raw sidecar value against the six canonical
// codes. Any other value is a hard validation failure.
func ParsePhaseEncoding(code string) (PhaseEncoding, error) {
	pe := PhaseEncoding(code)
	if _, ok := phaseVectors[pe]; !ok {
		return "", &ValidationError{
			Reason: fmt.Sprintf("unrecognized PhaseEncodingDirection %q, expected one of i, i-, j, j-, k, k-", code),
		}
	}
	return pe, nil
}

// Vector returns the signed unit vector for a canonical code.
func (pe PhaseEncoding) Vector() [3]int {
	return phaseVectors[pe]
}

// VolumeHandle is a reference to a volume on disk together with the
// coordinate space it lives in. Dimensionality and orientation metadata are
// discovered from the file itself; operations that require a specific
// dimensionality must check it and fail, never coerce.
type VolumeHandle struct {
	// Path is the absolute location of the volume on disk
	Path string

	// Space is the coordinate space the volume lives in
	Space Space
}

// TransformHandle is a geometric mapping between two named coordinate
// spaces. Transforms are directional and composable in a fixed order.
type TransformHandle struct {
	// Path is the location of the transform file on disk
	Path string

	// From is the source space of the forward mapping
	From Space

	// To is the destination space of the forward mapping
	To Space
}

// FoldResult is the prediction from one ensemble member, a volume in atlas
// space keyed by its fold index.
type FoldResult struct {
	// Fold is the 1-based index of the ensemble member
	Fold int

	// Volume is the predicted volume produced by this fold
	Volume VolumeHandle
}
