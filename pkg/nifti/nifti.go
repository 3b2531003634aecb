// Package nifti reads and writes single-file NIfTI-1 volumes (.nii and
// .nii.gz). It covers the subset of the format the pipeline needs: header
// inspection (dimensionality, grid parity, orientation codes), voxel data as
// flat float64 arrays, and surgical in-place header edits.
//
// Field layout follows the official nifti1 header definition,
// https://nifti.nimh.nih.gov/pub/dist/src/niftilib/nifti1.h
package nifti

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// Data type codes from the nifti1 standard.
const (
	DTUint8   = 2
	DTInt16   = 4
	DTInt32   = 8
	DTFloat32 = 16
	DTFloat64 = 64
)

const (
	headerSize       = 348
	voxOffsetDefault = 352

	// byte offset of the qform_code field within the header
	qformCodeOffset = 252
)

// Header defines the structure of the NIfTI-1 header.
//
// Type translation from the C header to Go:
//
// C     Go
// -------------
// int   int32
// float float32
// short int16
// char  int8
type Header struct {
	SizeOfHdr          int32    // Must be 348
	UnusedDataType     [10]int8 // Unused
	UnusedDbName       [18]int8 // Unused
	UnusedExtents      int32    // Unused
	UnusedSessionError int16    // Unused
	UnusedRegular      int8     // Unused
	DimInfo            int8     // MRI slice ordering

	Dim           [8]int16   // Data array dimensions
	IntentP1      float32    // 1st intent parameter
	IntentP2      float32    // 2nd intent parameter
	IntentP3      float32    // 3rd intent parameter
	IntentCode    int16      // NIFTI_INTENT_* code
	DataType      int16      // Defines data type
	BitPix        int16      // Number bits/voxel
	SliceStart    int16      // First slice index
	PixDim        [8]float32 // Grid spacing
	VoxOffset     float32    // Offset into .nii file
	SclSlope      float32    // Data scaling: slope
	SclInter      float32    // Data scaling: offset
	SliceEnd      int16      // Last slice index
	SliceCode     int8       // Slice timing order
	XYZTUnits     int8       // Units of pixdim[1..4]
	CalMax        float32    // Max display intensity
	CalMin        float32    // Min display intensity
	SliceDuration float32    // Time for 1 slice
	TOffset       float32    // Time axis shift
	UnusedGlmax   int32      // Unused
	UnusedGlmin   int32      // Unused

	Descrip [80]int8 // Any text you like
	AuxFile [24]int8 // Auxiliary filename

	QFormCode int16 // NIFTI_XFORM_* code
	SFormCode int16 // NIFTI_XFORM_* code

	QuaternB float32 // Quaternion b param
	QuaternC float32 // Quaternion c param
	QuaternD float32 // Quaternion d param
	QOffsetX float32 // Quaternion x shift
	QOffsetY float32 // Quaternion y shift
	QOffsetZ float32 // Quaternion z shift

	SRowX [4]float32 // 1st row affine transform
	SRowY [4]float32 // 2nd row affine transform
	SRowZ [4]float32 // 3rd row affine transform

	IntentName [16]int8 // 'name' or meaning of data

	Magic [4]int8 // Must be "n+1\0"
}

// NDim returns the number of dimensions declared by the header.
func (h *Header) NDim() int {
	return int(h.Dim[0])
}

// SpatialDims returns the three spatial matrix dimensions.
func (h *Header) SpatialDims() [3]int {
	return [3]int{int(h.Dim[1]), int(h.Dim[2]), int(h.Dim[3])}
}

// Frames returns the length of the fourth (time) axis, at least 1.
func (h *Header) Frames() int {
	if h.NDim() >= 4 && h.Dim[4] > 1 {
		return int(h.Dim[4])
	}
	return 1
}

// AllSpatialEven reports whether all three spatial matrix dimensions are
// even. The distortion-model preset selection keys off this.
func (h *Header) AllSpatialEven() bool {
	for _, d := range h.SpatialDims() {
		if d%2 != 0 {
			return false
		}
	}
	return true
}

// nvox returns the total voxel count across space and time.
func (h *Header) nvox() int {
	n := 1
	for i := 1; i <= h.NDim(); i++ {
		if h.Dim[i] > 0 {
			n *= int(h.Dim[i])
		}
	}
	return n
}

// Image is a volume held in memory with its header and voxel data decoded
// to float64, indexed x-fastest: x + nx*(y + ny*(z + nz*t)).
type Image struct {
	Hdr       Header
	ByteOrder binary.ByteOrder
	Data      []float64
}

// Idx returns the flat index of voxel (x, y, z, t).
func (img *Image) Idx(x, y, z, t int) int {
	nx, ny, nz := int(img.Hdr.Dim[1]), int(img.Hdr.Dim[2]), int(img.Hdr.Dim[3])
	return x + nx*(y+ny*(z+nz*t))
}

// FrameSize returns the voxel count of a single 3D frame.
func (img *Image) FrameSize() int {
	d := img.Hdr.SpatialDims()
	return d[0] * d[1] * d[2]
}

// SpatialClone returns a new 3D image sharing this image's grid geometry and
// orientation, with zeroed voxel data. Derived volumes are built from this
// so they stay on the source grid.
func (img *Image) SpatialClone() *Image {
	out := &Image{Hdr: img.Hdr, ByteOrder: img.ByteOrder}
	out.Hdr.Dim[0] = 3
	out.Hdr.Dim[4] = 1
	out.Data = make([]float64, out.FrameSize())
	return out
}

// Clone returns a deep copy of the image.
func (img *Image) Clone() *Image {
	out := &Image{Hdr: img.Hdr, ByteOrder: img.ByteOrder}
	out.Data = make([]float64, len(img.Data))
	copy(out.Data, img.Data)
	return out
}

// readFileMaybeGzip reads a whole file, transparently decompressing when the
// path carries a .gz suffix.
func readFileMaybeGzip(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream of %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	return io.ReadAll(r)
}

// writeFileMaybeGzip writes a whole file, compressing when the path carries
// a .gz suffix.
func writeFileMaybeGzip(path string, b []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(f)
		if _, err := gz.Write(b); err != nil {
			f.Close()
			return err
		}
		if err := gz.Close(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}

	if _, err := f.Write(b); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// decodeHeader parses a header from raw bytes and infers the byte order of
// the file from dim[0], which must land in [1, 7] under the correct order.
func decodeHeader(b []byte) (Header, binary.ByteOrder, error) {
	if len(b) < headerSize {
		return Header{}, nil, fmt.Errorf("file too short for a nifti1 header: %d bytes", len(b))
	}

	h := Header{}
	var order binary.ByteOrder = binary.LittleEndian
	if err := binary.Read(bytes.NewReader(b), order, &h); err != nil {
		return Header{}, nil, err
	}

	if h.Dim[0] < 1 || h.Dim[0] > 7 {
		h = Header{}
		order = binary.BigEndian
		if err := binary.Read(bytes.NewReader(b), order, &h); err != nil {
			return Header{}, nil, err
		}
	}

	if h.Dim[0] < 1 || h.Dim[0] > 7 {
		return Header{}, nil, fmt.Errorf("cannot infer byte order: dim[0] not in [1, 7] under either order")
	}

	if h.SizeOfHdr != headerSize {
		return Header{}, nil, fmt.Errorf("invalid nifti1 header size %d, want %d", h.SizeOfHdr, headerSize)
	}

	// 'n+1': header and data share the file
	if h.Magic != [4]int8{110, 43, 49, 0} {
		return Header{}, nil, fmt.Errorf("invalid file magic, single-file nifti1 required")
	}

	return h, order, nil
}

// ReadHeader reads only the header of a volume.
func ReadHeader(path string) (Header, error) {
	b, err := readFileMaybeGzip(path)
	if err != nil {
		return Header{}, fmt.Errorf("reading %s: %w", path, err)
	}
	h, _, err := decodeHeader(b)
	if err != nil {
		return Header{}, fmt.Errorf("parsing header of %s: %w", path, err)
	}
	return h, nil
}

// Load reads a full volume into memory, decoding its voxel data to float64
// and applying the header's scl slope/intercept when set.
func Load(path string) (*Image, error) {
	b, err := readFileMaybeGzip(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	h, order, err := decodeHeader(b)
	if err != nil {
		return nil, fmt.Errorf("parsing header of %s: %w", path, err)
	}

	offset := int(h.VoxOffset)
	if offset < headerSize {
		offset = voxOffsetDefault
	}

	nvox := h.nvox()
	need := nvox * int(h.BitPix) / 8
	if len(b) < offset+need {
		return nil, fmt.Errorf("%s: voxel data truncated, need %d bytes past offset %d", path, need, offset)
	}
	raw := b[offset : offset+need]

	data := make([]float64, nvox)
	switch h.DataType {
	case DTUint8:
		for i := 0; i < nvox; i++ {
			data[i] = float64(raw[i])
		}
	case DTInt16:
		for i := 0; i < nvox; i++ {
			data[i] = float64(int16(order.Uint16(raw[2*i:])))
		}
	case DTInt32:
		for i := 0; i < nvox; i++ {
			data[i] = float64(int32(order.Uint32(raw[4*i:])))
		}
	case DTFloat32:
		for i := 0; i < nvox; i++ {
			data[i] = float64(math.Float32frombits(order.Uint32(raw[4*i:])))
		}
	case DTFloat64:
		for i := 0; i < nvox; i++ {
			data[i] = math.Float64frombits(order.Uint64(raw[8*i:]))
		}
	default:
		return nil, fmt.Errorf("%s: unsupported nifti1 datatype code %d", path, h.DataType)
	}

	// scl_slope == 0 means no scaling
	if h.SclSlope != 0 && !(h.SclSlope == 1 && h.SclInter == 0) {
		slope, inter := float64(h.SclSlope), float64(h.SclInter)
		for i := range data {
			data[i] = slope*data[i] + inter
		}
	}

	return &Image{Hdr: h, ByteOrder: order, Data: data}, nil
}

// Save writes a volume to disk as float32 little-endian, which every tool in
// the pipeline accepts. The scl scaling is folded into the data, so slope
// and intercept are reset.
func (img *Image) Save(path string) error {
	h := img.Hdr
	h.SizeOfHdr = headerSize
	h.DataType = DTFloat32
	h.BitPix = 32
	h.VoxOffset = voxOffsetDefault
	h.SclSlope = 1
	h.SclInter = 0
	h.Magic = [4]int8{110, 43, 49, 0}

	if got, want := len(img.Data), h.nvox(); got != want {
		return fmt.Errorf("saving %s: data has %d voxels, header declares %d", path, got, want)
	}

	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, &h); err != nil {
		return err
	}
	// pad to vox_offset
	buf.Write(make([]byte, voxOffsetDefault-headerSize))

	raw := make([]byte, 4*len(img.Data))
	for i, v := range img.Data {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(float32(v)))
	}
	buf.Write(raw)

	return writeFileMaybeGzip(path, buf.Bytes())
}

// ClearQForm rewrites a volume in place with its qform_code forced to 0,
// leaving every other byte untouched. Used when both orientation codes are
// set to 1 and downstream tools could prefer the redundant record.
func ClearQForm(path string) error {
	b, err := readFileMaybeGzip(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	_, order, err := decodeHeader(b)
	if err != nil {
		return fmt.Errorf("parsing header of %s: %w", path, err)
	}

	order.PutUint16(b[qformCodeOffset:qformCodeOffset+2], 0)

	return writeFileMaybeGzip(path, b)
}
