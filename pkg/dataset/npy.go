package dataset

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/x448/float16"

	"ctaugment/internal/models"
)

var npyMagic = []byte("\x93NUMPY")

const (
	// maxHeaderLen bounds the header of v2/v3 files, whose length field is 32 bits
	maxHeaderLen = 1 << 20

	// maxPatchVoxels bounds a single patch read from a header
	maxPatchVoxels = 1 << 28

	// preallocPatches caps the batch capacity reserved from a header count
	preallocPatches = 1024
)

// DType is the little-endian NumPy element type of an .npy file
type DType string

const (
	Float16 DType = "<f2"
	Float32 DType = "<f4"
	Float64 DType = "<f8"
)

// ParseDType maps a configuration name (float16, float32, float64) to a DType
func ParseDType(name string) (DType, error) {
	switch name {
	case "float16":
		return Float16, nil
	case "float32":
		return Float32, nil
	case "float64":
		return Float64, nil
	}
	return "", errors.Errorf("unsupported dtype %q (want float16, float32 or float64)", name)
}

func (d DType) valid() bool {
	return d == Float16 || d == Float32 || d == Float64
}

var (
	descrPattern   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	fortranPattern = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	shapePattern   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// ReadNPY decodes a NumPy array of shape (N, d0, d1, d2) into a batch of N
// patches. A 3D array is read as a single patch. Only little-endian float16,
// float32 and float64 arrays in C order are supported.
func ReadNPY(r io.Reader) (models.Batch, error) {
	br := bufio.NewReader(r)

	preamble := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(br, preamble); err != nil {
		return nil, errors.Wrap(err, "reading npy preamble")
	}
	if !bytes.Equal(preamble[:len(npyMagic)], npyMagic) {
		return nil, errors.New("not an npy file: bad magic")
	}

	var headerLen int
	switch major := preamble[len(npyMagic)]; major {
	case 1:
		var n uint16
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, errors.Wrap(err, "reading npy header length")
		}
		headerLen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, errors.Wrap(err, "reading npy header length")
		}
		headerLen = int(n)
	default:
		return nil, errors.Errorf("unsupported npy version %d", major)
	}
	if headerLen > maxHeaderLen {
		return nil, errors.Errorf("npy header of %d bytes is too long", headerLen)
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, errors.Wrap(err, "reading npy header")
	}
	descr, dims, err := parseHeader(string(header))
	if err != nil {
		return nil, err
	}

	for _, d := range dims {
		if d < 0 {
			return nil, errors.Errorf("negative dimension in npy shape %v", dims)
		}
	}

	var shape models.Shape
	n := 1
	switch len(dims) {
	case 3:
		shape = models.Shape{dims[0], dims[1], dims[2]}
	case 4:
		n = dims[0]
		shape = models.Shape{dims[1], dims[2], dims[3]}
	default:
		return nil, errors.Errorf("expected a 3D or 4D array, got shape %v", dims)
	}
	if !shape.Valid() && n > 0 {
		return nil, errors.Errorf("invalid patch shape %s", shape)
	}
	voxels := 1
	for _, d := range shape {
		if d > 0 && voxels > maxPatchVoxels/d {
			return nil, errors.Errorf("patch shape %s exceeds %d voxels", shape, maxPatchVoxels)
		}
		voxels *= d
	}

	// Patches are appended as they are read, so a header count larger than
	// the payload ends in a read error rather than a huge allocation.
	batch := make(models.Batch, 0, min(n, preallocPatches))
	for i := 0; i < n; i++ {
		p := models.NewPatch(shape)
		switch descr {
		case Float16:
			buf := make([]uint16, len(p.Data))
			if err := binary.Read(br, binary.LittleEndian, buf); err != nil {
				return nil, errors.Wrapf(err, "reading patch %d", i)
			}
			for j, v := range buf {
				p.Data[j] = float64(float16.Frombits(v).Float32())
			}
		case Float32:
			buf := make([]float32, len(p.Data))
			if err := binary.Read(br, binary.LittleEndian, buf); err != nil {
				return nil, errors.Wrapf(err, "reading patch %d", i)
			}
			for j, v := range buf {
				p.Data[j] = float64(v)
			}
		case Float64:
			if err := binary.Read(br, binary.LittleEndian, p.Data); err != nil {
				return nil, errors.Wrapf(err, "reading patch %d", i)
			}
		}
		batch = append(batch, p)
	}
	return batch, nil
}

func parseHeader(header string) (DType, []int, error) {
	m := descrPattern.FindStringSubmatch(header)
	if m == nil {
		return "", nil, errors.Errorf("npy header has no descr: %q", header)
	}
	descr := DType(m[1])
	if !descr.valid() {
		return "", nil, errors.Errorf("unsupported npy dtype %q (want <f2, <f4 or <f8)", descr)
	}

	if m := fortranPattern.FindStringSubmatch(header); m != nil && m[1] == "True" {
		return "", nil, errors.New("fortran-ordered npy arrays are not supported")
	}

	m = shapePattern.FindStringSubmatch(header)
	if m == nil {
		return "", nil, errors.Errorf("npy header has no shape: %q", header)
	}
	var dims []int
	for _, field := range strings.Split(m[1], ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		d, err := strconv.Atoi(field)
		if err != nil {
			return "", nil, errors.Wrapf(err, "parsing npy shape %q", m[1])
		}
		dims = append(dims, d)
	}
	return descr, dims, nil
}

// WriteNPY encodes the batch as a version 1.0 NumPy array of shape
// (N, d0, d1, d2) with elements of the given type.
func WriteNPY(w io.Writer, batch models.Batch, dtype DType) error {
	if !dtype.valid() {
		return errors.Errorf("unsupported npy dtype %q", dtype)
	}
	if err := batch.CheckUniform(); err != nil {
		return err
	}
	shape := batch.Shape()
	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%d, %d, %d, %d), }",
		dtype, len(batch), shape[0], shape[1], shape[2])

	// Pad so the data starts on a 64-byte boundary; the header ends with a newline.
	total := len(npyMagic) + 2 + 2 + len(header) + 1
	if rem := total % 64; rem != 0 {
		header += strings.Repeat(" ", 64-rem)
	}
	header += "\n"
	if len(header) > math.MaxUint16 {
		return errors.New("npy header too long")
	}

	bw := bufio.NewWriter(w)
	bw.Write(npyMagic)
	bw.Write([]byte{1, 0})
	binary.Write(bw, binary.LittleEndian, uint16(len(header)))
	bw.WriteString(header)

	for i, p := range batch {
		var err error
		switch dtype {
		case Float16:
			buf := make([]uint16, len(p.Data))
			for j, v := range p.Data {
				buf[j] = float16.Fromfloat32(float32(v)).Bits()
			}
			err = binary.Write(bw, binary.LittleEndian, buf)
		case Float32:
			buf := make([]float32, len(p.Data))
			for j, v := range p.Data {
				buf[j] = float32(v)
			}
			err = binary.Write(bw, binary.LittleEndian, buf)
		default:
			err = binary.Write(bw, binary.LittleEndian, p.Data)
		}
		if err != nil {
			return errors.Wrapf(err, "writing patch %d", i)
		}
	}
	return bw.Flush()
}

// LoadNPY reads a batch from an .npy file
func LoadNPY(path string) (models.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	batch, err := ReadNPY(f)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	return batch, nil
}

// SaveNPY writes a batch to an .npy file
func SaveNPY(path string, batch models.Batch, dtype DType) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteNPY(f, batch, dtype); err != nil {
		f.Close()
		return errors.Wrapf(err, "saving %s", path)
	}
	return f.Close()
}
