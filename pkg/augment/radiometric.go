package augment

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"

	"ctaugment/internal/models"
)

// ShiftAndGradient is one draw of the radiometric augmentation: a dark and a
// bright target level, and the strengths of two smooth gradient fields.
type ShiftAndGradient struct {
	ShiftDark, ShiftBright float64
	GradDark, GradBright   float64

	// Shape is the patch shape the gradient fields were built for
	Shape models.Shape

	// FieldDark and FieldBright are gradient fields in [-1, 1] with the patch shape.
	FieldDark, FieldBright []float64
}

// DrawShiftAndGradient draws the four levels uniformly from their ranges and
// builds two independent gradient fields for the given shape.
func DrawShiftAndGradient(rng *rand.Rand, shape models.Shape, params Params) ShiftAndGradient {
	uniform := func(r Range) float64 {
		return distuv.Uniform{Min: r.Lo, Max: r.Hi, Src: rng}.Rand()
	}
	sg := ShiftAndGradient{
		ShiftDark:   uniform(params.ShiftDark),
		ShiftBright: uniform(params.ShiftBright),
		GradDark:    uniform(params.GradDark),
		GradBright:  uniform(params.GradBright),
		Shape:       shape,
	}
	sg.FieldDark = RandomGradient(rng, shape)
	sg.FieldBright = RandomGradient(rng, shape)
	return sg
}

// Apply returns a new patch where each voxel p, assumed normalized to [0, 1], becomes
//
//	shiftDark*(1-p) + shiftBright*p + gradDark*(1-p)*fieldDark + gradBright*p*fieldBright
func (sg ShiftAndGradient) Apply(p models.Patch) (models.Patch, error) {
	if p.Shape != sg.Shape || len(p.Data) != sg.Shape.Size() ||
		len(sg.FieldDark) != len(p.Data) || len(sg.FieldBright) != len(p.Data) {
		return models.Patch{}, errors.Wrapf(ErrBatchMismatch,
			"gradient fields drawn for %s do not fit patch %s", sg.Shape, p.Shape)
	}
	out := models.NewPatch(p.Shape)
	for i, v := range p.Data {
		dark := 1 - v
		out.Data[i] = sg.ShiftDark*dark + sg.ShiftBright*v +
			sg.GradDark*dark*sg.FieldDark[i] + sg.GradBright*v*sg.FieldBright[i]
	}
	return out, nil
}

// AddRandShiftAndGradient draws one ShiftAndGradient and applies it to every
// patch of the group. All patches must share the shape of the first one.
func AddRandShiftAndGradient(rng *rand.Rand, group []models.Patch, params Params) ([]models.Patch, error) {
	if len(group) == 0 {
		return nil, ErrEmptyBatch
	}
	sg := DrawShiftAndGradient(rng, group[0].Shape, params)
	out := make([]models.Patch, len(group))
	for i, p := range group {
		q, err := sg.Apply(p)
		if err != nil {
			return nil, errors.Wrapf(err, "shifting patch %d of group", i)
		}
		out[i] = q
	}
	return out, nil
}

// RandomGradient builds a linear intensity ramp with a random direction over a
// volume of the given shape, scaled to [-1, 1].
//
// Each axis n gets coordinates spaced evenly over [-n, n]; the three coordinate
// grids are weighted by a standard normal 3-vector and summed. A field that is
// constant (for example a 1x1x1 shape) carries no gradient and is returned as zeros.
func RandomGradient(rng *rand.Rand, shape models.Shape) []float64 {
	ramps := [3][]float64{}
	for axis, n := range shape {
		ramps[axis] = linspace(-float64(n), float64(n), n)
	}

	identity := mat.NewSymDense(3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	normal, ok := distmv.NewNormal([]float64{0, 0, 0}, identity, rng)
	if !ok {
		// The identity covariance is always positive definite.
		panic("augment: standard normal covariance rejected")
	}
	w := normal.Rand(nil)

	field := make([]float64, shape.Size())
	for i, r0 := range ramps[0] {
		for j, r1 := range ramps[1] {
			base := shape.Index(i, j, 0)
			for k, r2 := range ramps[2] {
				field[base+k] = w[0]*r0 + w[1]*r1 + w[2]*r2
			}
		}
	}
	if len(field) == 0 {
		return field
	}

	floats.AddConst(-floats.Min(field), field)
	m := floats.Max(field)
	if m == 0 {
		for i := range field {
			field[i] = 0
		}
		return field
	}
	for i, v := range field {
		field[i] = 2*v/m - 1
	}
	return field
}

// linspace mirrors numpy.linspace with the endpoint included; a single sample is start.
func linspace(start, stop float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// RandShift returns a new patch mapping intensity 0 to dark and 1 to bright
func RandShift(p models.Patch, dark, bright float64) models.Patch {
	out := p.Clone()
	floats.Scale(bright-dark, out.Data)
	floats.AddConst(dark, out.Data)
	return out
}
