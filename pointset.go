package kgs

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// variable holds one variable's realisations as a dense row-major copy of
// the caller's matrix. Realisation i, dimension d is at data[i*dim+d].
// Noise and standardisation mutate the copy, never the caller's data.
type variable struct {
	rows int
	dim  int
	data []float64
}

// newVariable copies the realisations of m. Column vectors are accepted as
// one-dimensional variables.
func newVariable(op, name string, m mat.Matrix) (variable, error) {
	if m == nil {
		return variable{}, NewShapeError(op, name+" must not be nil")
	}
	rows, dim := m.Dims()
	if rows == 0 || dim == 0 {
		return variable{}, NewShapeError(op,
			fmt.Sprintf("%s has empty shape %dx%d", name, rows, dim))
	}
	v := variable{rows: rows, dim: dim, data: make([]float64, rows*dim)}
	for i := 0; i < rows; i++ {
		for d := 0; d < dim; d++ {
			v.data[i*dim+d] = m.At(i, d)
		}
	}
	return v, nil
}

// window returns the realisations [start, stop), sharing storage with v.
func (v variable) window(start, stop int) variable {
	return variable{
		rows: stop - start,
		dim:  v.dim,
		data: v.data[start*v.dim : stop*v.dim],
	}
}

// addNoise perturbs every value with Gaussian noise of the given scale.
// Adding noise breaks ties between identical realisations, which the
// neighbour counting is sensitive to.
func (v variable) addNoise(rng *rand.Rand, scale float64) {
	if scale <= 0 {
		return
	}
	for i := range v.data {
		v.data[i] += rng.NormFloat64() * scale
	}
}

// standardise z-scores every dimension in place. Dimensions with zero
// variance are only centred.
func (v variable) standardise() {
	col := make([]float64, v.rows)
	for d := 0; d < v.dim; d++ {
		for i := 0; i < v.rows; i++ {
			col[i] = v.data[i*v.dim+d]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		for i := 0; i < v.rows; i++ {
			v.data[i*v.dim+d] = (v.data[i*v.dim+d] - mean) / std
		}
	}
}

// checkRange validates that all coordinates are finite and stay clear of
// the padding sentinel region.
func checkRange(op string, vars ...variable) error {
	for _, v := range vars {
		for _, x := range v.data {
			if math.IsNaN(x) {
				return NewDataError(op, "data contains NaN values")
			}
			if math.Abs(x) > maxAbsCoordinate {
				return NewDataError(op, fmt.Sprintf(
					"coordinate magnitude %.6g exceeds the supported maximum %.6g",
					math.Abs(x), maxAbsCoordinate))
			}
		}
	}
	return nil
}

// applyMILag shifts var2 against var1 by lag samples and trims both to the
// overlapping window, so that realisation i of var1 is paired with
// realisation i+lag of var2.
func applyMILag(op string, v1, v2 variable, lag int) (variable, variable, error) {
	if lag == 0 {
		return v1, v2, nil
	}
	if lag >= v1.rows {
		return variable{}, variable{}, NewShapeError(op,
			fmt.Sprintf("lag %d leaves none of the %d realisations", lag, v1.rows))
	}
	return v1.window(0, v1.rows-lag), v2.window(lag, v2.rows), nil
}

// totalDim returns the pointset dimension of the concatenated variables.
func totalDim(vars ...variable) int {
	dim := 0
	for _, v := range vars {
		dim += v.dim
	}
	return dim
}

// assemblePointset concatenates the variables into a padded column-major
// pointset. Coordinate d of point i lands at index d*paddedLen+i, with the
// variables occupying contiguous column ranges in argument order, so each
// marginal space is a contiguous sub-region of the buffer. Padding rows are
// filled with jittered sentinel values.
//
// All variables must have the same number of rows, checked by the caller.
func assemblePointset(vars []variable, paddedLen int, rng *rand.Rand) []float32 {
	points := make([]float32, totalDim(vars...)*paddedLen)
	colBase := 0
	for _, v := range vars {
		for d := 0; d < v.dim; d++ {
			col := points[(colBase+d)*paddedLen : (colBase+d+1)*paddedLen]
			for i := 0; i < v.rows; i++ {
				col[i] = float32(v.data[i*v.dim+d])
			}
			fillPadding(col, v.rows, rng)
		}
		colBase += v.dim
	}
	return points
}
