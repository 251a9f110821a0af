package kgs

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// MIEstimator estimates the mutual information between two multivariate
// continuous variables with the Kraskov-Grassberger-Stoegbauer estimator,
// running the neighbour searches on a compute device.
type MIEstimator struct {
	*estimator
}

// NewMIEstimator creates an MI estimator. It selects the compute device
// and builds the search kernels once; the estimator is then reused across
// Estimate calls.
func NewMIEstimator(opts ...Option) (*MIEstimator, error) {
	core, err := newEstimator("NewMIEstimator", opts)
	if err != nil {
		return nil, err
	}
	return &MIEstimator{estimator: core}, nil
}

// Estimate returns the mutual information between var1 and var2 in nats.
// Rows of the input matrices are realisations, columns are dimensions; a
// column vector is a one-dimensional variable. The realisations of both
// variables are split into nChunks trial chunks of equal length, each
// estimated independently, and Result.Values holds one value per chunk
// (or one per realisation with LocalValues).
//
// With a configured MI lag, realisation i of var1 is paired with
// realisation i+lag of var2 and the overlap is chunked.
func (e *MIEstimator) Estimate(var1, var2 mat.Matrix, nChunks int) (*Result, error) {
	const op = "MIEstimator.Estimate"

	v1, err := newVariable(op, "var1", var1)
	if err != nil {
		return nil, err
	}
	v2, err := newVariable(op, "var2", var2)
	if err != nil {
		return nil, err
	}
	if v2.rows != v1.rows {
		return nil, NewShapeError(op, fmt.Sprintf(
			"var1 has %d realisations but var2 has %d", v1.rows, v2.rows))
	}

	v1, v2, err = applyMILag(op, v1, v2, e.settings.LagMI)
	if err != nil {
		return nil, err
	}

	if e.settings.Normalise {
		v1.standardise()
		v2.standardise()
	}
	if err := checkRange(op, v1, v2); err != nil {
		return nil, err
	}
	v1.addNoise(e.rng, e.settings.NoiseLevel)
	v2.addNoise(e.rng, e.settings.NoiseLevel)

	chunkLength, err := checkChunking(op, v1.rows, nChunks, e.settings.KraskovK)
	if err != nil {
		return nil, err
	}

	perRun, err := chunksPerRun(nChunks, chunkLength,
		totalDim(v1, v2), 2, e.settings.KraskovK, e.budget)
	if err != nil {
		return nil, err
	}
	if e.settings.Debug {
		e.log.WithFields(logrus.Fields{
			"chunks":         nChunks,
			"chunk_length":   chunkLength,
			"chunks_per_run": perRun,
		}).Debug("planned MI estimation")
	}

	res := &Result{}
	if e.settings.ReturnCounts {
		res.Diag = &Diagnostics{}
	}

	for start := 0; start < nChunks; start += perRun {
		stop := start + perRun
		if stop > nChunks {
			stop = nChunks
		}
		w1 := v1.window(start*chunkLength, stop*chunkLength)
		w2 := v2.window(start*chunkLength, stop*chunkLength)

		out, err := e.estimateSingleRun(w1, w2, stop-start, chunkLength)
		if err != nil {
			return nil, err
		}

		res.Values = append(res.Values, out.values...)
		if res.Diag != nil {
			res.Diag.Radii = append(res.Diag.Radii, out.radii...)
			res.Diag.CountVar1 = append(res.Diag.CountVar1, out.counts[0]...)
			res.Diag.CountVar2 = append(res.Diag.CountVar2, out.counts[1]...)
		}
	}
	return res, nil
}

// estimateSingleRun estimates MI for as many chunks as fit on the device
// in one pass. Memory bounds have been checked by the caller.
func (e *MIEstimator) estimateSingleRun(v1, v2 variable, nChunks, chunkLength int) (runOutput, error) {
	shape := e.shapeRun(nChunks, chunkLength)
	pointDim := totalDim(v1, v2)
	e.logRunRequirement(shape, pointDim, 2)

	// Joint pointset with var1 and var2 in contiguous column ranges.
	dPointset, err := e.uploadPointset([]variable{v1, v2}, shape)
	if err != nil {
		return runOutput{}, err
	}
	defer e.ctx.Free(dPointset)

	dVar1, err := dPointset.SubRegion(0, 4*v1.dim*shape.paddedLen)
	if err != nil {
		return runOutput{}, err
	}
	dVar2, err := dPointset.SubRegion(4*v1.dim*shape.paddedLen, 4*v2.dim*shape.paddedLen)
	if err != nil {
		return runOutput{}, err
	}

	// Neighbour search in the joint space.
	dDistances, err := e.knnSearch(dPointset, pointDim, shape)
	if err != nil {
		return runOutput{}, err
	}
	defer e.ctx.Free(dDistances)

	out := runOutput{}
	if e.settings.ReturnCounts {
		if out.radii, err = e.readRadii(dDistances, shape); err != nil {
			return runOutput{}, err
		}
	}

	dRadius, err := e.radiusRow(dDistances, shape)
	if err != nil {
		return runOutput{}, err
	}

	// Range searches in both marginal spaces share the queue; one
	// synchronisation covers both.
	dCount1, err := e.rangeSearch(dVar1, dRadius, v1.dim, shape)
	if err != nil {
		return runOutput{}, err
	}
	defer e.ctx.Free(dCount1)

	dCount2, err := e.rangeSearch(dVar2, dRadius, v2.dim, shape)
	if err != nil {
		return runOutput{}, err
	}
	defer e.ctx.Free(dCount2)

	if err := e.ctx.Synchronize(); err != nil {
		return runOutput{}, errors.Wrap(err, "range search")
	}

	countVar1, err := e.readCounts(dCount1, shape)
	if err != nil {
		return runOutput{}, err
	}
	countVar2, err := e.readCounts(dCount2, shape)
	if err != nil {
		return runOutput{}, err
	}

	out.values = calculateMI(e.prog.K(), nChunks, chunkLength,
		e.settings.LocalValues, countVar1, countVar2)
	if e.settings.ReturnCounts {
		out.counts = [][]int32{countVar1, countVar2}
	}
	return out, nil
}
