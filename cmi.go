package kgs

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// CMIEstimator estimates the conditional mutual information between two
// multivariate continuous variables given a third, with the
// Kraskov-Grassberger-Stoegbauer estimator running its neighbour searches
// on a compute device. If no conditional is given, it estimates plain MI.
type CMIEstimator struct {
	*estimator
	mi *MIEstimator
}

var _ CMIBackend = (*CMIEstimator)(nil)

// NewCMIEstimator creates a CMI estimator. The internal MI estimator used
// for nil conditionals shares the device context and kernel program.
func NewCMIEstimator(opts ...Option) (*CMIEstimator, error) {
	core, err := newEstimator("NewCMIEstimator", opts)
	if err != nil {
		return nil, err
	}
	return &CMIEstimator{
		estimator: core,
		mi:        &MIEstimator{estimator: core},
	}, nil
}

// Estimate returns the conditional mutual information between var1 and
// var2 given conditional, in nats. Rows of the input matrices are
// realisations, columns are dimensions. The realisations are split into
// nChunks trial chunks of equal length, each estimated independently, and
// Result.Values holds one value per chunk (or one per realisation with
// LocalValues).
//
// A nil conditional yields the mutual information between var1 and var2.
func (e *CMIEstimator) Estimate(var1, var2, conditional mat.Matrix, nChunks int) (*Result, error) {
	if conditional == nil {
		return e.mi.Estimate(var1, var2, nChunks)
	}

	const op = "CMIEstimator.Estimate"

	v1, err := newVariable(op, "var1", var1)
	if err != nil {
		return nil, err
	}
	v2, err := newVariable(op, "var2", var2)
	if err != nil {
		return nil, err
	}
	vc, err := newVariable(op, "conditional", conditional)
	if err != nil {
		return nil, err
	}
	if v2.rows != v1.rows {
		return nil, NewShapeError(op, fmt.Sprintf(
			"var1 has %d realisations but var2 has %d", v1.rows, v2.rows))
	}
	if vc.rows != v1.rows {
		return nil, NewShapeError(op, fmt.Sprintf(
			"var1 has %d realisations but the conditional has %d", v1.rows, vc.rows))
	}

	if e.settings.Normalise {
		v1.standardise()
		v2.standardise()
		vc.standardise()
	}
	if err := checkRange(op, v1, v2, vc); err != nil {
		return nil, err
	}
	v1.addNoise(e.rng, e.settings.NoiseLevel)
	v2.addNoise(e.rng, e.settings.NoiseLevel)
	vc.addNoise(e.rng, e.settings.NoiseLevel)

	chunkLength, err := checkChunking(op, v1.rows, nChunks, e.settings.KraskovK)
	if err != nil {
		return nil, err
	}

	perRun, err := chunksPerRun(nChunks, chunkLength,
		totalDim(v1, vc, v2), 3, e.settings.KraskovK, e.budget)
	if err != nil {
		return nil, err
	}
	if e.settings.Debug {
		e.log.WithFields(logrus.Fields{
			"chunks":         nChunks,
			"chunk_length":   chunkLength,
			"chunks_per_run": perRun,
		}).Debug("planned CMI estimation")
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
		wc := vc.window(start*chunkLength, stop*chunkLength)

		out, err := e.estimateSingleRun(w1, w2, wc, stop-start, chunkLength)
		if err != nil {
			return nil, err
		}

		res.Values = append(res.Values, out.values...)
		if res.Diag != nil {
			res.Diag.Radii = append(res.Diag.Radii, out.radii...)
			res.Diag.CountCond = append(res.Diag.CountCond, out.counts[0]...)
			res.Diag.CountVar1Cond = append(res.Diag.CountVar1Cond, out.counts[1]...)
			res.Diag.CountVar2Cond = append(res.Diag.CountVar2Cond, out.counts[2]...)
		}
	}
	return res, nil
}

// estimateSingleRun estimates CMI for as many chunks as fit on the device
// in one pass. Memory bounds have been checked by the caller.
func (e *CMIEstimator) estimateSingleRun(v1, v2, vc variable, nChunks, chunkLength int) (runOutput, error) {
	shape := e.shapeRun(nChunks, chunkLength)
	pointDim := totalDim(v1, vc, v2)
	e.logRunRequirement(shape, pointDim, 3)

	// Joint pointset in column order var1, conditional, var2, so that
	// var1+conditional, conditional and conditional+var2 are each a
	// contiguous column range.
	dPointset, err := e.uploadPointset([]variable{v1, vc, v2}, shape)
	if err != nil {
		return runOutput{}, err
	}
	defer e.ctx.Free(dPointset)

	dVar1Cond, err := dPointset.SubRegion(0, 4*(v1.dim+vc.dim)*shape.paddedLen)
	if err != nil {
		return runOutput{}, err
	}
	dCond, err := dPointset.SubRegion(4*v1.dim*shape.paddedLen, 4*vc.dim*shape.paddedLen)
	if err != nil {
		return runOutput{}, err
	}
	dCondVar2, err := dPointset.SubRegion(4*v1.dim*shape.paddedLen, 4*(vc.dim+v2.dim)*shape.paddedLen)
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

	// Range searches in the three marginal spaces share the queue; one
	// synchronisation covers all of them.
	dCountVar1Cond, err := e.rangeSearch(dVar1Cond, dRadius, v1.dim+vc.dim, shape)
	if err != nil {
		return runOutput{}, err
	}
	defer e.ctx.Free(dCountVar1Cond)

	dCountVar2Cond, err := e.rangeSearch(dCondVar2, dRadius, vc.dim+v2.dim, shape)
	if err != nil {
		return runOutput{}, err
	}
	defer e.ctx.Free(dCountVar2Cond)

	dCountCond, err := e.rangeSearch(dCond, dRadius, vc.dim, shape)
	if err != nil {
		return runOutput{}, err
	}
	defer e.ctx.Free(dCountCond)

	if err := e.ctx.Synchronize(); err != nil {
		return runOutput{}, errors.Wrap(err, "range search")
	}

	countVar1Cond, err := e.readCounts(dCountVar1Cond, shape)
	if err != nil {
		return runOutput{}, err
	}
	countVar2Cond, err := e.readCounts(dCountVar2Cond, shape)
	if err != nil {
		return runOutput{}, err
	}
	countCond, err := e.readCounts(dCountCond, shape)
	if err != nil {
		return runOutput{}, err
	}

	out.values = calculateCMI(e.prog.K(), nChunks, chunkLength,
		e.settings.LocalValues, countCond, countVar1Cond, countVar2Cond)
	if e.settings.ReturnCounts {
		out.counts = [][]int32{countCond, countVar1Cond, countVar2Cond}
	}
	return out, nil
}
