package kgs

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// CMIBackend is the contract embedding frameworks program against: a
// conditional mutual information estimator over chunked realisations.
// Passing a nil conditional degrades the estimate to plain MI.
type CMIBackend interface {
	Estimate(var1, var2, conditional mat.Matrix, nChunks int) (*Result, error)
	Close() error
}

// TheilerFunc derives a dynamic exclusion window from a series, for
// callers that compute theiler_t from autocorrelation time instead of
// configuring a static value.
type TheilerFunc func(series []float64) int

// estimator holds the device state shared by the MI and CMI estimators.
// Kernels run on an in-order queue, so an estimator must not be used from
// multiple goroutines at once.
type estimator struct {
	settings Settings
	ctx      *Context
	prog     *Program
	budget   uint64
	rng      *rand.Rand
	log      logrus.FieldLogger
}

// newEstimator builds the device context and kernel program for the given
// options.
func newEstimator(op string, opts []Option) (*estimator, error) {
	s, err := newSettings(op, opts)
	if err != nil {
		return nil, err
	}

	ctx, err := NewContext(s.GPUID, s.Logger)
	if err != nil {
		return nil, err
	}

	prog, err := BuildProgram(ctx.Device(), s.KraskovK)
	if err != nil {
		ctx.Close()
		return nil, err
	}

	budget := s.MaxMem
	if budget == 0 {
		// Leave headroom for the runtime, like a GPU driver would.
		budget = ctx.Device().GlobalMem / 10 * 9
	}

	e := &estimator{
		settings: s,
		ctx:      ctx,
		prog:     prog,
		budget:   budget,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		log:      s.Logger,
	}

	e.log.WithFields(logrus.Fields{
		"device":     ctx.Device().Name,
		"kraskov_k":  s.KraskovK,
		"theiler_t":  s.TheilerT,
		"mem_budget": budget,
	}).Debug("estimator ready")

	return e, nil
}

// Settings returns the estimator's frozen configuration.
func (e *estimator) Settings() Settings {
	return e.settings
}

// Close releases the estimator's device context.
func (e *estimator) Close() error {
	return e.ctx.Close()
}

// runShape captures the device-facing geometry of one estimation run.
type runShape struct {
	nChunks     int
	chunkLength int
	signalLen   int
	paddedLen   int
	workItems   int
	ndRange     int
}

func (e *estimator) shapeRun(nChunks, chunkLength int) runShape {
	signalLen := nChunks * chunkLength
	padded := padLength(signalLen)
	wi := workGroupSize(e.ctx.Device(), chunkLength)
	return runShape{
		nChunks:     nChunks,
		chunkLength: chunkLength,
		signalLen:   signalLen,
		paddedLen:   padded,
		workItems:   wi,
		ndRange:     ndRange(padded, wi),
	}
}

// launchDims returns the grid and work-group dimensions for the run.
func (s runShape) launchDims() (grid, block Dim3) {
	return Dim3{X: s.ndRange / s.workItems, Y: 1, Z: 1},
		Dim3{X: s.workItems, Y: 1, Z: 1}
}

// runOutput carries the host-side results of one sub-run.
type runOutput struct {
	values []float64
	radii  []float32
	counts [][]int32
}

// logRunRequirement reports the device memory the padded run needs.
func (e *estimator) logRunRequirement(shape runShape, pointDim, nMarginals int) {
	if !e.settings.Debug {
		return
	}
	memPointset := 4 * pointDim * shape.paddedLen
	memDistances := 4 * e.prog.K() * shape.paddedLen
	memCounts := 4 * nMarginals * shape.paddedLen
	total := memPointset + memDistances + memCounts
	e.log.WithFields(logrus.Fields{
		"chunks":          shape.nChunks,
		"chunk_length":    shape.chunkLength,
		"padded_length":   shape.paddedLen,
		"pointset_bytes":  memPointset,
		"distance_bytes":  memDistances,
		"count_bytes":     memCounts,
		"total_megabytes": float64(total) / 1024 / 1024,
	}).Debug("device memory requirement after padding")
}

// uploadPointset assembles the padded pointset and copies it to the device.
func (e *estimator) uploadPointset(vars []variable, shape runShape) (DevicePtr, error) {
	host := assemblePointset(vars, shape.paddedLen, e.rng)
	d, err := e.ctx.Malloc(len(host) * 4)
	if err != nil {
		return DevicePtr{}, err
	}
	if err := e.ctx.Memcpy(d, host, len(host)*4, MemcpyHostToDevice); err != nil {
		e.ctx.Free(d)
		return DevicePtr{}, err
	}
	return d, nil
}

// knnSearch runs the neighbour search over the full pointset and returns
// the distance buffer holding the k smallest distances per point. The
// search must complete before the range searches read the radius row, so
// this blocks on the queue.
func (e *estimator) knnSearch(dPointset DevicePtr, pointDim int, shape runShape) (DevicePtr, error) {
	dDistances, err := e.ctx.Malloc(4 * e.prog.K() * shape.paddedLen)
	if err != nil {
		return DevicePtr{}, err
	}

	kernel := e.prog.KNNKernel(dPointset, dDistances,
		pointDim, shape.chunkLength, shape.paddedLen, e.settings.TheilerT)
	grid, block := shape.launchDims()
	if err := e.ctx.Launch(kernel, grid, block); err != nil {
		e.ctx.Free(dDistances)
		return DevicePtr{}, err
	}
	if err := e.ctx.Synchronize(); err != nil {
		e.ctx.Free(dDistances)
		return DevicePtr{}, errors.Wrap(err, "k-nearest-neighbour search")
	}
	return dDistances, nil
}

// rangeSearch enqueues one marginal range search and returns its count
// buffer. Searches for different marginals are queued back to back; the
// caller synchronises once before reading any counts.
func (e *estimator) rangeSearch(subspace, dRadius DevicePtr, subDim int, shape runShape) (DevicePtr, error) {
	dCount, err := e.ctx.Malloc(4 * shape.paddedLen)
	if err != nil {
		return DevicePtr{}, err
	}

	kernel := e.prog.RangeKernel(subspace, dRadius, dCount,
		subDim, shape.chunkLength, shape.paddedLen, e.settings.TheilerT)
	grid, block := shape.launchDims()
	if err := e.ctx.Launch(kernel, grid, block); err != nil {
		e.ctx.Free(dCount)
		return DevicePtr{}, err
	}
	return dCount, nil
}

// radiusRow returns the view of the k-th neighbour distances, which the
// range searches use as per-point radii.
func (e *estimator) radiusRow(dDistances DevicePtr, shape runShape) (DevicePtr, error) {
	return dDistances.SubRegion(4*(e.prog.K()-1)*shape.paddedLen, 4*shape.paddedLen)
}

// readCounts copies a count buffer back and truncates the padding tail.
func (e *estimator) readCounts(dCount DevicePtr, shape runShape) ([]int32, error) {
	host := make([]int32, shape.paddedLen)
	if err := e.ctx.Memcpy(host, dCount, 4*shape.paddedLen, MemcpyDeviceToHost); err != nil {
		return nil, err
	}
	return host[:shape.signalLen], nil
}

// readRadii copies the per-point neighbourhood radii back and truncates
// the padding tail.
func (e *estimator) readRadii(dDistances DevicePtr, shape runShape) ([]float32, error) {
	dRadius, err := e.radiusRow(dDistances, shape)
	if err != nil {
		return nil, err
	}
	host := make([]float32, shape.paddedLen)
	if err := e.ctx.Memcpy(host, dRadius, 4*shape.paddedLen, MemcpyDeviceToHost); err != nil {
		return nil, err
	}
	return host[:shape.signalLen], nil
}

// checkChunking validates the chunk decomposition of a signal.
func checkChunking(op string, signalLen, nChunks, k int) (int, error) {
	if nChunks < 1 {
		return 0, NewShapeError(op, "number of chunks must be at least 1")
	}
	if signalLen%nChunks != 0 {
		return 0, NewShapeError(op, fmt.Sprintf(
			"%d realisations cannot be split into %d equal chunks", signalLen, nChunks))
	}
	chunkLength := signalLen / nChunks
	if chunkLength <= k {
		return 0, NewShapeError(op, fmt.Sprintf(
			"chunk length %d is too short for %d nearest neighbours", chunkLength, k))
	}
	return chunkLength, nil
}
