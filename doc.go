// Package kgs estimates mutual information (MI) and conditional mutual
// information (CMI) of continuous multivariate data with the
// Kraskov-Grassberger-Stoegbauer k-nearest-neighbour estimator.
//
// The estimator's neighbour and range searches run as data-parallel
// kernels on a compute device abstraction with a GPU-style execution
// model: an in-order command queue, work groups of work items, device
// buffers with sub-region views, and brute-force searches over
// column-major pointsets. The CPU backend executes work groups across
// cores.
//
// Realisations are processed in equally sized trial chunks. Each chunk is
// estimated independently and neighbour searches never cross chunk
// boundaries, so repeated trials of an experiment can be estimated in one
// call. Runs too large for the device memory budget are split into
// multiple sub-runs transparently.
//
// Example usage:
//
//	est, err := kgs.NewMIEstimator(kgs.WithKraskovK(4))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer est.Close()
//
//	res, err := est.Estimate(var1, var2, 1)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("MI: %.4f nats\n", res.Mean())
//
// Inputs are gonum mat.Matrix values whose rows are realisations and
// whose columns are variable dimensions. Estimates are returned in nats.
package kgs
