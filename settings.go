package kgs

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Settings holds the estimator configuration. Settings are validated and
// frozen at construction; an estimator never mutates them between calls.
type Settings struct {
	// GPUID selects the compute device used for estimation.
	GPUID int

	// KraskovK is the number of nearest neighbours for the KNN search.
	KraskovK int

	// TheilerT is the number of temporal neighbours on each side that
	// are excluded from the neighbour and range searches.
	TheilerT int

	// NoiseLevel is the scale of Gaussian noise added to the data to
	// break ties between identical realisations. Zero disables noise.
	NoiseLevel float64

	// Normalise z-standardises every dimension before estimation.
	Normalise bool

	// LocalValues returns pointwise estimates instead of chunk averages.
	LocalValues bool

	// ReturnCounts collects per-point neighbourhood radii and range
	// search counts alongside the estimates.
	ReturnCounts bool

	// Debug enables logging of intermediate shapes and device memory
	// requirements.
	Debug bool

	// LagMI shifts var2 against var1 by this many samples before MI
	// estimation. Ignored by the CMI estimator.
	LagMI int

	// MaxMem caps the device memory budget in bytes. Zero means 90% of
	// the device's global memory.
	MaxMem uint64

	// Logger receives estimator log output.
	Logger logrus.FieldLogger
}

// Option configures estimator settings.
type Option func(*Settings)

// WithGPUID selects the compute device used for estimation.
func WithGPUID(id int) Option {
	return func(s *Settings) { s.GPUID = id }
}

// WithKraskovK sets the number of nearest neighbours for the KNN search.
func WithKraskovK(k int) Option {
	return func(s *Settings) { s.KraskovK = k }
}

// WithTheilerT sets the number of temporal neighbours excluded from the
// neighbour and range searches.
func WithTheilerT(t int) Option {
	return func(s *Settings) { s.TheilerT = t }
}

// WithNoiseLevel sets the scale of Gaussian noise added to the data.
// A level of zero disables noise and makes estimation deterministic.
func WithNoiseLevel(scale float64) Option {
	return func(s *Settings) { s.NoiseLevel = scale }
}

// WithNormalise z-standardises every dimension before estimation.
func WithNormalise(normalise bool) Option {
	return func(s *Settings) { s.Normalise = normalise }
}

// WithLocalValues switches the result to pointwise estimates instead of
// chunk averages.
func WithLocalValues(local bool) Option {
	return func(s *Settings) { s.LocalValues = local }
}

// WithReturnCounts collects per-point neighbourhood radii and range search
// counts alongside the estimates.
func WithReturnCounts(enabled bool) Option {
	return func(s *Settings) { s.ReturnCounts = enabled }
}

// WithDebug enables logging of intermediate shapes and device memory
// requirements.
func WithDebug(enabled bool) Option {
	return func(s *Settings) { s.Debug = enabled }
}

// WithMILag shifts var2 against var1 by lag samples before MI estimation.
func WithMILag(lag int) Option {
	return func(s *Settings) { s.LagMI = lag }
}

// WithMaxMem caps the device memory budget in bytes.
func WithMaxMem(bytes uint64) Option {
	return func(s *Settings) { s.MaxMem = bytes }
}

// WithLogger sets the logger that receives estimator output.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Settings) { s.Logger = log }
}

func defaultSettings() Settings {
	return Settings{
		GPUID:      0,
		KraskovK:   4,
		TheilerT:   0,
		NoiseLevel: 1e-8,
		Logger:     logrus.StandardLogger(),
	}
}

// newSettings applies opts to the defaults and validates the result.
func newSettings(op string, opts []Option) (Settings, error) {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	if s.Logger == nil {
		s.Logger = logrus.StandardLogger()
	}
	if err := s.validate(op); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// validate rejects settings the estimator cannot run with. The upper bound
// on KraskovK is enforced by the kernel program build.
func (s Settings) validate(op string) error {
	if s.GPUID < 0 {
		return NewConfigError(op, fmt.Sprintf("GPU ID must not be negative, got %d", s.GPUID))
	}
	if s.KraskovK < 1 {
		return NewConfigError(op, fmt.Sprintf("kraskov_k must be at least 1, got %d", s.KraskovK))
	}
	if s.TheilerT < 0 {
		return NewConfigError(op, fmt.Sprintf("theiler_t must not be negative, got %d", s.TheilerT))
	}
	if s.NoiseLevel < 0 || math.IsNaN(s.NoiseLevel) || math.IsInf(s.NoiseLevel, 0) {
		return NewConfigError(op, fmt.Sprintf("noise level must be finite and not negative, got %g", s.NoiseLevel))
	}
	if s.LagMI < 0 {
		return NewConfigError(op, fmt.Sprintf("MI lag must not be negative, got %d", s.LagMI))
	}
	return nil
}
