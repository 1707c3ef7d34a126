package models

import "errors"

// Validation errors.
var (
	ErrHorizonTooLarge        = errors.New("forecast horizon cannot be greater than 30")
	ErrHorizonNotPositive     = errors.New("forecast horizon must be positive")
	ErrInsufficientCovariates = errors.New("length mismatch: insufficient covariate data for the requested horizon")
	ErrInvalidCovariate       = errors.New("invalid covariate value")
)

// ErrInsufficientOil marks an oil projection shorter than the horizon. The
// projection window is OilForecastWindow, so this is a server defect.
var ErrInsufficientOil = errors.New("oil projection shorter than the requested horizon")

var (
	// ErrUnknownSeries is returned for a store/family the trained model does not know.
	ErrUnknownSeries = errors.New("unknown series")
	// ErrNotContiguous marks a date index with a gap or overlap.
	ErrNotContiguous = errors.New("covariate series not contiguous")
	// ErrArtifact marks a missing or unreadable persisted artifact.
	ErrArtifact = errors.New("artifact unavailable")
	// ErrModelOutput marks a model response of the wrong shape.
	ErrModelOutput = errors.New("unexpected model output")
)

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrHorizonTooLarge) ||
		errors.Is(err, ErrHorizonNotPositive) ||
		errors.Is(err, ErrInsufficientCovariates) ||
		errors.Is(err, ErrInvalidCovariate)
}
