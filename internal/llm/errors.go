package llm

import (
	"errors"
	"strings"
)

// degenerateSamplingError signals that the sampler was handed an invalid
// probability distribution (NaN, inf or negative entries).
type degenerateSamplingError struct{ msg string }

func (e degenerateSamplingError) Error() string { return "degenerate sampling distribution: " + e.msg }

// ErrDegenerateSampling constructs a degenerate-sampling error.
func ErrDegenerateSampling(msg string) error { return degenerateSamplingError{msg: msg} }

// IsDegenerateSampling reports whether err (or anything it wraps) is a
// degenerate-sampling failure.
func IsDegenerateSampling(err error) bool {
	var e degenerateSamplingError
	return errors.As(err, &e)
}

// dependencyUnavailableError signals a missing or unreachable runtime.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}

type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound returns an error for a model id with no local weights.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// degenerateMarkers are lower-cased fragments runtimes use when the sampling
// distribution is unusable.
var degenerateMarkers = []string{
	"probability tensor contains",
	"invalid probability",
	"invalid probabilities",
	"nan probabilities",
	"probabilities contain nan",
	"logits contain nan",
	"sum of probabilities",
}

// classifyRuntimeError maps a runtime error message to a typed error.
// Unknown messages are returned as plain errors.
func classifyRuntimeError(prefix, msg string) error {
	low := strings.ToLower(msg)
	for _, m := range degenerateMarkers {
		if strings.Contains(low, m) {
			return ErrDegenerateSampling(msg)
		}
	}
	if prefix == "" {
		return errors.New(msg)
	}
	return errors.New(prefix + ": " + msg)
}
