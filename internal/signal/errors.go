package signal

import "errors"

// Error kinds shared by every stage of the EEG pipeline. Callers match them
// with errors.Is; stages wrap them with operation context.
var (
	// ErrInvalidFilterSpec reports malformed or physically invalid filter parameters.
	ErrInvalidFilterSpec = errors.New("invalid filter spec")
	// ErrEmptySignal reports a matrix with zero samples or zero electrodes.
	ErrEmptySignal = errors.New("empty signal")
	// ErrInsufficientMargin reports a seizure window too close to a recording
	// boundary to extract equally long preictal and postictal phases.
	ErrInsufficientMargin = errors.New("insufficient recording margin")
	// ErrShapeMismatch reports disagreement between label count and matrix columns,
	// or channels of unequal length.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrInvalidWindow reports a seizure window violating 0 <= start < end or fs > 0.
	ErrInvalidWindow = errors.New("invalid seizure window")
)
