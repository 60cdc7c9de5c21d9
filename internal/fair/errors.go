package fair

import "errors"

var (
	// ErrInvalidRange indicates a range bound below its minimum (N < 1 for a
	// fair value, N < 3 for a box game) or a value outside [0, N).
	ErrInvalidRange = errors.New("fair: invalid range")

	// ErrInvalidKeyMaterial indicates an empty or short MAC key.
	ErrInvalidKeyMaterial = errors.New("fair: invalid key material")

	// ErrEntropyUnavailable indicates the secure random source could not be read.
	ErrEntropyUnavailable = errors.New("fair: entropy source unavailable")

	// ErrPeerInputUnavailable indicates the peer-input port is closed or
	// unreachable. It is fatal for the exchange and never retried.
	ErrPeerInputUnavailable = errors.New("fair: peer input unavailable")

	// ErrClosed is returned once the protocol has been closed.
	ErrClosed = errors.New("fair: protocol closed")
)
