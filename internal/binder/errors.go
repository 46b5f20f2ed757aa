package binder

import "errors"

var (
	// ErrKeyRejected is returned when the hub does not accept a truck key
	ErrKeyRejected = errors.New("truck key not accepted")
	// ErrMalformedBootstrap is returned for a bootstrap payload without a truck
	ErrMalformedBootstrap = errors.New("malformed bootstrap payload")
	ErrEmptyKey           = errors.New("truck key is empty")
	ErrNeedsKey           = errors.New("no truck key bound")
	ErrNoTruck            = errors.New("no truck bound")
	ErrStopNotFound       = errors.New("stop not found")
	ErrNoAddress          = errors.New("stop has no address")
)
