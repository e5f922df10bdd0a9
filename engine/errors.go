package engine

import (
	"errors"
)

var (
	ErrUnknownChannel = errors.New("unknown channel")
	ErrUnknownDevice  = errors.New("unknown device")
	ErrNoCamera       = errors.New("garden has no camera")
	ErrNotInitialized = errors.New("engine not initialized")
	ErrClosed         = errors.New("engine closed")
)
