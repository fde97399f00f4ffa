package core

import (
	"errors"
)

var (
	ErrUnknown            = errors.New("unknown")
	ErrEngineInitialized  = errors.New("engine already initialized")
	ErrStaleHandle        = errors.New("handle refers to a released entry")
	ErrListenerRegistered = errors.New("listener already registered for event code")
)
