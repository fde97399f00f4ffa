package software

import "errors"

var (
	ErrAllocatorInUse     = errors.New("software: allocator reset while queued work still reads it")
	ErrListOpen           = errors.New("software: command list is open")
	ErrListClosed         = errors.New("software: command list is closed")
	ErrForeignObject      = errors.New("software: object was not created by this device")
	ErrTypeMismatch       = errors.New("software: command list type does not match")
	ErrBuffersInUse       = errors.New("software: back buffers are referenced by queued work")
	ErrStaleTarget        = errors.New("software: render target belongs to a released back buffer")
	ErrTearingUnsupported = errors.New("software: tearing requested but not supported")
)
