package queue

import "errors"

var (
	ErrDeviceLost      = errors.New("queue: device lost")
	ErrWaitTimeout     = errors.New("queue: fence wait timed out")
	ErrClosed          = errors.New("queue: closed")
	ErrNotRecording    = errors.New("queue: recording context is not open")
	ErrForeignContext  = errors.New("queue: recording context belongs to another queue")
	ErrNilDevice       = errors.New("queue: nil device")
	ErrUnknownListType = errors.New("queue: unknown command list type")
)
