package opd

import "errors"

var (
	ErrSlotNotFound      = errors.New("slot not found")
	ErrCapacityExceeded  = errors.New("slot is at maximum capacity")
	ErrUnknownPriority   = errors.New("unknown priority class")
	ErrTokenNotFound     = errors.New("token not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)
