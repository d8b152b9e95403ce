package world

import "errors"

var (
	ErrNoNode                = errors.New("world: nothing at position")
	ErrNoRack                = errors.New("world: no rack at position")
	ErrNoController          = errors.New("world: no controller for position")
	ErrOccupied              = errors.New("world: position occupied")
	ErrBadTier               = errors.New("world: tier out of range")
	ErrBadSlot               = errors.New("world: bad slot")
	ErrInvalidTierTransition = errors.New("world: resize would drop items")
	ErrUnknownOp             = errors.New("world: unknown op")
	ErrBusy                  = errors.New("world: inbox full")
)
