package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// World routing/state.
	ErrWorldBusy = "E_WORLD_BUSY"

	// Request layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrOccupied      = "E_OCCUPIED"
	ErrNoController  = "E_NO_CONTROLLER"
	ErrInvalidTier   = "E_INVALID_TIER"
	ErrInternal      = "E_INTERNAL"

	// Topology decisions.
	ErrConflict     = "E_CONFLICT"
	ErrCapacity     = "E_CAPACITY"
	ErrNotConnected = "E_NOT_CONNECTED"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrWorldBusy:       {},
	ErrBadRequest:      {},
	ErrInvalidTarget:   {},
	ErrOccupied:        {},
	ErrNoController:    {},
	ErrInvalidTier:     {},
	ErrInternal:        {},
	ErrConflict:        {},
	ErrCapacity:        {},
	ErrNotConnected:    {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
