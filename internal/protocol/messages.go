package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	WorldID         string      `json:"world_id"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	TickRateHz   int `json:"tick_rate_hz"`
	BaseSlots    int `json:"base_slots"`
	SlotsPerTier int `json:"slots_per_tier"`
	MaxRackTier  int `json:"max_rack_tier"`
	TierUnit     int `json:"tier_unit"`
}

// Request operations.
const (
	OpPlaceRack       = "PLACE_RACK"
	OpPlaceController = "PLACE_CONTROLLER"
	OpRemove          = "REMOVE"
	OpSetSlot         = "SET_SLOT"
	OpResize          = "RESIZE"
	OpHasItem         = "HAS_ITEM"
	OpTotalCount      = "TOTAL_COUNT"
	OpList            = "LIST"
	OpLocate          = "LOCATE"
)

// Mutating reports whether op changes world state.
func Mutating(op string) bool {
	switch op {
	case OpPlaceRack, OpPlaceController, OpRemove, OpSetSlot, OpResize:
		return true
	}
	return false
}

// REQ (client -> server). Pos addresses the node the op acts on; query ops
// take any member of the cluster.
type ReqMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Op              string `json:"op"`
	Pos             [3]int `json:"pos"`

	Tier   int    `json:"tier,omitempty"`
	Slot   int    `json:"slot,omitempty"`
	Item   string `json:"item,omitempty"`
	Meta   string `json:"meta,omitempty"`
	Count  int    `json:"count,omitempty"`
	Min    int    `json:"min,omitempty"`
	Filter string `json:"filter,omitempty"`
	Sort   string `json:"sort,omitempty"`
}

// RESP (server -> client)
type RespMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	ServerTick      uint64 `json:"server_tick"`
	Data            any    `json:"data,omitempty"`
}

// TopologyData answers PLACE_RACK, PLACE_CONTROLLER and REMOVE.
type TopologyData struct {
	Outcome    string   `json:"outcome"`
	Controller *[3]int  `json:"controller,omitempty"`
	Members    int      `json:"members"`
	Conflict   [][3]int `json:"conflict,omitempty"`
	Ejected    []Stack  `json:"ejected,omitempty"`
}

type Stack struct {
	Item  string `json:"item"`
	Meta  string `json:"meta,omitempty"`
	Count int    `json:"count"`
}

// SlotData answers SET_SLOT and RESIZE.
type SlotData struct {
	Tier      int     `json:"tier"`
	Capacity  int     `json:"capacity"`
	FreeSlots int     `json:"free_slots"`
	Variant   string  `json:"variant"`
	Ejected   []Stack `json:"ejected,omitempty"`
}

type HasItemData struct {
	Has bool `json:"has"`
}

type CountData struct {
	Count   int    `json:"count"`
	Compact string `json:"compact"`
}

type ListEntry struct {
	Item    string `json:"item"`
	Meta    string `json:"meta,omitempty"`
	Count   int    `json:"count"`
	Compact string `json:"compact"`
}

type ListData struct {
	Controller [3]int      `json:"controller"`
	Racks      int         `json:"racks"`
	FreeSlots  int         `json:"free_slots"`
	Entries    []ListEntry `json:"entries"`
}

type LocateData struct {
	Found        bool   `json:"found"`
	Pos          [3]int `json:"pos,omitempty"`
	RemoveAtTick uint64 `json:"remove_at_tick,omitempty"`
}
