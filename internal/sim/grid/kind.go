package grid

import "fmt"

type Kind uint8

const (
	KindAbsent Kind = iota
	KindRack
	KindController
)

func (k Kind) String() string {
	switch k {
	case KindRack:
		return "RACK"
	case KindController:
		return "CONTROLLER"
	default:
		return "ABSENT"
	}
}

// NodeKind is what occupies a grid cell. Tier is the rack size tier for
// racks and the capacity tier for controllers. The zero value is Absent.
type NodeKind struct {
	Type Kind
	Tier int
}

func Rack(tier int) NodeKind       { return NodeKind{Type: KindRack, Tier: tier} }
func Controller(tier int) NodeKind { return NodeKind{Type: KindController, Tier: tier} }

func (n NodeKind) IsRack() bool       { return n.Type == KindRack }
func (n NodeKind) IsController() bool { return n.Type == KindController }
func (n NodeKind) Occupied() bool     { return n.Type == KindRack || n.Type == KindController }

func (n NodeKind) String() string {
	if !n.Occupied() {
		return n.Type.String()
	}
	return fmt.Sprintf("%s(%d)", n.Type, n.Tier)
}
