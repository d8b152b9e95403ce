package cluster

// Policy limits cluster size by controller capacity tier.
type Policy struct {
	TierUnit int
}

func DefaultPolicy() Policy { return Policy{TierUnit: 20} }

// RackLimit is the number of racks a controller of tier may own.
func (p Policy) RackLimit(tier int) int { return tier * p.TierUnit }

// Check reports whether a cluster of prospective members (controller
// included) fits a controller of the given tier.
func (p Policy) Check(tier, prospective int) bool {
	return prospective-1 <= p.RackLimit(tier)
}
