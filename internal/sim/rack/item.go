package rack

// ItemKey identifies an item type together with the metadata that makes
// two stacks distinguishable. Stacks with equal keys are fungible.
type ItemKey struct {
	Item string
	Meta string
}

func (k ItemKey) String() string {
	if k.Meta == "" {
		return k.Item
	}
	return k.Item + "#" + k.Meta
}

type Slot struct {
	Key   ItemKey
	Count int
}

func (s Slot) Empty() bool { return s.Count == 0 || s.Key.Item == "" }
