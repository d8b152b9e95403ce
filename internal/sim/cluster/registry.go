package cluster

import (
	"sort"

	"storageracks.ai/internal/sim/grid"
)

// Controller owns the member set of one cluster. Members always include the
// controller's own position.
type Controller struct {
	Pos  grid.Vec3i
	Tier int

	members map[grid.Vec3i]struct{}
}

func (c *Controller) Members() []grid.Vec3i { return grid.SortedKeys(c.members) }

func (c *Controller) Len() int { return len(c.members) }

// RackCount is the member count excluding the controller itself.
func (c *Controller) RackCount() int { return len(c.members) - 1 }

func (c *Controller) Contains(p grid.Vec3i) bool {
	_, ok := c.members[p]
	return ok
}

// Registry holds every live controller keyed by position.
type Registry struct {
	controllers map[grid.Vec3i]*Controller
}

func NewRegistry() *Registry {
	return &Registry{controllers: map[grid.Vec3i]*Controller{}}
}

// Create registers a controller at pos. An existing controller keeps its
// members and only has its tier updated.
func (r *Registry) Create(pos grid.Vec3i, tier int) *Controller {
	if c := r.controllers[pos]; c != nil {
		c.Tier = tier
		return c
	}
	c := &Controller{
		Pos:     pos,
		Tier:    tier,
		members: map[grid.Vec3i]struct{}{pos: {}},
	}
	r.controllers[pos] = c
	return c
}

func (r *Registry) Destroy(pos grid.Vec3i) *Controller {
	c := r.controllers[pos]
	if c == nil {
		return nil
	}
	delete(r.controllers, pos)
	return c
}

func (r *Registry) Get(pos grid.Vec3i) *Controller { return r.controllers[pos] }

func (r *Registry) Len() int { return len(r.controllers) }

func (r *Registry) All() []*Controller {
	out := make([]*Controller, 0, len(r.controllers))
	for _, c := range r.controllers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pos.Less(out[j].Pos) })
	return out
}

// Owner returns the controller whose member set contains p.
func (r *Registry) Owner(p grid.Vec3i) *Controller {
	if c := r.controllers[p]; c != nil {
		return c
	}
	for _, c := range r.controllers {
		if c.Contains(p) {
			return c
		}
	}
	return nil
}

// addAll and removeAll are the only mutators of a member set and are only
// called from Engine.commit.
func (r *Registry) addAll(c *Controller, ps []grid.Vec3i) {
	for _, p := range ps {
		c.members[p] = struct{}{}
	}
}

func (r *Registry) removeAll(c *Controller, ps []grid.Vec3i) {
	for _, p := range ps {
		if p == c.Pos {
			continue
		}
		delete(c.members, p)
	}
}
