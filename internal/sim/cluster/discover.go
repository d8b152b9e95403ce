package cluster

import (
	"errors"
	"fmt"

	"storageracks.ai/internal/sim/grid"
)

var ErrConflict = errors.New("cluster: more than one controller reachable")

// ConflictError names the controllers that ended up in one connected
// component.
type ConflictError struct {
	Controllers []grid.Vec3i
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cluster: %d controllers reachable: %v", len(e.Controllers), e.Controllers)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// Result is the outcome of one traversal. Visited and Order always hold the
// whole component, also when Discover reports a conflict.
type Result struct {
	Visited map[grid.Vec3i]struct{}
	Order   []grid.Vec3i

	Controller    grid.Vec3i
	HasController bool
}

func (r Result) Len() int { return len(r.Order) }

func (r Result) Contains(p grid.Vec3i) bool {
	_, ok := r.Visited[p]
	return ok
}

// Members returns the visited positions in grid.Vec3i.Less order.
func (r Result) Members() []grid.Vec3i { return grid.SortedKeys(r.Visited) }

// Discover walks every position reachable from start through occupied rack
// and controller cells, stepping in the six axis directions. It never
// mutates anything; callers commit the result afterwards.
func Discover(o grid.Oracle, start grid.Vec3i) (Result, error) {
	res := Result{Visited: map[grid.Vec3i]struct{}{}}
	if !o.IsOccupied(start) {
		return res, nil
	}

	var controllers []grid.Vec3i
	stack := []grid.Vec3i{start}
	res.Visited[start] = struct{}{}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		res.Order = append(res.Order, p)
		if o.KindAt(p).IsController() {
			controllers = append(controllers, p)
		}
		// Push in reverse so the first direction is expanded first.
		for i := len(grid.Directions) - 1; i >= 0; i-- {
			n := p.Add(grid.Directions[i])
			if _, seen := res.Visited[n]; seen || !o.IsOccupied(n) {
				continue
			}
			res.Visited[n] = struct{}{}
			stack = append(stack, n)
		}
	}

	switch len(controllers) {
	case 0:
	case 1:
		res.Controller = controllers[0]
		res.HasController = true
	default:
		grid.SortPositions(controllers)
		return res, &ConflictError{Controllers: controllers}
	}
	return res, nil
}
