package grid

import "sort"

type Vec3i struct {
	X int
	Y int
	Z int
}

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func FromArray(a [3]int) Vec3i { return Vec3i{X: a[0], Y: a[1], Z: a[2]} }

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

func (v Vec3i) Sub(o Vec3i) Vec3i { return Vec3i{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }

// Less orders positions by X, then Y, then Z.
func (v Vec3i) Less(o Vec3i) bool {
	if v.X != o.X {
		return v.X < o.X
	}
	if v.Y != o.Y {
		return v.Y < o.Y
	}
	return v.Z < o.Z
}

// Directions lists the six axis-aligned neighbours in traversal order:
// down, up, north, south, west, east.
var Directions = [6]Vec3i{
	{X: 0, Y: -1, Z: 0},
	{X: 0, Y: 1, Z: 0},
	{X: 0, Y: 0, Z: -1},
	{X: 0, Y: 0, Z: 1},
	{X: -1, Y: 0, Z: 0},
	{X: 1, Y: 0, Z: 0},
}

func SortPositions(ps []Vec3i) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].Less(ps[j]) })
}

// SortedKeys returns the members of a position set in Less order.
func SortedKeys(set map[Vec3i]struct{}) []Vec3i {
	out := make([]Vec3i, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	SortPositions(out)
	return out
}
