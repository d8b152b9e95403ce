package grid

// Oracle answers adjacency questions about the grid. Implementations must
// present a stable view for the duration of a single traversal.
type Oracle interface {
	KindAt(p Vec3i) NodeKind
	IsOccupied(p Vec3i) bool
}

// Grid is a sparse in-memory Oracle. Only occupied cells are stored.
type Grid struct {
	cells map[Vec3i]NodeKind
}

func New() *Grid {
	return &Grid{cells: map[Vec3i]NodeKind{}}
}

func (g *Grid) KindAt(p Vec3i) NodeKind { return g.cells[p] }

func (g *Grid) IsOccupied(p Vec3i) bool { return g.cells[p].Occupied() }

// Set stores kind at p. Setting an Absent kind clears the cell.
func (g *Grid) Set(p Vec3i, kind NodeKind) {
	if !kind.Occupied() {
		delete(g.cells, p)
		return
	}
	g.cells[p] = kind
}

func (g *Grid) Clear(p Vec3i) { delete(g.cells, p) }

func (g *Grid) Len() int { return len(g.cells) }

// Positions returns every occupied position in Less order.
func (g *Grid) Positions() []Vec3i {
	out := make([]Vec3i, 0, len(g.cells))
	for p := range g.cells {
		out = append(out, p)
	}
	SortPositions(out)
	return out
}

// OccupiedNeighbors returns the occupied neighbours of p in Directions order.
func OccupiedNeighbors(o Oracle, p Vec3i) []Vec3i {
	out := make([]Vec3i, 0, len(Directions))
	for _, d := range Directions {
		n := p.Add(d)
		if o.IsOccupied(n) {
			out = append(out, n)
		}
	}
	return out
}
