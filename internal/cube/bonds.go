package cube

import (
	"slices"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultBondTolerance scales the summed covalent radii into a bond cutoff.
const DefaultBondTolerance = 1.3

// Bond joins the atoms at slice positions I and J, with I < J.
type Bond struct {
	I int `json:"i"`
	J int `json:"j"`

	// Distance is in the length unit of the atoms passed to BuildBonds
	Distance float64 `json:"distance"`
}

// BuildBonds returns every pair (i, j), i < j, whose distance is strictly less
// than (r_i + r_j) * tolerance, with radii from CovalentRadius. Coordinates must be
// in angstrom. A non-positive tolerance selects DefaultBondTolerance.
//
// The search is O(n^2), which is fine for the tens to hundreds of atoms typical
// of cube files.
func BuildBonds(atoms []Atom, tolerance float64) []Bond {
	if tolerance <= 0 {
		tolerance = DefaultBondTolerance
	}
	bonds := make([]Bond, 0, len(atoms))
	if len(atoms) < 2 {
		return bonds
	}

	radii := make([]float64, len(atoms))
	pos := make([]r3.Vec, len(atoms))
	for i, a := range atoms {
		radii[i] = CovalentRadius(a.Symbol)
		pos[i] = a.Position()
	}

	for i := 0; i < len(atoms); i++ {
		for j := i + 1; j < len(atoms); j++ {
			d := r3.Norm(r3.Sub(pos[i], pos[j]))
			if d < (radii[i]+radii[j])*tolerance {
				bonds = append(bonds, Bond{I: i, J: j, Distance: d})
			}
		}
	}
	return bonds
}

// Fragments groups atom positions 0..n-1 into connected components of the bond
// graph. Each component is sorted, and components are ordered by their lowest
// member. Isolated atoms form single-member fragments.
func Fragments(n int, bonds []Bond) [][]int {
	g := simple.NewUndirectedGraph()
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(i))
	}
	for _, b := range bonds {
		if b.I == b.J || b.I < 0 || b.J < 0 || b.I >= n || b.J >= n {
			continue
		}
		g.SetEdge(simple.Edge{F: simple.Node(b.I), T: simple.Node(b.J)})
	}

	components := topo.ConnectedComponents(g)
	out := make([][]int, 0, len(components))
	for _, c := range components {
		ids := make([]int, len(c))
		for k, node := range c {
			ids[k] = int(node.ID())
		}
		slices.Sort(ids)
		out = append(out, ids)
	}
	slices.SortFunc(out, func(a, b []int) int { return a[0] - b[0] })
	return out
}
