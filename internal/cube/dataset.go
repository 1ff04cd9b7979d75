// Package cube parses Gaussian cube files and derives bonding from atom positions.
//
// Parsing, validation and bond detection are pure functions of their input and are
// safe to call from any number of goroutines.
package cube

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Atom is one atom record of a cube file.
type Atom struct {
	// Index is the 1-based position of the atom within the file
	Index int `json:"index"`

	AtomicNumber int    `json:"atomic_number"`
	Symbol       string `json:"symbol"`

	// Charge is the nuclear/partial charge column, kept as read
	Charge float64 `json:"charge"`

	// X, Y, Z are in bohr for parsed atoms and in angstrom after Angstrom()
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Position returns the atom coordinates as a vector.
func (a Atom) Position() r3.Vec {
	return r3.Vec{X: a.X, Y: a.Y, Z: a.Z}
}

// Angstrom returns a copy of a with coordinates converted from bohr to angstrom.
func (a Atom) Angstrom() Atom {
	a.X *= BohrToAngstrom
	a.Y *= BohrToAngstrom
	a.Z *= BohrToAngstrom
	return a
}

// GridVector is one voxel axis: the number of points and the step vector.
type GridVector struct {
	Count int     `json:"count"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// Dataset is a parsed cube file. It is not modified after Parse returns.
type Dataset struct {
	Title   string `json:"title"`
	Comment string `json:"comment"`

	// AtomCount is the signed value from the header; its magnitude is the atom count
	AtomCount int `json:"atom_count"`

	Origin r3.Vec        `json:"origin"`
	Grid   [3]GridVector `json:"grid"`
	Atoms  []Atom        `json:"atoms"`

	// Voxels is nil unless voxel decoding was requested
	Voxels []float64 `json:"voxels,omitempty"`

	// VoxelsPartial is set when the voxel section ended before nx*ny*nz values
	VoxelsPartial bool `json:"voxels_partial,omitempty"`

	// Warnings collects non-fatal problems found while parsing
	Warnings []error `json:"-"`
}

// NumAtoms returns the number of atoms declared by the header.
func (d *Dataset) NumAtoms() int {
	return abs(d.AtomCount)
}

// GridShape returns the point counts along the three grid axes.
func (d *Dataset) GridShape() (nx, ny, nz int) {
	return d.Grid[0].Count, d.Grid[1].Count, d.Grid[2].Count
}

// NumVoxels returns nx*ny*nz using the magnitude of each axis count,
// saturating at math.MaxInt.
func (d *Dataset) NumVoxels() int {
	nx, ny, nz := d.GridShape()
	n := 1
	for _, c := range []int{abs(nx), abs(ny), abs(nz)} {
		if c != 0 && n > math.MaxInt/c {
			return math.MaxInt
		}
		n *= c
	}
	return n
}

// AngstromAtoms returns a copy of the atom list in angstrom.
func (d *Dataset) AngstromAtoms() []Atom {
	out := make([]Atom, len(d.Atoms))
	for i, a := range d.Atoms {
		out[i] = a.Angstrom()
	}
	return out
}

// Bonds derives the bond list from the atoms in angstrom.
func (d *Dataset) Bonds(tolerance float64) []Bond {
	return BuildBonds(d.AngstromAtoms(), tolerance)
}

// Box is an axis-aligned bounding box.
type Box struct {
	Min r3.Vec `json:"min"`
	Max r3.Vec `json:"max"`
}

// BoundingBox returns the box enclosing atoms, or false when atoms is empty.
func BoundingBox(atoms []Atom) (Box, bool) {
	if len(atoms) == 0 {
		return Box{}, false
	}
	b := Box{
		Min: r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)},
		Max: r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)},
	}
	for _, a := range atoms {
		b.Min.X = math.Min(b.Min.X, a.X)
		b.Min.Y = math.Min(b.Min.Y, a.Y)
		b.Min.Z = math.Min(b.Min.Z, a.Z)
		b.Max.X = math.Max(b.Max.X, a.X)
		b.Max.Y = math.Max(b.Max.Y, a.Y)
		b.Max.Z = math.Max(b.Max.Z, a.Z)
	}
	return b, true
}

// Center returns the unweighted centroid of atoms, or false when atoms is empty.
func Center(atoms []Atom) (r3.Vec, bool) {
	if len(atoms) == 0 {
		return r3.Vec{}, false
	}
	var sum r3.Vec
	for _, a := range atoms {
		sum = r3.Add(sum, a.Position())
	}
	return r3.Scale(1/float64(len(atoms)), sum), true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
