// Package world holds the owned parcels of a settlement: the 8×8 placement
// grids, their cached building counts, the purchase frontier, and the
// propagation of count changes between neighbouring parcels.
package world

import "fmt"

// Pos is an integer coordinate. It addresses parcels in world space and
// cells (0..GridSize) inside a parcel.
type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Orthogonal neighbour offsets.
var NeighborDirections = [4]Pos{
	{X: -1, Y: 0},
	{X: 1, Y: 0},
	{X: 0, Y: -1},
	{X: 0, Y: 1},
}

// Add returns p + o.
func (p Pos) Add(o Pos) Pos {
	return Pos{X: p.X + o.X, Y: p.Y + o.Y}
}

// Neighbors returns the four orthogonal neighbours.
func (p Pos) Neighbors() [4]Pos {
	var result [4]Pos
	for i, dir := range NeighborDirections {
		result[i] = p.Add(dir)
	}
	return result
}

// Adjacent returns the four orthogonal neighbours followed by p itself.
func (p Pos) Adjacent() [5]Pos {
	var result [5]Pos
	n := p.Neighbors()
	copy(result[:4], n[:])
	result[4] = p
	return result
}

// InGrid reports whether p is a cell coordinate inside a parcel.
func (p Pos) InGrid() bool {
	return p.X >= 0 && p.X < GridSize && p.Y >= 0 && p.Y < GridSize
}

// Chebyshev returns max(|x|, |y|), the ring distance from the origin.
func (p Pos) Chebyshev() int {
	x, y := p.X, p.Y
	if x < 0 {
		x = -x
	}
	if y < 0 {
		y = -y
	}
	if y > x {
		return y
	}
	return x
}

// PurchaseCost is the Tax needed to buy the parcel at p: (ring+1)³ × 100.
func PurchaseCost(p Pos) int {
	d := p.Chebyshev() + 1
	return d * d * d * 100
}

func (p Pos) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// less orders positions row-major for deterministic iteration.
func less(a, b Pos) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	return a.Y < b.Y
}
