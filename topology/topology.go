// Package topology maps linear cluster indices onto the
// two-dimensional Picobello mesh.
//
// Clusters are numbered column-major: index = col*Rows + row,
// with row 0 at the south edge and column 0 at the west
// edge. Memory tiles sit in two extra columns, one on each
// side of the cluster array.
package topology

import (
	"fmt"
	"math/bits"

	"github.com/pkg/errors"
)

// ErrInvalidTopology is returned for mesh or sub-mesh
// dimensions that do not fit the physical mesh.
var ErrInvalidTopology = errors.New("invalid topology")

// A Mesh describes an R×C array of clusters.
type Mesh struct {
	Rows int
	Cols int
}

// NewMesh creates a mesh with the given dimensions.
func NewMesh(rows, cols int) (Mesh, error) {
	if rows <= 0 || cols <= 0 {
		return Mesh{}, errors.Wrapf(ErrInvalidTopology, "mesh of %dx%d clusters", rows, cols)
	}
	return Mesh{Rows: rows, Cols: cols}, nil
}

// Size is the number of clusters.
func (m Mesh) Size() int {
	return m.Rows * m.Cols
}

// Row gets the row of a cluster.
func (m Mesh) Row(idx int) int {
	return idx % m.Rows
}

// Col gets the column of a cluster.
func (m Mesh) Col(idx int) int {
	return idx / m.Rows
}

// Index is the inverse of Row and Col.
func (m Mesh) Index(row, col int) int {
	return col*m.Rows + row
}

// InRow checks if a cluster lies in the given row.
func (m Mesh) InRow(idx, row int) bool {
	return m.Row(idx) == row
}

// InCol checks if a cluster lies in the given column.
func (m Mesh) InCol(idx, col int) bool {
	return m.Col(idx) == col
}

// The neighbor functions perform no bounds checks. Use
// the edge tests before following them.

func (m Mesh) North(idx int) int { return idx + 1 }
func (m Mesh) South(idx int) int { return idx - 1 }
func (m Mesh) East(idx int) int  { return idx + m.Rows }
func (m Mesh) West(idx int) int  { return idx - m.Rows }

func (m Mesh) IsNorthernmost(idx int) bool { return m.Row(idx) == m.Rows-1 }
func (m Mesh) IsSouthernmost(idx int) bool { return m.Row(idx) == 0 }
func (m Mesh) IsEasternmost(idx int) bool  { return m.Col(idx) == m.Cols-1 }
func (m Mesh) IsWesternmost(idx int) bool  { return m.Col(idx) == 0 }

// NumMemTiles is the number of memory tiles, one per row
// on each side of the mesh.
func (m Mesh) NumMemTiles() int {
	return 2 * m.Rows
}

// ClosestMemTile gets the memory tile nearest to a
// cluster. Tiles 0 through Rows-1 line the west edge and
// serve the first half of the clusters; the remaining
// tiles line the east edge.
func (m Mesh) ClosestMemTile(idx int) int {
	if idx < m.Size()/2 {
		return m.Row(idx)
	}
	return m.Row(idx) + m.Rows
}

// RowBits is the width of the row field in a packed
// cluster coordinate.
func (m Mesh) RowBits() int {
	return bits.Len(uint(m.Rows - 1))
}

// Pack encodes a coordinate in the bit layout used by
// multicast masks, which coincides with the linear index
// when Rows is a power of two.
func (m Mesh) Pack(row, col int) uint32 {
	return uint32(col)<<m.RowBits() | uint32(row)
}

// MaskFor builds the multicast mask of an nRows×nCols
// sub-mesh.
func (m Mesh) MaskFor(nRows, nCols int) uint32 {
	return m.Pack(nRows-1, nCols-1)
}

// Maskable checks if a sub-mesh can be addressed by a
// multicast mask: the packed layout must match the
// linear numbering, the extents must be powers of two and
// the origin must be aligned to them.
func (m Mesh) Maskable(nRows, nCols, startRow, startCol int) bool {
	return isPow2(m.Rows) && isPow2(nRows) && isPow2(nCols) &&
		startRow%nRows == 0 && startCol%nCols == 0
}

// Contains checks if a sub-mesh fits in the mesh.
func (m Mesh) Contains(nRows, nCols, startRow, startCol int) bool {
	return nRows > 0 && nCols > 0 && startRow >= 0 && startCol >= 0 &&
		startRow+nRows <= m.Rows && startCol+nCols <= m.Cols
}

// Hops is the XY routing distance between two positions
// on the floorplan.
func (m Mesh) Hops(a, b Position) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

// A Position is a router location on the floorplan.
// Column X=0 holds the west memory tiles, clusters occupy
// X=1..Cols, and X=Cols+1 holds the east memory tiles.
type Position struct {
	X int
	Y int
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// ClusterPos gets the router position of a cluster.
func (m Mesh) ClusterPos(idx int) Position {
	return Position{X: m.Col(idx) + 1, Y: m.Row(idx)}
}

// MemTilePos gets the router position of a memory tile.
func (m Mesh) MemTilePos(tile int) Position {
	if tile < m.Rows {
		return Position{X: 0, Y: tile}
	}
	return Position{X: m.Cols + 1, Y: tile - m.Rows}
}

func isPow2(x int) bool {
	return x > 0 && x&(x-1) == 0
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
