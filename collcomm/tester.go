package collcomm

import "fmt"

// A TestShape is a sub-mesh of a 4x4 mesh to run
// collectives on in tests.
type TestShape struct {
	Rows, Cols, StartRow, StartCol int
}

func (s TestShape) String() string {
	return fmt.Sprintf("%dx%d@(%d,%d)", s.Rows, s.Cols, s.StartRow, s.StartCol)
}

// NewComm creates the communicator of the shape.
func (s TestShape) NewComm(c Cluster) (*Comm, error) {
	return NewMeshComm(c, s.Rows, s.Cols, s.StartRow, s.StartCol)
}

// TestShapes covers 1, 4, 8, and 16 participants, plus a
// sub-mesh that no multicast mask describes.
var TestShapes = []TestShape{
	{1, 1, 0, 0},
	{2, 2, 0, 0},
	{2, 2, 2, 2},
	{1, 4, 1, 0},
	{4, 1, 0, 3},
	{4, 2, 0, 2},
	{2, 4, 2, 0},
	{4, 4, 0, 0},
	{3, 2, 1, 1},
}

// StaggerCycles is the per-column delay used by the
// staggered cases of the collective test batteries.
const StaggerCycles = 200

// Stagger delays the calling cluster by perCol cycles for
// every mesh column east of its own, so the westernmost
// column starts last. It does nothing if perCol is zero.
func Stagger(c Cluster, perCol float64) {
	if perCol == 0 {
		return
	}
	mesh := c.Mesh()
	if delay := perCol * float64(mesh.Cols-1-mesh.Col(c.Index())); delay > 0 {
		c.Sleep(delay)
	}
}
