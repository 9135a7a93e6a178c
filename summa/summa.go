// Package summa drives tiled matrix multiplications over
// the whole mesh, moving tiles between L3 and the clusters
// with the collectives of collcomm.
//
// Every iteration performs, in order, the write-back of a
// finished C tile, the loads of the next operand tiles,
// the multiplication of the current tiles, and, when the
// k dimension is split across clusters, the reduction of
// partial C tiles. Iterations end in a global barrier.
package summa

import (
	"github.com/pkg/errors"

	"github.com/unixpickle/picobello/collcomm"
	"github.com/unixpickle/picobello/collcomm/bcast"
	"github.com/unixpickle/picobello/collcomm/reduce"
	"github.com/unixpickle/picobello/platform"
)

// ErrInvalidArgs is returned for matrix shapes that do
// not tile onto the mesh.
var ErrInvalidArgs = errors.New("invalid gemm arguments")

// Cluster extends collcomm.Cluster with the data access of
// the compute cores.
type Cluster interface {
	collcomm.Cluster
	ReadFloat64s(a platform.Addr, n int) []float64
	WriteFloat64s(a platform.Addr, values []float64)
}

var _ Cluster = (*platform.Cluster)(nil)

// Args describes C = Beta*C + A*B for row-major matrices
// of doubles, where A is MxK, B is KxN and C is MxN.
type Args struct {
	M, N, K int

	MTiles, NTiles, KTiles int

	A, B, C platform.Addr
	Beta    float64

	// DoubleBuffer overlaps the transfers of one tile
	// with the computation of the previous one.
	DoubleBuffer bool

	// ParallelizeK splits the k tiles across all
	// clusters, which then sum their partial C tiles into
	// cluster 0 with Reducer. Otherwise, m tiles are split
	// across mesh rows and n tiles across mesh columns.
	ParallelizeK bool

	// Broadcaster, if set, has the first row of each
	// column load the B tiles and share them with the rest
	// of the column. Otherwise every cluster loads its own
	// B tiles. It cannot be combined with ParallelizeK.
	Broadcaster bcast.Broadcaster

	// Reducer combines partial tiles with ParallelizeK. It
	// defaults to a reduce.Tree.
	Reducer reduce.Reducer

	// Barrier ends every iteration. It defaults to the
	// hardware barrier, or to a collcomm.SoftwareBarrier
	// if Broadcaster is set, since the hardware barriers
	// of the first column share a router with the global
	// barrier.
	Barrier collcomm.Barrier
}

// Comms are the communicators used by Gemm.
type Comms struct {
	World *collcomm.Comm
	Cols  []*collcomm.Comm
}

// NewComms creates a communicator for every column of the
// mesh. Like collcomm.NewMeshComm, it must be called by
// every cluster.
func NewComms(c collcomm.Cluster) (*Comms, error) {
	mesh := c.Mesh()
	res := &Comms{World: collcomm.World(c)}
	for col := 0; col < mesh.Cols; col++ {
		comm, err := collcomm.NewMeshComm(c, mesh.Rows, 1, 0, col)
		if err != nil {
			return nil, errors.Wrap(err, "create column communicators")
		}
		res.Cols = append(res.Cols, comm)
	}
	return res, nil
}

// Gemm runs a multiplication on every cluster.
func Gemm(c Cluster, comms *Comms, args Args) error {
	p, err := NewPlan(c, comms, args)
	if err != nil {
		return err
	}
	return p.Run()
}
