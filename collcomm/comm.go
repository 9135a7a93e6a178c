package collcomm

import (
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/unixpickle/picobello/platform"
	"github.com/unixpickle/picobello/topology"
)

// ErrUnsupportedParticipantCount is returned by hardware
// collectives on communicators that a multicast mask
// cannot address.
var ErrUnsupportedParticipantCount = errors.New("unsupported participant count")

// ErrInvalidBuffer is returned by collectives whose buffer
// sizes do not fit the chosen algorithm.
var ErrInvalidBuffer = errors.New("invalid buffer")

// A Comm describes a rectangular sub-mesh of clusters that
// jointly execute collectives.
//
// Every cluster of the mesh holds its own Comm value for a
// given sub-mesh, including clusters outside of it. The
// values differ only in IsParticipant.
//
// Ranks number the members column-major, like cluster
// indices, so rank 0 is the root at (StartRow, StartCol).
type Comm struct {
	Mesh topology.Mesh

	Rows     int
	Cols     int
	StartRow int
	StartCol int
	Size     int

	// Mask selects the members in multicast and reduction
	// transfers. It is only meaningful if Maskable().
	Mask uint32

	// Base is the packed coordinate of the root.
	Base uint32

	// BarrierPtr is the software barrier counter, which
	// lives in the root's L1.
	BarrierPtr platform.Addr

	IsParticipant bool
}

// NewMeshComm creates a communicator for the sub-mesh of
// rows×cols clusters starting at (startRow, startCol).
//
// It must be called by every cluster of the mesh, since it
// allocates the barrier counter from every L1 and ends in a
// full-mesh barrier which publishes the counter's zero
// value.
func NewMeshComm(c Cluster, rows, cols, startRow, startCol int) (*Comm, error) {
	mesh := c.Mesh()
	if !mesh.Contains(rows, cols, startRow, startCol) {
		return nil, errors.Wrapf(topology.ErrInvalidTopology,
			"%dx%d sub-mesh at (%d,%d) in a %dx%d mesh", rows, cols, startRow, startCol,
			mesh.Rows, mesh.Cols)
	}

	root := mesh.Index(startRow, startCol)
	counter := c.AllocL1(4, 4)
	comm := &Comm{
		Mesh:       mesh,
		Rows:       rows,
		Cols:       cols,
		StartRow:   startRow,
		StartCol:   startCol,
		Size:       rows * cols,
		Mask:       mesh.MaskFor(rows, cols),
		Base:       mesh.Pack(startRow, startCol),
		BarrierPtr: c.Addrs().RemoteAddr(counter, c.Index(), root),
	}
	comm.IsParticipant = comm.Contains(c.Index())

	if c.Index() == root {
		c.Store32(comm.BarrierPtr, 0)
		c.Fence()
		slog.Debug("communicator created", "comm", comm.String(), "counter", comm.BarrierPtr,
			"maskable", comm.Maskable())
	}
	if err := GlobalBarrier(c); err != nil {
		return nil, errors.Wrap(err, "publish "+comm.String())
	}
	return comm, nil
}

// World gets the communicator of the whole mesh.
//
// It needs no setup: its counter lives in the runtime
// header of cluster 0, which is zeroed at boot.
func World(c Cluster) *Comm {
	mesh := c.Mesh()
	return &Comm{
		Mesh:          mesh,
		Rows:          mesh.Rows,
		Cols:          mesh.Cols,
		Size:          mesh.Size(),
		Mask:          mesh.MaskFor(mesh.Rows, mesh.Cols),
		BarrierPtr:    c.Addrs().ClusterAddr(0, platform.WorldBarrierOffset),
		IsParticipant: true,
	}
}

// Root gets the cluster index of rank 0.
func (c *Comm) Root() int {
	return c.Mesh.Index(c.StartRow, c.StartCol)
}

// Contains checks if a cluster is a member.
func (c *Comm) Contains(idx int) bool {
	row, col := c.Mesh.Row(idx), c.Mesh.Col(idx)
	return row >= c.StartRow && row < c.StartRow+c.Rows &&
		col >= c.StartCol && col < c.StartCol+c.Cols
}

// Rank gets the rank of a member cluster, or -1 if the
// cluster is not a member.
func (c *Comm) Rank(idx int) int {
	if !c.Contains(idx) {
		return -1
	}
	row, col := c.Mesh.Row(idx)-c.StartRow, c.Mesh.Col(idx)-c.StartCol
	return col*c.Rows + row
}

// MemberAt gets the cluster index of a rank.
func (c *Comm) MemberAt(rank int) int {
	return c.Mesh.Index(c.StartRow+rank%c.Rows, c.StartCol+rank/c.Rows)
}

// Members lists the member clusters in rank order.
func (c *Comm) Members() []int {
	return lo.Map(lo.Range(c.Size), func(rank int, _ int) int {
		return c.MemberAt(rank)
	})
}

// Maskable checks if multicast and reduction transfers
// can address exactly the members.
func (c *Comm) Maskable() bool {
	return c.Mesh.Maskable(c.Rows, c.Cols, c.StartRow, c.StartCol)
}

func (c *Comm) String() string {
	return fmt.Sprintf("comm %dx%d@(%d,%d)", c.Rows, c.Cols, c.StartRow, c.StartCol)
}
