package bcast

import (
	"github.com/unixpickle/picobello/collcomm"
	"github.com/unixpickle/picobello/platform"
)

// Tree broadcasts along a binary tree: first across the
// root's row, then down every column from that row.
//
// Each level doubles the set of clusters that hold the
// data and ends in a barrier, since the next level's
// senders forward what they just received. A dimension of
// size one has no levels.
type Tree struct {
	// Barrier separates levels. It defaults to
	// collcomm.DefaultBarrier.
	Barrier collcomm.Barrier
}

// Broadcast runs every level of the tree.
func (t Tree) Broadcast(c collcomm.Cluster, comm *collcomm.Comm, dst, src platform.Addr,
	size int) error {
	if err := checkSize(comm, size); err != nil {
		return err
	}
	if !comm.IsParticipant {
		return nil
	}
	mesh := c.Mesh()
	row, col := mesh.Row(c.Index())-comm.StartRow, mesh.Col(c.Index())-comm.StartCol
	if c.Index() == comm.Root() {
		copyLocal(c, dst, src, size)
	}

	b := barrier(t.Barrier, comm)
	level := func(active bool, pos, n, lvl int, partner func(pos int) int) error {
		step := collcomm.BroadcastSchedule(lvl, pos, n)
		if active && step.Send && size > 0 {
			c.DMAStart(c.Addrs().RemoteAddr(dst, c.Index(), partner(step.Partner)), dst, size)
			c.DMAWaitAll()
		}
		return b.Wait(c, comm)
	}

	for lvl := 0; lvl < collcomm.NumLevels(comm.Cols); lvl++ {
		err := level(row == 0, col, comm.Cols, lvl, func(pos int) int {
			return mesh.Index(comm.StartRow, comm.StartCol+pos)
		})
		if err != nil {
			return err
		}
	}
	for lvl := 0; lvl < collcomm.NumLevels(comm.Rows); lvl++ {
		err := level(true, row, comm.Rows, lvl, func(pos int) int {
			return mesh.Index(comm.StartRow+pos, comm.StartCol+col)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
