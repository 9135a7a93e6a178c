package allreduce

import (
	"github.com/unixpickle/picobello/collcomm"
	"github.com/unixpickle/picobello/collcomm/bcast"
	"github.com/unixpickle/picobello/collcomm/reduce"
)

// Composite reduces into the root and then broadcasts the
// root's result to every member.
type Composite struct {
	Reducer     reduce.Reducer
	Broadcaster bcast.Broadcaster

	// Barrier separates the two phases. It defaults to
	// collcomm.DefaultBarrier.
	Barrier collcomm.Barrier
}

// NewTree creates a Composite that goes up a binomial tree
// and then back down a binary tree.
func NewTree(batches int) Composite {
	return Composite{
		Reducer:     reduce.Tree{Batches: batches},
		Broadcaster: bcast.Tree{},
	}
}

// NewHardware creates a Composite that uses in-network
// reduction and multicast.
func NewHardware() Composite {
	return Composite{
		Reducer:     reduce.Hardware{},
		Broadcaster: bcast.Hardware{},
	}
}

// ScratchSize is the scratch space of the Reducer.
func (co Composite) ScratchSize(comm *collcomm.Comm, count int) int {
	return co.Reducer.ScratchSize(comm, count)
}

// Allreduce runs both phases.
func (co Composite) Allreduce(c collcomm.Cluster, comm *collcomm.Comm, bufs reduce.Buffers) error {
	if err := co.Reducer.Reduce(c, comm, bufs); err != nil {
		return err
	}
	b := co.Barrier
	if b == nil {
		b = collcomm.DefaultBarrier(comm)
	}
	if err := b.Wait(c, comm); err != nil {
		return err
	}
	return co.Broadcaster.Broadcast(c, comm, bufs.Dst, bufs.Dst, bufs.Count*8)
}
