package bcast

import (
	"github.com/unixpickle/picobello/collcomm"
	"github.com/unixpickle/picobello/platform"
)

// Sequential broadcasts by having the root copy the data
// to each member in turn, waiting for every copy before
// starting the next.
//
// It works for any communicator and serves as a baseline.
type Sequential struct{}

// Broadcast performs the copies from the root.
func (s Sequential) Broadcast(c collcomm.Cluster, comm *collcomm.Comm, dst, src platform.Addr,
	size int) error {
	if err := checkSize(comm, size); err != nil {
		return err
	}
	if c.Index() != comm.Root() || size == 0 {
		return nil
	}
	copyLocal(c, dst, src, size)
	for _, member := range comm.Members()[1:] {
		c.DMAStart(c.Addrs().RemoteAddr(dst, c.Index(), member), src, size)
		c.DMAWaitAll()
	}
	return nil
}
