// Package bcast implements algorithms for copying a
// buffer from the root of a communicator to every member.
package bcast

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/unixpickle/picobello/collcomm"
	"github.com/unixpickle/picobello/platform"
)

// A Broadcaster copies size bytes at src, an address in
// the root's view, to dst in every member of comm.
//
// dst is an L1 address in the caller's own view, and must
// be at the same offset in every cluster. Once Broadcast
// returns and a following barrier on comm completes,
// every member's dst holds the bytes that src held when
// Broadcast was called.
type Broadcaster interface {
	Broadcast(c collcomm.Cluster, comm *collcomm.Comm, dst, src platform.Addr, size int) error
}

// Kind selects a Broadcaster implementation.
type Kind int

const (
	KindHardware Kind = iota
	KindSequential
	KindTree
	KindPipelined
)

// Kinds lists every Kind.
var Kinds = []Kind{KindHardware, KindSequential, KindTree, KindPipelined}

func (k Kind) String() string {
	switch k {
	case KindHardware:
		return "hw"
	case KindSequential:
		return "seq"
	case KindTree:
		return "tree"
	case KindPipelined:
		return "pipelined"
	}
	return "unknown"
}

// ParseKind parses the names produced by Kind.String.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, errors.Errorf("unknown broadcast kind: %q", s)
}

// New creates the Broadcaster of a kind. Batches only
// applies to pipelined broadcasts.
func New(kind Kind, batches int) Broadcaster {
	switch kind {
	case KindSequential:
		return Sequential{}
	case KindTree:
		return Tree{}
	case KindPipelined:
		return Pipelined{Batches: batches}
	}
	return Hardware{}
}

func checkSize(comm *collcomm.Comm, size int) error {
	if size < 0 {
		return errors.Wrapf(collcomm.ErrInvalidBuffer, "broadcast of %d bytes on %s", size, comm)
	}
	return nil
}

func barrier(b collcomm.Barrier, comm *collcomm.Comm) collcomm.Barrier {
	if b == nil {
		return collcomm.DefaultBarrier(comm)
	}
	return b
}

// copyLocal copies the root's source into its own
// destination, if they differ.
func copyLocal(c collcomm.Cluster, dst, src platform.Addr, size int) {
	if dst != src {
		c.DMAStart(dst, src, size)
		c.DMAWaitAll()
	}
}
