// Package allreduce implements algorithms for summing
// vectors across the members of a communicator and
// leaving the sum on every member.
package allreduce

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/unixpickle/picobello/collcomm"
	"github.com/unixpickle/picobello/collcomm/reduce"
)

// Allreducer sums the Src buffers of every member of comm
// into the Dst buffer of every member.
//
// Like a reduction, the result is complete once Allreduce
// returns and a following barrier on comm completes. All
// members end up with bit-identical results.
type Allreducer interface {
	ScratchSize(comm *collcomm.Comm, count int) int
	Allreduce(c collcomm.Cluster, comm *collcomm.Comm, bufs reduce.Buffers) error
}

// Kind selects an Allreducer implementation.
type Kind int

const (
	KindHardware Kind = iota
	KindNaive
	KindRing
	KindTree
)

// Kinds lists every Kind.
var Kinds = []Kind{KindHardware, KindNaive, KindRing, KindTree}

func (k Kind) String() string {
	switch k {
	case KindHardware:
		return "hw"
	case KindNaive:
		return "naive"
	case KindRing:
		return "ring"
	case KindTree:
		return "tree"
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
	return 0, errors.Errorf("unknown allreduce kind: %q", s)
}

// New creates the Allreducer of a kind. Batches only
// applies to the tree.
func New(kind Kind, batches int) Allreducer {
	switch kind {
	case KindNaive:
		return Naive{}
	case KindRing:
		return Ring{}
	case KindTree:
		return NewTree(batches)
	}
	return NewHardware()
}

func checkBuffers(comm *collcomm.Comm, bufs reduce.Buffers) error {
	if bufs.Count < 0 {
		return errors.Wrapf(collcomm.ErrInvalidBuffer, "%d elements on %s", bufs.Count, comm)
	}
	size := uint64(bufs.Count * 8)
	if size > 0 && uint64(bufs.Src) < uint64(bufs.Dst)+size && uint64(bufs.Dst) < uint64(bufs.Src)+size {
		return errors.Wrapf(collcomm.ErrInvalidBuffer, "source %s overlaps destination %s",
			bufs.Src, bufs.Dst)
	}
	return nil
}
