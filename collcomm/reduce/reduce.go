// Package reduce implements algorithms for summing vectors
// of doubles across the members of a communicator into the
// root.
package reduce

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/unixpickle/picobello/collcomm"
	"github.com/unixpickle/picobello/platform"
)

// Buffers are the L1 buffers of one reduction. Each must
// sit at the same offset in every cluster.
type Buffers struct {
	// Src holds this cluster's Count doubles. It is never
	// written.
	Src platform.Addr

	// Dst receives the Count summed doubles on the root.
	// On other members it may be used for partial sums.
	Dst platform.Addr

	// Scratch must hold Reducer.ScratchSize bytes.
	Scratch platform.Addr

	Count int
}

// A Reducer sums the Src buffers of every member of comm
// into the root's Dst.
//
// The result is complete once Reduce returns and a
// following barrier on comm completes. The order in which
// values are added is fixed by the algorithm and the
// communicator, so results are reproducible.
type Reducer interface {
	ScratchSize(comm *collcomm.Comm, count int) int
	Reduce(c collcomm.Cluster, comm *collcomm.Comm, bufs Buffers) error
}

// Kind selects a Reducer implementation.
type Kind int

const (
	KindHardware Kind = iota
	KindHardwareTwoStage
	KindStar
	KindTree
	KindTwoStage
)

// Kinds lists every Kind.
var Kinds = []Kind{KindHardware, KindHardwareTwoStage, KindStar, KindTree, KindTwoStage}

func (k Kind) String() string {
	switch k {
	case KindHardware:
		return "hw"
	case KindHardwareTwoStage:
		return "hw-2stage"
	case KindStar:
		return "star"
	case KindTree:
		return "tree"
	case KindTwoStage:
		return "2stage"
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
	return 0, errors.Errorf("unknown reduction kind: %q", s)
}

// New creates the Reducer of a kind. Batches does not
// apply to hardware reductions.
func New(kind Kind, batches int) Reducer {
	switch kind {
	case KindHardwareTwoStage:
		return Hardware{TwoStage: true}
	case KindStar:
		return Star{Batches: batches}
	case KindTree:
		return Tree{Batches: batches}
	case KindTwoStage:
		return TwoStage{Batches: batches}
	}
	return Hardware{}
}

// batching splits count doubles into equal batches.
type batching struct {
	Num   int
	Count int
}

func newBatching(comm *collcomm.Comm, bufs Buffers, batches int) (batching, error) {
	if batches <= 0 {
		batches = 1
	}
	if bufs.Count < 0 {
		return batching{}, errors.Wrapf(collcomm.ErrInvalidBuffer, "%d elements on %s",
			bufs.Count, comm)
	}
	if bufs.Count%batches != 0 {
		return batching{}, errors.Wrapf(collcomm.ErrInvalidBuffer,
			"%d elements do not split into %d batches", bufs.Count, batches)
	}
	if overlaps(bufs.Src, bufs.Dst, bufs.Count*8) {
		return batching{}, errors.Wrapf(collcomm.ErrInvalidBuffer, "source %s overlaps destination %s",
			bufs.Src, bufs.Dst)
	}
	return batching{Num: batches, Count: bufs.Count / batches}, nil
}

// Bytes is the size of one batch.
func (b batching) Bytes() int {
	return b.Count * 8
}

// At gets the address of a batch in a buffer of doubles.
func (b batching) At(buf platform.Addr, batch int) platform.Addr {
	return buf.Add(batch * b.Bytes())
}

func batchBytes(count, batches int) int {
	if batches <= 0 {
		batches = 1
	}
	return count / batches * 8
}

func overlaps(a, b platform.Addr, size int) bool {
	return size > 0 && uint64(a) < uint64(b)+uint64(size) && uint64(b) < uint64(a)+uint64(size)
}

func barrier(b collcomm.Barrier, comm *collcomm.Comm) collcomm.Barrier {
	if b == nil {
		return collcomm.DefaultBarrier(comm)
	}
	return b
}

// copyLocal handles single-member reductions.
func copyLocal(c collcomm.Cluster, bufs Buffers) {
	if bufs.Count > 0 {
		c.DMAStart(bufs.Dst, bufs.Src, bufs.Count*8)
		c.DMAWaitAll()
	}
}
