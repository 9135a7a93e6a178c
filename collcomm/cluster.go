// Package collcomm implements communicators and barriers
// for collective operations between the clusters of a
// mesh.
//
// Every function in this package and its sub-packages is
// called by every cluster of the mesh, from the cluster's
// own data-movement core. Collectives are collective in
// the strict sense: each cluster must perform the same
// sequence of calls with the same arguments, or the mesh
// deadlocks. Buffers passed to a collective must sit at
// the same L1 offset in every cluster.
package collcomm

import (
	"github.com/unixpickle/picobello/platform"
	"github.com/unixpickle/picobello/topology"
)

// Cluster is the set of capabilities that collectives
// need from a cluster. It is implemented by
// *platform.Cluster.
type Cluster interface {
	Index() int
	Mesh() topology.Mesh
	Addrs() *platform.AddrMap
	Time() float64
	Sleep(cycles float64)

	AllocL1(size, align int) platform.Addr

	Load32(a platform.Addr) uint32
	Store32(a platform.Addr, value uint32)
	AtomicAdd32(a platform.Addr, delta uint32) uint32
	CollectiveStore32(a platform.Addr, value uint32, op platform.CollectiveOp, mask uint32)
	Fence()

	DMAStart(dst, src platform.Addr, size int)
	DMAStart2D(dst, src platform.Addr, size, dstStride, srcStride, reps int)
	DMAStartMulticast(dst, src platform.Addr, size int, mask uint32)
	DMAStartReduce(dst, src platform.Addr, size int, mask uint32, op platform.ReduceOp)
	DMAWaitAll()

	SendInterrupt(target int, mask uint32)
	WaitForInterrupt()
	ClearInterrupt()

	Combine(src1, src2, dst platform.Addr, count int)
	Compute(flops int)
}

var _ Cluster = (*platform.Cluster)(nil)
