package platform

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/unixpickle/picobello/simulator"
	"github.com/unixpickle/picobello/topology"
)

const localAccessCycles = 1

// A Cluster is the view of the machine from the
// data-movement core of one cluster.
//
// A Cluster must only be used by the Goroutine that Run
// started for it.
type Cluster struct {
	m    *Machine
	idx  int
	mem  *memory
	core *simulator.Port
	irq  *simulator.EventStream
	h    *simulator.Handle

	l1Next uint64
	l3Next []uint64

	pendingDMA    int
	pendingStores int
	irqPending    bool
}

func (c *Cluster) reset() {
	c.l1Next = c.m.cfg.L1Reserved
	c.l3Next = make([]uint64, len(c.m.l3))
	c.pendingDMA = 0
	c.pendingStores = 0
	c.irqPending = false
	for i := range c.mem.data[:c.m.cfg.L1Reserved] {
		c.mem.data[i] = 0
	}
}

// Index is the cluster's linear index in the mesh.
func (c *Cluster) Index() int {
	return c.idx
}

// Mesh gets the cluster mesh.
func (c *Cluster) Mesh() topology.Mesh {
	return c.m.mesh
}

// Addrs gets the address translator.
func (c *Cluster) Addrs() *AddrMap {
	return c.m.addrs
}

// Lanes is the number of compute cores that share
// element-wise work.
func (c *Cluster) Lanes() int {
	return c.m.cfg.ComputeCores
}

// Time gets the current virtual time in cycles.
func (c *Cluster) Time() float64 {
	return c.h.Time()
}

// Sleep idles the data-movement core.
func (c *Cluster) Sleep(cycles float64) {
	if cycles > 0 {
		c.h.Sleep(cycles)
	}
}

// AllocL1 reserves size bytes of this cluster's L1.
//
// Every cluster that performs the same sequence of
// allocations receives the same offsets, which is what
// makes RemoteAddr valid for buffers used in collectives.
func (c *Cluster) AllocL1(size, align int) Addr {
	off := alignUp(c.l1Next, align)
	if off+uint64(size) > c.m.cfg.L1Size {
		panic(fmt.Sprintf("cluster %d: L1 exhausted allocating %d bytes", c.idx, size))
	}
	c.l1Next = off + uint64(size)
	return c.m.addrs.ClusterAddr(c.idx, off)
}

// AllocL3 reserves size bytes of a memory tile.
//
// The allocator is replicated on every cluster rather
// than shared, so clusters agree on the result as long as
// they perform the same allocations.
func (c *Cluster) AllocL3(tile, size, align int) Addr {
	off := alignUp(c.l3Next[tile], align)
	if off+uint64(size) > c.m.cfg.L3TileSize {
		panic(fmt.Sprintf("memory tile %d exhausted allocating %d bytes", tile, size))
	}
	c.l3Next[tile] = off + uint64(size)
	return c.m.addrs.L3TileAddr(tile, off)
}

// Load32 reads a word, blocking until it arrives.
func (c *Cluster) Load32(a Addr) uint32 {
	if c.isLocal(a) {
		c.Sleep(localAccessCycles)
		return c.m.ReadUint32(a)
	}
	c.sendNarrow(a, &loadReq{addr: a, issuer: c})
	for {
		if resp, ok := c.await().(*loadResp); ok {
			return resp.value
		}
	}
}

// Store32 writes a word. Remote stores are posted; use
// Fence to wait for them to land.
func (c *Cluster) Store32(a Addr, value uint32) {
	if c.isLocal(a) {
		c.Sleep(localAccessCycles)
		binary.LittleEndian.PutUint32(c.m.bytes(a, 4), value)
		return
	}
	c.pendingStores++
	c.sendNarrow(a, &storeReq{addr: a, value: value, issuer: c})
}

// AtomicAdd32 adds to a word and returns its old value.
func (c *Cluster) AtomicAdd32(a Addr, delta uint32) uint32 {
	if c.isLocal(a) {
		c.Sleep(localAccessCycles)
		buf := c.m.bytes(a, 4)
		old := binary.LittleEndian.Uint32(buf)
		binary.LittleEndian.PutUint32(buf, old+delta)
		return old
	}
	c.sendNarrow(a, &amoReq{addr: a, delta: delta, issuer: c})
	for {
		if resp, ok := c.await().(*amoResp); ok {
			return resp.old
		}
	}
}

// CollectiveStore32 writes a word tagged with a
// collective operation and multicast mask. The write is
// acknowledged once the interconnect completes the
// collective, so a following Fence blocks until then.
func (c *Cluster) CollectiveStore32(a Addr, value uint32, op CollectiveOp, mask uint32) {
	if op != OpReductionBarrier {
		panic(fmt.Sprintf("unsupported collective op %d", op))
	}
	target, ok := c.m.addrs.ClusterOf(a)
	if !ok {
		panic(fmt.Sprintf("collective store to %s outside of any L1", a))
	}
	c.pendingStores++
	c.m.narrow.Send(c.h, &simulator.Message{
		Source: c.core,
		Dest:   c.m.l1[target].port,
		Message: &collectiveReq{
			key:    collectiveKey{addr: a, mask: mask},
			issuer: c,
		},
		Size: 4,
	})
}

// Fence blocks until every posted store of this core has
// been acknowledged.
func (c *Cluster) Fence() {
	for c.pendingStores > 0 {
		c.await()
	}
}

// DMAStart issues a copy of size bytes. It does not wait
// for the transfer.
func (c *Cluster) DMAStart(dst, src Addr, size int) {
	c.DMAStart2D(dst, src, size, 0, 0, 1)
}

// DMAStart2D issues reps copies of size bytes, advancing
// the destination and source by their strides.
func (c *Cluster) DMAStart2D(dst, src Addr, size, dstStride, srcStride, reps int) {
	if size == 0 || reps == 0 {
		return
	}
	dstMem, _ := c.m.resolve(dst)
	srcMem, _ := c.m.resolve(src)
	chunks := make([]dmaChunk, reps)
	for i := range chunks {
		d, s := dst.Add(i*dstStride), src.Add(i*srcStride)
		if mem, _ := c.m.resolve(d); mem != dstMem {
			panic(fmt.Sprintf("2D transfer to %s leaves %s", d, dstMem.region))
		}
		chunks[i] = dmaChunk{dst: d, data: c.m.ReadBytes(s, size)}
	}
	id := sim.GetIDGenerator().Generate()
	Trace("dma", "id", id, "cluster", c.idx, "dst", dst, "src", src, "bytes", size*reps)

	c.pendingDMA++
	c.m.wide.Send(c.h, &simulator.Message{
		Source:  srcMem.port,
		Dest:    dstMem.port,
		Message: &dmaWrite{id: id, chunks: chunks, issuer: c},
		Size:    float64(size * reps),
	})
}

// DMAStartMulticast issues a copy that the interconnect
// duplicates to every cluster selected by mask relative to
// the cluster owning dst. The destination address is
// translated to the same L1 offset in each of them.
func (c *Cluster) DMAStartMulticast(dst, src Addr, size int, mask uint32) {
	target, ok := c.m.addrs.ClusterOf(dst)
	if !ok {
		panic(fmt.Sprintf("multicast to %s outside of any L1", dst))
	}
	if size == 0 {
		return
	}
	srcMem, _ := c.m.resolve(src)
	data := c.m.ReadBytes(src, size)
	id := sim.GetIDGenerator().Generate()
	targets := c.m.multicastTargets(target, mask)
	Trace("dma multicast", "id", id, "cluster", c.idx, "dst", dst, "mask", mask,
		"targets", len(targets), "bytes", size)

	for _, t := range targets {
		mem := c.m.l1[t]
		delay := c.m.wideLatency(srcMem.port.Node, mem.port.Node) + float64(size)/c.m.cfg.WideRate
		c.pendingDMA++
		c.h.Schedule(mem.port.Incoming, &dmaWrite{
			id:     id,
			chunks: []dmaChunk{{dst: c.m.addrs.RemoteAddr(dst, target, t), data: data}},
			issuer: c,
		}, delay)
	}
}

// DMAStartReduce contributes size bytes of doubles to an
// in-network reduction into dst. The reduction completes
// once every cluster selected by mask relative to dst's
// cluster has contributed.
func (c *Cluster) DMAStartReduce(dst, src Addr, size int, mask uint32, op ReduceOp) {
	if op != ReduceFAdd {
		panic(fmt.Sprintf("unsupported reduce op %d", op))
	}
	if size%8 != 0 {
		panic(fmt.Sprintf("reduction of %d bytes is not a whole number of doubles", size))
	}
	target, ok := c.m.addrs.ClusterOf(dst)
	if !ok {
		panic(fmt.Sprintf("reduction into %s outside of any L1", dst))
	}
	srcMem, _ := c.m.resolve(src)
	id := sim.GetIDGenerator().Generate()
	Trace("dma reduce", "id", id, "cluster", c.idx, "dst", dst, "mask", mask, "bytes", size)

	mem := c.m.l1[target]
	delay := c.m.wideLatency(srcMem.port.Node, mem.port.Node) + float64(size)/c.m.cfg.WideRate
	c.pendingDMA++
	c.h.Schedule(mem.port.Incoming, &collectiveReq{
		id:     id,
		key:    collectiveKey{addr: dst, mask: mask, reduce: true},
		data:   c.m.ReadFloat64s(src, size/8),
		issuer: c,
	}, delay)
}

// DMAWaitAll blocks until every transfer issued by this
// core has completed.
func (c *Cluster) DMAWaitAll() {
	for c.pendingDMA > 0 {
		c.await()
	}
}

// SendInterrupt raises the interrupt of the data-movement
// core in every cluster selected by mask relative to
// target. A mask of 0 addresses target alone.
//
// Like any store, the interrupt write is posted.
func (c *Cluster) SendInterrupt(target int, mask uint32) {
	for _, t := range c.m.multicastTargets(target, mask) {
		c.pendingStores++
		c.m.narrow.Send(c.h, &simulator.Message{
			Source:  c.core,
			Dest:    c.m.l1[t].port,
			Message: &irqReq{target: t, issuer: c},
			Size:    4,
		})
	}
}

// WaitForInterrupt blocks until the interrupt is pending.
// It returns immediately if it already is.
func (c *Cluster) WaitForInterrupt() {
	for !c.irqPending {
		c.h.Poll(c.irq)
	}
}

// ClearInterrupt clears a pending interrupt.
func (c *Cluster) ClearInterrupt() {
	c.irqPending = false
	c.h.Drain(c.irq)
}

func (c *Cluster) raiseInterrupt(d *simulator.Dispatch) {
	Trace("interrupt", "cluster", c.idx, "pending", c.irqPending)
	if !c.irqPending {
		c.irqPending = true
		d.Schedule(c.irq, nil, 0)
	}
}

// Combine stores the element-wise sum of count doubles at
// src1 and src2 into dst, striping the elements across
// the compute lanes.
//
// The destination may not overlap either source.
func (c *Cluster) Combine(src1, src2, dst Addr, count int) {
	size := uint64(count * 8)
	for _, src := range []Addr{src1, src2} {
		if uint64(dst) < uint64(src)+size && uint64(src) < uint64(dst)+size {
			panic(fmt.Sprintf("combine into %s overlaps source %s", dst, src))
		}
	}
	a := c.m.ReadFloat64s(src1, count)
	b := c.m.ReadFloat64s(src2, count)
	res := make([]float64, count)
	lanes := c.Lanes()
	for lane := 0; lane < lanes; lane++ {
		for i := lane; i < count; i += lanes {
			res[i] = a[i] + b[i]
		}
	}
	c.Compute(count)
	c.m.WriteFloat64s(dst, res)
}

// Compute charges the time of flops floating-point
// operations spread over the compute lanes.
func (c *Cluster) Compute(flops int) {
	lanes := c.Lanes()
	c.Sleep(math.Ceil(float64(flops)/float64(lanes)) * c.m.cfg.FlopTime)
}

// ReadBytes copies memory without simulating any access.
func (c *Cluster) ReadBytes(a Addr, n int) []byte {
	return c.m.ReadBytes(a, n)
}

// WriteBytes stores memory without simulating any access.
func (c *Cluster) WriteBytes(a Addr, data []byte) {
	c.m.WriteBytes(a, data)
}

// ReadFloat64s decodes doubles without simulating any
// access.
func (c *Cluster) ReadFloat64s(a Addr, n int) []float64 {
	return c.m.ReadFloat64s(a, n)
}

// WriteFloat64s encodes doubles without simulating any
// access.
func (c *Cluster) WriteFloat64s(a Addr, values []float64) {
	c.m.WriteFloat64s(a, values)
}

// Fill32 stores n copies of a word without simulating any
// access.
func (c *Cluster) Fill32(a Addr, n int, value uint32) {
	c.m.Fill32(a, n, value)
}

func (c *Cluster) isLocal(a Addr) bool {
	idx, ok := c.m.addrs.ClusterOf(a)
	return ok && idx == c.idx
}

func (c *Cluster) sendNarrow(a Addr, req interface{}) {
	mem, _ := c.m.resolve(a)
	c.m.narrow.Send(c.h, &simulator.Message{
		Source:  c.core,
		Dest:    mem.port,
		Message: req,
		Size:    4,
	})
}

// await handles the next response to this core.
func (c *Cluster) await() interface{} {
	msg := c.h.Poll(c.core.Incoming).Message
	switch msg.(type) {
	case *dmaDone:
		c.pendingDMA--
	case *storeAck:
		c.pendingStores--
	}
	return msg
}

func alignUp(x uint64, align int) uint64 {
	if align <= 1 {
		return x
	}
	a := uint64(align)
	return (x + a - 1) / a * a
}
