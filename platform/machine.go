// Package platform simulates a Picobello fabric: a mesh of
// compute clusters with private L1 scratchpads, shared
// memory tiles, a wide DMA network, a narrow network for
// word accesses and interrupts, and per-router hardware
// for multicast and in-network reductions.
//
// Each cluster's data-movement core is one Goroutine on a
// simulator.EventLoop. Clusters interact with the machine
// only through a *Cluster, which provides the capabilities
// collective algorithms are written against.
package platform

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/unixpickle/picobello/simulator"
	"github.com/unixpickle/picobello/topology"
)

// WorldBarrierOffset is the L1 offset, within the reserved
// runtime header, of the full-mesh barrier counter.
const WorldBarrierOffset = 0

// A Machine is an instance of the simulated fabric.
//
// Memory contents survive between calls to Run, but the
// allocators are rewound, as if the program were booted
// again. A Machine whose Run failed must not be reused.
type Machine struct {
	cfg   Config
	mesh  topology.Mesh
	addrs *AddrMap

	loop   *simulator.EventLoop
	wide   *simulator.SwitcherNetwork
	narrow *simulator.OrderedNetwork

	l1       []*memory
	l3       []*memory
	units    []*collectiveUnit
	clusters []*Cluster
}

// NewMachine builds a machine with zeroed memories.
func NewMachine(cfg Config) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Machine{
		cfg:   cfg,
		mesh:  cfg.Mesh(),
		addrs: cfg.AddrMap(),
		loop:  simulator.NewEventLoop(),
	}
	m.loop.SetTimeLimit(cfg.TimeLimit)

	numClusters := m.mesh.Size()
	numTiles := m.mesh.NumMemTiles()
	for i := 0; i < numClusters; i++ {
		node := simulator.NewNode(i, "cluster")
		mem := m.newMemory(node, Region{Kind: RegionL1, Index: i}, cfg.L1Size)
		m.l1 = append(m.l1, mem)
		m.units = append(m.units, &collectiveUnit{m: m, idx: i})
		m.clusters = append(m.clusters, &Cluster{
			m:    m,
			idx:  i,
			mem:  mem,
			core: node.Port(m.loop),
			irq:  m.loop.Stream(),
		})
	}
	for i := 0; i < numTiles; i++ {
		node := simulator.NewNode(numClusters+i, "memtile")
		m.l3 = append(m.l3, m.newMemory(node, Region{Kind: RegionL3, Index: i}, cfg.L3TileSize))
	}

	switcher := simulator.NewGreedyDropSwitcher(numClusters+numTiles, cfg.WideRate)
	for i := numClusters; i < numClusters+numTiles; i++ {
		switcher.SendRates[i] = cfg.L3Rate
		switcher.RecvRates[i] = cfg.L3Rate
	}
	m.wide = simulator.NewSwitcherNetwork(switcher, numClusters+numTiles, m.wideLatency)
	m.narrow = simulator.NewOrderedNetwork(cfg.NarrowRate, m.narrowLatency, cfg.NarrowJitter)

	return m, nil
}

// Config gets the machine's configuration.
func (m *Machine) Config() Config {
	return m.cfg
}

// Mesh gets the cluster mesh.
func (m *Machine) Mesh() topology.Mesh {
	return m.mesh
}

// Addrs gets the address translator.
func (m *Machine) Addrs() *AddrMap {
	return m.addrs
}

// Run starts fn on every cluster and blocks until all of
// them return and their outstanding transfers complete.
//
// The error wraps simulator.ErrDeadlock if the clusters
// block forever, or simulator.ErrTimeLimit if the
// configured time limit passes first.
func (m *Machine) Run(fn func(c *Cluster)) error {
	for _, c := range m.clusters {
		c.reset()
		cluster := c
		m.loop.Go(func(h *simulator.Handle) {
			cluster.h = h
			fn(cluster)
			// Retire posted writes so that no response
			// outlives the program.
			cluster.Fence()
			cluster.DMAWaitAll()
		})
	}
	return errors.Wrap(m.loop.Run(), "run machine")
}

// SetDown disconnects a cluster from the narrow network,
// as if it crashed. It must be called before Run.
func (m *Machine) SetDown(idx int) {
	m.narrow.SetDown(nil, m.clusters[idx].core.Node, true)
}

// Cycles gets the current virtual time.
func (m *Machine) Cycles() float64 {
	return m.loop.Time()
}

// Seconds converts the current virtual time to seconds at
// the configured clock frequency.
func (m *Machine) Seconds() sim.VTimeInSec {
	return sim.VTimeInSec(m.Cycles() / float64(m.cfg.ClockFreq))
}

// ReadBytes copies memory without simulating any access.
func (m *Machine) ReadBytes(a Addr, n int) []byte {
	return append([]byte{}, m.bytes(a, n)...)
}

// WriteBytes stores memory without simulating any access.
func (m *Machine) WriteBytes(a Addr, data []byte) {
	copy(m.bytes(a, len(data)), data)
}

// ReadFloat64s decodes n doubles without simulating any
// access.
func (m *Machine) ReadFloat64s(a Addr, n int) []float64 {
	return decodeFloat64s(m.bytes(a, n*8))
}

// WriteFloat64s encodes doubles without simulating any
// access.
func (m *Machine) WriteFloat64s(a Addr, values []float64) {
	encodeFloat64s(m.bytes(a, len(values)*8), values)
}

// ReadUint32 decodes a word without simulating any access.
func (m *Machine) ReadUint32(a Addr) uint32 {
	return binary.LittleEndian.Uint32(m.bytes(a, 4))
}

// Fill32 stores n copies of a word without simulating any
// access.
func (m *Machine) Fill32(a Addr, n int, value uint32) {
	buf := m.bytes(a, n*4)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], value)
	}
}

func (m *Machine) memoryOf(region Region) *memory {
	if region.Kind == RegionL1 {
		return m.l1[region.Index]
	}
	return m.l3[region.Index]
}

func (m *Machine) resolve(a Addr) (*memory, uint64) {
	region, off, err := m.addrs.Resolve(a)
	if err != nil {
		panic(err)
	}
	return m.memoryOf(region), off
}

// bytes gets a view of n bytes of memory, which must not
// cross a region boundary.
func (m *Machine) bytes(a Addr, n int) []byte {
	mem, off := m.resolve(a)
	if off+uint64(n) > uint64(len(mem.data)) {
		panic(errors.Wrapf(ErrBadAddress, "%d bytes at %s overflow %s", n, a, mem.region))
	}
	return mem.data[off : off+uint64(n)]
}

func (m *Machine) position(node *simulator.Node) topology.Position {
	if node.ID < m.mesh.Size() {
		return m.mesh.ClusterPos(node.ID)
	}
	return m.mesh.MemTilePos(node.ID - m.mesh.Size())
}

func (m *Machine) hops(src, dst *simulator.Node) float64 {
	return float64(m.mesh.Hops(m.position(src), m.position(dst)))
}

func (m *Machine) wideLatency(src, dst *simulator.Node) float64 {
	return m.cfg.WideLatency + m.hops(src, dst)*m.cfg.HopLatency
}

func (m *Machine) narrowLatency(src, dst *simulator.Node) float64 {
	return m.cfg.NarrowLatency + m.hops(src, dst)*m.cfg.HopLatency
}

// multicastTargets decodes a multicast mask relative to
// the cluster that holds the destination address.
func (m *Machine) multicastTargets(target int, mask uint32) []int {
	var res []int
	for i := 0; i < m.mesh.Size(); i++ {
		if uint32(i)&^mask == uint32(target)&^mask {
			res = append(res, i)
		}
	}
	return res
}

func encodeFloat64s(dst []byte, values []float64) {
	for i, x := range values {
		binary.LittleEndian.PutUint64(dst[i*8:], math.Float64bits(x))
	}
}

func decodeFloat64s(src []byte) []float64 {
	res := make([]float64, len(src)/8)
	for i := range res {
		res[i] = math.Float64frombits(binary.LittleEndian.Uint64(src[i*8:]))
	}
	return res
}
