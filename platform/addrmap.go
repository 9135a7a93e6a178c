package platform

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrBadAddress is raised for accesses outside of every
// memory region.
var ErrBadAddress = errors.New("bad address")

// An Addr is a physical address in the global address
// space shared by all clusters.
type Addr uint64

func (a Addr) String() string {
	return fmt.Sprintf("0x%08x", uint64(a))
}

// Add offsets an address by n bytes.
func (a Addr) Add(n int) Addr {
	return Addr(int64(a) + int64(n))
}

// RegionKind distinguishes cluster-local scratch memory
// from shared memory tiles.
type RegionKind int

const (
	RegionL1 RegionKind = iota
	RegionL3
)

// A Region identifies one memory.
type Region struct {
	Kind  RegionKind
	Index int
}

func (r Region) String() string {
	if r.Kind == RegionL1 {
		return fmt.Sprintf("L1[%d]", r.Index)
	}
	return fmt.Sprintf("L3[%d]", r.Index)
}

// An AddrMap is the address translator of the platform.
// Every cluster's L1 is mapped at ClusterBase plus a fixed
// stride per cluster index, and the memory tiles follow
// each other from L3Base.
type AddrMap struct {
	ClusterBase   Addr
	ClusterStride uint64
	L1Size        uint64
	NumClusters   int

	L3Base     Addr
	L3TileSize uint64
	NumTiles   int
}

// ClusterAddr gets the address of an offset in the L1 of
// a cluster.
func (m *AddrMap) ClusterAddr(idx int, offset uint64) Addr {
	return m.ClusterBase + Addr(uint64(idx)*m.ClusterStride+offset)
}

// RemoteAddr translates a pointer into cluster from's L1
// into the equivalent pointer into cluster to's L1.
//
// Addresses outside of from's L1 are translated all the
// same; the result is only meaningful for local pointers.
func (m *AddrMap) RemoteAddr(local Addr, from, to int) Addr {
	return local - Addr(uint64(from)*m.ClusterStride) + Addr(uint64(to)*m.ClusterStride)
}

// ClusterOf finds the cluster whose L1 holds an address.
func (m *AddrMap) ClusterOf(a Addr) (int, bool) {
	region, _, err := m.Resolve(a)
	if err != nil || region.Kind != RegionL1 {
		return 0, false
	}
	return region.Index, true
}

// L3TileAddr gets the address of an offset in a memory
// tile.
func (m *AddrMap) L3TileAddr(tile int, offset uint64) Addr {
	return m.L3Base + Addr(uint64(tile)*m.L3TileSize+offset)
}

// Resolve finds the memory region and offset of an
// address.
func (m *AddrMap) Resolve(a Addr) (Region, uint64, error) {
	if a >= m.ClusterBase {
		rel := uint64(a - m.ClusterBase)
		idx := rel / m.ClusterStride
		off := rel % m.ClusterStride
		if idx < uint64(m.NumClusters) && off < m.L1Size {
			return Region{Kind: RegionL1, Index: int(idx)}, off, nil
		}
	}
	if a >= m.L3Base {
		rel := uint64(a - m.L3Base)
		tile := rel / m.L3TileSize
		if tile < uint64(m.NumTiles) {
			return Region{Kind: RegionL3, Index: int(tile)}, rel % m.L3TileSize, nil
		}
	}
	return Region{}, 0, errors.Wrapf(ErrBadAddress, "resolve %s", a)
}
