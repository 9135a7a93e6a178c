package platform

import (
	"github.com/pkg/errors"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/unixpickle/picobello/topology"
)

// ErrInvalidConfig is returned for platform parameters
// that cannot describe a machine.
var ErrInvalidConfig = errors.New("invalid platform config")

// Config describes the simulated machine. Latencies are
// measured in cycles and rates in bytes per cycle.
type Config struct {
	Rows int
	Cols int

	// ComputeCores is the number of compute lanes per
	// cluster. The data-movement core comes after them.
	ComputeCores int

	ClusterBase   Addr
	ClusterStride uint64
	L1Size        uint64

	// L1Reserved bytes at the start of every L1 belong to
	// the runtime and are never handed out by AllocL1.
	L1Reserved uint64

	L3Base     Addr
	L3TileSize uint64

	ClockFreq sim.Freq

	HopLatency    float64
	NarrowLatency float64
	NarrowJitter  float64
	NarrowRate    float64
	WideLatency   float64
	WideRate      float64
	L3Rate        float64
	FlopTime      float64

	// ExclusiveCollectives lets each router serve a single
	// hardware collective at a time. Writes for another
	// collective on the same router wait until the current
	// one completes.
	ExclusiveCollectives bool

	// TimeLimit bounds every Run, in cycles. Zero means no
	// limit.
	TimeLimit float64
}

// DefaultConfig describes a 4x4 Picobello mesh.
func DefaultConfig() Config {
	return Config{
		Rows:          4,
		Cols:          4,
		ComputeCores:  8,
		ClusterBase:   0x10000000,
		ClusterStride: 0x40000,
		L1Size:        0x20000,
		L1Reserved:    0x40,
		L3Base:        0x70000000,
		L3TileSize:    0x100000,

		ClockFreq: 1 * sim.GHz,

		HopLatency:    2,
		NarrowLatency: 8,
		NarrowJitter:  1,
		NarrowRate:    8,
		WideLatency:   24,
		WideRate:      64,
		L3Rate:        64,
		FlopTime:      1,

		ExclusiveCollectives: true,
	}
}

// Mesh gets the cluster mesh.
func (c Config) Mesh() topology.Mesh {
	return topology.Mesh{Rows: c.Rows, Cols: c.Cols}
}

// AddrMap gets the address translator.
func (c Config) AddrMap() *AddrMap {
	return &AddrMap{
		ClusterBase:   c.ClusterBase,
		ClusterStride: c.ClusterStride,
		L1Size:        c.L1Size,
		NumClusters:   c.Rows * c.Cols,
		L3Base:        c.L3Base,
		L3TileSize:    c.L3TileSize,
		NumTiles:      c.Mesh().NumMemTiles(),
	}
}

// Validate checks that the machine can be built.
func (c Config) Validate() error {
	if _, err := topology.NewMesh(c.Rows, c.Cols); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	switch {
	case c.ComputeCores <= 0:
		return errors.Wrapf(ErrInvalidConfig, "%d compute cores", c.ComputeCores)
	case c.L1Size == 0 || c.ClusterStride < c.L1Size:
		return errors.Wrapf(ErrInvalidConfig, "L1 of %#x bytes at stride %#x", c.L1Size, c.ClusterStride)
	case c.L1Reserved < 8 || c.L1Reserved >= c.L1Size:
		return errors.Wrapf(ErrInvalidConfig, "%d reserved L1 bytes", c.L1Reserved)
	case c.L3TileSize == 0:
		return errors.Wrap(ErrInvalidConfig, "empty memory tiles")
	case c.NarrowRate <= 0 || c.WideRate <= 0 || c.L3Rate <= 0:
		return errors.Wrap(ErrInvalidConfig, "non-positive network rate")
	case c.HopLatency < 0 || c.NarrowLatency < 0 || c.WideLatency < 0 || c.NarrowJitter < 0:
		return errors.Wrap(ErrInvalidConfig, "negative latency")
	case c.FlopTime < 0 || c.TimeLimit < 0:
		return errors.Wrap(ErrInvalidConfig, "negative time")
	case c.ClockFreq <= 0:
		return errors.Wrap(ErrInvalidConfig, "non-positive clock frequency")
	}
	l1End := uint64(c.ClusterBase) + uint64(c.Rows*c.Cols)*c.ClusterStride
	if uint64(c.L3Base) < l1End && uint64(c.ClusterBase) < uint64(c.L3Base)+uint64(c.Mesh().NumMemTiles())*c.L3TileSize {
		return errors.Wrap(ErrInvalidConfig, "L1 and L3 address ranges overlap")
	}
	return nil
}
