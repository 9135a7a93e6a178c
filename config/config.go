// Package config loads the machine and benchmark sweep
// settings used by the command-line tools.
package config

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sarchlab/akita/v4/sim"
	"gopkg.in/yaml.v3"

	"github.com/unixpickle/picobello/bench"
	"github.com/unixpickle/picobello/collcomm"
	"github.com/unixpickle/picobello/collcomm/allreduce"
	"github.com/unixpickle/picobello/collcomm/bcast"
	"github.com/unixpickle/picobello/collcomm/reduce"
	"github.com/unixpickle/picobello/platform"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the root of a configuration file.
type Config struct {
	Platform Platform `yaml:"platform"`
	Bench    Bench    `yaml:"bench"`
}

// Platform holds the tunable parameters of the simulated
// machine. The address map always comes from
// platform.DefaultConfig.
type Platform struct {
	Rows         int     `yaml:"rows"`
	Cols         int     `yaml:"cols"`
	ComputeCores int     `yaml:"compute_cores"`
	ClockGHz     float64 `yaml:"clock_ghz"`

	HopLatency    float64 `yaml:"hop_latency"`
	NarrowLatency float64 `yaml:"narrow_latency"`
	NarrowJitter  float64 `yaml:"narrow_jitter"`
	NarrowRate    float64 `yaml:"narrow_rate"`
	WideLatency   float64 `yaml:"wide_latency"`
	WideRate      float64 `yaml:"wide_rate"`
	L3Rate        float64 `yaml:"l3_rate"`
	FlopTime      float64 `yaml:"flop_time"`

	ExclusiveCollectives bool    `yaml:"exclusive_collectives"`
	TimeLimit            float64 `yaml:"time_limit"`
}

// Shape is a sub-mesh given by its size and its
// south-west corner.
type Shape struct {
	Rows     int `yaml:"rows"`
	Cols     int `yaml:"cols"`
	StartRow int `yaml:"start_row"`
	StartCol int `yaml:"start_col"`
}

// Gemm describes the multiplication benchmarks.
type Gemm struct {
	Modes        []string `yaml:"modes"`
	M            int      `yaml:"m"`
	N            int      `yaml:"n"`
	K            int      `yaml:"k"`
	MTiles       int      `yaml:"m_tiles"`
	NTiles       int      `yaml:"n_tiles"`
	KTiles       int      `yaml:"k_tiles"`
	DoubleBuffer bool     `yaml:"double_buffer"`
	Seed         int64    `yaml:"seed"`
}

// Bench lists the sweeps to run. Every strategy runs on
// every shape and size.
type Bench struct {
	Barriers   []string `yaml:"barriers"`
	Broadcasts []string `yaml:"broadcasts"`
	Reductions []string `yaml:"reductions"`
	Allreduces []string `yaml:"allreduces"`

	Shapes []Shape `yaml:"shapes"`

	// Sizes are broadcast sizes in bytes.
	Sizes []int `yaml:"sizes"`

	// Counts are reduction sizes in doubles.
	Counts []int `yaml:"counts"`

	Batches     int `yaml:"batches"`
	Repetitions int `yaml:"repetitions"`

	// Parallelism bounds the number of simulations run at
	// once. Zero means one per CPU.
	Parallelism int `yaml:"parallelism"`

	Gemm Gemm `yaml:"gemm"`
}

// Default gets the configuration used for omitted fields.
func Default() Config {
	pc := platform.DefaultConfig()
	return Config{
		Platform: Platform{
			Rows:                 pc.Rows,
			Cols:                 pc.Cols,
			ComputeCores:         pc.ComputeCores,
			ClockGHz:             float64(pc.ClockFreq / sim.GHz),
			HopLatency:           pc.HopLatency,
			NarrowLatency:        pc.NarrowLatency,
			NarrowJitter:         pc.NarrowJitter,
			NarrowRate:           pc.NarrowRate,
			WideLatency:          pc.WideLatency,
			WideRate:             pc.WideRate,
			L3Rate:               pc.L3Rate,
			FlopTime:             pc.FlopTime,
			ExclusiveCollectives: pc.ExclusiveCollectives,
			TimeLimit:            1e8,
		},
		Bench: Bench{
			Barriers:   []string{"sw", "hw"},
			Broadcasts: []string{"hw", "seq", "tree", "pipelined"},
			Reductions: []string{"hw", "hw-2stage", "star", "tree", "2stage"},
			Allreduces: []string{"hw", "naive", "ring", "tree"},
			Shapes: []Shape{
				{Rows: 2, Cols: 2},
				{Rows: 2, Cols: 4},
				{Rows: 4, Cols: 4},
			},
			Sizes:       []int{32, 1024, 8192},
			Counts:      []int{64, 512},
			Batches:     4,
			Repetitions: 2,
			Gemm: Gemm{
				Modes:        []string{"naive", "hw", "tree", "split-k", "split-k-hw"},
				M:            32,
				N:            32,
				K:            32,
				MTiles:       8,
				NTiles:       8,
				KTiles:       16,
				DoubleBuffer: true,
				Seed:         1,
			},
		},
	}
}

// Parse decodes YAML on top of Default and validates the
// result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads a configuration file. An empty path gives
// Default.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "load config")
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "load config %s", path)
	}
	return cfg, nil
}

// Machine converts the platform settings into a machine
// description.
func (p Platform) Machine() platform.Config {
	cfg := platform.DefaultConfig()
	cfg.Rows = p.Rows
	cfg.Cols = p.Cols
	cfg.ComputeCores = p.ComputeCores
	cfg.ClockFreq = sim.Freq(p.ClockGHz) * sim.GHz
	cfg.HopLatency = p.HopLatency
	cfg.NarrowLatency = p.NarrowLatency
	cfg.NarrowJitter = p.NarrowJitter
	cfg.NarrowRate = p.NarrowRate
	cfg.WideLatency = p.WideLatency
	cfg.WideRate = p.WideRate
	cfg.L3Rate = p.L3Rate
	cfg.FlopTime = p.FlopTime
	cfg.ExclusiveCollectives = p.ExclusiveCollectives
	cfg.TimeLimit = p.TimeLimit
	return cfg
}

// TestShape converts a shape for the collectives.
func (s Shape) TestShape() collcomm.TestShape {
	return collcomm.TestShape{Rows: s.Rows, Cols: s.Cols, StartRow: s.StartRow, StartCol: s.StartCol}
}

// GemmShape converts the multiplication settings.
func (g Gemm) GemmShape() bench.GemmShape {
	return bench.GemmShape{
		M: g.M, N: g.N, K: g.K,
		MTiles: g.MTiles, NTiles: g.NTiles, KTiles: g.KTiles,
		DoubleBuffer: g.DoubleBuffer,
	}
}

// Validate checks that every strategy name parses and
// every shape fits in the mesh.
func (c Config) Validate() error {
	machine := c.Platform.Machine()
	if err := machine.Validate(); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	for _, name := range c.Bench.Barriers {
		if _, err := collcomm.ParseBarrierKind(name); err != nil {
			return errors.Wrap(ErrInvalidConfig, err.Error())
		}
	}
	for _, name := range c.Bench.Broadcasts {
		if _, err := bcast.ParseKind(name); err != nil {
			return errors.Wrap(ErrInvalidConfig, err.Error())
		}
	}
	for _, name := range c.Bench.Reductions {
		if _, err := reduce.ParseKind(name); err != nil {
			return errors.Wrap(ErrInvalidConfig, err.Error())
		}
	}
	for _, name := range c.Bench.Allreduces {
		if _, err := allreduce.ParseKind(name); err != nil {
			return errors.Wrap(ErrInvalidConfig, err.Error())
		}
	}
	for _, name := range c.Bench.Gemm.Modes {
		if _, err := bench.ParseGemmMode(name); err != nil {
			return errors.Wrap(ErrInvalidConfig, err.Error())
		}
	}
	mesh := machine.Mesh()
	for _, s := range c.Bench.Shapes {
		if !mesh.Contains(s.Rows, s.Cols, s.StartRow, s.StartCol) {
			return errors.Wrapf(ErrInvalidConfig, "shape %s outside of %dx%d mesh",
				s.TestShape(), mesh.Rows, mesh.Cols)
		}
	}
	for _, size := range c.Bench.Sizes {
		if size < 0 || size%4 != 0 {
			return errors.Wrapf(ErrInvalidConfig, "broadcast size %d", size)
		}
	}
	for _, count := range c.Bench.Counts {
		if count < 0 {
			return errors.Wrapf(ErrInvalidConfig, "reduction count %d", count)
		}
	}
	switch {
	case c.Bench.Batches <= 0:
		return errors.Wrapf(ErrInvalidConfig, "%d batches", c.Bench.Batches)
	case c.Bench.Repetitions <= 0:
		return errors.Wrapf(ErrInvalidConfig, "%d repetitions", c.Bench.Repetitions)
	case c.Bench.Parallelism < 0:
		return errors.Wrapf(ErrInvalidConfig, "parallelism %d", c.Bench.Parallelism)
	}
	return nil
}
