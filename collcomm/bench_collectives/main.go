// Command bench_collectives sweeps the collectives over
// sub-meshes and sizes on the simulated mesh, and prints
// their cost in cycles.
//
// The exit status is the total number of errors found.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tebeka/atexit"

	"github.com/unixpickle/picobello/bench"
	"github.com/unixpickle/picobello/collcomm"
	"github.com/unixpickle/picobello/collcomm/allreduce"
	"github.com/unixpickle/picobello/collcomm/bcast"
	"github.com/unixpickle/picobello/collcomm/reduce"
	"github.com/unixpickle/picobello/config"
	"github.com/unixpickle/picobello/platform"
)

type options struct {
	ConfigPath  string
	LogLevel    string
	Parallelism int
	Markdown    bool

	cfg config.Config
}

func (o *options) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.ConfigPath, "config", "", "YAML file overriding the default sweep")
	fs.StringVar(&o.LogLevel, "log-level", "warn", "trace, debug, info, warn, or error")
	fs.IntVar(&o.Parallelism, "parallel", -1, "simulations to run at once (overrides the config)")
	fs.BoolVar(&o.Markdown, "markdown", false, "print tables as markdown")
}

func (o *options) setup() error {
	level, err := parseLevel(o.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	o.cfg, err = config.Load(o.ConfigPath)
	if err != nil {
		return err
	}
	if o.Parallelism >= 0 {
		o.cfg.Bench.Parallelism = o.Parallelism
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	if strings.EqualFold(s, "trace") {
		return platform.LevelTrace, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.Wrapf(err, "log level %q", s)
	}
	return level, nil
}

func main() {
	var errorCount int
	opts := &options{}

	root := &cobra.Command{
		Use:          "bench_collectives",
		Short:        "Benchmark collectives on a simulated Picobello mesh",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
	}
	opts.addFlags(root.PersistentFlags())

	sweep := func(use, short string, tasks func(cfg config.Config) []bench.Task) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := runSweep(cmd.Context(), opts, use, tasks(opts.cfg))
				errorCount += n
				return err
			},
		}
	}
	root.AddCommand(
		sweep("barrier", "Time barriers on sub-meshes", barrierTasks),
		sweep("mcast", "Time broadcasts on sub-meshes", broadcastTasks),
		sweep("reduce", "Time reductions on sub-meshes", reduceTasks),
		sweep("allreduce", "Time allreductions on sub-meshes", allreduceTasks),
		sweep("gemm", "Time tiled matrix multiplications", gemmTasks),
		sweep("all", "Run every sweep", func(cfg config.Config) []bench.Task {
			var tasks []bench.Task
			for _, fn := range []func(config.Config) []bench.Task{
				barrierTasks, broadcastTasks, reduceTasks, allreduceTasks, gemmTasks,
			} {
				tasks = append(tasks, fn(cfg)...)
			}
			return tasks
		}),
		scheduleCommand(),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		errorCount++
	}
	atexit.Exit(errorCount)
}

func runSweep(ctx context.Context, opts *options, name string, tasks []bench.Task) (int, error) {
	slog.Info("running sweep", "sweep", name, "tasks", len(tasks),
		"parallelism", opts.cfg.Bench.Parallelism)
	results, err := bench.RunAll(ctx, tasks, opts.cfg.Bench.Parallelism)
	if err != nil {
		return 0, err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(name)
	t.AppendHeader(table.Row{"Scenario", "Strategy", "Params", "Cycles", "Time (us)", "Errors"})
	for _, res := range results {
		if res.Err != nil {
			slog.Warn("simulation failed", "run", res.RunID, "result", res.String(), "error", res.Err)
		}
		t.AppendRow(table.Row{
			res.Scenario,
			res.Strategy,
			res.Params,
			fmt.Sprintf("%.1f", res.Cycles),
			fmt.Sprintf("%.3f", float64(res.Time)*1e6),
			res.Errors,
		})
	}
	total := bench.TotalErrors(results)
	t.AppendFooter(table.Row{"", "", "", "", "Total", total})
	if opts.Markdown {
		t.RenderMarkdown()
	} else {
		t.Render()
	}
	return total, nil
}

func barrierTasks(cfg config.Config) []bench.Task {
	machine := cfg.Platform.Machine()
	var tasks []bench.Task
	for _, name := range cfg.Bench.Barriers {
		kind, _ := collcomm.ParseBarrierKind(name)
		for _, shape := range supportedShapes(cfg, kind == collcomm.BarrierHardware) {
			tasks = append(tasks, func() bench.Result {
				return bench.Barrier(machine, kind, shape, cfg.Bench.Repetitions)
			})
		}
	}
	return append(tasks,
		func() bench.Result {
			return bench.RowColumnBarriers(machine, cfg.Bench.Repetitions)
		},
		func() bench.Result {
			return bench.OverlappingBarriers(machine, true)
		},
	)
}

func broadcastTasks(cfg config.Config) []bench.Task {
	machine := cfg.Platform.Machine()
	var tasks []bench.Task
	for _, name := range cfg.Bench.Broadcasts {
		kind, _ := bcast.ParseKind(name)
		b := bcast.New(kind, cfg.Bench.Batches)
		for _, shape := range supportedShapes(cfg, kind == bcast.KindHardware) {
			for _, size := range cfg.Bench.Sizes {
				tasks = append(tasks, func() bench.Result {
					return bench.Broadcast(machine, kind, b, shape, size, cfg.Bench.Repetitions)
				})
			}
		}
	}
	return tasks
}

func reduceTasks(cfg config.Config) []bench.Task {
	machine := cfg.Platform.Machine()
	var tasks []bench.Task
	for _, name := range cfg.Bench.Reductions {
		kind, _ := reduce.ParseKind(name)
		r := reduce.New(kind, cfg.Bench.Batches)
		hw := kind == reduce.KindHardware || kind == reduce.KindHardwareTwoStage
		for _, shape := range supportedShapes(cfg, hw) {
			for _, count := range cfg.Bench.Counts {
				tasks = append(tasks, func() bench.Result {
					return bench.Reduce(machine, kind, r, shape, count, cfg.Bench.Repetitions)
				})
			}
		}
	}
	return tasks
}

func allreduceTasks(cfg config.Config) []bench.Task {
	machine := cfg.Platform.Machine()
	var tasks []bench.Task
	for _, name := range cfg.Bench.Allreduces {
		kind, _ := allreduce.ParseKind(name)
		a := allreduce.New(kind, cfg.Bench.Batches)
		for _, shape := range supportedShapes(cfg, kind == allreduce.KindHardware) {
			for _, count := range cfg.Bench.Counts {
				tasks = append(tasks, func() bench.Result {
					return bench.Allreduce(machine, kind, a, shape, count, cfg.Bench.Repetitions)
				})
			}
		}
	}
	return tasks
}

func gemmTasks(cfg config.Config) []bench.Task {
	machine := cfg.Platform.Machine()
	shape := cfg.Bench.Gemm.GemmShape()
	var tasks []bench.Task
	for _, name := range cfg.Bench.Gemm.Modes {
		mode, _ := bench.ParseGemmMode(name)
		tasks = append(tasks, func() bench.Result {
			return bench.Gemm(machine, mode, shape, cfg.Bench.Gemm.Seed)
		})
	}
	return tasks
}

// supportedShapes lists the configured shapes, leaving out
// the ones that no multicast mask describes if hw is set.
func supportedShapes(cfg config.Config, hw bool) []collcomm.TestShape {
	mesh := cfg.Platform.Machine().Mesh()
	var shapes []collcomm.TestShape
	for _, s := range cfg.Bench.Shapes {
		if hw && !mesh.Maskable(s.Rows, s.Cols, s.StartRow, s.StartCol) {
			slog.Info("skipping shape without a multicast mask", "shape", s.TestShape().String())
			continue
		}
		shapes = append(shapes, s.TestShape())
	}
	return shapes
}

func scheduleCommand() *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the broadcast and reduction tree schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if size <= 0 {
				return errors.Errorf("invalid size %d", size)
			}
			fmt.Println(collcomm.ScheduleTable("broadcast", collcomm.BroadcastSchedule, size))
			fmt.Println(collcomm.ScheduleTable("reduce", collcomm.ReduceSchedule, size))
			return nil
		},
	}
	cmd.Flags().IntVarP(&size, "size", "n", 8, "number of positions in the tree")
	return cmd
}
