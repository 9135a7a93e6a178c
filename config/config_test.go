package config_test

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/unixpickle/picobello/config"
	"github.com/unixpickle/picobello/platform"
)

var _ = Describe("Config", func() {
	It("should describe the default machine", func() {
		cfg := config.Default()
		Expect(cfg.Validate()).To(Succeed())

		machine := cfg.Platform.Machine()
		expected := platform.DefaultConfig()
		expected.TimeLimit = cfg.Platform.TimeLimit
		Expect(machine).To(Equal(expected))
	})

	It("should keep defaults for omitted fields", func() {
		cfg, err := config.Parse([]byte(`
platform:
  wide_rate: 32
  exclusive_collectives: false
bench:
  reductions: [star, tree]
  shapes:
    - {rows: 4, cols: 1, start_col: 3}
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Platform.WideRate).To(Equal(32.0))
		Expect(cfg.Platform.ExclusiveCollectives).To(BeFalse())
		Expect(cfg.Platform.Rows).To(Equal(4))
		Expect(cfg.Platform.HopLatency).To(Equal(config.Default().Platform.HopLatency))
		Expect(cfg.Bench.Reductions).To(Equal([]string{"star", "tree"}))
		Expect(cfg.Bench.Broadcasts).To(Equal(config.Default().Bench.Broadcasts))
		Expect(cfg.Bench.Shapes).To(HaveLen(1))
		Expect(cfg.Bench.Shapes[0].TestShape().String()).To(Equal("4x1@(0,3)"))
		Expect(cfg.Bench.Gemm.KTiles).To(Equal(16))
	})

	DescribeTable("should reject invalid settings",
		func(doc string) {
			_, err := config.Parse([]byte(doc))
			Expect(errors.Is(err, config.ErrInvalidConfig)).To(BeTrue(), "%v", err)
		},
		Entry("empty mesh", "platform: {rows: 0}"),
		Entry("unknown barrier", "bench: {barriers: [fast]}"),
		Entry("unknown broadcast", "bench: {broadcasts: [carrier-pigeon]}"),
		Entry("unknown reduction", "bench: {reductions: [mean]}"),
		Entry("unknown allreduce", "bench: {allreduces: [gossip]}"),
		Entry("unknown gemm mode", "bench: {gemm: {modes: [strassen]}}"),
		Entry("shape outside the mesh", "bench: {shapes: [{rows: 4, cols: 4, start_row: 1}]}"),
		Entry("unaligned size", "bench: {sizes: [30]}"),
		Entry("negative count", "bench: {counts: [-1]}"),
		Entry("no repetitions", "bench: {repetitions: 0}"),
		Entry("no batches", "bench: {batches: 0}"),
	)

	It("should report malformed YAML", func() {
		_, err := config.Parse([]byte("platform: [1, 2"))
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, config.ErrInvalidConfig)).To(BeFalse())
	})

	Describe("Load", func() {
		It("should use the defaults without a path", func() {
			cfg, err := config.Load("")
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.Default()))
		})

		It("should read a file", func() {
			path := filepath.Join(GinkgoT().TempDir(), "sweep.yaml")
			Expect(os.WriteFile(path, []byte("bench: {parallelism: 3}\n"), 0o644)).To(Succeed())
			cfg, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Bench.Parallelism).To(Equal(3))
		})

		It("should fail on a missing file", func() {
			_, err := config.Load(filepath.Join(GinkgoT().TempDir(), "missing.yaml"))
			Expect(err).To(HaveOccurred())
		})
	})
})
