package platform_test

import (
	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/unixpickle/picobello/platform"
)

var _ = Describe("AddrMap", func() {
	var addrs *platform.AddrMap

	BeforeEach(func() {
		addrs = platform.DefaultConfig().AddrMap()
	})

	It("should translate local pointers between clusters", func() {
		local := addrs.ClusterAddr(3, 0x1234)
		remote := addrs.RemoteAddr(local, 3, 12)
		Expect(remote).To(Equal(addrs.ClusterAddr(12, 0x1234)))
		Expect(addrs.RemoteAddr(remote, 12, 3)).To(Equal(local))
		Expect(addrs.RemoteAddr(local, 3, 0)).To(Equal(platform.Addr(0x10001234)))
	})

	It("should resolve L1 and L3 addresses", func() {
		region, off, err := addrs.Resolve(addrs.ClusterAddr(5, 0x80))
		Expect(err).NotTo(HaveOccurred())
		Expect(region).To(Equal(platform.Region{Kind: platform.RegionL1, Index: 5}))
		Expect(off).To(Equal(uint64(0x80)))

		region, off, err = addrs.Resolve(0x70100010)
		Expect(err).NotTo(HaveOccurred())
		Expect(region.String()).To(Equal("L3[1]"))
		Expect(off).To(Equal(uint64(0x10)))
	})

	It("should reject holes in the address map", func() {
		_, _, err := addrs.Resolve(addrs.ClusterAddr(0, 0x30000))
		Expect(errors.Is(err, platform.ErrBadAddress)).To(BeTrue())
		_, ok := addrs.ClusterOf(addrs.L3TileAddr(0, 0))
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Config", func() {
	It("should accept the defaults", func() {
		Expect(platform.DefaultConfig().Validate()).To(Succeed())
	})

	It("should reject overlapping memories", func() {
		cfg := platform.DefaultConfig()
		cfg.L3Base = cfg.ClusterBase + 0x1000
		Expect(errors.Is(cfg.Validate(), platform.ErrInvalidConfig)).To(BeTrue())
	})

	It("should reject an L1 larger than its stride", func() {
		cfg := platform.DefaultConfig()
		cfg.L1Size = cfg.ClusterStride * 2
		Expect(errors.Is(cfg.Validate(), platform.ErrInvalidConfig)).To(BeTrue())
	})
})
