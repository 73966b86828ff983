package integration

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/stacklok/device-registry-server/internal/registry"
	"github.com/stacklok/device-registry-server/test-integration/devices-api/helpers"
)

var _ = Describe("Redis Storage Integration", Label("redis", "container"), Ordered, func() {
	var (
		redisURL     string
		tempDir      string
		configFile   string
		serverHelper *helpers.ServerTestHelper
	)

	BeforeAll(func() {
		container, err := tcredis.Run(ctx, "redis:7-alpine")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			_ = container.Terminate(context.Background())
		})

		redisURL, err = container.ConnectionString(ctx)
		Expect(err).NotTo(HaveOccurred())
	})

	BeforeEach(func() {
		tempDir = createTempDir("redis-test-")
		configFile = helpers.WriteRedisConfig(tempDir, redisURL)
		Expect(helpers.LoadSnapshot(ctx, configFile, registry.ReferenceFixture())).To(Succeed())

		var err error
		serverHelper, err = helpers.NewServerTestHelper(ctx, configFile)
		Expect(err).NotTo(HaveOccurred())
		Expect(serverHelper.StartServer()).To(Succeed())
		serverHelper.WaitForServerReady(10 * time.Second)
	})

	AfterEach(func() {
		_ = serverHelper.StopServer()
		cleanupTempDir(tempDir)
	})

	describeLookups(func() *helpers.ServerTestHelper { return serverHelper })

	It("keeps snapshot order for single registry lookups", func() {
		records := serverHelper.LookupDevices("fda", "TestDevice1")
		Expect(keysOf(records, "k_number")).To(Equal([]any{"999999", "989898"}))
	})
})
