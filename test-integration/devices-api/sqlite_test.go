package integration

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stacklok/device-registry-server/internal/registry"
	"github.com/stacklok/device-registry-server/test-integration/devices-api/helpers"
)

var _ = Describe("SQLite Storage Integration", Label("sqlite"), func() {
	var (
		tempDir      string
		configFile   string
		serverHelper *helpers.ServerTestHelper
	)

	BeforeEach(func() {
		tempDir = createTempDir("sqlite-test-")
		configFile = helpers.WriteSQLiteConfig(tempDir)
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

	It("orders single registry results by tie-break key", func() {
		records := serverHelper.LookupDevices("fda", "TestDevice1")
		Expect(keysOf(records, "k_number")).To(Equal([]any{"989898", "999999"}))
	})

	It("serves a snapshot loaded while running", func() {
		Expect(helpers.LoadSnapshot(ctx, configFile, helpers.UpdatedFixture())).To(Succeed())

		records := serverHelper.LookupDevices("combined", "TestDevice2")
		Expect(records).To(HaveLen(1))
		Expect(records[0]).To(HaveKeyWithValue("primary_di", "555555"))
	})
})
