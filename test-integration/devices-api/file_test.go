package integration

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stacklok/device-registry-server/internal/registry"
	"github.com/stacklok/device-registry-server/test-integration/devices-api/helpers"
)

var _ = Describe("File Storage Integration", Label("file"), func() {
	var (
		tempDir      string
		snapshotFile string
		serverHelper *helpers.ServerTestHelper
	)

	BeforeEach(func() {
		tempDir = createTempDir("file-test-")
		snapshotFile = helpers.WriteSnapshotFile(tempDir, "devices.json", registry.ReferenceFixture())
	})

	AfterEach(func() {
		if serverHelper != nil {
			_ = serverHelper.StopServer()
		}
		cleanupTempDir(tempDir)
	})

	Context("Serving a snapshot file", func() {
		BeforeEach(func() {
			configFile := helpers.WriteFileConfig(tempDir, snapshotFile, "")

			var err error
			serverHelper, err = helpers.NewServerTestHelper(ctx, configFile)
			Expect(err).NotTo(HaveOccurred())
			Expect(serverHelper.StartServer()).To(Succeed())
			serverHelper.WaitForServerReady(10 * time.Second)
		})

		describeLookups(func() *helpers.ServerTestHelper { return serverHelper })

		It("keeps snapshot order for single registry lookups", func() {
			records := serverHelper.LookupDevices("fda", "TestDevice1")
			Expect(keysOf(records, "k_number")).To(Equal([]any{"999999", "989898"}))
		})

		It("reports the loaded snapshot in the version endpoint", func() {
			resp, err := serverHelper.Get("/version")
			Expect(err).NotTo(HaveOccurred())
			defer func() {
				_ = resp.Body.Close()
			}()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Context("Serving a YAML snapshot", func() {
		It("answers lookups from YAML data", func() {
			yamlFile := filepath.Join(tempDir, "devices.yaml")
			Expect(os.WriteFile(yamlFile, []byte(`version: 1.0.0
fda_data:
  - k_number: "999999"
    manufacturer_name: ManufacturerA
    device_name: TestDevice1
eudamed_data:
  - primary_di: "888888"
    manufacturer_name: Manufacturer.A
    device_name: TestDevice1
    version_number: 3
`), 0o600)).To(Succeed())

			var err error
			serverHelper, err = helpers.NewServerTestHelper(ctx, helpers.WriteFileConfig(tempDir, yamlFile, ""))
			Expect(err).NotTo(HaveOccurred())
			Expect(serverHelper.StartServer()).To(Succeed())
			serverHelper.WaitForServerReady(10 * time.Second)

			records := serverHelper.LookupDevices("combined", "testdevice1")
			Expect(records).To(HaveLen(1))
			Expect(records[0]).To(HaveKeyWithValue("k_number", "999999"))
			Expect(records[0]).To(HaveKeyWithValue("primary_di", "888888"))
		})
	})

	Context("Refreshing the snapshot file", func() {
		It("picks up a newer snapshot without a restart", func() {
			configFile := helpers.WriteFileConfig(tempDir, snapshotFile, "1s")

			var err error
			serverHelper, err = helpers.NewServerTestHelper(ctx, configFile)
			Expect(err).NotTo(HaveOccurred())
			Expect(serverHelper.StartServer()).To(Succeed())
			serverHelper.WaitForServerReady(10 * time.Second)

			Expect(serverHelper.LookupDevices("eudamed", "TestDevice2")).To(BeEmpty())

			helpers.WriteSnapshotFile(tempDir, "devices.json", helpers.UpdatedFixture())

			Eventually(func() []map[string]any {
				return serverHelper.LookupDevices("eudamed", "TestDevice2")
			}, 10*time.Second, 250*time.Millisecond).Should(HaveLen(1))

			records := serverHelper.LookupDevices("combined", "TestDevice2")
			Expect(records).To(HaveLen(1))
			Expect(records[0]).To(HaveKeyWithValue("k_number", "777777"))
			Expect(records[0]).To(HaveKeyWithValue("primary_di", "555555"))
		})
	})

	Context("Startup failures", func() {
		It("refuses to start without the snapshot file", func() {
			configFile := helpers.WriteFileConfig(tempDir, filepath.Join(tempDir, "missing.json"), "")

			var err error
			serverHelper, err = helpers.NewServerTestHelper(ctx, configFile)
			Expect(err).NotTo(HaveOccurred())
			Expect(serverHelper.StartServer()).To(MatchError(ContainSubstring("failed to load snapshot")))
		})
	})
})
