package integration

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/stacklok/device-registry-server/database"
	"github.com/stacklok/device-registry-server/internal/registry"
	"github.com/stacklok/device-registry-server/test-integration/devices-api/helpers"
)

var _ = Describe("PostgreSQL Storage Integration", Label("database", "container"), Ordered, func() {
	var (
		dbSettings   helpers.DatabaseSettings
		tempDir      string
		serverHelper *helpers.ServerTestHelper
	)

	BeforeAll(func() {
		container, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("devices"),
			postgres.WithUsername("registry"),
			postgres.WithPassword("registry"),
			postgres.BasicWaitStrategies(),
		)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			_ = tc.TerminateContainer(container)
		})

		connStr, err := container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())
		Expect(database.MigrateUp(connStr)).To(Succeed())

		parsed, err := pgxpool.ParseConfig(connStr)
		Expect(err).NotTo(HaveOccurred())
		dbSettings = helpers.DatabaseSettings{
			Host:     parsed.ConnConfig.Host,
			Port:     int(parsed.ConnConfig.Port),
			User:     parsed.ConnConfig.User,
			Password: parsed.ConnConfig.Password,
			Database: parsed.ConnConfig.Database,
		}
	})

	BeforeEach(func() {
		tempDir = createTempDir("database-test-")
		configFile := helpers.WriteDatabaseConfig(tempDir, dbSettings)
		Expect(helpers.LoadSnapshot(ctx, configFile, registry.ReferenceFixture())).To(Succeed())

		var err error
		serverHelper, err = helpers.NewServerTestHelper(ctx, configFile)
		Expect(err).NotTo(HaveOccurred())
		Expect(serverHelper.StartServer()).To(Succeed())
		serverHelper.WaitForServerReady(30 * time.Second)
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
})
