package helpers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/onsi/gomega"

	registryapp "github.com/stacklok/device-registry-server/internal/app"
	"github.com/stacklok/device-registry-server/internal/config"
)

// ServerTestHelper manages the device registry API server lifecycle for testing
type ServerTestHelper struct {
	ctx        context.Context
	configPath string
	baseURL    string
	address    string
	httpClient *http.Client
	app        *registryapp.RegistryApp
}

// NewServerTestHelper creates a new server test helper listening on a free loopback port
func NewServerTestHelper(ctx context.Context, configPath string) (*ServerTestHelper, error) {
	address, err := freeAddress()
	if err != nil {
		return nil, err
	}
	return &ServerTestHelper{
		ctx:        ctx,
		configPath: configPath,
		address:    address,
		baseURL:    "http://" + address,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

func freeAddress() (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("failed to reserve port: %w", err)
	}
	addr := listener.Addr().String()
	if err := listener.Close(); err != nil {
		return "", err
	}
	return addr, nil
}

// StartServer builds the application from the config file and starts serving
func (s *ServerTestHelper) StartServer() error {
	cfg, err := config.LoadConfig(config.WithConfigPath(s.configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app, err := registryapp.NewRegistryApp(s.ctx,
		registryapp.WithConfig(cfg),
		registryapp.WithAddress(s.address),
	)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}

	s.app = app

	// Start the server in a goroutine (non-blocking)
	go func() {
		if err := app.Start(); err != nil {
			// The test will fail when it tries to connect
			fmt.Fprintf(os.Stderr, "Server start failed: %v\n", err)
		}
	}()

	return nil
}

// StopServer gracefully stops the server
func (s *ServerTestHelper) StopServer() error {
	if s.app != nil {
		return s.app.Stop(5 * time.Second)
	}
	return nil
}

// WaitForServerReady waits for the server to report ready
func (s *ServerTestHelper) WaitForServerReady(timeout time.Duration) {
	gomega.Eventually(func() error {
		resp, err := s.httpClient.Get(s.baseURL + "/readiness")
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		return nil
	}, timeout, 200*time.Millisecond).Should(gomega.Succeed(), "Server should be ready")
}

// Get makes a GET request to path
func (s *ServerTestHelper) Get(path string) (*http.Response, error) {
	return s.httpClient.Get(s.baseURL + path)
}

// GetDevices makes a GET request to /v1/devices/{view}?device_name=name
func (s *ServerTestHelper) GetDevices(view, name string) (*http.Response, error) {
	return s.Get(fmt.Sprintf("/v1/devices/%s?device_name=%s", view, url.QueryEscape(name)))
}

// GetLegacy makes a GET request to a legacy lookup path such as /get_fda_data/
func (s *ServerTestHelper) GetLegacy(path, name string) (*http.Response, error) {
	return s.Get(fmt.Sprintf("%s?device_name=%s", path, url.QueryEscape(name)))
}

// LookupDevices fetches a lookup and decodes the JSON array, asserting a 200 response
func (s *ServerTestHelper) LookupDevices(view, name string) []map[string]any {
	resp, err := s.GetDevices(view, name)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return DecodeRecords(resp)
}

// DecodeRecords reads a JSON array of records from resp and closes the body
func DecodeRecords(resp *http.Response) []map[string]any {
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	gomega.Expect(resp.StatusCode).To(gomega.Equal(http.StatusOK), string(body))

	var records []map[string]any
	gomega.Expect(json.Unmarshal(body, &records)).To(gomega.Succeed())
	gomega.Expect(records).NotTo(gomega.BeNil(), "lookups always return an array")
	return records
}

// GetBaseURL returns the base URL of the server
func (s *ServerTestHelper) GetBaseURL() string {
	return s.baseURL
}
