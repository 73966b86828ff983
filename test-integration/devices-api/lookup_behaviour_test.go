package integration

import (
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stacklok/device-registry-server/test-integration/devices-api/helpers"
)

// keysOf returns the tie-break values of records for field
func keysOf(records []map[string]any, field string) []any {
	keys := make([]any, 0, len(records))
	for _, r := range records {
		keys = append(keys, r[field])
	}
	return keys
}

// describeLookups registers the lookup behaviour every backend must show when
// serving registry.ReferenceFixture
func describeLookups(server func() *helpers.ServerTestHelper) {
	Context("Registry lookups", func() {
		It("returns every FDA record for a device name ignoring case", func() {
			records := server().LookupDevices("fda", "testdevice1")
			Expect(keysOf(records, "k_number")).To(ConsistOf("999999", "989898"))
		})

		It("returns every EUDAMED record for a device name", func() {
			records := server().LookupDevices("eudamed", "TestDevice3")
			Expect(keysOf(records, "primary_di")).To(ConsistOf("666666"))
		})

		It("returns an empty array for an empty or unknown name", func() {
			Expect(server().LookupDevices("fda", "")).To(BeEmpty())
			Expect(server().LookupDevices("eudamed", "   ")).To(BeEmpty())
			Expect(server().LookupDevices("combined", "NoSuchDevice")).To(BeEmpty())
		})

		It("rejects an unknown registry", func() {
			resp, err := server().GetDevices("pmda", "TestDevice1")
			Expect(err).NotTo(HaveOccurred())
			defer func() {
				_ = resp.Body.Close()
			}()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Context("Combined lookups", func() {
		It("merges the canonical records of a manufacturer present in both registries", func() {
			records := server().LookupDevices("combined", "TESTDEVICE1")
			Expect(records).To(HaveLen(1))
			Expect(records[0]).To(HaveKeyWithValue("k_number", "999999"))
			Expect(records[0]).To(HaveKeyWithValue("primary_di", "888888"))
		})

		It("keeps unmatched FDA records", func() {
			records := server().LookupDevices("combined", "TestDevice2")
			Expect(records).To(HaveLen(1))
			Expect(records[0]).To(HaveKeyWithValue("k_number", "777777"))
		})

		It("keeps unmatched EUDAMED records", func() {
			records := server().LookupDevices("combined", "TestDevice3")
			Expect(records).To(HaveLen(1))
			Expect(records[0]).To(HaveKeyWithValue("primary_di", "666666"))
		})

		It("serves the same data on the legacy paths", func() {
			resp, err := server().GetLegacy("/get_device_info/", "TestDevice1")
			Expect(err).NotTo(HaveOccurred())
			legacy := helpers.DecodeRecords(resp)
			Expect(legacy).To(Equal(server().LookupDevices("combined", "TestDevice1")))

			resp, err = server().GetLegacy("/get_fda_data/", "TestDevice2")
			Expect(err).NotTo(HaveOccurred())
			Expect(keysOf(helpers.DecodeRecords(resp), "k_number")).To(ConsistOf("777777"))

			resp, err = server().GetLegacy("/get_eudamed_data/", "TestDevice3")
			Expect(err).NotTo(HaveOccurred())
			Expect(keysOf(helpers.DecodeRecords(resp), "primary_di")).To(ConsistOf("666666"))
		})
	})
}
