// Package v1 provides the device lookup endpoints of the device registry API.
package v1

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/device-registry-server/internal/api/common"
	"github.com/stacklok/device-registry-server/internal/registry"
	"github.com/stacklok/device-registry-server/internal/service"
)

const (
	// DeviceNameParam is the query parameter holding the device name to look up
	DeviceNameParam = "device_name"

	// CombinedView is the path segment selecting the reconciled view of both registries
	CombinedView = "combined"

	// RetrievalErrorMessage is the body of every failed lookup
	RetrievalErrorMessage = "Failed to retrieve registry data"
)

// lookupFunc is the signature shared by the DeviceService lookups
type lookupFunc func(ctx context.Context, deviceName string) ([]registry.Record, error)

// Routes handles HTTP requests for device lookups.
type Routes struct {
	service service.DeviceService
}

// NewRoutes creates a new Routes instance with the given service.
func NewRoutes(svc service.DeviceService) *Routes {
	return &Routes{
		service: svc,
	}
}

// Router creates the router mounted at /v1/devices:
//
//	GET /{registry}?device_name=   where registry is fda, eudamed or combined
func Router(svc service.DeviceService) http.Handler {
	routes := NewRoutes(svc)

	r := chi.NewRouter()
	r.Get("/{registry}", routes.lookup)

	return r
}

// RegisterLegacyRoutes adds the unversioned legacy lookup URLs to r
func RegisterLegacyRoutes(r chi.Router, svc service.DeviceService) {
	routes := NewRoutes(svc)

	r.Get("/get_fda_data/", routes.serve(svc.LookupRegistryA))
	r.Get("/get_eudamed_data/", routes.serve(svc.LookupRegistryB))
	r.Get("/get_device_info/", routes.serve(svc.LookupCombined))
}

// lookup handles GET /v1/devices/{registry}
func (routes *Routes) lookup(w http.ResponseWriter, r *http.Request) {
	fn := routes.lookupFor(chi.URLParam(r, "registry"))
	if fn == nil {
		common.WriteErrorResponse(w, "Unknown registry: "+chi.URLParam(r, "registry"), http.StatusNotFound)
		return
	}
	routes.serve(fn)(w, r)
}

// lookupFor maps a path segment to the matching service lookup, or nil
func (routes *Routes) lookupFor(segment string) lookupFunc {
	if segment == CombinedView {
		return routes.service.LookupCombined
	}

	id, err := registry.ParseID(segment)
	if err != nil {
		return nil
	}
	switch id {
	case registry.FDA:
		return routes.service.LookupRegistryA
	case registry.EUDAMED:
		return routes.service.LookupRegistryB
	}
	return nil
}

// serve runs fn with the request's device_name and writes the records as a
// JSON array. A missing device_name matches nothing.
func (*Routes) serve(fn lookupFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		records, err := fn(ctx, r.URL.Query().Get(DeviceNameParam))
		if err != nil {
			slog.ErrorContext(ctx, "Device lookup failed",
				"path", r.URL.Path,
				"error", err,
				"request_id", middleware.GetReqID(ctx),
			)
			common.WriteErrorResponse(w, RetrievalErrorMessage, http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []registry.Record{}
		}

		common.WriteJSONResponse(w, records, http.StatusOK)
	}
}
