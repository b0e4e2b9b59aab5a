// Package jurisdiction implements the per-jurisdiction IFTA return adapters:
// validation, document rendering, submission and status polling.
package jurisdiction

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/ukydev/fleet-ifta/internal/models"
)

var (
	ErrStatusCheckNotImplemented = errors.New("status check not implemented for jurisdiction")
	ErrNoEndpoint                = errors.New("jurisdiction endpoint is not configured")
)

// Adapter files returns with a single jurisdiction.
type Adapter interface {
	// Jurisdiction returns the normalized jurisdiction code.
	Jurisdiction() string
	// ValidateData returns human readable problems; empty means valid.
	ValidateData(data *models.IFTAQuarterlyData) []string
	// GeneratePayload renders the jurisdiction-specific return document.
	GeneratePayload(data *models.IFTAQuarterlyData) ([]byte, error)
	// SubmitReturn posts the return. Failures are reported in the response, never returned.
	SubmitReturn(ctx context.Context, data *models.IFTAQuarterlyData) models.IFTAResponse
	// CheckStatus polls a prior submission. On error the response is a rejected
	// failure describing it and must not be treated as a status change.
	CheckStatus(ctx context.Context, submissionID string) (models.IFTAResponse, error)
}

// Registry maps jurisdiction codes to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates a registry holding adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter for its jurisdiction.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[models.NormalizeJurisdiction(a.Jurisdiction())] = a
}

// Lookup returns the adapter for a jurisdiction.
func (r *Registry) Lookup(jurisdiction string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[models.NormalizeJurisdiction(jurisdiction)]
	return a, ok
}

// Jurisdictions lists registered codes in sorted order.
func (r *Registry) Jurisdictions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.adapters))
	for code := range r.adapters {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
