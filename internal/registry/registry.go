// Package registry owns the mapping from organization identifiers to their
// isolated vector stores. It is the enforcement point for tenant isolation:
// no chunk enters a store without its organization component being checked.
package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/veldtlabs/stratad/internal/ingest"
	"github.com/veldtlabs/stratad/internal/vectorstore"
	"go.uber.org/zap"
)

var (
	// ErrUnknownOrganization is returned when an organization has no
	// tenant store. Distinct from "store exists but is empty", which is a
	// valid state yielding empty retrieval results.
	ErrUnknownOrganization = errors.New("unknown organization")

	// ErrIsolationViolation is returned when a chunk's organization
	// component does not match the store it is bound for. It is fatal to
	// the affected organization's rebuild and must never be absorbed.
	ErrIsolationViolation = errors.New("tenant isolation violation")

	// ErrInvalidOrganization is returned for identifiers unsafe to use as
	// storage directory names.
	ErrInvalidOrganization = errors.New("invalid organization identifier")
)

// Config holds registry configuration.
type Config struct {
	// KnowledgeRoot is the document tree organizations are derived from.
	KnowledgeRoot string

	// StoreRoot is the directory holding one store directory per
	// organization, named by the organization identifier verbatim.
	StoreRoot string

	// Compress enables compression of persisted stores.
	Compress bool
}

// tenantStore pairs a store with the mutex serializing its writes.
type tenantStore struct {
	store vectorstore.Store

	// writeMu serializes Rebuild/Append for this organization. Reads may
	// proceed during a write and observe a store mid-rebuild.
	writeMu sync.Mutex
}

// Registry maps organization identifiers to their isolated tenant stores.
// It is initialized once at startup, mutated only through Rebuild/Append,
// and read concurrently by the query planner.
type Registry struct {
	config   Config
	embedder vectorstore.Embedder
	pipeline *ingest.Pipeline
	logger   *zap.Logger

	mu      sync.RWMutex
	tenants map[string]*tenantStore
}

// New creates an empty registry. Call Initialize to populate it from the
// knowledge root.
func New(config Config, pipeline *ingest.Pipeline, embedder vectorstore.Embedder, logger *zap.Logger) (*Registry, error) {
	if pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		config:   config,
		embedder: embedder,
		pipeline: pipeline,
		logger:   logger,
		tenants:  make(map[string]*tenantStore),
	}, nil
}

// ValidateOrganization rejects identifiers unsafe as storage directory
// names: empty strings, path traversal components, and separators.
func ValidateOrganization(organization string) error {
	if organization == "" || organization == "." || organization == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidOrganization, organization)
	}
	if strings.ContainsAny(organization, `/\`) {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidOrganization, organization)
	}
	return nil
}

// GetOrCreate returns the organization's store, creating its persistent
// storage location if absent. Idempotent.
func (r *Registry) GetOrCreate(organization string) (vectorstore.Store, error) {
	if err := ValidateOrganization(organization); err != nil {
		return nil, err
	}

	r.mu.RLock()
	tenant, ok := r.tenants[organization]
	r.mu.RUnlock()
	if ok {
		return tenant.store, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if tenant, ok := r.tenants[organization]; ok {
		return tenant.store, nil
	}

	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:     filepath.Join(r.config.StoreRoot, organization),
		Compress: r.config.Compress,
	}, r.embedder, r.logger.Named("vectorstore").With(zap.String("organization", organization)))
	if err != nil {
		return nil, fmt.Errorf("creating store for %s: %w", organization, err)
	}

	r.tenants[organization] = &tenantStore{store: store}
	r.logger.Info("tenant store created", zap.String("organization", organization))
	return store, nil
}

// Get returns the organization's store, or ErrUnknownOrganization when no
// store has been initialized for it.
func (r *Registry) Get(organization string) (vectorstore.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tenant, ok := r.tenants[organization]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOrganization, organization)
	}
	return tenant.store, nil
}

// Organizations returns the identifiers with an initialized store, sorted.
func (r *Registry) Organizations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	orgs := make([]string, 0, len(r.tenants))
	for org := range r.tenants {
		orgs = append(orgs, org)
	}
	sort.Strings(orgs)
	return orgs
}

// ListOrganizations enumerates organization identifiers present under the
// knowledge root (its top-level directories). A missing root yields an
// empty set, not an error.
func (r *Registry) ListOrganizations() ([]string, error) {
	entries, err := os.ReadDir(r.config.KnowledgeRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading knowledge root: %w", err)
	}

	var orgs []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		orgs = append(orgs, entry.Name())
	}
	sort.Strings(orgs)
	return orgs, nil
}

// checkIsolation verifies that every chunk belongs to the organization.
// The property is checked, never assumed: it is the invariant most likely
// to regress.
func checkIsolation(organization string, chunks []vectorstore.Chunk) error {
	for _, chunk := range chunks {
		if chunk.Hierarchy.Organization != organization {
			return fmt.Errorf("%w: chunk %s from %q bound for store %q",
				ErrIsolationViolation, chunk.ID, chunk.Hierarchy.Organization, organization)
		}
	}
	return nil
}

// Rebuild clears the organization's store and inserts chunks. All chunks
// must satisfy the isolation invariant.
func (r *Registry) Rebuild(ctx context.Context, organization string, chunks []vectorstore.Chunk) error {
	if err := checkIsolation(organization, chunks); err != nil {
		return err
	}

	store, err := r.GetOrCreate(organization)
	if err != nil {
		return err
	}

	tenant := r.tenant(organization)
	tenant.writeMu.Lock()
	defer tenant.writeMu.Unlock()

	if err := store.Reset(ctx); err != nil {
		return fmt.Errorf("clearing store for %s: %w", organization, err)
	}
	if len(chunks) == 0 {
		r.logger.Info("tenant store rebuilt empty", zap.String("organization", organization))
		return nil
	}
	if _, err := store.Add(ctx, chunks); err != nil {
		return fmt.Errorf("populating store for %s: %w", organization, err)
	}

	chunksStored.WithLabelValues(organization).Add(float64(len(chunks)))
	r.logger.Info("tenant store rebuilt",
		zap.String("organization", organization),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

// Append inserts chunks into the organization's store without clearing it.
// The same isolation check as Rebuild applies.
func (r *Registry) Append(ctx context.Context, organization string, chunks []vectorstore.Chunk) error {
	if err := checkIsolation(organization, chunks); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	store, err := r.GetOrCreate(organization)
	if err != nil {
		return err
	}

	tenant := r.tenant(organization)
	tenant.writeMu.Lock()
	defer tenant.writeMu.Unlock()

	if _, err := store.Add(ctx, chunks); err != nil {
		return fmt.Errorf("appending to store for %s: %w", organization, err)
	}

	chunksStored.WithLabelValues(organization).Add(float64(len(chunks)))
	r.logger.Info("tenant store appended",
		zap.String("organization", organization),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

// tenant returns the tracked tenant entry; callers must have ensured it
// exists via GetOrCreate.
func (r *Registry) tenant(organization string) *tenantStore {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tenants[organization]
}

// Initialize enumerates organizations under the knowledge root and rebuilds
// each tenant's store from a single filtered load of the tree. A failure,
// including an isolation violation in the loaded chunk set, aborts only
// the affected organization, which stays unavailable until corrected.
func (r *Registry) Initialize(ctx context.Context) error {
	orgs, err := r.ListOrganizations()
	if err != nil {
		return err
	}

	for _, org := range orgs {
		chunks, err := r.pipeline.LoadAll(r.config.KnowledgeRoot, org)
		if err != nil {
			r.logger.Error("organization load failed; left unavailable",
				zap.String("organization", org), zap.Error(err))
			rebuildFailures.WithLabelValues(org).Inc()
			continue
		}
		if err := r.Rebuild(ctx, org, chunks); err != nil {
			r.logger.Error("organization rebuild failed; left unavailable",
				zap.String("organization", org), zap.Error(err))
			rebuildFailures.WithLabelValues(org).Inc()
			// An aborted rebuild must not leave a queryable store.
			r.remove(org)
			continue
		}
	}

	r.logger.Info("registry initialized",
		zap.Strings("organizations", r.Organizations()))
	return nil
}

// remove drops an organization's store from the registry after a failed
// rebuild so queries surface ErrUnknownOrganization instead of partial data.
func (r *Registry) remove(organization string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tenant, ok := r.tenants[organization]; ok {
		_ = tenant.store.Close()
		delete(r.tenants, organization)
	}
}

// Close closes every tenant store.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for org, tenant := range r.tenants {
		if err := tenant.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing store for %s: %w", org, err))
		}
	}
	return errors.Join(errs...)
}
