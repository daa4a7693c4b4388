// Package retriever derives per-level query handles from a tenant store.
package retriever

import (
	"context"

	"github.com/veldtlabs/stratad/internal/hierarchy"
	"github.com/veldtlabs/stratad/internal/vectorstore"
)

// DefaultTopK is the default number of nearest chunks fetched per level.
const DefaultTopK = 3

// Handle is one hierarchy level's query view over a tenant store. Handles
// are stateless: they hold only the filter recipe for their level and are
// re-derived for free whenever the underlying store is rebuilt.
type Handle struct {
	level        hierarchy.Level
	organization string
	store        vectorstore.Store
}

// Level returns the hierarchy level this handle queries.
func (h Handle) Level() hierarchy.Level {
	return h.level
}

// Query returns the top-k nearest chunks at this handle's level for the
// scope. Scoped levels filter on the exact hierarchy key truncated to the
// level; the unscoped handle filters on organization equality alone so
// isolation holds even for general content. An empty result is valid.
func (h Handle) Query(ctx context.Context, question string, scope hierarchy.Path, k int) ([]vectorstore.SearchResult, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	var filter map[string]string
	if h.level == hierarchy.LevelUnscoped {
		filter = map[string]string{hierarchy.MetaOrganization: h.organization}
	} else {
		if !scopeHasLevel(scope, h.level) {
			// The request lacks this handle's level. Truncating would
			// collapse to a less specific key, so nothing can match.
			return nil, nil
		}
		filter = map[string]string{hierarchy.MetaKey: scope.Truncate(h.level).Key()}
	}

	return h.store.Query(ctx, question, k, filter)
}

// scopeHasLevel reports whether the scope carries the level's own component.
// The hierarchy invariant guarantees the levels above it are present too.
func scopeHasLevel(scope hierarchy.Path, level hierarchy.Level) bool {
	switch level {
	case hierarchy.LevelIndividual:
		return scope.Individual != ""
	case hierarchy.LevelSubunit:
		return scope.Subunit != ""
	case hierarchy.LevelOrganization:
		return scope.Organization != ""
	default:
		return true
	}
}

// Set holds one query handle per hierarchy level for a single tenant store.
type Set struct {
	handles map[hierarchy.Level]Handle
}

// Derive builds the four level handles over the organization's store.
func Derive(store vectorstore.Store, organization string) Set {
	handles := make(map[hierarchy.Level]Handle, len(hierarchy.Levels))
	for _, level := range hierarchy.Levels {
		handles[level] = Handle{
			level:        level,
			organization: organization,
			store:        store,
		}
	}
	return Set{handles: handles}
}

// Handle returns the query handle for the given level.
func (s Set) Handle(level hierarchy.Level) Handle {
	return s.handles[level]
}
