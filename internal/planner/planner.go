// Package planner selects retrieval levels for a request, merges and
// deduplicates the retrieved context, and drives the completion model.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/veldtlabs/stratad/internal/completion"
	"github.com/veldtlabs/stratad/internal/hierarchy"
	"github.com/veldtlabs/stratad/internal/ingest"
	"github.com/veldtlabs/stratad/internal/registry"
	"github.com/veldtlabs/stratad/internal/retriever"
	"github.com/veldtlabs/stratad/internal/vectorstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var plannerTracer = otel.Tracer("stratad.planner")

// NoRelevantInformation is the canonical answer when no chunk survives
// retrieval at any level. It is a valid terminal state, not an error.
const NoRelevantInformation = "I couldn't find any relevant information in the knowledge base."

// ErrUpstream wraps completion-service failures. The HTTP layer surfaces it
// as a generic internal failure without upstream detail.
var ErrUpstream = errors.New("upstream service failure")

// Completer generates text from an ordered sequence of role-tagged turns.
type Completer interface {
	Complete(ctx context.Context, messages []completion.Message) (string, error)
}

// Exchange is one past (question, answer) pair of a conversation.
type Exchange struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Request is one question against an organization's corpus. Organization is
// mandatory; subunit and individual narrow the scope when present.
type Request struct {
	Question     string
	Organization string
	Subunit      string
	Individual   string
	History      []Exchange
}

// Section is the retrieved context of one hierarchy level.
type Section struct {
	Level   hierarchy.Level
	Content string
}

// Result is the planner's answer together with the updated history and the
// context sections that informed it, ordered most to least specific.
type Result struct {
	Answer   string
	History  []Exchange
	Sections []Section
}

// Planner answers questions by hierarchical retrieval over tenant stores.
type Planner struct {
	registry  *registry.Registry
	pipeline  *ingest.Pipeline
	completer Completer
	topK      int
	logger    *zap.Logger
}

// New creates a planner.
func New(reg *registry.Registry, pipeline *ingest.Pipeline, completer Completer, topK int, logger *zap.Logger) (*Planner, error) {
	if reg == nil {
		return nil, errors.New("registry is required")
	}
	if pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	if completer == nil {
		return nil, errors.New("completer is required")
	}
	if topK <= 0 {
		topK = retriever.DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{
		registry:  reg,
		pipeline:  pipeline,
		completer: completer,
		topK:      topK,
		logger:    logger,
	}, nil
}

// SelectLevels returns the levels to query for a scope, in descending
// specificity. Every applicable level is queried, not just the most
// specific one; unscoped is always queried last.
func SelectLevels(scope hierarchy.Path) []hierarchy.Level {
	var levels []hierarchy.Level
	if scope.Organization != "" && scope.Subunit != "" && scope.Individual != "" {
		levels = append(levels, hierarchy.LevelIndividual)
	}
	if scope.Organization != "" && scope.Subunit != "" {
		levels = append(levels, hierarchy.LevelSubunit)
	}
	if scope.Organization != "" {
		levels = append(levels, hierarchy.LevelOrganization)
	}
	levels = append(levels, hierarchy.LevelUnscoped)
	return levels
}

// dedupKey identifies a chunk for deduplication across overlapping
// retrieval passes. Two results are duplicates iff every component matches.
type dedupKey struct {
	content      string
	source       string
	page         string
	organization string
	subunit      string
	individual   string
}

func keyOf(res vectorstore.SearchResult) dedupKey {
	return dedupKey{
		content:      res.Content,
		source:       res.Metadata[vectorstore.MetaSource],
		page:         res.Metadata[vectorstore.MetaPage],
		organization: res.Metadata[hierarchy.MetaOrganization],
		subunit:      res.Metadata[hierarchy.MetaSubunit],
		individual:   res.Metadata[hierarchy.MetaIndividual],
	}
}

// leveled pairs a retrieved chunk with the level it was retrieved from.
type leveled struct {
	level  hierarchy.Level
	result vectorstore.SearchResult
}

// dedup removes duplicate results, keeping the first occurrence. Input
// order is preserved, so callers passing results in level-priority order
// retain that priority. Merging a list with itself yields the original.
func dedup(results []leveled) []leveled {
	seen := make(map[dedupKey]struct{}, len(results))
	out := results[:0:0]
	for _, r := range results {
		k := keyOf(r.result)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Retrieve runs the multi-level retrieval for a request and returns the
// deduplicated context sections, most specific first. A per-level failure
// is logged and does not abort the other levels.
func (p *Planner) Retrieve(ctx context.Context, req Request) ([]Section, error) {
	ctx, span := plannerTracer.Start(ctx, "Planner.Retrieve")
	defer span.End()

	scope, err := hierarchy.New(req.Organization, req.Subunit, req.Individual)
	if err != nil {
		return nil, err
	}
	if scope.Organization == "" {
		return nil, fmt.Errorf("%w: organization is required", hierarchy.ErrBrokenHierarchy)
	}

	store, err := p.registry.Get(scope.Organization)
	if err != nil {
		return nil, err
	}
	set := retriever.Derive(store, scope.Organization)

	levels := SelectLevels(scope)
	span.SetAttributes(attribute.Int("levels", len(levels)))

	var merged []leveled
	for _, level := range levels {
		results, err := set.Handle(level).Query(ctx, req.Question, scope, p.topK)
		if err != nil {
			p.logger.Warn("level retrieval failed",
				zap.String("organization", scope.Organization),
				zap.String("level", string(level)),
				zap.Error(err),
			)
			continue
		}
		for _, res := range results {
			merged = append(merged, leveled{level: level, result: res})
		}
	}

	merged = dedup(merged)
	span.SetAttributes(attribute.Int("chunks", len(merged)))

	// Group surviving chunks by retrieval level, preserving specificity
	// order; empty groups are omitted.
	grouped := make(map[hierarchy.Level][]string)
	for _, r := range merged {
		grouped[r.level] = append(grouped[r.level], r.result.Content)
	}

	var sections []Section
	for _, level := range hierarchy.Levels {
		contents, ok := grouped[level]
		if !ok {
			continue
		}
		sections = append(sections, Section{
			Level:   level,
			Content: strings.Join(contents, "\n\n"),
		})
	}
	return sections, nil
}

// Answer runs retrieval for the request and hands the assembled context to
// the completion model. History is appended to, never mutated. When no
// chunk survives at any level, the canonical no-information result is
// returned without calling the model.
func (p *Planner) Answer(ctx context.Context, req Request) (Result, error) {
	ctx, span := plannerTracer.Start(ctx, "Planner.Answer")
	defer span.End()

	sections, err := p.Retrieve(ctx, req)
	if err != nil {
		return Result{}, err
	}

	if len(sections) == 0 {
		return Result{
			Answer:  NoRelevantInformation,
			History: appendExchange(req.History, req.Question, NoRelevantInformation),
		}, nil
	}

	messages := buildMessages(req.Organization, sections, req.History, req.Question)
	answer, err := p.completer.Complete(ctx, messages)
	if err != nil {
		p.logger.Error("completion failed",
			zap.String("organization", req.Organization),
			zap.Error(err),
		)
		return Result{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	return Result{
		Answer:   answer,
		History:  appendExchange(req.History, req.Question, answer),
		Sections: sections,
	}, nil
}

// Ingest loads one file, stamps its chunks with the given scope, and
// appends them to the organization's store. Returns the chunk count.
func (p *Planner) Ingest(ctx context.Context, path, rel string, scope hierarchy.Path) (int, error) {
	if scope.Organization == "" {
		return 0, fmt.Errorf("%w: organization is required", hierarchy.ErrBrokenHierarchy)
	}

	chunks, err := p.pipeline.LoadFile(path, rel)
	if err != nil {
		return 0, err
	}

	// The caller-provided scope is authoritative over the path-derived
	// classification; uploads land at the scope's directory anyway.
	for i := range chunks {
		chunks[i].Hierarchy = scope
	}

	if err := p.registry.Append(ctx, scope.Organization, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// appendExchange returns history plus one exchange without mutating the
// caller's slice.
func appendExchange(history []Exchange, question, answer string) []Exchange {
	out := make([]Exchange, len(history), len(history)+1)
	copy(out, history)
	return append(out, Exchange{Question: question, Answer: answer})
}
