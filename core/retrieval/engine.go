package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/schematic/core/classify"
	"github.com/siherrmann/schematic/core/pipeline"
	"github.com/siherrmann/schematic/core/tags"
	"github.com/siherrmann/schematic/helper"
	"github.com/siherrmann/schematic/metrics"
	"github.com/siherrmann/schematic/model"
	"golang.org/x/sync/errgroup"
)

// EquipmentResolver maps raw tags onto equipment without fuzzy matching
type EquipmentResolver interface {
	Resolve(ctx context.Context, projectID uuid.UUID, rawTag string) (*model.Equipment, error)
	Aliases(ctx context.Context, equipmentID uuid.UUID) ([]*model.EquipmentAlias, error)
}

// PageStore reads drawing pages
type PageStore interface {
	SelectPagesByEquipment(ctx context.Context, equipmentID uuid.UUID) ([]*model.Page, error)
	SelectPagesBySimilarity(ctx context.Context, projectID uuid.UUID, embedding []float32, limit int) ([]*model.ScoredPage, error)
	SelectPagesByKeyword(ctx context.Context, projectID uuid.UUID, query string, limit int) ([]*model.Page, error)
}

// ChunkStore reads text chunks
type ChunkStore interface {
	SelectChunksByTags(ctx context.Context, projectID uuid.UUID, tags []string) ([]*model.Chunk, error)
	SelectChunksBySimilarity(ctx context.Context, projectID uuid.UUID, embedding []float32, limit int) ([]*model.ScoredChunk, error)
	SelectChunksByKeyword(ctx context.Context, projectID uuid.UUID, query string, limit int) ([]*model.Chunk, error)
}

// RecordStore reads structured records
type RecordStore interface {
	SelectRecordsByTags(ctx context.Context, projectID uuid.UUID, tags []string, dataTypes []model.DataType) ([]*model.Record, error)
}

// DocumentStore reads the documents evidence belongs to
type DocumentStore interface {
	SelectDocumentsByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Document, error)
}

// Stores bundles the evidence stores searched by the engine
type Stores struct {
	Pages     PageStore
	Chunks    ChunkStore
	Records   RecordStore
	Documents DocumentStore
}

// Engine runs the staged hybrid search: exact, semantic, structured, then keyword
type Engine struct {
	resolver EquipmentResolver
	stores   Stores
	embed    pipeline.EmbedFunc
	logger   *slog.Logger
}

// NewEngine creates a search engine.
// A nil embed skips the semantic stage on every search and marks the responses as degraded.
func NewEngine(resolver EquipmentResolver, stores Stores, embed pipeline.EmbedFunc, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		resolver: resolver,
		stores:   stores,
		embed:    embed,
		logger:   logger,
	}
}

// search is the state of one Search call
type search struct {
	projectID uuid.UUID
	query     string
	queryType model.QueryType
	config    model.SearchConfig

	resolved []*model.Equipment
	// canonical tag followed by the aliases, per resolved equipment
	equipmentTags map[uuid.UUID][]string
	// resolved equipment by upper case tag or alias
	byTag map[string]*model.Equipment

	collector *collector
	documents *documentCache
	degraded  bool
}

// prefetch holds the candidates fetched concurrently in parallel mode
type prefetch struct {
	embedding  []float32
	embedErr   error
	semantic   *batch
	structured []*model.SearchResult
	keyword    *batch
}

// Search classifies query, resolves its tags and runs the search stages in order
// while fewer than config.Limit results were emitted.
// Each evidence location is returned once, by the earliest stage that found it.
// A failing or missing embedding function skips the semantic stage and sets Degraded.
func (e *Engine) Search(ctx context.Context, query string, projectID uuid.UUID, config model.SearchConfig) (*model.SearchResponse, error) {
	start := time.Now()

	if strings.TrimSpace(query) == "" {
		return nil, helper.NewInvalidInputError("query is blank")
	}
	if config.Limit < 0 {
		return nil, helper.NewInvalidInputError("limit %d is negative", config.Limit)
	}

	queryType := classify.Classify(query)
	extracted := tags.Extract(query)
	metrics.SearchesTotal.WithLabelValues(string(queryType)).Inc()
	defer func() {
		metrics.SearchDuration.WithLabelValues(string(queryType)).Observe(time.Since(start).Seconds())
	}()

	response := &model.SearchResponse{
		Query:     query,
		ProjectID: projectID.String(),
		QueryType: queryType,
		Tags:      extracted,
		Resolved:  []*model.Equipment{},
		Results:   []*model.SearchResult{},
	}
	if config.Limit == 0 {
		response.Duration = time.Since(start)
		return response, nil
	}

	s := &search{
		projectID:     projectID,
		query:         strings.TrimSpace(query),
		queryType:     queryType,
		config:        config,
		equipmentTags: map[uuid.UUID][]string{},
		byTag:         map[string]*model.Equipment{},
		collector:     newCollector(config.Limit),
		documents:     newDocumentCache(e.stores.Documents),
	}

	err := e.resolve(ctx, s, extracted)
	if err != nil {
		return nil, err
	}
	response.Resolved = s.resolved

	err = e.runExact(ctx, s)
	if err != nil {
		return nil, helper.NewError("exact stage", err)
	}

	var pre *prefetch
	if config.Parallel && !s.collector.full() {
		pre, err = e.prefetch(ctx, s)
		if err != nil {
			return nil, err
		}
	}

	err = e.runSemantic(ctx, s, pre)
	if err != nil {
		return nil, helper.NewError("semantic stage", err)
	}

	err = e.runStructured(ctx, s, pre)
	if err != nil {
		return nil, helper.NewError("structured stage", err)
	}

	err = e.runKeyword(ctx, s, pre)
	if err != nil {
		return nil, helper.NewError("keyword stage", err)
	}

	response.Results = s.collector.results
	response.Degraded = s.degraded
	response.Duration = time.Since(start)

	e.logger.Debug(
		"Search finished",
		slog.String("query_type", string(queryType)),
		slog.Int("results", len(response.Results)),
		slog.Bool("degraded", response.Degraded),
		slog.Duration("duration", response.Duration),
	)

	return response, nil
}

// resolve maps the extracted tags onto equipment, keeping the first occurrence of each equipment
func (e *Engine) resolve(ctx context.Context, s *search, extracted []*model.ExtractedTag) error {
	for _, tag := range extracted {
		equipment, err := e.resolver.Resolve(ctx, s.projectID, tag.Tag)
		if err != nil {
			return helper.NewError(fmt.Sprintf("resolve %s", tag.Tag), err)
		}
		if equipment == nil {
			continue
		}
		if _, ok := s.equipmentTags[equipment.ID]; ok {
			continue
		}

		aliases, err := e.resolver.Aliases(ctx, equipment.ID)
		if err != nil {
			return helper.NewError(fmt.Sprintf("aliases of %s", equipment.Tag), err)
		}

		names := []string{equipment.Tag}
		for _, alias := range aliases {
			names = append(names, alias.Alias)
		}

		s.resolved = append(s.resolved, equipment)
		s.equipmentTags[equipment.ID] = names
		for _, name := range names {
			key := strings.ToUpper(name)
			if _, ok := s.byTag[key]; !ok {
				s.byTag[key] = equipment
			}
		}
	}
	return nil
}

// allTags returns the tags and aliases of every resolved equipment
func (s *search) allTags() []string {
	out := []string{}
	for _, equipment := range s.resolved {
		out = append(out, s.equipmentTags[equipment.ID]...)
	}
	return out
}

// structuredTypes returns the preferred record types, or nil if the structured stage does not apply
func (s *search) structuredTypes() []model.DataType {
	if len(s.resolved) == 0 {
		return nil
	}
	return model.PreferredDataTypes(s.queryType)
}

// prefetch fetches the first batch of the semantic, structured and keyword stages concurrently.
// An embedding failure is kept for the semantic stage instead of failing the group.
func (e *Engine) prefetch(ctx context.Context, s *search) (*prefetch, error) {
	pre := &prefetch{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		embedding, err := e.embedQuery(s.query)
		if err != nil {
			pre.embedErr = err
			return nil
		}
		pre.embedding = embedding

		b, err := e.fetchSemantic(gctx, s, embedding, s.collector.limit)
		if err != nil {
			return helper.NewError("semantic stage", err)
		}
		pre.semantic = b
		return nil
	})

	if dataTypes := s.structuredTypes(); dataTypes != nil {
		g.Go(func() error {
			results, err := e.fetchStructured(gctx, s, dataTypes)
			if err != nil {
				return helper.NewError("structured stage", err)
			}
			pre.structured = results
			return nil
		})
	}

	g.Go(func() error {
		b, err := e.fetchKeyword(gctx, s, s.collector.limit)
		if err != nil {
			return helper.NewError("keyword stage", err)
		}
		pre.keyword = b
		return nil
	})

	err := g.Wait()
	if err != nil {
		return nil, err
	}
	return pre, nil
}

// embedQuery embeds the query text. Every failure wraps helper.ErrDependencyDegraded.
func (e *Engine) embedQuery(query string) ([]float32, error) {
	if e.embed == nil {
		return nil, helper.NewError("embed query", fmt.Errorf("%w: no embedding function configured", helper.ErrDependencyDegraded))
	}

	embedding, err := e.embed(query)
	if err != nil {
		return nil, helper.NewError("embed query", fmt.Errorf("%w: %v", helper.ErrDependencyDegraded, err))
	}
	if len(embedding) == 0 {
		return nil, helper.NewError("embed query", fmt.Errorf("%w: empty embedding", helper.ErrDependencyDegraded))
	}

	return embedding, nil
}

func (e *Engine) degrade(s *search, err error) {
	s.degraded = true
	metrics.DegradedSearchesTotal.Inc()
	if e.embed != nil && errors.Is(err, helper.ErrDependencyDegraded) {
		metrics.EmbedFailuresTotal.Inc()
	}
	e.logger.Warn("Skipping semantic stage", slog.String("error", err.Error()))
}

func (e *Engine) record(stage model.MatchStage, added int) {
	metrics.StageResultsTotal.WithLabelValues(string(stage)).Add(float64(added))
	e.logger.Debug("Search stage finished", slog.String("stage", string(stage)), slog.Int("added", added))
}
