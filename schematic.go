package schematic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/siherrmann/schematic/core/assembler"
	"github.com/siherrmann/schematic/core/classify"
	"github.com/siherrmann/schematic/core/graph"
	"github.com/siherrmann/schematic/core/pipeline"
	"github.com/siherrmann/schematic/core/resolver"
	"github.com/siherrmann/schematic/core/retrieval"
	"github.com/siherrmann/schematic/database"
	"github.com/siherrmann/schematic/helper"
	"github.com/siherrmann/schematic/model"
	loadSql "github.com/siherrmann/schematic/sql"
)

// IngestAliasSource is the source recorded on aliases created while ingesting pages
const IngestAliasSource = "ingest"

// Schematic provides a unified interface to all database handlers and the search core
type Schematic struct {
	DB            *helper.Database
	Documents     *database.DocumentsDBHandler
	Equipment     *database.EquipmentDBHandler
	Relationships *database.RelationshipsDBHandler
	Pages         *database.PagesDBHandler
	Chunks        *database.ChunksDBHandler
	Records       *database.RecordsDBHandler

	Resolver  *resolver.Resolver
	Graph     *graph.Graph
	Engine    *retrieval.Engine
	Assembler *assembler.Assembler
	Pipeline  *pipeline.Pipeline // Optional ingestion pipeline

	// Defaults of Search and of the fuzzy threshold used while ingesting
	SearchConfig model.SearchConfig
	// Logging
	log *slog.Logger
}

// equipmentGraph joins equipment and relationship storage for the resolver and the graph
type equipmentGraph struct {
	*database.EquipmentDBHandler
	*database.RelationshipsDBHandler
}

// NewLogger returns the pretty slog logger used by Schematic
func NewLogger(level slog.Level) *slog.Logger {
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: level,
		},
	}
	return slog.New(helper.NewPrettyHandler(os.Stdout, opts))
}

// NewSchematic connects to the database, creates all handlers and wires the search core.
// A nil logger logs at info level to stdout. No embedder is set until SetPipeline is called,
// so searches skip the semantic stage until then.
func NewSchematic(config *helper.DatabaseConfiguration, embeddingDim int, logger *slog.Logger) (*Schematic, error) {
	if logger == nil {
		logger = NewLogger(slog.LevelInfo)
	}

	db, err := helper.ConnectDatabase("schematic", config, logger)
	if err != nil {
		return nil, helper.NewError("connect database", err)
	}

	err = loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Create all handlers in foreign key order
	// force=false to not reload if functions already exist
	documents, err := database.NewDocumentsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create documents handler", err)
	}

	equipment, err := database.NewEquipmentDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create equipment handler", err)
	}

	relationships, err := database.NewRelationshipsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create relationships handler", err)
	}

	pages, err := database.NewPagesDBHandler(db, embeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create pages handler", err)
	}

	chunks, err := database.NewChunksDBHandler(db, embeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create chunks handler", err)
	}

	records, err := database.NewRecordsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create records handler", err)
	}

	store := &equipmentGraph{EquipmentDBHandler: equipment, RelationshipsDBHandler: relationships}
	g := &Schematic{
		DB:            db,
		Documents:     documents,
		Equipment:     equipment,
		Relationships: relationships,
		Pages:         pages,
		Chunks:        chunks,
		Records:       records,
		Resolver:      resolver.NewResolver(store, logger),
		Graph:         graph.NewGraph(store, logger),
		SearchConfig:  model.DefaultSearchConfig(),
		log:           logger,
	}
	g.Assembler = assembler.NewAssembler(g.Graph, logger)
	g.Engine = g.newEngine(nil)

	return g, nil
}

func (g *Schematic) newEngine(embed pipeline.EmbedFunc) *retrieval.Engine {
	stores := retrieval.Stores{
		Pages:     g.Pages,
		Chunks:    g.Chunks,
		Records:   g.Records,
		Documents: g.Documents,
	}
	return retrieval.NewEngine(g.Resolver, stores, embed, g.log)
}

// Close closes the database connection
func (g *Schematic) Close() error {
	if g.DB != nil && g.DB.Instance != nil {
		return g.DB.Instance.Close()
	}
	return nil
}

// SetPipeline sets the ingestion pipeline. Its embedder also embeds search queries.
func (g *Schematic) SetPipeline(p *pipeline.Pipeline) {
	g.Pipeline = p
	var embed pipeline.EmbedFunc
	if p != nil {
		embed = p.Embedder
	}
	g.Engine = g.newEngine(embed)
}

// UseDefaultPipeline sets up sentence chunking and the all-MiniLM-L6-v2 embedder (384 dimensions)
func (g *Schematic) UseDefaultPipeline() error {
	embedder, err := pipeline.DefaultEmbedder()
	if err != nil {
		return helper.NewError("create default embedder", err)
	}

	g.SetPipeline(pipeline.NewPipeline(pipeline.DefaultChunker(), embedder))
	return nil
}

// Search runs the staged hybrid search with the default configuration and the given limit
func (g *Schematic) Search(ctx context.Context, query string, projectID uuid.UUID, limit int) (*model.SearchResponse, error) {
	config := g.SearchConfig
	config.Limit = limit
	return g.SearchWithConfig(ctx, query, projectID, config)
}

// SearchWithConfig runs the staged hybrid search
func (g *Schematic) SearchWithConfig(ctx context.Context, query string, projectID uuid.UUID, config model.SearchConfig) (*model.SearchResponse, error) {
	if g.Engine == nil {
		return nil, helper.NewError("search", fmt.Errorf("search engine not initialized"))
	}
	return g.Engine.Search(ctx, query, projectID, config)
}

// Context searches and assembles the results into the context of an answer
func (g *Schematic) Context(ctx context.Context, query string, projectID uuid.UUID, config model.SearchConfig) (*model.ContextBundle, error) {
	response, err := g.SearchWithConfig(ctx, query, projectID, config)
	if err != nil {
		return nil, err
	}
	return g.Assemble(ctx, response)
}

// Assemble arranges a search response into an answer context
func (g *Schematic) Assemble(ctx context.Context, response *model.SearchResponse) (*model.ContextBundle, error) {
	return g.Assembler.Assemble(ctx, response)
}

// Answer searches and renders the plain listing answer used without a language model
func (g *Schematic) Answer(ctx context.Context, query string, projectID uuid.UUID, limit int) (string, error) {
	config := g.SearchConfig
	config.Limit = limit
	bundle, err := g.Context(ctx, query, projectID, config)
	if err != nil {
		return "", err
	}
	return assembler.FallbackAnswer(query, bundle), nil
}

// Classify returns the query type of a natural language query
func (g *Schematic) Classify(query string) model.QueryType {
	return classify.Classify(query)
}

// Resolve finds the equipment with the given tag or alias. An unknown tag returns nil.
func (g *Schematic) Resolve(ctx context.Context, projectID uuid.UUID, tag string) (*model.Equipment, error) {
	return g.Resolver.Resolve(ctx, projectID, tag)
}

// FuzzyMatch returns the most similar equipment of the project if its score reaches threshold
func (g *Schematic) FuzzyMatch(ctx context.Context, projectID uuid.UUID, tag string, threshold float64) (*uuid.UUID, float64) {
	return g.Resolver.FuzzyMatch(ctx, projectID, tag, threshold)
}

// Lookup resolves a tag exactly, by alias, then by fuzzy match and reports the confidence
func (g *Schematic) Lookup(ctx context.Context, projectID uuid.UUID, tag string, threshold float64) (*model.Equipment, float64, error) {
	return g.Resolver.Lookup(ctx, projectID, tag, threshold)
}

// AddAlias records an alternate tag for an equipment
func (g *Schematic) AddAlias(ctx context.Context, equipmentID uuid.UUID, alias string, source string, confidence float64) (*model.EquipmentAlias, error) {
	return g.Resolver.AddAlias(ctx, equipmentID, alias, source, confidence)
}

// AddEquipment stores an equipment. An existing tag of the project returns the stored equipment.
func (g *Schematic) AddEquipment(ctx context.Context, equipment *model.Equipment) (*model.Equipment, error) {
	if strings.TrimSpace(equipment.Tag) == "" {
		return nil, helper.NewInvalidInputError("equipment tag is blank")
	}
	_, err := g.Equipment.InsertEquipment(ctx, equipment)
	if err != nil {
		return nil, helper.NewError("insert equipment", err)
	}
	return equipment, nil
}

// GetRelationships returns the relationships of an equipment partitioned by type and direction
func (g *Schematic) GetRelationships(ctx context.Context, equipmentID uuid.UUID, direction model.Direction) (*model.Relationships, error) {
	return g.Graph.GetRelationships(ctx, equipmentID, direction)
}

// GetUpstreamChain follows FEEDS and POWERS edges against their direction
func (g *Schematic) GetUpstreamChain(ctx context.Context, equipmentID uuid.UUID, maxDepth int) ([]uuid.UUID, error) {
	return g.Graph.GetUpstreamChain(ctx, equipmentID, maxDepth)
}

// GetDownstreamChain follows FEEDS and POWERS edges in their direction
func (g *Schematic) GetDownstreamChain(ctx context.Context, equipmentID uuid.UUID, maxDepth int) ([]uuid.UUID, error) {
	return g.Graph.GetDownstreamChain(ctx, equipmentID, maxDepth)
}

// AddRelationship stores a typed edge between two equipment
func (g *Schematic) AddRelationship(ctx context.Context, sourceID, targetID uuid.UUID, relType model.RelationshipType, confidence float64, origin *model.RelationshipOrigin) (*model.Relationship, error) {
	return g.Graph.AddRelationship(ctx, sourceID, targetID, relType, confidence, origin)
}

// LoadEquipment returns the equipment with the given IDs in the order of ids
func (g *Schematic) LoadEquipment(ctx context.Context, ids []uuid.UUID) ([]*model.Equipment, error) {
	return g.Graph.Equipment(ctx, ids)
}

// Ping checks the database connection
func (g *Schematic) Ping(ctx context.Context) error {
	if g.DB == nil || g.DB.Instance == nil {
		return helper.NewError("ping", fmt.Errorf("database not connected"))
	}
	return g.DB.Instance.PingContext(ctx)
}

// BFSTraversal performs breadth-first search from an equipment
func (g *Schematic) BFSTraversal(ctx context.Context, sourceID uuid.UUID, maxHops int, types []model.RelationshipType, direction model.Direction) ([]*graph.TraversalResult, error) {
	return g.Graph.BFS(ctx, sourceID, maxHops, types, direction)
}

// DFSTraversal performs depth-first search from an equipment
func (g *Schematic) DFSTraversal(ctx context.Context, sourceID uuid.UUID, maxHops int, types []model.RelationshipType, direction model.Direction) ([]*graph.TraversalResult, error) {
	return g.Graph.DFS(ctx, sourceID, maxHops, types, direction)
}

// InsertDocument stores a document
func (g *Schematic) InsertDocument(ctx context.Context, doc *model.Document) error {
	return g.Documents.InsertDocument(ctx, doc)
}

// InsertRecord stores a structured record
func (g *Schematic) InsertRecord(ctx context.Context, record *model.Record) error {
	return g.Records.InsertRecord(ctx, record)
}

// IngestPage stores the text of a drawing page and everything extracted from it:
// 1. The page with its embedding
// 2. The equipment of every extracted tag, reusing known equipment and recording fuzzy matches as aliases
// 3. The location of every tag on the page
// 4. The relationships found between the tags
// A failing embedder does not stop the ingestion; the page is stored without embedding.
func (g *Schematic) IngestPage(ctx context.Context, projectID, documentID uuid.UUID, pageNumber int, text string) (*model.Page, error) {
	if g.Pipeline == nil {
		return nil, helper.NewError("ingest page", fmt.Errorf("pipeline not set, use SetPipeline() first"))
	}

	result, err := g.Pipeline.ProcessPage(text)
	if err != nil {
		if !errors.Is(err, helper.ErrDependencyDegraded) {
			return nil, helper.NewError("process page", err)
		}
		g.log.Warn("Ingesting page without embedding", slog.Int("page_number", pageNumber), slog.String("error", err.Error()))
	}

	page := &model.Page{
		DocumentID: documentID,
		PageNumber: pageNumber,
		Text:       text,
		Embedding:  result.Embedding,
	}
	if err := g.Pages.InsertPage(ctx, page); err != nil {
		return nil, helper.NewError("insert page", err)
	}

	byTag := map[string]*model.Equipment{}
	for _, tag := range result.Tags {
		eq, err := g.ingestTag(ctx, projectID, tag)
		if err != nil {
			return page, err
		}
		byTag[strings.ToUpper(tag.Tag)] = eq

		location := &model.EquipmentLocation{
			EquipmentID: eq.ID,
			PageID:      page.ID,
			ContextText: tag.Context,
		}
		if err := g.Pages.InsertLocation(ctx, location); err != nil {
			return page, helper.NewError("insert location", err)
		}
		page.Locations = append(page.Locations, location)
	}

	origin := &model.RelationshipOrigin{DocumentID: &documentID, PageNumber: &pageNumber}
	for _, rel := range result.Relationships {
		source, target := byTag[strings.ToUpper(rel.SourceTag)], byTag[strings.ToUpper(rel.TargetTag)]
		if source == nil || target == nil || source.ID == target.ID {
			continue
		}

		_, err := g.Graph.AddRelationship(ctx, source.ID, target.ID, rel.Type, rel.Confidence, origin)
		if err != nil && !errors.Is(err, helper.ErrConflict) {
			return page, helper.NewError("add relationship", err)
		}
	}

	g.log.Info("Ingested page", slog.String("document_id", documentID.String()), slog.Int("page_number", pageNumber), slog.Int("tags", len(result.Tags)), slog.Int("relationships", len(result.Relationships)))

	return page, nil
}

// ingestTag returns the equipment of an extracted tag, creating it if nothing matches
func (g *Schematic) ingestTag(ctx context.Context, projectID uuid.UUID, tag *model.ExtractedTag) (*model.Equipment, error) {
	eq, err := g.Resolver.Resolve(ctx, projectID, tag.Tag)
	if err != nil {
		return nil, helper.NewError("resolve "+tag.Tag, err)
	}
	if eq != nil {
		return eq, nil
	}

	id, score := g.Resolver.FuzzyMatch(ctx, projectID, tag.Tag, g.SearchConfig.FuzzyThreshold)
	if id != nil {
		_, err := g.Resolver.AddAlias(ctx, *id, tag.Tag, IngestAliasSource, score)
		if err != nil {
			return nil, helper.NewError("add alias "+tag.Tag, err)
		}
		eq, err := g.Equipment.SelectEquipment(ctx, *id)
		if err != nil {
			return nil, helper.NewError("select equipment", err)
		}
		return eq, nil
	}

	return g.AddEquipment(ctx, &model.Equipment{
		ProjectID: projectID,
		Tag:       tag.Tag,
		Type:      tag.Type,
	})
}

// IngestDocument stores a supplementary document and its chunks.
// The document is inserted first; a failing embedder stores the chunks without embeddings.
// Returns the stored chunks.
func (g *Schematic) IngestDocument(ctx context.Context, doc *model.Document, text string, category model.ChunkCategory, sourceLocation string) ([]*model.Chunk, error) {
	if g.Pipeline == nil {
		return nil, helper.NewError("ingest document", fmt.Errorf("pipeline not set, use SetPipeline() first"))
	}
	if strings.TrimSpace(text) == "" {
		return nil, helper.NewInvalidInputError("document text is empty")
	}

	if doc.Kind == "" {
		doc.Kind = model.DocumentKindSupplementary
	}
	if err := g.Documents.InsertDocument(ctx, doc); err != nil {
		return nil, helper.NewError("insert document", err)
	}

	chunks, err := g.Pipeline.ProcessDocument(text, category, sourceLocation)
	if err != nil {
		if !errors.Is(err, helper.ErrDependencyDegraded) {
			return nil, helper.NewError("process document", err)
		}
		g.log.Warn("Ingesting chunks without embedding", slog.String("document_id", doc.ID.String()), slog.String("error", err.Error()))
	}

	for i, chunk := range chunks {
		chunk.DocumentID = doc.ID
		if err := g.Chunks.InsertChunk(ctx, chunk); err != nil {
			return chunks[:i], helper.NewError(fmt.Sprintf("insert chunk %d", i), err)
		}
	}

	g.log.Info("Ingested document", slog.String("document_id", doc.ID.String()), slog.Int("num_chunks", len(chunks)))

	return chunks, nil
}

// ChangeIndexType rebuilds the page and chunk embedding indexes with the given method
func (g *Schematic) ChangeIndexType(ctx context.Context, indexType database.IndexType, params database.IndexParams) error {
	if err := g.Pages.ChangeIndexType(ctx, indexType, params); err != nil {
		return helper.NewError("change pages index", err)
	}
	if err := g.Chunks.ChangeIndexType(ctx, indexType, params); err != nil {
		return helper.NewError("change chunks index", err)
	}
	return nil
}
