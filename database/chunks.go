package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/schematic/helper"
	"github.com/siherrmann/schematic/model"
	loadSql "github.com/siherrmann/schematic/sql"
)

// ChunksDBHandlerFunctions defines the interface for Chunks database operations.
type ChunksDBHandlerFunctions interface {
	InsertChunk(ctx context.Context, chunk *model.Chunk) error
	UpdateChunkEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
	DeleteChunk(ctx context.Context, id uuid.UUID) error
	SelectChunk(ctx context.Context, id uuid.UUID) (*model.Chunk, error)
	SelectChunksByDocument(ctx context.Context, documentID uuid.UUID) ([]*model.Chunk, error)
	SelectChunksByTags(ctx context.Context, projectID uuid.UUID, tags []string) ([]*model.Chunk, error)
	SelectChunksBySimilarity(ctx context.Context, projectID uuid.UUID, embedding []float32, limit int) ([]*model.ScoredChunk, error)
	SelectChunksByKeyword(ctx context.Context, projectID uuid.UUID, query string, limit int) ([]*model.Chunk, error)
}

// ChunksDBHandler handles chunk-related database operations
type ChunksDBHandler struct {
	db *helper.Database
}

// NewChunksDBHandler creates a new chunks database handler.
// It initializes the database connection and loads chunk-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewChunksDBHandler(db *helper.Database, embeddingDim int, force bool) (*ChunksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	chunksDbHandler := &ChunksDBHandler{
		db: db,
	}

	err := loadSql.LoadChunksSql(chunksDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load chunks sql", err)
	}

	err = chunksDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ChunksDBHandler")

	return chunksDbHandler, nil
}

// CreateTable creates the 'chunks' table in the database.
// If the table already exists, it does not create it again.
// It also creates the tag and vector indexes.
func (h *ChunksDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_chunks($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing chunks table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table chunks")

	return nil
}

// InsertChunk inserts a new chunk
func (h *ChunksDBHandler) InsertChunk(ctx context.Context, chunk *model.Chunk) error {
	if chunk.Category == "" {
		chunk.Category = model.ChunkCategoryGeneral
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_chunk($1, $2, $3, $4, $5, $6, $7)`,
		chunk.DocumentID,
		chunk.ChunkIndex,
		chunk.Content,
		vectorParam(chunk.Embedding),
		chunk.SourceLocation,
		chunk.Category,
		pq.Array(chunk.EquipmentTags),
	)

	err := scanChunk(row, chunk)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// UpdateChunkEmbedding sets the embedding of a chunk
func (h *ChunksDBHandler) UpdateChunkEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT update_chunk_embedding($1, $2)`,
		id,
		pgvector.NewVector(embedding),
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// DeleteChunk deletes a chunk by ID
func (h *ChunksDBHandler) DeleteChunk(ctx context.Context, id uuid.UUID) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT delete_chunk($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectChunk retrieves a chunk by ID
func (h *ChunksDBHandler) SelectChunk(ctx context.Context, id uuid.UUID) (*model.Chunk, error) {
	chunk := &model.Chunk{}
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_chunk($1)`,
		id,
	)

	err := scanChunk(row, chunk)
	if err != nil {
		return nil, scanErr(err, fmt.Sprintf("chunk %s", id))
	}

	return chunk, nil
}

// SelectChunksByDocument retrieves all chunks of a document by chunk index
func (h *ChunksDBHandler) SelectChunksByDocument(ctx context.Context, documentID uuid.UUID) ([]*model.Chunk, error) {
	return h.selectChunks(ctx, `SELECT * FROM select_chunks_by_document($1)`, documentID)
}

// SelectChunksByTags retrieves the chunks of a project mentioning any of tags in insertion order
func (h *ChunksDBHandler) SelectChunksByTags(ctx context.Context, projectID uuid.UUID, tags []string) ([]*model.Chunk, error) {
	if len(tags) == 0 {
		return []*model.Chunk{}, nil
	}
	return h.selectChunks(ctx, `SELECT * FROM select_chunks_by_tags($1, $2)`, projectID, pq.Array(tags))
}

// SelectChunksByKeyword retrieves chunks whose text or document title contains query, ignoring case.
// Chunks of heavier categories come first, then insertion order.
func (h *ChunksDBHandler) SelectChunksByKeyword(ctx context.Context, projectID uuid.UUID, query string, limit int) ([]*model.Chunk, error) {
	return h.selectChunks(ctx, `SELECT * FROM select_chunks_by_keyword($1, $2, $3)`, projectID, query, limit)
}

func (h *ChunksDBHandler) selectChunks(ctx context.Context, query string, args ...interface{}) ([]*model.Chunk, error) {
	rows, err := h.db.Instance.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	chunks := []*model.Chunk{}
	for rows.Next() {
		chunk := &model.Chunk{}
		err := scanChunk(rows, chunk)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		chunks = append(chunks, chunk)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return chunks, nil
}

// SelectChunksBySimilarity ranks the embedded chunks of a project by cosine distance.
// Ties are broken by insertion order.
func (h *ChunksDBHandler) SelectChunksBySimilarity(ctx context.Context, projectID uuid.UUID, embedding []float32, limit int) ([]*model.ScoredChunk, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_chunks_by_similarity($1, $2, $3)`,
		projectID,
		pgvector.NewVector(embedding),
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	results := []*model.ScoredChunk{}
	for rows.Next() {
		scored := &model.ScoredChunk{Chunk: &model.Chunk{}}
		err := scanChunk(rows, scored.Chunk, &scored.Distance)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		results = append(results, scored)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return results, nil
}
