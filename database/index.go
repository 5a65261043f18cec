package database

import (
	"context"
	"fmt"
	"time"

	"github.com/siherrmann/schematic/helper"
)

// IndexType is a pgvector index method
type IndexType string

const (
	IndexTypeHNSW    IndexType = "hnsw"
	IndexTypeIVFFlat IndexType = "ivfflat"
)

// IndexParams tunes vector index creation. Zero values use the pgvector defaults.
type IndexParams struct {
	// HNSW
	M              int
	EfConstruction int
	// IVFFlat
	Lists int
}

// ChangeIndexType rebuilds the page embedding index with the given method
func (h *PagesDBHandler) ChangeIndexType(ctx context.Context, indexType IndexType, params IndexParams) error {
	return changeVectorIndex(ctx, h.db, "pages", indexType, params)
}

// ChangeIndexType rebuilds the chunk embedding index with the given method
func (h *ChunksDBHandler) ChangeIndexType(ctx context.Context, indexType IndexType, params IndexParams) error {
	return changeVectorIndex(ctx, h.db, "chunks", indexType, params)
}

// changeVectorIndex drops idx_<table>_embedding and recreates it.
// table is always one of the fixed evidence table names.
func changeVectorIndex(ctx context.Context, db *helper.Database, table string, indexType IndexType, params IndexParams) error {
	var createIndexSQL string
	indexName := fmt.Sprintf("idx_%s_embedding", table)

	switch indexType {
	case IndexTypeHNSW:
		m := 16
		efConstruction := 64
		if params.M > 0 {
			m = params.M
		}
		if params.EfConstruction > 0 {
			efConstruction = params.EfConstruction
		}

		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX %s ON %s USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d);`,
			indexName, table, m, efConstruction,
		)

	case IndexTypeIVFFlat:
		lists := 100
		if params.Lists > 0 {
			lists = params.Lists
		}

		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX %s ON %s USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);`,
			indexName, table, lists,
		)

	default:
		return helper.NewError("change index type", helper.NewInvalidInputError("unsupported index type: %s (use 'hnsw' or 'ivfflat')", indexType))
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	_, err := db.Instance.ExecContext(ctx, fmt.Sprintf(`DROP INDEX IF EXISTS %s;`, indexName))
	if err != nil {
		return helper.NewError("drop index", err)
	}

	_, err = db.Instance.ExecContext(ctx, createIndexSQL)
	if err != nil {
		return helper.NewError("create index", err)
	}

	db.Logger.Info("Rebuilt vector index", "table", table, "type", string(indexType))

	return nil
}
