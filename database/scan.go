package database

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/schematic/helper"
	"github.com/siherrmann/schematic/model"
)

// scanner is implemented by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// vectorParam returns NULL for an empty embedding
func vectorParam(embedding []float32) interface{} {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// scanErr maps a missing row onto helper.ErrNotFound
func scanErr(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return helper.NewError("scan", helper.NewNotFoundError("%s", what))
	}
	return helper.NewError("scan", err)
}

func scanDocument(s scanner, doc *model.Document) error {
	return s.Scan(
		&doc.ID,
		&doc.ProjectID,
		&doc.Title,
		&doc.Filename,
		&doc.DrawingNumber,
		&doc.Kind,
		&doc.Metadata,
		&doc.CreatedAt,
	)
}

func scanEquipment(s scanner, eq *model.Equipment, extra ...interface{}) error {
	dest := []interface{}{
		&eq.ID,
		&eq.ProjectID,
		&eq.Tag,
		&eq.Type,
		&eq.Description,
		&eq.CreatedAt,
	}
	return s.Scan(append(dest, extra...)...)
}

func scanAlias(s scanner, alias *model.EquipmentAlias, extra ...interface{}) error {
	dest := []interface{}{
		&alias.ID,
		&alias.EquipmentID,
		&alias.Alias,
		&alias.Source,
		&alias.Confidence,
		&alias.CreatedAt,
	}
	return s.Scan(append(dest, extra...)...)
}

func scanRelationship(s scanner, rel *model.Relationship, extra ...interface{}) error {
	dest := []interface{}{
		&rel.ID,
		&rel.SourceID,
		&rel.TargetID,
		&rel.Type,
		&rel.Confidence,
		&rel.DocumentID,
		&rel.PageNumber,
		&rel.CreatedAt,
	}
	return s.Scan(append(dest, extra...)...)
}

func scanPage(s scanner, page *model.Page, extra ...interface{}) error {
	dest := []interface{}{
		&page.ID,
		&page.DocumentID,
		&page.PageNumber,
		&page.Text,
		pq.Array(&page.Embedding),
		&page.Seq,
		&page.CreatedAt,
	}
	return s.Scan(append(dest, extra...)...)
}

func scanLocation(s scanner, loc *model.EquipmentLocation) error {
	return s.Scan(
		&loc.ID,
		&loc.EquipmentID,
		&loc.PageID,
		&loc.XMin,
		&loc.YMin,
		&loc.XMax,
		&loc.YMax,
		&loc.ContextText,
	)
}

func scanChunk(s scanner, chunk *model.Chunk, extra ...interface{}) error {
	dest := []interface{}{
		&chunk.ID,
		&chunk.DocumentID,
		&chunk.ChunkIndex,
		&chunk.Content,
		pq.Array(&chunk.Embedding),
		&chunk.SourceLocation,
		&chunk.Category,
		pq.Array(&chunk.EquipmentTags),
		&chunk.Seq,
		&chunk.CreatedAt,
	}
	return s.Scan(append(dest, extra...)...)
}

func scanRecord(s scanner, record *model.Record) error {
	return s.Scan(
		&record.ID,
		&record.DocumentID,
		&record.EquipmentTag,
		&record.DataType,
		&record.Payload,
		&record.SourceLocation,
		&record.Seq,
		&record.CreatedAt,
	)
}
