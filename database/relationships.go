package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/siherrmann/schematic/helper"
	"github.com/siherrmann/schematic/model"
	"github.com/siherrmann/schematic/sql"
)

// RelationshipsDBHandlerFunctions defines the interface for Relationships database operations.
type RelationshipsDBHandlerFunctions interface {
	InsertRelationship(ctx context.Context, rel *model.Relationship) (bool, error)
	SelectRelationship(ctx context.Context, id uuid.UUID) (*model.Relationship, error)
	SelectRelationshipsFrom(ctx context.Context, sourceID uuid.UUID, types []model.RelationshipType) ([]*model.Relationship, error)
	SelectRelationshipsTo(ctx context.Context, targetID uuid.UUID, types []model.RelationshipType) ([]*model.Relationship, error)
	DeleteRelationship(ctx context.Context, id uuid.UUID) error
}

// RelationshipsDBHandler handles relationship-related database operations
type RelationshipsDBHandler struct {
	db *helper.Database
}

// NewRelationshipsDBHandler creates a new relationships database handler.
// It initializes the database connection and loads relationship-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewRelationshipsDBHandler(db *helper.Database, force bool) (*RelationshipsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	relationshipsDbHandler := &RelationshipsDBHandler{
		db: db,
	}

	err := sql.LoadRelationshipsSql(relationshipsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load relationships sql", err)
	}

	err = relationshipsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized RelationshipsDBHandler")

	return relationshipsDbHandler, nil
}

// CreateTable creates the 'relationships' table in the database.
// If the table already exists, it does not create it again.
// The (source, target, type) triple is unique.
func (h *RelationshipsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_relationships();`)
	if err != nil {
		log.Panicf("error initializing relationships table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table relationships")

	return nil
}

// InsertRelationship inserts a relationship unless its triple exists.
// It fills rel with the stored row and reports whether a new row was created.
func (h *RelationshipsDBHandler) InsertRelationship(ctx context.Context, rel *model.Relationship) (bool, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_relationship($1, $2, $3, $4, $5, $6)`,
		rel.SourceID,
		rel.TargetID,
		rel.Type,
		rel.Confidence,
		rel.DocumentID,
		rel.PageNumber,
	)

	var inserted bool
	err := scanRelationship(row, rel, &inserted)
	if err != nil {
		return false, helper.NewError("scan", err)
	}

	return inserted, nil
}

// SelectRelationship retrieves a relationship by ID
func (h *RelationshipsDBHandler) SelectRelationship(ctx context.Context, id uuid.UUID) (*model.Relationship, error) {
	rel := &model.Relationship{}
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_relationship($1)`,
		id,
	)

	err := scanRelationship(row, rel)
	if err != nil {
		return nil, scanErr(err, fmt.Sprintf("relationship %s", id))
	}

	return rel, nil
}

// SelectRelationshipsFrom retrieves outgoing relationships.
// A nil types slice selects every type.
func (h *RelationshipsDBHandler) SelectRelationshipsFrom(ctx context.Context, sourceID uuid.UUID, types []model.RelationshipType) ([]*model.Relationship, error) {
	return h.selectRelationships(ctx, `SELECT * FROM select_relationships_from($1, $2)`, sourceID, typesParam(types))
}

// SelectRelationshipsTo retrieves incoming relationships.
// A nil types slice selects every type.
func (h *RelationshipsDBHandler) SelectRelationshipsTo(ctx context.Context, targetID uuid.UUID, types []model.RelationshipType) ([]*model.Relationship, error) {
	return h.selectRelationships(ctx, `SELECT * FROM select_relationships_to($1, $2)`, targetID, typesParam(types))
}

func (h *RelationshipsDBHandler) selectRelationships(ctx context.Context, query string, args ...interface{}) ([]*model.Relationship, error) {
	rows, err := h.db.Instance.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	rels := []*model.Relationship{}
	for rows.Next() {
		rel := &model.Relationship{}
		err := scanRelationship(rows, rel)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		rels = append(rels, rel)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return rels, nil
}

// DeleteRelationship deletes a relationship by ID
func (h *RelationshipsDBHandler) DeleteRelationship(ctx context.Context, id uuid.UUID) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT delete_relationship($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func typesParam(types []model.RelationshipType) interface{} {
	if types == nil {
		return nil
	}
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return pq.Array(out)
}
