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
	loadSql "github.com/siherrmann/schematic/sql"
)

// RecordsDBHandlerFunctions defines the interface for structured record database operations.
type RecordsDBHandlerFunctions interface {
	InsertRecord(ctx context.Context, record *model.Record) error
	DeleteRecord(ctx context.Context, id uuid.UUID) error
	SelectRecord(ctx context.Context, id uuid.UUID) (*model.Record, error)
	SelectRecordsByTags(ctx context.Context, projectID uuid.UUID, tags []string, dataTypes []model.DataType) ([]*model.Record, error)
}

// RecordsDBHandler handles structured record database operations
type RecordsDBHandler struct {
	db *helper.Database
}

// NewRecordsDBHandler creates a new records database handler.
// It initializes the database connection and loads record-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewRecordsDBHandler(db *helper.Database, force bool) (*RecordsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	recordsDbHandler := &RecordsDBHandler{
		db: db,
	}

	err := loadSql.LoadRecordsSql(recordsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load records sql", err)
	}

	err = recordsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized RecordsDBHandler")

	return recordsDbHandler, nil
}

// CreateTable creates the 'records' table in the database.
// If the table already exists, it does not create it again.
func (h *RecordsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_records();`)
	if err != nil {
		log.Panicf("error initializing records table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table records")

	return nil
}

// InsertRecord inserts a new structured record
func (h *RecordsDBHandler) InsertRecord(ctx context.Context, record *model.Record) error {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_record($1, $2, $3, $4, $5)`,
		record.DocumentID,
		record.EquipmentTag,
		record.DataType,
		record.Payload,
		record.SourceLocation,
	)

	err := scanRecord(row, record)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// DeleteRecord deletes a record by ID
func (h *RecordsDBHandler) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT delete_record($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectRecord retrieves a record by ID
func (h *RecordsDBHandler) SelectRecord(ctx context.Context, id uuid.UUID) (*model.Record, error) {
	record := &model.Record{}
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_record($1)`,
		id,
	)

	err := scanRecord(row, record)
	if err != nil {
		return nil, scanErr(err, fmt.Sprintf("record %s", id))
	}

	return record, nil
}

// SelectRecordsByTags retrieves the records of the given equipment tags.
// A nil dataTypes returns every record in insertion order. Otherwise records
// are filtered to dataTypes and ordered by their position in it, then by insertion order.
func (h *RecordsDBHandler) SelectRecordsByTags(ctx context.Context, projectID uuid.UUID, tags []string, dataTypes []model.DataType) ([]*model.Record, error) {
	if len(tags) == 0 {
		return []*model.Record{}, nil
	}

	var dataTypesParam interface{}
	if dataTypes != nil {
		types := make([]string, len(dataTypes))
		for i, t := range dataTypes {
			types[i] = string(t)
		}
		dataTypesParam = pq.Array(types)
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_records_by_tags($1, $2, $3)`,
		projectID,
		pq.Array(tags),
		dataTypesParam,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	records := []*model.Record{}
	for rows.Next() {
		record := &model.Record{}
		err := scanRecord(rows, record)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		records = append(records, record)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return records, nil
}
