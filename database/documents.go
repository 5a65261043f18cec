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

// DocumentsDBHandlerFunctions defines the interface for Documents database operations.
type DocumentsDBHandlerFunctions interface {
	InsertDocument(ctx context.Context, doc *model.Document) error
	SelectDocument(ctx context.Context, id uuid.UUID) (*model.Document, error)
	SelectDocumentsByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Document, error)
	SelectDocumentsByProject(ctx context.Context, projectID uuid.UUID) ([]*model.Document, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error
}

// DocumentsDBHandler handles document-related database operations
type DocumentsDBHandler struct {
	db *helper.Database
}

// NewDocumentsDBHandler creates a new documents database handler.
// It initializes the database connection and loads document-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewDocumentsDBHandler(db *helper.Database, force bool) (*DocumentsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	documentsDbHandler := &DocumentsDBHandler{
		db: db,
	}

	err := sql.LoadDocumentsSql(documentsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load documents sql", err)
	}

	err = documentsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized DocumentsDBHandler")

	return documentsDbHandler, nil
}

// CreateTable creates the 'documents' table in the database.
// If the table already exists, it does not create it again.
func (h *DocumentsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_documents();`)
	if err != nil {
		log.Panicf("error initializing documents table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table documents")

	return nil
}

// InsertDocument inserts a new document
func (h *DocumentsDBHandler) InsertDocument(ctx context.Context, doc *model.Document) error {
	if doc.Kind == "" {
		doc.Kind = model.DocumentKindDrawing
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_document($1, $2, $3, $4, $5, $6)`,
		doc.ProjectID,
		doc.Title,
		doc.Filename,
		doc.DrawingNumber,
		doc.Kind,
		doc.Metadata,
	)

	err := scanDocument(row, doc)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectDocument retrieves a document by ID
func (h *DocumentsDBHandler) SelectDocument(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	doc := &model.Document{}
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_document($1)`,
		id,
	)

	err := scanDocument(row, doc)
	if err != nil {
		return nil, scanErr(err, fmt.Sprintf("document %s", id))
	}

	return doc, nil
}

// SelectDocumentsByIDs retrieves all documents with the given IDs.
// Unknown IDs are skipped.
func (h *DocumentsDBHandler) SelectDocumentsByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Document, error) {
	if len(ids) == 0 {
		return []*model.Document{}, nil
	}
	return h.selectDocuments(ctx, `SELECT * FROM select_documents_by_ids($1)`, pq.Array(uuidStrings(ids)))
}

// SelectDocumentsByProject retrieves all documents of a project in creation order
func (h *DocumentsDBHandler) SelectDocumentsByProject(ctx context.Context, projectID uuid.UUID) ([]*model.Document, error) {
	return h.selectDocuments(ctx, `SELECT * FROM select_documents_by_project($1)`, projectID)
}

func (h *DocumentsDBHandler) selectDocuments(ctx context.Context, query string, args ...interface{}) ([]*model.Document, error) {
	rows, err := h.db.Instance.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	docs := []*model.Document{}
	for rows.Next() {
		doc := &model.Document{}
		err := scanDocument(rows, doc)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		docs = append(docs, doc)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return docs, nil
}

// DeleteDocument deletes a document with its pages, chunks and records
func (h *DocumentsDBHandler) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT delete_document($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}
