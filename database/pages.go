package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/schematic/helper"
	"github.com/siherrmann/schematic/model"
	loadSql "github.com/siherrmann/schematic/sql"
)

// PagesDBHandlerFunctions defines the interface for drawing page database operations.
type PagesDBHandlerFunctions interface {
	InsertPage(ctx context.Context, page *model.Page) error
	UpdatePageEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
	DeletePage(ctx context.Context, id uuid.UUID) error
	SelectPage(ctx context.Context, id uuid.UUID) (*model.Page, error)
	SelectPagesByDocument(ctx context.Context, documentID uuid.UUID) ([]*model.Page, error)
	SelectPagesByEquipment(ctx context.Context, equipmentID uuid.UUID) ([]*model.Page, error)
	SelectPagesBySimilarity(ctx context.Context, projectID uuid.UUID, embedding []float32, limit int) ([]*model.ScoredPage, error)
	SelectPagesByKeyword(ctx context.Context, projectID uuid.UUID, query string, limit int) ([]*model.Page, error)
	InsertLocation(ctx context.Context, location *model.EquipmentLocation) error
	SelectLocationsByPage(ctx context.Context, pageID uuid.UUID) ([]*model.EquipmentLocation, error)
}

// PagesDBHandler handles drawing page and equipment location database operations
type PagesDBHandler struct {
	db *helper.Database
}

// NewPagesDBHandler creates a new pages database handler.
// It initializes the database connection and loads page-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewPagesDBHandler(db *helper.Database, embeddingDim int, force bool) (*PagesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	pagesDbHandler := &PagesDBHandler{
		db: db,
	}

	err := loadSql.LoadPagesSql(pagesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load pages sql", err)
	}

	err = pagesDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized PagesDBHandler")

	return pagesDbHandler, nil
}

// CreateTable creates the 'pages' and 'equipment_locations' tables in the database.
// If the tables already exist, it does not create them again.
// The embedding column is sized to embeddingDim.
func (h *PagesDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_pages($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing pages table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table pages")

	return nil
}

// InsertPage inserts a page or replaces the text and embedding of an existing page number.
// A replaced page keeps its insertion order.
func (h *PagesDBHandler) InsertPage(ctx context.Context, page *model.Page) error {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_page($1, $2, $3, $4)`,
		page.DocumentID,
		page.PageNumber,
		page.Text,
		vectorParam(page.Embedding),
	)

	err := scanPage(row, page)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// UpdatePageEmbedding sets the embedding of a page
func (h *PagesDBHandler) UpdatePageEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT update_page_embedding($1, $2)`,
		id,
		pgvector.NewVector(embedding),
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// DeletePage deletes a page with its equipment locations
func (h *PagesDBHandler) DeletePage(ctx context.Context, id uuid.UUID) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT delete_page($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectPage retrieves a page by ID
func (h *PagesDBHandler) SelectPage(ctx context.Context, id uuid.UUID) (*model.Page, error) {
	page := &model.Page{}
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_page($1)`,
		id,
	)

	err := scanPage(row, page)
	if err != nil {
		return nil, scanErr(err, fmt.Sprintf("page %s", id))
	}

	return page, nil
}

// SelectPagesByDocument retrieves the pages of a document by page number
func (h *PagesDBHandler) SelectPagesByDocument(ctx context.Context, documentID uuid.UUID) ([]*model.Page, error) {
	return h.selectPages(ctx, `SELECT * FROM select_pages_by_document($1)`, documentID)
}

// SelectPagesByEquipment retrieves the pages an equipment was located on in insertion order
func (h *PagesDBHandler) SelectPagesByEquipment(ctx context.Context, equipmentID uuid.UUID) ([]*model.Page, error) {
	return h.selectPages(ctx, `SELECT * FROM select_pages_by_equipment($1)`, equipmentID)
}

// SelectPagesByKeyword retrieves pages whose text or document title contains query, ignoring case
func (h *PagesDBHandler) SelectPagesByKeyword(ctx context.Context, projectID uuid.UUID, query string, limit int) ([]*model.Page, error) {
	return h.selectPages(ctx, `SELECT * FROM select_pages_by_keyword($1, $2, $3)`, projectID, query, limit)
}

func (h *PagesDBHandler) selectPages(ctx context.Context, query string, args ...interface{}) ([]*model.Page, error) {
	rows, err := h.db.Instance.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	pages := []*model.Page{}
	for rows.Next() {
		page := &model.Page{}
		err := scanPage(rows, page)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		pages = append(pages, page)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return pages, nil
}

// SelectPagesBySimilarity ranks the embedded pages of a project by cosine distance.
// Ties are broken by insertion order.
func (h *PagesDBHandler) SelectPagesBySimilarity(ctx context.Context, projectID uuid.UUID, embedding []float32, limit int) ([]*model.ScoredPage, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_pages_by_similarity($1, $2, $3)`,
		projectID,
		pgvector.NewVector(embedding),
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	results := []*model.ScoredPage{}
	for rows.Next() {
		scored := &model.ScoredPage{Page: &model.Page{}}
		err := scanPage(rows, scored.Page, &scored.Distance)
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

// InsertLocation records the bounding box of an equipment on a page
func (h *PagesDBHandler) InsertLocation(ctx context.Context, location *model.EquipmentLocation) error {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_equipment_location($1, $2, $3, $4, $5, $6, $7)`,
		location.EquipmentID,
		location.PageID,
		location.XMin,
		location.YMin,
		location.XMax,
		location.YMax,
		location.ContextText,
	)

	err := scanLocation(row, location)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectLocationsByPage retrieves the equipment locations of a page from top to bottom
func (h *PagesDBHandler) SelectLocationsByPage(ctx context.Context, pageID uuid.UUID) ([]*model.EquipmentLocation, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_equipment_locations_by_page($1)`,
		pageID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	locations := []*model.EquipmentLocation{}
	for rows.Next() {
		location := &model.EquipmentLocation{}
		err := scanLocation(rows, location)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		locations = append(locations, location)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return locations, nil
}
