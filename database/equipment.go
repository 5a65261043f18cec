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

// EquipmentDBHandlerFunctions defines the interface for Equipment database operations.
type EquipmentDBHandlerFunctions interface {
	InsertEquipment(ctx context.Context, equipment *model.Equipment) (bool, error)
	SelectEquipment(ctx context.Context, id uuid.UUID) (*model.Equipment, error)
	SelectEquipmentByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Equipment, error)
	SelectEquipmentByTag(ctx context.Context, projectID uuid.UUID, tag string) (*model.Equipment, error)
	SelectEquipmentByAlias(ctx context.Context, projectID uuid.UUID, alias string) (*model.Equipment, error)
	SelectEquipmentByProject(ctx context.Context, projectID uuid.UUID) ([]*model.Equipment, error)
	DeleteEquipment(ctx context.Context, id uuid.UUID) error
	InsertAlias(ctx context.Context, alias *model.EquipmentAlias) (bool, error)
	SelectAliases(ctx context.Context, equipmentID uuid.UUID) ([]*model.EquipmentAlias, error)
	SelectAliasesByProject(ctx context.Context, projectID uuid.UUID) ([]*model.EquipmentAlias, error)
}

// EquipmentDBHandler handles equipment and alias database operations
type EquipmentDBHandler struct {
	db *helper.Database
}

// NewEquipmentDBHandler creates a new equipment database handler.
// It initializes the database connection and loads equipment-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEquipmentDBHandler(db *helper.Database, force bool) (*EquipmentDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	equipmentDbHandler := &EquipmentDBHandler{
		db: db,
	}

	err := sql.LoadEquipmentSql(equipmentDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load equipment sql", err)
	}

	err = equipmentDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EquipmentDBHandler")

	return equipmentDbHandler, nil
}

// CreateTable creates the 'equipment' and 'equipment_aliases' tables in the database.
// If the tables already exist, it does not create them again.
// It also creates the case-insensitive unique indexes on tags and aliases.
func (h *EquipmentDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_equipment();`)
	if err != nil {
		log.Panicf("error initializing equipment table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table equipment")

	return nil
}

// InsertEquipment inserts an equipment unless the project already has its tag.
// It fills equipment with the stored row and reports whether a new row was created.
func (h *EquipmentDBHandler) InsertEquipment(ctx context.Context, equipment *model.Equipment) (bool, error) {
	if equipment.Type == "" {
		equipment.Type = model.EquipmentTypeOther
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_equipment($1, $2, $3, $4)`,
		equipment.ProjectID,
		equipment.Tag,
		equipment.Type,
		equipment.Description,
	)

	var inserted bool
	err := scanEquipment(row, equipment, &inserted)
	if err != nil {
		return false, helper.NewError("scan", err)
	}

	return inserted, nil
}

// SelectEquipment retrieves an equipment by ID
func (h *EquipmentDBHandler) SelectEquipment(ctx context.Context, id uuid.UUID) (*model.Equipment, error) {
	equipment := &model.Equipment{}
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_equipment($1)`,
		id,
	)

	err := scanEquipment(row, equipment)
	if err != nil {
		return nil, scanErr(err, fmt.Sprintf("equipment %s", id))
	}

	return equipment, nil
}

// SelectEquipmentByIDs retrieves all equipment with the given IDs ordered by tag
func (h *EquipmentDBHandler) SelectEquipmentByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Equipment, error) {
	if len(ids) == 0 {
		return []*model.Equipment{}, nil
	}
	return h.selectEquipmentList(ctx, `SELECT * FROM select_equipment_by_ids($1)`, pq.Array(uuidStrings(ids)))
}

// SelectEquipmentByTag retrieves the equipment whose canonical tag matches case-insensitively
func (h *EquipmentDBHandler) SelectEquipmentByTag(ctx context.Context, projectID uuid.UUID, tag string) (*model.Equipment, error) {
	equipment := &model.Equipment{}
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_equipment_by_tag($1, $2)`,
		projectID,
		tag,
	)

	err := scanEquipment(row, equipment)
	if err != nil {
		return nil, scanErr(err, fmt.Sprintf("equipment with tag %s", tag))
	}

	return equipment, nil
}

// SelectEquipmentByAlias retrieves the equipment owning a case-insensitively matching alias.
// If several equipment share the alias the most confident one is returned.
func (h *EquipmentDBHandler) SelectEquipmentByAlias(ctx context.Context, projectID uuid.UUID, alias string) (*model.Equipment, error) {
	equipment := &model.Equipment{}
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_equipment_by_alias($1, $2)`,
		projectID,
		alias,
	)

	err := scanEquipment(row, equipment)
	if err != nil {
		return nil, scanErr(err, fmt.Sprintf("equipment with alias %s", alias))
	}

	return equipment, nil
}

// SelectEquipmentByProject retrieves all equipment of a project ordered by tag and creation
func (h *EquipmentDBHandler) SelectEquipmentByProject(ctx context.Context, projectID uuid.UUID) ([]*model.Equipment, error) {
	return h.selectEquipmentList(ctx, `SELECT * FROM select_equipment_by_project($1)`, projectID)
}

func (h *EquipmentDBHandler) selectEquipmentList(ctx context.Context, query string, args ...interface{}) ([]*model.Equipment, error) {
	rows, err := h.db.Instance.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	equipment := []*model.Equipment{}
	for rows.Next() {
		eq := &model.Equipment{}
		err := scanEquipment(rows, eq)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		equipment = append(equipment, eq)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return equipment, nil
}

// DeleteEquipment deletes an equipment with its aliases and relationships
func (h *EquipmentDBHandler) DeleteEquipment(ctx context.Context, id uuid.UUID) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT delete_equipment($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// InsertAlias inserts an alias unless the equipment already has it.
// It fills alias with the stored row and reports whether a new row was created.
func (h *EquipmentDBHandler) InsertAlias(ctx context.Context, alias *model.EquipmentAlias) (bool, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_equipment_alias($1, $2, $3, $4)`,
		alias.EquipmentID,
		alias.Alias,
		alias.Source,
		alias.Confidence,
	)

	var inserted bool
	err := scanAlias(row, alias, &inserted)
	if err != nil {
		return false, helper.NewError("scan", err)
	}

	return inserted, nil
}

// SelectAliases retrieves the aliases of an equipment in creation order
func (h *EquipmentDBHandler) SelectAliases(ctx context.Context, equipmentID uuid.UUID) ([]*model.EquipmentAlias, error) {
	return h.selectAliasList(ctx, `SELECT * FROM select_equipment_aliases($1)`, equipmentID)
}

// SelectAliasesByProject retrieves the aliases of every equipment in a project
func (h *EquipmentDBHandler) SelectAliasesByProject(ctx context.Context, projectID uuid.UUID) ([]*model.EquipmentAlias, error) {
	return h.selectAliasList(ctx, `SELECT * FROM select_equipment_aliases_by_project($1)`, projectID)
}

func (h *EquipmentDBHandler) selectAliasList(ctx context.Context, query string, args ...interface{}) ([]*model.EquipmentAlias, error) {
	rows, err := h.db.Instance.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	aliases := []*model.EquipmentAlias{}
	for rows.Next() {
		alias := &model.EquipmentAlias{}
		err := scanAlias(rows, alias)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		aliases = append(aliases, alias)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return aliases, nil
}
