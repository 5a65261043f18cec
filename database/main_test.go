package database

import (
	"context"
	"log"
	"testing"

	"github.com/google/uuid"
	"github.com/siherrmann/schematic/helper"
	"github.com/siherrmann/schematic/model"
	loadSql "github.com/siherrmann/schematic/sql"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

// Small vectors keep similarity expectations readable
const testEmbeddingDim = 3

var dbPort string

func TestMain(m *testing.M) {
	var teardown func(ctx context.Context, opts ...testcontainers.TerminateOption) error
	var err error
	teardown, dbPort, err = helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("error starting postgres container: %v", err)
	}

	m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Fatalf("error tearing down postgres container: %v", err)
		}
	}
}

func initDB(t *testing.T) *helper.Database {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err, "failed to create database configuration")
	database := helper.NewTestDatabase(dbConfig)

	err = loadSql.Init(database.Instance)
	require.NoError(t, err)

	return database
}

type testHandlers struct {
	documents     *DocumentsDBHandler
	equipment     *EquipmentDBHandler
	relationships *RelationshipsDBHandler
	pages         *PagesDBHandler
	chunks        *ChunksDBHandler
	records       *RecordsDBHandler
}

// initHandlers creates every handler in foreign key order
func initHandlers(t *testing.T) *testHandlers {
	database := initDB(t)

	documents, err := NewDocumentsDBHandler(database, false)
	require.NoError(t, err, "Expected NewDocumentsDBHandler to not return an error")
	equipment, err := NewEquipmentDBHandler(database, false)
	require.NoError(t, err, "Expected NewEquipmentDBHandler to not return an error")
	relationships, err := NewRelationshipsDBHandler(database, false)
	require.NoError(t, err, "Expected NewRelationshipsDBHandler to not return an error")
	pages, err := NewPagesDBHandler(database, testEmbeddingDim, false)
	require.NoError(t, err, "Expected NewPagesDBHandler to not return an error")
	chunks, err := NewChunksDBHandler(database, testEmbeddingDim, false)
	require.NoError(t, err, "Expected NewChunksDBHandler to not return an error")
	records, err := NewRecordsDBHandler(database, false)
	require.NoError(t, err, "Expected NewRecordsDBHandler to not return an error")

	return &testHandlers{
		documents:     documents,
		equipment:     equipment,
		relationships: relationships,
		pages:         pages,
		chunks:        chunks,
		records:       records,
	}
}

func insertTestDocument(t *testing.T, h *testHandlers, projectID uuid.UUID, title string) *model.Document {
	doc := &model.Document{
		ProjectID: projectID,
		Title:     title,
		Filename:  title + ".pdf",
		Kind:      model.DocumentKindDrawing,
	}
	err := h.documents.InsertDocument(context.Background(), doc)
	require.NoError(t, err, "Expected InsertDocument to not return an error")
	return doc
}

func insertTestEquipment(t *testing.T, h *testHandlers, projectID uuid.UUID, tag string, equipmentType model.EquipmentType) *model.Equipment {
	eq := &model.Equipment{
		ProjectID: projectID,
		Tag:       tag,
		Type:      equipmentType,
	}
	_, err := h.equipment.InsertEquipment(context.Background(), eq)
	require.NoError(t, err, "Expected InsertEquipment to not return an error")
	return eq
}
