package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed documents.sql
var documentsSQL string

//go:embed equipment.sql
var equipmentSQL string

//go:embed relationships.sql
var relationshipsSQL string

//go:embed pages.sql
var pagesSQL string

//go:embed chunks.sql
var chunksSQL string

//go:embed records.sql
var recordsSQL string

// Function lists for verification
var DocumentsFunctions = []string{
	"init_documents",
	"insert_document",
	"select_document",
	"select_documents_by_ids",
	"select_documents_by_project",
	"delete_document",
}

var EquipmentFunctions = []string{
	"init_equipment",
	"insert_equipment",
	"select_equipment",
	"select_equipment_by_ids",
	"select_equipment_by_tag",
	"select_equipment_by_alias",
	"select_equipment_by_project",
	"delete_equipment",
	"insert_equipment_alias",
	"select_equipment_aliases",
	"select_equipment_aliases_by_project",
}

var RelationshipsFunctions = []string{
	"init_relationships",
	"insert_relationship",
	"select_relationship",
	"select_relationships_from",
	"select_relationships_to",
	"delete_relationship",
}

var PagesFunctions = []string{
	"init_pages",
	"insert_page",
	"select_page",
	"select_pages_by_document",
	"select_pages_by_equipment",
	"select_pages_by_similarity",
	"select_pages_by_keyword",
	"update_page_embedding",
	"delete_page",
	"insert_equipment_location",
	"select_equipment_locations_by_page",
}

var ChunksFunctions = []string{
	"init_chunks",
	"insert_chunk",
	"select_chunk",
	"select_chunks_by_document",
	"select_chunks_by_tags",
	"select_chunks_by_similarity",
	"select_chunks_by_keyword",
	"update_chunk_embedding",
	"delete_chunk",
}

var RecordsFunctions = []string{
	"init_records",
	"insert_record",
	"select_record",
	"select_records_by_tags",
	"delete_record",
}

// Init intializes db extensions and the shared evidence sequence
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadDocumentsSql loads document-related SQL functions
func LoadDocumentsSql(db *sql.DB, force bool) error {
	return loadFunctions(db, "documents", documentsSQL, DocumentsFunctions, force)
}

// LoadEquipmentSql loads equipment and alias SQL functions
func LoadEquipmentSql(db *sql.DB, force bool) error {
	return loadFunctions(db, "equipment", equipmentSQL, EquipmentFunctions, force)
}

// LoadRelationshipsSql loads relationship-related SQL functions
func LoadRelationshipsSql(db *sql.DB, force bool) error {
	return loadFunctions(db, "relationships", relationshipsSQL, RelationshipsFunctions, force)
}

// LoadPagesSql loads page and equipment location SQL functions
func LoadPagesSql(db *sql.DB, force bool) error {
	return loadFunctions(db, "pages", pagesSQL, PagesFunctions, force)
}

// LoadChunksSql loads chunk-related SQL functions
func LoadChunksSql(db *sql.DB, force bool) error {
	return loadFunctions(db, "chunks", chunksSQL, ChunksFunctions, force)
}

// LoadRecordsSql loads structured record SQL functions
func LoadRecordsSql(db *sql.DB, force bool) error {
	return loadFunctions(db, "records", recordsSQL, RecordsFunctions, force)
}

// LoadAllSql loads all SQL functions
func LoadAllSql(db *sql.DB, force bool) error {
	loaders := []func(*sql.DB, bool) error{
		LoadDocumentsSql,
		LoadEquipmentSql,
		LoadRelationshipsSql,
		LoadPagesSql,
		LoadChunksSql,
		LoadRecordsSql,
	}
	for _, load := range loaders {
		if err := load(db, force); err != nil {
			return err
		}
	}
	return nil
}

// loadFunctions executes source unless all functions already exist.
// With force the source is always executed.
func loadFunctions(db *sql.DB, name string, source string, functions []string, force bool) error {
	if !force {
		exist, err := checkFunctions(db, functions)
		if err != nil {
			return fmt.Errorf("error checking existing %s functions: %w", name, err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(source)
	if err != nil {
		return fmt.Errorf("error executing %s SQL: %w", name, err)
	}

	exist, err := checkFunctions(db, functions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Printf("SQL %s functions loaded successfully", name)
	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
