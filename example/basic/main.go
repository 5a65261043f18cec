package main

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/siherrmann/schematic"
	"github.com/siherrmann/schematic/helper"
	"github.com/siherrmann/schematic/model"
)

const samplePage = `E-201 ELECTRICAL ONE-LINE DIAGRAM

MCC-2 powers PANEL-5. PANEL-5 feeds RTU-F04 and EF-1.
RTU-F04 controlled by PLC-1 via W-1042.`

const sampleSequence = `RTU-F04 starts when the building enters occupied mode.
The supply fan ramps to the static pressure setpoint before cooling is enabled.

EF-1 runs whenever RTU-F04 is in occupied mode.`

func main() {
	ctx := context.Background()

	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(ctx)

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	s, err := schematic.NewSchematic(dbConfig, 384, nil)
	if err != nil {
		log.Fatalf("Failed to create schematic: %v", err)
	}
	defer s.Close()

	// Sentence chunking and all-MiniLM-L6-v2 embeddings
	if err := s.UseDefaultPipeline(); err != nil {
		log.Fatalf("Failed to set up pipeline: %v", err)
	}

	projectID := uuid.New()

	drawing := &model.Document{
		ProjectID:     projectID,
		Title:         "Electrical One-Line",
		Filename:      "E-201.pdf",
		DrawingNumber: "E-201",
		Kind:          model.DocumentKindDrawing,
	}
	if err := s.InsertDocument(ctx, drawing); err != nil {
		log.Fatalf("Failed to insert drawing: %v", err)
	}

	fmt.Println("Ingesting drawing page...")
	page, err := s.IngestPage(ctx, projectID, drawing.ID, 1, samplePage)
	if err != nil {
		log.Fatalf("Failed to ingest page: %v", err)
	}
	fmt.Printf("Page inserted with ID: %s\n", page.ID)

	narrative := &model.Document{
		ProjectID: projectID,
		Title:     "Sequence of Operations",
		Filename:  "sequence.docx",
	}
	chunks, err := s.IngestDocument(ctx, narrative, sampleSequence, model.ChunkCategorySequenceOfOperation, "Section 3.1")
	if err != nil {
		log.Fatalf("Failed to ingest narrative: %v", err)
	}
	fmt.Printf("Inserted %d chunks\n", len(chunks))

	for _, query := range []string{
		"Where is RTU-F04?",
		"What feeds RTU-F04?",
		"How does the supply fan start?",
	} {
		fmt.Printf("\nQuerying: %s\n", query)

		answer, err := s.Answer(ctx, query, projectID, 5)
		if err != nil {
			log.Fatalf("Failed to answer: %v", err)
		}
		fmt.Println(answer)
	}

	fmt.Println("\nBasic example completed successfully!")
}
