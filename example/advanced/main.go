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

const mechanicalPage = `M-401 MECHANICAL CONTROLS

VFD-101 drives SF-1. VFD-101 controlled by BAS-1.
AHU-1 supply fan SF-1, return fan RF-1.`

const electricalPage = `E-301 PANEL SCHEDULE

MCC-1 powers VFD-101. MCC-1 fed from SWBD-1.`

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

	if err := s.UseDefaultPipeline(); err != nil {
		log.Fatalf("Failed to set up pipeline: %v", err)
	}

	projectID := uuid.New()

	// Ingest two drawings, equipment and relationships are extracted per page
	for i, text := range []string{mechanicalPage, electricalPage} {
		doc := &model.Document{
			ProjectID: projectID,
			Title:     fmt.Sprintf("Drawing %d", i+1),
			Filename:  fmt.Sprintf("drawing-%d.pdf", i+1),
			Kind:      model.DocumentKindDrawing,
		}
		if err := s.InsertDocument(ctx, doc); err != nil {
			log.Fatalf("Failed to insert document: %v", err)
		}
		if _, err := s.IngestPage(ctx, projectID, doc.ID, 1, text); err != nil {
			log.Fatalf("Failed to ingest page: %v", err)
		}
	}

	// Structured rows from an IO schedule
	schedule := &model.Document{
		ProjectID: projectID,
		Title:     "IO Schedule",
		Filename:  "io.xlsx",
		Kind:      model.DocumentKindSupplementary,
	}
	if err := s.InsertDocument(ctx, schedule); err != nil {
		log.Fatalf("Failed to insert schedule: %v", err)
	}
	for _, record := range []*model.Record{
		{DocumentID: schedule.ID, EquipmentTag: "VFD-101", DataType: model.DataTypeAlarm, SourceLocation: "Sheet 'Points', Row 12", Payload: model.Metadata{"alarm": "VFD fault"}},
		{DocumentID: schedule.ID, EquipmentTag: "VFD-101", DataType: model.DataTypeIOPoint, SourceLocation: "Sheet 'Points', Row 13", Payload: model.Metadata{"point": "Speed command", "type": "AO"}},
	} {
		if err := s.InsertRecord(ctx, record); err != nil {
			log.Fatalf("Failed to insert record: %v", err)
		}
	}

	// Aliases let free text resolve to canonical tags
	vfd, err := s.Resolve(ctx, projectID, "VFD-101")
	if err != nil || vfd == nil {
		log.Fatalf("Failed to resolve VFD-101: %v", err)
	}
	if _, err := s.AddAlias(ctx, vfd.ID, "Supply Fan Drive", "manual", 0.95); err != nil {
		log.Fatalf("Failed to add alias: %v", err)
	}

	fmt.Println("=== Resolution ===")
	for _, tag := range []string{"Supply Fan Drive", "VFD 101", "Rooftop Unit 4"} {
		eq, score, err := s.Lookup(ctx, projectID, tag, s.SearchConfig.FuzzyThreshold)
		if err != nil {
			log.Fatalf("Failed to look up %s: %v", tag, err)
		}
		if eq == nil {
			fmt.Printf("%-18s no match (score %.2f)\n", tag, score)
			continue
		}
		fmt.Printf("%-18s %s (score %.2f)\n", tag, eq.Tag, score)
	}

	fmt.Println("\n=== Upstream chain of VFD-101 ===")
	chain, err := s.GetUpstreamChain(ctx, vfd.ID, 5)
	if err != nil {
		log.Fatalf("Failed to get upstream chain: %v", err)
	}
	upstream, err := s.LoadEquipment(ctx, chain)
	if err != nil {
		log.Fatalf("Failed to load equipment: %v", err)
	}
	for i, eq := range upstream {
		fmt.Printf("%d. %s\n", i+1, eq.Tag)
	}

	fmt.Println("\n=== Parallel search ===")
	config := model.DefaultSearchConfig()
	config.Parallel = true
	config.Limit = 5
	for _, query := range []string{"What alarms does VFD-101 have?", "What controls VFD-101?"} {
		response, err := s.SearchWithConfig(ctx, query, projectID, config)
		if err != nil {
			log.Fatalf("Failed to search: %v", err)
		}

		fmt.Printf("\nQuery: %s (%s)\n", query, response.QueryType)
		for i, r := range response.Results {
			fmt.Printf("  [%d] %s, %s (%s, %.2f)\n", i+1, r.Evidence.DocumentTitle(), r.Evidence.LocationLabel(), r.Stage, r.Relevance)
		}

		bundle, err := s.Assemble(ctx, response)
		if err != nil {
			log.Fatalf("Failed to assemble context: %v", err)
		}
		fmt.Println(bundle.Text)
	}

	fmt.Println("\nAdvanced example completed successfully!")
}
