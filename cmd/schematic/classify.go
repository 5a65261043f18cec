package main

import (
	"strings"

	"github.com/siherrmann/schematic/core/classify"
	"github.com/siherrmann/schematic/core/tags"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [query]",
	Short: "Show how a query is understood",
	Long: `Prints the query type, the relationship type and the equipment tags
found in a query. Needs no database.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		cmd.Printf("Query type: %s\n", classify.Classify(query))
		if relType, ok := classify.DetectRelationshipType(query); ok {
			cmd.Printf("Relationship: %s\n", relType)
		}
		for _, tag := range tags.Extract(query) {
			cmd.Printf("Tag: %s (%s)\n", tag.Tag, tag.Type)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
