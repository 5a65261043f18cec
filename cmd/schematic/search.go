package main

import (
	"encoding/json"
	"fmt"

	"github.com/siherrmann/schematic/core/assembler"
	"github.com/siherrmann/schematic/model"
	"github.com/spf13/cobra"
)

var (
	searchLimit    int
	searchParallel bool
	searchJSON     bool
	searchContext  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [project] [query]",
	Short: "Search the documents of a project",
	Long: `Runs the staged hybrid search: exact tags and aliases, fuzzy tags,
graph neighbours, semantic similarity and keywords, in that order.`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results, 0 uses search.limit")
	searchCmd.Flags().BoolVar(&searchParallel, "parallel", false, "fetch the candidate stages concurrently")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output the response as JSON")
	searchCmd.Flags().BoolVar(&searchContext, "context", false, "print the assembled answer context")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	projectID, err := parseProject(args[0])
	if err != nil {
		return err
	}
	query := args[1]

	searchConfig := cfg.Search.Model()
	if searchLimit > 0 {
		searchConfig.Limit = searchLimit
	}
	if searchParallel {
		searchConfig.Parallel = true
	}

	s, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	if searchContext {
		bundle, err := s.Context(cmd.Context(), query, projectID, searchConfig)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		if searchJSON {
			return outputJSON(cmd, bundle)
		}
		if bundle.Text != "" {
			cmd.Println(bundle.Text)
			cmd.Println()
		}
		cmd.Println(assembler.FallbackAnswer(query, bundle))
		return nil
	}

	response, err := s.SearchWithConfig(cmd.Context(), query, projectID, searchConfig)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if searchJSON {
		return outputJSON(cmd, response)
	}
	outputSearchTable(cmd, response)
	return nil
}

func outputJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, response *model.SearchResponse) {
	cmd.Printf("Query type: %s\n", response.QueryType)
	if response.Degraded {
		cmd.Println("Semantic search unavailable, results are keyword and graph only.")
	}
	if len(response.Results) == 0 {
		cmd.Println("No results found.")
		return
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, r := range response.Results {
		cmd.Printf("  [%d] %s, %s (%s, %.2f)\n", i+1, r.Evidence.DocumentTitle(), r.Evidence.LocationLabel(), r.Stage, r.Relevance)
		if r.Equipment != nil {
			cmd.Printf("      Equipment: %s\n", r.Equipment.Tag)
		}
		if r.Snippet != "" {
			cmd.Printf("      %s\n", r.Snippet)
		}
	}
}
