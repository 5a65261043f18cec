package main

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/spf13/cobra"
)

var (
	resolveFuzzy     bool
	resolveThreshold float64
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [project] [tag]",
	Short: "Find the equipment of a tag or alias",
	Args:  cobra.ExactArgs(2),
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveFuzzy, "fuzzy", false, "fall back to fuzzy matching")
	resolveCmd.Flags().Float64Var(&resolveThreshold, "threshold", 0, "fuzzy threshold, 0 uses search.fuzzy_threshold")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	projectID, err := parseProject(args[0])
	if err != nil {
		return err
	}
	tag := args[1]

	s, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	equipment, err := s.Resolve(cmd.Context(), projectID, tag)
	if err != nil {
		return fmt.Errorf("resolve failed: %w", err)
	}
	if equipment != nil {
		cmd.Printf("%s %s (%s)\n", equipment.ID, equipment.Tag, equipment.Type)
		return nil
	}

	if !resolveFuzzy {
		cmd.Printf("No equipment found for %q\n", tag)
		return nil
	}

	threshold := resolveThreshold
	if threshold <= 0 {
		threshold = cfg.Search.FuzzyThreshold
	}
	id, score := s.FuzzyMatch(cmd.Context(), projectID, tag, threshold)
	if id == nil {
		cmd.Printf("No equipment found for %q (best score %.2f)\n", tag, score)
		return nil
	}

	matched, err := s.LoadEquipment(cmd.Context(), []uuid.UUID{*id})
	if err != nil {
		return fmt.Errorf("resolve failed: %w", err)
	}
	cmd.Printf("%s %s (%s, fuzzy %.2f)\n", matched[0].ID, matched[0].Tag, matched[0].Type, score)
	return nil
}
