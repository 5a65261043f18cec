package main

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/siherrmann/schematic"
	"github.com/siherrmann/schematic/cache"
	"github.com/siherrmann/schematic/config"
	"github.com/siherrmann/schematic/core/pipeline"
	"github.com/siherrmann/schematic/helper"
	"github.com/siherrmann/schematic/model"
	"github.com/spf13/cobra"
)

// Service is what the query commands need from a connected schematic
type Service interface {
	SearchWithConfig(ctx context.Context, query string, projectID uuid.UUID, config model.SearchConfig) (*model.SearchResponse, error)
	Context(ctx context.Context, query string, projectID uuid.UUID, config model.SearchConfig) (*model.ContextBundle, error)
	Resolve(ctx context.Context, projectID uuid.UUID, tag string) (*model.Equipment, error)
	FuzzyMatch(ctx context.Context, projectID uuid.UUID, tag string, threshold float64) (*uuid.UUID, float64)
	LoadEquipment(ctx context.Context, ids []uuid.UUID) ([]*model.Equipment, error)
	Close() error
}

var (
	configPath string
	cfg        *config.Config
	logger     *slog.Logger

	// openService connects the query commands, replaced in tests
	openService = func(ctx context.Context) (Service, error) {
		s, _, err := connect(ctx)
		return s, err
	}
)

var rootCmd = &cobra.Command{
	Use:   "schematic",
	Short: "Search engineering drawings, schedules and specifications",
	Long: `Schematic answers questions about building equipment by searching
extracted drawings, schedules and specifications. Searches combine exact tag
lookups, fuzzy matching, the relationship graph and semantic similarity.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		logger = schematic.NewLogger(cfg.Logging.SlogLevel())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
}

// connect opens the database and, when embeddings are enabled, the embedder
// behind the optional redis cache. The returned cleanup closes the redis client.
func connect(ctx context.Context) (*schematic.Schematic, func(), error) {
	s, err := schematic.NewSchematic(&cfg.Database, cfg.Embedding.Dim, logger)
	if err != nil {
		return nil, nil, err
	}
	s.SearchConfig = cfg.Search.Model()
	cleanup := func() {}

	if !cfg.Embedding.Enabled {
		return s, cleanup, nil
	}

	embed, err := pipeline.NewEmbedder(cfg.Embedding.Model)
	if err != nil {
		s.Close()
		return nil, nil, helper.NewError("create embedder", err)
	}

	if cfg.Redis.Enabled {
		rdb, err := cache.NewClient(cfg.Redis)
		if err != nil {
			s.Close()
			return nil, nil, helper.NewError("connect redis", err)
		}
		embed = cache.NewEmbeddingCache(rdb, embed, cfg.Redis.TTL, cfg.Redis.KeyPrefix, logger).EmbedFunc()
		cleanup = func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("Error closing redis", slog.String("error", err.Error()))
			}
		}
	}

	s.SetPipeline(pipeline.NewPipeline(pipeline.DefaultChunker(), embed))
	return s, cleanup, nil
}

func parseProject(raw string) (uuid.UUID, error) {
	projectID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, helper.NewInvalidInputError("invalid project id %q", raw)
	}
	return projectID, nil
}
