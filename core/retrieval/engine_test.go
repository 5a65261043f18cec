package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/siherrmann/schematic/core/tags"
	"github.com/siherrmann/schematic/helper"
	"github.com/siherrmann/schematic/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	projectID uuid.UUID
	resolver  *MockResolver
	store     *MockEvidenceStore

	vfd *model.Equipment
	rtu *model.Equipment

	drawing  *model.Document
	schedule *model.Document
	sequence *model.Document

	vfdPage     *model.Page
	rtuPage     *model.Page
	vfdSpec     *model.Record
	rtuAlarm    *model.Record
	rtuPoint    *model.Record
	rtuSequence *model.Chunk
	notes       *model.Chunk
}

func newFixture() *fixture {
	f := &fixture{
		projectID: uuid.New(),
		resolver:  NewMockResolver(),
		store:     NewMockEvidenceStore(),
	}

	f.vfd = f.resolver.add(f.projectID, "VFD-101")
	f.rtu = f.resolver.add(f.projectID, "RTU-F04", "RF-4")

	f.drawing = f.store.addDocument(f.projectID, "E-101 Power Plan", model.DocumentKindDrawing)
	f.schedule = f.store.addDocument(f.projectID, "Equipment Schedule", model.DocumentKindSupplementary)
	f.sequence = f.store.addDocument(f.projectID, "RTU Controls Narrative", model.DocumentKindSupplementary)

	f.vfdPage = f.store.addPage(f.drawing, 1, "VFD-101 serves supply fan SF-1. Fed from MCC-2.", f.vfd)
	f.rtuPage = f.store.addPage(f.drawing, 2, "RTU-F04 rooftop unit. Discharge air temperature sensor.", f.rtu)
	f.vfdSpec = f.store.addRecord(f.schedule, "VFD-101", model.DataTypeSpecification, "Sheet 'VFD Schedule', Row 3", model.Metadata{"hp": 10})
	f.rtuAlarm = f.store.addRecord(f.schedule, "RTU-F04", model.DataTypeAlarm, "Sheet 'RTU Points', Row 45", model.Metadata{"point": "High discharge temp", "setpoint": 85})
	f.rtuPoint = f.store.addRecord(f.schedule, "RF-4", model.DataTypeIOPoint, "Sheet 'RTU Points', Row 46", model.Metadata{"point": "SAT"})
	f.rtuSequence = f.store.addChunk(f.sequence, 0, "Section 1.1", model.ChunkCategorySequenceOfOperation,
		"The supply fan of RTU-F04 starts when discharge air temperature exceeds setpoint.", "RTU-F04")
	f.notes = f.store.addChunk(f.sequence, 1, "Section 1.2", model.ChunkCategoryGeneral, "General notes on discharge air sensors.")

	f.store.embed(f.notes.ID, 0.1)
	f.store.embed(f.rtuSequence.ID, 0.2)
	f.store.embed(f.vfdPage.ID, 0.3)

	return f
}

func (f *fixture) engine(embed func(string) ([]float32, error)) *Engine {
	return NewEngine(f.resolver, f.store.stores(), embed, nil)
}

func fixedEmbedding(text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func config(limit int, parallel bool) model.SearchConfig {
	c := model.DefaultSearchConfig()
	c.Limit = limit
	c.Parallel = parallel
	return c
}

// describe renders results as "STAGE kind location" for comparisons
func describe(results []*model.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = fmt.Sprintf("%s %s %s %.3f", r.Stage, r.Evidence.DocumentTitle(), r.Evidence.Location(), r.Relevance)
	}
	return out
}

func TestNewEngine(t *testing.T) {
	t.Run("Create new engine", func(t *testing.T) {
		f := newFixture()
		engine := f.engine(nil)
		require.NotNil(t, engine, "Expected NewEngine to return a non-nil instance")
		assert.NotNil(t, engine.logger, "Expected a default logger")
	})
}

func TestSearchExact(t *testing.T) {
	ctx := context.Background()

	t.Run("Page and record of the same equipment", func(t *testing.T) {
		f := newFixture()
		response, err := f.engine(nil).Search(ctx, "VFD-101", f.projectID, config(10, false))
		require.NoError(t, err)

		assert.Equal(t, model.QueryTypeEquipmentLookup, response.QueryType)
		require.Len(t, response.Resolved, 1)
		assert.Equal(t, f.vfd.ID, response.Resolved[0].ID)

		require.Len(t, response.Results, 2)
		assert.Equal(t, f.vfdPage, response.Results[0].Evidence.Page)
		assert.Equal(t, f.vfdSpec, response.Results[1].Evidence.Record)
		for _, r := range response.Results {
			assert.Equal(t, model.MatchStageExact, r.Stage)
			assert.Equal(t, 1.0, r.Relevance)
			assert.Equal(t, f.vfd, r.Equipment)
		}
		assert.Equal(t, "E-101 Power Plan", response.Results[0].Evidence.DocumentTitle())
		assert.Contains(t, response.Results[0].Snippet, "VFD-101")
		assert.True(t, response.Degraded, "Expected a degraded response without embedder")
	})

	t.Run("Alarm lookup", func(t *testing.T) {
		f := newFixture()
		response, err := f.engine(fixedEmbedding).Search(ctx, "What is the alarm setpoint for RTU-F04?", f.projectID, config(10, false))
		require.NoError(t, err)

		assert.Equal(t, model.QueryTypeAlarmLookup, response.QueryType)
		require.Len(t, response.Tags, 1)
		assert.Equal(t, "RTU-F04", response.Tags[0].Tag)
		require.Len(t, response.Resolved, 1)
		assert.Equal(t, f.rtu.ID, response.Resolved[0].ID)

		require.GreaterOrEqual(t, len(response.Results), 4)
		assert.Equal(t, f.rtuPage, response.Results[0].Evidence.Page)
		assert.Equal(t, f.rtuAlarm, response.Results[1].Evidence.Record)
		assert.Equal(t, f.rtuPoint, response.Results[2].Evidence.Record, "Expected the record filed under the alias")
		assert.Equal(t, f.rtuSequence, response.Results[3].Evidence.Chunk)
		for _, r := range response.Results[:4] {
			assert.Equal(t, model.MatchStageExact, r.Stage)
			assert.Equal(t, 1.0, r.Relevance)
		}
		assert.Equal(t, "RTU-F04 ALARM: point: High discharge temp, setpoint: 85", response.Results[1].Snippet)
		assert.False(t, response.Degraded)
	})

	t.Run("Limit cuts the exact stage", func(t *testing.T) {
		f := newFixture()
		response, err := f.engine(fixedEmbedding).Search(ctx, "RTU-F04", f.projectID, config(1, false))
		require.NoError(t, err)
		require.Len(t, response.Results, 1)
		assert.Equal(t, f.rtuPage, response.Results[0].Evidence.Page)
	})
}

func TestSearchSemantic(t *testing.T) {
	ctx := context.Background()

	t.Run("Ranked by similarity then keyword", func(t *testing.T) {
		f := newFixture()
		response, err := f.engine(fixedEmbedding).Search(ctx, "discharge air", f.projectID, config(10, false))
		require.NoError(t, err)

		assert.Equal(t, model.QueryTypeGeneral, response.QueryType)
		assert.Empty(t, response.Resolved)
		require.Len(t, response.Results, 4)

		assert.Equal(t, f.notes, response.Results[0].Evidence.Chunk)
		assert.Equal(t, f.rtuSequence, response.Results[1].Evidence.Chunk)
		assert.Equal(t, f.vfdPage, response.Results[2].Evidence.Page)
		for i, want := range []float64{0.9, 0.8, 0.7} {
			assert.Equal(t, model.MatchStageSemantic, response.Results[i].Stage)
			assert.InDelta(t, want, response.Results[i].Relevance, 1e-9)
		}

		assert.Equal(t, model.MatchStageKeyword, response.Results[3].Stage)
		assert.Equal(t, f.rtuPage, response.Results[3].Evidence.Page)
		assert.InDelta(t, 0.4, response.Results[3].Relevance, 1e-9)
		assert.False(t, response.Degraded)
	})

	t.Run("Relevance is clamped", func(t *testing.T) {
		f := newFixture()
		f.store.embed(f.notes.ID, 1.5)
		f.store.embed(f.rtuSequence.ID, -0.2)

		response, err := f.engine(fixedEmbedding).Search(ctx, "discharge air", f.projectID, config(3, false))
		require.NoError(t, err)
		require.Len(t, response.Results, 3)
		assert.Equal(t, f.rtuSequence, response.Results[0].Evidence.Chunk)
		assert.Equal(t, 1.0, response.Results[0].Relevance)
		assert.Equal(t, f.notes, response.Results[2].Evidence.Chunk)
		assert.Equal(t, 0.0, response.Results[2].Relevance)
	})

	t.Run("Embed failure degrades to keyword", func(t *testing.T) {
		f := newFixture()
		failing := func(text string) ([]float32, error) {
			return nil, errors.New("model not loaded")
		}
		response, err := f.engine(failing).Search(ctx, "discharge air", f.projectID, config(10, false))
		require.NoError(t, err)
		assert.True(t, response.Degraded)

		require.Len(t, response.Results, 3)
		for _, r := range response.Results {
			assert.Equal(t, model.MatchStageKeyword, r.Stage)
		}
		assert.Equal(t, f.rtuSequence, response.Results[0].Evidence.Chunk, "Expected the heavier category first")
		assert.InDelta(t, 0.45, response.Results[0].Relevance, 1e-9)
		assert.Equal(t, f.rtuPage, response.Results[1].Evidence.Page, "Expected insertion order between equal relevance")
		assert.Equal(t, f.notes, response.Results[2].Evidence.Chunk)
	})

	t.Run("Empty embedding degrades", func(t *testing.T) {
		f := newFixture()
		empty := func(text string) ([]float32, error) {
			return []float32{}, nil
		}
		response, err := f.engine(empty).Search(ctx, "discharge air", f.projectID, config(10, false))
		require.NoError(t, err)
		assert.True(t, response.Degraded)
	})

	t.Run("Full exact stage skips the embedder", func(t *testing.T) {
		f := newFixture()
		calls := 0
		counting := func(text string) ([]float32, error) {
			calls++
			return []float32{1, 0}, nil
		}
		response, err := f.engine(counting).Search(ctx, "VFD-101", f.projectID, config(2, false))
		require.NoError(t, err)
		assert.Len(t, response.Results, 2)
		assert.Equal(t, 0, calls)
		assert.False(t, response.Degraded)
	})
}

func TestFetchStructured(t *testing.T) {
	f := newFixture()
	engine := f.engine(nil)
	ctx := context.Background()

	s := &search{
		projectID:     f.projectID,
		query:         "RTU-F04 alarm",
		queryType:     model.QueryTypeAlarmLookup,
		equipmentTags: map[uuid.UUID][]string{},
		byTag:         map[string]*model.Equipment{},
		collector:     newCollector(10),
		documents:     newDocumentCache(f.store),
	}
	require.NoError(t, engine.resolve(ctx, s, tags.Extract(s.query)))
	require.Equal(t, []string{"RTU-F04", "RF-4"}, s.allTags())

	results, err := engine.fetchStructured(ctx, s, s.structuredTypes())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, f.rtuAlarm, results[0].Evidence.Record, "Expected alarms before IO points")
	assert.Equal(t, f.rtuPoint, results[1].Evidence.Record)
	for _, r := range results {
		assert.Equal(t, model.MatchStageStructured, r.Stage)
		assert.Equal(t, model.StructuredRecordWeight, r.Relevance)
		assert.Equal(t, f.rtu, r.Equipment)
		assert.Equal(t, "Equipment Schedule", r.Evidence.DocumentTitle())
	}

	t.Run("Skipped without preferred types", func(t *testing.T) {
		s.queryType = model.QueryTypeLocation
		assert.Nil(t, s.structuredTypes())
	})
}

func TestSearchKeywordRefetch(t *testing.T) {
	projectID := uuid.New()
	store := NewMockEvidenceStore()
	doc := store.addDocument(projectID, "Mechanical Specification", model.DocumentKindSupplementary)
	first := store.addChunk(doc, 0, "Section 2", model.ChunkCategoryGeneral, "supply air duct")
	store.addChunk(doc, 1, "Section 2", model.ChunkCategoryGeneral, "supply air damper")
	third := store.addChunk(doc, 2, "Section 3", model.ChunkCategoryGeneral, "supply air fan")

	engine := NewEngine(NewMockResolver(), store.stores(), nil, nil)
	response, err := engine.Search(context.Background(), "supply air", projectID, config(2, false))
	require.NoError(t, err)

	require.Len(t, response.Results, 2)
	assert.Equal(t, first, response.Results[0].Evidence.Chunk)
	assert.Equal(t, third, response.Results[1].Evidence.Chunk, "Expected a larger fetch past the duplicate location")
	assert.Equal(t, 2, store.keywordCalls)
}

func TestSearchNoDuplicateKeys(t *testing.T) {
	f := newFixture()
	engine := f.engine(fixedEmbedding)
	queries := []string{"VFD-101", "RTU-F04", "What is the alarm setpoint for RTU-F04?", "discharge air", "RTU-F04 discharge air"}

	for _, query := range queries {
		for limit := 1; limit <= 8; limit++ {
			response, err := engine.Search(context.Background(), query, f.projectID, config(limit, false))
			require.NoError(t, err)
			assert.LessOrEqual(t, len(response.Results), limit)

			seen := map[model.EvidenceKey]bool{}
			lastStage := 0
			for _, r := range response.Results {
				key := r.Evidence.Key()
				assert.False(t, seen[key], "Duplicate key %v for %q", key, query)
				seen[key] = true

				stage := stageIndex(r.Stage)
				assert.GreaterOrEqual(t, stage, lastStage, "Expected stage order for %q", query)
				lastStage = stage

				assert.GreaterOrEqual(t, r.Relevance, 0.0)
				assert.LessOrEqual(t, r.Relevance, 1.0)
			}
		}
	}
}

func stageIndex(stage model.MatchStage) int {
	for i, s := range model.MatchStages {
		if s == stage {
			return i
		}
	}
	return -1
}

func TestSearchParallel(t *testing.T) {
	f := newFixture()
	queries := []string{"VFD-101", "What is the alarm setpoint for RTU-F04?", "discharge air", "RTU-F04 discharge air", "supply"}
	embedders := map[string]func(string) ([]float32, error){
		"fixed":   fixedEmbedding,
		"missing": nil,
	}

	for name, embed := range embedders {
		engine := f.engine(embed)
		for _, query := range queries {
			for limit := 1; limit <= 6; limit++ {
				t.Run(fmt.Sprintf("%s %s %d", name, query, limit), func(t *testing.T) {
					sequential, err := engine.Search(context.Background(), query, f.projectID, config(limit, false))
					require.NoError(t, err)
					parallel, err := engine.Search(context.Background(), query, f.projectID, config(limit, true))
					require.NoError(t, err)

					assert.Equal(t, describe(sequential.Results), describe(parallel.Results))
					assert.Equal(t, sequential.Degraded, parallel.Degraded)
				})
			}
		}
	}
}

func TestSearchInvalidInput(t *testing.T) {
	f := newFixture()
	engine := f.engine(fixedEmbedding)
	ctx := context.Background()

	t.Run("Blank query", func(t *testing.T) {
		_, err := engine.Search(ctx, "   ", f.projectID, config(10, false))
		assert.ErrorIs(t, err, helper.ErrInvalidInput)
	})

	t.Run("Negative limit", func(t *testing.T) {
		_, err := engine.Search(ctx, "VFD-101", f.projectID, config(-1, false))
		assert.ErrorIs(t, err, helper.ErrInvalidInput)
	})

	t.Run("Zero limit", func(t *testing.T) {
		response, err := engine.Search(ctx, "VFD-101", f.projectID, config(0, false))
		require.NoError(t, err)
		assert.Empty(t, response.Results)
		assert.NotNil(t, response.Results)
		assert.Equal(t, model.QueryTypeEquipmentLookup, response.QueryType)
	})
}

func TestSearchStoreErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("Keyword store failure", func(t *testing.T) {
		f := newFixture()
		f.store.keywordErr = errors.New("connection refused")
		_, err := f.engine(nil).Search(ctx, "discharge air", f.projectID, config(10, false))
		require.Error(t, err)
		assert.ErrorIs(t, err, f.store.keywordErr)
		assert.Contains(t, err.Error(), "keyword stage")
	})

	t.Run("Keyword store failure in parallel mode", func(t *testing.T) {
		f := newFixture()
		f.store.keywordErr = errors.New("connection refused")
		_, err := f.engine(fixedEmbedding).Search(ctx, "discharge air", f.projectID, config(10, true))
		assert.ErrorIs(t, err, f.store.keywordErr)
	})

	t.Run("Resolver failure", func(t *testing.T) {
		f := newFixture()
		f.resolver.err = errors.New("timeout")
		_, err := f.engine(nil).Search(ctx, "VFD-101", f.projectID, config(10, false))
		assert.ErrorIs(t, err, f.resolver.err)
	})
}
