package resolver

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/siherrmann/schematic/helper"
	"github.com/siherrmann/schematic/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store     *MockStore
	resolver  *Resolver
	projectID uuid.UUID
	rtu       *model.Equipment
	mcc       *model.Equipment
	vfd       *model.Equipment
}

func newFixture() *fixture {
	store := NewMockStore()
	projectID := uuid.New()

	f := &fixture{
		store:     store,
		resolver:  NewResolver(store, nil),
		projectID: projectID,
		rtu:       store.addEquipment(projectID, "RTU-F04", model.EquipmentTypeFan),
		mcc:       store.addEquipment(projectID, "MCC-2", model.EquipmentTypePanel),
		vfd:       store.addEquipment(projectID, "VFD-101", model.EquipmentTypeVFD),
	}
	store.addAlias(f.rtu.ID, "RF-4", 0.8)

	return f
}

func TestResolve(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	t.Run("Canonical tag ignoring case", func(t *testing.T) {
		eq, err := f.resolver.Resolve(ctx, f.projectID, "rtu-f04")
		require.NoError(t, err)
		require.NotNil(t, eq)
		assert.Equal(t, f.rtu.ID, eq.ID)
	})

	t.Run("Alias", func(t *testing.T) {
		eq, err := f.resolver.Resolve(ctx, f.projectID, "rf-4")
		require.NoError(t, err)
		require.NotNil(t, eq)
		assert.Equal(t, f.rtu.ID, eq.ID)
	})

	t.Run("Unknown tag is not an error", func(t *testing.T) {
		eq, err := f.resolver.Resolve(ctx, f.projectID, "Rooftop Unit 4")
		assert.NoError(t, err)
		assert.Nil(t, eq, "Expected no fuzzy matching in Resolve")
	})

	t.Run("Blank tag", func(t *testing.T) {
		eq, err := f.resolver.Resolve(ctx, f.projectID, "  ")
		assert.NoError(t, err)
		assert.Nil(t, eq)
	})

	t.Run("Other project", func(t *testing.T) {
		eq, err := f.resolver.Resolve(ctx, uuid.New(), "RTU-F04")
		assert.NoError(t, err)
		assert.Nil(t, eq)
	})

	t.Run("Store error is returned", func(t *testing.T) {
		failing := NewResolver(&MockStore{err: assert.AnError}, nil)
		eq, err := failing.Resolve(ctx, f.projectID, "RTU-F04")
		assert.Error(t, err)
		assert.ErrorIs(t, err, assert.AnError)
		assert.Nil(t, eq)
	})
}

func TestFuzzyMatch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	t.Run("Separators and case are ignored", func(t *testing.T) {
		id, score := f.resolver.FuzzyMatch(ctx, f.projectID, "rtu f04", 0.85)
		require.NotNil(t, id)
		assert.Equal(t, f.rtu.ID, *id)
		assert.Equal(t, 1.0, score)
	})

	t.Run("Spelled out name is rejected below threshold", func(t *testing.T) {
		id, score := f.resolver.FuzzyMatch(ctx, f.projectID, "Rooftop Unit 4", 0.85)
		assert.Nil(t, id)
		assert.Equal(t, 0.44, score)
	})

	t.Run("Same name is accepted at a lower threshold", func(t *testing.T) {
		id, score := f.resolver.FuzzyMatch(ctx, f.projectID, "Rooftop Unit 4", 0.4)
		require.NotNil(t, id)
		assert.Equal(t, f.rtu.ID, *id)
		assert.Equal(t, 0.44, score)
	})

	t.Run("Threshold is clamped", func(t *testing.T) {
		id, _ := f.resolver.FuzzyMatch(ctx, f.projectID, "Rooftop Unit 4", -3)
		assert.NotNil(t, id, "Expected threshold below 0 to accept any best match")

		id, score := f.resolver.FuzzyMatch(ctx, f.projectID, "RTU-F04", 7)
		require.NotNil(t, id, "Expected threshold above 1 to accept exact matches")
		assert.Equal(t, 1.0, score)

		id, _ = f.resolver.FuzzyMatch(ctx, f.projectID, "RTU-F05", 7)
		assert.Nil(t, id)
	})

	t.Run("Aliases are scored", func(t *testing.T) {
		id, score := f.resolver.FuzzyMatch(ctx, f.projectID, "RF_4", 0.85)
		require.NotNil(t, id)
		assert.Equal(t, f.rtu.ID, *id)
		assert.Equal(t, 1.0, score)
	})

	t.Run("Ties keep the first equipment in tag order", func(t *testing.T) {
		store := NewMockStore()
		projectID := uuid.New()
		second := store.addEquipment(projectID, "AB-2", model.EquipmentTypeOther)
		first := store.addEquipment(projectID, "AB-1", model.EquipmentTypeOther)

		id, score := NewResolver(store, nil).FuzzyMatch(ctx, projectID, "AB-3", 0.5)
		require.NotNil(t, id)
		assert.Equal(t, first.ID, *id)
		assert.NotEqual(t, second.ID, *id)
		assert.Equal(t, 0.67, score)
	})

	t.Run("Empty project", func(t *testing.T) {
		id, score := f.resolver.FuzzyMatch(ctx, uuid.New(), "RTU-F04", 0.85)
		assert.Nil(t, id)
		assert.Equal(t, 0.0, score)
	})

	t.Run("Blank tag", func(t *testing.T) {
		id, score := f.resolver.FuzzyMatch(ctx, f.projectID, " - ", 0)
		assert.Nil(t, id)
		assert.Equal(t, 0.0, score)
	})

	t.Run("Store error degrades to no match", func(t *testing.T) {
		failing := NewResolver(&MockStore{err: assert.AnError}, nil)
		id, score := failing.FuzzyMatch(ctx, f.projectID, "RTU-F04", 0.85)
		assert.Nil(t, id)
		assert.Equal(t, 0.0, score)
	})

	t.Run("Scores stay in range", func(t *testing.T) {
		for _, q := range []string{"x", "RTU", "MCC-22", "VFD101", "Rooftop Unit 4", "PANEL-5"} {
			_, score := f.resolver.FuzzyMatch(ctx, f.projectID, q, 0.85)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		}
	})
}

func TestLookup(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	eq, confidence, err := f.resolver.Lookup(ctx, f.projectID, "RTU-F04", 0.85)
	require.NoError(t, err)
	require.NotNil(t, eq)
	assert.Equal(t, 1.0, confidence)

	eq, confidence, err = f.resolver.Lookup(ctx, f.projectID, "rf-4", 0.85)
	require.NoError(t, err)
	require.NotNil(t, eq)
	assert.Equal(t, f.rtu.ID, eq.ID)
	assert.Equal(t, 0.8, confidence, "Expected the alias confidence")

	eq, confidence, err = f.resolver.Lookup(ctx, f.projectID, "VFD_101", 0.85)
	require.NoError(t, err)
	require.NotNil(t, eq)
	assert.Equal(t, f.vfd.ID, eq.ID)
	assert.Equal(t, 1.0, confidence, "Expected a fuzzy score")

	eq, confidence, err = f.resolver.Lookup(ctx, f.projectID, "Rooftop Unit 4", 0.85)
	require.NoError(t, err)
	assert.Nil(t, eq)
	assert.Equal(t, 0.44, confidence)
}

func TestAddAlias(t *testing.T) {
	ctx := context.Background()

	t.Run("Invalid input", func(t *testing.T) {
		f := newFixture()
		_, err := f.resolver.AddAlias(ctx, f.rtu.ID, " ", "manual", 0.9)
		assert.ErrorIs(t, err, helper.ErrInvalidInput)

		_, err = f.resolver.AddAlias(ctx, f.rtu.ID, "Rooftop Unit 4", "manual", 1.5)
		assert.ErrorIs(t, err, helper.ErrInvalidInput)

		_, err = f.resolver.AddAlias(ctx, f.rtu.ID, "Rooftop Unit 4", "manual", -0.1)
		assert.ErrorIs(t, err, helper.ErrInvalidInput)
	})

	t.Run("Unknown equipment", func(t *testing.T) {
		f := newFixture()
		_, err := f.resolver.AddAlias(ctx, uuid.New(), "Rooftop Unit 4", "manual", 0.9)
		assert.ErrorIs(t, err, helper.ErrNotFound)
	})

	t.Run("Idempotent", func(t *testing.T) {
		f := newFixture()
		first, err := f.resolver.AddAlias(ctx, f.rtu.ID, "Rooftop Unit 4", "manual", 0.9)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, first.ID)

		second, err := f.resolver.AddAlias(ctx, f.rtu.ID, "ROOFTOP UNIT 4", "import", 0.5)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "Rooftop Unit 4", second.Alias, "Expected the stored alias")
		assert.Equal(t, 0.9, second.Confidence)

		aliases, err := f.resolver.Aliases(ctx, f.rtu.ID)
		require.NoError(t, err)
		assert.Len(t, aliases, 2)

		eq, err := f.resolver.Resolve(ctx, f.projectID, "rooftop unit 4")
		require.NoError(t, err)
		require.NotNil(t, eq)
		assert.Equal(t, f.rtu.ID, eq.ID)
	})

	t.Run("Idempotent under concurrency", func(t *testing.T) {
		f := newFixture()
		ids := make([]uuid.UUID, 10)

		var wg sync.WaitGroup
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				alias, err := f.resolver.AddAlias(ctx, f.mcc.ID, "Main MCC", "manual", 1.0)
				if assert.NoError(t, err) {
					ids[i] = alias.ID
				}
			}(i)
		}
		wg.Wait()

		for _, id := range ids {
			assert.Equal(t, ids[0], id)
		}

		aliases, err := f.resolver.Aliases(ctx, f.mcc.ID)
		require.NoError(t, err)
		assert.Len(t, aliases, 1)
	})
}

func TestExpandTags(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	expanded, err := f.resolver.ExpandTags(ctx, f.projectID, []string{"rtu-f04", "XYZ-1", "RF-4", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"RTU-F04", "RF-4", "XYZ-1"}, expanded)

	expanded, err = f.resolver.ExpandTags(ctx, f.projectID, nil)
	require.NoError(t, err)
	assert.Empty(t, expanded)

	failing := NewResolver(&MockStore{err: assert.AnError}, nil)
	_, err = failing.ExpandTags(ctx, f.projectID, []string{"RTU-F04"})
	assert.ErrorIs(t, err, assert.AnError)
}
