package resolver

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/siherrmann/schematic/core/tags"
	"github.com/siherrmann/schematic/helper"
	"github.com/siherrmann/schematic/metrics"
	"github.com/siherrmann/schematic/model"
)

// DefaultAliasConfidence is the confidence of an alias match when the alias row has none
const DefaultAliasConfidence = 0.9

// Store is the equipment storage the resolver reads and writes.
// Lookups of a missing row return an error wrapping helper.ErrNotFound.
type Store interface {
	SelectEquipment(ctx context.Context, id uuid.UUID) (*model.Equipment, error)
	SelectEquipmentByTag(ctx context.Context, projectID uuid.UUID, tag string) (*model.Equipment, error)
	SelectEquipmentByAlias(ctx context.Context, projectID uuid.UUID, alias string) (*model.Equipment, error)
	SelectEquipmentByProject(ctx context.Context, projectID uuid.UUID) ([]*model.Equipment, error)
	InsertAlias(ctx context.Context, alias *model.EquipmentAlias) (bool, error)
	SelectAliases(ctx context.Context, equipmentID uuid.UUID) ([]*model.EquipmentAlias, error)
	SelectAliasesByProject(ctx context.Context, projectID uuid.UUID) ([]*model.EquipmentAlias, error)
}

// Resolver maps raw tag strings to canonical equipment within a project
type Resolver struct {
	store  Store
	logger *slog.Logger
}

// NewResolver creates a resolver on top of store. A nil logger logs to slog.Default().
func NewResolver(store Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:  store,
		logger: logger,
	}
}

// Resolve finds the equipment whose canonical tag or one of whose aliases equals rawTag, ignoring case.
// It never fuzzy matches. An unknown tag returns nil without an error.
func (r *Resolver) Resolve(ctx context.Context, projectID uuid.UUID, rawTag string) (*model.Equipment, error) {
	rawTag = strings.TrimSpace(rawTag)
	if rawTag == "" {
		return nil, nil
	}

	equipment, err := r.store.SelectEquipmentByTag(ctx, projectID, rawTag)
	if err == nil {
		return equipment, nil
	}
	if !errors.Is(err, helper.ErrNotFound) {
		return nil, helper.NewError("select equipment by tag", err)
	}

	equipment, err = r.store.SelectEquipmentByAlias(ctx, projectID, rawTag)
	if err == nil {
		return equipment, nil
	}
	if !errors.Is(err, helper.ErrNotFound) {
		return nil, helper.NewError("select equipment by alias", err)
	}

	return nil, nil
}

// FuzzyMatch scores rawTag against the normalized tag and aliases of every equipment in the project.
// Each equipment scores its best string, and the best equipment wins with ties kept by tag order.
// The ID is returned only if the score reaches threshold, which is clamped to [0, 1].
// Storage failures are logged and reported as no match.
func (r *Resolver) FuzzyMatch(ctx context.Context, projectID uuid.UUID, rawTag string, threshold float64) (*uuid.UUID, float64) {
	threshold = clamp(threshold)

	query := tags.Normalize(rawTag)
	if query == "" {
		metrics.FuzzyMatchesTotal.WithLabelValues(metrics.FuzzyRejected).Inc()
		return nil, 0
	}

	equipment, err := r.store.SelectEquipmentByProject(ctx, projectID)
	if err != nil {
		r.logger.Warn("Fuzzy match failed to load equipment", slog.String("project_id", projectID.String()), slog.String("error", err.Error()))
		metrics.FuzzyMatchesTotal.WithLabelValues(metrics.FuzzyError).Inc()
		return nil, 0
	}

	aliases, err := r.store.SelectAliasesByProject(ctx, projectID)
	if err != nil {
		r.logger.Warn("Fuzzy match failed to load aliases", slog.String("project_id", projectID.String()), slog.String("error", err.Error()))
		metrics.FuzzyMatchesTotal.WithLabelValues(metrics.FuzzyError).Inc()
		return nil, 0
	}

	aliasesByEquipment := map[uuid.UUID][]string{}
	for _, alias := range aliases {
		aliasesByEquipment[alias.EquipmentID] = append(aliasesByEquipment[alias.EquipmentID], alias.Alias)
	}

	var bestID *uuid.UUID
	bestScore := 0.0
	for _, eq := range equipment {
		score := Ratio(query, tags.Normalize(eq.Tag))
		for _, alias := range aliasesByEquipment[eq.ID] {
			score = max(score, Ratio(query, tags.Normalize(alias)))
		}

		if bestID == nil || score > bestScore {
			id := eq.ID
			bestID = &id
			bestScore = score
		}
	}

	if bestID == nil || bestScore < threshold {
		metrics.FuzzyMatchesTotal.WithLabelValues(metrics.FuzzyRejected).Inc()
		r.logger.Debug("Fuzzy match rejected", slog.String("tag", rawTag), slog.Float64("score", bestScore), slog.Float64("threshold", threshold))
		return nil, bestScore
	}

	metrics.FuzzyMatchesTotal.WithLabelValues(metrics.FuzzyAccepted).Inc()
	return bestID, bestScore
}

// Lookup resolves rawTag by canonical tag with confidence 1, then by alias with the alias confidence,
// then by fuzzy match with its score. Nothing found returns nil and the best fuzzy score.
func (r *Resolver) Lookup(ctx context.Context, projectID uuid.UUID, rawTag string, threshold float64) (*model.Equipment, float64, error) {
	rawTag = strings.TrimSpace(rawTag)
	if rawTag == "" {
		return nil, 0, nil
	}

	equipment, err := r.store.SelectEquipmentByTag(ctx, projectID, rawTag)
	if err == nil {
		return equipment, 1.0, nil
	}
	if !errors.Is(err, helper.ErrNotFound) {
		return nil, 0, helper.NewError("select equipment by tag", err)
	}

	equipment, err = r.store.SelectEquipmentByAlias(ctx, projectID, rawTag)
	if err == nil {
		return equipment, r.aliasConfidence(ctx, equipment.ID, rawTag), nil
	}
	if !errors.Is(err, helper.ErrNotFound) {
		return nil, 0, helper.NewError("select equipment by alias", err)
	}

	id, score := r.FuzzyMatch(ctx, projectID, rawTag, threshold)
	if id == nil {
		return nil, score, nil
	}

	equipment, err = r.store.SelectEquipment(ctx, *id)
	if err != nil {
		return nil, 0, helper.NewError("select equipment", err)
	}

	return equipment, score, nil
}

func (r *Resolver) aliasConfidence(ctx context.Context, equipmentID uuid.UUID, rawTag string) float64 {
	aliases, err := r.store.SelectAliases(ctx, equipmentID)
	if err != nil {
		return DefaultAliasConfidence
	}
	for _, alias := range aliases {
		if strings.EqualFold(alias.Alias, rawTag) && alias.Confidence > 0 {
			return alias.Confidence
		}
	}
	return DefaultAliasConfidence
}

// AddAlias records alias for the equipment. Adding an alias the equipment already has,
// in any letter case, returns the stored alias unchanged.
func (r *Resolver) AddAlias(ctx context.Context, equipmentID uuid.UUID, alias string, source string, confidence float64) (*model.EquipmentAlias, error) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return nil, helper.NewInvalidInputError("alias is blank")
	}
	if confidence < 0 || confidence > 1 {
		return nil, helper.NewInvalidInputError("alias confidence %v is outside [0, 1]", confidence)
	}

	_, err := r.store.SelectEquipment(ctx, equipmentID)
	if err != nil {
		return nil, helper.NewError("select equipment", err)
	}

	row := &model.EquipmentAlias{
		EquipmentID: equipmentID,
		Alias:       alias,
		Source:      source,
		Confidence:  confidence,
	}
	inserted, err := r.store.InsertAlias(ctx, row)
	if err != nil {
		return nil, helper.NewError("insert alias", err)
	}

	if inserted {
		r.logger.Debug("Added alias", slog.String("equipment_id", equipmentID.String()), slog.String("alias", alias))
	}

	return row, nil
}

// Aliases returns the aliases of an equipment in creation order
func (r *Resolver) Aliases(ctx context.Context, equipmentID uuid.UUID) ([]*model.EquipmentAlias, error) {
	aliases, err := r.store.SelectAliases(ctx, equipmentID)
	if err != nil {
		return nil, helper.NewError("select aliases", err)
	}
	return aliases, nil
}

// ExpandTags resolves every tag and returns the canonical tags of the resolved equipment
// together with all their aliases. Unresolved tags are kept as given.
// The result holds each string once, ignoring case, in order of first appearance.
func (r *Resolver) ExpandTags(ctx context.Context, projectID uuid.UUID, rawTags []string) ([]string, error) {
	expanded := []string{}
	seen := map[string]bool{}
	add := func(tag string) {
		key := strings.ToUpper(strings.TrimSpace(tag))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		expanded = append(expanded, tag)
	}

	for _, rawTag := range rawTags {
		equipment, err := r.Resolve(ctx, projectID, rawTag)
		if err != nil {
			return nil, err
		}
		if equipment == nil {
			add(rawTag)
			continue
		}

		add(equipment.Tag)
		aliases, err := r.Aliases(ctx, equipment.ID)
		if err != nil {
			return nil, err
		}
		for _, alias := range aliases {
			add(alias.Alias)
		}
	}

	return expanded, nil
}

// clamp limits v to [0, 1], NaN becomes the strictest threshold
func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 1
	}
	return max(0, min(1, v))
}
