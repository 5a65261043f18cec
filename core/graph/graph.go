package graph

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/siherrmann/schematic/helper"
	"github.com/siherrmann/schematic/model"
)

// DefaultChainDepth bounds upstream and downstream chains when the caller has no preference
const DefaultChainDepth = 10

// Graph answers relationship questions over the equipment of a project
type Graph struct {
	store  Store
	logger *slog.Logger
}

// NewGraph creates a relationship graph on top of store. A nil logger logs to slog.Default().
func NewGraph(store Store, logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	return &Graph{
		store:  store,
		logger: logger,
	}
}

// GetRelationships partitions the CONTROLS, POWERS and FEEDS edges of an equipment by direction.
// An unknown equipment has no edges.
func (g *Graph) GetRelationships(ctx context.Context, equipmentID uuid.UUID, direction model.Direction) (*model.Relationships, error) {
	if direction == "" {
		direction = model.DirectionBoth
	}
	if !direction.IsValid() {
		return nil, helper.NewInvalidInputError("unknown direction %q", direction)
	}

	equipment, err := g.store.SelectEquipment(ctx, equipmentID)
	if errors.Is(err, helper.ErrNotFound) {
		return model.NewRelationships(nil), nil
	}
	if err != nil {
		return nil, helper.NewError("select equipment", err)
	}

	result := model.NewRelationships(equipment)

	if direction != model.DirectionIncoming {
		rels, err := g.store.SelectRelationshipsFrom(ctx, equipmentID, nil)
		if err != nil {
			return nil, helper.NewError("select relationships from", err)
		}
		targets, err := g.equipmentByID(ctx, rels, func(rel *model.Relationship) uuid.UUID { return rel.TargetID })
		if err != nil {
			return nil, err
		}
		for _, rel := range rels {
			target, ok := targets[rel.TargetID]
			if !ok {
				continue
			}
			switch rel.Type {
			case model.RelationshipTypeControls:
				result.Controls = append(result.Controls, target)
			case model.RelationshipTypePowers:
				result.Powers = append(result.Powers, target)
			case model.RelationshipTypeFeeds:
				result.Feeds = append(result.Feeds, target)
			}
		}
	}

	if direction != model.DirectionOutgoing {
		rels, err := g.store.SelectRelationshipsTo(ctx, equipmentID, nil)
		if err != nil {
			return nil, helper.NewError("select relationships to", err)
		}
		sources, err := g.equipmentByID(ctx, rels, func(rel *model.Relationship) uuid.UUID { return rel.SourceID })
		if err != nil {
			return nil, err
		}
		for _, rel := range rels {
			source, ok := sources[rel.SourceID]
			if !ok {
				continue
			}
			switch rel.Type {
			case model.RelationshipTypeControls:
				result.ControlledBy = append(result.ControlledBy, source)
			case model.RelationshipTypePowers:
				result.PoweredBy = append(result.PoweredBy, source)
			case model.RelationshipTypeFeeds:
				result.FedBy = append(result.FedBy, source)
			}
		}
	}

	return result, nil
}

func (g *Graph) equipmentByID(ctx context.Context, rels []*model.Relationship, end func(*model.Relationship) uuid.UUID) (map[uuid.UUID]*model.Equipment, error) {
	ids := make([]uuid.UUID, 0, len(rels))
	for _, rel := range rels {
		ids = append(ids, end(rel))
	}

	equipment, err := g.store.SelectEquipmentByIDs(ctx, ids)
	if err != nil {
		return nil, helper.NewError("select equipment by ids", err)
	}

	byID := make(map[uuid.UUID]*model.Equipment, len(equipment))
	for _, eq := range equipment {
		byID[eq.ID] = eq
	}
	return byID, nil
}

// GetUpstreamChain walks incoming POWERS and FEEDS edges depth first and returns every
// equipment found in visitation order. Equipment maxDepth hops away is included but not expanded.
// The start equipment is never part of the chain, even on a cycle.
func (g *Graph) GetUpstreamChain(ctx context.Context, equipmentID uuid.UUID, maxDepth int) ([]uuid.UUID, error) {
	return g.chain(ctx, equipmentID, maxDepth, model.DirectionIncoming)
}

// GetDownstreamChain walks outgoing POWERS and FEEDS edges like GetUpstreamChain
func (g *Graph) GetDownstreamChain(ctx context.Context, equipmentID uuid.UUID, maxDepth int) ([]uuid.UUID, error) {
	return g.chain(ctx, equipmentID, maxDepth, model.DirectionOutgoing)
}

func (g *Graph) chain(ctx context.Context, equipmentID uuid.UUID, maxDepth int, direction model.Direction) ([]uuid.UUID, error) {
	if maxDepth < 0 {
		return nil, helper.NewInvalidInputError("max depth %d is negative", maxDepth)
	}

	visited := map[uuid.UUID]bool{equipmentID: true}
	chain := []uuid.UUID{}

	var walk func(id uuid.UUID, depth int) error
	walk = func(id uuid.UUID, depth int) error {
		if depth >= maxDepth {
			return nil
		}

		next, err := neighbors(ctx, g.store, id, model.PowerRelationshipTypes, direction)
		if err != nil {
			return err
		}

		for _, nextID := range next {
			if visited[nextID] {
				continue
			}
			visited[nextID] = true
			chain = append(chain, nextID)

			err = walk(nextID, depth+1)
			if err != nil {
				return err
			}
		}
		return nil
	}

	err := walk(equipmentID, 0)
	if err != nil {
		return nil, err
	}

	return chain, nil
}

// AddRelationship stores a typed edge between two known equipment.
// If the (source, target, type) triple already exists the stored relationship is
// returned together with an error wrapping helper.ErrConflict.
func (g *Graph) AddRelationship(ctx context.Context, sourceID, targetID uuid.UUID, relType model.RelationshipType, confidence float64, origin *model.RelationshipOrigin) (*model.Relationship, error) {
	if !relType.IsValid() {
		return nil, helper.NewInvalidInputError("unknown relationship type %q", relType)
	}
	if confidence < 0 || confidence > 1 {
		return nil, helper.NewInvalidInputError("relationship confidence %v is outside [0, 1]", confidence)
	}

	for _, id := range []uuid.UUID{sourceID, targetID} {
		_, err := g.store.SelectEquipment(ctx, id)
		if err != nil {
			return nil, helper.NewError("select equipment", err)
		}
	}

	rel := &model.Relationship{
		SourceID:   sourceID,
		TargetID:   targetID,
		Type:       relType,
		Confidence: confidence,
	}
	if origin != nil {
		rel.DocumentID = origin.DocumentID
		rel.PageNumber = origin.PageNumber
	}

	inserted, err := g.store.InsertRelationship(ctx, rel)
	if err != nil {
		return nil, helper.NewError("insert relationship", err)
	}
	if !inserted {
		return rel, helper.NewConflictError("relationship %s %s %s already exists", sourceID, relType, targetID)
	}

	g.logger.Debug("Added relationship", slog.String("source_id", sourceID.String()), slog.String("type", string(relType)), slog.String("target_id", targetID.String()))

	return rel, nil
}

// Equipment loads equipment by ID keeping the order of ids. Unknown IDs are skipped.
func (g *Graph) Equipment(ctx context.Context, ids []uuid.UUID) ([]*model.Equipment, error) {
	equipment, err := g.store.SelectEquipmentByIDs(ctx, ids)
	if err != nil {
		return nil, helper.NewError("select equipment by ids", err)
	}

	byID := make(map[uuid.UUID]*model.Equipment, len(equipment))
	for _, eq := range equipment {
		byID[eq.ID] = eq
	}

	ordered := make([]*model.Equipment, 0, len(ids))
	for _, id := range ids {
		if eq, ok := byID[id]; ok {
			ordered = append(ordered, eq)
		}
	}
	return ordered, nil
}

// BFS runs a breadth-first traversal from an equipment
func (g *Graph) BFS(ctx context.Context, sourceID uuid.UUID, maxHops int, types []model.RelationshipType, direction model.Direction) ([]*TraversalResult, error) {
	return BFS(ctx, g.store, sourceID, maxHops, types, direction)
}

// DFS runs a depth-first traversal from an equipment
func (g *Graph) DFS(ctx context.Context, sourceID uuid.UUID, maxHops int, types []model.RelationshipType, direction model.Direction) ([]*TraversalResult, error) {
	return DFS(ctx, g.store, sourceID, maxHops, types, direction)
}
