package graph

import (
	"context"

	"github.com/google/uuid"
	"github.com/siherrmann/schematic/helper"
	"github.com/siherrmann/schematic/model"
)

// Store defines the equipment and relationship storage the graph operates on.
// Lookups of a missing row return an error wrapping helper.ErrNotFound.
type Store interface {
	SelectEquipment(ctx context.Context, id uuid.UUID) (*model.Equipment, error)
	SelectEquipmentByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Equipment, error)
	InsertRelationship(ctx context.Context, rel *model.Relationship) (bool, error)
	SelectRelationshipsFrom(ctx context.Context, sourceID uuid.UUID, types []model.RelationshipType) ([]*model.Relationship, error)
	SelectRelationshipsTo(ctx context.Context, targetID uuid.UUID, types []model.RelationshipType) ([]*model.Relationship, error)
}

// TraversalResult contains an equipment and its distance from the source
type TraversalResult struct {
	Equipment *model.Equipment
	Distance  int
	Path      []uuid.UUID // Path from source to this equipment
}

// BFS performs breadth-first search from a source equipment.
// A nil types slice follows every relationship type.
func BFS(ctx context.Context, store Store, sourceID uuid.UUID, maxHops int, types []model.RelationshipType, direction model.Direction) ([]*TraversalResult, error) {
	visited := make(map[uuid.UUID]bool)

	// Get source equipment
	source, err := store.SelectEquipment(ctx, sourceID)
	if err != nil {
		return nil, helper.NewError("select equipment", err)
	}

	queue := []TraversalResult{{
		Equipment: source,
		Distance:  0,
		Path:      []uuid.UUID{sourceID},
	}}

	var results []*TraversalResult
	visited[sourceID] = true

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		results = append(results, &current)

		// Stop if we've reached max hops
		if current.Distance >= maxHops {
			continue
		}

		neighborIDs, err := neighbors(ctx, store, current.Equipment.ID, types, direction)
		if err != nil {
			return nil, err
		}

		for _, targetID := range neighborIDs {
			if visited[targetID] {
				continue
			}

			target, err := store.SelectEquipment(ctx, targetID)
			if err != nil {
				continue // Deleted while traversing
			}

			visited[targetID] = true

			newPath := make([]uuid.UUID, len(current.Path))
			copy(newPath, current.Path)
			newPath = append(newPath, targetID)

			queue = append(queue, TraversalResult{
				Equipment: target,
				Distance:  current.Distance + 1,
				Path:      newPath,
			})
		}
	}

	return results, nil
}

// DFS performs depth-first search from a source equipment.
// A nil types slice follows every relationship type.
func DFS(ctx context.Context, store Store, sourceID uuid.UUID, maxHops int, types []model.RelationshipType, direction model.Direction) ([]*TraversalResult, error) {
	visited := make(map[uuid.UUID]bool)
	var results []*TraversalResult

	source, err := store.SelectEquipment(ctx, sourceID)
	if err != nil {
		return nil, helper.NewError("select equipment", err)
	}

	err = dfsRecursive(ctx, store, source, 0, maxHops, []uuid.UUID{sourceID}, types, direction, visited, &results)
	if err != nil {
		return nil, err
	}

	return results, nil
}

// dfsRecursive is the recursive helper for DFS
func dfsRecursive(
	ctx context.Context,
	store Store,
	current *model.Equipment,
	distance int,
	maxHops int,
	path []uuid.UUID,
	types []model.RelationshipType,
	direction model.Direction,
	visited map[uuid.UUID]bool,
	results *[]*TraversalResult,
) error {
	visited[current.ID] = true

	pathCopy := make([]uuid.UUID, len(path))
	copy(pathCopy, path)
	*results = append(*results, &TraversalResult{
		Equipment: current,
		Distance:  distance,
		Path:      pathCopy,
	})

	if distance >= maxHops {
		return nil
	}

	neighborIDs, err := neighbors(ctx, store, current.ID, types, direction)
	if err != nil {
		return err
	}

	for _, targetID := range neighborIDs {
		if visited[targetID] {
			continue
		}

		target, err := store.SelectEquipment(ctx, targetID)
		if err != nil {
			continue
		}

		newPath := make([]uuid.UUID, len(path))
		copy(newPath, path)
		newPath = append(newPath, targetID)

		err = dfsRecursive(ctx, store, target, distance+1, maxHops, newPath, types, direction, visited, results)
		if err != nil {
			return err
		}
	}

	return nil
}

// GetNeighbors retrieves immediate neighbors (1-hop) of an equipment
func GetNeighbors(ctx context.Context, store Store, equipmentID uuid.UUID, types []model.RelationshipType, direction model.Direction) ([]*model.Equipment, error) {
	results, err := BFS(ctx, store, equipmentID, 1, types, direction)
	if err != nil {
		return nil, err
	}

	// Skip the source equipment itself (first result)
	neighbors := make([]*model.Equipment, 0, len(results)-1)
	for i := 1; i < len(results); i++ {
		neighbors = append(neighbors, results[i].Equipment)
	}

	return neighbors, nil
}

// neighbors returns the IDs on the other end of the edges of id in edge order, outgoing first
func neighbors(ctx context.Context, store Store, id uuid.UUID, types []model.RelationshipType, direction model.Direction) ([]uuid.UUID, error) {
	var ids []uuid.UUID

	if direction != model.DirectionIncoming {
		rels, err := store.SelectRelationshipsFrom(ctx, id, types)
		if err != nil {
			return nil, helper.NewError("select relationships from", err)
		}
		for _, rel := range rels {
			ids = append(ids, rel.TargetID)
		}
	}

	if direction != model.DirectionOutgoing {
		rels, err := store.SelectRelationshipsTo(ctx, id, types)
		if err != nil {
			return nil, helper.NewError("select relationships to", err)
		}
		for _, rel := range rels {
			ids = append(ids, rel.SourceID)
		}
	}

	return ids, nil
}
