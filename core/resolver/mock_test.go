package resolver

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/schematic/helper"
	"github.com/siherrmann/schematic/model"
)

// MockStore is an in-memory implementation of Store for testing
type MockStore struct {
	mu        sync.Mutex
	equipment []*model.Equipment
	aliases   []*model.EquipmentAlias
	err       error
}

func NewMockStore() *MockStore {
	return &MockStore{}
}

func (m *MockStore) addEquipment(projectID uuid.UUID, tag string, equipmentType model.EquipmentType) *model.Equipment {
	m.mu.Lock()
	defer m.mu.Unlock()
	eq := &model.Equipment{
		ID:        uuid.New(),
		ProjectID: projectID,
		Tag:       tag,
		Type:      equipmentType,
		CreatedAt: time.Now(),
	}
	m.equipment = append(m.equipment, eq)
	return eq
}

func (m *MockStore) addAlias(equipmentID uuid.UUID, alias string, confidence float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aliases = append(m.aliases, &model.EquipmentAlias{
		ID:          uuid.New(),
		EquipmentID: equipmentID,
		Alias:       alias,
		Confidence:  confidence,
		CreatedAt:   time.Now(),
	})
}

func (m *MockStore) SelectEquipment(ctx context.Context, id uuid.UUID) (*model.Equipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, eq := range m.equipment {
		if eq.ID == id {
			return eq, nil
		}
	}
	return nil, helper.NewNotFoundError("equipment %s", id)
}

func (m *MockStore) SelectEquipmentByTag(ctx context.Context, projectID uuid.UUID, tag string) (*model.Equipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, eq := range m.equipment {
		if eq.ProjectID == projectID && strings.EqualFold(eq.Tag, tag) {
			return eq, nil
		}
	}
	return nil, helper.NewNotFoundError("equipment with tag %s", tag)
}

func (m *MockStore) SelectEquipmentByAlias(ctx context.Context, projectID uuid.UUID, alias string) (*model.Equipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, a := range m.aliases {
		if !strings.EqualFold(a.Alias, alias) {
			continue
		}
		for _, eq := range m.equipment {
			if eq.ID == a.EquipmentID && eq.ProjectID == projectID {
				return eq, nil
			}
		}
	}
	return nil, helper.NewNotFoundError("equipment with alias %s", alias)
}

func (m *MockStore) SelectEquipmentByProject(ctx context.Context, projectID uuid.UUID) ([]*model.Equipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []*model.Equipment{}
	for _, eq := range m.equipment {
		if eq.ProjectID == projectID {
			out = append(out, eq)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Tag < out[j].Tag
	})
	return out, nil
}

func (m *MockStore) InsertAlias(ctx context.Context, alias *model.EquipmentAlias) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	for _, a := range m.aliases {
		if a.EquipmentID == alias.EquipmentID && strings.EqualFold(a.Alias, alias.Alias) {
			*alias = *a
			return false, nil
		}
	}
	alias.ID = uuid.New()
	alias.CreatedAt = time.Now()
	stored := *alias
	m.aliases = append(m.aliases, &stored)
	return true, nil
}

func (m *MockStore) SelectAliases(ctx context.Context, equipmentID uuid.UUID) ([]*model.EquipmentAlias, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []*model.EquipmentAlias{}
	for _, a := range m.aliases {
		if a.EquipmentID == equipmentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MockStore) SelectAliasesByProject(ctx context.Context, projectID uuid.UUID) ([]*model.EquipmentAlias, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	ids := map[uuid.UUID]bool{}
	for _, eq := range m.equipment {
		if eq.ProjectID == projectID {
			ids[eq.ID] = true
		}
	}
	out := []*model.EquipmentAlias{}
	for _, a := range m.aliases {
		if ids[a.EquipmentID] {
			out = append(out, a)
		}
	}
	return out, nil
}
