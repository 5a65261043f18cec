package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EquipmentType is the inferred kind of a piece of equipment
type EquipmentType string

const (
	EquipmentTypeFan         EquipmentType = "FAN"
	EquipmentTypeMotor       EquipmentType = "MOTOR"
	EquipmentTypeVFD         EquipmentType = "VFD"
	EquipmentTypePump        EquipmentType = "PUMP"
	EquipmentTypeBreaker     EquipmentType = "BREAKER"
	EquipmentTypeRelay       EquipmentType = "RELAY"
	EquipmentTypePLC         EquipmentType = "PLC"
	EquipmentTypeSensor      EquipmentType = "SENSOR"
	EquipmentTypeValve       EquipmentType = "VALVE"
	EquipmentTypePanel       EquipmentType = "PANEL"
	EquipmentTypeTransformer EquipmentType = "TRANSFORMER"
	EquipmentTypeOther       EquipmentType = "OTHER"
)

// EquipmentTypes lists every known equipment type
var EquipmentTypes = []EquipmentType{
	EquipmentTypeFan,
	EquipmentTypeMotor,
	EquipmentTypeVFD,
	EquipmentTypePump,
	EquipmentTypeBreaker,
	EquipmentTypeRelay,
	EquipmentTypePLC,
	EquipmentTypeSensor,
	EquipmentTypeValve,
	EquipmentTypePanel,
	EquipmentTypeTransformer,
	EquipmentTypeOther,
}

// ParseEquipmentType maps a free string onto the closed set of equipment types.
// Unknown values map to OTHER.
func ParseEquipmentType(s string) EquipmentType {
	upper := EquipmentType(strings.ToUpper(strings.TrimSpace(s)))
	for _, t := range EquipmentTypes {
		if t == upper {
			return t
		}
	}
	return EquipmentTypeOther
}

// Equipment is the canonical identity of a physical asset within a project
type Equipment struct {
	ID          uuid.UUID     `json:"id"`
	ProjectID   uuid.UUID     `json:"project_id"`
	Tag         string        `json:"tag"`
	Type        EquipmentType `json:"type"`
	Description string        `json:"description,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	// Loaded on demand
	Aliases []*EquipmentAlias `json:"aliases,omitempty"`
}

// EquipmentAlias is an alternate string known to denote an equipment
type EquipmentAlias struct {
	ID          uuid.UUID `json:"id"`
	EquipmentID uuid.UUID `json:"equipment_id"`
	Alias       string    `json:"alias"`
	Source      string    `json:"source,omitempty"`
	Confidence  float64   `json:"confidence"`
	CreatedAt   time.Time `json:"created_at"`
}

// EquipmentLocation is a bounding box of an equipment on a drawing page
type EquipmentLocation struct {
	ID          uuid.UUID `json:"id"`
	EquipmentID uuid.UUID `json:"equipment_id"`
	PageID      uuid.UUID `json:"page_id"`
	XMin        float64   `json:"x_min"`
	YMin        float64   `json:"y_min"`
	XMax        float64   `json:"x_max"`
	YMax        float64   `json:"y_max"`
	ContextText string    `json:"context_text,omitempty"`
}

// ExtractedTag is a candidate equipment tag found in free text
type ExtractedTag struct {
	Tag     string        `json:"tag"`
	Type    EquipmentType `json:"type"`
	Context string        `json:"context"`
	Start   int           `json:"start"`
	End     int           `json:"end"`
}
