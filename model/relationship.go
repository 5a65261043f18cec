package model

import (
	"time"

	"github.com/google/uuid"
)

// RelationshipType represents the type of a directed edge between two equipment
type RelationshipType string

const (
	RelationshipTypeControls   RelationshipType = "CONTROLS"
	RelationshipTypePowers     RelationshipType = "POWERS"
	RelationshipTypeFeeds      RelationshipType = "FEEDS"
	RelationshipTypeMonitors   RelationshipType = "MONITORS"
	RelationshipTypeConnectsTo RelationshipType = "CONNECTS_TO"
)

// RelationshipTypes lists every known relationship type
var RelationshipTypes = []RelationshipType{
	RelationshipTypeControls,
	RelationshipTypePowers,
	RelationshipTypeFeeds,
	RelationshipTypeMonitors,
	RelationshipTypeConnectsTo,
}

// PowerRelationshipTypes are the edge types followed by upstream and downstream chains
var PowerRelationshipTypes = []RelationshipType{
	RelationshipTypePowers,
	RelationshipTypeFeeds,
}

// IsValid reports whether t is one of the known relationship types
func (t RelationshipType) IsValid() bool {
	for _, known := range RelationshipTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Direction selects which edges of an equipment are considered
type Direction string

const (
	DirectionBoth     Direction = "both"
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// IsValid reports whether d is a known direction
func (d Direction) IsValid() bool {
	return d == DirectionBoth || d == DirectionOutgoing || d == DirectionIncoming
}

// Relationship is a directed typed edge between two equipment
type Relationship struct {
	ID         uuid.UUID        `json:"id"`
	SourceID   uuid.UUID        `json:"source_id"`
	TargetID   uuid.UUID        `json:"target_id"`
	Type       RelationshipType `json:"type"`
	Confidence float64          `json:"confidence"`
	DocumentID *uuid.UUID       `json:"document_id,omitempty"`
	PageNumber *int             `json:"page_number,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// RelationshipOrigin optionally records where a relationship was observed
type RelationshipOrigin struct {
	DocumentID *uuid.UUID
	PageNumber *int
}

// Relationships partitions the edges of one equipment by type and direction
type Relationships struct {
	Equipment    *Equipment   `json:"equipment,omitempty"`
	Controls     []*Equipment `json:"controls"`
	ControlledBy []*Equipment `json:"controlled_by"`
	Powers       []*Equipment `json:"powers"`
	PoweredBy    []*Equipment `json:"powered_by"`
	Feeds        []*Equipment `json:"feeds"`
	FedBy        []*Equipment `json:"fed_by"`
}

// NewRelationships returns an empty partition with non-nil lists
func NewRelationships(equipment *Equipment) *Relationships {
	return &Relationships{
		Equipment:    equipment,
		Controls:     []*Equipment{},
		ControlledBy: []*Equipment{},
		Powers:       []*Equipment{},
		PoweredBy:    []*Equipment{},
		Feeds:        []*Equipment{},
		FedBy:        []*Equipment{},
	}
}

// IsEmpty reports whether no edges were found
func (r *Relationships) IsEmpty() bool {
	return len(r.Controls) == 0 && len(r.ControlledBy) == 0 &&
		len(r.Powers) == 0 && len(r.PoweredBy) == 0 &&
		len(r.Feeds) == 0 && len(r.FedBy) == 0
}

// ExtractedRelationship is a relationship candidate found in free text
type ExtractedRelationship struct {
	SourceTag  string           `json:"source_tag"`
	TargetTag  string           `json:"target_tag"`
	Type       RelationshipType `json:"type"`
	Confidence float64          `json:"confidence"`
}
