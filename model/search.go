package model

import "time"

// QueryType is the classified intent of a query
type QueryType string

const (
	QueryTypeEquipmentLookup    QueryType = "EQUIPMENT_LOOKUP"
	QueryTypeRelationship       QueryType = "RELATIONSHIP"
	QueryTypeUpstreamDownstream QueryType = "UPSTREAM_DOWNSTREAM"
	QueryTypeWireTrace          QueryType = "WIRE_TRACE"
	QueryTypeAlarmLookup        QueryType = "ALARM_LOOKUP"
	QueryTypeSpecification      QueryType = "SPECIFICATION"
	QueryTypeSequence           QueryType = "SEQUENCE"
	QueryTypeLocation           QueryType = "LOCATION"
	QueryTypePowerTrace         QueryType = "POWER_TRACE"
	QueryTypeGeneral            QueryType = "GENERAL"
)

// PreferredDataTypes returns the structured record data types searched for a query type, in priority order.
// A nil result means the structured stage is skipped.
func PreferredDataTypes(queryType QueryType) []DataType {
	switch queryType {
	case QueryTypeAlarmLookup:
		return []DataType{DataTypeAlarm, DataTypeIOPoint}
	case QueryTypeSpecification:
		return []DataType{DataTypeSpecification, DataTypeScheduleEntry}
	case QueryTypeSequence:
		return []DataType{DataTypeSequence}
	}
	return nil
}

// IsGraphQuery reports whether answers to the query type need relationship facts
func (q QueryType) IsGraphQuery() bool {
	return q == QueryTypeRelationship || q == QueryTypeUpstreamDownstream
}

// MatchStage is the search stage that produced a result
type MatchStage string

const (
	MatchStageExact      MatchStage = "EXACT"
	MatchStageSemantic   MatchStage = "SEMANTIC"
	MatchStageStructured MatchStage = "STRUCTURED"
	MatchStageKeyword    MatchStage = "KEYWORD"
)

// MatchStages lists the stages in execution order
var MatchStages = []MatchStage{
	MatchStageExact,
	MatchStageSemantic,
	MatchStageStructured,
	MatchStageKeyword,
}

// SearchResult is one piece of evidence returned for a query
type SearchResult struct {
	Evidence  *Evidence  `json:"evidence"`
	Equipment *Equipment `json:"equipment,omitempty"`
	Relevance float64    `json:"relevance"`
	Stage     MatchStage `json:"stage"`
	Snippet   string     `json:"snippet"`
}

// SearchConfig represents configuration for a search query
type SearchConfig struct {
	Limit          int     `json:"limit"`
	FuzzyThreshold float64 `json:"fuzzy_threshold"`
	// Fetch the semantic, structured and keyword candidates concurrently
	Parallel bool `json:"parallel"`
}

// DefaultSearchConfig returns a sensible default configuration
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Limit:          10,
		FuzzyThreshold: 0.85,
		Parallel:       false,
	}
}

// SearchResponse is the full outcome of one search
type SearchResponse struct {
	Query     string          `json:"query"`
	ProjectID string          `json:"project_id"`
	QueryType QueryType       `json:"query_type"`
	Tags      []*ExtractedTag `json:"tags"`
	Resolved  []*Equipment    `json:"resolved"`
	Results   []*SearchResult `json:"results"`
	// Set when the semantic stage had to be skipped
	Degraded bool          `json:"degraded"`
	Duration time.Duration `json:"duration"`
}

// ContextSection is one titled block of an assembled context
type ContextSection struct {
	Title string   `json:"title"`
	Lines []string `json:"lines"`
}

// ContextBundle is the ordered context handed to answer synthesis
type ContextBundle struct {
	Query     string           `json:"query"`
	QueryType QueryType        `json:"query_type"`
	Sections  []ContextSection `json:"sections"`
	// Citations[i] is the result cited by marker i+1
	Citations []*SearchResult `json:"citations"`
	Text      string          `json:"text"`
}
