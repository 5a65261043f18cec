package api

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/siherrmann/schematic/model"
)

// Response is the envelope of every successful response
type Response[T any] struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      T      `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse is the envelope of every failed response
type ErrorResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// SearchRequest is the body of the search and context endpoints.
// Unset fields take the server defaults.
type SearchRequest struct {
	Query          string   `json:"query" binding:"required"`
	Limit          *int     `json:"limit,omitempty"`
	FuzzyThreshold *float64 `json:"fuzzy_threshold,omitempty"`
	Parallel       *bool    `json:"parallel,omitempty"`
}

// Config merges the request onto the defaults
func (r SearchRequest) Config(defaults model.SearchConfig) model.SearchConfig {
	config := defaults
	if r.Limit != nil {
		config.Limit = *r.Limit
	}
	if r.FuzzyThreshold != nil {
		config.FuzzyThreshold = *r.FuzzyThreshold
	}
	if r.Parallel != nil {
		config.Parallel = *r.Parallel
	}
	return config
}

// ContextResponse is the assembled context with its plain listing answer
type ContextResponse struct {
	Context *model.ContextBundle `json:"context"`
	Answer  string               `json:"answer"`
}

// FuzzyMatchResponse is the outcome of a fuzzy match
type FuzzyMatchResponse struct {
	EquipmentID *uuid.UUID `json:"equipment_id"`
	Score       float64    `json:"score"`
	Matched     bool       `json:"matched"`
}

// ChainResponse lists the equipment of an upstream chain, nearest first
type ChainResponse struct {
	EquipmentID uuid.UUID          `json:"equipment_id"`
	Depth       int                `json:"depth"`
	Chain       []*model.Equipment `json:"chain"`
}

// ClassifyRequest is the body of the classify endpoint
type ClassifyRequest struct {
	Query string `json:"query" binding:"required"`
}

// ClassifyResponse is the classified intent of a query
type ClassifyResponse struct {
	QueryType        model.QueryType        `json:"query_type"`
	RelationshipType model.RelationshipType `json:"relationship_type,omitempty"`
}

// HealthResponse reports the state of the server
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func success[T any](c *gin.Context, data T) {
	c.JSON(200, Response[T]{
		Code:      200,
		Message:   "success",
		Data:      data,
		RequestID: c.GetString(requestIDKey),
	})
}

func fail(c *gin.Context, httpCode int, message string) {
	c.AbortWithStatusJSON(httpCode, ErrorResponse{
		Code:      httpCode,
		Message:   message,
		RequestID: c.GetString(requestIDKey),
	})
}
