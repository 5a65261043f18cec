package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/siherrmann/schematic/core/assembler"
	"github.com/siherrmann/schematic/core/classify"
	"github.com/siherrmann/schematic/core/graph"
	"github.com/siherrmann/schematic/helper"
	"github.com/siherrmann/schematic/model"
)

// Health pings the database
func (s *Server) Health(c *gin.Context) {
	if err := s.service.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Search runs the staged hybrid search
func (s *Server) Search(c *gin.Context) {
	projectID, req, ok := s.searchRequest(c)
	if !ok {
		return
	}

	response, err := s.service.SearchWithConfig(c.Request.Context(), req.Query, projectID, req.Config(s.defaults))
	if err != nil {
		s.writeError(c, err)
		return
	}

	success(c, response)
}

// Context searches and assembles the answer context
func (s *Server) Context(c *gin.Context) {
	projectID, req, ok := s.searchRequest(c)
	if !ok {
		return
	}

	bundle, err := s.service.Context(c.Request.Context(), req.Query, projectID, req.Config(s.defaults))
	if err != nil {
		s.writeError(c, err)
		return
	}

	success(c, &ContextResponse{
		Context: bundle,
		Answer:  assembler.FallbackAnswer(req.Query, bundle),
	})
}

func (s *Server) searchRequest(c *gin.Context) (uuid.UUID, *SearchRequest, bool) {
	projectID, ok := s.uuidParam(c, "pid")
	if !ok {
		return uuid.Nil, nil, false
	}

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return uuid.Nil, nil, false
	}

	return projectID, &req, true
}

// Resolve finds the equipment of a tag or alias
func (s *Server) Resolve(c *gin.Context) {
	projectID, ok := s.uuidParam(c, "pid")
	if !ok {
		return
	}
	tag := c.Query("tag")
	if tag == "" {
		fail(c, http.StatusBadRequest, "tag is required")
		return
	}

	equipment, err := s.service.Resolve(c.Request.Context(), projectID, tag)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if equipment == nil {
		s.writeError(c, helper.NewNotFoundError("no equipment with tag or alias %q", tag))
		return
	}

	success(c, equipment)
}

// FuzzyMatch scores a tag against the equipment of a project
func (s *Server) FuzzyMatch(c *gin.Context) {
	projectID, ok := s.uuidParam(c, "pid")
	if !ok {
		return
	}
	tag := c.Query("tag")
	if tag == "" {
		fail(c, http.StatusBadRequest, "tag is required")
		return
	}

	threshold := s.defaults.FuzzyThreshold
	if raw := c.Query("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			fail(c, http.StatusBadRequest, "threshold must be a number")
			return
		}
		threshold = parsed
	}

	id, score := s.service.FuzzyMatch(c.Request.Context(), projectID, tag, threshold)
	success(c, &FuzzyMatchResponse{EquipmentID: id, Score: score, Matched: id != nil})
}

// Relationships partitions the relationships of an equipment
func (s *Server) Relationships(c *gin.Context) {
	equipmentID, ok := s.uuidParam(c, "id")
	if !ok {
		return
	}
	direction := model.Direction(c.DefaultQuery("direction", string(model.DirectionBoth)))
	if !direction.IsValid() {
		fail(c, http.StatusBadRequest, "direction must be one of both, outgoing, incoming")
		return
	}

	rels, err := s.service.GetRelationships(c.Request.Context(), equipmentID, direction)
	if err != nil {
		s.writeError(c, err)
		return
	}

	success(c, rels)
}

// Upstream returns the upstream chain of an equipment
func (s *Server) Upstream(c *gin.Context) {
	equipmentID, ok := s.uuidParam(c, "id")
	if !ok {
		return
	}

	depth := graph.DefaultChainDepth
	if raw := c.Query("depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			fail(c, http.StatusBadRequest, "depth must be a non-negative integer")
			return
		}
		depth = parsed
	}

	ids, err := s.service.GetUpstreamChain(c.Request.Context(), equipmentID, depth)
	if err != nil {
		s.writeError(c, err)
		return
	}

	chain, err := s.service.LoadEquipment(c.Request.Context(), ids)
	if err != nil {
		s.writeError(c, err)
		return
	}

	success(c, &ChainResponse{EquipmentID: equipmentID, Depth: depth, Chain: chain})
}

// Classify returns the intent of a query
func (s *Server) Classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	response := &ClassifyResponse{QueryType: s.service.Classify(req.Query)}
	if relType, ok := classify.DetectRelationshipType(req.Query); ok {
		response.RelationshipType = relType
	}

	success(c, response)
}

func (s *Server) uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid "+name+": "+err.Error())
		return uuid.Nil, false
	}
	return id, true
}
