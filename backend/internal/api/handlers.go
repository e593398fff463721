package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"content-graph/backend/internal/graph"
	"content-graph/backend/internal/knowledge"
	apperrors "content-graph/backend/pkg/errors"
)

const defaultTraversalDepth = 2

func (s *Server) upsertNode(c *gin.Context) {
	var req graph.NodeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	node, err := s.engine.UpsertNode(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, "upsert node", err)
		return
	}
	c.JSON(http.StatusOK, node)
}

func (s *Server) upsertRelationship(c *gin.Context) {
	var req graph.RelationshipInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rel, err := s.engine.UpsertRelationship(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, "upsert relationship", err)
		return
	}
	c.JSON(http.StatusOK, rel)
}

func (s *Server) relatedNodes(c *gin.Context) {
	depth := defaultTraversalDepth
	if raw := c.Query("depth"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "depth must be an integer"})
			return
		}
		depth = d
	}

	var types []graph.RelationshipType
	for _, t := range strings.Split(c.Query("types"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, graph.RelationshipType(t))
		}
	}

	result, err := s.engine.GetRelatedNodes(c.Request.Context(), c.Param("id"), depth, types)
	if err != nil {
		s.writeError(c, "related nodes", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) linkSimilar(c *gin.Context) {
	ctx := c.Request.Context()

	node, err := s.engine.GetNode(ctx, c.Param("id"))
	if err != nil {
		s.writeError(c, "link similar", err)
		return
	}

	links, err := s.engine.LinkSimilar(ctx, node)
	if err != nil {
		s.writeError(c, "link similar", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"relationships": links})
}

func (s *Server) recommendations(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		l, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = l
	}

	userContext := graph.Properties{}
	if userID := c.Query("user_id"); userID != "" {
		userContext["user_id"] = graph.String(userID)
	}

	recs, err := s.engine.GetRecommendations(c.Request.Context(), graph.NodeType(c.Param("type")), limit, userContext)
	if err != nil {
		s.writeError(c, "recommendations", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}

func (s *Server) processEvent(c *gin.Context) {
	var req knowledge.SystemEvent
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := s.engine.ProcessSystemEvent(c.Request.Context(), req)
	if err != nil {
		if summary != nil && summary.Partial {
			// Let the producer see what persisted before it retries
			s.log.Warn("Event partially applied",
				zap.String("event_type", string(req.Type)),
				zap.Strings("completed_steps", summary.CompletedSteps),
				zap.Error(err))
			c.JSON(statusFor(err), gin.H{"error": err.Error(), "summary": summary})
			return
		}
		s.writeError(c, "process event", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) statistics(c *gin.Context) {
	stats, err := s.engine.GetGraphStatistics(c.Request.Context())
	if err != nil {
		s.writeError(c, "statistics", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) writeError(c *gin.Context, operation string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed", zap.String("operation", operation), zap.Error(err))
	}

	body := gin.H{"error": err.Error()}
	var vErr *apperrors.ValidationError
	if errors.As(err, &vErr) {
		body["field"] = vErr.Field
	}
	c.JSON(status, body)
}

func statusFor(err error) int {
	var notFound graph.ErrNodeNotFound
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case apperrors.IsErrorType(err, apperrors.ErrorTypeValidation):
		return http.StatusBadRequest
	case apperrors.IsErrorType(err, apperrors.ErrorTypeConfig):
		return http.StatusServiceUnavailable
	case apperrors.IsErrorType(err, apperrors.ErrorTypeContext):
		return http.StatusGatewayTimeout
	case apperrors.IsErrorType(err, apperrors.ErrorTypeStorage):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
