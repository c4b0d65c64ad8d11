package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aescanero/refinery/internal/domain"
)

// CreateGenerationRequest is the request body for creating a generation
type CreateGenerationRequest struct {
	Prompt       string `json:"prompt" binding:"required"`
	Language     string `json:"language" binding:"required"`
	Requirements string `json:"requirements"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "refinery",
	})
}

// handleCreateGeneration accepts a generation request and starts the
// pipeline in the background. It answers 202 immediately with the IDs the
// client needs to follow the run.
func (s *Server) handleCreateGeneration(c *gin.Context) {
	var body CreateGenerationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	req, sess, err := s.orchestrator.StartGeneration(
		c.Request.Context(),
		body.Prompt,
		domain.Language(body.Language),
		body.Requirements,
	)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"request_id": req.ID,
		"session_id": sess.ID,
		"status":     sess.Status,
	})
}

// handleGetStatus returns the current session state
func (s *Server) handleGetStatus(c *gin.Context) {
	sessionID := c.Param("id")

	sess, err := s.orchestrator.GetStatus(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		s.logger.Error("failed to load session status",
			zap.String("session_id", sessionID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":     sess.ID,
		"request_id":     sess.RequestID,
		"status":         sess.Status,
		"iteration":      sess.Iteration,
		"max_iterations": sess.MaxIterations,
		"has_code":       sess.CurrentCodeID != "",
		"has_reviews":    sess.Critic1ReviewID != "" || sess.Critic2ReviewID != "",
		"has_ranking":    sess.RankingID != "",
		"error":          sess.Error,
		"updated_at":     sess.UpdatedAt,
	})
}

// handleGetResult returns the assembled result for a session. Works for
// in-progress sessions too, yielding a partial view.
func (s *Server) handleGetResult(c *gin.Context) {
	sessionID := c.Param("id")

	result, err := s.assembler.Assemble(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		s.logger.Error("failed to assemble result",
			zap.String("session_id", sessionID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to assemble result"})
		return
	}

	c.JSON(http.StatusOK, result)
}
