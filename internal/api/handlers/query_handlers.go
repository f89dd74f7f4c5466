package handlers

import (
	"context"
	"errors"
	"net/http"

	"facerag/internal/api/middleware"
	"facerag/internal/rag"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Answerer beantwortet Fragen zu den gespeicherten Datensätzen
type Answerer interface {
	Ask(ctx context.Context, question string) (*rag.Answer, error)
}

// QueryHandler behandelt Fragen
type QueryHandler struct {
	answerer Answerer
}

// NewQueryHandler erstellt einen neuen QueryHandler
func NewQueryHandler(answerer Answerer) *QueryHandler {
	return &QueryHandler{answerer: answerer}
}

// RegisterRoutes registriert die Routen
func (h *QueryHandler) RegisterRoutes(router gin.IRoutes) {
	router.POST("/query", h.Query)
}

type queryRequest struct {
	Question string `json:"question"`
}

// Query beantwortet eine Frage. Interne Fehler werden unverändert zurückgegeben.
func (h *QueryHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": middleware.T(c, "error.no_question", nil)})
		return
	}

	answer, err := h.answerer.Ask(c.Request.Context(), req.Question)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"answer": answer.Text})
	case errors.Is(err, rag.ErrEmptyQuestion):
		c.JSON(http.StatusBadRequest, gin.H{"error": middleware.T(c, "error.no_question", nil)})
	default:
		log.WithField("request_id", middleware.GetRequestID(c)).Errorf("Query failed: %v", err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
