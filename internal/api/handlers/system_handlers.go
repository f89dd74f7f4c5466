package handlers

import (
	"context"
	"io"
	"net/http"

	"facerag/internal/core/models"
	"facerag/internal/core/processor"
	"facerag/internal/core/recognition"
	"facerag/internal/server/sse"
	"facerag/internal/utils"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// StatisticsSource liefert Kennzahlen des Datenbestands
type StatisticsSource interface {
	GetStatistics(ctx context.Context) (models.Statistics, error)
}

// SystemHandler behandelt Status-, Health- und Ereignis-Endpunkte
type SystemHandler struct {
	stats  StatisticsSource
	model  *recognition.Model
	pool   *processor.WorkerPool
	sseHub *sse.Hub
}

// NewSystemHandler erstellt einen neuen SystemHandler
func NewSystemHandler(stats StatisticsSource, model *recognition.Model, pool *processor.WorkerPool, sseHub *sse.Hub) *SystemHandler {
	return &SystemHandler{
		stats:  stats,
		model:  model,
		pool:   pool,
		sseHub: sseHub,
	}
}

// RegisterRoutes registriert die Routen
func (h *SystemHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.Health)

	api := router.Group("/api")
	api.GET("/status", h.Status)
	if h.sseHub != nil {
		api.GET("/events", h.Events)
	}
}

// Health meldet, dass der Prozess läuft
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status gibt Datenbestand, Modellzustand und Systemwerte zurück
func (h *SystemHandler) Status(c *gin.Context) {
	stats, err := h.stats.GetStatistics(c.Request.Context())
	if err != nil {
		log.Errorf("Failed to read statistics: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	response := gin.H{
		"store":  stats,
		"system": utils.GetSystemStats(h.pool),
	}
	if h.model != nil {
		response["model"] = gin.H{
			"status":    h.model.Status(),
			"threshold": h.model.Threshold(),
			"labels":    h.model.LabelEntries(),
		}
	}
	if h.sseHub != nil {
		response["sse_clients"] = h.sseHub.ClientCount()
	}
	c.JSON(http.StatusOK, response)
}

// Events behandelt SSE-Verbindungen für Echtzeit-Updates
func (h *SystemHandler) Events(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	client := make(sse.Client, 10) // Puffer für 10 Nachrichten
	h.sseHub.Register(client)
	defer h.sseHub.Unregister(client)

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-client:
			if !ok {
				return false // Kanal geschlossen, Stream beenden
			}
			c.SSEvent("message", string(msg))
			return true
		case <-ctx.Done():
			return false
		}
	})
}
