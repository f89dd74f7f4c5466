package handlers

import (
	"context"
	"errors"
	"net/http"

	"facerag/internal/api/middleware"
	"facerag/internal/core/enrollment"
	"facerag/internal/core/recognition"
	"facerag/internal/util/imageutil"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Enroller registriert Gesichter
type Enroller interface {
	Register(ctx context.Context, name, payload string) (*enrollment.Result, error)
}

// Recognizer erkennt Gesichter in einem Bild
type Recognizer interface {
	Recognize(ctx context.Context, payload string) ([]recognition.FaceResult, error)
}

// FaceHandler behandelt Registrierung und Erkennung
type FaceHandler struct {
	enroller   Enroller
	recognizer Recognizer
}

// NewFaceHandler erstellt einen neuen FaceHandler
func NewFaceHandler(enroller Enroller, recognizer Recognizer) *FaceHandler {
	return &FaceHandler{
		enroller:   enroller,
		recognizer: recognizer,
	}
}

// RegisterRoutes registriert die Routen
func (h *FaceHandler) RegisterRoutes(router gin.IRoutes) {
	router.POST("/register", h.Register)
	router.POST("/recognize", h.Recognize)
}

type registerRequest struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

type recognizeRequest struct {
	Image string `json:"image"`
}

// Register speichert ein neues Gesicht und trainiert das Modell neu
func (h *FaceHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": middleware.T(c, "error.missing_input", nil)})
		return
	}

	_, err := h.enroller.Register(c.Request.Context(), req.Name, req.Image)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"message": middleware.T(c, "register.success", map[string]interface{}{"Name": req.Name}),
		})
	case errors.Is(err, enrollment.ErrMissingInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": middleware.T(c, "error.missing_input", nil)})
	case errors.Is(err, imageutil.ErrInvalidImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": middleware.T(c, "error.invalid_image", nil)})
	case errors.Is(err, enrollment.ErrNoFaceDetected):
		c.JSON(http.StatusBadRequest, gin.H{"error": middleware.T(c, "error.no_face", nil)})
	default:
		log.WithField("request_id", middleware.GetRequestID(c)).Errorf("Registration failed: %v", err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": middleware.T(c, "error.internal", nil)})
	}
}

// Recognize erkennt alle Gesichter im übergebenen Bild
func (h *FaceHandler) Recognize(c *gin.Context) {
	var req recognizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": middleware.T(c, "error.no_image", nil)})
		return
	}

	results, err := h.recognizer.Recognize(c.Request.Context(), req.Image)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"results": results})
	case errors.Is(err, recognition.ErrMissingImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": middleware.T(c, "error.no_image", nil)})
	case errors.Is(err, imageutil.ErrInvalidImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": middleware.T(c, "error.decode_image", nil)})
	default:
		log.WithField("request_id", middleware.GetRequestID(c)).Errorf("Recognition failed: %v", err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": middleware.T(c, "error.internal", nil)})
	}
}
