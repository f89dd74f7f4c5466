// Package server baut den gin-Router und verwaltet den HTTP-Server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"facerag/config"
	"facerag/internal/api/handlers"
	"facerag/internal/api/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const sessionName = "facerag"

// Dependencies bündelt die Handler und Hilfsdienste des Routers
type Dependencies struct {
	Faces      *handlers.FaceHandler
	Query      *handlers.QueryHandler
	System     *handlers.SystemHandler
	Translator *middleware.Translator
	Registry   *prometheus.Registry
}

// NewRouter erstellt den gin-Router mit allen Middlewares und Routen
func NewRouter(cfg config.ServerConfig, deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())

	corsCfg := cors.DefaultConfig()
	if len(cfg.AllowOrigins) == 0 || (len(cfg.AllowOrigins) == 1 && cfg.AllowOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowOrigins
	}
	corsCfg.AddAllowHeaders(middleware.RequestIDHeader)
	corsCfg.AddExposeHeaders(middleware.RequestIDHeader)
	router.Use(cors.New(corsCfg))

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{Path: "/", MaxAge: 86400 * 30, HttpOnly: true})
	router.Use(sessions.Sessions(sessionName, store))

	if deps.Translator != nil {
		router.Use(middleware.I18n(deps.Translator))
	}

	if deps.Faces != nil {
		deps.Faces.RegisterRoutes(router)
	}
	if deps.Query != nil {
		deps.Query.RegisterRoutes(router)
	}
	if deps.System != nil {
		deps.System.RegisterRoutes(router)
	}

	if cfg.Metrics && deps.Registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	return router
}

// Server kapselt den HTTP-Server
type Server struct {
	httpServer *http.Server
}

// New erstellt einen Server für den übergebenen Router
func New(cfg config.ServerConfig, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Addr gibt die Adresse des Servers zurück
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run startet den Server und blockiert, bis der Kontext beendet wird
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting HTTP server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}
	log.Info("HTTP server stopped")
	return nil
}
