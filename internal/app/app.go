// Package app verdrahtet Konfiguration, Datenbank, Erkennung, Wissensabfrage und Ereignisse.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"facerag/config"
	"facerag/internal/api/handlers"
	"facerag/internal/api/middleware"
	"facerag/internal/cleanup"
	"facerag/internal/core/enrollment"
	"facerag/internal/core/events"
	"facerag/internal/core/processor"
	"facerag/internal/core/recognition"
	"facerag/internal/db"
	"facerag/internal/db/repository"
	"facerag/internal/integrations/homeassistant"
	"facerag/internal/integrations/llm"
	"facerag/internal/integrations/mqtt"
	"facerag/internal/integrations/opencv"
	"facerag/internal/logger"
	"facerag/internal/metrics"
	"facerag/internal/rag"
	"facerag/internal/server"
	"facerag/internal/server/sse"
	"facerag/internal/util/timezone"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
)

// App hält alle Dienste einer laufenden Instanz
type App struct {
	Config        *config.Config
	Repo          *repository.SQLiteRepository
	Registry      *prometheus.Registry
	Metrics       *metrics.Metrics
	OpenCV        *opencv.Service
	Model         *recognition.Model
	Trainer       *recognition.Trainer
	Pool          *processor.WorkerPool
	Enrollment    *enrollment.Service
	Recognizer    *recognition.Service
	Answers       *rag.Service
	Hub           *sse.Hub
	MQTT          *mqtt.Client
	HomeAssistant *homeassistant.Publisher
	Cleanup       *cleanup.Service

	logCloser io.Closer
}

// Options steuert, welche Teile aufgebaut werden
type Options struct {
	// Vision lädt Detektor und LBPH-Backend
	Vision bool
	// Answers baut Embedding-Dienst und Sprachmodell
	Answers bool
	// Events startet SSE-Hub und MQTT-Client
	Events bool
}

// New lädt die Konfiguration und baut die angeforderten Dienste auf
func New(ctx context.Context, configPath string, opts Options) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	closer, err := logger.Init(cfg.Log)
	if err != nil {
		log.Errorf("Failed to initialize logger completely: %v", err)
	}

	a := &App{Config: cfg, logCloser: closer}
	if err := a.build(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, opts Options) error {
	cfg := a.Config
	timezone.Initialize(cfg.Server.Timezone)

	log.Info("Initializing database...")
	if err := db.Initialize(cfg); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	gdb, err := db.GetDB()
	if err != nil {
		return err
	}
	a.Repo = repository.NewSQLiteRepository(gdb)

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if a.Metrics, err = metrics.New(a.Registry); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	publishers := events.Multi{}
	if opts.Events {
		a.Hub = sse.NewHub()
		go a.Hub.Run()
		publishers = append(publishers, a.Hub)

		if cfg.MQTT.Enabled {
			client := mqtt.NewClient(cfg.MQTT)
			if err := client.Start(); err != nil {
				log.Warnf("Failed to start MQTT client: %v. Continuing without MQTT.", err)
			} else {
				a.MQTT = client
				publishers = append(publishers, client)

				if cfg.MQTT.HomeAssistant {
					ha := homeassistant.NewPublisher(client, a.Repo, cfg.MQTT.DiscoveryPrefix)
					if err := ha.Start(ctx); err != nil {
						log.Warnf("Failed to start Home Assistant integration: %v", err)
					} else {
						a.HomeAssistant = ha
						publishers = append(publishers, ha)
					}
				}
			}
		} else {
			log.Info("MQTT is disabled in config.")
		}
	}

	if opts.Vision {
		if a.OpenCV, err = opencv.NewService(cfg.Detector, cfg.Recognizer); err != nil {
			return err
		}
		a.Model = recognition.NewModel(cfg.Recognizer.Threshold)
		a.Trainer = recognition.NewTrainer(a.Repo, a.OpenCV.Detector, a.OpenCV.Backend, a.Model,
			cfg.Recognizer.ModelFile, a.Metrics, publishers)
		a.Pool = processor.NewWorkerPool(a.Trainer, 0)
		a.Enrollment = enrollment.NewService(a.Repo, a.OpenCV.Detector, a.Pool, a.Metrics, publishers)
		a.Recognizer = recognition.NewService(a.OpenCV.Detector, a.Model, a.Metrics, publishers)
	}

	if opts.Answers {
		embedder, err := llm.NewEmbedder(cfg.RAG, cfg.LLM)
		if err != nil {
			return err
		}
		generator, err := llm.NewGenerator(ctx, cfg.LLM, a.Metrics)
		if err != nil {
			return err
		}
		a.Answers = rag.NewService(a.Repo, embedder, generator, rag.Options{
			ChunkSize:    cfg.RAG.ChunkSize,
			ChunkOverlap: cfg.RAG.ChunkOverlap,
			TopK:         cfg.RAG.TopK,
			EmbedBatch:   cfg.RAG.EmbedBatch,
		}, a.Metrics)
	}

	return nil
}

// PrepareModel stellt das Modell beim Start wieder her oder trainiert es neu
func (a *App) PrepareModel(ctx context.Context) error {
	if a.Trainer == nil {
		return fmt.Errorf("recognition is not initialized")
	}
	if a.Config.Recognizer.RestoreOnStart {
		return a.Trainer.RestoreOrRetrain(ctx)
	}
	_, err := a.Trainer.Retrain(ctx)
	return err
}

// StartCleanup startet das periodische Aufräumen
func (a *App) StartCleanup() {
	a.Cleanup = cleanup.NewService(a.Repo, a.Config.Recognizer.ModelFile,
		a.Config.Cleanup.KeepTrainingRuns, time.Duration(a.Config.Cleanup.IntervalHours)*time.Hour)
	a.Cleanup.StartBackgroundCleanup()
}

// Router baut den HTTP-Router aus den vorhandenen Diensten
func (a *App) Router() (*gin.Engine, error) {
	translator, err := middleware.NewTranslator(a.Config.I18n.DefaultLanguage)
	if err != nil {
		return nil, fmt.Errorf("failed to load translations: %w", err)
	}

	deps := server.Dependencies{
		System:     handlers.NewSystemHandler(a.Repo, a.Model, a.Pool, a.Hub),
		Translator: translator,
		Registry:   a.Registry,
	}
	if a.Enrollment != nil && a.Recognizer != nil {
		deps.Faces = handlers.NewFaceHandler(a.Enrollment, a.Recognizer)
	}
	if a.Answers != nil {
		deps.Query = handlers.NewQueryHandler(a.Answers)
	}
	return server.NewRouter(a.Config.Server, deps), nil
}

// Close gibt alle Ressourcen in umgekehrter Aufbaureihenfolge frei
func (a *App) Close() {
	a.Cleanup.StopBackgroundCleanup()
	if a.Pool != nil {
		a.Pool.Shutdown()
	}
	if a.Model != nil {
		a.Model.Close()
	}
	if a.OpenCV != nil {
		if err := a.OpenCV.Close(); err != nil {
			log.Warnf("Failed to close OpenCV service: %v", err)
		}
	}
	if a.HomeAssistant != nil {
		a.HomeAssistant.Stop()
	}
	if a.MQTT != nil {
		a.MQTT.Stop()
	}
	if a.Hub != nil {
		a.Hub.Stop()
	}
	if db.DB != nil {
		if sqlDB, err := db.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}
