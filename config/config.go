package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config repräsentiert die Hauptkonfiguration der Anwendung
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Detector   DetectorConfig   `mapstructure:"detector"`
	Recognizer RecognizerConfig `mapstructure:"recognizer"`
	RAG        RAGConfig        `mapstructure:"rag"`
	LLM        LLMConfig        `mapstructure:"llm"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	I18n       I18nConfig       `mapstructure:"i18n"`
	Cleanup    CleanupConfig    `mapstructure:"cleanup"`
}

// ServerConfig enthält Server-bezogene Einstellungen
type ServerConfig struct {
	Host          string   `mapstructure:"host"`
	Port          int      `mapstructure:"port"`
	DataDir       string   `mapstructure:"data_dir"`
	Timezone      string   `mapstructure:"timezone"`
	SessionSecret string   `mapstructure:"session_secret"`
	AllowOrigins  []string `mapstructure:"allow_origins"`
	Metrics       bool     `mapstructure:"metrics"`
}

// LogConfig enthält Log-Einstellungen
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DBConfig enthält Datenbankeinstellungen
type DBConfig struct {
	File string `mapstructure:"file"`
}

// DetectorConfig enthält die Parameter des Haar-Cascade-Detektors.
// Die Werte gelten für alle Anfragen, nicht pro Request.
type DetectorConfig struct {
	CascadeFile   string  `mapstructure:"cascade_file"`
	ScaleFactor   float64 `mapstructure:"scale_factor"`
	MinNeighbors  int     `mapstructure:"min_neighbors"`
	MinSizeWidth  int     `mapstructure:"min_size_width"`
	MinSizeHeight int     `mapstructure:"min_size_height"`
}

// RecognizerConfig enthält Einstellungen für das LBPH-Modell
type RecognizerConfig struct {
	ModelFile      string  `mapstructure:"model_file"`
	Threshold      float64 `mapstructure:"threshold"`
	RestoreOnStart bool    `mapstructure:"restore_on_start"`
	Radius         int     `mapstructure:"radius"`
	Neighbors      int     `mapstructure:"neighbors"`
}

// RAGConfig enthält Einstellungen für Chunking und Retrieval
type RAGConfig struct {
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	TopK         int    `mapstructure:"top_k"`
	Embedder     string `mapstructure:"embedder"` // "ollama" oder "openai"
	EmbedModel   string `mapstructure:"embed_model"`
	EmbedBatch   int    `mapstructure:"embed_batch"`
}

// LLMConfig enthält die Einstellungen für Remote- und lokales Sprachmodell
type LLMConfig struct {
	Provider     string       `mapstructure:"provider"` // "openai" oder "gemini"
	Model        string       `mapstructure:"model"`
	APIKey       string       `mapstructure:"api_key"`
	BaseURL      string       `mapstructure:"base_url"`
	MaxNewTokens int          `mapstructure:"max_new_tokens"`
	Local        OllamaConfig `mapstructure:"local"`
}

// OllamaConfig beschreibt das lokale Fallback-Modell
type OllamaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Model   string `mapstructure:"model"`
}

// MQTTConfig enthält die Konfiguration für den MQTT-Client
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`

	HomeAssistant   bool   `mapstructure:"home_assistant"`
	DiscoveryPrefix string `mapstructure:"discovery_prefix"`
}

// I18nConfig enthält die Spracheinstellungen der API-Meldungen
type I18nConfig struct {
	DefaultLanguage string `mapstructure:"default_language"`
}

// CleanupConfig enthält Einstellungen für das periodische Aufräumen
type CleanupConfig struct {
	KeepTrainingRuns int `mapstructure:"keep_training_runs"`
	IntervalHours    int `mapstructure:"interval_hours"`
}

// Load lädt die Konfiguration aus Datei, Umgebungsvariablen und Standardwerten
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Warnf("Config file %s does not exist, using defaults", configPath)
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Infof("Config loaded from %s", configPath)
		}
	}

	// Umgebungsvariablen überlagern die Konfiguration
	v.SetEnvPrefix("FACERAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	if err := ensureDirectories(&cfg); err != nil {
		return nil, fmt.Errorf("failed to create required directories: %w", err)
	}

	return &cfg, nil
}

// setDefaults legt Standardwerte für die Konfiguration fest
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("server.timezone", "UTC")
	v.SetDefault("server.session_secret", "change-me")
	v.SetDefault("server.allow_origins", []string{"*"})
	v.SetDefault("server.metrics", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("db.file", "./data/database/face_data.db")

	// Werte entsprechen detectMultiScale(gray, 1.1, 5)
	v.SetDefault("detector.cascade_file", "haarcascade_frontalface_default.xml")
	v.SetDefault("detector.scale_factor", 1.1)
	v.SetDefault("detector.min_neighbors", 5)
	v.SetDefault("detector.min_size_width", 0)
	v.SetDefault("detector.min_size_height", 0)

	v.SetDefault("recognizer.model_file", "./data/face_model.xml")
	v.SetDefault("recognizer.threshold", 100.0)
	v.SetDefault("recognizer.restore_on_start", true)
	v.SetDefault("recognizer.radius", 1)
	v.SetDefault("recognizer.neighbors", 8)

	v.SetDefault("rag.chunk_size", 500)
	v.SetDefault("rag.chunk_overlap", 50)
	v.SetDefault("rag.top_k", 4)
	v.SetDefault("rag.embedder", "ollama")
	v.SetDefault("rag.embed_model", "all-minilm")
	v.SetDefault("rag.embed_batch", 64)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "google/flan-t5-small")
	v.SetDefault("llm.base_url", "https://router.huggingface.co/v1")
	v.SetDefault("llm.max_new_tokens", 100)
	v.SetDefault("llm.local.enabled", true)
	v.SetDefault("llm.local.url", "http://localhost:11434")
	v.SetDefault("llm.local.model", "llama3.2:1b")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "facerag")
	v.SetDefault("mqtt.topic_prefix", "facerag")
	v.SetDefault("mqtt.home_assistant", false)
	v.SetDefault("mqtt.discovery_prefix", "homeassistant")

	v.SetDefault("i18n.default_language", "en")

	v.SetDefault("cleanup.keep_training_runs", 20)
	v.SetDefault("cleanup.interval_hours", 24)
}

// ensureDirectories stellt sicher, dass alle erforderlichen Verzeichnisse existieren
func ensureDirectories(cfg *Config) error {
	if cfg.Server.DataDir != "" {
		if err := os.MkdirAll(cfg.Server.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	if cfg.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	// Datenbank-Verzeichnis (für SQLite)
	if cfg.DB.File != "" && cfg.DB.File != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DB.File), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	if cfg.Recognizer.ModelFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Recognizer.ModelFile), 0755); err != nil {
			return fmt.Errorf("failed to create model directory: %w", err)
		}
	}

	return nil
}
