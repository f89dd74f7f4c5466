package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FACERAG_SERVER_DATA_DIR", dir)
	t.Setenv("FACERAG_DB_FILE", filepath.Join(dir, "db", "faces.db"))
	t.Setenv("FACERAG_RECOGNIZER_MODEL_FILE", filepath.Join(dir, "model", "face_model.xml"))

	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.InDelta(t, 1.1, cfg.Detector.ScaleFactor, 0.0001)
	assert.Equal(t, 5, cfg.Detector.MinNeighbors)
	assert.InDelta(t, 100.0, cfg.Recognizer.Threshold, 0.0001)
	assert.Equal(t, 500, cfg.RAG.ChunkSize)
	assert.Equal(t, 50, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 4, cfg.RAG.TopK)
	assert.Equal(t, 100, cfg.LLM.MaxNewTokens)
	assert.Equal(t, "en", cfg.I18n.DefaultLanguage)
	assert.Equal(t, 20, cfg.Cleanup.KeepTrainingRuns)
	assert.Equal(t, 24, cfg.Cleanup.IntervalHours)

	assert.DirExists(t, filepath.Join(dir, "db"))
	assert.DirExists(t, filepath.Join(dir, "model"))
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 5001
  data_dir: ` + dir + `
db:
  file: ` + filepath.Join(dir, "faces.db") + `
recognizer:
  model_file: ` + filepath.Join(dir, "model.xml") + `
  threshold: 80
log:
  level: DEBUG
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("FACERAG_DETECTOR_MIN_NEIGHBORS", "3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5001, cfg.Server.Port)
	assert.InDelta(t, 80.0, cfg.Recognizer.Threshold, 0.0001)
	assert.Equal(t, 3, cfg.Detector.MinNeighbors)
	assert.Equal(t, "debug", cfg.Log.Level)
}
