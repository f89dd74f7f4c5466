package repository

import (
	"context"
	"errors"

	"facerag/internal/core/models"

	"gorm.io/gorm"
)

// Repository definiert die Schnittstelle für die Datenbank-Operationen
type Repository interface {
	// Face-Methoden
	CreateFace(ctx context.Context, face *models.FaceRecord) error
	ListFaces(ctx context.Context) ([]models.FaceRecord, error)
	CountFaces(ctx context.Context) (int64, error)
	ListNames(ctx context.Context) ([]string, error)
	GetStoreState(ctx context.Context) (models.StoreState, error)

	// Trainingslauf-Methoden
	SaveTrainingRun(ctx context.Context, run *models.TrainingRun) error
	LatestTrainingRun(ctx context.Context) (*models.TrainingRun, error)
	PruneTrainingRuns(ctx context.Context, keep int) (int64, error)

	// Statistik-Methoden
	GetStatistics(ctx context.Context) (models.Statistics, error)
}

// SQLiteRepository implementiert die Repository-Schnittstelle für SQLite
type SQLiteRepository struct {
	db *gorm.DB
}

// NewSQLiteRepository erstellt eine neue SQLite-Repository-Instanz
func NewSQLiteRepository(db *gorm.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateFace speichert einen neuen Datensatz; ID und Zeitstempel vergibt die Datenbank
func (r *SQLiteRepository) CreateFace(ctx context.Context, face *models.FaceRecord) error {
	return r.db.WithContext(ctx).Create(face).Error
}

// ListFaces holt alle Datensätze in Einfügereihenfolge
func (r *SQLiteRepository) ListFaces(ctx context.Context) ([]models.FaceRecord, error) {
	var faces []models.FaceRecord
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&faces).Error; err != nil {
		return nil, err
	}
	return faces, nil
}

// CountFaces zählt alle Datensätze
func (r *SQLiteRepository) CountFaces(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.FaceRecord{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

type storeStateRow struct {
	Count int64
	MaxID *uint
}

// GetStoreState liefert Anzahl und höchste ID der Datensätze
func (r *SQLiteRepository) GetStoreState(ctx context.Context) (models.StoreState, error) {
	var state models.StoreState
	var row storeStateRow
	err := r.db.WithContext(ctx).Model(&models.FaceRecord{}).
		Select("COUNT(*) AS count, MAX(id) AS max_id").
		Scan(&row).Error
	if err != nil {
		return state, err
	}
	state.FaceCount = row.Count
	if row.MaxID != nil {
		state.MaxFaceID = *row.MaxID
	}
	return state, nil
}

// SaveTrainingRun speichert einen Trainingslauf
func (r *SQLiteRepository) SaveTrainingRun(ctx context.Context, run *models.TrainingRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

// LatestTrainingRun holt den jüngsten Trainingslauf oder nil
func (r *SQLiteRepository) LatestTrainingRun(ctx context.Context) (*models.TrainingRun, error) {
	var run models.TrainingRun
	result := r.db.WithContext(ctx).Order("id DESC").First(&run)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &run, nil
}

// ListNames gibt alle unterschiedlichen Namen in der Reihenfolge ihrer ersten Registrierung zurück
func (r *SQLiteRepository) ListNames(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&models.FaceRecord{}).
		Select("name").
		Group("name").
		Order("MIN(id) ASC").
		Pluck("name", &names).Error
	return names, err
}

// PruneTrainingRuns löscht alle bis auf die keep jüngsten Trainingsläufe endgültig
func (r *SQLiteRepository) PruneTrainingRuns(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}
	db := r.db.WithContext(ctx)

	var ids []uint
	if err := db.Unscoped().Model(&models.TrainingRun{}).Order("id DESC").Limit(keep).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) < keep {
		return 0, nil
	}

	oldest := ids[len(ids)-1]
	result := db.Unscoped().Where("id < ?", oldest).Delete(&models.TrainingRun{})
	return result.RowsAffected, result.Error
}

// GetStatistics gibt Statistiken über die gespeicherten Daten zurück
func (r *SQLiteRepository) GetStatistics(ctx context.Context) (models.Statistics, error) {
	var stats models.Statistics
	db := r.db.WithContext(ctx)

	if err := db.Model(&models.FaceRecord{}).Count(&stats.TotalFaces).Error; err != nil {
		return stats, err
	}

	if err := db.Model(&models.FaceRecord{}).
		Distinct("name").
		Count(&stats.DistinctNames).Error; err != nil {
		return stats, err
	}

	var latest models.FaceRecord
	if err := db.Select("id", "timestamp").Order("id DESC").First(&latest).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return stats, err
		}
	} else {
		stats.LatestFace = latest.Timestamp
	}

	return stats, nil
}
