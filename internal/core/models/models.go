package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FaceRecord repräsentiert eine registrierte Identität mit ihrem Referenz-Gesichtsausschnitt.
// Pro Registrierung entsteht ein eigener Datensatz, auch bei wiederholtem Namen.
type FaceRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"not null;index" json:"name"`
	FaceImage []byte    `gorm:"column:face_image;not null" json:"-"` // PNG, einkanalig
	Timestamp time.Time `gorm:"column:timestamp;autoCreateTime" json:"timestamp"`
}

// TableName hält den Tabellennamen kompatibel mit bestehenden Datenbanken
func (FaceRecord) TableName() string {
	return "faces"
}

// LabelEntry ist ein Eintrag der Label-Zuordnung eines Trainingslaufs
type LabelEntry struct {
	Label int    `json:"label"`
	Name  string `json:"name"`
}

// TrainingRun protokolliert einen abgeschlossenen Trainingslauf samt Label-Zuordnung.
// FaceCount und MaxFaceID beschreiben den Stand der faces-Tabelle beim Training.
type TrainingRun struct {
	gorm.Model
	FaceCount int64          `gorm:"not null"`
	MaxFaceID uint           `gorm:"not null"`
	Samples   int            `gorm:"not null"`
	Trained   bool           `gorm:"not null"`
	ModelFile string         // leer, wenn kein Modell gespeichert wurde
	Labels    datatypes.JSON `gorm:"type:json"`
}

// LabelEntries dekodiert die gespeicherte Label-Zuordnung
func (r *TrainingRun) LabelEntries() ([]LabelEntry, error) {
	if len(r.Labels) == 0 {
		return nil, nil
	}
	var entries []LabelEntry
	if err := json.Unmarshal(r.Labels, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode label mapping of training run %d: %w", r.ID, err)
	}
	return entries, nil
}

// SetLabelEntries kodiert die Label-Zuordnung als JSON
func (r *TrainingRun) SetLabelEntries(entries []LabelEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode label mapping: %w", err)
	}
	r.Labels = datatypes.JSON(data)
	return nil
}

// StoreState beschreibt den aktuellen Inhalt der faces-Tabelle
type StoreState struct {
	FaceCount int64
	MaxFaceID uint
}

// Matches prüft, ob ein Trainingslauf auf genau diesem Tabellenstand beruht
func (r *TrainingRun) Matches(state StoreState) bool {
	return r.FaceCount == state.FaceCount && r.MaxFaceID == state.MaxFaceID
}

// Statistics fasst den Inhalt des Speichers zusammen
type Statistics struct {
	TotalFaces    int64     `json:"total_faces"`
	DistinctNames int64     `json:"distinct_names"`
	LatestFace    time.Time `json:"latest_face,omitempty"`
}
