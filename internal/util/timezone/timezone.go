package timezone

import (
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// RegistrationLayout entspricht dem Format von SQLite CURRENT_TIMESTAMP
const RegistrationLayout = "2006-01-02 15:04:05"

var (
	currentLocation *time.Location
	mu              sync.RWMutex
)

// Initialize setzt die Zeitzone. Ein leerer Name fällt auf die TZ-Umgebungsvariable
// und danach auf UTC zurück.
func Initialize(name string) {
	if name == "" {
		name = os.Getenv("TZ")
	}
	if name == "" {
		name = "UTC"
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Warnf("Failed to load timezone %s: %v. Falling back to UTC.", name, err)
		loc = time.UTC
	} else {
		log.Infof("Successfully initialized timezone to %s", name)
	}

	mu.Lock()
	currentLocation = loc
	mu.Unlock()
}

func location() *time.Location {
	mu.RLock()
	loc := currentLocation
	mu.RUnlock()
	if loc == nil {
		Initialize("")
		mu.RLock()
		loc = currentLocation
		mu.RUnlock()
	}
	return loc
}

// Now gibt die aktuelle Zeit in der konfigurierten Zeitzone zurück
func Now() time.Time {
	return time.Now().In(location())
}

// Format formatiert ein time.Time-Objekt mit der konfigurierten Zeitzone
func Format(t time.Time, layout string) string {
	return t.In(location()).Format(layout)
}

// RegistrationDate formatiert den Zeitpunkt einer Registrierung für Textdokumente
func RegistrationDate(t time.Time) string {
	return Format(t, RegistrationLayout)
}
