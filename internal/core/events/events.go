// Package events beschreibt Ereignisse, die an SSE-Clients und MQTT weitergereicht werden.
package events

import "time"

// Ereignistypen
const (
	TypeRegistered = "registered"
	TypeRecognized = "recognized"
	TypeRetrained  = "retrained"
)

// Match ist eine erkannte Region in einem Ereignis
type Match struct {
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
	Known    bool    `json:"known"`
}

// Event ist ein Anwendungsereignis
type Event struct {
	Type      string    `json:"type"`
	Name      string    `json:"name,omitempty"`
	Faces     int       `json:"faces,omitempty"`
	Samples   int       `json:"samples,omitempty"`
	Matches   []Match   `json:"matches,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher nimmt Ereignisse entgegen. Publish darf nicht blockieren.
type Publisher interface {
	Publish(evt Event)
}

// Multi verteilt ein Ereignis an mehrere Publisher
type Multi []Publisher

// Publish implementiert Publisher
func (m Multi) Publish(evt Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(evt)
		}
	}
}

// Nop verwirft alle Ereignisse
type Nop struct{}

// Publish implementiert Publisher
func (Nop) Publish(Event) {}
