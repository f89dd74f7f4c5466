package homeassistant

import (
	"context"
	"sync"
	"time"

	"facerag/internal/core/events"
	"facerag/internal/core/models"

	log "github.com/sirupsen/logrus"
)

// Store liefert Namen und Kennzahlen der gespeicherten Gesichter
type Store interface {
	ListNames(ctx context.Context) ([]string, error)
	GetStatistics(ctx context.Context) (models.Statistics, error)
}

// MatchState ist der Zustand eines Personen-Sensors
type MatchState struct {
	Name      string    `json:"name"`
	Distance  float64   `json:"distance"`
	Timestamp time.Time `json:"timestamp"`
}

// UnknownState ist der Zustand des Sensors für unbekannte Gesichter
type UnknownState struct {
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher setzt Anwendungsereignisse in Home-Assistant-Zustände um.
// Ereignisse werden in einer eigenen Goroutine veröffentlicht.
type Publisher struct {
	broker    Broker
	store     Store
	discovery *DiscoveryManager

	queue    chan events.Event
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	known map[string]bool // nur von der Worker-Goroutine benutzt
}

// NewPublisher erstellt einen neuen Publisher für Home Assistant
func NewPublisher(broker Broker, store Store, discoveryPrefix string) *Publisher {
	return &Publisher{
		broker:    broker,
		store:     store,
		discovery: NewDiscoveryManager(broker, discoveryPrefix),
		queue:     make(chan events.Event, 100),
		done:      make(chan struct{}),
		known:     make(map[string]bool),
	}
}

// Start registriert die vorhandenen Namen und startet die Verarbeitung
func (p *Publisher) Start(ctx context.Context) error {
	names, err := p.store.ListNames(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		p.known[NormalizeName(name)] = true
	}
	if err := p.discovery.RegisterNames(names); err != nil {
		log.Warnf("Home Assistant discovery incomplete: %v", err)
	}
	p.publishFaceCount(ctx)

	p.wg.Add(1)
	go p.run()
	log.Infof("Home Assistant integration started with %d sensor(s)", len(names))
	return nil
}

// Stop beendet die Verarbeitung; bereits eingereihte Ereignisse werden noch veröffentlicht
func (p *Publisher) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
}

// Publish implementiert events.Publisher
func (p *Publisher) Publish(evt events.Event) {
	select {
	case <-p.done:
		return
	default:
	}

	select {
	case p.queue <- evt:
	default:
		log.Warnf("Home Assistant queue full, dropping %s event", evt.Type)
	}
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for {
		select {
		case evt := <-p.queue:
			p.handle(evt)
		case <-p.done:
			for {
				select {
				case evt := <-p.queue:
					p.handle(evt)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) handle(evt events.Event) {
	switch evt.Type {
	case events.TypeRegistered:
		if normalized := NormalizeName(evt.Name); !p.known[normalized] {
			if err := p.discovery.RegisterName(evt.Name); err != nil {
				log.Errorf("Failed to register sensor for %s: %v", evt.Name, err)
			} else {
				p.known[normalized] = true
			}
		}
		p.publishFaceCount(context.Background())
	case events.TypeRecognized:
		p.publishMatches(evt)
	}
}

func (p *Publisher) publishMatches(evt events.Event) {
	unknown := 0
	for _, match := range evt.Matches {
		if !match.Known {
			unknown++
			continue
		}
		state := MatchState{Name: match.Name, Distance: match.Distance, Timestamp: evt.Timestamp}
		if err := p.broker.PublishRetain(p.discovery.MatchTopic(match.Name), state); err != nil {
			log.Warnf("Failed to publish match for %s: %v", match.Name, err)
		}
	}

	if unknown > 0 {
		state := UnknownState{Count: unknown, Timestamp: evt.Timestamp}
		if err := p.broker.PublishRetain(p.broker.Topic("matches/unknown"), state); err != nil {
			log.Warnf("Failed to publish unknown faces: %v", err)
		}
	}
}

func (p *Publisher) publishFaceCount(ctx context.Context) {
	stats, err := p.store.GetStatistics(ctx)
	if err != nil {
		log.Warnf("Failed to read face statistics: %v", err)
		return
	}
	if err := p.broker.PublishRetain(p.discovery.FacesTopic(), stats.TotalFaces); err != nil {
		log.Warnf("Failed to publish face count: %v", err)
	}
}
