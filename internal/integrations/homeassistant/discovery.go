// Package homeassistant meldet erkannte Personen als Sensoren per MQTT-Discovery an Home Assistant.
package homeassistant

import (
	"fmt"
	"strings"
	"unicode"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultDiscoveryPrefix ist der Standard-Präfix von Home Assistant
	DefaultDiscoveryPrefix = "homeassistant"

	// ComponentSensor ist der Komponententyp für Sensoren
	ComponentSensor = "sensor"

	// NodeID für diesen Dienst
	NodeID = "facerag"
)

// Broker ist der Teil des MQTT-Clients, den die Integration benötigt
type Broker interface {
	PublishRetain(topic string, payload interface{}) error
	Topic(suffix string) string
}

// SensorConfig repräsentiert die MQTT-Discovery-Konfiguration für einen Sensor in Home Assistant
type SensorConfig struct {
	Name                string  `json:"name"`
	UniqueID            string  `json:"unique_id"`
	StateTopic          string  `json:"state_topic"`
	Icon                string  `json:"icon,omitempty"`
	JSONAttributesTopic string  `json:"json_attributes_topic,omitempty"`
	ValueTemplate       string  `json:"value_template,omitempty"`
	DeviceClass         string  `json:"device_class,omitempty"`
	AvailabilityTopic   string  `json:"availability_topic,omitempty"`
	PayloadAvailable    string  `json:"payload_available,omitempty"`
	PayloadNotAvailable string  `json:"payload_not_available,omitempty"`
	Device              *Device `json:"device,omitempty"`
}

// Device repräsentiert die Geräteinformationen für Home Assistant
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// DiscoveryManager verwaltet die Home Assistant MQTT Discovery
type DiscoveryManager struct {
	broker Broker
	prefix string
	device *Device
}

// NewDiscoveryManager erstellt einen neuen Manager für Home Assistant Discovery
func NewDiscoveryManager(broker Broker, discoveryPrefix string) *DiscoveryManager {
	if discoveryPrefix == "" {
		discoveryPrefix = DefaultDiscoveryPrefix
	}
	return &DiscoveryManager{
		broker: broker,
		prefix: strings.TrimSuffix(discoveryPrefix, "/"),
		device: &Device{
			Identifiers:  []string{NodeID},
			Name:         "FaceRAG",
			Manufacturer: "FaceRAG",
			Model:        "LBPH face recognition",
		},
	}
}

// NormalizeName macht einen Namen für Topics und IDs verwendbar
func NormalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}

// MatchTopic ist das Zustands-Topic für eine Person
func (dm *DiscoveryManager) MatchTopic(name string) string {
	return dm.broker.Topic("matches/" + NormalizeName(name))
}

// FacesTopic ist das Zustands-Topic für die Anzahl gespeicherter Gesichter
func (dm *DiscoveryManager) FacesTopic() string {
	return dm.broker.Topic("faces_total")
}

// RegisterNames veröffentlicht Discovery-Konfigurationen für alle Namen,
// den Sensor für unbekannte Gesichter und den Zähler gespeicherter Gesichter
func (dm *DiscoveryManager) RegisterNames(names []string) error {
	var failed int
	for _, name := range names {
		if err := dm.RegisterName(name); err != nil {
			log.Errorf("Failed to register sensor for %s: %v", name, err)
			failed++
		}
	}

	if err := dm.registerUnknownSensor(); err != nil {
		log.Errorf("Failed to register sensor for unknown faces: %v", err)
		failed++
	}
	if err := dm.registerFacesSensor(); err != nil {
		log.Errorf("Failed to register face counter sensor: %v", err)
		failed++
	}

	if failed > 0 {
		return fmt.Errorf("%d discovery configuration(s) failed", failed)
	}
	return nil
}

// RegisterName erstellt eine Discovery-Konfiguration für eine einzelne Person.
// Der Zustand ist der Zeitpunkt der letzten Erkennung.
func (dm *DiscoveryManager) RegisterName(name string) error {
	normalized := NormalizeName(name)
	sensor := dm.sensor(SensorConfig{
		Name:                fmt.Sprintf("FaceRAG %s", name),
		UniqueID:            fmt.Sprintf("%s_%s", NodeID, normalized),
		StateTopic:          dm.MatchTopic(name),
		JSONAttributesTopic: dm.MatchTopic(name),
		ValueTemplate:       "{{ value_json.timestamp }}",
		DeviceClass:         "timestamp",
		Icon:                "mdi:face-recognition",
	})

	log.Infof("Registering Home Assistant sensor for %s", name)
	return dm.publishConfig(normalized, sensor)
}

func (dm *DiscoveryManager) registerUnknownSensor() error {
	sensor := dm.sensor(SensorConfig{
		Name:                "FaceRAG Unknown",
		UniqueID:            NodeID + "_unknown",
		StateTopic:          dm.broker.Topic("matches/unknown"),
		JSONAttributesTopic: dm.broker.Topic("matches/unknown"),
		ValueTemplate:       "{{ value_json.count }}",
		Icon:                "mdi:face-man-outline",
	})
	return dm.publishConfig("unknown", sensor)
}

func (dm *DiscoveryManager) registerFacesSensor() error {
	sensor := dm.sensor(SensorConfig{
		Name:       "FaceRAG Registered Faces",
		UniqueID:   NodeID + "_faces_total",
		StateTopic: dm.FacesTopic(),
		Icon:       "mdi:account-multiple",
	})
	return dm.publishConfig("faces_total", sensor)
}

func (dm *DiscoveryManager) sensor(cfg SensorConfig) SensorConfig {
	cfg.AvailabilityTopic = dm.broker.Topic("available")
	cfg.PayloadAvailable = "online"
	cfg.PayloadNotAvailable = "offline"
	cfg.Device = dm.device
	return cfg
}

func (dm *DiscoveryManager) publishConfig(objectID string, sensor SensorConfig) error {
	topic := fmt.Sprintf("%s/%s/%s/%s/config", dm.prefix, ComponentSensor, NodeID, objectID)
	if err := dm.broker.PublishRetain(topic, sensor); err != nil {
		return fmt.Errorf("failed to publish discovery configuration: %w", err)
	}
	return nil
}
