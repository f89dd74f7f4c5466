// Package mqtt veröffentlicht Registrierungs- und Erkennungsereignisse an einen MQTT-Broker.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"facerag/config"
	"facerag/internal/core/events"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

const publishTimeout = 5 * time.Second

// Client ist der MQTT-Client für ausgehende Ereignisse
type Client struct {
	config      config.MQTTConfig
	client      mqtt.Client
	isConnected atomic.Bool
}

// NewClient erstellt einen neuen MQTT-Client
func NewClient(cfg config.MQTTConfig) *Client {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "facerag"
	}
	return &Client{config: cfg}
}

// Start startet den MQTT-Client und verbindet ihn mit dem Broker
func (c *Client) Start() error {
	if !c.config.Enabled {
		log.Info("MQTT client is disabled in configuration")
		return nil
	}

	opts := mqtt.NewClientOptions()

	brokerURL := fmt.Sprintf("tcp://%s:%d", c.config.Broker, c.config.Port)
	opts.AddBroker(brokerURL)
	opts.SetClientID(c.config.ClientID)

	if c.config.Username != "" {
		opts.SetUsername(c.config.Username)
		opts.SetPassword(c.config.Password)
	}

	// Verfügbarkeit für Abonnenten
	opts.SetWill(c.Topic("available"), "offline", 1, true)

	opts.SetOnConnectHandler(c.onConnectHandler)
	opts.SetConnectionLostHandler(c.connectionLostHandler)

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	c.client = mqtt.NewClient(opts)

	log.Infof("Connecting to MQTT broker at %s", brokerURL)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		log.Errorf("Failed to connect to MQTT broker: %v", token.Error())
		return token.Error()
	}

	log.Info("MQTT client connected successfully")
	return nil
}

// Stop beendet den MQTT-Client
func (c *Client) Stop() {
	if c.client != nil && c.client.IsConnected() {
		log.Info("Disconnecting MQTT client...")
		if err := c.PublishRetain(c.Topic("available"), "offline"); err != nil {
			log.Debugf("Failed to publish offline state: %v", err)
		}
		c.client.Disconnect(250)
		c.isConnected.Store(false)
		log.Info("MQTT client disconnected")
	}
}

// IsConnected prüft, ob der Client verbunden ist
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// Topic bildet ein Topic unterhalb des konfigurierten Präfixes
func (c *Client) Topic(suffix string) string {
	return strings.TrimSuffix(c.config.TopicPrefix, "/") + "/" + suffix
}

func (c *Client) onConnectHandler(client mqtt.Client) {
	log.Infof("Connected to MQTT broker at %s:%d", c.config.Broker, c.config.Port)
	c.isConnected.Store(true)

	token := client.Publish(c.Topic("available"), 1, true, "online")
	if token.WaitTimeout(publishTimeout) && token.Error() != nil {
		log.Warnf("Failed to publish availability: %v", token.Error())
	}
}

func (c *Client) connectionLostHandler(_ mqtt.Client, err error) {
	log.Errorf("MQTT connection lost: %v", err)
	c.isConnected.Store(false)
}

// Publish implementiert events.Publisher. Ereignisse gehen an <prefix>/<typ>;
// die Zustellung wird nicht abgewartet.
func (c *Client) Publish(evt events.Event) {
	if !c.config.Enabled || !c.IsConnected() {
		return
	}

	topic := c.Topic(evt.Type)
	payload, err := encodePayload(evt)
	if err != nil {
		log.Errorf("Failed to encode MQTT event: %v", err)
		return
	}

	token := c.client.Publish(topic, 1, false, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			log.Warnf("Timeout publishing MQTT event to %s", topic)
			return
		}
		if token.Error() != nil {
			log.Warnf("Failed to publish MQTT event to %s: %v", topic, token.Error())
			return
		}
		log.Debugf("Published event to topic: %s", topic)
	}()
}

// PublishMessage veröffentlicht eine Nachricht an ein MQTT-Topic und wartet auf die Bestätigung
func (c *Client) PublishMessage(topic string, payload interface{}, retain bool) error {
	if !c.IsConnected() {
		return fmt.Errorf("MQTT client is not connected")
	}

	payloadBytes, err := encodePayload(payload)
	if err != nil {
		return err
	}

	token := c.client.Publish(topic, 1, retain, payloadBytes)
	if token.WaitTimeout(publishTimeout) && token.Error() != nil {
		return fmt.Errorf("failed to publish message to topic %s: %w", topic, token.Error())
	}

	log.Debugf("Published message to topic: %s", topic)
	return nil
}

// PublishRetain veröffentlicht eine Nachricht mit dem Retain-Flag
func (c *Client) PublishRetain(topic string, payload interface{}) error {
	return c.PublishMessage(topic, payload, true)
}

// encodePayload wandelt Zeichenketten, Bytes und Zahlen direkt um und alles andere in JSON
func encodePayload(payload interface{}) ([]byte, error) {
	switch p := payload.(type) {
	case string:
		return []byte(p), nil
	case []byte:
		return p, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, bool:
		return []byte(fmt.Sprintf("%v", p)), nil
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload to JSON: %w", err)
		}
		return data, nil
	}
}
