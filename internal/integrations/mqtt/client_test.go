package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	"facerag/config"
	"facerag/internal/core/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Disabled(t *testing.T) {
	c := NewClient(config.MQTTConfig{Enabled: false})
	require.NoError(t, c.Start())
	assert.False(t, c.IsConnected())

	assert.NotPanics(t, func() {
		c.Publish(events.Event{Type: events.TypeRegistered, Name: "Alice"})
		c.Stop()
	})
	assert.Error(t, c.PublishMessage("facerag/test", "x", false))
}

func TestClient_Topic(t *testing.T) {
	assert.Equal(t, "facerag/registered", NewClient(config.MQTTConfig{}).Topic(events.TypeRegistered))
	assert.Equal(t, "home/faces/recognized", NewClient(config.MQTTConfig{TopicPrefix: "home/faces/"}).Topic(events.TypeRecognized))
}

func TestEncodePayload(t *testing.T) {
	data, err := encodePayload("online")
	require.NoError(t, err)
	assert.Equal(t, "online", string(data))

	data, err = encodePayload(42)
	require.NoError(t, err)
	assert.Equal(t, "42", string(data))

	evt := events.Event{
		Type:      events.TypeRecognized,
		Faces:     1,
		Matches:   []events.Match{{Name: "Alice", Distance: 42.5, Known: true}},
		Timestamp: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
	}
	data, err = encodePayload(evt)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "recognized", decoded["type"])
	assert.Len(t, decoded["matches"], 1)
}
