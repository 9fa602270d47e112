// Package protocol defines the websocket event envelope for the streaming
// gesture channel. It is shared by the server and the framecast client.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event names an envelope's payload type.
type Event string

const (
	// Client → server
	EventVideoFrame      Event = "video frame"
	EventVideoFrameAlias Event = "video_frame" // underscore spelling used by some clients

	// Server → client
	EventPrediction Event = "prediction"
)

// NoHandLabel is broadcast when a frame contains no recognizable gesture.
const NoHandLabel = "No hand detected"

// Message is the wrapper for every websocket text message.
type Message struct {
	Event     Event           `json:"event"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a message with the current timestamp.
func NewMessage(event Event, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Event:     event,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into v.
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message.
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Event == "" {
		return nil, fmt.Errorf("failed to parse message: missing event name")
	}
	return &msg, nil
}

// IsVideoFrame reports whether the message carries a frame to classify.
func (m *Message) IsVideoFrame() bool {
	return m.Event == EventVideoFrame || m.Event == EventVideoFrameAlias
}

// FrameData is the payload of a "video frame" event.
type FrameData struct {
	Frame string `json:"frame"` // "data:image/jpeg;base64,...."
}

// PredictionData is the payload of a "prediction" event. Exactly one of
// Label or Error is set.
type PredictionData struct {
	Label string `json:"label,omitempty"`
	Error string `json:"error,omitempty"`
}
