package protocol

import (
	"encoding/base64"
	"net/http"
)

// NewFrameMessage creates a "video frame" event from an already-encoded
// data URL.
func NewFrameMessage(dataURL string) (*Message, error) {
	return NewMessage(EventVideoFrame, FrameData{Frame: dataURL})
}

// NewImageFrameMessage creates a "video frame" event from raw image bytes.
func NewImageFrameMessage(image []byte) (*Message, error) {
	return NewFrameMessage(DataURL(image))
}

// NewPredictionMessage creates a "prediction" event for a classified frame.
// An empty label becomes NoHandLabel.
func NewPredictionMessage(label string) (*Message, error) {
	if label == "" {
		label = NoHandLabel
	}
	return NewMessage(EventPrediction, PredictionData{Label: label})
}

// NewErrorMessage creates a "prediction" event carrying an error.
func NewErrorMessage(msg string) (*Message, error) {
	return NewMessage(EventPrediction, PredictionData{Error: msg})
}

// DataURL encodes image bytes as "data:<mime>;base64,<body>", sniffing the
// MIME type from the content.
func DataURL(image []byte) string {
	return "data:" + http.DetectContentType(image) + ";base64," + base64.StdEncoding.EncodeToString(image)
}
