package domain

import (
	"errors"
	"fmt"
)

// TelemetryScroll is the only message type an isolated surface may post.
const TelemetryScroll = "pdfScroll"

var ErrInvalidTelemetry = errors.New("invalid telemetry message")

// TelemetryMessage is posted by a surface whose geometry cannot be read directly.
type TelemetryMessage struct {
	Type         string   `json:"type"`
	ScrollTop    float64  `json:"scrollTop"`
	ScrollHeight float64  `json:"scrollHeight"`
	ClientHeight float64  `json:"clientHeight"`
	Progress     *float64 `json:"progress,omitempty"`
}

// TelemetryEnvelope addresses a message to the view showing DocumentID.
type TelemetryEnvelope struct {
	DocumentID string           `json:"documentId"`
	Message    TelemetryMessage `json:"message"`
}

func (m TelemetryMessage) Geometry() Geometry {
	return Geometry{ScrollTop: m.ScrollTop, ScrollHeight: m.ScrollHeight, ClientHeight: m.ClientHeight}
}

// Validate rejects messages that can never produce a sample.
func (m TelemetryMessage) Validate() error {
	if m.Type != TelemetryScroll {
		return fmt.Errorf("%w: type %q", ErrInvalidTelemetry, m.Type)
	}
	if m.Progress == nil && !m.Geometry().Measurable() {
		return fmt.Errorf("%w: geometry is not measurable and progress is missing", ErrInvalidTelemetry)
	}
	return nil
}

func (m TelemetryMessage) Sample() Sample {
	return Sample{Source: StateMessageRelayed, Geometry: m.Geometry(), Progress: m.Progress}
}
