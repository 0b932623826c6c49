package service

import (
	"sync"

	"readingroom/internal/modules/reader/domain"
)

// Mailbox keeps the newest unread telemetry message for one mounted view.
type Mailbox struct {
	mu     sync.Mutex
	latest domain.TelemetryMessage
	unread bool
}

func (m *Mailbox) Put(msg domain.TelemetryMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = msg
	m.unread = true
}

// Take returns the newest message once; later calls report nothing until the
// next Put.
func (m *Mailbox) Take() (domain.TelemetryMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.unread {
		return domain.TelemetryMessage{}, false
	}
	m.unread = false
	return m.latest, true
}

// TelemetryHub routes envelopes to the mailboxes of mounted views by document id.
type TelemetryHub struct {
	mu     sync.RWMutex
	nextID int
	boxes  map[string]map[int]*Mailbox
}

func NewTelemetryHub() *TelemetryHub {
	return &TelemetryHub{boxes: map[string]map[int]*Mailbox{}}
}

// Subscribe attaches box to documentID and returns the detach function.
func (h *TelemetryHub) Subscribe(documentID string, box *Mailbox) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	if h.boxes[documentID] == nil {
		h.boxes[documentID] = map[int]*Mailbox{}
	}
	h.boxes[documentID][id] = box
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.boxes[documentID], id)
		if len(h.boxes[documentID]) == 0 {
			delete(h.boxes, documentID)
		}
	}
}

// Deliver validates the message and reports whether any view received it.
func (h *TelemetryHub) Deliver(envelope domain.TelemetryEnvelope) (bool, error) {
	if err := envelope.Message.Validate(); err != nil {
		return false, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	boxes := h.boxes[envelope.DocumentID]
	for _, box := range boxes {
		box.Put(envelope.Message)
	}
	return len(boxes) > 0, nil
}
