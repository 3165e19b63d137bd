package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/kozaktomas/smart-attendance/internal/ledger"
)

// eventBufferSize bounds each listener channel; slow clients drop
// events rather than block the capture loop.
const eventBufferSize = 16

// Broker fans attendance events out to connected SSE clients. The
// capture pipeline publishes a record each time a student is marked.
type Broker struct {
	mu        sync.Mutex
	listeners map[chan ledger.Record]struct{}
}

// NewBroker creates an empty event broker.
func NewBroker() *Broker {
	return &Broker{listeners: make(map[chan ledger.Record]struct{})}
}

// Publish delivers a record to every listener without blocking.
func (b *Broker) Publish(rec ledger.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.listeners {
		select {
		case ch <- rec:
		default:
		}
	}
}

// AddListener registers a new event channel.
func (b *Broker) AddListener() chan ledger.Record {
	ch := make(chan ledger.Record, eventBufferSize)
	b.mu.Lock()
	b.listeners[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// RemoveListener unregisters and closes an event channel.
func (b *Broker) RemoveListener(ch chan ledger.Record) {
	b.mu.Lock()
	delete(b.listeners, ch)
	b.mu.Unlock()
	close(ch)
}

// EventsHandler streams attendance marks over SSE.
type EventsHandler struct {
	broker *Broker
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(broker *Broker) *EventsHandler {
	return &EventsHandler{broker: broker}
}

// sendSSEEvent writes a single named SSE event.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}

// Stream pushes an "attendance" event per newly marked student until
// the client disconnects.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	eventCh := h.broker.AddListener()
	defer h.broker.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "connected", map[string]string{"status": "ok"})

	for {
		select {
		case <-r.Context().Done():
			return
		case rec, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, "attendance", toRecordResponse(rec))
		}
	}
}
