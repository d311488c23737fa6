package internal

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Metrics counts what the client has seen and done since startup. Served as
// JSON on the optional debug listener.
type Metrics struct {
	eventsReceived atomic.Uint64
	eventsDropped  atomic.Uint64
	unknownEvents  atomic.Uint64
	reconnects     atomic.Uint64
	messagesSent   atomic.Uint64
	notifyDropped  atomic.Uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncEvent() {
	m.eventsReceived.Add(1)
}

func (m *Metrics) IncDropped() {
	m.eventsDropped.Add(1)
}

func (m *Metrics) IncUnknown() {
	m.unknownEvents.Add(1)
}

func (m *Metrics) IncReconnect() {
	m.reconnects.Add(1)
}

func (m *Metrics) IncSent() {
	m.messagesSent.Add(1)
}

func (m *Metrics) IncNotifyDropped() {
	m.notifyDropped.Add(1)
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"events_received_total":       m.eventsReceived.Load(),
		"events_dropped_total":        m.eventsDropped.Load(),
		"unknown_events_total":        m.unknownEvents.Load(),
		"reconnects_total":            m.reconnects.Load(),
		"messages_sent_total":         m.messagesSent.Load(),
		"notifications_dropped_total": m.notifyDropped.Load(),
	}
}

func (m *Metrics) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m.Snapshot())
}
