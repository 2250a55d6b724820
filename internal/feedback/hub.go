// Package feedback fans session feedback out to live subscribers over
// websocket and gRPC, and keeps a short history of the matching signal for
// the debug chart.
package feedback

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/posture.report/internal/config"
	"github.com/banshee-data/posture.report/internal/monitoring"
	"github.com/banshee-data/posture.report/internal/session"
	"github.com/banshee-data/posture.report/internal/timeutil"
	"github.com/banshee-data/posture.report/internal/verdict"
)

var logf = monitoring.Tagged("Feedback")

// ErrTooManyClients is returned by Subscribe when MaxClients are connected.
var ErrTooManyClients = errors.New("feedback: too many stream clients")

// ErrNotRunning is returned by Subscribe before Start or after Stop.
var ErrNotRunning = errors.New("feedback: hub not running")

// Event types sent to subscribers.
const (
	EventFeedback         = "feedback"
	EventToleranceUpdated = "tolerance_updated"
	EventReferenceLoaded  = "reference_loaded"
	EventError            = "error"
)

// Event is one message delivered to a subscriber.
type Event struct {
	Type      string                 `json:"type"`
	Feedback  *session.Feedback      `json:"feedback,omitempty"`
	Tolerance *float64               `json:"tolerance,omitempty"`
	Reference *session.ReferenceInfo `json:"reference,omitempty"`
	Message   string                 `json:"message,omitempty"`
}

// Config holds hub limits.
type Config struct {
	ClientBuffer  int
	MaxClients    int
	SignalHistory int
	StatsInterval time.Duration
	Clock         timeutil.Clock
}

// DefaultConfig returns the defaults from config.DefaultTuningConfig.
func DefaultConfig() Config {
	return ConfigFromTuning(config.DefaultTuningConfig())
}

// ConfigFromTuning maps tuning configuration onto Config.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		ClientBuffer:  cfg.GetFeedbackBuffer(),
		MaxClients:    cfg.GetMaxStreamClients(),
		SignalHistory: cfg.GetSignalHistory(),
		StatsInterval: cfg.GetStatsInterval(),
	}
}

// SignalPoint is one sample of the matching signal.
type SignalPoint struct {
	Seq         uint64          `json:"seq"`
	Timestamp   time.Time       `json:"timestamp"`
	AvgDistance *float64        `json:"avg_distance"`
	Verdict     verdict.Verdict `json:"verdict"`
	Similarity  int             `json:"similarity"`
}

// Subscription is a registered client. Events arrive on C until the
// subscription is closed.
type Subscription struct {
	ID   string
	C    <-chan Event
	ch   chan Event
	done chan struct{}
}

// Done is closed when the hub drops the subscription.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Hub implements session.Publisher.
type Hub struct {
	cfg   Config
	clock timeutil.Clock

	clients   map[string]*Subscription
	clientsMu sync.RWMutex

	signalMu sync.Mutex
	signal   []SignalPoint

	eventCount    atomic.Uint64
	droppedEvents atomic.Uint64
	clientCount   atomic.Int32
	lastCount     uint64

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

var _ session.Publisher = (*Hub)(nil)

// NewHub creates a stopped hub.
func NewHub(cfg Config) *Hub {
	if cfg.ClientBuffer < 1 {
		cfg.ClientBuffer = config.DefaultFeedbackBuffer
	}
	if cfg.SignalHistory < 1 {
		cfg.SignalHistory = config.DefaultSignalHistory
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Hub{
		cfg:     cfg,
		clock:   cfg.Clock,
		clients: make(map[string]*Subscription),
		stopCh:  make(chan struct{}),
	}
}

// Start begins accepting subscribers and, with a positive StatsInterval,
// logs periodic throughput.
func (h *Hub) Start() error {
	if h.running.Swap(true) {
		return fmt.Errorf("feedback hub already running")
	}
	if h.cfg.StatsInterval > 0 {
		ticker := h.clock.NewTicker(h.cfg.StatsInterval)
		h.wg.Add(1)
		go h.statsLoop(ticker)
	}
	return nil
}

// Stop disconnects every subscriber and waits for the stats loop.
func (h *Hub) Stop() {
	if !h.running.Swap(false) {
		return
	}
	close(h.stopCh)
	h.wg.Wait()

	h.clientsMu.Lock()
	for id, c := range h.clients {
		close(c.done)
		delete(h.clients, id)
	}
	h.clientsMu.Unlock()
	h.clientCount.Store(0)
	logf("hub stopped")
}

func (h *Hub) statsLoop(t timeutil.Ticker) {
	defer h.wg.Done()
	defer t.Stop()
	for {
		select {
		case <-h.stopCh:
			return
		case <-t.C():
			h.logStats()
		}
	}
}

func (h *Hub) logStats() {
	total := h.eventCount.Load()
	n := total - h.lastCount
	h.lastCount = total
	if n == 0 {
		return
	}
	logf("Stats: events=%d dropped=%d clients=%d", n, h.droppedEvents.Load(), h.clientCount.Load())
}

// Subscribe registers a client under id.
func (h *Hub) Subscribe(id string) (*Subscription, error) {
	if !h.running.Load() {
		return nil, ErrNotRunning
	}
	ch := make(chan Event, h.cfg.ClientBuffer)
	sub := &Subscription{ID: id, C: ch, ch: ch, done: make(chan struct{})}

	h.clientsMu.Lock()
	if h.cfg.MaxClients > 0 && len(h.clients) >= h.cfg.MaxClients {
		h.clientsMu.Unlock()
		return nil, ErrTooManyClients
	}
	if old, ok := h.clients[id]; ok {
		close(old.done)
	}
	h.clients[id] = sub
	n := int32(len(h.clients))
	h.clientsMu.Unlock()

	h.clientCount.Store(n)
	logf("client connected: %s (total: %d)", id, n)
	return sub, nil
}

// Unsubscribe removes the client registered under id.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.clientsMu.Lock()
	cur, ok := h.clients[sub.ID]
	if !ok || cur != sub {
		h.clientsMu.Unlock()
		return
	}
	close(sub.done)
	delete(h.clients, sub.ID)
	n := int32(len(h.clients))
	h.clientsMu.Unlock()

	h.clientCount.Store(n)
	logf("client disconnected: %s (remaining: %d)", sub.ID, n)
}

// Publish records fb in the signal history and delivers it to every
// subscriber. Slow subscribers lose events rather than block the session.
func (h *Hub) Publish(fb session.Feedback) {
	h.recordSignal(fb)
	h.Broadcast(Event{Type: EventFeedback, Feedback: &fb})
}

// PublishTolerance announces a tolerance change.
func (h *Hub) PublishTolerance(v float64) {
	h.Broadcast(Event{Type: EventToleranceUpdated, Tolerance: &v})
}

// PublishReference announces a newly loaded reference.
func (h *Hub) PublishReference(info session.ReferenceInfo) {
	h.Broadcast(Event{Type: EventReferenceLoaded, Reference: &info})
}

// Broadcast delivers ev to every subscriber without blocking.
func (h *Hub) Broadcast(ev Event) {
	if !h.running.Load() {
		return
	}
	h.eventCount.Add(1)

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.ch <- ev:
		default:
			if d := h.droppedEvents.Add(1); d%100 == 1 {
				logf("dropped event for slow client %s (total dropped: %d)", c.ID, d)
			}
		}
	}
}

func (h *Hub) recordSignal(fb session.Feedback) {
	p := SignalPoint{
		Seq:         fb.Seq,
		Timestamp:   fb.Timestamp,
		AvgDistance: fb.Metrics.AvgDistance,
		Verdict:     fb.Verdict,
	}
	if fb.Metrics.AvgDistance != nil {
		p.Similarity = verdict.SimilarityPercent(*fb.Metrics.AvgDistance)
	}

	h.signalMu.Lock()
	defer h.signalMu.Unlock()
	h.signal = append(h.signal, p)
	if over := len(h.signal) - h.cfg.SignalHistory; over > 0 {
		h.signal = append(h.signal[:0], h.signal[over:]...)
	}
}

// Signal returns a copy of the signal history, oldest first.
func (h *Hub) Signal() []SignalPoint {
	h.signalMu.Lock()
	defer h.signalMu.Unlock()
	return append([]SignalPoint(nil), h.signal...)
}

// Stats is a snapshot of hub counters.
type Stats struct {
	Events  uint64 `json:"events"`
	Dropped uint64 `json:"dropped"`
	Clients int32  `json:"clients"`
	Running bool   `json:"running"`
}

// Stats returns the current counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Events:  h.eventCount.Load(),
		Dropped: h.droppedEvents.Load(),
		Clients: h.clientCount.Load(),
		Running: h.running.Load(),
	}
}
