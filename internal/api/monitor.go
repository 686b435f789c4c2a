package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultProbeInterval = 15 * time.Second
	probeTimeout         = 5 * time.Second
)

// Monitor polls the backend's health endpoint and implements
// domain.Connectivity: an "is online" answer plus offline-to-online
// transition callbacks that drive queue flushes.
type Monitor struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	interval   time.Duration

	online atomic.Bool

	mu     sync.Mutex
	nextID int
	subs   map[int]func()

	stopOnce sync.Once
	stop     chan struct{}
}

// NewMonitor creates a connectivity monitor for the backend. interval <= 0
// selects the default probe interval.
func NewMonitor(baseURL string, interval time.Duration, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	m := &Monitor{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: probeTimeout},
		logger:     logger,
		interval:   interval,
		subs:       make(map[int]func()),
		stop:       make(chan struct{}),
	}
	m.online.Store(true) // Assume online until a probe says otherwise
	return m
}

// Start begins probing in the background until Stop is called
func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.Probe()
		}
	}
}

// Probe checks the health endpoint once and records the result, firing
// subscribers on an offline-to-online edge.
func (m *Monitor) Probe() bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/health", nil)
	if err != nil {
		m.setOnline(false)
		return false
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.setOnline(false)
		return false
	}
	resp.Body.Close()

	ok := resp.StatusCode < 500
	m.setOnline(ok)
	return ok
}

// setOnline records the state and notifies subscribers once per
// offline-to-online transition
func (m *Monitor) setOnline(online bool) {
	was := m.online.Swap(online)
	if online && !was {
		m.logger.Info("connectivity restored")
		m.mu.Lock()
		subs := make([]func(), 0, len(m.subs))
		for _, fn := range m.subs {
			subs = append(subs, fn)
		}
		m.mu.Unlock()
		for _, fn := range subs {
			fn()
		}
	}
	if !online && was {
		m.logger.Info("connectivity lost")
	}
}

// Online reports the last observed connectivity state
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// OnOnline registers fn to run on each offline-to-online transition
func (m *Monitor) OnOnline(fn func()) (cancel func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Stop halts background probing
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}
