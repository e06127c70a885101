package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"giftscope/internal/config"
)

// Manager accumulates counters and writes them in Prometheus textfile format.
// A nil *Manager is valid and records nothing.
type Manager struct {
	path string
	mu   sync.Mutex
	// counters
	previewsIssued  int64
	previewsStale   int64
	previewsFailed  int64
	appliesOK       int64
	appliesFailed   int64
	catalogFetches  int64
	retriesTotal    int64
	lastApplySec    float64
	lastPreviewSize int64
}

func New(cfg *config.Config) *Manager {
	if cfg == nil || !cfg.Metrics.PrometheusTextfile.Enabled || cfg.Metrics.PrometheusTextfile.Path == "" {
		return nil
	}
	p := cfg.Metrics.PrometheusTextfile.Path
	_ = os.MkdirAll(filepath.Dir(p), 0o755)
	return &Manager{path: p}
}

func (m *Manager) IncPreviewIssued() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.previewsIssued++
	m.mu.Unlock()
}

// IncPreviewStale counts preview results discarded because a newer query superseded them.
func (m *Manager) IncPreviewStale() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.previewsStale++
	m.mu.Unlock()
}

func (m *Manager) IncPreviewFailed() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.previewsFailed++
	m.mu.Unlock()
}

// ObservePreviewCount records the most recent applied preview total.
func (m *Manager) ObservePreviewCount(n int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.lastPreviewSize = int64(n)
	m.mu.Unlock()
}

func (m *Manager) ObserveApply(ok bool, sec float64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	if ok {
		m.appliesOK++
		m.lastApplySec = sec
	} else {
		m.appliesFailed++
	}
	m.mu.Unlock()
}

func (m *Manager) IncCatalogFetches() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.catalogFetches++
	m.mu.Unlock()
}

func (m *Manager) IncRetries(n int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.retriesTotal += n
	m.mu.Unlock()
}

type sample struct {
	name, help, kind string
	value            string
}

func (m *Manager) Write() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := os.CreateTemp(filepath.Dir(m.path), ".metrics.tmp.*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	samples := []sample{
		{"giftscope_preview_queries_total", "Preview count queries sent.", "counter", fmt.Sprint(m.previewsIssued)},
		{"giftscope_preview_stale_total", "Preview results discarded as superseded.", "counter", fmt.Sprint(m.previewsStale)},
		{"giftscope_preview_failures_total", "Preview count queries that failed.", "counter", fmt.Sprint(m.previewsFailed)},
		{"giftscope_last_preview_count", "Most recent preview total shown.", "gauge", fmt.Sprint(m.lastPreviewSize)},
		{"giftscope_applies_success_total", "Filter applications that succeeded.", "counter", fmt.Sprint(m.appliesOK)},
		{"giftscope_applies_failed_total", "Filter applications that failed.", "counter", fmt.Sprint(m.appliesFailed)},
		{"giftscope_last_apply_seconds", "Duration of the last successful apply in seconds.", "gauge", fmt.Sprintf("%.6f", m.lastApplySec)},
		{"giftscope_catalog_fetches_total", "Attribute catalog fetches sent.", "counter", fmt.Sprint(m.catalogFetches)},
		{"giftscope_http_retries_total", "Data Source API request retries.", "counter", fmt.Sprint(m.retriesTotal)},
		{"giftscope_metrics_timestamp_seconds", "UNIX timestamp when this file was written.", "gauge", fmt.Sprint(time.Now().Unix())},
	}
	for _, s := range samples {
		fmt.Fprintf(f, "# HELP %s %s\n", s.name, s.help)
		fmt.Fprintf(f, "# TYPE %s %s\n", s.name, s.kind)
		fmt.Fprintf(f, "%s %s\n", s.name, s.value)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), m.path)
}
