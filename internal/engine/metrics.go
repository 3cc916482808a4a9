package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/pagechain/internal/paging"
)

// Metrics contains functions invoked at the stages of the paging lifecycle.
// A nil *Metrics, or a nil func, records nothing.
type Metrics struct {
	OnLoad       func(dir paging.Direction, outcome paging.OutcomeKind, took time.Duration)
	OnEvict      func(placeholder bool)
	OnLiveItems  func(n int)
	OnBatch      func(events int)
	OnLiveUpdate func()
	OnReconcile  func(ops int)
}

// NewMetrics registers the engine collectors on reg. Returns nil when reg
// is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	loads := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: "pagechain",
		Name:      "loads_total",
		Help:      "Page loads by direction and outcome",
	}, []string{"direction", "outcome"})

	loadDuration := promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pagechain",
		Name:      "load_duration_seconds",
		Help:      "Time from load start until the first value of the page arrived",
		Buckets:   prometheus.DefBuckets,
	}, []string{"direction"})

	evictions := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: "pagechain",
		Name:      "evictions_total",
		Help:      "Pages evicted to stay within the item budget",
	}, []string{"mode"})

	liveItems := promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Namespace: "pagechain",
		Name:      "live_items",
		Help:      "Items held by non-evicted pages",
	})

	batchEvents := promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
		Namespace: "pagechain",
		Name:      "batch_events",
		Help:      "Events per published batch",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
	})

	liveUpdates := promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Namespace: "pagechain",
		Name:      "live_updates_total",
		Help:      "Values delivered by live page streams after the first",
	})

	reconcileOps := promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Namespace: "pagechain",
		Name:      "reconcile_ops_total",
		Help:      "Diff operations applied to the source chain",
	})

	return &Metrics{
		OnLoad: func(dir paging.Direction, outcome paging.OutcomeKind, took time.Duration) {
			loads.WithLabelValues(dir.String(), outcome.String()).Inc()
			loadDuration.WithLabelValues(dir.String()).Observe(took.Seconds())
		},
		OnEvict: func(placeholder bool) {
			mode := "remove"
			if placeholder {
				mode = "placeholder"
			}
			evictions.WithLabelValues(mode).Inc()
		},
		OnLiveItems: func(n int) {
			liveItems.Set(float64(n))
		},
		OnBatch: func(events int) {
			batchEvents.Observe(float64(events))
		},
		OnLiveUpdate: func() {
			liveUpdates.Inc()
		},
		OnReconcile: func(ops int) {
			reconcileOps.Add(float64(ops))
		},
	}
}

func (m *Metrics) load(dir paging.Direction, outcome paging.OutcomeKind, took time.Duration) {
	if m != nil && m.OnLoad != nil {
		m.OnLoad(dir, outcome, took)
	}
}

func (m *Metrics) evicted(events int, placeholder bool) {
	if m == nil || m.OnEvict == nil {
		return
	}
	for i := 0; i < events; i++ {
		m.OnEvict(placeholder)
	}
}

func (m *Metrics) batch(events, liveItems int) {
	if m == nil {
		return
	}
	if m.OnBatch != nil {
		m.OnBatch(events)
	}
	if m.OnLiveItems != nil {
		m.OnLiveItems(liveItems)
	}
}

func (m *Metrics) liveUpdate() {
	if m != nil && m.OnLiveUpdate != nil {
		m.OnLiveUpdate()
	}
}

func (m *Metrics) reconciled(ops int) {
	if m != nil && m.OnReconcile != nil {
		m.OnReconcile(ops)
	}
}
