// Package prom exports a cache.Manager's observable metrics (spec.md §6)
// to Prometheus: global accounting as gauges sampled on demand, plus a
// per-cache gauge vec for size/usage/hit rate.
package prom

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ljluestc/arangodb/cache"
)

// Adapter polls a Manager and republishes its Stats/HitRate as Prometheus
// gauges. Unlike a push-based Metrics interface, the gauges change only when
// the host calls Refresh (e.g. from its scrape handler), so adapter
// registration is cheap and there is no background goroutine to manage.
type Adapter struct {
	manager *cache.Manager
	caches  func() map[uint64]cache.Cache

	globalLimit      prometheus.Gauge
	globalAllocation prometheus.Gauge
	activeTables     prometheus.Gauge
	spareTables      prometheus.Gauge
	spareAllocation  prometheus.Gauge

	cacheSize       *prometheus.GaugeVec
	cacheUsage      *prometheus.GaugeVec
	cacheHitRateLT  *prometheus.GaugeVec
	cacheHitRateWin *prometheus.GaugeVec
}

// New constructs a Prometheus adapter for manager and registers it with
// reg (nil => prometheus.DefaultRegisterer). caches supplies the live
// per-cache handles to label individually; pass nil to skip per-cache
// metrics and export only the global gauges.
func New(reg prometheus.Registerer, ns, sub string, manager *cache.Manager, caches func() map[uint64]cache.Cache) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		manager: manager,
		caches:  caches,
		globalLimit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "global_limit_bytes", Help: "Manager global memory budget",
		}),
		globalAllocation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "global_allocation_bytes", Help: "Manager total allocated bytes",
		}),
		activeTables: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "active_tables", Help: "Number of live cache tables",
		}),
		spareTables: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "spare_tables", Help: "Number of detached tables retained for reuse",
		}),
		spareAllocation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "spare_allocation_bytes", Help: "Bytes retained in the spare-table pool",
		}),
		cacheSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "cache_size_bytes", Help: "Per-cache allocated table size",
		}, []string{"cache_id"}),
		cacheUsage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "cache_usage_bytes", Help: "Per-cache resident entry bytes",
		}, []string{"cache_id"}),
		cacheHitRateLT: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "cache_hit_rate_lifetime", Help: "Per-cache lifetime hit rate",
		}, []string{"cache_id"}),
		cacheHitRateWin: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "cache_hit_rate_windowed", Help: "Per-cache windowed hit rate",
		}, []string{"cache_id"}),
	}
	reg.MustRegister(
		a.globalLimit, a.globalAllocation, a.activeTables, a.spareTables, a.spareAllocation,
		a.cacheSize, a.cacheUsage, a.cacheHitRateLT, a.cacheHitRateWin,
	)
	return a
}

// Refresh samples the Manager and updates every gauge. Call this on each
// Prometheus scrape (e.g. from an http.Handler wrapper) or on a timer.
func (a *Adapter) Refresh() {
	st := a.manager.Stats()
	a.globalLimit.Set(float64(st.GlobalLimit))
	a.globalAllocation.Set(float64(st.GlobalAllocation))
	a.activeTables.Set(float64(st.ActiveTables))
	a.spareTables.Set(float64(st.SpareTables))
	a.spareAllocation.Set(float64(st.SpareAllocation))

	if a.caches == nil {
		return
	}
	for id, c := range a.caches() {
		label := strconv.FormatUint(id, 10)
		a.cacheSize.WithLabelValues(label).Set(float64(c.Size()))
		a.cacheUsage.WithLabelValues(label).Set(float64(c.Usage()))
		lifetime, windowed := c.HitRate()
		a.cacheHitRateLT.WithLabelValues(label).Set(lifetime)
		a.cacheHitRateWin.WithLabelValues(label).Set(windowed)
	}
}
