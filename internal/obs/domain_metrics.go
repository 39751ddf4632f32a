package obs

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartOperationsTotal counts cart engine operations by outcome.
	CartOperationsTotal *prometheus.CounterVec
	// CartOperationLatency records cart engine latency in milliseconds.
	CartOperationLatency *prometheus.HistogramVec
	// ProductCacheTotal counts product lookups served from or missed by the cache.
	ProductCacheTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_operations_total",
			Help:      "Count of cart operations by outcome.",
		}, []string{"operation", "result"})
		CartOperationLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cart_operation_duration_ms",
			Help:      "Latency of cart operations in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"operation"})
		ProductCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "product_cache_total",
			Help:      "Product lookups by cache outcome.",
		}, []string{"result"})

		mustRegisterCollector(reg, CartOperationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartOperationsTotal = v
			}
		})
		mustRegisterCollector(reg, CartOperationLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				CartOperationLatency = v
			}
		})
		mustRegisterCollector(reg, ProductCacheTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ProductCacheTotal = v
			}
		})
	})
}

// ObserveCartOperation records a cart operation outcome. It is a no-op until
// the domain metrics are registered.
func ObserveCartOperation(operation, result string, elapsed time.Duration) {
	if CartOperationsTotal != nil {
		CartOperationsTotal.WithLabelValues(operation, result).Inc()
	}
	if CartOperationLatency != nil {
		CartOperationLatency.WithLabelValues(operation).Observe(DurationMillis(elapsed))
	}
}

// ObserveProductCache records a product cache hit or miss.
func ObserveProductCache(result string) {
	if ProductCacheTotal != nil {
		ProductCacheTotal.WithLabelValues(result).Inc()
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
}
