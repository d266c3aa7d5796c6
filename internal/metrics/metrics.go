// Package metrics Prometheus metrikleri
package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Dönüşüm cache metrikleri
	ConversionCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kasa_conversion_cache_lookups_total",
			Help: "Conversion cache lookups by result (hit, miss, shared)",
		},
		[]string{"result"},
	)

	ConversionFetchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kasa_conversion_fetch_errors_total",
			Help: "Failed unit conversion fetches from the store",
		},
	)

	ConversionResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kasa_conversion_resolutions_total",
			Help: "Conversion factor resolutions by method",
		},
		[]string{"method"},
	)

	MalformedConversions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kasa_conversion_malformed_total",
			Help: "Matched conversion edges skipped for a non-positive factor",
		},
	)

	// Alım metrikleri
	PurchasesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kasa_purchases_created_total",
			Help: "Purchases persisted",
		},
	)

	PurchaseReturnsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kasa_purchase_returns_created_total",
			Help: "Purchase returns persisted",
		},
	)

	PurchaseSubmitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kasa_purchase_submit_duration_seconds",
			Help:    "Time taken to build and persist a purchase",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	PriceQuotes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kasa_price_quotes_total",
			Help: "Storefront price resolutions by tier kind",
		},
		[]string{"kind"},
	)
)

// Handler: /metrics endpoint'i
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
