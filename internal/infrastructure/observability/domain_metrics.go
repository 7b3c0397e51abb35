package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Guard denial reasons
const (
	DenialRateLimit = "rate_limit"
	DenialCredits   = "credits"
)

type domainMetrics struct {
	guardDenials   metric.Int64Counter
	catalogLookups metric.Int64Counter
	refundFailures metric.Int64Counter
}

var (
	domainMetricsOnce sync.Once
	domainMetricsInst *domainMetrics
)

// ensureDomainMetrics binds to the global meter provider on first use, so
// callers need no Metrics handle.
func ensureDomainMetrics() *domainMetrics {
	domainMetricsOnce.Do(func() {
		meter := otel.Meter(instrumentationName + "/protocols")

		guardDenials, err := meter.Int64Counter(
			"protocols.guard.denials",
			metric.WithDescription("Recommendations refused by the rate limit or credit guard"),
		)
		if err != nil {
			return
		}
		catalogLookups, err := meter.Int64Counter(
			"protocols.shade_catalog.lookups",
			metric.WithDescription("Shade catalog lookups by cache result"),
		)
		if err != nil {
			return
		}
		refundFailures, err := meter.Int64Counter(
			"protocols.credits.refund_failures",
			metric.WithDescription("Credit refunds that failed and were queued for the sweeper"),
		)
		if err != nil {
			return
		}
		domainMetricsInst = &domainMetrics{
			guardDenials:   guardDenials,
			catalogLookups: catalogLookups,
			refundFailures: refundFailures,
		}
	})
	return domainMetricsInst
}

// RecordGuardDenial counts a refused recommendation
func RecordGuardDenial(ctx context.Context, operation, reason string) {
	m := ensureDomainMetrics()
	if m == nil {
		return
	}
	m.guardDenials.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("reason", reason),
	))
}

// RecordShadeCatalogLookup counts a cached catalog read
func RecordShadeCatalogLookup(ctx context.Context, hit bool) {
	m := ensureDomainMetrics()
	if m == nil {
		return
	}
	m.catalogLookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("cache.hit", hit)))
}

// RecordRefundFailure counts a refund left for the sweeper
func RecordRefundFailure(ctx context.Context, operation string) {
	m := ensureDomainMetrics()
	if m == nil {
		return
	}
	m.refundFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}
