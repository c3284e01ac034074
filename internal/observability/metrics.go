package observability

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"resumewizard/internal/config"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the service instruments. Its methods satisfy the recorder
// interfaces of the client, job role and server packages.
type Metrics struct {
	cfg config.CustomMetricsConfig

	meter metric.Meter

	UpstreamRequests   metric.Int64Counter
	UpstreamDuration   metric.Float64Histogram
	UpstreamErrors     metric.Int64Counter
	BreakerTransitions metric.Int64Counter

	Generations     metric.Int64Counter
	EditTurns       metric.Int64Counter
	RoleLookups     metric.Int64Counter
	RateLimitHits   metric.Int64Counter
	CertReloadCount metric.Int64Counter
}

// NewMetrics creates every instrument on meter
func NewMetrics(meter metric.Meter, cfg config.CustomMetricsConfig) (*Metrics, error) {
	m := &Metrics{cfg: cfg, meter: meter}
	if err := m.createUpstreamMetrics(); err != nil {
		return nil, err
	}
	if err := m.createBusinessMetrics(); err != nil {
		return nil, err
	}
	if err := m.createInfrastructureMetrics(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) createUpstreamMetrics() error {
	var err error

	m.UpstreamRequests, err = m.meter.Int64Counter(
		"resumewizard_upstream_requests_total",
		metric.WithDescription("Total number of calls to the resume backend"),
	)
	if err != nil {
		return fmt.Errorf("failed to create upstream request metric: %w", err)
	}

	m.UpstreamDuration, err = m.meter.Float64Histogram(
		"resumewizard_upstream_duration_seconds",
		metric.WithDescription("Time spent waiting on the resume backend"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create upstream duration metric: %w", err)
	}

	m.UpstreamErrors, err = m.meter.Int64Counter(
		"resumewizard_upstream_errors_total",
		metric.WithDescription("Total number of failed calls to the resume backend"),
	)
	if err != nil {
		return fmt.Errorf("failed to create upstream error metric: %w", err)
	}

	m.BreakerTransitions, err = m.meter.Int64Counter(
		"resumewizard_circuit_breaker_transitions_total",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return fmt.Errorf("failed to create breaker transition metric: %w", err)
	}
	return nil
}

func (m *Metrics) createBusinessMetrics() error {
	var err error

	m.Generations, err = m.meter.Int64Counter(
		"resumewizard_generations_total",
		metric.WithDescription("Resume generations by outcome"),
	)
	if err != nil {
		return fmt.Errorf("failed to create generation metric: %w", err)
	}

	m.EditTurns, err = m.meter.Int64Counter(
		"resumewizard_edit_turns_total",
		metric.WithDescription("Edit-with-AI turns by outcome"),
	)
	if err != nil {
		return fmt.Errorf("failed to create edit turn metric: %w", err)
	}

	m.RoleLookups, err = m.meter.Int64Counter(
		"resumewizard_job_role_lookups_total",
		metric.WithDescription("Job role lookups by cache outcome"),
	)
	if err != nil {
		return fmt.Errorf("failed to create job role lookup metric: %w", err)
	}
	return nil
}

func (m *Metrics) createInfrastructureMetrics() error {
	var err error

	m.RateLimitHits, err = m.meter.Int64Counter(
		"resumewizard_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limited requests"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	m.CertReloadCount, err = m.meter.Int64Counter(
		"resumewizard_cert_reloads_total",
		metric.WithDescription("Total number of TLS certificate reloads"),
	)
	if err != nil {
		return fmt.Errorf("failed to create certificate reload metric: %w", err)
	}
	return nil
}

// ObserveUpstream records one backend call
func (m *Metrics) ObserveUpstream(ctx context.Context, endpoint string, status int, duration time.Duration, err error) {
	if !m.cfg.Upstream.Enabled {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("status", statusLabel(status)),
	)
	m.UpstreamRequests.Add(ctx, 1, attrs)
	if m.cfg.Upstream.TrackDuration {
		m.UpstreamDuration.Record(ctx, duration.Seconds(), attrs)
	}
	if err != nil {
		m.UpstreamErrors.Add(ctx, 1, attrs)
	}
}

// RecordBreakerTransition matches the client's breaker callback
func (m *Metrics) RecordBreakerTransition(name, from, to string) {
	if !m.cfg.Upstream.Enabled {
		return
	}
	m.BreakerTransitions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("breaker", name),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordGeneration counts a wizard generation outcome
func (m *Metrics) RecordGeneration(ctx context.Context, success bool, status int) {
	if !m.cfg.BusinessMetrics.Enabled {
		return
	}
	m.Generations.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("success", success),
		attribute.String("status", statusLabel(status)),
	))
}

// RecordEditTurn counts an edit chat outcome such as committed or rejected
func (m *Metrics) RecordEditTurn(ctx context.Context, outcome string) {
	if !m.cfg.BusinessMetrics.Enabled {
		return
	}
	m.EditTurns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordRoleLookup counts a job role cache hit, miss or fallback
func (m *Metrics) RecordRoleLookup(ctx context.Context, outcome string) {
	if !m.cfg.BusinessMetrics.Enabled {
		return
	}
	m.RoleLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordRateLimitHit counts a rejected request by limiter key type
func (m *Metrics) RecordRateLimitHit(ctx context.Context, keyType string) {
	if !m.cfg.Infrastructure.Enabled || !m.cfg.Infrastructure.TrackRateLimits {
		return
	}
	m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("key_type", keyType)))
}

// RecordCertReload counts a TLS certificate reload attempt
func (m *Metrics) RecordCertReload(ctx context.Context, success bool) {
	if !m.cfg.Infrastructure.Enabled {
		return
	}
	m.CertReloadCount.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// ObserveActiveSessions reports the live session count on every collection
func (m *Metrics) ObserveActiveSessions(count func() int) error {
	_, err := m.meter.Int64ObservableGauge(
		"resumewizard_active_sessions",
		metric.WithDescription("Wizard sessions held in memory"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(count()))
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create active sessions metric: %w", err)
	}
	return nil
}

func statusLabel(status int) string {
	if status == 0 {
		return "transport_error"
	}
	return strconv.Itoa(status)
}
