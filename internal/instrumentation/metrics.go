package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrDecision  = "decision"
	attrReason    = "reason"
	attrTool      = "tool"
	attrSource    = "source"
)

// Metrics records the application's observability metrics.
// All methods are safe to call on a nil or zero Metrics.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Google API metrics
	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram

	// OAuth metrics
	oauthExchangeTotal metric.Int64Counter
	oauthRefreshTotal  metric.Int64Counter
	gateDecisionsTotal metric.Int64Counter
	refreshCoalesced   metric.Int64Counter

	// MCP tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// Domain metrics
	summariesTotal          metric.Int64Counter
	registryOperationsTotal metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with all instruments initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	if m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	); err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	if m.googleAPIOperationsTotal, err = meter.Int64Counter(
		"google_api_operations_total",
		metric.WithDescription("Total number of Google API operations"),
		metric.WithUnit("{operation}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create google_api_operations_total counter: %w", err)
	}

	if m.googleAPIOperationDuration, err = meter.Float64Histogram(
		"google_api_operation_duration_seconds",
		metric.WithDescription("Google API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	); err != nil {
		return nil, fmt.Errorf("failed to create google_api_operation_duration_seconds histogram: %w", err)
	}

	if m.oauthExchangeTotal, err = meter.Int64Counter(
		"oauth_exchange_total",
		metric.WithDescription("Authorization code exchanges by result"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create oauth_exchange_total counter: %w", err)
	}

	if m.oauthRefreshTotal, err = meter.Int64Counter(
		"oauth_refresh_total",
		metric.WithDescription("Access token refreshes by result"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create oauth_refresh_total counter: %w", err)
	}

	if m.gateDecisionsTotal, err = meter.Int64Counter(
		"access_gate_decisions_total",
		metric.WithDescription("Access gate outcomes by decision and reason"),
		metric.WithUnit("{decision}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create access_gate_decisions_total counter: %w", err)
	}

	if m.refreshCoalesced, err = meter.Int64Counter(
		"access_gate_refresh_coalesced_total",
		metric.WithDescription("Refreshes skipped because a concurrent request already refreshed the session"),
		metric.WithUnit("{refresh}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create access_gate_refresh_coalesced_total counter: %w", err)
	}

	if m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	if m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	); err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	if m.summariesTotal, err = meter.Int64Counter(
		"email_summaries_total",
		metric.WithDescription("Email summaries produced by source"),
		metric.WithUnit("{summary}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create email_summaries_total counter: %w", err)
	}

	if m.registryOperationsTotal, err = meter.Int64Counter(
		"server_registry_operations_total",
		metric.WithDescription("Server registry operations by operation and status"),
		metric.WithUnit("{operation}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create server_registry_operations_total counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
// The path should already be normalized with NormalizePath.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordGoogleAPIOperation records a Google API call.
//
// Parameters:
//   - service: gmail, calendar or gemini
//   - operation: list, get, create, search, status, send, generate
//   - status: "success" or "error"
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.googleAPIOperationsTotal == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
	m.googleAPIOperationsTotal.Add(ctx, 1, attrs)
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordOAuthExchange records an authorization code exchange.
func (m *Metrics) RecordOAuthExchange(ctx context.Context, result string) {
	if m == nil || m.oauthExchangeTotal == nil {
		return
	}
	m.oauthExchangeTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordOAuthRefresh records a refresh token grant.
func (m *Metrics) RecordOAuthRefresh(ctx context.Context, result string) {
	if m == nil || m.oauthRefreshTotal == nil {
		return
	}
	m.oauthRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordGateDecision records the outcome of one access gate evaluation.
// reason is empty for ready and refreshed decisions.
func (m *Metrics) RecordGateDecision(ctx context.Context, decision, reason string) {
	if m == nil || m.gateDecisionsTotal == nil {
		return
	}
	m.gateDecisionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrDecision, decision),
		attribute.String(attrReason, reason),
	))
}

// RecordRefreshCoalesced counts a refresh that was not performed because the
// stored bundle was already fresh after taking the session lock.
func (m *Metrics) RecordRefreshCoalesced(ctx context.Context) {
	if m == nil || m.refreshCoalesced == nil {
		return
	}
	m.refreshCoalesced.Add(ctx, 1)
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	)
	m.toolInvocationsTotal.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordSummary records a produced email summary; source is "gemini" or "rules".
func (m *Metrics) RecordSummary(ctx context.Context, source string) {
	if m == nil || m.summariesTotal == nil {
		return
	}
	m.summariesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrSource, source)))
}

// RecordRegistryOperation records a server registry operation.
func (m *Metrics) RecordRegistryOperation(ctx context.Context, operation, status string) {
	if m == nil || m.registryOperationsTotal == nil {
		return
	}
	m.registryOperationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	))
}
