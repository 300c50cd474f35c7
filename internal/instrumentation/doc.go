// Package instrumentation provides OpenTelemetry metrics, tracing and the
// auth audit trail for mailcal.
//
// # Metrics
//
// HTTP:
//   - http_requests_total, http_request_duration_seconds (method, path, status)
//
// Google APIs:
//   - google_api_operations_total, google_api_operation_duration_seconds (service, operation, status)
//
// OAuth:
//   - oauth_exchange_total (result)
//   - oauth_refresh_total (result)
//   - access_gate_decisions_total (decision, reason)
//   - access_gate_refresh_coalesced_total
//
// Other:
//   - mcp_tool_invocations_total, mcp_tool_duration_seconds (tool, status)
//   - email_summaries_total (source)
//   - server_registry_operations_total (operation, status)
//
// # Tracing
//
// Spans are created for token endpoint calls (oauth.token.<grant>), Google API
// calls (google.<service>.<operation>) and MCP tools (tool.<name>).
//
// # Configuration
//
//   - INSTRUMENTATION_ENABLED (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE
//   - OTEL_TRACES_SAMPLER_ARG (default: 0.1)
//   - OTEL_SERVICE_NAME (default: mailcal)
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_SESSION_IDS
package instrumentation
