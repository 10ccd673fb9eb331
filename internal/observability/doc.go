// Package observability configures process-wide logging and trace propagation.
//
// Logs always go to a local slog handler (text or JSON). Optionally, log records are
// also exported through the OpenTelemetry log SDK to stdout or an OTLP collector,
// filtered to the same minimum level.
package observability
