package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Exporters accepted by Options.Exporter.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

// Options configures Instrument.
type Options struct {
	Level slog.Level
	// Format is "text" or "json".
	Format string
	// Exporter is one of the Exporter* constants; empty means none.
	Exporter string
	// Endpoint overrides the OTLP endpoint URL.
	Endpoint string
	// ServiceName is the instrumentation scope of exported records.
	ServiceName string
	// Writer receives local log output; defaults to os.Stderr.
	Writer io.Writer
}

// Instrument installs the default slog logger and the global text map propagator.
// The returned function flushes and stops log export; call it before exiting.
func Instrument(ctx context.Context, opts Options) (func(context.Context) error, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	var handler slog.Handler
	switch opts.Format {
	case "", "text":
		handler = slog.NewTextHandler(w, handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(w, handlerOpts)
	default:
		return nil, fmt.Errorf("unsupported log format: %s", opts.Format)
	}

	shutdown := func(context.Context) error { return nil }

	if opts.Exporter != "" && opts.Exporter != ExporterNone {
		exporter, err := newExporter(ctx, opts)
		if err != nil {
			return nil, err
		}

		processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), severity(opts.Level))
		provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(processor))

		name := opts.ServiceName
		if name == "" {
			name = "finctl"
		}
		handler = fanout{handler, otelslog.NewHandler(name, otelslog.WithLoggerProvider(provider))}
		shutdown = provider.Shutdown
	}

	// W3C Trace Context lets the backend correlate our requests with its own traces
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	slog.SetDefault(slog.New(handler))

	return shutdown, nil
}

func newExporter(ctx context.Context, opts Options) (sdklog.Exporter, error) {
	switch opts.Exporter {
	case ExporterStdout:
		return stdoutlog.New()
	case ExporterOTLPHTTP:
		var exporterOpts []otlploghttp.Option
		if opts.Endpoint != "" {
			exporterOpts = append(exporterOpts, otlploghttp.WithEndpointURL(opts.Endpoint))
		}
		return otlploghttp.New(ctx, exporterOpts...)
	case ExporterOTLPGRPC:
		var exporterOpts []otlploggrpc.Option
		if opts.Endpoint != "" {
			exporterOpts = append(exporterOpts, otlploggrpc.WithEndpointURL(opts.Endpoint))
		}
		return otlploggrpc.New(ctx, exporterOpts...)
	default:
		return nil, fmt.Errorf("unsupported telemetry exporter: %s", opts.Exporter)
	}
}

// severity maps a slog level onto the minimum OpenTelemetry severity.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level >= slog.LevelError:
		return minsev.SeverityError
	case level >= slog.LevelWarn:
		return minsev.SeverityWarn
	case level >= slog.LevelInfo:
		return minsev.SeverityInfo
	default:
		return minsev.SeverityDebug
	}
}
