// Package telemetry traces and counts the bot's Octane traffic with
// OpenTelemetry. It is off unless the telemetry.enabled setting is true;
// spans and metrics then carry the Octane server, shared space and
// workspace the bot is attached to, so several bots can report to one
// backend.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationScope = "github.com/octanebot/octanebot"

// Resource attribute keys identifying the bot's workspace.
const (
	AttrBotName     = attribute.Key("octanebot.name")
	AttrOctaneHost  = attribute.Key("octane.host")
	AttrSharedSpace = attribute.Key("octane.shared_space")
	AttrWorkspace   = attribute.Key("octane.workspace")
)

// ErrNoExporter reports telemetry enabled with nowhere to send it.
var ErrNoExporter = errors.New("telemetry enabled but no exporter configured (set telemetry.stdout or telemetry.endpoint)")

// Options configure Init.
type Options struct {
	Enabled  bool
	Stdout   bool   // pretty-print spans and metrics to stdout
	Endpoint string // OTLP/HTTP collector, host:port

	Service Service

	// Exporter and Reader receive spans and metrics in addition to the
	// configured exporters. Spans are exported synchronously.
	Exporter sdktrace.SpanExporter
	Reader   sdkmetric.Reader
}

// Service identifies the running bot.
type Service struct {
	Version     string
	BotName     string
	OctaneHost  string
	SharedSpace string
	Workspace   string
}

func (s Service) attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		semconv.ServiceNameKey.String("octanebot"),
		semconv.ServiceVersionKey.String(s.Version),
		AttrBotName.String(s.BotName),
		AttrOctaneHost.String(s.OctaneHost),
		AttrSharedSpace.String(s.SharedSpace),
		AttrWorkspace.String(s.Workspace),
	}
}

func (o Options) hasExporter() bool {
	return o.Stdout || o.Endpoint != "" || o.Exporter != nil || o.Reader != nil
}

var (
	enabled atomic.Bool

	mu          sync.Mutex
	shutdownFns []func(context.Context) error
)

// Enabled reports whether Init installed real providers.
func Enabled() bool { return enabled.Load() }

// Init installs the global providers. When opts.Enabled is false it installs
// no-op providers.
func Init(ctx context.Context, opts Options) error {
	if !opts.Enabled {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		enabled.Store(false)
		return nil
	}
	if !opts.hasExporter() {
		return ErrNoExporter
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(opts.Service.attributes()...),
		resource.WithHost(),
	)
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	tp, err := newTracerProvider(ctx, opts, res)
	if err != nil {
		return fmt.Errorf("telemetry: trace provider: %w", err)
	}
	mp, err := newMeterProvider(ctx, opts, res)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return fmt.Errorf("telemetry: metric provider: %w", err)
	}
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	mu.Lock()
	shutdownFns = append(shutdownFns, tp.Shutdown, mp.Shutdown)
	mu.Unlock()
	enabled.Store(true)
	return nil
}

func newTracerProvider(ctx context.Context, opts Options, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if opts.Stdout {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}
	if opts.Endpoint != "" {
		exp, err := buildOTLPTraceExporter(ctx, opts.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}
	if opts.Exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithSyncer(opts.Exporter))
	}
	return sdktrace.NewTracerProvider(tpOpts...), nil
}

func newMeterProvider(ctx context.Context, opts Options, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if opts.Stdout {
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, err
		}
		mpOpts = append(mpOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(15*time.Second))))
	}
	if opts.Endpoint != "" {
		exp, err := buildOTLPMetricExporter(ctx, opts.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("otlp metric exporter: %w", err)
		}
		mpOpts = append(mpOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(30*time.Second))))
	}
	if opts.Reader != nil {
		mpOpts = append(mpOpts, sdkmetric.WithReader(opts.Reader))
	}
	return sdkmetric.NewMeterProvider(mpOpts...), nil
}

// Tracer returns a tracer with the given instrumentation name (or the global scope).
func Tracer(name string) trace.Tracer {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Tracer(name)
}

// Meter returns a meter with the given instrumentation name (or the global scope).
func Meter(name string) metric.Meter {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Meter(name)
}

// Shutdown flushes pending spans and metrics and stops the providers.
func Shutdown(ctx context.Context) {
	mu.Lock()
	fns := shutdownFns
	shutdownFns = nil
	mu.Unlock()
	for _, fn := range fns {
		_ = fn(ctx)
	}
	enabled.Store(false)
}
