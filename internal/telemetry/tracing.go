package telemetry

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/YuminosukeSato/findhome/pkg/errors"
)

// TracerName is the instrumentation scope of every findhome span.
const TracerName = "github.com/YuminosukeSato/findhome"

// Tracing owns the tracer provider of a run.
type Tracing struct {
	Tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	out      io.Closer
}

// NewTracing exports spans as JSON lines to path, or to stdout when path is
// "-". An empty path returns a no-op tracer.
func NewTracing(path, runID string) (*Tracing, error) {
	if path == "" {
		return &Tracing{Tracer: noop.NewTracerProvider().Tracer(TracerName)}, nil
	}

	var w io.Writer = os.Stdout
	var closer io.Closer
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return nil, errors.NewDataAccessError("telemetry.NewTracing", path, "cannot create trace file", err)
		}
		w, closer = f, f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, errors.Wrap(err, "create trace exporter")
	}
	res := resource.NewSchemaless(
		attribute.String("service.name", "findhome"),
		attribute.String("findhome.run_id", runID),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	return &Tracing{Tracer: tp.Tracer(TracerName), provider: tp, out: closer}, nil
}

// Shutdown flushes pending spans and closes the output file.
func (t *Tracing) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	err := t.provider.Shutdown(ctx)
	if t.out != nil {
		if cerr := t.out.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
