package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/patientsim/internal/observability/metrics"
)

var providerTracer = otel.Tracer("patientsim.internal.llm")

type instrumentedClient struct {
	next    Client
	family  Family
	metrics *metrics.ProviderMetrics
	tracer  trace.Tracer
}

// Instrument wraps client with a tracing span and call metrics. m may be nil.
func Instrument(client Client, family Family, m *metrics.ProviderMetrics) Client {
	if client == nil {
		return nil
	}
	return &instrumentedClient{next: client, family: family, metrics: m, tracer: providerTracer}
}

func (c *instrumentedClient) Complete(ctx context.Context, req Request) (Response, error) {
	ctx, span := c.tracer.Start(ctx, "llm.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("patientsim.llm.family", string(c.family)),
		attribute.String("patientsim.llm.model", req.Model),
		attribute.Int("patientsim.llm.messages", len(req.Messages)),
	)

	start := time.Now()
	resp, err := c.next.Complete(ctx, req)
	c.metrics.ObserveCall(string(c.family), err == nil, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return Response{}, err
	}
	if span.IsRecording() {
		span.SetAttributes(attribute.Int("patientsim.llm.output_tokens", int(resp.Usage.OutputTokens)))
	}
	return resp, nil
}
