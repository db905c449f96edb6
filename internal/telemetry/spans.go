package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/roach88/runtrace/internal/trace"
)

// Attribute keys set on exported spans.
const (
	AttrRunID    = attribute.Key("runtrace.run_id")
	AttrStatus   = attribute.Key("runtrace.status")
	AttrStepID   = attribute.Key("runtrace.step_id")
	AttrNodeID   = attribute.Key("runtrace.node_id")
	AttrNodeType = attribute.Key("runtrace.node_type")
	AttrPath     = attribute.Key("runtrace.path")
)

// NewStdoutProvider returns a tracer provider that writes spans to w as
// they end.
func NewStdoutProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter)), nil
}

// ExportSpans emits one root span for the run and one child span per
// visible step, timed by the trace timestamps (milliseconds). Activity
// items become span events on their step. Error entries mark the root span
// as failed. Returns the number of spans emitted.
func ExportSpans(ctx context.Context, tracer oteltrace.Tracer, runID string, snap *trace.Snapshot) int {
	start, end := runBounds(snap)

	title := "run"
	if snap.Graph != nil && snap.Graph.Title != "" {
		title = snap.Graph.Title
	}
	ctx, root := tracer.Start(ctx, title,
		oteltrace.WithTimestamp(millis(start)),
		oteltrace.WithAttributes(
			AttrRunID.String(runID),
			AttrStatus.String(string(snap.Status)),
		),
	)
	spans := 1

	for _, step := range snap.Steps() {
		if step.Hidden {
			continue
		}
		_, span := tracer.Start(ctx, step.Title(),
			oteltrace.WithTimestamp(millis(step.Start)),
			oteltrace.WithAttributes(
				AttrStepID.String(step.ID),
				AttrNodeID.String(step.Descriptor.ID),
				AttrNodeType.String(step.Descriptor.Type),
			),
		)
		for _, item := range step.Activity {
			span.AddEvent(string(item.Kind), oteltrace.WithAttributes(
				AttrPath.String(item.Path.ID()),
				attribute.String("description", item.Description),
			))
		}
		stepEnd := end
		if step.End != nil {
			stepEnd = *step.End
		}
		span.End(oteltrace.WithTimestamp(millis(stepEnd)))
		spans++
	}

	for _, e := range snap.Errors() {
		root.RecordError(errors.New(trace.FormatError(e.Error)),
			oteltrace.WithAttributes(AttrPath.String(e.Path.ID())))
		root.SetStatus(codes.Error, e.Error.Message)
	}

	root.End(oteltrace.WithTimestamp(millis(end)))
	return spans
}

// runBounds returns the earliest step start and the latest known end.
func runBounds(snap *trace.Snapshot) (int64, int64) {
	var start, end int64
	first := true
	for _, step := range snap.Steps() {
		if first || step.Start < start {
			start = step.Start
		}
		first = false
		end = max(end, step.Start)
		if step.End != nil {
			end = max(end, *step.End)
		}
	}
	for _, edge := range snap.Edges() {
		if edge.End != nil {
			end = max(end, *edge.End)
		}
	}
	return start, max(start, end)
}

func millis(ms int64) time.Time {
	return time.UnixMilli(ms)
}
