package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	spanIteration = "rlm.loop.iteration"
	spanSubAgent  = "rlm.subagent.run"
	spanREPLExec  = "rlm.repl.execute"

	attrTaskID    = "rlm.task_id"
	attrIteration = "rlm.iteration"
	attrSubCall   = "rlm.sub_call_index"
	attrStatus    = "rlm.status"
	attrModel     = "rlm.model"
)

// StartIterationSpan opens a span covering one Loop Controller iteration
// (spec.md §4.1 steps 1-8).
func StartIterationSpan(ctx context.Context, taskID string, iteration int) (context.Context, trace.Span) {
	return otel.Tracer(tracerScope).Start(ctx, spanIteration, trace.WithAttributes(
		attribute.String(attrTaskID, taskID),
		attribute.Int(attrIteration, iteration),
	))
}

// StartSubAgentSpan opens a span covering one sub-agent mini-RLM run
// (spec.md §4.1 recursion).
func StartSubAgentSpan(ctx context.Context, taskID string, subCallIndex int) (context.Context, trace.Span) {
	return otel.Tracer(tracerScope).Start(ctx, spanSubAgent, trace.WithAttributes(
		attribute.String(attrTaskID, taskID),
		attribute.Int(attrSubCall, subCallIndex),
	))
}

// StartREPLSpan opens a span covering one code block's evaluation.
func StartREPLSpan(ctx context.Context, model string) (context.Context, trace.Span) {
	return otel.Tracer(tracerScope).Start(ctx, spanREPLExec, trace.WithAttributes(
		attribute.String(attrModel, model),
	))
}

// MarkResult records err (if any) on span and sets a status attribute, the
// way the teacher's markSpanResult does.
func MarkResult(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(attrStatus, "error"))
		return
	}
	span.SetStatus(codes.Ok, "")
	span.SetAttributes(attribute.String(attrStatus, "success"))
}
