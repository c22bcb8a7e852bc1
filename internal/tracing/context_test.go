package tracing

import (
	"context"
	"testing"
)

func TestNewTraceID(t *testing.T) {
	id1 := NewTraceID()
	id2 := NewTraceID()

	if id1 == "" {
		t.Error("NewTraceID returned empty string")
	}
	if id1 == id2 {
		t.Error("NewTraceID returned duplicate IDs")
	}
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithRunID(ctx, "run-1")
	ctx = WithSessionID(ctx, "session-1")

	tc := FromContext(ctx)
	if tc.TraceID != "trace-1" || tc.RunID != "run-1" || tc.SessionID != "session-1" {
		t.Errorf("unexpected trace context: %+v", tc)
	}
}

func TestEmptyContext(t *testing.T) {
	tc := FromContext(context.Background())
	if tc.TraceID != "" || tc.RunID != "" || tc.SessionID != "" {
		t.Errorf("expected empty trace context, got %+v", tc)
	}
}

func TestNewRunContext(t *testing.T) {
	t.Run("starts a trace when missing", func(t *testing.T) {
		ctx := NewRunContext(context.Background())
		if GetTraceID(ctx) == "" {
			t.Error("expected a trace ID")
		}
		if GetRunID(ctx) == "" {
			t.Error("expected a run ID")
		}
	})

	t.Run("keeps an existing trace", func(t *testing.T) {
		parent := WithTraceID(context.Background(), "trace-keep")
		first := NewRunContext(parent)
		second := NewRunContext(parent)

		if GetTraceID(first) != "trace-keep" {
			t.Errorf("trace ID changed: %s", GetTraceID(first))
		}
		if GetRunID(first) == GetRunID(second) {
			t.Error("runs must get distinct IDs")
		}
	})
}

func TestNewRequestContext(t *testing.T) {
	ctx := NewRequestContext(context.Background())
	if GetTraceID(ctx) == "" {
		t.Error("expected a trace ID")
	}
}

func TestStartSpan_SetsTraceID(t *testing.T) {
	if err := Init(Options{ServiceName: "codelet-test", Version: "test"}); err != nil {
		t.Fatalf("init: %v", err)
	}

	ctx, span := StartSpan(context.Background(), "codelet.test", "test.span")
	defer span.End()

	if GetTraceID(ctx) == "" {
		t.Error("StartSpan should record the span's trace ID")
	}
}

func TestStartSpan_KeepsExistingTraceID(t *testing.T) {
	ctx := WithSessionID(WithTraceID(context.Background(), "req-1"), "sess-1")

	ctx, span := StartSpan(ctx, "codelet.test", "test.span")
	defer span.End()

	if got := GetTraceID(ctx); got != "req-1" {
		t.Errorf("expected trace ID req-1, got %q", got)
	}
}

func TestRecordError_Nil(t *testing.T) {
	_, span := StartSpan(context.Background(), "codelet.test", "test.span")
	defer span.End()

	// must not panic or mark the span
	RecordError(span, nil)
}
