package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestCacheMeta_Names(t *testing.T) {
	tests := []struct {
		name     string
		meta     CacheMeta
		wantID   string
		wantSpan string
	}{
		{
			name:     "with namespace",
			meta:     CacheMeta{Namespace: "tenant-a", Name: "scores"},
			wantID:   "tenant-a.scores",
			wantSpan: "freshcache.fetch.tenant-a.scores",
		},
		{
			name:     "without namespace",
			meta:     CacheMeta{Name: "scores"},
			wantID:   "scores",
			wantSpan: "freshcache.fetch.scores",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.meta.ID(); got != tc.wantID {
				t.Errorf("ID() = %q, want %q", got, tc.wantID)
			}
			if got := tc.meta.SpanName(); got != tc.wantSpan {
				t.Errorf("SpanName() = %q, want %q", got, tc.wantSpan)
			}
		})
	}
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[string]attribute.Value {
	m := make(map[string]attribute.Value)
	for _, a := range s.Attributes() {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestTracer_SpanAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tr := NewTracer(tp.Tracer("test"))

	meta := CacheMeta{Namespace: "tenant-a", Name: "scores", Kind: "cache"}
	_, span := tr.StartSpan(context.Background(), meta, "abc123")
	tr.EndSpan(span, nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name() != "freshcache.fetch.tenant-a.scores" {
		t.Errorf("span name = %q", s.Name())
	}
	if s.Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", s.Status().Code)
	}

	attrs := spanAttrs(s)
	if v := attrs["cache.key"]; v.AsString() != "abc123" {
		t.Errorf("cache.key = %v", v)
	}
	if v := attrs["cache.namespace"]; v.AsString() != "tenant-a" {
		t.Errorf("cache.namespace = %v", v)
	}
	if v := attrs["cache.fetch.error"]; v.AsBool() {
		t.Error("cache.fetch.error = true, want false")
	}
}

func TestTracer_EndSpanWithError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tr := NewTracer(tp.Tracer("test"))

	_, span := tr.StartSpan(context.Background(), CacheMeta{Name: "scores"}, "k")
	tr.EndSpan(span, errors.New("classifier unavailable"))

	s := recorder.Ended()[0]
	if s.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", s.Status().Code)
	}
	if s.Status().Description != "classifier unavailable" {
		t.Errorf("description = %q", s.Status().Description)
	}
	if v := spanAttrs(s)["cache.fetch.error"]; !v.AsBool() {
		t.Error("cache.fetch.error = false, want true")
	}
	if len(s.Events()) == 0 {
		t.Error("expected a recorded error event")
	}
}

func TestNopTracer(t *testing.T) {
	tr := NopTracer()
	ctx, span := tr.StartSpan(context.Background(), CacheMeta{Name: "x"}, "k")
	if ctx == nil {
		t.Fatal("nil context")
	}
	tr.EndSpan(span, errors.New("ignored"))
}
