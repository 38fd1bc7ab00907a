package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordingLayer(t *testing.T) (*TraceLayer, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewTraceLayer(tp.Tracer("test")), recorder
}

func attrMap(kvs []attribute.KeyValue) map[string]string {
	out := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}

func TestTraceLayer_MediaOperation(t *testing.T) {
	layer, recorder := recordingLayer(t)

	ctx, span := layer.TraceMediaOperation(context.Background(), "s3", "upload")
	AddTraceAttributesToContext(ctx, attribute.String("blog.id", "abc"))
	RecordErrorInContext(ctx, errors.New("timeout"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "media.upload", ended[0].Name())
	attrs := attrMap(ended[0].Attributes())
	assert.Equal(t, "s3", attrs["media.host"])
	assert.Equal(t, "abc", attrs["blog.id"])
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Len(t, ended[0].Events(), 1)
}

func TestTraceLayer_RepositoryMethod(t *testing.T) {
	layer, recorder := recordingLayer(t)

	_, span := layer.TraceRepositoryMethod(context.Background(), "GetBySlug", "posts")
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "repository.GetBySlug", ended[0].Name())
	assert.Equal(t, "posts", attrMap(ended[0].Attributes())["db.table"])
}

func TestRecordErrorInContext_NoSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordErrorInContext(context.Background(), errors.New("boom"))
		RecordErrorInContext(context.Background(), nil)
	})
}

func TestTrackMedia(t *testing.T) {
	before := testutil.ToFloat64(MediaOperations.WithLabelValues("ping", "error"))
	TrackMedia("ping")(errors.New("down"))
	TrackMedia("ping")(nil)

	assert.Equal(t, before+1, testutil.ToFloat64(MediaOperations.WithLabelValues("ping", "error")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(MediaOperations.WithLabelValues("ping", "success")), 1.0)
}

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "quickblog-test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.NotNil(t, Tracer)
}
