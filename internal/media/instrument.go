package media

import (
	"context"
	"errors"

	"quickblog/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type instrumented struct {
	Host
}

// Instrument wraps h so every call is traced and counted.
func Instrument(h Host) Host {
	return &instrumented{Host: h}
}

// Unwrap returns the underlying host.
func (i *instrumented) Unwrap() Host { return i.Host }

// Opener is implemented by hosts that serve their own assets.
type Opener interface {
	Open(key string) ([]byte, error)
}

// AsOpener returns h, or the host it wraps, as an Opener when it serves assets itself.
func AsOpener(h Host) (Opener, bool) {
	for h != nil {
		if o, ok := h.(Opener); ok {
			return o, true
		}
		w, ok := h.(interface{ Unwrap() Host })
		if !ok {
			return nil, false
		}
		h = w.Unwrap()
	}
	return nil, false
}

func (i *instrumented) Upload(ctx context.Context, in UploadInput) (*Asset, error) {
	ctx, span := observability.GetTraceLayer().TraceMediaOperation(ctx, i.Name(), "upload")
	defer span.End()
	done := observability.TrackMedia("upload")

	asset, err := i.Host.Upload(ctx, in)
	done(err)
	record(span, err)
	if asset != nil {
		span.SetAttributes(attribute.String("media.key", asset.Key), attribute.Int64("media.size", asset.Size))
	}
	return asset, err
}

func (i *instrumented) Details(ctx context.Context, rawURL string) (*Asset, error) {
	ctx, span := observability.GetTraceLayer().TraceMediaOperation(ctx, i.Name(), "details")
	defer span.End()
	done := observability.TrackMedia("details")

	asset, err := i.Host.Details(ctx, rawURL)
	done(err)
	record(span, err)
	return asset, err
}

func (i *instrumented) Delete(ctx context.Context, key string) error {
	ctx, span := observability.GetTraceLayer().TraceMediaOperation(ctx, i.Name(), "delete")
	defer span.End()
	span.SetAttributes(attribute.String("media.key", key))
	done := observability.TrackMedia("delete")

	err := i.Host.Delete(ctx, key)
	done(err)
	record(span, err)
	return err
}

func record(span trace.Span, err error) {
	if err == nil || errors.Is(err, ErrAssetNotFound) {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
