package infra

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/tnqbao/gau-share-service"

type Metrics struct {
	Uploads            metric.Int64Counter
	UploadFailures     metric.Int64Counter
	Downloads          metric.Int64Counter
	DownloadRejections metric.Int64Counter
	BlobMissing        metric.Int64Counter
	ReapedEntries      metric.Int64Counter
}

func InitMetrics() (*Metrics, error) {
	return NewMetrics(otel.Meter(meterName))
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)

	if m.Uploads, err = meter.Int64Counter("share.uploads", metric.WithDescription("Files stored")); err != nil {
		return nil, err
	}
	if m.UploadFailures, err = meter.Int64Counter("share.upload_failures", metric.WithDescription("Files rejected or failed during upload")); err != nil {
		return nil, err
	}
	if m.Downloads, err = meter.Int64Counter("share.downloads", metric.WithDescription("Download credits consumed")); err != nil {
		return nil, err
	}
	if m.DownloadRejections, err = meter.Int64Counter("share.download_rejections", metric.WithDescription("Redemptions refused, by reason")); err != nil {
		return nil, err
	}
	if m.BlobMissing, err = meter.Int64Counter("share.blob_missing", metric.WithDescription("Entries whose blob is gone")); err != nil {
		return nil, err
	}
	if m.ReapedEntries, err = meter.Int64Counter("share.reaped_entries", metric.WithDescription("Expired entries and orphan blobs removed")); err != nil {
		return nil, err
	}

	return &m, nil
}

func (m *Metrics) RecordRejection(ctx context.Context, reason string) {
	m.DownloadRejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) RecordReaped(ctx context.Context, kind string, n int) {
	if n <= 0 {
		return
	}
	m.ReapedEntries.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
}
