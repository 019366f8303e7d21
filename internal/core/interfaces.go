package core

import (
	"context"

	"github.com/razornet-sec/smartlist/pkg/types"
)

// SelectionStore persists anonymized recommendation events. Implementations
// must be append-only: records are never mutated after Append returns.
type SelectionStore interface {
	Append(ctx context.Context, anonymized types.AnonymizedContext, result types.RecordedResult) (string, error)
	Query(ctx context.Context, daysBack int, limit int, filters types.QueryFilters) ([]types.SelectionRecord, error)
	Summary(ctx context.Context) (*types.HistorySummary, error)
	Close() error
}

type Telemetry interface {
	RecordRecommendation(tier types.ConfidenceTier, duration float64, fallback bool)
	RecordAppendError()
	Close() error
}

// NoopTelemetry satisfies Telemetry when the exporter is disabled.
type NoopTelemetry struct{}

func (NoopTelemetry) RecordRecommendation(tier types.ConfidenceTier, duration float64, fallback bool) {
}
func (NoopTelemetry) RecordAppendError() {}
func (NoopTelemetry) Close() error       { return nil }

var _ Telemetry = NoopTelemetry{}

// Recommender is the in-process contract scan plugins consume.
type Recommender interface {
	Recommend(ctx context.Context, sc types.ScoringContext) (*types.ScoringResult, error)
}
