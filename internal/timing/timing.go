// Package timing records how long each ingestion stage takes. The
// samples feed the average-duration figures on the stats endpoint.
package timing

import (
	"context"
	"time"

	"github.com/ctxeco/backend/pkg/logger"
	"github.com/ctxeco/backend/pkg/store"
)

// Stage names as stored with each sample.
const (
	StageClassify = "classify"
	StageExtract  = "extract"
	StageEmbed    = "embed"
	StagePersist  = "persist"
	StageGraph    = "graph"
)

// Sink persists timing samples and serves their aggregates. The storage
// layer satisfies it.
type Sink interface {
	SaveStageTiming(ctx context.Context, t store.StageTiming) error
	StageAverages(ctx context.Context, tenantID string) (map[string]float64, error)
}

// Record persists one stage duration sample. Amount counts the items
// the stage handled, such as chunks embedded. Timing is operational
// bookkeeping and never fails the pipeline; errors are logged and
// dropped.
func Record(ctx context.Context, sink Sink, stage, tenantID string, amount int, d time.Duration) {
	if sink == nil {
		return
	}
	err := sink.SaveStageTiming(ctx, store.StageTiming{
		Stage:    stage,
		Amount:   amount,
		Duration: d,
		TenantID: tenantID,
	})
	if err != nil {
		logger.Warn("[Timing] Failed to save stage timing",
			"stage", stage, "error", err)
	}
}

// Averages returns the mean duration in milliseconds per stage for one
// tenant. Stages without samples are absent from the map.
func Averages(ctx context.Context, sink Sink, tenantID string) (map[string]float64, error) {
	return sink.StageAverages(ctx, tenantID)
}
