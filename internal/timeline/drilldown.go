package timeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/diptoe/collective-memory-sub000/internal/api"
)

// DrillLimit caps how many raw events one drill-down fetch returns.
const DrillLimit = 100

// DrillQuery identifies one activity node in the diagram: the bucket it
// belongs to and the activity type it represents.
type DrillQuery struct {
	BucketStart  time.Time
	Range        Range
	ActivityType string
}

// Drilldown fetches the raw events behind one activity node: the node's
// exact bucket span and type, up to DrillLimit records. A failed fetch
// degrades to an empty result and a log line; callers never see an error.
func Drilldown(ctx context.Context, backend Backend, q DrillQuery, logger *zap.Logger) []api.Activity {
	if logger == nil {
		logger = zap.NewNop()
	}

	res, err := backend.List(ctx, api.ListQuery{
		Since: q.BucketStart,
		Until: q.BucketStart.Add(q.Range.BucketDuration()),
		Type:  q.ActivityType,
		Limit: DrillLimit,
	})
	if err != nil {
		logger.Warn("drill-down fetch failed",
			zap.Time("bucket", q.BucketStart),
			zap.String("type", q.ActivityType),
			zap.Error(err))
		return []api.Activity{}
	}
	if res.Activities == nil {
		return []api.Activity{}
	}
	return res.Activities
}
