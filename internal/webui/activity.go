package webui

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/diptoe/collective-memory-sub000/internal/api"
	"github.com/diptoe/collective-memory-sub000/internal/radial"
	"github.com/diptoe/collective-memory-sub000/internal/timeline"
)

// parseRangeParam reads ?range=, defaulting to today.
func parseRangeParam(r *http.Request) (timeline.Range, error) {
	raw := r.URL.Query().Get("range")
	if raw == "" {
		return timeline.RangeToday, nil
	}
	return timeline.ParseRange(raw)
}

// handleSnapshot serves one synchronous feed snapshot. Fetch trouble
// degrades to an empty snapshot; the page shows the quiet state either way.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRangeParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := s.now().In(s.location)
	window := rng.Window(now)

	snap, err := timeline.Fetch(r.Context(), s.client.Activities, rng, window, s.location, s.recentLimit)
	if err != nil {
		s.logger.Warn("snapshot fetch failed",
			zap.String("range", rng.String()), zap.Error(err))
		snap = timeline.Snapshot{
			Range:     rng,
			Window:    window,
			Buckets:   []timeline.Bucket{},
			Summary:   map[string]int{},
			Recent:    []api.Activity{},
			FetchedAt: now,
		}
	}

	w.Header().Set("Cache-Control", "no-store")
	s.writeJSON(w, http.StatusOK, snap)
}

// handleRadialSVG renders the activity diagram server-side. Like the
// snapshot, backend trouble degrades to the empty diagram.
func (s *Server) handleRadialSVG(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRangeParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	width, _ := strconv.Atoi(q.Get("w"))
	height, _ := strconv.Atoi(q.Get("h"))

	now := s.now().In(s.location)
	window := rng.Window(now)

	var buckets []timeline.Bucket
	snap, err := timeline.Fetch(r.Context(), s.client.Activities, rng, window, s.location, 0)
	if err != nil {
		s.logger.Warn("radial fetch failed",
			zap.String("range", rng.String()), zap.Error(err))
	} else {
		buckets = snap.Buckets
	}

	svg := s.renderRadial(buckets, rng, width, height, now)

	w.Header().Set("Content-Type", "image/svg+xml; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write([]byte(svg))
}

// renderRadial converts feed buckets into the rendered diagram.
func (s *Server) renderRadial(buckets []timeline.Bucket, rng timeline.Range, width, height int, now time.Time) string {
	points := make([]radial.BucketPoint, len(buckets))
	for i, b := range buckets {
		points[i] = radial.BucketPoint{Start: b.Start, Total: b.Total, Counts: b.Counts}
	}

	lay := radial.Compute(points, radial.Options{
		Width:  width,
		Height: height,
		Now:    now,
		ByDay:  rng == timeline.RangeWeek,
	})
	return radial.Render(lay)
}

// handleDrilldown lists the activities behind one diagram node.
func (s *Server) handleDrilldown(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRangeParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	bucketStart, err := time.Parse(time.RFC3339, q.Get("bucket"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bucket must be an RFC 3339 timestamp")
		return
	}
	activityType := q.Get("type")
	if activityType == "" {
		s.writeError(w, http.StatusBadRequest, "type is required")
		return
	}

	activities := timeline.Drilldown(r.Context(), s.client.Activities, timeline.DrillQuery{
		BucketStart:  bucketStart,
		Range:        rng,
		ActivityType: activityType,
	}, s.logger)

	w.Header().Set("Cache-Control", "no-store")
	s.writeJSON(w, http.StatusOK, map[string]any{"activities": activities})
}
