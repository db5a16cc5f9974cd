package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ActivitiesService reads the platform activity log. All three operations
// are tenant-scoped by the bearer token; the console never widens them.
type ActivitiesService struct {
	c *Client
}

// Summary returns per-type counts and the total since the given instant.
func (s *ActivitiesService) Summary(ctx context.Context, since time.Time) (*SummaryResponse, error) {
	query := url.Values{}
	query.Set("since", since.UTC().Format(time.RFC3339))

	var out SummaryResponse
	if err := s.c.do(ctx, "activities.summary", http.MethodGet, "/v1/activities/summary", query, nil, &out); err != nil {
		return nil, err
	}
	if out.Summary == nil {
		out.Summary = map[string]int{}
	}
	return &out, nil
}

// Timeline returns fixed-width activity buckets since the given instant.
// Bucket boundaries are UTC-aligned on the backend; local re-bucketing is the
// caller's job.
func (s *ActivitiesService) Timeline(ctx context.Context, since time.Time, bucketMinutes int) (*TimelineResponse, error) {
	query := url.Values{}
	query.Set("since", since.UTC().Format(time.RFC3339))
	query.Set("bucket_minutes", strconv.Itoa(bucketMinutes))

	var out TimelineResponse
	if err := s.c.do(ctx, "activities.timeline", http.MethodGet, "/v1/activities/timeline", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListQuery narrows an activity listing. Zero-valued fields are omitted from
// the request.
type ListQuery struct {
	Since time.Time
	Until time.Time
	Type  string
	Limit int
}

// List returns raw activity records matching the query, newest first.
func (s *ActivitiesService) List(ctx context.Context, q ListQuery) (*ListResponse, error) {
	query := url.Values{}
	if !q.Since.IsZero() {
		query.Set("since", q.Since.UTC().Format(time.RFC3339))
	}
	if !q.Until.IsZero() {
		query.Set("until", q.Until.UTC().Format(time.RFC3339))
	}
	if q.Type != "" {
		query.Set("type", q.Type)
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}

	var out ListResponse
	if err := s.c.do(ctx, "activities.list", http.MethodGet, "/v1/activities", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
