package radial

import (
	"math"
	"testing"
	"time"
)

func bp(start time.Time, counts map[string]int) BucketPoint {
	total := 0
	for _, n := range counts {
		total += n
	}
	return BucketPoint{Start: start, Total: total, Counts: counts}
}

func near(a, b float64) bool { return math.Abs(a-b) < 0.01 }

func nodesByKind(lay Layout, kind NodeKind) []Node {
	var out []Node
	for _, n := range lay.Nodes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

var layoutOpts = Options{
	Width:  800,
	Height: 600,
	Now:    time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC),
}

func TestComputeEmptyInput(t *testing.T) {
	lay := Compute(nil, layoutOpts)
	if len(lay.Nodes) != 0 || len(lay.Links) != 0 {
		t.Errorf("expected empty layout, got %d nodes %d links", len(lay.Nodes), len(lay.Links))
	}
	if lay.Width != 800 || lay.Height != 600 {
		t.Errorf("surface = %dx%d", lay.Width, lay.Height)
	}
}

// TestComputeDropsNoiseOnlyBuckets checks heartbeat-only buckets vanish
// while mixed buckets stay, without heartbeat child nodes.
func TestComputeDropsNoiseOnlyBuckets(t *testing.T) {
	buckets := []BucketPoint{
		bp(time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC), map[string]int{"heartbeat": 12}),
		bp(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), map[string]int{"heartbeat": 5, "login": 1}),
	}

	lay := Compute(buckets, layoutOpts)

	timeNodes := nodesByKind(lay, KindTime)
	if len(timeNodes) != 1 {
		t.Fatalf("expected 1 time node, got %d", len(timeNodes))
	}
	if timeNodes[0].Count != 6 {
		t.Errorf("time node count = %d, want the raw bucket total 6", timeNodes[0].Count)
	}

	actNodes := nodesByKind(lay, KindActivity)
	if len(actNodes) != 1 || actNodes[0].ActivityType != "login" {
		t.Errorf("expected a single login child, got %+v", actNodes)
	}
}

func TestComputeAllNoiseYieldsEmpty(t *testing.T) {
	buckets := []BucketPoint{
		bp(time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC), map[string]int{"heartbeat": 3}),
	}
	if lay := Compute(buckets, layoutOpts); len(lay.Nodes) != 0 {
		t.Errorf("expected no nodes, got %d", len(lay.Nodes))
	}
}

// TestComputeSingleBucketTwelveOClock places a lone bucket straight up from
// center on the time ring.
func TestComputeSingleBucketTwelveOClock(t *testing.T) {
	buckets := []BucketPoint{
		bp(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), map[string]int{"login": 1}),
	}

	lay := Compute(buckets, layoutOpts)
	timeNodes := nodesByKind(lay, KindTime)
	if len(timeNodes) != 1 {
		t.Fatalf("expected 1 time node, got %d", len(timeNodes))
	}

	// maxRadius = 600/2 - 60 = 240; time ring at 0.4 * 240 = 96 above center.
	if !near(timeNodes[0].X, 400) || !near(timeNodes[0].Y, 300-96) {
		t.Errorf("position = (%.1f, %.1f), want (400.0, 204.0)", timeNodes[0].X, timeNodes[0].Y)
	}
}

// TestComputeEvenAngularSpread distributes four buckets at quarter turns,
// clockwise from 12 o'clock.
func TestComputeEvenAngularSpread(t *testing.T) {
	var buckets []BucketPoint
	for i := 0; i < 4; i++ {
		buckets = append(buckets,
			bp(time.Date(2024, 3, 15, 8+i, 0, 0, 0, time.UTC), map[string]int{"login": 1}))
	}

	lay := Compute(buckets, layoutOpts)
	timeNodes := nodesByKind(lay, KindTime)
	if len(timeNodes) != 4 {
		t.Fatalf("expected 4 time nodes, got %d", len(timeNodes))
	}

	// Clockwise in screen coordinates: top, right, bottom, left.
	wants := [][2]float64{{400, 204}, {496, 300}, {400, 396}, {304, 300}}
	for i, want := range wants {
		if !near(timeNodes[i].X, want[0]) || !near(timeNodes[i].Y, want[1]) {
			t.Errorf("node %d at (%.1f, %.1f), want (%.1f, %.1f)",
				i, timeNodes[i].X, timeNodes[i].Y, want[0], want[1])
		}
	}
}

func TestComputeDistinctPositions(t *testing.T) {
	var buckets []BucketPoint
	for i := 0; i < 6; i++ {
		buckets = append(buckets,
			bp(time.Date(2024, 3, 15, 8+i, 0, 0, 0, time.UTC), map[string]int{"login": 1}))
	}

	timeNodes := nodesByKind(Compute(buckets, layoutOpts), KindTime)
	for i := 0; i < len(timeNodes); i++ {
		for j := i + 1; j < len(timeNodes); j++ {
			if near(timeNodes[i].X, timeNodes[j].X) && near(timeNodes[i].Y, timeNodes[j].Y) {
				t.Errorf("nodes %d and %d share position (%.1f, %.1f)",
					i, j, timeNodes[i].X, timeNodes[i].Y)
			}
		}
	}
}

func TestComputeRadiusClamps(t *testing.T) {
	buckets := []BucketPoint{
		bp(time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC), map[string]int{"login": 1}),
		bp(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), map[string]int{"message_sent": 50}),
	}

	lay := Compute(buckets, layoutOpts)
	timeNodes := nodesByKind(lay, KindTime)
	if !near(timeNodes[0].R, 10) {
		t.Errorf("small time node r = %.1f, want 10.0", timeNodes[0].R)
	}
	if !near(timeNodes[1].R, 28) {
		t.Errorf("large time node r = %.1f, want clamp at 28.0", timeNodes[1].R)
	}

	actNodes := nodesByKind(lay, KindActivity)
	if !near(actNodes[0].R, 7.5) {
		t.Errorf("small activity node r = %.1f, want 7.5", actNodes[0].R)
	}
	if !near(actNodes[1].R, 18) {
		t.Errorf("large activity node r = %.1f, want clamp at 18.0", actNodes[1].R)
	}
}

// TestComputeTwoLevelTree verifies the link structure: every time node hangs
// off center, every activity node off exactly one time node.
func TestComputeTwoLevelTree(t *testing.T) {
	buckets := []BucketPoint{
		bp(time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC), map[string]int{"login": 2, "message_sent": 1}),
		bp(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), map[string]int{"entity_created": 3}),
	}

	lay := Compute(buckets, layoutOpts)

	if want := len(lay.Nodes) - 1; len(lay.Links) != want {
		t.Errorf("links = %d, want %d (a tree)", len(lay.Links), want)
	}

	kinds := make(map[string]NodeKind, len(lay.Nodes))
	for _, n := range lay.Nodes {
		kinds[n.ID] = n.Kind
	}

	parents := map[string]int{}
	for _, l := range lay.Links {
		parents[l.Target]++
		switch kinds[l.Target] {
		case KindTime:
			if l.Source != "center" {
				t.Errorf("time node %s linked from %s, want center", l.Target, l.Source)
			}
		case KindActivity:
			if kinds[l.Source] != KindTime {
				t.Errorf("activity node %s linked from %s kind %s", l.Target, l.Source, kinds[l.Source])
			}
		}
	}
	for id, n := range parents {
		if n != 1 {
			t.Errorf("node %s has %d parents", id, n)
		}
	}
}

// TestComputeChildArc fans three children across a thirty-degree arc
// centered on the parent, alphabetically by type.
func TestComputeChildArc(t *testing.T) {
	buckets := []BucketPoint{
		bp(time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC),
			map[string]int{"message_sent": 1, "login": 1, "entity_created": 1}),
	}

	lay := Compute(buckets, layoutOpts)
	actNodes := nodesByKind(lay, KindActivity)
	if len(actNodes) != 3 {
		t.Fatalf("expected 3 activity nodes, got %d", len(actNodes))
	}

	wantOrder := []string{"entity_created", "login", "message_sent"}
	for i, want := range wantOrder {
		if actNodes[i].ActivityType != want {
			t.Errorf("child %d type = %q, want %q", i, actNodes[i].ActivityType, want)
		}
	}

	// Parent sits at 12 o'clock; the middle child shares its angle on the
	// outer ring: 0.75 * 240 = 180 above center.
	if !near(actNodes[1].X, 400) || !near(actNodes[1].Y, 120) {
		t.Errorf("middle child at (%.1f, %.1f), want (400.0, 120.0)", actNodes[1].X, actNodes[1].Y)
	}

	// Flanking children are fifteen degrees off on either side.
	halfArc := math.Pi / 12
	wantX := 400 + math.Cos(-math.Pi/2-halfArc)*180
	wantY := 300 + math.Sin(-math.Pi/2-halfArc)*180
	if !near(actNodes[0].X, wantX) || !near(actNodes[0].Y, wantY) {
		t.Errorf("first child at (%.1f, %.1f), want (%.1f, %.1f)",
			actNodes[0].X, actNodes[0].Y, wantX, wantY)
	}
}

func TestComputeSurfaceBounds(t *testing.T) {
	var buckets []BucketPoint
	for i := 0; i < 8; i++ {
		buckets = append(buckets,
			bp(time.Date(2024, 3, 15, 8+i, 0, 0, 0, time.UTC),
				map[string]int{"login": 1, "message_sent": 2}))
	}

	// The shorter dimension bounds the rings.
	lay := Compute(buckets, Options{Width: 1000, Height: 600, Now: layoutOpts.Now})
	for _, n := range lay.Nodes {
		if n.X < 0 || n.X > 1000 || n.Y < 0 || n.Y > 600 {
			t.Errorf("node %s at (%.1f, %.1f) outside the surface", n.ID, n.X, n.Y)
		}
	}

	for _, n := range nodesByKind(lay, KindActivity) {
		dist := math.Hypot(n.X-500, n.Y-300)
		if !near(dist, 180) { // 0.75 * (600/2 - 60)
			t.Errorf("activity node %s at distance %.1f, want 180.0", n.ID, dist)
		}
	}
}

func TestComputeCenterLabel(t *testing.T) {
	buckets := []BucketPoint{
		bp(time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC), map[string]int{"login": 1}),
	}

	lay := Compute(buckets, layoutOpts)
	center := nodesByKind(lay, KindCenter)
	if len(center) != 1 {
		t.Fatalf("expected 1 center node, got %d", len(center))
	}
	if center[0].Label != "15 Mar" {
		t.Errorf("center label = %q, want %q", center[0].Label, "15 Mar")
	}
	if !near(center[0].X, 400) || !near(center[0].Y, 300) {
		t.Errorf("center at (%.1f, %.1f), want (400.0, 300.0)", center[0].X, center[0].Y)
	}
}

func TestComputeDefaultSurface(t *testing.T) {
	lay := Compute(nil, Options{})
	if lay.Width != 800 || lay.Height != 600 {
		t.Errorf("default surface = %dx%d, want 800x600", lay.Width, lay.Height)
	}
}
