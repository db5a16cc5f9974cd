package radial

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// NoiseType is the activity type excluded from the diagram by default.
// Heartbeats arrive every few seconds per connected agent and would drown
// every other signal as same-sized noise nodes.
const NoiseType = "heartbeat"

const (
	// Ring radii as fractions of the usable radius.
	timeRingFactor     = 0.4
	activityRingFactor = 0.75

	// edgeMargin keeps the outer ring clear of the surface border.
	edgeMargin = 60.0

	// childArc is the angular spread of one time node's children.
	childArc = math.Pi / 6

	centerRadius = 26.0
)

// Options tunes one layout pass.
type Options struct {
	// Width and Height of the rendering surface in pixels. Values below
	// 1 fall back to 800x600.
	Width  int
	Height int

	// Now labels the center node with the current local date.
	Now time.Time

	// ByDay switches time-node labels from hour to day form (week view).
	ByDay bool

	// NoiseType overrides the excluded activity type. Empty means
	// NoiseType.
	NoiseType string
}

// Compute positions the diagram for the given buckets. It is a pure
// function of its inputs: no layout state is kept between passes.
//
// Buckets whose only events are the noise type are dropped. The remaining
// buckets are spread evenly around the time ring in chronological order,
// starting at 12 o'clock and proceeding clockwise. Each bucket's non-noise
// activity types become child nodes fanned across a fixed arc centered on
// their parent's angle.
func Compute(buckets []BucketPoint, opts Options) Layout {
	width, height := opts.Width, opts.Height
	if width < 1 {
		width = 800
	}
	if height < 1 {
		height = 600
	}
	noise := opts.NoiseType
	if noise == "" {
		noise = NoiseType
	}

	lay := Layout{Width: width, Height: height}

	kept := make([]BucketPoint, 0, len(buckets))
	for _, b := range buckets {
		if signalCount(b, noise) > 0 {
			kept = append(kept, b)
		}
	}
	if len(kept) == 0 {
		return lay
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Start.Before(kept[j].Start) })

	maxRadius := float64(min(width, height))/2 - edgeMargin
	if maxRadius < 0 {
		maxRadius = 0
	}

	cx := float64(width) / 2
	cy := float64(height) / 2

	lay.Nodes = append(lay.Nodes, Node{
		ID:    "center",
		Label: opts.Now.Format("2 Jan"),
		Kind:  KindCenter,
		X:     cx,
		Y:     cy,
		R:     centerRadius,
	})

	// One-bucket layouts still land at 12 o'clock; the divisor guard keeps
	// the step finite.
	step := 2 * math.Pi / float64(max(len(kept), 1))

	for i, b := range kept {
		angle := -math.Pi/2 + float64(i)*step

		timeNode := Node{
			ID:        fmt.Sprintf("time-%d", b.Start.Unix()),
			Label:     timeLabel(b.Start, opts.ByDay),
			Kind:      KindTime,
			Count:     b.Total,
			Timestamp: b.Start,
			X:         cx + math.Cos(angle)*timeRingFactor*maxRadius,
			Y:         cy + math.Sin(angle)*timeRingFactor*maxRadius,
			R:         8 + min(float64(b.Total)*2, 20),
		}
		lay.Nodes = append(lay.Nodes, timeNode)
		lay.Links = append(lay.Links, Link{Source: "center", Target: timeNode.ID})

		types := presentTypes(b, noise)
		childStep := childArc / float64(max(len(types)-1, 1))
		childStart := angle - childArc/2

		for j, typ := range types {
			childAngle := childStart + float64(j)*childStep
			count := b.Counts[typ]

			child := Node{
				ID:           fmt.Sprintf("act-%d-%s", b.Start.Unix(), typ),
				Label:        typ,
				Kind:         KindActivity,
				ActivityType: typ,
				Count:        count,
				Timestamp:    b.Start,
				X:            cx + math.Cos(childAngle)*activityRingFactor*maxRadius,
				Y:            cy + math.Sin(childAngle)*activityRingFactor*maxRadius,
				R:            6 + min(float64(count)*1.5, 12),
			}
			lay.Nodes = append(lay.Nodes, child)
			lay.Links = append(lay.Links, Link{Source: timeNode.ID, Target: child.ID})
		}
	}

	return lay
}

// signalCount is the bucket's event count excluding the noise type.
func signalCount(b BucketPoint, noise string) int {
	n := 0
	for typ, count := range b.Counts {
		if typ == noise {
			continue
		}
		n += count
	}
	return n
}

// presentTypes lists the bucket's non-noise types with positive counts,
// alphabetically for stable child ordering.
func presentTypes(b BucketPoint, noise string) []string {
	types := make([]string, 0, len(b.Counts))
	for typ, count := range b.Counts {
		if typ == noise || count <= 0 {
			continue
		}
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

func timeLabel(t time.Time, byDay bool) string {
	if byDay {
		return t.Format("Mon 2 Jan")
	}
	return t.Format("15:04")
}
