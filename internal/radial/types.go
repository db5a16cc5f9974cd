// Package radial lays out aggregated activity buckets as a radial
// node-link diagram (center, time ring, activity ring) and renders it
// to SVG.
package radial

import "time"

// BucketPoint is the input type for radial layout.
// Decoupled from timeline types so radial is a pure rendering package.
type BucketPoint struct {
	Start  time.Time
	Total  int
	Counts map[string]int
}

// NodeKind distinguishes the three tiers of the diagram.
type NodeKind string

const (
	KindCenter   NodeKind = "center"
	KindTime     NodeKind = "time"
	KindActivity NodeKind = "activity"
)

// Node is one positioned node. Nodes are rebuilt from scratch on every
// layout pass; no identity survives a refresh.
type Node struct {
	ID    string
	Label string
	Kind  NodeKind

	// ActivityType is set on activity nodes only.
	ActivityType string

	// Count is the event count behind the node: bucket total for time
	// nodes, per-type count for activity nodes.
	Count int

	// Timestamp is the bucket start for time and activity nodes.
	Timestamp time.Time

	// X, Y position the node center; R is the visual radius.
	X, Y, R float64
}

// Link is one parent-child edge: center to time, or time to activity.
type Link struct {
	Source string
	Target string
}

// Layout is a computed diagram. An empty Nodes slice means nothing remained
// after noise filtering; renderers show a placeholder instead of a diagram.
type Layout struct {
	Width  int
	Height int
	Nodes  []Node
	Links  []Link
}
