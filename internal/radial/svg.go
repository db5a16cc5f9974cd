package radial

import (
	"fmt"
	"strings"
	"time"
)

// EmptyMessage is shown when no buckets survive noise filtering. Backend
// failures degrade to the same state, so this is also what an outage looks
// like.
const EmptyMessage = "No activity in this time range"

// typeColors is the fill palette per activity type.
var typeColors = map[string]string{
	"login":            "#22c55e",
	"message_sent":     "#3b82f6",
	"message_read":     "#60a5fa",
	"entity_created":   "#f59e0b",
	"entity_updated":   "#fbbf24",
	"entity_deleted":   "#ef4444",
	"link_created":     "#a855f7",
	"search_performed": "#14b8a6",
	"session_started":  "#84cc16",
	"session_ended":    "#64748b",
}

const (
	centerColor   = "#6366f1"
	timeColor     = "#38bdf8"
	fallbackColor = "#94a3b8"
	linkColor     = "#334155"
	textColor     = "#e2e8f0"
	strokeColor   = "#0f172a"
)

// Render serializes a layout to a standalone SVG document. Activity nodes
// carry data attributes (type, bucket timestamp, count) so a thin script can
// wire clicks to drill-down queries without re-deriving the layout.
func Render(lay Layout) string {
	var b strings.Builder
	fmt.Fprintf(&b,
		`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="system-ui, sans-serif">`,
		lay.Width, lay.Height, lay.Width, lay.Height)
	b.WriteByte('\n')

	if len(lay.Nodes) == 0 {
		fmt.Fprintf(&b,
			`<text x="%d" y="%d" text-anchor="middle" fill="%s" font-size="16">%s</text>`,
			lay.Width/2, lay.Height/2, textColor, escape(EmptyMessage))
		b.WriteString("\n</svg>\n")
		return b.String()
	}

	// Links first so nodes draw on top of them.
	positions := make(map[string]Node, len(lay.Nodes))
	for _, n := range lay.Nodes {
		positions[n.ID] = n
	}
	for _, l := range lay.Links {
		src, ok := positions[l.Source]
		if !ok {
			continue
		}
		dst, ok := positions[l.Target]
		if !ok {
			continue
		}
		fmt.Fprintf(&b,
			`<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="1" opacity="0.6"/>`,
			src.X, src.Y, dst.X, dst.Y, linkColor)
		b.WriteByte('\n')
	}

	for _, n := range lay.Nodes {
		switch n.Kind {
		case KindCenter:
			writeCircle(&b, n, centerColor, "")
			fmt.Fprintf(&b,
				`<text x="%.1f" y="%.1f" text-anchor="middle" dominant-baseline="middle" fill="#fff" font-size="12">%s</text>`,
				n.X, n.Y, escape(n.Label))
		case KindTime:
			writeCircle(&b, n, timeColor, "")
			fmt.Fprintf(&b,
				`<text x="%.1f" y="%.1f" text-anchor="middle" fill="%s" font-size="11">%s</text>`,
				n.X, n.Y-n.R-6, textColor, escape(n.Label))
		case KindActivity:
			writeCircle(&b, n, colorFor(n.ActivityType), "cursor:pointer")
		}
		b.WriteByte('\n')
	}

	b.WriteString("</svg>\n")
	return b.String()
}

func writeCircle(b *strings.Builder, n Node, fill, style string) {
	fmt.Fprintf(b,
		`<circle id="%s" cx="%.1f" cy="%.1f" r="%.1f" fill="%s" stroke="%s" stroke-width="1.5" data-kind="%s"`,
		escape(n.ID), n.X, n.Y, n.R, fill, strokeColor, n.Kind)
	if n.Kind != KindCenter {
		fmt.Fprintf(b, ` data-ts="%s" data-count="%d"`,
			n.Timestamp.UTC().Format(time.RFC3339), n.Count)
	}
	if n.ActivityType != "" {
		fmt.Fprintf(b, ` data-type="%s"`, escape(n.ActivityType))
	}
	if style != "" {
		fmt.Fprintf(b, ` style="%s"`, style)
	}
	fmt.Fprintf(b, `><title>%s</title></circle>`, escape(title(n)))
}

func title(n Node) string {
	switch n.Kind {
	case KindTime:
		return fmt.Sprintf("%s: %d events", n.Label, n.Count)
	case KindActivity:
		return fmt.Sprintf("%s: %d", n.ActivityType, n.Count)
	}
	return n.Label
}

func colorFor(activityType string) string {
	if c, ok := typeColors[activityType]; ok {
		return c
	}
	return fallbackColor
}

// escape covers the XML special characters that can appear in labels and
// attribute values sourced from backend data.
func escape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
	)
	return r.Replace(s)
}
