package radial

import (
	"strings"
	"testing"
	"time"
)

func TestRenderEmptyPlaceholder(t *testing.T) {
	svg := Render(Compute(nil, layoutOpts))

	if !strings.Contains(svg, EmptyMessage) {
		t.Errorf("empty layout should render %q", EmptyMessage)
	}
	if strings.Contains(svg, "<circle") {
		t.Error("empty layout should not render any nodes")
	}
	if !strings.Contains(svg, `viewBox="0 0 800 600"`) {
		t.Error("placeholder should still size the surface")
	}
}

func TestRenderNodesAndLinks(t *testing.T) {
	buckets := []BucketPoint{
		bp(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), map[string]int{"message_sent": 3}),
		bp(time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), map[string]int{"login": 1, "entity_created": 2}),
	}
	lay := Compute(buckets, layoutOpts)
	svg := Render(lay)

	if got := strings.Count(svg, "<circle"); got != len(lay.Nodes) {
		t.Errorf("rendered %d circles, want %d", got, len(lay.Nodes))
	}
	if got := strings.Count(svg, "<line"); got != len(lay.Links) {
		t.Errorf("rendered %d lines, want %d", got, len(lay.Links))
	}
}

// TestRenderDrilldownAttributes checks activity nodes carry everything a
// click handler needs to issue the matching list query.
func TestRenderDrilldownAttributes(t *testing.T) {
	buckets := []BucketPoint{
		bp(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), map[string]int{"message_sent": 3}),
	}
	svg := Render(Compute(buckets, layoutOpts))

	for _, want := range []string{
		`data-type="message_sent"`,
		`data-ts="2024-01-01T10:00:00Z"`,
		`data-count="3"`,
		`style="cursor:pointer"`,
	} {
		if !strings.Contains(svg, want) {
			t.Errorf("missing %s", want)
		}
	}
}

func TestRenderEscapesBackendStrings(t *testing.T) {
	buckets := []BucketPoint{
		bp(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), map[string]int{`evil<"type">&`: 1}),
	}
	svg := Render(Compute(buckets, layoutOpts))

	if strings.Contains(svg, `evil<"`) {
		t.Error("raw special characters leaked into the SVG")
	}
	if !strings.Contains(svg, "evil&lt;&quot;type&quot;&gt;&amp;") {
		t.Error("expected escaped type string")
	}
}

func TestRenderDeterministic(t *testing.T) {
	buckets := []BucketPoint{
		bp(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
			map[string]int{"message_sent": 3, "login": 1, "entity_updated": 2}),
		bp(time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), map[string]int{"search_performed": 4}),
	}

	first := Render(Compute(buckets, layoutOpts))
	for i := 0; i < 5; i++ {
		if got := Render(Compute(buckets, layoutOpts)); got != first {
			t.Fatal("render output varies across identical inputs")
		}
	}
}
