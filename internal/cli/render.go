package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/diptoe/collective-memory-sub000/internal/api"
	"github.com/diptoe/collective-memory-sub000/internal/config"
	"github.com/diptoe/collective-memory-sub000/internal/radial"
	"github.com/diptoe/collective-memory-sub000/internal/timeline"
)

// RenderCommand returns the CLI command definition for the 'render'
// subcommand. This command fetches one activity window and writes the radial
// diagram as SVG.
func RenderCommand() *cli.Command {
	return &cli.Command{
		Name:  "render",
		Usage: "Render the activity diagram once and exit",
		Description: `Fetches one activity window from the backend and writes the radial
diagram as SVG, for embedding in reports or checking layout changes
without a browser.

The backend token is read from --token or the CM_TOKEN environment
variable. Unlike the console pages, a fetch failure here is an error,
not an empty diagram.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
			},
			&cli.StringFlag{
				Name:  "range",
				Usage: "Time range: period, today or week",
				Value: "today",
			},
			&cli.IntFlag{
				Name:  "width",
				Usage: "Surface width in pixels",
				Value: 1000,
			},
			&cli.IntFlag{
				Name:  "height",
				Usage: "Surface height in pixels",
				Value: 700,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file, - for stdout",
				Value:   "-",
			},
			&cli.StringFlag{
				Name:  "token",
				Usage: "Backend API token",
			},
		},
		Action: runRender,
	}
}

// runRender is the action handler for the render command.
func runRender(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	rng, err := timeline.ParseRange(cmd.String("range"))
	if err != nil {
		return err
	}

	location, err := cfg.Location()
	if err != nil {
		return err
	}

	token := cmd.String("token")
	if token == "" {
		token = os.Getenv("CM_TOKEN")
	}

	client, err := api.NewClient(api.Config{
		BaseURL: cfg.Backend.URL,
		Timeout: cfg.Backend.Timeout,
	}, zap.NewNop(), nil)
	if err != nil {
		return err
	}

	if token != "" {
		ctx = api.WithToken(ctx, token)
	}

	now := time.Now().In(location)
	snap, err := timeline.Fetch(ctx, client.Activities, rng, rng.Window(now), location, cfg.Timeline.RecentLimit)
	if err != nil {
		return fmt.Errorf("fetch activity: %w", err)
	}

	points := make([]radial.BucketPoint, len(snap.Buckets))
	for i, b := range snap.Buckets {
		points[i] = radial.BucketPoint{Start: b.Start, Total: b.Total, Counts: b.Counts}
	}
	lay := radial.Compute(points, radial.Options{
		Width:  int(cmd.Int("width")),
		Height: int(cmd.Int("height")),
		Now:    now,
		ByDay:  rng == timeline.RangeWeek,
	})
	svg := radial.Render(lay)

	out := cmd.String("output")
	if out == "" || out == "-" {
		fmt.Println(svg)
		return nil
	}
	if err := os.WriteFile(out, []byte(svg), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", out)
	return nil
}
