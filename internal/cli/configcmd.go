package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/diptoe/collective-memory-sub000/internal/config"
)

// defaultConfigYAML is the scaffold written by 'config init'. The values are
// the built-in defaults; TestConfigTemplateMatchesDefaults keeps them in
// sync.
const defaultConfigYAML = `# Collective Memory console configuration.
#
# Every key can also be set with a CM_ environment variable:
# CM_SERVER_PORT overrides server.port, CM_BACKEND_URL overrides
# backend.url, and so on.

server:
  host: 127.0.0.1
  port: 8844
  read_timeout: 10s
  write_timeout: 30s
  # Marks cookies Secure. Enable wherever TLS terminates in front of
  # the console.
  secure_cookies: false
  # Stable key for form tokens, 32+ bytes. Empty generates a random
  # key per process, which invalidates open forms across restarts.
  # csrf_key: ""

backend:
  url: http://127.0.0.1:8000
  timeout: 10s
  rate_limit: 50
  rate_burst: 10
  breaker_threshold: 5
  breaker_cooldown: 30s

session:
  # memory or redis. Memory loses sessions on restart.
  store: memory
  ttl: 24h
  cookie_name: cm_session

redis:
  addr: localhost:6379
  db: 0

timeline:
  poll_interval: 10s
  recent_limit: 20
  # IANA zone for bucket boundaries; empty uses the server's zone.
  # timezone: Europe/Berlin

docs:
  # On-disk override directory for the embedded help pages.
  # dir: ./docs-overrides

logger:
  level: info
  format: console
`

// ConfigCommand groups the configuration subcommands.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect and scaffold configuration",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the effective configuration as YAML",
				Description: `Loads the configuration the same way serve does, defaults and
environment included, and prints the result. Secrets are masked.`,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Config file path",
					},
				},
				Action: runConfigShow,
			},
			{
				Name:  "init",
				Usage: "Write a commented config scaffold",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Destination path",
						Value:   "config.yaml",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: runConfigInit,
			},
		},
	}
}

func runConfigShow(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(settingsView(cfg))
	if err != nil {
		return err
	}
	os.Stdout.Write(out)
	return nil
}

// settingsView rebuilds the config as plain maps so durations print as "10s"
// rather than nanosecond integers, and secrets stay out of terminals.
func settingsView(cfg *config.Config) map[string]any {
	return map[string]any{
		"server": map[string]any{
			"host":           cfg.Server.Host,
			"port":           cfg.Server.Port,
			"read_timeout":   cfg.Server.ReadTimeout.String(),
			"write_timeout":  cfg.Server.WriteTimeout.String(),
			"secure_cookies": cfg.Server.SecureCookies,
			"csrf_key":       masked(cfg.Server.CSRFKey),
		},
		"backend": map[string]any{
			"url":               cfg.Backend.URL,
			"timeout":           cfg.Backend.Timeout.String(),
			"rate_limit":        cfg.Backend.RateLimit,
			"rate_burst":        cfg.Backend.RateBurst,
			"breaker_threshold": cfg.Backend.BreakerThreshold,
			"breaker_cooldown":  cfg.Backend.BreakerCooldown.String(),
		},
		"session": map[string]any{
			"store":       cfg.Session.Store,
			"ttl":         cfg.Session.TTL.String(),
			"cookie_name": cfg.Session.CookieName,
		},
		"redis": map[string]any{
			"addr":     cfg.Redis.Addr,
			"password": masked(cfg.Redis.Password),
			"db":       cfg.Redis.DB,
		},
		"timeline": map[string]any{
			"poll_interval": cfg.Timeline.PollInterval.String(),
			"recent_limit":  cfg.Timeline.RecentLimit,
			"timezone":      cfg.Timeline.Timezone,
		},
		"docs": map[string]any{
			"dir": cfg.Docs.Dir,
		},
		"logger": map[string]any{
			"level":  cfg.Logger.Level,
			"format": cfg.Logger.Format,
		},
	}
}

func masked(secret string) string {
	if secret == "" {
		return ""
	}
	return "(set)"
}

func runConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")
	if _, err := os.Stat(path); err == nil && !cmd.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
