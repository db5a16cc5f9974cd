package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/diptoe/collective-memory-sub000/internal/api"
	"github.com/diptoe/collective-memory-sub000/internal/config"
)

// doctorProbeTimeout bounds each reachability probe.
const doctorProbeTimeout = 5 * time.Second

// DoctorCommand returns the CLI command definition for the 'doctor'
// subcommand. This command runs diagnostic checks to verify the console is
// properly configured.
func DoctorCommand(version string) *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "Diagnose common setup and configuration issues",
		Description: `Run checks to verify the console is properly configured.

This command checks:
  - Config file syntax and value ranges
  - Backend reachability
  - Session store (Redis connectivity when configured)
  - Docs override directory

Exit codes:
  0 - All critical checks passed
  1 - One or more issues found`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runDoctor(ctx, version, cmd.String("config"))
		},
	}
}

type checkResult struct {
	Name       string
	Status     string // "pass", "warn", "fail"
	Message    string
	Suggestion string
	IsCritical bool
}

func runDoctor(ctx context.Context, version, configPath string) error {
	fmt.Printf("🔍 cm-console doctor v%s\n\n", version)

	cfg, cfgResult := checkConfig(configPath)
	results := []checkResult{cfgResult}
	printCheckResult(cfgResult)

	// The remaining checks need a loaded config.
	if cfg != nil {
		checks := []func(ctx context.Context, cfg *config.Config) checkResult{
			checkBackend,
			checkSessionStore,
			checkDocsDir,
		}
		for _, check := range checks {
			result := check(ctx, cfg)
			results = append(results, result)
			printCheckResult(result)
		}
	}

	fmt.Println()
	summary := summarizeResults(results)
	printSummary(summary)

	if summary.FailCount > 0 {
		return fmt.Errorf("found %d issues that need attention", summary.FailCount)
	}

	return nil
}

func printCheckResult(result checkResult) {
	var icon string
	switch result.Status {
	case "pass":
		icon = "✓"
	case "warn":
		icon = "⚠"
	case "fail":
		icon = "✗"
	}

	fmt.Printf("%s %s\n", icon, result.Message)

	if result.Suggestion != "" {
		fmt.Printf("  %s\n", result.Suggestion)
	}
}

type resultSummary struct {
	PassCount int
	WarnCount int
	FailCount int
}

func summarizeResults(results []checkResult) resultSummary {
	var summary resultSummary
	for _, r := range results {
		switch r.Status {
		case "pass":
			summary.PassCount++
		case "warn":
			summary.WarnCount++
		case "fail":
			summary.FailCount++
		}
	}
	return summary
}

func printSummary(summary resultSummary) {
	if summary.FailCount > 0 {
		fmt.Printf("❌ Found %d issue(s) that need attention\n", summary.FailCount)
		if summary.WarnCount > 0 {
			fmt.Printf("⚠️  %d warning(s)\n", summary.WarnCount)
		}
	} else if summary.WarnCount > 0 {
		fmt.Printf("✅ All critical checks passed!\n")
		fmt.Printf("⚠️  %d optional warning(s)\n", summary.WarnCount)
		fmt.Printf("💡 Run 'cm-console serve' to start the console\n")
	} else {
		fmt.Printf("✅ All checks passed!\n")
		fmt.Printf("💡 Run 'cm-console serve' to start the console\n")
	}
}

// Check 1: configuration loads and validates
func checkConfig(path string) (*config.Config, checkResult) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, checkResult{
			Name:       "config",
			Status:     "fail",
			Message:    "Could not load configuration",
			Suggestion: fmt.Sprintf("Error: %v", err),
			IsCritical: true,
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, checkResult{
			Name:       "config",
			Status:     "fail",
			Message:    "Configuration is invalid",
			Suggestion: fmt.Sprintf("Error: %v", err),
			IsCritical: true,
		}
	}

	msg := "Configuration loaded and valid"
	if path != "" {
		msg = fmt.Sprintf("Configuration loaded and valid: %s", path)
	}
	return cfg, checkResult{
		Name:    "config",
		Status:  "pass",
		Message: msg,
	}
}

// Check 2: backend reachability
func checkBackend(ctx context.Context, cfg *config.Config) checkResult {
	client, err := api.NewClient(api.Config{
		BaseURL: cfg.Backend.URL,
		Timeout: doctorProbeTimeout,
	}, zap.NewNop(), nil)
	if err != nil {
		return checkResult{
			Name:       "backend",
			Status:     "fail",
			Message:    "Could not build backend client",
			Suggestion: fmt.Sprintf("Error: %v", err),
			IsCritical: true,
		}
	}

	probeCtx, cancel := context.WithTimeout(ctx, doctorProbeTimeout)
	defer cancel()

	_, err = client.Activities.Summary(probeCtx, time.Now().Add(-time.Hour))
	switch {
	case err == nil:
		return checkResult{
			Name:    "backend",
			Status:  "pass",
			Message: fmt.Sprintf("Backend reachable at %s", cfg.Backend.URL),
		}
	case errors.Is(err, api.ErrUnauthorized) || errors.Is(err, api.ErrForbidden):
		// It answered; it just wants credentials, which signed-in console
		// users supply.
		return checkResult{
			Name:    "backend",
			Status:  "pass",
			Message: fmt.Sprintf("Backend reachable at %s (authentication enforced)", cfg.Backend.URL),
		}
	default:
		suggestion := "Check backend.url and that the backend is running."
		if recent := client.RecentFailures(1); len(recent) > 0 {
			suggestion += fmt.Sprintf("\n  Last error: %s", recent[0].Err)
		}
		return checkResult{
			Name:       "backend",
			Status:     "fail",
			Message:    fmt.Sprintf("Backend unreachable at %s", cfg.Backend.URL),
			Suggestion: suggestion,
			IsCritical: true,
		}
	}
}

// Check 3: session store
func checkSessionStore(ctx context.Context, cfg *config.Config) checkResult {
	if cfg.Session.Store != "redis" {
		return checkResult{
			Name:       "session_store",
			Status:     "warn",
			Message:    "In-memory session store",
			Suggestion: "Sessions are lost on restart. Set session.store to redis to keep them.",
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	pingCtx, cancel := context.WithTimeout(ctx, doctorProbeTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return checkResult{
			Name:       "session_store",
			Status:     "fail",
			Message:    fmt.Sprintf("Redis unreachable at %s", cfg.Redis.Addr),
			Suggestion: fmt.Sprintf("Error: %v", err),
			IsCritical: true,
		}
	}

	return checkResult{
		Name:    "session_store",
		Status:  "pass",
		Message: fmt.Sprintf("Redis reachable at %s", cfg.Redis.Addr),
	}
}

// Check 4: docs override directory
func checkDocsDir(_ context.Context, cfg *config.Config) checkResult {
	if cfg.Docs.Dir == "" {
		return checkResult{
			Name:    "docs",
			Status:  "pass",
			Message: "Docs served from embedded pages",
		}
	}

	info, err := os.Stat(cfg.Docs.Dir)
	if err != nil || !info.IsDir() {
		return checkResult{
			Name:       "docs",
			Status:     "fail",
			Message:    fmt.Sprintf("Docs override directory not usable: %s", cfg.Docs.Dir),
			Suggestion: "Create the directory or unset docs.dir.",
			IsCritical: true,
		}
	}

	return checkResult{
		Name:    "docs",
		Status:  "pass",
		Message: fmt.Sprintf("Docs override directory: %s", cfg.Docs.Dir),
	}
}
