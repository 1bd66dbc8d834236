package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgellow/oauth-bench/internal"
	"github.com/dgellow/oauth-bench/internal/config"
	"github.com/dgellow/oauth-bench/internal/log"
)

var BuildVersion = "dev"

func generateDefaultConfig(path string) error {
	defaultConfig := map[string]any{
		"version": "v0.0.1-DEV_EDITION_EXPECT_CHANGES",
		"server": map[string]any{
			"baseURL":        "http://localhost:8000",
			"addr":           ":8000",
			"name":           "OAuth Benchmark",
			"allowedOrigins": []string{},
		},
		"http": map[string]any{
			"connectTimeout": "5s",
			"timeout":        "15s",
		},
		"sessions": map[string]any{
			"storage":         "memory",
			"ttl":             "10m",
			"cleanupInterval": "1m",
		},
		"providers": map[string]any{
			"google": map[string]any{
				"clientId":     map[string]string{"$env": "GOOGLE_CLIENT_ID"},
				"clientSecret": map[string]string{"$env": "GOOGLE_CLIENT_SECRET"},
				"scopes":       []string{"openid", "email", "profile"},
			},
			"facebook": map[string]any{
				"clientId":     map[string]string{"$env": "FACEBOOK_CLIENT_ID"},
				"clientSecret": map[string]string{"$env": "FACEBOOK_CLIENT_SECRET"},
				"scopes":       []string{"email", "public_profile"},
			},
			"github": map[string]any{
				"clientId":     map[string]string{"$env": "GITHUB_CLIENT_ID"},
				"clientSecret": map[string]string{"$env": "GITHUB_CLIENT_SECRET"},
				"scopes":       []string{"read:user", "user:email"},
			},
		},
		"sinks": []any{
			map[string]any{
				"kind":            "sheets",
				"credentialsFile": "credentials.json",
				"spreadsheetName": "OAuth Benchmark Results",
				"sheetName":       "Sheet1",
			},
		},
	}

	data, err := json.MarshalIndent(defaultConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func validateConfig(path string) error {
	result, err := config.ValidateFile(path)
	if err != nil {
		return fmt.Errorf("error during validation: %w", err)
	}

	fmt.Printf("Validating: %s\n", path)

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for _, err := range result.Errors {
			printIssue(err)
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Printf("\nWarnings (%d):\n", len(result.Warnings))
		for _, warn := range result.Warnings {
			printIssue(warn)
		}
	}

	fmt.Println()
	switch {
	case len(result.Errors) > 0:
		fmt.Println("Result: FAIL")
		return fmt.Errorf("validation failed: %d error(s), %d warning(s)", len(result.Errors), len(result.Warnings))
	case len(result.Warnings) > 0:
		fmt.Println("Result: PASS (with warnings)")
	default:
		fmt.Println("Result: PASS")
	}
	return nil
}

func printIssue(issue config.ValidationError) {
	if issue.Path != "" {
		fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
	} else {
		fmt.Printf("  - %s\n", issue.Message)
	}
}

// runBench benchmarks providers with configured long-lived tokens and
// prints the records as JSON
func runBench(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	records, err := internal.RunStandalone(ctx, cfg)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func main() {
	conf := flag.String("config", "", "path to config file (required)")
	version := flag.Bool("version", false, "print version and exit")
	help := flag.Bool("help", false, "print help and exit")
	configInit := flag.String("config-init", "", "generate default config file at specified path")
	validate := flag.Bool("validate", false, "validate config file and exit")
	bench := flag.Bool("bench", false, "benchmark providers with configured refresh/access tokens and exit")
	flag.Parse()
	if *help {
		flag.Usage()
		return
	}
	if *version {
		fmt.Println(BuildVersion)
		return
	}
	if *configInit != "" {
		if err := generateDefaultConfig(*configInit); err != nil {
			log.LogError("Failed to generate config: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default config at: %s\n", *configInit)
		return
	}

	if *conf == "" {
		fmt.Fprintf(os.Stderr, "Error: -config flag is required\n")
		fmt.Fprintf(os.Stderr, "Run with -help for usage information\n")
		os.Exit(1)
	}

	if *validate {
		if err := validateConfig(*conf); err != nil {
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*conf)
	if err != nil {
		log.LogError("Failed to load config: %v", err)
		os.Exit(1)
	}

	if *bench {
		if err := runBench(cfg); err != nil {
			log.LogError("Standalone benchmark failed: %v", err)
			os.Exit(1)
		}
		return
	}

	log.LogInfoWithFields("main", "Starting oauth-bench", map[string]any{
		"version": BuildVersion,
		"config":  *conf,
	})

	app, err := internal.New(context.Background(), cfg, BuildVersion)
	if err != nil {
		log.LogError("Failed to create relay: %v", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		log.LogError("Server stopped with error: %v", err)
		os.Exit(1)
	}
}
