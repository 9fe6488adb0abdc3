package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

// version is injected at build time with -ldflags "-X main.version=...". Defaults to dev.
var version = "dev"

// appToggle is one -app name=enabled|disabled flag occurrence.
type appToggle struct {
	name    string
	enabled bool
}

// cliConfig holds user supplied flag values prior to translation into
// server.Config, so main.go can validate and map.
type cliConfig struct {
	listenAddr       string
	logLevel         string
	chunkSize        uint
	handshakeTimeout time.Duration
	pingInterval     time.Duration
	keepAliveTimeout time.Duration
	appsDir          string
	showVersion      bool

	apps []appToggle

	// Hook configuration (all optional)
	hookScripts     []string // event_type=script_path pairs
	hookWebhooks    []string // event_type=webhook_url pairs
	hookStdioFormat string   // "json", "env", or "" (disabled)
	hookTimeout     string   // timeout duration (e.g. "30s")
	hookConcurrency int      // max concurrent hook executions
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("rtmpd", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	var appFlags stringSliceFlag
	var hookScripts stringSliceFlag
	var hookWebhooks stringSliceFlag

	fs.StringVar(&cfg.listenAddr, "listen", ":1935", "TCP listen address (e.g. :1935 or 0.0.0.0:1935)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	fs.UintVar(&cfg.chunkSize, "chunk-size", 128, "Initial outbound chunk size")
	fs.DurationVar(&cfg.handshakeTimeout, "handshake-timeout", 10*time.Second, "Handshake deadline")
	fs.DurationVar(&cfg.pingInterval, "ping-interval", 5*time.Second, "Idle duration before a keep-alive ping is sent")
	fs.DurationVar(&cfg.keepAliveTimeout, "keep-alive-timeout", 75*time.Second, "Idle duration before a connection is dropped")
	fs.StringVar(&cfg.appsDir, "apps-dir", "", "Directory of name=enabled|disabled fragment files watched for hot reload (empty disables watching)")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	fs.Var(&appFlags, "app", "Register a demo application in format name=enabled|disabled (can be specified multiple times)")
	fs.Var(&hookScripts, "hook-script", "Hook script in format event_type=script_path (can be specified multiple times)")
	fs.Var(&hookWebhooks, "hook-webhook", "Hook webhook in format event_type=webhook_url (can be specified multiple times)")
	fs.StringVar(&cfg.hookStdioFormat, "hook-stdio-format", "", "Enable structured stdio output: json|env (empty=disabled)")
	fs.StringVar(&cfg.hookTimeout, "hook-timeout", "30s", "Timeout for hook execution")
	fs.IntVar(&cfg.hookConcurrency, "hook-concurrency", 10, "Maximum concurrent hook executions")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.hookScripts = hookScripts
	cfg.hookWebhooks = hookWebhooks

	if cfg.chunkSize == 0 || cfg.chunkSize > 65536 {
		return nil, errors.New("chunk-size must be between 1 and 65536")
	}

	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
	}

	apps, err := parseAppToggles(appFlags)
	if err != nil {
		return nil, err
	}
	cfg.apps = apps

	if err := validateHookConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseAppToggles(flags []string) ([]appToggle, error) {
	toggles := make([]appToggle, 0, len(flags))
	for _, f := range flags {
		parts := strings.SplitN(f, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid -app %q, expected name=enabled|disabled", f)
		}
		var enabled bool
		switch parts[1] {
		case "enabled":
			enabled = true
		case "disabled":
			enabled = false
		default:
			return nil, fmt.Errorf("invalid -app %q, state must be enabled or disabled", f)
		}
		toggles = append(toggles, appToggle{name: parts[0], enabled: enabled})
	}
	return toggles, nil
}

// stringSliceFlag implements flag.Value for multiple string values.
type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ", ")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// validateHookConfig validates hook configuration settings.
func validateHookConfig(cfg *cliConfig) error {
	if cfg.hookStdioFormat != "" && cfg.hookStdioFormat != "json" && cfg.hookStdioFormat != "env" {
		return fmt.Errorf("invalid hook-stdio-format %q, must be 'json' or 'env'", cfg.hookStdioFormat)
	}

	if cfg.hookTimeout != "" {
		if _, err := time.ParseDuration(cfg.hookTimeout); err != nil {
			return fmt.Errorf("invalid hook-timeout %q: %w", cfg.hookTimeout, err)
		}
	}

	if cfg.hookConcurrency < 1 || cfg.hookConcurrency > 100 {
		return fmt.Errorf("hook-concurrency must be between 1 and 100, got %d", cfg.hookConcurrency)
	}

	for _, script := range cfg.hookScripts {
		if err := validateHookAssignment("hook-script", script); err != nil {
			return err
		}
	}
	for _, webhook := range cfg.hookWebhooks {
		if err := validateHookAssignment("hook-webhook", webhook); err != nil {
			return err
		}
	}

	return nil
}

// validateHookAssignment validates event_type=value format.
func validateHookAssignment(flagName, assignment string) error {
	parts := strings.SplitN(assignment, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid %s format %q, expected event_type=value", flagName, assignment)
	}
	if parts[0] == "" {
		return fmt.Errorf("invalid %s: event type cannot be empty", flagName)
	}
	if parts[1] == "" {
		return fmt.Errorf("invalid %s: value cannot be empty", flagName)
	}
	return nil
}
