package server

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rtmpd/fmsgo/internal/idgen"
	"github.com/rtmpd/fmsgo/internal/rtmp/hooks"
)

// newHookManager builds a HookManager from Config's flag-parsed script and
// webhook lists, each of the form "event_type=target".
func newHookManager(cfg Config, log *slog.Logger) *hooks.HookManager {
	hc := hooks.DefaultHookConfig()
	if cfg.HookStdioFormat != "" {
		hc.StdioFormat = cfg.HookStdioFormat
	}
	if cfg.HookTimeout != "" {
		hc.Timeout = cfg.HookTimeout
	}
	if cfg.HookConcurrency > 0 {
		hc.Concurrency = cfg.HookConcurrency
	}

	timeout, err := time.ParseDuration(hc.Timeout)
	if err != nil {
		log.Warn("invalid hook timeout, falling back to 30s", "timeout", hc.Timeout, "error", err)
		timeout = 30 * time.Second
	}

	hm := hooks.NewHookManager(hc, log)
	registerShellHooks(hm, cfg.HookScripts, timeout, log)
	registerWebhookHooks(hm, cfg.HookWebhooks, timeout, log)
	return hm
}

func registerShellHooks(hm *hooks.HookManager, specs []string, timeout time.Duration, log *slog.Logger) {
	for _, spec := range specs {
		eventType, target, ok := splitHookSpec(spec)
		if !ok {
			log.Warn("ignoring malformed -hook-script flag", "value", spec)
			continue
		}
		h := hooks.NewShellHook("shell-"+idgen.NewConnID(), target, timeout).
			SetEnv(os.Environ()).
			SetPassJSON(true)
		if err := hm.RegisterHook(eventType, h); err != nil {
			log.Warn("failed to register shell hook", "event_type", eventType, "script", target, "error", err)
		}
	}
}

func registerWebhookHooks(hm *hooks.HookManager, specs []string, timeout time.Duration, log *slog.Logger) {
	for _, spec := range specs {
		eventType, target, ok := splitHookSpec(spec)
		if !ok {
			log.Warn("ignoring malformed -hook-webhook flag", "value", spec)
			continue
		}
		h := hooks.NewWebhookHook("webhook-"+idgen.NewConnID(), target, timeout).
			AddHeader("User-Agent", "fmsgo-rtmpd-hooks/1")
		if err := hm.RegisterHook(eventType, h); err != nil {
			log.Warn("failed to register webhook hook", "event_type", eventType, "url", target, "error", err)
		}
	}
}

func splitHookSpec(spec string) (hooks.EventType, string, bool) {
	parts := strings.SplitN(spec, "=", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return hooks.EventType(strings.TrimSpace(parts[0])), strings.TrimSpace(parts[1]), true
}
