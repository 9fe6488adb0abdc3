package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rtmpd/fmsgo/internal/app"
	"github.com/rtmpd/fmsgo/internal/app/examples"
	"github.com/rtmpd/fmsgo/internal/logger"
	srv "github.com/rtmpd/fmsgo/internal/server"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		// flag parse errors were already printed by the flag package;
		// validation errors from parseFlags exit with status 2 unprinted
		os.Exit(2)
	}
	if cfg.showVersion {
		fmt.Println(version)
		return
	}

	logger.Init()
	if err := logger.SetLevel(cfg.logLevel); err != nil {
		fmt.Printf("Warning: invalid log level %q, using default\n", cfg.logLevel)
	}
	log := logger.Logger().With("component", "cli")

	registry := app.NewRegistry()
	echo, chat := examples.NewEcho(), examples.NewChat()
	echo.SetEnabled(false)
	chat.SetEnabled(false)
	registry.Register(echo)
	registry.Register(chat)
	for _, t := range cfg.apps {
		if !registry.SetEnabled(t.name, t.enabled) {
			log.Warn("unknown application in -app flag, ignoring", "app", t.name)
		}
	}

	server := srv.New(srv.Config{
		ListenAddr:       cfg.listenAddr,
		ChunkSize:        int(cfg.chunkSize),
		HandshakeTimeout: cfg.handshakeTimeout,
		PingInterval:     cfg.pingInterval,
		KeepAliveTimeout: cfg.keepAliveTimeout,
		HookScripts:      cfg.hookScripts,
		HookWebhooks:     cfg.hookWebhooks,
		HookStdioFormat:  cfg.hookStdioFormat,
		HookTimeout:      cfg.hookTimeout,
		HookConcurrency:  cfg.hookConcurrency,
	}, registry)

	echo.WithHookManager(server.HookManager())
	chat.WithHookManager(server.HookManager())
	log.Info("applications registered", "apps", server.Registry().Names())

	if err := server.Start(); err != nil {
		log.Error("failed to start server", "error", err)
		os.Exit(1)
	}
	log.Info("server started", "addr", server.Addr().String(), "version", version)

	var watcher *srv.AppsWatcher
	if cfg.appsDir != "" {
		watcher, err = srv.WatchAppsDir(cfg.appsDir, server.Registry(), log)
		if err != nil {
			log.Error("failed to start apps-dir watcher", "dir", cfg.appsDir, "error", err)
		} else {
			defer watcher.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		if err := server.Stop(); err != nil {
			log.Error("server stop error", "error", err)
		}
		close(done)
	}()

	select {
	case <-done:
		log.Info("server stopped cleanly")
	case <-shutdownCtx.Done():
		log.Error("forced exit after timeout")
	}
}
