package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/acme/autocert"
	"gopkg.in/yaml.v3"

	"baristad/session"
)

func main() {
	configPath := flag.String("config", os.Getenv("BARISTAD_CONFIG"), "Path to YAML config")
	configCmd := flag.String("config-cmd", "", "Config command: 'init' or 'validate'")
	logLevel := flag.String("log-level", "info", "Logging level (debug, info, warn, error)")
	flag.Parse()

	level, err := parseLogLevel(*logLevel)
	if err != nil {
		log.Fatalf("invalid log level %q: %v", *logLevel, err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if err := godotenv.Load(); err == nil {
		logger.Debug("loaded environment from .env")
	}

	if *configCmd != "" {
		configFile := *configPath
		if configFile == "" {
			configFile = "./config.yaml"
		}
		switch *configCmd {
		case "init":
			if err := runConfigInit(configFile); err != nil {
				log.Fatalf("config init failed: %v", err)
			}
			logger.Info("configuration written", "path", configFile)
		case "validate":
			if _, err := session.LoadConfig(configFile); err != nil {
				log.Fatalf("config validation failed: %v", err)
			}
			logger.Info("configuration is valid", "path", configFile)
		default:
			log.Fatalf("unknown config command %q, use 'init' or 'validate'", *configCmd)
		}
		return
	}

	cfg, err := session.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	app, err := session.NewApp(cfg, logger)
	if err != nil {
		log.Fatalf("init app: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Boot-time silent check runs concurrently with serving; the session
	// reads unauthenticated until it resolves.
	go func() {
		bootCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		app.Bootstrap(bootCtx)
	}()

	if err := serve(ctx, cfg, app.Routes(), logger); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func serve(ctx context.Context, cfg session.Config, handler http.Handler, logger *slog.Logger) error {
	errCh := make(chan error, 2)
	var servers []*http.Server

	if cfg.Server.DevMode {
		srv := &http.Server{
			Addr:         cfg.Server.ListenAddr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		}
		servers = append(servers, srv)
		go func() {
			logger.Info("listening", "addr", cfg.Server.ListenAddr, "mode", "dev")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	} else {
		cacheDir := cfg.Server.TLS.CacheDir
		if cacheDir == "" {
			cacheDir = ".baristad/autocert"
		}
		manager := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(cfg.Server.TLS.Domains...),
			Email:      cfg.Server.TLS.Email,
			Cache:      autocert.DirCache(cacheDir),
		}

		httpsSrv := &http.Server{
			Addr:         ":443",
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			TLSConfig: &tls.Config{
				MinVersion:     tls.VersionTLS12,
				GetCertificate: manager.GetCertificate,
			},
		}
		httpSrv := &http.Server{
			Addr:        ":80",
			Handler:     manager.HTTPHandler(nil),
			ReadTimeout: 15 * time.Second,
		}
		servers = append(servers, httpsSrv, httpSrv)
		go func() {
			logger.Info("listening", "addr", ":443", "mode", "autocert", "domains", strings.Join(cfg.Server.TLS.Domains, ","))
			if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	for _, srv := range servers {
		_ = srv.Shutdown(shutdownCtx)
	}
	logger.Info("shutdown complete")
	return nil
}

func runConfigInit(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	b, err := yaml.Marshal(session.DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level %q", s)
	}
}
