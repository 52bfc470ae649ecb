package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gorm.io/gorm/logger"

	"sshwire/pkg/config"
	"sshwire/pkg/proxy"
	"sshwire/pkg/storage"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	listenAddr := flag.String("listen", "", "Proxy listen address (overrides config)")
	targetAddr := flag.String("target", "", "Upstream SSH server (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	useSyslog := flag.Bool("syslog", false, "Also log events to syslog")
	proxyProtocol := flag.Bool("proxy-protocol", false, "Send a PROXY v2 header upstream")
	verbose := flag.Bool("v", false, "Verbose database logging")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	if *listenAddr != "" {
		cfg.Listen = *listenAddr
	}
	if *targetAddr != "" {
		cfg.Target = *targetAddr
	}
	if *dbPath != "" {
		cfg.Database = *dbPath
	}
	cfg.Syslog = cfg.Syslog || *useSyslog
	cfg.ProxyProtocol = cfg.ProxyProtocol || *proxyProtocol

	hash, err := cfg.HashAlgorithm()
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	level := logger.Warn
	if *verbose {
		level = logger.Info
	}
	repo, err := storage.Open(cfg.Database, level)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer repo.Close()

	opts := proxy.Options{
		ListenAddr:    cfg.Listen,
		TargetAddr:    cfg.Target,
		Hash:          hash,
		ProxyProtocol: cfg.ProxyProtocol,
		DialTimeout:   cfg.Timeout,
	}

	if cfg.Syslog {
		w, err := proxy.NewSyslogWriter("sshproxy")
		if err != nil {
			log.Fatalf("Failed to open syslog: %v", err)
		}
		defer w.Close()
		opts.Events = w
	}

	server, err := proxy.NewServer(opts, repo)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("SSH proxy with %s HASSH fingerprinting", hash)
	log.Println("Send SIGHUP to reload blocklist from database")

	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Server error: %v", err)
	}

	log.Println("Shutdown complete")
}
