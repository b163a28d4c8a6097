// Command queue-watch follows live queue state for rooms and sites.
//
// Each watched topic is joined on the realtime hub and backed by a failsafe
// coordinator that refreshes the view from the status API whenever a
// matching notification arrives, and on a timer when the hub stays silent.
//
// Usage:
//
//	queue-watch [flags] [topic...]
//
// Flags:
//
//	-config string           Configuration file path (YAML)
//	-base-url string         Server base URL (discovered via mDNS if empty)
//	-hub-path string         Hub route below the base URL (default "/hubs/queue")
//	-connect-timeout dur     Connection and join timeout (default 10s)
//	-log-level string        Log level: debug, info, warn, error (default "info")
//	-protocol-log string     File path for protocol event logging (CBOR format)
//	-failsafe dur            Refresh a view after this much silence (default 30s)
//	-check dur               Staleness check period (default 5s)
//	-mdns-timeout dur        mDNS discovery timeout (default 5s)
//	-mdns-interface string   Network interface for mDNS discovery
//	-watch topic             Topic to watch, site or site/room (repeatable)
//	-ticket string           Ticket id tracked in room views
//	-interactive             Enable interactive command mode
//
// Examples:
//
//	# Watch one room and track a ticket
//	queue-watch -base-url https://queue.example.com -ticket 3f2a site-1/room-1
//
//	# Discover the server on the local network and watch a whole site
//	queue-watch -watch site-1 -interactive
//
//	# Record a protocol trace for queue-log
//	queue-watch -config watch.yaml -protocol-log watch.qlog
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/queuesync/queuesync-go/cmd/queue-watch/interactive"
	"github.com/queuesync/queuesync-go/cmd/queue-watch/watch"
	"github.com/queuesync/queuesync-go/pkg/discovery"
	"github.com/queuesync/queuesync-go/pkg/failsafe"
	"github.com/queuesync/queuesync-go/pkg/hub"
	"github.com/queuesync/queuesync-go/pkg/log"
	"github.com/queuesync/queuesync-go/pkg/statusapi"
	"github.com/queuesync/queuesync-go/pkg/topic"
)

func main() {
	cfg, err := parseConfig(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg Config) error {
	level, _ := parseLogLevel(cfg.LogLevel)
	logOut := &switchWriter{w: os.Stderr}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	protocolLogger, closeProtocol, err := setupProtocolLog(cfg.ProtocolLog, logger)
	if err != nil {
		return err
	}
	defer closeProtocol()

	if cfg.BaseURL == "" {
		svc, err := discoverHub(ctx, cfg, logger)
		if err != nil {
			return err
		}
		cfg.BaseURL = svc.BaseURL()
		if svc.HubPath != "" {
			cfg.HubPath = svc.HubPath
		}
		logger.Info("discovered hub", "name", svc.DisplayName(), "url", cfg.BaseURL)
	}

	hubConfig := hub.Config{
		BaseURL:        cfg.BaseURL,
		HubPath:        cfg.HubPath,
		ConnectTimeout: cfg.ConnectTimeout,
		Logger:         logger,
	}
	// Only set the protocol logger when non-nil to avoid a typed-nil interface.
	if protocolLogger != nil {
		hubConfig.ProtocolLogger = protocolLogger
	}
	client, err := hub.New(hubConfig)
	if err != nil {
		return fmt.Errorf("failed to create hub client: %w", err)
	}
	defer client.Close()

	api, err := statusapi.New(statusapi.Config{
		BaseURL: cfg.BaseURL,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create status client: %w", err)
	}

	coordConfig := failsafe.Config{
		FailsafeInterval: cfg.FailsafeInterval,
		CheckPeriod:      cfg.CheckPeriod,
		OnError: func(err error) {
			logger.Warn("refresh failed", "error", err)
		},
	}
	if protocolLogger != nil {
		coordConfig.ProtocolLogger = protocolLogger
	}

	statusOut := &switchWriter{w: os.Stdout}
	watcher := watch.New(client, api, watch.Config{
		Coordinator: coordConfig,
		Output:      statusOut,
		Logger:      logger,
	})
	defer watcher.Close()

	logger.Info("queue-watch starting", "endpoint", hubConfig.Endpoint())

	var ic *interactive.Controller
	if cfg.Interactive {
		ic, err = interactive.New(watcher, client, hubConfig.Endpoint())
		if err != nil {
			return err
		}
		// Route output through readline to avoid interfering with input.
		logOut.set(ic.Stderr())
		statusOut.set(ic.Stdout())
	}

	topics, _ := cfg.Topics()
	for _, t := range topics {
		ticketID := ""
		if t.Kind() == topic.KindRoom {
			ticketID = cfg.Ticket
		}
		if err := watcher.Watch(ctx, t, ticketID); err != nil {
			logger.Warn("watch", "topic", t.String(), "error", err)
		}
	}

	if ic != nil {
		go ic.Run(ctx, cancel)
	} else if len(topics) == 0 {
		return errors.New("nothing to watch (pass topics or use -interactive)")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig.String())
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	return nil
}

func setupProtocolLog(path string, logger *slog.Logger) (log.Logger, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	fl, err := log.NewFileLogger(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create protocol logger: %w", err)
	}
	logger.Info("protocol logging", "path", path)

	// Mirror protocol events to the debug log as well as the trace file.
	ml := log.NewMultiLogger(fl, log.NewSlogAdapter(logger))
	closeFn := func() {
		if dropped := fl.Dropped(); dropped > 0 {
			logger.Warn("protocol events dropped", "count", dropped)
		}
		if err := fl.Close(); err != nil {
			logger.Warn("failed to close protocol log", "error", err)
		}
	}
	return ml, closeFn, nil
}

func discoverHub(ctx context.Context, cfg Config, logger *slog.Logger) (*discovery.Service, error) {
	logger.Info("no base URL configured, browsing mDNS", "service", discovery.ServiceType)
	browser := discovery.NewBrowser(discovery.BrowserConfig{
		Timeout:   cfg.MDNSTimeout,
		Interface: cfg.MDNSInterface,
		Logger:    logger,
	})
	svc, err := browser.FindFirst(ctx)
	if err != nil {
		return nil, fmt.Errorf("hub discovery: %w", err)
	}
	return svc, nil
}

// switchWriter forwards writes to a writer that can be replaced once
// interactive mode takes over the terminal.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *switchWriter) set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}
