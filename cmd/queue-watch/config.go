package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/queuesync/queuesync-go/pkg/topic"
)

// Config holds the queue-watch configuration. Values from the YAML file
// given with -config are applied first; flags set on the command line
// override them.
type Config struct {
	ConfigFile  string `yaml:"-"`
	Interactive bool   `yaml:"-"`

	BaseURL        string        `yaml:"base_url"`
	HubPath        string        `yaml:"hub_path"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	LogLevel       string        `yaml:"log_level"`
	ProtocolLog    string        `yaml:"protocol_log"`

	FailsafeInterval time.Duration `yaml:"failsafe_interval"`
	CheckPeriod      time.Duration `yaml:"check_period"`

	MDNSTimeout   time.Duration `yaml:"mdns_timeout"`
	MDNSInterface string        `yaml:"mdns_interface"`

	// Watches lists topics as "site" or "site/room".
	Watches []string `yaml:"watches"`
	Ticket  string   `yaml:"ticket"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		HubPath:          "/hubs/queue",
		ConnectTimeout:   10 * time.Second,
		LogLevel:         "info",
		FailsafeInterval: 30 * time.Second,
		CheckPeriod:      5 * time.Second,
		MDNSTimeout:      5 * time.Second,
	}
}

// stringList is a repeatable string flag.
type stringList []string

func (l *stringList) String() string {
	return strings.Join(*l, ",")
}

func (l *stringList) Set(s string) error {
	*l = append(*l, s)
	return nil
}

// parseConfig parses command-line arguments, loading the config file first
// if one is named.
func parseConfig(args []string, output io.Writer) (Config, error) {
	var (
		flags   Config
		watches stringList
	)
	defaults := DefaultConfig()

	fs := flag.NewFlagSet("queue-watch", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&flags.ConfigFile, "config", "", "Configuration file path (YAML)")
	fs.BoolVar(&flags.Interactive, "interactive", false, "Enable interactive command mode")
	fs.StringVar(&flags.BaseURL, "base-url", "", "Server base URL (discovered via mDNS if empty)")
	fs.StringVar(&flags.HubPath, "hub-path", defaults.HubPath, "Hub route below the base URL")
	fs.DurationVar(&flags.ConnectTimeout, "connect-timeout", defaults.ConnectTimeout, "Connection and join timeout")
	fs.StringVar(&flags.LogLevel, "log-level", defaults.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&flags.ProtocolLog, "protocol-log", "", "File path for protocol event logging (CBOR format)")
	fs.DurationVar(&flags.FailsafeInterval, "failsafe", defaults.FailsafeInterval, "Refresh a view after this much silence")
	fs.DurationVar(&flags.CheckPeriod, "check", defaults.CheckPeriod, "Staleness check period")
	fs.DurationVar(&flags.MDNSTimeout, "mdns-timeout", defaults.MDNSTimeout, "mDNS discovery timeout")
	fs.StringVar(&flags.MDNSInterface, "mdns-interface", "", "Network interface for mDNS discovery")
	fs.Var(&watches, "watch", "Topic to watch, site or site/room (repeatable)")
	fs.StringVar(&flags.Ticket, "ticket", "", "Ticket id tracked in room views")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := defaults
	if flags.ConfigFile != "" {
		if err := cfg.loadFile(flags.ConfigFile); err != nil {
			return Config{}, err
		}
	}
	cfg.ConfigFile = flags.ConfigFile
	cfg.Interactive = flags.Interactive

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "base-url":
			cfg.BaseURL = flags.BaseURL
		case "hub-path":
			cfg.HubPath = flags.HubPath
		case "connect-timeout":
			cfg.ConnectTimeout = flags.ConnectTimeout
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		case "protocol-log":
			cfg.ProtocolLog = flags.ProtocolLog
		case "failsafe":
			cfg.FailsafeInterval = flags.FailsafeInterval
		case "check":
			cfg.CheckPeriod = flags.CheckPeriod
		case "mdns-timeout":
			cfg.MDNSTimeout = flags.MDNSTimeout
		case "mdns-interface":
			cfg.MDNSInterface = flags.MDNSInterface
		case "ticket":
			cfg.Ticket = flags.Ticket
		}
	})
	cfg.Watches = append(cfg.Watches, watches...)
	cfg.Watches = append(cfg.Watches, fs.Args()...)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks the merged configuration.
func (c *Config) Validate() error {
	if _, err := parseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.FailsafeInterval <= 0 {
		return errors.New("failsafe interval must be positive")
	}
	if c.CheckPeriod <= 0 {
		return errors.New("check period must be positive")
	}
	if c.CheckPeriod > c.FailsafeInterval {
		return fmt.Errorf("check period %s exceeds failsafe interval %s", c.CheckPeriod, c.FailsafeInterval)
	}
	if c.ConnectTimeout <= 0 {
		return errors.New("connect timeout must be positive")
	}
	if _, err := c.Topics(); err != nil {
		return err
	}
	return nil
}

// Topics parses the configured watches.
func (c *Config) Topics() ([]topic.Topic, error) {
	topics := make([]topic.Topic, 0, len(c.Watches))
	for _, w := range c.Watches {
		t, err := topic.Parse(w)
		if err != nil {
			return nil, fmt.Errorf("watch %q: %w", w, err)
		}
		topics = append(topics, t)
	}
	return topics, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s (use: debug, info, warn, error)", s)
	}
}
