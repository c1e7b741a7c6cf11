package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/azargarov/foldersim"
)

// Config holds configuration for the foldersim binary.
type Config struct {
	Folders  int           // Concurrent folders (1..64)
	Tick     time.Duration // Simulated processing step
	Refresh  time.Duration // Priority refresh period
	IdleWait time.Duration // First idle back-off of an empty folder

	Duration time.Duration // How long to run; 0 runs until interrupted
	Clients  int           // Clients submitted before the start
	Arrival  time.Duration // Interval between generated arrivals; 0 disables the generator
	MinSize  int           // Smallest generated file in MB
	MaxSize  int           // Largest generated file in MB
	MaxFiles int           // Most files per generated client
	Seed     int64         // Generator seed; 0 uses the clock

	LogLevel  string // log level (debug, info, warn, error)
	UI        bool   // Render the terminal view instead of the event log
	WSAddr    string // Serve the websocket event stream on this address
	ChartPath string // Write a turnaround chart (PNG) here after the run
}

var errInvalid = errors.New("config: invalid value")

// Parse parses configuration from flags and environment variables.
// Flags take precedence over environment variables.
func Parse() (Config, error) {
	return parseWithFlagSet(flag.CommandLine, os.Args[1:])
}

// parseWithFlagSet is an internal helper for testing with isolated flag sets.
func parseWithFlagSet(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{
		Folders:  foldersim.DefaultFolders,
		Tick:     foldersim.DefaultTickInterval,
		Refresh:  foldersim.DefaultRefreshInterval,
		IdleWait: foldersim.DefaultIdleWait,
		Clients:  10,
		Arrival:  foldersim.DefaultArrival,
		MinSize:  foldersim.DefaultMinFileSize,
		MaxSize:  foldersim.DefaultMaxFileSize,
		MaxFiles: foldersim.DefaultMaxFiles,
		LogLevel: "info",
	}

	// Read from environment first
	var err error
	envInt(&cfg.Folders, "FOLDERSIM_FOLDERS", &err)
	envDuration(&cfg.Tick, "FOLDERSIM_TICK", &err)
	envDuration(&cfg.Refresh, "FOLDERSIM_REFRESH", &err)
	envDuration(&cfg.IdleWait, "FOLDERSIM_IDLE_WAIT", &err)
	envDuration(&cfg.Duration, "FOLDERSIM_DURATION", &err)
	envDuration(&cfg.Arrival, "FOLDERSIM_ARRIVAL", &err)
	envInt(&cfg.MinSize, "FOLDERSIM_MIN_SIZE", &err)
	envInt(&cfg.MaxSize, "FOLDERSIM_MAX_SIZE", &err)
	envInt(&cfg.MaxFiles, "FOLDERSIM_MAX_FILES", &err)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("FOLDERSIM_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("FOLDERSIM_WS_ADDR"); v != "" {
		cfg.WSAddr = v
	}

	// Flags override environment
	fs.IntVar(&cfg.Folders, "folders", cfg.Folders, "number of concurrent folders (1..64)")
	fs.DurationVar(&cfg.Tick, "tick", cfg.Tick, "processing tick interval")
	fs.DurationVar(&cfg.Refresh, "refresh", cfg.Refresh, "priority refresh interval")
	fs.DurationVar(&cfg.IdleWait, "idle-wait", cfg.IdleWait, "first back-off of an idle folder")
	fs.DurationVar(&cfg.Duration, "duration", cfg.Duration, "run time (0 runs until interrupted)")
	fs.IntVar(&cfg.Clients, "clients", cfg.Clients, "clients submitted before start")
	fs.DurationVar(&cfg.Arrival, "arrival", cfg.Arrival, "interval between generated clients (0 disables)")
	fs.IntVar(&cfg.MinSize, "min-size", cfg.MinSize, "smallest generated file in MB")
	fs.IntVar(&cfg.MaxSize, "max-size", cfg.MaxSize, "largest generated file in MB")
	fs.IntVar(&cfg.MaxFiles, "max-files", cfg.MaxFiles, "most files per generated client")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "generator seed (0 uses the clock)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.UI, "ui", cfg.UI, "render the terminal view")
	fs.StringVar(&cfg.WSAddr, "ws", cfg.WSAddr, "serve websocket events on this address")
	fs.StringVar(&cfg.ChartPath, "chart", cfg.ChartPath, "write a turnaround chart (PNG) after the run")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects values the simulation cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Folders < 1 || c.Folders > 64:
		return fmt.Errorf("folders %d out of range 1..64: %w", c.Folders, errInvalid)
	case c.Tick <= 0:
		return fmt.Errorf("tick must be positive: %w", errInvalid)
	case c.Refresh <= 0:
		return fmt.Errorf("refresh must be positive: %w", errInvalid)
	case c.IdleWait < foldersim.MinIdleWait:
		return fmt.Errorf("idle-wait %s below %s: %w", c.IdleWait, foldersim.MinIdleWait, errInvalid)
	case c.MinSize <= 0:
		return fmt.Errorf("min-size must be a positive integer: %w", errInvalid)
	case c.MaxSize < c.MinSize:
		return fmt.Errorf("max-size %d below min-size %d: %w", c.MaxSize, c.MinSize, errInvalid)
	case c.MaxFiles < 1:
		return fmt.Errorf("max-files must be at least 1: %w", errInvalid)
	case c.Clients < 0 || c.Duration < 0 || c.Arrival < 0:
		return fmt.Errorf("clients, duration and arrival must not be negative: %w", errInvalid)
	}
	return nil
}

// SimOptions maps the configuration onto simulation options.
func (c Config) SimOptions() foldersim.Options {
	return foldersim.Options{
		Folders:         c.Folders,
		TickInterval:    c.Tick,
		RefreshInterval: c.Refresh,
		IdleWait:        c.IdleWait,
	}
}

// GeneratorOptions maps the configuration onto generator options.
func (c Config) GeneratorOptions() foldersim.GeneratorOptions {
	return foldersim.GeneratorOptions{
		MinFileSize: c.MinSize,
		MaxFileSize: c.MaxSize,
		MaxFiles:    c.MaxFiles,
		Interval:    c.Arrival,
		Seed:        c.Seed,
	}
}

func envInt(dst *int, key string, errp *error) {
	v := os.Getenv(key)
	if v == "" || *errp != nil {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errp = fmt.Errorf("%s=%q: %w", key, v, errInvalid)
		return
	}
	*dst = n
}

func envDuration(dst *time.Duration, key string, errp *error) {
	v := os.Getenv(key)
	if v == "" || *errp != nil {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errp = fmt.Errorf("%s=%q: %w", key, v, errInvalid)
		return
	}
	*dst = d
}
