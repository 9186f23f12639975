// Copyright (c) 2024 The Storm developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads and saves the stormd configuration file, a plain
// "key = value" text file kept in the data directory.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/stormnet/storm-go/chunking"
	"github.com/stormnet/storm-go/storage"
	"github.com/stormnet/storm-go/storm"
)

// EnvPrefix prefixes the environment variables ApplyEnv reads, e.g.
// STORM_LISTEN or STORM_DATADIR.
const EnvPrefix = "STORM_"

// Config holds the node settings.
type Config struct {
	DataDir     string
	ListenAddr  string
	LogLevel    string
	LogFile     string
	Backend     string
	ChunkSize   int
	Chunker     string
	Compression string
	// Apps lists the served applications by name or code.
	Apps []string
	// Peers lists host:port addresses or SRV domains to connect to.
	Peers []string
	// DNSUpstream, if set, resolves peer domains through this DNSSEC
	// validating resolver instead of the system resolver.
	DNSUpstream   string
	ProposeWindow time.Duration
}

// DefaultDataDir returns ~/.storm, or .storm when the home directory is
// unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".storm"
	}
	return filepath.Join(home, ".storm")
}

// ConfigPath returns the config file path inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config")
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:       DefaultDataDir(),
		ListenAddr:    ":7400",
		LogLevel:      "info",
		Backend:       storage.BackendBolt,
		ChunkSize:     chunking.DefaultSize,
		Chunker:       string(chunking.Fixed),
		Compression:   "zstd",
		Apps:          []string{storm.AppStorage.String(), storm.AppChat.String()},
		ProposeWindow: 2 * time.Second,
	}
}

// LoadConfig reads path over the defaults. Blank lines and lines starting
// with '#' are skipped, unknown keys are ignored and unset keys keep their
// default.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, err := parseKeyValue(line)
		if err != nil {
			return cfg, fmt.Errorf("%w: line %d: %w", ErrInvalidConfigLine, lineNo, err)
		}
		if err := cfg.set(key, value); err != nil {
			return cfg, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

// parseKeyValue splits on the first '='.
func parseKeyValue(line string) (string, string, error) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", fmt.Errorf("missing '=' in %q", line)
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", "", errors.New("empty key")
	}
	return key, strings.TrimSpace(value), nil
}

// set assigns one key. Unknown keys are ignored.
func (c *Config) set(key, value string) error {
	switch key {
	case "datadir":
		c.DataDir = value
	case "listen":
		c.ListenAddr = value
	case "loglevel":
		c.LogLevel = value
	case "logfile":
		c.LogFile = value
	case "backend":
		c.Backend = value
	case "chunksize":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: chunksize %q", ErrInvalidValue, value)
		}
		c.ChunkSize = n
	case "chunker":
		c.Chunker = value
	case "compression":
		c.Compression = value
	case "apps":
		c.Apps = splitList(value)
	case "peers":
		c.Peers = splitList(value)
	case "dnsupstream":
		c.DNSUpstream = value
	case "proposewindow":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: proposewindow %q", ErrInvalidValue, value)
		}
		c.ProposeWindow = d
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// envKeys maps config keys to their environment variable suffix.
var envKeys = []struct{ key, env string }{
	{"datadir", "DATADIR"},
	{"listen", "LISTEN"},
	{"loglevel", "LOGLEVEL"},
	{"logfile", "LOGFILE"},
	{"backend", "BACKEND"},
	{"chunksize", "CHUNKSIZE"},
	{"chunker", "CHUNKER"},
	{"compression", "COMPRESSION"},
	{"apps", "APPS"},
	{"peers", "PEERS"},
	{"dnsupstream", "DNS_UPSTREAM"},
	{"proposewindow", "PROPOSE_WINDOW"},
}

// ApplyEnv overlays STORM_* variables from env onto cfg. Empty values are
// skipped. Precedence is defaults, then the config file, then env, then
// command-line flags applied by the caller.
func ApplyEnv(cfg *Config, env map[string]string) error {
	for _, k := range envKeys {
		v, ok := env[EnvPrefix+k.env]
		if !ok || v == "" {
			continue
		}
		if err := cfg.set(k.key, v); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, k.env, err)
		}
	}
	return nil
}

// Environ returns the process environment as a map for ApplyEnv.
func Environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, EnvPrefix) {
			env[k] = v
		}
	}
	return env
}

// SaveConfig writes cfg to path with mode 0600, creating parent
// directories as needed.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Storm Configuration\n\n")
	fmt.Fprintf(&b, "datadir = %s\n", cfg.DataDir)
	fmt.Fprintf(&b, "listen = %s\n", cfg.ListenAddr)
	fmt.Fprintf(&b, "loglevel = %s\n", cfg.LogLevel)
	fmt.Fprintf(&b, "logfile = %s\n", cfg.LogFile)
	b.WriteString("\n# Storage\n")
	fmt.Fprintf(&b, "backend = %s\n", cfg.Backend)
	fmt.Fprintf(&b, "chunksize = %d\n", cfg.ChunkSize)
	fmt.Fprintf(&b, "chunker = %s\n", cfg.Chunker)
	fmt.Fprintf(&b, "compression = %s\n", cfg.Compression)
	b.WriteString("\n# Protocol\n")
	fmt.Fprintf(&b, "apps = %s\n", strings.Join(cfg.Apps, ", "))
	fmt.Fprintf(&b, "peers = %s\n", strings.Join(cfg.Peers, ", "))
	fmt.Fprintf(&b, "dnsupstream = %s\n", cfg.DNSUpstream)
	fmt.Fprintf(&b, "proposewindow = %s\n", cfg.ProposeWindow)

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// StoreOptions converts the storage settings for storage.Open.
func (c Config) StoreOptions() (storage.Options, error) {
	comp, err := storage.ParseCompression(c.Compression)
	if err != nil {
		return storage.Options{}, fmt.Errorf("%w: %w", ErrInvalidCompression, err)
	}
	return storage.Options{Backend: c.Backend, Dir: c.DataDir, Compression: comp}, nil
}

// AppList parses Apps.
func (c Config) AppList() ([]storm.App, error) {
	apps := make([]storm.App, 0, len(c.Apps))
	for _, name := range c.Apps {
		app, err := storm.ParseApp(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidApp, err)
		}
		apps = append(apps, app)
	}
	return apps, nil
}
