// Copyright (c) 2024 The Storm developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stormnet/storm-go/storage"
	"github.com/stormnet/storm-go/storm"
)

// ---------------------------------------------------------------------------
// DefaultConfig tests
// ---------------------------------------------------------------------------

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"ListenAddr", cfg.ListenAddr, ":7400"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFile", cfg.LogFile, ""},
		{"Backend", cfg.Backend, "bolt"},
		{"ChunkSize", cfg.ChunkSize, 256 * 1024},
		{"Chunker", cfg.Chunker, "fixed"},
		{"Compression", cfg.Compression, "zstd"},
		{"ProposeWindow", cfg.ProposeWindow, 2 * time.Second},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %v, want %v", tc.got, tc.want)
			}
		})
	}

	if cfg.DataDir == "" {
		t.Error("DataDir should not be empty")
	}
}

func TestDefaultDataDir_EndsWith_DotStorm(t *testing.T) {
	dir := DefaultDataDir()
	if !strings.HasSuffix(dir, ".storm") {
		t.Errorf("DefaultDataDir() = %q, want suffix %q", dir, ".storm")
	}
}

func TestConfigPath(t *testing.T) {
	got := ConfigPath("/home/user/.storm/")
	want := filepath.Join("/home/user/.storm", "config")
	if got != want {
		t.Errorf("ConfigPath = %q, want %q", got, want)
	}
}

// ---------------------------------------------------------------------------
// SaveConfig / LoadConfig tests
// ---------------------------------------------------------------------------

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")

	original := Config{
		DataDir:       "/tmp/test-storm",
		ListenAddr:    ":9000",
		LogLevel:      "debug",
		LogFile:       "/tmp/stormd.log",
		Backend:       "files",
		ChunkSize:     4096,
		Chunker:       "rabin",
		Compression:   "gzip",
		Apps:          []string{"storage", "vendor(0x8001)"},
		Peers:         []string{"10.0.0.1:7400", "example.org"},
		DNSUpstream:   "1.1.1.1:53",
		ProposeWindow: 1500 * time.Millisecond,
	}

	if err := SaveConfig(path, original); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !reflect.DeepEqual(loaded, original) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, original)
	}
}

func TestSaveConfigCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "config")

	if err := SaveConfig(path, DefaultConfig()); err != nil {
		t.Fatalf("SaveConfig should create parent dirs: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Config file not created: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestSaveConfig_OutputContainsAllKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	if err := SaveConfig(path, DefaultConfig()); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "# Storm Configuration") {
		t.Error("saved config should contain header '# Storm Configuration'")
	}
	for _, k := range envKeys {
		if !strings.Contains(content, k.key+" = ") {
			t.Errorf("saved config should contain key %q", k.key)
		}
	}
}

func TestLoadConfigNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config")
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("LoadConfig nonexistent: got %v, want ErrConfigNotFound", err)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"not key value", "this-is-not-key-value\n", ErrInvalidConfigLine},
		{"empty key", " = value\n", ErrInvalidConfigLine},
		{"bad chunksize", "chunksize = big\n", ErrInvalidValue},
		{"bad proposewindow", "proposewindow = soon\n", ErrInvalidValue},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config")
			if err := os.WriteFile(path, []byte(tc.content), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := LoadConfig(path)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("LoadConfig: got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestLoadConfigCommentsBlanksAndUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	content := `# This is a comment
backend = memory

# Another comment
futurekey = futurevalue
  loglevel = debug
logfile=/tmp/a=b.log
peers = a.example:1, , b.example:2
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Backend != "memory" {
		t.Errorf("Backend = %q, want %q", cfg.Backend, "memory")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.LogFile != "/tmp/a=b.log" {
		t.Errorf("LogFile = %q, want %q", cfg.LogFile, "/tmp/a=b.log")
	}
	if want := []string{"a.example:1", "b.example:2"}; !reflect.DeepEqual(cfg.Peers, want) {
		t.Errorf("Peers = %q, want %q", cfg.Peers, want)
	}
	// Unset fields keep defaults.
	if cfg.ListenAddr != ":7400" {
		t.Errorf("ListenAddr = %q, want default %q", cfg.ListenAddr, ":7400")
	}
}

func TestLoadConfig_PermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission test not reliable on Windows")
	}
	if os.Getuid() == 0 {
		t.Skip("cannot test permission denial as root")
	}

	path := filepath.Join(t.TempDir(), "config")
	if err := os.WriteFile(path, []byte("backend=memory\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, 0000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(path, 0600) })

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("LoadConfig on unreadable file: expected error, got nil")
	}
	if errors.Is(err, ErrConfigNotFound) {
		t.Error("LoadConfig on unreadable file should not return ErrConfigNotFound")
	}
}

// ---------------------------------------------------------------------------
// ApplyEnv tests
// ---------------------------------------------------------------------------

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	env := map[string]string{
		"STORM_LISTEN":         "127.0.0.1:7500",
		"STORM_LOGLEVEL":       "",
		"STORM_PEERS":          "one.example,two.example:7400",
		"STORM_DNS_UPSTREAM":   "9.9.9.9:53",
		"STORM_PROPOSE_WINDOW": "250ms",
		"OTHER_LISTEN":         ":1",
	}
	if err := ApplyEnv(&cfg, env); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	if cfg.ListenAddr != "127.0.0.1:7500" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("empty STORM_LOGLEVEL should keep %q, got %q", "info", cfg.LogLevel)
	}
	if want := []string{"one.example", "two.example:7400"}; !reflect.DeepEqual(cfg.Peers, want) {
		t.Errorf("Peers = %q, want %q", cfg.Peers, want)
	}
	if cfg.DNSUpstream != "9.9.9.9:53" {
		t.Errorf("DNSUpstream = %q", cfg.DNSUpstream)
	}
	if cfg.ProposeWindow != 250*time.Millisecond {
		t.Errorf("ProposeWindow = %v", cfg.ProposeWindow)
	}

	err := ApplyEnv(&cfg, map[string]string{"STORM_CHUNKSIZE": "lots"})
	if !errors.Is(err, ErrInvalidValue) {
		t.Errorf("ApplyEnv bad chunk size: got %v, want ErrInvalidValue", err)
	}
}

func TestEnviron(t *testing.T) {
	t.Setenv("STORM_BACKEND", "memory")
	env := Environ()
	if env["STORM_BACKEND"] != "memory" {
		t.Errorf("Environ()[STORM_BACKEND] = %q", env["STORM_BACKEND"])
	}
	for k := range env {
		if !strings.HasPrefix(k, EnvPrefix) {
			t.Errorf("Environ() returned unrelated variable %q", k)
		}
	}
}

// ---------------------------------------------------------------------------
// ValidateConfig tests
// ---------------------------------------------------------------------------

func TestValidateConfigDefaults(t *testing.T) {
	if err := ValidateConfig(DefaultConfig()); err != nil {
		t.Errorf("ValidateConfig(DefaultConfig()) = %v, want nil", err)
	}
}

func TestValidateConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{"empty_datadir", func(c *Config) { c.DataDir = "" }, ErrEmptyDataDir},
		{"bad_listen_addr", func(c *Config) { c.ListenAddr = "not-a-valid-addr" }, ErrInvalidListenAddr},
		{"empty_listen_addr", func(c *Config) { c.ListenAddr = "" }, ErrInvalidListenAddr},
		{"bad_loglevel", func(c *Config) { c.LogLevel = "verbose" }, ErrInvalidLogLevel},
		{"bad_backend", func(c *Config) { c.Backend = "sqlite" }, ErrInvalidBackend},
		{"zero_chunksize", func(c *Config) { c.ChunkSize = 0 }, ErrInvalidChunkSize},
		{"huge_chunksize", func(c *Config) { c.ChunkSize = 1 << 24 }, ErrInvalidChunkSize},
		{"bad_chunker", func(c *Config) { c.Chunker = "fastcdc" }, ErrInvalidChunker},
		{"bad_compression", func(c *Config) { c.Compression = "lz4" }, ErrInvalidCompression},
		{"bad_app", func(c *Config) { c.Apps = []string{"storage", "vendor(0x0001)"} }, ErrInvalidApp},
		{"zero_window", func(c *Config) { c.ProposeWindow = 0 }, ErrInvalidProposeWindow},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			err := ValidateConfig(cfg)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("ValidateConfig: got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateConfig_LogLevelCaseInsensitive(t *testing.T) {
	for _, level := range []string{"INFO", "Debug", "WARN", "Error", "dEbUg"} {
		t.Run(level, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.LogLevel = level
			if err := ValidateConfig(cfg); err != nil {
				t.Errorf("ValidateConfig with LogLevel %q: %v", level, err)
			}
		})
	}
}

func TestValidateConfig_ValidListenAddrVariants(t *testing.T) {
	for _, addr := range []string{"127.0.0.1:80", "0.0.0.0:443", ":7400", "localhost:3000", "[::1]:7400"} {
		t.Run(addr, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ListenAddr = addr
			if err := ValidateConfig(cfg); err != nil {
				t.Errorf("ValidateConfig with ListenAddr %q: %v", addr, err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Conversion helpers
// ---------------------------------------------------------------------------

func TestStoreOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/srv/storm"
	cfg.Backend = "files"
	cfg.Compression = "gzip"

	opts, err := cfg.StoreOptions()
	if err != nil {
		t.Fatalf("StoreOptions: %v", err)
	}
	want := storage.Options{Backend: "files", Dir: "/srv/storm", Compression: storage.CompressGzip}
	if opts != want {
		t.Errorf("StoreOptions = %+v, want %+v", opts, want)
	}
}

func TestAppList(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Apps = []string{"chat", "0x0010", "vendor(0x8001)"}

	apps, err := cfg.AppList()
	if err != nil {
		t.Fatalf("AppList: %v", err)
	}
	want := []storm.App{storm.AppChat, storm.AppRGBContracts, storm.App(0x8001)}
	if !reflect.DeepEqual(apps, want) {
		t.Errorf("AppList = %v, want %v", apps, want)
	}
}
