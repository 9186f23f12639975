package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormnet/storm-go/config"
	"github.com/stormnet/storm-go/node"
	"github.com/stormnet/storm-go/session"
	"github.com/stormnet/storm-go/storage"
	"github.com/stormnet/storm-go/storm"
)

// writeConfig saves a config rooted at a fresh data directory.
func writeConfig(t *testing.T, backend string) (path, dataDir string) {
	t.Helper()
	dataDir = t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDir = dataDir
	cfg.Backend = backend
	cfg.ChunkSize = 64
	cfg.LogLevel = "error"
	path = config.ConfigPath(dataDir)
	require.NoError(t, config.SaveConfig(path, cfg))
	return path, dataDir
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

// field returns the value after label in "label value" output lines.
func field(t *testing.T, out, label string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if rest, ok := strings.CutPrefix(line, label+" "); ok {
			return rest
		}
	}
	t.Fatalf("no %q line in output:\n%s", label, out)
	return ""
}

func TestSplitFetchApps(t *testing.T) {
	cfgA, dirA := writeConfig(t, storage.BackendBolt)
	cfgB, _ := writeConfig(t, storage.BackendFiles)

	payload := bytes.Repeat([]byte("0123456789"), 20)
	in := filepath.Join(t.TempDir(), "payload.txt")
	require.NoError(t, os.WriteFile(in, payload, 0600))

	idOut := run(t, "--config", cfgA, "id", "--mime", "text/plain", in)
	assert.Equal(t, 4, strings.Count(idOut, "chunk "))
	assert.Equal(t, "200", field(t, idOut, "size"))

	splitOut := run(t, "--config", cfgA, "split", "--mime", "text/plain", "--topic", "shared files", in)
	containerID := field(t, splitOut, "container")
	topicID := field(t, splitOut, "topic")
	assert.Equal(t, field(t, idOut, "container"), containerID)

	// Serve node A from its data directory.
	store, err := storage.Open(storage.Options{Backend: storage.BackendBolt, Dir: dirA})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ln, err := session.Listen("127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		srv := node.NewServer(node.NewResponder(store, node.NewAppRegistry(storm.AppStorage), nil), nil)
		served <- srv.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-served
	})
	addr := ln.Addr().String()

	out := filepath.Join(t.TempDir(), "fetched.txt")
	fetchOut := run(t, "--config", cfgB, "fetch", addr, topicID, containerID, out)
	assert.Contains(t, fetchOut, "200 bytes")
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	appsOut := run(t, "--config", cfgB, "apps", addr)
	assert.Contains(t, appsOut, "storage\t0x0003\tstandard")
}

func TestFetchRejected(t *testing.T) {
	cfg, _ := writeConfig(t, storage.BackendMemory)

	ln, err := session.Listen("127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		srv := node.NewServer(node.NewResponder(storage.NewMemStore(), node.NewAppRegistry(storm.AppStorage), nil), nil)
		served <- srv.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-served
	})

	mid := storm.CommitMesgID([]byte("unknown topic"))
	cid := storm.CommitContainerID([]byte("unknown container"))
	var buf bytes.Buffer
	cmd := newRootCmd(&buf)
	cmd.SetArgs([]string{"--config", cfg, "fetch", ln.Addr().String(), mid.String(), cid.Bech32(), filepath.Join(t.TempDir(), "out")})
	cmd.SetErr(&bytes.Buffer{})
	assert.ErrorIs(t, cmd.Execute(), node.ErrRejected)
}

func TestConfigErrors(t *testing.T) {
	var buf bytes.Buffer
	cmd := newRootCmd(&buf)
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing"), "id", "x"})
	cmd.SetErr(&bytes.Buffer{})
	assert.ErrorIs(t, cmd.Execute(), config.ErrConfigNotFound)
}

func TestParseContainerID(t *testing.T) {
	id := storm.CommitContainerID([]byte("c"))

	got, err := parseContainerID(id.Bech32())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = parseContainerID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = parseContainerID("nonsense")
	assert.ErrorIs(t, err, storm.ErrInvalidID)
}
