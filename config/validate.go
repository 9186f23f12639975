// Copyright (c) 2024 The Storm developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/stormnet/storm-go/chunking"
	"github.com/stormnet/storm-go/storage"
	"github.com/stormnet/storm-go/storm"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if err := validateAddr(cfg.ListenAddr); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidListenAddr, err)
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	switch cfg.Backend {
	case storage.BackendMemory, storage.BackendBolt, storage.BackendFiles:
	default:
		return ErrInvalidBackend
	}

	if cfg.ChunkSize < 1 || cfg.ChunkSize > storm.MaxChunkLen {
		return fmt.Errorf("%w: %d", ErrInvalidChunkSize, cfg.ChunkSize)
	}

	if _, err := chunking.ParsePolicy(cfg.Chunker); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidChunker, err)
	}

	if _, err := cfg.StoreOptions(); err != nil {
		return err
	}

	if _, err := cfg.AppList(); err != nil {
		return err
	}

	if cfg.ProposeWindow <= 0 {
		return ErrInvalidProposeWindow
	}

	return nil
}

// validateAddr checks that addr is a valid host:port address.
func validateAddr(addr string) error {
	_, _, err := net.SplitHostPort(addr)
	return err
}
