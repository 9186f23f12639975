// Copyright (c) 2024 The Storm developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidListenAddr indicates the listen address is malformed.
	ErrInvalidListenAddr = errors.New("config: invalid listen address")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigLine indicates a line in the config file is malformed.
	ErrInvalidConfigLine = errors.New("config: invalid configuration line")

	// ErrInvalidValue indicates a value that does not parse as its key's type.
	ErrInvalidValue = errors.New("config: invalid value")

	// ErrInvalidBackend indicates a storage backend other than memory, bolt or files.
	ErrInvalidBackend = errors.New("config: invalid backend (must be \"memory\", \"bolt\", or \"files\")")

	// ErrInvalidChunkSize indicates a chunk size outside 1..2^24-1.
	ErrInvalidChunkSize = errors.New("config: invalid chunk size")

	// ErrInvalidChunker indicates an unknown chunking policy.
	ErrInvalidChunker = errors.New("config: invalid chunker (must be \"fixed\", \"buzhash\", or \"rabin\")")

	// ErrInvalidCompression indicates an unknown compression scheme.
	ErrInvalidCompression = errors.New("config: invalid compression (must be \"none\", \"gzip\", or \"zstd\")")

	// ErrInvalidApp indicates an application name or code that does not parse.
	ErrInvalidApp = errors.New("config: invalid application")

	// ErrInvalidProposeWindow indicates a non-positive propose window.
	ErrInvalidProposeWindow = errors.New("config: propose window must be positive")
)
