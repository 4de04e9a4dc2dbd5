// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package config loads cmd/lineaged's TOML configuration file, one
// struct per concern following pkg/serve/config.go's shape: a
// Duration wrapper that implements encoding.TextUnmarshaler, secret
// fields that get resolved after decode, and a [node]/[http]/[log]/
// [cache]/[replication]/[encryption]/[storage]/[database]/[push]
// section layout.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-sql-driver/mysql"
)

const maxConfigSize = 64 << 20 // 64MiB, plenty for a TOML file and a hard backstop against a misdirected path

// Duration unmarshals a TOML string like "30s" via time.ParseDuration,
// the way pkg/serve/config.go's Duration does.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// ServerConfig is the top-level shape of cmd/lineaged's config file.
type ServerConfig struct {
	Node        Node        `toml:"node"`
	HTTP        HTTP        `toml:"http"`
	Log         Log         `toml:"log,omitempty"`
	Cache       Cache       `toml:"cache,omitempty"`
	Replication Replication `toml:"replication,omitempty"`
	Encryption  *Encryption `toml:"encryption,omitempty"`
	Storage     Storage     `toml:"storage"`
	Database    Database    `toml:"database"`
	Push        Push        `toml:"push,omitempty"`
}

// Node configures this replica's raft identity and on-disk state.
type Node struct {
	ID        string `toml:"id"`
	BindAddr  string `toml:"bind_addr"`
	DataDir   string `toml:"data_dir"`
	Bootstrap bool   `toml:"bootstrap,omitempty"`
}

// HTTP configures the command-API listener (internal/transport/httpapi).
type HTTP struct {
	Listen       string   `toml:"listen"`
	ReadTimeout  Duration `toml:"read_timeout,omitempty"`
	WriteTimeout Duration `toml:"write_timeout,omitempty"`
	IdleTimeout  Duration `toml:"idle_timeout,omitempty"`
}

const (
	DefaultReadTimeout  = 2 * time.Minute
	DefaultWriteTimeout = 2 * time.Minute
	DefaultIdleTimeout  = 5 * time.Minute
)

// Log configures the process-wide logrus.Logger.
type Log struct {
	Level string `toml:"level,omitempty"`
	JSON  bool   `toml:"json,omitempty"`
	File  string `toml:"file,omitempty"`
}

// Cache sizes the ristretto-backed query/merge cache (internal/cache).
type Cache struct {
	NumCounters int64 `toml:"num_counters"`
	MaxCost     int64 `toml:"max_cost"`
	BufferItems int64 `toml:"buffer_items"`
}

// Replication lists the raft peers that the bootstrap replica
// (Node.Bootstrap true) adds as voters at startup. A non-bootstrap
// replica ignores this.
type Replication struct {
	Peers []Peer `toml:"peers,omitempty"`
}

type Peer struct {
	ID   string `toml:"id"`
	Addr string `toml:"addr"`
}

// Encryption turns on the internal/crypto envelope-encryption
// substrate for every repository opened from this point on. Nil means
// encryption at rest is disabled for this deployment.
type Encryption struct {
	KEKID   string `toml:"kek_id"`
	Region  string `toml:"region,omitempty"`
	DataDir string `toml:"data_dir,omitempty"` // defaults to Node.DataDir/encryption
}

// Storage configures where repository objects live. With S3 set, every
// repository keeps its objects in that bucket instead of on local disk
// under Node.DataDir; an Encryption section takes precedence over both.
// Repositories is decoded but not read by cmd/lineaged.
type Storage struct {
	Repositories string `toml:"repositories"`
	S3           *S3    `toml:"s3,omitempty"`
}

type S3 struct {
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region,omitempty"`
	Endpoint        string `toml:"endpoint,omitempty"`
	AccessKeyID     string `toml:"access_key_id,omitempty"`
	AccessKeySecret string `toml:"access_key_secret,omitempty"`
}

// Push bounds the size of a single commit's replicated payload.
type Push struct {
	MaxPayloadBytes int64 `toml:"max_payload_bytes,omitempty"`
}

// DefaultMaxPushPayloadBytes is the commit payload size cap applied
// when Push.MaxPayloadBytes is left at zero (spec.md Open Questions:
// "a configurable limit with a default in the single-megabyte range").
const DefaultMaxPushPayloadBytes = 1 << 20

// Database configures the MySQL-backed project/repository catalog.
type Database struct {
	Name    string   `toml:"name"`
	User    string   `toml:"user"`
	Host    string   `toml:"host"`
	Port    int      `toml:"port"`
	Passwd  string   `toml:"passwd"`
	Timeout Duration `toml:"timeout,omitempty"`
}

// MakeConfig builds a *mysql.Config from d, the way
// pkg/serve/config.go's Database.MakeConfig does, including its
// ParseTime/InterpolateParams defaults.
func (d *Database) MakeConfig() *mysql.Config {
	timeout := d.Timeout.Duration
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Passwd
	cfg.DBName = d.Name
	cfg.Net = "tcp"
	cfg.Addr = d.Host + ":" + strconv.Itoa(d.Port)
	cfg.Timeout = timeout
	cfg.ReadTimeout = timeout
	cfg.WriteTimeout = timeout
	cfg.ParseTime = true
	cfg.InterpolateParams = true
	return cfg
}

// NewExpandReader opens file, optionally expanding ${VAR}/$VAR
// references against the process environment before the TOML decoder
// ever sees it — the same trick pkg/serve/config.go uses so a config
// file can reference a secret injected as an environment variable
// rather than spelling it out in plaintext.
func NewExpandReader(file string, expandEnv bool) (io.ReadCloser, error) {
	fd, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	if !expandEnv {
		return fd, nil
	}
	defer fd.Close()
	buf, err := io.ReadAll(io.LimitReader(fd, maxConfigSize))
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", file, err)
	}
	return io.NopCloser(strings.NewReader(os.ExpandEnv(string(buf)))), nil
}

// Load reads and decodes file into a ServerConfig, applying the same
// defaults NewServerConfig does in pkg/serve/httpserver/config.go.
func Load(file string, expandEnv bool) (*ServerConfig, error) {
	r, err := NewExpandReader(file, expandEnv)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	sc := &ServerConfig{
		HTTP: HTTP{
			Listen:       "127.0.0.1:21000",
			ReadTimeout:  Duration{DefaultReadTimeout},
			WriteTimeout: Duration{DefaultWriteTimeout},
			IdleTimeout:  Duration{DefaultIdleTimeout},
		},
	}
	if _, err := toml.NewDecoder(r).Decode(sc); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", file, err)
	}
	if sc.Cache.NumCounters == 0 {
		sc.Cache = Cache{NumCounters: 1e7, MaxCost: 1 << 28, BufferItems: 64}
	}
	if sc.Push.MaxPayloadBytes == 0 {
		sc.Push.MaxPayloadBytes = DefaultMaxPushPayloadBytes
	}
	if sc.Node.ID == "" {
		return nil, fmt.Errorf("config: node.id is required")
	}
	if sc.Node.DataDir == "" {
		return nil, fmt.Errorf("config: node.data_dir is required")
	}
	if sc.Encryption != nil && sc.Encryption.DataDir == "" {
		sc.Encryption.DataDir = sc.Node.DataDir + "/encryption"
	}
	return sc, nil
}
