// Package config loads fairbox settings from an HCL file and the
// environment. Command-line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/rs/zerolog"
)

// Environment variables that override the file.
const (
	EnvBoxes         = "FAIRBOX_BOXES"
	EnvStrategy      = "FAIRBOX_STRATEGY"
	EnvSource        = "FAIRBOX_SOURCE"
	EnvLogLevel      = "FAIRBOX_LOG_LEVEL"
	EnvTranscriptDir = "FAIRBOX_TRANSCRIPT_DIR"
	EnvRemoteAddr    = "FAIRBOX_REMOTE_ADDR"
)

// DefaultFile is read when no --config flag is given.
const DefaultFile = "fairbox.hcl"

// Config is the complete configuration.
type Config struct {
	Game       *GameConfig       `hcl:"game,block"`
	Log        *LogConfig        `hcl:"log,block"`
	Transcript *TranscriptConfig `hcl:"transcript,block"`
	Remote     *RemoteConfig     `hcl:"remote,block"`
}

// GameConfig describes the default game.
type GameConfig struct {
	Boxes    int    `hcl:"boxes,optional"`
	Strategy string `hcl:"strategy,optional"`
	Source   string `hcl:"source,optional"`
	HostName string `hcl:"host_name,optional"`
	PeerName string `hcl:"peer_name,optional"`
}

// LogConfig controls the structured log.
type LogConfig struct {
	Level string `hcl:"level,optional"`
	File  string `hcl:"file,optional"`
	JSON  bool   `hcl:"json,optional"`
}

// TranscriptConfig controls where session transcripts are written.
type TranscriptConfig struct {
	Enabled bool   `hcl:"enabled,optional"`
	Dir     string `hcl:"dir,optional"`
}

// RemoteConfig controls the websocket transport.
type RemoteConfig struct {
	Address      string `hcl:"address,optional"`
	Path         string `hcl:"path,optional"`
	PingInterval string `hcl:"ping_interval,optional"`
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads filename. A missing file yields the defaults.
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var c Config
	diags = gohcl.DecodeBody(file.Body, nil, &c)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Game == nil {
		c.Game = &GameConfig{}
	}
	if c.Game.Boxes == 0 {
		c.Game.Boxes = 3
	}
	if c.Game.Strategy == "" {
		c.Game.Strategy = "uniform"
	}
	if c.Game.HostName == "" {
		c.Game.HostName = "Morty"
	}
	if c.Game.PeerName == "" {
		c.Game.PeerName = "Rick"
	}

	if c.Log == nil {
		c.Log = &LogConfig{}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.File == "" {
		c.Log.File = "fairbox.log"
	}

	if c.Transcript == nil {
		c.Transcript = &TranscriptConfig{}
	}
	if c.Transcript.Dir == "" {
		c.Transcript.Dir = "transcripts"
	}

	if c.Remote == nil {
		c.Remote = &RemoteConfig{}
	}
	if c.Remote.Address == "" {
		c.Remote.Address = "localhost:7777"
	}
	if c.Remote.Path == "" {
		c.Remote.Path = "/fairbox"
	}
	if c.Remote.PingInterval == "" {
		c.Remote.PingInterval = "30s"
	}
}

// ApplyEnv overrides settings from the process environment.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBoxes); ok && v != "" {
		boxes, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s value: %w", EnvBoxes, err)
		}
		c.Game.Boxes = boxes
	}
	if v, ok := lookup(EnvStrategy); ok && v != "" {
		c.Game.Strategy = v
	}
	if v, ok := lookup(EnvSource); ok {
		c.Game.Source = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvTranscriptDir); ok && v != "" {
		c.Transcript.Dir = v
		c.Transcript.Enabled = true
	}
	if v, ok := lookup(EnvRemoteAddr); ok && v != "" {
		c.Remote.Address = v
	}
	return nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Game.Boxes < 3 {
		return fmt.Errorf("game: boxes must be at least 3, got %d", c.Game.Boxes)
	}
	if c.Game.Strategy == "" {
		return errors.New("game: strategy is required")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: invalid level %q", c.Log.Level)
	}
	if _, err := c.PingInterval(); err != nil {
		return err
	}
	if c.Remote.Path == "" || c.Remote.Path[0] != '/' {
		return fmt.Errorf("remote: path must start with /, got %q", c.Remote.Path)
	}
	return nil
}

// PingInterval parses the remote keepalive interval.
func (c *Config) PingInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Remote.PingInterval)
	if err != nil {
		return 0, fmt.Errorf("remote: invalid ping_interval %q: %w", c.Remote.PingInterval, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("remote: ping_interval must be positive, got %v", d)
	}
	return d, nil
}
