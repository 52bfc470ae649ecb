// Package config loads the YAML configuration shared by sshproxy and sshctl.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"sshwire/pkg/handshake"
	"sshwire/pkg/ident"
	"sshwire/pkg/kexinit"
)

// Identification is the local identification line.
type Identification struct {
	Software string `yaml:"software"`
	Comments string `yaml:"comments,omitempty"`
}

// Algorithms are the local preference lists, most preferred first. Empty
// lists fall back to the defaults.
type Algorithms struct {
	Kex         []string `yaml:"kex,omitempty"`
	HostKey     []string `yaml:"host_key,omitempty"`
	Ciphers     []string `yaml:"ciphers,omitempty"`
	MACs        []string `yaml:"macs,omitempty"`
	Compression []string `yaml:"compression,omitempty"`
}

// Config is the on-disk configuration.
type Config struct {
	Listen        string         `yaml:"listen"`
	Target        string         `yaml:"target"`
	Database      string         `yaml:"database"`
	Timeout       time.Duration  `yaml:"timeout"`
	Hash          string         `yaml:"hash"`
	Syslog        bool           `yaml:"syslog"`
	ProxyProtocol bool           `yaml:"proxy_protocol"`
	Ident         Identification `yaml:"identification"`
	Algorithms    Algorithms     `yaml:"algorithms,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:   ":2222",
		Target:   "localhost:22",
		Database: "ssh_connections.db",
		Timeout:  handshake.DefaultTimeout,
		Hash:     kexinit.HashMD5.String(),
		Ident:    Identification{Software: "sshwire_1.0"},
	}
}

// Load reads path on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field that can be checked without touching the network.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if _, err := c.HashAlgorithm(); err != nil {
		return err
	}
	if _, err := c.Identification(); err != nil {
		return fmt.Errorf("identification: %w", err)
	}
	if _, err := c.KexInit(bytes.NewReader(make([]byte, kexinit.CookieSize))); err != nil {
		return fmt.Errorf("algorithms: %w", err)
	}
	return nil
}

// HashAlgorithm returns the configured fingerprint hash.
func (c *Config) HashAlgorithm() (kexinit.HashAlgorithm, error) {
	return kexinit.ParseHashAlgorithm(c.Hash)
}

// Identification builds the SSH-2.0 identification line.
func (c *Config) Identification() (ident.Version, error) {
	return ident.New("2.0", c.Ident.Software, c.Ident.Comments)
}

// Preferences merges the configured lists over kexinit.DefaultPreferences.
func (c *Config) Preferences() kexinit.Preferences {
	p := kexinit.DefaultPreferences()
	if len(c.Algorithms.Kex) > 0 {
		p.Kex = c.Algorithms.Kex
	}
	if len(c.Algorithms.HostKey) > 0 {
		p.HostKey = c.Algorithms.HostKey
	}
	if len(c.Algorithms.Ciphers) > 0 {
		p.Ciphers = c.Algorithms.Ciphers
	}
	if len(c.Algorithms.MACs) > 0 {
		p.MACs = c.Algorithms.MACs
	}
	if len(c.Algorithms.Compression) > 0 {
		p.Compression = c.Algorithms.Compression
	}
	return p
}

// KexInit builds the local KEXINIT with a cookie drawn from rand, or from
// crypto/rand when rand is nil.
func (c *Config) KexInit(rand io.Reader) (*kexinit.KexInit, error) {
	return kexinit.New(rand, c.Preferences())
}

// Handshake builds a client handshake configuration.
func (c *Config) Handshake() (handshake.Config, error) {
	version, err := c.Identification()
	if err != nil {
		return handshake.Config{}, err
	}
	k, err := c.KexInit(nil)
	if err != nil {
		return handshake.Config{}, err
	}
	hash, err := c.HashAlgorithm()
	if err != nil {
		return handshake.Config{}, err
	}

	return handshake.Config{
		Version:          version,
		KexInit:          k,
		Role:             handshake.RoleClient,
		Timeout:          c.Timeout,
		MaxPreambleLines: handshake.DefaultMaxPreambleLines,
		Hash:             hash,
	}, nil
}
