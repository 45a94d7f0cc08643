// Package config loads connection settings for the log-analytics server.
//
// Settings are layered, later layers winning over earlier ones:
//  1. compiled-in defaults (https, port 443, ingestion port 9543, a random agent id)
//  2. a YAML file
//  3. LOGINSIGHT_* environment variables
//
// Empty values in a layer never clear a value from an earlier layer.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"gopkg.in/yaml.v3"
)

// Defaults applied before any file or environment layer.
const (
	DefaultScheme        = "https"
	DefaultPort          = 443
	DefaultIngestionPort = 9543
	DefaultCharset       = "UTF-8"
)

// Environment variables read by FromEnv.
const (
	EnvHost          = "LOGINSIGHT_HOST"
	EnvPort          = "LOGINSIGHT_PORT"
	EnvIngestionPort = "LOGINSIGHT_INGESTION_PORT"
	EnvUser          = "LOGINSIGHT_USERNAME"
	EnvPassword      = "LOGINSIGHT_PASSWORD"
	EnvScheme        = "LOGINSIGHT_SCHEME"
	EnvAgentID       = "LOGINSIGHT_AGENT_ID"
)

// Config holds everything needed to reach the query and ingestion APIs.
type Config struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	IngestionPort int    `yaml:"ingestion_port"`
	Scheme        string `yaml:"scheme"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`

	// AgentID identifies this client to the ingestion API. Must be a UUID.
	AgentID string `yaml:"agent_id"`

	// Charset is the IANA name of the charset constraint values are
	// encoded in before percent-escaping.
	Charset string `yaml:"charset"`

	// Insecure disables TLS certificate verification. Appliances commonly
	// ship with self-signed certificates.
	Insecure bool `yaml:"insecure"`
}

// Default returns the compiled-in defaults with a fresh agent id.
func Default() Config {
	return Config{
		Port:          DefaultPort,
		IngestionPort: DefaultIngestionPort,
		Scheme:        DefaultScheme,
		AgentID:       uuid.NewString(),
		Charset:       DefaultCharset,
	}
}

// Load layers the file at path (skipped when path is empty) and the process
// environment over Default, then validates the result.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.Getenv)
}

// LoadWithEnv is Load with an injectable environment lookup.
func LoadWithEnv(path string, getenv func(string) string) (Config, error) {
	cfg := Default()

	if path != "" {
		fileCfg, err := FromFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := cfg.Merge(fileCfg); err != nil {
			return Config{}, err
		}
	}

	envCfg, err := FromEnv(getenv)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Merge(envCfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromFile reads a YAML config file without applying defaults.
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes without applying defaults.
// Unknown keys are rejected so typos surface early.
func Parse(data []byte) (Config, error) {
	var wrapper struct {
		LogInsight Config `yaml:"loginsight"`
	}
	var cfg Config

	// Accept both a bare mapping and one nested under "loginsight:".
	var probe map[string]yaml.Node
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if _, nested := probe["loginsight"]; nested {
		if err := decodeStrict(data, &wrapper); err != nil {
			return Config{}, err
		}
		return wrapper.LogInsight, nil
	}
	if err := decodeStrict(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv reads LOGINSIGHT_* variables. Unset variables leave fields empty.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Host:     getenv(EnvHost),
		User:     getenv(EnvUser),
		Password: getenv(EnvPassword),
		Scheme:   getenv(EnvScheme),
		AgentID:  getenv(EnvAgentID),
	}

	var err error
	if cfg.Port, err = envInt(getenv, EnvPort); err != nil {
		return Config{}, err
	}
	if cfg.IngestionPort, err = envInt(getenv, EnvIngestionPort); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Merge overlays the non-empty fields of other onto c.
func (c *Config) Merge(other Config) error {
	if err := copier.CopyWithOption(c, &other, copier.Option{IgnoreEmpty: true}); err != nil {
		return fmt.Errorf("merge config: %w", err)
	}
	return nil
}

// Validate checks field formats. Host is not required here: compiling
// URLs needs no server.
func (c Config) Validate() error {
	if c.Scheme != "http" && c.Scheme != "https" {
		return &InvalidError{Field: "scheme", Value: c.Scheme, Reason: "must be http or https"}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &InvalidError{Field: "port", Value: strconv.Itoa(c.Port), Reason: "out of range"}
	}
	if c.IngestionPort < 1 || c.IngestionPort > 65535 {
		return &InvalidError{Field: "ingestion_port", Value: strconv.Itoa(c.IngestionPort), Reason: "out of range"}
	}
	if _, err := uuid.Parse(c.AgentID); err != nil {
		return &InvalidError{Field: "agent_id", Value: c.AgentID, Reason: "not a UUID", Err: err}
	}
	if _, err := c.TextEncoding(); err != nil {
		return err
	}
	return nil
}

// BaseURL returns scheme://host:port for the query API.
func (c Config) BaseURL() string {
	return c.Scheme + "://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// IngestionURL returns the full ingestion endpoint for this agent.
func (c Config) IngestionURL() string {
	return c.Scheme + "://" + net.JoinHostPort(c.Host, strconv.Itoa(c.IngestionPort)) +
		"/api/v1/messages/ingest/" + c.AgentID
}

// TextEncoding resolves Charset to an encoding. An empty Charset means UTF-8.
func (c Config) TextEncoding() (encoding.Encoding, error) {
	name := c.Charset
	if name == "" {
		name = DefaultCharset
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, &InvalidError{Field: "charset", Value: name, Reason: "unknown charset", Err: err}
	}
	if enc == nil {
		return nil, &InvalidError{Field: "charset", Value: name, Reason: "unsupported charset"}
	}
	return enc, nil
}

func envInt(getenv func(string) string, key string) (int, error) {
	raw := getenv(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &InvalidError{Field: key, Value: raw, Reason: "not an integer", Err: err}
	}
	return n, nil
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
