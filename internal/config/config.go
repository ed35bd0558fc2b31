package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPort is used when neither the file nor PORT sets one.
const DefaultPort = 10000

// Config represents configuration data for the smoke server and client.
type Config struct {
	Port      int          `yaml:"port"`
	LogLevel  string       `yaml:"log_level"`
	LogFormat string       `yaml:"log_format"`
	Server    ServerConfig `yaml:"server"`
	Client    ClientConfig `yaml:"client"`
}

// ServerConfig tunes the WebSocket acceptors.
type ServerConfig struct {
	PingInterval   time.Duration `yaml:"ping_interval"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// ClientConfig drives the probe harness.
type ClientConfig struct {
	// BackendOrigin is an http(s) origin whose scheme is swapped for ws(s).
	BackendOrigin string        `yaml:"backend_origin"`
	Every         time.Duration `yaml:"every"`
	Probes        []ProbeSpec   `yaml:"probes"`
}

// ProbeSpec defines one probe of a plan file.
type ProbeSpec struct {
	Name    string        `yaml:"name"`
	Path    string        `yaml:"path"`
	Send    *SendSpec     `yaml:"send"`
	Expect  string        `yaml:"expect"`
	Timeout time.Duration `yaml:"timeout"`
	Linger  time.Duration `yaml:"linger"`
}

// SendSpec is the payload written once the connection opens.
type SendSpec struct {
	// Kind is "text" or "binary"; binary data is hex encoded.
	Kind string `yaml:"kind"`
	Data string `yaml:"data"`
}

// DefaultConfig returns sensible defaults in case no configuration file is provided.
func DefaultConfig() Config {
	return Config{
		Port:      DefaultPort,
		LogLevel:  "info",
		LogFormat: "text",
		Server: ServerConfig{
			PingInterval: 2 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
	}
}

// Load reads configuration from a yaml file and then applies the environment.
// Missing files fall back to defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(content, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadPlan reads a standalone probe plan file.
func LoadPlan(path string) ([]ProbeSpec, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	var plan struct {
		Probes []ProbeSpec `yaml:"probes"`
	}
	if err := yaml.Unmarshal(content, &plan); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if err := validateProbes(plan.Probes); err != nil {
		return nil, err
	}
	if len(plan.Probes) == 0 {
		return nil, errors.New("plan must define at least one probe")
	}
	return plan.Probes, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if raw, ok := lookup("PORT"); ok && strings.TrimSpace(raw) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("parse PORT: %w", err)
		}
		c.Port = port
	}
	if raw, ok := lookup("BACKEND_ORIGIN"); ok && raw != "" {
		c.Client.BackendOrigin = raw
	}
	if raw, ok := lookup("LOG_LEVEL"); ok && raw != "" {
		c.LogLevel = raw
	}
	if raw, ok := lookup("LOG_FORMAT"); ok && raw != "" {
		c.LogFormat = raw
	}
	return nil
}

func (c *Config) normalize() error {
	defaults := DefaultConfig()
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Server.PingInterval <= 0 {
		c.Server.PingInterval = defaults.Server.PingInterval
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = defaults.Server.WriteTimeout
	}
	if c.Client.Every < 0 {
		return errors.New("client.every must not be negative")
	}
	return validateProbes(c.Client.Probes)
}

func validateProbes(probes []ProbeSpec) error {
	seen := make(map[string]struct{}, len(probes))
	for i, p := range probes {
		if p.Name == "" {
			return fmt.Errorf("probe %d is missing name", i)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("probe %s is defined twice", p.Name)
		}
		seen[p.Name] = struct{}{}
		if !strings.HasPrefix(p.Path, "/") {
			return fmt.Errorf("probe %s path must start with /", p.Name)
		}
		if p.Timeout < 0 || p.Linger < 0 {
			return fmt.Errorf("probe %s durations must not be negative", p.Name)
		}
		if p.Send != nil && p.Send.Kind != "text" && p.Send.Kind != "binary" {
			return fmt.Errorf("probe %s send.kind must be text or binary", p.Name)
		}
	}
	return nil
}

// ListenAddr is the address the server binds to.
func (c Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Port)
}

// WSBase derives the WebSocket base URL (scheme and host, no path) the
// harness targets. With an origin, http becomes ws and https becomes wss.
// Without one, the local listener on port is used.
func WSBase(origin string, port int) (string, error) {
	if origin == "" {
		return "ws://" + net.JoinHostPort("localhost", strconv.Itoa(port)), nil
	}
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("parse backend origin: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("backend origin %q must use http or https", origin)
	}
	if u.Host == "" {
		return "", fmt.Errorf("backend origin %q has no host", origin)
	}
	return u.Scheme + "://" + u.Host, nil
}
