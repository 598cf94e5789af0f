package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultGateway      = "http://localhost:9091"
	DefaultMode         = "replace"
	DefaultPushInterval = 30 * time.Second
)

// Config holds all bridge settings. Fields map 1:1 to promship.example.yaml.
type Config struct {
	// Gateway is the base Pushgateway URL (http or https).
	Gateway string `yaml:"gateway"`

	// Job names the pushed metrics batch. Required.
	Job string `yaml:"job"`

	// GroupingKey holds extra label/value pairs scoping the push, typically
	// an instance identifier.
	GroupingKey map[string]string `yaml:"grouping_key"`

	// Mode selects the push semantics: "add" merges into the gateway's state
	// for the group, "replace" overwrites it.
	Mode string `yaml:"mode"`

	// PushInterval controls how often a snapshot is pushed.
	PushInterval time.Duration `yaml:"push_interval"`

	// OpenTimeout bounds establishing the gateway connection; zero means the
	// transport default.
	OpenTimeout time.Duration `yaml:"open_timeout"`

	// ReadTimeout bounds waiting for the gateway's response headers.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// TextfileDir is the directory of *.prom files to push. Required.
	TextfileDir string `yaml:"textfile_dir"`

	// SelfMetrics adds the bridge's own Go runtime and process metrics to
	// every push.
	SelfMetrics bool `yaml:"self_metrics"`

	// DeleteOnShutdown removes the job's group from the gateway when the
	// bridge exits, so stale metrics do not linger until manual cleanup.
	DeleteOnShutdown bool `yaml:"delete_on_shutdown"`

	// Auth configures HTTP basic authentication against the gateway.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS options for https gateways.
	TLS TLSConfig `yaml:"tls"`
}

// AuthConfig specifies basic-auth credentials for the gateway.
type AuthConfig struct {
	// Username is the literal username (safe to store in config).
	Username string `yaml:"username"`

	// PasswordEnv is the name of the environment variable holding the password.
	PasswordEnv string `yaml:"password_env"`
}

// Password returns the basic-auth password resolved from the environment.
// Returns empty string if PasswordEnv is unset or the variable is not found.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// TLSConfig holds gateway TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	// CAFile points at a PEM bundle to verify the gateway certificate against.
	CAFile string `yaml:"ca_file"`

	// CertFile and KeyFile configure a client certificate.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Gateway:      DefaultGateway,
		Mode:         DefaultMode,
		PushInterval: DefaultPushInterval,
	}
}

// validate checks required fields and enums.
func validate(cfg *Config) error {
	if cfg.Job == "" {
		return fmt.Errorf("job is required")
	}
	if cfg.TextfileDir == "" {
		return fmt.Errorf("textfile_dir is required")
	}
	if cfg.PushInterval <= 0 {
		return fmt.Errorf("push_interval must be positive")
	}
	switch cfg.Mode {
	case "add", "replace":
	default:
		return fmt.Errorf("unknown mode %q (want add or replace)", cfg.Mode)
	}
	if cfg.Auth.Username == "" && cfg.Auth.PasswordEnv != "" {
		return fmt.Errorf("auth.password_env set without auth.username")
	}
	return nil
}

// GatewayURL returns the gateway URL with basic-auth credentials embedded,
// ready to hand to the push client.
func (c *Config) GatewayURL() (string, error) {
	if c.Auth.Username == "" {
		return c.Gateway, nil
	}
	u, err := url.Parse(c.Gateway)
	if err != nil {
		return "", fmt.Errorf("config: parse gateway %q: %w", c.Gateway, err)
	}
	u.User = url.UserPassword(c.Auth.Username, c.Auth.Password())
	return u.String(), nil
}

// ClientTLS builds a *tls.Config from the TLS section. Returns nil when no
// TLS option is set, leaving the transport defaults in place.
func (c *Config) ClientTLS() (*tls.Config, error) {
	t := c.TLS
	if !t.InsecureSkipVerify && t.CAFile == "" && t.CertFile == "" {
		return nil, nil
	}

	tlsCfg := &tls.Config{
		InsecureSkipVerify: t.InsecureSkipVerify, //nolint:gosec // user-configured
	}

	if t.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("config: load client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	if t.CAFile != "" {
		caPEM, err := os.ReadFile(t.CAFile)
		if err != nil {
			return nil, fmt.Errorf("config: read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("config: no valid certs found in ca file %q", t.CAFile)
		}
		tlsCfg.RootCAs = pool
	}

	return tlsCfg, nil
}
