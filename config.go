package sftpclient

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/sftp"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"gopkg.in/yaml.v3"
)

// AuthMethod represents the SSH authentication method to use.
type AuthMethod string

const (
	// AuthMethodPrivateKey uses SSH private key authentication (default).
	AuthMethodPrivateKey AuthMethod = "private_key"
	// AuthMethodPassword uses password authentication.
	AuthMethodPassword AuthMethod = "password"
	// AuthMethodCertificate uses SSH certificate authentication.
	AuthMethodCertificate AuthMethod = "certificate"
)

const (
	defaultPort            = 22
	defaultTimeout         = 30 * time.Second
	defaultRetries         = 2
	defaultRetryFactor     = 2.0
	defaultRetryMinTimeout = 2000 * time.Millisecond
)

// Config holds SSH/SFTP connection configuration.
type Config struct {
	// Host is the target SSH server hostname or IP address.
	Host string `yaml:"host"`

	// Port is the SSH port (default 22).
	Port int `yaml:"port"`

	// User is the SSH username.
	User string `yaml:"user"`

	// AuthMethod specifies which authentication method to use.
	// If not set, it will be inferred from the provided credentials.
	AuthMethod AuthMethod `yaml:"auth_method"`

	// PrivateKey is the SSH private key content (PEM encoded).
	// Mutually exclusive with KeyPath.
	PrivateKey string `yaml:"private_key"`

	// KeyPath is the path to the SSH private key file.
	// Mutually exclusive with PrivateKey.
	KeyPath string `yaml:"key_path"`

	// Passphrase decrypts an encrypted private key.
	Passphrase string `yaml:"passphrase"`

	// Password is the SSH password for password authentication.
	Password string `yaml:"password"`

	// Certificate is the SSH certificate content.
	// Used with PrivateKey or KeyPath for certificate authentication.
	Certificate string `yaml:"certificate"`

	// CertificatePath is the path to the SSH certificate file.
	CertificatePath string `yaml:"certificate_path"`

	// Timeout bounds the TCP dial and SSH handshake of one attempt (default 30s).
	Timeout time.Duration `yaml:"timeout"`

	// KnownHostsFile is the path to a known_hosts file for host key verification.
	// If not set, defaults to ~/.ssh/known_hosts if it exists.
	KnownHostsFile string `yaml:"known_hosts_file"`

	// InsecureIgnoreHostKey skips host key verification.
	// WARNING: This is insecure and should only be used for testing.
	InsecureIgnoreHostKey bool `yaml:"insecure_ignore_host_key"`

	// BastionHost is the hostname or IP of a bastion/jump host.
	BastionHost string `yaml:"bastion_host"`

	// BastionPort is the SSH port of the bastion host (default 22).
	BastionPort int `yaml:"bastion_port"`

	// BastionUser is the SSH username for the bastion host.
	// Falls back to User if not set.
	BastionUser string `yaml:"bastion_user"`

	// BastionKey is the private key content for the bastion host.
	// Falls back to PrivateKey if not set.
	BastionKey string `yaml:"bastion_key"`

	// BastionKeyPath is the path to the private key for the bastion host.
	// Falls back to KeyPath if not set.
	BastionKeyPath string `yaml:"bastion_key_path"`

	// BastionPassword is the password for the bastion host.
	BastionPassword string `yaml:"bastion_password"`

	// Retries is the number of connection retries after the first attempt.
	// Zero selects the default of 2; a negative value disables retries.
	Retries int `yaml:"retries"`

	// RetryFactor multiplies the delay after every failed attempt (default 2).
	RetryFactor float64 `yaml:"retry_factor"`

	// RetryMinTimeout is the delay before the first retry (default 2s).
	RetryMinTimeout time.Duration `yaml:"retry_min_timeout"`

	// SFTPOptions are passed unmodified to sftp.NewClient.
	SFTPOptions []sftp.ClientOption `yaml:"-"`

	// SSHConfigHook, if set, may adjust the SSH client configuration of the
	// target host before every dial.
	SSHConfigHook func(*ssh.ClientConfig) `yaml:"-"`

	// Logger receives connection and operation logs. Defaults to a no-op logger.
	Logger *zap.Logger `yaml:"-"`

	// Registerer, if set, receives the client's Prometheus collectors.
	Registerer prometheus.Registerer `yaml:"-"`
}

// WithDefaults returns a copy of the config with default values applied.
func (c Config) WithDefaults() Config {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.BastionPort == 0 && c.BastionHost != "" {
		c.BastionPort = defaultPort
	}
	if c.Retries == 0 {
		c.Retries = defaultRetries
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.RetryFactor == 0 {
		c.RetryFactor = defaultRetryFactor
	}
	if c.RetryMinTimeout == 0 {
		c.RetryMinTimeout = defaultRetryMinTimeout
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Validate reports configuration errors that would make every connection
// attempt fail.
func (c Config) Validate() error {
	if c.Host == "" {
		return validationError("sftp.connect", "host is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return validationError("sftp.connect", fmt.Sprintf("invalid port %d", c.Port))
	}
	if c.RetryFactor < 0 {
		return validationError("sftp.connect", "retry factor must not be negative")
	}
	if c.RetryMinTimeout < 0 {
		return validationError("sftp.connect", "retry minimum timeout must not be negative")
	}
	return nil
}

// backoff returns the retry policy described by the config.
func (c Config) backoff() Backoff {
	return Backoff{
		MaxRetries: c.Retries,
		Factor:     c.RetryFactor,
		MinDelay:   c.RetryMinTimeout,
	}
}

// LoadConfig reads a YAML connection config from path. Key, certificate and
// known_hosts paths have a leading ~ expanded.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML connection config.
func ParseConfig(data []byte) (Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	config.KeyPath = ExpandPath(config.KeyPath)
	config.CertificatePath = ExpandPath(config.CertificatePath)
	config.KnownHostsFile = ExpandPath(config.KnownHostsFile)
	config.BastionKeyPath = ExpandPath(config.BastionKeyPath)

	return config, nil
}

// TransferOptions configures a single transfer.
type TransferOptions struct {
	// Mode is applied to files created by the transfer. Zero leaves the
	// server or local default in place.
	Mode os.FileMode

	// Offset is the byte offset at which Get starts reading.
	Offset int64

	// Concurrency bounds the outstanding write requests of FastPut.
	// Zero uses the pkg/sftp default.
	Concurrency int
}

func (o *TransferOptions) orDefault() TransferOptions {
	if o == nil {
		return TransferOptions{}
	}
	return *o
}
