package sftpclient

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// buildSSHConfig resolves credentials and host key verification for the
// target host. It runs once per Connect, before the first attempt.
func buildSSHConfig(config Config, logger *zap.Logger) (*ssh.ClientConfig, error) {
	authMethods, err := buildAuthMethods(config)
	if err != nil {
		return nil, err
	}

	if len(authMethods) == 0 {
		return nil, fmt.Errorf("no SSH authentication method configured")
	}

	hostKeyCallback, err := buildHostKeyCallback(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure host key verification: %w", err)
	}

	sshConfig := &ssh.ClientConfig{
		User:            config.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         config.Timeout,
	}
	if config.SSHConfigHook != nil {
		config.SSHConfigHook(sshConfig)
	}
	return sshConfig, nil
}

// dialSSH opens a TCP connection with ctx and runs the SSH handshake over it.
func dialSSH(ctx context.Context, addr string, sshConfig *ssh.ClientConfig) (*ssh.Client, error) {
	dialer := &net.Dialer{Timeout: sshConfig.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	if sshConfig.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(sshConfig.Timeout))
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ssh handshake failed: %w", err)
	}
	_ = conn.SetDeadline(time.Time{})

	return ssh.NewClient(c, chans, reqs), nil
}

// connectToBastion dials the jump host. Bastion credentials default to the
// target's key when no bastion password or key is configured.
func connectToBastion(ctx context.Context, config Config, logger *zap.Logger) (*ssh.Client, error) {
	var authMethods []ssh.AuthMethod

	if config.BastionPassword != "" {
		authMethods = append(authMethods, ssh.Password(config.BastionPassword))
	} else {
		keyData, err := readMaterial(config.BastionKey, config.BastionKeyPath, "bastion key")
		if err != nil {
			return nil, err
		}
		if keyData == nil {
			if config.PrivateKey == "" && config.KeyPath == "" {
				return nil, fmt.Errorf("no SSH key configured for bastion host")
			}
			if keyData, err = loadPrivateKey(config); err != nil {
				return nil, fmt.Errorf("failed to load target key for bastion: %w", err)
			}
		}

		signer, err := parsePrivateKey(keyData, config.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to parse bastion SSH key: %w", err)
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	bastionUser := config.BastionUser
	if bastionUser == "" {
		bastionUser = config.User
	}

	hostKeyCallback, err := buildHostKeyCallback(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure host key verification for bastion: %w", err)
	}

	bastionConfig := &ssh.ClientConfig{
		User:            bastionUser,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         config.Timeout,
	}

	bastionAddr := net.JoinHostPort(config.BastionHost, fmt.Sprint(config.BastionPort))
	return dialSSH(ctx, bastionAddr, bastionConfig)
}

func buildHostKeyCallback(config Config, logger *zap.Logger) (ssh.HostKeyCallback, error) {
	if config.InsecureIgnoreHostKey {
		logger.Warn("SSH host key verification disabled, this is insecure",
			zap.String("host", config.Host), zap.Int("port", config.Port))
		return ssh.InsecureIgnoreHostKey(), nil
	}

	if config.KnownHostsFile != "" {
		expandedPath := ExpandPath(config.KnownHostsFile)
		callback, err := knownhosts.New(expandedPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts file %s: %w", expandedPath, err)
		}
		return callback, nil
	}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		defaultKnownHosts := filepath.Join(homeDir, ".ssh", "known_hosts")
		if _, err := os.Stat(defaultKnownHosts); err == nil {
			callback, err := knownhosts.New(defaultKnownHosts)
			if err == nil {
				return callback, nil
			}
			logger.Warn("could not parse known_hosts file",
				zap.String("path", defaultKnownHosts), zap.Error(err))
		}
	}

	logger.Warn("no known_hosts file found, host key verification disabled",
		zap.String("host", config.Host), zap.Int("port", config.Port))
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		return nil
	}, nil
}

func buildAuthMethods(config Config) ([]ssh.AuthMethod, error) {
	var authMethods []ssh.AuthMethod

	authMethod := config.AuthMethod
	if authMethod == "" {
		authMethod = inferAuthMethod(config)
	}

	switch authMethod {
	case AuthMethodPassword:
		if config.Password == "" {
			return nil, fmt.Errorf("password authentication requires password to be set")
		}
		authMethods = append(authMethods, ssh.Password(config.Password))

	case AuthMethodCertificate:
		certAuth, err := buildCertificateAuth(config)
		if err != nil {
			return nil, fmt.Errorf("certificate authentication failed: %w", err)
		}
		authMethods = append(authMethods, certAuth)

	case AuthMethodPrivateKey:
		keyAuth, err := buildPrivateKeyAuth(config)
		if err != nil {
			return nil, err
		}
		authMethods = append(authMethods, keyAuth)

	default:
		return nil, fmt.Errorf("unknown authentication method %q", authMethod)
	}

	return authMethods, nil
}

func inferAuthMethod(config Config) AuthMethod {
	if config.Password != "" {
		return AuthMethodPassword
	}
	if config.Certificate != "" || config.CertificatePath != "" {
		return AuthMethodCertificate
	}
	return AuthMethodPrivateKey
}

// readMaterial returns inline when set, otherwise the contents of path. Both
// empty yields nil data and no error.
func readMaterial(inline, path, what string) ([]byte, error) {
	if inline != "" {
		return []byte(inline), nil
	}
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s file: %w", what, err)
	}
	return data, nil
}

func loadPrivateKey(config Config) ([]byte, error) {
	keyData, err := readMaterial(config.PrivateKey, config.KeyPath, "SSH key")
	if err != nil {
		return nil, err
	}
	if keyData == nil {
		return nil, fmt.Errorf("no SSH private key provided (set private_key or key_path)")
	}
	return keyData, nil
}

func parsePrivateKey(keyData []byte, passphrase string) (ssh.Signer, error) {
	signer, err := ssh.ParsePrivateKey(keyData)
	if err == nil {
		return signer, nil
	}
	if passphrase == "" {
		return nil, err
	}
	return ssh.ParsePrivateKeyWithPassphrase(keyData, []byte(passphrase))
}

func buildPrivateKeyAuth(config Config) (ssh.AuthMethod, error) {
	keyData, err := loadPrivateKey(config)
	if err != nil {
		return nil, err
	}

	signer, err := parsePrivateKey(keyData, config.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SSH private key: %w", err)
	}

	return ssh.PublicKeys(signer), nil
}

func buildCertificateAuth(config Config) (ssh.AuthMethod, error) {
	if config.PrivateKey == "" && config.KeyPath == "" {
		return nil, fmt.Errorf("certificate auth requires private key")
	}
	keyData, err := loadPrivateKey(config)
	if err != nil {
		return nil, err
	}

	signer, err := parsePrivateKey(keyData, config.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	certData, err := readMaterial(config.Certificate, config.CertificatePath, "certificate")
	if err != nil {
		return nil, err
	}
	if certData == nil {
		return nil, fmt.Errorf("certificate auth requires certificate")
	}

	pubKey, _, _, _, err := ssh.ParseAuthorizedKey(certData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	cert, ok := pubKey.(*ssh.Certificate)
	if !ok {
		return nil, fmt.Errorf("provided file is not an SSH certificate")
	}

	certSigner, err := ssh.NewCertSigner(cert, signer)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate signer: %w", err)
	}

	return ssh.PublicKeys(certSigner), nil
}

// ExpandPath expands ~ to home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(homeDir, path[2:])
		}
	}
	return path
}
