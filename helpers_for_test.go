package sftpclient

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gossh "golang.org/x/crypto/ssh"
)

// generateTestRSAKey creates a test RSA private key and returns both PEM-encoded
// key content and a path to a temp file containing the key.
func generateTestRSAKey(t *testing.T) (string, string) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}

	privateKeyPEM := string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	}))

	keyPath := filepath.Join(t.TempDir(), "test_key")
	if err := os.WriteFile(keyPath, []byte(privateKeyPEM), 0600); err != nil {
		t.Fatalf("failed to write key file: %v", err)
	}

	return privateKeyPEM, keyPath
}

// generateTestPublicKey generates a public key from an RSA private key for use in tests.
func generateTestPublicKey(t *testing.T, privateKeyPEM string) string {
	t.Helper()

	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		t.Fatal("failed to parse PEM block")
	}

	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		t.Fatalf("failed to parse private key: %v", err)
	}

	publicKey, err := gossh.NewPublicKey(&privateKey.PublicKey)
	if err != nil {
		t.Fatalf("failed to create SSH public key: %v", err)
	}

	return string(gossh.MarshalAuthorizedKey(publicKey))
}

// createTempFile creates a temporary file with the given content.
func createTempFile(t *testing.T, content []byte) string {
	t.Helper()

	tmpFile := filepath.Join(t.TempDir(), "test_file")
	if err := os.WriteFile(tmpFile, content, 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	return tmpFile
}

// withMockSFTPClient creates a client with a mock SFTP implementation for testing.
func withMockSFTPClient(t *testing.T, fn func(t *testing.T, client *Client, mock *MockSFTPClient)) {
	t.Helper()

	mock := NewMockSFTPClient()
	client := NewClientWithSFTP(mock, nil)
	defer client.Close()

	fn(t, client, mock)
}

// newObservedClient returns a disconnected client whose logs are captured.
func newObservedClient(config Config) (*Client, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	config.Logger = zap.New(core)
	return New(config), logs
}

// assertFileContents verifies that a file has the expected content.
func assertFileContents(t *testing.T, path string, expected []byte) {
	t.Helper()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Errorf("failed to read file %s: %v", path, err)
		return
	}

	if string(content) != string(expected) {
		t.Errorf("file content mismatch:\nexpected: %q\ngot: %q", string(expected), string(content))
	}
}

// assertKind verifies that err is an *Error of the expected kind.
func assertKind(t *testing.T, err error, expected Kind) *Error {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %v, got nil", expected)
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if e.Kind != expected {
		t.Fatalf("expected kind %v, got %v (%v)", expected, e.Kind, err)
	}
	return e
}

// newTestConfig creates a Config with sensible defaults for testing.
func newTestConfig(t *testing.T) Config {
	t.Helper()

	privateKey, keyPath := generateTestRSAKey(t)

	return Config{
		Host:                  "localhost",
		Port:                  22,
		User:                  "testuser",
		PrivateKey:            privateKey,
		KeyPath:               keyPath,
		InsecureIgnoreHostKey: true,
	}
}
