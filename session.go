package sftpclient

import (
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SessionState is the lifecycle state of a client's session.
type SessionState int

const (
	// SessionAbsent means no session exists, either because none was
	// established yet or because the transport terminated.
	SessionAbsent SessionState = iota
	// SessionEstablishing means Connect is in progress.
	SessionEstablishing
	// SessionReady means operations may be issued.
	SessionReady
	// SessionClosed means the client was closed explicitly.
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionEstablishing:
		return "establishing"
	case SessionReady:
		return "ready"
	case SessionClosed:
		return "closed"
	default:
		return "absent"
	}
}

// SFTPClientInterface abstracts SFTP operations for testing.
type SFTPClientInterface interface {
	ReadDir(path string) ([]os.FileInfo, error)
	Stat(path string) (os.FileInfo, error)
	Lstat(path string) (os.FileInfo, error)
	Open(path string) (SFTPFile, error)
	OpenFile(path string, flags int) (SFTPFile, error)
	Remove(path string) error
	RemoveDirectory(path string) error
	Mkdir(path string) error
	Rename(oldname, newname string) error
	Chmod(path string, mode os.FileMode) error
	Close() error
}

// SFTPFile abstracts file operations for testing.
type SFTPFile interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer
}

// SFTPClientWrapper wraps the real sftp.Client to implement SFTPClientInterface.
type SFTPClientWrapper struct {
	client *sftp.Client
}

var _ SFTPClientInterface = (*SFTPClientWrapper)(nil)

func (w *SFTPClientWrapper) ReadDir(path string) ([]os.FileInfo, error) { return w.client.ReadDir(path) }
func (w *SFTPClientWrapper) Stat(path string) (os.FileInfo, error) { return w.client.Stat(path) }
func (w *SFTPClientWrapper) Lstat(path string) (os.FileInfo, error) { return w.client.Lstat(path) }
func (w *SFTPClientWrapper) Open(path string) (SFTPFile, error) { return w.client.Open(path) }
func (w *SFTPClientWrapper) OpenFile(path string, flags int) (SFTPFile, error) {
	return w.client.OpenFile(path, flags)
}
func (w *SFTPClientWrapper) Remove(path string) error { return w.client.Remove(path) }
func (w *SFTPClientWrapper) RemoveDirectory(path string) error { return w.client.RemoveDirectory(path) }
func (w *SFTPClientWrapper) Mkdir(path string) error { return w.client.Mkdir(path) }
func (w *SFTPClientWrapper) Rename(oldname, newname string) error { return w.client.Rename(oldname, newname) }
func (w *SFTPClientWrapper) Chmod(path string, mode os.FileMode) error { return w.client.Chmod(path, mode) }
func (w *SFTPClientWrapper) Close() error { return w.client.Close() }

// session is one authenticated channel to the server. It is owned by a
// single Client.
type session struct {
	id            string
	sshClient     *ssh.Client
	bastionClient *ssh.Client // nil if no bastion host
	sftp          SFTPClientInterface

	closeOnce sync.Once
}

func newSession(sftpClient SFTPClientInterface, sshClient, bastionClient *ssh.Client) *session {
	return &session{
		id:            uuid.NewString(),
		sshClient:     sshClient,
		bastionClient: bastionClient,
		sftp:          sftpClient,
	}
}

// close releases SFTP, SSH and bastion connections. Errors from handles
// that the transport already tore down are ignored.
func (s *session) close() {
	s.closeOnce.Do(func() {
		if s.sftp != nil {
			_ = s.sftp.Close()
		}
		if s.sshClient != nil {
			_ = s.sshClient.Close()
		}
		if s.bastionClient != nil {
			_ = s.bastionClient.Close()
		}
	})
}
