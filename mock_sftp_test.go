package sftpclient

import (
	"errors"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
)

// mockFileInfo implements os.FileInfo for testing. Sys returns an
// *sftp.FileStat like the real client does.
type mockFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
	stat    *sftp.FileStat
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() os.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.mode.IsDir() }
func (m *mockFileInfo) Sys() any           { return m.stat }

// mockNode is one object in the mock file system.
type mockNode struct {
	content []byte
	mode    os.FileMode
	modTime time.Time
	uid     uint32
	gid     uint32
}

// MockSFTPClient is an in-memory SFTPClientInterface. Paths are cleaned
// with path.Clean; "." and "/" always exist as directories.
type MockSFTPClient struct {
	mu     sync.Mutex
	nodes  map[string]*mockNode
	order  map[string]int // insertion order, for ReadDir
	seq    int
	errors map[string]error
	calls  []string
	closed bool

	// openHook, if set, wraps files returned by Open.
	openHook func(SFTPFile) SFTPFile
}

// NewMockSFTPClient creates a new mock SFTP client.
func NewMockSFTPClient() *MockSFTPClient {
	m := &MockSFTPClient{
		nodes:  make(map[string]*mockNode),
		order:  make(map[string]int),
		errors: make(map[string]error),
	}
	m.nodes["/"] = &mockNode{mode: os.ModeDir | 0o755, modTime: time.Unix(1700000000, 0)}
	m.nodes["."] = &mockNode{mode: os.ModeDir | 0o755, modTime: time.Unix(1700000000, 0)}
	return m
}

// Ensure MockSFTPClient implements SFTPClientInterface.
var _ SFTPClientInterface = (*MockSFTPClient)(nil)

// SetError sets an error to be returned for a specific method.
func (m *MockSFTPClient) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[method] = err
}

// SetFile creates a file, and its parent directories.
func (m *MockSFTPClient) SetFile(p string, content []byte, mode os.FileMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAllLocked(path.Dir(path.Clean(p)))
	m.putLocked(path.Clean(p), &mockNode{content: content, mode: mode, modTime: time.Unix(1700000000, 0), uid: 1000, gid: 1000})
}

// SetDir creates a directory, and its parent directories.
func (m *MockSFTPClient) SetDir(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAllLocked(path.Clean(p))
}

// SetSymlink creates a symbolic link node.
func (m *MockSFTPClient) SetSymlink(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAllLocked(path.Dir(path.Clean(p)))
	m.putLocked(path.Clean(p), &mockNode{mode: os.ModeSymlink | 0o777, modTime: time.Unix(1700000000, 0)})
}

// Has reports whether p exists.
func (m *MockSFTPClient) Has(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.nodes[path.Clean(p)]
	return ok
}

// Content returns the content of the file at p.
func (m *MockSFTPClient) Content(p string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.nodes[path.Clean(p)]; ok {
		return append([]byte(nil), n.content...)
	}
	return nil
}

// Mode returns the mode of p.
func (m *MockSFTPClient) Mode(p string) os.FileMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.nodes[path.Clean(p)]; ok {
		return n.mode
	}
	return 0
}

// Closed reports whether Close was called.
func (m *MockSFTPClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Calls returns the recorded "Method path" calls.
func (m *MockSFTPClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockSFTPClient) putLocked(p string, n *mockNode) {
	if _, ok := m.nodes[p]; !ok {
		m.seq++
		m.order[p] = m.seq
	}
	m.nodes[p] = n
}

func (m *MockSFTPClient) mkdirAllLocked(p string) {
	if p == "." || p == "/" {
		return
	}
	m.mkdirAllLocked(path.Dir(p))
	if _, ok := m.nodes[p]; !ok {
		m.putLocked(p, &mockNode{mode: os.ModeDir | 0o755, modTime: time.Unix(1700000000, 0), uid: 1000, gid: 1000})
	}
}

func (m *MockSFTPClient) record(method, p string) error {
	m.calls = append(m.calls, method+" "+p)
	return m.errors[method]
}

func (m *MockSFTPClient) info(p string, n *mockNode) *mockFileInfo {
	return &mockFileInfo{
		name:    path.Base(p),
		size:    int64(len(n.content)),
		mode:    n.mode,
		modTime: n.modTime,
		stat: &sftp.FileStat{
			Size:  uint64(len(n.content)),
			Mode:  posixMode(n.mode),
			Mtime: uint32(n.modTime.Unix()),
			Atime: uint32(n.modTime.Unix()),
			UID:   n.uid,
			GID:   n.gid,
		},
	}
}

func (m *MockSFTPClient) childrenLocked(dir string) []string {
	var names []string
	for p := range m.nodes {
		if p == dir || p == "." || p == "/" {
			continue
		}
		if path.Dir(p) == dir {
			names = append(names, p)
		}
	}
	sort.Slice(names, func(i, j int) bool { return m.order[names[i]] < m.order[names[j]] })
	return names
}

func (m *MockSFTPClient) ReadDir(p string) ([]os.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = path.Clean(p)
	if err := m.record("ReadDir", p); err != nil {
		return nil, err
	}
	n, ok := m.nodes[p]
	if !ok {
		return nil, os.ErrNotExist
	}
	if !n.mode.IsDir() {
		return nil, &sftp.StatusError{Code: uint32(sftp.ErrSSHFxFailure)}
	}
	var infos []os.FileInfo
	for _, child := range m.childrenLocked(p) {
		infos = append(infos, m.info(child, m.nodes[child]))
	}
	return infos, nil
}

func (m *MockSFTPClient) Stat(p string) (os.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = path.Clean(p)
	if err := m.record("Stat", p); err != nil {
		return nil, err
	}
	n, ok := m.nodes[p]
	if !ok {
		return nil, os.ErrNotExist
	}
	return m.info(p, n), nil
}

func (m *MockSFTPClient) Lstat(p string) (os.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = path.Clean(p)
	if err := m.record("Lstat", p); err != nil {
		return nil, err
	}
	n, ok := m.nodes[p]
	if !ok {
		return nil, &sftp.StatusError{Code: uint32(sftp.ErrSSHFxNoSuchFile)}
	}
	return m.info(p, n), nil
}

func (m *MockSFTPClient) Open(p string) (SFTPFile, error) {
	m.mu.Lock()
	p = path.Clean(p)
	if err := m.record("Open", p); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	n, ok := m.nodes[p]
	hook := m.openHook
	m.mu.Unlock()
	if !ok {
		return nil, os.ErrNotExist
	}
	f := &MockSFTPFile{mock: m, path: p, content: append([]byte(nil), n.content...)}
	if hook != nil {
		return hook(f), nil
	}
	return f, nil
}

func (m *MockSFTPClient) OpenFile(p string, flags int) (SFTPFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = path.Clean(p)
	if err := m.record("OpenFile", p); err != nil {
		return nil, err
	}
	parent, ok := m.nodes[path.Dir(p)]
	if !ok || !parent.mode.IsDir() {
		return nil, os.ErrNotExist
	}
	n, ok := m.nodes[p]
	switch {
	case !ok && flags&os.O_CREATE == 0:
		return nil, os.ErrNotExist
	case !ok:
		n = &mockNode{mode: 0o644, modTime: time.Unix(1700000000, 0)}
		m.putLocked(p, n)
	case n.mode.IsDir():
		return nil, &sftp.StatusError{Code: uint32(sftp.ErrSSHFxFailure)}
	}
	if flags&os.O_TRUNC != 0 {
		n.content = nil
	}
	return &MockSFTPFile{mock: m, path: p, content: append([]byte(nil), n.content...), writable: true}, nil
}

func (m *MockSFTPClient) Remove(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = path.Clean(p)
	if err := m.record("Remove", p); err != nil {
		return err
	}
	n, ok := m.nodes[p]
	if !ok {
		return os.ErrNotExist
	}
	if n.mode.IsDir() && len(m.childrenLocked(p)) > 0 {
		return &sftp.StatusError{Code: uint32(sftp.ErrSSHFxFailure)}
	}
	delete(m.nodes, p)
	return nil
}

func (m *MockSFTPClient) RemoveDirectory(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = path.Clean(p)
	if err := m.record("RemoveDirectory", p); err != nil {
		return err
	}
	n, ok := m.nodes[p]
	if !ok {
		return os.ErrNotExist
	}
	if !n.mode.IsDir() || len(m.childrenLocked(p)) > 0 {
		return &sftp.StatusError{Code: uint32(sftp.ErrSSHFxFailure)}
	}
	delete(m.nodes, p)
	return nil
}

func (m *MockSFTPClient) Mkdir(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = path.Clean(p)
	if err := m.record("Mkdir", p); err != nil {
		return err
	}
	if _, ok := m.nodes[p]; ok {
		return &sftp.StatusError{Code: uint32(sftp.ErrSSHFxFailure)}
	}
	parent, ok := m.nodes[path.Dir(p)]
	if !ok {
		return os.ErrNotExist
	}
	if !parent.mode.IsDir() {
		return &sftp.StatusError{Code: uint32(sftp.ErrSSHFxFailure)}
	}
	m.putLocked(p, &mockNode{mode: os.ModeDir | 0o755, modTime: time.Unix(1700000000, 0)})
	return nil
}

func (m *MockSFTPClient) Rename(oldname, newname string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	oldname, newname = path.Clean(oldname), path.Clean(newname)
	if err := m.record("Rename", oldname); err != nil {
		return err
	}
	n, ok := m.nodes[oldname]
	if !ok {
		return os.ErrNotExist
	}
	delete(m.nodes, oldname)
	m.putLocked(newname, n)
	return nil
}

func (m *MockSFTPClient) Chmod(p string, mode os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = path.Clean(p)
	if err := m.record("Chmod", p); err != nil {
		return err
	}
	n, ok := m.nodes[p]
	if !ok {
		return os.ErrNotExist
	}
	n.mode = n.mode&^os.ModePerm | mode.Perm()
	return nil
}

func (m *MockSFTPClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.errors["Close"]
}

// MockSFTPFile implements SFTPFile for testing. Writes are stored in the
// mock file system as they happen.
type MockSFTPFile struct {
	mock     *MockSFTPClient
	path     string
	content  []byte
	offset   int64
	writable bool
	closed   bool
}

func (f *MockSFTPFile) Read(p []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	if f.offset >= int64(len(f.content)) {
		return 0, io.EOF
	}
	n := copy(p, f.content[f.offset:])
	f.offset += int64(n)
	return n, nil
}

func (f *MockSFTPFile) Write(p []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	if !f.writable {
		return 0, errors.New("file not open for writing")
	}
	f.mock.mu.Lock()
	defer f.mock.mu.Unlock()
	if err := f.mock.errors["Write"]; err != nil {
		return 0, err
	}
	n, ok := f.mock.nodes[f.path]
	if !ok {
		return 0, os.ErrNotExist
	}
	end := f.offset + int64(len(p))
	if end > int64(len(n.content)) {
		grown := make([]byte, end)
		copy(grown, n.content)
		n.content = grown
	}
	copy(n.content[f.offset:], p)
	f.offset = end
	return len(p), nil
}

func (f *MockSFTPFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		f.offset = offset
	case io.SeekCurrent:
		f.offset += offset
	case io.SeekEnd:
		size := int64(len(f.content))
		if f.writable {
			f.mock.mu.Lock()
			if n, ok := f.mock.nodes[f.path]; ok {
				size = int64(len(n.content))
			}
			f.mock.mu.Unlock()
		}
		f.offset = size + offset
	}
	return f.offset, nil
}

func (f *MockSFTPFile) Close() error {
	f.closed = true
	return nil
}

// blockingFile is a remote file whose reads block until release is closed.
type blockingFile struct {
	SFTPFile
	release chan struct{}
	once    sync.Once
}

func (b *blockingFile) Read(p []byte) (int, error) {
	<-b.release
	return 0, io.ErrClosedPipe
}

func (b *blockingFile) Close() error {
	b.once.Do(func() { close(b.release) })
	return nil
}

// joinCalls renders calls for failure messages.
func joinCalls(calls []string) string {
	return strings.Join(calls, "\n")
}
