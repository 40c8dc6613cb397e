package sftpclient

import (
	"path"
	"strings"
)

// currentDir is the server-relative current directory.
const currentDir = "."

// RemotePath is a slash-separated path on the server.
type RemotePath struct {
	p string
}

// NewRemotePath cleans p. Trailing slashes are dropped; an empty path
// becomes the current directory.
func NewRemotePath(p string) RemotePath {
	if p == "" {
		return RemotePath{p: currentDir}
	}
	return RemotePath{p: path.Clean(p)}
}

func (r RemotePath) String() string {
	if r.p == "" {
		return currentDir
	}
	return r.p
}

// IsRoot reports whether r is "/".
func (r RemotePath) IsRoot() bool { return r.p == "/" }

// endsInDot reports whether the last element of the raw path p is ".", as
// in "foo/." or "./". Cleaning would otherwise hide it.
func endsInDot(p string) bool { return path.Base(p) == currentDir }

// IsCurrent reports whether r is the current directory.
func (r RemotePath) IsCurrent() bool { return r.String() == currentDir }

// Leaf returns the last element of the path.
func (r RemotePath) Leaf() string {
	return path.Base(r.String())
}

// Parent returns the directory containing r. A relative single-element path
// has the current directory as its parent. The root and the current
// directory have no parent and report false.
func (r RemotePath) Parent() (RemotePath, bool) {
	s := r.String()
	if s == "/" || s == currentDir {
		return RemotePath{}, false
	}
	dir := path.Dir(s)
	if dir == "" {
		dir = currentDir
	}
	return RemotePath{p: dir}, true
}

// Join appends name to r.
func (r RemotePath) Join(name string) RemotePath {
	return RemotePath{p: path.Join(r.String(), name)}
}

// IsAbs reports whether r starts at the root.
func (r RemotePath) IsAbs() bool { return strings.HasPrefix(r.p, "/") }
